package scan

import (
	"github.com/shopspring/decimal"

	"panel_exporter/internal/protocol"
	"panel_exporter/telemetry"
)

// ReadDiagnostics executes the enhanced diagnostics plan for a classified
// device. Every planned field ends up in the returned map: failed reads and
// decodes store a Missing value so exported column sets stay stable.
// Unknown device types have no plan and yield an empty map.
func (p *Profiler) ReadDiagnostics(deviceID uint16, deviceType protocol.DeviceType) map[string]Value {
	diagnostics := map[string]Value{}
	plan := protocol.DiagnosticPlan(deviceType)
	if len(plan) == 0 {
		return diagnostics
	}
	logger := p.logger.With().Uint16("device_id", deviceID).Str("device_type", string(deviceType)).Logger()

	if deviceID > 0xFF {
		for _, field := range plan {
			diagnostics[field.Name] = Missing()
		}
		return diagnostics
	}
	unit := uint8(deviceID)

	for _, field := range plan {
		words, err := p.reader.ReadRegisters(unit, field.Address, field.Count)
		if err != nil {
			p.collector.IncReadErrors(telemetry.StageDiagnostics, 1)
			logger.Warn().Err(err).Str("field", field.Name).Uint16("register", field.Address).Msg("diagnostic read failed")
			diagnostics[field.Name] = Missing()
			continue
		}
		value := decodeDiagnostic(field.Kind, words)
		if value.IsMissing() {
			logger.Warn().Str("field", field.Name).Ints32("words", widen(words)).Msg("diagnostic decode failed")
		} else {
			logger.Debug().Str("field", field.Name).Stringer("value", value).Msg("diagnostic read ok")
		}
		diagnostics[field.Name] = value
	}

	logger.Info().Str("signal_quality", string(signalQualityOf(diagnostics))).Msg("diagnostics computed")
	return diagnostics
}

func decodeDiagnostic(kind protocol.DecodeKind, words []uint16) Value {
	switch kind {
	case protocol.KindFloat32:
		raw, ok := protocol.DecodeFloat32(words)
		if !ok {
			return Missing()
		}
		return Number(decimal.NewFromFloat(raw).Round(2).InexactFloat64())
	case protocol.KindUInt16, protocol.KindBitmap:
		raw, ok := protocol.DecodeUInt16(words)
		if !ok {
			return Missing()
		}
		return Number(float64(raw))
	default:
		return Missing()
	}
}

func signalQualityOf(diagnostics map[string]Value) protocol.SignalQuality {
	lqi, lqiOK := diagnostics[protocol.FieldLQI].Float()
	per, perOK := diagnostics[protocol.FieldGatewayPER].Float()
	return protocol.GradeSignal(lqi, lqiOK, per, perOK)
}

func widen(words []uint16) []int32 {
	out := make([]int32, len(words))
	for i, w := range words {
		out[i] = int32(w)
	}
	return out
}
