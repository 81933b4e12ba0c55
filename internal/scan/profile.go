package scan

import (
	"github.com/rs/zerolog"

	"panel_exporter/internal/protocol"
	"panel_exporter/remote"
	"panel_exporter/telemetry"
)

// Profiler reads the identity and diagnostic registers of one device at a
// time over an injected register reader. Failed register reads are counted
// against the collector under their stage label.
type Profiler struct {
	reader    remote.RegisterReader
	logger    zerolog.Logger
	collector telemetry.Collector
}

// NewProfiler builds a profiler on top of the given reader.
func NewProfiler(reader remote.RegisterReader, logger zerolog.Logger, collector telemetry.Collector) *Profiler {
	if collector == nil {
		collector = telemetry.Noop()
	}
	return &Profiler{
		reader:    reader,
		logger:    logger.With().Str("component", "profiler").Logger(),
		collector: collector,
	}
}

// Profile reads the identity register blocks of a device and classifies its
// type from the commercial reference. Each block is independent: a failed
// read blanks only its own field and profiling continues.
func (p *Profiler) Profile(deviceID uint16) DeviceRecord {
	record := DeviceRecord{
		DeviceID:    deviceID,
		DeviceType:  protocol.DeviceUnknown,
		Diagnostics: map[string]Value{},
	}
	logger := p.logger.With().Uint16("device_id", deviceID).Logger()

	if deviceID > 0xFF {
		// The unit identifier of a Modbus TCP request is a single byte;
		// an ID outside that range cannot be addressed.
		logger.Warn().Msg("device id exceeds unit address range, skipping profile")
		return record
	}
	unit := uint8(deviceID)

	reference := p.readASCII(unit, protocol.RegCommercialReference, logger)
	record.DeviceType = protocol.Classify(reference)
	logger.Info().
		Str("commercial_reference", reference).
		Str("device_type", string(record.DeviceType)).
		Msg("device classified")

	if words, ok := p.readBlock(unit, protocol.RegRFID, logger); ok {
		record.RFID = protocol.DecodeHexID(words)
	}
	record.SerialNumber = p.readASCII(unit, protocol.RegSerialNumber, logger)
	record.DeviceName = p.readASCII(unit, protocol.RegDeviceName, logger)
	record.DeviceLabel = p.readASCII(unit, protocol.RegDeviceLabel, logger)
	record.ProductModel = p.readASCII(unit, protocol.RegProductModel, logger)

	return record
}

func (p *Profiler) readBlock(unit uint8, field protocol.IdentityField, logger zerolog.Logger) ([]uint16, bool) {
	words, err := p.reader.ReadRegisters(unit, field.Address, field.Count)
	if err != nil {
		p.collector.IncReadErrors(telemetry.StageIdentity, 1)
		logger.Warn().Err(err).Str("field", field.Name).Uint16("register", field.Address).Msg("identity read failed")
		return nil, false
	}
	logger.Debug().Str("field", field.Name).Uint16("register", field.Address).Msg("identity read ok")
	return words, true
}

func (p *Profiler) readASCII(unit uint8, field protocol.IdentityField, logger zerolog.Logger) string {
	words, ok := p.readBlock(unit, field, logger)
	if !ok {
		return ""
	}
	return protocol.DecodeASCII(words)
}
