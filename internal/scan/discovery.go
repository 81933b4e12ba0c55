package scan

import (
	"context"

	"github.com/rs/zerolog"

	"panel_exporter/internal/config"
	"panel_exporter/remote"
	"panel_exporter/telemetry"
)

// Discover scans the gateway's virtual-address window and returns the
// device IDs found, in register order. Slots holding 0x0000 or 0xFFFF are
// unpaired; a failed slot read counts as empty and never aborts the scan,
// because gateways assign slots non-contiguously as devices pair and
// unpair. Duplicates are not filtered here.
func Discover(ctx context.Context, reader remote.RegisterReader, gatewayUnit uint8, window config.DiscoveryConfig, logger zerolog.Logger, collector telemetry.Collector) []uint16 {
	if collector == nil {
		collector = telemetry.Noop()
	}
	base := window.WindowBase()
	stride := window.WindowStride()
	slots := window.WindowSlots()

	logger.Info().
		Uint16("base", base).
		Uint16("stride", stride).
		Int("slots", slots).
		Msg("scanning virtual address window")

	ids := make([]uint16, 0, slots)
	for i := 0; i < slots; i++ {
		if ctx.Err() != nil {
			logger.Warn().Int("slot", i).Msg("discovery cancelled")
			return ids
		}
		addr := base + uint16(i)*stride
		words, err := reader.ReadRegisters(gatewayUnit, addr, 1)
		if err != nil {
			collector.IncReadErrors(telemetry.StageDiscovery, 1)
			logger.Debug().Err(err).Uint16("register", addr).Msg("slot read failed, treating as empty")
			continue
		}
		if len(words) == 0 {
			continue
		}
		word := words[0]
		if word == 0x0000 || word == 0xFFFF {
			continue
		}
		logger.Info().Uint16("register", addr).Uint16("device_id", word).Msg("device discovered")
		ids = append(ids, word)
	}
	return ids
}
