// Package service drives full export passes: discover device IDs, profile
// each device, read diagnostics and hand the records to the export and
// publish sinks.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"panel_exporter/internal/config"
	"panel_exporter/internal/export"
	"panel_exporter/internal/protocol"
	"panel_exporter/internal/publish"
	"panel_exporter/internal/scan"
	"panel_exporter/remote"
	"panel_exporter/telemetry"
)

var (
	// ErrConnectionFailed marks a pass that never reached the gateway. It
	// aborts the whole run; nothing was profiled.
	ErrConnectionFailed = errors.New("gateway connection failed")
	// ErrNoDevices marks a reachable gateway whose discovery window held no
	// paired devices. Reported distinctly from a connection failure.
	ErrNoDevices = errors.New("no devices discovered")
)

// Service owns the connection pool and runs export passes against one
// panel server.
type Service struct {
	cfg       *config.Config
	logger    zerolog.Logger
	pool      *remote.Pool
	cache     *remote.ReadCache
	filter    *export.Filter
	collector telemetry.Collector
	now       func() time.Time
}

// New validates the configuration and prepares a service. The factory is
// injected so tests run against fake clients.
func New(cfg *config.Config, logger zerolog.Logger, factory remote.ClientFactory, collector telemetry.Collector) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	filter, err := export.CompileFilter(cfg.Export.Filter)
	if err != nil {
		return nil, err
	}
	if collector == nil {
		collector = telemetry.Noop()
	}
	var cache *remote.ReadCache
	if cfg.Poll.CacheSize > 0 {
		cache = remote.NewReadCache(cfg.Poll.CacheSize, cfg.Poll.CacheTTL.Duration)
	}
	return &Service{
		cfg:       cfg,
		logger:    logger.With().Str("component", "service").Logger(),
		pool:      remote.NewPool(factory, cfg.Gateway, cfg.Poll.WorkerSlots()),
		cache:     cache,
		filter:    filter,
		collector: collector,
		now:       time.Now,
	}, nil
}

// Close releases the pooled gateway connections.
func (s *Service) Close() error {
	return s.pool.Close()
}

func (s *Service) reader(client remote.Client) remote.RegisterReader {
	return remote.WithCache(client, s.cache)
}

// TestConnection contacts the gateway and returns how many devices its
// discovery window currently holds. A dial failure wraps
// ErrConnectionFailed so callers can tell it apart from an empty window.
func (s *Service) TestConnection(ctx context.Context) (int, error) {
	client, err := s.pool.Acquire(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}
	ids := scan.Discover(ctx, s.reader(client), s.cfg.Gateway.Unit(), s.cfg.Discovery, s.logger, s.collector)
	s.pool.Release(client)
	return len(ids), nil
}

// Collect runs one full pass: discovery, then per-device profiling and,
// when enabled, enhanced diagnostics. Cancellation is honored between
// devices; the records completed so far are returned. Device order follows
// the discovery window.
func (s *Service) Collect(ctx context.Context) ([]scan.DeviceRecord, error) {
	started := s.now()

	client, err := s.pool.Acquire(ctx)
	if err != nil {
		s.collector.IncExportRun(telemetry.OutcomeError)
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}
	ids := scan.Discover(ctx, s.reader(client), s.cfg.Gateway.Unit(), s.cfg.Discovery, s.logger, s.collector)
	s.pool.Release(client)

	s.collector.SetDevicesDiscovered(len(ids))
	if len(ids) == 0 {
		s.collector.IncExportRun(telemetry.OutcomeError)
		return nil, ErrNoDevices
	}

	type job struct {
		index int
		id    uint16
	}
	jobs := make([]job, len(ids))
	for i, id := range ids {
		jobs[i] = job{index: i, id: id}
	}
	records := make([]scan.DeviceRecord, len(ids))

	failures, aborted := forEachDevice(ctx, s.cfg.Poll.WorkerSlots(), jobs, func(ctx context.Context, j job) error {
		client, err := s.pool.Acquire(ctx)
		if err != nil {
			s.logger.Warn().Err(err).Uint16("device_id", j.id).Msg("no connection for device, skipping")
			records[j.index] = scan.DeviceRecord{
				DeviceID:    j.id,
				DeviceType:  protocol.DeviceUnknown,
				Diagnostics: map[string]scan.Value{},
			}
			return err
		}
		profiler := scan.NewProfiler(s.reader(client), s.logger, s.collector)
		record := profiler.Profile(j.id)
		if s.cfg.Poll.EnhancedDiagnostics {
			record.Diagnostics = profiler.ReadDiagnostics(j.id, record.DeviceType)
		}
		records[j.index] = record
		s.pool.Release(client)
		return nil
	})
	if failures > 0 {
		s.logger.Warn().Int("devices", failures).Msg("devices skipped without a connection")
	}

	// Devices a worker never reached leave their slot zero-valued; only the
	// completed records may flow into the export.
	completed := records[:0]
	for _, record := range records {
		if record.DeviceID != 0 {
			completed = append(completed, record)
		}
	}
	records = completed
	if aborted {
		s.logger.Warn().Int("completed", len(records)).Int("discovered", len(ids)).Msg("pass cancelled between devices")
	}

	s.collector.ObserveRunDuration(s.now().Sub(started).Seconds())
	s.collector.IncExportRun(telemetry.OutcomeSuccess)
	s.logger.Info().
		Int("devices", len(records)).
		Bool("enhanced_diagnostics", s.cfg.Poll.EnhancedDiagnostics).
		Dur("elapsed", s.now().Sub(started)).
		Msg("export pass finished")
	return records, nil
}

// ExportOnce runs one pass and writes the configured output files.
func (s *Service) ExportOnce(ctx context.Context) error {
	records, err := s.Collect(ctx)
	if err != nil {
		return err
	}
	records, err = s.applyFilter(records)
	if err != nil {
		return err
	}

	table := export.BuildTable(records)
	base := s.cfg.Export.Output
	if base == "" {
		base = "export"
	}
	enhanced := s.cfg.Poll.EnhancedDiagnostics

	if s.cfg.Export.CSV {
		path := export.CSVPath(base, enhanced)
		if err := export.WriteCSV(path, table); err != nil {
			return err
		}
		s.logger.Info().Str("path", path).Msg("csv export written")
	}
	if s.cfg.Export.XLSX {
		path := export.XLSXPath(base, enhanced)
		if err := export.WriteXLSX(path, table); err != nil {
			return err
		}
		s.logger.Info().Str("path", path).Msg("xlsx export written")
	}
	if s.cfg.Export.PairingSheet != "" {
		sensors, err := export.LoadPairingSensors(s.cfg.Export.PairingSheet)
		if err != nil {
			return err
		}
		path := export.PairingPath(base)
		if err := export.WritePairingSheet(path, export.BuildPairingTable(sensors, records)); err != nil {
			return err
		}
		s.logger.Info().Str("path", path).Int("sensors", len(sensors)).Msg("pairing sheet written")
	}
	return nil
}

// RunLive repeats export passes on the configured interval and publishes
// every record. It returns when the context is cancelled. Failed passes are
// logged and retried on the next tick so a flaky gateway does not kill the
// loop.
func (s *Service) RunLive(ctx context.Context, publisher publish.Publisher) error {
	interval := s.cfg.Live.LiveInterval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info().Dur("interval", interval).Msg("live diagnostics loop started")
	for {
		s.publishPass(ctx, publisher)
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("live diagnostics loop stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Service) publishPass(ctx context.Context, publisher publish.Publisher) {
	records, err := s.Collect(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("live pass failed")
		return
	}
	records, err = s.applyFilter(records)
	if err != nil {
		s.logger.Warn().Err(err).Msg("live pass filter failed")
		return
	}
	for _, record := range records {
		if ctx.Err() != nil {
			return
		}
		if err := publisher.PublishRecord(record); err != nil {
			s.logger.Warn().Err(err).Uint16("device_id", record.DeviceID).Msg("publish failed")
		}
	}
}

func (s *Service) applyFilter(records []scan.DeviceRecord) ([]scan.DeviceRecord, error) {
	if s.filter == nil {
		return records, nil
	}
	total := len(records)
	kept := records[:0]
	for _, record := range records {
		matched, err := s.filter.Match(record)
		if err != nil {
			return nil, err
		}
		if matched {
			kept = append(kept, record)
		}
	}
	s.logger.Debug().Int("kept", len(kept)).Int("total", total).Msg("export filter applied")
	return kept, nil
}
