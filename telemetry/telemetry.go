package telemetry

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector captures telemetry events emitted by the exporter.
//
// Implementations may forward metrics to Prometheus, loggers or other
// monitoring systems. They should be inexpensive to call because hooks are
// executed inline with the export pass.
type Collector interface {
	IncExportRun(outcome string)
	SetDevicesDiscovered(count int)
	IncReadErrors(stage string, count uint64)
	ObserveRunDuration(seconds float64)
}

// Outcome labels used with IncExportRun.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// Stage labels used with IncReadErrors.
const (
	StageDiscovery   = "discovery"
	StageIdentity    = "identity"
	StageDiagnostics = "diagnostics"
)

type noopCollector struct{}

// Noop returns a collector that discards all metrics.
func Noop() Collector {
	return noopCollector{}
}

func (noopCollector) IncExportRun(string)          {}
func (noopCollector) SetDevicesDiscovered(int)     {}
func (noopCollector) IncReadErrors(string, uint64) {}
func (noopCollector) ObserveRunDuration(float64)   {}

// PrometheusCollector exposes exporter counters via Prometheus.
type PrometheusCollector struct {
	exportRuns        *prometheus.CounterVec
	devicesDiscovered prometheus.Gauge
	readErrors        *prometheus.CounterVec
	runDuration       prometheus.Histogram
}

// Metric instances are process-wide so repeated collector construction
// (service restarts, tests sharing the default registerer) reuses the same
// underlying vectors instead of failing registration.
var (
	exportRunCounter         *prometheus.CounterVec
	exportRunCounterLock     sync.Mutex
	devicesDiscoveredGauge   prometheus.Gauge
	devicesDiscoveredLock    sync.Mutex
	readErrorCounter         *prometheus.CounterVec
	readErrorCounterLock     sync.Mutex
	runDurationHistogram     prometheus.Histogram
	runDurationHistogramLock sync.Mutex
)

// NewPrometheusCollector registers the required metrics with the provided registerer.
func NewPrometheusCollector(reg prometheus.Registerer) (*PrometheusCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	exportRunCounterLock.Lock()
	if exportRunCounter == nil {
		counter := prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "panel_exporter_export_runs_total",
			Help: "Number of export passes executed, labelled by outcome.",
		}, []string{"outcome"})
		existing, err := registerOrReuse[*prometheus.CounterVec](reg, counter)
		if err != nil {
			exportRunCounterLock.Unlock()
			return nil, err
		}
		exportRunCounter = existing
	}
	exportRunCounterLock.Unlock()

	devicesDiscoveredLock.Lock()
	if devicesDiscoveredGauge == nil {
		gauge := prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "panel_exporter_devices_discovered",
			Help: "Number of device IDs found during the last discovery scan.",
		})
		existing, err := registerOrReuse[prometheus.Gauge](reg, gauge)
		if err != nil {
			devicesDiscoveredLock.Unlock()
			return nil, err
		}
		devicesDiscoveredGauge = existing
	}
	devicesDiscoveredLock.Unlock()

	readErrorCounterLock.Lock()
	if readErrorCounter == nil {
		counter := prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "panel_exporter_register_read_errors_total",
			Help: "Number of failed holding register reads, labelled by stage.",
		}, []string{"stage"})
		existing, err := registerOrReuse[*prometheus.CounterVec](reg, counter)
		if err != nil {
			readErrorCounterLock.Unlock()
			return nil, err
		}
		readErrorCounter = existing
	}
	readErrorCounterLock.Unlock()

	runDurationHistogramLock.Lock()
	if runDurationHistogram == nil {
		histogram := prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "panel_exporter_export_run_duration_seconds",
			Help:    "Wall clock duration of a full export pass.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		})
		existing, err := registerOrReuse[prometheus.Histogram](reg, histogram)
		if err != nil {
			runDurationHistogramLock.Unlock()
			return nil, err
		}
		runDurationHistogram = existing
	}
	runDurationHistogramLock.Unlock()

	return &PrometheusCollector{
		exportRuns:        exportRunCounter,
		devicesDiscovered: devicesDiscoveredGauge,
		readErrors:        readErrorCounter,
		runDuration:       runDurationHistogram,
	}, nil
}

// registerOrReuse registers a collector, returning the already registered
// instance when one with the same descriptor exists.
func registerOrReuse[T prometheus.Collector](reg prometheus.Registerer, collector T) (T, error) {
	if err := reg.Register(collector); err != nil {
		var zero T
		already, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return zero, err
		}
		existing, ok := already.ExistingCollector.(T)
		if !ok {
			return zero, err
		}
		return existing, nil
	}
	return collector, nil
}

// IncExportRun increments the run counter for the provided outcome.
func (p *PrometheusCollector) IncExportRun(outcome string) {
	if p == nil || p.exportRuns == nil {
		return
	}
	p.exportRuns.WithLabelValues(outcome).Inc()
}

// SetDevicesDiscovered updates the gauge tracking the last scan result.
func (p *PrometheusCollector) SetDevicesDiscovered(count int) {
	if p == nil || p.devicesDiscovered == nil {
		return
	}
	p.devicesDiscovered.Set(float64(count))
}

// IncReadErrors records failed register reads for a stage.
func (p *PrometheusCollector) IncReadErrors(stage string, count uint64) {
	if p == nil || p.readErrors == nil || count == 0 {
		return
	}
	p.readErrors.WithLabelValues(stage).Add(float64(count))
}

// ObserveRunDuration records the wall clock time of one export pass.
func (p *PrometheusCollector) ObserveRunDuration(seconds float64) {
	if p == nil || p.runDuration == nil {
		return
	}
	p.runDuration.Observe(seconds)
}
