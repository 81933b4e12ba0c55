package telemetry

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func TestNoopCollector(t *testing.T) {
	collector := Noop()
	require.NotNil(t, collector)
	collector.IncExportRun(OutcomeSuccess)
	collector.SetDevicesDiscovered(3)
}

func TestPrometheusCollectorRegistersAndReusesCounter(t *testing.T) {
	exportRunCounterLock.Lock()
	exportRunCounter = nil
	exportRunCounterLock.Unlock()
	devicesDiscoveredLock.Lock()
	devicesDiscoveredGauge = nil
	devicesDiscoveredLock.Unlock()
	readErrorCounterLock.Lock()
	readErrorCounter = nil
	readErrorCounterLock.Unlock()
	runDurationHistogramLock.Lock()
	runDurationHistogram = nil
	runDurationHistogramLock.Unlock()

	reg := prometheus.NewRegistry()
	collector, err := NewPrometheusCollector(reg)
	require.NoError(t, err)
	require.NotNil(t, collector)

	collector.IncExportRun(OutcomeSuccess)

	runs := findMetricFamily(t, reg, "panel_exporter_export_runs_total")
	requireCounterValue(t, runs, 1)

	again, err := NewPrometheusCollector(reg)
	require.NoError(t, err)
	require.Same(t, collector.exportRuns, again.exportRuns)

	again.IncExportRun(OutcomeSuccess)

	runs = findMetricFamily(t, reg, "panel_exporter_export_runs_total")
	requireCounterValue(t, runs, 2)
}

func TestPrometheusCollectorReadErrors(t *testing.T) {
	readErrorCounterLock.Lock()
	readErrorCounter = nil
	readErrorCounterLock.Unlock()

	reg := prometheus.NewRegistry()
	collector, err := NewPrometheusCollector(reg)
	require.NoError(t, err)

	collector.IncReadErrors(StageDiscovery, 0)
	collector.IncReadErrors(StageDiscovery, 4)

	errors := findMetricFamily(t, reg, "panel_exporter_register_read_errors_total")
	requireCounterValue(t, errors, 4)
}

func findMetricFamily(t *testing.T, reg *prometheus.Registry, name string) *dto.MetricFamily {
	t.Helper()
	metrics, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range metrics {
		if mf.GetName() == name {
			return mf
		}
	}
	t.Fatalf("metric family %s not gathered", name)
	return nil
}

func requireCounterValue(t *testing.T, mf *dto.MetricFamily, value float64) {
	t.Helper()
	require.Len(t, mf.Metric, 1)
	require.NotNil(t, mf.Metric[0].Counter)
	require.Equal(t, value, mf.Metric[0].Counter.GetValue())
}
