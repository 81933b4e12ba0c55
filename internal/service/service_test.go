package service

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"panel_exporter/internal/config"
	"panel_exporter/internal/protocol"
	"panel_exporter/internal/scan"
	"panel_exporter/remote"
)

// fakeGateway simulates the panel server register map across all units.
// onRead, when set, runs before every register read.
type fakeGateway struct {
	mu     sync.Mutex
	blocks map[uint8]map[uint16][]uint16
	onRead func(unit uint8, address uint16)
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{blocks: map[uint8]map[uint16][]uint16{}}
}

func (g *fakeGateway) set(unit uint8, address uint16, words []uint16) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.blocks[unit] == nil {
		g.blocks[unit] = map[uint16][]uint16{}
	}
	g.blocks[unit][address] = words
}

func (g *fakeGateway) read(unit uint8, address, quantity uint16) ([]uint16, error) {
	if g.onRead != nil {
		g.onRead(unit, address)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	block, ok := g.blocks[unit][address]
	if !ok {
		return nil, fmt.Errorf("no register block at %d for unit %d", address, unit)
	}
	if int(quantity) != len(block) {
		return nil, fmt.Errorf("register %d: want quantity %d, got %d", address, len(block), quantity)
	}
	return append([]uint16(nil), block...), nil
}

type fakeClient struct {
	gateway *fakeGateway
}

func (c *fakeClient) ReadRegisters(unit uint8, address, quantity uint16) ([]uint16, error) {
	return c.gateway.read(unit, address, quantity)
}

func (c *fakeClient) Close() error { return nil }

func (g *fakeGateway) factory() remote.ClientFactory {
	return func(config.GatewayConfig) (remote.Client, error) {
		return &fakeClient{gateway: g}, nil
	}
}

func asciiWords(s string, count int) []uint16 {
	words := make([]uint16, count)
	for i := 0; i < count; i++ {
		var hi, lo byte
		if 2*i < len(s) {
			hi = s[2*i]
		}
		if 2*i+1 < len(s) {
			lo = s[2*i+1]
		}
		words[i] = uint16(hi)<<8 | uint16(lo)
	}
	return words
}

func float32Words(v float32) []uint16 {
	bits := math.Float32bits(v)
	return []uint16{uint16(bits >> 16), uint16(bits)}
}

// installDevice populates a unit with identity and common diagnostic
// registers. CL110 devices additionally expose the battery voltage block.
func (g *fakeGateway) installDevice(unit uint8, reference string) {
	g.set(unit, protocol.RegCommercialReference.Address, asciiWords(reference, 16))
	g.set(unit, protocol.RegRFID.Address, []uint16{0xAB00 | uint16(unit), 0x1234, 0, 0, 0, 0})
	g.set(unit, protocol.RegSerialNumber.Address, asciiWords(fmt.Sprintf("SN%d", unit), 10))
	g.set(unit, protocol.RegDeviceName.Address, asciiWords(fmt.Sprintf("Device %d", unit), 10))
	g.set(unit, protocol.RegDeviceLabel.Address, asciiWords("L1", 3))
	g.set(unit, protocol.RegProductModel.Address, asciiWords("WT53", 8))

	g.set(unit, 31144, []uint16{1})
	g.set(unit, 31145, []uint16{1})
	g.set(unit, 31151, float32Words(5))
	g.set(unit, 31153, float32Words(-70))
	g.set(unit, 31155, []uint16{72})
	g.set(unit, 31156, float32Words(8))
	g.set(unit, 31158, float32Words(-80))
	g.set(unit, 31160, []uint16{60})
	if reference == "EMS59443" {
		g.set(unit, 3315, float32Words(3.6))
	}
}

// installWindow fills the discovery slots; ids fill from the first slot,
// the rest read as unpaired.
func (g *fakeGateway) installWindow(slots int, ids ...uint16) {
	for i := 0; i < slots; i++ {
		word := uint16(0xFFFF)
		if i < len(ids) {
			word = ids[i]
		}
		g.set(config.DefaultGatewayUnit, 504+uint16(i)*5, []uint16{word})
	}
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	slots := 5
	return &config.Config{
		Gateway:   config.GatewayConfig{Address: "gateway.test:502"},
		Discovery: config.DiscoveryConfig{MaxSlots: &slots},
		Poll:      config.PollConfig{EnhancedDiagnostics: true},
		Export: config.ExportConfig{
			CSV:    true,
			Output: filepath.Join(t.TempDir(), "export"),
		},
	}
}

func TestCollectProfilesDiscoveredDevices(t *testing.T) {
	gateway := newFakeGateway()
	gateway.installWindow(5, 10, 20)
	gateway.installDevice(10, "EMS59443")
	gateway.installDevice(20, "EMS59440")

	svc, err := New(testConfig(t), zerolog.Nop(), gateway.factory(), nil)
	require.NoError(t, err)
	defer svc.Close()

	records, err := svc.Collect(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)

	require.Equal(t, uint16(10), records[0].DeviceID)
	require.Equal(t, protocol.DeviceCL110, records[0].DeviceType)
	require.Equal(t, "AB0A1234", records[0].RFID)
	require.Contains(t, records[0].Diagnostics, protocol.FieldBatteryVoltage)

	require.Equal(t, uint16(20), records[1].DeviceID)
	require.Equal(t, protocol.DeviceTH110, records[1].DeviceType)
	require.NotContains(t, records[1].Diagnostics, protocol.FieldBatteryVoltage)
}

func TestCollectWithoutEnhancedDiagnostics(t *testing.T) {
	gateway := newFakeGateway()
	gateway.installWindow(5, 10)
	gateway.installDevice(10, "EMS59443")

	cfg := testConfig(t)
	cfg.Poll.EnhancedDiagnostics = false
	svc, err := New(cfg, zerolog.Nop(), gateway.factory(), nil)
	require.NoError(t, err)
	defer svc.Close()

	records, err := svc.Collect(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Empty(t, records[0].Diagnostics)
}

func TestCollectConnectionFailure(t *testing.T) {
	factory := func(config.GatewayConfig) (remote.Client, error) {
		return nil, errors.New("dial tcp: connection refused")
	}
	svc, err := New(testConfig(t), zerolog.Nop(), factory, nil)
	require.NoError(t, err)
	defer svc.Close()

	_, err = svc.Collect(context.Background())
	require.ErrorIs(t, err, ErrConnectionFailed)
}

func TestCollectNoDevices(t *testing.T) {
	gateway := newFakeGateway()
	gateway.installWindow(5)

	svc, err := New(testConfig(t), zerolog.Nop(), gateway.factory(), nil)
	require.NoError(t, err)
	defer svc.Close()

	_, err = svc.Collect(context.Background())
	require.ErrorIs(t, err, ErrNoDevices)
	require.NotErrorIs(t, err, ErrConnectionFailed)
}

func TestCollectWithParallelWorkers(t *testing.T) {
	gateway := newFakeGateway()
	gateway.installWindow(5, 10, 20, 30)
	gateway.installDevice(10, "EMS59443")
	gateway.installDevice(20, "EMS59440")
	gateway.installDevice(30, "SMT10020")
	gateway.set(30, 3321, []uint16{0})
	gateway.set(30, 3322, []uint16{0})
	gateway.set(30, 31175, []uint16{2})

	cfg := testConfig(t)
	cfg.Poll.Workers = 3
	svc, err := New(cfg, zerolog.Nop(), gateway.factory(), nil)
	require.NoError(t, err)
	defer svc.Close()

	records, err := svc.Collect(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 3)

	// Discovery order survives parallel profiling.
	require.Equal(t, uint16(10), records[0].DeviceID)
	require.Equal(t, uint16(20), records[1].DeviceID)
	require.Equal(t, uint16(30), records[2].DeviceID)
	require.Equal(t, protocol.DeviceHeatTag, records[2].DeviceType)
}

func TestCollectCancelledMidPassDropsUnvisitedDevices(t *testing.T) {
	gateway := newFakeGateway()
	gateway.installWindow(5, 10, 11, 12)
	gateway.installDevice(10, "EMS59443")
	gateway.installDevice(11, "EMS59440")
	gateway.installDevice(12, "EMS59440")

	// Cancel while the second device is being profiled: its pass still
	// completes, the third device is never reached.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	gateway.onRead = func(unit uint8, _ uint16) {
		if unit == 11 {
			cancel()
		}
	}

	svc, err := New(testConfig(t), zerolog.Nop(), gateway.factory(), nil)
	require.NoError(t, err)
	defer svc.Close()

	records, err := svc.Collect(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, uint16(10), records[0].DeviceID)
	require.Equal(t, uint16(11), records[1].DeviceID)
	for _, record := range records {
		require.NotZero(t, record.DeviceID)
	}
}

func TestTestConnection(t *testing.T) {
	gateway := newFakeGateway()
	gateway.installWindow(5, 10)

	svc, err := New(testConfig(t), zerolog.Nop(), gateway.factory(), nil)
	require.NoError(t, err)
	defer svc.Close()

	count, err := svc.TestConnection(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestExportOnceWritesCSV(t *testing.T) {
	gateway := newFakeGateway()
	gateway.installWindow(5, 10, 20)
	gateway.installDevice(10, "EMS59443")
	gateway.installDevice(20, "EMS59440")

	cfg := testConfig(t)
	svc, err := New(cfg, zerolog.Nop(), gateway.factory(), nil)
	require.NoError(t, err)
	defer svc.Close()

	require.NoError(t, svc.ExportOnce(context.Background()))

	file, err := os.Open(cfg.Export.Output + "_ED.csv")
	require.NoError(t, err)
	defer file.Close()

	rows, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Contains(t, rows[0], protocol.FieldBatteryVoltage)
	require.Contains(t, rows[0], protocol.FieldSignalQuality)
	require.Equal(t, "10", rows[1][0])
	require.Equal(t, "20", rows[2][0])
}

func TestExportOnceAppliesFilter(t *testing.T) {
	gateway := newFakeGateway()
	gateway.installWindow(5, 10, 20)
	gateway.installDevice(10, "EMS59443")
	gateway.installDevice(20, "EMS59440")

	cfg := testConfig(t)
	cfg.Export.Filter = `DeviceType == "CL110"`
	svc, err := New(cfg, zerolog.Nop(), gateway.factory(), nil)
	require.NoError(t, err)
	defer svc.Close()

	require.NoError(t, svc.ExportOnce(context.Background()))

	file, err := os.Open(cfg.Export.Output + "_ED.csv")
	require.NoError(t, err)
	defer file.Close()

	rows, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, "10", rows[1][0])
}

type recordingPublisher struct {
	mu      sync.Mutex
	records []scan.DeviceRecord
	done    chan struct{}
	want    int
}

func (p *recordingPublisher) PublishRecord(record scan.DeviceRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.records = append(p.records, record)
	if len(p.records) == p.want {
		close(p.done)
	}
	return nil
}

func (p *recordingPublisher) Close() {}

func TestRunLivePublishesRecords(t *testing.T) {
	gateway := newFakeGateway()
	gateway.installWindow(5, 10)
	gateway.installDevice(10, "EMS59443")

	cfg := testConfig(t)
	svc, err := New(cfg, zerolog.Nop(), gateway.factory(), nil)
	require.NoError(t, err)
	defer svc.Close()

	publisher := &recordingPublisher{done: make(chan struct{}), want: 1}
	ctx, cancel := context.WithCancel(context.Background())
	finished := make(chan error, 1)
	go func() {
		finished <- svc.RunLive(ctx, publisher)
	}()

	<-publisher.done
	cancel()
	require.ErrorIs(t, <-finished, context.Canceled)

	publisher.mu.Lock()
	defer publisher.mu.Unlock()
	require.NotEmpty(t, publisher.records)
	require.Equal(t, uint16(10), publisher.records[0].DeviceID)
}
