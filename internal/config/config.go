package config

import (
	"fmt"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration to support YAML unmarshalling from strings.
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses duration strings like "5s" or "1m".
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value == nil {
		return fmt.Errorf("duration value node is nil")
	}
	var raw string
	if err := value.Decode(&raw); err != nil {
		return fmt.Errorf("decode duration: %w", err)
	}
	if raw == "" {
		d.Duration = 0
		return nil
	}
	dur, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	d.Duration = dur
	return nil
}

// MarshalYAML renders the duration as a string.
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.Duration.String(), nil
}

// GatewayConfig describes how to reach the Modbus TCP panel server.
type GatewayConfig struct {
	Address string   `yaml:"address"`
	UnitID  *uint8   `yaml:"unit_id,omitempty"`
	Timeout Duration `yaml:"timeout,omitempty"`
}

// DiscoveryConfig configures the virtual-address window scanned for device IDs.
//
// Observed firmware revisions expose the table at different bases (501, 504,
// 505 or 509), so the window is configuration, not a constant.
type DiscoveryConfig struct {
	Base     *uint16 `yaml:"base,omitempty"`
	Stride   *uint16 `yaml:"stride,omitempty"`
	MaxSlots *int    `yaml:"max_slots,omitempty"`
}

// PollConfig tunes how devices are profiled during an export pass.
type PollConfig struct {
	EnhancedDiagnostics bool     `yaml:"enhanced_diagnostics"`
	Workers             int      `yaml:"workers,omitempty"`
	CacheSize           int      `yaml:"cache_size,omitempty"`
	CacheTTL            Duration `yaml:"cache_ttl,omitempty"`
}

// ExportConfig selects output formats and post-processing for export runs.
type ExportConfig struct {
	CSV          bool   `yaml:"csv"`
	XLSX         bool   `yaml:"xlsx"`
	Output       string `yaml:"output"`
	Filter       string `yaml:"filter,omitempty"`
	PairingSheet string `yaml:"pairing_sheet,omitempty"`
}

// MQTTConfig configures the broker used by the live diagnostics publisher.
type MQTTConfig struct {
	Broker      string   `yaml:"broker"`
	ClientID    string   `yaml:"client_id,omitempty"`
	TopicPrefix string   `yaml:"topic_prefix,omitempty"`
	Username    string   `yaml:"username,omitempty"`
	Password    string   `yaml:"password,omitempty"`
	QoS         byte     `yaml:"qos,omitempty"`
	Timeout     Duration `yaml:"timeout,omitempty"`
}

// LiveConfig enables the continuous diagnostics poll loop.
type LiveConfig struct {
	Enabled  bool       `yaml:"enabled"`
	Interval Duration   `yaml:"interval,omitempty"`
	MQTT     MQTTConfig `yaml:"mqtt"`
}

// LokiConfig configures optional Loki integration for logging.
type LokiConfig struct {
	Enabled bool              `yaml:"enabled"`
	URL     string            `yaml:"url"`
	Level   string            `yaml:"level,omitempty"`
	Labels  map[string]string `yaml:"labels"`
}

// LoggingConfig encapsulates runtime logging options.
type LoggingConfig struct {
	Level  string     `yaml:"level"`
	Format string     `yaml:"format,omitempty"`
	Loki   LokiConfig `yaml:"loki"`
}

// TelemetryConfig enables metric collection.
type TelemetryConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Provider string `yaml:"provider,omitempty"`
	Listen   string `yaml:"listen,omitempty"`
}

// Config is the root configuration structure for the exporter.
type Config struct {
	Gateway   GatewayConfig   `yaml:"gateway"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Poll      PollConfig      `yaml:"poll"`
	Export    ExportConfig    `yaml:"export"`
	Live      LiveConfig      `yaml:"live"`
	Logging   LoggingConfig   `yaml:"logging"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// Load reads and decodes the configuration file from disk.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Defaults for the gateway and discovery window. EcoStruxure panel servers
// answer gateway-level registers on unit 255 and publish paired device IDs
// every 5 registers starting at 504.
const (
	DefaultGatewayUnit    = 255
	DefaultDiscoveryBase  = 504
	DefaultStride         = 5
	DefaultMaxSlots       = 100
	DefaultReadTimeout    = 5 * time.Second
	DefaultLiveInterval   = 30 * time.Second
	DefaultMQTTTimeout    = 30 * time.Second
	DefaultProfileWorkers = 1
)

// Unit returns the configured gateway unit identifier or the default 255.
func (g GatewayConfig) Unit() uint8 {
	if g.UnitID == nil {
		return DefaultGatewayUnit
	}
	return *g.UnitID
}

// ReadTimeout returns the per-request timeout for register reads.
func (g GatewayConfig) ReadTimeout() time.Duration {
	if g.Timeout.Duration <= 0 {
		return DefaultReadTimeout
	}
	return g.Timeout.Duration
}

// WindowBase returns the first scanned register of the discovery window.
func (d DiscoveryConfig) WindowBase() uint16 {
	if d.Base == nil {
		return DefaultDiscoveryBase
	}
	return *d.Base
}

// WindowStride returns the register distance between discovery slots.
func (d DiscoveryConfig) WindowStride() uint16 {
	if d.Stride == nil || *d.Stride == 0 {
		return DefaultStride
	}
	return *d.Stride
}

// WindowSlots returns how many discovery slots are scanned per pass.
func (d DiscoveryConfig) WindowSlots() int {
	if d.MaxSlots == nil || *d.MaxSlots <= 0 {
		return DefaultMaxSlots
	}
	return *d.MaxSlots
}

// WorkerSlots returns the number of parallel profiling workers. Each worker
// owns its own connection; reads on a single connection stay serialized.
func (p PollConfig) WorkerSlots() int {
	if p.Workers <= 0 {
		return DefaultProfileWorkers
	}
	return p.Workers
}

// LiveInterval returns the delay between live diagnostics passes.
func (l LiveConfig) LiveInterval() time.Duration {
	if l.Interval.Duration <= 0 {
		return DefaultLiveInterval
	}
	return l.Interval.Duration
}

// ConnectTimeout returns the broker connect timeout.
func (m MQTTConfig) ConnectTimeout() time.Duration {
	if m.Timeout.Duration <= 0 {
		return DefaultMQTTTimeout
	}
	return m.Timeout.Duration
}

// Validate reports configuration errors that would prevent an export run.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config must not be nil")
	}
	if c.Gateway.Address == "" {
		return fmt.Errorf("gateway address is required")
	}
	if slots := c.Discovery.WindowSlots(); slots > 0 {
		last := int(c.Discovery.WindowBase()) + (slots-1)*int(c.Discovery.WindowStride())
		if last > math.MaxUint16 {
			return fmt.Errorf("discovery window ends at register %d, beyond the modbus address space", last)
		}
	}
	if c.Live.Enabled && c.Live.MQTT.Broker == "" {
		return fmt.Errorf("live mode requires an mqtt broker")
	}
	if c.Export.PairingSheet != "" && !c.Export.XLSX {
		return fmt.Errorf("pairing sheet output requires xlsx export")
	}
	return nil
}
