// Package publish pushes live diagnostics records to an MQTT broker.
package publish

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"panel_exporter/internal/config"
	"panel_exporter/internal/scan"
)

// Publisher receives the records of each live diagnostics pass.
type Publisher interface {
	PublishRecord(record scan.DeviceRecord) error
	Close()
}

type mqttPublisher struct {
	client  mqtt.Client
	prefix  string
	qos     byte
	timeout time.Duration
	now     func() time.Time
	logger  zerolog.Logger
}

// recordPayload is the wire shape of one published record.
type recordPayload struct {
	DeviceID      uint16                `json:"device_id"`
	DeviceType    string                `json:"device_type"`
	RFID          string                `json:"rfid,omitempty"`
	SerialNumber  string                `json:"serial_number,omitempty"`
	DeviceName    string                `json:"device_name,omitempty"`
	DeviceLabel   string                `json:"device_label,omitempty"`
	ProductModel  string                `json:"product_model,omitempty"`
	SignalQuality string                `json:"signal_quality"`
	Diagnostics   map[string]scan.Value `json:"diagnostics"`
	Timestamp     time.Time             `json:"timestamp"`
}

// NewMQTT connects to the broker and returns a publisher for live
// diagnostics records.
func NewMQTT(cfg config.MQTTConfig, logger zerolog.Logger) (Publisher, error) {
	if cfg.Broker == "" {
		return nil, fmt.Errorf("mqtt: broker address is required")
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	if cfg.ClientID != "" {
		opts.SetClientID(cfg.ClientID)
	}
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetConnectTimeout(cfg.ConnectTimeout())
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn().Err(err).Msg("mqtt: connection lost")
	})
	opts.SetReconnectingHandler(func(_ mqtt.Client, _ *mqtt.ClientOptions) {
		logger.Info().Msg("mqtt: reconnecting")
	})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(cfg.ConnectTimeout()) {
		return nil, fmt.Errorf("mqtt: connect timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt: connect failed: %w", err)
	}

	prefix := cfg.TopicPrefix
	if prefix == "" {
		prefix = "panel_exporter"
	}
	return &mqttPublisher{
		client:  client,
		prefix:  prefix,
		qos:     cfg.QoS,
		timeout: cfg.ConnectTimeout(),
		now:     time.Now,
		logger:  logger.With().Str("component", "mqtt_publisher").Logger(),
	}, nil
}

// PublishRecord sends one device record to <prefix>/<device id>.
func (p *mqttPublisher) PublishRecord(record scan.DeviceRecord) error {
	payload := recordPayload{
		DeviceID:      record.DeviceID,
		DeviceType:    string(record.DeviceType),
		RFID:          record.RFID,
		SerialNumber:  record.SerialNumber,
		DeviceName:    record.DeviceName,
		DeviceLabel:   record.DeviceLabel,
		ProductModel:  record.ProductModel,
		SignalQuality: string(record.SignalQuality()),
		Diagnostics:   record.Diagnostics,
		Timestamp:     p.now().UTC(),
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("mqtt: encode record %d: %w", record.DeviceID, err)
	}

	topic := fmt.Sprintf("%s/%d", p.prefix, record.DeviceID)
	token := p.client.Publish(topic, p.qos, false, encoded)
	if !token.WaitTimeout(p.timeout) {
		return fmt.Errorf("mqtt: publish to %s timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt: publish to %s: %w", topic, err)
	}
	p.logger.Debug().Str("topic", topic).Int("bytes", len(encoded)).Msg("record published")
	return nil
}

// Close disconnects from the broker, allowing in-flight messages to drain.
func (p *mqttPublisher) Close() {
	p.client.Disconnect(uint(p.timeout.Milliseconds()))
}
