// Package remote provides the Modbus TCP transport capability consumed by
// discovery, profiling and diagnostics. The core never manages sockets
// directly; it receives a RegisterReader and issues one read at a time.
package remote

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/goburrow/modbus"

	"panel_exporter/internal/config"
)

// RegisterReader performs one Modbus "read holding registers" request
// against the given unit and returns the raw 16-bit words.
type RegisterReader interface {
	ReadRegisters(unit uint8, address, quantity uint16) ([]uint16, error)
}

// Client couples the read capability with connection lifecycle.
type Client interface {
	RegisterReader
	Close() error
}

// ClientFactory creates clients for the configured panel server endpoint.
type ClientFactory func(cfg config.GatewayConfig) (Client, error)

type tcpClient struct {
	mu      sync.Mutex
	handler *modbus.TCPClientHandler
	client  modbus.Client
}

// NewTCPClientFactory returns a factory that creates TCP Modbus clients.
func NewTCPClientFactory() ClientFactory {
	return func(cfg config.GatewayConfig) (Client, error) {
		if cfg.Address == "" {
			return nil, fmt.Errorf("gateway address is required")
		}
		handler := modbus.NewTCPClientHandler(cfg.Address)
		handler.SlaveId = cfg.Unit()
		handler.Timeout = cfg.ReadTimeout()
		if err := handler.Connect(); err != nil {
			return nil, fmt.Errorf("connect gateway %s: %w", cfg.Address, err)
		}
		return &tcpClient{handler: handler, client: modbus.NewClient(handler)}, nil
	}
}

// ReadRegisters issues a single holding-register read for unit. Modbus TCP
// pairs requests and responses by transaction ID over one socket, so reads
// on a connection must never interleave; the mutex enforces that.
func (c *tcpClient) ReadRegisters(unit uint8, address, quantity uint16) ([]uint16, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler.SlaveId = unit
	raw, err := c.client.ReadHoldingRegisters(address, quantity)
	if err != nil {
		return nil, err
	}
	if len(raw) < int(quantity)*2 {
		return nil, fmt.Errorf("short register response: got %d bytes, want %d", len(raw), int(quantity)*2)
	}
	words := make([]uint16, quantity)
	for i := range words {
		words[i] = binary.BigEndian.Uint16(raw[i*2:])
	}
	return words, nil
}

func (c *tcpClient) Close() error {
	if c.handler != nil {
		return c.handler.Close()
	}
	return nil
}
