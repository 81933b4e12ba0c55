package remote

import (
	"context"
	"sync"

	"panel_exporter/internal/config"
)

// Pool hands out clients for a single endpoint, bounded in size. Parallel
// export workers each acquire their own connection; reads on one connection
// stay serialized by the client itself.
type Pool struct {
	factory ClientFactory
	cfg     config.GatewayConfig

	mu     sync.Mutex
	idle   []Client
	tokens chan struct{}
}

// NewPool builds a pool limited to size connections.
func NewPool(factory ClientFactory, cfg config.GatewayConfig, size int) *Pool {
	if size <= 0 {
		size = 1
	}
	return &Pool{
		factory: factory,
		cfg:     cfg,
		tokens:  make(chan struct{}, size),
	}
}

// Acquire returns an idle client or dials a new one, blocking while the
// pool is exhausted.
func (p *Pool) Acquire(ctx context.Context) (Client, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case p.tokens <- struct{}{}:
	}

	p.mu.Lock()
	if n := len(p.idle); n > 0 {
		client := p.idle[n-1]
		p.idle = p.idle[:n-1]
		p.mu.Unlock()
		return client, nil
	}
	p.mu.Unlock()

	client, err := p.factory(p.cfg)
	if err != nil {
		<-p.tokens
		return nil, err
	}
	return client, nil
}

// Release returns a healthy client to the pool.
func (p *Pool) Release(client Client) {
	if client == nil {
		<-p.tokens
		return
	}
	p.mu.Lock()
	p.idle = append(p.idle, client)
	p.mu.Unlock()
	<-p.tokens
}

// Discard closes a client whose connection is no longer trusted.
func (p *Pool) Discard(client Client) {
	if client != nil {
		_ = client.Close()
	}
	<-p.tokens
}

// Close releases all idle connections.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var firstErr error
	for _, client := range p.idle {
		if err := client.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	p.idle = nil
	return firstErr
}
