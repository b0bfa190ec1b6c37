package provider

import (
	"context"
	"errors"
	"sync"
	"time"
)

type CircuitBreakerConfig struct {
	FailureThreshold int
	SuccessThreshold int
	OpenTimeout      time.Duration
	IsFailure        func(error) bool
}

// CircuitBreakerAdapter guards the network-bound calls of an adapter.
// CheckSignature and ParseWebhook are pure and bypass the breaker.
type CircuitBreakerAdapter struct {
	next Adapter
	cfg  CircuitBreakerConfig

	mu           sync.Mutex
	state        int
	failures     int
	successes    int
	openedAt     time.Time
	halfInFlight bool
}

const (
	cbClosed = iota
	cbOpen
	cbHalfOpen
)

func NewCircuitBreakerAdapter(next Adapter, cfg CircuitBreakerConfig) *CircuitBreakerAdapter {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = 1
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 2 * time.Second
	}
	if cfg.IsFailure == nil {
		cfg.IsFailure = func(err error) bool {
			return errors.Is(err, ErrTimeout) || errors.Is(err, ErrUpstream) || errors.Is(err, context.DeadlineExceeded)
		}
	}
	return &CircuitBreakerAdapter{next: next, cfg: cfg, state: cbClosed}
}

func (g *CircuitBreakerAdapter) Name() string { return g.next.Name() }

func (g *CircuitBreakerAdapter) Initialize(ctx context.Context, req InitializeRequest) (*GatewayResponse, error) {
	if err := g.beforeCall(); err != nil {
		return nil, err
	}
	resp, err := g.next.Initialize(ctx, req)
	g.afterCall(err)
	return resp, err
}

func (g *CircuitBreakerAdapter) Verify(ctx context.Context, providerReference string) (*VerificationResult, error) {
	if err := g.beforeCall(); err != nil {
		return nil, err
	}
	res, err := g.next.Verify(ctx, providerReference)
	g.afterCall(err)
	return res, err
}

func (g *CircuitBreakerAdapter) CheckSignature(payload []byte, signature string, timestamp time.Time) bool {
	return g.next.CheckSignature(payload, signature, timestamp)
}

func (g *CircuitBreakerAdapter) ParseWebhook(payload []byte) WebhookResult {
	return g.next.ParseWebhook(payload)
}

func (g *CircuitBreakerAdapter) Ping(ctx context.Context) error {
	p, ok := g.next.(Pinger)
	if !ok {
		return nil
	}
	return p.Ping(ctx)
}

func (g *CircuitBreakerAdapter) beforeCall() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch g.state {
	case cbClosed:
		return nil
	case cbOpen:
		if time.Since(g.openedAt) >= g.cfg.OpenTimeout {
			g.state = cbHalfOpen
			g.successes = 0
			g.halfInFlight = false
		} else {
			return ErrCircuitOpen
		}
		fallthrough
	case cbHalfOpen:
		if g.halfInFlight {
			return ErrCircuitOpen
		}
		g.halfInFlight = true
		return nil
	default:
		return ErrCircuitOpen
	}
}

func (g *CircuitBreakerAdapter) afterCall(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state == cbHalfOpen {
		g.halfInFlight = false
	}

	if err == nil {
		switch g.state {
		case cbClosed:
			g.failures = 0
		case cbHalfOpen:
			g.successes++
			if g.successes >= g.cfg.SuccessThreshold {
				g.state = cbClosed
				g.failures = 0
				g.successes = 0
			}
		}
		return
	}

	if !g.cfg.IsFailure(err) {
		return
	}

	switch g.state {
	case cbClosed:
		g.failures++
		if g.failures >= g.cfg.FailureThreshold {
			g.state = cbOpen
			g.openedAt = time.Now().UTC()
			g.successes = 0
			g.halfInFlight = false
		}
	case cbHalfOpen:
		g.state = cbOpen
		g.openedAt = time.Now().UTC()
		g.failures = g.cfg.FailureThreshold
		g.successes = 0
		g.halfInFlight = false
	}
}
