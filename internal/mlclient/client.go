// Package mlclient talks to the external ML scoring subsystem on behalf of
// the governor. Every failure mode — unreachable service, tripped breaker,
// exhausted rate budget — surfaces as ErrUnavailable so the governor can fail
// closed; the underlying decision path never blocks on this package.
package mlclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	cb "github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/rs/zerolog/log"
)

// ErrUnavailable reports that no modifier could be fetched. Callers treat it
// as a fail-closed signal, not a decision error.
var ErrUnavailable = errors.New("ml subsystem unavailable")

// Modifier is one ML-derived confidence adjustment proposal.
type Modifier struct {
	Value   float64 `json:"value"`    // signed confidence points
	ModelID string  `json:"model_id"` // model that produced the value
}

// DriftReport is the ML subsystem's view of data drift.
type DriftReport struct {
	Level      string    `json:"level"` // LOW, MEDIUM, HIGH, CRITICAL
	Score      float64   `json:"score"`
	MeasuredAt time.Time `json:"measured_at"`
}

// Shadow evaluation verdicts.
const (
	VerdictOutperform = "OUTPERFORM"
	VerdictNeutral    = "NEUTRAL"
	VerdictDegraded   = "DEGRADED"
)

// ShadowResult is an offline comparison of ML predictions against the
// rule-based baseline.
type ShadowResult struct {
	Verdict       string    `json:"verdict"` // OUTPERFORM, NEUTRAL, DEGRADED
	PrecisionLift float64   `json:"precision_lift"`
	SampleSize    int       `json:"sample_size"`
	GatesPassed   bool      `json:"gates_passed"`
	EvaluatedAt   time.Time `json:"evaluated_at"`
}

// Backend is the raw transport to the ML subsystem. Implementations live
// with the deployment (HTTP, gRPC, in-process); tests supply fakes.
type Backend interface {
	FetchModifier(ctx context.Context, entityID string, baseConfidence float64) (*Modifier, error)
	FetchDrift(ctx context.Context) (*DriftReport, error)
	FetchShadowResult(ctx context.Context) (*ShadowResult, error)
}

// Client wraps a backend with a circuit breaker and a rate limit so a
// misbehaving ML service degrades to fail-closed instead of cascading.
type Client struct {
	backend Backend
	breaker *cb.CircuitBreaker
	limiter *rate.Limiter
	timeout time.Duration
}

// Config tunes the client protections.
type Config struct {
	RequestTimeout  time.Duration `yaml:"request_timeout" default:"2s"`
	RequestsPerSec  float64       `yaml:"requests_per_sec" default:"50"`
	BurstSize       int           `yaml:"burst_size" default:"100"`
	BreakerInterval time.Duration `yaml:"breaker_interval" default:"60s"`
	BreakerTimeout  time.Duration `yaml:"breaker_timeout" default:"60s"`
}

// DefaultConfig returns the standard client protections.
func DefaultConfig() Config {
	return Config{
		RequestTimeout:  2 * time.Second,
		RequestsPerSec:  50,
		BurstSize:       100,
		BreakerInterval: 60 * time.Second,
		BreakerTimeout:  60 * time.Second,
	}
}

// NewClient creates a protected client around the backend.
func NewClient(backend Backend, cfg Config) *Client {
	settings := cb.Settings{
		Name:     "ml-subsystem",
		Interval: cfg.BreakerInterval,
		Timeout:  cfg.BreakerTimeout,
	}
	settings.ReadyToTrip = func(counts cb.Counts) bool {
		if counts.ConsecutiveFailures >= 3 {
			return true
		}
		if counts.Requests < 20 {
			return false
		}
		return float64(counts.TotalFailures)/float64(counts.Requests) > 0.05
	}
	settings.OnStateChange = func(name string, from, to cb.State) {
		log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
			Msg("ml client breaker state change")
	}

	return &Client{
		backend: backend,
		breaker: cb.NewCircuitBreaker(settings),
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), cfg.BurstSize),
		timeout: cfg.RequestTimeout,
	}
}

// Modifier fetches a confidence modifier proposal. Any failure collapses to
// ErrUnavailable.
func (c *Client) Modifier(ctx context.Context, entityID string, baseConfidence float64) (*Modifier, error) {
	out, err := c.execute(ctx, func(ctx context.Context) (any, error) {
		return c.backend.FetchModifier(ctx, entityID, baseConfidence)
	})
	if err != nil {
		return nil, err
	}
	return out.(*Modifier), nil
}

// Drift fetches the current drift report.
func (c *Client) Drift(ctx context.Context) (*DriftReport, error) {
	out, err := c.execute(ctx, func(ctx context.Context) (any, error) {
		return c.backend.FetchDrift(ctx)
	})
	if err != nil {
		return nil, err
	}
	return out.(*DriftReport), nil
}

// ShadowResult fetches the latest shadow evaluation verdict.
func (c *Client) ShadowResult(ctx context.Context) (*ShadowResult, error) {
	out, err := c.execute(ctx, func(ctx context.Context) (any, error) {
		return c.backend.FetchShadowResult(ctx)
	})
	if err != nil {
		return nil, err
	}
	return out.(*ShadowResult), nil
}

func (c *Client) execute(ctx context.Context, fn func(context.Context) (any, error)) (any, error) {
	if !c.limiter.Allow() {
		return nil, fmt.Errorf("%w: rate budget exhausted", ErrUnavailable)
	}

	out, err := c.breaker.Execute(func() (any, error) {
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()
		return fn(callCtx)
	})
	if err != nil {
		log.Warn().Err(err).Msg("ml client call failed, failing closed")
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return out, nil
}
