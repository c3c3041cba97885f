package tlcache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
)

// BreakerConfig configures the provider circuit breaker.
type BreakerConfig struct {
	Name                string
	ConsecutiveFailures uint32        // Failures that open the circuit (default: 5)
	OpenTimeout         time.Duration // Time spent open before probing (default: 30s)
	Logger              *slog.Logger
}

// BreakerProvider stops calling a failing provider for a while instead of
// letting every request wait out its timeout.
type BreakerProvider struct {
	provider AIProvider
	breaker  *gobreaker.CircuitBreaker
}

// NewBreakerProvider wraps provider with a circuit breaker.
func NewBreakerProvider(provider AIProvider, cfg BreakerConfig) *BreakerProvider {
	failures := cfg.ConsecutiveFailures
	if failures == 0 {
		failures = 5
	}
	timeout := cfg.OpenTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	name := cfg.Name
	if name == "" {
		name = "provider"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	settings := gobreaker.Settings{
		Name:    name,
		Timeout: timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				slog.String("name", name), slog.String("from", from.String()), slog.String("to", to.String()))
		},
		// Caller cancellation says nothing about provider health.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	}

	return &BreakerProvider{
		provider: provider,
		breaker:  gobreaker.NewCircuitBreaker(settings),
	}
}

// Translate implements AIProvider through the circuit breaker.
func (p *BreakerProvider) Translate(ctx context.Context, req TranslateRequest) ([]ProviderRecord, error) {
	out, err := p.breaker.Execute(func() (interface{}, error) {
		return p.provider.Translate(ctx, req)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, &ExternalTranslateError{Message: "provider circuit open", Cause: err}
		}
		return nil, err
	}
	records, _ := out.([]ProviderRecord)
	return records, nil
}

// State returns the breaker state.
func (p *BreakerProvider) State() gobreaker.State {
	return p.breaker.State()
}
