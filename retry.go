package tlcache

import (
	"context"
	"errors"
	"time"
)

// RetryConfig holds configuration for retry behavior.
type RetryConfig struct {
	MaxAttempts int           // Total attempts, including the first one
	Delay       time.Duration // Fixed delay between attempts

	// RetryIf reports whether an error should be retried. Defaults to IsRetryable.
	RetryIf func(error) bool

	// OnRetry is called before each retry with the failed attempt number.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// DefaultRetryConfig returns the storage retry budget: 3 attempts, 1s apart.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		Delay:       1 * time.Second,
	}
}

// RetryFunc is a function that can be retried.
type RetryFunc[T any] func() (T, error)

// WithRetry runs fn until it succeeds, returns a non-retryable error, or the
// attempt budget is spent. The last error is returned unchanged.
func WithRetry[T any](ctx context.Context, cfg RetryConfig, fn RetryFunc[T]) (T, error) {
	var zero T

	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	retryIf := cfg.RetryIf
	if retryIf == nil {
		retryIf = IsRetryable
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !retryIf(err) || attempt == attempts {
			return zero, err
		}

		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err, cfg.Delay)
		}

		if cfg.Delay > 0 {
			timer := time.NewTimer(cfg.Delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return zero, ctx.Err()
			case <-timer.C:
			}
		}
	}

	return zero, lastErr
}

// IsRetryable checks if an error is retryable: a transient backend error or a
// provider error flagged as retryable. Context errors never are.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var providerErr *ExternalTranslateError
	if errors.As(err, &providerErr) {
		return providerErr.Retryable
	}

	return IsTransient(err)
}

// RetryingCache wraps a TranslationCache, retrying transient backend errors.
type RetryingCache struct {
	cache  TranslationCache
	config RetryConfig
}

// NewRetryingCache creates a cache wrapper with the given retry budget.
// Only transient backend errors are retried.
func NewRetryingCache(cache TranslationCache, cfg RetryConfig) *RetryingCache {
	if cfg.RetryIf == nil {
		cfg.RetryIf = IsTransient
	}
	return &RetryingCache{cache: cache, config: cfg}
}

// BatchGet implements TranslationCache with retry logic.
func (c *RetryingCache) BatchGet(ctx context.Context, keys []CacheKey) (map[string]Record, error) {
	return WithRetry(ctx, c.config, func() (map[string]Record, error) {
		return c.cache.BatchGet(ctx, keys)
	})
}

// BatchPut implements TranslationCache with retry logic.
func (c *RetryingCache) BatchPut(ctx context.Context, entries []Entry) error {
	_, err := WithRetry(ctx, c.config, func() (struct{}, error) {
		return struct{}{}, c.cache.BatchPut(ctx, entries)
	})
	return err
}

// RetryableProvider wraps an AIProvider with retry logic. Its budget is
// separate from the storage retry budget.
type RetryableProvider struct {
	provider AIProvider
	config   RetryConfig
}

// NewRetryableProvider creates a new provider with retry logic.
func NewRetryableProvider(provider AIProvider, cfg RetryConfig) *RetryableProvider {
	return &RetryableProvider{
		provider: provider,
		config:   cfg,
	}
}

// Translate implements AIProvider with retry logic.
func (p *RetryableProvider) Translate(ctx context.Context, req TranslateRequest) ([]ProviderRecord, error) {
	return WithRetry(ctx, p.config, func() ([]ProviderRecord, error) {
		return p.provider.Translate(ctx, req)
	})
}
