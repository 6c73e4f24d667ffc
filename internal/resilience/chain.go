package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ErrAllFailed is returned when every entry in a [Chain] fails or has an open
// circuit breaker.
var ErrAllFailed = errors.New("all providers failed")

// ChainConfig configures the per-entry circuit breaker created for each
// provider in a [Chain].
type ChainConfig struct {
	Breaker BreakerConfig
}

// chainEntry pairs a provider value with its dedicated circuit breaker.
type chainEntry[T any] struct {
	name    string
	value   T
	breaker *Breaker
}

// Chain wraps a primary and zero or more fallback instances of the same
// provider type. When the primary fails, or its breaker is open, the next
// healthy fallback is tried in registration order.
//
// Chain is safe for concurrent use once assembled; Add must not be called
// concurrently with Run.
type Chain[T any] struct {
	entries []chainEntry[T]
	cfg     ChainConfig
}

// NewChain creates a [Chain] with primary as the first entry. Additional
// fallbacks are registered via [Chain.Add].
func NewChain[T any](primaryName string, primary T, cfg ChainConfig) *Chain[T] {
	c := &Chain[T]{cfg: cfg}
	c.Add(primaryName, primary)
	return c
}

// Add appends a fallback provider. Fallbacks are tried in the order they are
// added, after the primary.
func (c *Chain[T]) Add(name string, value T) {
	bCfg := c.cfg.Breaker
	bCfg.Name = name
	c.entries = append(c.entries, chainEntry[T]{
		name:    name,
		value:   value,
		breaker: NewBreaker(bCfg),
	})
}

// Len returns the number of registered providers.
func (c *Chain[T]) Len() int { return len(c.entries) }

// Primary returns the first registered provider.
func (c *Chain[T]) Primary() T { return c.entries[0].value }

// Run tries fn against each entry in order until one succeeds, returning the
// result of the first success. Entries with an open breaker are skipped. A
// cancelled or expired ctx stops the walk immediately: the caller is gone, so
// retrying the same request against another backend only burns quota.
// Returns [ErrAllFailed] wrapped with the last error when every entry fails.
//
// Run is a package-level function because Go does not support method-level
// type parameters.
func Run[T any, R any](ctx context.Context, c *Chain[T], fn func(T) (R, error)) (R, error) {
	var (
		lastErr error
		zero    R
	)
	for i := range c.entries {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		entry := &c.entries[i]
		var result R
		err := entry.breaker.Do(func() error {
			var innerErr error
			result, innerErr = fn(entry.value)
			return innerErr
		})
		if err == nil {
			return result, nil
		}
		lastErr = err
		if errors.Is(err, ErrBreakerOpen) {
			slog.Debug("skipping provider (circuit open)", "provider", entry.name)
		} else {
			slog.Warn("provider failed, trying next",
				"provider", entry.name, "error", err)
		}
	}
	return zero, fmt.Errorf("%w: %w", ErrAllFailed, lastErr)
}
