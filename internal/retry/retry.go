// Package retry drives the exponential-backoff-with-jitter retry loop
// shared by the wait-for and fetch commands.
package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Config describes one retry policy.
type Config struct {
	MaxAttempts    int
	InitialDelay   time.Duration
	MaxDelay       time.Duration
	BackoffFactor  float64
	JitterFraction float64
}

// Validate rejects a Config whose fields cannot produce a sane backoff
// schedule.
func (c Config) Validate() error {
	if c.MaxAttempts <= 0 {
		return fmt.Errorf("retry: max_attempts must be positive, got %d", c.MaxAttempts)
	}
	if c.InitialDelay <= 0 {
		return fmt.Errorf("retry: initial_delay must be positive, got %s", c.InitialDelay)
	}
	if c.MaxDelay <= 0 {
		return fmt.Errorf("retry: max_delay must be positive, got %s", c.MaxDelay)
	}
	if c.BackoffFactor <= 0 {
		return fmt.Errorf("retry: backoff_factor must be positive, got %f", c.BackoffFactor)
	}
	if c.JitterFraction < 0 || c.JitterFraction > 1 {
		return fmt.Errorf("retry: jitter_fraction must be within [0,1], got %f", c.JitterFraction)
	}
	return nil
}

// newBackOff builds the cenkalti/backoff policy matching Config, wrapped
// with a hard attempt ceiling via backoff.WithMaxRetries.
func (c Config) newBackOff() backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = c.InitialDelay
	eb.MaxInterval = c.MaxDelay
	eb.Multiplier = c.BackoffFactor
	eb.RandomizationFactor = c.JitterFraction
	eb.MaxElapsedTime = 0
	return backoff.WithMaxRetries(eb, uint64(c.MaxAttempts-1))
}

// Do runs op until it succeeds, the attempt budget is exhausted, or ctx's
// deadline passes, whichever comes first.
func Do(ctx context.Context, cfg Config, op func(context.Context) error) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	attempts := 0
	var lastErr error
	err := backoff.Retry(func() error {
		attempts++
		lastErr = op(ctx)
		return lastErr
	}, backoff.WithContext(cfg.newBackOff(), ctx))

	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return fmt.Errorf("retry: deadline exceeded after %d attempt(s): %w", attempts, ctx.Err())
	}
	return fmt.Errorf("retry: all %d attempt(s) failed: %w", attempts, lastErr)
}
