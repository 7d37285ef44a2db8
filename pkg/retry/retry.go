// Package retry provides generic retry with exponential backoff.
package retry

import (
	"context"
	"time"
)

// Config holds retry configuration.
type Config struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// DefaultConfig returns sensible defaults for retry configuration.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:   3,
		InitialDelay:  2 * time.Second,
		MaxDelay:      10 * time.Second,
		BackoffFactor: 2.0,
	}
}

// Do executes a function with exponential backoff retry logic. Every
// error is treated as potentially transient.
func Do[T any](ctx context.Context, cfg Config, fn func() (T, error)) (T, error) {
	return DoWithCheck(ctx, cfg, fn, func(error) bool { return true })
}

// DoWithCheck executes a function with retry, allowing a custom retry decision.
func DoWithCheck[T any](
	ctx context.Context,
	cfg Config,
	fn func() (T, error),
	shouldRetry func(error) bool,
) (T, error) {
	var lastErr error
	var zero T

	delay := cfg.InitialDelay

	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		result, err := fn()
		if err == nil {
			return result, nil
		}

		lastErr = err

		if !shouldRetry(err) {
			break
		}

		// Don't wait after the last attempt
		if attempt == cfg.MaxAttempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(delay):
		}

		delay = time.Duration(float64(delay) * cfg.BackoffFactor)
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}

	return zero, lastErr
}
