// Package retry runs operations with capped exponential backoff and jitter.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"
)

// ErrInvalidConfig is returned when Config cannot drive any attempt.
var ErrInvalidConfig = errors.New("retry: MaxAttempts must be greater than 0")

// Config describes a retry policy.
type Config struct {
	// MaxAttempts counts the first call.
	MaxAttempts int
	// InitialDelay is the wait before the second attempt.
	InitialDelay time.Duration
	// MaxDelay caps every wait; zero leaves waits uncapped.
	MaxDelay time.Duration
	// Multiplier grows the wait after each failed attempt.
	Multiplier float64
	// Patterns are matched case-insensitively against the error text.
	// Empty Patterns with a nil Retryable retries every error.
	Patterns []string
	// Retryable, when set, decides instead of Patterns.
	Retryable func(error) bool
}

// DefaultConfig retries everything five times starting at one second.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  5,
		InitialDelay: time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}
}

// PostgresConfig retries connection-level failures while the database comes up.
func PostgresConfig() Config {
	cfg := DefaultConfig()
	cfg.Patterns = PostgresPatterns()
	return cfg
}

// ProviderConfig is a short policy for idempotent source-control reads.
// The caller supplies the classifier since only it can tell 4xx from 5xx.
func ProviderConfig(retryable func(error) bool) Config {
	return Config{
		MaxAttempts:  3,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
		Retryable:    retryable,
	}
}

// PostgresPatterns lists transient PostgreSQL connection errors.
func PostgresPatterns() []string {
	return []string{
		"connection refused",
		"connection reset",
		"connection timed out",
		"i/o timeout",
		"dial tcp",
		"network is unreachable",
		"no connection could be made",
		"server closed the connection",
		"too many connections",
		"the database system is starting up",
	}
}

// Do runs fn until it succeeds, returns a non-retryable error, or attempts run out.
func Do(ctx context.Context, cfg Config, fn func() error) error {
	_, err := DoWithResult(ctx, cfg, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// DoWithResult is Do for functions that produce a value.
func DoWithResult[T any](ctx context.Context, cfg Config, fn func() (T, error)) (T, error) {
	var zero T

	// Validate config
	if cfg.MaxAttempts <= 0 {
		return zero, ErrInvalidConfig
	}

	var lastErr error
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		// Check context before attempt
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		// Execute function
		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err

		// Stop on a non-retryable error or after the last attempt
		if !cfg.ShouldRetry(err) || attempt == cfg.MaxAttempts-1 {
			break
		}

		// Wait with context cancellation support
		timer := time.NewTimer(withJitter(backoff(attempt, cfg)))
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
			// Continue to next attempt
		}
	}

	return zero, lastErr
}

// ShouldRetry reports whether err qualifies for another attempt under cfg.
func (cfg Config) ShouldRetry(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if cfg.Retryable != nil {
		return cfg.Retryable(err)
	}
	// No patterns: every error is retryable
	if len(cfg.Patterns) == 0 {
		return true
	}

	// Match any pattern in the lowered message
	msg := strings.ToLower(err.Error())
	for _, p := range cfg.Patterns {
		if strings.Contains(msg, strings.ToLower(p)) {
			return true
		}
	}
	return false
}

// backoff returns InitialDelay * Multiplier^attempt capped at MaxDelay.
func backoff(attempt int, cfg Config) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := float64(cfg.InitialDelay) * math.Pow(cfg.Multiplier, float64(attempt))

	// Cap at MaxDelay
	if cfg.MaxDelay > 0 && d > float64(cfg.MaxDelay) {
		d = float64(cfg.MaxDelay)
	}
	return time.Duration(d)
}

// withJitter spreads d by up to 10% either way.
func withJitter(d time.Duration) time.Duration {
	//nolint:gosec // jitter needs no cryptographic randomness
	return d + time.Duration(float64(d)*0.1*(rand.Float64()*2-1))
}

// String describes the policy for logs.
func (cfg Config) String() string {
	return fmt.Sprintf("attempts=%d initial=%s max=%s x%.1f", cfg.MaxAttempts, cfg.InitialDelay, cfg.MaxDelay, cfg.Multiplier)
}
