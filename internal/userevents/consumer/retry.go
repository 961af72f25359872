package consumer

import (
	"context"
	"math"
	"time"
)

// RetryConfig is the exponential backoff applied to failed event processing.
// MaxAttempts counts the first try.
type RetryConfig struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
}

// DefaultRetryConfig is used when a Consumer is built with a zero RetryConfig.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:     5,
		InitialInterval: time.Second,
		MaxInterval:     time.Minute,
		Multiplier:      2.0,
	}
}

// Backoff returns the wait after the given failed attempt (1-based):
// InitialInterval * Multiplier^(attempt-1), capped at MaxInterval.
func (c RetryConfig) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	mult := c.Multiplier
	if mult < 1 {
		mult = 1
	}
	d := time.Duration(float64(c.InitialInterval) * math.Pow(mult, float64(attempt-1)))
	if c.MaxInterval > 0 && (d > c.MaxInterval || d < 0) {
		d = c.MaxInterval
	}
	return d
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
