// Package retry runs flaky side-effecting calls (database batch inserts,
// stream publishes) under exponential backoff with jitter.
package retry

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"
)

// Config bounds one retried operation.
type Config struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	// Multiplier grows the delay between attempts.
	Multiplier float64
	// JitterEnabled spreads delays ±15% so parallel retriers desynchronize.
	JitterEnabled bool
}

// DefaultConfig suits background persistence work.
func DefaultConfig() Config {
	return Config{
		MaxRetries:    5,
		InitialDelay:  time.Second,
		MaxDelay:      30 * time.Second,
		Multiplier:    2.0,
		JitterEnabled: true,
	}
}

// WithBackoff calls fn until it succeeds, the attempt budget runs out, or ctx
// is cancelled. The last error is wrapped with the operation name.
func WithBackoff(ctx context.Context, cfg Config, logger *zap.Logger, operation string, fn func() error) error {
	delay := cfg.InitialDelay
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("retry cancelled: %w", err)
		}

		err := fn()
		if err == nil {
			if attempt > 1 {
				logger.Info("operation recovered",
					zap.String("operation", operation),
					zap.Int("attempts", attempt))
			}
			return nil
		}
		if attempt >= cfg.MaxRetries {
			return fmt.Errorf("%s failed after %d attempts: %w", operation, attempt, err)
		}

		wait := delay
		if cfg.JitterEnabled {
			wait += time.Duration((rand.Float64() - 0.5) * 0.3 * float64(delay))
		}
		logger.Warn("operation failed, retrying",
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Duration("retry_in", wait),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-time.After(wait):
		}

		delay = time.Duration(float64(delay) * cfg.Multiplier)
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}
}
