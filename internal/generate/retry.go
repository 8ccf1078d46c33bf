package generate

import (
	"context"
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"
)

// RetryConfig is the backoff policy for transient provider failures.
type RetryConfig struct {
	MaxRetries int // on top of the first attempt
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Multiplier float64
}

// DefaultRetryConfig matches the ai.retry defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 3,
		BaseDelay:  500 * time.Millisecond,
		MaxDelay:   10 * time.Second,
		Multiplier: 2,
	}
}

type callFunc func(ctx context.Context) (string, error)

// backoffDelay is BaseDelay * Multiplier^retry, capped at MaxDelay, with
// ±20% jitter.
func backoffDelay(cfg RetryConfig, retry int) time.Duration {
	factor := cfg.Multiplier
	if factor <= 0 {
		factor = 2
	}
	d := float64(cfg.BaseDelay) * math.Pow(factor, float64(retry))
	if limit := float64(cfg.MaxDelay); limit > 0 {
		d = math.Min(d, limit)
	}
	return time.Duration(d * (0.8 + 0.4*rand.Float64()))
}

// sleepCtx waits for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WithRetry runs fn, retrying transient failures (see shouldRetry) with
// exponential backoff. Permanent errors are returned at once; after the
// last retry the final error is returned.
func WithRetry(ctx context.Context, cfg RetryConfig, logger *zap.Logger, fn callFunc) (string, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	for retry := 0; ; retry++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		out, err := fn(ctx)
		switch {
		case err == nil:
			if retry > 0 {
				logger.Info("provider recovered", zap.Int("attempts", retry+1))
			}
			return out, nil
		case !shouldRetry(err):
			return "", err
		case retry >= cfg.MaxRetries:
			logger.Warn("provider call gave up", zap.Int("attempts", retry+1), zap.Error(err))
			return "", err
		}

		wait := backoffDelay(cfg, retry)
		logger.Warn("provider call failed, backing off",
			zap.Int("attempt", retry+1), zap.Duration("wait", wait), zap.Error(err))
		if err := sleepCtx(ctx, wait); err != nil {
			return "", err
		}
	}
}
