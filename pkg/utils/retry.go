// Package utils provides small HTTP, networking and retry helpers shared by
// the server packages.
package utils

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrPermanent marks an error that must not be retried. Wrap it with
// fmt.Errorf("...: %w", utils.ErrPermanent) to stop Retry early.
var ErrPermanent = errors.New("permanent failure")

// RetryConfig holds configuration for retry behavior with exponential backoff.
type RetryConfig struct {
	MaxAttempts  int           // including the first try
	InitialDelay time.Duration // delay before the second attempt
	MaxDelay     time.Duration
	Multiplier   float64
	Jitter       bool // ±25% random variance

	// OnRetry, if set, is called after each failed attempt that will be retried.
	OnRetry func(attempt int, err error)
}

// DatabaseRetryConfig returns a retry configuration for connecting to a
// backing store during startup: 5 attempts from 50ms up to 2s.
func DatabaseRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  5,
		InitialDelay: 50 * time.Millisecond,
		MaxDelay:     2 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
	}
}

// Retry runs fn until it succeeds, MaxAttempts is reached, ctx is done, or
// fn returns an error wrapping ErrPermanent.
//
// The delay between attempts is InitialDelay * Multiplier^(attempt-1),
// capped at MaxDelay.
//
// Example:
//
//	cfg := utils.DatabaseRetryConfig()
//	cfg.OnRetry = func(attempt int, err error) {
//	    log.Warn().Err(err).Int("attempt", attempt).Msg("Ping failed")
//	}
//	err := utils.Retry(ctx, cfg, func() error {
//	    return client.Ping(ctx).Err()
//	})
func Retry(ctx context.Context, config RetryConfig, fn func() error) error {
	var lastErr error

	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			if attempt > 1 {
				log.Info().Int("attempt", attempt).Msg("Operation succeeded after retry")
			}
			return nil
		}
		lastErr = err

		if errors.Is(err, ErrPermanent) {
			return fmt.Errorf("non-retryable error: %w", err)
		}
		if attempt >= config.MaxAttempts {
			break
		}

		if config.OnRetry != nil {
			config.OnRetry(attempt, err)
		}

		timer := time.NewTimer(calculateDelay(attempt, config))
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-timer.C:
		}
	}

	return fmt.Errorf("max retries exceeded (%d attempts): %w", config.MaxAttempts, lastErr)
}

func calculateDelay(attempt int, config RetryConfig) time.Duration {
	delay := float64(config.InitialDelay) * math.Pow(config.Multiplier, float64(attempt-1))
	if delay > float64(config.MaxDelay) {
		delay = float64(config.MaxDelay)
	}

	if config.Jitter {
		jitterRange := delay * 0.25
		delay += (rand.Float64() * 2 * jitterRange) - jitterRange
	}

	return time.Duration(delay)
}
