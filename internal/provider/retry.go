package provider

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"time"
)

// Retry defaults.
const (
	DefaultMaxRetries   = 5
	DefaultInitialDelay = time.Second
)

// RetryConfig holds the retry policy configuration.
type RetryConfig struct {
	// MaxRetries is the number of retries after the initial attempt.
	MaxRetries int

	// InitialDelay is the base delay for exponential backoff.
	InitialDelay time.Duration
}

// Executor wraps provider calls with credential rotation and retry. It is
// the single point where provider flakiness is absorbed: quota errors rotate
// credentials, transient errors back off, everything else propagates.
type Executor struct {
	pool   *Pool
	config RetryConfig
	logger *slog.Logger

	// sleep is injectable for tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewExecutor creates an Executor over the given credential pool.
func NewExecutor(pool *Pool, config RetryConfig, logger *slog.Logger) *Executor {
	if config.MaxRetries <= 0 {
		config.MaxRetries = DefaultMaxRetries
	}
	if config.InitialDelay <= 0 {
		config.InitialDelay = DefaultInitialDelay
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Executor{
		pool:   pool,
		config: config,
		logger: logger.With("component", "provider_executor"),
		sleep:  sleepContext,
	}
}

// Do runs fn with a (key, model) pair selected from the pool, retrying up to
// MaxRetries times with exponential backoff and jitter. Quota errors mark
// the current model failed and, once a key has no usable model left, mark
// the key failed and rotate to the next one; exhausting all keys is fatal.
// Transient errors back off without touching the pool. Any other error is
// propagated immediately.
func (e *Executor) Do(ctx context.Context, op string, fn func(ctx context.Context, call Call) error) error {
	key, err := e.pool.NextKey()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	model := e.pool.NextModel()

	var lastErr error
	for attempt := 0; attempt <= e.config.MaxRetries; attempt++ {
		lastErr = fn(ctx, Call{Key: key, Model: model})
		if lastErr == nil {
			return nil
		}

		kind := KindOf(lastErr)
		e.logger.WarnContext(ctx, "provider call failed",
			"op", op,
			"attempt", attempt+1,
			"max_attempts", e.config.MaxRetries+1,
			"model", model,
			"kind", int(kind),
			"error", lastErr)

		switch kind {
		case KindQuota:
			if rotate := e.pool.MarkModelFailed(model); rotate {
				e.pool.MarkKeyFailed(key)
				key, err = e.pool.NextKey()
				if err != nil {
					return fmt.Errorf("%s: %w", op, err)
				}
				e.logger.InfoContext(ctx, "rotated provider key", "op", op)
			}
			model = e.pool.NextModel()
		case KindTransient:
			// Same credentials, just wait it out.
		default:
			return lastErr
		}

		if attempt == e.config.MaxRetries {
			break
		}

		if err := e.sleep(ctx, e.backoff(attempt)); err != nil {
			return fmt.Errorf("%s canceled during retry delay: %w", op, err)
		}
	}

	return fmt.Errorf("%s: exceeded maximum retry attempts (%d): %w",
		op, e.config.MaxRetries, lastErr)
}

// backoff computes delay = initial * 2^attempt * (0.5 + rand*0.5).
func (e *Executor) backoff(attempt int) time.Duration {
	base := float64(e.config.InitialDelay) * math.Pow(2, float64(attempt))
	jitter := 0.5 + rand.Float64()*0.5
	return time.Duration(base * jitter)
}

// sleepContext waits for d or until the context is canceled.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
