// Package retry provides the bounded, synchronous retry executor used to
// wrap storage and network calls. All retries happen within the calling
// request; there is no background queue.
package retry

import (
	"context"
	"sync"
	"time"

	"settlement-service/config"
	"settlement-service/internal/apperr"
	"settlement-service/internal/util"
)

type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Multiplier  float64
}

var (
	mu            sync.RWMutex
	storagePolicy = Policy{MaxAttempts: 3, BaseDelay: 500 * time.Millisecond, MaxDelay: 10 * time.Second, Multiplier: 2}
	networkPolicy = Policy{MaxAttempts: 3, BaseDelay: time.Second, MaxDelay: 10 * time.Second, Multiplier: 2}
)

// Configure overrides the default policies from configuration. Called once
// at startup, before any requests are served.
func Configure(cfg config.RetryConfig) {
	mu.Lock()
	defer mu.Unlock()
	if cfg.MaxAttempts > 0 {
		storagePolicy.MaxAttempts = cfg.MaxAttempts
		networkPolicy.MaxAttempts = cfg.MaxAttempts
	}
	if cfg.StorageDelay > 0 {
		storagePolicy.BaseDelay = cfg.StorageDelay
	}
	if cfg.NetworkDelay > 0 {
		networkPolicy.BaseDelay = cfg.NetworkDelay
	}
	if cfg.MaxDelay > 0 {
		storagePolicy.MaxDelay = cfg.MaxDelay
		networkPolicy.MaxDelay = cfg.MaxDelay
	}
}

// Storage is the policy for database calls.
func Storage() Policy {
	mu.RLock()
	defer mu.RUnlock()
	return storagePolicy
}

// Network is the policy for upstream HTTP calls.
func Network() Policy {
	mu.RLock()
	defer mu.RUnlock()
	return networkPolicy
}

func (p Policy) normalize() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 3
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = 500 * time.Millisecond
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = 10 * time.Second
	}
	if p.Multiplier <= 1 {
		p.Multiplier = 2
	}
	return p
}

// delay returns the backoff before the given retry (attempt is 1-based,
// counting the attempt that just failed).
func (p Policy) delay(attempt int) time.Duration {
	d := p.BaseDelay
	for i := 1; i < attempt; i++ {
		d = time.Duration(float64(d) * p.Multiplier)
		if d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// Do executes op, retrying on classified-retryable failures with exponential
// backoff. The last error is propagated wrapped into the taxonomy. A
// cancelled context stops the wait immediately.
func Do(ctx context.Context, policy Policy, op func(ctx context.Context) error) error {
	policy = policy.normalize()

	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}

		if !apperr.IsRetryable(lastErr) || attempt == policy.MaxAttempts {
			break
		}

		util.RetryAttemptsTotal.Inc()

		select {
		case <-ctx.Done():
			return apperr.Wrap(ctx.Err())
		case <-time.After(policy.delay(attempt)):
		}
	}

	return apperr.Wrap(lastErr)
}

// DoValue is Do for operations that return a value.
func DoValue[T any](ctx context.Context, policy Policy, op func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := Do(ctx, policy, func(ctx context.Context) error {
		var opErr error
		result, opErr = op(ctx)
		return opErr
	})
	return result, err
}
