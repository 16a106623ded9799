package retry

import (
	"context"
	"errors"
	"time"
)

const (
	defaultMaxAttempts = 3
	defaultBaseDelay   = 1 * time.Second
	defaultMaxDelay    = 10 * time.Second
)

// Policy bounds a retried operation: how many attempts, how long between
// them, and which failures are worth another try.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	IsRetryable func(error) bool

	// Sleep overrides how inter-attempt waits are performed. Tests inject a
	// recorder here; production code leaves it nil.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Default returns the policy used by collaborators that do not tune their own.
func Default() Policy {
	return Policy{
		MaxAttempts: defaultMaxAttempts,
		BaseDelay:   defaultBaseDelay,
		MaxDelay:    defaultMaxDelay,
	}
}

func (p Policy) normalized() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = defaultMaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = defaultBaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = defaultMaxDelay
	}
	if p.IsRetryable == nil {
		p.IsRetryable = func(error) bool { return true }
	}
	if p.Sleep == nil {
		p.Sleep = sleepWithContext
	}
	return p
}

// Do runs op until it succeeds, exhausts the attempt budget, the error is not
// retryable, or the context is cancelled. The delay before attempt n is
// BaseDelay doubled n-1 times, capped at MaxDelay.
func Do(ctx context.Context, policy Policy, op func(ctx context.Context) error) error {
	p := policy.normalized()

	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if errors.Is(lastErr, context.Canceled) {
			return lastErr
		}
		if attempt == p.MaxAttempts || !p.IsRetryable(lastErr) {
			return lastErr
		}
		if err := p.Sleep(ctx, p.delay(attempt)); err != nil {
			return err
		}
	}
	return lastErr
}

func (p Policy) delay(attempt int) time.Duration {
	d := p.BaseDelay * time.Duration(1<<uint(attempt-1))
	if d > p.MaxDelay || d <= 0 {
		return p.MaxDelay
	}
	return d
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
