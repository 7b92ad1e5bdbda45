package validate

import (
	"context"
	"fmt"
	"time"

	"github.com/danieldevos90/brutally-honest-ai/internal/model"
)

// sleepFunc waits between attempts (injectable for tests)
var sleepFunc = func(ctx context.Context, d time.Duration) error {
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

// RetryPolicy decides how often a classifier call is retried and what
// verdict stands in when every attempt fails
type RetryPolicy struct {
	// MaxRetries is the number of retries after the first attempt
	MaxRetries int

	// Backoff returns the wait before retry number attempt (1-based)
	Backoff func(attempt int) time.Duration

	// Fallback builds the verdict used when the classifier never answered
	Fallback func(claim model.Claim, err error) model.ClaimVerdict

	// OnRetry is called before each retry, if set
	OnRetry func(attempt int, err error)
}

// DefaultRetryPolicy retries twice with 500ms, 1s backoff
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 2,
		Backoff:    ExponentialBackoff(500*time.Millisecond, 5*time.Second),
		Fallback:   UnverifiedFallback,
	}
}

// ExponentialBackoff doubles the wait per attempt starting at initial, capped at max
func ExponentialBackoff(initial, max time.Duration) func(attempt int) time.Duration {
	return func(attempt int) time.Duration {
		if attempt < 1 {
			attempt = 1
		}
		d := initial
		for i := 1; i < attempt; i++ {
			d *= 2
			if d >= max {
				return max
			}
		}
		return min(d, max)
	}
}

// UnverifiedFallback marks the claim UNVERIFIED with zero confidence
func UnverifiedFallback(claim model.Claim, err error) model.ClaimVerdict {
	return model.ClaimVerdict{
		ClaimID:     claim.ID,
		Claim:       claim,
		Status:      model.StatusUnverified,
		Confidence:  0,
		Explanation: fmt.Sprintf("Analysis could not be completed: %v", err),
		Fallback:    true,
	}
}

// Run calls op until it succeeds or 1+MaxRetries attempts are spent.
// On exhaustion or context cancellation it returns the fallback verdict and
// the last error.
func (p RetryPolicy) Run(ctx context.Context, claim model.Claim, op func(ctx context.Context) (model.ClaimVerdict, error)) (model.ClaimVerdict, error) {
	fallback := p.Fallback
	if fallback == nil {
		fallback = UnverifiedFallback
	}

	var lastErr error
	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		if attempt > 0 {
			if p.OnRetry != nil {
				p.OnRetry(attempt, lastErr)
			}
			var wait time.Duration
			if p.Backoff != nil {
				wait = p.Backoff(attempt)
			}
			if err := sleepFunc(ctx, wait); err != nil {
				return fallback(claim, err), err
			}
		}
		if err := ctx.Err(); err != nil {
			return fallback(claim, err), err
		}

		verdict, err := op(ctx)
		if err == nil {
			return verdict, nil
		}
		lastErr = err
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fallback(claim, ctxErr), ctxErr
		}
	}
	return fallback(claim, lastErr), lastErr
}
