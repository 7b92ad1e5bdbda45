package validate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/danieldevos90/brutally-honest-ai/internal/model"
)

func TestExponentialBackoff(t *testing.T) {
	backoff := ExponentialBackoff(500*time.Millisecond, 3*time.Second)

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 500 * time.Millisecond},
		{1, 500 * time.Millisecond},
		{2, time.Second},
		{3, 2 * time.Second},
		{4, 3 * time.Second},
		{10, 3 * time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, backoff(tt.attempt), "attempt %d", tt.attempt)
	}
}

func TestRetryPolicy_RunSucceedsFirstTry(t *testing.T) {
	calls := 0
	policy := DefaultRetryPolicy()

	verdict, err := policy.Run(context.Background(), testClaim("x"), func(ctx context.Context) (model.ClaimVerdict, error) {
		calls++
		return model.ClaimVerdict{Status: model.StatusVerified}, nil
	})

	assert.NoError(t, err)
	assert.Equal(t, model.StatusVerified, verdict.Status)
	assert.Equal(t, 1, calls)
}

func TestRetryPolicy_RunExhausted(t *testing.T) {
	calls := 0
	var retried []int
	var waits []time.Duration
	policy := RetryPolicy{
		MaxRetries: 2,
		Backoff: func(attempt int) time.Duration {
			d := time.Duration(attempt) * time.Second
			waits = append(waits, d)
			return d
		},
		OnRetry: func(attempt int, err error) { retried = append(retried, attempt) },
	}

	verdict, err := policy.Run(context.Background(), testClaim("x"), func(ctx context.Context) (model.ClaimVerdict, error) {
		calls++
		return model.ClaimVerdict{}, errors.New("upstream 503")
	})

	assert.EqualError(t, err, "upstream 503")
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, retried)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, waits)
	assert.Equal(t, model.StatusUnverified, verdict.Status)
	assert.Zero(t, verdict.Confidence)
	assert.True(t, verdict.Fallback)
	assert.Equal(t, "claim-1", verdict.ClaimID)
}

func TestRetryPolicy_RunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	policy := DefaultRetryPolicy()

	verdict, err := policy.Run(ctx, testClaim("x"), func(ctx context.Context) (model.ClaimVerdict, error) {
		calls++
		cancel()
		return model.ClaimVerdict{}, errors.New("interrupted")
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
	assert.True(t, verdict.Fallback)
}

func TestUnverifiedFallback(t *testing.T) {
	verdict := UnverifiedFallback(testClaim("A fish can fly"), errors.New("quota exceeded"))

	assert.Equal(t, model.StatusUnverified, verdict.Status)
	assert.Equal(t, "Analysis could not be completed: quota exceeded", verdict.Explanation)
	assert.Equal(t, "A fish can fly", verdict.Claim.Text)
}
