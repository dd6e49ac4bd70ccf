package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errConflict = errors.New("conflict")

func fast(opts ...Option) *Retrier {
	base := []Option{WithInitialDelay(0), WithJitter(0)}
	return New(append(base, opts...)...)
}

func TestDo_SucceedsAfterRetryable(t *testing.T) {
	calls := 0
	err := fast(WithMaxAttempts(3)).Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return Retryable(errConflict)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	calls := 0
	var retried []int
	err := fast(
		WithMaxAttempts(4),
		WithOnRetry(func(attempt int, err error, delay time.Duration) {
			retried = append(retried, attempt)
		}),
	).Do(context.Background(), func(ctx context.Context) error {
		calls++
		return Retryable(errConflict)
	})

	assert.Equal(t, errConflict, err)
	assert.Equal(t, 4, calls)
	assert.Equal(t, []int{1, 2, 3}, retried)
}

func TestDo_NonRetryableStopsImmediately(t *testing.T) {
	calls := 0
	plain := errors.New("plain")
	err := fast().Do(context.Background(), func(ctx context.Context) error {
		calls++
		return plain
	})
	assert.Equal(t, plain, err)
	assert.Equal(t, 1, calls)
}

func TestDo_PermanentUnwraps(t *testing.T) {
	calls := 0
	err := fast(WithRetryIf(func(error) bool { return true })).Do(context.Background(), func(ctx context.Context) error {
		calls++
		return Permanent(errConflict)
	})
	assert.Equal(t, errConflict, err)
	assert.Equal(t, 1, calls)
}

func TestDo_RetryIf(t *testing.T) {
	calls := 0
	err := fast(WithMaxAttempts(5), WithRetryIf(func(err error) bool {
		return errors.Is(err, errConflict)
	})).Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls == 2 {
			return nil
		}
		return errConflict
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestDo_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := fast().Do(ctx, func(ctx context.Context) error {
		t.Fatal("operation must not run")
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDoWithData(t *testing.T) {
	calls := 0
	v, err := DoWithData(context.Background(), fast(), func(ctx context.Context) (int, error) {
		calls++
		if calls == 1 {
			return 0, Retryable(errConflict)
		}
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestCalculateDelay(t *testing.T) {
	r := New(
		WithInitialDelay(10*time.Millisecond),
		WithMaxDelay(50*time.Millisecond),
		WithMultiplier(2),
		WithJitter(0),
	)
	assert.Equal(t, 10*time.Millisecond, r.calculateDelay(1))
	assert.Equal(t, 20*time.Millisecond, r.calculateDelay(2))
	assert.Equal(t, 40*time.Millisecond, r.calculateDelay(3))
	assert.Equal(t, 50*time.Millisecond, r.calculateDelay(4))
}

func TestPresets(t *testing.T) {
	assert.Equal(t, 5, OptimisticRetrier(nil).MaxAttempts())
	assert.Equal(t, 3, DatabaseRetrier().MaxAttempts())
	assert.Equal(t, 4, BrokerRetrier().MaxAttempts())
	assert.Equal(t, 7, BrokerRetrier().With(WithMaxAttempts(7)).MaxAttempts())
}
