package persistence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithOptimisticRetry_SucceedsAfterConflicts(t *testing.T) {
	calls := 0
	err := WithOptimisticRetry(context.Background(), 3, time.Millisecond, func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return ErrVersionConflict
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestWithOptimisticRetry_GivesUpAfterAttempts(t *testing.T) {
	calls := 0
	err := WithOptimisticRetry(context.Background(), 3, time.Millisecond, func(ctx context.Context) error {
		calls++
		return ErrVersionConflict
	})

	assert.ErrorIs(t, err, ErrVersionConflict)
	assert.Equal(t, 3, calls)
}

func TestWithOptimisticRetry_NonConflictErrorIsNotRetried(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	err := WithOptimisticRetry(context.Background(), 3, time.Millisecond, func(ctx context.Context) error {
		calls++
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestWithOptimisticRetry_RespectsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := WithOptimisticRetry(ctx, 3, time.Second, func(ctx context.Context) error {
		return ErrVersionConflict
	})

	assert.ErrorIs(t, err, context.Canceled)
}
