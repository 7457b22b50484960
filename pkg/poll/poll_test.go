package poll

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUntilValue_SucceedsOnFirstAttempt(t *testing.T) {
	calls := 0
	v, err := UntilValue(context.Background(), 5, time.Millisecond, func() (string, bool, error) {
		calls++
		return "ready", true, nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ready", v)
	assert.Equal(t, 1, calls)
}

func TestUntilValue_SucceedsAfterRetries(t *testing.T) {
	calls := 0
	v, err := UntilValue(context.Background(), 5, time.Millisecond, func() (int, bool, error) {
		calls++
		if calls < 3 {
			return 0, false, nil
		}
		return 42, true, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.Equal(t, 3, calls)
}

func TestUntilValue_ExhaustsAttemptBudget(t *testing.T) {
	calls := 0
	_, err := UntilValue(context.Background(), 5, time.Millisecond, func() (int, bool, error) {
		calls++
		return 0, false, nil
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, 5, calls, "must make exactly the budgeted number of attempts")
}

func TestUntilValue_InspectionErrorsAreRetried(t *testing.T) {
	calls := 0
	v, err := UntilValue(context.Background(), 5, time.Millisecond, func() (string, bool, error) {
		calls++
		if calls == 1 {
			return "", false, errors.New("mid-navigation")
		}
		return "settled", true, nil
	})

	require.NoError(t, err)
	assert.Equal(t, "settled", v)
	assert.Equal(t, 2, calls)
}

func TestUntilValue_PersistentErrorStillBounded(t *testing.T) {
	calls := 0
	_, err := UntilValue(context.Background(), 3, time.Millisecond, func() (int, bool, error) {
		calls++
		return 0, false, errors.New("dom detached")
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, 3, calls)
}

func TestUntilValue_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	_, err := UntilValue(ctx, 100, 10*time.Millisecond, func() (int, bool, error) {
		calls++
		if calls == 2 {
			cancel()
		}
		return 0, false, nil
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, calls, 100)
}

func TestUntil(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		err := Until(context.Background(), 3, time.Millisecond, func() (bool, error) {
			return true, nil
		})
		assert.NoError(t, err)
	})

	t.Run("timeout", func(t *testing.T) {
		err := Until(context.Background(), 3, time.Millisecond, func() (bool, error) {
			return false, nil
		})
		assert.ErrorIs(t, err, ErrTimeout)
	})
}
