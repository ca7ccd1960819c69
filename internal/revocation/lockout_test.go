package revocation

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suleymanmyradov/trustgate/internal/config"
)

func newTestLockoutTracker(t *testing.T, cfg config.LockoutConfig) *LockoutTracker {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewLockoutTracker(rdb, cfg)
}

func TestLockoutTracker_LocksAfterThreshold(t *testing.T) {
	tracker := newTestLockoutTracker(t, config.LockoutConfig{
		FailureThreshold: 3, WindowDuration: time.Minute, LockoutDuration: time.Minute,
	})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		require.NoError(t, tracker.RecordFailedAttempt(ctx, "caller-1"))
		locked, err := tracker.IsLocked(ctx, "caller-1")
		require.NoError(t, err)
		assert.False(t, locked, "must not lock before the threshold is reached")
	}

	require.NoError(t, tracker.RecordFailedAttempt(ctx, "caller-1"))
	locked, err := tracker.IsLocked(ctx, "caller-1")
	require.NoError(t, err)
	assert.True(t, locked, "the threshold-th failure must install a lockout")
}

func TestLockoutTracker_CallersAreIndependent(t *testing.T) {
	tracker := newTestLockoutTracker(t, config.LockoutConfig{
		FailureThreshold: 1, WindowDuration: time.Minute, LockoutDuration: time.Minute,
	})
	ctx := context.Background()

	require.NoError(t, tracker.RecordFailedAttempt(ctx, "caller-a"))
	lockedA, err := tracker.IsLocked(ctx, "caller-a")
	require.NoError(t, err)
	assert.True(t, lockedA)

	lockedB, err := tracker.IsLocked(ctx, "caller-b")
	require.NoError(t, err)
	assert.False(t, lockedB, "a different caller's failures must not lock this one out")
}

func TestLockoutTracker_EscalatesDurationOnRepeatOffenses(t *testing.T) {
	tracker := newTestLockoutTracker(t, config.LockoutConfig{
		FailureThreshold: 1, WindowDuration: time.Minute, LockoutDuration: time.Minute,
	})
	assert.Equal(t, time.Minute, tracker.escalatedDuration(1))
	assert.Equal(t, 3*time.Minute, tracker.escalatedDuration(3))
	assert.Equal(t, 6*time.Minute, tracker.escalatedDuration(6))
	assert.Equal(t, 6*time.Minute, tracker.escalatedDuration(100), "escalation must cap at 6x the base duration")
}

func TestLockoutTracker_RecordLockoutBypassesThreshold(t *testing.T) {
	tracker := newTestLockoutTracker(t, config.LockoutConfig{
		FailureThreshold: 1000, WindowDuration: time.Minute, LockoutDuration: time.Minute,
	})
	ctx := context.Background()

	require.NoError(t, tracker.RecordLockout(ctx, "caller-x", "forced"))
	locked, err := tracker.IsLocked(ctx, "caller-x")
	require.NoError(t, err)
	assert.True(t, locked)
}
