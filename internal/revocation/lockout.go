package revocation

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/suleymanmyradov/trustgate/internal/config"
	"github.com/suleymanmyradov/trustgate/internal/gatewayerr"
)

// LockoutTracker gates repeated authentication failures keyed by
// (ip, user?, apikey-prefix?) using Redis counters with sliding
// expiry, per spec §4.5. lockoutCount persists across history (not
// reset on sweep) to let policy escalate lockout duration on repeat
// offenders.
type LockoutTracker struct {
	rdb *redis.Client
	cfg config.LockoutConfig
}

func NewLockoutTracker(rdb *redis.Client, cfg config.LockoutConfig) *LockoutTracker {
	return &LockoutTracker{rdb: rdb, cfg: cfg}
}

func attemptsKey(key string) string { return "trustgate:lockout:attempts:" + key }
func lockKey(key string) string     { return "trustgate:lockout:locked:" + key }
func countKey(key string) string    { return "trustgate:lockout:count:" + key }

// IsLocked reports whether key is currently under an active lockout.
func (t *LockoutTracker) IsLocked(ctx context.Context, key string) (bool, error) {
	exists, err := t.rdb.Exists(ctx, lockKey(key)).Result()
	if err != nil {
		return false, gatewayerr.New(gatewayerr.KindDependency, fmt.Errorf("check lockout: %w", err))
	}
	return exists > 0, nil
}

// RecordFailedAttempt increments the failure counter for key, (re)setting
// its expiry to now+windowDuration, and installs a lockout once the
// configured threshold is reached. lockoutCount (the historical escalation
// counter) is incremented and used to scale this lockout's duration
// linearly, capped at 6x the base duration.
func (t *LockoutTracker) RecordFailedAttempt(ctx context.Context, key string) error {
	attempts, err := t.rdb.Incr(ctx, attemptsKey(key)).Result()
	if err != nil {
		return gatewayerr.New(gatewayerr.KindDependency, fmt.Errorf("increment failed attempts: %w", err))
	}
	if err := t.rdb.Expire(ctx, attemptsKey(key), t.cfg.WindowDuration).Err(); err != nil {
		return gatewayerr.New(gatewayerr.KindDependency, fmt.Errorf("extend failed attempts expiry: %w", err))
	}

	if int(attempts) < t.cfg.FailureThreshold {
		return nil
	}
	return t.recordLockout(ctx, key, "failure_threshold_exceeded")
}

func (t *LockoutTracker) recordLockout(ctx context.Context, key, reason string) error {
	lockoutCount, err := t.rdb.Incr(ctx, countKey(key)).Result()
	if err != nil {
		return gatewayerr.New(gatewayerr.KindDependency, fmt.Errorf("increment lockout count: %w", err))
	}

	duration := t.escalatedDuration(int(lockoutCount))
	if err := t.rdb.Set(ctx, lockKey(key), reason, duration).Err(); err != nil {
		return gatewayerr.New(gatewayerr.KindDependency, fmt.Errorf("install lockout: %w", err))
	}
	// Failure count resets once a lockout is installed; the next window
	// starts fresh after the lockout itself expires.
	t.rdb.Del(ctx, attemptsKey(key))
	return nil
}

// escalatedDuration scales LockoutDuration by the historical lockout
// count, capped at 6x, so repeat offenders face longer lockouts.
func (t *LockoutTracker) escalatedDuration(lockoutCount int) time.Duration {
	multiplier := lockoutCount
	if multiplier < 1 {
		multiplier = 1
	}
	if multiplier > 6 {
		multiplier = 6
	}
	return t.cfg.LockoutDuration * time.Duration(multiplier)
}

// RecordLockout installs an immediate lockout for key without going
// through the failure-counter threshold, for callers (the admin
// force-lockout operation) that want to force a lockout directly.
func (t *LockoutTracker) RecordLockout(ctx context.Context, key, reason string) error {
	return t.recordLockout(ctx, key, reason)
}
