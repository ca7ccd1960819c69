package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suleymanmyradov/trustgate/internal/model"
)

func TestAllow_BurstThenDeny(t *testing.T) {
	l := New(model.RateLimitConfig{RequestsPerWindow: 60, WindowSeconds: 60, BurstCapacity: 2})
	scope := Scope{ServiceID: "svc", EndpointPath: "/x", CallerKey: "caller-1"}

	ok1, _ := l.Allow(scope, nil)
	ok2, _ := l.Allow(scope, nil)
	ok3, retryAfter := l.Allow(scope, nil)

	assert.True(t, ok1)
	assert.True(t, ok2)
	require.False(t, ok3)
	assert.GreaterOrEqual(t, retryAfter, 1)
}

func TestAllow_ScopesAreIndependent(t *testing.T) {
	l := New(model.RateLimitConfig{RequestsPerWindow: 60, WindowSeconds: 60, BurstCapacity: 1})

	scopeA := Scope{ServiceID: "svc", EndpointPath: "/x", CallerKey: "caller-a"}
	scopeB := Scope{ServiceID: "svc", EndpointPath: "/x", CallerKey: "caller-b"}

	okA, _ := l.Allow(scopeA, nil)
	okADenied, _ := l.Allow(scopeA, nil)
	okB, _ := l.Allow(scopeB, nil)

	assert.True(t, okA)
	assert.False(t, okADenied)
	assert.True(t, okB, "a different caller's bucket must not be affected by caller-a's usage")
}

func TestAllow_EndpointOverrideUsesItsOwnConfig(t *testing.T) {
	l := New(model.RateLimitConfig{RequestsPerWindow: 1, WindowSeconds: 60, BurstCapacity: 1})
	scope := Scope{ServiceID: "svc", EndpointPath: "/y", CallerKey: "caller-1"}

	generous := &model.RateLimitConfig{RequestsPerWindow: 600, WindowSeconds: 60, BurstCapacity: 5}
	for i := 0; i < 5; i++ {
		ok, _ := l.Allow(scope, generous)
		assert.True(t, ok, "iteration %d should be within the endpoint-specific burst", i)
	}
}

func TestCleanup_EvictsOnlyIdleFullBuckets(t *testing.T) {
	l := New(model.RateLimitConfig{RequestsPerWindow: 60, WindowSeconds: 60, BurstCapacity: 3})
	scope := Scope{ServiceID: "svc", EndpointPath: "/z", CallerKey: "caller-1"}
	// bucketFor creates the bucket at full burst without consuming a token,
	// unlike Allow, so the eviction check below doesn't depend on real-time refill.
	l.bucketFor(scope.key(), l.fallback)

	l.mu.Lock()
	for _, b := range l.buckets {
		b.lastSeen = time.Now().Add(-time.Hour)
	}
	l.mu.Unlock()

	l.Cleanup(time.Minute)

	l.mu.RLock()
	_, stillPresent := l.buckets[scope.key()]
	l.mu.RUnlock()
	assert.False(t, stillPresent, "an idle, untouched (full) bucket should be evicted")
}

func TestCleanup_KeepsRecentlyUsedBuckets(t *testing.T) {
	l := New(model.RateLimitConfig{RequestsPerWindow: 60, WindowSeconds: 60, BurstCapacity: 3})
	scope := Scope{ServiceID: "svc", EndpointPath: "/z", CallerKey: "caller-2"}
	l.bucketFor(scope.key(), l.fallback)

	l.Cleanup(time.Minute)

	l.mu.RLock()
	_, stillPresent := l.buckets[scope.key()]
	l.mu.RUnlock()
	assert.True(t, stillPresent, "a bucket touched within idleAfter must not be evicted")
}
