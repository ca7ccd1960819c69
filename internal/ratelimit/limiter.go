// Package ratelimit implements the gateway's token-bucket rate
// limiter (C10): per-(serviceId, endpointPath, subject-or-ip) buckets
// with periodic cleanup of idle limiters. Adapted from
// ipiton-alert-history-service's internal/api/middleware rate limiter,
// generalized from a single global bucket per client to a scoped key
// built from service, endpoint, and caller identity.
package ratelimit

import (
	"fmt"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/suleymanmyradov/trustgate/internal/model"
)

// Limiter holds one token bucket per scope key.
type Limiter struct {
	mu       sync.RWMutex
	buckets  map[string]*bucket
	fallback model.RateLimitConfig
}

type bucket struct {
	limiter  *rate.Limiter
	burst    int
	lastSeen time.Time
}

func New(fallback model.RateLimitConfig) *Limiter {
	return &Limiter{
		buckets:  make(map[string]*bucket),
		fallback: fallback,
	}
}

// Scope identifies one rate-limited dimension: a service, optionally
// narrowed to one endpoint, keyed by the caller's subject (if
// authenticated) or source IP otherwise.
type Scope struct {
	ServiceID    string
	EndpointPath string
	CallerKey    string
	// Dimension separates independently-keyed buckets that otherwise
	// share (ServiceID, EndpointPath, CallerKey) — e.g. a WebSocket
	// endpoint's connection-establishment bucket (Dimension "") and its
	// per-message bucket (Dimension "ws-message") must not share state,
	// since one gates Upgrade calls and the other gates every frame of
	// an already-established connection.
	Dimension string
}

func (s Scope) key() string {
	return fmt.Sprintf("%s|%s|%s|%s", s.ServiceID, s.EndpointPath, s.CallerKey, s.Dimension)
}

// Allow reports whether a request in the given scope may proceed,
// using cfg if non-nil or the configured service/global default
// otherwise. Returns the Retry-After seconds to report when denied.
func (l *Limiter) Allow(scope Scope, cfg *model.RateLimitConfig) (bool, int) {
	effective := l.fallback
	if cfg != nil {
		effective = *cfg
	}

	b := l.bucketFor(scope.key(), effective)
	if b.limiter.Allow() {
		return true, 0
	}

	retryAfter := 1
	if perSecond := float64(b.limiter.Limit()); perSecond > 0 {
		retryAfter = int(math.Ceil(1 / perSecond))
	}
	if retryAfter < 1 {
		retryAfter = 1
	}
	return false, retryAfter
}

func (l *Limiter) bucketFor(key string, cfg model.RateLimitConfig) *bucket {
	l.mu.RLock()
	b, ok := l.buckets[key]
	l.mu.RUnlock()
	if ok {
		l.mu.Lock()
		b.lastSeen = time.Now()
		l.mu.Unlock()
		return b
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if b, ok = l.buckets[key]; ok {
		return b
	}

	perSecond := rate.Limit(float64(cfg.RequestsPerWindow) / float64(windowSeconds(cfg)))
	b = &bucket{
		limiter:  rate.NewLimiter(perSecond, cfg.BurstCapacity),
		burst:    cfg.BurstCapacity,
		lastSeen: time.Now(),
	}
	l.buckets[key] = b
	return b
}

func windowSeconds(cfg model.RateLimitConfig) int {
	if cfg.WindowSeconds <= 0 {
		return 60
	}
	return cfg.WindowSeconds
}

// Cleanup evicts buckets that have been idle (full bucket, untouched)
// past idleAfter, bounding memory growth as callers come and go.
// Intended to run on a periodic ticker (sweep interval mirrors the
// lockout gate's, ≥ 1 minute, per spec §4.5).
func (l *Limiter) Cleanup(idleAfter time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := time.Now().Add(-idleAfter)
	for key, b := range l.buckets {
		if b.lastSeen.Before(cutoff) && b.limiter.TokensAt(time.Now()) >= float64(b.burst) {
			delete(l.buckets, key)
		}
	}
}

// Run calls Cleanup on interval until stop is closed. It blocks, so
// callers start it in its own goroutine.
func (l *Limiter) Run(interval, idleAfter time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.Cleanup(idleAfter)
		case <-stop:
			return
		}
	}
}
