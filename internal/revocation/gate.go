package revocation

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/zeromicro/go-zero/core/logx"

	"github.com/suleymanmyradov/trustgate/internal/config"
	"github.com/suleymanmyradov/trustgate/internal/model"
	"github.com/suleymanmyradov/trustgate/internal/store"
)

// Gate is the combined revocation fast-path and lockout subsystem
// (C7): a bloom filter in front of the authoritative Postgres store
// for token/user revocation, plus a Redis-backed failed-attempt and
// lockout counter.
type Gate struct {
	bloom  *syncFilter
	store  *store.RevocationStore
	redis  *redis.Client
	cfg    config.RevocationConfig
	lockCfg config.LockoutConfig
}

func NewGate(revStore *store.RevocationStore, rdb *redis.Client, cfg config.RevocationConfig, lockCfg config.LockoutConfig) *Gate {
	return &Gate{
		bloom:   newSyncFilter(cfg.ExpectedEntries, cfg.TargetFalsePositiveRate),
		store:   revStore,
		redis:   rdb,
		cfg:     cfg,
		lockCfg: lockCfg,
	}
}

// Rebuild reloads the bloom filter from the authoritative store. It is
// called at startup and on the configured RebuildInterval; no admin
// route exposes it.
func (g *Gate) Rebuild(ctx context.Context) error {
	jtis, _, err := g.store.AllActive(ctx)
	if err != nil {
		return fmt.Errorf("load revocations for bloom rebuild: %w", err)
	}
	g.bloom.Rebuild(jtis, g.cfg.ExpectedEntries, g.cfg.TargetFalsePositiveRate)
	logx.Infof("revocation bloom filter rebuilt with %d entries", len(jtis))
	return nil
}

// Run starts the periodic rebuild and sweep loop until stop is closed.
func (g *Gate) Run(stop <-chan struct{}) {
	ticker := time.NewTicker(g.cfg.RebuildInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			if err := g.Rebuild(ctx); err != nil {
				logx.Errorf("periodic bloom filter rebuild failed: %v", err)
			}
			if err := g.store.Sweep(ctx); err != nil {
				logx.Errorf("revocation sweep failed: %v", err)
			}
			cancel()
		case <-stop:
			return
		}
	}
}

// IsTokenRevoked checks the fast path first; a negative bloom result
// is authoritative (no false negatives), a positive result is only
// "maybe" and is confirmed against the durable store.
func (g *Gate) IsTokenRevoked(ctx context.Context, jti string) (bool, error) {
	if !g.bloom.Contains(jti) {
		return false, nil
	}
	return g.store.IsTokenRevoked(ctx, jti)
}

// IsUserRevoked reports whether issuedAt predates the subject's
// blanket revocation cutoff, if one is set.
func (g *Gate) IsUserRevoked(ctx context.Context, subject string, issuedAt time.Time) (bool, error) {
	revokedAt, err := g.store.UserRevokedAt(ctx, subject)
	if err != nil {
		return false, err
	}
	if revokedAt.IsZero() {
		return false, nil
	}
	return issuedAt.Before(revokedAt), nil
}

// RevokeToken records a single-token revocation and updates the live
// bloom filter immediately, ahead of the next periodic rebuild.
func (g *Gate) RevokeToken(ctx context.Context, jti string, expiresAt time.Time, reason string) error {
	if err := g.store.RevokeToken(ctx, model.TokenRevocation{JTI: jti, ExpiresAt: expiresAt, Reason: reason}); err != nil {
		return err
	}
	g.bloom.Add(jti)
	return nil
}

// RevokeUser installs or extends a blanket revocation for subject.
func (g *Gate) RevokeUser(ctx context.Context, subject string, revokedAt, expiresAt time.Time) error {
	return g.store.RevokeUser(ctx, model.UserRevocation{UserID: subject, RevokedAt: revokedAt, ExpiresAt: expiresAt})
}
