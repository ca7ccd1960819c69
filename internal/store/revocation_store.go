package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/suleymanmyradov/trustgate/internal/gatewayerr"
	"github.com/suleymanmyradov/trustgate/internal/model"
)

// RevocationStore is the authoritative, durable record behind the
// bloom filter fast path (C7): every revocation the bloom filter can
// answer "maybe" for must be checkable here for a definitive answer.
type RevocationStore struct {
	db *sqlx.DB
}

func NewRevocationStore(db *sqlx.DB) *RevocationStore {
	return &RevocationStore{db: db}
}

// RevokeToken inserts a single-token revocation, idempotent on jti.
func (s *RevocationStore) RevokeToken(ctx context.Context, r model.TokenRevocation) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO token_revocations (jti, expires_at, reason)
		VALUES ($1, $2, $3)
		ON CONFLICT (jti) DO NOTHING`, r.JTI, r.ExpiresAt, r.Reason)
	if err != nil {
		return gatewayerr.New(gatewayerr.KindDependency, fmt.Errorf("revoke token: %w", err))
	}
	return nil
}

// IsTokenRevoked is the authoritative check used whenever the bloom
// filter reports a possible match.
func (s *RevocationStore) IsTokenRevoked(ctx context.Context, jti string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists, `
		SELECT EXISTS(SELECT 1 FROM token_revocations WHERE jti = $1 AND expires_at > $2)`,
		jti, time.Now().UTC())
	if err != nil {
		return false, gatewayerr.New(gatewayerr.KindDependency, fmt.Errorf("check token revocation: %w", err))
	}
	return exists, nil
}

// RevokeUser blanket-revokes every token issued to subject before RevokedAt.
func (s *RevocationStore) RevokeUser(ctx context.Context, r model.UserRevocation) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_revocations (user_id, revoked_at, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET revoked_at = EXCLUDED.revoked_at, expires_at = EXCLUDED.expires_at
		WHERE user_revocations.revoked_at < EXCLUDED.revoked_at`,
		r.UserID, r.RevokedAt, r.ExpiresAt)
	if err != nil {
		return gatewayerr.New(gatewayerr.KindDependency, fmt.Errorf("revoke user: %w", err))
	}
	return nil
}

// UserRevokedAt returns the cutoff time before which every token for
// subject is considered revoked, or the zero time if none is set.
func (s *RevocationStore) UserRevokedAt(ctx context.Context, userID string) (time.Time, error) {
	var revokedAt time.Time
	err := s.db.GetContext(ctx, &revokedAt, `
		SELECT revoked_at FROM user_revocations WHERE user_id = $1 AND expires_at > $2`,
		userID, time.Now().UTC())
	if err != nil {
		// No row means no blanket revocation is in effect.
		return time.Time{}, nil
	}
	return revokedAt, nil
}

// AllActive loads every non-expired token and user revocation, used to
// seed (and periodically rebuild) the bloom filter's backing set.
func (s *RevocationStore) AllActive(ctx context.Context) ([]string, []model.UserRevocation, error) {
	now := time.Now().UTC()

	var jtis []string
	if err := s.db.SelectContext(ctx, &jtis, `
		SELECT jti FROM token_revocations WHERE expires_at > $1`, now); err != nil {
		return nil, nil, gatewayerr.New(gatewayerr.KindDependency, fmt.Errorf("load token revocations: %w", err))
	}

	var users []model.UserRevocation
	if err := s.db.SelectContext(ctx, &users, `
		SELECT user_id, revoked_at, expires_at FROM user_revocations WHERE expires_at > $1`, now); err != nil {
		return nil, nil, gatewayerr.New(gatewayerr.KindDependency, fmt.Errorf("load user revocations: %w", err))
	}

	return jtis, users, nil
}

// Sweep deletes expired revocation rows so the authoritative set, and
// the bloom filter rebuilt from it, don't grow without bound.
func (s *RevocationStore) Sweep(ctx context.Context) error {
	now := time.Now().UTC()
	if _, err := s.db.ExecContext(ctx, `DELETE FROM token_revocations WHERE expires_at <= $1`, now); err != nil {
		return gatewayerr.New(gatewayerr.KindDependency, fmt.Errorf("sweep token revocations: %w", err))
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM user_revocations WHERE expires_at <= $1`, now); err != nil {
		return gatewayerr.New(gatewayerr.KindDependency, fmt.Errorf("sweep user revocations: %w", err))
	}
	return nil
}
