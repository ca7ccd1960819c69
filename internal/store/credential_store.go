package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/suleymanmyradov/trustgate/internal/gatewayerr"
	"github.com/suleymanmyradov/trustgate/internal/model"
)

// CredentialStore persists API keys and signing keys (C1).
type CredentialStore struct {
	db *sqlx.DB
}

func NewCredentialStore(db *sqlx.DB) *CredentialStore {
	return &CredentialStore{db: db}
}

const selectApiKeyColumns = `id, created_at, updated_at, key_hash, encrypted_body`

// CreateApiKey inserts a new API key row. KeyHash and EncryptedBody
// must already be computed by the caller (internal/authn hashes the
// plaintext and encrypts the body before it ever reaches the store).
func (s *CredentialStore) CreateApiKey(ctx context.Context, key *model.ApiKey) (*model.ApiKey, error) {
	key.ID = uuid.New()
	now := time.Now().UTC()
	key.CreatedAt, key.UpdatedAt = now, now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO api_keys (id, created_at, updated_at, key_hash, encrypted_body)
		VALUES ($1, $2, $3, $4, $5)`,
		key.ID, key.CreatedAt, key.UpdatedAt, key.KeyHash, key.EncryptedBody)
	if err != nil {
		return nil, gatewayerr.New(gatewayerr.KindDependency, fmt.Errorf("create api key: %w", err))
	}
	return key, nil
}

// GetApiKeyByHash looks up an API key by its one-way digest. Returns
// ErrNotFound (mapped to an opaque 401 by the caller) if absent.
func (s *CredentialStore) GetApiKeyByHash(ctx context.Context, keyHash string) (*model.ApiKey, error) {
	var key model.ApiKey
	err := retry.Do(func() error {
		return s.db.GetContext(ctx, &key, `SELECT `+selectApiKeyColumns+`
			FROM api_keys WHERE key_hash = $1`, keyHash)
	}, retry.Context(ctx), retry.Attempts(3), retry.Delay(20*time.Millisecond), retry.RetryIf(isTransient))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, gatewayerr.New(gatewayerr.KindNotFound, gatewayerr.ErrNotFound)
	}
	if err != nil {
		return nil, gatewayerr.New(gatewayerr.KindDependency, fmt.Errorf("get api key: %w", err))
	}
	return &key, nil
}

// GetApiKeyByID looks up an API key by its primary key, for admin revoke/list.
func (s *CredentialStore) GetApiKeyByID(ctx context.Context, id uuid.UUID) (*model.ApiKey, error) {
	var key model.ApiKey
	err := s.db.GetContext(ctx, &key, `SELECT `+selectApiKeyColumns+` FROM api_keys WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, gatewayerr.New(gatewayerr.KindNotFound, gatewayerr.ErrNotFound)
	}
	if err != nil {
		return nil, gatewayerr.New(gatewayerr.KindDependency, fmt.Errorf("get api key by id: %w", err))
	}
	return &key, nil
}

// UpdateApiKeyBody rewrites the encrypted body in place, used by revoke
// (the body's Revoked flag flips) and by any other in-place body edit.
func (s *CredentialStore) UpdateApiKeyBody(ctx context.Context, id uuid.UUID, encryptedBody []byte) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE api_keys SET encrypted_body = $1, updated_at = $2 WHERE id = $3`,
		encryptedBody, time.Now().UTC(), id)
	if err != nil {
		return gatewayerr.New(gatewayerr.KindDependency, fmt.Errorf("update api key: %w", err))
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return gatewayerr.New(gatewayerr.KindDependency, err)
	}
	if affected == 0 {
		return gatewayerr.New(gatewayerr.KindNotFound, gatewayerr.ErrNotFound)
	}
	return nil
}

// ListApiKeys returns every API key, for the admin listing endpoint.
// Bodies are still encrypted; the admin handler decrypts before serving.
func (s *CredentialStore) ListApiKeys(ctx context.Context) ([]*model.ApiKey, error) {
	var keys []*model.ApiKey
	if err := s.db.SelectContext(ctx, &keys, `SELECT `+selectApiKeyColumns+` FROM api_keys ORDER BY created_at`); err != nil {
		return nil, gatewayerr.New(gatewayerr.KindDependency, fmt.Errorf("list api keys: %w", err))
	}
	return keys, nil
}

const selectSigningKeyColumns = `id, created_at, updated_at, key_id, status, algorithm,
	public_key_pem, private_handle, activated_at, deprecated_at, retired_at`

// CreateSigningKey inserts a new key, always starting in PENDING.
func (s *CredentialStore) CreateSigningKey(ctx context.Context, key *model.SigningKey) (*model.SigningKey, error) {
	key.ID = uuid.New()
	now := time.Now().UTC()
	key.CreatedAt, key.UpdatedAt = now, now
	key.Status = model.KeyPending

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO signing_keys (id, created_at, updated_at, key_id, status, algorithm,
			public_key_pem, private_handle, activated_at, deprecated_at, retired_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		key.ID, key.CreatedAt, key.UpdatedAt, key.KeyID, key.Status, key.Algorithm,
		key.PublicKeyPEM, key.PrivateHandle, key.ActivatedAt, key.DeprecatedAt, key.RetiredAt)
	if err != nil {
		return nil, gatewayerr.New(gatewayerr.KindDependency, fmt.Errorf("create signing key: %w", err))
	}
	return key, nil
}

// ListSigningKeys returns every key regardless of status, ordered
// newest first, for the lifecycle manager's startup load and the
// admin key-list endpoint.
func (s *CredentialStore) ListSigningKeys(ctx context.Context) ([]*model.SigningKey, error) {
	var keys []*model.SigningKey
	err := retry.Do(func() error {
		return s.db.SelectContext(ctx, &keys, `SELECT `+selectSigningKeyColumns+`
			FROM signing_keys ORDER BY created_at DESC`)
	}, retry.Context(ctx), retry.Attempts(3), retry.Delay(20*time.Millisecond), retry.RetryIf(isTransient))
	if err != nil {
		return nil, gatewayerr.New(gatewayerr.KindDependency, fmt.Errorf("list signing keys: %w", err))
	}
	return keys, nil
}

// GetSigningKeyByKeyID looks a key up by its JWT `kid`.
func (s *CredentialStore) GetSigningKeyByKeyID(ctx context.Context, keyID string) (*model.SigningKey, error) {
	var key model.SigningKey
	err := s.db.GetContext(ctx, &key, `SELECT `+selectSigningKeyColumns+`
		FROM signing_keys WHERE key_id = $1`, keyID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, gatewayerr.New(gatewayerr.KindNotFound, gatewayerr.ErrNotFound)
	}
	if err != nil {
		return nil, gatewayerr.New(gatewayerr.KindDependency, fmt.Errorf("get signing key: %w", err))
	}
	return &key, nil
}

// UpdateSigningKeyStatus transitions a key's lifecycle status,
// recording the transition timestamp into the matching column. Used
// by the key lifecycle manager's rotation and force-retire paths
// within a single transaction (see internal/keys.Manager.Rotate).
func (s *CredentialStore) UpdateSigningKeyStatus(ctx context.Context, tx *sqlx.Tx, keyID string, status model.KeyStatus, at time.Time) error {
	var column string
	switch status {
	case model.KeyActive:
		column = "activated_at"
	case model.KeyDeprecated:
		column = "deprecated_at"
	case model.KeyRetired:
		column = "retired_at"
	default:
		column = ""
	}

	var err error
	if column == "" {
		_, err = tx.ExecContext(ctx, `UPDATE signing_keys SET status = $1, updated_at = $2 WHERE key_id = $3`,
			status, at, keyID)
	} else {
		_, err = tx.ExecContext(ctx, fmt.Sprintf(
			`UPDATE signing_keys SET status = $1, updated_at = $2, %s = $2 WHERE key_id = $3`, column),
			status, at, keyID)
	}
	if err != nil {
		return gatewayerr.New(gatewayerr.KindDependency, fmt.Errorf("update signing key status: %w", err))
	}
	return nil
}

// WithTx runs fn inside a transaction, committing on success and
// rolling back on error or panic, mirroring the teacher's
// BaseRepository.Transaction helper.
func (s *CredentialStore) WithTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return gatewayerr.New(gatewayerr.KindDependency, fmt.Errorf("begin transaction: %w", err))
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return gatewayerr.New(gatewayerr.KindDependency, fmt.Errorf("%w (rollback failed: %v)", err, rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return gatewayerr.New(gatewayerr.KindDependency, fmt.Errorf("commit transaction: %w", err))
	}
	return nil
}
