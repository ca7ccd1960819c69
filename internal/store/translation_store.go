package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/suleymanmyradov/trustgate/internal/gatewayerr"
	"github.com/suleymanmyradov/trustgate/internal/model"
)

// maxVersionRetries bounds the compare-and-swap loop on the version
// counter; exceeding it surfaces VERSION_EXHAUSTED rather than retrying
// forever under sustained write contention.
const maxVersionRetries = 5

// TranslationStore persists claim-translation config versions and the
// single "which version is active" pointer (C3).
type TranslationStore struct {
	db *sqlx.DB
}

func NewTranslationStore(db *sqlx.DB) *TranslationStore {
	return &TranslationStore{db: db}
}

const selectTranslationColumns = `id, created_at, updated_at, version, config_schema, created_by, comment`

// CreateVersion allocates the next version number via an atomic
// UPDATE...RETURNING against a single-row counter table, retrying on
// conflict up to maxVersionRetries times before giving up with
// VERSION_EXHAUSTED (spec §4.3).
func (s *TranslationStore) CreateVersion(ctx context.Context, schema []byte, createdBy, comment string) (*model.TranslationConfigVersion, error) {
	var nextVersion int64
	var err error
	for attempt := 0; attempt < maxVersionRetries; attempt++ {
		err = s.db.GetContext(ctx, &nextVersion, `
			UPDATE translation_config_counter SET current_version = current_version + 1
			RETURNING current_version`)
		if err == nil {
			break
		}
		if !isTransient(err) {
			break
		}
	}
	if err != nil {
		return nil, gatewayerr.New(gatewayerr.KindConflict, fmt.Errorf("%w: %v", gatewayerr.ErrVersionExhausted, err))
	}

	v := &model.TranslationConfigVersion{
		BaseModel:    model.BaseModel{ID: uuid.New()},
		Version:      nextVersion,
		ConfigSchema: schema,
		CreatedBy:    createdBy,
		Comment:      comment,
	}
	now := time.Now().UTC()
	v.CreatedAt, v.UpdatedAt = now, now

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO translation_config_versions (id, created_at, updated_at, version, config_schema, created_by, comment)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		v.ID, v.CreatedAt, v.UpdatedAt, v.Version, v.ConfigSchema, v.CreatedBy, v.Comment)
	if err != nil {
		return nil, gatewayerr.New(gatewayerr.KindDependency, fmt.Errorf("insert translation config version: %w", err))
	}
	return v, nil
}

// GetVersion fetches one immutable snapshot by its version number.
func (s *TranslationStore) GetVersion(ctx context.Context, version int64) (*model.TranslationConfigVersion, error) {
	var v model.TranslationConfigVersion
	err := s.db.GetContext(ctx, &v, `SELECT `+selectTranslationColumns+`
		FROM translation_config_versions WHERE version = $1`, version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, gatewayerr.New(gatewayerr.KindNotFound, gatewayerr.ErrNotFound)
	}
	if err != nil {
		return nil, gatewayerr.New(gatewayerr.KindDependency, fmt.Errorf("get translation config version: %w", err))
	}
	return &v, nil
}

// ListVersions returns every stored version, newest first, for rollback UIs.
func (s *TranslationStore) ListVersions(ctx context.Context) ([]*model.TranslationConfigVersion, error) {
	var versions []*model.TranslationConfigVersion
	if err := s.db.SelectContext(ctx, &versions, `SELECT `+selectTranslationColumns+`
		FROM translation_config_versions ORDER BY version DESC`); err != nil {
		return nil, gatewayerr.New(gatewayerr.KindDependency, fmt.Errorf("list translation config versions: %w", err))
	}
	return versions, nil
}

// ActiveVersion returns the version number currently serving
// translate() calls, or 0 if none has ever been activated.
func (s *TranslationStore) ActiveVersion(ctx context.Context) (int64, error) {
	var active int64
	err := s.db.GetContext(ctx, &active, `SELECT active_version FROM translation_config_metadata WHERE id = 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, gatewayerr.New(gatewayerr.KindDependency, fmt.Errorf("get active translation version: %w", err))
	}
	return active, nil
}

// Activate switches the active-version pointer, failing the call if
// the version doesn't exist. Callers (internal/translate) are
// responsible for invalidating the cache after a successful activate.
func (s *TranslationStore) Activate(ctx context.Context, version int64) error {
	if _, err := s.GetVersion(ctx, version); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE translation_config_metadata SET active_version = $1, updated_at = $2 WHERE id = 1`,
		version, time.Now().UTC())
	if err != nil {
		return gatewayerr.New(gatewayerr.KindDependency, fmt.Errorf("activate translation config version: %w", err))
	}
	return nil
}
