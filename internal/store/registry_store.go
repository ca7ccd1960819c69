package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/suleymanmyradov/trustgate/internal/gatewayerr"
	"github.com/suleymanmyradov/trustgate/internal/model"
)

// RegistryStore persists ServiceRegistration rows with optimistic
// locking on Version (C2).
type RegistryStore struct {
	db *sqlx.DB
}

func NewRegistryStore(db *sqlx.DB) *RegistryStore {
	return &RegistryStore{db: db}
}

type registryRow struct {
	model.BaseModel
	ServiceID           string `db:"service_id"`
	DisplayName         string `db:"display_name"`
	BaseURL             string `db:"base_url"`
	RoutePrefix         string `db:"route_prefix"`
	DefaultVisibility   string `db:"default_visibility"`
	DefaultAuthRequired bool   `db:"default_auth_required"`
	VisibilityRules     []byte `db:"visibility_rules"`
	Endpoints           []byte `db:"endpoints"`
	AccessConfig        []byte `db:"access_config"`
	CorsConfig          []byte `db:"cors_config"`
	PermissionPolicy    []byte `db:"permission_policy"`
	RateLimitConfig     []byte `db:"rate_limit_config"`
	Version             int64  `db:"version"`
}

func toRow(s *model.ServiceRegistration) (registryRow, error) {
	row := registryRow{
		BaseModel:           s.BaseModel,
		ServiceID:           s.ServiceID,
		DisplayName:         s.DisplayName,
		BaseURL:             s.BaseURL,
		RoutePrefix:         s.RoutePrefix,
		DefaultVisibility:   string(s.DefaultVisibility),
		DefaultAuthRequired: s.DefaultAuthRequired,
		Version:             s.Version,
	}
	var err error
	if row.VisibilityRules, err = json.Marshal(s.VisibilityRules); err != nil {
		return row, err
	}
	if row.Endpoints, err = json.Marshal(s.Endpoints); err != nil {
		return row, err
	}
	if row.AccessConfig, err = json.Marshal(s.AccessConfig); err != nil {
		return row, err
	}
	if row.CorsConfig, err = json.Marshal(s.CorsConfig); err != nil {
		return row, err
	}
	if row.PermissionPolicy, err = json.Marshal(s.PermissionPolicy); err != nil {
		return row, err
	}
	if row.RateLimitConfig, err = json.Marshal(s.RateLimitConfig); err != nil {
		return row, err
	}
	return row, nil
}

func fromRow(row registryRow) (*model.ServiceRegistration, error) {
	s := &model.ServiceRegistration{
		BaseModel:           row.BaseModel,
		ServiceID:           row.ServiceID,
		DisplayName:         row.DisplayName,
		BaseURL:             row.BaseURL,
		RoutePrefix:         row.RoutePrefix,
		DefaultVisibility:   model.Visibility(row.DefaultVisibility),
		DefaultAuthRequired: row.DefaultAuthRequired,
		Version:             row.Version,
	}
	if err := unmarshalIfPresent(row.VisibilityRules, &s.VisibilityRules); err != nil {
		return nil, err
	}
	if err := unmarshalIfPresent(row.Endpoints, &s.Endpoints); err != nil {
		return nil, err
	}
	if err := unmarshalIfPresent(row.AccessConfig, &s.AccessConfig); err != nil {
		return nil, err
	}
	if err := unmarshalIfPresent(row.CorsConfig, &s.CorsConfig); err != nil {
		return nil, err
	}
	if err := unmarshalIfPresent(row.PermissionPolicy, &s.PermissionPolicy); err != nil {
		return nil, err
	}
	if err := unmarshalIfPresent(row.RateLimitConfig, &s.RateLimitConfig); err != nil {
		return nil, err
	}
	return s, nil
}

func unmarshalIfPresent(raw []byte, dest interface{}) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return json.Unmarshal(raw, dest)
}

const selectRegistrationColumns = `id, created_at, updated_at, service_id, display_name, base_url,
	route_prefix, default_visibility, default_auth_required, visibility_rules, endpoints,
	access_config, cors_config, permission_policy, rate_limit_config, version`

// Create inserts a new registration at version 1.
func (s *RegistryStore) Create(ctx context.Context, reg *model.ServiceRegistration) (*model.ServiceRegistration, error) {
	reg.ID = uuid.New()
	now := time.Now().UTC()
	reg.CreatedAt, reg.UpdatedAt = now, now
	reg.Version = 1

	row, err := toRow(reg)
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO service_registrations (
			id, created_at, updated_at, service_id, display_name, base_url, route_prefix,
			default_visibility, default_auth_required, visibility_rules, endpoints,
			access_config, cors_config, permission_policy, rate_limit_config, version
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`,
		row.ID, row.CreatedAt, row.UpdatedAt, row.ServiceID, row.DisplayName, row.BaseURL,
		row.RoutePrefix, row.DefaultVisibility, row.DefaultAuthRequired, row.VisibilityRules,
		row.Endpoints, row.AccessConfig, row.CorsConfig, row.PermissionPolicy, row.RateLimitConfig, row.Version)
	if err != nil {
		return nil, gatewayerr.New(gatewayerr.KindDependency, fmt.Errorf("create service registration: %w", err))
	}
	return reg, nil
}

// Get retrieves a registration by serviceId, retrying transient read
// failures with bounded exponential backoff (§7 dependency recovery).
func (s *RegistryStore) Get(ctx context.Context, serviceID string) (*model.ServiceRegistration, error) {
	var row registryRow
	err := retry.Do(func() error {
		return s.db.GetContext(ctx, &row, `SELECT `+selectRegistrationColumns+`
			FROM service_registrations WHERE service_id = $1`, serviceID)
	}, retry.Context(ctx), retry.Attempts(3), retry.Delay(20*time.Millisecond),
		retry.RetryIf(isTransient))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, gatewayerr.New(gatewayerr.KindNotFound, gatewayerr.ErrNotFound)
	}
	if err != nil {
		return nil, gatewayerr.New(gatewayerr.KindDependency, fmt.Errorf("get service registration: %w", err))
	}
	return fromRow(row)
}

// List returns up to limit registrations starting at offset, plus the total count.
func (s *RegistryStore) List(ctx context.Context, limit, offset int) ([]*model.ServiceRegistration, int, error) {
	var rows []registryRow
	err := retry.Do(func() error {
		return s.db.SelectContext(ctx, &rows, `SELECT `+selectRegistrationColumns+`
			FROM service_registrations ORDER BY service_id LIMIT $1 OFFSET $2`, limit, offset)
	}, retry.Context(ctx), retry.Attempts(3), retry.Delay(20*time.Millisecond), retry.RetryIf(isTransient))
	if err != nil {
		return nil, 0, gatewayerr.New(gatewayerr.KindDependency, fmt.Errorf("list service registrations: %w", err))
	}

	var count int
	if err := s.db.GetContext(ctx, &count, `SELECT count(*) FROM service_registrations`); err != nil {
		return nil, 0, gatewayerr.New(gatewayerr.KindDependency, fmt.Errorf("count service registrations: %w", err))
	}

	out := make([]*model.ServiceRegistration, 0, len(rows))
	for _, r := range rows {
		reg, err := fromRow(r)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, reg)
	}
	return out, count, nil
}

// Update applies a conditional write: the stored version must equal
// expectedVersion, or ErrVersionConflict is returned (Testable
// Property 1 / Scenario S6).
func (s *RegistryStore) Update(ctx context.Context, reg *model.ServiceRegistration, expectedVersion int64) (*model.ServiceRegistration, error) {
	reg.UpdatedAt = time.Now().UTC()
	reg.Version = expectedVersion + 1

	row, err := toRow(reg)
	if err != nil {
		return nil, err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE service_registrations SET
			updated_at = $1, display_name = $2, base_url = $3, route_prefix = $4,
			default_visibility = $5, default_auth_required = $6, visibility_rules = $7,
			endpoints = $8, access_config = $9, cors_config = $10, permission_policy = $11,
			rate_limit_config = $12, version = $13
		WHERE service_id = $14 AND version = $15`,
		row.UpdatedAt, row.DisplayName, row.BaseURL, row.RoutePrefix, row.DefaultVisibility,
		row.DefaultAuthRequired, row.VisibilityRules, row.Endpoints, row.AccessConfig,
		row.CorsConfig, row.PermissionPolicy, row.RateLimitConfig, row.Version,
		row.ServiceID, expectedVersion)
	if err != nil {
		return nil, gatewayerr.New(gatewayerr.KindDependency, fmt.Errorf("update service registration: %w", err))
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, gatewayerr.New(gatewayerr.KindDependency, err)
	}
	if affected == 0 {
		// Either the row doesn't exist, or another writer already moved
		// the version out from under us.
		if _, getErr := s.Get(ctx, reg.ServiceID); getErr != nil {
			return nil, getErr
		}
		return nil, gatewayerr.New(gatewayerr.KindConflict, gatewayerr.ErrVersionConflict)
	}
	return reg, nil
}

// Delete removes a registration by serviceId.
func (s *RegistryStore) Delete(ctx context.Context, serviceID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM service_registrations WHERE service_id = $1`, serviceID)
	if err != nil {
		return gatewayerr.New(gatewayerr.KindDependency, fmt.Errorf("delete service registration: %w", err))
	}
	return nil
}

// Count returns the total number of registrations.
func (s *RegistryStore) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.GetContext(ctx, &count, `SELECT count(*) FROM service_registrations`); err != nil {
		return 0, gatewayerr.New(gatewayerr.KindDependency, fmt.Errorf("count service registrations: %w", err))
	}
	return count, nil
}

// ListAll loads every registration, used to prime the router's
// in-memory snapshot at startup and on demand rebuild.
func (s *RegistryStore) ListAll(ctx context.Context) ([]*model.ServiceRegistration, error) {
	regs, _, err := s.List(ctx, 1<<30, 0)
	return regs, err
}

func isTransient(err error) bool {
	// Row-not-found and conflict are application-level outcomes, not
	// transient dependency failures; everything else from the driver is
	// treated as retryable per §7.
	return !errors.Is(err, sql.ErrNoRows)
}
