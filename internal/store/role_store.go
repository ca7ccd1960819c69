package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/suleymanmyradov/trustgate/internal/gatewayerr"
	"github.com/suleymanmyradov/trustgate/internal/model"
)

// RoleStore persists roles and groups, the one-level expansion targets
// consumed by the authorization evaluator (C9).
type RoleStore struct {
	db *sqlx.DB
}

func NewRoleStore(db *sqlx.DB) *RoleStore {
	return &RoleStore{db: db}
}

// ListRoles returns every role.
func (s *RoleStore) ListRoles(ctx context.Context) ([]model.Role, error) {
	var roles []model.Role
	if err := s.db.SelectContext(ctx, &roles, `SELECT id, display_name, description, permissions FROM roles`); err != nil {
		return nil, gatewayerr.New(gatewayerr.KindDependency, fmt.Errorf("list roles: %w", err))
	}
	return roles, nil
}

// ListGroups returns every group.
func (s *RoleStore) ListGroups(ctx context.Context) ([]model.Group, error) {
	var groups []model.Group
	if err := s.db.SelectContext(ctx, &groups, `SELECT id, display_name, description, permissions FROM groups`); err != nil {
		return nil, gatewayerr.New(gatewayerr.KindDependency, fmt.Errorf("list groups: %w", err))
	}
	return groups, nil
}

// UpsertRole creates or replaces a role definition.
func (s *RoleStore) UpsertRole(ctx context.Context, r model.Role) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO roles (id, display_name, description, permissions)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET display_name = EXCLUDED.display_name,
			description = EXCLUDED.description, permissions = EXCLUDED.permissions`,
		r.ID, r.DisplayName, r.Description, r.Permissions)
	if err != nil {
		return gatewayerr.New(gatewayerr.KindDependency, fmt.Errorf("upsert role: %w", err))
	}
	return nil
}

// UpsertGroup creates or replaces a group definition.
func (s *RoleStore) UpsertGroup(ctx context.Context, g model.Group) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO groups (id, display_name, description, permissions)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET display_name = EXCLUDED.display_name,
			description = EXCLUDED.description, permissions = EXCLUDED.permissions`,
		g.ID, g.DisplayName, g.Description, g.Permissions)
	if err != nil {
		return gatewayerr.New(gatewayerr.KindDependency, fmt.Errorf("upsert group: %w", err))
	}
	return nil
}
