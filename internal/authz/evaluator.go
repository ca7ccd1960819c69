// Package authz implements the authorization evaluator (C9): pure set
// algebra over a Principal's permissions, roles, and groups against a
// service's permission policy. No recursive role expansion, no
// hierarchical permission matching — every permission is an opaque
// string.
package authz

import (
	"context"

	"github.com/suleymanmyradov/trustgate/internal/gatewayerr"
	"github.com/suleymanmyradov/trustgate/internal/model"
)

// RoleSource resolves role and group names to their permission sets,
// satisfied by internal/store.RoleStore.
type RoleSource interface {
	ListRoles(ctx context.Context) ([]model.Role, error)
	ListGroups(ctx context.Context) ([]model.Group, error)
}

// Evaluator expands effective permissions and checks them against a
// service's permission policy.
type Evaluator struct {
	roles  map[string]model.StringSet
	groups map[string]model.StringSet
}

// NewEvaluator snapshots the role/group permission sets at
// construction time; call Refresh to pick up admin changes.
func NewEvaluator() *Evaluator {
	return &Evaluator{
		roles:  make(map[string]model.StringSet),
		groups: make(map[string]model.StringSet),
	}
}

// Refresh reloads the role/group expansion tables from source.
func (e *Evaluator) Refresh(ctx context.Context, source RoleSource) error {
	roles, err := source.ListRoles(ctx)
	if err != nil {
		return err
	}
	groups, err := source.ListGroups(ctx)
	if err != nil {
		return err
	}

	newRoles := make(map[string]model.StringSet, len(roles))
	for _, r := range roles {
		newRoles[r.ID] = r.Permissions
	}
	newGroups := make(map[string]model.StringSet, len(groups))
	for _, g := range groups {
		newGroups[g.ID] = g.Permissions
	}

	e.roles = newRoles
	e.groups = newGroups
	return nil
}

// EffectivePermissions unions principal.EffectivePermissions with the
// one-level expansion of every name in principal.Roles/Groups. Role
// and group names that don't resolve to a known mapping contribute no
// additional permissions (they are not themselves errors).
func (e *Evaluator) EffectivePermissions(principal *model.Principal) model.StringSet {
	effective := principal.EffectivePermissions
	if effective == nil {
		effective = model.NewStringSet()
	}

	for _, roleName := range principal.Roles {
		if perms, ok := e.roles[roleName]; ok {
			effective = effective.Union(perms)
		}
	}
	for _, groupName := range principal.Groups {
		if perms, ok := e.groups[groupName]; ok {
			effective = effective.Union(perms)
		}
	}
	return effective
}

// Authorize implements the C9 algorithm: unauthenticated access to an
// auth-required endpoint is rejected outright; otherwise, if the
// service declares a permissionPolicy entry for operation, the caller
// must hold at least one of its anyOfPermissions. Absent policy
// coverage for the operation, any authenticated caller passes.
func (e *Evaluator) Authorize(principal *model.Principal, service *model.ServiceRegistration, endpoint *model.Endpoint, operation string) error {
	requiresAuth := service.DefaultAuthRequired
	if endpoint != nil && endpoint.AuthRequired != nil {
		requiresAuth = *endpoint.AuthRequired
	}

	if requiresAuth && principal == nil {
		return gatewayerr.New(gatewayerr.KindAuth, gatewayerr.ErrInvalidSignature)
	}
	if principal == nil {
		return nil
	}

	if service.PermissionPolicy == nil {
		return nil
	}
	rule, ok := service.PermissionPolicy[operation]
	if !ok {
		return nil
	}

	effective := e.EffectivePermissions(principal)
	if !effective.Intersects(rule.AnyOfPermissions) {
		return gatewayerr.Forbidden(operation)
	}
	return nil
}
