package policy

import (
	"context"
	"fmt"
)

// Resolver computes effective roles across the scope hierarchy.
type Resolver struct {
	store Store
}

func NewResolver(store Store) *Resolver {
	return &Resolver{store: store}
}

// UserRoles returns every assignment the user holds, across all scopes. An
// empty set is a valid state, not an error.
func (r *Resolver) UserRoles(ctx context.Context, userID string) ([]RoleAssignment, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	return r.store.AssignmentsForUser(ctx, userID)
}

// EffectiveRole resolves the strongest role the user holds at the given
// scope, considering direct assignments and downward inheritance from
// ancestor scopes: a tenant role applies to every workspace and team in the
// tenant, a workspace role to every team in the workspace.
//
// Superusers hold the maximal role everywhere; the flag is checked before any
// assignment lookup so the common superuser path issues no store queries.
// The empty role with ok=false means the user holds nothing at that scope.
func (r *Resolver) EffectiveRole(ctx context.Context, user *User, scopeType ScopeType, scopeID string) (Role, bool, error) {
	if user == nil || scopeID == "" {
		return "", false, fmt.Errorf("%w: user and scope id are required", ErrInvalidInput)
	}
	if user.IsSuperuser {
		return RoleTenantOwner, true, nil
	}

	chain, err := r.ancestorChain(ctx, scopeType, scopeID)
	if err != nil {
		return "", false, err
	}

	assignments, err := r.store.AssignmentsForUser(ctx, user.ID)
	if err != nil {
		return "", false, err
	}

	var best Role
	for _, a := range assignments {
		if id, ok := chain[a.ScopeType]; ok && id == a.ScopeID {
			best = higherRole(best, a.Role)
		}
	}
	if best == "" {
		return "", false, nil
	}
	return best, true, nil
}

// TenantRole is EffectiveRole at tenant scope; callers use it for
// tenant-admin-equivalence checks.
func (r *Resolver) TenantRole(ctx context.Context, user *User, organizationID string) (Role, bool, error) {
	return r.EffectiveRole(ctx, user, ScopeTenant, organizationID)
}

// IsTenantAdmin reports whether the user holds a tenant-owner/admin
// equivalent role for the organization, or is a superuser.
func (r *Resolver) IsTenantAdmin(ctx context.Context, user *User, organizationID string) (bool, error) {
	if user == nil {
		return false, nil
	}
	if user.IsSuperuser {
		return true, nil
	}
	role, ok, err := r.TenantRole(ctx, user, organizationID)
	if err != nil {
		return false, err
	}
	return ok && role.IsTenantAdminEquivalent(), nil
}

// ancestorChain maps each scope type to the concrete id that covers the
// requested scope: the scope itself plus every ancestor whose roles inherit
// downward onto it.
func (r *Resolver) ancestorChain(ctx context.Context, scopeType ScopeType, scopeID string) (map[ScopeType]string, error) {
	chain := map[ScopeType]string{scopeType: scopeID}
	switch scopeType {
	case ScopeTenant:
		// No ancestors.
	case ScopeWorkspace:
		ws, err := r.store.Workspace(ctx, scopeID)
		if err != nil {
			return nil, err
		}
		chain[ScopeTenant] = ws.OrganizationID
	case ScopeTeam:
		team, err := r.store.Team(ctx, scopeID)
		if err != nil {
			return nil, err
		}
		chain[ScopeWorkspace] = team.WorkspaceID
		ws, err := r.store.Workspace(ctx, team.WorkspaceID)
		if err != nil {
			return nil, err
		}
		chain[ScopeTenant] = ws.OrganizationID
	default:
		return nil, fmt.Errorf("%w: unknown scope type %q", ErrInvalidInput, scopeType)
	}
	return chain, nil
}
