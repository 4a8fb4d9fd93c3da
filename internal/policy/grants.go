package policy

import (
	"context"
	"fmt"
	"time"
)

// GrantService mediates role grants and revocations, enforcing escalation
// prevention: a granter can only hand out roles at or below their own
// effective level at the target scope.
type GrantService struct {
	store Store
	roles *Resolver
	now   func() time.Time
}

func NewGrantService(store Store, roles *Resolver) *GrantService {
	return &GrantService{store: store, roles: roles, now: time.Now}
}

// Grant validates and persists a single role assignment. The scope must
// exist and resolve to exactly one tenant; the role must match the scope
// type it is declared for.
func (g *GrantService) Grant(ctx context.Context, granterID string, a RoleAssignment) (RoleAssignment, error) {
	if err := g.validate(&a); err != nil {
		return RoleAssignment{}, err
	}
	if _, err := g.store.User(ctx, a.UserID); err != nil {
		return RoleAssignment{}, err
	}
	if _, err := g.resolveScopeTenant(ctx, a.ScopeType, a.ScopeID); err != nil {
		return RoleAssignment{}, err
	}
	if err := g.assertGranterLevel(ctx, granterID, a); err != nil {
		return RoleAssignment{}, err
	}
	if a.GrantedAt.IsZero() {
		a.GrantedAt = g.now().UTC()
	}
	if err := g.store.Grant(ctx, a); err != nil {
		return RoleAssignment{}, err
	}
	return a, nil
}

// Revoke removes a single assignment. The same level check applies: revoking
// a role above your own is as much an escalation as granting one.
func (g *GrantService) Revoke(ctx context.Context, granterID string, a RoleAssignment) error {
	if err := g.validate(&a); err != nil {
		return err
	}
	if err := g.assertGranterLevel(ctx, granterID, a); err != nil {
		return err
	}
	return g.store.Revoke(ctx, a.UserID, a.Role, a.ScopeType, a.ScopeID)
}

func (g *GrantService) validate(a *RoleAssignment) error {
	if a.UserID == "" || a.ScopeID == "" {
		return fmt.Errorf("%w: user id and scope id are required", ErrInvalidInput)
	}
	role, ok := NormalizeRole(string(a.Role))
	if !ok {
		return fmt.Errorf("%w: unknown role %q", ErrInvalidInput, a.Role)
	}
	a.Role = role
	roleScope, _ := role.Scope()
	if a.ScopeType == "" {
		a.ScopeType = roleScope
	}
	if a.ScopeType != roleScope {
		return fmt.Errorf("%w: role %s applies at %s scope, not %s", ErrInvalidInput, role, roleScope, a.ScopeType)
	}
	return nil
}

func (g *GrantService) assertGranterLevel(ctx context.Context, granterID string, a RoleAssignment) error {
	if granterID == "" {
		return fmt.Errorf("%w: granter is required", ErrInvalidInput)
	}
	granter, err := g.store.User(ctx, granterID)
	if err != nil {
		return err
	}
	if granter.IsSuperuser {
		return nil
	}
	granterRole, ok, err := g.roles.EffectiveRole(ctx, granter, a.ScopeType, a.ScopeID)
	if err != nil {
		return err
	}
	if !ok || granterRole.Ordinal() < a.Role.Ordinal() {
		return fmt.Errorf("%w: cannot grant %s", ErrEscalation, a.Role)
	}
	return nil
}

// resolveScopeTenant confirms the scope id references an existing entity and
// walks it to its owning tenant.
func (g *GrantService) resolveScopeTenant(ctx context.Context, scopeType ScopeType, scopeID string) (string, error) {
	switch scopeType {
	case ScopeTenant:
		org, err := g.store.Organization(ctx, scopeID)
		if err != nil {
			return "", err
		}
		return org.ID, nil
	case ScopeWorkspace:
		ws, err := g.store.Workspace(ctx, scopeID)
		if err != nil {
			return "", err
		}
		return ws.OrganizationID, nil
	case ScopeTeam:
		team, err := g.store.Team(ctx, scopeID)
		if err != nil {
			return "", err
		}
		ws, err := g.store.Workspace(ctx, team.WorkspaceID)
		if err != nil {
			return "", err
		}
		return ws.OrganizationID, nil
	}
	return "", fmt.Errorf("%w: unknown scope type %q", ErrInvalidInput, scopeType)
}
