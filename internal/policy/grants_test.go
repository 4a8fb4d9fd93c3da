package policy

import (
	"context"
	"errors"
	"testing"
)

func TestGrantEscalationPrevention(t *testing.T) {
	f := newFixture(t)
	g := NewGrantService(f.store, f.engine.Roles())
	ctx := context.Background()

	// A team lead (ordinal 50) cannot hand out workspace lead (70).
	_, err := g.Grant(ctx, "user-frank", RoleAssignment{
		UserID: "user-carol", Role: RoleWorkspaceLead, ScopeID: "ws-product",
	})
	if !errors.Is(err, ErrEscalation) {
		t.Fatalf("expected escalation error, got %v", err)
	}

	// Nor a tenant admin role anywhere.
	_, err = g.Grant(ctx, "user-frank", RoleAssignment{
		UserID: "user-carol", Role: RoleTenantAdmin, ScopeID: "org-acme",
	})
	if !errors.Is(err, ErrEscalation) {
		t.Fatalf("expected escalation error, got %v", err)
	}

	// Granting at their own level is allowed.
	a, err := g.Grant(ctx, "user-frank", RoleAssignment{
		UserID: "user-carol", Role: RoleTeamLead, ScopeID: "team-platform",
	})
	if err != nil {
		t.Fatalf("grant at own level: %v", err)
	}
	if a.GrantedAt.IsZero() {
		t.Fatalf("expected granted_at to be stamped")
	}
}

func TestGrantInheritedLevelCounts(t *testing.T) {
	f := newFixture(t)
	g := NewGrantService(f.store, f.engine.Roles())

	// Tenant admin grants a team role through inheritance.
	if _, err := g.Grant(context.Background(), "user-bob", RoleAssignment{
		UserID: "user-carol", Role: RoleTeamContributor, ScopeID: "team-platform",
	}); err != nil {
		t.Fatalf("tenant admin grant at team scope: %v", err)
	}
}

func TestGrantSuperuserBypass(t *testing.T) {
	f := newFixture(t)
	g := NewGrantService(f.store, f.engine.Roles())

	if _, err := g.Grant(context.Background(), "user-root", RoleAssignment{
		UserID: "user-carol", Role: RoleTenantOwner, ScopeID: "org-acme",
	}); err != nil {
		t.Fatalf("superuser grant: %v", err)
	}
}

func TestGrantValidation(t *testing.T) {
	f := newFixture(t)
	g := NewGrantService(f.store, f.engine.Roles())
	ctx := context.Background()

	// Role/scope mismatch.
	_, err := g.Grant(ctx, "user-bob", RoleAssignment{
		UserID: "user-carol", Role: RoleTenantViewer, ScopeType: ScopeTeam, ScopeID: "team-platform",
	})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid input for scope mismatch, got %v", err)
	}

	// Unknown role name.
	_, err = g.Grant(ctx, "user-bob", RoleAssignment{
		UserID: "user-carol", Role: "OVERLORD", ScopeID: "org-acme",
	})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid input for unknown role, got %v", err)
	}

	// Scope must reference an existing entity.
	_, err = g.Grant(ctx, "user-bob", RoleAssignment{
		UserID: "user-carol", Role: RoleTeamViewer, ScopeID: "team-gone",
	})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found for missing scope, got %v", err)
	}

	// So must the grantee.
	_, err = g.Grant(ctx, "user-bob", RoleAssignment{
		UserID: "user-gone", Role: RoleTeamViewer, ScopeID: "team-platform",
	})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found for missing user, got %v", err)
	}
}

func TestGrantLegacyRoleNames(t *testing.T) {
	f := newFixture(t)
	g := NewGrantService(f.store, f.engine.Roles())

	a, err := g.Grant(context.Background(), "user-bob", RoleAssignment{
		UserID: "user-carol", Role: "MEMBER", ScopeID: "team-platform",
	})
	if err != nil {
		t.Fatalf("legacy grant: %v", err)
	}
	if a.Role != RoleTeamContributor || a.ScopeType != ScopeTeam {
		t.Fatalf("legacy MEMBER should map to TEAM_CONTRIBUTOR at team scope: %+v", a)
	}
}

func TestGrantDuplicateConflicts(t *testing.T) {
	f := newFixture(t)
	g := NewGrantService(f.store, f.engine.Roles())
	ctx := context.Background()

	_, err := g.Grant(ctx, "user-bob", RoleAssignment{
		UserID: "user-frank", Role: RoleTeamLead, ScopeID: "team-platform",
	})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict for duplicate grant, got %v", err)
	}
}

func TestRevokeRequiresLevel(t *testing.T) {
	f := newFixture(t)
	g := NewGrantService(f.store, f.engine.Roles())
	ctx := context.Background()

	// Frank cannot revoke grace's workspace lead role.
	err := g.Revoke(ctx, "user-frank", RoleAssignment{
		UserID: "user-grace", Role: RoleWorkspaceLead, ScopeID: "ws-product",
	})
	if !errors.Is(err, ErrEscalation) {
		t.Fatalf("expected escalation error, got %v", err)
	}

	// Bob can.
	if err := g.Revoke(ctx, "user-bob", RoleAssignment{
		UserID: "user-grace", Role: RoleWorkspaceLead, ScopeID: "ws-product",
	}); err != nil {
		t.Fatalf("revoke: %v", err)
	}

	roles, err := f.engine.Roles().UserRoles(ctx, "user-grace")
	if err != nil {
		t.Fatalf("user roles: %v", err)
	}
	if len(roles) != 0 {
		t.Fatalf("expected no remaining assignments, got %+v", roles)
	}
}
