package policy

import (
	"context"
	"testing"
)

// fixture wires a MemoryStore with two tenants, a small hierarchy and a set
// of objectives covering every visibility/lock combination the resolvers
// care about.
type fixture struct {
	store  *MemoryStore
	engine *Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s := NewMemoryStore()

	s.PutOrganization(Organization{
		ID:                "org-acme",
		Name:              "Acme",
		PrivateWhitelist:  []string{"user-wl-top"},
		ExecOnlyWhitelist: []string{"user-wl-exec"},
		Metadata: map[string]any{
			"privateWhitelist":  []any{"user-wl-meta"},
			"execOnlyWhitelist": []string{"user-wl-meta-exec"},
		},
	})
	s.PutOrganization(Organization{ID: "org-globex", Name: "Globex"})

	s.PutWorkspace(Workspace{ID: "ws-product", OrganizationID: "org-acme"})
	s.PutWorkspace(Workspace{ID: "ws-growth", OrganizationID: "org-acme", ParentID: "ws-product"})
	s.PutWorkspace(Workspace{ID: "ws-globex", OrganizationID: "org-globex"})
	s.PutTeam(Team{ID: "team-platform", WorkspaceID: "ws-product"})

	s.PutCycle(Cycle{ID: "cycle-active", OrganizationID: "org-acme", Name: "Q3", Status: CycleActive})
	s.PutCycle(Cycle{ID: "cycle-draft", OrganizationID: "org-acme", Name: "Q4", Status: CycleDraft})
	s.PutCycle(Cycle{ID: "cycle-locked", OrganizationID: "org-acme", Name: "Q2", Status: CycleLocked})
	s.PutCycle(Cycle{ID: "cycle-archived", OrganizationID: "org-acme", Name: "Q1", Status: CycleArchived})

	s.PutUser(User{ID: "user-alice", OrganizationID: "org-acme", Email: "alice@acme.test"})
	s.PutUser(User{ID: "user-bob", OrganizationID: "org-acme", Email: "bob@acme.test"})
	s.PutUser(User{ID: "user-carol", OrganizationID: "org-acme", Email: "carol@acme.test"})
	s.PutUser(User{ID: "user-frank", OrganizationID: "org-acme", Email: "frank@acme.test"})
	s.PutUser(User{ID: "user-grace", OrganizationID: "org-acme", Email: "grace@acme.test"})
	s.PutUser(User{ID: "user-dave", OrganizationID: "org-globex", Email: "dave@globex.test"})
	s.PutUser(User{ID: "user-root", OrganizationID: "org-globex", Email: "root@alignd.test", IsSuperuser: true})
	for _, id := range []string{"user-wl-top", "user-wl-exec", "user-wl-meta", "user-wl-meta-exec"} {
		s.PutUser(User{ID: id, OrganizationID: "org-acme"})
	}

	ctx := context.Background()
	grants := []RoleAssignment{
		{UserID: "user-bob", Role: RoleTenantAdmin, ScopeType: ScopeTenant, ScopeID: "org-acme"},
		{UserID: "user-frank", Role: RoleTeamLead, ScopeType: ScopeTeam, ScopeID: "team-platform"},
		{UserID: "user-grace", Role: RoleWorkspaceLead, ScopeType: ScopeWorkspace, ScopeID: "ws-product"},
	}
	for _, g := range grants {
		if err := s.Grant(ctx, g); err != nil {
			t.Fatalf("seed grant: %v", err)
		}
	}

	s.PutObjective(Objective{
		ID: "obj-public", OrganizationID: "org-acme", WorkspaceID: "ws-product",
		TeamID: "team-platform", OwnerID: "user-alice",
		Visibility: VisibilityPublicTenant, CycleID: "cycle-active",
	})
	s.PutObjective(Objective{
		ID: "obj-private", OrganizationID: "org-acme", WorkspaceID: "ws-product",
		OwnerID: "user-alice", Visibility: VisibilityPrivate, CycleID: "cycle-active",
	})
	s.PutObjective(Objective{
		ID: "obj-published", OrganizationID: "org-acme", WorkspaceID: "ws-product",
		TeamID: "team-platform", OwnerID: "user-alice",
		Visibility: VisibilityPublicTenant, IsPublished: true, CycleID: "cycle-active",
	})
	s.PutObjective(Objective{
		ID: "obj-archived-cycle", OrganizationID: "org-acme", WorkspaceID: "ws-product",
		TeamID: "team-platform", OwnerID: "user-alice",
		Visibility: VisibilityPublicTenant, CycleID: "cycle-archived",
	})
	s.PutObjective(Objective{
		ID: "obj-double-locked", OrganizationID: "org-acme", WorkspaceID: "ws-product",
		OwnerID: "user-alice", Visibility: VisibilityPublicTenant,
		IsPublished: true, CycleID: "cycle-locked",
	})

	s.PutKeyResult(KeyResult{ID: "kr-private", ObjectiveID: "obj-private", OwnerID: "user-alice"})
	s.PutKeyResult(KeyResult{ID: "kr-published", ObjectiveID: "obj-published", OwnerID: "user-alice"})
	s.PutKeyResult(KeyResult{ID: "kr-orphan", ObjectiveID: "obj-gone", OwnerID: "user-alice"})

	return &fixture{store: s, engine: NewEngine(s)}
}

func (f *fixture) user(t *testing.T, id string) *User {
	t.Helper()
	u, err := f.store.User(context.Background(), id)
	if err != nil {
		t.Fatalf("fixture user %s: %v", id, err)
	}
	return u
}

func (f *fixture) objective(t *testing.T, id string) *Objective {
	t.Helper()
	o, err := f.store.Objective(context.Background(), id)
	if err != nil {
		t.Fatalf("fixture objective %s: %v", id, err)
	}
	return o
}

func (f *fixture) keyResult(t *testing.T, id string) *KeyResult {
	t.Helper()
	k, err := f.store.KeyResult(context.Background(), id)
	if err != nil {
		t.Fatalf("fixture key result %s: %v", id, err)
	}
	return k
}
