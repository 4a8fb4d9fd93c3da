package policy

import "strings"

// ScopeType is the level a role assignment applies at.
type ScopeType string

const (
	ScopeTenant    ScopeType = "TENANT"
	ScopeWorkspace ScopeType = "WORKSPACE"
	ScopeTeam      ScopeType = "TEAM"
)

// Role names form a closed set. Ordinals are comparable across scopes so that
// inherited tenant/workspace roles can satisfy checks at narrower scopes.
type Role string

const (
	RoleTenantOwner     Role = "TENANT_OWNER"
	RoleTenantAdmin     Role = "TENANT_ADMIN"
	RoleTenantViewer    Role = "TENANT_VIEWER"
	RoleWorkspaceLead   Role = "WORKSPACE_LEAD"
	RoleWorkspaceAdmin  Role = "WORKSPACE_ADMIN"
	RoleWorkspaceMember Role = "WORKSPACE_MEMBER"
	RoleTeamLead        Role = "TEAM_LEAD"
	RoleTeamContributor Role = "TEAM_CONTRIBUTOR"
	RoleTeamViewer      Role = "TEAM_VIEWER"
)

var roleOrdinals = map[Role]int{
	RoleTenantOwner:     100,
	RoleTenantAdmin:     90,
	RoleWorkspaceLead:   70,
	RoleWorkspaceAdmin:  70,
	RoleTeamLead:        50,
	RoleWorkspaceMember: 40,
	RoleTeamContributor: 30,
	RoleTenantViewer:    20,
	RoleTeamViewer:      10,
}

var roleScopes = map[Role]ScopeType{
	RoleTenantOwner:     ScopeTenant,
	RoleTenantAdmin:     ScopeTenant,
	RoleTenantViewer:    ScopeTenant,
	RoleWorkspaceLead:   ScopeWorkspace,
	RoleWorkspaceAdmin:  ScopeWorkspace,
	RoleWorkspaceMember: ScopeWorkspace,
	RoleTeamLead:        ScopeTeam,
	RoleTeamContributor: ScopeTeam,
	RoleTeamViewer:      ScopeTeam,
}

// legacyRoles maps the pre-migration role model onto the current one. Both
// models must resolve to equivalent authorization outcomes, so the mapping
// targets the closest current tier. SUPERUSER is intentionally absent: it is
// carried as a user flag, not a role assignment.
var legacyRoles = map[string]Role{
	"ORG_ADMIN":       RoleTenantAdmin,
	"WORKSPACE_OWNER": RoleWorkspaceLead,
	"TEAM_LEAD":       RoleTeamLead,
	"MEMBER":          RoleTeamContributor,
	"VIEWER":          RoleTeamViewer,
}

// Ordinal returns the role's rank; zero for unknown roles.
func (r Role) Ordinal() int {
	return roleOrdinals[r]
}

// Scope returns the scope type the role applies at.
func (r Role) Scope() (ScopeType, bool) {
	s, ok := roleScopes[r]
	return s, ok
}

// IsAdminEquivalent reports whether the role sits in the owner/admin tier of
// its scope. Used as the tie-break when two roles share an ordinal.
func (r Role) IsAdminEquivalent() bool {
	switch r {
	case RoleTenantOwner, RoleTenantAdmin, RoleWorkspaceLead, RoleWorkspaceAdmin, RoleTeamLead:
		return true
	}
	return false
}

// IsTenantAdminEquivalent reports whether the role grants tenant-wide
// administrative power: PRIVATE visibility bypass and lock override.
func (r Role) IsTenantAdminEquivalent() bool {
	return r == RoleTenantOwner || r == RoleTenantAdmin
}

// NormalizeRole resolves a role name, accepting both the current and the
// legacy model, case-insensitively. Returns false for unknown names and for
// the legacy SUPERUSER, which is not grantable as a role.
func NormalizeRole(name string) (Role, bool) {
	upper := Role(strings.ToUpper(strings.TrimSpace(name)))
	if _, ok := roleOrdinals[upper]; ok {
		return upper, true
	}
	if mapped, ok := legacyRoles[string(upper)]; ok {
		return mapped, true
	}
	return "", false
}

// higherRole picks the stronger of two roles: highest ordinal first,
// admin-equivalent tier breaking ties.
func higherRole(a, b Role) Role {
	if a == "" {
		return b
	}
	if b == "" {
		return a
	}
	if b.Ordinal() > a.Ordinal() {
		return b
	}
	if b.Ordinal() == a.Ordinal() && b.IsAdminEquivalent() && !a.IsAdminEquivalent() {
		return b
	}
	return a
}
