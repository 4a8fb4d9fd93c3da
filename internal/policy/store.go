package policy

import "context"

// RoleStore persists role assignments. Grants and revocations are independent
// facts: each is a single atomic row operation, no multi-row transactions.
type RoleStore interface {
	Grant(ctx context.Context, a RoleAssignment) error
	Revoke(ctx context.Context, userID string, role Role, scopeType ScopeType, scopeID string) error
	AssignmentsForUser(ctx context.Context, userID string) ([]RoleAssignment, error)
}

// DirectoryStore resolves the tenant hierarchy: users, organizations,
// workspaces and teams.
type DirectoryStore interface {
	User(ctx context.Context, id string) (*User, error)
	Organization(ctx context.Context, id string) (*Organization, error)
	UpdateOrganization(ctx context.Context, id string, upd OrganizationUpdate) (*Organization, error)
	Workspace(ctx context.Context, id string) (*Workspace, error)
	SetWorkspaceParent(ctx context.Context, id, parentID string) error
	Team(ctx context.Context, id string) (*Team, error)
}

// OKRStore resolves objectives, key results and cycles.
type OKRStore interface {
	Objective(ctx context.Context, id string) (*Objective, error)
	UpdateObjective(ctx context.Context, id string, upd ObjectiveUpdate) (*Objective, error)
	ListObjectives(ctx context.Context, filter ObjectiveFilter) ([]*Objective, error)
	KeyResult(ctx context.Context, id string) (*KeyResult, error)
	Cycle(ctx context.Context, id string) (*Cycle, error)
}

// Store aggregates everything the decision engine reads.
type Store interface {
	RoleStore
	DirectoryStore
	OKRStore
}

// OrganizationUpdate carries partial organization changes. Nil fields are
// left untouched.
type OrganizationUpdate struct {
	Name              *string
	Metadata          map[string]any
	PrivateWhitelist  *[]string
	ExecOnlyWhitelist *[]string
}

// ObjectiveUpdate carries partial objective changes.
type ObjectiveUpdate struct {
	Title       *string
	Visibility  *Visibility
	IsPublished *bool
	CycleID     *string
}
