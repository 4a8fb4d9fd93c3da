package policy

import "time"

// User is an account known to the platform. Superusers bypass tenant and
// role checks for reads; writes outside their home tenant are restricted by
// the decision engine.
type User struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id,omitempty"`
	Email          string    `json:"email"`
	IsSuperuser    bool      `json:"is_superuser"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Organization is the top-level tenant isolation boundary. The two whitelist
// slices and their metadata twins are legacy storage locations for the
// PRIVATE-visibility read whitelist; UnionWhitelists folds all four.
type Organization struct {
	ID                string         `json:"id"`
	Name              string         `json:"name"`
	PrivateWhitelist  []string       `json:"private_whitelist,omitempty"`
	ExecOnlyWhitelist []string       `json:"exec_only_whitelist,omitempty"`
	Metadata          map[string]any `json:"metadata,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

// Workspace belongs to exactly one organization and may point at a parent
// workspace. The parent graph must stay cycle-free; see ValidateWorkspaceParent.
type Workspace struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	ParentID       string    `json:"parent_id,omitempty"`
	Name           string    `json:"name"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Team belongs to exactly one workspace.
type Team struct {
	ID          string    `json:"id"`
	WorkspaceID string    `json:"workspace_id"`
	Name        string    `json:"name"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CycleStatus is the lifecycle state of an OKR time period.
type CycleStatus string

const (
	CycleDraft    CycleStatus = "DRAFT"
	CycleActive   CycleStatus = "ACTIVE"
	CycleLocked   CycleStatus = "LOCKED"
	CycleArchived CycleStatus = "ARCHIVED"
)

// Cycle is a time period objectives are planned against.
type Cycle struct {
	ID             string      `json:"id"`
	OrganizationID string      `json:"organization_id"`
	Name           string      `json:"name"`
	Status         CycleStatus `json:"status"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// Visibility controls who may read an objective inside its tenant.
type Visibility string

const (
	VisibilityPublicTenant Visibility = "PUBLIC_TENANT"
	VisibilityPrivate      Visibility = "PRIVATE"
)

// Objective is the unit OKR governance applies to. Key results inherit both
// visibility and lock state from their parent objective.
type Objective struct {
	ID             string     `json:"id"`
	OrganizationID string     `json:"organization_id"`
	WorkspaceID    string     `json:"workspace_id,omitempty"`
	TeamID         string     `json:"team_id,omitempty"`
	OwnerID        string     `json:"owner_id"`
	Title          string     `json:"title"`
	Visibility     Visibility `json:"visibility"`
	IsPublished    bool       `json:"is_published"`
	CycleID        string     `json:"cycle_id,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// KeyResult carries no access-control state of its own; the parent objective
// is authoritative for visibility and locks.
type KeyResult struct {
	ID          string    `json:"id"`
	ObjectiveID string    `json:"objective_id"`
	OwnerID     string    `json:"owner_id"`
	Title       string    `json:"title"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// RoleAssignment binds a user to a role at a single scope.
type RoleAssignment struct {
	UserID    string    `json:"user_id"`
	Role      Role      `json:"role"`
	ScopeType ScopeType `json:"scope_type"`
	ScopeID   string    `json:"scope_id"`
	GrantedAt time.Time `json:"granted_at"`
}
