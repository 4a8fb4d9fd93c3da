package policy

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ReasonCode explains a decision. Codes are mutually exclusive; the engine
// reports the first applicable one.
type ReasonCode string

const (
	ReasonAllow             ReasonCode = "ALLOW"
	ReasonRoleDeny          ReasonCode = "ROLE_DENY"
	ReasonTenantBoundary    ReasonCode = "TENANT_BOUNDARY"
	ReasonPrivateVisibility ReasonCode = "PRIVATE_VISIBILITY"
	ReasonPublishLock       ReasonCode = "PUBLISH_LOCK"
	ReasonSuperuserReadOnly ReasonCode = "SUPERUSER_READ_ONLY"
)

// ResourceContext identifies the entity a decision is about. All fields are
// optional; objective and key-result references are resolved and the missing
// scope ids backfilled from the loaded entity.
type ResourceContext struct {
	TenantID    string `json:"tenantId,omitempty"`
	WorkspaceID string `json:"workspaceId,omitempty"`
	TeamID      string `json:"teamId,omitempty"`
	ObjectiveID string `json:"objectiveId,omitempty"`
	KeyResultID string `json:"keyResultId,omitempty"`
	CycleID     string `json:"cycleId,omitempty"`
}

// DecisionDetails carries the reasoning trail: the roles the evaluated user
// holds, the scopes that were considered and the resolved resource context.
type DecisionDetails struct {
	UserRoles []RoleAssignment `json:"userRoles"`
	Scopes    []string         `json:"scopes"`
	Resource  ResourceContext  `json:"resourceCtxEcho"`
	Lock      *LockInfo        `json:"lock,omitempty"`
	Context   map[string]any   `json:"context,omitempty"`
}

// DecisionMeta records who asked, who was evaluated, and when.
type DecisionMeta struct {
	RequestUserID   string    `json:"requestUserId"`
	EvaluatedUserID string    `json:"evaluatedUserId"`
	Action          Action    `json:"action"`
	Timestamp       time.Time `json:"timestamp"`
}

// Decision is the ephemeral result of a policy evaluation. It is never
// persisted; every invocation is audited out-of-band.
type Decision struct {
	Allow   bool            `json:"allow"`
	Reason  ReasonCode      `json:"reason"`
	Details DecisionDetails `json:"details"`
	Meta    DecisionMeta    `json:"meta"`
}

// DecisionRequest is the engine input. EvaluatedUserID defaults to
// RequestUserID; evaluating someone else is restricted to superusers.
type DecisionRequest struct {
	RequestUserID   string
	EvaluatedUserID string
	Action          Action
	Resource        ResourceContext
	Context         map[string]any
}

// AuditFunc receives every decision the engine produces. Implementations
// must not block or fail the decision path.
type AuditFunc func(ctx context.Context, d Decision)

// Engine composes the role, tenant, visibility and lock resolvers into a
// single decision function. It is stateless between calls: every decision is
// recomputed from the store, trading latency for correctness under concurrent
// role and metadata changes.
type Engine struct {
	store      Store
	roles      *Resolver
	visibility *VisibilityResolver
	locks      *LockResolver
	audit      AuditFunc
	now        func() time.Time
}

// EngineOption configures Engine behavior.
type EngineOption func(*Engine)

// WithAudit installs the fire-and-forget decision audit hook.
func WithAudit(fn AuditFunc) EngineOption {
	return func(e *Engine) { e.audit = fn }
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) EngineOption {
	return func(e *Engine) {
		if fn != nil {
			e.now = fn
		}
	}
}

func NewEngine(store Store, opts ...EngineOption) *Engine {
	e := &Engine{
		store: store,
		now:   time.Now,
	}
	e.roles = NewResolver(store)
	e.visibility = NewVisibilityResolver(store, e.roles)
	e.locks = NewLockResolver(store, e.roles)
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Roles exposes the role resolver for callers that need effective-role
// lookups outside a full decision.
func (e *Engine) Roles() *Resolver { return e.roles }

// Visibility exposes the visibility resolver.
func (e *Engine) Visibility() *VisibilityResolver { return e.visibility }

// Locks exposes the governance lock resolver.
func (e *Engine) Locks() *LockResolver { return e.locks }

// Decide evaluates whether the evaluated user may perform the action on the
// resource. A deny is a valid Decision value, not an error; errors are
// reserved for structural problems (unknown action, missing user, a
// non-superuser evaluating someone else).
func (e *Engine) Decide(ctx context.Context, req DecisionRequest) (Decision, error) {
	if _, ok := ParseAction(string(req.Action)); !ok {
		return Decision{}, fmt.Errorf("%w: unknown action %q", ErrInvalidInput, req.Action)
	}
	if req.EvaluatedUserID == "" {
		req.EvaluatedUserID = req.RequestUserID
	}
	if req.RequestUserID == "" {
		return Decision{}, fmt.Errorf("%w: request user is required", ErrInvalidInput)
	}

	if req.RequestUserID != req.EvaluatedUserID {
		requester, err := e.store.User(ctx, req.RequestUserID)
		if err != nil {
			return Decision{}, err
		}
		if !requester.IsSuperuser {
			return Decision{}, fmt.Errorf("%w: only superusers may evaluate another user", ErrForbidden)
		}
	}

	user, err := e.store.User(ctx, req.EvaluatedUserID)
	if err != nil {
		return Decision{}, err
	}

	resource, obj, err := e.resolveResource(ctx, req.Resource)
	if err != nil {
		return Decision{}, err
	}

	d := Decision{
		Meta: DecisionMeta{
			RequestUserID:   req.RequestUserID,
			EvaluatedUserID: req.EvaluatedUserID,
			Action:          req.Action,
			Timestamp:       e.now().UTC(),
		},
		Details: DecisionDetails{
			Resource: resource,
			Context:  req.Context,
			Scopes:   resourceScopes(resource),
		},
	}

	if !user.IsSuperuser {
		assignments, err := e.roles.UserRoles(ctx, user.ID)
		if err != nil {
			return Decision{}, err
		}
		d.Details.UserRoles = assignments
	}

	reason, lock, err := e.evaluate(ctx, user, req.Action, resource, obj)
	if err != nil {
		return Decision{}, err
	}
	d.Reason = reason
	d.Allow = reason == ReasonAllow
	d.Details.Lock = lock

	if e.audit != nil {
		e.audit(ctx, d)
	}
	return d, nil
}

func (e *Engine) evaluate(ctx context.Context, user *User, action Action, resource ResourceContext, obj *Objective) (ReasonCode, *LockInfo, error) {
	if user.IsSuperuser {
		if action.IsMutation() && resource.TenantID != "" && resource.TenantID != user.OrganizationID {
			return ReasonSuperuserReadOnly, nil, nil
		}
		return ReasonAllow, nil, nil
	}

	if action == ActionImpersonateUser {
		return ReasonRoleDeny, nil, nil
	}

	// Hard tenant boundary before anything role-related.
	if resource.TenantID != "" {
		if err := AssertSameTenant(ScopeForUser(user), resource.TenantID); err != nil {
			return ReasonTenantBoundary, nil, nil
		}
	}

	if minRole, required := actionMinRole[action]; required {
		ok, err := e.satisfiesRole(ctx, user, minRole, resource, obj, action)
		if err != nil {
			return "", nil, err
		}
		if !ok {
			return ReasonRoleDeny, nil, nil
		}
	}

	if objectiveActions[action] && obj != nil {
		visible, err := e.visibility.CanView(ctx, user, obj)
		if err != nil {
			return "", nil, err
		}
		if !visible {
			return ReasonPrivateVisibility, nil, nil
		}
	}

	if lockedActions[action] && obj != nil {
		lock, err := e.locks.LockInfoFor(ctx, user, obj)
		if err != nil {
			return "", nil, err
		}
		if lock.IsLocked {
			return ReasonPublishLock, &lock, nil
		}
	}

	return ReasonAllow, nil, nil
}

// satisfiesRole checks the minimum-role table against the narrowest scope the
// resource names, falling back to the tenant. Role and lock checks are
// independent: an owner bypass here never bypasses governance locks.
func (e *Engine) satisfiesRole(ctx context.Context, user *User, minRole Role, resource ResourceContext, obj *Objective, action Action) (bool, error) {
	if ownerBypassActions[action] && obj != nil && obj.OwnerID == user.ID {
		return true, nil
	}

	scopeType, scopeID := narrowestScope(resource)
	if scopeID == "" {
		scopeType, scopeID = ScopeTenant, user.OrganizationID
	}
	if scopeID == "" {
		return false, nil
	}
	role, ok, err := e.roles.EffectiveRole(ctx, user, scopeType, scopeID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return ok && role.Ordinal() >= minRole.Ordinal(), nil
}

// resolveResource loads referenced entities and backfills scope ids. A key
// result is always resolved through its parent objective.
func (e *Engine) resolveResource(ctx context.Context, resource ResourceContext) (ResourceContext, *Objective, error) {
	if resource.KeyResultID != "" && resource.ObjectiveID == "" {
		kr, err := e.store.KeyResult(ctx, resource.KeyResultID)
		if err != nil {
			return resource, nil, err
		}
		resource.ObjectiveID = kr.ObjectiveID
	}

	var obj *Objective
	if resource.ObjectiveID != "" {
		loaded, err := e.store.Objective(ctx, resource.ObjectiveID)
		if err != nil {
			return resource, nil, err
		}
		obj = loaded
		if resource.TenantID == "" {
			resource.TenantID = obj.OrganizationID
		}
		if resource.WorkspaceID == "" {
			resource.WorkspaceID = obj.WorkspaceID
		}
		if resource.TeamID == "" {
			resource.TeamID = obj.TeamID
		}
		if resource.CycleID == "" {
			resource.CycleID = obj.CycleID
		}
	}

	if resource.TenantID == "" && resource.WorkspaceID != "" {
		ws, err := e.store.Workspace(ctx, resource.WorkspaceID)
		if err != nil {
			return resource, nil, err
		}
		resource.TenantID = ws.OrganizationID
	}
	if resource.WorkspaceID == "" && resource.TeamID != "" {
		team, err := e.store.Team(ctx, resource.TeamID)
		if err != nil {
			return resource, nil, err
		}
		resource.WorkspaceID = team.WorkspaceID
		if resource.TenantID == "" {
			ws, err := e.store.Workspace(ctx, team.WorkspaceID)
			if err != nil {
				return resource, nil, err
			}
			resource.TenantID = ws.OrganizationID
		}
	}
	return resource, obj, nil
}

func narrowestScope(resource ResourceContext) (ScopeType, string) {
	switch {
	case resource.TeamID != "":
		return ScopeTeam, resource.TeamID
	case resource.WorkspaceID != "":
		return ScopeWorkspace, resource.WorkspaceID
	case resource.TenantID != "":
		return ScopeTenant, resource.TenantID
	}
	return ScopeTenant, ""
}

func resourceScopes(resource ResourceContext) []string {
	var scopes []string
	if resource.TenantID != "" {
		scopes = append(scopes, string(ScopeTenant)+":"+resource.TenantID)
	}
	if resource.WorkspaceID != "" {
		scopes = append(scopes, string(ScopeWorkspace)+":"+resource.WorkspaceID)
	}
	if resource.TeamID != "" {
		scopes = append(scopes, string(ScopeTeam)+":"+resource.TeamID)
	}
	return scopes
}
