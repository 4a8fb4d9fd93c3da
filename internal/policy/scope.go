package policy

import "fmt"

type callerKind int

const (
	callerUnscoped callerKind = iota
	callerSuperuser
	callerTenant
)

// CallerScope is the tenant context a request executes under. The three
// variants replace the legacy undefined/null/string tenant-id overload:
// Unscoped means the caller belongs to no tenant at all, Superuser means no
// tenant restriction applies, Tenant carries the concrete tenant id.
// Collapsing Unscoped into Superuser would treat a non-member as unrestricted,
// which is exactly the bug this type exists to prevent.
type CallerScope struct {
	kind   callerKind
	tenant string
}

func Unscoped() CallerScope           { return CallerScope{kind: callerUnscoped} }
func SuperuserScope() CallerScope     { return CallerScope{kind: callerSuperuser} }
func TenantScope(id string) CallerScope {
	if id == "" {
		return Unscoped()
	}
	return CallerScope{kind: callerTenant, tenant: id}
}

// ScopeForUser derives the caller scope from a user record.
func ScopeForUser(u *User) CallerScope {
	if u == nil {
		return Unscoped()
	}
	if u.IsSuperuser {
		return SuperuserScope()
	}
	return TenantScope(u.OrganizationID)
}

func (s CallerScope) IsSuperuser() bool { return s.kind == callerSuperuser }
func (s CallerScope) IsUnscoped() bool  { return s.kind == callerUnscoped }

// Tenant returns the concrete tenant id when the caller is tenant-scoped.
func (s CallerScope) Tenant() (string, bool) {
	if s.kind != callerTenant {
		return "", false
	}
	return s.tenant, true
}

func (s CallerScope) String() string {
	switch s.kind {
	case callerSuperuser:
		return "superuser"
	case callerTenant:
		return "tenant:" + s.tenant
	default:
		return "unscoped"
	}
}

// AssertSameTenant enforces the hard tenant boundary: a tenant-scoped or
// unscoped caller may only touch resources of their own tenant. Superusers
// pass unconditionally.
func AssertSameTenant(s CallerScope, resourceTenantID string) error {
	if s.IsSuperuser() {
		return nil
	}
	tenant, ok := s.Tenant()
	if !ok || tenant != resourceTenantID {
		return fmt.Errorf("%w: resource belongs to another tenant", ErrTenantBoundary)
	}
	return nil
}

// AssertCanMutate rejects mutations from callers with no tenant context at
// all. A mutation must be attributable to a tenant; superusers carry their
// own attribution and pass.
func AssertCanMutate(s CallerScope) error {
	if s.IsUnscoped() {
		return fmt.Errorf("%w: mutation requires a tenant context", ErrForbidden)
	}
	return nil
}

// ObjectiveFilter narrows list queries to a tenant. Unfiltered is only ever
// produced for superusers.
type ObjectiveFilter struct {
	TenantID   string
	Unfiltered bool
}

// ListFilter translates a caller scope into a list filter. The false return
// means the caller gets an empty result set: listing with no tenant fails
// closed, while a superuser legitimately sees the unfiltered global set.
func ListFilter(s CallerScope) (ObjectiveFilter, bool) {
	switch s.kind {
	case callerSuperuser:
		return ObjectiveFilter{Unfiltered: true}, true
	case callerTenant:
		return ObjectiveFilter{TenantID: s.tenant}, true
	default:
		return ObjectiveFilter{}, false
	}
}
