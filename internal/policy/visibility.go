package policy

import (
	"context"
	"errors"
	"fmt"
)

// VisibilityResolver decides whether a user may read an objective.
type VisibilityResolver struct {
	store Store
	roles *Resolver
}

func NewVisibilityResolver(store Store, roles *Resolver) *VisibilityResolver {
	return &VisibilityResolver{store: store, roles: roles}
}

// UnionWhitelists folds the four legacy storage locations of the PRIVATE
// read whitelist into one set: the top-level private/exec-only slices plus
// their metadata twins. Presence in any one of them grants read access to
// all PRIVATE objectives of the tenant.
func UnionWhitelists(org *Organization) map[string]struct{} {
	out := make(map[string]struct{})
	if org == nil {
		return out
	}
	for _, id := range org.PrivateWhitelist {
		if id != "" {
			out[id] = struct{}{}
		}
	}
	for _, id := range org.ExecOnlyWhitelist {
		if id != "" {
			out[id] = struct{}{}
		}
	}
	for _, key := range []string{"privateWhitelist", "execOnlyWhitelist"} {
		for _, id := range metadataStringList(org.Metadata, key) {
			out[id] = struct{}{}
		}
	}
	return out
}

func metadataStringList(meta map[string]any, key string) []string {
	if meta == nil {
		return nil
	}
	var out []string
	switch v := meta[key].(type) {
	case []string:
		for _, s := range v {
			if s != "" {
				out = append(out, s)
			}
		}
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

// CanView applies the ordered visibility algorithm; the first matching rule
// wins and everything falls through to deny.
func (v *VisibilityResolver) CanView(ctx context.Context, user *User, obj *Objective) (bool, error) {
	if user == nil || obj == nil {
		return false, fmt.Errorf("%w: user and objective are required", ErrInvalidInput)
	}
	if user.IsSuperuser {
		return true, nil
	}
	if obj.OwnerID == user.ID {
		return true, nil
	}
	if obj.Visibility != VisibilityPrivate {
		return true, nil
	}
	role, ok, err := v.roles.TenantRole(ctx, user, obj.OrganizationID)
	if err != nil {
		return false, err
	}
	if ok && role.IsTenantAdminEquivalent() {
		return true, nil
	}
	org, err := v.store.Organization(ctx, obj.OrganizationID)
	if err != nil {
		return false, err
	}
	if _, listed := UnionWhitelists(org)[user.ID]; listed {
		return true, nil
	}
	// Cross-tenant access should have been stopped upstream; deny here
	// without consulting anything else.
	if user.OrganizationID != obj.OrganizationID {
		return false, nil
	}
	return false, nil
}

// CanViewKeyResult always re-runs the algorithm against the parent objective.
// A key result is never evaluated on its own fields; a missing parent denies.
func (v *VisibilityResolver) CanViewKeyResult(ctx context.Context, user *User, kr *KeyResult) (bool, error) {
	if kr == nil || kr.ObjectiveID == "" {
		return false, nil
	}
	obj, err := v.store.Objective(ctx, kr.ObjectiveID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return v.CanView(ctx, user, obj)
}
