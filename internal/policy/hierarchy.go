package policy

import (
	"context"
	"fmt"
)

// maxAncestorWalk bounds the parent walk; deeper hierarchies than this are
// treated as corrupt.
const maxAncestorWalk = 64

// ValidateWorkspaceParent checks that re-pointing workspace's parent to
// newParentID keeps the hierarchy cycle-free and inside one tenant. The walk
// goes from the proposed parent to the root with a visited set; meeting the
// workspace itself (self-parenting included, as a one-hop cycle) or any
// revisit fails.
func ValidateWorkspaceParent(ctx context.Context, store DirectoryStore, workspaceID, newParentID string) error {
	if workspaceID == "" {
		return fmt.Errorf("%w: workspace id is required", ErrInvalidInput)
	}
	ws, err := store.Workspace(ctx, workspaceID)
	if err != nil {
		return err
	}
	if newParentID == "" {
		// Detaching to root is always safe.
		return nil
	}
	if newParentID == workspaceID {
		return fmt.Errorf("%w: workspace cannot be its own parent", ErrCycle)
	}

	visited := map[string]struct{}{workspaceID: {}}
	cur := newParentID
	for depth := 0; cur != ""; depth++ {
		if depth >= maxAncestorWalk {
			return fmt.Errorf("%w: hierarchy too deep", ErrCycle)
		}
		if _, seen := visited[cur]; seen {
			return fmt.Errorf("%w: %s is a descendant of %s", ErrCycle, newParentID, workspaceID)
		}
		visited[cur] = struct{}{}

		ancestor, err := store.Workspace(ctx, cur)
		if err != nil {
			return err
		}
		if ancestor.OrganizationID != ws.OrganizationID {
			return fmt.Errorf("%w: parent workspace belongs to another tenant", ErrTenantBoundary)
		}
		cur = ancestor.ParentID
	}
	return nil
}

// ReparentWorkspace validates and applies a parent change.
func ReparentWorkspace(ctx context.Context, store DirectoryStore, workspaceID, newParentID string) error {
	if err := ValidateWorkspaceParent(ctx, store, workspaceID, newParentID); err != nil {
		return err
	}
	return store.SetWorkspaceParent(ctx, workspaceID, newParentID)
}
