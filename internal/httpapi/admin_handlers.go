package httpapi

import (
	"net/http"
	"strings"

	"alignd.io/internal/audit"
	"alignd.io/internal/auth"
	"alignd.io/internal/policy"
)

type updateOrganizationRequest struct {
	Name              *string        `json:"name"`
	Metadata          map[string]any `json:"metadata"`
	PrivateWhitelist  *[]string      `json:"privateWhitelist"`
	ExecOnlyWhitelist *[]string      `json:"execOnlyWhitelist"`
}

type assignmentRequest struct {
	Role      string `json:"role"`
	ScopeType string `json:"scopeType"`
	ScopeID   string `json:"scopeId"`
}

type reparentRequest struct {
	ParentID string `json:"parentId"`
}

// authorize runs the decision engine for an administrative action and writes
// the failure response itself. Mutating admin paths answer 403, never 404:
// the caller already proved tenant membership or gets the boundary reason.
func (a *API) authorize(w http.ResponseWriter, r *http.Request, p auth.Principal, action policy.Action, resource policy.ResourceContext) bool {
	d, err := a.engine.Decide(r.Context(), policy.DecisionRequest{
		RequestUserID: p.UserID,
		Action:        action,
		Resource:      resource,
	})
	if err != nil {
		handlePolicyError(w, r, err)
		return false
	}
	if !d.Allow {
		writeJSON(w, http.StatusForbidden, map[string]any{
			"error":  "forbidden",
			"reason": d.Reason,
		})
		return false
	}
	return true
}

func (a *API) handleOrganizationResource(w http.ResponseWriter, r *http.Request) {
	orgID := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/organizations/"), "/")
	if orgID == "" || strings.Contains(orgID, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	if r.Method != http.MethodPatch {
		methodNotAllowed(w, r, http.MethodPatch)
		return
	}
	p, ok := a.principal(w, r)
	if !ok {
		return
	}
	if !a.authorize(w, r, p, policy.ActionManageTenantSettings, policy.ResourceContext{TenantID: orgID}) {
		return
	}

	var req updateOrganizationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.Name != nil && strings.TrimSpace(*req.Name) == "" {
		writeError(w, r, http.StatusBadRequest, "name must not be blank")
		return
	}

	org, err := a.store.UpdateOrganization(r.Context(), orgID, policy.OrganizationUpdate{
		Name:              req.Name,
		Metadata:          req.Metadata,
		PrivateWhitelist:  req.PrivateWhitelist,
		ExecOnlyWhitelist: req.ExecOnlyWhitelist,
	})
	if err != nil {
		handlePolicyError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "org.settings.update", map[string]any{
		"organization_id": orgID,
	})
	writeJSON(w, http.StatusOK, org)
}

func (a *API) handleUserResource(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/users/"), "/")
	parts := strings.Split(path, "/")
	if len(parts) != 2 || parts[1] != "assignments" || parts[0] == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	userID := parts[0]

	p, ok := a.principal(w, r)
	if !ok {
		return
	}

	var req assignmentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Role) == "" || strings.TrimSpace(req.ScopeID) == "" {
		writeError(w, r, http.StatusBadRequest, "role and scopeId are required")
		return
	}
	assignment := policy.RoleAssignment{
		UserID:    userID,
		Role:      policy.Role(strings.TrimSpace(req.Role)),
		ScopeType: policy.ScopeType(strings.TrimSpace(req.ScopeType)),
		ScopeID:   strings.TrimSpace(req.ScopeID),
	}

	switch r.Method {
	case http.MethodPost:
		granted, err := a.grants.Grant(r.Context(), p.UserID, assignment)
		if err != nil {
			handlePolicyError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "role.grant", map[string]any{
			"user_id":  userID,
			"role":     granted.Role,
			"scope_id": granted.ScopeID,
		})
		writeJSON(w, http.StatusCreated, granted)
	case http.MethodDelete:
		if err := a.grants.Revoke(r.Context(), p.UserID, assignment); err != nil {
			handlePolicyError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "role.revoke", map[string]any{
			"user_id":  userID,
			"role":     assignment.Role,
			"scope_id": assignment.ScopeID,
		})
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, http.MethodPost, http.MethodDelete)
	}
}

func (a *API) handleWorkspaceResource(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/workspaces/"), "/")
	parts := strings.Split(path, "/")
	if len(parts) != 2 || parts[1] != "parent" || parts[0] == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	workspaceID := parts[0]
	if r.Method != http.MethodPut {
		methodNotAllowed(w, r, http.MethodPut)
		return
	}
	p, ok := a.principal(w, r)
	if !ok {
		return
	}

	ws, err := a.store.Workspace(r.Context(), workspaceID)
	if err != nil {
		handlePolicyError(w, r, err)
		return
	}
	if !a.authorize(w, r, p, policy.ActionManageWorkspaces, policy.ResourceContext{TenantID: ws.OrganizationID}) {
		return
	}

	var req reparentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	if err := policy.ReparentWorkspace(r.Context(), a.store, workspaceID, strings.TrimSpace(req.ParentID)); err != nil {
		handlePolicyError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "workspace.reparent", map[string]any{
		"workspace_id": workspaceID,
		"parent_id":    req.ParentID,
	})
	w.WriteHeader(http.StatusNoContent)
}
