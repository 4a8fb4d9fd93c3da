package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"alignd.io/internal/audit"
	"alignd.io/internal/policy"
)

type updateObjectiveRequest struct {
	Title       *string `json:"title"`
	Visibility  *string `json:"visibility"`
	IsPublished *bool   `json:"isPublished"`
	CycleID     *string `json:"cycleId"`
}

type listObjectivesResponse struct {
	Items []*policy.Objective `json:"items"`
	AsOf  time.Time           `json:"as_of"`
}

func (a *API) handleObjectivesCollection(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	p, ok := a.principal(w, r)
	if !ok {
		return
	}
	user, err := a.store.User(r.Context(), p.UserID)
	if err != nil {
		handlePolicyError(w, r, err)
		return
	}

	items := []*policy.Objective{}
	// Callers without a resolvable tenant get an empty page, never the
	// global set.
	if filter, ok := policy.ListFilter(policy.ScopeForUser(user)); ok {
		objs, err := a.store.ListObjectives(r.Context(), filter)
		if err != nil {
			handlePolicyError(w, r, err)
			return
		}
		for _, obj := range objs {
			visible, err := a.engine.Visibility().CanView(r.Context(), user, obj)
			if err != nil {
				handlePolicyError(w, r, err)
				return
			}
			if visible {
				items = append(items, obj)
			}
		}
	}

	writeJSON(w, http.StatusOK, listObjectivesResponse{
		Items: items,
		AsOf:  time.Now().UTC(),
	})
}

func (a *API) handleObjectiveResource(w http.ResponseWriter, r *http.Request) {
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/objectives/"), "/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	switch r.Method {
	case http.MethodGet:
		a.getObjective(w, r, id)
	case http.MethodPatch:
		a.patchObjective(w, r, id)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPatch)
	}
}

// getObjective masks cross-tenant and invisible objectives as 404: a caller
// must not be able to distinguish "exists elsewhere" from "does not exist".
func (a *API) getObjective(w http.ResponseWriter, r *http.Request, id string) {
	p, ok := a.principal(w, r)
	if !ok {
		return
	}
	user, err := a.store.User(r.Context(), p.UserID)
	if err != nil {
		handlePolicyError(w, r, err)
		return
	}
	obj, err := a.store.Objective(r.Context(), id)
	if err != nil {
		if errors.Is(err, policy.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "objective not found")
			return
		}
		handlePolicyError(w, r, err)
		return
	}
	if err := policy.AssertSameTenant(policy.ScopeForUser(user), obj.OrganizationID); err != nil {
		writeError(w, r, http.StatusNotFound, "objective not found")
		return
	}
	visible, err := a.engine.Visibility().CanView(r.Context(), user, obj)
	if err != nil {
		handlePolicyError(w, r, err)
		return
	}
	if !visible {
		writeError(w, r, http.StatusNotFound, "objective not found")
		return
	}
	writeJSON(w, http.StatusOK, obj)
}

func (a *API) patchObjective(w http.ResponseWriter, r *http.Request, id string) {
	p, ok := a.principal(w, r)
	if !ok {
		return
	}

	var req updateObjectiveRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	var visibility *policy.Visibility
	if req.Visibility != nil {
		v := policy.Visibility(strings.TrimSpace(*req.Visibility))
		if v != policy.VisibilityPublicTenant && v != policy.VisibilityPrivate {
			writeError(w, r, http.StatusBadRequest, "visibility must be PUBLIC_TENANT or PRIVATE")
			return
		}
		visibility = &v
	}

	action := policy.ActionEditOKR
	if req.IsPublished != nil && *req.IsPublished {
		action = policy.ActionPublishOKR
	}
	d, err := a.engine.Decide(r.Context(), policy.DecisionRequest{
		RequestUserID: p.UserID,
		Action:        action,
		Resource:      policy.ResourceContext{ObjectiveID: id},
	})
	if err != nil {
		if errors.Is(err, policy.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "objective not found")
			return
		}
		handlePolicyError(w, r, err)
		return
	}
	if !d.Allow {
		// Objectives the caller cannot even see stay indistinguishable
		// from absent ones.
		if d.Reason == policy.ReasonPrivateVisibility {
			writeError(w, r, http.StatusNotFound, "objective not found")
			return
		}
		writeJSON(w, http.StatusForbidden, map[string]any{
			"error":  "forbidden",
			"reason": d.Reason,
		})
		return
	}

	obj, err := a.store.UpdateObjective(r.Context(), id, policy.ObjectiveUpdate{
		Title:       req.Title,
		Visibility:  visibility,
		IsPublished: req.IsPublished,
		CycleID:     req.CycleID,
	})
	if err != nil {
		handlePolicyError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "objective.update", map[string]any{
		"objective_id": id,
		"action":       action,
	})
	writeJSON(w, http.StatusOK, obj)
}
