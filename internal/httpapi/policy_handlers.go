package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"alignd.io/internal/flags"
	"alignd.io/internal/policy"
)

type decideRequest struct {
	UserID   string                 `json:"userId"`
	Action   string                 `json:"action"`
	Resource policy.ResourceContext `json:"resource"`
	Context  map[string]any         `json:"context"`
}

// handlePolicyDecide is the policy explorer: evaluate any user against any
// action and return the full decision. Superuser-only, and hidden entirely
// (404) while the rbacInspector flag is off.
func (a *API) handlePolicyDecide(w http.ResponseWriter, r *http.Request) {
	if !a.flags.Enabled(flags.RBACInspector) {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	p, ok := a.principal(w, r)
	if !ok {
		return
	}
	if !p.Superuser {
		writeError(w, r, http.StatusForbidden, "superuser required")
		return
	}

	var req decideRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Action) == "" {
		writeError(w, r, http.StatusBadRequest, "action is required")
		return
	}

	decision, err := a.engine.Decide(r.Context(), policy.DecisionRequest{
		RequestUserID:   p.UserID,
		EvaluatedUserID: strings.TrimSpace(req.UserID),
		Action:          policy.Action(req.Action),
		Resource:        req.Resource,
		Context:         req.Context,
	})
	if err != nil {
		handlePolicyError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, decision)
}

// handlePolicyStream pushes decision events to superuser subscribers over SSE.
func (a *API) handlePolicyStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if !a.requireSuperuser(w, r) {
		return
	}
	if a.stream == nil {
		writeError(w, r, http.StatusServiceUnavailable, "streaming disabled")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, r, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	ch := a.stream.Subscribe(ctx)

	// Send an initial comment to establish the stream
	_, _ = w.Write([]byte(": stream started\n\n"))
	flusher.Flush()

	for event := range ch {
		payload, err := json.Marshal(event)
		if err != nil {
			continue
		}
		_, _ = w.Write([]byte("data: "))
		_, _ = w.Write(payload)
		_, _ = w.Write([]byte("\n\n"))
		flusher.Flush()
	}
}
