package httpapi

import (
	"net/http"
	"strings"
	"time"

	"alignd.io/internal/audit"
	"alignd.io/internal/auth"
)

type tokenRequest struct {
	User      string `json:"user"`
	Org       string `json:"org"`
	Superuser bool   `json:"superuser"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

const tokenTTL = 15 * time.Minute

// handleAuthToken mints short-lived development tokens. Production callers
// receive tokens from the identity service upstream; this endpoint exists so
// the API is exercisable standalone.
func (a *API) handleAuthToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req tokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	user := strings.TrimSpace(req.User)
	if user == "" {
		writeError(w, r, http.StatusBadRequest, "user is required")
		return
	}
	org := strings.TrimSpace(req.Org)
	if org == "" && !req.Superuser {
		writeError(w, r, http.StatusBadRequest, "org is required for non-superuser tokens")
		return
	}

	token, err := auth.GenerateToken(user, org, req.Superuser, tokenTTL)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "token generation failed")
		return
	}

	expiresAt := time.Now().UTC().Add(tokenTTL)
	_ = audit.LogEvent(r.Context(), "auth.token.issued", map[string]any{
		"user":       user,
		"org":        org,
		"superuser":  req.Superuser,
		"expires_at": expiresAt.Format(time.RFC3339),
	})

	writeJSON(w, http.StatusOK, tokenResponse{
		Token:     token,
		ExpiresAt: expiresAt,
	})
}
