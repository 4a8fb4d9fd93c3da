package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"alignd.io/internal/auth"
	"alignd.io/internal/flags"
	"alignd.io/internal/policy"
	"alignd.io/internal/stream"
)

type apiClient struct {
	baseURL string
	client  *http.Client
	t       *testing.T
	api     *API
	store   *policy.MemoryStore
}

// seedStore builds the two-tenant fixture the handler tests run against.
func seedStore(t *testing.T) *policy.MemoryStore {
	t.Helper()
	s := policy.NewMemoryStore()

	s.PutOrganization(policy.Organization{ID: "org-acme", Name: "Acme"})
	s.PutOrganization(policy.Organization{ID: "org-globex", Name: "Globex"})

	s.PutWorkspace(policy.Workspace{ID: "ws-product", OrganizationID: "org-acme"})
	s.PutWorkspace(policy.Workspace{ID: "ws-growth", OrganizationID: "org-acme", ParentID: "ws-product"})
	s.PutWorkspace(policy.Workspace{ID: "ws-globex", OrganizationID: "org-globex"})
	s.PutTeam(policy.Team{ID: "team-platform", WorkspaceID: "ws-product"})

	s.PutCycle(policy.Cycle{ID: "cycle-active", OrganizationID: "org-acme", Status: policy.CycleActive})
	s.PutCycle(policy.Cycle{ID: "cycle-locked", OrganizationID: "org-acme", Status: policy.CycleLocked})

	s.PutUser(policy.User{ID: "user-alice", OrganizationID: "org-acme"})
	s.PutUser(policy.User{ID: "user-bob", OrganizationID: "org-acme"})
	s.PutUser(policy.User{ID: "user-carol", OrganizationID: "org-acme"})
	s.PutUser(policy.User{ID: "user-frank", OrganizationID: "org-acme"})
	s.PutUser(policy.User{ID: "user-grace", OrganizationID: "org-acme"})
	s.PutUser(policy.User{ID: "user-dave", OrganizationID: "org-globex"})
	s.PutUser(policy.User{ID: "user-root", OrganizationID: "org-globex", IsSuperuser: true})

	ctx := context.Background()
	grants := []policy.RoleAssignment{
		{UserID: "user-bob", Role: policy.RoleTenantAdmin, ScopeType: policy.ScopeTenant, ScopeID: "org-acme"},
		{UserID: "user-frank", Role: policy.RoleTeamLead, ScopeType: policy.ScopeTeam, ScopeID: "team-platform"},
		{UserID: "user-grace", Role: policy.RoleWorkspaceLead, ScopeType: policy.ScopeWorkspace, ScopeID: "ws-product"},
	}
	for _, g := range grants {
		if err := s.Grant(ctx, g); err != nil {
			t.Fatalf("seed grant: %v", err)
		}
	}

	s.PutObjective(policy.Objective{
		ID: "obj-public", OrganizationID: "org-acme", WorkspaceID: "ws-product",
		TeamID: "team-platform", OwnerID: "user-alice",
		Visibility: policy.VisibilityPublicTenant, CycleID: "cycle-active",
	})
	s.PutObjective(policy.Objective{
		ID: "obj-private", OrganizationID: "org-acme", WorkspaceID: "ws-product",
		OwnerID: "user-alice", Visibility: policy.VisibilityPrivate, CycleID: "cycle-active",
	})
	s.PutObjective(policy.Objective{
		ID: "obj-published", OrganizationID: "org-acme", WorkspaceID: "ws-product",
		TeamID: "team-platform", OwnerID: "user-alice",
		Visibility: policy.VisibilityPublicTenant, IsPublished: true, CycleID: "cycle-active",
	})
	return s
}

func newTestAPI(t *testing.T) *apiClient {
	t.Helper()

	t.Setenv("ALIGND_AUTH_SECRET", "test-secret")
	auth.ResetSecretForTests()
	t.Cleanup(auth.ResetSecretForTests)

	store := seedStore(t)
	api := New(ReadyProbe{}, "test", store, flags.New(), stream.New())
	api.rateBurst = 1000
	api.ratePerSec = 1000

	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)

	return &apiClient{
		baseURL: srv.URL,
		client:  srv.Client(),
		t:       t,
		api:     api,
		store:   store,
	}
}

func (c *apiClient) do(method, path string, body any, headers map[string]string) *http.Response {
	c.t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal body: %v", err)
		}
	}
	req, err := http.NewRequest(method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("do request: %v", err)
	}
	return resp
}

func (c *apiClient) post(path string, body any, headers map[string]string) *http.Response {
	return c.do(http.MethodPost, path, body, headers)
}

func (c *apiClient) get(path string, params url.Values, headers map[string]string) *http.Response {
	c.t.Helper()
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		c.t.Fatalf("parse url: %v", err)
	}
	if params != nil {
		u.RawQuery = params.Encode()
	}
	req, err := http.NewRequest(http.MethodGet, u.String(), nil)
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("get request: %v", err)
	}
	return resp
}

// asUser mints a token for one of the seeded users and returns the auth header.
func (c *apiClient) asUser(userID string) map[string]string {
	c.t.Helper()
	u, err := c.store.User(context.Background(), userID)
	if err != nil {
		c.t.Fatalf("unknown seed user %s: %v", userID, err)
	}
	token, err := auth.GenerateToken(u.ID, u.OrganizationID, u.IsSuperuser, tokenTTL)
	if err != nil {
		c.t.Fatalf("mint token: %v", err)
	}
	return map[string]string{"Authorization": "Bearer " + token}
}

func decode[T any](t *testing.T, r *http.Response) T {
	t.Helper()
	defer r.Body.Close()
	var v T
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func TestHealthEndpointsArePublic(t *testing.T) {
	api := newTestAPI(t)

	for _, path := range []string{"/healthz", "/readyz"} {
		resp := api.get(path, nil, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, resp.StatusCode)
		}
		resp.Body.Close()
	}
}

func TestAPIEnforcesAuth(t *testing.T) {
	api := newTestAPI(t)

	resp := api.get("/v1/objectives", nil, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	body := decode[map[string]any](t, resp)
	if body["error"] == "" {
		t.Fatalf("expected error message")
	}

	garbage := api.get("/v1/objectives", nil, map[string]string{"Authorization": "Bearer not-a-token"})
	defer garbage.Body.Close()
	if garbage.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for garbage token, got %d", garbage.StatusCode)
	}
}

func TestTokenEndpointValidation(t *testing.T) {
	api := newTestAPI(t)

	resp := api.post("/v1/auth/token", map[string]any{"user": ""}, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}

	// Non-superuser tokens need a tenant.
	resp = api.post("/v1/auth/token", map[string]any{"user": "user-x"}, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing org, got %d", resp.StatusCode)
	}

	resp = api.post("/v1/auth/token", map[string]any{"user": "user-x", "org": "org-acme"}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	payload := decode[tokenResponse](t, resp)
	if payload.Token == "" {
		t.Fatalf("expected a token")
	}
}

func TestSystemStatusIsSuperuserOnly(t *testing.T) {
	api := newTestAPI(t)

	resp := api.get("/v1/system/status", nil, api.asUser("user-bob"))
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for tenant admin, got %d", resp.StatusCode)
	}

	resp = api.get("/v1/system/status", nil, api.asUser("user-root"))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	payload := decode[map[string]any](t, resp)
	flagsMap, ok := payload["flags"].(map[string]any)
	if !ok {
		t.Fatalf("expected flags in status payload: %v", payload)
	}
	if _, ok := flagsMap["rbacInspector"]; !ok {
		t.Fatalf("expected rbacInspector flag in status payload")
	}
}
