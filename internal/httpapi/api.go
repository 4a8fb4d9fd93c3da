package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"alignd.io/internal/audit"
	"alignd.io/internal/flags"
	"alignd.io/internal/obs"
	"alignd.io/internal/policy"
	"alignd.io/internal/stream"
)

// ReadyProbe reports whether downstream dependencies are reachable.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// API is the HTTP layer over the policy engine and its stores.
type API struct {
	mux        *http.ServeMux
	readyProbe ReadyProbe
	version    string

	store  policy.Store
	engine *policy.Engine
	grants *policy.GrantService
	flags  *flags.Set
	stream *stream.Stream

	rateBurst  int
	ratePerSec int
}

func New(rp ReadyProbe, version string, store policy.Store, fl *flags.Set, st *stream.Stream) *API {
	a := &API{
		mux:        http.NewServeMux(),
		readyProbe: rp,
		version:    version,
		store:      store,
		flags:      fl,
		stream:     st,
		rateBurst:  20,
		ratePerSec: 10,
	}
	if a.flags == nil {
		a.flags = flags.New()
	}

	a.engine = policy.NewEngine(store, policy.WithAudit(func(ctx context.Context, d policy.Decision) {
		audit.RecordDecision(ctx, d)
		if a.stream != nil {
			a.stream.Publish(stream.FromDecision(d))
		}
	}))
	a.grants = policy.NewGrantService(store, a.engine.Roles())

	// health/ready/status
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/system/status", a.handleSystemStatus)

	// auth
	a.mux.HandleFunc("/v1/auth/token", a.handleAuthToken)

	// policy explorer
	a.mux.HandleFunc("/v1/policy/decide", a.handlePolicyDecide)
	a.mux.HandleFunc("/v1/policy/stream", a.handlePolicyStream)

	// tenant administration
	a.mux.HandleFunc("/v1/organizations/", a.handleOrganizationResource)
	a.mux.HandleFunc("/v1/users/", a.handleUserResource)
	a.mux.HandleFunc("/v1/workspaces/", a.handleWorkspaceResource)

	// objectives
	a.mux.HandleFunc("/v1/objectives", a.handleObjectivesCollection)
	a.mux.HandleFunc("/v1/objectives/", a.handleObjectiveResource)

	// Prometheus metrics
	a.mux.Handle("/metrics", obs.Handler())

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Engine exposes the decision engine for callers wiring extra surfaces.
func (a *API) Engine() *policy.Engine { return a.engine }

// Handler assembles the middleware chain around the mux.
func (a *API) Handler() http.Handler {
	h := a.withAuth(a.mux)
	h = MaxBodyBytes(h, 1<<20)
	h = RateLimit(h, a.rateBurst, a.ratePerSec)
	h = LoggingJSON(h)
	h = RequestID(h)
	h = SecurityHeaders(h)
	return obs.Instrument(h)
}

// --- system handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "alignd-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) handleSystemStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if !a.requireSuperuser(w, r) {
		return
	}
	subscribers := 0
	if a.stream != nil {
		subscribers = a.stream.SubscriberCount()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "alignd-api",
		"version": a.version,
		"time":    time.Now().UTC().Format(time.RFC3339),
		"flags": map[string]bool{
			flags.RBACInspector: a.flags.Enabled(flags.RBACInspector),
		},
		"stream_subscribers": subscribers,
	})
}
