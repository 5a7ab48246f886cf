// Package httpserver wires the Memory, Knowledge, Governance, Sync Bridge,
// and Context Architect handlers onto a single gorilla/mux router with the
// shared auth/audit/logging middleware stack.
package httpserver

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kikokikok/aeterna-sub004/internal/contextarchitect"
	"github.com/kikokikok/aeterna-sub004/internal/governance"
	"github.com/kikokikok/aeterna-sub004/internal/httpserver/auth"
	"github.com/kikokikok/aeterna-sub004/internal/httpserver/handlers"
	"github.com/kikokikok/aeterna-sub004/internal/knowledge"
	"github.com/kikokikok/aeterna-sub004/internal/memory"
	"github.com/kikokikok/aeterna-sub004/internal/syncbridge"
)

// Dependencies carries every engine the router dispatches to, plus the
// authorizer and audit configuration that gate and log every request.
type Dependencies struct {
	Log          *zap.Logger
	MemoryEngine *memory.Engine
	Knowledge    *knowledge.Repository
	Governance   *governance.Engine
	Suppressions governance.DriftSuppressionStore
	SyncBridge   *syncbridge.Bridge
	Architect    *contextarchitect.Architect
	Authorizer   auth.Authorizer
	AuditLog     AuditLogConfig
}

// NewRouter builds the full /api/v1/{tenant}/... route tree.
func NewRouter(deps Dependencies) http.Handler {
	base := &handlers.Base{Log: deps.Log}

	memoryH := handlers.NewMemoryHandler(base, deps.MemoryEngine)
	knowledgeH := handlers.NewKnowledgeHandler(base, deps.Knowledge)
	governanceH := handlers.NewGovernanceHandler(base, deps.Governance, deps.Suppressions)
	syncH := handlers.NewSyncHandler(base, deps.SyncBridge)
	contextH := handlers.NewContextHandler(base, deps.Architect)

	r := mux.NewRouter()
	r.Use(contentTypeMiddleware)
	r.Use(tracingMiddleware)
	r.Use(auth.AuthnMiddleware)
	r.Use(auditLoggingMiddleware(deps.Log, deps.AuditLog))
	r.Use(loggingMiddleware(deps.Log))

	authorizer := deps.Authorizer
	if authorizer == nil {
		authorizer = &auth.NoopAuthorizer{}
	}

	api := r.PathPrefix("/api/v1/{tenant}").Subrouter()

	api.Handle("/memory", wrap(base, authorizer, "memory", auth.VerbCreate, memoryH.Add)).Methods(http.MethodPost)
	api.Handle("/memory", wrap(base, authorizer, "memory", auth.VerbGet, memoryH.List)).Methods(http.MethodGet)
	api.Handle("/memory/search", wrap(base, authorizer, "memory", auth.VerbGet, memoryH.Search)).Methods(http.MethodPost)
	api.Handle("/memory/{id}", wrap(base, authorizer, "memory", auth.VerbGet, memoryH.Get)).Methods(http.MethodGet)
	api.Handle("/memory/{id}", wrap(base, authorizer, "memory", auth.VerbDelete, memoryH.Delete)).Methods(http.MethodDelete)
	api.Handle("/memory/{id}/promote", wrap(base, authorizer, "memory", auth.VerbUpdate, memoryH.Promote)).Methods(http.MethodPost)

	api.Handle("/knowledge", wrap(base, authorizer, "knowledge", auth.VerbCreate, knowledgeH.Propose)).Methods(http.MethodPost)
	api.Handle("/knowledge", wrap(base, authorizer, "knowledge", auth.VerbGet, knowledgeH.Query)).Methods(http.MethodGet)
	api.Handle("/knowledge/{id}", wrap(base, authorizer, "knowledge", auth.VerbGet, knowledgeH.Get)).Methods(http.MethodGet)
	api.Handle("/knowledge/{id}/status", wrap(base, authorizer, "knowledge", auth.VerbUpdate, knowledgeH.UpdateStatus)).Methods(http.MethodPost)
	api.Handle("/knowledge/{id}/supersede", wrap(base, authorizer, "knowledge", auth.VerbUpdate, knowledgeH.Supersede)).Methods(http.MethodPost)

	api.Handle("/governance/units", wrap(base, authorizer, "governance_unit", auth.VerbCreate, governanceH.CreateUnit)).Methods(http.MethodPost)
	api.Handle("/governance/units/{id}/navigate", wrap(base, authorizer, "governance_unit", auth.VerbGet, governanceH.Navigate)).Methods(http.MethodGet)
	api.Handle("/governance/units/{id}/policy", wrap(base, authorizer, "governance_policy", auth.VerbGet, governanceH.ResolvePolicy)).Methods(http.MethodGet)
	api.Handle("/governance/roles", wrap(base, authorizer, "governance_role", auth.VerbCreate, governanceH.AssignRole)).Methods(http.MethodPost)
	api.Handle("/governance/roles/{unit}/{user}", wrap(base, authorizer, "governance_role", auth.VerbDelete, governanceH.RemoveRole)).Methods(http.MethodDelete)
	api.Handle("/governance/drift", wrap(base, authorizer, "governance_drift", auth.VerbGet, governanceH.CheckDrift)).Methods(http.MethodPost)

	api.Handle("/sync/run", wrap(base, authorizer, "sync_cycle", auth.VerbCreate, syncH.RunCycle)).Methods(http.MethodPost)
	api.Handle("/sync/health", wrap(base, authorizer, "sync_cycle", auth.VerbGet, syncH.Health)).Methods(http.MethodGet)

	api.Handle("/context/assemble", wrap(base, authorizer, "context", auth.VerbGet, contextH.Assemble)).Methods(http.MethodPost)

	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	return r
}

// handlerFunc is the shape every handlers.*Handler method implements:
// an ErrorResponseWriter instead of a plain http.ResponseWriter so engine
// errors translate to the right HTTP status without duplicating that
// mapping in every handler.
type handlerFunc func(handlers.ErrorResponseWriter, *http.Request)

// wrap resolves the request's resource path into an AuthzRequest, checks it
// against the configured Authorizer, and only then invokes fn with an
// ErrorResponseWriter bound to the shared logger.
func wrap(base *handlers.Base, authorizer auth.Authorizer, resourceType string, verb auth.Verb, fn handlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		erw := handlers.NewErrorResponseWriter(w, base.Log)

		principal, _ := auth.PrincipalFrom(r.Context())
		resourceID := mux.Vars(r)["id"]
		decision, err := authorizer.Check(r.Context(), auth.AuthzRequest{
			Principal: principal,
			Verb:      verb,
			Resource:  auth.Resource{Type: resourceType, ID: resourceID},
		})
		if err != nil {
			erw.RespondWithError(err)
			return
		}
		if decision == nil || !decision.Allowed {
			reason := "denied by policy"
			if decision != nil && decision.Reason != "" {
				reason = decision.Reason
			}
			handlers.RespondWithError(erw, http.StatusForbidden, reason)
			return
		}

		fn(erw, r)
	})
}
