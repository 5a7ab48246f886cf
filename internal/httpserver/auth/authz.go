// Package auth adapts aeterna's tenancy/governance model to the HTTP
// operation surface: who is calling, and what they are allowed to do.
package auth

import (
	"context"
	"fmt"
	"net/http"

	"github.com/kikokikok/aeterna-sub004/pkg/tenancy"
)

// Principal is the authenticated caller, resolved from the request by a
// Provider before Authorizer.Check runs.
type Principal struct {
	UserID   string
	TenantID string
	Role     tenancy.Role
}

// Verb is the action a request performs against a Resource.
type Verb string

const (
	VerbGet    Verb = "get"
	VerbCreate Verb = "create"
	VerbUpdate Verb = "update"
	VerbDelete Verb = "delete"
)

// Resource identifies what a request acts on, for authorization decisions.
type Resource struct {
	Type string // "memory", "knowledge", "policy", "unit", ...
	ID   string
}

// AuthzRequest is the engine-agnostic shape a Provider translates to/from
// an external decision engine's wire format.
type AuthzRequest struct {
	Principal Principal
	Verb      Verb
	Resource  Resource
}

// AuthzDecision is the engine-agnostic result of an authorization check.
type AuthzDecision struct {
	Allowed bool
	Reason  string
}

// Authorizer decides whether a Principal may perform Verb on Resource.
type Authorizer interface {
	Check(ctx context.Context, req AuthzRequest) (*AuthzDecision, error)
}

// NoopAuthorizer allows every request; used for local development and
// single-tenant deployments with no external policy engine configured.
type NoopAuthorizer struct{}

func (a *NoopAuthorizer) Check(context.Context, AuthzRequest) (*AuthzDecision, error) {
	return &AuthzDecision{Allowed: true}, nil
}

var _ Authorizer = (*NoopAuthorizer)(nil)

// ReadOnlyAuthorizer allows only Get operations, rejecting every mutation.
// Useful when the operation surface is mounted behind a reporting/GitOps
// view where writes should flow through another path.
type ReadOnlyAuthorizer struct{}

func (a *ReadOnlyAuthorizer) Check(_ context.Context, req AuthzRequest) (*AuthzDecision, error) {
	if req.Verb == VerbGet {
		return &AuthzDecision{Allowed: true}, nil
	}
	return &AuthzDecision{Allowed: false, Reason: fmt.Sprintf("read-only mode: %s on %s is not allowed", req.Verb, req.Resource.Type)}, nil
}

var _ Authorizer = (*ReadOnlyAuthorizer)(nil)

// RoleDominanceAuthorizer gates mutating verbs on the caller's role
// dominating a fixed minimum role per resource type, using the same
// Role.Dominates ordering the Governance Engine enforces internally
// (spec §4.3.1).
type RoleDominanceAuthorizer struct {
	MinimumRole map[string]tenancy.Role // resource type -> minimum role for Create/Update/Delete
}

func (a *RoleDominanceAuthorizer) Check(_ context.Context, req AuthzRequest) (*AuthzDecision, error) {
	if req.Verb == VerbGet {
		return &AuthzDecision{Allowed: true}, nil
	}
	min, ok := a.MinimumRole[req.Resource.Type]
	if !ok {
		return &AuthzDecision{Allowed: true}, nil
	}
	if req.Principal.Role.Dominates(min) {
		return &AuthzDecision{Allowed: true}, nil
	}
	return &AuthzDecision{Allowed: false, Reason: fmt.Sprintf("role %s does not dominate required role %s for %s", req.Principal.Role, min, req.Resource.Type)}, nil
}

var _ Authorizer = (*RoleDominanceAuthorizer)(nil)

type principalKey struct{}

// WithPrincipal attaches a resolved Principal to the request context for
// downstream handlers and audit middleware to read.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom extracts the Principal a Provider resolved earlier in the
// middleware chain.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

// staticHeaderPrincipal resolves a Principal from trusted proxy headers
// (spec assumes authentication happens upstream; this wires identity
// through to tenancy-scoped authorization, not authentication itself).
func staticHeaderPrincipal(r *http.Request) Principal {
	return Principal{
		UserID:   r.Header.Get("X-Aeterna-User-Id"),
		TenantID: r.Header.Get("X-Aeterna-Tenant-Id"),
		Role:     tenancy.ParseRole(r.Header.Get("X-Aeterna-Role")),
	}
}

// AuthnMiddleware resolves a Principal from the request and attaches it to
// the context for Authorizer and downstream handlers to consume.
func AuthnMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := staticHeaderPrincipal(r)
		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
	})
}
