package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/kikokikok/aeterna-sub004/internal/governance"
	"github.com/kikokikok/aeterna-sub004/internal/httpserver/auth"
	"github.com/kikokikok/aeterna-sub004/pkg/tenancy"
)

// GovernanceHandler exposes organizational unit management, policy
// resolution, and drift checking over HTTP.
type GovernanceHandler struct {
	*Base
	Engine       *governance.Engine
	Suppressions governance.DriftSuppressionStore
}

func NewGovernanceHandler(base *Base, engine *governance.Engine, suppressions governance.DriftSuppressionStore) *GovernanceHandler {
	return &GovernanceHandler{Base: base, Engine: engine, Suppressions: suppressions}
}

type createUnitRequest struct {
	Name     string           `json:"name"`
	Type     tenancy.UnitType `json:"type"`
	ParentID string           `json:"parent_id,omitempty"`
}

// CreateUnit handles POST /api/v1/{tenant}/governance/units.
func (h *GovernanceHandler) CreateUnit(w ErrorResponseWriter, r *http.Request) {
	tc, err := tenancyFromRequest(r)
	if err != nil {
		w.RespondWithError(err)
		return
	}
	var req createUnitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	unit, err := h.Engine.CreateUnit(r.Context(), tc, req.Name, req.Type, req.ParentID)
	if err != nil {
		w.RespondWithError(err)
		return
	}
	RespondWithJSON(w, http.StatusCreated, unit)
}

// Navigate handles GET /api/v1/{tenant}/governance/units/{id}/navigate?direction=Ancestors|Descendants.
func (h *GovernanceHandler) Navigate(w ErrorResponseWriter, r *http.Request) {
	tc, err := tenancyFromRequest(r)
	if err != nil {
		w.RespondWithError(err)
		return
	}
	direction := governance.NavigateDirection(r.URL.Query().Get("direction"))
	if direction == "" {
		direction = governance.DirectionDescendants
	}
	units, err := h.Engine.Navigate(r.Context(), tc, mux.Vars(r)["id"], direction)
	if err != nil {
		w.RespondWithError(err)
		return
	}
	RespondWithJSON(w, http.StatusOK, units)
}

type assignRoleRequest struct {
	UserID string       `json:"user_id"`
	UnitID string       `json:"unit_id"`
	Role   tenancy.Role `json:"role"`
}

// AssignRole handles POST /api/v1/{tenant}/governance/roles.
func (h *GovernanceHandler) AssignRole(w ErrorResponseWriter, r *http.Request) {
	tc, err := tenancyFromRequest(r)
	if err != nil {
		w.RespondWithError(err)
		return
	}
	var req assignRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	principal, _ := auth.PrincipalFrom(r.Context())
	err = h.Engine.AssignRole(r.Context(), tc, governance.RoleAssignment{
		UserID: req.UserID, UnitID: req.UnitID, Role: req.Role,
	}, principal.Role)
	if err != nil {
		w.RespondWithError(err)
		return
	}
	RespondWithJSON(w, http.StatusOK, map[string]string{"status": "assigned"})
}

// RemoveRole handles DELETE /api/v1/{tenant}/governance/roles/{unit}/{user}.
func (h *GovernanceHandler) RemoveRole(w ErrorResponseWriter, r *http.Request) {
	tc, err := tenancyFromRequest(r)
	if err != nil {
		w.RespondWithError(err)
		return
	}
	vars := mux.Vars(r)
	if err := h.Engine.RemoveRole(r.Context(), tc, vars["user"], vars["unit"]); err != nil {
		w.RespondWithError(err)
		return
	}
	RespondWithJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

// ResolvePolicy handles GET /api/v1/{tenant}/governance/units/{id}/policy.
// It resolves the unit path from root to {id} and folds every attached
// policy along that path into a single accumulated rule set.
func (h *GovernanceHandler) ResolvePolicy(w ErrorResponseWriter, r *http.Request) {
	tc, err := tenancyFromRequest(r)
	if err != nil {
		w.RespondWithError(err)
		return
	}
	principal, _ := auth.PrincipalFrom(r.Context())
	path, err := h.Engine.UnitPath(r.Context(), tc, mux.Vars(r)["id"])
	if err != nil {
		w.RespondWithError(err)
		return
	}
	rules, err := h.Engine.ResolvePolicy(r.Context(), tc, path, principal.Role)
	if err != nil {
		w.RespondWithError(err)
		return
	}
	RespondWithJSON(w, http.StatusOK, map[string]any{"rules": rules})
}

type checkDriftRequest struct {
	ProjectID        string                            `json:"project_id"`
	Rules            []governance.PolicyRule           `json:"rules"`
	Context          governance.EvalContext            `json:"context"`
	Provenance       []governance.DetectionProvenance  `json:"provenance,omitempty"`
	AutoSuppressInfo bool                               `json:"auto_suppress_info,omitempty"`
}

// CheckDrift handles POST /api/v1/{tenant}/governance/drift.
func (h *GovernanceHandler) CheckDrift(w ErrorResponseWriter, r *http.Request) {
	tc, err := tenancyFromRequest(r)
	if err != nil {
		w.RespondWithError(err)
		return
	}
	if h.Suppressions == nil {
		RespondWithError(w, http.StatusInternalServerError, "drift suppression store not configured")
		return
	}
	var req checkDriftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	result, err := h.Engine.CheckDrift(r.Context(), tc, req.ProjectID, req.Rules, req.Context, req.Provenance, req.AutoSuppressInfo, h.Suppressions)
	if err != nil {
		w.RespondWithError(err)
		return
	}
	RespondWithJSON(w, http.StatusOK, result)
}
