package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/kikokikok/aeterna-sub004/internal/contextarchitect"
)

// ContextHandler exposes the Context Architect's budgeted assembly over
// HTTP for callers that want a ready-to-inject prompt context rather than
// calling the Memory/Knowledge engines directly.
type ContextHandler struct {
	*Base
	Architect *contextarchitect.Architect
}

func NewContextHandler(base *Base, architect *contextarchitect.Architect) *ContextHandler {
	return &ContextHandler{Base: base, Architect: architect}
}

type assembleRequest struct {
	Query       string                          `json:"query"`
	TokenBudget int                             `json:"token_budget"`
	Layers      []contextarchitect.LayerVector  `json:"layers"`
}

// Assemble handles POST /api/v1/{tenant}/context/assemble. It embeds the
// query, scores each supplied layer vector by cosine similarity, and
// greedily fills the token budget with the highest-priority summaries.
func (h *ContextHandler) Assemble(w ErrorResponseWriter, r *http.Request) {
	tc, err := tenancyFromRequest(r)
	if err != nil {
		w.RespondWithError(err)
		return
	}
	var req assembleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	result, err := h.Architect.AssembleForQuery(r.Context(), tc.TenantID, req.Query, req.Layers, req.TokenBudget)
	if err != nil {
		w.RespondWithError(err)
		return
	}
	RespondWithJSON(w, http.StatusOK, result)
}
