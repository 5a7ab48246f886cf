package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/kikokikok/aeterna-sub004/internal/memory"
	"github.com/kikokikok/aeterna-sub004/pkg/aeternaerr"
	"github.com/kikokikok/aeterna-sub004/pkg/tenancy"
)

// MemoryHandler exposes the Hierarchical Memory Engine over HTTP.
type MemoryHandler struct {
	*Base
	Engine *memory.Engine
}

func NewMemoryHandler(base *Base, engine *memory.Engine) *MemoryHandler {
	return &MemoryHandler{Base: base, Engine: engine}
}

type addMemoryRequest struct {
	Layer    string         `json:"layer"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Add handles POST /api/v1/{tenant}/memory.
func (h *MemoryHandler) Add(w ErrorResponseWriter, r *http.Request) {
	tc, err := tenancyFromRequest(r)
	if err != nil {
		w.RespondWithError(err)
		return
	}
	var req addMemoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	entry, err := h.Engine.Add(r.Context(), tc, memory.AddInput{
		Layer: memory.Layer(req.Layer), Content: req.Content, Metadata: req.Metadata,
	})
	if err != nil {
		w.RespondWithError(err)
		return
	}
	RespondWithJSON(w, http.StatusCreated, entry)
}

// Get handles GET /api/v1/{tenant}/memory/{id}.
func (h *MemoryHandler) Get(w ErrorResponseWriter, r *http.Request) {
	tc, err := tenancyFromRequest(r)
	if err != nil {
		w.RespondWithError(err)
		return
	}
	entry, err := h.Engine.Get(r.Context(), tc, mux.Vars(r)["id"])
	if err != nil {
		w.RespondWithError(err)
		return
	}
	RespondWithJSON(w, http.StatusOK, entry)
}

type searchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
}

// Search handles POST /api/v1/{tenant}/memory/search.
func (h *MemoryHandler) Search(w ErrorResponseWriter, r *http.Request) {
	tc, err := tenancyFromRequest(r)
	if err != nil {
		w.RespondWithError(err)
		return
	}
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	results, err := h.Engine.Search(r.Context(), tc, req.Query, memory.SearchOptions{Limit: req.Limit})
	if err != nil {
		w.RespondWithError(err)
		return
	}
	RespondWithJSON(w, http.StatusOK, results)
}

// List handles GET /api/v1/{tenant}/memory.
func (h *MemoryHandler) List(w ErrorResponseWriter, r *http.Request) {
	tc, err := tenancyFromRequest(r)
	if err != nil {
		w.RespondWithError(err)
		return
	}
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, parseErr := strconv.Atoi(l); parseErr == nil {
			limit = parsed
		}
	}
	var layer memory.Layer
	if l := r.URL.Query().Get("layer"); l != "" {
		layer = memory.Layer(l)
	}
	entries, next, err := h.Engine.List(r.Context(), tc, memory.ListFilter{Layer: layer}, r.URL.Query().Get("cursor"), limit)
	if err != nil {
		w.RespondWithError(err)
		return
	}
	RespondWithJSON(w, http.StatusOK, map[string]any{"items": entries, "next_cursor": next})
}

// Delete handles DELETE /api/v1/{tenant}/memory/{id}.
func (h *MemoryHandler) Delete(w ErrorResponseWriter, r *http.Request) {
	tc, err := tenancyFromRequest(r)
	if err != nil {
		w.RespondWithError(err)
		return
	}
	if err := h.Engine.Delete(r.Context(), tc, mux.Vars(r)["id"]); err != nil {
		w.RespondWithError(err)
		return
	}
	RespondWithJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// Promote handles POST /api/v1/{tenant}/memory/{id}/promote.
func (h *MemoryHandler) Promote(w ErrorResponseWriter, r *http.Request) {
	tc, err := tenancyFromRequest(r)
	if err != nil {
		w.RespondWithError(err)
		return
	}
	var req struct {
		Target memory.Layer `json:"target"`
		Reason string       `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	entry, err := h.Engine.Promote(r.Context(), tc, mux.Vars(r)["id"], req.Target, req.Reason)
	if err != nil {
		w.RespondWithError(err)
		return
	}
	RespondWithJSON(w, http.StatusOK, entry)
}

// tenancyFromRequest builds a tenancy.Context from the path/header
// identifiers every handler needs; a missing tenant id surfaces as the
// same CodeMissingTenantContext error the engines themselves return for a
// zero-value tenancy.Context.
func tenancyFromRequest(r *http.Request) (tenancy.Context, error) {
	tenantID := mux.Vars(r)["tenant"]
	if tenantID == "" {
		return tenancy.Context{}, aeternaerr.MissingTenantContext("httpserver.tenancyFromRequest")
	}
	return tenancy.Context{
		TenantID:  tenantID,
		AgentID:   r.Header.Get("X-Aeterna-Agent-Id"),
		UserID:    r.Header.Get("X-Aeterna-User-Id"),
		SessionID: r.Header.Get("X-Aeterna-Session-Id"),
		ProjectID: r.Header.Get("X-Aeterna-Project-Id"),
		TeamID:    r.Header.Get("X-Aeterna-Team-Id"),
		OrgID:     r.Header.Get("X-Aeterna-Org-Id"),
		CompanyID: r.Header.Get("X-Aeterna-Company-Id"),
	}, nil
}
