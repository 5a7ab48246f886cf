package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/kikokikok/aeterna-sub004/internal/httpserver/auth"
	"github.com/kikokikok/aeterna-sub004/internal/knowledge"
)

// KnowledgeHandler exposes the Knowledge Repository over HTTP.
type KnowledgeHandler struct {
	*Base
	Repo *knowledge.Repository
}

func NewKnowledgeHandler(base *Base, repo *knowledge.Repository) *KnowledgeHandler {
	return &KnowledgeHandler{Base: base, Repo: repo}
}

type proposeRequest struct {
	Type        knowledge.Type         `json:"type"`
	Layer       knowledge.Layer        `json:"layer"`
	Title       string                 `json:"title"`
	Summary     string                 `json:"summary"`
	Content     string                 `json:"content"`
	Severity    knowledge.Severity     `json:"severity,omitempty"`
	Constraints []knowledge.Constraint `json:"constraints,omitempty"`
	Tags        []string               `json:"tags,omitempty"`
}

// Propose handles POST /api/v1/{tenant}/knowledge.
func (h *KnowledgeHandler) Propose(w ErrorResponseWriter, r *http.Request) {
	tc, err := tenancyFromRequest(r)
	if err != nil {
		w.RespondWithError(err)
		return
	}
	var req proposeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	item, err := h.Repo.Propose(r.Context(), tc, knowledge.ProposeInput{
		Type: req.Type, Layer: req.Layer, Title: req.Title, Summary: req.Summary,
		Content: req.Content, Severity: req.Severity, Constraints: req.Constraints, Tags: req.Tags,
	})
	if err != nil {
		w.RespondWithError(err)
		return
	}
	RespondWithJSON(w, http.StatusCreated, item)
}

// Get handles GET /api/v1/{tenant}/knowledge/{id}.
func (h *KnowledgeHandler) Get(w ErrorResponseWriter, r *http.Request) {
	tc, err := tenancyFromRequest(r)
	if err != nil {
		w.RespondWithError(err)
		return
	}
	item, err := h.Repo.Get(r.Context(), tc, mux.Vars(r)["id"], knowledge.GetOptions{})
	if err != nil {
		w.RespondWithError(err)
		return
	}
	RespondWithJSON(w, http.StatusOK, item)
}

// Query handles GET /api/v1/{tenant}/knowledge.
func (h *KnowledgeHandler) Query(w ErrorResponseWriter, r *http.Request) {
	tc, err := tenancyFromRequest(r)
	if err != nil {
		w.RespondWithError(err)
		return
	}
	q := r.URL.Query()
	filter := knowledge.QueryFilter{}
	if t := q.Get("type"); t != "" {
		filter.Type = knowledge.Type(t)
	}
	if l := q.Get("layer"); l != "" {
		filter.Layer = knowledge.Layer(l)
	}
	if s := q.Get("status"); s != "" {
		filter.Status = knowledge.Status(s)
	}
	items, err := h.Repo.Query(r.Context(), tc, filter)
	if err != nil {
		w.RespondWithError(err)
		return
	}
	RespondWithJSON(w, http.StatusOK, items)
}

type updateStatusRequest struct {
	Status knowledge.Status `json:"status"`
}

// UpdateStatus handles POST /api/v1/{tenant}/knowledge/{id}/status.
func (h *KnowledgeHandler) UpdateStatus(w ErrorResponseWriter, r *http.Request) {
	tc, err := tenancyFromRequest(r)
	if err != nil {
		w.RespondWithError(err)
		return
	}
	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	principal, _ := auth.PrincipalFrom(r.Context())
	item, err := h.Repo.UpdateStatus(r.Context(), tc, mux.Vars(r)["id"], req.Status, knowledge.Actor{
		UserID: principal.UserID, Role: principal.Role,
	})
	if err != nil {
		w.RespondWithError(err)
		return
	}
	RespondWithJSON(w, http.StatusOK, item)
}

// Supersede handles POST /api/v1/{tenant}/knowledge/{id}/supersede.
func (h *KnowledgeHandler) Supersede(w ErrorResponseWriter, r *http.Request) {
	tc, err := tenancyFromRequest(r)
	if err != nil {
		w.RespondWithError(err)
		return
	}
	var req proposeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	principal, _ := auth.PrincipalFrom(r.Context())
	item, err := h.Repo.Supersede(r.Context(), tc, mux.Vars(r)["id"], knowledge.ProposeInput{
		Type: req.Type, Layer: req.Layer, Title: req.Title, Summary: req.Summary,
		Content: req.Content, Severity: req.Severity, Constraints: req.Constraints, Tags: req.Tags,
	}, knowledge.Actor{UserID: principal.UserID, Role: principal.Role})
	if err != nil {
		w.RespondWithError(err)
		return
	}
	RespondWithJSON(w, http.StatusOK, item)
}
