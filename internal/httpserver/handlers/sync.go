package handlers

import (
	"net/http"

	"github.com/kikokikok/aeterna-sub004/internal/syncbridge"
)

// SyncHandler exposes the Memory-Knowledge Sync Bridge over HTTP.
type SyncHandler struct {
	*Base
	Bridge *syncbridge.Bridge
}

func NewSyncHandler(base *Base, bridge *syncbridge.Bridge) *SyncHandler {
	return &SyncHandler{Base: base, Bridge: bridge}
}

// RunCycle handles POST /api/v1/{tenant}/sync/run.
func (h *SyncHandler) RunCycle(w ErrorResponseWriter, r *http.Request) {
	tc, err := tenancyFromRequest(r)
	if err != nil {
		w.RespondWithError(err)
		return
	}
	result, err := h.Bridge.RunCycle(r.Context(), tc)
	if err != nil {
		w.RespondWithError(err)
		return
	}
	RespondWithJSON(w, http.StatusOK, result)
}

// Health handles GET /api/v1/{tenant}/sync/health.
func (h *SyncHandler) Health(w ErrorResponseWriter, r *http.Request) {
	tc, err := tenancyFromRequest(r)
	if err != nil {
		w.RespondWithError(err)
		return
	}
	status, detail, err := h.Bridge.Health(r.Context(), tc.TenantID)
	if err != nil {
		w.RespondWithError(err)
		return
	}
	RespondWithJSON(w, http.StatusOK, map[string]string{"status": string(status), "detail": detail})
}
