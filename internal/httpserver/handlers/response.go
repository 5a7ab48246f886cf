// Package handlers implements the HTTP operation surface over the Memory
// Engine, Knowledge Repository, Governance Engine, Sync Bridge, and Context
// Architect. Handlers are thin: they decode a request, call one engine
// method, and translate the result or error to JSON.
package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/kikokikok/aeterna-sub004/pkg/aeternaerr"
)

// Base carries the shared dependencies every handler needs.
type Base struct {
	Log *zap.Logger
}

// ErrorResponseWriter lets handlers write a structured JSON error without
// knowing the transport's status-code mapping.
type ErrorResponseWriter interface {
	http.ResponseWriter
	RespondWithError(err error)
}

type errorResponseWriter struct {
	http.ResponseWriter
	log *zap.Logger
}

// NewErrorResponseWriter wraps w so handlers can call RespondWithError
// directly instead of threading status-code decisions through every call
// site.
func NewErrorResponseWriter(w http.ResponseWriter, log *zap.Logger) ErrorResponseWriter {
	return &errorResponseWriter{ResponseWriter: w, log: log}
}

func (w *errorResponseWriter) RespondWithError(err error) {
	status, body := errorToResponse(err)
	w.log.Warn("request failed", zap.Error(err), zap.Int("status", status))
	RespondWithJSON(w, status, body)
}

// errorResponse is the JSON shape returned for any handler error.
type errorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

func errorToResponse(err error) (int, errorResponse) {
	aErr, ok := aeternaerr.As(err)
	if !ok {
		return http.StatusInternalServerError, errorResponse{Error: err.Error()}
	}
	return statusForCode(aErr.Code), errorResponse{Error: aErr.Message, Code: string(aErr.Code), Details: aErr.Details}
}

func statusForCode(code aeternaerr.Code) int {
	switch code {
	case aeternaerr.CodeInvalidInput, aeternaerr.CodeMissingTenantContext, aeternaerr.CodeMissingIdentifier,
		aeternaerr.CodeInvalidTenantContext, aeternaerr.CodeInvalidConstraint, aeternaerr.CodeDimensionMismatch:
		return http.StatusBadRequest
	case aeternaerr.CodeNotFound:
		return http.StatusNotFound
	case aeternaerr.CodeDuplicateId:
		return http.StatusConflict
	case aeternaerr.CodeInsufficientPermissions:
		return http.StatusForbidden
	case aeternaerr.CodePolicyViolation, aeternaerr.CodeInvalidStatusTransition, aeternaerr.CodeFederationConflict:
		return http.StatusUnprocessableEntity
	case aeternaerr.CodeThrottled:
		return http.StatusTooManyRequests
	case aeternaerr.CodeCircuitOpen:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// RespondWithJSON writes v as a JSON response body with the given status.
func RespondWithJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// RespondWithError writes a plain-message JSON error, for handler-local
// validation failures that never reach an engine call.
func RespondWithError(w http.ResponseWriter, status int, message string) {
	RespondWithJSON(w, status, errorResponse{Error: message})
}
