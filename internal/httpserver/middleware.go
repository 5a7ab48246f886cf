package httpserver

import (
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/kikokikok/aeterna-sub004/internal/httpserver/auth"
	"github.com/kikokikok/aeterna-sub004/internal/tracing"
)

// AuditLogConfig controls the compliance-oriented audit trail every request
// produces (spec §4.3 "governance events must be attributable"; carried
// over to the transport layer so every mutating HTTP call is traceable to
// a tenant/principal/action independent of which engine handled it).
type AuditLogConfig struct {
	Enabled        bool
	IncludeHeaders []string
}

// tenantPattern extracts the tenant id from API paths like
// /api/v1/{tenant}/memory/{id}.
var tenantPattern = regexp.MustCompile(`^/api/v1/([^/]+)(?:/|$)`)

// auditLoggingMiddleware logs through a logr.Logger bridged from the
// process's zap.Logger via zapr, matching the teacher's handler-layer
// logging convention (logr.Logger plumbed in, zap doing the actual
// writing) rather than calling zap directly at this boundary.
func auditLoggingMiddleware(zapLog *zap.Logger, config AuditLogConfig) func(http.Handler) http.Handler {
	var log logr.Logger = zapr.NewLogger(zapLog).WithName("audit")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !config.Enabled {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" {
				requestID = uuid.New().String()
			}

			userID, role := "anonymous", ""
			if p, ok := auth.PrincipalFrom(r.Context()); ok {
				userID = p.UserID
				role = p.Role.String()
			}

			kv := []any{
				"request_id", requestID,
				"user_id", userID,
				"role", role,
				"tenant_id", extractTenant(r),
				"method", r.Method,
				"path", r.URL.Path,
				"remote_addr", r.RemoteAddr,
			}
			for _, h := range config.IncludeHeaders {
				if v := r.Header.Get(h); v != "" {
					kv = append(kv, "header_"+strings.ToLower(strings.ReplaceAll(h, "-", "_")), v)
				}
			}

			ww := newStatusResponseWriter(w)
			log.V(1).Info("audit: request started", kv...)

			next.ServeHTTP(ww, r)

			duration := time.Since(start)
			completed := append(kv,
				"status", ww.status,
				"result", resultCategory(ww.status),
				"duration", duration,
			)
			if ww.status >= 500 {
				log.Error(nil, "audit: request completed", completed...)
			} else {
				log.Info("audit: request completed", completed...)
			}
		})
	}
}


func extractTenant(r *http.Request) string {
	if m := tenantPattern.FindStringSubmatch(r.URL.Path); len(m) > 1 {
		return m[1]
	}
	if t := r.Header.Get("X-Aeterna-Tenant-Id"); t != "" {
		return t
	}
	return "unknown"
}

func resultCategory(status int) string {
	switch {
	case status >= 200 && status < 300:
		return "success"
	case status >= 300 && status < 400:
		return "redirect"
	case status >= 400 && status < 500:
		return "client_error"
	case status >= 500:
		return "server_error"
	default:
		return "unknown"
	}
}

// tracingMiddleware opens one span per top-level operation (spec §5), the
// outermost suspension point every request passes through before fanning out
// into embedding/summarizer/storage/event-emission spans further down.
func tracingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracing.Tracer().Start(r.Context(), r.Method+" "+r.URL.Path)
		defer span.End()

		span.SetAttributes(
			attribute.String("aeterna.tenant_id", extractTenant(r)),
			attribute.String("http.method", r.Method),
			attribute.String("http.path", r.URL.Path),
		)

		ww := newStatusResponseWriter(w)
		next.ServeHTTP(ww, r.WithContext(ctx))

		span.SetAttributes(attribute.Int("http.status_code", ww.status))
		if ww.status >= 500 {
			span.SetStatus(codes.Error, resultCategory(ww.status))
		}
	})
}

func loggingMiddleware(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := newStatusResponseWriter(w)
			next.ServeHTTP(ww, r)
			log.Debug("request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}

var _ http.Flusher = &statusResponseWriter{}

type statusResponseWriter struct {
	http.ResponseWriter
	status int
}

func newStatusResponseWriter(w http.ResponseWriter) *statusResponseWriter {
	return &statusResponseWriter{w, http.StatusOK}
}

func (w *statusResponseWriter) Flush() {
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func (w *statusResponseWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func contentTypeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api") {
			w.Header().Set("Content-Type", "application/json")
		}
		next.ServeHTTP(w, r)
	})
}
