// Package tracing provides the single otel.Tracer aeterna's suspension
// points (embedding generation, summarizer calls, storage operations, event
// emission — spec §5) instrument spans against. Exporter wiring (OTLP,
// stdout, or the no-op default) is the caller's responsibility; this package
// only resolves the global TracerProvider.
package tracing

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/kikokikok/aeterna-sub004"

// Tracer returns the shared tracer. Call sites use it directly rather than
// caching it, matching otel's own tracer-lookup guidance (cheap to call,
// picks up a TracerProvider installed after package init via otel.SetTracerProvider).
func Tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}
