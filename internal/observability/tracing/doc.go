// Package tracing provides OpenTelemetry tracing integration.
//
// It provides:
//   - Middleware: HTTP server spans, W3C trace context extraction, and an
//     X-Trace-Id response header
//   - GetTracer: the package tracer for creating spans elsewhere
//
// The package does not configure a tracer provider or an exporter; it uses
// whatever provider is registered with otel.
//
// Example usage:
//
//	import "scout/internal/observability/tracing"
//
//	handler := tracing.Middleware(mux)
//
//	func process(ctx context.Context) {
//	    ctx, span := tracing.GetTracer().Start(ctx, "process")
//	    defer span.End()
//	    // ... process ...
//	}
package tracing
