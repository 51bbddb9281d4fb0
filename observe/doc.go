// Package observe provides observability primitives for content fetches.
//
// It is a pure instrumentation library: no fetching, no transport, no I/O
// beyond exporter setup. Consumers wrap each backend call with Middleware and
// record fallbacks and breaker transitions through Metrics.
//
// Logging is structured JSON backed by zap. Keys listed in RedactedFields never
// reach the output.
package observe
