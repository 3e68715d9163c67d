// Package observability provides monitoring and debugging capabilities
// for the redcell orchestrator through metrics, structured logging, and
// distributed tracing.
//
// The three pillars:
//
//  1. Metrics - Prometheus counters/histograms under the redcell_ prefix,
//     served from the tool server's /metrics endpoint
//  2. Logging - slog-based structured logs with API-key redaction,
//     written to stderr so chat output on stdout stays clean
//  3. Tracing - OpenTelemetry spans over turns, LLM calls, and tool
//     executions, exported via OTLP gRPC when an endpoint is configured
//
// All three are optional at the call site: a nil-safe no-op path keeps
// hot loops cheap when a concern is disabled.
package observability
