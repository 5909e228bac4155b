// Package observability provides structured logging and Prometheus metrics
// for the AI dispatcher.
//
// This package implements:
//   - zap logger construction from configuration
//   - dispatch, initialization and worker pool metrics
//   - the /metrics handler bound to the service registry
package observability
