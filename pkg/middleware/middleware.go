// Package middleware provides the gin middleware chain of the HTTP server.
//
// This package includes:
//   - RequestID: Adds a unique request ID to each request
//   - Logger: Structured request logging
//   - Recovery: Panic recovery with a JSON error response
//   - Timeout: Per-request deadline on the request context
//   - Tracing: OpenTelemetry server spans
//   - Metrics: Request count and latency reporting
//
// Usage:
//
//	engine := gin.New()
//	engine.Use(
//	    middleware.RequestID(),
//	    middleware.Recovery(),
//	    middleware.Logger(),
//	)
package middleware
