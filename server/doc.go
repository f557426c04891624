// Package server provides the HTTP server shared by relay services, using
// Gin behind a root ServeMux with h2c support.
//
// The server follows the component pattern: wrap it with NewComponent and
// register it with the application so it starts after, and stops before,
// the components it serves.
//
// # Middleware
//
// Server-level middleware (server/middleware) wraps every route:
//
//   - Recovery: panic recovery with structured logging
//   - RequestID: X-Request-Id generation and propagation into the logger context
//   - RequestLogger: request logging with duration tracking
//
// # Endpoints
//
// Built-in endpoints (server/endpoint):
//
//   - /health: component health aggregation
//   - /ready: readiness probe
//   - /alive: liveness probe
//   - /info: service name, version and uptime
package server
