// Package component defines lifecycle-managed parts of a relay service.
//
// The discovery backend and the HTTP server are components: the bootstrap
// package starts them in registration order, reports their health on
// /health and stops them in reverse order on shutdown.
package component
