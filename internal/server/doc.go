// Package server provides the optional introspection server of a platform.
//
// The server is disabled by default and exposes local state only:
//   - HTTP routing with Gin framework
//   - Middleware stack (recovery, metrics, CORS, rate limiting)
//   - Bundle, service and extension point endpoints
//   - Prometheus metrics and a WebSocket event stream
//
// Example Usage:
//
//	srv := server.New(p)
//	go srv.Run()
//	defer srv.Shutdown(context.Background())
package server
