// Package middleware provides gin middleware for the introspection server.
//
// Trace assigns request IDs, CORS opens the API to local tooling and
// RateLimit keeps one client from starving the others.
package middleware
