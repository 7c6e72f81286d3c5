// Package http implements the introspection REST API of a running platform:
// bundles and their lifecycle, registered services, extension points and
// metrics.
package http
