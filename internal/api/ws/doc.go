// Package ws streams bundle and service events to WebSocket clients.
//
// Every connection is a subscription with its own id. Clients may pass an
// LDAP filter in the "filter" query parameter to narrow service events.
// Frames are JSON objects:
//
//	{"type":"bundle","event":"STARTED","bundle":"org.example.core","state":"ACTIVE","time":"..."}
//	{"type":"service","event":"REGISTERED","service_id":3,"interfaces":["..."],"bundle":"...","time":"..."}
package ws
