// Package testutil provides fixtures and mocks shared by the package tests:
// bundle directories and archives written to t.TempDir(), a testify mock
// activator and an event recorder.
package testutil
