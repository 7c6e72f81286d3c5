package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/mock"

	"github.com/GriffinCanCode/AgentOS/platform/internal/domain/framework"
	"github.com/GriffinCanCode/AgentOS/platform/internal/domain/service"
)

// MockActivator is a mock implementation of framework.Activator.
type MockActivator struct {
	mock.Mock
}

func (m *MockActivator) Start(ctx *framework.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockActivator) Stop(ctx *framework.Context) error {
	return m.Called(ctx).Error(0)
}

// NewMockActivator creates a mock whose expectations are asserted when the
// test ends.
func NewMockActivator(t *testing.T) *MockActivator {
	t.Helper()
	m := new(MockActivator)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

// Recorder collects bundle and service events.
type Recorder struct {
	mu       sync.Mutex
	bundles  []framework.BundleEvent
	services []service.Event
}

// Bundle is a framework.BundleListener.
func (r *Recorder) Bundle(e framework.BundleEvent) {
	r.mu.Lock()
	r.bundles = append(r.bundles, e)
	r.mu.Unlock()
}

// Service is a service.Listener.
func (r *Recorder) Service(e service.Event) {
	r.mu.Lock()
	r.services = append(r.services, e)
	r.mu.Unlock()
}

// BundleEvents returns the recorded bundle events as "TYPE name".
func (r *Recorder) BundleEvents() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, len(r.bundles))
	for i, e := range r.bundles {
		out[i] = e.Type.String() + " " + e.Bundle.SymbolicName()
	}
	return out
}

// ServiceEvents returns the recorded service events.
func (r *Recorder) ServiceEvents() []service.Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]service.Event, len(r.services))
	copy(out, r.services)
	return out
}

// Reset forgets every recorded event.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.bundles = nil
	r.services = nil
	r.mu.Unlock()
}
