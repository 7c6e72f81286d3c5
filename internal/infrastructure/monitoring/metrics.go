package monitoring

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics of one platform instance.
//
// Every recording method tolerates a nil receiver so components can run
// without metrics in tests.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Bundle metrics
	BundlesByState      *prometheus.GaugeVec
	BundleStarts        *prometheus.CounterVec
	BundleStartDuration *prometheus.HistogramVec
	BundleEvents        *prometheus.CounterVec

	// Library metrics
	LibrariesInstalled *prometheus.CounterVec

	// Service registry metrics
	ServicesRegistered prometheus.Gauge
	ServiceEvents      *prometheus.CounterVec
	ServiceGets        *prometheus.CounterVec

	// Extension registry metrics
	ContributionsRead *prometheus.CounterVec
	ExtensionPoints   prometheus.Gauge
	Extensions        prometheus.Gauge
	PendingExtensions prometheus.Gauge

	// System metrics
	Uptime    prometheus.GaugeFunc
	startTime time.Time

	snapshot MetricsSnapshot
	mu       sync.RWMutex
}

// MetricsSnapshot holds current metric values for the JSON API.
type MetricsSnapshot struct {
	TotalRequests      int64            `json:"total_requests"`
	BundlesByState     map[string]int   `json:"bundles_by_state"`
	ServicesRegistered int64            `json:"services_registered"`
	ServiceEvents      map[string]int64 `json:"service_events"`
	BundleStartErrors  int64            `json:"bundle_start_errors"`
}

// NewMetrics creates a metrics collector backed by its own registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	factory := promauto.With(reg)

	m := &Metrics{
		registry:  reg,
		startTime: time.Now(),
		snapshot: MetricsSnapshot{
			BundlesByState: make(map[string]int),
			ServiceEvents:  make(map[string]int64),
		},

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "platform_http_requests_total",
				Help: "Total number of introspection HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "platform_http_request_duration_seconds",
				Help:    "Introspection HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"method", "path"},
		),

		BundlesByState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "platform_bundles",
				Help: "Number of bundles per lifecycle state",
			},
			[]string{"state"},
		),
		BundleStarts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "platform_bundle_starts_total",
				Help: "Bundle start attempts by result",
			},
			[]string{"bundle", "status"},
		),
		BundleStartDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "platform_bundle_start_duration_seconds",
				Help:    "Time spent in bundle activators' start hooks",
				Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5, 30},
			},
			[]string{"bundle"},
		),
		BundleEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "platform_bundle_events_total",
				Help: "Bundle lifecycle events by type",
			},
			[]string{"type"},
		),

		LibrariesInstalled: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "platform_libraries_installed_total",
				Help: "Libraries registered in the code cache by mode",
			},
			[]string{"mode"},
		),

		ServicesRegistered: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "platform_services_registered",
				Help: "Number of currently registered services",
			},
		),
		ServiceEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "platform_service_events_total",
				Help: "Service events by type",
			},
			[]string{"type"},
		),
		ServiceGets: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "platform_service_usage_total",
				Help: "Service get/unget calls",
			},
			[]string{"op"},
		),

		ContributionsRead: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "platform_contributions_read_total",
				Help: "Bundle contribution files read by result",
			},
			[]string{"status"},
		),
		ExtensionPoints: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "platform_extension_points",
				Help: "Number of declared extension points",
			},
		),
		Extensions: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "platform_extensions",
				Help: "Number of extensions attached to a declared point",
			},
		),
		PendingExtensions: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "platform_extensions_pending",
				Help: "Extensions waiting for their extension point to be declared",
			},
		),
	}

	m.Uptime = factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "platform_uptime_seconds",
			Help: "Platform uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	return m
}

// Registry returns the Prometheus registry backing these metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an HTTP handler exposing the metrics in Prometheus format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordHTTPRequest records an introspection HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())

	m.mu.Lock()
	m.snapshot.TotalRequests++
	m.mu.Unlock()
}

// SetBundleStates replaces the per-state bundle gauge values.
func (m *Metrics) SetBundleStates(counts map[string]int) {
	if m == nil {
		return
	}
	m.BundlesByState.Reset()
	snapshot := make(map[string]int, len(counts))
	for state, n := range counts {
		m.BundlesByState.WithLabelValues(state).Set(float64(n))
		snapshot[state] = n
	}

	m.mu.Lock()
	m.snapshot.BundlesByState = snapshot
	m.mu.Unlock()
}

// RecordBundleStart records the outcome of an activator start hook.
func (m *Metrics) RecordBundleStart(bundle string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.BundleStarts.WithLabelValues(bundle, status).Inc()
	m.BundleStartDuration.WithLabelValues(bundle).Observe(duration.Seconds())

	if err != nil {
		m.mu.Lock()
		m.snapshot.BundleStartErrors++
		m.mu.Unlock()
	}
}

// RecordBundleEvent counts a bundle lifecycle event.
func (m *Metrics) RecordBundleEvent(eventType string) {
	if m == nil {
		return
	}
	m.BundleEvents.WithLabelValues(eventType).Inc()
}

// RecordLibraryInstall counts a library registered in the code cache.
func (m *Metrics) RecordLibraryInstall(mode string) {
	if m == nil {
		return
	}
	m.LibrariesInstalled.WithLabelValues(mode).Inc()
}

// SetServicesRegistered sets the number of registered services.
func (m *Metrics) SetServicesRegistered(count int) {
	if m == nil {
		return
	}
	m.ServicesRegistered.Set(float64(count))

	m.mu.Lock()
	m.snapshot.ServicesRegistered = int64(count)
	m.mu.Unlock()
}

// RecordServiceEvent counts a service event.
func (m *Metrics) RecordServiceEvent(eventType string) {
	if m == nil {
		return
	}
	m.ServiceEvents.WithLabelValues(eventType).Inc()

	m.mu.Lock()
	m.snapshot.ServiceEvents[eventType]++
	m.mu.Unlock()
}

// RecordServiceUsage counts a get or unget call.
func (m *Metrics) RecordServiceUsage(op string) {
	if m == nil {
		return
	}
	m.ServiceGets.WithLabelValues(op).Inc()
}

// RecordContribution counts a contribution file read.
func (m *Metrics) RecordContribution(err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.ContributionsRead.WithLabelValues(status).Inc()
}

// SetExtensionCounts sets the extension registry gauges.
func (m *Metrics) SetExtensionCounts(points, extensions, pending int) {
	if m == nil {
		return
	}
	m.ExtensionPoints.Set(float64(points))
	m.Extensions.Set(float64(extensions))
	m.PendingExtensions.Set(float64(pending))
}

// Snapshot returns a copy of the current metric values.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := m.snapshot
	snap.BundlesByState = make(map[string]int, len(m.snapshot.BundlesByState))
	for k, v := range m.snapshot.BundlesByState {
		snap.BundlesByState[k] = v
	}
	snap.ServiceEvents = make(map[string]int64, len(m.snapshot.ServiceEvents))
	for k, v := range m.snapshot.ServiceEvents {
		snap.ServiceEvents[k] = v
	}
	return snap
}

// UptimeDuration returns how long the metrics collector has existed.
func (m *Metrics) UptimeDuration() time.Duration {
	if m == nil {
		return 0
	}
	return time.Since(m.startTime)
}
