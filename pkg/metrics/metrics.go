// Package metrics exposes Prometheus collectors for document loading and
// reconciliation.
//
// Metrics collected (default namespace "prowser"):
//   - prowser_patches_total: patches applied, by op
//   - prowser_reconcile_duration_seconds: pass duration, by kind
//   - prowser_reconcile_errors_total: failed passes, by kind and error class
//   - prowser_mounted_handles: handles currently mounted across reconcilers
//   - prowser_build_errors_total: malformed nodes dropped by the builder
//   - prowser_documents_loaded_total: loads, by scheme and status
//   - prowser_active_sessions: live preview sessions
//   - prowser_events_total: client events, by kind
//
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"errors"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/prowser-dev/prowser/pkg/vdom"
)

// Config configures the collectors.
type Config struct {
	// Namespace is the metrics namespace (default: "prowser").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for pass duration.
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// Option configures Metrics.
type Option func(*Config)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) Option {
	return func(c *Config) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) Option {
	return func(c *Config) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) Option {
	return func(c *Config) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) Option {
	return func(c *Config) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) Option {
	return func(c *Config) {
		c.Registry = registry
	}
}

func defaultConfig() Config {
	return Config{
		Namespace: "prowser",
		// Reconciliation passes are mostly sub-millisecond.
		Buckets:  []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
		Registry: prometheus.DefaultRegisterer,
	}
}

// Metrics holds the collectors.
type Metrics struct {
	patchesTotal      *prometheus.CounterVec
	reconcileDuration *prometheus.HistogramVec
	reconcileErrors   *prometheus.CounterVec
	mountedHandles    prometheus.Gauge
	buildErrors       prometheus.Counter
	documentsLoaded   *prometheus.CounterVec
	activeSessions    prometheus.Gauge
	eventsTotal       *prometheus.CounterVec
}

// New creates and registers the collectors.
func New(opts ...Option) *Metrics {
	config := defaultConfig()
	for _, opt := range opts {
		opt(&config)
	}
	factory := promauto.With(config.Registry)

	return &Metrics{
		patchesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "patches_total",
			Help:        "Total number of patches applied to rendered output",
			ConstLabels: config.ConstLabels,
		}, []string{"op"}),

		reconcileDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "reconcile_duration_seconds",
			Help:        "Reconciliation pass duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"kind"}),

		reconcileErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "reconcile_errors_total",
			Help:        "Total number of reconciliation passes that stopped on an error",
			ConstLabels: config.ConstLabels,
		}, []string{"kind", "error_type"}),

		mountedHandles: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "mounted_handles",
			Help:        "Number of handles currently mounted",
			ConstLabels: config.ConstLabels,
		}),

		buildErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "build_errors_total",
			Help:        "Total number of malformed nodes dropped while building trees",
			ConstLabels: config.ConstLabels,
		}),

		documentsLoaded: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "documents_loaded_total",
			Help:        "Total number of document loads",
			ConstLabels: config.ConstLabels,
		}, []string{"scheme", "status"}),

		activeSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "active_sessions",
			Help:        "Number of live preview sessions",
			ConstLabels: config.ConstLabels,
		}),

		eventsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "events_total",
			Help:        "Total number of client events processed",
			ConstLabels: config.ConstLabels,
		}, []string{"kind"}),
	}
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// Default returns metrics registered with the default registerer.
func Default() *Metrics {
	defaultMetricsOnce.Do(func() {
		defaultMetrics = New()
	})
	return defaultMetrics
}

// RecordLoad records a document load.
func (m *Metrics) RecordLoad(scheme string, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.documentsLoaded.WithLabelValues(scheme, status).Inc()
}

// RecordBuildErrors records malformed nodes dropped by a build.
func (m *Metrics) RecordBuildErrors(n int) {
	if m == nil || n == 0 {
		return
	}
	m.buildErrors.Add(float64(n))
}

// SessionOpened records a new preview session.
func (m *Metrics) SessionOpened() {
	if m != nil {
		m.activeSessions.Inc()
	}
}

// SessionClosed records the end of a preview session.
func (m *Metrics) SessionClosed() {
	if m != nil {
		m.activeSessions.Dec()
	}
}

// RecordEvent records a client event.
func (m *Metrics) RecordEvent(kind string) {
	if m != nil {
		m.eventsTotal.WithLabelValues(kind).Inc()
	}
}

// Observer returns a vdom.Observer for one reconciler. Each reconciler
// needs its own: the observer tracks that reconciler's share of the
// mounted handles gauge.
func (m *Metrics) Observer() *Observer {
	return &Observer{m: m}
}

// Observer implements vdom.Observer.
type Observer struct {
	m    *Metrics
	mu   sync.Mutex
	last int
}

var _ vdom.Observer = (*Observer)(nil)

// PatchApplied implements vdom.Observer.
func (o *Observer) PatchApplied(op vdom.PatchOp) {
	if o.m != nil {
		o.m.patchesTotal.WithLabelValues(op.String()).Inc()
	}
}

// PassCompleted implements vdom.Observer.
func (o *Observer) PassCompleted(kind string, _ int, seconds float64, err error) {
	if o.m == nil {
		return
	}
	o.m.reconcileDuration.WithLabelValues(kind).Observe(seconds)
	if err != nil {
		o.m.reconcileErrors.WithLabelValues(kind, categorizeError(err)).Inc()
	}
}

// HandlesChanged implements vdom.Observer.
func (o *Observer) HandlesChanged(n int) {
	if o.m == nil {
		return
	}
	o.mu.Lock()
	delta := n - o.last
	o.last = n
	o.mu.Unlock()
	o.m.mountedHandles.Add(float64(delta))
}

// Release removes this reconciler's handles from the gauge.
func (o *Observer) Release() {
	o.HandlesChanged(0)
}

// categorizeError keeps the error label low-cardinality.
func categorizeError(err error) string {
	switch {
	case errors.Is(err, vdom.ErrDesync):
		return "desync"
	case errors.Is(err, vdom.ErrAdapter):
		return "adapter"
	case errors.Is(err, vdom.ErrReconcilerFailed):
		return "failed_state"
	default:
		return "internal"
	}
}
