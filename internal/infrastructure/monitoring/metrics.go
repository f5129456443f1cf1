package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Phase metrics
	PhaseTransitions *prometheus.CounterVec
	PhaseCurrent     *prometheus.GaugeVec
	Events           *prometheus.CounterVec

	// Remote config metrics
	ConfigFetches       *prometheus.CounterVec
	ConfigFetchDuration prometheus.Histogram

	// Browsing metrics
	Redirects          prometheus.Counter
	RedirectRecoveries prometheus.Counter
	NavigationFailures *prometheus.CounterVec
	PopupsOpen         prometheus.Gauge
	CookiePersists     *prometheus.CounterVec
	ExternalSchemes    prometheus.Counter

	// Connectivity metrics
	ConnectivityChanges *prometheus.CounterVec

	// System metrics
	Uptime    prometheus.GaugeFunc
	startTime time.Time
}

// NewMetrics creates a new metrics collector with its own registry
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	factory := promauto.With(reg)

	m := &Metrics{
		registry:  reg,
		startTime: time.Now(),

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gate_http_requests_total",
				Help: "Total number of control API requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gate_http_request_duration_seconds",
				Help:    "Control API request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"method", "path"},
		),

		PhaseTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gate_phase_transitions_total",
				Help: "Total number of display phase transitions",
			},
			[]string{"from", "to"},
		),
		PhaseCurrent: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "gate_phase_current",
				Help: "1 for the live display phase, 0 otherwise",
			},
			[]string{"phase"},
		),
		Events: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gate_events_total",
				Help: "Total number of events consumed by the phase controller",
			},
			[]string{"type"},
		),

		ConfigFetches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gate_config_fetches_total",
				Help: "Total number of remote config fetches by result",
			},
			[]string{"result"},
		),
		ConfigFetchDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "gate_config_fetch_duration_seconds",
				Help:    "Remote config fetch duration in seconds",
				Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
			},
		),

		Redirects: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "gate_redirects_total",
				Help: "Total number of server redirects observed",
			},
		),
		RedirectRecoveries: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "gate_redirect_recoveries_total",
				Help: "Total number of redirect loop recoveries",
			},
		),
		NavigationFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gate_navigation_failures_total",
				Help: "Total number of navigation failures by kind",
			},
			[]string{"kind"},
		),
		PopupsOpen: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "gate_popups_open",
				Help: "Number of open secondary browsing contexts",
			},
		),
		CookiePersists: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gate_cookie_persists_total",
				Help: "Total number of cookie snapshot writes by result",
			},
			[]string{"result"},
		),
		ExternalSchemes: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "gate_external_scheme_handoffs_total",
				Help: "Total number of navigations handed to the external opener",
			},
		),

		ConnectivityChanges: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gate_connectivity_changes_total",
				Help: "Total number of connectivity transitions",
			},
			[]string{"state"},
		),
	}

	m.Uptime = factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "gate_uptime_seconds",
			Help: "Process uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	return m
}

// Registry returns the registry backing these metrics
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the Prometheus exposition handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordHTTPRequest records a control API request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordPhaseTransition records a phase change and flips the current gauge
func (m *Metrics) RecordPhaseTransition(from, to string) {
	m.PhaseTransitions.WithLabelValues(from, to).Inc()
	m.PhaseCurrent.WithLabelValues(from).Set(0)
	m.PhaseCurrent.WithLabelValues(to).Set(1)
}

// RecordEvent records an event consumed by the controller
func (m *Metrics) RecordEvent(eventType string) {
	m.Events.WithLabelValues(eventType).Inc()
}

// RecordConfigFetch records a remote config fetch outcome
func (m *Metrics) RecordConfigFetch(result string, duration time.Duration) {
	m.ConfigFetches.WithLabelValues(result).Inc()
	m.ConfigFetchDuration.Observe(duration.Seconds())
}

// IncRedirects increments observed redirects
func (m *Metrics) IncRedirects() {
	m.Redirects.Inc()
}

// IncRedirectRecoveries increments redirect loop recoveries
func (m *Metrics) IncRedirectRecoveries() {
	m.RedirectRecoveries.Inc()
}

// RecordNavigationFailure records a navigation failure
func (m *Metrics) RecordNavigationFailure(kind string) {
	m.NavigationFailures.WithLabelValues(kind).Inc()
}

// SetPopupsOpen sets the number of open popups
func (m *Metrics) SetPopupsOpen(count int) {
	m.PopupsOpen.Set(float64(count))
}

// RecordCookiePersist records a cookie snapshot write
func (m *Metrics) RecordCookiePersist(result string) {
	m.CookiePersists.WithLabelValues(result).Inc()
}

// IncExternalSchemes increments external scheme hand-offs
func (m *Metrics) IncExternalSchemes() {
	m.ExternalSchemes.Inc()
}

// RecordConnectivityChange records a connectivity transition
func (m *Metrics) RecordConnectivityChange(state string) {
	m.ConnectivityChanges.WithLabelValues(state).Inc()
}
