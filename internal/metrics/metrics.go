package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "prism"

// Registry holds all Prometheus metrics. It implements analysis.Recorder.
type Registry struct {
	*prometheus.Registry

	// HTTP metrics
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight prometheus.Gauge

	// Analysis metrics
	analysesTotal    *prometheus.CounterVec
	analysisDuration *prometheus.HistogramVec
	providerFetches  *prometheus.CounterVec
	conflicts        *prometheus.CounterVec
	cycles           *prometheus.CounterVec
	cycleDuration    prometheus.Histogram

	// Dispatch and state
	notificationsRouted *prometheus.CounterVec
	alertsFired         *prometheus.CounterVec
	watchlistSymbols    prometheus.Gauge
	sessionsActive      prometheus.Gauge
	cacheLookups        *prometheus.CounterVec
}

// NewRegistry creates a new metrics registry with all metrics registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	// Register Go runtime metrics
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &Registry{
		Registry: reg,

		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		httpRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently in flight",
			},
		),

		analysesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "analyses_total",
				Help:      "Total number of symbol analyses by mode and outcome",
			},
			[]string{"mode", "outcome"},
		),
		analysisDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "analysis_duration_seconds",
				Help:      "Duration of a single symbol analysis",
				Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
			},
			[]string{"mode"},
		),
		providerFetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "provider_fetches_total",
				Help:      "Provider fetches by signal category and status",
			},
			[]string{"category", "status"},
		),
		conflicts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sentiment_conflicts_total",
				Help:      "Sentiment/fundamentals conflicts detected",
			},
			[]string{"type"},
		),
		cycles: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "watchlist_cycles_total",
				Help:      "Watchlist analysis cycles by outcome",
			},
			[]string{"outcome"},
		),
		cycleDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "watchlist_cycle_duration_seconds",
				Help:      "Watchlist cycle duration in seconds",
				Buckets:   []float64{1, 5, 10, 30, 60, 120, 300},
			},
		),
		notificationsRouted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notifications_total",
				Help:      "Notifications sent per notifier and status",
			},
			[]string{"notifier", "status"},
		),
		alertsFired: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "alerts_fired_total",
				Help:      "Alert rules fired",
			},
			[]string{"rule", "severity"},
		),
		watchlistSymbols: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "watchlist_symbols",
				Help:      "Number of symbols in watchlist",
			},
		),
		sessionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "sessions_active",
				Help:      "Number of live explanation sessions",
			},
		),
		cacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_lookups_total",
				Help:      "Cache lookups by cache and result",
			},
			[]string{"cache", "result"},
		),
	}

	reg.MustRegister(
		r.httpRequestsTotal,
		r.httpRequestDuration,
		r.httpRequestsInFlight,
		r.analysesTotal,
		r.analysisDuration,
		r.providerFetches,
		r.conflicts,
		r.cycles,
		r.cycleDuration,
		r.notificationsRouted,
		r.alertsFired,
		r.watchlistSymbols,
		r.sessionsActive,
		r.cacheLookups,
	)

	return r
}

// RecordRequest records metrics for an HTTP request.
func (r *Registry) RecordRequest(method, path string, status int, duration float64) {
	statusStr := statusToString(status)
	r.httpRequestsTotal.WithLabelValues(method, path, statusStr).Inc()
	r.httpRequestDuration.WithLabelValues(method, path).Observe(duration)
}

// InFlightInc increments in-flight requests.
func (r *Registry) InFlightInc() {
	r.httpRequestsInFlight.Inc()
}

// InFlightDec decrements in-flight requests.
func (r *Registry) InFlightDec() {
	r.httpRequestsInFlight.Dec()
}

// RecordAnalysis records one analysis. outcome is the recommendation or a
// failure reason.
func (r *Registry) RecordAnalysis(mode, outcome string, duration time.Duration) {
	r.analysesTotal.WithLabelValues(mode, outcome).Inc()
	r.analysisDuration.WithLabelValues(mode).Observe(duration.Seconds())
}

// RecordFetch records a provider fetch outcome.
func (r *Registry) RecordFetch(category, status string) {
	r.providerFetches.WithLabelValues(category, status).Inc()
}

// RecordConflict records a detected conflict.
func (r *Registry) RecordConflict(kind string) {
	r.conflicts.WithLabelValues(kind).Inc()
}

// RecordCycle records a watchlist cycle completion.
func (r *Registry) RecordCycle(outcome string, duration time.Duration) {
	r.cycles.WithLabelValues(outcome).Inc()
	r.cycleDuration.Observe(duration.Seconds())
}

// RecordNotification records a routed notification.
func (r *Registry) RecordNotification(notifier, status string) {
	r.notificationsRouted.WithLabelValues(notifier, status).Inc()
}

// RecordAlert records a fired alert.
func (r *Registry) RecordAlert(rule, severity string) {
	r.alertsFired.WithLabelValues(rule, severity).Inc()
}

// RecordCacheLookup records a cache hit or miss.
func (r *Registry) RecordCacheLookup(cache string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	r.cacheLookups.WithLabelValues(cache, result).Inc()
}

// SetWatchlistSize sets the watchlist size.
func (r *Registry) SetWatchlistSize(size int) {
	r.watchlistSymbols.Set(float64(size))
}

// SetSessionsActive sets the number of live sessions.
func (r *Registry) SetSessionsActive(count int) {
	r.sessionsActive.Set(float64(count))
}

func statusToString(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return "1xx"
	}
}
