package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	globalMetrics *Metrics
	globalMu      sync.RWMutex
)

// Metrics holds all Prometheus metrics for the campaigner
type Metrics struct {
	// Intake
	CandidatesTotal *prometheus.CounterVec
	RejectionsTotal *prometheus.CounterVec

	// Dispatch
	DispatchTotal            *prometheus.CounterVec
	TransportDurationSeconds *prometheus.HistogramVec
	CampaignsByStatus        *prometheus.GaugeVec
	Suppressions             prometheus.Gauge
	LastRunTimestampSeconds  *prometheus.GaugeVec

	// API metrics
	APIRequestsTotal          *prometheus.CounterVec
	APIRequestDurationSeconds *prometheus.HistogramVec

	// System metrics
	UptimeSeconds prometheus.Gauge
	Goroutines    prometheus.Gauge

	registry *prometheus.Registry
}

// New creates a new Metrics instance with all metrics registered
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		CandidatesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "campaigner_candidates_total",
				Help: "Total number of candidate records processed by outcome",
			},
			[]string{"outcome"},
		),
		RejectionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "campaigner_rejections_total",
				Help: "Total number of rejected candidates by reason",
			},
			[]string{"reason"},
		),

		DispatchTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "campaigner_dispatch_total",
				Help: "Total number of dispatch outcomes by history status and reason",
			},
			[]string{"status", "reason"},
		),
		TransportDurationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "campaigner_transport_duration_seconds",
				Help:    "Email provider call duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"transport"},
		),
		CampaignsByStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "campaigner_campaigns",
				Help: "Number of stored campaigns by status",
			},
			[]string{"status"},
		),
		Suppressions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "campaigner_suppressions",
				Help: "Number of addresses in the suppression mirror",
			},
		),
		LastRunTimestampSeconds: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "campaigner_last_run_timestamp_seconds",
				Help: "Unix time of the last completed batch run",
			},
			[]string{"job"},
		),

		APIRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "campaigner_api_requests_total",
				Help: "Total number of API requests",
			},
			[]string{"method", "path", "status"},
		),
		APIRequestDurationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "campaigner_api_request_duration_seconds",
				Help:    "API request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		UptimeSeconds: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "campaigner_uptime_seconds",
				Help: "Server uptime in seconds",
			},
		),
		Goroutines: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "campaigner_goroutines",
				Help: "Number of active goroutines",
			},
		),

		registry: reg,
	}

	// Register all metrics
	reg.MustRegister(
		m.CandidatesTotal,
		m.RejectionsTotal,
		m.DispatchTotal,
		m.TransportDurationSeconds,
		m.CampaignsByStatus,
		m.Suppressions,
		m.LastRunTimestampSeconds,
		m.APIRequestsTotal,
		m.APIRequestDurationSeconds,
		m.UptimeSeconds,
		m.Goroutines,
	)

	return m
}

// Registry returns the Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// SetGlobal sets the global metrics instance
func SetGlobal(m *Metrics) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalMetrics = m
}

// Global returns the global metrics instance
func Global() *Metrics {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalMetrics
}

// IncCandidate counts a processed candidate; outcome is accepted or rejected
func IncCandidate(outcome string) {
	m := Global()
	if m != nil {
		m.CandidatesTotal.WithLabelValues(outcome).Inc()
	}
}

// IncRejection counts a rejected candidate
func IncRejection(reason string) {
	m := Global()
	if m != nil {
		m.CandidatesTotal.WithLabelValues("rejected").Inc()
		m.RejectionsTotal.WithLabelValues(reason).Inc()
	}
}

// IncDispatch counts a per-recipient dispatch outcome
func IncDispatch(status, reason string) {
	m := Global()
	if m != nil {
		m.DispatchTotal.WithLabelValues(status, reason).Inc()
	}
}

// ObserveTransport records the duration of one provider call
func ObserveTransport(transport string, d time.Duration) {
	m := Global()
	if m != nil {
		m.TransportDurationSeconds.WithLabelValues(transport).Observe(d.Seconds())
	}
}

// SetSuppressions sets the suppression mirror size
func SetSuppressions(n int) {
	m := Global()
	if m != nil {
		m.Suppressions.Set(float64(n))
	}
}

// MarkRun records the completion time of a batch job
func MarkRun(job string) {
	m := Global()
	if m != nil {
		m.LastRunTimestampSeconds.WithLabelValues(job).SetToCurrentTime()
	}
}
