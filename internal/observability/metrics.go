package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// hazard intelligence service.
type Metrics struct {
	// Ingestion metrics.
	MessagesConsumed prometheus.Counter
	ParseErrors      prometheus.Counter
	UpdatesPublished prometheus.Counter
	IngestRunning    prometheus.Gauge

	ReportProcessingDuration prometheus.Histogram

	// Engine metrics.
	HazardsCreated    prometheus.Counter
	ReportsMerged     prometheus.Counter
	FeedbackReceived  *prometheus.CounterVec // labels: type={confirm,deny,update,resolve}, outcome={accepted,duplicate,too_far,not_found}
	StatusTransitions *prometheus.CounterVec // labels: to={verified,disputed,resolved,expired,unverified}
	HazardsExpired    prometheus.Counter
	ActiveHazards     prometheus.Gauge
	SweeperRunning    prometheus.Gauge
}

// NewMetrics creates and registers all service metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		MessagesConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hazard_intel",
			Name:      "messages_consumed_total",
			Help:      "Total detection messages read from the source topic.",
		}),
		ParseErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hazard_intel",
			Name:      "parse_errors_total",
			Help:      "Total malformed detection messages skipped.",
		}),
		UpdatesPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hazard_intel",
			Name:      "updates_published_total",
			Help:      "Total hazard updates written to the sink topic.",
		}),
		IngestRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "hazard_intel",
			Name:      "ingest_running",
			Help:      "1 when the ingest loop is active, 0 when shut down.",
		}),
		ReportProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "hazard_intel",
			Name:      "report_processing_duration_seconds",
			Help:      "Duration of a complete consume-report-publish cycle.",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}),
		HazardsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hazard_intel",
			Name:      "hazards_created_total",
			Help:      "Total new hazard entities created.",
		}),
		ReportsMerged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hazard_intel",
			Name:      "reports_merged_total",
			Help:      "Total reports deduplicated into an existing hazard.",
		}),
		FeedbackReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hazard_intel",
			Name:      "feedback_received_total",
			Help:      "Feedback submissions by type and outcome.",
		}, []string{"type", "outcome"}),
		StatusTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hazard_intel",
			Name:      "status_transitions_total",
			Help:      "Hazard status transitions by destination status.",
		}, []string{"to"}),
		HazardsExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hazard_intel",
			Name:      "hazards_expired_total",
			Help:      "Total hazards removed by the expiry sweeper.",
		}),
		ActiveHazards: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "hazard_intel",
			Name:      "active_hazards",
			Help:      "Hazards currently held in the store.",
		}),
		SweeperRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "hazard_intel",
			Name:      "sweeper_running",
			Help:      "1 when the expiry sweeper is active, 0 when shut down.",
		}),
	}

	prometheus.MustRegister(
		m.MessagesConsumed,
		m.ParseErrors,
		m.UpdatesPublished,
		m.IngestRunning,
		m.ReportProcessingDuration,
		m.HazardsCreated,
		m.ReportsMerged,
		m.FeedbackReceived,
		m.StatusTransitions,
		m.HazardsExpired,
		m.ActiveHazards,
		m.SweeperRunning,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		MessagesConsumed:         prometheus.NewCounter(prometheus.CounterOpts{Namespace: "hazard_intel", Name: "messages_consumed_total"}),
		ParseErrors:              prometheus.NewCounter(prometheus.CounterOpts{Namespace: "hazard_intel", Name: "parse_errors_total"}),
		UpdatesPublished:         prometheus.NewCounter(prometheus.CounterOpts{Namespace: "hazard_intel", Name: "updates_published_total"}),
		IngestRunning:            prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "hazard_intel", Name: "ingest_running"}),
		ReportProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "hazard_intel", Name: "report_processing_duration_seconds"}),
		HazardsCreated:           prometheus.NewCounter(prometheus.CounterOpts{Namespace: "hazard_intel", Name: "hazards_created_total"}),
		ReportsMerged:            prometheus.NewCounter(prometheus.CounterOpts{Namespace: "hazard_intel", Name: "reports_merged_total"}),
		FeedbackReceived:         prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "hazard_intel", Name: "feedback_received_total"}, []string{"type", "outcome"}),
		StatusTransitions:        prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "hazard_intel", Name: "status_transitions_total"}, []string{"to"}),
		HazardsExpired:           prometheus.NewCounter(prometheus.CounterOpts{Namespace: "hazard_intel", Name: "hazards_expired_total"}),
		ActiveHazards:            prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "hazard_intel", Name: "active_hazards"}),
		SweeperRunning:           prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "hazard_intel", Name: "sweeper_running"}),
	}
}
