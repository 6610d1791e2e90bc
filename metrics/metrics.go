package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns its registry so tests can build isolated instances.
type Metrics struct {
	Registry *prometheus.Registry

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	RecommendationsServed  *prometheus.CounterVec
	RecommendationDuration prometheus.Histogram
	Interactions           *prometheus.CounterVec

	CategoryViews prometheus.Counter

	CollaborationTransitions *prometheus.CounterVec
	ComplianceScans          *prometheus.CounterVec
	CollaborationsExpired    prometheus.Counter

	AsyncTasks *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests by method, route and status",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		RecommendationsServed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "recommendations_served_total",
			Help: "Recommendation lists served, by mode (personalized, popular)",
		}, []string{"mode"}),
		RecommendationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "recommendation_scoring_duration_seconds",
			Help:    "Time spent computing one recommendation list",
			Buckets: prometheus.DefBuckets,
		}),
		Interactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "recommendation_interactions_total",
			Help: "Tracked recommendation interactions by kind",
		}, []string{"kind"}),
		CategoryViews: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "category_views_total",
			Help: "Category views recorded",
		}),
		CollaborationTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "collaboration_transitions_total",
			Help: "Collaboration state transitions by action and resulting status",
		}, []string{"action", "status"}),
		ComplianceScans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "compliance_scans_total",
			Help: "Compliance scans by resulting risk level",
		}, []string{"risk"}),
		CollaborationsExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "collaborations_expired_total",
			Help: "Collaborations moved to expired by the sweeper",
		}),
		AsyncTasks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "async_tasks_total",
			Help: "Fire-and-forget tasks by name and outcome (ok, error, dropped)",
		}, []string{"task", "outcome"}),
	}
	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.HTTPRequests,
		m.HTTPDuration,
		m.RecommendationsServed,
		m.RecommendationDuration,
		m.Interactions,
		m.CategoryViews,
		m.CollaborationTransitions,
		m.ComplianceScans,
		m.CollaborationsExpired,
		m.AsyncTasks,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}
