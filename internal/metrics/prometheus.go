package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ScoringDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bidfit_scoring_duration_seconds",
			Help:    "Scoring request duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"algorithm", "variant"},
	)

	ScoringTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bidfit_scoring_total",
			Help: "Total number of scoring requests processed",
		},
		[]string{"algorithm", "variant", "status"},
	)

	VerdictTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bidfit_verdict_total",
			Help: "Verdicts produced by the fit scorer",
		},
		[]string{"verdict"},
	)

	EnhancementImprovement = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bidfit_enhancement_improvement_points",
			Help:    "Score points added by graph enhancement",
			Buckets: []float64{0, 1, 2, 5, 8, 10, 15},
		},
	)

	GraphTraversalDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bidfit_graph_traversal_duration_seconds",
			Help:    "Graph traversal duration in seconds",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 2},
		},
		[]string{"operation"},
	)

	ConnectedEntitiesCount = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bidfit_connected_entities_count",
			Help:    "Connected entities returned per traversal",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50},
		},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bidfit_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bidfit_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"cache_type"},
	)

	OpportunitiesIngested = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bidfit_opportunities_ingested_total",
			Help: "Opportunities processed by the ingestion pipeline",
		},
		[]string{"outcome"},
	)

	DuplicatesResolved = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bidfit_duplicates_resolved_total",
			Help: "Duplicate opportunity records collapsed during ingestion",
		},
	)

	ABTestRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bidfit_abtest_runs_total",
			Help: "A/B comparison runs recorded",
		},
		[]string{"algorithm", "winner"},
	)
)

func Init() {
	prometheus.MustRegister(ScoringDuration)
	prometheus.MustRegister(ScoringTotal)
	prometheus.MustRegister(VerdictTotal)
	prometheus.MustRegister(EnhancementImprovement)
	prometheus.MustRegister(GraphTraversalDuration)
	prometheus.MustRegister(ConnectedEntitiesCount)
	prometheus.MustRegister(CacheHits)
	prometheus.MustRegister(CacheMisses)
	prometheus.MustRegister(OpportunitiesIngested)
	prometheus.MustRegister(DuplicatesResolved)
	prometheus.MustRegister(ABTestRunsTotal)
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
