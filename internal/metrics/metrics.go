package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the sync and scoring telemetry collectors.
type Metrics struct {
	SyncRuns         *prometheus.CounterVec
	ProviderFailures *prometheus.CounterVec
	MatchesCreated   prometheus.Counter
	MatchesEnriched  prometheus.Counter
	RecordsSkipped   prometheus.Counter
	SyncDuration     prometheus.Histogram
	Analyses         prometheus.Counter
	AnalysisScores   prometheus.Histogram
}

// New registers the collectors on reg. Pass a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		SyncRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cstatsentry_sync_runs_total",
			Help: "Finished sync runs by terminal status.",
		}, []string{"status"}),
		ProviderFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cstatsentry_provider_failures_total",
			Help: "Per-provider failures recorded during sync runs.",
		}, []string{"provider", "kind"}),
		MatchesCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "cstatsentry_matches_created_total",
			Help: "Canonical matches created on first sighting.",
		}),
		MatchesEnriched: factory.NewCounter(prometheus.CounterOpts{
			Name: "cstatsentry_matches_enriched_total",
			Help: "Canonical matches enriched by a later sighting.",
		}),
		RecordsSkipped: factory.NewCounter(prometheus.CounterOpts{
			Name: "cstatsentry_records_skipped_total",
			Help: "Provider records skipped as malformed.",
		}),
		SyncDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "cstatsentry_sync_duration_seconds",
			Help:    "Wall-clock duration of sync runs.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		Analyses: factory.NewCounter(prometheus.CounterOpts{
			Name: "cstatsentry_analyses_total",
			Help: "Player analysis snapshots created.",
		}),
		AnalysisScores: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "cstatsentry_analysis_score",
			Help:    "Distribution of suspicion scores.",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		}),
	}
}

// Default wires the collectors onto the global registry for the fx app.
func Default() *Metrics {
	return New(prometheus.DefaultRegisterer)
}
