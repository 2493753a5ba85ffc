package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics definitions
var (
	FilesProcessedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "recast_files_processed_total",
		Help: "Total number of source files evaluated against the loaded patterns.",
	})

	IssuesRecordedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recast_issues_recorded_total",
		Help: "Total number of issues appended to plans.",
	}, []string{"pattern"})

	PatternFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recast_pattern_failures_total",
		Help: "Total number of pattern evaluations that failed on a single file.",
	}, []string{"pattern"})

	RunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "recast_run_seconds",
		Help:    "Time spent producing a plan.",
		Buckets: prometheus.DefBuckets,
	})

	CacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "recast_cache_hits_total",
		Help: "Total number of dependency cache lookups served from a stored value.",
	})

	CacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "recast_cache_misses_total",
		Help: "Total number of dependency cache lookups that yielded no value.",
	})

	CacheDerivationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recast_cache_derivations_total",
		Help: "Total number of values computed by dependency cache producers.",
	}, []string{"key"})

	ParsingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "recast_parsing_seconds",
		Help:    "Time spent parsing a source file.",
		Buckets: prometheus.DefBuckets,
	}, []string{"language"})

	SnapshotBuildDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "recast_snapshot_build_seconds",
		Help:    "Time spent building the next semantic index snapshot.",
		Buckets: prometheus.DefBuckets,
	})

	SnapshotMergesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "recast_snapshot_merges_total",
		Help: "Total number of index overlays flattened into a new base.",
	})

	IndexSymbols = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "recast_index_symbols",
		Help: "Number of symbols in the current semantic index snapshot.",
	})

	WatcherEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "recast_watcher_events_total",
		Help: "Total number of file system events received by the watcher.",
	})
)
