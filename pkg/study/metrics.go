package study

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricsRunsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lendsim_study_runs_completed_total",
		Help: "Number of simulation runs completed by the study runner",
	})

	metricsRunsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lendsim_study_runs_failed_total",
		Help: "Number of simulation runs that aborted with a failure",
	})

	metricsCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lendsim_study_cache_hits_total",
		Help: "Number of runs served from the result cache",
	})

	metricsCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lendsim_study_cache_misses_total",
		Help: "Number of cache lookups that required execution",
	})
)
