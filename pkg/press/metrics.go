package press

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	derivativeDispatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "press_derivative_dispatches_total",
		Help: "Derivative job dispatch attempts by outcome (enqueued, deduped).",
	}, []string{"outcome"})

	derivativeJobs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "press_derivative_jobs_total",
		Help: "Derivative job executions by result (processed, failed).",
	}, []string{"result"})

	menuCacheInvalidations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "press_menu_cache_invalidations_total",
		Help: "Number of times the navigation menu cache entry was invalidated.",
	})
)
