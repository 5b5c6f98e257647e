package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "shophours"

var (
	once sync.Once

	statusEvaluations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "status_evaluations_total",
			Help:      "Count of status evaluations by resulting state.",
		},
		[]string{"state"},
	)

	evaluationErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "status_evaluation_errors_total",
			Help:      "Count of failed status evaluations by kind.",
		},
		[]string{"kind"},
	)

	overrideChanges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "override_changes_total",
			Help:      "Count of manual override changes by action.",
		},
		[]string{"action"},
	)

	scheduleCache = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "schedule_cache_total",
			Help:      "Schedule cache lookups by result.",
		},
		[]string{"result"},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Count of HTTP API requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	shopOpen = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "shop_open",
			Help:      "1 when the last polled status of a shop was open.",
		},
		[]string{"shop_id"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(statusEvaluations, evaluationErrors, overrideChanges, scheduleCache, httpRequests, shopOpen)
	})
}

func IncStatusEvaluation(state string) {
	statusEvaluations.WithLabelValues(state).Inc()
}

func IncEvaluationError(kind string) {
	evaluationErrors.WithLabelValues(kind).Inc()
}

func IncOverrideChange(action string) {
	overrideChanges.WithLabelValues(action).Inc()
}

func IncScheduleCache(result string) {
	scheduleCache.WithLabelValues(result).Inc()
}

func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

func SetShopOpen(shopID string, open bool) {
	v := 0.0
	if open {
		v = 1
	}
	shopOpen.WithLabelValues(shopID).Set(v)
}
