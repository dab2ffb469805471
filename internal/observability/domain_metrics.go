package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	asksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "askql_asks_total",
			Help: "Questions answered, by intent and outcome.",
		},
		[]string{"intent", "outcome"},
	)
	validationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "askql_sql_validations_total",
			Help: "SQL validations by result kind (ok or the rejection kind).",
		},
		[]string{"kind"},
	)
	repairAttemptsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "askql_repair_attempts_total",
			Help: "Regeneration attempts triggered by validator rejections.",
		},
	)
	heuristicHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "askql_heuristic_hits_total",
			Help: "Questions resolved without the text generator, by rule.",
		},
		[]string{"rule"},
	)
	generatorLatencySeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "askql_generator_latency_seconds",
			Help:    "Text generator latency by provider and result.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8, 15, 30},
		},
		[]string{"provider", "result"},
	)
	executionLatencySeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "askql_execution_latency_seconds",
			Help:    "Query execution latency by result kind.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"kind"},
	)
	degradedAnswersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "askql_degraded_answers_total",
			Help: "Answers returned without rows, by reason.",
		},
		[]string{"reason"},
	)
	rateLimitedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "askql_rate_limited_requests_total",
			Help: "Requests rejected by the per-client rate limiter.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		asksTotal,
		validationsTotal,
		repairAttemptsTotal,
		heuristicHitsTotal,
		generatorLatencySeconds,
		executionLatencySeconds,
		degradedAnswersTotal,
		rateLimitedTotal,
	)
}

func ObserveAsk(intent, outcome string) {
	asksTotal.WithLabelValues(intent, outcome).Inc()
}

// ObserveValidation counts one validator verdict; an empty kind means the
// statement was accepted.
func ObserveValidation(kind string) {
	if kind == "" {
		kind = "ok"
	}
	validationsTotal.WithLabelValues(kind).Inc()
}

func IncrementRepairAttempts() {
	repairAttemptsTotal.Inc()
}

func ObserveHeuristicHit(rule string) {
	heuristicHitsTotal.WithLabelValues(rule).Inc()
}

func ObserveGeneration(provider string, err error, elapsed time.Duration) {
	if provider == "" {
		provider = "unknown"
	}
	generatorLatencySeconds.WithLabelValues(provider, resultLabel(err)).Observe(elapsed.Seconds())
}

func ObserveExecution(kind string, elapsed time.Duration) {
	if kind == "" {
		kind = "ok"
	}
	executionLatencySeconds.WithLabelValues(kind).Observe(elapsed.Seconds())
}

func IncrementDegraded(reason string) {
	degradedAnswersTotal.WithLabelValues(reason).Inc()
}

func IncrementRateLimited() {
	rateLimitedTotal.Inc()
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
