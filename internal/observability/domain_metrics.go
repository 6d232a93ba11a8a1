package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	translationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "askdb_translations_total",
			Help: "Total number of natural-language-to-SQL translations by outcome.",
		},
		[]string{"status"},
	)
	guardrailCoercionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "askdb_guardrail_coercions_total",
			Help: "Total number of candidates that needed a SELECT prefix coerced.",
		},
	)
	queryDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "askdb_query_duration_seconds",
			Help:    "Target database execution latency for sanitized statements.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)
	questionsAnsweredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "askdb_questions_answered_total",
			Help: "Total number of questions answered end to end.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		translationsTotal,
		guardrailCoercionsTotal,
		queryDurationSeconds,
		questionsAnsweredTotal,
	)
}

func ObserveTranslation(status string) {
	translationsTotal.WithLabelValues(status).Inc()
}

func IncrementGuardrailCoercion() {
	guardrailCoercionsTotal.Inc()
}

func ObserveQueryDuration(duration time.Duration) {
	queryDurationSeconds.Observe(duration.Seconds())
}

func IncrementQuestionsAnswered() {
	questionsAnsweredTotal.Inc()
}
