package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	turnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "natalis_turns_total",
			Help: "Total number of chat turns handled, by reply status.",
		},
		[]string{"status"},
	)
	turnDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "natalis_turn_duration_seconds",
			Help:    "End to end latency of a chat turn.",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		},
	)
	llmCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "natalis_llm_calls_total",
			Help: "Total number of language model calls, by purpose and result.",
		},
		[]string{"purpose", "result"},
	)
	llmCallDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "natalis_llm_call_duration_seconds",
			Help:    "Language model call latency by purpose.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 60},
		},
		[]string{"purpose"},
	)
	queryOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "natalis_query_outcomes_total",
			Help: "Total number of warehouse queries, by classified outcome.",
		},
		[]string{"outcome"},
	)
	queryDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "natalis_query_duration_seconds",
			Help:    "Warehouse query latency.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
	)
)

func init() {
	prometheus.MustRegister(
		turnsTotal,
		turnDurationSeconds,
		llmCallsTotal,
		llmCallDurationSeconds,
		queryOutcomesTotal,
		queryDurationSeconds,
	)
}

func ObserveTurn(status string, elapsed time.Duration) {
	turnsTotal.WithLabelValues(status).Inc()
	turnDurationSeconds.Observe(elapsed.Seconds())
}

func ObserveLLMCall(purpose string, err error, elapsed time.Duration) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	llmCallsTotal.WithLabelValues(purpose, result).Inc()
	llmCallDurationSeconds.WithLabelValues(purpose).Observe(elapsed.Seconds())
}

func ObserveQuery(outcome string, elapsed time.Duration) {
	queryOutcomesTotal.WithLabelValues(outcome).Inc()
	queryDurationSeconds.Observe(elapsed.Seconds())
}
