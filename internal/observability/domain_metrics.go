package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	questionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconquery_questions_total",
			Help: "Total number of questions processed, by assigned category.",
		},
		[]string{"category"},
	)
	queriesExecutedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "reconquery_queries_executed_total",
			Help: "Total number of generated queries executed against the store.",
		},
	)
	queryDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "reconquery_query_duration_seconds",
			Help:    "Generated query execution latency.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)
	exportsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconquery_exports_total",
			Help: "Total number of result-set exports, by serialization format.",
		},
		[]string{"format"},
	)
	exportedRowsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "reconquery_exported_rows_total",
			Help: "Total number of rows written into export artifacts.",
		},
	)
	stageFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconquery_stage_failures_total",
			Help: "Total number of pipeline stage failures, by stage.",
		},
		[]string{"stage"},
	)
)

func init() {
	prometheus.MustRegister(
		questionsTotal,
		queriesExecutedTotal,
		queryDurationSeconds,
		exportsTotal,
		exportedRowsTotal,
		stageFailuresTotal,
	)
}

func CountQuestion(category string) {
	questionsTotal.WithLabelValues(category).Inc()
}

func ObserveQueryExecution(duration time.Duration) {
	queriesExecutedTotal.Inc()
	queryDurationSeconds.Observe(duration.Seconds())
}

func CountExport(format string, rows int) {
	exportsTotal.WithLabelValues(format).Inc()
	exportedRowsTotal.Add(float64(rows))
}

func CountStageFailure(stage string) {
	stageFailuresTotal.WithLabelValues(stage).Inc()
}
