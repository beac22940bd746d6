package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	intentsClassifiedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatdb_intents_classified_total",
			Help: "Total number of user requests classified, by intent.",
		},
		[]string{"intent"},
	)
	oracleRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatdb_oracle_requests_total",
			Help: "Total number of language model completions, by provider and outcome.",
		},
		[]string{"provider", "outcome"},
	)
	oracleLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chatdb_oracle_latency_ms",
			Help:    "Language model completion latency in milliseconds.",
			Buckets: []float64{100, 250, 500, 1000, 2000, 5000, 10000, 20000, 30000, 60000},
		},
		[]string{"provider"},
	)
	storeOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatdb_store_operations_total",
			Help: "Total number of dispatched store operations, by operation and outcome.",
		},
		[]string{"operation", "outcome"},
	)
	schemaSampledDocuments = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chatdb_schema_sampled_documents",
			Help:    "Documents sampled per collection during schema inference.",
			Buckets: []float64{0, 1, 2, 5, 10, 20},
		},
	)
	sqlStatementsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatdb_sql_statements_total",
			Help: "Total number of synthesized SQL statements, by kind and outcome.",
		},
		[]string{"kind", "outcome"},
	)
)

func init() {
	prometheus.MustRegister(
		intentsClassifiedTotal,
		oracleRequestsTotal,
		oracleLatencyMs,
		storeOperationsTotal,
		schemaSampledDocuments,
		sqlStatementsTotal,
	)
}

func IncrementIntent(intent string) {
	intentsClassifiedTotal.WithLabelValues(intent).Inc()
}

func ObserveOracleRequest(provider, outcome string, elapsed time.Duration) {
	oracleRequestsTotal.WithLabelValues(provider, outcome).Inc()
	oracleLatencyMs.WithLabelValues(provider).Observe(float64(elapsed.Milliseconds()))
}

func IncrementStoreOperation(operation string, err error) {
	storeOperationsTotal.WithLabelValues(operation, outcome(err)).Inc()
}

func ObserveSampledDocuments(count int) {
	if count < 0 {
		count = 0
	}
	schemaSampledDocuments.Observe(float64(count))
}

func IncrementSQLStatement(kind string, err error) {
	sqlStatementsTotal.WithLabelValues(kind, outcome(err)).Inc()
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
