// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Mint metrics
	MintsTotal            *prometheus.CounterVec
	MintDuration          prometheus.Histogram
	PreflightRejections   prometheus.Counter
	TransactionsPerMint   prometheus.Histogram
	InstructionsComposed  *prometheus.CounterVec

	// Submission metrics
	TransactionsSubmitted prometheus.Counter
	SubmissionAttempts    *prometheus.CounterVec
	ConfirmationLatency   prometheus.Histogram

	// Ledger metrics
	RPCCallLatency *prometheus.HistogramVec
	RPCCallErrors  *prometheus.CounterVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastSuccessfulMint prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "nft_minter"
	}

	return &Metrics{
		// Mint metrics
		MintsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mint",
			Name:      "total",
			Help:      "Total number of mint operations by outcome kind",
		}, []string{"mode", "outcome"}),
		MintDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "mint",
			Name:      "duration_seconds",
			Help:      "End-to-end mint duration in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		}),
		PreflightRejections: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mint",
			Name:      "preflight_rejections_total",
			Help:      "Total number of mints refused by the payer balance check",
		}),
		TransactionsPerMint: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "mint",
			Name:      "transactions",
			Help:      "Number of packed transactions per mint",
			Buckets:   []float64{1, 2, 3, 4, 5, 8},
		}),
		InstructionsComposed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "composer",
			Name:      "instructions_total",
			Help:      "Total number of instructions composed by kind",
		}, []string{"kind"}),

		// Submission metrics
		TransactionsSubmitted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "submission",
			Name:      "transactions_total",
			Help:      "Total number of distinct transactions submitted",
		}),
		SubmissionAttempts: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "submission",
			Name:      "attempts_total",
			Help:      "Total number of submission attempts by resulting state",
		}, []string{"state"}),
		ConfirmationLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "submission",
			Name:      "confirmation_latency_seconds",
			Help:      "Time from submission to confirmation in seconds",
			Buckets:   prometheus.DefBuckets,
		}),

		// Ledger metrics
		RPCCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "rpc_call_latency_seconds",
			Help:      "Solana RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		RPCCallErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "rpc_call_errors_total",
			Help:      "Total number of failed Solana RPC calls",
		}, []string{"method"}),

		// Database metrics
		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// Health metrics
		LastSuccessfulMint: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_mint_timestamp",
			Help:      "Unix timestamp of last successful mint",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordMint records the outcome of one mint operation.
func RecordMint(mode, outcome string, seconds float64, transactions int) {
	DefaultMetrics.MintsTotal.WithLabelValues(mode, outcome).Inc()
	DefaultMetrics.MintDuration.Observe(seconds)
	if transactions > 0 {
		DefaultMetrics.TransactionsPerMint.Observe(float64(transactions))
	}
}

// RecordMintSuccess stamps the last successful mint time.
func RecordMintSuccess(unixSeconds int64) {
	DefaultMetrics.LastSuccessfulMint.Set(float64(unixSeconds))
}

// RecordPreflightRejection increments the pre-flight rejection counter.
func RecordPreflightRejection() {
	DefaultMetrics.PreflightRejections.Inc()
}

// RecordInstruction increments the composed instruction counter.
func RecordInstruction(kind string) {
	DefaultMetrics.InstructionsComposed.WithLabelValues(kind).Inc()
}

// RecordSubmission records one submission attempt ending in state.
func RecordSubmission(state string, firstAttempt bool) {
	if firstAttempt {
		DefaultMetrics.TransactionsSubmitted.Inc()
	}
	DefaultMetrics.SubmissionAttempts.WithLabelValues(state).Inc()
}

// RecordConfirmationLatency records the time a transaction took to confirm.
func RecordConfirmationLatency(seconds float64) {
	DefaultMetrics.ConfirmationLatency.Observe(seconds)
}

// RecordRPCLatency records RPC call latency.
func RecordRPCLatency(method string, seconds float64, err error) {
	DefaultMetrics.RPCCallLatency.WithLabelValues(method).Observe(seconds)
	if err != nil {
		DefaultMetrics.RPCCallErrors.WithLabelValues(method).Inc()
	}
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
