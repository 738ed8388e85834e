package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ============================================
	// Launch pipeline
	// ============================================
	LaunchRunsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "launcher_runs_started_total",
		Help: "Total number of launch runs started",
	})

	LaunchRunsFinished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "launcher_runs_finished_total",
			Help: "Total number of launch runs finished, by outcome",
		},
		[]string{"outcome"},
	)

	LaunchStepsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "launcher_steps_completed_total",
			Help: "Total number of pipeline steps completed (skipped=true when resumed)",
		},
		[]string{"step", "skipped"},
	)

	LaunchStepsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "launcher_steps_failed_total",
			Help: "Total number of pipeline step failures",
		},
		[]string{"step"},
	)

	LaunchStepDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "launcher_step_duration_seconds",
			Help:    "Time from run start (or previous step) to step completion",
			Buckets: []float64{1, 2, 5, 10, 20, 30, 60, 120, 300},
		},
		[]string{"step"},
	)

	// ============================================
	// Ledger transactions
	// ============================================
	LedgerTransactions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "launcher_ledger_transactions_total",
			Help: "Transactions submitted to the ledger, by method and status",
		},
		[]string{"method", "status"},
	)

	LedgerConfirmSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "launcher_ledger_confirm_seconds",
			Help:    "Time from signing to receipt",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	SignerBalance = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "launcher_signer_native_balance",
			Help: "Signer native balance in whole units",
		},
		[]string{"address"},
	)

	// ============================================
	// Infrastructure
	// ============================================
	NATSConnectionStatus = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "launcher_nats_connection_status",
		Help: "NATS connection status (1=connected, 0=disconnected)",
	})

	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "launcher_events_published_total",
			Help: "Launch events published to NATS",
		},
		[]string{"event_type", "status"},
	)

	StreamConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "launcher_stream_connections",
		Help: "Open websocket connections on the launch event stream",
	})

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "launcher_db_query_duration_seconds",
			Help:    "Launch run store query duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"query_type"},
	)
)
