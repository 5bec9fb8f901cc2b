package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DispatchAttempts tracks processing attempts per node and result
	DispatchAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_dispatch_attempts_total",
			Help: "Total number of processing attempts",
		},
		[]string{"node", "result"},
	)

	// Failovers tracks active node promotions
	Failovers = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_failovers_total",
			Help: "Total number of active node promotions",
		},
		[]string{"from", "to", "reason"},
	)

	// PoolExhausted counts requests where every node failed
	PoolExhausted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sentinel_pool_exhausted_total",
			Help: "Total number of requests that failed on every node",
		},
	)

	// NodeLatency tracks processing latency per node
	NodeLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sentinel_node_latency_seconds",
			Help:    "Processing latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"node"},
	)

	// NodeHealthy is 1 when the node passed its last observation
	NodeHealthy = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sentinel_node_healthy",
			Help: "Whether the node is currently considered healthy",
		},
		[]string{"node"},
	)

	// AlertsRaised tracks alerts per kind and severity
	AlertsRaised = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_alerts_total",
			Help: "Total number of alerts raised",
		},
		[]string{"kind", "severity"},
	)

	// AlertEnrichments tracks enrichment attempts by result
	AlertEnrichments = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_alert_enrichments_total",
			Help: "Alert explanation requests by result",
		},
		[]string{"result"},
	)

	// Validations tracks gate verdicts
	Validations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_validations_total",
			Help: "Validation verdicts by outcome",
		},
		[]string{"outcome"},
	)

	// SnapshotsSaved counts saved snapshots
	SnapshotsSaved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sentinel_snapshots_saved_total",
			Help: "Total number of snapshots saved",
		},
	)

	// SnapshotHistory is the current length of the snapshot history
	SnapshotHistory = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sentinel_snapshot_history",
			Help: "Number of snapshots currently retained",
		},
	)

	// Rollbacks tracks rollback attempts by mode and result
	Rollbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sentinel_rollbacks_total",
			Help: "Rollback attempts by mode and result",
		},
		[]string{"mode", "result"},
	)

	// DBConnectionPoolUsage tracks the database connection pool usage percentage
	DBConnectionPoolUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sentinel_db_connection_pool_usage_percent",
			Help: "Database connection pool usage percentage",
		},
	)

	// AlertsPruned counts stored alerts removed by retention
	AlertsPruned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sentinel_alerts_pruned_total",
			Help: "Total number of stored alerts deleted by retention",
		},
	)
)
