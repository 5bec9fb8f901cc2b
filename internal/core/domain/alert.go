package domain

import "time"

// Severity ranks alerts.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// AlertKind identifies the rule that raised an alert.
type AlertKind string

const (
	AlertKindUnhealthy     AlertKind = "unhealthy"
	AlertKindLatency       AlertKind = "latency_anomaly"
	AlertKindErrorRate     AlertKind = "error_rate"
	AlertKindResourceUsage AlertKind = "resource_usage"
)

// Alert is an append-only log entry raised by the monitor.
// Explanation is filled from the enrichment record when one exists.
type Alert struct {
	ID          string            `json:"id"          db:"id"`
	Node        string            `json:"node"        db:"node"`
	Kind        AlertKind         `json:"kind"        db:"kind"`
	Message     string            `json:"message"     db:"message"`
	Severity    Severity          `json:"severity"    db:"severity"`
	Timestamp   time.Time         `json:"timestamp"   db:"created_at"`
	Metrics     PerformanceSample `json:"metrics"     db:"-"`
	Explanation string            `json:"explanation" db:"explanation"`
}

// FailureKind separates dispatch errors from rejected results.
type FailureKind string

const (
	FailureKindDispatch   FailureKind = "dispatch"
	FailureKindValidation FailureKind = "validation"
)

// FailureRecord is one entry of the failure log.
type FailureRecord struct {
	Kind      FailureKind `json:"kind"`
	Node      string      `json:"node"`
	RequestID string      `json:"request_id"`
	Message   string      `json:"message"`
	Timestamp time.Time   `json:"timestamp"`
}
