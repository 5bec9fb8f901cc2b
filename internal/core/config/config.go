package config

import (
	"time"

	redisclient "github.com/vietddude/sentinel/internal/infra/redis"
	"github.com/vietddude/sentinel/internal/infra/storage/postgres"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server        ServerConfig         `yaml:"server"`
	Logging       LoggingConfig        `yaml:"logging"`
	Nodes         []NodeConfig         `yaml:"nodes"`
	Dispatch      DispatchConfig       `yaml:"dispatch"`
	Monitor       MonitorConfig        `yaml:"monitor"`
	Validator     ValidatorConfig      `yaml:"validator"`
	Snapshot      SnapshotConfig       `yaml:"snapshot"`
	Advisory      AdvisoryConfig       `yaml:"advisory"`
	Collaborators []CollaboratorConfig `yaml:"collaborators"`
	Alerts        AlertsConfig         `yaml:"alerts"`
	Redis         redisclient.Config   `yaml:"redis"`
	Database      postgres.Config      `yaml:"database"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// NodeConfig describes one processing node. Order matters: the first node starts active.
type NodeConfig struct {
	Name     string `yaml:"name"`
	URL      string `yaml:"url"`
	GRPCAddr string `yaml:"grpc_addr"` // optional; enables gRPC health probes
}

// DispatchConfig controls the failover dispatcher.
type DispatchConfig struct {
	AttemptTimeout      time.Duration `yaml:"attempt_timeout"`
	HealthCheckInterval time.Duration `yaml:"health_check_interval"` // negative disables the loop
	ProbeInput          string        `yaml:"probe_input"`
}

// MonitorConfig holds anomaly thresholds and enrichment limits.
// A zero value means unset and takes the default, so thresholds cannot be 0.
type MonitorConfig struct {
	LatencyAnomalyMultiplier float64       `yaml:"latency_anomaly_multiplier"`
	ErrorRateThreshold       float64       `yaml:"error_rate_threshold"`
	ResourceThreshold        float64       `yaml:"resource_threshold"`
	FailurePenalty           time.Duration `yaml:"failure_penalty"`
	HistorySize              int           `yaml:"history_size"`
	EnrichmentTimeout        time.Duration `yaml:"enrichment_timeout"`
	EnrichmentRate           float64       `yaml:"enrichment_rate"`
	EnrichmentBurst          int           `yaml:"enrichment_burst"`
	FailureLogSize           int           `yaml:"failure_log_size"`
	AlertLogSize             int           `yaml:"alert_log_size"`
}

// ValidatorConfig holds the fail-safe gate thresholds. Zero thresholds take the defaults.
type ValidatorConfig struct {
	ErrorThreshold       float64       `yaml:"error_threshold"`
	ConsistencyThreshold float64       `yaml:"consistency_threshold"`
	Timeout              time.Duration `yaml:"timeout"`
	FallbackMessage      string        `yaml:"fallback_message"`
}

// SnapshotConfig controls the rollback manager.
type SnapshotConfig struct {
	MaxHistory int           `yaml:"max_history"`
	Interval   time.Duration `yaml:"interval"` // negative disables periodic snapshots
	Archive    string        `yaml:"archive"`  // memory, redis, badger
	BadgerPath string        `yaml:"badger_path"`
}

// AdvisoryConfig points at the advisory endpoint.
type AdvisoryConfig struct {
	URL     string        `yaml:"url"` // empty disables validation and enrichment
	APIKey  string        `yaml:"api_key"`
	Timeout time.Duration `yaml:"timeout"`
	Rate    float64       `yaml:"rate"` // requests per second
	Burst   int           `yaml:"burst"`
}

// CollaboratorConfig declares a state-exportable collaborator.
// An empty URL selects an in-process store.
type CollaboratorConfig struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// AlertsConfig selects where alerts are kept and published.
type AlertsConfig struct {
	Store         string        `yaml:"store"`     // memory, postgres
	Retention     time.Duration `yaml:"retention"` // 0 keeps alerts forever
	PublishRedis  bool          `yaml:"publish_redis"`
	RedisListSize int64         `yaml:"redis_list_size"`
}
