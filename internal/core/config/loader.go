package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/vietddude/sentinel/internal/validate"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML content, expands environment variables and applies defaults.
func Parse(data []byte) (*AppConfig, error) {
	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// ApplyDefaults fills zero values with the documented defaults. Zero is
// treated as unset, so a threshold of exactly 0 cannot be configured.
func (c *AppConfig) ApplyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if len(c.Nodes) == 0 {
		c.Nodes = []NodeConfig{{Name: "node1"}, {Name: "node2"}, {Name: "node3"}}
	}

	if c.Dispatch.AttemptTimeout == 0 {
		c.Dispatch.AttemptTimeout = 30 * time.Second
	}
	if c.Dispatch.HealthCheckInterval == 0 {
		c.Dispatch.HealthCheckInterval = 30 * time.Second
	}
	if c.Dispatch.ProbeInput == "" {
		c.Dispatch.ProbeInput = "health_check"
	}

	m := &c.Monitor
	if m.LatencyAnomalyMultiplier == 0 {
		m.LatencyAnomalyMultiplier = 2.0
	}
	if m.ErrorRateThreshold == 0 {
		m.ErrorRateThreshold = 0.10
	}
	if m.ResourceThreshold == 0 {
		m.ResourceThreshold = 0.90
	}
	if m.FailurePenalty == 0 {
		m.FailurePenalty = time.Second
	}
	if m.HistorySize == 0 {
		m.HistorySize = 20
	}
	if m.EnrichmentTimeout == 0 {
		m.EnrichmentTimeout = 15 * time.Second
	}
	if m.EnrichmentRate == 0 {
		m.EnrichmentRate = 1
	}
	if m.EnrichmentBurst == 0 {
		m.EnrichmentBurst = 5
	}
	if m.FailureLogSize == 0 {
		m.FailureLogSize = 50
	}
	if m.AlertLogSize == 0 {
		m.AlertLogSize = 200
	}

	v := &c.Validator
	if v.ErrorThreshold == 0 {
		v.ErrorThreshold = 0.10
	}
	if v.ConsistencyThreshold == 0 {
		v.ConsistencyThreshold = 0.70
	}
	if v.Timeout == 0 {
		v.Timeout = 20 * time.Second
	}
	if v.FallbackMessage == "" {
		v.FallbackMessage = validate.DefaultFallbackMessage
	}

	if c.Snapshot.MaxHistory == 0 {
		c.Snapshot.MaxHistory = 10
	}
	if c.Snapshot.Interval == 0 {
		c.Snapshot.Interval = 5 * time.Minute
	}
	if c.Snapshot.Archive == "" {
		c.Snapshot.Archive = "memory"
	}
	if c.Snapshot.BadgerPath == "" {
		c.Snapshot.BadgerPath = "./data/snapshots"
	}

	if c.Advisory.Timeout == 0 {
		c.Advisory.Timeout = 15 * time.Second
	}
	if c.Advisory.Rate == 0 {
		c.Advisory.Rate = 5
	}
	if c.Advisory.Burst == 0 {
		c.Advisory.Burst = 10
	}
	if len(c.Collaborators) == 0 {
		c.Collaborators = []CollaboratorConfig{{Name: "knowledge"}, {Name: "model"}}
	}

	if c.Alerts.Store == "" {
		c.Alerts.Store = "memory"
	}
	if c.Alerts.RedisListSize == 0 {
		c.Alerts.RedisListSize = 1000
	}
}

// Validate rejects configurations the services cannot run with.
func (c *AppConfig) Validate() error {
	seen := make(map[string]bool, len(c.Nodes))
	for _, n := range c.Nodes {
		if n.Name == "" {
			return errors.New("node name must not be empty")
		}
		if seen[n.Name] {
			return fmt.Errorf("duplicate node name %q", n.Name)
		}
		seen[n.Name] = true
	}

	if c.Validator.ErrorThreshold < 0 || c.Validator.ErrorThreshold > 1 {
		return fmt.Errorf("validator.error_threshold must be in [0,1], got %v", c.Validator.ErrorThreshold)
	}
	if c.Validator.ConsistencyThreshold < 0 || c.Validator.ConsistencyThreshold > 1 {
		return fmt.Errorf(
			"validator.consistency_threshold must be in [0,1], got %v",
			c.Validator.ConsistencyThreshold,
		)
	}
	if c.Snapshot.MaxHistory < 2 {
		return fmt.Errorf("snapshot.max_history must be at least 2, got %d", c.Snapshot.MaxHistory)
	}

	switch c.Snapshot.Archive {
	case "memory", "redis", "badger":
	default:
		return fmt.Errorf("unknown snapshot archive %q", c.Snapshot.Archive)
	}
	switch c.Alerts.Store {
	case "memory":
	case "postgres":
		if c.Database.URL == "" {
			return errors.New("alerts.store=postgres requires database.url")
		}
	default:
		return fmt.Errorf("unknown alert store %q", c.Alerts.Store)
	}

	names := make(map[string]bool, len(c.Collaborators))
	for _, col := range c.Collaborators {
		if col.Name == "" || names[col.Name] {
			return fmt.Errorf("collaborator names must be unique and non-empty, got %q", col.Name)
		}
		names[col.Name] = true
	}
	return nil
}

// NodeNames returns node names in configuration order.
func (c *AppConfig) NodeNames() []string {
	names := make([]string, len(c.Nodes))
	for i, n := range c.Nodes {
		names[i] = n.Name
	}
	return names
}
