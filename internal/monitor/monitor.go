// Package monitor tracks per-node performance and raises alerts when a node
// deviates from its peers or crosses fixed error and resource thresholds.
package monitor

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/vietddude/sentinel/internal/core/domain"
	"github.com/vietddude/sentinel/internal/metrics"
)

// Advisor produces free-text analysis for a prompt.
type Advisor interface {
	Assess(ctx context.Context, prompt string) (string, error)
}

// ResourceSampler reports current utilization for a node.
type ResourceSampler interface {
	Sample(node string) domain.ResourceUsage
}

// AlertSink receives every alert the monitor raises.
type AlertSink interface {
	Publish(ctx context.Context, alert domain.Alert) error
}

// Annotator is implemented by sinks that store alert explanations.
type Annotator interface {
	Annotate(ctx context.Context, alertID, explanation string) error
}

// Config holds anomaly thresholds and enrichment limits.
type Config struct {
	LatencyAnomalyMultiplier float64
	ErrorRateThreshold       float64
	ResourceThreshold        float64 // fraction of 100% utilization
	FailurePenalty           time.Duration
	HistorySize              int
	EnrichmentTimeout        time.Duration
	EnrichmentRate           float64 // explanations per second
	EnrichmentBurst          int
	FailureLogSize           int
	AlertLogSize             int
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		LatencyAnomalyMultiplier: 2.0,
		ErrorRateThreshold:       0.10,
		ResourceThreshold:        0.90,
		FailurePenalty:           time.Second,
		HistorySize:              20,
		EnrichmentTimeout:        15 * time.Second,
		EnrichmentRate:           1,
		EnrichmentBurst:          5,
		FailureLogSize:           50,
		AlertLogSize:             200,
	}
}

// nodeState is guarded by its own lock so concurrent requests on
// different nodes never contend.
type nodeState struct {
	mu      sync.Mutex
	sample  domain.PerformanceSample
	history []time.Duration
}

// Monitor records node outcomes, detects anomalies and raises alerts.
type Monitor struct {
	cfg     Config
	advisor Advisor
	sampler ResourceSampler
	limiter *rate.Limiter
	log     *slog.Logger
	now     func() time.Time

	mu    sync.RWMutex
	nodes map[string]*nodeState

	alertMu      sync.RWMutex
	alerts       []domain.Alert
	explanations map[string]string
	sinks        []AlertSink

	failMu   sync.Mutex
	failures []domain.FailureRecord

	wg sync.WaitGroup
}

// New creates a monitor. advisor may be nil, in which case alerts are not enriched.
// A nil sampler falls back to the process runtime sampler.
func New(cfg Config, advisor Advisor, sampler ResourceSampler) *Monitor {
	def := DefaultConfig()
	if cfg.LatencyAnomalyMultiplier <= 0 {
		cfg.LatencyAnomalyMultiplier = def.LatencyAnomalyMultiplier
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = def.HistorySize
	}
	if cfg.EnrichmentTimeout <= 0 {
		cfg.EnrichmentTimeout = def.EnrichmentTimeout
	}
	if cfg.FailureLogSize <= 0 {
		cfg.FailureLogSize = def.FailureLogSize
	}
	if cfg.AlertLogSize <= 0 {
		cfg.AlertLogSize = def.AlertLogSize
	}
	if cfg.ErrorRateThreshold <= 0 {
		cfg.ErrorRateThreshold = def.ErrorRateThreshold
	}
	if cfg.ResourceThreshold <= 0 {
		cfg.ResourceThreshold = def.ResourceThreshold
	}
	if cfg.FailurePenalty <= 0 {
		cfg.FailurePenalty = def.FailurePenalty
	}
	if sampler == nil {
		sampler = NewRuntimeSampler()
	}

	limit := rate.Inf
	if cfg.EnrichmentRate > 0 {
		limit = rate.Limit(cfg.EnrichmentRate)
	}
	burst := cfg.EnrichmentBurst
	if burst <= 0 {
		burst = 1
	}

	return &Monitor{
		cfg:          cfg,
		advisor:      advisor,
		sampler:      sampler,
		limiter:      rate.NewLimiter(limit, burst),
		log:          slog.Default().With("component", "monitor"),
		now:          time.Now,
		nodes:        make(map[string]*nodeState),
		explanations: make(map[string]string),
	}
}

// Config returns the thresholds the monitor runs with.
func (m *Monitor) Config() Config {
	return m.cfg
}

// SetLogger replaces the monitor's logger.
func (m *Monitor) SetLogger(l *slog.Logger) {
	m.log = l.With("component", "monitor")
}

// AddSink registers a destination for raised alerts.
func (m *Monitor) AddSink(s AlertSink) {
	m.alertMu.Lock()
	defer m.alertMu.Unlock()
	m.sinks = append(m.sinks, s)
}

// Track registers nodes up front so status reports include nodes with no traffic yet.
func (m *Monitor) Track(nodes ...string) {
	for _, n := range nodes {
		m.state(n)
	}
}

func (m *Monitor) state(node string) *nodeState {
	m.mu.RLock()
	st, ok := m.nodes[node]
	m.mu.RUnlock()
	if ok {
		return st
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if st, ok = m.nodes[node]; ok {
		return st
	}
	st = &nodeState{
		sample:  domain.PerformanceSample{Node: node, Status: domain.NodeStatusHealthy},
		history: make([]time.Duration, 0, m.cfg.HistorySize),
	}
	m.nodes[node] = st
	return st
}

// RecordOutcome updates the node's sample with one attempt and runs anomaly detection.
func (m *Monitor) RecordOutcome(ctx context.Context, node string, outcome domain.Outcome) {
	st := m.state(node)

	usage := m.sampler.Sample(node)
	if outcome.Usage != nil {
		usage = *outcome.Usage
	}

	st.mu.Lock()
	st.sample.Requests++
	if outcome.Success {
		st.sample.Latency = outcome.Latency
		st.sample.Status = domain.NodeStatusHealthy
		st.pushLatency(outcome.Latency, m.cfg.HistorySize)
	} else {
		st.sample.Errors++
		st.sample.Latency += m.cfg.FailurePenalty
		st.sample.Status = domain.NodeStatusUnhealthy
	}
	st.sample.Usage = usage
	st.sample.UpdatedAt = m.now()
	sample := st.snapshot()
	st.mu.Unlock()

	result := "success"
	if !outcome.Success {
		result = "failure"
		m.logFailure(node, outcome)
	} else {
		metrics.NodeLatency.WithLabelValues(node).Observe(outcome.Latency.Seconds())
	}
	metrics.DispatchAttempts.WithLabelValues(node, result).Inc()
	metrics.NodeHealthy.WithLabelValues(node).Set(boolGauge(outcome.Success))

	m.detectAnomalies(ctx, sample)
}

// RecordStatus stores a probe verdict. An unhealthy verdict always raises an alert.
func (m *Monitor) RecordStatus(ctx context.Context, node string, status domain.NodeStatus) {
	st := m.state(node)

	st.mu.Lock()
	st.sample.Status = status
	st.sample.UpdatedAt = m.now()
	sample := st.snapshot()
	st.mu.Unlock()

	metrics.NodeHealthy.WithLabelValues(node).Set(boolGauge(status == domain.NodeStatusHealthy))
	m.log.Debug("Node status recorded", "node", node, "status", status)

	if status == domain.NodeStatusUnhealthy {
		m.raise(ctx, sample, domain.AlertKindUnhealthy, domain.SeverityCritical, "Node health check failed")
	}
}

// GetMetrics returns the latest sample for a node.
func (m *Monitor) GetMetrics(node string) (domain.PerformanceSample, bool) {
	m.mu.RLock()
	st, ok := m.nodes[node]
	m.mu.RUnlock()
	if !ok {
		return domain.PerformanceSample{}, false
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	return st.snapshot(), true
}

// AllMetrics returns the latest sample of every tracked node, sorted by name.
func (m *Monitor) AllMetrics() []domain.PerformanceSample {
	m.mu.RLock()
	states := make([]*nodeState, 0, len(m.nodes))
	for _, st := range m.nodes {
		states = append(states, st)
	}
	m.mu.RUnlock()

	out := make([]domain.PerformanceSample, 0, len(states))
	for _, st := range states {
		st.mu.Lock()
		out = append(out, st.snapshot())
		st.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Node < out[j].Node })
	return out
}

// Wait blocks until detached alert deliveries and enrichments have finished.
func (m *Monitor) Wait() {
	m.wg.Wait()
}

// pushLatency appends to the rolling window, dropping the oldest entry when full.
func (st *nodeState) pushLatency(d time.Duration, size int) {
	if len(st.history) >= size {
		copy(st.history, st.history[1:])
		st.history[len(st.history)-1] = d
		return
	}
	st.history = append(st.history, d)
}

// snapshot must be called with st.mu held.
func (st *nodeState) snapshot() domain.PerformanceSample {
	s := st.sample
	s.History = append([]time.Duration(nil), st.history...)
	if len(st.history) > 0 {
		var total time.Duration
		for _, d := range st.history {
			total += d
		}
		s.AverageLatency = total / time.Duration(len(st.history))
	}
	return s
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
