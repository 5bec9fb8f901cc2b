package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/sentinel/internal/core/domain"
)

// ProbeResult is the verdict for one node in a health check.
type ProbeResult struct {
	Node   string            `json:"node"`
	Status domain.NodeStatus `json:"status"`
	Error  string            `json:"error,omitempty"`
}

// HealthCheck probes every node, records the verdicts and fails over when the
// active node is found unhealthy.
func (d *Dispatcher) HealthCheck(ctx context.Context) []ProbeResult {
	names := d.registry.Names()
	results := make([]ProbeResult, 0, len(names))
	healthy := make(map[string]bool, len(names))

	for _, node := range names {
		res := ProbeResult{Node: node, Status: domain.NodeStatusHealthy}
		if err := d.probe(ctx, node); err != nil {
			res.Status = domain.NodeStatusUnhealthy
			res.Error = err.Error()
		} else {
			healthy[node] = true
		}

		d.setStatus(node, res.Status)
		d.recorder.RecordStatus(ctx, node, res.Status)
		results = append(results, res)
	}

	active := d.registry.Active()
	if !healthy[active] {
		d.failoverFrom(active, healthy)
	}
	return results
}

func (d *Dispatcher) failoverFrom(active string, healthy map[string]bool) {
	for _, node := range d.registry.Names() {
		if node == active || !healthy[node] {
			continue
		}
		if d.registry.Promote(active, node, "health check") {
			d.log.Warn("Active node failed health check, switched", "from", active, "to", node)
		}
		return
	}
	d.log.Error("Active node failed health check and no healthy backup is available", "node", active)
}

func (d *Dispatcher) probe(ctx context.Context, node string) error {
	if d.cfg.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cfg.AttemptTimeout)
		defer cancel()
	}

	if p, ok := d.probers[node]; ok {
		return p.Probe(ctx)
	}

	req := domain.Request{
		ID:       "probe-" + uuid.NewString(),
		CallerID: "system",
		Input:    d.cfg.ProbeInput,
	}
	if _, err := d.processor.Process(ctx, req, node); err != nil {
		return fmt.Errorf("probe %s: %w", node, err)
	}
	return nil
}

// Start runs health checks on the configured interval until ctx is done.
func (d *Dispatcher) Start(ctx context.Context) {
	if d.cfg.HealthCheckInterval <= 0 {
		return // Periodic checks disabled
	}

	ticker := time.NewTicker(d.cfg.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			results := d.HealthCheck(ctx)
			unhealthy := 0
			for _, r := range results {
				if r.Status != domain.NodeStatusHealthy {
					unhealthy++
				}
			}
			d.log.Debug("Health check complete", "nodes", len(results), "unhealthy", unhealthy)
		}
	}
}
