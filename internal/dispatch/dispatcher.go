// Package dispatch routes requests to the active processing node and fails
// over to backup nodes when the active one errors.
//
// A call chain tries each node at most once. The set of nodes already tried
// is carried explicitly through the loop, so a node that was promoted and then
// failed is never retried within the same call.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/sentinel/internal/core/domain"
	"github.com/vietddude/sentinel/internal/metrics"
)

// Processor is the external processing function bound to a node.
type Processor interface {
	Process(ctx context.Context, req domain.Request, node string) (domain.Result, error)
}

// Recorder receives every attempt outcome and probe verdict.
type Recorder interface {
	RecordOutcome(ctx context.Context, node string, outcome domain.Outcome)
	RecordStatus(ctx context.Context, node string, status domain.NodeStatus)
}

// Prober checks a node through a channel other than the processing function.
type Prober interface {
	Probe(ctx context.Context) error
}

// Config controls attempt deadlines and health probing.
type Config struct {
	AttemptTimeout      time.Duration // 0 means no per-attempt deadline
	HealthCheckInterval time.Duration // 0 disables the periodic loop
	ProbeInput          string
}

// Dispatcher sends requests to the active node with failover.
type Dispatcher struct {
	cfg       Config
	registry  *Registry
	processor Processor
	recorder  Recorder
	probers   map[string]Prober
	log       *slog.Logger
}

// New creates a dispatcher.
func New(cfg Config, registry *Registry, processor Processor, recorder Recorder) *Dispatcher {
	if cfg.ProbeInput == "" {
		cfg.ProbeInput = "health_check"
	}
	d := &Dispatcher{
		cfg:       cfg,
		registry:  registry,
		processor: processor,
		recorder:  recorder,
		probers:   make(map[string]Prober),
		log:       slog.Default().With("component", "dispatcher"),
	}
	registry.SetFailoverCallback(d.onFailover)
	for _, name := range registry.Names() {
		metrics.NodeHealthy.WithLabelValues(name).Set(1)
	}
	return d
}

func (d *Dispatcher) onFailover(from, to, reason string) {
	metrics.Failovers.WithLabelValues(from, to, reason).Inc()
	d.log.Info("Active node changed", "from", from, "to", to, "reason", reason)
}

func (d *Dispatcher) setStatus(node string, status domain.NodeStatus) {
	d.registry.SetStatus(node, status)
	v := 0.0
	if status == domain.NodeStatusHealthy {
		v = 1
	}
	metrics.NodeHealthy.WithLabelValues(node).Set(v)
}

// SetLogger replaces the dispatcher's logger.
func (d *Dispatcher) SetLogger(l *slog.Logger) {
	d.log = l.With("component", "dispatcher")
}

// SetProber replaces the synthetic probe request for one node. Not safe to
// call once health checks are running.
func (d *Dispatcher) SetProber(node string, p Prober) {
	d.probers[node] = p
}

// Registry returns the node registry.
func (d *Dispatcher) Registry() *Registry {
	return d.registry
}

// Process runs req on the active node, failing over through the pool until a
// node succeeds or every node has been tried once.
func (d *Dispatcher) Process(ctx context.Context, req domain.Request) (domain.Result, error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	tried := make(map[string]bool)
	var failures []NodeFailure
	node := d.registry.Active()

	for {
		tried[node] = true

		result, err := d.attempt(ctx, req, node)
		if err == nil {
			d.setStatus(node, domain.NodeStatusHealthy)
			return result, nil
		}
		if ClassifyError(ctx, err) == ActionAbort {
			return domain.Result{}, fmt.Errorf("request %s aborted: %w", req.ID, ctx.Err())
		}

		failures = append(failures, NodeFailure{Node: node, Err: err})
		d.setStatus(node, domain.NodeStatusUnhealthy)

		next, ok := d.registry.nextCandidate(tried)
		if !ok {
			metrics.PoolExhausted.Inc()
			d.log.Error("All nodes failed", "request_id", req.ID, "attempts", len(failures))
			return domain.Result{}, &AllNodesUnavailableError{Failures: failures}
		}

		if d.registry.Promote(node, next, "dispatch failure") {
			d.log.Warn("Switching to backup node", "from", node, "to", next, "request_id", req.ID)
		}
		node = next
	}
}

// attempt runs one node call under the attempt deadline and records its outcome.
func (d *Dispatcher) attempt(ctx context.Context, req domain.Request, node string) (domain.Result, error) {
	actx := ctx
	if d.cfg.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeout(ctx, d.cfg.AttemptTimeout)
		defer cancel()
	}

	start := time.Now()
	result, err := d.processor.Process(actx, req, node)
	latency := time.Since(start)

	if err != nil {
		if ctx.Err() != nil {
			return domain.Result{}, err
		}
		if errors.Is(actx.Err(), context.DeadlineExceeded) && !errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
		}
		err = fmt.Errorf("node %s: %w", node, err)
		d.recorder.RecordOutcome(ctx, node, domain.FailureOutcome(req.ID, latency, err))
		return domain.Result{}, err
	}

	result.RequestID = req.ID
	result.NodeID = node
	if result.Latency == 0 {
		result.Latency = latency
	}

	outcome := domain.SuccessOutcome(req.ID, result.Latency)
	outcome.Usage = result.Usage
	d.recorder.RecordOutcome(ctx, node, outcome)
	return result, nil
}
