package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/sentinel/internal/core/domain"
)

type fakeProcessor struct {
	mu    sync.Mutex
	fail  map[string]error
	delay map[string]time.Duration
	calls []string
}

func newFakeProcessor() *fakeProcessor {
	return &fakeProcessor{
		fail:  make(map[string]error),
		delay: make(map[string]time.Duration),
	}
}

func (p *fakeProcessor) Process(ctx context.Context, req domain.Request, node string) (domain.Result, error) {
	p.mu.Lock()
	p.calls = append(p.calls, node)
	err := p.fail[node]
	delay := p.delay[node]
	p.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return domain.Result{}, ctx.Err()
		}
	}
	if err != nil {
		return domain.Result{}, err
	}
	return domain.Result{Output: "ok from " + node}, nil
}

func (p *fakeProcessor) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

type outcomeRecord struct {
	node    string
	outcome domain.Outcome
}

type fakeRecorder struct {
	mu       sync.Mutex
	outcomes []outcomeRecord
	statuses map[string]domain.NodeStatus
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{statuses: make(map[string]domain.NodeStatus)}
}

func (r *fakeRecorder) RecordOutcome(_ context.Context, node string, o domain.Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcomeRecord{node: node, outcome: o})
}

func (r *fakeRecorder) RecordStatus(_ context.Context, node string, s domain.NodeStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses[node] = s
}

func (r *fakeRecorder) failures() []outcomeRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []outcomeRecord
	for _, o := range r.outcomes {
		if !o.outcome.Success {
			out = append(out, o)
		}
	}
	return out
}

func newTestDispatcher(t *testing.T, names []string, cfg Config) (*Dispatcher, *fakeProcessor, *fakeRecorder) {
	t.Helper()
	reg, err := NewRegistry(names)
	require.NoError(t, err)
	proc := newFakeProcessor()
	rec := newFakeRecorder()
	return New(cfg, reg, proc, rec), proc, rec
}

func nodeNames(k int) []string {
	names := make([]string, k)
	for i := range names {
		names[i] = fmt.Sprintf("node%d", i+1)
	}
	return names
}

func TestProcess_ActiveSucceeds(t *testing.T) {
	d, proc, rec := newTestDispatcher(t, nodeNames(3), Config{})

	res, err := d.Process(context.Background(), domain.Request{ID: "r1", CallerID: "u1", Input: "hello"})
	require.NoError(t, err)

	assert.Equal(t, "node1", res.NodeID)
	assert.Equal(t, "r1", res.RequestID)
	assert.Equal(t, "ok from node1", res.Output)
	assert.Equal(t, []string{"node1"}, proc.Calls())
	require.Len(t, rec.outcomes, 1)
	assert.True(t, rec.outcomes[0].outcome.Success)
	assert.Equal(t, "node1", d.Registry().Active())
}

func TestProcess_AssignsRequestID(t *testing.T) {
	d, _, _ := newTestDispatcher(t, nodeNames(1), Config{})

	res, err := d.Process(context.Background(), domain.Request{Input: "x"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.RequestID)
}

func TestProcess_FailoverSucceeds(t *testing.T) {
	d, proc, rec := newTestDispatcher(t, nodeNames(3), Config{})
	proc.fail["node1"] = errors.New("boom")

	res, err := d.Process(context.Background(), domain.Request{ID: "r1", Input: "hello"})
	require.NoError(t, err)

	assert.Equal(t, "node2", res.NodeID)
	assert.Equal(t, "node2", d.Registry().Active())
	assert.Equal(t, []string{"node1", "node2"}, proc.Calls())

	n1, _ := d.Registry().Get("node1")
	assert.Equal(t, domain.NodeStatusUnhealthy, n1.Status)
	assert.Equal(t, domain.NodeRoleBackup, n1.Role)
	n2, _ := d.Registry().Get("node2")
	assert.Equal(t, domain.NodeRoleActive, n2.Role)

	fails := rec.failures()
	require.Len(t, fails, 1)
	assert.Equal(t, "node1", fails[0].node)
	assert.Equal(t, "r1", fails[0].outcome.RequestID)
}

func TestProcess_ExhaustsEveryNodeOnce(t *testing.T) {
	for k := 1; k <= 4; k++ {
		t.Run(fmt.Sprintf("nodes=%d", k), func(t *testing.T) {
			names := nodeNames(k)
			d, proc, rec := newTestDispatcher(t, names, Config{})
			for _, n := range names {
				proc.fail[n] = fmt.Errorf("%s down", n)
			}

			_, err := d.Process(context.Background(), domain.Request{ID: "r1", Input: "hello"})
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrAllNodesUnavailable))

			var exhausted *AllNodesUnavailableError
			require.True(t, errors.As(err, &exhausted))
			assert.Len(t, exhausted.Failures, k)

			calls := proc.Calls()
			assert.LessOrEqual(t, len(calls), k)
			seen := make(map[string]bool)
			for _, c := range calls {
				assert.False(t, seen[c], "node %s tried twice", c)
				seen[c] = true
			}

			assert.Len(t, rec.failures(), k)
		})
	}
}

func TestProcess_PrefersHealthyCandidate(t *testing.T) {
	d, proc, _ := newTestDispatcher(t, nodeNames(3), Config{})
	d.Registry().SetStatus("node2", domain.NodeStatusUnhealthy)
	proc.fail["node1"] = errors.New("boom")

	res, err := d.Process(context.Background(), domain.Request{ID: "r1"})
	require.NoError(t, err)
	assert.Equal(t, "node3", res.NodeID)
	assert.Equal(t, []string{"node1", "node3"}, proc.Calls())
}

func TestProcess_AttemptDeadlineFailsOver(t *testing.T) {
	d, proc, rec := newTestDispatcher(t, nodeNames(2), Config{AttemptTimeout: 20 * time.Millisecond})
	proc.delay["node1"] = time.Second

	res, err := d.Process(context.Background(), domain.Request{ID: "r1"})
	require.NoError(t, err)
	assert.Equal(t, "node2", res.NodeID)

	fails := rec.failures()
	require.Len(t, fails, 1)
	assert.ErrorIs(t, fails[0].outcome.Err, context.DeadlineExceeded)
}

func TestProcess_CallerCancelAborts(t *testing.T) {
	d, proc, rec := newTestDispatcher(t, nodeNames(3), Config{})
	proc.delay["node1"] = time.Second

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := d.Process(ctx, domain.Request{ID: "r1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, errors.Is(err, ErrAllNodesUnavailable))
	assert.Equal(t, []string{"node1"}, proc.Calls())
	assert.Empty(t, rec.failures())
	assert.Equal(t, "node1", d.Registry().Active())
}

type fakeProber struct{ err error }

func (p fakeProber) Probe(context.Context) error { return p.err }

func TestHealthCheck_PromotesHealthyPeer(t *testing.T) {
	d, proc, rec := newTestDispatcher(t, nodeNames(3), Config{})
	proc.fail["node1"] = errors.New("down")
	d.SetProber("node2", fakeProber{err: errors.New("unreachable")})

	results := d.HealthCheck(context.Background())
	require.Len(t, results, 3)
	assert.Equal(t, domain.NodeStatusUnhealthy, results[0].Status)
	assert.Equal(t, domain.NodeStatusUnhealthy, results[1].Status)
	assert.Equal(t, domain.NodeStatusHealthy, results[2].Status)

	assert.Equal(t, "node3", d.Registry().Active())
	assert.Equal(t, domain.NodeStatusUnhealthy, rec.statuses["node1"])
	assert.Equal(t, domain.NodeStatusHealthy, rec.statuses["node3"])
	assert.Empty(t, rec.outcomes, "probes are not request outcomes")
}

func TestHealthCheck_NoHealthyPeerKeepsActive(t *testing.T) {
	d, proc, _ := newTestDispatcher(t, nodeNames(2), Config{})
	proc.fail["node1"] = errors.New("down")
	proc.fail["node2"] = errors.New("down")

	d.HealthCheck(context.Background())
	assert.Equal(t, "node1", d.Registry().Active())
}

func TestHealthCheck_HealthyActiveUnchanged(t *testing.T) {
	d, proc, _ := newTestDispatcher(t, nodeNames(2), Config{ProbeInput: "ping"})
	proc.fail["node2"] = errors.New("down")

	results := d.HealthCheck(context.Background())
	assert.Equal(t, "node1", d.Registry().Active())
	assert.Equal(t, domain.NodeStatusUnhealthy, results[1].Status)
	assert.NotEmpty(t, results[1].Error)
}

func TestProcess_ConcurrentRequests(t *testing.T) {
	d, proc, _ := newTestDispatcher(t, nodeNames(3), Config{})
	proc.fail["node1"] = errors.New("boom")

	var wg sync.WaitGroup
	errs := make(chan error, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := d.Process(context.Background(), domain.Request{ID: fmt.Sprintf("r%d", i)})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.NotEqual(t, "node1", d.Registry().Active())
}
