package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/sentinel/internal/core/domain"
	"github.com/vietddude/sentinel/internal/dispatch"
	"github.com/vietddude/sentinel/internal/infra/node"
	"github.com/vietddude/sentinel/internal/infra/statestore"
	"github.com/vietddude/sentinel/internal/infra/storage/memory"
	"github.com/vietddude/sentinel/internal/monitor"
	"github.com/vietddude/sentinel/internal/rollback"
)

type gatewayFunc func(ctx context.Context, req domain.Request) (domain.Response, error)

func (f gatewayFunc) Handle(ctx context.Context, req domain.Request) (domain.Response, error) {
	return f(ctx, req)
}

type harness struct {
	srv      *Server
	registry *dispatch.Registry
	monitor  *monitor.Monitor
	rollback *rollback.Manager
	alerts   *memory.AlertRepo
	store    *statestore.MemoryStore
	gateway  gatewayFunc
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	registry, err := dispatch.NewRegistry([]string{"a", "b"})
	require.NoError(t, err)

	pool := node.NewPool()
	pool.Add("a", node.Echo())
	pool.Add("b", node.Echo())

	mon := monitor.New(monitor.DefaultConfig(), nil, monitor.StaticSampler{CPU: 10, Memory: 10})
	mon.Track("a", "b")
	disp := dispatch.New(dispatch.Config{AttemptTimeout: time.Second}, registry, pool, mon)

	store := statestore.NewMemoryStore("knowledge")
	rb, err := rollback.NewManager(5, rollback.NewMemoryArchive(), store)
	require.NoError(t, err)

	h := &harness{
		registry: registry,
		monitor:  mon,
		rollback: rb,
		alerts:   memory.NewAlertRepo(),
		store:    store,
	}
	h.gateway = func(ctx context.Context, req domain.Request) (domain.Response, error) {
		return domain.Response{RequestID: req.ID, NodeID: "a", Output: strings.ToUpper(req.Input)}, nil
	}

	h.srv = New(Deps{
		Gateway:    gatewayFunc(func(ctx context.Context, req domain.Request) (domain.Response, error) { return h.gateway(ctx, req) }),
		Dispatcher: disp,
		Monitor:    mon,
		Rollback:   rb,
		Alerts:     h.alerts,
		Stores:     map[string]*statestore.MemoryStore{"knowledge": store},
	}, 0)
	return h
}

func (h *harness) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	h.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

// =============================================================================
// Health
// =============================================================================

func TestHealth_Statuses(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decode[map[string]string](t, rec)["status"])

	h.registry.SetStatus("b", domain.NodeStatusUnhealthy)
	rec = h.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "degraded", decode[map[string]string](t, rec)["status"])

	h.registry.SetStatus("a", domain.NodeStatusUnhealthy)
	rec = h.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "critical", decode[map[string]string](t, rec)["status"])
}

func TestHealth_Detailed(t *testing.T) {
	h := newHarness(t)
	_, err := h.rollback.SaveSnapshot(context.Background())
	require.NoError(t, err)

	rec := h.do(t, http.MethodGet, "/health/detailed", "")
	require.Equal(t, http.StatusOK, rec.Code)

	report := decode[HealthReport](t, rec)
	assert.Equal(t, StatusHealthy, report.SystemStatus)
	assert.Equal(t, "a", report.ActiveNode)
	assert.Equal(t, 1, report.Snapshots)
	require.Len(t, report.Nodes, 2)
	assert.Equal(t, domain.NodeRoleActive, report.Nodes[0].Role)
	assert.Equal(t, domain.NodeRoleBackup, report.Nodes[1].Role)
}

func TestNodeStatus(t *testing.T) {
	healthy := domain.Node{Name: "a", Status: domain.NodeStatusHealthy}
	unhealthy := domain.Node{Name: "a", Status: domain.NodeStatusUnhealthy}

	assert.Equal(t, StatusHealthy, nodeStatus(healthy, domain.PerformanceSample{Requests: 10, Errors: 1}, 0.10))
	assert.Equal(t, StatusDegraded, nodeStatus(healthy, domain.PerformanceSample{Requests: 10, Errors: 2}, 0.10))
	assert.Equal(t, StatusCritical, nodeStatus(unhealthy, domain.PerformanceSample{}, 0.10))
}

func TestAggregate(t *testing.T) {
	assert.Equal(t, StatusCritical, aggregate(nil))
	assert.Equal(t, StatusHealthy, aggregate([]NodeHealth{{Status: StatusHealthy}, {Status: StatusHealthy}}))
	assert.Equal(t, StatusDegraded, aggregate([]NodeHealth{{Status: StatusHealthy}, {Status: StatusDegraded}}))
	assert.Equal(t, StatusCritical, aggregate([]NodeHealth{{Status: StatusDegraded}, {Status: StatusCritical}}))
}

// =============================================================================
// Process
// =============================================================================

func TestProcess(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodPost, "/v1/process", `{"input":"hi","caller_id":"c1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[domain.Response](t, rec)
	assert.Equal(t, "HI", resp.Output)
	assert.Equal(t, rec.Header().Get("X-Request-ID"), resp.RequestID)
}

func TestProcess_Errors(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, http.StatusBadRequest, h.do(t, http.MethodPost, "/v1/process", `{`).Code)
	assert.Equal(t, http.StatusBadRequest, h.do(t, http.MethodPost, "/v1/process", `{"input":""}`).Code)

	h.gateway = func(context.Context, domain.Request) (domain.Response, error) {
		return domain.Response{}, &dispatch.AllNodesUnavailableError{
			Failures: []dispatch.NodeFailure{{Node: "a", Err: errors.New("boom")}},
		}
	}
	rec := h.do(t, http.MethodPost, "/v1/process", `{"input":"x"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, decode[errorResponse](t, rec).Error, "boom")

	h.gateway = func(context.Context, domain.Request) (domain.Response, error) {
		return domain.Response{}, errors.New("unexpected")
	}
	assert.Equal(t, http.StatusInternalServerError, h.do(t, http.MethodPost, "/v1/process", `{"input":"x"}`).Code)
}

func TestRecoveryMiddleware(t *testing.T) {
	h := newHarness(t)
	h.gateway = func(context.Context, domain.Request) (domain.Response, error) {
		panic("kaboom")
	}
	rec := h.do(t, http.MethodPost, "/v1/process", `{"input":"x"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

// =============================================================================
// Alerts and failures
// =============================================================================

func TestAlerts_Filter(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	now := time.Now()
	require.NoError(t, h.alerts.Save(ctx, domain.Alert{ID: "1", Node: "a", Kind: domain.AlertKindLatency, Timestamp: now}))
	require.NoError(t, h.alerts.Save(ctx, domain.Alert{ID: "2", Node: "b", Kind: domain.AlertKindUnhealthy, Timestamp: now}))

	rec := h.do(t, http.MethodGet, "/alerts?node=b", "")
	require.Equal(t, http.StatusOK, rec.Code)
	alerts := decode[[]domain.Alert](t, rec)
	require.Len(t, alerts, 1)
	assert.Equal(t, "2", alerts[0].ID)

	assert.Len(t, decode[[]domain.Alert](t, h.do(t, http.MethodGet, "/alerts", "")), 2)
	assert.Equal(t, http.StatusBadRequest, h.do(t, http.MethodGet, "/alerts?limit=x", "").Code)
	assert.Equal(t, http.StatusBadRequest, h.do(t, http.MethodGet, "/alerts?since=yesterday", "").Code)
}

func TestFailures(t *testing.T) {
	h := newHarness(t)
	h.monitor.RecordOutcome(context.Background(), "a", domain.FailureOutcome("r1", time.Millisecond, errors.New("down")))

	rec := h.do(t, http.MethodGet, "/failures", "")
	require.Equal(t, http.StatusOK, rec.Code)
	failures := decode[[]domain.FailureRecord](t, rec)
	require.Len(t, failures, 1)
	assert.Equal(t, "a", failures[0].Node)

	// no advisor configured
	assert.Equal(t, http.StatusBadGateway, h.do(t, http.MethodGet, "/failures/analysis", "").Code)
	assert.Equal(t, http.StatusServiceUnavailable, h.do(t, http.MethodGet, "/failures/scenarios", "").Code)
}

// =============================================================================
// Snapshots and rollback
// =============================================================================

func TestSnapshotsAndRollback(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, http.StatusConflict, h.do(t, http.MethodPost, "/rollback/previous", "").Code)

	h.store.Set("k", "v1")
	require.Equal(t, http.StatusCreated, h.do(t, http.MethodPost, "/snapshots", "").Code)
	h.store.Set("k", "v2")
	require.Equal(t, http.StatusCreated, h.do(t, http.MethodPost, "/snapshots", "").Code)

	infos := decode[[]domain.SnapshotInfo](t, h.do(t, http.MethodGet, "/snapshots", ""))
	require.Len(t, infos, 2)

	rec := h.do(t, http.MethodPost, "/rollback/previous", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[rollbackResponse](t, rec)
	assert.True(t, body.RolledBack)
	assert.Len(t, body.History, 1)

	v, _ := h.store.Get("k")
	assert.Equal(t, "v1", v)
}

func TestRollbackTimestamp(t *testing.T) {
	h := newHarness(t)
	_, err := h.rollback.SaveSnapshot(context.Background())
	require.NoError(t, err)

	assert.Equal(t, http.StatusBadRequest, h.do(t, http.MethodPost, "/rollback?ts=nope", "").Code)
	assert.Equal(t, http.StatusNotFound, h.do(t, http.MethodPost, "/rollback?ts=2000-01-01T00:00:00Z", "").Code)

	future := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)
	assert.Equal(t, http.StatusOK, h.do(t, http.MethodPost, "/rollback?ts="+future, "").Code)
}

// =============================================================================
// Nodes
// =============================================================================

func TestActivate(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, http.StatusNotFound, h.do(t, http.MethodPost, "/nodes/zzz/activate", "").Code)

	rec := h.do(t, http.MethodPost, "/nodes/b/activate", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "b", h.registry.Active())
}

func TestHealthCheckEndpoint(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodPost, "/healthcheck", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[healthCheckResponse](t, rec)
	assert.Equal(t, "a", body.ActiveNode)
	require.Len(t, body.Results, 2)
	for _, r := range body.Results {
		assert.Equal(t, domain.NodeStatusHealthy, r.Status)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, http.StatusMethodNotAllowed, h.do(t, http.MethodGet, "/rollback/previous", "").Code)
}

// =============================================================================
// State
// =============================================================================

func TestStateEndpoints(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, http.StatusNotFound, h.do(t, http.MethodGet, "/state/unknown", "").Code)
	assert.Equal(t, http.StatusNotFound, h.do(t, http.MethodGet, "/state/knowledge/k", "").Code)

	require.Equal(t, http.StatusOK, h.do(t, http.MethodPut, "/state/knowledge/k", `{"value":"v"}`).Code)
	rec := h.do(t, http.MethodGet, "/state/knowledge/k", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "v", decode[map[string]string](t, rec)["value"])

	assert.Equal(t, map[string]string{"k": "v"}, decode[map[string]string](t, h.do(t, http.MethodGet, "/state/knowledge", "")))

	assert.Equal(t, http.StatusNoContent, h.do(t, http.MethodDelete, "/state/knowledge/k", "").Code)
	assert.Empty(t, h.store.Keys())
}
