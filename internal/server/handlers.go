package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/vietddude/sentinel/internal/core/domain"
	"github.com/vietddude/sentinel/internal/dispatch"
	"github.com/vietddude/sentinel/internal/infra/statestore"
	"github.com/vietddude/sentinel/internal/infra/storage"
)

const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	report := s.report()
	status := http.StatusOK
	if report.SystemStatus == StatusCritical {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]string{"status": string(report.SystemStatus)})
}

func (s *Server) handleDetailed(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.report())
}

type processRequest struct {
	ID       string `json:"id"`
	CallerID string `json:"caller_id"`
	Input    string `json:"input"`
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	var body processRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.Input == "" {
		writeError(w, http.StatusBadRequest, "input is required")
		return
	}

	req := domain.Request{ID: body.ID, CallerID: body.CallerID, Input: body.Input}
	if req.ID == "" {
		req.ID = RequestIDFrom(r.Context())
	}

	resp, err := s.deps.Gateway.Handle(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, dispatch.ErrAllNodesUnavailable):
			writeError(w, http.StatusServiceUnavailable, err.Error())
		case errors.Is(err, context.DeadlineExceeded):
			writeError(w, http.StatusGatewayTimeout, err.Error())
		default:
			s.log.Error("Request failed", "request_id", req.ID, "error", err)
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := storage.AlertFilter{
		Node: q.Get("node"),
		Kind: domain.AlertKind(q.Get("kind")),
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		filter.Limit = n
	}
	if v := q.Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "since must be RFC3339")
			return
		}
		filter.Since = t
	}

	alerts, err := s.deps.Alerts.List(r.Context(), filter)
	if err != nil {
		s.log.Error("Failed to list alerts", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list alerts")
		return
	}
	writeJSON(w, http.StatusOK, alerts)
}

func (s *Server) handleFailures(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Monitor.RecentFailures())
}

func (s *Server) handleFailureAnalysis(w http.ResponseWriter, r *http.Request) {
	analysis, err := s.deps.Monitor.AnalyzeFailures(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"analysis": analysis})
}

func (s *Server) handleFailureScenarios(w http.ResponseWriter, r *http.Request) {
	if s.deps.Validator == nil {
		writeError(w, http.StatusServiceUnavailable, "validation is disabled")
		return
	}
	analysis, err := s.deps.Validator.AnalyzeFailureScenarios(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"analysis": analysis})
}

func (s *Server) handleListSnapshots(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Rollback.History())
}

func (s *Server) handleSaveSnapshot(w http.ResponseWriter, r *http.Request) {
	info, err := s.deps.Rollback.SaveSnapshot(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, info)
}

type rollbackResponse struct {
	RolledBack bool                  `json:"rolled_back"`
	History    []domain.SnapshotInfo `json:"history"`
}

func (s *Server) handleRollbackPrevious(w http.ResponseWriter, r *http.Request) {
	ok, err := s.deps.Rollback.RollbackToPrevious(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !ok {
		writeError(w, http.StatusConflict, "not enough snapshots to roll back")
		return
	}
	writeJSON(w, http.StatusOK, rollbackResponse{RolledBack: true, History: s.deps.Rollback.History()})
}

func (s *Server) handleRollbackTimestamp(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("ts")
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "ts must be RFC3339")
		return
	}

	ok, err := s.deps.Rollback.RollbackToTimestamp(r.Context(), ts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "no snapshot at or before "+raw)
		return
	}
	writeJSON(w, http.StatusOK, rollbackResponse{RolledBack: true, History: s.deps.Rollback.History()})
}

type healthCheckResponse struct {
	ActiveNode string                 `json:"active_node"`
	Results    []dispatch.ProbeResult `json:"results"`
}

func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	results := s.deps.Dispatcher.HealthCheck(r.Context())
	writeJSON(w, http.StatusOK, healthCheckResponse{
		ActiveNode: s.deps.Dispatcher.Registry().Active(),
		Results:    results,
	})
}

func (s *Server) handleActivate(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if err := s.deps.Dispatcher.Registry().SetActive(name); err != nil {
		if errors.Is(err, dispatch.ErrUnknownNode) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"active_node": name})
}

func (s *Server) store(w http.ResponseWriter, r *http.Request) (*statestore.MemoryStore, bool) {
	name := mux.Vars(r)["collaborator"]
	st, ok := s.deps.Stores[name]
	if !ok {
		writeError(w, http.StatusNotFound, "unknown collaborator "+name)
	}
	return st, ok
}

func (s *Server) handleStateList(w http.ResponseWriter, r *http.Request) {
	st, ok := s.store(w, r)
	if !ok {
		return
	}
	out := make(map[string]string)
	for _, k := range st.Keys() {
		if v, ok := st.Get(k); ok {
			out[k] = v
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleStateGet(w http.ResponseWriter, r *http.Request) {
	st, ok := s.store(w, r)
	if !ok {
		return
	}
	key := mux.Vars(r)["key"]
	v, found := st.Get(key)
	if !found {
		writeError(w, http.StatusNotFound, "key not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"key": key, "value": v})
}

type putStateRequest struct {
	Value string `json:"value"`
}

func (s *Server) handleStatePut(w http.ResponseWriter, r *http.Request) {
	st, ok := s.store(w, r)
	if !ok {
		return
	}
	var body putStateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	key := mux.Vars(r)["key"]
	st.Set(key, body.Value)
	writeJSON(w, http.StatusOK, map[string]string{"key": key, "value": body.Value})
}

func (s *Server) handleStateDelete(w http.ResponseWriter, r *http.Request) {
	st, ok := s.store(w, r)
	if !ok {
		return
	}
	st.Delete(mux.Vars(r)["key"])
	w.WriteHeader(http.StatusNoContent)
}
