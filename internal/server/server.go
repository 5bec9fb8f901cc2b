// Package server exposes the caller endpoint and the operator API over HTTP.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vietddude/sentinel/internal/core/domain"
	"github.com/vietddude/sentinel/internal/dispatch"
	"github.com/vietddude/sentinel/internal/infra/statestore"
	"github.com/vietddude/sentinel/internal/infra/storage"
	"github.com/vietddude/sentinel/internal/monitor"
	"github.com/vietddude/sentinel/internal/rollback"
	"github.com/vietddude/sentinel/internal/validate"
)

// Gateway runs a caller request through dispatch and validation.
type Gateway interface {
	Handle(ctx context.Context, req domain.Request) (domain.Response, error)
}

// Deps are the services the server reads from and drives.
type Deps struct {
	Gateway    Gateway
	Dispatcher *dispatch.Dispatcher
	Monitor    *monitor.Monitor
	Validator  *validate.Validator // nil when no advisory endpoint is configured
	Rollback   *rollback.Manager
	Alerts     storage.AlertRepository
	Stores     map[string]*statestore.MemoryStore // in-process collaborators only
}

// Server provides the HTTP API.
type Server struct {
	deps   Deps
	router *mux.Router
	server *http.Server
	log    *slog.Logger
}

// New creates a server listening on port.
func New(deps Deps, port int) *Server {
	s := &Server{
		deps:   deps,
		router: mux.NewRouter(),
		log:    slog.Default().With("component", "server"),
	}
	s.routes()
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes() {
	r := s.router
	r.Use(Recovery(s.log), RequestID, Logging(s.log))

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/health/detailed", s.handleDetailed).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/process", s.handleProcess).Methods(http.MethodPost)

	r.HandleFunc("/alerts", s.handleAlerts).Methods(http.MethodGet)
	r.HandleFunc("/failures", s.handleFailures).Methods(http.MethodGet)
	r.HandleFunc("/failures/analysis", s.handleFailureAnalysis).Methods(http.MethodGet)
	r.HandleFunc("/failures/scenarios", s.handleFailureScenarios).Methods(http.MethodGet)

	r.HandleFunc("/snapshots", s.handleListSnapshots).Methods(http.MethodGet)
	r.HandleFunc("/snapshots", s.handleSaveSnapshot).Methods(http.MethodPost)
	r.HandleFunc("/rollback/previous", s.handleRollbackPrevious).Methods(http.MethodPost)
	r.HandleFunc("/rollback", s.handleRollbackTimestamp).Methods(http.MethodPost)

	r.HandleFunc("/healthcheck", s.handleHealthCheck).Methods(http.MethodPost)
	r.HandleFunc("/nodes/{name}/activate", s.handleActivate).Methods(http.MethodPost)

	r.HandleFunc("/state/{collaborator}", s.handleStateList).Methods(http.MethodGet)
	r.HandleFunc("/state/{collaborator}/{key}", s.handleStateGet).Methods(http.MethodGet)
	r.HandleFunc("/state/{collaborator}/{key}", s.handleStatePut).Methods(http.MethodPut)
	r.HandleFunc("/state/{collaborator}/{key}", s.handleStateDelete).Methods(http.MethodDelete)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "endpoint not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server. It blocks until the server stops.
func (s *Server) Start() error {
	s.log.Info("HTTP server listening", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Stop stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
