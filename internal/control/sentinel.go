package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/vietddude/sentinel/internal/core/config"
	"github.com/vietddude/sentinel/internal/core/worker"
	"github.com/vietddude/sentinel/internal/dispatch"
	"github.com/vietddude/sentinel/internal/infra/advisory"
	badgerarchive "github.com/vietddude/sentinel/internal/infra/badger"
	"github.com/vietddude/sentinel/internal/infra/node"
	redisclient "github.com/vietddude/sentinel/internal/infra/redis"
	"github.com/vietddude/sentinel/internal/infra/statestore"
	"github.com/vietddude/sentinel/internal/infra/storage"
	"github.com/vietddude/sentinel/internal/infra/storage/memory"
	"github.com/vietddude/sentinel/internal/infra/storage/postgres"
	"github.com/vietddude/sentinel/internal/monitor"
	"github.com/vietddude/sentinel/internal/rollback"
	"github.com/vietddude/sentinel/internal/server"
	"github.com/vietddude/sentinel/internal/validate"
)

// Sentinel is the main application struct that manages the service lifecycle.
type Sentinel struct {
	cfg         *config.AppConfig
	dispatcher  *dispatch.Dispatcher
	monitor     *monitor.Monitor
	validator   *validate.Validator
	rollback    *rollback.Manager
	gateway     *Gateway
	server      *server.Server
	snapshotter *worker.Snapshotter
	pruner      *worker.Pruner
	db          *postgres.DB
	closers     []func() error
	log         *slog.Logger
}

// NewSentinel creates a Sentinel instance with all dependencies initialized.
func NewSentinel(cfg *config.AppConfig) (_ *Sentinel, err error) {
	s := &Sentinel{cfg: cfg, log: slog.Default().With("component", "sentinel")}
	defer func() {
		if err != nil {
			s.close()
		}
	}()
	ctx := context.Background()

	// 1. Collaborators
	stores := make(map[string]*statestore.MemoryStore)
	collaborators := make([]rollback.Collaborator, 0, len(cfg.Collaborators))
	for _, c := range cfg.Collaborators {
		if c.URL == "" {
			st := statestore.NewMemoryStore(c.Name)
			stores[c.Name] = st
			collaborators = append(collaborators, st)
			continue
		}
		collaborators = append(collaborators, statestore.NewRemoteStore(c.Name, c.URL, cfg.Dispatch.AttemptTimeout))
	}

	// 2. Advisory endpoint
	var advisor *advisory.Client
	if cfg.Advisory.URL != "" {
		advisor = advisory.NewClient(advisory.Config{
			URL:     cfg.Advisory.URL,
			APIKey:  cfg.Advisory.APIKey,
			Timeout: cfg.Advisory.Timeout,
			Rate:    cfg.Advisory.Rate,
			Burst:   cfg.Advisory.Burst,
		})
	} else {
		s.log.Warn("No advisory endpoint configured, validation and alert enrichment disabled")
	}

	// 3. Monitor
	var monAdvisor monitor.Advisor
	if advisor != nil {
		monAdvisor = advisor
	}
	mc := cfg.Monitor
	s.monitor = monitor.New(monitor.Config{
		LatencyAnomalyMultiplier: mc.LatencyAnomalyMultiplier,
		ErrorRateThreshold:       mc.ErrorRateThreshold,
		ResourceThreshold:        mc.ResourceThreshold,
		FailurePenalty:           mc.FailurePenalty,
		HistorySize:              mc.HistorySize,
		EnrichmentTimeout:        mc.EnrichmentTimeout,
		EnrichmentRate:           mc.EnrichmentRate,
		EnrichmentBurst:          mc.EnrichmentBurst,
		FailureLogSize:           mc.FailureLogSize,
		AlertLogSize:             mc.AlertLogSize,
	}, monAdvisor, nil)
	s.monitor.Track(cfg.NodeNames()...)

	// 4. Alert storage
	alertRepo, err := s.initAlertStore(ctx)
	if err != nil {
		return nil, err
	}
	s.monitor.AddSink(storage.NewAlertLog(alertRepo))

	var redisClient *redisclient.Client
	if cfg.Alerts.PublishRedis || cfg.Snapshot.Archive == "redis" {
		redisClient, err = redisclient.NewClient(cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("failed to init redis: %w", err)
		}
		s.closers = append(s.closers, redisClient.Close)
	}
	if cfg.Alerts.PublishRedis {
		s.monitor.AddSink(redisclient.NewAlertPublisher(redisClient, cfg.Alerts.RedisListSize))
		s.log.Info("Publishing alerts to Redis")
	}

	// 5. Node pool and dispatcher
	registry, err := dispatch.NewRegistry(cfg.NodeNames())
	if err != nil {
		return nil, err
	}
	pool := node.NewPool()
	for _, n := range cfg.Nodes {
		if n.URL == "" {
			pool.Add(n.Name, node.Echo())
			s.log.Warn("Node has no URL, using echo client", "node", n.Name)
			continue
		}
		pool.Add(n.Name, node.NewHTTPClient(n.Name, n.URL, cfg.Dispatch.AttemptTimeout))
	}

	s.dispatcher = dispatch.New(dispatch.Config{
		AttemptTimeout:      cfg.Dispatch.AttemptTimeout,
		HealthCheckInterval: cfg.Dispatch.HealthCheckInterval,
		ProbeInput:          cfg.Dispatch.ProbeInput,
	}, registry, pool, s.monitor)

	for _, n := range cfg.Nodes {
		if n.GRPCAddr == "" {
			continue
		}
		prober, err := node.NewGRPCProber(n.GRPCAddr, "")
		if err != nil {
			return nil, fmt.Errorf("failed to create grpc prober for %s: %w", n.Name, err)
		}
		s.closers = append(s.closers, prober.Close)
		s.dispatcher.SetProber(n.Name, prober)
	}

	// 6. Validator
	if advisor != nil {
		vc := cfg.Validator
		s.validator = validate.New(validate.Config{
			ErrorThreshold:       vc.ErrorThreshold,
			ConsistencyThreshold: vc.ConsistencyThreshold,
			Timeout:              vc.Timeout,
			FallbackMessage:      vc.FallbackMessage,
		}, advisor)
		s.validator.SetRecorder(s.monitor)
		s.gateway = NewGateway(s.dispatcher, s.validator)
	} else {
		s.gateway = NewGateway(s.dispatcher, nil)
	}

	// 7. Rollback manager
	archive, err := s.initArchive(redisClient)
	if err != nil {
		return nil, err
	}
	s.rollback, err = rollback.NewManager(cfg.Snapshot.MaxHistory, archive, collaborators...)
	if err != nil {
		return nil, err
	}

	// 8. Workers and server
	s.snapshotter = worker.NewSnapshotter(cfg.Snapshot.Interval, s.rollback)
	s.pruner = worker.NewPruner(cfg.Alerts.Retention, alertRepo)
	s.server = server.New(server.Deps{
		Gateway:    s.gateway,
		Dispatcher: s.dispatcher,
		Monitor:    s.monitor,
		Validator:  s.validator,
		Rollback:   s.rollback,
		Alerts:     alertRepo,
		Stores:     stores,
	}, cfg.Server.Port)

	return s, nil
}

func (s *Sentinel) initAlertStore(ctx context.Context) (storage.AlertRepository, error) {
	if s.cfg.Alerts.Store != "postgres" {
		s.log.Info("Using memory alert storage")
		return memory.NewAlertRepo(), nil
	}

	db, err := postgres.NewDB(ctx, s.cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to init db: %w", err)
	}
	s.db = db
	s.closers = append(s.closers, db.Close)

	if err := db.Migrate(ctx); err != nil {
		return nil, err
	}
	s.log.Info("Using PostgreSQL alert storage")
	return postgres.NewAlertRepo(db), nil
}

func (s *Sentinel) initArchive(redisClient *redisclient.Client) (rollback.Archive, error) {
	switch s.cfg.Snapshot.Archive {
	case "redis":
		return redisclient.NewSnapshotArchive(redisClient), nil
	case "badger":
		a, err := badgerarchive.Open(s.cfg.Snapshot.BadgerPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open snapshot archive: %w", err)
		}
		s.closers = append(s.closers, a.Close)
		return a, nil
	default:
		return rollback.NewMemoryArchive(), nil
	}
}

// Gateway returns the caller-facing request path.
func (s *Sentinel) Gateway() *Gateway {
	return s.gateway
}

// Handler returns the HTTP API handler.
func (s *Sentinel) Handler() http.Handler {
	return s.server.Handler()
}

// Start restores the snapshot history and starts the server and background loops.
func (s *Sentinel) Start(ctx context.Context) error {
	n, err := s.rollback.Restore(ctx)
	if err != nil {
		s.log.Warn("Failed to restore snapshot history", "error", err)
	} else if n > 0 {
		s.log.Info("Restored snapshot history", "snapshots", n)
	}

	go func() {
		if err := s.server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("HTTP server failed", "error", err)
		}
	}()

	go s.dispatcher.Start(ctx)
	go s.snapshotter.Start(ctx)
	go s.pruner.Start(ctx)

	if s.db != nil {
		s.db.StartMetricsCollector(ctx)
	}
	return nil
}

// Stop shuts the server down, waits for detached alert work and releases connections.
func (s *Sentinel) Stop(ctx context.Context) error {
	s.log.Info("Stopping Sentinel...")

	err := s.server.Stop(ctx)

	done := make(chan struct{})
	go func() {
		s.monitor.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.log.Warn("Timed out waiting for alert deliveries")
	}

	s.close()
	return err
}

func (s *Sentinel) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			s.log.Warn("Failed to release resource", "error", err)
		}
	}
	s.closers = nil
}
