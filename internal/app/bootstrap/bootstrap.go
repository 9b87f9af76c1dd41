package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	replicationservice "fedsync/contexts/federation/replication-service"
	"fedsync/contexts/federation/replication-service/adapters/peerclient"
	"fedsync/contexts/federation/replication-service/adapters/peers"
	postgresadapter "fedsync/contexts/federation/replication-service/adapters/postgres"
	promadapter "fedsync/contexts/federation/replication-service/adapters/prometheus"
	"fedsync/internal/platform/config"
	"fedsync/internal/platform/db"
	"fedsync/internal/platform/httpserver"
	"fedsync/internal/platform/messaging"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.

const (
	moduleName      = "internal/app/bootstrap"
	shutdownTimeout = 10 * time.Second
)

type APIApp struct {
	server  *httpserver.Server
	runtime *Runtime
	// loops is set when the store is in-memory: no separate worker process
	// can see it, so the API process runs delivery and reconcile itself.
	loops  *WorkerApp
	logger *slog.Logger
}

type WorkerApp struct {
	runtime           *Runtime
	pollInterval      time.Duration
	reconcileInterval time.Duration
	logger            *slog.Logger
}

// Runtime is the wired replication module plus the resources it owns.
type Runtime struct {
	Config   config.Config
	Module   replicationservice.Module
	Registry *prometheus.Registry
	Bus      *messaging.Bus
	Peers    *peers.Directory
	postgres *db.Postgres
}

func BuildAPI() (*APIApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := slog.Default().With("service", cfg.ServiceName, "process", "api")

	rt, err := BuildRuntime(context.Background(), cfg, logger)
	if err != nil {
		return nil, err
	}

	server := httpserver.New(rt.Module, httpserver.Options{
		Addr:        normalizeAddr(cfg.HTTPPort),
		ServiceName: cfg.ServiceName,
		LocalDomain: cfg.Federation.LocalDomain,
		Registry:    rt.Registry,
		RateLimit:   rate.Limit(cfg.Federation.InboundRateLimit),
		RateBurst:   cfg.Federation.InboundRateBurst,
	}, logger)

	app := &APIApp{server: server, runtime: rt, logger: logger}
	if cfg.Federation.InMemory {
		app.loops = newWorkerApp(rt, logger)
	}
	return app, nil
}

func BuildWorker() (*WorkerApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := slog.Default().With("service", cfg.ServiceName, "process", "worker")

	rt, err := BuildRuntime(context.Background(), cfg, logger)
	if err != nil {
		return nil, err
	}
	return newWorkerApp(rt, logger), nil
}

// BuildRuntime wires the replication module against postgres, or against the
// in-memory store when FEDERATION_IN_MEMORY is set.
func BuildRuntime(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Runtime, error) {
	if strings.TrimSpace(cfg.Federation.LocalDomain) == "" {
		return nil, errors.New("FEDERATION_LOCAL_DOMAIN is required")
	}

	directory, err := peers.LoadFile(cfg.Federation.PeersFile)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := promadapter.NewReplicationMetrics(registry)
	bus := messaging.NewBus(0, logger)

	rt := &Runtime{Config: cfg, Registry: registry, Bus: bus, Peers: directory}

	if cfg.Federation.InMemory {
		transport := peerclient.New(cfg.Federation.LocalDomain, cfg.Federation.PeerTimeout, nil, logger)
		module := replicationservice.NewInMemoryModule(replicationservice.InMemoryOptions{
			LocalDomain:          cfg.Federation.LocalDomain,
			Peers:                directory,
			Transport:            transport,
			Publisher:            bus,
			Subscriber:           bus,
			Metrics:              metrics,
			AcceptStreamBaseline: cfg.Federation.AcceptStreamBaseline,
		}, logger)
		rt.Module = module
		logger.Warn("federation running on in-memory storage",
			"event", "bootstrap_in_memory_storage",
			"module", moduleName,
			"layer", "platform",
		)
		return rt, nil
	}

	pg, err := db.Connect(cfg.PostgresDSN, db.Options{MaxOpenConns: cfg.PostgresMaxOpenConns}, logger)
	if err != nil {
		return nil, err
	}
	repo := postgresadapter.NewRepository(pg.DB, logger)
	if err := repo.Migrate(ctx); err != nil {
		_ = pg.Close()
		return nil, err
	}

	clock := postgresadapter.SystemClock{}
	rt.postgres = pg
	rt.Module = replicationservice.NewModule(replicationservice.Dependencies{
		Store:                repo,
		Local:                repo,
		Ledger:               repo,
		Locker:               repo,
		Peers:                directory,
		Sequencer:            repo,
		Outbox:               repo,
		Transport:            peerclient.New(cfg.Federation.LocalDomain, cfg.Federation.PeerTimeout, clock, logger),
		Publisher:            bus,
		Subscriber:           bus,
		Metrics:              metrics,
		Clock:                clock,
		IDGenerator:          postgresadapter.UUIDGenerator{},
		LocalDomain:          cfg.Federation.LocalDomain,
		SignatureTolerance:   cfg.Federation.SignatureTolerance,
		MessagesPerChannel:   cfg.Federation.MessagesPerChannel,
		AcceptStreamBaseline: cfg.Federation.AcceptStreamBaseline,
		OutboxBatchSize:      cfg.Federation.OutboxBatchSize,
		OutboxMaxAttempts:    cfg.Federation.OutboxMaxAttempts,
		Logger:               logger,
	})
	return rt, nil
}

func (r *Runtime) Close() error {
	if r == nil || r.postgres == nil {
		return nil
	}
	return r.postgres.Close()
}

func newWorkerApp(rt *Runtime, logger *slog.Logger) *WorkerApp {
	return &WorkerApp{
		runtime:           rt,
		pollInterval:      rt.Config.Federation.PollInterval,
		reconcileInterval: rt.Config.Federation.ReconcileInterval,
		logger:            logger,
	}
}

func (a *APIApp) Run(ctx context.Context) error {
	a.logger.Info("api app started",
		"event", "bootstrap_api_started",
		"module", moduleName,
		"layer", "platform",
	)

	group, ctx := errgroup.WithContext(ctx)
	if a.loops == nil {
		// Gap notices only travel on the in-process bus, so the process that
		// receives events is the one that reacts to them.
		if err := a.runtime.Module.Reconciler.Start(ctx); err != nil {
			return err
		}
	}
	group.Go(a.server.Start)
	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return a.server.Shutdown(shutdownCtx)
	})
	if a.loops != nil {
		group.Go(func() error { return a.loops.Run(ctx) })
	}
	return group.Wait()
}

func (a *APIApp) Close() error {
	return a.runtime.Close()
}

// Run drives the outbox relay on the poll interval and a full reconcile pass
// on the reconcile interval until ctx is cancelled.
func (w *WorkerApp) Run(ctx context.Context) error {
	module := w.runtime.Module
	if err := module.Reconciler.Start(ctx); err != nil {
		return err
	}

	w.logger.Info("worker app started",
		"event", "bootstrap_worker_started",
		"module", moduleName,
		"layer", "platform",
		"poll_interval", w.pollInterval.String(),
		"reconcile_interval", w.reconcileInterval.String(),
	)

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return runEvery(ctx, w.pollInterval, module.OutboxRelay.RunOnce)
	})
	group.Go(func() error {
		return runEvery(ctx, w.reconcileInterval, module.Reconciler.RunOnce)
	})
	return group.Wait()
}

func (w *WorkerApp) Close() error {
	return w.runtime.Close()
}

// runEvery calls fn immediately and then on every tick. Errors from fn are
// logged by fn itself; only cancellation stops the loop.
func runEvery(ctx context.Context, interval time.Duration, fn func(context.Context) error) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if err := fn(ctx); err != nil && ctx.Err() != nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func normalizeAddr(port string) string {
	value := strings.TrimSpace(port)
	if value == "" {
		return ":8080"
	}
	if strings.HasPrefix(value, ":") {
		return value
	}
	return ":" + value
}
