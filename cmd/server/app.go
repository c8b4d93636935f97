package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/phrazzld/tokensmith/internal/api"
	"github.com/phrazzld/tokensmith/internal/auth"
	"github.com/phrazzld/tokensmith/internal/cache"
	"github.com/phrazzld/tokensmith/internal/catalog"
	"github.com/phrazzld/tokensmith/internal/config"
	"github.com/phrazzld/tokensmith/internal/events"
	"github.com/phrazzld/tokensmith/internal/generation"
	"github.com/phrazzld/tokensmith/internal/platform/gemini"
	"github.com/phrazzld/tokensmith/internal/scheduler"
	"github.com/phrazzld/tokensmith/internal/task"
	"github.com/phrazzld/tokensmith/internal/tokens"
	"github.com/phrazzld/tokensmith/internal/work"
)

// application holds the wired components and owns their lifecycle.
type application struct {
	config   *config.Config
	logger   *slog.Logger
	backends *backends

	bus        *events.Bus
	dispatcher *task.Dispatcher
	scheduler  *scheduler.Scheduler
	handler    http.Handler
}

// newApplication wires every component on top of b. Nothing runs until Run.
func newApplication(ctx context.Context, cfg *config.Config, log *slog.Logger, b *backends) (*application, error) {
	app := &application{config: cfg, logger: log, backends: b}

	tokenService, err := auth.NewTokenService(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token service: %w", err)
	}

	provider, analyzer, err := newProvider(ctx, cfg.LLM, log)
	if err != nil {
		return nil, err
	}

	styleCatalog := catalog.New(b.styles, cfg.Cache.CatalogTTL, log)
	recentJobs := catalog.NewRecentJobs(b.jobs, cfg.Cache.RecentJobsTTL)
	persistent := cache.NewPersistent(b.cache, cfg.Cache.PersistentTTL, log)
	pipeline := tokens.NewPipeline(persistent, analyzer, log)

	app.bus, err = events.NewBus(log)
	if err != nil {
		return nil, err
	}
	app.bus.HandleJobTerminal("cache_invalidation", events.CacheInvalidation(styleCatalog, recentJobs, log))

	runner := task.NewRunner(b.jobs, log)
	registry := task.NewRegistry()
	functions := work.New(b.styles, b.images, provider, pipeline, styleCatalog, log)
	if err := functions.Register(registry, task.RunOptions{
		MaxRetries: cfg.Jobs.MaxRetries,
		Timeout:    cfg.Jobs.Timeout,
		RetryDelay: cfg.Jobs.RetryDelay,
	}); err != nil {
		return nil, fmt.Errorf("failed to register work functions: %w", err)
	}
	app.dispatcher = task.NewDispatcher(b.jobs, registry, runner, task.NewLimiter(cfg.Jobs.Concurrency), log)
	app.dispatcher.OnQueued(recentJobs.JobQueued)

	batches := task.NewBatchService(b.batches, b.jobs, app.dispatcher, log)
	runner.OnTerminal(batches.OnTerminal)
	runner.OnTerminal(app.bus.PublishJobTerminal)

	if cfg.Scheduler.Enabled {
		app.scheduler = scheduler.New(b.jobs, app.dispatcher, scheduler.Config{
			InitialDelay: cfg.Scheduler.InitialDelay,
			Interval:     cfg.Scheduler.Interval,
		}, log,
			scheduler.NewNameRepairDiscoverer(b.styles, cfg.Scheduler.CandidateLimit),
			scheduler.NewAssetDiscoverer(b.styles, cfg.Scheduler.ExpectedAssets, cfg.Scheduler.CandidateLimit),
		)
	}

	app.handler = api.NewRouter(api.RouterDeps{
		Jobs:       app.dispatcher,
		RecentJobs: recentJobs,
		Subjects:   b.jobs,
		Batches:    batches,
		Catalog:    styleCatalog,
		Tokens:     tokenService,
		Logger:     log,
	})

	log.Info("application initialized",
		slog.Int("concurrency", cfg.Jobs.Concurrency),
		slog.Bool("ai_analysis", analyzer != nil),
		slog.Bool("scheduler", app.scheduler != nil))
	return app, nil
}

// newProvider selects the Gemini client when an API key is configured and
// the deterministic synthetic provider otherwise. The returned analyzer is
// nil for the synthetic provider so that token extraction stays heuristic.
func newProvider(ctx context.Context, cfg config.LLMConfig, log *slog.Logger) (generation.Provider, generation.Analyzer, error) {
	if cfg.GeminiAPIKey == "" {
		log.Warn("no Gemini API key configured, using synthetic generation")
		return generation.NewSynthetic(log), nil, nil
	}
	gen, err := gemini.NewGenerator(ctx, log.With(slog.String("component", "llm_generator")), cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize Gemini client: %w", err)
	}
	return gen, gen, nil
}

// Run starts the event bus, recovers unfinished jobs, starts the scheduler
// and serves HTTP until ctx is done, then shuts everything down.
func (app *application) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", app.config.Server.Port))
	if err != nil {
		_ = app.backends.Close()
		return fmt.Errorf("failed to listen: %w", err)
	}
	return app.serve(ctx, listener)
}

func (app *application) serve(ctx context.Context, listener net.Listener) error {
	log := app.logger

	busDone := make(chan error, 1)
	go func() { busDone <- app.bus.Run(context.WithoutCancel(ctx)) }()
	select {
	case <-app.bus.Running():
	case err := <-busDone:
		_ = listener.Close()
		_ = app.backends.Close()
		return fmt.Errorf("event bus stopped before start: %w", err)
	}

	recovered, err := app.dispatcher.Recover(ctx)
	if err != nil {
		log.Error("job recovery failed", slog.String("error", err.Error()))
	} else {
		log.Info("job recovery completed", slog.Int("dispatched", recovered))
	}

	if app.scheduler != nil {
		app.scheduler.Start(ctx)
	}

	server := &http.Server{
		Handler:           app.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		log.Info("starting server", slog.String("addr", listener.Addr().String()))
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err, ok := <-serveErr:
		if ok {
			log.Error("server failed", slog.String("error", err.Error()))
			runErr = fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), app.config.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown failed", slog.String("error", err.Error()))
	}
	return errors.Join(runErr, app.shutdown(shutdownCtx))
}

// shutdown stops background work in dependency order.
func (app *application) shutdown(ctx context.Context) error {
	if app.scheduler != nil {
		app.scheduler.Stop()
	}

	var errs []error
	if err := app.dispatcher.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("dispatcher shutdown: %w", err))
	}
	if err := app.bus.Close(); err != nil {
		errs = append(errs, fmt.Errorf("event bus close: %w", err))
	}
	if err := app.backends.Close(); err != nil {
		errs = append(errs, fmt.Errorf("database close: %w", err))
	}

	if len(errs) == 0 {
		app.logger.Info("shutdown completed")
	}
	return errors.Join(errs...)
}
