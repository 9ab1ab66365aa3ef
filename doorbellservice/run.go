// Package doorbellservice wires configuration, storage, the visit pipeline,
// and the HTTP API into a runnable service.
package doorbellservice

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/dwarpal-ai/dwarpal/internal/action"
	"github.com/dwarpal-ai/dwarpal/internal/api"
	"github.com/dwarpal-ai/dwarpal/internal/assets"
	"github.com/dwarpal-ai/dwarpal/internal/auth"
	"github.com/dwarpal-ai/dwarpal/internal/config"
	"github.com/dwarpal-ai/dwarpal/internal/events"
	"github.com/dwarpal-ai/dwarpal/internal/factory"
	"github.com/dwarpal-ai/dwarpal/internal/health"
	"github.com/dwarpal-ai/dwarpal/internal/intelligence"
	"github.com/dwarpal-ai/dwarpal/internal/intelligence/replyprov"
	"github.com/dwarpal-ai/dwarpal/internal/logger"
	"github.com/dwarpal-ai/dwarpal/internal/orchestrator"
	"github.com/dwarpal-ai/dwarpal/internal/perception"
	"github.com/dwarpal-ai/dwarpal/internal/store"
	"github.com/dwarpal-ai/dwarpal/internal/workpool"
)

// workQueueSize bounds how many stage jobs may wait for a pool worker.
const workQueueSize = 32

// ErrServeFailed marks failures that happen after startup completed. main
// maps it to a dedicated exit code so supervisors can tell a crash from a
// bad configuration.
var ErrServeFailed = errors.New("doorbellservice: serving failed")

// Run starts the doorbell service HTTP server and blocks until shutdown or error.
func Run() error {
	log := logger.New("doorbell-service")

	cfg, err := config.New()
	if err != nil {
		log.Error().Err(err).Msg("Failed to load configuration")
		return err
	}
	log = logger.WithLevel("doorbell-service", cfg.LogLevel)

	log.Info().
		Int("http_port", cfg.HTTPPort).
		Str("db_driver", cfg.DBDriver).
		Str("data_dir", cfg.DataDir).
		Int("max_concurrent_sessions", cfg.MaxConcurrentSessions).
		Bool("disable_models", cfg.DisableModels).
		Msg("Doorbell service starting")

	// Create cancellable root context bound to SIGINT/SIGTERM
	ctx, stop := newServerContext()
	defer stop()

	// Initialize dependencies (store, asset layout, pipeline stages)
	deps, err := initDependencies(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer deps.pool.Stop()

	orch := orchestrator.New(cfg, deps.store, deps.bus, deps.layout,
		deps.analyzer, deps.engine, deps.executor, deps.pool, log)
	orch.Start(ctx)
	defer orch.Stop()

	// Build router
	router := api.NewRouter(api.Deps{
		Store:        deps.store,
		Orchestrator: orch,
		Auth:         deps.auth,
		Bus:          deps.bus,
		Layout:       deps.layout,
		Transcriber:  deps.analyzer,
		Executor:     deps.executor,
	})

	// Start health checkers and bind service health
	svcHealth := startHealthCheckers(ctx, cfg, log, deps.store)

	// Block startup until dependencies report healthy; fail fast otherwise
	if err := waitUntilHealthy(ctx, cfg, svcHealth); err != nil {
		log.Error().Stack().Err(err).Msg("startup health check failed")
		return err
	}

	// HTTP server and serve
	server := newHTTPServer(ctx, cfg, router)
	errCh := serveHTTP(server, log, cfg)

	// Graceful shutdown on context cancel or server error
	select {
	case <-ctx.Done():
		log.Info().Msg("Shutting down server")
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctxShutdown); err != nil {
			log.Error().Stack().Err(err).Msg("Server forced to shutdown")
			return fmt.Errorf("%w: %v", ErrServeFailed, err)
		}
		log.Info().Msg("Server exited")
		return nil
	case err := <-errCh:
		log.Error().Stack().Err(err).Msg("HTTP server failed")
		return fmt.Errorf("%w: %v", ErrServeFailed, err)
	}
}

// analyzer joins the two perception capabilities. Both bundled providers
// implement both, so the pipeline and the transcribe endpoint share one
// instance.
type analyzer interface {
	perception.Provider
	perception.Transcriber
}

// components holds the dependencies initDependencies wires up.
type components struct {
	store    store.Store
	layout   *assets.Layout
	bus      *events.Bus
	pool     *workpool.Pool
	analyzer analyzer
	engine   *intelligence.Engine
	executor *action.Executor
	auth     *auth.Service
}

// initDependencies constructs required components and enforces fail-fast on missing deps.
func initDependencies(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*components, error) {
	st, err := factory.NewStore(ctx, cfg, log)
	if err != nil {
		log.Error().Stack().Err(err).Msg("Store adapter unavailable")
		return nil, err
	}

	layout := assets.NewLayout(cfg.DataDir)
	if err := layout.Ensure(); err != nil {
		log.Error().Stack().Err(err).Msg("Data directory unavailable")
		return nil, err
	}

	percept := newAnalyzer(cfg, log)

	var opts []intelligence.Option
	if cfg.ReplyProviderURL != "" && !cfg.DisableModels {
		opts = append(opts, intelligence.WithReplyProvider(replyprov.NewHTTPProvider(replyprov.HTTPConfig{
			BaseURL: cfg.ReplyProviderURL,
			APIKey:  cfg.ReplyProviderKey,
			Model:   cfg.ReplyProviderModel,
			Timeout: cfg.ProviderTimeout(),
		})))
		log.Info().Str("model", cfg.ReplyProviderModel).Msg("External reply provider configured")
	}
	engine := intelligence.NewEngine(log, opts...)

	bus := events.NewBus(cfg.EventBufferSize)

	var synth action.Synthesizer
	if cfg.TTSCommand != "" && !cfg.DisableModels {
		synth = action.NewEspeakSynthesizer(cfg.TTSCommand)
	}
	executor := action.NewExecutor(bus, layout, synth, cfg.ActionTimeout(), log)

	return &components{
		store:    st,
		layout:   layout,
		bus:      bus,
		pool:     workpool.New(cfg.WorkerPoolSize, workQueueSize),
		analyzer: percept,
		engine:   engine,
		executor: executor,
		auth:     auth.NewService(st, log),
	}, nil
}

// newAnalyzer picks the perception backend. Heuristics are the default; the
// external model server is used only when configured and models are enabled.
func newAnalyzer(cfg *config.Config, log zerolog.Logger) analyzer {
	if cfg.DisableModels || cfg.ModelServerURL == "" {
		return perception.NewHeuristicProvider(log)
	}
	log.Info().Str("model_server_url", cfg.ModelServerURL).Msg("External perception provider configured")
	return perception.NewExternalProvider(cfg.ModelServerURL)
}

// startHealthCheckers starts component checkers and the service-level aggregator; binds health.
func startHealthCheckers(ctx context.Context, cfg *config.Config, log zerolog.Logger, st store.Store) *health.ServiceHealthChecker {
	probeTimeout := time.Duration(cfg.HealthProbeTimeoutSeconds) * time.Second
	interval := time.Duration(cfg.HealthIntervalSeconds) * time.Second

	storeChecker := store.NewStoreHealthChecker(st, log, probeTimeout)
	go storeChecker.Start(ctx, interval)

	svcHealth := health.NewServiceHealthChecker(log, storeChecker)
	go svcHealth.Start(ctx, interval)
	api.BindServiceHealth(svcHealth.IsHealthy)
	return svcHealth
}

func newHTTPServer(ctx context.Context, cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
}

func serveHTTP(server *http.Server, log zerolog.Logger, cfg *config.Config) <-chan error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.HTTPPort).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	return errCh
}

// calculateStartupHealthTimeout returns the startup health timeout in seconds,
// calculated as interval*2 with a minimum of 60 seconds.
func calculateStartupHealthTimeout(healthIntervalSeconds int) int {
	timeout := healthIntervalSeconds * 2
	if timeout < 60 {
		return 60
	}
	return timeout
}

// waitUntilHealthy blocks until service health is healthy or the startup window expires.
func waitUntilHealthy(ctx context.Context, cfg *config.Config, svcHealth *health.ServiceHealthChecker) error {
	// Allow extra time for health checkers to complete their first probe cycle
	// Health checkers start as unhealthy and need time to run their first check
	timeoutSeconds := calculateStartupHealthTimeout(cfg.HealthIntervalSeconds)
	deadline := time.Now().Add(time.Duration(timeoutSeconds) * time.Second)
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		if svcHealth.IsHealthy() {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("startup aborted: dependencies not healthy within %d seconds", timeoutSeconds)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// newServerContext returns a cancellable context that is cancelled on SIGINT/SIGTERM.
func newServerContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
