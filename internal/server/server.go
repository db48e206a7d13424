package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/itstheanurag/codejudge/internal/api"
	"github.com/itstheanurag/codejudge/internal/config"
	"github.com/itstheanurag/codejudge/internal/executor"
	"github.com/itstheanurag/codejudge/internal/languages"
	"github.com/itstheanurag/codejudge/internal/limiter"
	"github.com/itstheanurag/codejudge/internal/queue"
	"github.com/itstheanurag/codejudge/internal/sandbox"
	"github.com/itstheanurag/codejudge/internal/worker"
	"github.com/itstheanurag/codejudge/internal/workspace"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

type Server struct {
	conf        *config.Config
	logger      *zerolog.Logger
	httpServer  *http.Server
	registry    *languages.Registry
	runner      sandbox.Runner
	docker      *sandbox.Docker
	executor    *executor.Executor
	queue       *queue.Manager
	workers     []*worker.Worker
	rateLimiter *limiter.RateLimiter
	cancelFunc  context.CancelFunc
}

func New(
	conf *config.Config,
	logger *zerolog.Logger,
) (*Server, error) {

	registry := languages.NewRegistry()
	for lang, img := range conf.Engine.Images {
		if err := registry.SetImage(lang, img); err != nil {
			return nil, fmt.Errorf("invalid image override: %w", err)
		}
	}

	var (
		runner sandbox.Runner
		docker *sandbox.Docker
	)
	switch conf.Engine.Backend {
	case config.BackendDocker:
		sb, err := sandbox.NewDocker(sandbox.DockerOptions{
			MemoryLimitMb:  conf.Engine.DockerMemoryMb,
			MaxOutputBytes: conf.Engine.MaxOutputBytes,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create docker sandbox: %w", err)
		}
		runner, docker = sb, sb
	default:
		runner = sandbox.NewLocal(conf.Engine.Shell, conf.Engine.MaxOutputBytes, logger)
	}

	workspaces := workspace.NewManager(conf.Engine.ScratchRoot, logger)
	exec := executor.NewExecutor(registry, workspaces, executor.NewBatch(runner, logger), logger)
	q := queue.NewManager(conf.Engine.QueueCapacity)

	rl := limiter.NewRateLimiter(
		conf.Limiter.GlobalRPS,
		conf.Limiter.PerClientRPS,
		conf.Limiter.PerClientBurst,
		conf.Limiter.MaxConcurrent,
	)

	handler := api.NewHandler(q, exec, registry, api.Defaults{
		CompileTimeout: time.Duration(conf.Engine.CompileTimeoutMs) * time.Millisecond,
		RunTimeout:     time.Duration(conf.Engine.RunTimeoutMs) * time.Millisecond,
		MaxBodyBytes:   conf.Server.MaxBodyBytes,
		MaxInputs:      conf.Engine.MaxInputs,
		MaxJobTime:     conf.JobBudget(),
	}, logger)

	httpServer := &http.Server{
		Addr:         ":" + conf.Server.Port,
		Handler:      routes(handler, rl),
		ReadTimeout:  time.Duration(conf.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(conf.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(conf.Server.IdleTimeout) * time.Second,
	}

	workers := make([]*worker.Worker, conf.Engine.Workers)
	for i := range workers {
		workers[i] = worker.NewWorker(i, exec, q, logger)
	}

	s := &Server{
		conf:        conf,
		logger:      logger,
		httpServer:  httpServer,
		registry:    registry,
		runner:      runner,
		docker:      docker,
		executor:    exec,
		queue:       q,
		workers:     workers,
		rateLimiter: rl,
	}

	return s, nil
}

func routes(handler *api.Handler, rl *limiter.RateLimiter) http.Handler {
	mux := chi.NewRouter()

	mux.Use(middleware.Recoverer)
	mux.Use(cors.AllowAll().Handler)

	mux.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.Handle("/metrics", promhttp.Handler())

	mux.Route("/api/v2", func(r chi.Router) {
		r.Get("/runtimes", handler.Runtimes)
		r.With(rl.Middleware).Post("/execute", handler.Execute)
	})

	return mux
}

func (s *Server) Start() error {
	s.logger.Info().
		Str("port", s.conf.Server.Port).
		Str("backend", s.conf.Engine.Backend).
		Str("scratch_root", s.conf.Engine.ScratchRoot).
		Msg("starting HTTP server")

	if s.docker != nil {
		if err := s.ensureImages(context.Background()); err != nil {
			return fmt.Errorf("failed to ensure docker images: %w", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancelFunc = cancel

	s.rateLimiter.StartCleanup(ctx, 5*time.Minute)
	for _, w := range s.workers {
		go w.Start(ctx)
	}

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server failed: %w", err)
	}

	return nil
}

func (s *Server) ensureImages(ctx context.Context) error {
	uniqueImages := make(map[string]bool)
	for _, l := range s.registry.List() {
		uniqueImages[l.Handler.Config().Image] = true
	}

	for img := range uniqueImages {
		if err := s.docker.EnsureImage(ctx, img); err != nil {
			return err
		}
	}

	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info().Msg("shutting down HTTP server")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}

	if s.cancelFunc != nil {
		s.cancelFunc()
	}

	if s.docker != nil {
		if err := s.docker.Close(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to close docker client")
		}
	}

	return nil
}
