package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/localpros/hub/internal/agents"
	"github.com/localpros/hub/internal/api/handlers"
	"github.com/localpros/hub/internal/api/middleware"
	"github.com/localpros/hub/internal/config"
	"github.com/localpros/hub/internal/content"
	"github.com/localpros/hub/internal/enrichment"
	"github.com/localpros/hub/internal/jobs"
	"github.com/localpros/hub/internal/models"
	"github.com/localpros/hub/internal/observability"
	"github.com/localpros/hub/internal/repository"
	"github.com/localpros/hub/internal/service"
	"github.com/localpros/hub/internal/storage"
	"github.com/localpros/hub/internal/worker"
	"github.com/localpros/hub/pkg/cache"
	"github.com/localpros/hub/pkg/database"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// maxRequestBodyBytes caps JSON request bodies on the API.
const maxRequestBodyBytes int64 = 1 << 20

func main() {
	ctx := context.Background()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Configure slog with the log level from config
	setupLogging(cfg.LogLevel)

	// Initialize database connection
	db, err := database.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Metrics are optional; when disabled everything downstream takes a nil
	// HubMetrics and skips recording.
	var (
		meterProvider  observability.MeterProviderShutdown
		metricsHandler http.Handler
		metrics        observability.HubMetrics
	)
	if cfg.MetricsEnabled {
		meterProvider, metricsHandler, metrics, err = observability.NewMeterProvider(ctx, observability.MeterProviderConfig{})
		if err != nil {
			slog.Error("Failed to initialize metrics", "error", err)
			os.Exit(1)
		}
	} else {
		slog.Info("Metrics disabled (METRICS_ENABLED=false)")
	}

	// Initialize repositories
	jobsRepo := repository.NewJobsRepository(db)
	jobLogsRepo := repository.NewJobLogsRepository(db)
	pipelineRunsRepo := repository.NewPipelineRunsRepository(db)
	contractorsRepo := repository.NewContractorsRepository(db)

	// Content generation client, used by the agent pipeline and review summaries
	var generator content.Generator
	if cfg.OpenAIAPIKey != "" {
		generator = content.NewClient(cfg.OpenAIAPIKey, content.WithModel(cfg.ContentModel))
		slog.Info("Content generation enabled", "model", cfg.ContentModel)
	} else {
		slog.Info("Content generation disabled (OPENAI_API_KEY not set)")
	}

	registry := jobs.NewRegistry()

	// Image enrichment needs object storage; without it the kinds stay
	// unregistered and jobs of those kinds fail with a clear message.
	if cfg.StorageURL != "" {
		imageStore := storage.NewClient(storage.ClientOptions{
			BaseURL: cfg.StorageURL,
			APIKey:  cfg.StorageKey,
			Bucket:  cfg.StorageBucket,
		})
		fetcher := enrichment.NewImageFetcher(cfg.ImageFetchDelay, cfg.ImageFetchTimeout)
		imageExecutor := enrichment.NewImageEnrichmentExecutor(fetcher, imageStore, contractorsRepo, metrics)
		registry.Register(models.JobKindImageEnrichment, imageExecutor)
		registry.Register(models.JobKindImageEnrichmentRetry, imageExecutor)
	} else {
		slog.Warn("Image enrichment disabled (STORAGE_URL not set)")
	}

	if generator != nil {
		contractorCache, err := cache.NewLoaderCache[uuid.UUID, *models.Contractor](cfg.ContractorCacheSize, uuid.UUID.String)
		if err != nil {
			slog.Error("Failed to create contractor cache", "error", err)
			os.Exit(1)
		}

		agentRegistry := agents.NewRegistry()
		agentRegistry.Register(agents.NewResearchAgent(contractorsRepo, contractorCache, generator))
		agentRegistry.Register(agents.NewWriterAgent(generator))
		agentRegistry.Register(agents.NewSEOAgent(generator))
		agentRegistry.Register(agents.NewQAAgent(generator))
		agentRegistry.Register(agents.NewProjectManagerAgent(contractorsRepo))

		orchestrator, err := agents.NewOrchestrator(agentRegistry, pipelineRunsRepo)
		if err != nil {
			slog.Error("Agent pipeline misconfigured", "error", err)
			os.Exit(1)
		}

		registry.Register(models.JobKindContractorEnrichment, agents.NewPipelineExecutor(orchestrator, pipelineRunsRepo))
		registry.Register(models.JobKindReviewEnrichment, enrichment.NewReviewEnrichmentExecutor(contractorsRepo, generator))
	}

	allKinds := []models.JobKind{
		models.JobKindImageEnrichment,
		models.JobKindImageEnrichmentRetry,
		models.JobKindContractorEnrichment,
		models.JobKindReviewEnrichment,
	}
	missingKinds := registry.ValidateComplete(allKinds)
	if len(missingKinds) > 0 {
		slog.Warn("Executor registry incomplete; jobs of these kinds will fail when claimed", "kinds", missingKinds)
	}

	// Failure notifications (webhook and/or email, both optional)
	var emailSender service.EmailSender
	if cfg.EmailAPIURL != "" && cfg.OpsEmailTo != "" {
		emailSender = service.NewHTTPEmailSender(cfg.EmailAPIURL, cfg.EmailAPIKey, cfg.EmailFrom)
	}
	notifier := service.NewFailureNotifier(service.FailureNotifierConfig{
		WebhookURL:    cfg.OpsWebhookURL,
		WebhookSecret: cfg.OpsWebhookSecret,
		EmailTo:       cfg.OpsEmailTo,
	}, emailSender)

	runner := jobs.NewRunner(jobsRepo, jobLogsRepo, registry, jobs.NewBackoff(cfg.MaxRetryAttempts),
		jobs.WithExecutionTimeout(cfg.JobExecutionTimeout),
		jobs.WithMetrics(metrics),
		jobs.WithFailureNotifier(notifier),
	)

	// Initialize handlers
	jobsHandler := handlers.NewJobsHandler(jobsRepo, jobLogsRepo, metrics)
	runHandler := handlers.NewRunHandler(runner)
	healthHandler := handlers.NewHealthHandler()

	server := newHTTPServer(cfg, healthHandler, jobsHandler, runHandler, metricsHandler, meterProvider, metrics)

	// Start server in a goroutine
	go func() {
		slog.Info("Starting server", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Background poller drives the runner when no external trigger is calling
	// POST /v1/jobs/run.
	workerCtx, workerCancel := context.WithCancel(ctx)
	defer workerCancel()
	switch {
	case !cfg.PollerEnabled:
		slog.Info("Job poller disabled (JOB_POLLER_ENABLED=false)")
	case len(missingKinds) > 0:
		// An incomplete registry would burn through pending jobs, failing
		// each one; leave them for the run trigger instead.
		slog.Warn("Job poller not started: executor registry incomplete", "kinds", missingKinds)
	default:
		poller := worker.NewPoller(runner, cfg.PollInterval, cfg.PollMaxPerTick)
		go poller.Start(workerCtx)
	}

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down server...")
	workerCancel()

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	if meterProvider != nil {
		if err := meterProvider.Shutdown(shutdownCtx); err != nil {
			slog.Warn("Failed to shut down meter provider", "error", err)
		}
	}

	// Let in-flight failure notifications drain before exit.
	notifier.Wait()

	slog.Info("Server exited")
}

// newHTTPServer builds the HTTP server and muxes (no auth on /health and
// /metrics, API key on /v1/, runner secret plus request budget on the run
// trigger).
// Handler chain: RequestID -> otelhttp(Metrics(MaxBody(mux))).
func newHTTPServer(
	cfg *config.Config,
	health *handlers.HealthHandler,
	jobsHandler *handlers.JobsHandler,
	runHandler *handlers.RunHandler,
	metricsHandler http.Handler,
	meterProvider observability.MeterProviderShutdown,
	metrics observability.HubMetrics,
) *http.Server {
	public := http.NewServeMux()
	public.HandleFunc("GET /health", health.Check)
	if metricsHandler != nil {
		public.Handle("GET /metrics", metricsHandler)
	}

	protected := http.NewServeMux()
	protected.HandleFunc("POST /v1/jobs", jobsHandler.Create)
	protected.HandleFunc("GET /v1/jobs", jobsHandler.List)
	protected.HandleFunc("GET /v1/jobs/{id}", jobsHandler.Get)
	protected.HandleFunc("POST /v1/jobs/{id}/cancel", jobsHandler.Cancel)
	protected.HandleFunc("GET /v1/jobs/{id}/logs", jobsHandler.Logs)

	// The run trigger authenticates with its own shared secret instead of the
	// API key. The secret check runs before the budget so unauthenticated
	// probes cannot starve the scheduler.
	runMux := http.NewServeMux()
	runMux.HandleFunc("POST /v1/jobs/run", runHandler.Run)
	guardedRun := middleware.RunnerSecret(cfg.JobRunnerSecret)(
		middleware.RateLimit(cfg.RunTriggerPerMinute, cfg.RunTriggerBurst)(runMux),
	)

	mux := http.NewServeMux()
	mux.Handle("POST /v1/jobs/run", guardedRun)
	mux.Handle("/v1/", middleware.Auth(cfg.APIKey)(protected))
	mux.Handle("/", public)

	otelOpts := []otelhttp.Option{
		// Skip tracing and HTTP metrics for health and metrics scrapes to reduce noise.
		otelhttp.WithFilter(func(r *http.Request) bool {
			return r.URL.Path != "/health" && r.URL.Path != "/metrics"
		}),
	}
	if meterProvider != nil {
		otelOpts = append(otelOpts, otelhttp.WithMeterProvider(meterProvider))
	}

	inner := middleware.Metrics(metrics)(middleware.MaxBody(maxRequestBodyBytes)(mux))
	handler := otelhttp.NewHandler(inner, "hub-api", otelOpts...)
	handler = middleware.RequestID(handler)

	const (
		readTimeout = 15 * time.Second
		idleTimeout = 60 * time.Second
	)
	// The run trigger executes a claimed job synchronously, so the write
	// timeout must outlast the per-job execution timeout.
	writeTimeout := cfg.JobExecutionTimeout + 30*time.Second

	return &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}
}

func setupLogging(level string) {
	var logLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: logLevel,
	}

	handler := observability.NewTraceContextHandler(slog.NewTextHandler(os.Stdout, opts))
	slog.SetDefault(slog.New(handler))
}
