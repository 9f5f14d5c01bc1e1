package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"flashfeed/internal/adapters/ai"
	"flashfeed/internal/adapters/config"
	"flashfeed/internal/adapters/errors/noop"
	"flashfeed/internal/adapters/errors/sentry"
	"flashfeed/internal/adapters/feed"
	"flashfeed/internal/adapters/redis"
	"flashfeed/internal/api"
	"flashfeed/internal/api/flashes"
	"flashfeed/internal/api/health"
	"flashfeed/internal/metrics"
	redisrepo "flashfeed/internal/repository/redis"
	"flashfeed/internal/services/enrichment"
	"flashfeed/internal/services/ingestion"
	"flashfeed/internal/services/query"
	"flashfeed/internal/workers"
	"flashfeed/pkg/errors"
	"flashfeed/pkg/logger"
)

const version = "1.0.0"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize logger
	if err := logger.Init(cfg.App.LogLevel, cfg.App.Env); err != nil {
		panic("failed to init logger: " + err.Error())
	}
	defer logger.Sync()

	log := logger.Get()
	log.Infof("Starting %s in %s mode", cfg.App.Name, cfg.App.Env)

	// Initialize error tracker
	errorTracker := initErrorTracker(cfg, log)
	logger.SetErrorTracker(errorTracker)

	// Prometheus metrics
	metrics.Register()

	// Redis
	redisClient, err := redis.NewClient(cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()
	log.Info("Redis connection established")

	repo := redisrepo.NewFlashRepository(redisClient.Client())

	// AI provider and analyzer
	provider, err := ai.NewArkProvider(cfg.AI)
	if err != nil {
		log.Fatalf("Failed to initialize AI provider: %v", err)
	}
	analyzer := ai.NewAnalyzer(provider)

	// Services
	enrichSvc := enrichment.NewService(repo, analyzer, enrichment.Config{
		Workers:      cfg.Workers.EnrichWorkers,
		QueueSize:    cfg.Workers.EnrichQueueSize,
		MaxAttempts:  cfg.Workers.EnrichMaxAttempts,
		Backoff:      cfg.Workers.EnrichRetryBackoff,
		RetentionTTL: cfg.Workers.RetentionTTL,
	})

	feedClient := feed.NewSinaClient(cfg.Feed)
	ingestSvc := ingestion.NewService(repo, feedClient, enrichSvc, cfg.Workers.RetentionTTL)
	querySvc := query.NewService(repo)

	// Workers
	scheduler := workers.NewScheduler()
	scheduler.RegisterWorker(ingestion.NewWorker(
		ingestSvc,
		cfg.Workers.IngestInterval,
		cfg.Workers.IngestMaxAttempts,
		cfg.Workers.IngestRetryBackoff,
		cfg.Workers.IngestEnabled,
	))

	// HTTP server
	healthHandler := health.New(log, redisClient.Client(), cfg.App.Name, version)
	flashesHandler := flashes.New(querySvc, log)
	server := api.NewServer(api.ServerConfig{
		Port:        cfg.API.Port,
		ServiceName: cfg.App.Name,
		Version:     version,
	}, healthHandler, flashesHandler, log)

	log.Info("System initialized successfully")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start all components
	if err := enrichSvc.Start(ctx); err != nil {
		log.Fatalf("Failed to start enrichment pool: %v", err)
	}
	if err := scheduler.Start(ctx); err != nil {
		log.Fatalf("Failed to start worker scheduler: %v", err)
	}
	go func() {
		if err := server.Start(); err != nil {
			log.Errorf("HTTP server error: %v", err)
			cancel()
		}
	}()

	waitForShutdown(ctx, cancel, server, scheduler, enrichSvc, errorTracker, log)
}

// initErrorTracker initializes error tracking (Sentry or no-op)
func initErrorTracker(cfg *config.Config, log *logger.Logger) errors.Tracker {
	if !cfg.ErrorTracking.Enabled || cfg.ErrorTracking.SentryDSN == "" {
		log.Info("Error tracking disabled")
		return noop.New()
	}

	tracker, err := sentry.New(cfg.ErrorTracking.SentryDSN, cfg.ErrorTracking.Environment)
	if err != nil {
		log.Warnf("Failed to initialize Sentry: %v", err)
		return noop.New()
	}

	log.Info("Error tracking initialized (Sentry)")
	return tracker
}

// waitForShutdown waits for shutdown signal and performs graceful shutdown
func waitForShutdown(
	ctx context.Context,
	cancel context.CancelFunc,
	server *api.Server,
	scheduler *workers.Scheduler,
	enrichSvc *enrichment.Service,
	errorTracker errors.Tracker,
	log *logger.Logger,
) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case <-ctx.Done():
		log.Info("Shutting down after component failure")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warnf("HTTP server shutdown: %v", err)
	}

	if scheduler.IsRunning() {
		if err := scheduler.Stop(); err != nil {
			log.Warnf("Worker scheduler shutdown: %v", err)
		}
	}

	enrichSvc.Stop()
	cancel()

	// Flush error tracker
	if errorTracker != nil {
		if err := errorTracker.Flush(shutdownCtx); err != nil {
			log.Warnf("Failed to flush error tracker: %v", err)
		}
	}

	log.Info("Shutdown complete")
}
