package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/nmtran/snapfeed-be/internal/config"
	"github.com/nmtran/snapfeed-be/internal/inference"
	"github.com/nmtran/snapfeed-be/internal/queue"
	"github.com/nmtran/snapfeed-be/internal/worker"
	"github.com/nmtran/snapfeed-be/internal/worker/handlers"
	"github.com/nmtran/snapfeed-be/internal/worker/storage"
	"github.com/nmtran/snapfeed-be/shared/logger"
	"github.com/nmtran/snapfeed-be/shared/postgresql"
	"github.com/nmtran/snapfeed-be/shared/rabbitmq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or flags")
	}

	// Parse command-line flags
	defaultConfigPath := os.Getenv("WORKER_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/worker-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	workerType := flag.String("worker", "", "Worker type: resize, sentiment, generate, or translate (overrides config)")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if *workerType != "" {
		cfg.Worker.Type = *workerType
	}

	if cfg.Worker.Type == "" {
		return fmt.Errorf("worker type is required (use -worker or set worker.type in config)")
	}

	if err := cfg.ValidateWorkerConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// Initialize logger
	appLogger, err := initLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	appLogger.Info("Starting worker service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
		slog.String("worker_type", cfg.Worker.Type),
	)

	// Initialize PostgreSQL client
	dbClient, err := initPostgreSQL(&cfg.Database, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer dbClient.Close()

	appLogger.Info("Database connection established")

	// Initialize RabbitMQ client
	rabbitClient, err := initRabbitMQ(&cfg.RabbitMQ, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize RabbitMQ: %w", err)
	}
	defer rabbitClient.Close()

	appLogger.Info("RabbitMQ connection established")

	// Initialize the inference client and the handler for this variant
	inferClient := inference.NewClient(cfg.Inference.BaseURL, cfg.Inference.RequestTimeout, appLogger.Logger)

	handler, err := handlers.ForType(cfg.Worker.Type, inferClient, cfg.Worker.UploadDir)
	if err != nil {
		return err
	}

	jobQueue, err := jobQueueFor(cfg, handler.JobType())
	if err != nil {
		return err
	}

	workerID := fmt.Sprintf("%s-worker-%s", cfg.Worker.Type, uuid.New().String()[:8])

	runtime := worker.New(&worker.Config{
		Logger:        appLogger.Logger,
		Broker:        rabbitClient,
		Handler:       handler,
		Store:         storage.NewStorage(dbClient.GetDB(), appLogger.Logger),
		WorkerID:      workerID,
		JobQueue:      jobQueue,
		ResponseQueue: cfg.Queues.JobResponse,
		Concurrency:   cfg.Worker.Concurrency,
		Prefetch:      cfg.RabbitMQ.Consumer.PrefetchCount,
		JobTimeout:    cfg.Worker.JobTimeout,
	})

	// Expose job metrics on a dedicated port
	if cfg.Worker.MetricsPort > 0 {
		metricsSrv := startMetricsServer(cfg.Worker.MetricsPort, appLogger.Logger)
		defer metricsSrv.Close()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errChan := make(chan error, 1)
	go func() {
		errChan <- runtime.Start(ctx)
	}()

	appLogger.Info("Worker service is running",
		slog.String("worker_id", workerID),
		slog.String("queue", jobQueue),
	)

	// Wait for interrupt signal or runtime failure
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		appLogger.Info("Shutting down worker service...",
			slog.String("signal", sig.String()),
		)

	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("worker runtime failed: %w", err)
		}
		appLogger.Warn("Worker runtime exited")
	}

	// Stop dispatching new work, then wait for in-flight jobs with a bound
	cancel()

	done := make(chan struct{})
	go func() {
		runtime.Stop()
		close(done)
	}()

	select {
	case <-done:
		appLogger.Info("Worker service shutdown complete")
	case <-time.After(cfg.Worker.ShutdownTimeout):
		appLogger.Warn("Shutdown timeout exceeded, exiting with jobs in flight")
	}

	return nil
}

// startMetricsServer serves the Prometheus registry on /metrics
func startMetricsServer(port int, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Metrics server failed",
				slog.Any("error", err),
			)
		}
	}()

	logger.Info("Metrics server listening",
		slog.Int("port", port),
	)

	return srv
}

// jobQueueFor maps the handler's job type onto the configured queue name
func jobQueueFor(cfg *config.Config, jobType string) (string, error) {
	switch jobType {
	case queue.JobTypeResize:
		return cfg.Queues.ImageResize, nil
	case queue.JobTypeSentiment:
		return cfg.Queues.SentimentAnalysis, nil
	case queue.JobTypeGenerate:
		return cfg.Queues.TextGeneration, nil
	case queue.JobTypeTranslate:
		return cfg.Queues.Translation, nil
	default:
		return "", fmt.Errorf("no queue configured for job type: %s", jobType)
	}
}

// initLogger initializes and configures the application logger
func initLogger(cfg *config.LoggingConfig) (*logger.Logger, error) {
	loggerCfg := &logger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		Output:       cfg.Output,
		EnableSource: cfg.EnableCaller,
		TimeFormat:   time.RFC3339,
	}

	return logger.New(loggerCfg)
}

// initPostgreSQL initializes the PostgreSQL database client
func initPostgreSQL(cfg *config.DatabaseConfig, logger *slog.Logger) (*postgresql.Client, error) {
	dbConfig := &postgresql.Config{
		Host:            cfg.Host,
		Port:            cfg.Port,
		User:            cfg.User,
		Password:        cfg.Password,
		Database:        cfg.Database,
		SSLMode:         cfg.SSLMode,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
	}

	return postgresql.NewClient(dbConfig, logger)
}

// initRabbitMQ initializes the RabbitMQ client
func initRabbitMQ(cfg *config.RabbitMQConfig, logger *slog.Logger) (*rabbitmq.Client, error) {
	rabbitConfig := &rabbitmq.Config{
		Host:               cfg.Host,
		Port:               cfg.Port,
		User:               cfg.User,
		Password:           cfg.Password,
		VHost:              cfg.VHost,
		RetryAttempts:      cfg.Connection.RetryAttempts,
		RetryInterval:      cfg.Connection.RetryInterval,
		Heartbeat:          cfg.Connection.Heartbeat,
		ReconnectDelay:     cfg.Connection.ReconnectDelay,
		ReconnectMaxDelay:  cfg.Connection.ReconnectMaxDelay,
		PublishRetries:     cfg.Publish.RetryAttempts,
		PublishRetryDelay:  cfg.Publish.RetryInterval,
		PublishBackoffMult: cfg.Publish.BackoffMultiplier,
	}

	return rabbitmq.NewClient(rabbitConfig, logger)
}
