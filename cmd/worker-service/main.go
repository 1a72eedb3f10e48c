package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/cuongbtq/jobmail/internal/bootstrap"
	"github.com/cuongbtq/jobmail/internal/config"
	"github.com/cuongbtq/jobmail/internal/worker"
	"github.com/cuongbtq/jobmail/shared/redis"
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

	defaultConfigPath := os.Getenv("WORKER_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/worker-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	runOnStart := flag.Bool("run-on-start", false, "Run one ingestion batch immediately")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateWorkerConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	appLogger, err := bootstrap.Logger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer appLogger.Close()

	workerID := fmt.Sprintf("%s-%s", cfg.App.Name, uuid.New().String()[:8])
	logger := appLogger.With(slog.String("worker_id", workerID)).Logger

	logger.Info("Starting worker service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, _, err := bootstrap.Store(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer store.Close(context.Background())

	logger.Info("Database connection established")

	ingestor, closeIngestor, err := bootstrap.Ingestor(ctx, cfg, store, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize ingestion pipeline: %w", err)
	}
	defer closeIngestor()

	rabbitClient, err := bootstrap.RabbitMQ(&cfg.RabbitMQ, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize RabbitMQ: %w", err)
	}
	defer rabbitClient.Close()

	logger.Info("RabbitMQ connection established")

	workerCfg := &worker.Config{
		Logger:     logger,
		Runner:     ingestor,
		Queue:      rabbitClient,
		WorkerID:   workerID,
		Exclusive:  cfg.RabbitMQ.Consumer.Exclusive,
		LockKey:    cfg.Worker.LockKey,
		LockTTL:    cfg.Worker.LockTTL,
		RunTimeout: cfg.Worker.RunTimeout,
		Schedule:   cfg.Worker.Schedule,
		RunOnStart: *runOnStart,
	}

	if cfg.RabbitMQ.Consumer.Tag != "" {
		workerCfg.ConsumerTag = fmt.Sprintf("%s-%s", cfg.RabbitMQ.Consumer.Tag, workerID)
	}

	if cfg.Redis.URL != "" {
		redisClient, err := redis.NewClient(ctx, cfg.Redis.URL, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize Redis: %w", err)
		}
		defer redisClient.Close()
		workerCfg.Locker = redisClient
		logger.Info("Redis run lock enabled", slog.String("key", cfg.Worker.LockKey))
	} else {
		logger.Warn("Redis is not configured, runs are not locked across workers")
	}

	workerInstance := worker.NewWorker(workerCfg)

	errChan := make(chan error, 1)
	go func() {
		if err := workerInstance.Start(ctx); err != nil {
			errChan <- err
		}
	}()

	logger.Info("Worker service started successfully")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info("Received signal, shutting down gracefully",
			slog.String("signal", sig.String()),
		)
	case amqpErr := <-rabbitClient.NotifyClose():
		logger.Error("RabbitMQ channel closed", slog.Any("error", amqpErr))
	case err := <-errChan:
		logger.Error("Worker error",
			slog.Any("error", err),
		)
		return err
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Worker.ShutdownTimeout)
	defer shutdownCancel()

	done := make(chan struct{})
	go func() {
		workerInstance.Stop()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("Worker stopped gracefully")
	case <-shutdownCtx.Done():
		logger.Warn("Worker shutdown timeout exceeded, forcing exit")
	}

	logger.Info("Worker service shutdown complete")
	return nil
}
