// Package bootstrap builds the components the binaries share from config.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/cuongbtq/jobmail/internal/classifier"
	"github.com/cuongbtq/jobmail/internal/config"
	"github.com/cuongbtq/jobmail/internal/mail"
	"github.com/cuongbtq/jobmail/internal/pipeline"
	"github.com/cuongbtq/jobmail/internal/storage"
	"github.com/cuongbtq/jobmail/shared/logger"
	"github.com/cuongbtq/jobmail/shared/mongodb"
	"github.com/cuongbtq/jobmail/shared/postgresql"
	"github.com/cuongbtq/jobmail/shared/rabbitmq"
)

// HealthChecker is implemented by the database clients
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Logger initializes and configures the application logger
func Logger(cfg *config.LoggingConfig) (*logger.Logger, error) {
	return logger.New(&logger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		Output:       cfg.Output,
		EnableSource: cfg.EnableCaller,
		TimeFormat:   time.RFC3339,
	})
}

// Store opens the configured store. The returned checker is nil for the
// memory store.
func Store(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storage.Store, HealthChecker, error) {
	switch cfg.Database.Driver {
	case config.DriverPostgres:
		client, err := PostgreSQL(ctx, &cfg.Database, cfg.App.Name, logger)
		if err != nil {
			return nil, nil, err
		}
		store := storage.NewPostgresStore(client, logger)
		if err := store.EnsureSchema(ctx); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("failed to migrate schema: %w", err)
		}
		return store, client, nil

	case config.DriverMongoDB:
		client, err := mongodb.NewClient(ctx, &mongodb.Config{
			URI:            cfg.Database.Mongo.URI,
			Database:       cfg.Database.Mongo.Database,
			ConnectTimeout: cfg.Database.Mongo.ConnectTimeout,
			MaxPoolSize:    cfg.Database.Mongo.MaxPoolSize,
		}, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
		}
		return storage.NewMongoStore(ctx, client, logger), client, nil

	case config.DriverMemory:
		logger.Warn("Using in-memory store, data is lost on exit")
		return storage.NewMemoryStore(), nil, nil

	default:
		return nil, nil, fmt.Errorf("unsupported database driver: %q", cfg.Database.Driver)
	}
}

// PostgreSQL initializes the PostgreSQL database client
func PostgreSQL(ctx context.Context, cfg *config.DatabaseConfig, appName string, logger *slog.Logger) (*postgresql.Client, error) {
	return postgresql.NewClient(ctx, &postgresql.Config{
		Host:            cfg.Host,
		Port:            cfg.Port,
		User:            cfg.User,
		Password:        cfg.Password,
		Database:        cfg.Database,
		SSLMode:         cfg.SSLMode,
		ApplicationName: appName,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
	}, logger)
}

// RabbitMQConfig maps the YAML section onto the client config
func RabbitMQConfig(cfg *config.RabbitMQConfig) *rabbitmq.Config {
	return &rabbitmq.Config{
		Host:               cfg.Host,
		Port:               cfg.Port,
		User:               cfg.User,
		Password:           cfg.Password,
		VHost:              cfg.VHost,
		ExchangeName:       cfg.Exchange.Name,
		ExchangeType:       cfg.Exchange.Type,
		ExchangeDurable:    cfg.Exchange.Durable,
		ExchangeAutoDelete: cfg.Exchange.AutoDelete,
		QueueName:          cfg.Queue.Name,
		QueueDurable:       cfg.Queue.Durable,
		QueueAutoDelete:    cfg.Queue.AutoDelete,
		QueueExclusive:     cfg.Queue.Exclusive,
		RoutingKey:         cfg.RoutingKey,
		RetryAttempts:      cfg.Connection.RetryAttempts,
		RetryInterval:      cfg.Connection.RetryInterval,
		Heartbeat:          cfg.Connection.Heartbeat,
		ConnectionTimeout:  cfg.Connection.ConnectionTimeout,
		PublishRetries:     cfg.Publish.RetryAttempts,
		PublishRetryDelay:  cfg.Publish.RetryInterval,
		PublishBackoffMult: cfg.Publish.BackoffMultiplier,
		PrefetchCount:      cfg.Consumer.PrefetchCount,
	}
}

// RabbitMQ initializes the RabbitMQ client
func RabbitMQ(cfg *config.RabbitMQConfig, logger *slog.Logger) (*rabbitmq.Client, error) {
	return rabbitmq.NewClient(RabbitMQConfig(cfg), logger)
}

// GmailConfig maps the mail section onto the Gmail connector config
func GmailConfig(cfg *config.MailConfig) *mail.GmailConfig {
	return &mail.GmailConfig{
		CredentialsFile: cfg.CredentialsFile,
		TokenFile:       cfg.TokenFile,
		User:            cfg.User,
		Query:           cfg.Query,
	}
}

// MailSource builds the configured mail source
func MailSource(ctx context.Context, cfg *config.MailConfig, logger *slog.Logger) (pipeline.MailSource, error) {
	switch cfg.Source {
	case config.MailSourceGmail:
		src, err := mail.NewGmailSource(ctx, GmailConfig(cfg), logger)
		if err != nil {
			return nil, err
		}
		return src, nil
	case config.MailSourceFile:
		return mail.NewFileSource(cfg.File), nil
	default:
		return nil, fmt.Errorf("unsupported mail source: %q", cfg.Source)
	}
}

// Classifier builds the Gemini-backed classifier. The caller closes it.
func Classifier(ctx context.Context, cfg *config.ClassifierConfig, logger *slog.Logger) (*classifier.Classifier, error) {
	gen, err := classifier.NewGeminiGenerator(ctx, &classifier.GeminiConfig{
		APIKey:      cfg.APIKey,
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
	})
	if err != nil {
		return nil, err
	}

	var prompt string
	if cfg.PromptFile != "" {
		data, err := os.ReadFile(cfg.PromptFile)
		if err != nil {
			gen.Close()
			return nil, fmt.Errorf("failed to read prompt file: %w", err)
		}
		prompt = string(data)
	}

	return classifier.New(&classifier.Config{
		Logger:    logger,
		Generator: gen,
		Prompt:    prompt,
		Timeout:   cfg.Timeout,
	}), nil
}

// Ingestor wires mail source, classifier and store into a pipeline.Ingestor.
// The returned cleanup closes the classifier.
func Ingestor(ctx context.Context, cfg *config.Config, store pipeline.RecordWriter, logger *slog.Logger) (*pipeline.Ingestor, func(), error) {
	source, err := MailSource(ctx, &cfg.Mail, logger)
	if err != nil {
		return nil, nil, err
	}

	clf, err := Classifier(ctx, &cfg.Classifier, logger)
	if err != nil {
		return nil, nil, err
	}

	ingestor := pipeline.NewIngestor(&pipeline.Config{
		Logger:      logger,
		Source:      source,
		Classifier:  clf,
		Store:       store,
		Concurrency: cfg.Worker.Concurrency,
		BatchLimit:  cfg.Worker.BatchLimit,
	})

	cleanup := func() {
		if err := clf.Close(); err != nil {
			logger.Warn("Failed to close classifier", slog.Any("error", err))
		}
	}
	return ingestor, cleanup, nil
}
