package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/robfig/cron/v3"

	"github.com/cuongbtq/jobmail/internal/pipeline"
)

// Runner runs one ingestion batch
type Runner interface {
	Run(ctx context.Context, limit int) (*pipeline.Report, error)
}

// Locker guards a run across worker processes
type Locker interface {
	Acquire(ctx context.Context, key, token string, ttl time.Duration) error
	Release(ctx context.Context, key, token string) error
}

// DeliverySource is the queue the worker consumes ingestion requests from
type DeliverySource interface {
	Consume(consumerTag string, exclusive bool) (<-chan amqp.Delivery, error)
}

// Config holds worker configuration
type Config struct {
	Logger   *slog.Logger
	Runner   Runner
	Locker   Locker
	Queue    DeliverySource
	WorkerID string
	// ConsumerTag defaults to WorkerID
	ConsumerTag string
	Exclusive   bool

	LockKey    string
	LockTTL    time.Duration
	RunTimeout time.Duration
	// Schedule is a cron spec; empty disables scheduled runs
	Schedule string
	// RunOnStart triggers one run as soon as the scheduler starts
	RunOnStart bool
}

// Worker runs ingestion batches on a schedule and on queued requests
type Worker struct {
	logger     *slog.Logger
	runner     Runner
	locker     Locker
	queue      DeliverySource
	workerID   string
	tag        string
	exclusive  bool
	lockKey    string
	lockTTL    time.Duration
	runTimeout time.Duration
	schedule   string
	runOnStart bool

	cron *cron.Cron
	wg   sync.WaitGroup
}

// NewWorker creates a new worker instance
func NewWorker(cfg *Config) *Worker {
	runTimeout := cfg.RunTimeout
	if runTimeout <= 0 {
		runTimeout = 10 * time.Minute
	}
	lockTTL := cfg.LockTTL
	if lockTTL <= 0 {
		lockTTL = runTimeout + time.Minute
	}

	tag := cfg.ConsumerTag
	if tag == "" {
		tag = cfg.WorkerID
	}

	return &Worker{
		logger:     cfg.Logger,
		runner:     cfg.Runner,
		locker:     cfg.Locker,
		queue:      cfg.Queue,
		workerID:   cfg.WorkerID,
		tag:        tag,
		exclusive:  cfg.Exclusive,
		lockKey:    cfg.LockKey,
		lockTTL:    lockTTL,
		runTimeout: runTimeout,
		schedule:   cfg.Schedule,
		runOnStart: cfg.RunOnStart,
	}
}

// Start begins the scheduler and the queue consumer, then blocks until ctx is done
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Starting worker",
		slog.String("worker_id", w.workerID),
		slog.String("schedule", w.schedule),
		slog.Duration("run_timeout", w.runTimeout),
		slog.Bool("queue", w.queue != nil),
	)

	if w.schedule != "" {
		if err := w.startScheduler(ctx); err != nil {
			return err
		}
	}

	if w.queue != nil {
		deliveries, err := w.queue.Consume(w.tag, w.exclusive)
		if err != nil {
			return fmt.Errorf("failed to start consuming: %w", err)
		}

		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			w.dispatch(ctx, deliveries)
		}()
	}

	<-ctx.Done()
	w.logger.Info("Worker context canceled, stopping...")
	return nil
}

// Stop waits for the scheduler and the consumer to finish their current run
func (w *Worker) Stop() {
	w.logger.Info("Stopping worker...")
	if w.cron != nil {
		<-w.cron.Stop().Done()
	}
	w.wg.Wait()
	w.logger.Info("Worker stopped")
}

func (w *Worker) startScheduler(ctx context.Context) error {
	w.cron = cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))

	_, err := w.cron.AddFunc(w.schedule, func() {
		w.scheduledRun(ctx)
	})
	if err != nil {
		return fmt.Errorf("invalid worker schedule %q: %w", w.schedule, err)
	}

	w.cron.Start()
	w.logger.Info("Scheduler started", slog.String("schedule", w.schedule))

	if w.runOnStart {
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			w.scheduledRun(ctx)
		}()
	}
	return nil
}

func (w *Worker) scheduledRun(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	// scheduled runs use the configured batch size
	_, _ = w.RunIngestion(ctx, newScheduledRequest())
}
