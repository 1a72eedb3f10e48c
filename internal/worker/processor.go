package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/cuongbtq/jobmail/internal/domain"
	"github.com/cuongbtq/jobmail/internal/pipeline"
	redislock "github.com/cuongbtq/jobmail/shared/redis"
)

func newScheduledRequest() domain.IngestionRequest {
	return domain.IngestionRequest{
		RequestID:   uuid.New().String(),
		RequestedAt: time.Now().UTC().Format(time.RFC3339),
	}
}

// RunIngestion runs one batch for req under the run lock and the run timeout.
// It returns domain.ErrRunInProgress when another worker holds the lock.
func (w *Worker) RunIngestion(ctx context.Context, req domain.IngestionRequest) (*pipeline.Report, error) {
	logger := w.logger.With(slog.String("request_id", req.RequestID))

	if w.locker != nil {
		if err := w.locker.Acquire(ctx, w.lockKey, req.RequestID, w.lockTTL); err != nil {
			if errors.Is(err, redislock.ErrLockHeld) {
				logger.Info("Ingestion already running elsewhere, skipping")
				return nil, domain.ErrRunInProgress
			}
			return nil, domain.NewTransportError("worker.lock", err)
		}
		defer func() {
			// release even when ctx is already cancelled
			releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := w.locker.Release(releaseCtx, w.lockKey, req.RequestID); err != nil {
				logger.Warn("Failed to release ingestion lock", slog.Any("error", err))
			}
		}()
	}

	runCtx, cancel := context.WithTimeout(ctx, w.runTimeout)
	defer cancel()

	logger.Info("Ingestion run started", slog.Int("limit", req.Limit))

	report, err := w.runner.Run(runCtx, req.Limit)
	if err != nil {
		logger.Error("Ingestion run failed", slog.Any("error", err))
		return report, fmt.Errorf("ingestion run %s failed: %w", req.RequestID, err)
	}

	logger.Info("Ingestion request completed",
		slog.Int("persisted", report.Count(pipeline.OutcomePersisted)),
		slog.Int("failed", report.Count(pipeline.OutcomeFailed)),
	)

	return report, nil
}
