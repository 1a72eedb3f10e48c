package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/cuongbtq/jobmail/internal/domain"
)

// dispatch handles deliveries one at a time until ctx is done or the channel closes
func (w *Worker) dispatch(ctx context.Context, deliveries <-chan amqp.Delivery) {
	w.logger.Info("Message dispatcher started",
		slog.String("worker_id", w.workerID),
	)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Message dispatcher stopped - context canceled")
			return

		case delivery, ok := <-deliveries:
			if !ok {
				w.logger.Warn("RabbitMQ delivery channel closed")
				return
			}
			w.handleDelivery(ctx, delivery)
		}
	}
}

// handleDelivery runs the requested batch and acks or nacks the delivery
func (w *Worker) handleDelivery(ctx context.Context, delivery amqp.Delivery) {
	req, err := DecodeRequest(delivery.Body)
	if err != nil {
		w.logger.Error("Dropping malformed ingestion request",
			slog.String("message_id", delivery.MessageId),
			slog.Any("error", err),
		)
		if nackErr := delivery.Nack(false, false); nackErr != nil {
			w.logger.Error("Failed to NACK malformed message", slog.Any("error", nackErr))
		}
		return
	}

	_, err = w.RunIngestion(ctx, req)

	switch {
	case err == nil, errors.Is(err, domain.ErrRunInProgress):
		// a run in progress already covers this request
		if ackErr := delivery.Ack(false); ackErr != nil {
			w.logger.Error("Failed to ACK message",
				slog.String("request_id", req.RequestID),
				slog.Any("error", ackErr),
			)
		}
	default:
		requeue := shouldRequeue(err, delivery.Redelivered)
		if nackErr := delivery.Nack(false, requeue); nackErr != nil {
			w.logger.Error("Failed to NACK message",
				slog.String("request_id", req.RequestID),
				slog.Any("error", nackErr),
			)
			return
		}
		w.logger.Info("Message NACKed",
			slog.String("request_id", req.RequestID),
			slog.Bool("requeue", requeue),
		)
	}
}

// DecodeRequest parses and validates an ingestion request body
func DecodeRequest(body []byte) (domain.IngestionRequest, error) {
	var req domain.IngestionRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return req, fmt.Errorf("%w: %v", domain.ErrInvalidRequest, err)
	}
	if _, err := uuid.Parse(req.RequestID); err != nil {
		return req, fmt.Errorf("%w: request_id must be a UUID", domain.ErrInvalidRequest)
	}
	if req.Limit < 0 {
		return req, fmt.Errorf("%w: limit must not be negative", domain.ErrInvalidRequest)
	}
	return req, nil
}

// shouldRequeue retries transport failures once and always returns requests
// interrupted by shutdown to the queue.
func shouldRequeue(err error, redelivered bool) bool {
	if errors.Is(err, context.Canceled) {
		return true
	}
	if errors.Is(err, domain.ErrConfiguration) || errors.Is(err, domain.ErrInvalidRequest) {
		return false
	}
	if errors.Is(err, domain.ErrTransport) || errors.Is(err, context.DeadlineExceeded) {
		return !redelivered
	}
	return false
}
