package handler

import (
	"context"
	"log/slog"

	"github.com/cuongbtq/jobmail/internal/board"
)

// Publisher enqueues ingestion requests for the worker service
type Publisher interface {
	PublishJSON(ctx context.Context, messageID string, v any) error
}

// HealthChecker is implemented by the database clients
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger    *slog.Logger
	Board     *board.Service
	Publisher Publisher
	// Checks are probed by GET /health, keyed by component name
	Checks map[string]HealthChecker
}

// JobHandler handles board and ingestion HTTP requests
type JobHandler struct {
	logger    *slog.Logger
	board     *board.Service
	publisher Publisher
}

// NewJobHandler creates a new JobHandler instance
func NewJobHandler(deps *Dependencies) *JobHandler {
	return &JobHandler{
		logger:    deps.Logger,
		board:     deps.Board,
		publisher: deps.Publisher,
	}
}
