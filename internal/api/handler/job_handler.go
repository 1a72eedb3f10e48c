package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/cuongbtq/jobmail/internal/api/dto"
	"github.com/cuongbtq/jobmail/internal/board"
	"github.com/cuongbtq/jobmail/internal/domain"
)

// ListAll handles GET /data
// Returns every job as a bare JSON array
func (h *JobHandler) ListAll(c *gin.Context) {
	views, err := h.board.ListAll(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to list jobs", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, dto.Response{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, views)
}

// ListByStatus handles GET /jobs?status=
// Filters jobs by canonical status; any synonym is accepted
func (h *JobHandler) ListByStatus(c *gin.Context) {
	var req dto.ListJobsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.logger.Error("Invalid query parameters", slog.Any("error", err))
		c.JSON(http.StatusBadRequest, dto.Response{Error: "Invalid query parameters"})
		return
	}

	views, err := h.board.ListByStatus(c.Request.Context(), req.Status)
	if errors.Is(err, board.ErrInvalidStatus) {
		c.JSON(http.StatusBadRequest, dto.Response{Error: err.Error()})
		return
	}
	if err != nil {
		h.logger.Error("Failed to list jobs by status",
			slog.String("status", req.Status),
			slog.Any("error", err),
		)
		c.JSON(http.StatusInternalServerError, dto.Response{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, dto.Response{Success: true, Data: views})
}

// Apply handles POST /apply/:job_id
func (h *JobHandler) Apply(c *gin.Context) {
	view, err := h.board.Apply(c.Request.Context(), c.Param("job_id"))
	h.respondView(c, view, err)
}

// Save handles POST /save/:job_id
func (h *JobHandler) Save(c *gin.Context) {
	view, err := h.board.Save(c.Request.Context(), c.Param("job_id"))
	h.respondView(c, view, err)
}

// Deny handles POST /deny/:job_id with an optional {"reason": "..."} body
func (h *JobHandler) Deny(c *gin.Context) {
	var req dto.DenyRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.logger.Error("Invalid request body", slog.Any("error", err))
			c.JSON(http.StatusBadRequest, dto.Response{Error: "Invalid request body"})
			return
		}
	}

	view, err := h.board.Deny(c.Request.Context(), c.Param("job_id"), req.Reason)
	h.respondView(c, view, err)
}

// Track handles POST /tracking/:job_id with {"trackingStatus": "..."}
func (h *JobHandler) Track(c *gin.Context) {
	var req dto.TrackingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.Any("error", err))
		c.JSON(http.StatusBadRequest, dto.Response{Error: "trackingStatus is required"})
		return
	}

	view, err := h.board.Track(c.Request.Context(), c.Param("job_id"), req.TrackingStatus)
	h.respondView(c, view, err)
}

// Move handles POST /move/:job_id with {"newStatus": "..."}
func (h *JobHandler) Move(c *gin.Context) {
	var req dto.MoveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.Any("error", err))
		c.JSON(http.StatusBadRequest, dto.Response{Error: "newStatus is required"})
		return
	}

	view, err := h.board.Move(c.Request.Context(), c.Param("job_id"), req.NewStatus)
	h.respondView(c, view, err)
}

// Delete handles DELETE /delete/:job_id
func (h *JobHandler) Delete(c *gin.Context) {
	jobID := c.Param("job_id")

	ok, err := h.board.Delete(c.Request.Context(), jobID)
	if err != nil {
		h.logger.Error("Failed to delete job",
			slog.String("job_id", jobID),
			slog.Any("error", err),
		)
		c.JSON(http.StatusInternalServerError, dto.Response{Error: err.Error()})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, dto.Response{Error: "Job not found"})
		return
	}

	c.JSON(http.StatusOK, dto.Response{Success: true})
}

// CreateIngestion handles POST /api/v1/ingestions
// Enqueues an ingestion run for the worker service
func (h *JobHandler) CreateIngestion(c *gin.Context) {
	var req dto.CreateIngestionRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.logger.Error("Invalid request body", slog.Any("error", err))
			c.JSON(http.StatusBadRequest, dto.Response{Error: "Invalid request body"})
			return
		}
	}

	if h.publisher == nil {
		c.JSON(http.StatusServiceUnavailable, dto.Response{Error: "Ingestion queue is not configured"})
		return
	}

	msg := domain.IngestionRequest{
		RequestID:   uuid.New().String(),
		Limit:       req.Limit,
		RequestedAt: time.Now().UTC().Format(time.RFC3339),
	}

	if err := h.publisher.PublishJSON(c.Request.Context(), msg.RequestID, msg); err != nil {
		h.logger.Error("Failed to enqueue ingestion",
			slog.String("request_id", msg.RequestID),
			slog.Any("error", err),
		)
		c.JSON(http.StatusBadGateway, dto.Response{Error: "Failed to enqueue ingestion"})
		return
	}

	h.logger.Info("Ingestion enqueued",
		slog.String("request_id", msg.RequestID),
		slog.Int("limit", msg.Limit),
	)

	c.JSON(http.StatusAccepted, dto.Response{
		Success: true,
		Data: dto.IngestionResponse{
			RequestID:   msg.RequestID,
			Limit:       msg.Limit,
			RequestedAt: msg.RequestedAt,
			Status:      "queued",
		},
	})
}

func (h *JobHandler) respondView(c *gin.Context, view *board.View, err error) {
	jobID := c.Param("job_id")

	switch {
	case err == nil:
		c.JSON(http.StatusOK, dto.Response{Success: true, Data: view})
	case errors.Is(err, domain.ErrJobNotFound):
		c.JSON(http.StatusNotFound, dto.Response{Error: "Job not found"})
	case errors.Is(err, board.ErrInvalidStatus):
		c.JSON(http.StatusBadRequest, dto.Response{Error: err.Error()})
	default:
		h.logger.Error("Failed to update job",
			slog.String("job_id", jobID),
			slog.Any("error", err),
		)
		c.JSON(http.StatusInternalServerError, dto.Response{Error: err.Error()})
	}
}
