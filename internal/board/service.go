package board

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cuongbtq/jobmail/internal/domain"
)

// ErrInvalidStatus is returned when a move targets an unknown status
var ErrInvalidStatus = errors.New("status must be one of new, applied, waiting, denied")

// Repository is the part of the store the board needs
type Repository interface {
	FindAll(ctx context.Context) ([]*domain.JobRecord, error)
	UpdateFields(ctx context.Context, jobID string, upd domain.FieldUpdate) (*domain.JobRecord, error)
	Delete(ctx context.Context, jobID string) (bool, error)
}

// Service implements the board's read and transition operations
type Service struct {
	repo   Repository
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a new board Service
func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
		now:    time.Now,
	}
}

// ListAll returns every job as a View
func (s *Service) ListAll(ctx context.Context) ([]View, error) {
	recs, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load jobs: %w", err)
	}
	return ProjectAll(recs, s.now()), nil
}

// ListByStatus returns the jobs whose canonical status matches status.
// status itself may be any synonym; empty means "new". Unknown values
// return ErrInvalidStatus.
func (s *Service) ListByStatus(ctx context.Context, status string) ([]View, error) {
	bucket := domain.StatusNew
	if strings.TrimSpace(status) != "" {
		var ok bool
		if bucket, ok = domain.ParseStatus(status); !ok {
			return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
		}
	}

	views, err := s.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	filtered := make([]View, 0, len(views))
	for _, v := range views {
		if v.Status == bucket {
			filtered = append(filtered, v)
		}
	}
	return filtered, nil
}

// Apply marks a job applied with the initial tracking state
func (s *Service) Apply(ctx context.Context, jobID string) (*View, error) {
	return s.transition(ctx, jobID, domain.StatusApplied, domain.StringPtr(domain.InitialTrackingStatus), nil)
}

// Save moves a job to the waiting list
func (s *Service) Save(ctx context.Context, jobID string) (*View, error) {
	return s.transition(ctx, jobID, domain.StatusWaiting, nil, nil)
}

// Deny marks a job denied; a nil reason leaves the stored reason unchanged
func (s *Service) Deny(ctx context.Context, jobID string, reason *string) (*View, error) {
	return s.transition(ctx, jobID, domain.StatusDenied, nil, reason)
}

// Track sets the tracking sub-state; the job is (re)marked applied
func (s *Service) Track(ctx context.Context, jobID, trackingStatus string) (*View, error) {
	return s.transition(ctx, jobID, domain.StatusApplied, &trackingStatus, nil)
}

// Move puts a job into the bucket named by newStatus, which may be any synonym
func (s *Service) Move(ctx context.Context, jobID, newStatus string) (*View, error) {
	bucket, ok := domain.ParseStatus(newStatus)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, newStatus)
	}
	return s.transition(ctx, jobID, bucket, nil, nil)
}

// Delete removes a job. The bool is false when nothing matched.
func (s *Service) Delete(ctx context.Context, jobID string) (bool, error) {
	ok, err := s.repo.Delete(ctx, jobID)
	if err != nil {
		return false, fmt.Errorf("failed to delete job: %w", err)
	}
	if ok {
		s.logger.Info("Job deleted", slog.String("job_id", jobID))
	}
	return ok, nil
}

func (s *Service) transition(ctx context.Context, jobID string, bucket domain.CanonicalStatus, tracking, reason *string) (*View, error) {
	rec, err := s.repo.UpdateFields(ctx, jobID, TransitionUpdate(bucket, tracking, reason))
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to update job: %w", err)
	}

	s.logger.Info("Job status changed",
		slog.String("job_id", jobID),
		slog.String("status", bucket.String()),
	)

	v := Project(rec, s.now())
	return &v, nil
}

// TransitionUpdate builds the field update for moving into bucket. Leaving
// applied clears the tracking state and leaving denied clears the reason.
func TransitionUpdate(bucket domain.CanonicalStatus, tracking, reason *string) domain.FieldUpdate {
	upd := domain.FieldUpdate{Status: bucket.String()}

	if bucket != domain.StatusApplied {
		upd.ClearTrackingStatus = true
	} else if tracking != nil {
		upd.TrackingStatus = tracking
	}

	if bucket != domain.StatusDenied {
		upd.ClearDenyReason = true
	} else if reason != nil {
		upd.DenyReason = reason
	}

	return upd
}
