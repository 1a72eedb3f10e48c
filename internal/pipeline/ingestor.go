package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cuongbtq/jobmail/internal/domain"
)

// MailSource returns the most recent messages from a mailbox
type MailSource interface {
	FetchRecent(ctx context.Context, limit int) ([]domain.RawMessage, error)
}

// Classifier decides whether a message is a job opportunity
type Classifier interface {
	Classify(ctx context.Context, text string) (*domain.ClassificationResult, error)
}

// RecordWriter persists records keyed by job_id. Writes for an existing
// job_id overwrite the stored record.
type RecordWriter interface {
	Upsert(ctx context.Context, rec *domain.JobRecord) error
}

// Config holds ingestor dependencies
type Config struct {
	Logger     *slog.Logger
	Source     MailSource
	Classifier Classifier
	Store      RecordWriter
	// Concurrency bounds parallel message processing; values below 1 mean sequential
	Concurrency int
	// BatchLimit is used by Run when the caller passes a non-positive limit
	BatchLimit int
}

// Ingestor drives the per-message pipeline: classify, merge, assign identity,
// validate and upsert.
type Ingestor struct {
	logger      *slog.Logger
	source      MailSource
	classifier  Classifier
	store       RecordWriter
	concurrency int
	batchLimit  int
	now         func() time.Time
}

// NewIngestor creates a new Ingestor
func NewIngestor(cfg *Config) *Ingestor {
	concurrency := cfg.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	batchLimit := cfg.BatchLimit
	if batchLimit < 1 {
		batchLimit = 50
	}
	return &Ingestor{
		logger:      cfg.Logger,
		source:      cfg.Source,
		classifier:  cfg.Classifier,
		store:       cfg.Store,
		concurrency: concurrency,
		batchLimit:  batchLimit,
		now:         time.Now,
	}
}

// Run fetches up to limit recent messages and processes them.
// A mail-source failure or a configuration error fails the whole run; every
// other failure is reported on the affected message only.
func (i *Ingestor) Run(ctx context.Context, limit int) (*Report, error) {
	if limit < 1 {
		limit = i.batchLimit
	}

	i.logger.Info("Fetching recent messages",
		slog.Int("limit", limit),
	)

	msgs, err := i.source.FetchRecent(ctx, limit)
	if err != nil {
		if errors.Is(err, domain.ErrConfiguration) || errors.Is(err, domain.ErrTransport) {
			return nil, fmt.Errorf("failed to fetch messages: %w", err)
		}
		return nil, fmt.Errorf("failed to fetch messages: %w", domain.NewTransportError("mail.fetch", err))
	}

	i.logger.Info("Messages fetched",
		slog.Int("count", len(msgs)),
	)

	return i.Process(ctx, msgs)
}

// Process runs the pipeline over msgs. The returned report always has one
// result per message, in input order. The error is non-nil only when a
// configuration error made further processing pointless.
func (i *Ingestor) Process(ctx context.Context, msgs []domain.RawMessage) (*Report, error) {
	report := &Report{
		Results:   make([]MessageResult, len(msgs)),
		StartedAt: i.now(),
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(i.concurrency)

	for idx, msg := range msgs {
		idx, msg := idx, msg
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				report.Results[idx] = MessageResult{
					Subject: msg.Subject,
					Outcome: OutcomeFailed,
					Reason:  "run aborted",
					Err:     err,
				}
				return nil
			}
			res, err := i.processMessage(gCtx, msg)
			report.Results[idx] = res
			return err
		})
	}

	err := g.Wait()
	report.FinishedAt = i.now()

	i.logger.Info("Ingestion run finished",
		slog.Int("messages", len(msgs)),
		slog.Int("persisted", report.Count(OutcomePersisted)),
		slog.Int("skipped_irrelevant", report.Count(OutcomeSkippedIrrelevant)),
		slog.Int("skipped_incomplete", report.Count(OutcomeSkippedIncomplete)),
		slog.Int("failed", report.Count(OutcomeFailed)),
		slog.Duration("duration", report.Duration()),
	)

	if err != nil {
		return report, fmt.Errorf("ingestion aborted: %w", err)
	}
	return report, nil
}

// processMessage moves one message to a terminal outcome. Only configuration
// errors are returned; everything else is recorded on the result.
func (i *Ingestor) processMessage(ctx context.Context, msg domain.RawMessage) (MessageResult, error) {
	res := MessageResult{Subject: msg.Subject}
	log := i.logger.With(slog.String("subject", msg.Subject))

	// Step 1: classify
	cls, err := i.classifier.Classify(ctx, msg.Text())
	if err != nil {
		res.Outcome = OutcomeFailed
		res.Reason = err.Error()
		res.Err = err
		if errors.Is(err, domain.ErrConfiguration) {
			log.Error("Classifier is not configured", slog.Any("error", err))
			return res, err
		}
		log.Warn("Classification failed, skipping message", slog.Any("error", err))
		return res, nil
	}

	// Step 2: relevance
	if cls == nil || !cls.Relevant {
		res.Outcome = OutcomeSkippedIrrelevant
		log.Info("Skipped: not a job opportunity")
		return res, nil
	}

	// Step 3-4: merge, then identity always overrides whatever the classifier proposed
	rec := MergeRecord(cls, msg)
	rec.JobID = AssignIdentity(msg)
	res.JobID = rec.JobID
	if cls.SuggestedID != "" && cls.SuggestedID != rec.JobID {
		log.Debug("Ignoring classifier-proposed job_id",
			slog.String("suggested", cls.SuggestedID),
			slog.String("job_id", rec.JobID),
		)
	}

	// Step 5: required-field gate
	if err := ValidateRequired(rec); err != nil {
		res.Outcome = OutcomeSkippedIncomplete
		res.Reason = err.Error()
		res.Err = err
		log.Info("Skipped: missing required fields",
			slog.String("job_id", rec.JobID),
			slog.String("reason", res.Reason),
		)
		return res, nil
	}

	// Step 6: upsert
	if err := i.store.Upsert(ctx, rec); err != nil {
		res.Outcome = OutcomeFailed
		res.Reason = err.Error()
		res.Err = err
		log.Error("Failed to persist job",
			slog.String("job_id", rec.JobID),
			slog.Any("error", err),
		)
		return res, nil
	}

	res.Outcome = OutcomePersisted
	log.Info("Job saved",
		slog.String("job_id", rec.JobID),
		slog.String("title", rec.Title),
		slog.String("company", rec.Company),
	)
	return res, nil
}
