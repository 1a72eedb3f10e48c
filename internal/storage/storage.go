// Package storage persists JobRecords. Every backend offers keyed upserts and an
// atomic find-and-update per job_id; callers never lock records themselves.
package storage

import (
	"context"
	"strconv"
	"strings"

	"github.com/cuongbtq/jobmail/internal/domain"
)

// Store is the persistence contract shared by the worker, the API and the CLI.
//
// Lookups by job_id also match the numeric alias of the id, because older
// records stored job_id as a number.
type Store interface {
	// Upsert inserts rec or overwrites the stored record with the same job_id.
	// Lifecycle fields the candidate leaves empty keep their stored value.
	Upsert(ctx context.Context, rec *domain.JobRecord) error
	FindByID(ctx context.Context, jobID string) (*domain.JobRecord, error)
	FindAll(ctx context.Context) ([]*domain.JobRecord, error)
	// Delete reports whether a record was removed
	Delete(ctx context.Context, jobID string) (bool, error)
	// UpdateFields applies upd atomically and returns the updated record,
	// or domain.ErrJobNotFound.
	UpdateFields(ctx context.Context, jobID string, upd domain.FieldUpdate) (*domain.JobRecord, error)
	Close(ctx context.Context) error
}

// idAliases returns the text forms a job_id may have been stored under and,
// when the id is numeric, its integer value.
func idAliases(jobID string) ([]string, *int64) {
	aliases := []string{jobID}

	n, err := strconv.ParseInt(strings.TrimSpace(jobID), 10, 64)
	if err != nil {
		return aliases, nil
	}
	if canonical := strconv.FormatInt(n, 10); canonical != jobID {
		aliases = append(aliases, canonical)
	}
	return aliases, &n
}

// mergeForUpsert builds the record stored after an upsert of incoming over
// existing: content fields are replaced, lifecycle fields are kept unless
// incoming sets them, and Extra keys are merged.
func mergeForUpsert(existing, incoming *domain.JobRecord) *domain.JobRecord {
	merged := incoming.Clone()
	if existing == nil {
		return merged
	}

	if merged.Status == "" {
		merged.Status = existing.Status
	}
	if merged.TrackingStatus == nil && existing.TrackingStatus != nil {
		merged.TrackingStatus = domain.StringPtr(*existing.TrackingStatus)
	}
	if merged.DenyReason == nil && existing.DenyReason != nil {
		merged.DenyReason = domain.StringPtr(*existing.DenyReason)
	}

	if len(existing.Extra) > 0 {
		extra := make(map[string]any, len(existing.Extra)+len(merged.Extra))
		for k, v := range existing.Extra {
			extra[k] = v
		}
		for k, v := range merged.Extra {
			extra[k] = v
		}
		merged.Extra = extra
	}

	return merged
}

// applyUpdate mutates rec according to upd
func applyUpdate(rec *domain.JobRecord, upd domain.FieldUpdate) {
	if upd.Status != "" {
		rec.Status = upd.Status
	}

	switch {
	case upd.ClearTrackingStatus:
		rec.TrackingStatus = nil
	case upd.TrackingStatus != nil:
		rec.TrackingStatus = domain.StringPtr(*upd.TrackingStatus)
	}

	switch {
	case upd.ClearDenyReason:
		rec.DenyReason = nil
	case upd.DenyReason != nil:
		rec.DenyReason = domain.StringPtr(*upd.DenyReason)
	}
}
