package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/cuongbtq/jobmail/internal/domain"
	"github.com/cuongbtq/jobmail/shared/postgresql"
)

// schema creates the jobs table. Everything except job_id is nullable because
// records arrive with partial data.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS jobs (
		job_id            TEXT PRIMARY KEY,
		title             TEXT,
		company           TEXT,
		location          TEXT,
		skills            TEXT[],
		duration          TEXT,
		start_date        TEXT,
		end_date          TEXT,
		stipend           TEXT,
		short_description TEXT,
		posted_date       TEXT,
		link              TEXT,
		snippet           TEXT,
		status            TEXT,
		tracking_status   TEXT,
		deny_reason       TEXT,
		extra             JSONB NOT NULL DEFAULT '{}'::jsonb,
		created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs (status)`,
	`CREATE INDEX IF NOT EXISTS idx_jobs_created_at ON jobs (created_at)`,
}

const jobColumns = `job_id, title, company, location, skills, duration, start_date, end_date,
	stipend, short_description, posted_date, link, snippet, status, tracking_status,
	deny_reason, extra, created_at, updated_at`

// matchID resolves $1 (all aliases) and $2 (the exact id) to a single row,
// preferring the exact match.
const matchID = `job_id = (
	SELECT job_id FROM jobs
	WHERE job_id = ANY($1::text[])
	ORDER BY (job_id = $2::text) DESC
	LIMIT 1
)`

type jobRow struct {
	JobID            string         `db:"job_id"`
	Title            sql.NullString `db:"title"`
	Company          sql.NullString `db:"company"`
	Location         sql.NullString `db:"location"`
	Skills           pq.StringArray `db:"skills"`
	Duration         sql.NullString `db:"duration"`
	StartDate        sql.NullString `db:"start_date"`
	EndDate          sql.NullString `db:"end_date"`
	Stipend          sql.NullString `db:"stipend"`
	ShortDescription sql.NullString `db:"short_description"`
	PostedDate       sql.NullString `db:"posted_date"`
	Link             sql.NullString `db:"link"`
	Snippet          sql.NullString `db:"snippet"`
	Status           sql.NullString `db:"status"`
	TrackingStatus   sql.NullString `db:"tracking_status"`
	DenyReason       sql.NullString `db:"deny_reason"`
	Extra            []byte         `db:"extra"`
	CreatedAt        time.Time      `db:"created_at"`
	UpdatedAt        time.Time      `db:"updated_at"`
}

// PostgresStore stores jobs in a single PostgreSQL table
type PostgresStore struct {
	client *postgresql.Client
	db     *sqlx.DB
	logger *slog.Logger
}

// NewPostgresStore creates a new PostgresStore on top of an open client
func NewPostgresStore(client *postgresql.Client, logger *slog.Logger) *PostgresStore {
	return &PostgresStore{
		client: client,
		db:     client.GetDB(),
		logger: logger,
	}
}

// EnsureSchema creates the jobs table and its indexes if they are missing
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	return s.client.Migrate(ctx, schema...)
}

// Upsert inserts rec or overwrites the row with the same job_id
func (s *PostgresStore) Upsert(ctx context.Context, rec *domain.JobRecord) error {
	row, err := toRow(rec)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO jobs (
			job_id, title, company, location, skills, duration, start_date, end_date,
			stipend, short_description, posted_date, link, snippet, status,
			tracking_status, deny_reason, extra
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17::jsonb
		)
		ON CONFLICT (job_id) DO UPDATE SET
			title             = EXCLUDED.title,
			company           = EXCLUDED.company,
			location          = EXCLUDED.location,
			skills            = EXCLUDED.skills,
			duration          = EXCLUDED.duration,
			start_date        = EXCLUDED.start_date,
			end_date          = EXCLUDED.end_date,
			stipend           = EXCLUDED.stipend,
			short_description = EXCLUDED.short_description,
			posted_date       = EXCLUDED.posted_date,
			link              = EXCLUDED.link,
			snippet           = EXCLUDED.snippet,
			status            = COALESCE(EXCLUDED.status, jobs.status),
			tracking_status   = COALESCE(EXCLUDED.tracking_status, jobs.tracking_status),
			deny_reason       = COALESCE(EXCLUDED.deny_reason, jobs.deny_reason),
			extra             = jobs.extra || EXCLUDED.extra,
			updated_at        = NOW()
	`

	_, err = s.db.ExecContext(ctx, query,
		row.JobID,
		row.Title,
		row.Company,
		row.Location,
		row.Skills,
		row.Duration,
		row.StartDate,
		row.EndDate,
		row.Stipend,
		row.ShortDescription,
		row.PostedDate,
		row.Link,
		row.Snippet,
		row.Status,
		row.TrackingStatus,
		row.DenyReason,
		string(row.Extra),
	)
	if err != nil {
		s.logger.Error("Failed to upsert job",
			slog.String("job_id", rec.JobID),
			slog.Any("error", err),
		)
		return fmt.Errorf("failed to upsert job: %w", err)
	}

	return nil
}

// FindByID retrieves a job by job_id or its numeric alias
func (s *PostgresStore) FindByID(ctx context.Context, jobID string) (*domain.JobRecord, error) {
	aliases, _ := idAliases(jobID)
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE ` + matchID

	var row jobRow
	if err := s.db.GetContext(ctx, &row, query, pq.Array(aliases), jobID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return row.toRecord()
}

// FindAll returns every job ordered by creation time
func (s *PostgresStore) FindAll(ctx context.Context) ([]*domain.JobRecord, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs ORDER BY created_at, job_id`

	var rows []jobRow
	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	out := make([]*domain.JobRecord, 0, len(rows))
	for i := range rows {
		rec, err := rows[i].toRecord()
		if err != nil {
			s.logger.Warn("Skipping unreadable job row",
				slog.String("job_id", rows[i].JobID),
				slog.Any("error", err),
			)
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// Delete removes a single job matching jobID
func (s *PostgresStore) Delete(ctx context.Context, jobID string) (bool, error) {
	aliases, _ := idAliases(jobID)
	query := `DELETE FROM jobs WHERE ` + matchID

	result, err := s.db.ExecContext(ctx, query, pq.Array(aliases), jobID)
	if err != nil {
		return false, fmt.Errorf("failed to delete job: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}

// UpdateFields changes lifecycle columns in one statement and returns the new row
func (s *PostgresStore) UpdateFields(ctx context.Context, jobID string, upd domain.FieldUpdate) (*domain.JobRecord, error) {
	aliases, _ := idAliases(jobID)
	query := `
		UPDATE jobs
		SET status = COALESCE(NULLIF($3::text, ''), status),
			tracking_status = CASE WHEN $4::boolean THEN NULL ELSE COALESCE($5::text, tracking_status) END,
			deny_reason = CASE WHEN $6::boolean THEN NULL ELSE COALESCE($7::text, deny_reason) END,
			updated_at = NOW()
		WHERE ` + matchID + `
		RETURNING ` + jobColumns

	var row jobRow
	err := s.db.GetContext(ctx, &row, query,
		pq.Array(aliases),
		jobID,
		upd.Status,
		upd.ClearTrackingStatus,
		nullString(upd.TrackingStatus),
		upd.ClearDenyReason,
		nullString(upd.DenyReason),
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to update job: %w", err)
	}

	s.logger.Debug("Job fields updated",
		slog.String("job_id", row.JobID),
		slog.String("status", row.Status.String),
	)

	return row.toRecord()
}

// Close closes the underlying client
func (s *PostgresStore) Close(ctx context.Context) error {
	return s.client.Close()
}

func toRow(rec *domain.JobRecord) (*jobRow, error) {
	extra := rec.Extra
	if extra == nil {
		extra = map[string]any{}
	}
	extraJSON, err := json.Marshal(extra)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal extra attributes: %w", err)
	}

	return &jobRow{
		JobID:            rec.JobID,
		Title:            textOrNull(rec.Title),
		Company:          textOrNull(rec.Company),
		Location:         textOrNull(rec.Location),
		Skills:           pq.StringArray(rec.Skills),
		Duration:         textOrNull(rec.Duration),
		StartDate:        textOrNull(rec.StartDate),
		EndDate:          textOrNull(rec.EndDate),
		Stipend:          textOrNull(rec.Stipend),
		ShortDescription: textOrNull(rec.ShortDescription),
		PostedDate:       textOrNull(rec.PostedDate),
		Link:             textOrNull(rec.Link),
		Snippet:          textOrNull(rec.Snippet),
		Status:           textOrNull(rec.Status),
		TrackingStatus:   nullString(rec.TrackingStatus),
		DenyReason:       nullString(rec.DenyReason),
		Extra:            extraJSON,
	}, nil
}

func (r *jobRow) toRecord() (*domain.JobRecord, error) {
	rec := &domain.JobRecord{
		JobID:            r.JobID,
		Title:            r.Title.String,
		Company:          r.Company.String,
		Location:         r.Location.String,
		Duration:         r.Duration.String,
		StartDate:        r.StartDate.String,
		EndDate:          r.EndDate.String,
		Stipend:          r.Stipend.String,
		ShortDescription: r.ShortDescription.String,
		PostedDate:       r.PostedDate.String,
		Link:             r.Link.String,
		Snippet:          r.Snippet.String,
		Status:           r.Status.String,
	}
	if len(r.Skills) > 0 {
		rec.Skills = []string(r.Skills)
	}
	if r.TrackingStatus.Valid {
		rec.TrackingStatus = domain.StringPtr(r.TrackingStatus.String)
	}
	if r.DenyReason.Valid {
		rec.DenyReason = domain.StringPtr(r.DenyReason.String)
	}

	if len(r.Extra) > 0 {
		var extra map[string]any
		if err := json.Unmarshal(r.Extra, &extra); err != nil {
			return nil, fmt.Errorf("failed to unmarshal extra attributes: %w", err)
		}
		if len(extra) > 0 {
			rec.Extra = extra
		}
	}
	if !r.CreatedAt.IsZero() {
		if rec.Extra == nil {
			rec.Extra = map[string]any{}
		}
		rec.Extra["created_at"] = r.CreatedAt.UTC().Format(time.RFC3339)
	}

	return rec, nil
}

func textOrNull(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}
