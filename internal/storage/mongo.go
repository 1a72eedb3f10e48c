package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/cuongbtq/jobmail/internal/domain"
	"github.com/cuongbtq/jobmail/shared/mongodb"
)

// JobsCollection is the collection holding job documents
const JobsCollection = "jobs"

// bookkeeping keys written by the store itself, never surfaced as Extra
var bookkeepingKeys = map[string]bool{
	"_id":        true,
	"updated_at": true,
}

// MongoStore stores jobs as free-form documents keyed by job_id
type MongoStore struct {
	client     *mongodb.Client
	collection *mongo.Collection
	logger     *slog.Logger
}

// NewMongoStore creates a MongoStore and ensures the unique job_id index
func NewMongoStore(ctx context.Context, client *mongodb.Client, logger *slog.Logger) *MongoStore {
	collection := client.Collection(JobsCollection)

	idxCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	indexModel := mongo.IndexModel{
		Keys:    bson.D{{Key: domain.FieldJobID, Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	if _, err := collection.Indexes().CreateOne(idxCtx, indexModel); err != nil {
		logger.Warn("Failed to create index on job_id", slog.Any("error", err))
	}

	return &MongoStore{
		client:     client,
		collection: collection,
		logger:     logger,
	}
}

// Upsert replaces content fields of the document with rec.JobID, creating it if needed
func (s *MongoStore) Upsert(ctx context.Context, rec *domain.JobRecord) error {
	now := time.Now().UTC()
	set := upsertDocument(rec)
	set["updated_at"] = now

	update := bson.M{
		"$set":         set,
		"$setOnInsert": bson.M{"created_at": now.Format(time.RFC3339)},
	}

	_, err := s.collection.UpdateOne(ctx,
		bson.M{domain.FieldJobID: rec.JobID},
		update,
		options.Update().SetUpsert(true),
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

// FindByID retrieves a job by job_id, its text alias or its numeric form
func (s *MongoStore) FindByID(ctx context.Context, jobID string) (*domain.JobRecord, error) {
	var doc bson.M
	err := s.collection.FindOne(ctx, idFilter(jobID)).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to find job: %w", err)
	}
	return recordFromDocument(doc), nil
}

// FindAll returns every job in insertion order
func (s *MongoStore) FindAll(ctx context.Context) ([]*domain.JobRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})

	cursor, err := s.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []bson.M
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode jobs: %w", err)
	}

	out := make([]*domain.JobRecord, 0, len(docs))
	for _, doc := range docs {
		out = append(out, recordFromDocument(doc))
	}
	return out, nil
}

// Delete removes one document matching jobID
func (s *MongoStore) Delete(ctx context.Context, jobID string) (bool, error) {
	res, err := s.collection.DeleteOne(ctx, idFilter(jobID))
	if err != nil {
		return false, fmt.Errorf("failed to delete job: %w", err)
	}
	return res.DeletedCount > 0, nil
}

// UpdateFields applies upd with FindOneAndUpdate and returns the document after the change
func (s *MongoStore) UpdateFields(ctx context.Context, jobID string, upd domain.FieldUpdate) (*domain.JobRecord, error) {
	set := bson.M{"updated_at": time.Now().UTC()}
	unset := bson.M{}

	if upd.Status != "" {
		set[domain.FieldStatus] = upd.Status
	}
	switch {
	case upd.ClearTrackingStatus:
		unset[domain.FieldTrackingStatus] = ""
	case upd.TrackingStatus != nil:
		set[domain.FieldTrackingStatus] = *upd.TrackingStatus
	}
	switch {
	case upd.ClearDenyReason:
		unset[domain.FieldDenyReason] = ""
	case upd.DenyReason != nil:
		set[domain.FieldDenyReason] = *upd.DenyReason
	}

	update := bson.M{"$set": set}
	if len(unset) > 0 {
		update["$unset"] = unset
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc bson.M
	err := s.collection.FindOneAndUpdate(ctx, idFilter(jobID), update, opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to update job: %w", err)
	}

	return recordFromDocument(doc), nil
}

// Close disconnects the client
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Close(ctx)
}

// idFilter matches jobID, its canonical text form and, when numeric, the
// integer values older documents stored.
func idFilter(jobID string) bson.M {
	aliases, n := idAliases(jobID)
	values := make(bson.A, 0, len(aliases)+2)
	for _, a := range aliases {
		values = append(values, a)
	}
	if n != nil {
		values = append(values, *n)
		if *n >= -1<<31 && *n < 1<<31 {
			values = append(values, int32(*n))
		}
		values = append(values, float64(*n))
	}
	return bson.M{domain.FieldJobID: bson.M{"$in": values}}
}

// upsertDocument builds the $set part of an upsert. Lifecycle fields are only
// set when present so an upsert never wipes them.
func upsertDocument(rec *domain.JobRecord) bson.M {
	set := bson.M{}

	for k, v := range rec.Extra {
		if k == "" || strings.HasPrefix(k, "$") || bookkeepingKeys[k] || k == "created_at" {
			continue
		}
		// dotted keys would be read as paths into nested documents
		set[strings.ReplaceAll(k, ".", "_")] = v
	}

	content := []struct {
		key   string
		value string
	}{
		{domain.FieldTitle, rec.Title},
		{domain.FieldCompany, rec.Company},
		{domain.FieldLocation, rec.Location},
		{domain.FieldDuration, rec.Duration},
		{domain.FieldStartDate, rec.StartDate},
		{domain.FieldEndDate, rec.EndDate},
		{domain.FieldStipend, rec.Stipend},
		{domain.FieldShortDescription, rec.ShortDescription},
		{domain.FieldPostedDate, rec.PostedDate},
		{domain.FieldLink, rec.Link},
		{domain.FieldSnippet, rec.Snippet},
	}

	set[domain.FieldJobID] = rec.JobID
	for _, c := range content {
		if c.value == "" {
			set[c.key] = nil
			continue
		}
		set[c.key] = c.value
	}

	if len(rec.Skills) > 0 {
		set[domain.FieldSkills] = rec.Skills
	} else {
		set[domain.FieldSkills] = nil
	}

	if rec.Status != "" {
		set[domain.FieldStatus] = rec.Status
	}
	if rec.TrackingStatus != nil {
		set[domain.FieldTrackingStatus] = *rec.TrackingStatus
	}
	if rec.DenyReason != nil {
		set[domain.FieldDenyReason] = *rec.DenyReason
	}

	return set
}

// recordFromDocument maps a stored document of any shape onto a JobRecord.
// Keys the record does not model are kept in Extra.
func recordFromDocument(doc bson.M) *domain.JobRecord {
	rec := &domain.JobRecord{}
	extra := map[string]any{}

	for k, raw := range doc {
		v := normalizeBSON(raw)
		switch k {
		case domain.FieldJobID:
			rec.JobID = stringOf(v)
		case domain.FieldTitle:
			rec.Title = stringOf(v)
		case domain.FieldCompany:
			rec.Company = stringOf(v)
		case domain.FieldLocation:
			rec.Location = stringOf(v)
		case domain.FieldSkills:
			rec.Skills = skillsOf(v)
		case domain.FieldDuration:
			rec.Duration = stringOf(v)
		case domain.FieldStartDate:
			rec.StartDate = stringOf(v)
		case domain.FieldEndDate:
			rec.EndDate = stringOf(v)
		case domain.FieldStipend:
			rec.Stipend = stringOf(v)
		case domain.FieldShortDescription:
			rec.ShortDescription = stringOf(v)
		case domain.FieldPostedDate:
			rec.PostedDate = stringOf(v)
		case domain.FieldLink:
			rec.Link = stringOf(v)
		case domain.FieldSnippet:
			rec.Snippet = stringOf(v)
		case domain.FieldStatus:
			rec.Status = stringOf(v)
		case domain.FieldTrackingStatus:
			if v != nil {
				rec.TrackingStatus = domain.StringPtr(stringOf(v))
			}
		case domain.FieldDenyReason:
			if v != nil {
				rec.DenyReason = domain.StringPtr(stringOf(v))
			}
		default:
			if bookkeepingKeys[k] || v == nil {
				continue
			}
			extra[k] = v
		}
	}

	if len(extra) > 0 {
		rec.Extra = extra
	}
	return rec
}

// normalizeBSON converts driver-specific values into plain Go values
func normalizeBSON(v any) any {
	switch t := v.(type) {
	case primitive.A:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = normalizeBSON(item)
		}
		return out
	case bson.M:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = normalizeBSON(item)
		}
		return out
	case bson.D:
		out := make(map[string]any, len(t))
		for _, e := range t {
			out[e.Key] = normalizeBSON(e.Value)
		}
		return out
	case primitive.DateTime:
		return t.Time().UTC().Format(time.RFC3339)
	case primitive.ObjectID:
		return t.Hex()
	case time.Time:
		return t.UTC().Format(time.RFC3339)
	default:
		return v
	}
}

func stringOf(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case int32:
		return fmt.Sprintf("%d", t)
	case int64:
		return fmt.Sprintf("%d", t)
	case int:
		return fmt.Sprintf("%d", t)
	case float64:
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%g", t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

func skillsOf(v any) []string {
	switch t := v.(type) {
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s := stringOf(item); s != "" {
				out = append(out, s)
			}
		}
		if len(out) == 0 {
			return nil
		}
		return out
	case []string:
		return t
	case string:
		// legacy documents store skills as "Go, Python"
		var out []string
		for _, part := range strings.Split(t, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out
	default:
		return nil
	}
}
