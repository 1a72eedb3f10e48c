package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuongbtq/jobmail/internal/domain"
	"github.com/cuongbtq/jobmail/internal/storage"
)

type fakeSource struct {
	msgs      []domain.RawMessage
	err       error
	lastLimit int
}

func (f *fakeSource) FetchRecent(ctx context.Context, limit int) ([]domain.RawMessage, error) {
	f.lastLimit = limit
	if f.err != nil {
		return nil, f.err
	}
	return f.msgs, nil
}

type classifierFunc func(ctx context.Context, text string) (*domain.ClassificationResult, error)

func (f classifierFunc) Classify(ctx context.Context, text string) (*domain.ClassificationResult, error) {
	return f(ctx, text)
}

func relevant(fields map[string]any) classifierFunc {
	return func(ctx context.Context, text string) (*domain.ClassificationResult, error) {
		return &domain.ClassificationResult{Relevant: true, Fields: fields}, nil
	}
}

type failingStore struct {
	mu    sync.Mutex
	calls int
}

func (s *failingStore) Upsert(ctx context.Context, rec *domain.JobRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return errors.New("connection reset")
}

func newTestIngestor(cls Classifier, store RecordWriter, src MailSource, concurrency int) *Ingestor {
	return NewIngestor(&Config{
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		Source:      src,
		Classifier:  cls,
		Store:       store,
		Concurrency: concurrency,
	})
}

func TestIngestor_PersistsResolvedRecord(t *testing.T) {
	store := storage.NewMemoryStore()
	ing := newTestIngestor(relevant(nil), store, nil, 1)

	msg := domain.RawMessage{
		ID:      "msg-a",
		Subject: "Backend Intern – Acme Corp",
		Date:    "2024-05-01",
		Body:    "Location: Remote\nStipend: $1000",
	}

	report, err := ing.Process(context.Background(), []domain.RawMessage{msg})
	require.NoError(t, err)
	require.Len(t, report.Results, 1)
	assert.Equal(t, OutcomePersisted, report.Results[0].Outcome)
	assert.Equal(t, "msg-a", report.Results[0].JobID)

	rec, err := store.FindByID(context.Background(), "msg-a")
	require.NoError(t, err)
	assert.Equal(t, "Backend Intern", rec.Title)
	assert.Equal(t, "Acme Corp", rec.Company)
	assert.Equal(t, "Remote", rec.Location)
	assert.Equal(t, "$1000", rec.Stipend)
}

func TestIngestor_SkipsIrrelevant(t *testing.T) {
	store := storage.NewMemoryStore()
	cls := classifierFunc(func(ctx context.Context, text string) (*domain.ClassificationResult, error) {
		return &domain.ClassificationResult{Relevant: false}, nil
	})
	ing := newTestIngestor(cls, store, nil, 1)

	msg := domain.RawMessage{Subject: "Backend Intern – Acme Corp", Body: "Location: Remote\nStipend: $1000"}

	report, err := ing.Process(context.Background(), []domain.RawMessage{msg})
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkippedIrrelevant, report.Results[0].Outcome)
	assert.Equal(t, 0, store.Len())
}

func TestIngestor_FallbackIdentityIsIdempotent(t *testing.T) {
	store := storage.NewMemoryStore()
	ing := newTestIngestor(relevant(map[string]any{"company": "Co", "location": "Remote"}), store, nil, 1)

	msg := domain.RawMessage{Subject: "X", Date: "2024-05-01", Body: "body"}

	first, err := ing.Process(context.Background(), []domain.RawMessage{msg})
	require.NoError(t, err)
	second, err := ing.Process(context.Background(), []domain.RawMessage{msg})
	require.NoError(t, err)

	assert.Equal(t, 1, store.Len())
	assert.Equal(t, first.Results[0].JobID, second.Results[0].JobID)
	assert.Equal(t, FallbackIdentity("X", "2024-05-01"), first.Results[0].JobID)
}

func TestIngestor_ReingestionOverwrites(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	msg := domain.RawMessage{ID: "msg-1", Subject: "Role – Co", Body: "Location: Hanoi"}

	_, err := newTestIngestor(relevant(map[string]any{"stipend": "100"}), store, nil, 1).
		Process(ctx, []domain.RawMessage{msg})
	require.NoError(t, err)

	_, err = store.UpdateFields(ctx, "msg-1", domain.FieldUpdate{Status: "applied", TrackingStatus: domain.StringPtr("pending")})
	require.NoError(t, err)

	_, err = newTestIngestor(relevant(map[string]any{"stipend": "200"}), store, nil, 1).
		Process(ctx, []domain.RawMessage{msg})
	require.NoError(t, err)

	assert.Equal(t, 1, store.Len())
	rec, err := store.FindByID(ctx, "msg-1")
	require.NoError(t, err)
	assert.Equal(t, "200", rec.Stipend)
	assert.Equal(t, "applied", rec.Status)
	require.NotNil(t, rec.TrackingStatus)
	assert.Equal(t, "pending", *rec.TrackingStatus)
}

func TestIngestor_IgnoresClassifierIdentity(t *testing.T) {
	store := storage.NewMemoryStore()
	cls := classifierFunc(func(ctx context.Context, text string) (*domain.ClassificationResult, error) {
		return &domain.ClassificationResult{
			Relevant:    true,
			Fields:      map[string]any{"title": "A", "company": "B", "location": "C", "job_id": "999"},
			SuggestedID: "999",
		}, nil
	})
	ing := newTestIngestor(cls, store, nil, 1)

	report, err := ing.Process(context.Background(), []domain.RawMessage{{ID: "native-1", Subject: "s"}})
	require.NoError(t, err)
	assert.Equal(t, "native-1", report.Results[0].JobID)

	_, err = store.FindByID(context.Background(), "999")
	assert.ErrorIs(t, err, domain.ErrJobNotFound)
}

func TestIngestor_SkipsIncomplete(t *testing.T) {
	store := storage.NewMemoryStore()
	ing := newTestIngestor(relevant(map[string]any{"title": "A"}), store, nil, 1)

	msg := domain.RawMessage{ID: "m", Subject: "A – B", Body: "no location line"}

	report, err := ing.Process(context.Background(), []domain.RawMessage{msg})
	require.NoError(t, err)

	res := report.Results[0]
	assert.Equal(t, OutcomeSkippedIncomplete, res.Outcome)
	assert.Equal(t, "missing required fields: location", res.Reason)
	assert.ErrorIs(t, res.Err, domain.ErrValidation)
	assert.Equal(t, 0, store.Len())
}

func TestIngestor_FailuresDoNotStopTheBatch(t *testing.T) {
	store := storage.NewMemoryStore()
	cls := classifierFunc(func(ctx context.Context, text string) (*domain.ClassificationResult, error) {
		if strings.HasPrefix(text, "broken") {
			return nil, domain.NewTransportError("classifier.generate", errors.New("malformed JSON"))
		}
		return &domain.ClassificationResult{Relevant: true}, nil
	})
	ing := newTestIngestor(cls, store, nil, 1)

	msgs := []domain.RawMessage{
		{ID: "1", Subject: "broken – Co", Body: "Location: Remote"},
		{ID: "2", Subject: "Role – Co", Body: "Location: Remote"},
		{ID: "3", Subject: "Role – Co", Body: "nothing"},
	}

	report, err := ing.Process(context.Background(), msgs)
	require.NoError(t, err)
	require.Len(t, report.Results, 3)

	assert.Equal(t, OutcomeFailed, report.Results[0].Outcome)
	assert.ErrorIs(t, report.Results[0].Err, domain.ErrTransport)
	assert.Equal(t, OutcomePersisted, report.Results[1].Outcome)
	assert.Equal(t, OutcomeSkippedIncomplete, report.Results[2].Outcome)
	assert.Equal(t, 1, store.Len())
}

func TestIngestor_StoreFailureIsPerMessage(t *testing.T) {
	store := &failingStore{}
	ing := newTestIngestor(relevant(map[string]any{"title": "A", "company": "B", "location": "C"}), store, nil, 1)

	msgs := []domain.RawMessage{{ID: "1", Subject: "s1"}, {ID: "2", Subject: "s2"}}

	report, err := ing.Process(context.Background(), msgs)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Count(OutcomeFailed))
	assert.Equal(t, 2, store.calls)
}

func TestIngestor_ConfigurationErrorAbortsRun(t *testing.T) {
	store := storage.NewMemoryStore()
	cls := classifierFunc(func(ctx context.Context, text string) (*domain.ClassificationResult, error) {
		return nil, domain.NewConfigurationError("classifier", errors.New("api key is not set"))
	})
	ing := newTestIngestor(cls, store, nil, 1)

	msgs := []domain.RawMessage{{ID: "1", Subject: "a"}, {ID: "2", Subject: "b"}, {ID: "3", Subject: "c"}}

	report, err := ing.Process(context.Background(), msgs)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
	require.NotNil(t, report)
	assert.Len(t, report.Results, 3)
	assert.Equal(t, 3, report.Count(OutcomeFailed))
	assert.Equal(t, 0, store.Len())
}

func TestIngestor_Run(t *testing.T) {
	t.Run("uses batch limit when none given", func(t *testing.T) {
		src := &fakeSource{msgs: []domain.RawMessage{{ID: "1", Subject: "Role – Co", Body: "Location: Remote"}}}
		store := storage.NewMemoryStore()
		ing := newTestIngestor(relevant(nil), store, src, 1)

		report, err := ing.Run(context.Background(), 0)
		require.NoError(t, err)
		assert.Equal(t, 50, src.lastLimit)
		assert.Equal(t, 1, report.Count(OutcomePersisted))
	})

	t.Run("fetch failure is a transport error", func(t *testing.T) {
		src := &fakeSource{err: errors.New("dial tcp: timeout")}
		ing := newTestIngestor(relevant(nil), storage.NewMemoryStore(), src, 1)

		report, err := ing.Run(context.Background(), 10)
		assert.Nil(t, report)
		assert.ErrorIs(t, err, domain.ErrTransport)
		assert.Equal(t, 10, src.lastLimit)
	})

	t.Run("configuration failure keeps its kind", func(t *testing.T) {
		src := &fakeSource{err: domain.NewConfigurationError("mail", errors.New("token file missing"))}
		ing := newTestIngestor(relevant(nil), storage.NewMemoryStore(), src, 1)

		_, err := ing.Run(context.Background(), 10)
		assert.ErrorIs(t, err, domain.ErrConfiguration)
		assert.NotErrorIs(t, err, domain.ErrTransport)
	})
}

func TestIngestor_ConcurrentProcessingKeepsOrder(t *testing.T) {
	store := storage.NewMemoryStore()
	ing := newTestIngestor(relevant(map[string]any{"company": "Co", "location": "Remote"}), store, nil, 4)

	msgs := make([]domain.RawMessage, 20)
	for i := range msgs {
		msgs[i] = domain.RawMessage{ID: fmt.Sprintf("id-%02d", i), Subject: fmt.Sprintf("Role %d", i)}
	}

	report, err := ing.Process(context.Background(), msgs)
	require.NoError(t, err)
	assert.Equal(t, 20, report.Count(OutcomePersisted))
	assert.Equal(t, 20, store.Len())
	for i, res := range report.Results {
		assert.Equal(t, fmt.Sprintf("id-%02d", i), res.JobID)
	}
}
