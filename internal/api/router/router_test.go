package router

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuongbtq/jobmail/internal/api/handler"
	"github.com/cuongbtq/jobmail/internal/board"
	"github.com/cuongbtq/jobmail/internal/domain"
	"github.com/cuongbtq/jobmail/internal/storage"
)

type fakePublisher struct {
	published []domain.IngestionRequest
	ids       []string
	err       error
}

func (p *fakePublisher) PublishJSON(ctx context.Context, messageID string, v any) error {
	if p.err != nil {
		return p.err
	}
	p.ids = append(p.ids, messageID)
	p.published = append(p.published, v.(domain.IngestionRequest))
	return nil
}

type checkFunc func(ctx context.Context) error

func (f checkFunc) HealthCheck(ctx context.Context) error { return f(ctx) }

type viewResponse struct {
	Success bool       `json:"success"`
	Data    board.View `json:"data"`
	Error   string     `json:"error"`
}

func init() {
	gin.SetMode(gin.TestMode)
}

func setup(t *testing.T, pub handler.Publisher, recs ...*domain.JobRecord) (*gin.Engine, *storage.MemoryStore) {
	t.Helper()

	store := storage.NewMemoryStore()
	for _, r := range recs {
		require.NoError(t, store.Upsert(context.Background(), r))
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	deps := &handler.Dependencies{
		Logger:    logger,
		Board:     board.NewService(store, logger),
		Publisher: pub,
	}
	return SetupRouter(deps, nil), store
}

func do(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func sampleJobs() []*domain.JobRecord {
	return []*domain.JobRecord{
		{JobID: "a1", Title: "Backend Intern", Company: "Acme", Location: "Hanoi"},
		{JobID: "42", Title: "Data Intern", Company: "Globex", Location: "Remote", Status: "applied", TrackingStatus: domain.StringPtr("interview")},
		{JobID: "d1", Title: "QA Intern", Company: "Initech", Location: "HCMC", Status: "Rejected", DenyReason: domain.StringPtr("too far")},
	}
}

func TestHealth(t *testing.T) {
	t.Run("no checks", func(t *testing.T) {
		r, _ := setup(t, nil)
		w := do(r, http.MethodGet, "/health", "")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"status":"healthy"`)
		assert.Contains(t, w.Body.String(), ServiceName)
	})

	t.Run("failing check", func(t *testing.T) {
		logger := slog.New(slog.NewTextHandler(io.Discard, nil))
		deps := &handler.Dependencies{
			Logger: logger,
			Board:  board.NewService(storage.NewMemoryStore(), logger),
			Checks: map[string]handler.HealthChecker{
				"database": checkFunc(func(ctx context.Context) error { return errors.New("down") }),
			},
		}
		w := do(SetupRouter(deps, nil), http.MethodGet, "/health", "")

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Contains(t, w.Body.String(), `"database":"down"`)
	})
}

func TestListAll(t *testing.T) {
	r, _ := setup(t, nil, sampleJobs()...)

	w := do(r, http.MethodGet, "/data", "")
	require.Equal(t, http.StatusOK, w.Code)

	var views []board.View
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &views))
	require.Len(t, views, 3)

	byID := map[string]board.View{}
	for _, v := range views {
		byID[v.JobID] = v
	}
	assert.Equal(t, domain.StatusNew, byID["a1"].Status)
	assert.Equal(t, domain.StatusDenied, byID["d1"].Status)
	assert.Equal(t, []string{}, byID["a1"].Skills)
}

func TestListByStatus(t *testing.T) {
	r, _ := setup(t, nil, sampleJobs()...)

	tests := []struct {
		query string
		want  []string
	}{
		{query: "?status=new", want: []string{"a1"}},
		{query: "", want: []string{"a1"}},
		{query: "?status=applied", want: []string{"42"}},
		{query: "?status=rejected", want: []string{"d1"}},
		{query: "?status=waiting", want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			w := do(r, http.MethodGet, "/jobs"+tt.query, "")
			require.Equal(t, http.StatusOK, w.Code)

			var resp struct {
				Success bool         `json:"success"`
				Data    []board.View `json:"data"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.True(t, resp.Success)

			ids := []string{}
			for _, v := range resp.Data {
				ids = append(ids, v.JobID)
			}
			assert.ElementsMatch(t, tt.want, ids)
		})
	}

	t.Run("unknown status", func(t *testing.T) {
		w := do(r, http.MethodGet, "/jobs?status=garbage", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)

		var resp struct {
			Success bool   `json:"success"`
			Error   string `json:"error"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.False(t, resp.Success)
		assert.Contains(t, resp.Error, "garbage")
	})
}

func TestTransitions(t *testing.T) {
	tests := []struct {
		name         string
		method       string
		path         string
		body         string
		wantCode     int
		wantStatus   domain.CanonicalStatus
		wantTracking *string
		wantReason   *string
	}{
		{
			name:         "apply sets pending tracking",
			method:       http.MethodPost,
			path:         "/apply/a1",
			wantCode:     http.StatusOK,
			wantStatus:   domain.StatusApplied,
			wantTracking: domain.StringPtr("pending"),
		},
		{
			name:       "save moves to waiting and clears tracking",
			method:     http.MethodPost,
			path:       "/save/42",
			wantCode:   http.StatusOK,
			wantStatus: domain.StatusWaiting,
		},
		{
			name:       "deny with reason",
			method:     http.MethodPost,
			path:       "/deny/a1",
			body:       `{"reason":"salary"}`,
			wantCode:   http.StatusOK,
			wantStatus: domain.StatusDenied,
			wantReason: domain.StringPtr("salary"),
		},
		{
			name:       "deny without body keeps stored reason",
			method:     http.MethodPost,
			path:       "/deny/d1",
			wantCode:   http.StatusOK,
			wantStatus: domain.StatusDenied,
			wantReason: domain.StringPtr("too far"),
		},
		{
			name:         "tracking marks applied",
			method:       http.MethodPost,
			path:         "/tracking/a1",
			body:         `{"trackingStatus":"offer"}`,
			wantCode:     http.StatusOK,
			wantStatus:   domain.StatusApplied,
			wantTracking: domain.StringPtr("offer"),
		},
		{
			name:       "move accepts synonyms",
			method:     http.MethodPost,
			path:       "/move/d1",
			body:       `{"newStatus":"saved"}`,
			wantCode:   http.StatusOK,
			wantStatus: domain.StatusWaiting,
		},
		{
			name:       "numeric alias resolves",
			method:     http.MethodPost,
			path:       "/save/042",
			wantCode:   http.StatusOK,
			wantStatus: domain.StatusWaiting,
		},
		{
			name:       "move maps archived to denied",
			method:     http.MethodPost,
			path:       "/move/a1",
			body:       `{"newStatus":"archived"}`,
			wantCode:   http.StatusOK,
			wantStatus: domain.StatusDenied,
		},
		{
			name:     "move rejects unknown status",
			method:   http.MethodPost,
			path:     "/move/a1",
			body:     `{"newStatus":"interviewing"}`,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "move requires newStatus",
			method:   http.MethodPost,
			path:     "/move/a1",
			body:     `{}`,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "tracking requires trackingStatus",
			method:   http.MethodPost,
			path:     "/tracking/a1",
			body:     `{}`,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "unknown job",
			method:   http.MethodPost,
			path:     "/apply/missing",
			wantCode: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := setup(t, nil, sampleJobs()...)

			w := do(r, tt.method, tt.path, tt.body)
			require.Equal(t, tt.wantCode, w.Code, w.Body.String())

			var resp viewResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

			if tt.wantCode != http.StatusOK {
				assert.False(t, resp.Success)
				assert.NotEmpty(t, resp.Error)
				return
			}

			assert.True(t, resp.Success)
			assert.Equal(t, tt.wantStatus, resp.Data.Status)
			assert.Equal(t, tt.wantTracking, resp.Data.TrackingStatus)
			assert.Equal(t, tt.wantReason, resp.Data.DenyReason)
		})
	}
}

func TestDelete(t *testing.T) {
	r, store := setup(t, nil, sampleJobs()...)

	w := do(r, http.MethodDelete, "/delete/a1", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true}`, w.Body.String())
	assert.Equal(t, 2, store.Len())

	w = do(r, http.MethodDelete, "/delete/a1", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"success":false,"error":"Job not found"}`, w.Body.String())
}

func TestCreateIngestion(t *testing.T) {
	t.Run("publishes a request", func(t *testing.T) {
		pub := &fakePublisher{}
		r, _ := setup(t, pub)

		w := do(r, http.MethodPost, "/api/v1/ingestions", `{"limit":20}`)
		require.Equal(t, http.StatusAccepted, w.Code)

		require.Len(t, pub.published, 1)
		req := pub.published[0]
		assert.Equal(t, 20, req.Limit)
		assert.Equal(t, req.RequestID, pub.ids[0])
		_, err := uuid.Parse(req.RequestID)
		assert.NoError(t, err)
		assert.Contains(t, w.Body.String(), req.RequestID)
		assert.Contains(t, w.Body.String(), `"status":"queued"`)
	})

	t.Run("empty body uses worker default", func(t *testing.T) {
		pub := &fakePublisher{}
		r, _ := setup(t, pub)

		w := do(r, http.MethodPost, "/api/v1/ingestions", "")
		require.Equal(t, http.StatusAccepted, w.Code)
		require.Len(t, pub.published, 1)
		assert.Zero(t, pub.published[0].Limit)
	})

	t.Run("limit out of range", func(t *testing.T) {
		pub := &fakePublisher{}
		r, _ := setup(t, pub)

		w := do(r, http.MethodPost, "/api/v1/ingestions", `{"limit":1000}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Empty(t, pub.published)
	})

	t.Run("publish failure", func(t *testing.T) {
		r, _ := setup(t, &fakePublisher{err: errors.New("broker down")})

		w := do(r, http.MethodPost, "/api/v1/ingestions", "")
		assert.Equal(t, http.StatusBadGateway, w.Code)
	})

	t.Run("no publisher", func(t *testing.T) {
		r, _ := setup(t, nil)

		w := do(r, http.MethodPost, "/api/v1/ingestions", "")
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}

func TestCORSMiddleware(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	deps := &handler.Dependencies{Logger: logger, Board: board.NewService(storage.NewMemoryStore(), logger)}

	t.Run("any origin by default", func(t *testing.T) {
		r := SetupRouter(deps, nil)
		w := do(r, http.MethodOptions, "/data", "")

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("allow list", func(t *testing.T) {
		r := SetupRouter(deps, []string{"http://localhost:3000"})

		req := httptest.NewRequest(http.MethodGet, "/data", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))

		req = httptest.NewRequest(http.MethodGet, "/data", nil)
		req.Header.Set("Origin", "http://evil.example")
		w = httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})
}
