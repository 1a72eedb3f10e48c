package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuongbtq/jobmail/internal/domain"
)

func TestMergeRecord_ResolverFillsEmptyClassification(t *testing.T) {
	msg := domain.RawMessage{
		Subject: "Backend Intern – Acme Corp",
		Body:    "Location: Remote\nStipend: $1000",
	}

	rec := MergeRecord(&domain.ClassificationResult{Relevant: true}, msg)

	assert.Equal(t, "Backend Intern", rec.Title)
	assert.Equal(t, "Acme Corp", rec.Company)
	assert.Equal(t, "Remote", rec.Location)
	assert.Equal(t, "$1000", rec.Stipend)
	assert.Empty(t, rec.Duration)
	assert.Nil(t, rec.Skills)
}

func TestMergeRecord_ClassificationWinsOutright(t *testing.T) {
	msg := domain.RawMessage{
		Subject: "Other Title – Other Co",
		Body:    "Location: Elsewhere\nDuration: 6 months",
	}
	result := &domain.ClassificationResult{
		Relevant: true,
		Fields:   map[string]any{"title": "A", "company": "B", "location": "C"},
	}

	rec := MergeRecord(result, msg)

	assert.Equal(t, "A", rec.Title)
	assert.Equal(t, "B", rec.Company)
	assert.Equal(t, "C", rec.Location)
	// the resolver is not consulted at all
	assert.Empty(t, rec.Duration)
	assert.Empty(t, rec.ShortDescription)
}

func TestMergeRecord_FallbackOnlyFillsMissing(t *testing.T) {
	tests := []struct {
		name         string
		fields       map[string]any
		subject      string
		body         string
		wantTitle    string
		wantCompany  string
		wantLocation string
	}{
		{
			name:         "title from classifier, rest from text",
			fields:       map[string]any{"title": "A"},
			subject:      "Ignored – Globex",
			body:         "Location: Hanoi",
			wantTitle:    "A",
			wantCompany:  "Globex",
			wantLocation: "Hanoi",
		},
		{
			name:         "missing delimiter gives Unknown company",
			fields:       map[string]any{"title": "A"},
			subject:      "Just a subject",
			body:         "Location: Hanoi",
			wantTitle:    "A",
			wantCompany:  UnknownCompany,
			wantLocation: "Hanoi",
		},
		{
			name:         "no location pattern leaves location empty",
			fields:       map[string]any{"title": "A", "company": "B"},
			subject:      "X – Y",
			body:         "no labels here",
			wantTitle:    "A",
			wantCompany:  "B",
			wantLocation: "",
		},
		{
			name:         "blank classifier values count as missing",
			fields:       map[string]any{"title": "  ", "company": "B", "location": ""},
			subject:      "Resolved Title – Y",
			body:         "Location: Remote",
			wantTitle:    "Resolved Title",
			wantCompany:  "B",
			wantLocation: "Remote",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := MergeRecord(&domain.ClassificationResult{Relevant: true, Fields: tt.fields},
				domain.RawMessage{Subject: tt.subject, Body: tt.body})

			assert.Equal(t, tt.wantTitle, rec.Title)
			assert.Equal(t, tt.wantCompany, rec.Company)
			assert.Equal(t, tt.wantLocation, rec.Location)
		})
	}
}

func TestMergeRecord_CandidateKeysAndExtra(t *testing.T) {
	result := &domain.ClassificationResult{
		Relevant: true,
		Fields: map[string]any{
			"job_title":       "Platform Intern",
			"company_name":    "Initech",
			"city":            "Da Nang",
			"required_skills": "Go, Kubernetes, ,SQL",
			"salary":          float64(1200),
			"url":             "https://example.com/apply",
			"is_relevant":     true,
			"job_id":          "classifier-id",
			"status":          "applied",
			"team":            "infra",
			"remote_ok":       nil,
		},
	}
	msg := domain.RawMessage{Subject: "s", Date: "Mon, 1 Jan 2024 10:00:00 +0000"}

	rec := MergeRecord(result, msg)

	assert.Equal(t, "Platform Intern", rec.Title)
	assert.Equal(t, "Initech", rec.Company)
	assert.Equal(t, "Da Nang", rec.Location)
	assert.Equal(t, []string{"Go", "Kubernetes", "SQL"}, rec.Skills)
	assert.Equal(t, "1200", rec.Stipend)
	assert.Equal(t, "https://example.com/apply", rec.Link)
	assert.Empty(t, rec.JobID)
	assert.Empty(t, rec.Status)

	require.NotNil(t, rec.Extra)
	assert.Equal(t, "infra", rec.Extra["team"])
	assert.Equal(t, "Mon, 1 Jan 2024 10:00:00 +0000", rec.Extra["email_date"])
	for _, k := range []string{"job_title", "company_name", "city", "salary", "url", "required_skills", "is_relevant", "job_id", "status", "remote_ok"} {
		assert.NotContains(t, rec.Extra, k)
	}
}

func TestMergeRecord_NilResult(t *testing.T) {
	rec := MergeRecord(nil, domain.RawMessage{Subject: "Role – Co", Body: "Location: Remote"})
	assert.Equal(t, "Role", rec.Title)
	assert.Equal(t, "Co", rec.Company)
	assert.Equal(t, "Remote", rec.Location)
	assert.Nil(t, rec.Extra)
}

func TestSkillList(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want []string
	}{
		{name: "nil", in: nil, want: nil},
		{name: "string list", in: []string{" Go ", "", "SQL"}, want: []string{"Go", "SQL"}},
		{name: "any list skips non strings", in: []any{"Go", 3, "Rust"}, want: []string{"Go", "Rust"}},
		{name: "comma separated", in: "Python, Django", want: []string{"Python", "Django"}},
		{name: "unsupported type", in: 42, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SkillList(tt.in))
		})
	}
}

func TestValidateRequired(t *testing.T) {
	tests := []struct {
		name        string
		rec         *domain.JobRecord
		wantMissing []string
	}{
		{
			name: "complete",
			rec:  &domain.JobRecord{Title: "A", Company: "B", Location: "C"},
		},
		{
			name:        "missing location",
			rec:         &domain.JobRecord{Title: "A", Company: "B"},
			wantMissing: []string{"location"},
		},
		{
			name:        "whitespace only counts as missing",
			rec:         &domain.JobRecord{Title: " ", Company: "B", Location: "\t"},
			wantMissing: []string{"title", "location"},
		},
		{
			name:        "all missing",
			rec:         &domain.JobRecord{},
			wantMissing: []string{"title", "company", "location"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRequired(tt.rec)
			if tt.wantMissing == nil {
				assert.NoError(t, err)
				return
			}

			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrValidation)

			var vErr *domain.ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.wantMissing, vErr.Missing)
		})
	}
}
