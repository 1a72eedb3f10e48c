// Package board serves stored jobs to the request layer as board cards,
// grouped by canonical status, and applies the status transitions.
package board

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cuongbtq/jobmail/internal/domain"
	"github.com/cuongbtq/jobmail/internal/pipeline"
)

// Display defaults for attributes a record does not carry
const (
	DefaultTitle    = "Opportunity"
	DefaultCompany  = "Unknown"
	DefaultLocation = "Remote"
	DefaultLink     = "#"
)

const postedDateLayout = "2006-01-02"

var (
	idKeys      = []string{"job_id", "id", "uid"}
	titleKeys   = []string{"job_title", "title", "role", "position", "subject", "company"}
	companyKeys = []string{"company", "company_name", "org", "organization"}
	postedKeys  = []string{"posted_date", "email_date", "date", "created_at"}
	snippetKeys = []string{"snippet", "summary", "description", "text"}
	linkKeys    = []string{"link", "url", "application_link"}
	statusKeys  = []string{"status", "application_stage"}
)

// View is the presentation shape of a job
type View struct {
	JobID            string                 `json:"job_id"`
	JobTitle         string                 `json:"job_title"`
	Company          string                 `json:"company"`
	PostedDate       string                 `json:"posted_date"`
	Snippet          string                 `json:"snippet"`
	Link             string                 `json:"link"`
	Location         string                 `json:"location"`
	Skills           []string               `json:"skills"`
	Status           domain.CanonicalStatus `json:"status"`
	TrackingStatus   *string                `json:"tracking_status"`
	DenyReason       *string                `json:"deny_reason,omitempty"`
	Duration         *string                `json:"duration"`
	StartDate        *string                `json:"start_date"`
	EndDate          *string                `json:"end_date"`
	Stipend          *string                `json:"stipend"`
	ShortDescription string                 `json:"short_description"`
}

// Project turns a stored record of any vintage into a View. now supplies the
// posted date when the record has none. The record is not modified.
func Project(rec *domain.JobRecord, now time.Time) View {
	attrs := rec.Attributes()

	v := View{
		JobID:          first(attrs, idKeys),
		JobTitle:       orDefault(first(attrs, titleKeys), DefaultTitle),
		Company:        orDefault(first(attrs, companyKeys), DefaultCompany),
		PostedDate:     first(attrs, postedKeys),
		Snippet:        first(attrs, snippetKeys),
		Link:           orDefault(first(attrs, linkKeys), DefaultLink),
		Location:       orDefault(first(attrs, []string{domain.FieldLocation}), DefaultLocation),
		Skills:         pipeline.SkillList(attrs[domain.FieldSkills]),
		Status:         domain.NormalizeStatus(first(attrs, statusKeys)),
		TrackingStatus: rec.TrackingStatus,
		DenyReason:     rec.DenyReason,
		Duration:       optional(attrs, domain.FieldDuration),
		StartDate:      optional(attrs, domain.FieldStartDate),
		EndDate:        optional(attrs, domain.FieldEndDate),
		Stipend:        optional(attrs, domain.FieldStipend),
	}

	if v.PostedDate == "" {
		v.PostedDate = now.UTC().Format(postedDateLayout)
	}
	if v.Skills == nil {
		v.Skills = []string{}
	}

	v.ShortDescription = first(attrs, []string{domain.FieldShortDescription})
	if v.ShortDescription == "" && v.Snippet != "" {
		v.ShortDescription = pipeline.ShortDescription(v.Snippet)
	}

	return v
}

// ProjectAll projects every record with the same clock reading
func ProjectAll(recs []*domain.JobRecord, now time.Time) []View {
	out := make([]View, 0, len(recs))
	for _, rec := range recs {
		out = append(out, Project(rec, now))
	}
	return out
}

func first(attrs map[string]any, keys []string) string {
	for _, k := range keys {
		if s := display(attrs[k]); s != "" {
			return s
		}
	}
	return ""
}

func optional(attrs map[string]any, key string) *string {
	if s := display(attrs[key]); s != "" {
		return &s
	}
	return nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// display renders a stored attribute as text; lists are comma-joined
func display(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int, int32, int64:
		return fmt.Sprintf("%d", t)
	case bool:
		return strconv.FormatBool(t)
	case []string, []any:
		return strings.Join(pipeline.SkillList(t), ", ")
	default:
		return fmt.Sprintf("%v", t)
	}
}
