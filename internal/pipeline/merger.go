package pipeline

import (
	"encoding/json"
	"errors"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/cuongbtq/jobmail/internal/domain"
)

// UnknownCompany is used when the subject line does not name a company
const UnknownCompany = "Unknown"

// candidateKeys lists, per logical field, the classifier keys that may carry it.
// The first non-empty key wins.
var candidateKeys = []struct {
	field string
	keys  []string
}{
	{domain.FieldTitle, []string{"title", "job_title", "role", "position"}},
	{domain.FieldCompany, []string{"company", "company_name", "org", "organization"}},
	{domain.FieldLocation, []string{"location", "job_location", "city"}},
	{domain.FieldDuration, []string{"duration"}},
	{domain.FieldStartDate, []string{"start_date"}},
	{domain.FieldEndDate, []string{"end_date", "deadline"}},
	{domain.FieldStipend, []string{"stipend", "salary", "compensation"}},
	{domain.FieldShortDescription, []string{"short_description", "summary"}},
	{domain.FieldPostedDate, []string{"posted_date"}},
	{domain.FieldLink, []string{"link", "url", "application_link"}},
	{domain.FieldSnippet, []string{"snippet", "description"}},
}

var skillKeys = []string{"skills", "required_skills", "tech_stack"}

// modeledKeys holds every candidate key; blank values under these keys are
// dropped instead of landing in Extra.
var modeledKeys = func() map[string]bool {
	m := make(map[string]bool)
	for _, c := range candidateKeys {
		for _, k := range c.keys {
			m[k] = true
		}
	}
	for _, k := range skillKeys {
		m[k] = true
	}
	return m
}()

// reservedKeys are classifier keys never copied onto the record
var reservedKeys = map[string]bool{
	"is_relevant":              true,
	"application_stage":        true,
	domain.FieldJobID:          true,
	domain.FieldStatus:         true,
	domain.FieldTrackingStatus: true,
	domain.FieldDenyReason:     true,
}

// MergeRecord combines a classification result with fields resolved from the
// message text. When the classifier supplied title, company and location the
// resolver is not consulted at all; otherwise resolver output fills only the
// fields that are still empty.
func MergeRecord(result *domain.ClassificationResult, msg domain.RawMessage) *domain.JobRecord {
	rec := &domain.JobRecord{}
	var fields map[string]any
	if result != nil {
		fields = result.Fields
	}

	used := make(map[string]bool)
	for _, c := range candidateKeys {
		value, key := firstString(fields, c.keys)
		if key != "" {
			used[key] = true
		}
		setField(rec, c.field, value)
	}

	skills, key := firstSkills(fields, skillKeys)
	if key != "" {
		used[key] = true
	}
	rec.Skills = skills

	if rec.Title == "" || rec.Company == "" || rec.Location == "" {
		fillFromText(rec, ResolveFields(msg.Subject, msg.Body))
	}

	for k, v := range fields {
		if used[k] || reservedKeys[k] || v == nil {
			continue
		}
		if modeledKeys[k] && stringValue(v) == "" {
			continue
		}
		if rec.Extra == nil {
			rec.Extra = make(map[string]any)
		}
		rec.Extra[k] = v
	}
	if msg.Date != "" {
		if rec.Extra == nil {
			rec.Extra = make(map[string]any)
		}
		if _, ok := rec.Extra["email_date"]; !ok {
			rec.Extra["email_date"] = msg.Date
		}
	}

	return rec
}

// fillFromText copies resolver output into fields the classifier left empty
func fillFromText(rec *domain.JobRecord, ex domain.ExtractedFields) {
	if rec.Title == "" {
		rec.Title = ex.Title
	}
	if rec.Company == "" {
		rec.Company = ex.Company
		if rec.Company == "" {
			rec.Company = UnknownCompany
		}
	}
	if rec.Location == "" {
		rec.Location = ex.Location
	}
	if rec.Duration == "" {
		rec.Duration = ex.Duration
	}
	if rec.Stipend == "" {
		rec.Stipend = ex.Stipend
	}
	if rec.ShortDescription == "" {
		rec.ShortDescription = ex.ShortDescription
	}
}

func setField(rec *domain.JobRecord, field, value string) {
	switch field {
	case domain.FieldTitle:
		rec.Title = value
	case domain.FieldCompany:
		rec.Company = value
	case domain.FieldLocation:
		rec.Location = value
	case domain.FieldDuration:
		rec.Duration = value
	case domain.FieldStartDate:
		rec.StartDate = value
	case domain.FieldEndDate:
		rec.EndDate = value
	case domain.FieldStipend:
		rec.Stipend = value
	case domain.FieldShortDescription:
		rec.ShortDescription = value
	case domain.FieldPostedDate:
		rec.PostedDate = value
	case domain.FieldLink:
		rec.Link = value
	case domain.FieldSnippet:
		rec.Snippet = value
	}
}

func firstString(fields map[string]any, keys []string) (string, string) {
	for _, k := range keys {
		if s := stringValue(fields[k]); s != "" {
			return s, k
		}
	}
	return "", ""
}

func firstSkills(fields map[string]any, keys []string) ([]string, string) {
	for _, k := range keys {
		if skills := SkillList(fields[k]); len(skills) > 0 {
			return skills, k
		}
	}
	return nil, ""
}

// stringValue renders scalar classifier values as trimmed text
func stringValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case json.Number:
		return t.String()
	case []any, []string:
		return strings.Join(SkillList(t), ", ")
	default:
		return ""
	}
}

// SkillList accepts a list or a comma-separated string and returns the
// non-empty trimmed entries in order.
func SkillList(v any) []string {
	var raw []string
	switch t := v.(type) {
	case []string:
		raw = t
	case []any:
		for _, item := range t {
			if s, ok := item.(string); ok {
				raw = append(raw, s)
			}
		}
	case string:
		raw = strings.Split(t, ",")
	}

	var out []string
	for _, s := range raw {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

type requiredFields struct {
	Title    string `json:"title" validate:"required"`
	Company  string `json:"company" validate:"required"`
	Location string `json:"location" validate:"required"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	})
	return v
}

// ValidateRequired applies the required-field gate. It returns a
// *domain.ValidationError naming every missing field.
func ValidateRequired(rec *domain.JobRecord) error {
	err := validate.Struct(requiredFields{
		Title:    strings.TrimSpace(rec.Title),
		Company:  strings.TrimSpace(rec.Company),
		Location: strings.TrimSpace(rec.Location),
	})
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	missing := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		missing = append(missing, fe.Field())
	}
	return &domain.ValidationError{Missing: missing}
}
