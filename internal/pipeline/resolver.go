// Package pipeline turns raw mail messages into persisted job records.
//
// The pure steps (field resolution, merging, identity) live next to the
// Ingestor that drives them so they can be tested without any collaborator.
package pipeline

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/cuongbtq/jobmail/internal/domain"
)

const (
	// SubjectDelimiter separates the role from the company in a subject line
	SubjectDelimiter = "–"

	// ShortDescriptionLimit is the number of characters kept in short_description
	ShortDescriptionLimit = 200

	truncationMarker = "..."
)

var (
	locationPattern = labelPattern("Location")
	durationPattern = labelPattern("Duration")
	stipendPattern  = labelPattern("Stipend")
)

// labelPattern matches "<Label>: <value>" and captures the value up to end of line
func labelPattern(label string) *regexp.Regexp {
	return regexp.MustCompile(regexp.QuoteMeta(label) + `:[ \t]*(\S[^\r\n]*)`)
}

// ResolveFields derives structured fields from a subject and body without any
// external call. The same input always yields the same output.
func ResolveFields(subject, body string) domain.ExtractedFields {
	var fields domain.ExtractedFields

	parts := strings.Split(subject, SubjectDelimiter)
	fields.Title = strings.TrimSpace(parts[0])
	if len(parts) > 1 {
		fields.Company = strings.TrimSpace(parts[1])
	}

	fields.Location = matchLabel(locationPattern, body)
	fields.Duration = matchLabel(durationPattern, body)
	fields.Stipend = matchLabel(stipendPattern, body)
	fields.ShortDescription = ShortDescription(body)

	return fields
}

// ShortDescription collapses whitespace and truncates to ShortDescriptionLimit
// characters, appending a marker when something was cut.
func ShortDescription(text string) string {
	collapsed := strings.Join(strings.Fields(text), " ")
	if utf8.RuneCountInString(collapsed) <= ShortDescriptionLimit {
		return collapsed
	}
	runes := []rune(collapsed)
	return string(runes[:ShortDescriptionLimit]) + truncationMarker
}

func matchLabel(re *regexp.Regexp, text string) string {
	m := re.FindStringSubmatch(text)
	if len(m) < 2 {
		return ""
	}
	return strings.TrimSpace(m[1])
}
