package domain

import "strings"

// CanonicalStatus is the lifecycle bucket a JobRecord belongs to.
// It is derived from the raw status on every read and is never stored on its own.
type CanonicalStatus string

const (
	StatusNew     CanonicalStatus = "new"
	StatusApplied CanonicalStatus = "applied"
	StatusWaiting CanonicalStatus = "waiting"
	StatusDenied  CanonicalStatus = "denied"
)

// statusSynonyms maps every known raw status (lower case) to its bucket.
// Anything missing from the table falls into StatusNew.
var statusSynonyms = map[string]CanonicalStatus{
	"applied":               StatusApplied,
	"application_submitted": StatusApplied,
	"submitted":             StatusApplied,

	"waiting": StatusWaiting,
	"saved":   StatusWaiting,
	"later":   StatusWaiting,

	"denied":   StatusDenied,
	"rejected": StatusDenied,
	"archived": StatusDenied,
}

// NormalizeStatus maps a raw, possibly legacy or empty, status value to exactly
// one CanonicalStatus. Matching is case-insensitive and never fails.
func NormalizeStatus(raw string) CanonicalStatus {
	if bucket, ok := statusSynonyms[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return bucket
	}
	return StatusNew
}

// ParseStatus is NormalizeStatus for caller input: it reports false when raw
// is neither a known synonym nor "new", instead of defaulting.
func ParseStatus(raw string) (CanonicalStatus, bool) {
	key := strings.ToLower(strings.TrimSpace(raw))
	if key == string(StatusNew) {
		return StatusNew, true
	}
	bucket, ok := statusSynonyms[key]
	return bucket, ok
}

// CanonicalStatuses lists the buckets in board order.
func CanonicalStatuses() []CanonicalStatus {
	return []CanonicalStatus{StatusNew, StatusApplied, StatusWaiting, StatusDenied}
}

func (s CanonicalStatus) String() string { return string(s) }
