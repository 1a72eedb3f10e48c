package domain

// Attribute names shared by the stores, the merger and the projection.
const (
	FieldJobID            = "job_id"
	FieldTitle            = "title"
	FieldCompany          = "company"
	FieldLocation         = "location"
	FieldSkills           = "skills"
	FieldDuration         = "duration"
	FieldStartDate        = "start_date"
	FieldEndDate          = "end_date"
	FieldStipend          = "stipend"
	FieldShortDescription = "short_description"
	FieldPostedDate       = "posted_date"
	FieldLink             = "link"
	FieldSnippet          = "snippet"
	FieldStatus           = "status"
	FieldTrackingStatus   = "tracking_status"
	FieldDenyReason       = "deny_reason"
)

// RequiredFields must all be non-empty before a record is persisted
var RequiredFields = []string{FieldTitle, FieldCompany, FieldLocation}

// OptionalFields are always present on a candidate record, null when unknown
var OptionalFields = []string{
	FieldSkills, FieldDuration, FieldStartDate, FieldEndDate, FieldStipend, FieldShortDescription,
}

// InitialTrackingStatus is set when a job is first marked as applied
const InitialTrackingStatus = "pending"

// JobRecord is the persisted job opportunity.
// JobID is the only identity; status operations never change it.
type JobRecord struct {
	JobID            string   `json:"job_id"`
	Title            string   `json:"title"`
	Company          string   `json:"company"`
	Location         string   `json:"location"`
	Skills           []string `json:"skills"`
	Duration         string   `json:"duration"`
	StartDate        string   `json:"start_date"`
	EndDate          string   `json:"end_date"`
	Stipend          string   `json:"stipend"`
	ShortDescription string   `json:"short_description"`
	PostedDate       string   `json:"posted_date,omitempty"`
	Link             string   `json:"link,omitempty"`
	Snippet          string   `json:"snippet,omitempty"`

	// Status is the raw value as written; see NormalizeStatus for its bucket
	Status         string  `json:"status,omitempty"`
	TrackingStatus *string `json:"tracking_status"`
	DenyReason     *string `json:"deny_reason"`

	// Extra keeps attributes this package does not model, such as legacy keys
	// or additional classifier output.
	Extra map[string]any `json:"extra,omitempty"`
}

// Attributes flattens the record into a key/value view. Modeled fields win over
// Extra entries with the same key. Empty values are left out so that lookups
// can fall through to the next candidate key.
func (r *JobRecord) Attributes() map[string]any {
	attrs := make(map[string]any, len(r.Extra)+16)
	for k, v := range r.Extra {
		if v != nil {
			attrs[k] = v
		}
	}

	set := func(key, value string) {
		if value != "" {
			attrs[key] = value
		}
	}

	set(FieldJobID, r.JobID)
	set(FieldTitle, r.Title)
	set(FieldCompany, r.Company)
	set(FieldLocation, r.Location)
	set(FieldDuration, r.Duration)
	set(FieldStartDate, r.StartDate)
	set(FieldEndDate, r.EndDate)
	set(FieldStipend, r.Stipend)
	set(FieldShortDescription, r.ShortDescription)
	set(FieldPostedDate, r.PostedDate)
	set(FieldLink, r.Link)
	set(FieldSnippet, r.Snippet)
	set(FieldStatus, r.Status)
	if len(r.Skills) > 0 {
		attrs[FieldSkills] = r.Skills
	}
	if r.TrackingStatus != nil {
		attrs[FieldTrackingStatus] = *r.TrackingStatus
	}
	if r.DenyReason != nil {
		attrs[FieldDenyReason] = *r.DenyReason
	}

	return attrs
}

// Bucket returns the canonical status of the record
func (r *JobRecord) Bucket() CanonicalStatus {
	return NormalizeStatus(r.Status)
}

// Clone returns a deep copy so callers can hand out records without sharing state
func (r *JobRecord) Clone() *JobRecord {
	if r == nil {
		return nil
	}
	c := *r
	if r.Skills != nil {
		c.Skills = append([]string(nil), r.Skills...)
	}
	if r.TrackingStatus != nil {
		v := *r.TrackingStatus
		c.TrackingStatus = &v
	}
	if r.DenyReason != nil {
		v := *r.DenyReason
		c.DenyReason = &v
	}
	if r.Extra != nil {
		c.Extra = make(map[string]any, len(r.Extra))
		for k, v := range r.Extra {
			c.Extra[k] = v
		}
	}
	return &c
}

// FieldUpdate describes an atomic change to a record's lifecycle attributes.
// Nil pointers leave the stored value untouched; the Clear flags null it.
type FieldUpdate struct {
	Status              string
	TrackingStatus      *string
	DenyReason          *string
	ClearTrackingStatus bool
	ClearDenyReason     bool
}

// StringPtr returns a pointer to s
func StringPtr(s string) *string {
	return &s
}
