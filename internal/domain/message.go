package domain

// RawMessage is one item read from the mail source. It is consumed once per run
// and never persisted as-is.
type RawMessage struct {
	// ID is the source-native message identifier, empty when the source has none
	ID      string `json:"id,omitempty"`
	Subject string `json:"subject"`
	Date    string `json:"date"`
	Body    string `json:"body"`
}

// Text is the input handed to the classifier
func (m RawMessage) Text() string {
	return m.Subject + "\n" + m.Body
}

// ClassificationResult is the classifier's verdict on a message.
// Fields is partial by contract: any key may be missing.
type ClassificationResult struct {
	Relevant bool
	Fields   map[string]any
	// SuggestedID is whatever identifier the classifier proposed; it is never
	// used as the record identity.
	SuggestedID string
}

// ExtractedFields is the output of the deterministic field resolver.
// An empty string means the field could not be derived.
type ExtractedFields struct {
	Title            string
	Company          string
	Location         string
	Duration         string
	Stipend          string
	ShortDescription string
}

// IngestionRequest asks the worker service to run one ingestion batch
type IngestionRequest struct {
	RequestID   string `json:"request_id"`
	Limit       int    `json:"limit,omitempty"`
	RequestedAt string `json:"requested_at,omitempty"`
}
