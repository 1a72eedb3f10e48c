package pipeline

import "time"

// Outcome is the terminal state of one message in an ingestion run
type Outcome string

const (
	OutcomePersisted         Outcome = "persisted"
	OutcomeSkippedIrrelevant Outcome = "skipped-irrelevant"
	OutcomeSkippedIncomplete Outcome = "skipped-incomplete"
	// OutcomeFailed covers classifier or store failures for a single message.
	// The run continues with the next message.
	OutcomeFailed Outcome = "failed"
)

// MessageResult reports what happened to a single message
type MessageResult struct {
	Subject string  `json:"subject"`
	JobID   string  `json:"job_id,omitempty"`
	Outcome Outcome `json:"outcome"`
	Reason  string  `json:"reason,omitempty"`
	Err     error   `json:"-"`
}

// Report summarises an ingestion run. Results keep the order messages were fetched in.
type Report struct {
	Results    []MessageResult `json:"results"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
}

// Count returns how many messages ended with the given outcome
func (r *Report) Count(o Outcome) int {
	n := 0
	for _, res := range r.Results {
		if res.Outcome == o {
			n++
		}
	}
	return n
}

// Duration is the wall time of the run
func (r *Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
