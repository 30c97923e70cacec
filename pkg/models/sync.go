package models

import "time"

// OutcomeStatus classifies the result of processing one instrument
type OutcomeStatus string

const (
	OutcomeSuccess OutcomeStatus = "success"
	OutcomeSkipped OutcomeStatus = "skipped"
	OutcomeFailed  OutcomeStatus = "failed"
)

// Outcome represents the per-instrument result of a sync attempt.
// Item failures are carried as data in Reason, not as errors.
type Outcome struct {
	Symbol  string        `json:"symbol"`
	Status  OutcomeStatus `json:"status"`
	Records int           `json:"records"`
	Reason  string        `json:"reason,omitempty"`
}

// SuccessOutcome builds an Outcome for an instrument that wrote records
func SuccessOutcome(symbol string, records int) Outcome {
	return Outcome{Symbol: symbol, Status: OutcomeSuccess, Records: records}
}

// SkippedOutcome builds an Outcome for an instrument with nothing new upstream
func SkippedOutcome(symbol string) Outcome {
	return Outcome{Symbol: symbol, Status: OutcomeSkipped}
}

// FailedOutcome builds an Outcome carrying the failure reason
func FailedOutcome(symbol string, err error) Outcome {
	return Outcome{Symbol: symbol, Status: OutcomeFailed, Reason: err.Error()}
}

// RunSummary aggregates the outcomes of one batch run
type RunSummary struct {
	RunID      string    `json:"run_id"`
	Total      int       `json:"total"`
	Succeeded  int       `json:"succeeded"`
	Skipped    int       `json:"skipped"`
	Failed     int       `json:"failed"`
	Records    int64     `json:"records"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Count tallies a single outcome into the summary
func (s *RunSummary) Count(o Outcome) {
	switch o.Status {
	case OutcomeSuccess:
		s.Succeeded++
		s.Records += int64(o.Records)
	case OutcomeSkipped:
		s.Skipped++
	case OutcomeFailed:
		s.Failed++
	}
}

// SyncStatus represents the most recent sync result for a symbol
type SyncStatus struct {
	Symbol    string    `json:"symbol"`
	Status    string    `json:"status"`   // "success", "skipped", "failed"
	Records   int       `json:"records"`
	Position  int       `json:"position"` // 1-based index within the run
	Total     int       `json:"total"`
	Error     string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}
