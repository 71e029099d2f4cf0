package model

import "time"

// FailureCategory classifies why a group was not delivered.
type FailureCategory string

// Failure category constants.
const (
	FailureNone     FailureCategory = ""
	FailureConfig   FailureCategory = "config"
	FailureAuth     FailureCategory = "auth"
	FailureNetwork  FailureCategory = "network"
	FailureSize     FailureCategory = "size"
	FailureDelivery FailureCategory = "delivery"
	FailureFile     FailureCategory = "file"
)

// SendOutcome is the per-group result of a send attempt.
type SendOutcome struct {
	Err        error
	ArchiveErr error
	Company    string
	Category   FailureCategory
	Files      []FileRef
	Elapsed    time.Duration
	Attempts   int
	Success    bool
}

// Summary aggregates the outcomes of a batch.
type Summary struct {
	BatchID   string
	Outcomes  []SendOutcome
	Succeeded int
	Failed    int
	// Oversize counts groups not sent because of their size. Groups rejected
	// at send time are also counted in Failed; groups skipped at scan time
	// are not.
	Oversize        int
	ArchiveWarnings int
}

// Add records an outcome.
func (s *Summary) Add(o SendOutcome) {
	s.Outcomes = append(s.Outcomes, o)
	if o.Success {
		s.Succeeded++
		if o.ArchiveErr != nil {
			s.ArchiveWarnings++
		}
		return
	}
	s.Failed++
	if o.Category == FailureSize {
		s.Oversize++
	}
}

// Skip records a group that was never handed to the sender.
func (s *Summary) Skip(o SendOutcome) {
	s.Outcomes = append(s.Outcomes, o)
	if o.Category == FailureSize {
		s.Oversize++
	}
}
