package models

import "time"

// FixState tracks a fix attempt through the transformation pipeline.
type FixState string

const (
	StateParsed         FixState = "parsed"
	StateDetected       FixState = "detected"
	StateEditsGenerated FixState = "edits_generated"
	StateApplied        FixState = "applied"
	StateValidated      FixState = "validated"
	StateScored         FixState = "scored"
	StateAccepted       FixState = "accepted"
	StateRejected       FixState = "rejected"
)

// RejectReason explains why a fix attempt was not kept.
type RejectReason string

const (
	RejectApplyConflict     RejectReason = "apply_conflict"
	RejectValidationFailure RejectReason = "validation_failure"
	RejectConfidenceTooLow  RejectReason = "confidence_too_low"
	RejectTimeout           RejectReason = "timeout"
)

// FixAttempt is the full record of one candidate fix. It is terminal
// once scored: either accepted (the fixed text became the file's working
// text) or rejected with a reason.
type FixAttempt struct {
	Rule       string        `json:"rule"`
	Path       string        `json:"path"`
	Finding    Finding       `json:"finding"`
	State      FixState      `json:"state"`
	Edits      EditSet       `json:"edits,omitempty"`
	Confidence float64       `json:"confidence"`
	Similarity float64       `json:"similarity,omitempty"`
	Applied    bool          `json:"applied"`
	Reason     RejectReason  `json:"reason,omitempty"`
	Duration   time.Duration `json:"duration_ns"`

	// ResultText holds the candidate text produced by the attempt.
	// Populated only while the attempt is in flight; the accepted text
	// lives on the file outcome.
	ResultText string `json:"-"`
}

// FileOutcome is the terminal result for one file: the final text when
// any fix was accepted, every attempt that was made, and the findings
// left unfixed. It is the unit consumed by the report, write-back, and
// export layers.
type FileOutcome struct {
	Path     string `json:"path"`
	Language string `json:"language"`
	Hash     string `json:"hash"`

	// Unanalyzable is set when the file never produced a usable tree
	// (fatal parse) or failed to read. Err carries the detail.
	Unanalyzable bool   `json:"unanalyzable,omitempty"`
	Err          string `json:"error,omitempty"`

	// Partial is set when the per-file deadline expired before every
	// finding was attempted. Accepted fixes are kept.
	Partial bool `json:"partial,omitempty"`

	Diagnostics []Diagnostic `json:"diagnostics,omitempty"`
	Findings    []Finding    `json:"findings"`
	Accepted    []FixAttempt `json:"accepted,omitempty"`
	Rejected    []FixAttempt `json:"rejected,omitempty"`

	// FinalText is the working text after all accepted fixes, empty
	// when nothing was applied.
	FinalText string `json:"-"`
}

// Fixed reports whether any fix was accepted for the file.
func (o FileOutcome) Fixed() bool {
	return len(o.Accepted) > 0
}

// Unfixed returns the findings that ended without an applied fix,
// whether rejected or never attempted.
func (o FileOutcome) Unfixed() []Finding {
	if len(o.Findings) == 0 {
		return nil
	}
	applied := make(map[string]int, len(o.Accepted))
	for _, a := range o.Accepted {
		applied[a.Rule]++
	}
	var out []Finding
	for _, f := range o.Findings {
		if n := applied[f.Rule]; n > 0 {
			applied[f.Rule] = n - 1
			continue
		}
		out = append(out, f)
	}
	return out
}
