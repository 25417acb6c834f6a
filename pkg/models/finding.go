package models

// Category groups rules by the kind of problem they flag.
type Category string

const (
	CategorySecurity        Category = "security"
	CategoryCorrectness     Category = "correctness"
	CategoryStyle           Category = "style"
	CategoryMaintainability Category = "maintainability"
	CategoryDebt            Category = "debt"
	// CategoryInternal marks findings the engine synthesizes itself,
	// such as a detector crash.
	CategoryInternal Category = "internal"
)

// Severity represents how urgent a finding is.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Weight returns a numeric severity for ordering.
func (s Severity) Weight() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// FixGenerator lazily builds the edits for a finding. Detectors attach
// one only when they can synthesize a safe candidate fix; generation is
// deferred until the executor decides to attempt the fix.
type FixGenerator func() EditSet

// Finding is a single rule violation detected in a file.
type Finding struct {
	Rule      string   `json:"rule"`
	Category  Category `json:"category"`
	Severity  Severity `json:"severity"`
	Message   string   `json:"message"`
	Path      string   `json:"path,omitempty"`
	StartByte int      `json:"start_byte"`
	EndByte   int      `json:"end_byte"`
	Line      uint32   `json:"line"`
	Column    uint32   `json:"column,omitempty"`
	Snippet   string   `json:"snippet,omitempty"`

	// Fixable mirrors Fix != nil and survives serialization, so cached
	// findings still report fixability after the generator is dropped.
	Fixable bool `json:"fixable"`

	Fix FixGenerator `json:"-"`
}
