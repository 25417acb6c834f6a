package models

// DiagnosticKind classifies a parse diagnostic.
type DiagnosticKind string

const (
	// DiagError marks a region the parser could not interpret.
	DiagError DiagnosticKind = "error"
	// DiagMissing marks a token the parser inserted to recover.
	DiagMissing DiagnosticKind = "missing"
)

// Diagnostic is a single parse problem. Diagnostics are emitted in
// offset order and never mutated after parsing.
type Diagnostic struct {
	Kind      DiagnosticKind `json:"kind"`
	Message   string         `json:"message"`
	StartByte int            `json:"start_byte"`
	EndByte   int            `json:"end_byte"`
	Line      uint32         `json:"line"`
	Column    uint32         `json:"column"`
}
