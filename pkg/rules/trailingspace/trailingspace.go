// Package trailingspace flags whitespace before line endings and strips
// it as the fix. Language-independent: it works on raw text.
package trailingspace

import (
	"fmt"
	"strings"

	"github.com/panbanda/mend/pkg/models"
	"github.com/panbanda/mend/pkg/parser"
	"github.com/panbanda/mend/pkg/rules"
)

// Detector finds trailing whitespace on lines.
type Detector struct{}

var _ rules.Detector = (*Detector)(nil)

// New creates the detector.
func New() *Detector {
	return &Detector{}
}

// Name implements rules.Detector.
func (d *Detector) Name() string { return "trailing-space" }

// Category implements rules.Detector.
func (d *Detector) Category() models.Category { return models.CategoryStyle }

// Description implements rules.Describer.
func (d *Detector) Description() string {
	return "strips whitespace before line endings"
}

// Detect implements rules.Detector. One finding covers the whole file
// so the fix is a single edit set stripping every offending line.
func (d *Detector) Detect(res *parser.Result, source string) []models.Finding {
	edits := trailingEdits(source)
	if len(edits) == 0 {
		return nil
	}

	first := edits[0]
	line, col := rules.LineColumn(source, first.Start)
	lines := len(edits)

	message := "trailing whitespace on 1 line"
	if lines > 1 {
		message = fmt.Sprintf("trailing whitespace on %d lines", lines)
	}

	return []models.Finding{{
		Rule:      d.Name(),
		Category:  d.Category(),
		Severity:  models.SeverityLow,
		Message:   message,
		Path:      res.Path,
		StartByte: first.Start,
		EndByte:   first.End,
		Line:      line,
		Column:    col,
		Fixable:   true,
		Fix: func() models.EditSet {
			return models.EditSet{Edits: edits}
		},
	}}
}

// trailingEdits returns one deletion edit per line that ends in spaces
// or tabs, in source order.
func trailingEdits(source string) []models.TextEdit {
	var edits []models.TextEdit
	lineStart := 0

	for lineStart <= len(source) {
		lineEnd := strings.IndexByte(source[lineStart:], '\n')
		var content string
		if lineEnd == -1 {
			content = source[lineStart:]
		} else {
			content = source[lineStart : lineStart+lineEnd]
		}

		trimmed := strings.TrimRight(content, " \t")
		if len(trimmed) < len(content) {
			edits = append(edits, models.TextEdit{
				Start:   lineStart + len(trimmed),
				End:     lineStart + len(content),
				NewText: "",
			})
		}

		if lineEnd == -1 {
			break
		}
		lineStart += lineEnd + 1
	}
	return edits
}
