package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/panbanda/mend/internal/output"
)

// messageWidth caps finding messages in text tables so rows stay on
// one terminal line.
const messageWidth = 56

// RenderData returns the full summary; JSON and TOON serialize it
// directly.
func (s *Summary) RenderData() any { return s }

// RenderText writes the human-readable session report.
func (s *Summary) RenderText(w io.Writer, colored bool) error {
	return s.compose().RenderText(w, colored)
}

// RenderMarkdown writes the report as a markdown document.
func (s *Summary) RenderMarkdown(w io.Writer) error {
	return s.compose().RenderMarkdown(w)
}

// compose arranges the summary into sections and tables. Empty
// sections are left out entirely.
func (s *Summary) compose() *output.Report {
	title := "Remediation Summary"
	if s.DryRun {
		title = "Remediation Summary (dry run)"
	}
	rep := &output.Report{Title: title, Data: s}

	rep.Sections = append(rep.Sections, &output.Section{
		Title:   "Totals",
		Content: s.totals(),
	})

	if len(s.Fixed) > 0 {
		rows := make([][]string, len(s.Fixed))
		for i, item := range s.Fixed {
			rows[i] = []string{
				item.Path,
				fmt.Sprintf("%d", item.Line),
				item.Rule,
				fmt.Sprintf("%.2f", item.Confidence),
				truncate(item.Message, messageWidth),
			}
		}
		rep.Sections = append(rep.Sections, output.NewTable(
			"Applied Fixes",
			[]string{"File", "Line", "Rule", "Confidence", "Finding"},
			rows, nil, nil,
		))
	}

	if len(s.Unfixed) > 0 {
		rows := make([][]string, len(s.Unfixed))
		for i, item := range s.Unfixed {
			rows[i] = []string{
				item.Path,
				fmt.Sprintf("%d", item.Line),
				item.Rule,
				string(item.Severity),
				item.Reason,
				truncate(item.Message, messageWidth),
			}
		}
		rep.Sections = append(rep.Sections, output.NewTable(
			"Remaining Findings",
			[]string{"File", "Line", "Rule", "Severity", "Reason", "Finding"},
			rows, nil, nil,
		))
	}

	if len(s.Unanalyzable) > 0 {
		rows := make([][]string, len(s.Unanalyzable))
		for i, item := range s.Unanalyzable {
			rows[i] = []string{
				item.Path,
				fmt.Sprintf("%d", item.Diagnostics),
				truncate(item.Error, messageWidth),
			}
		}
		rep.Sections = append(rep.Sections, output.NewTable(
			"Unanalyzable Files",
			[]string{"File", "Diagnostics", "Error"},
			rows, nil, nil,
		))
	}

	if len(s.Errored) > 0 {
		rows := make([][]string, len(s.Errored))
		for i, item := range s.Errored {
			rows[i] = []string{item.Path, truncate(item.Error, messageWidth)}
		}
		rep.Sections = append(rep.Sections, output.NewTable(
			"Processing Errors",
			[]string{"File", "Error"},
			rows, nil, nil,
		))
	}

	if len(s.Rules) > 0 {
		rows := make([][]string, len(s.Rules))
		for i, r := range s.Rules {
			rows[i] = []string{
				r.Rule,
				fmt.Sprintf("%d", r.Attempts),
				fmt.Sprintf("%d", r.Successes),
				fmt.Sprintf("%.0f%%", r.SuccessRate*100),
				fmt.Sprintf("%.2f", r.AvgConfidence),
				r.AvgDuration.Round(time.Microsecond).String(),
			}
		}
		rep.Sections = append(rep.Sections, output.NewTable(
			"Rule Performance",
			[]string{"Rule", "Attempts", "Accepted", "Success", "Avg Confidence", "Avg Duration"},
			rows, nil, nil,
		))
	}

	return rep
}

func (s *Summary) totals() string {
	lines := []string{
		"Files:    " + s.fileTotals(),
		fmt.Sprintf("Findings: %d (%d fixable)", s.Fixes.Findings, s.Fixes.Fixable),
		fmt.Sprintf("Fixes:    %d accepted, %d rejected", s.Fixes.Accepted, s.Fixes.Rejected),
		fmt.Sprintf("Duration: %s", s.Duration.Round(time.Millisecond)),
	}
	if s.Revision != "" {
		lines = append(lines, "Revision: "+s.Revision)
	}
	if s.DryRun {
		lines = append(lines, "Dry run: no files were written")
	}
	return strings.Join(lines, "\n")
}

func (s *Summary) fileTotals() string {
	parts := fmt.Sprintf("%d processed", s.Files.Processed)
	if s.Files.Fixed > 0 {
		parts += fmt.Sprintf(", %d fixed", s.Files.Fixed)
	}
	if s.Files.Partial > 0 {
		parts += fmt.Sprintf(", %d partial", s.Files.Partial)
	}
	if s.Files.Unanalyzable > 0 {
		parts += fmt.Sprintf(", %d unanalyzable", s.Files.Unanalyzable)
	}
	if s.Files.Errored > 0 {
		parts += fmt.Sprintf(", %d errored", s.Files.Errored)
	}
	return parts
}

func truncate(msg string, width int) string {
	if len(msg) <= width {
		return msg
	}
	return msg[:width-3] + "..."
}
