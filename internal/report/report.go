// Package report assembles a remediation run into a session summary:
// what was fixed, what was found but left alone and why, which files
// could not be analyzed, and how each rule performed. The summary
// implements output.Renderable so one build serves every format.
package report

import (
	"sort"
	"time"

	"github.com/panbanda/mend/pkg/engine"
	"github.com/panbanda/mend/pkg/metrics"
	"github.com/panbanda/mend/pkg/models"
)

// Reasons for findings that ended the run unfixed without a recorded
// rejection.
const (
	ReasonNoFix        = "no_fix_available"
	ReasonNotAttempted = "not_attempted"
)

// FileTotals counts files by how the run ended for them.
type FileTotals struct {
	Processed    int `json:"processed"`
	Fixed        int `json:"fixed"`
	Partial      int `json:"partial,omitempty"`
	Unanalyzable int `json:"unanalyzable,omitempty"`
	Errored      int `json:"errored,omitempty"`
}

// FixTotals counts findings and what became of them.
type FixTotals struct {
	Findings int `json:"findings"`
	Fixable  int `json:"fixable"`
	Accepted int `json:"accepted"`
	Rejected int `json:"rejected"`
}

// FixedItem is one accepted fix.
type FixedItem struct {
	Path       string  `json:"path"`
	Rule       string  `json:"rule"`
	Line       uint32  `json:"line"`
	Message    string  `json:"message"`
	Confidence float64 `json:"confidence"`
}

// UnfixedItem is a finding that survived the run, with the reason no
// fix landed.
type UnfixedItem struct {
	Path     string          `json:"path"`
	Rule     string          `json:"rule"`
	Line     uint32          `json:"line"`
	Severity models.Severity `json:"severity"`
	Message  string          `json:"message"`
	Reason   string          `json:"reason"`
}

// UnanalyzableItem is a file that never produced a usable tree.
type UnanalyzableItem struct {
	Path        string `json:"path"`
	Error       string `json:"error,omitempty"`
	Diagnostics int    `json:"diagnostics,omitempty"`
}

// ErroredItem is a file the worker pool failed to process at all.
type ErroredItem struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

// Summary is the complete session report.
type Summary struct {
	GeneratedAt time.Time     `json:"generated_at"`
	Version     string        `json:"version,omitempty"`
	Revision    string        `json:"revision,omitempty"`
	Paths       []string      `json:"paths,omitempty"`
	DryRun      bool          `json:"dry_run,omitempty"`
	Duration    time.Duration `json:"duration_ns"`

	Files FileTotals `json:"files"`
	Fixes FixTotals  `json:"fixes"`

	Fixed        []FixedItem        `json:"fixed,omitempty"`
	Unfixed      []UnfixedItem      `json:"unfixed,omitempty"`
	Unanalyzable []UnanalyzableItem `json:"unanalyzable,omitempty"`
	Errored      []ErroredItem      `json:"errored,omitempty"`

	// Rules is the per-rule leaderboard for the run, busiest first.
	Rules []metrics.RuleSnapshot `json:"rules,omitempty"`
}

// Options carries run context the outcomes themselves don't record.
type Options struct {
	Version  string
	Revision string
	Paths    []string
	DryRun   bool
}

// Build assembles the summary for a finished run. The store is the
// session's metrics store; pass nil to omit the rule leaderboard.
func Build(res *engine.Result, store *metrics.Store, opts Options) *Summary {
	s := &Summary{
		GeneratedAt: time.Now(),
		Version:     opts.Version,
		Revision:    opts.Revision,
		Paths:       opts.Paths,
		DryRun:      opts.DryRun,
		Duration:    res.Duration,
	}

	for _, o := range res.Outcomes {
		s.Files.Processed++
		if o.Unanalyzable {
			s.Files.Unanalyzable++
			s.Unanalyzable = append(s.Unanalyzable, UnanalyzableItem{
				Path:        o.Path,
				Error:       o.Err,
				Diagnostics: len(o.Diagnostics),
			})
			continue
		}
		if o.Fixed() {
			s.Files.Fixed++
		}
		if o.Partial {
			s.Files.Partial++
		}

		s.Fixes.Findings += len(o.Findings)
		for _, f := range o.Findings {
			if f.Fixable {
				s.Fixes.Fixable++
			}
		}
		s.Fixes.Accepted += len(o.Accepted)
		s.Fixes.Rejected += len(o.Rejected)

		for _, a := range o.Accepted {
			s.Fixed = append(s.Fixed, FixedItem{
				Path:       o.Path,
				Rule:       a.Rule,
				Line:       a.Finding.Line,
				Message:    a.Finding.Message,
				Confidence: a.Confidence,
			})
		}
		for _, f := range o.Unfixed() {
			s.Unfixed = append(s.Unfixed, UnfixedItem{
				Path:     o.Path,
				Rule:     f.Rule,
				Line:     f.Line,
				Severity: f.Severity,
				Message:  f.Message,
				Reason:   unfixedReason(f, o.Rejected),
			})
		}
	}

	if res.Errors != nil {
		for _, pe := range res.Errors.Errors {
			s.Files.Errored++
			s.Errored = append(s.Errored, ErroredItem{Path: pe.Path, Error: pe.Err.Error()})
		}
	}

	if store != nil {
		s.Rules = store.Snapshot().Rules
		sort.SliceStable(s.Rules, func(i, j int) bool {
			return s.Rules[i].Attempts > s.Rules[j].Attempts
		})
	}

	return s
}

// unfixedReason explains why a finding ended the run without a fix:
// the recorded rejection when one matches, otherwise whether a fix was
// ever on offer. Rejections are matched the way the executor tracks
// them across re-detections, by rule plus flagged text.
func unfixedReason(f models.Finding, rejected []models.FixAttempt) string {
	if !f.Fixable {
		return ReasonNoFix
	}
	for _, a := range rejected {
		if a.Rule == f.Rule && a.Finding.Snippet == f.Snippet {
			return string(a.Reason)
		}
	}
	return ReasonNotAttempted
}
