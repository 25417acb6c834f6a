// Package engine drives the safe transformation pipeline: parse,
// detect, apply, validate, score, then accept or roll back. One file
// at a time inside a worker, many files across the worker pool.
package engine

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/panbanda/mend/pkg/astcache"
	"github.com/panbanda/mend/pkg/edit"
	"github.com/panbanda/mend/pkg/metrics"
	"github.com/panbanda/mend/pkg/models"
	"github.com/panbanda/mend/pkg/parser"
	"github.com/panbanda/mend/pkg/qlearn"
	"github.com/panbanda/mend/pkg/rules"
	"github.com/panbanda/mend/pkg/score"
	"github.com/panbanda/mend/pkg/validate"
)

// DefaultConfidenceThreshold is the acceptance bar for fix confidence.
const DefaultConfidenceThreshold = 0.7

// attemptBudgetSlack bounds the fix loop beyond the initial finding
// count so a detector that keeps re-reporting a "fixed" violation
// cannot spin the executor forever.
const attemptBudgetSlack = 8

// Executor runs the fix pipeline for single files. The parser is owned
// by the calling worker; everything else is shared session state that
// synchronizes internally.
type Executor struct {
	cache     *astcache.Cache
	detect    *rules.Engine
	scorer    *score.Scorer
	table     *qlearn.Table
	store     *metrics.Store
	threshold float64
}

// NewExecutor wires the shared pipeline stages together.
func NewExecutor(cache *astcache.Cache, detect *rules.Engine, scorer *score.Scorer, table *qlearn.Table, store *metrics.Store, threshold float64) *Executor {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultConfidenceThreshold
	}
	return &Executor{
		cache:     cache,
		detect:    detect,
		scorer:    scorer,
		table:     table,
		store:     store,
		threshold: threshold,
	}
}

// ProcessFile runs the full pipeline for one source unit and returns
// its terminal outcome. The context carries the per-file deadline;
// expiry abandons the in-flight attempt, keeps accepted fixes, and
// marks the outcome partial. Errors never escape: they surface on the
// outcome so one file can never abort the batch.
func (e *Executor) ProcessFile(ctx context.Context, p *parser.Parser, unit models.SourceUnit) models.FileOutcome {
	outcome := models.FileOutcome{Path: unit.Path, Hash: unit.Hash}

	cur, hit, err := e.cache.GetOrParse(ctx, unit, func(ctx context.Context, u models.SourceUnit) (*parser.Result, error) {
		return p.Parse(ctx, []byte(u.Text), parser.DetectLanguage(u.Path), u.Path)
	})
	if err != nil {
		outcome.Unanalyzable = true
		outcome.Err = err.Error()
		e.store.RecordFile(outcome)
		return outcome
	}
	outcome.Language = string(cur.Language)
	outcome.Diagnostics = cur.Diagnostics

	if cur.Fatal {
		// No usable structure at all: report and skip, zero fixes.
		outcome.Unanalyzable = true
		outcome.Err = "fatal parse error"
		e.store.RecordFile(outcome)
		return outcome
	}

	log.Debug().
		Str("path", unit.Path).
		Bool("cache_hit", hit).
		Int("diagnostics", len(cur.Diagnostics)).
		Msg("parsed")

	working := unit.Text
	findings := e.detect.Detect(cur, working)
	outcome.Findings = findings

	queue := fixableOf(findings)
	rejected := make(map[string]bool)
	budget := 2*len(queue) + attemptBudgetSlack

	for len(queue) > 0 && budget > 0 {
		if ctx.Err() != nil {
			outcome.Partial = true
			break
		}
		budget--

		state := stateOf(findings, working, cur)
		rule := e.table.SelectAction(state, ruleNames(queue))
		finding := firstOfRule(queue, rule)

		attempt, fixedParse := e.attempt(ctx, p, cur, working, finding)
		e.store.Record(attempt)

		if attempt.Applied {
			working = attempt.ResultText
			cur, findings, queue = e.rescan(ctx, working, fixedParse, rejected)
			attempt.ResultText = ""
			outcome.Accepted = append(outcome.Accepted, attempt)
		} else {
			rejected[findingKey(finding)] = true
			queue = withoutFinding(queue, finding)
			outcome.Rejected = append(outcome.Rejected, attempt)
			if attempt.Reason == models.RejectTimeout {
				outcome.Partial = true
			}
		}

		next := stateOf(findings, working, cur)
		e.table.Update(state, rule, e.table.Reward(attempt), next)

		if attempt.Reason == models.RejectTimeout {
			break
		}
	}

	if working != unit.Text {
		outcome.FinalText = working
	}
	e.store.RecordFile(outcome)
	return outcome
}

// attempt drives one candidate fix through the state machine:
// EditsGenerated, Applied, Validated, Scored, then Accepted or
// Rejected. On acceptance it also returns the validated parse of the
// fixed text so the caller never parses the same content twice.
func (e *Executor) attempt(ctx context.Context, p *parser.Parser, cur *parser.Result, working string, finding models.Finding) (models.FixAttempt, *parser.Result) {
	started := time.Now()
	attempt := models.FixAttempt{
		Rule:    finding.Rule,
		Path:    finding.Path,
		Finding: finding,
		State:   models.StateEditsGenerated,
	}

	set := finding.Fix()
	attempt.Edits = set

	fixed, err := edit.Apply(working, set)
	if err != nil {
		attempt.State = models.StateRejected
		attempt.Reason = models.RejectApplyConflict
		attempt.Duration = time.Since(started)
		var conflict *edit.Conflict
		if errors.As(err, &conflict) {
			log.Debug().Str("rule", finding.Rule).Str("path", finding.Path).
				Msg("edit set rejected: " + conflict.Error())
		} else {
			log.Debug().Err(err).Str("rule", finding.Rule).Str("path", finding.Path).
				Msg("edit set rejected")
		}
		return attempt, nil
	}
	attempt.State = models.StateApplied
	attempt.ResultText = fixed

	out, err := validate.Validate(ctx, p, cur, fixed)
	if err != nil {
		// Only context expiry reaches here; the validator itself
		// cannot fail.
		attempt.State = models.StateRejected
		attempt.Reason = models.RejectTimeout
		attempt.ResultText = ""
		attempt.Duration = time.Since(started)
		return attempt, nil
	}
	attempt.State = models.StateValidated
	attempt.Similarity = out.Similarity

	factors := score.Factors{
		ASTPreservation:  out.Similarity,
		SyntaxValid:      out.SyntaxValid,
		ChangeMinimality: edit.MinimalityRatio(set, len(working)),
		UnsafeIntroduced: e.scorer.IntroducesUnsafe(working, fixed),
	}
	attempt.Confidence = e.scorer.Score(factors)
	attempt.State = models.StateScored
	attempt.Duration = time.Since(started)

	switch {
	case !out.SyntaxValid:
		attempt.State = models.StateRejected
		attempt.Reason = models.RejectValidationFailure
		attempt.ResultText = ""
	case attempt.Confidence < e.threshold:
		attempt.State = models.StateRejected
		attempt.Reason = models.RejectConfidenceTooLow
		attempt.ResultText = ""
	default:
		attempt.State = models.StateAccepted
		attempt.Applied = true
	}

	log.Debug().
		Str("rule", attempt.Rule).
		Str("path", attempt.Path).
		Str("state", string(attempt.State)).
		Float64("confidence", attempt.Confidence).
		Msg("fix attempt finished")
	return attempt, out.Result
}

// rescan re-detects after an accepted fix; every later attempt must see
// the current text. The validator already parsed it, so the result is
// reused and seeded into the cache under the new content hash.
func (e *Executor) rescan(ctx context.Context, working string, fixedParse *parser.Result, rejected map[string]bool) (*parser.Result, []models.Finding, []models.Finding) {
	unit := models.NewSourceUnit(fixedParse.Path, []byte(working))
	cur, _, err := e.cache.GetOrParse(ctx, unit, func(context.Context, models.SourceUnit) (*parser.Result, error) {
		return fixedParse, nil
	})
	if err != nil {
		return nil, nil, nil
	}

	findings := e.detect.Detect(cur, working)

	var queue []models.Finding
	for _, f := range fixableOf(findings) {
		if rejected[findingKey(f)] {
			continue
		}
		queue = append(queue, f)
	}
	return cur, findings, queue
}

// stateOf discretizes the current file context for the scheduler.
func stateOf(findings []models.Finding, working string, cur *parser.Result) qlearn.State {
	cats := make([]models.Category, 0, len(findings))
	for _, f := range findings {
		cats = append(cats, f.Category)
	}

	depth := 0
	if cur != nil && cur.Tree != nil {
		depth = parser.MaxNestingDepth(cur.Tree.RootNode())
	}

	return qlearn.StateOf(qlearn.Features{
		Categories:   cats,
		SizeBytes:    len(working),
		NestingDepth: depth,
	})
}

func fixableOf(findings []models.Finding) []models.Finding {
	var out []models.Finding
	for _, f := range findings {
		if f.Fix != nil {
			out = append(out, f)
		}
	}
	return out
}

func ruleNames(findings []models.Finding) []string {
	seen := make(map[string]bool, len(findings))
	var out []string
	for _, f := range findings {
		if !seen[f.Rule] {
			seen[f.Rule] = true
			out = append(out, f.Rule)
		}
	}
	return out
}

func firstOfRule(findings []models.Finding, rule string) models.Finding {
	for _, f := range findings {
		if f.Rule == rule {
			return f
		}
	}
	return findings[0]
}

// findingKey identifies a rejected finding across re-detections, when
// offsets may have shifted: the rule plus the flagged text. Identical
// violations collapse to one key, so rejecting one skips its twins
// rather than re-attempting a fix that just failed.
func findingKey(f models.Finding) string {
	return f.Rule + "\x00" + f.Snippet
}

func withoutFinding(findings []models.Finding, target models.Finding) []models.Finding {
	key := findingKey(target)
	var out []models.Finding
	for _, f := range findings {
		if findingKey(f) == key {
			continue
		}
		out = append(out, f)
	}
	return out
}
