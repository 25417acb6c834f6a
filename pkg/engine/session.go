package engine

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/panbanda/mend/internal/fileproc"
	"github.com/panbanda/mend/pkg/astcache"
	"github.com/panbanda/mend/pkg/metrics"
	"github.com/panbanda/mend/pkg/models"
	"github.com/panbanda/mend/pkg/parser"
	"github.com/panbanda/mend/pkg/qlearn"
	"github.com/panbanda/mend/pkg/rules"
	"github.com/panbanda/mend/pkg/score"
	"github.com/panbanda/mend/pkg/source"
)

// Session defaults. All of them are configurable.
const (
	DefaultCacheCapacity = 1024
	DefaultCacheTTL      = 15 * time.Minute
	DefaultFileTimeout   = 30 * time.Second
)

// Session owns the state shared by every worker in one remediation run:
// the parse cache, the detector set, the scorer, the learned scheduler,
// and the metrics store. Workers own only their parser.
type Session struct {
	cache  *astcache.Cache
	detect *rules.Engine
	scorer *score.Scorer
	table  *qlearn.Table
	store  *metrics.Store
	src    source.ContentSource

	workers     int
	fileTimeout time.Duration
	threshold   float64
}

// Option is a functional option for configuring Session.
type Option func(*Session)

// WithWorkers sets the worker pool size (0 = 2x NumCPU).
func WithWorkers(n int) Option {
	return func(s *Session) {
		s.workers = n
	}
}

// WithFileTimeout sets the per-file processing deadline (0 = no limit).
func WithFileTimeout(d time.Duration) Option {
	return func(s *Session) {
		s.fileTimeout = d
	}
}

// WithThreshold sets the confidence acceptance threshold.
func WithThreshold(t float64) Option {
	return func(s *Session) {
		s.threshold = t
	}
}

// WithSource sets where file content is read from.
func WithSource(src source.ContentSource) Option {
	return func(s *Session) {
		s.src = src
	}
}

// WithDetectors sets the detector set the session runs.
func WithDetectors(detectors []rules.Detector) Option {
	return func(s *Session) {
		s.detect = rules.NewEngine(detectors)
	}
}

// WithScorer replaces the default confidence scorer.
func WithScorer(sc *score.Scorer) Option {
	return func(s *Session) {
		s.scorer = sc
	}
}

// WithTable seeds the session with a pre-trained scheduler table, for
// cross-run persistence.
func WithTable(t *qlearn.Table) Option {
	return func(s *Session) {
		s.table = t
	}
}

// WithStore replaces the metrics store, letting callers aggregate
// outcomes across several runs.
func WithStore(st *metrics.Store) Option {
	return func(s *Session) {
		s.store = st
	}
}

// WithCache replaces the default parse cache.
func WithCache(c *astcache.Cache) Option {
	return func(s *Session) {
		s.cache = c
	}
}

// New creates a session. Without options it runs every builtin default:
// filesystem source, empty scheduler table, default scorer and cache.
func New(opts ...Option) *Session {
	s := &Session{
		cache:       astcache.New(DefaultCacheCapacity, DefaultCacheTTL),
		detect:      rules.NewEngine(nil),
		scorer:      score.New(),
		table:       qlearn.New(),
		store:       metrics.NewStore(),
		src:         source.NewFilesystem(),
		fileTimeout: DefaultFileTimeout,
		threshold:   DefaultConfidenceThreshold,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Result is the aggregate of one session run.
type Result struct {
	// Outcomes holds one entry per input file, ordered by path.
	Outcomes []models.FileOutcome
	// Duration is the wall time of the run.
	Duration time.Duration
	// Errors collects processing failures, nil when every file was
	// handled. Files that parsed fatally are not errors; they appear as
	// unanalyzable outcomes.
	Errors *fileproc.ProcessingErrors
}

// Fixed returns the outcomes with at least one accepted fix.
func (r *Result) Fixed() []models.FileOutcome {
	var out []models.FileOutcome
	for _, o := range r.Outcomes {
		if o.Fixed() {
			out = append(out, o)
		}
	}
	return out
}

// Run remediates the given files through the worker pool and returns
// every file's outcome. Progress is tracked via context using
// engine.WithTracker. Fixed text is only returned, never written;
// use WriteResults for that.
func (s *Session) Run(ctx context.Context, files []string) (*Result, error) {
	return s.run(ctx, files, false)
}

// Scan detects findings without attempting any fix. Outcomes carry
// findings and diagnostics only.
func (s *Session) Scan(ctx context.Context, files []string) (*Result, error) {
	return s.run(ctx, files, true)
}

func (s *Session) run(ctx context.Context, files []string, detectOnly bool) (*Result, error) {
	started := time.Now()
	tracker := TrackerFromContext(ctx)
	if tracker != nil {
		tracker.Add(len(files))
	}

	exec := NewExecutor(s.cache, s.detect, s.scorer, s.table, s.store, s.threshold)

	outcomes, errs := fileproc.MapFilesWithContextN(ctx, files, s.workers,
		func(ctx context.Context, psr *parser.Parser, path string) (models.FileOutcome, error) {
			outcome := s.processOne(ctx, exec, psr, path, detectOnly)
			if tracker != nil {
				tracker.Tick(path)
			}
			return outcome, nil
		}, nil)

	sort.Slice(outcomes, func(i, j int) bool {
		return outcomes[i].Path < outcomes[j].Path
	})

	return &Result{
		Outcomes: outcomes,
		Duration: time.Since(started),
		Errors:   errs,
	}, nil
}

// processOne handles one file end to end. IO and parse failures land on
// the outcome, never as returned errors, so a bad file cannot abort the
// batch.
func (s *Session) processOne(ctx context.Context, exec *Executor, psr *parser.Parser, path string, detectOnly bool) models.FileOutcome {
	content, err := s.src.Read(path)
	if err != nil {
		log.Debug().Err(err).Str("path", path).Msg("read failed")
		outcome := models.FileOutcome{Path: path, Unanalyzable: true, Err: err.Error()}
		s.store.RecordFile(outcome)
		return outcome
	}
	unit := models.NewSourceUnit(path, content)

	if s.fileTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.fileTimeout)
		defer cancel()
	}

	if detectOnly {
		return s.detectOne(ctx, psr, unit)
	}
	return exec.ProcessFile(ctx, psr, unit)
}

// detectOne is the scan path: parse and detect, no fix loop.
func (s *Session) detectOne(ctx context.Context, psr *parser.Parser, unit models.SourceUnit) models.FileOutcome {
	outcome := models.FileOutcome{Path: unit.Path, Hash: unit.Hash}

	res, _, err := s.cache.GetOrParse(ctx, unit, func(ctx context.Context, u models.SourceUnit) (*parser.Result, error) {
		return psr.Parse(ctx, []byte(u.Text), parser.DetectLanguage(u.Path), u.Path)
	})
	if err != nil {
		outcome.Unanalyzable = true
		outcome.Err = err.Error()
		s.store.RecordFile(outcome)
		return outcome
	}
	outcome.Language = string(res.Language)
	outcome.Diagnostics = res.Diagnostics

	if res.Fatal {
		outcome.Unanalyzable = true
		outcome.Err = "fatal parse error"
		s.store.RecordFile(outcome)
		return outcome
	}

	outcome.Findings = s.detect.Detect(res, unit.Text)
	s.store.RecordFile(outcome)
	return outcome
}

// DirtyFunc reports whether a path has uncommitted modifications. Wired
// from the vcs layer by the caller; nil means no dirty checking.
type DirtyFunc func(path string) bool

// WriteOptions controls the write-back step.
type WriteOptions struct {
	// Backup copies the original to <path>.orig before rewriting.
	Backup bool
	// AllowDirty rewrites files with uncommitted modifications. When
	// false and Dirty reports true, the file is skipped.
	AllowDirty bool
	// Dirty is consulted per file unless AllowDirty is set.
	Dirty DirtyFunc
}

// WriteResults writes accepted final texts back to disk and returns the
// paths written. Dry-run is the default everywhere else; only this call
// mutates files. A failed write skips the file and is reported in the
// returned error alongside the successes.
func (s *Session) WriteResults(res *Result, opts WriteOptions) ([]string, error) {
	var written []string
	errs := &fileproc.ProcessingErrors{}

	for _, o := range res.Outcomes {
		if !o.Fixed() || o.FinalText == "" {
			continue
		}
		if !opts.AllowDirty && opts.Dirty != nil && opts.Dirty(o.Path) {
			log.Warn().Str("path", o.Path).Msg("skipping dirty file; use --allow-dirty to override")
			continue
		}

		info, err := os.Stat(o.Path)
		if err != nil {
			errs.Add(o.Path, err)
			continue
		}
		if opts.Backup {
			original, err := os.ReadFile(o.Path)
			if err != nil {
				errs.Add(o.Path, err)
				continue
			}
			if err := os.WriteFile(o.Path+".orig", original, info.Mode().Perm()); err != nil {
				errs.Add(o.Path, fmt.Errorf("backup: %w", err))
				continue
			}
		}
		if err := os.WriteFile(o.Path, []byte(o.FinalText), info.Mode().Perm()); err != nil {
			errs.Add(o.Path, err)
			continue
		}
		written = append(written, o.Path)
	}

	if errs.HasErrors() {
		return written, errs
	}
	return written, nil
}

// Table exposes the scheduler table for export and persistence.
func (s *Session) Table() *qlearn.Table {
	return s.table
}

// Store exposes the metrics store for reporting.
func (s *Session) Store() *metrics.Store {
	return s.store
}

// CacheStats reports parse cache effectiveness for the run.
func (s *Session) CacheStats() astcache.Stats {
	return s.cache.Stats()
}
