// Package remediation wires configuration into engine sessions. It is
// the orchestration layer shared by the CLI, the MCP server, and the
// watcher: target resolution, detector selection, scorer weights,
// scheduler persistence, and write-back protection.
package remediation

import (
	"errors"
	"io/fs"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/panbanda/mend/internal/locator"
	"github.com/panbanda/mend/internal/scanner"
	"github.com/panbanda/mend/internal/vcs"
	"github.com/panbanda/mend/pkg/astcache"
	"github.com/panbanda/mend/pkg/config"
	"github.com/panbanda/mend/pkg/engine"
	"github.com/panbanda/mend/pkg/qlearn"
	"github.com/panbanda/mend/pkg/rules"
	"github.com/panbanda/mend/pkg/rules/catalog"
	"github.com/panbanda/mend/pkg/score"
)

// Service builds configured remediation runs.
type Service struct {
	config   *config.Config
	registry *rules.Registry
}

// Option configures a Service.
type Option func(*Service)

// WithConfig sets the configuration.
func WithConfig(cfg *config.Config) Option {
	return func(s *Service) {
		if cfg != nil {
			s.config = cfg
		}
	}
}

// WithRegistry replaces the builtin detector registry.
func WithRegistry(r *rules.Registry) Option {
	return func(s *Service) {
		s.registry = r
	}
}

// New creates a service. Without options it loads the nearest config
// file and uses the builtin detector catalog.
func New(opts ...Option) *Service {
	s := &Service{
		config:   config.LoadOrDefault(),
		registry: catalog.Registry(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Config exposes the effective configuration.
func (s *Service) Config() *config.Config {
	return s.config
}

// Files resolves CLI targets (paths, globs, bare filenames) into
// supported source files using the configured exclusions. No targets
// means the current directory.
func (s *Service) Files(targets []string) ([]string, error) {
	if len(targets) == 0 {
		targets = []string{"."}
	}
	return locator.Resolve(targets, scanner.NewScanner(s.config))
}

// RunOverrides are per-call adjustments on top of the configuration,
// zero values meaning "use the config".
type RunOverrides struct {
	// Threshold replaces engine.confidence_threshold when in (0, 1].
	Threshold float64
	// Rules narrows the detector set to the named rules.
	Rules []string
}

// NewSession builds an engine session from the configuration: detector
// selection, scorer weights, per-file deadline, worker count, cache
// sizing, and a scheduler table restored from learning.table_path when
// that file exists. Extra options are applied last and win.
func (s *Service) NewSession(over RunOverrides, extra ...engine.Option) *Session {
	cfg := s.config

	enabled := cfg.Rules.Enabled
	if len(over.Rules) > 0 {
		enabled = over.Rules
	}
	detectors := s.registry.Select(enabled, cfg.Rules.Disabled)

	threshold := cfg.Engine.ConfidenceThreshold
	if over.Threshold > 0 && over.Threshold <= 1 {
		threshold = over.Threshold
	}

	opts := []engine.Option{
		engine.WithDetectors(detectors),
		engine.WithThreshold(threshold),
		engine.WithWorkers(cfg.Engine.Workers),
		engine.WithFileTimeout(time.Duration(cfg.Engine.FileTimeout) * time.Second),
		engine.WithScorer(score.New(
			score.WithWeights(cfg.Score.Weights()),
			score.WithDenyPatterns(cfg.Score.DenyPatterns...),
		)),
		engine.WithCache(astcache.New(cfg.Cache.Capacity, time.Duration(cfg.Cache.TTL)*time.Second)),
		engine.WithTable(s.NewTable()),
	}
	opts = append(opts, extra...)

	return &Session{Session: engine.New(opts...), svc: s}
}

// NewTable builds a scheduler table with the configured learning
// parameters, restored from learning.table_path when that file exists.
func (s *Service) NewTable() *qlearn.Table {
	cfg := s.config
	table := qlearn.New(
		qlearn.WithAlpha(cfg.Learning.Alpha),
		qlearn.WithGamma(cfg.Learning.Gamma),
		qlearn.WithEpsilon(cfg.Learning.Epsilon, cfg.Learning.EpsilonMin, cfg.Learning.EpsilonDecay),
	)
	if path := cfg.Learning.TablePath; path != "" {
		if err := table.LoadFile(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			log.Warn().Err(err).Str("path", path).Msg("scheduler table not restored")
		}
	}
	return table
}

// Session couples an engine session with the service it came from so
// persistence and write-back pick up the same configuration.
type Session struct {
	*engine.Session
	svc *Service
}

// SaveLearning persists the scheduler table to learning.table_path.
// A session without a configured path is a no-op.
func (s *Session) SaveLearning() error {
	path := s.svc.config.Learning.TablePath
	if path == "" {
		return nil
	}
	return s.Table().SaveFile(path)
}

// WriteBack writes accepted fixes to disk. Files with uncommitted
// modifications are skipped unless allowed by flag or config; outside
// a repository every file counts as clean.
func (s *Session) WriteBack(res *engine.Result, backup, allowDirty bool) ([]string, error) {
	opts := engine.WriteOptions{
		Backup:     backup,
		AllowDirty: allowDirty || s.svc.config.VCS.AllowDirty,
	}
	if !opts.AllowDirty {
		checker, err := vcs.NewDirtyChecker(".")
		if err == nil {
			opts.Dirty = checker.Check
		} else {
			log.Debug().Err(err).Msg("no repository found, dirty check skipped")
		}
	}
	return s.Session.WriteResults(res, opts)
}

// RuleInfo is one row of the rule listing.
type RuleInfo struct {
	Name        string `json:"name"`
	Category    string `json:"category"`
	Description string `json:"description,omitempty"`
	Enabled     bool   `json:"enabled"`
}

// Rules lists every registered rule with its configured state.
func (s *Service) Rules() []RuleInfo {
	selected := make(map[string]bool)
	for _, d := range s.registry.Select(s.config.Rules.Enabled, s.config.Rules.Disabled) {
		selected[d.Name()] = true
	}

	var out []RuleInfo
	for _, name := range s.registry.Names() {
		d, _ := s.registry.Get(name)
		out = append(out, RuleInfo{
			Name:        name,
			Category:    string(d.Category()),
			Description: rules.Describe(d),
			Enabled:     selected[name],
		})
	}
	return out
}
