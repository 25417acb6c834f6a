// Package config loads mend configuration from TOML, YAML, or JSON
// files and validates the document against an embedded JSON schema, so
// a typoed section or out-of-range weight fails at startup instead of
// silently falling back to a default.
package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	kjson "github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/panbanda/mend/pkg/qlearn"
	"github.com/panbanda/mend/pkg/score"
)

//go:embed schema.json
var schemaJSON []byte

// Config holds all configuration options for mend. The toml tags keep
// the file written by `mend init` loadable by Load, whose schema
// validation rejects unknown keys.
type Config struct {
	// Engine controls the remediation pipeline.
	Engine EngineConfig `koanf:"engine" toml:"engine"`

	// Score controls confidence scoring.
	Score ScoreConfig `koanf:"score" toml:"score"`

	// Cache controls the in-memory AST cache.
	Cache CacheConfig `koanf:"cache" toml:"cache"`

	// Learning controls the adaptive rule scheduler.
	Learning LearningConfig `koanf:"learning" toml:"learning"`

	// Rules selects which detectors run.
	Rules RulesConfig `koanf:"rules" toml:"rules"`

	// VCS controls interaction with the enclosing git repository.
	VCS VCSConfig `koanf:"vcs" toml:"vcs"`

	// Output controls output formatting.
	Output OutputConfig `koanf:"output" toml:"output"`

	// Exclude defines file exclusion patterns.
	Exclude ExcludeConfig `koanf:"exclude" toml:"exclude"`
}

// EngineConfig controls the remediation pipeline.
type EngineConfig struct {
	Workers             int     `koanf:"workers" toml:"workers"`           // 0 = GOMAXPROCS
	FileTimeout         int     `koanf:"file_timeout" toml:"file_timeout"` // seconds
	ConfidenceThreshold float64 `koanf:"confidence_threshold" toml:"confidence_threshold"`
}

// ScoreConfig holds the confidence blend weights and extra denylist
// patterns appended to the builtin unsafe-construct list.
type ScoreConfig struct {
	ASTPreservation  float64  `koanf:"ast_preservation" toml:"ast_preservation"`
	SyntaxValidity   float64  `koanf:"syntax_validity" toml:"syntax_validity"`
	ChangeMinimality float64  `koanf:"change_minimality" toml:"change_minimality"`
	SafetyPenalty    float64  `koanf:"safety_penalty" toml:"safety_penalty"`
	DenyPatterns     []string `koanf:"deny_patterns" toml:"deny_patterns"`
}

// Weights converts the section into scorer weights.
func (s ScoreConfig) Weights() score.Weights {
	return score.Weights{
		ASTPreservation:  s.ASTPreservation,
		SyntaxValidity:   s.SyntaxValidity,
		ChangeMinimality: s.ChangeMinimality,
		SafetyPenalty:    s.SafetyPenalty,
	}
}

// CacheConfig controls the in-memory AST cache.
type CacheConfig struct {
	Capacity int `koanf:"capacity" toml:"capacity"`
	TTL      int `koanf:"ttl" toml:"ttl"` // seconds
}

// LearningConfig controls the Q-learning scheduler.
type LearningConfig struct {
	Alpha        float64 `koanf:"alpha" toml:"alpha"`
	Gamma        float64 `koanf:"gamma" toml:"gamma"`
	Epsilon      float64 `koanf:"epsilon" toml:"epsilon"`
	EpsilonMin   float64 `koanf:"epsilon_min" toml:"epsilon_min"`
	EpsilonDecay float64 `koanf:"epsilon_decay" toml:"epsilon_decay"`
	// TablePath persists the learned Q-values between sessions.
	// Empty disables persistence.
	TablePath string `koanf:"table_path" toml:"table_path"`
}

// RulesConfig selects detectors. An empty enabled list means all
// registered detectors; disabled always wins.
type RulesConfig struct {
	Enabled  []string `koanf:"enabled" toml:"enabled"`
	Disabled []string `koanf:"disabled" toml:"disabled"`
}

// VCSConfig controls interaction with git.
type VCSConfig struct {
	// AllowDirty permits writing fixes into files that already carry
	// uncommitted modifications.
	AllowDirty bool `koanf:"allow_dirty" toml:"allow_dirty"`
}

// OutputConfig controls output formatting.
type OutputConfig struct {
	Format string `koanf:"format" toml:"format"` // text, json, markdown
	Color  bool   `koanf:"color" toml:"color"`
}

// ExcludeConfig defines file exclusion patterns.
type ExcludeConfig struct {
	Patterns   []string `koanf:"patterns" toml:"patterns"`
	Extensions []string `koanf:"extensions" toml:"extensions"`
	Dirs       []string `koanf:"dirs" toml:"dirs"`
	Gitignore  bool     `koanf:"gitignore" toml:"gitignore"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	weights := score.DefaultWeights()
	return &Config{
		Engine: EngineConfig{
			Workers:             0,
			FileTimeout:         30,
			ConfidenceThreshold: 0.7,
		},
		Score: ScoreConfig{
			ASTPreservation:  weights.ASTPreservation,
			SyntaxValidity:   weights.SyntaxValidity,
			ChangeMinimality: weights.ChangeMinimality,
			SafetyPenalty:    weights.SafetyPenalty,
		},
		Cache: CacheConfig{
			Capacity: 1024,
			TTL:      900,
		},
		Learning: LearningConfig{
			Alpha:        qlearn.DefaultAlpha,
			Gamma:        qlearn.DefaultGamma,
			Epsilon:      qlearn.DefaultEpsilon,
			EpsilonMin:   qlearn.DefaultEpsilonMin,
			EpsilonDecay: qlearn.DefaultEpsilonDecay,
		},
		VCS: VCSConfig{
			AllowDirty: false,
		},
		Output: OutputConfig{
			Format: "text",
			Color:  true,
		},
		Exclude: ExcludeConfig{
			Patterns: []string{
				"*.min.js",
				"*.bundle.js",
			},
			Extensions: []string{
				".lock",
				".sum",
			},
			Dirs: []string{
				"vendor",
				"node_modules",
				".git",
				".mend",
				"dist",
				"build",
				"__pycache__",
			},
			Gitignore: true,
		},
	}
}

// Load loads configuration from a file.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	cfg := DefaultConfig()

	// Determine parser based on extension
	var parser koanf.Parser
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".toml":
		parser = toml.Parser()
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = kjson.Parser()
	default:
		parser = toml.Parser()
	}

	// Load the config file
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}

	// Reject unknown sections and out-of-range values before
	// unmarshaling, which would silently ignore them.
	if err := validateDocument(k.Raw()); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	// Unmarshal into config struct
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadOrDefault tries to load config from standard locations or returns defaults.
func LoadOrDefault() *Config {
	// Standard config file names to search for
	configNames := []string{
		"mend.toml",
		"mend.yaml",
		"mend.yml",
		"mend.json",
		".mend.toml",
		".mend.yaml",
		".mend.yml",
		".mend.json",
	}

	// Search in current directory and .mend directory
	searchDirs := []string{".", ".mend"}

	for _, dir := range searchDirs {
		for _, name := range configNames {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				cfg, err := Load(path)
				if err == nil {
					return cfg
				}
			}
		}
	}

	return DefaultConfig()
}

// validateDocument checks the raw loaded document against the embedded
// JSON schema. The document is round-tripped through JSON so TOML and
// YAML scalars validate under the same rules.
func validateDocument(raw map[string]any) error {
	doc, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(doc))
	if err != nil {
		return err
	}

	schemaDoc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaJSON))
	if err != nil {
		return err
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("mend.schema.json", schemaDoc); err != nil {
		return err
	}
	schema, err := compiler.Compile("mend.schema.json")
	if err != nil {
		return err
	}

	if err := schema.Validate(inst); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// ShouldExclude checks if a path should be excluded from remediation.
func (c *Config) ShouldExclude(path string) bool {
	// Check directory exclusions
	for _, dir := range c.Exclude.Dirs {
		if strings.Contains(path, string(filepath.Separator)+dir+string(filepath.Separator)) ||
			strings.HasPrefix(path, dir+string(filepath.Separator)) {
			return true
		}
	}

	// Check extension exclusions
	ext := filepath.Ext(path)
	for _, excludeExt := range c.Exclude.Extensions {
		if ext == excludeExt {
			return true
		}
	}

	// Check pattern exclusions
	base := filepath.Base(path)
	for _, pattern := range c.Exclude.Patterns {
		if matched, _ := filepath.Match(pattern, base); matched {
			return true
		}
	}

	return false
}
