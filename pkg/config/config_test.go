package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg == nil {
		t.Fatal("DefaultConfig() returned nil")
	}

	// Check engine defaults
	if cfg.Engine.Workers != 0 {
		t.Errorf("Engine.Workers = %d, want 0", cfg.Engine.Workers)
	}
	if cfg.Engine.FileTimeout != 30 {
		t.Errorf("Engine.FileTimeout = %d, want 30", cfg.Engine.FileTimeout)
	}
	if cfg.Engine.ConfidenceThreshold != 0.7 {
		t.Errorf("Engine.ConfidenceThreshold = %f, want 0.7", cfg.Engine.ConfidenceThreshold)
	}

	// Check score defaults
	if cfg.Score.ASTPreservation != 0.35 {
		t.Errorf("Score.ASTPreservation = %f, want 0.35", cfg.Score.ASTPreservation)
	}
	if cfg.Score.SyntaxValidity != 0.35 {
		t.Errorf("Score.SyntaxValidity = %f, want 0.35", cfg.Score.SyntaxValidity)
	}
	if cfg.Score.ChangeMinimality != 0.20 {
		t.Errorf("Score.ChangeMinimality = %f, want 0.20", cfg.Score.ChangeMinimality)
	}
	if cfg.Score.SafetyPenalty != 0.30 {
		t.Errorf("Score.SafetyPenalty = %f, want 0.30", cfg.Score.SafetyPenalty)
	}

	// Check learning defaults
	if cfg.Learning.Alpha != 0.1 {
		t.Errorf("Learning.Alpha = %f, want 0.1", cfg.Learning.Alpha)
	}
	if cfg.Learning.Gamma != 0.9 {
		t.Errorf("Learning.Gamma = %f, want 0.9", cfg.Learning.Gamma)
	}
	if cfg.Learning.Epsilon != 0.2 {
		t.Errorf("Learning.Epsilon = %f, want 0.2", cfg.Learning.Epsilon)
	}

	// Check cache defaults
	if cfg.Cache.Capacity != 1024 {
		t.Errorf("Cache.Capacity = %d, want 1024", cfg.Cache.Capacity)
	}
	if cfg.Cache.TTL != 900 {
		t.Errorf("Cache.TTL = %d, want 900", cfg.Cache.TTL)
	}

	// Check exclude defaults
	if !cfg.Exclude.Gitignore {
		t.Error("Exclude.Gitignore should be true by default")
	}
	if len(cfg.Exclude.Dirs) == 0 {
		t.Error("Exclude.Dirs should have default values")
	}

	// Check output defaults
	if cfg.Output.Format != "text" {
		t.Errorf("Output.Format = %s, want text", cfg.Output.Format)
	}
	if !cfg.Output.Color {
		t.Error("Output.Color should be true by default")
	}
}

func TestScoreConfigWeights(t *testing.T) {
	cfg := DefaultConfig()
	w := cfg.Score.Weights()

	if w.ASTPreservation != cfg.Score.ASTPreservation {
		t.Errorf("Weights().ASTPreservation = %f, want %f", w.ASTPreservation, cfg.Score.ASTPreservation)
	}
	if w.SafetyPenalty != cfg.Score.SafetyPenalty {
		t.Errorf("Weights().SafetyPenalty = %f, want %f", w.SafetyPenalty, cfg.Score.SafetyPenalty)
	}
}

func TestLoadTOML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "mend.toml")

	content := `
[engine]
workers = 4
confidence_threshold = 0.8

[score]
safety_penalty = 0.5
deny_patterns = ["\\bcurl\\s+.*\\|\\s*sh"]

[learning]
alpha = 0.2
table_path = ".mend/qtable.json"

[rules]
disabled = ["satd-comment"]

[output]
format = "json"
`

	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Engine.Workers != 4 {
		t.Errorf("Engine.Workers = %d, want 4", cfg.Engine.Workers)
	}
	if cfg.Engine.ConfidenceThreshold != 0.8 {
		t.Errorf("Engine.ConfidenceThreshold = %f, want 0.8", cfg.Engine.ConfidenceThreshold)
	}
	if cfg.Score.SafetyPenalty != 0.5 {
		t.Errorf("Score.SafetyPenalty = %f, want 0.5", cfg.Score.SafetyPenalty)
	}
	if len(cfg.Score.DenyPatterns) != 1 {
		t.Errorf("Score.DenyPatterns has %d entries, want 1", len(cfg.Score.DenyPatterns))
	}
	if cfg.Learning.Alpha != 0.2 {
		t.Errorf("Learning.Alpha = %f, want 0.2", cfg.Learning.Alpha)
	}
	if cfg.Learning.TablePath != ".mend/qtable.json" {
		t.Errorf("Learning.TablePath = %q", cfg.Learning.TablePath)
	}
	if len(cfg.Rules.Disabled) != 1 || cfg.Rules.Disabled[0] != "satd-comment" {
		t.Errorf("Rules.Disabled = %v", cfg.Rules.Disabled)
	}
	if cfg.Output.Format != "json" {
		t.Errorf("Output.Format = %s, want json", cfg.Output.Format)
	}

	// Untouched sections keep their defaults.
	if cfg.Cache.Capacity != 1024 {
		t.Errorf("Cache.Capacity = %d, want default 1024", cfg.Cache.Capacity)
	}
	if cfg.Score.ASTPreservation != 0.35 {
		t.Errorf("Score.ASTPreservation = %f, want default 0.35", cfg.Score.ASTPreservation)
	}
}

func TestLoadYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "mend.yaml")

	content := `
engine:
  workers: 2
  file_timeout: 60

cache:
  capacity: 64
  ttl: 120

output:
  format: markdown
`

	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Engine.Workers != 2 {
		t.Errorf("Engine.Workers = %d, want 2", cfg.Engine.Workers)
	}
	if cfg.Engine.FileTimeout != 60 {
		t.Errorf("Engine.FileTimeout = %d, want 60", cfg.Engine.FileTimeout)
	}
	if cfg.Cache.Capacity != 64 {
		t.Errorf("Cache.Capacity = %d, want 64", cfg.Cache.Capacity)
	}
	if cfg.Output.Format != "markdown" {
		t.Errorf("Output.Format = %s, want markdown", cfg.Output.Format)
	}
}

func TestLoadJSON(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "mend.json")

	content := `{
  "engine": {
    "confidence_threshold": 0.9
  },
  "vcs": {
    "allow_dirty": true
  }
}`

	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Engine.ConfidenceThreshold != 0.9 {
		t.Errorf("Engine.ConfidenceThreshold = %f, want 0.9", cfg.Engine.ConfidenceThreshold)
	}
	if !cfg.VCS.AllowDirty {
		t.Error("VCS.AllowDirty should be true")
	}
}

func TestLoadNonExistentFile(t *testing.T) {
	_, err := Load("/nonexistent/path/mend.toml")
	if err == nil {
		t.Error("Load() should return error for non-existent file")
	}
}

func TestLoadInvalidFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "mend.toml")

	// Invalid TOML
	content := `[engine
invalid toml`

	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() should return error for invalid config")
	}
}

func TestLoadRejectsUnknownSection(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "mend.toml")

	// "engne" is a typo for "engine"; schema validation should catch it
	// instead of silently applying defaults.
	content := `
[engne]
workers = 4
`

	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() should reject unknown sections")
	}
}

func TestLoadRejectsOutOfRangeValues(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "mend.toml")

	tests := []struct {
		name    string
		content string
	}{
		{"threshold above one", "[engine]\nconfidence_threshold = 1.5\n"},
		{"negative workers", "[engine]\nworkers = -1\n"},
		{"alpha zero", "[learning]\nalpha = 0.0\n"},
		{"bad format", "[output]\nformat = \"xml\"\n"},
		{"unknown key", "[cache]\ncapcity = 10\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := os.WriteFile(configPath, []byte(tt.content), 0644); err != nil {
				t.Fatalf("Failed to write config file: %v", err)
			}
			if _, err := Load(configPath); err == nil {
				t.Errorf("Load() should reject %s", tt.name)
			}
		})
	}
}

func TestLoadOrDefault(t *testing.T) {
	// In a directory without config files, should return defaults
	tmpDir := t.TempDir()
	oldWd, _ := os.Getwd()
	defer os.Chdir(oldWd)

	if err := os.Chdir(tmpDir); err != nil {
		t.Fatalf("Failed to change directory: %v", err)
	}

	cfg := LoadOrDefault()
	if cfg == nil {
		t.Fatal("LoadOrDefault() returned nil")
	}

	// Should have default values
	if cfg.Engine.ConfidenceThreshold != 0.7 {
		t.Errorf("LoadOrDefault() returned non-default threshold: %f", cfg.Engine.ConfidenceThreshold)
	}
}

func TestLoadOrDefaultWithConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	oldWd, _ := os.Getwd()
	defer os.Chdir(oldWd)

	// Create config file
	content := `
[engine]
workers = 7
`
	if err := os.WriteFile(filepath.Join(tmpDir, "mend.toml"), []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	if err := os.Chdir(tmpDir); err != nil {
		t.Fatalf("Failed to change directory: %v", err)
	}

	cfg := LoadOrDefault()
	if cfg.Engine.Workers != 7 {
		t.Errorf("LoadOrDefault() should load from file, got Workers=%d", cfg.Engine.Workers)
	}
}

func TestShouldExclude(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		path string
		want bool
	}{
		// Excluded directories
		{"vendor/scripts/setup.sh", true},
		{"node_modules/pkg/index.js", true},
		{".git/hooks/pre-commit", true},
		{"__pycache__/util.cpython-312.pyc", true},

		// Excluded patterns
		{"app.min.js", true},
		{"vendor.bundle.js", true},

		// Excluded extensions
		{"Gemfile.lock", true},
		{"go.sum", true},

		// Not excluded
		{"deploy.sh", false},
		{"src/util/helper.py", false},
		{"app.js", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got := cfg.ShouldExclude(tt.path)
			if got != tt.want {
				t.Errorf("ShouldExclude(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestShouldExcludeCustomPatterns(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Exclude.Patterns = append(cfg.Exclude.Patterns, "*_generated.py", "*.pb.rb")
	cfg.Exclude.Dirs = append(cfg.Exclude.Dirs, "custom_exclude")

	tests := []struct {
		path string
		want bool
	}{
		{"model_generated.py", true},
		{"service.pb.rb", true},
		{"custom_exclude/file.py", true},
		{"main.py", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got := cfg.ShouldExclude(tt.path)
			if got != tt.want {
				t.Errorf("ShouldExclude(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestShouldExcludePathsWithSeparators(t *testing.T) {
	cfg := DefaultConfig()

	// Test paths with directory separators
	tests := []struct {
		path string
		want bool
	}{
		{filepath.Join("src", "vendor", "pkg", "file.rb"), true},
		{filepath.Join("vendor", "file.rb"), true},
		{filepath.Join("src", "main.rb"), false},
		{filepath.Join("pkg", "vendor_utils.rb"), false}, // "vendor" in name, not directory
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got := cfg.ShouldExclude(tt.path)
			if got != tt.want {
				t.Errorf("ShouldExclude(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}
