package main

import (
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/panbanda/mend/internal/output"
	"github.com/panbanda/mend/internal/service/remediation"
	"github.com/panbanda/mend/pkg/config"
)

// getPaths returns paths from positional args, defaulting to ["."]
func getPaths(c *cli.Context) []string {
	if c.Args().Len() > 0 {
		return c.Args().Slice()
	}
	return []string{"."}
}

// scanCacheDir is where scan results persist between runs, relative to
// the working directory so each project keeps its own cache.
func scanCacheDir() string {
	return filepath.Join(".mend", "cache")
}

// loadConfig honors --config, falling back to the standard search.
func loadConfig(c *cli.Context) (*config.Config, error) {
	if path := c.String("config"); path != "" {
		return config.Load(path)
	}
	return config.LoadOrDefault(), nil
}

// newService builds the remediation service from the CLI config.
func newService(c *cli.Context) (*remediation.Service, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	return remediation.New(remediation.WithConfig(cfg)), nil
}

// newFormatter builds the output formatter from the global flags.
func newFormatter(c *cli.Context, cfg *config.Config) (*output.Formatter, error) {
	colored := cfg.Output.Color && c.String("output") == ""
	return output.NewFormatter(output.ParseFormat(c.String("format")), c.String("output"), colored)
}

// runOverrides collects the per-run flags shared by fix-like commands.
func runOverrides(c *cli.Context) remediation.RunOverrides {
	return remediation.RunOverrides{
		Threshold: c.Float64("threshold"),
		Rules:     c.StringSlice("rules"),
	}
}

// truncate shortens a string to maxLen characters with ellipsis.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen < 4 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
