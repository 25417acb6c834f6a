package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/panbanda/mend/internal/cache"
	"github.com/panbanda/mend/internal/output"
	"github.com/panbanda/mend/internal/progress"
	"github.com/panbanda/mend/internal/service/remediation"
	"github.com/panbanda/mend/pkg/engine"
	"github.com/panbanda/mend/pkg/models"
)

func scanCmd() *cli.Command {
	return &cli.Command{
		Name:      "scan",
		Aliases:   []string{"s"},
		Usage:     "Detect rule violations without changing any file",
		ArgsUsage: "[path...]",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:  "rules",
				Usage: "Limit detection to the named rules",
			},
		},
		Action: runScanCmd,
	}
}

// scanItem is one finding flattened for serialization.
type scanItem struct {
	Path     string `json:"path"`
	Line     uint32 `json:"line"`
	Rule     string `json:"rule"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
	Fixable  bool   `json:"fixable"`
}

type scanPayload struct {
	Files        int        `json:"files"`
	Cached       int        `json:"cached"`
	Findings     int        `json:"findings"`
	Fixable      int        `json:"fixable"`
	Unanalyzable []string   `json:"unanalyzable,omitempty"`
	Items        []scanItem `json:"items"`
}

func runScanCmd(c *cli.Context) error {
	paths := getPaths(c)

	svc, err := newService(c)
	if err != nil {
		return err
	}
	cfg := svc.Config()

	formatter, err := newFormatter(c, cfg)
	if err != nil {
		return err
	}
	defer formatter.Close()

	files, err := svc.Files(paths)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		color.Yellow("No supported source files found")
		return nil
	}

	// A rule-filtered scan is never cached: caching its partial
	// findings would poison later unfiltered scans.
	ruleFilter := c.StringSlice("rules")
	cacheEnabled := !c.Bool("no-cache") && len(ruleFilter) == 0
	store, err := cache.New(scanCacheDir(), cfg.Cache.TTL, cacheEnabled)
	if err != nil {
		return fmt.Errorf("failed to open findings cache: %w", err)
	}

	findings := make(map[string][]models.Finding, len(files))
	hashes := make(map[string]string, len(files))
	var misses []string
	cached := 0
	probe := progress.NewSpinner("Checking cached results...")
	for _, path := range files {
		hash, herr := cache.HashFile(path)
		if herr != nil {
			// Unreadable files still go through the engine so they
			// surface as unanalyzable outcomes.
			misses = append(misses, path)
			continue
		}
		hashes[path] = hash
		if hit, ok := store.GetFindings(path, hash); ok {
			findings[path] = hit
			cached++
			continue
		}
		misses = append(misses, path)
	}
	if len(misses) == 0 {
		probe.FinishSkipped("all results cached")
	} else {
		probe.FinishSuccess()
	}

	var unanalyzable []string
	if len(misses) > 0 {
		sess := svc.NewSession(remediation.RunOverrides{Rules: ruleFilter})

		tracker := progress.NewTracker("Scanning...", len(misses))
		ctx := engine.WithTracker(context.Background(), engine.NewTracker(
			func(current, total int, path string) { tracker.Tick() },
		))
		res, err := sess.Scan(ctx, misses)
		if err != nil {
			tracker.FinishError(err)
			return fmt.Errorf("scan failed: %w", err)
		}
		tracker.FinishSuccess()

		for _, o := range res.Outcomes {
			if o.Unanalyzable {
				unanalyzable = append(unanalyzable, fmt.Sprintf("%s: %s", o.Path, o.Err))
				continue
			}
			findings[o.Path] = o.Findings
			if hash, ok := hashes[o.Path]; ok {
				_ = store.SetFindings(o.Path, hash, o.Findings)
			}
		}
	}

	payload := &scanPayload{Files: len(files), Cached: cached, Unanalyzable: unanalyzable}
	var rows [][]string
	for _, path := range files {
		items := findings[path]
		sort.SliceStable(items, func(i, j int) bool { return items[i].Line < items[j].Line })
		for _, f := range items {
			payload.Findings++
			if f.Fixable {
				payload.Fixable++
			}
			payload.Items = append(payload.Items, scanItem{
				Path:     path,
				Line:     f.Line,
				Rule:     f.Rule,
				Severity: string(f.Severity),
				Message:  f.Message,
				Fixable:  f.Fixable,
			})

			sev := string(f.Severity)
			if formatter.Colored() {
				sev = output.SeverityColor(sev, sev)
			}
			rows = append(rows, []string{
				fmt.Sprintf("%s:%d", path, f.Line),
				f.Rule,
				sev,
				truncate(f.Message, 60),
			})
		}
	}

	if payload.Findings == 0 && len(unanalyzable) == 0 &&
		formatter.Format() == output.FormatText && c.String("output") == "" {
		color.Green("No findings in %d file(s)", len(files))
		return nil
	}

	footer := []string{fmt.Sprintf(
		"%d finding(s), %d fixable, across %d file(s) (%d cached)",
		payload.Findings, payload.Fixable, len(files), cached,
	)}
	if n := len(unanalyzable); n > 0 {
		footer = append(footer, fmt.Sprintf("%d file(s) could not be analyzed", n))
	}

	table := output.NewTable(
		"Findings",
		[]string{"Location", "Rule", "Severity", "Message"},
		rows, footer, payload,
	)
	if err := formatter.Output(table); err != nil {
		return err
	}

	for _, u := range unanalyzable {
		color.Yellow("unanalyzable: %s", u)
	}
	return nil
}
