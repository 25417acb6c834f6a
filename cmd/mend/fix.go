package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/panbanda/mend/internal/cache"
	"github.com/panbanda/mend/internal/progress"
	"github.com/panbanda/mend/internal/report"
	"github.com/panbanda/mend/internal/vcs"
	"github.com/panbanda/mend/pkg/engine"
)

func fixCmd() *cli.Command {
	return &cli.Command{
		Name:      "fix",
		Usage:     "Detect violations and apply validated fixes",
		ArgsUsage: "[path...]",
		Description: `Runs the full pipeline: parse, detect, edit, re-parse, score. Fixes
that validate and clear the confidence threshold are accepted. Without
--write nothing touches disk; the report shows what would change.`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "write",
				Aliases: []string{"w"},
				Usage:   "Write accepted fixes back to the source files",
			},
			&cli.BoolFlag{
				Name:  "backup",
				Usage: "Keep the original next to each written file as <name>.orig",
			},
			&cli.BoolFlag{
				Name:  "allow-dirty",
				Usage: "Write files that have uncommitted VCS modifications",
			},
			&cli.Float64Flag{
				Name:    "threshold",
				Aliases: []string{"t"},
				Usage:   "Override the confidence threshold (0 to 1)",
			},
			&cli.StringSliceFlag{
				Name:  "rules",
				Usage: "Limit the run to the named rules",
			},
		},
		Action: runFixCmd,
	}
}

func runFixCmd(c *cli.Context) error {
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

	sess := svc.NewSession(runOverrides(c))

	tracker := progress.NewTracker("Remediating...", len(files))
	ctx := engine.WithTracker(context.Background(), engine.NewTracker(
		func(current, total int, path string) { tracker.Tick() },
	))
	res, err := sess.Run(ctx, files)
	if err != nil {
		tracker.FinishError(err)
		return fmt.Errorf("remediation failed: %w", err)
	}
	tracker.FinishSuccess()

	write := c.Bool("write")
	var written []string
	var writeErr error
	if write {
		written, writeErr = sess.WriteBack(res, c.Bool("backup"), c.Bool("allow-dirty"))
		// Written files leave scan cache entries keyed to their old
		// contents; drop them so the cache does not accumulate dead
		// entries. A missing cache dir means nothing to invalidate.
		if _, serr := os.Stat(scanCacheDir()); serr == nil && !c.Bool("no-cache") {
			if store, cerr := cache.New(scanCacheDir(), cfg.Cache.TTL, true); cerr == nil {
				for _, path := range written {
					_ = store.InvalidateFindings(path)
				}
			}
		}
	}

	if err := sess.SaveLearning(); err != nil {
		log.Warn().Err(err).Msg("scheduler table not persisted")
	}

	var revision string
	if ref, rerr := vcs.GetCurrentRef("."); rerr == nil {
		revision = ref
	}
	summary := report.Build(res, sess.Store(), report.Options{
		Version:  version,
		Revision: revision,
		Paths:    paths,
		DryRun:   !write,
	})
	if err := formatter.Output(summary); err != nil {
		return err
	}

	if !write {
		if summary.Fixes.Accepted > 0 {
			color.Cyan("Dry run only. Re-run with --write to apply %d fix(es).", summary.Fixes.Accepted)
		}
		return nil
	}
	if writeErr != nil {
		color.Yellow("Wrote %d file(s) before failing", len(written))
		return fmt.Errorf("write-back incomplete: %w", writeErr)
	}
	color.Green("Wrote %d file(s)", len(written))
	return nil
}
