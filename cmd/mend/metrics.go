package main

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/panbanda/mend/internal/output"
	"github.com/panbanda/mend/internal/progress"
	"github.com/panbanda/mend/pkg/astcache"
	"github.com/panbanda/mend/pkg/engine"
	"github.com/panbanda/mend/pkg/metrics"
)

func metricsCmd() *cli.Command {
	return &cli.Command{
		Name:      "metrics",
		Usage:     "Measure per-rule fix performance with a dry run",
		ArgsUsage: "[path...]",
		Description: `Runs the full pipeline without writing anything and reports how each
rule performed: attempts, success rate, confidence, and timing. The
trend section regresses success rate over the course of the run.`,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "window",
				Value: 10,
				Usage: "Attempts per window for the trend regression",
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
		Action: runMetricsCmd,
	}
}

type metricsPayload struct {
	Snapshot  metrics.Snapshot       `json:"snapshot"`
	Top       []metrics.RuleSnapshot `json:"top_performers,omitempty"`
	Problems  []metrics.RuleSnapshot `json:"problem_rules,omitempty"`
	Trend     metrics.TrendStats     `json:"trend"`
	Scheduler schedulerState         `json:"scheduler"`
	Cache     astcache.Stats         `json:"parse_cache"`
}

type schedulerState struct {
	Epsilon float64 `json:"epsilon"`
	Entries int     `json:"entries"`
}

func runMetricsCmd(c *cli.Context) error {
	paths := getPaths(c)

	svc, err := newService(c)
	if err != nil {
		return err
	}

	formatter, err := newFormatter(c, svc.Config())
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

	tracker := progress.NewTracker("Measuring...", len(files))
	ctx := engine.WithTracker(context.Background(), engine.NewTracker(
		func(current, total int, path string) { tracker.Tick() },
	))
	if _, err := sess.Run(ctx, files); err != nil {
		tracker.FinishError(err)
		return fmt.Errorf("measurement run failed: %w", err)
	}
	tracker.FinishSuccess()

	store := sess.Store()
	payload := &metricsPayload{
		Snapshot: store.Snapshot(),
		Top:      store.TopPerformers(5),
		Problems: store.ProblemRules(5, 0.2),
		Trend:    store.Trend(c.Int("window")),
		Scheduler: schedulerState{
			Epsilon: sess.Table().Epsilon(),
			Entries: sess.Table().Len(),
		},
		Cache: sess.CacheStats(),
	}

	rep := &output.Report{Title: "Rule Metrics", Data: payload}

	snap := payload.Snapshot
	rep.Sections = append(rep.Sections, &output.Section{
		Title: "Totals",
		Content: fmt.Sprintf(
			"Files: %d processed, %d fixed, %d unanalyzable\nAttempts: %d (%.0f%% accepted)\nScheduler: epsilon %.3f, %d table entries\nParse cache: %d hits, %d misses",
			snap.FilesProcessed, snap.FilesFixed, snap.FilesUnanalyzable,
			snap.TotalAttempts, snap.SuccessRate*100,
			payload.Scheduler.Epsilon, payload.Scheduler.Entries,
			payload.Cache.Hits, payload.Cache.Misses,
		),
	})

	if len(snap.Rules) > 0 {
		rows := make([][]string, len(snap.Rules))
		for i, r := range snap.Rules {
			rows[i] = []string{
				r.Rule,
				fmt.Sprintf("%d", r.Attempts),
				fmt.Sprintf("%.0f%%", r.SuccessRate*100),
				fmt.Sprintf("%.2f", r.AvgConfidence),
				r.AvgDuration.Round(time.Microsecond).String(),
				store.DurationPercentile(r.Rule, 95).Round(time.Microsecond).String(),
			}
		}
		rep.Sections = append(rep.Sections, output.NewTable(
			"Per Rule",
			[]string{"Rule", "Attempts", "Success", "Avg Confidence", "Avg Duration", "p95"},
			rows, nil, nil,
		))
	}

	if len(payload.Problems) > 0 {
		rows := make([][]string, len(payload.Problems))
		for i, r := range payload.Problems {
			rows[i] = []string{
				r.Rule,
				fmt.Sprintf("%d", r.Attempts),
				fmt.Sprintf("%.0f%%", r.SuccessRate*100),
			}
		}
		rep.Sections = append(rep.Sections, output.NewTable(
			"Problem Rules (success below 20%)",
			[]string{"Rule", "Attempts", "Success"},
			rows, nil, nil,
		))
	}

	trend := payload.Trend
	if trend.Windows >= 2 {
		direction := "flat"
		switch {
		case trend.Slope > 0.01:
			direction = "improving"
		case trend.Slope < -0.01:
			direction = "declining"
		}
		rep.Sections = append(rep.Sections, &output.Section{
			Title: "Trend",
			Content: fmt.Sprintf(
				"%s (slope %+.4f per window, r-squared %.2f over %d windows)",
				direction, trend.Slope, trend.RSquared, trend.Windows,
			),
		})
	}

	return formatter.Output(rep)
}
