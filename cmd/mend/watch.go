package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/panbanda/mend/pkg/engine"
	"github.com/panbanda/mend/pkg/metrics"
	"github.com/panbanda/mend/pkg/watch"
)

func watchCmd() *cli.Command {
	return &cli.Command{
		Name:      "watch",
		Usage:     "Watch for file changes and remediate on save",
		ArgsUsage: "[path]",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "debounce",
				Value: 500 * time.Millisecond,
				Usage: "Quiet period before a changed file is processed",
			},
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
		Action: runWatchCmd,
	}
}

func runWatchCmd(c *cli.Context) error {
	paths := getPaths(c)
	absPath, err := filepath.Abs(paths[0])
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}

	svc, err := newService(c)
	if err != nil {
		return err
	}
	cfg := svc.Config()

	// One table and one store span every change, so the scheduler keeps
	// learning across saves instead of starting cold each time.
	table := svc.NewTable()
	store := metrics.NewStore()
	over := runOverrides(c)
	write := c.Bool("write")
	backup := c.Bool("backup")
	allowDirty := c.Bool("allow-dirty")

	watcher, err := watch.NewWatcher(absPath, cfg, c.Duration("debounce"))
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Stop()

	var mu sync.Mutex // one remediation run at a time
	watcher.SetCallback(func(changed string) {
		mu.Lock()
		defer mu.Unlock()

		display := changed
		if rel, rerr := filepath.Rel(absPath, changed); rerr == nil {
			display = rel
		}
		fmt.Printf("\n%s\n", display)

		sess := svc.NewSession(over, engine.WithTable(table), engine.WithStore(store))
		res, err := sess.Run(context.Background(), []string{changed})
		if err != nil {
			color.Red("  remediation error: %v", err)
			return
		}

		accepted := 0
		for _, o := range res.Outcomes {
			switch {
			case o.Unanalyzable:
				color.Red("  unanalyzable: %s", o.Err)
			case len(o.Findings) == 0:
				color.Green("  clean")
			default:
				color.Yellow("  %d finding(s): %d fixed, %d rejected",
					len(o.Findings), len(o.Accepted), len(o.Rejected))
				for _, a := range o.Accepted {
					fmt.Printf("    line %d: %s (confidence %.2f)\n",
						a.Finding.Line, a.Rule, a.Confidence)
				}
			}
			accepted += len(o.Accepted)
		}

		if write && accepted > 0 {
			written, werr := sess.WriteBack(res, backup, allowDirty)
			if werr != nil {
				color.Red("  write failed: %v", werr)
			}
			for _, path := range written {
				color.Green("  wrote %s", path)
			}
		} else if accepted > 0 {
			color.Cyan("  dry run: pass --write to apply")
		}
	})

	color.Cyan("Watching %s for changes (Ctrl+C to stop)", absPath)

	// Handle Ctrl+C
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nStopping watch...")
		cancel()
	}()

	err = watcher.Start(ctx)

	if path := cfg.Learning.TablePath; path != "" {
		if serr := table.SaveFile(path); serr != nil {
			log.Warn().Err(serr).Msg("scheduler table not persisted")
		}
	}

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
