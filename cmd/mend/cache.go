package main

import (
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/panbanda/mend/internal/cache"
	"github.com/panbanda/mend/internal/output"
)

func cacheCmd() *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Inspect or clear the scan result cache",
		Subcommands: []*cli.Command{
			{
				Name:   "stats",
				Usage:  "Show cache size and entry ages",
				Action: runCacheStats,
			},
			{
				Name:   "clear",
				Usage:  "Remove all cached scan results",
				Action: runCacheClear,
			},
		},
	}
}

// openScanCache opens the cache for maintenance, ignoring --no-cache:
// inspecting or clearing a cache the run would skip is still valid. A
// project without a cache dir gets a disabled cache, not a fresh dir.
func openScanCache(c *cli.Context) (*cache.Cache, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(scanCacheDir()); err != nil {
		return cache.New("", 0, false)
	}
	return cache.New(scanCacheDir(), cfg.Cache.TTL, true)
}

func runCacheStats(c *cli.Context) error {
	store, err := openScanCache(c)
	if err != nil {
		return err
	}

	stats, err := store.GetStats()
	if err != nil {
		return fmt.Errorf("failed to read cache: %w", err)
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	formatter, err := newFormatter(c, cfg)
	if err != nil {
		return err
	}
	defer formatter.Close()

	content := fmt.Sprintf("Entries: %d\nSize: %d bytes", stats.Entries, stats.TotalSize)
	if stats.Entries > 0 {
		content += fmt.Sprintf(
			"\nOldest: %s ago\nNewest: %s ago",
			stats.OldestAge.Round(time.Second),
			stats.NewestAge.Round(time.Second),
		)
	}
	return formatter.Output(&output.Report{
		Title:    fmt.Sprintf("Scan Cache (%s)", scanCacheDir()),
		Data:     stats,
		Sections: []output.Renderable{&output.Section{Title: "Contents", Content: content}},
	})
}

func runCacheClear(c *cli.Context) error {
	store, err := openScanCache(c)
	if err != nil {
		return err
	}

	stats, err := store.GetStats()
	if err != nil {
		return fmt.Errorf("failed to read cache: %w", err)
	}
	if err := store.Clear(); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}

	color.Green("Cleared %d cached result(s) from %s", stats.Entries, scanCacheDir())
	return nil
}
