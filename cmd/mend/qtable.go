package main

import (
	"fmt"
	"sort"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/panbanda/mend/internal/output"
	"github.com/panbanda/mend/pkg/qlearn"
)

func qtableCmd() *cli.Command {
	tableFlag := &cli.StringFlag{
		Name:  "table",
		Usage: "Path to the scheduler table (defaults to learning.table_path)",
	}
	return &cli.Command{
		Name:  "qtable",
		Usage: "Inspect or move the learned scheduler table",
		Subcommands: []*cli.Command{
			{
				Name:  "show",
				Usage: "Print learned state/rule values, highest first",
				Flags: []cli.Flag{
					tableFlag,
					&cli.IntFlag{
						Name:  "top",
						Value: 20,
						Usage: "Entries to show (0 for all)",
					},
				},
				Action: runQtableShow,
			},
			{
				Name:   "export",
				Usage:  "Write the table snapshot as JSON",
				Flags:  []cli.Flag{tableFlag},
				Action: runQtableExport,
			},
			{
				Name:      "import",
				Usage:     "Replace the stored table with a JSON snapshot",
				ArgsUsage: "<snapshot.json>",
				Flags:     []cli.Flag{tableFlag},
				Action:    runQtableImport,
			},
		},
	}
}

// qtablePath resolves --table against the configured persistence path.
func qtablePath(c *cli.Context) (string, error) {
	if path := c.String("table"); path != "" {
		return path, nil
	}
	cfg, err := loadConfig(c)
	if err != nil {
		return "", err
	}
	if cfg.Learning.TablePath == "" {
		return "", fmt.Errorf("no table path: set learning.table_path in the config or pass --table")
	}
	return cfg.Learning.TablePath, nil
}

func runQtableShow(c *cli.Context) error {
	path, err := qtablePath(c)
	if err != nil {
		return err
	}

	table := qlearn.New()
	if err := table.LoadFile(path); err != nil {
		return err
	}

	entries := table.Export()
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Value > entries[j].Value
	})
	if top := c.Int("top"); top > 0 && len(entries) > top {
		entries = entries[:top]
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

	rows := make([][]string, len(entries))
	for i, e := range entries {
		rows[i] = []string{string(e.State), e.Rule, fmt.Sprintf("%+.3f", e.Value)}
	}
	out := output.NewTable(
		fmt.Sprintf("Scheduler Table (%s)", path),
		[]string{"State", "Rule", "Value"},
		rows,
		[]string{fmt.Sprintf("%d entries", len(rows))},
		struct {
			Entries []qlearn.Entry `json:"entries"`
		}{entries},
	)
	return formatter.Output(out)
}

func runQtableExport(c *cli.Context) error {
	path, err := qtablePath(c)
	if err != nil {
		return err
	}

	table := qlearn.New()
	if err := table.LoadFile(path); err != nil {
		return err
	}

	if out := c.String("output"); out != "" {
		if err := table.SaveFile(out); err != nil {
			return err
		}
		color.Green("Exported %d entries to %s", len(table.Export()), out)
		return nil
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
	return formatter.Output(struct {
		Entries []qlearn.Entry `json:"entries"`
	}{table.Export()})
}

func runQtableImport(c *cli.Context) error {
	if c.Args().Len() != 1 {
		return fmt.Errorf("usage: mend qtable import <snapshot.json>")
	}
	src := c.Args().First()

	dst, err := qtablePath(c)
	if err != nil {
		return err
	}

	table := qlearn.New()
	if err := table.LoadFile(src); err != nil {
		return err
	}
	if err := table.SaveFile(dst); err != nil {
		return err
	}
	color.Green("Imported %d entries into %s", len(table.Export()), dst)
	return nil
}
