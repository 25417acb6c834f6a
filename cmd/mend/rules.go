package main

import (
	"github.com/urfave/cli/v2"

	"github.com/panbanda/mend/internal/output"
	"github.com/panbanda/mend/internal/service/remediation"
)

func rulesCmd() *cli.Command {
	return &cli.Command{
		Name:   "rules",
		Usage:  "List registered rules and whether they are enabled",
		Action: runRulesCmd,
	}
}

func runRulesCmd(c *cli.Context) error {
	svc, err := newService(c)
	if err != nil {
		return err
	}

	formatter, err := newFormatter(c, svc.Config())
	if err != nil {
		return err
	}
	defer formatter.Close()

	infos := svc.Rules()
	rows := make([][]string, len(infos))
	for i, info := range infos {
		enabled := "yes"
		if !info.Enabled {
			enabled = "no"
		}
		rows[i] = []string{
			info.Name,
			info.Category,
			enabled,
			truncate(info.Description, 70),
		}
	}

	table := output.NewTable(
		"Rules",
		[]string{"Name", "Category", "Enabled", "Description"},
		rows, nil,
		struct {
			Rules []remediation.RuleInfo `json:"rules"`
		}{infos},
	)
	return formatter.Output(table)
}
