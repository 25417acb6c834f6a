package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/panbanda/mend/internal/mcpserver"
)

func mcpCmd() *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Start MCP (Model Context Protocol) server for LLM tool integration",
		Description: `Starts an MCP server over stdio transport that exposes mend's
remediation pipeline as tools LLMs can invoke. Fixes are dry-run unless
the model explicitly sets apply, so an assistant can preview every
change before anything is written.

To use with Claude Desktop, add to your config:
  {
    "mcpServers": {
      "mend": {
        "command": "mend",
        "args": ["mcp"]
      }
    }
  }

Available tools:
  - scan          Detect rule violations without changing files
  - fix           Apply validated fixes (dry-run by default)
  - list_rules    Registered rules and their enabled state
  - get_metrics   Per-rule success rates and scheduler state`,
		Subcommands: []*cli.Command{
			{
				Name:   "manifest",
				Usage:  "Print the MCP registry manifest (server.json)",
				Action: runMCPManifestCmd,
			},
		},
		Action: runMCPCmd,
	}
}

func runMCPCmd(c *cli.Context) error {
	server := mcpserver.NewServer(version)
	return server.Run(context.Background())
}

func runMCPManifestCmd(c *cli.Context) error {
	data, err := mcpserver.GenerateManifest(version)
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
