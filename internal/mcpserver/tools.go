package mcpserver

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"
	toon "github.com/toon-format/toon-go"

	"github.com/panbanda/mend/internal/output"
	"github.com/panbanda/mend/internal/report"
	"github.com/panbanda/mend/internal/service/remediation"
	"github.com/panbanda/mend/pkg/engine"
	"github.com/panbanda/mend/pkg/metrics"
)

// Input structures for tools

// ScanInput selects what to process and how to shape the reply.
type ScanInput struct {
	Paths  []string `json:"paths,omitempty" jsonschema:"Files, directories, or glob patterns to process. Defaults to the current directory."`
	Rules  []string `json:"rules,omitempty" jsonschema:"Restrict the run to the named rules. Defaults to every enabled rule."`
	Format string   `json:"format,omitempty" jsonschema:"Output format: toon (default), json, or markdown."`
}

// FixInput adds remediation controls on top of scanning.
type FixInput struct {
	ScanInput
	Apply      bool    `json:"apply,omitempty" jsonschema:"Write accepted fixes back to disk. Defaults to a dry run."`
	Threshold  float64 `json:"threshold,omitempty" jsonschema:"Confidence acceptance threshold in (0,1]. Defaults to the configured value."`
	AllowDirty bool    `json:"allow_dirty,omitempty" jsonschema:"Rewrite files that have uncommitted modifications."`
	Backup     bool    `json:"backup,omitempty" jsonschema:"Keep a .orig copy of every rewritten file."`
}

// RulesInput shapes the rule listing.
type RulesInput struct {
	Format string `json:"format,omitempty" jsonschema:"Output format: toon (default), json, or markdown."`
}

// MetricsInput shapes the metrics reply.
type MetricsInput struct {
	Format string `json:"format,omitempty" jsonschema:"Output format: toon (default), json, or markdown."`
	Window int    `json:"window,omitempty" jsonschema:"Attempts per window for the learning trend. Default 10."`
}

// Helper functions

func getFormat(format string) output.Format {
	switch format {
	case "json":
		return output.FormatJSON
	case "markdown", "md":
		return output.FormatMarkdown
	default:
		return output.FormatTOON
	}
}

func formatOutput(data any, format output.Format) (string, error) {
	switch format {
	case output.FormatJSON:
		out, err := json.MarshalIndent(data, "", "  ")
		if err != nil {
			return "", err
		}
		return string(out), nil
	case output.FormatMarkdown:
		out, err := toon.Marshal(data, toon.WithIndent(2))
		if err != nil {
			return "", err
		}
		return "```\n" + string(out) + "\n```", nil
	default:
		out, err := toon.Marshal(data, toon.WithIndent(2))
		if err != nil {
			return "", err
		}
		return string(out), nil
	}
}

func toolResult(data any, format output.Format) (*mcp.CallToolResult, any, error) {
	text, err := formatOutput(data, format)
	if err != nil {
		return nil, nil, err
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}, nil, nil
}

func toolError(msg string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: "Error: " + msg},
		},
		IsError: true,
	}, nil, nil
}

// newSession builds a session sharing the server's scheduler table and
// metrics store, so learning persists across tool calls.
func (s *Server) newSession(over remediation.RunOverrides) *remediation.Session {
	return s.svc.NewSession(over, engine.WithTable(s.table), engine.WithStore(s.store))
}

// Tool handlers

// scanFinding is one finding in the scan reply, flattened for agents.
type scanFinding struct {
	Path     string `json:"path"`
	Rule     string `json:"rule"`
	Line     uint32 `json:"line"`
	Column   uint32 `json:"column,omitempty"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
	Fixable  bool   `json:"fixable"`
	Snippet  string `json:"snippet,omitempty"`
}

type scanReply struct {
	Files        int           `json:"files"`
	Findings     int           `json:"findings"`
	Fixable      int           `json:"fixable"`
	Unanalyzable []string      `json:"unanalyzable,omitempty"`
	Items        []scanFinding `json:"items"`
}

func (s *Server) handleScan(ctx context.Context, req *mcp.CallToolRequest, input ScanInput) (*mcp.CallToolResult, any, error) {
	format := getFormat(input.Format)

	files, err := s.svc.Files(input.Paths)
	if err != nil {
		return toolError(err.Error())
	}
	if len(files) == 0 {
		return toolError("no supported source files found")
	}

	sess := s.newSession(remediation.RunOverrides{Rules: input.Rules})
	res, err := sess.Scan(ctx, files)
	if err != nil {
		return toolError(err.Error())
	}

	reply := scanReply{Files: len(res.Outcomes)}
	for _, o := range res.Outcomes {
		if o.Unanalyzable {
			reply.Unanalyzable = append(reply.Unanalyzable, o.Path)
			continue
		}
		for _, f := range o.Findings {
			reply.Findings++
			if f.Fixable {
				reply.Fixable++
			}
			reply.Items = append(reply.Items, scanFinding{
				Path:     o.Path,
				Rule:     f.Rule,
				Line:     f.Line,
				Column:   f.Column,
				Severity: string(f.Severity),
				Message:  f.Message,
				Fixable:  f.Fixable,
				Snippet:  f.Snippet,
			})
		}
	}

	return toolResult(reply, format)
}

type fixReply struct {
	*report.Summary
	Written    []string `json:"written,omitempty"`
	WriteError string   `json:"write_error,omitempty"`
}

func (s *Server) handleFix(ctx context.Context, req *mcp.CallToolRequest, input FixInput) (*mcp.CallToolResult, any, error) {
	format := getFormat(input.Format)

	files, err := s.svc.Files(input.Paths)
	if err != nil {
		return toolError(err.Error())
	}
	if len(files) == 0 {
		return toolError("no supported source files found")
	}

	sess := s.newSession(remediation.RunOverrides{
		Rules:     input.Rules,
		Threshold: input.Threshold,
	})
	res, err := sess.Run(ctx, files)
	if err != nil {
		return toolError(err.Error())
	}

	reply := fixReply{Summary: report.Build(res, sess.Store(), report.Options{
		Paths:  input.Paths,
		DryRun: !input.Apply,
	})}

	if input.Apply {
		written, werr := sess.WriteBack(res, input.Backup, input.AllowDirty)
		reply.Written = written
		if werr != nil {
			reply.WriteError = werr.Error()
		}
	}

	if err := sess.SaveLearning(); err != nil {
		log.Warn().Err(err).Msg("scheduler table not persisted")
	}

	return toolResult(reply, format)
}

func (s *Server) handleListRules(ctx context.Context, req *mcp.CallToolRequest, input RulesInput) (*mcp.CallToolResult, any, error) {
	reply := struct {
		Rules []remediation.RuleInfo `json:"rules"`
	}{s.svc.Rules()}
	return toolResult(reply, getFormat(input.Format))
}

type schedulerState struct {
	Epsilon float64 `json:"epsilon"`
	Entries int     `json:"entries"`
}

func (s *Server) handleGetMetrics(ctx context.Context, req *mcp.CallToolRequest, input MetricsInput) (*mcp.CallToolResult, any, error) {
	window := input.Window
	if window <= 0 {
		window = 10
	}

	reply := struct {
		Snapshot  metrics.Snapshot       `json:"snapshot"`
		Trend     metrics.TrendStats     `json:"trend"`
		Problems  []metrics.RuleSnapshot `json:"problem_rules,omitempty"`
		Slowest   []metrics.RuleSnapshot `json:"slowest_rules,omitempty"`
		Scheduler schedulerState         `json:"scheduler"`
	}{
		Snapshot: s.store.Snapshot(),
		Trend:    s.store.Trend(window),
		Problems: s.store.ProblemRules(5, 0.2),
		Slowest:  s.store.SlowestRules(3),
		Scheduler: schedulerState{
			Epsilon: s.table.Epsilon(),
			Entries: s.table.Len(),
		},
	}
	return toolResult(reply, getFormat(input.Format))
}
