// Package evalcall flags dynamic code execution. There is no safe
// mechanical rewrite for eval, so findings are detect-only.
package evalcall

import (
	"fmt"
	"regexp"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/panbanda/mend/pkg/models"
	"github.com/panbanda/mend/pkg/parser"
	"github.com/panbanda/mend/pkg/rules"
)

var phpEval = regexp.MustCompile(`\beval\s*\(`)

// Detector finds eval-family calls per language.
type Detector struct{}

var _ rules.Detector = (*Detector)(nil)

// New creates the detector.
func New() *Detector {
	return &Detector{}
}

// Name implements rules.Detector.
func (d *Detector) Name() string { return "eval-call" }

// Category implements rules.Detector.
func (d *Detector) Category() models.Category { return models.CategorySecurity }

// Description implements rules.Describer.
func (d *Detector) Description() string {
	return "flags eval-family calls that execute dynamic code (detect-only)"
}

// Detect implements rules.Detector.
func (d *Detector) Detect(res *parser.Result, source string) []models.Finding {
	if res.Tree == nil {
		return nil
	}
	root := res.Tree.RootNode()
	src := res.Source

	var findings []models.Finding
	add := func(n *sitter.Node, callee string) {
		start := int(n.StartByte())
		line, col := rules.LineColumn(source, start)
		findings = append(findings, models.Finding{
			Rule:      d.Name(),
			Category:  d.Category(),
			Severity:  models.SeverityHigh,
			Message:   fmt.Sprintf("dynamic code execution via %s", callee),
			Path:      res.Path,
			StartByte: start,
			EndByte:   int(n.EndByte()),
			Line:      line,
			Column:    col,
			Snippet:   parser.GetNodeText(n, src),
		})
	}

	switch res.Language {
	case parser.LangPython:
		for _, n := range parser.FindNodesByType(root, src, "call") {
			name := parser.GetNodeText(n.ChildByFieldName("function"), src)
			if name == "eval" || name == "exec" {
				add(n, name)
			}
		}
	case parser.LangJavaScript:
		for _, n := range parser.FindNodesByType(root, src, "call_expression") {
			if name := parser.GetNodeText(n.ChildByFieldName("function"), src); name == "eval" {
				add(n, name)
			}
		}
		for _, n := range parser.FindNodesByType(root, src, "new_expression") {
			if name := parser.GetNodeText(n.ChildByFieldName("constructor"), src); name == "Function" {
				add(n, "new Function")
			}
		}
	case parser.LangRuby:
		evalFamily := map[string]bool{
			"eval": true, "instance_eval": true, "class_eval": true, "module_eval": true,
		}
		for _, n := range parser.FindNodesByType(root, src, "call") {
			method := n.ChildByFieldName("method")
			if method == nil {
				continue
			}
			if name := parser.GetNodeText(method, src); evalFamily[name] {
				add(n, name)
			}
		}
	case parser.LangBash:
		for _, n := range parser.FindNodesByType(root, src, "command") {
			if name := parser.GetNodeText(n.ChildByFieldName("name"), src); name == "eval" {
				add(n, name)
			}
		}
	case parser.LangPHP:
		// The PHP grammar models eval as an expression keyword; text
		// matching is steadier across grammar revisions.
		for _, loc := range phpEval.FindAllStringIndex(source, -1) {
			start := loc[0]
			line, col := rules.LineColumn(source, start)
			findings = append(findings, models.Finding{
				Rule:      d.Name(),
				Category:  d.Category(),
				Severity:  models.SeverityHigh,
				Message:   "dynamic code execution via eval",
				Path:      res.Path,
				StartByte: start,
				EndByte:   loc[1],
				Line:      line,
				Column:    col,
			})
		}
	}
	return findings
}
