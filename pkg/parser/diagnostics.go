package parser

import (
	"fmt"
	"sort"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/panbanda/mend/pkg/models"
)

// collectDiagnostics walks the tree for ERROR and MISSING nodes.
// tree-sitter marks unparseable regions with ERROR nodes and inserts
// zero-width MISSING tokens where it recovered; both become diagnostics,
// ordered by start offset.
func collectDiagnostics(root *sitter.Node, source []byte) []models.Diagnostic {
	if root == nil {
		return nil
	}

	var diags []models.Diagnostic
	WalkTyped(root, source, func(node *sitter.Node, nodeType string, _ []byte) bool {
		switch {
		case nodeType == "ERROR":
			diags = append(diags, models.Diagnostic{
				Kind:      models.DiagError,
				Message:   "syntax error",
				StartByte: int(node.StartByte()),
				EndByte:   int(node.EndByte()),
				Line:      node.StartPoint().Row + 1,
				Column:    node.StartPoint().Column + 1,
			})
		case node.IsMissing():
			diags = append(diags, models.Diagnostic{
				Kind:      models.DiagMissing,
				Message:   fmt.Sprintf("missing %s", nodeType),
				StartByte: int(node.StartByte()),
				EndByte:   int(node.EndByte()),
				Line:      node.StartPoint().Row + 1,
				Column:    node.StartPoint().Column + 1,
			})
		}
		return true
	})

	sort.SliceStable(diags, func(i, j int) bool {
		return diags[i].StartByte < diags[j].StartByte
	})
	return diags
}

// classifyFatal decides whether any usable structure survived parsing.
// A parse is fatal when the root has no named children at all, or when
// every top-level construct is itself an error. A recoverable parse
// keeps its diagnostics but still exposes clean regions to detectors.
func classifyFatal(root *sitter.Node) bool {
	if root == nil {
		return true
	}
	if !root.HasError() {
		return false
	}

	named := int(root.NamedChildCount())
	if named == 0 {
		return true
	}

	for i := range named {
		child := root.NamedChild(i)
		if child.Type() != "ERROR" && !child.HasError() {
			return false
		}
	}
	return true
}

// Overlapping reports whether the byte range [start, end) intersects
// any diagnostic region. Fixable pattern detectors skip matches inside
// regions the parser could not interpret.
func Overlapping(diags []models.Diagnostic, start, end int) bool {
	for _, d := range diags {
		lo, hi := d.StartByte, d.EndByte
		if hi == lo {
			// zero-width missing token still poisons its position
			hi = lo + 1
		}
		if start < hi && lo < end {
			return true
		}
	}
	return false
}
