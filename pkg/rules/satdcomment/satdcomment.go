// Package satdcomment flags self-admitted technical debt markers in
// comments. There is nothing to rewrite mechanically, so findings are
// detect-only.
package satdcomment

import (
	"fmt"
	"regexp"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/panbanda/mend/pkg/models"
	"github.com/panbanda/mend/pkg/parser"
	"github.com/panbanda/mend/pkg/rules"
)

type pattern struct {
	regex    *regexp.Regexp
	marker   string
	severity models.Severity
}

// defaultPatterns is the marker catalog, highest severity first so the
// first match wins when markers stack in one comment.
func defaultPatterns() []pattern {
	return []pattern{
		{regexp.MustCompile(`(?i)\b(SECURITY|VULN|VULNERABILITY)\b[:\s]`), "SECURITY", models.SeverityCritical},
		{regexp.MustCompile(`(?i)\b(FIXME|FIX\s*ME)\b[:\s]?`), "FIXME", models.SeverityHigh},
		{regexp.MustCompile(`(?i)\bBUG\b[:\s]`), "BUG", models.SeverityHigh},
		{regexp.MustCompile(`(?i)\bBROKEN\b[:\s]`), "BROKEN", models.SeverityHigh},
		{regexp.MustCompile(`(?i)\b(HACK|KLUDGE)\b[:\s]?`), "HACK", models.SeverityMedium},
		{regexp.MustCompile(`\bXXX\b[:\s]?`), "XXX", models.SeverityMedium},
		{regexp.MustCompile(`(?i)\bWORKAROUND\b[:\s]?`), "WORKAROUND", models.SeverityMedium},
		{regexp.MustCompile(`(?i)\bTODO\b[:\s]?`), "TODO", models.SeverityLow},
		{regexp.MustCompile(`(?i)\bOPTIMIZE\b[:\s]`), "OPTIMIZE", models.SeverityLow},
	}
}

// Detector finds debt markers inside comment nodes.
type Detector struct {
	patterns   []pattern
	strictMode bool
}

var _ rules.Detector = (*Detector)(nil)

// Option is a functional option for configuring Detector.
type Option func(*Detector)

// WithStrictMode matches only explicit markers followed by a colon,
// e.g. "TODO: describe", cutting false positives in prose comments.
func WithStrictMode() Option {
	return func(d *Detector) {
		d.strictMode = true
	}
}

// WithPatterns appends custom marker patterns at low severity. Invalid
// expressions are ignored.
func WithPatterns(exprs ...string) Option {
	return func(d *Detector) {
		for _, expr := range exprs {
			re, err := regexp.Compile(expr)
			if err != nil {
				continue
			}
			d.patterns = append(d.patterns, pattern{re, strings.ToUpper(expr), models.SeverityLow})
		}
	}
}

// New creates the detector.
func New(opts ...Option) *Detector {
	d := &Detector{patterns: defaultPatterns()}
	for _, opt := range opts {
		opt(d)
	}
	if d.strictMode {
		d.patterns = strictPatterns()
	}
	return d
}

func strictPatterns() []pattern {
	return []pattern{
		{regexp.MustCompile(`\bSECURITY:\s+\S`), "SECURITY", models.SeverityCritical},
		{regexp.MustCompile(`\bFIXME:\s+\S`), "FIXME", models.SeverityHigh},
		{regexp.MustCompile(`\bBUG:\s+\S`), "BUG", models.SeverityHigh},
		{regexp.MustCompile(`\bHACK:\s+\S`), "HACK", models.SeverityMedium},
		{regexp.MustCompile(`\bXXX:\s+\S`), "XXX", models.SeverityMedium},
		{regexp.MustCompile(`\bTODO:\s+\S`), "TODO", models.SeverityLow},
	}
}

// Name implements rules.Detector.
func (d *Detector) Name() string { return "satd-comment" }

// Category implements rules.Detector.
func (d *Detector) Category() models.Category { return models.CategoryDebt }

// Description implements rules.Describer.
func (d *Detector) Description() string {
	return "flags TODO/FIXME/HACK debt markers in comments (detect-only)"
}

// Detect implements rules.Detector.
func (d *Detector) Detect(res *parser.Result, source string) []models.Finding {
	if res.Tree == nil {
		return nil
	}

	var findings []models.Finding
	for _, node := range commentNodes(res.Tree.RootNode(), res.Source) {
		text := parser.GetNodeText(node, res.Source)
		pat, ok := d.match(text)
		if !ok {
			continue
		}

		findings = append(findings, models.Finding{
			Rule:      d.Name(),
			Category:  d.Category(),
			Severity:  pat.severity,
			Message:   fmt.Sprintf("%s marker in comment", pat.marker),
			Path:      res.Path,
			StartByte: int(node.StartByte()),
			EndByte:   int(node.EndByte()),
			Line:      node.StartPoint().Row + 1,
			Column:    node.StartPoint().Column + 1,
			Snippet:   firstLine(text),
		})
	}
	return findings
}

func (d *Detector) match(text string) (pattern, bool) {
	for _, p := range d.patterns {
		if p.regex.MatchString(text) {
			return p, true
		}
	}
	return pattern{}, false
}

// commentNodes collects every comment in the tree. The shipped grammars
// all expose a "comment" node type.
func commentNodes(root *sitter.Node, source []byte) []*sitter.Node {
	return parser.FindNodes(root, source, func(n *sitter.Node) bool {
		return n.Type() == "comment"
	})
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i != -1 {
		return s[:i]
	}
	return s
}
