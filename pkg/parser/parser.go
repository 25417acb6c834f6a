package parser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/bash"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/php"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/ruby"

	"github.com/panbanda/mend/pkg/models"
)

// Language represents a supported scripting language.
type Language string

const (
	LangBash       Language = "bash"
	LangPython     Language = "python"
	LangRuby       Language = "ruby"
	LangJavaScript Language = "javascript"
	LangPHP        Language = "php"
	LangUnknown    Language = "unknown"
)

// ErrUnsupported is returned when a file's language has no grammar.
var ErrUnsupported = errors.New("unsupported language")

// Parser wraps tree-sitter for multi-language parsing. Parsing never
// fails on malformed source: tree-sitter always produces a best-effort
// tree, and syntax problems surface as diagnostics on the result.
type Parser struct {
	parser *sitter.Parser
}

// Result contains the parsed tree, its diagnostics, and metadata.
// Results are immutable once built and safe to share across goroutines.
type Result struct {
	Tree        *sitter.Tree
	Language    Language
	Source      []byte
	Path        string
	Diagnostics []models.Diagnostic

	// Fatal is set when no usable structure survived parsing; the
	// file is reported unanalyzable and no fixes are attempted.
	Fatal bool
}

// New creates a new parser instance. Parsers are not safe for
// concurrent use; each worker owns its own.
func New() *Parser {
	return &Parser{
		parser: sitter.NewParser(),
	}
}

// ParseFile reads and parses a source file.
func (p *Parser) ParseFile(ctx context.Context, path string) (*Result, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	lang := DetectLanguage(path)
	if lang == LangUnknown {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, path)
	}

	return p.Parse(ctx, source, lang, path)
}

// Parse parses source code with a specified language. The returned
// error covers only unknown languages and context cancellation, never
// malformed input.
func (p *Parser) Parse(ctx context.Context, source []byte, lang Language, path string) (*Result, error) {
	tsLang, err := treeSitterLanguage(lang)
	if err != nil {
		return nil, err
	}

	p.parser.SetLanguage(tsLang)
	tree, err := p.parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("failed to parse: %w", err)
	}

	res := &Result{
		Tree:     tree,
		Language: lang,
		Source:   source,
		Path:     path,
	}
	res.Diagnostics = collectDiagnostics(tree.RootNode(), source)
	res.Fatal = classifyFatal(tree.RootNode())
	return res, nil
}

// Close releases parser resources.
func (p *Parser) Close() {
	p.parser.Close()
}

// treeSitterLanguage returns the grammar for a Language.
func treeSitterLanguage(lang Language) (*sitter.Language, error) {
	switch lang {
	case LangBash:
		return bash.GetLanguage(), nil
	case LangPython:
		return python.GetLanguage(), nil
	case LangRuby:
		return ruby.GetLanguage(), nil
	case LangJavaScript:
		return javascript.GetLanguage(), nil
	case LangPHP:
		return php.GetLanguage(), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, lang)
	}
}

// DetectLanguage determines the language from a file path.
func DetectLanguage(path string) Language {
	ext := strings.ToLower(filepath.Ext(path))

	switch ext {
	case ".sh", ".bash":
		return LangBash
	case ".py", ".pyw", ".pyi":
		return LangPython
	case ".rb", ".rake":
		return LangRuby
	case ".js", ".mjs", ".cjs":
		return LangJavaScript
	case ".php":
		return LangPHP
	default:
		return LangUnknown
	}
}

// Languages lists every language the engine can remediate.
func Languages() []Language {
	return []Language{LangBash, LangPython, LangRuby, LangJavaScript, LangPHP}
}

// NodeVisitor is a function that visits AST nodes.
type NodeVisitor func(node *sitter.Node, source []byte) bool

// TypedNodeVisitor visits AST nodes with pre-cached node type to avoid CGO overhead.
type TypedNodeVisitor func(node *sitter.Node, nodeType string, source []byte) bool

// Walk traverses the AST calling visitor for each node.
func Walk(node *sitter.Node, source []byte, visitor NodeVisitor) {
	if node == nil {
		return
	}

	if !visitor(node, source) {
		return
	}

	for i := range int(node.ChildCount()) {
		Walk(node.Child(i), source, visitor)
	}
}

// WalkTyped traverses the AST with cached node types to reduce CGO overhead.
// Use this when you need to check node types frequently.
func WalkTyped(node *sitter.Node, source []byte, visitor TypedNodeVisitor) {
	if node == nil {
		return
	}

	nodeType := node.Type()
	if !visitor(node, nodeType, source) {
		return
	}

	for i := range int(node.ChildCount()) {
		WalkTyped(node.Child(i), source, visitor)
	}
}

// FindNodes returns all nodes matching a predicate.
func FindNodes(root *sitter.Node, source []byte, predicate func(*sitter.Node) bool) []*sitter.Node {
	var results []*sitter.Node
	Walk(root, source, func(node *sitter.Node, source []byte) bool {
		if predicate(node) {
			results = append(results, node)
		}
		return true
	})
	return results
}

// FindNodesByType returns all nodes of a specific type.
func FindNodesByType(root *sitter.Node, source []byte, nodeType string) []*sitter.Node {
	return FindNodes(root, source, func(n *sitter.Node) bool {
		return n.Type() == nodeType
	})
}

// GetNodeText extracts the source text for a node.
// Returns empty string if node is nil or byte offsets are out of bounds.
func GetNodeText(node *sitter.Node, source []byte) string {
	if node == nil {
		return ""
	}
	start := node.StartByte()
	end := node.EndByte()
	if start > end || end > uint32(len(source)) {
		return ""
	}
	return string(source[start:end])
}

// MaxNestingDepth returns the deepest named-node nesting in the tree.
// Feeds the scheduler's state discretization.
func MaxNestingDepth(root *sitter.Node) int {
	if root == nil {
		return 0
	}
	max := 0
	var descend func(n *sitter.Node, depth int)
	descend = func(n *sitter.Node, depth int) {
		if n.IsNamed() {
			depth++
			if depth > max {
				max = depth
			}
		}
		for i := range int(n.ChildCount()) {
			descend(n.Child(i), depth)
		}
	}
	descend(root, 0)
	return max
}
