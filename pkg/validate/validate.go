// Package validate re-parses candidate fixed text and measures how much
// of the original tree structure survived the edit.
package validate

import (
	"context"
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/cespare/xxhash/v2"
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/panbanda/mend/pkg/parser"
)

// Outcome carries the validator's measurements. The validator never
// fails a fix by itself; it only produces data for the scorer, except
// that new diagnostics are a hard failure for acceptance.
type Outcome struct {
	// Result is the parse of the fixed text.
	Result *parser.Result
	// NewDiagnostics counts diagnostics introduced by the fix; any
	// increase fails validation. Fixes that reduce diagnostics report
	// zero.
	NewDiagnostics int
	// SyntaxValid is true when the fix introduced no diagnostics.
	SyntaxValid bool
	// Similarity is the structural-similarity ratio in [0,1]; 1.0
	// means the tree shape is unchanged outside normal reparse noise.
	Similarity float64
}

// Validate re-parses fixedText through the adapter, never the cache:
// candidate text has a new content hash and must not pollute or read
// stale entries. Diagnostic counts and tree shapes are compared against
// the original parse.
func Validate(ctx context.Context, p *parser.Parser, original *parser.Result, fixedText string) (Outcome, error) {
	fixed, err := p.Parse(ctx, []byte(fixedText), original.Language, original.Path)
	if err != nil {
		return Outcome{}, fmt.Errorf("reparse failed: %w", err)
	}

	newDiags := len(fixed.Diagnostics) - len(original.Diagnostics)
	if newDiags < 0 {
		newDiags = 0
	}

	var origRoot, fixedRoot *sitter.Node
	if original.Tree != nil {
		origRoot = original.Tree.RootNode()
	}
	if fixed.Tree != nil {
		fixedRoot = fixed.Tree.RootNode()
	}

	return Outcome{
		Result:         fixed,
		NewDiagnostics: newDiags,
		SyntaxValid:    newDiags == 0,
		Similarity:     Similarity(origRoot, fixedRoot),
	}, nil
}

// Similarity compares two tree shapes and returns a ratio in [0,1].
// Each named node is fingerprinted by (parent type, type, depth, named
// sibling index); the Jaccard index of the two fingerprint sets is
// blended with a node-count ratio so set overlap cannot hide large
// duplications. Identical trees score 1.0.
func Similarity(a, b *sitter.Node) float64 {
	if a == nil && b == nil {
		return 1
	}
	if a == nil || b == nil {
		return 0
	}

	setA, countA := fingerprints(a)
	setB, countB := fingerprints(b)

	union := roaring.Or(setA, setB).GetCardinality()
	if union == 0 {
		return 1
	}
	jaccard := float64(roaring.And(setA, setB).GetCardinality()) / float64(union)

	countRatio := 1.0
	if countA != countB {
		min, max := countA, countB
		if min > max {
			min, max = max, min
		}
		if max == 0 {
			return 1
		}
		countRatio = float64(min) / float64(max)
	}

	return (jaccard + countRatio) / 2
}

// fingerprints flattens a tree into a bitmap of 32-bit node-shape
// hashes and returns the named-node count alongside.
func fingerprints(root *sitter.Node) (*roaring.Bitmap, int) {
	bm := roaring.New()
	count := 0

	var descend func(n *sitter.Node, parentType string, depth, namedIndex int)
	descend = func(n *sitter.Node, parentType string, depth, namedIndex int) {
		nodeType := n.Type()
		childDepth := depth
		childParent := parentType

		if n.IsNamed() {
			count++
			key := fmt.Sprintf("%s/%s:%d:%d", parentType, nodeType, depth, namedIndex)
			bm.Add(uint32(xxhash.Sum64String(key)))
			childDepth++
			childParent = nodeType
		}

		named := 0
		for i := range int(n.ChildCount()) {
			child := n.Child(i)
			idx := -1
			if child.IsNamed() {
				idx = named
				named++
			}
			descend(child, childParent, childDepth, idx)
		}
	}

	descend(root, "", 0, 0)
	return bm, count
}
