package qlearn

import (
	"sort"
	"strings"

	"github.com/panbanda/mend/pkg/models"
)

// State is the discretized feature signature of a code context. It is
// a compact string, not raw source text, so the table stays small and
// states recur across files.
type State string

// Size buckets in bytes.
const (
	sizeSmall  = 2 << 10  // under 2 KiB
	sizeMedium = 16 << 10 // under 16 KiB
	sizeLarge  = 64 << 10 // under 64 KiB
)

// Features are the raw inputs the state is derived from.
type Features struct {
	// Categories of the violations present in the file.
	Categories []models.Category
	// SizeBytes is the file's current text length.
	SizeBytes int
	// NestingDepth is the deepest named-node nesting in the tree.
	NestingDepth int
}

// StateOf discretizes features into a stable state string of the form
// "security,style|size:M|nest:moderate". Category order never affects
// the result.
func StateOf(f Features) State {
	seen := make(map[string]bool, len(f.Categories))
	cats := make([]string, 0, len(f.Categories))
	for _, c := range f.Categories {
		s := string(c)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		cats = append(cats, s)
	}
	sort.Strings(cats)

	catPart := "none"
	if len(cats) > 0 {
		catPart = strings.Join(cats, ",")
	}

	return State(catPart + "|size:" + sizeBucket(f.SizeBytes) + "|nest:" + nestingBucket(f.NestingDepth))
}

func sizeBucket(bytes int) string {
	switch {
	case bytes < sizeSmall:
		return "S"
	case bytes < sizeMedium:
		return "M"
	case bytes < sizeLarge:
		return "L"
	default:
		return "XL"
	}
}

func nestingBucket(depth int) string {
	switch {
	case depth <= 3:
		return "shallow"
	case depth <= 6:
		return "moderate"
	default:
		return "deep"
	}
}
