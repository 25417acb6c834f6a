// Package edit applies sets of text edits to source by byte offset.
// Offset stability is achieved purely by processing order: edits are
// substituted in descending start-offset order, so earlier offsets stay
// valid without re-parsing between edits.
package edit

import (
	"errors"
	"fmt"
	"sort"

	"github.com/panbanda/mend/pkg/models"
)

// ErrOutOfBounds is returned when an edit range falls outside the text.
var ErrOutOfBounds = errors.New("edit out of bounds")

// Conflict identifies the first overlapping pair in an edit set. The
// whole set is rejected; no partial application happens.
type Conflict struct {
	A models.TextEdit
	B models.TextEdit
}

func (c *Conflict) Error() string {
	return fmt.Sprintf("overlapping edits [%d,%d) and [%d,%d)",
		c.A.Start, c.A.End, c.B.Start, c.B.End)
}

// Apply substitutes every edit in the set into text. Edits are checked
// for bounds and pairwise overlap first; on violation nothing is
// applied and the error reports the offending edit or pair. For edits
// sharing a start offset, enumeration order is preserved.
func Apply(text string, set models.EditSet) (string, error) {
	if set.Empty() {
		return text, nil
	}

	sorted := make([]models.TextEdit, len(set.Edits))
	copy(sorted, set.Edits)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Start < sorted[j].Start
	})

	for _, e := range sorted {
		if e.Start < 0 || e.End < e.Start || e.End > len(text) {
			return "", fmt.Errorf("%w: [%d,%d) over %d bytes", ErrOutOfBounds, e.Start, e.End, len(text))
		}
	}
	for i := 0; i+1 < len(sorted); i++ {
		if sorted[i].End > sorted[i+1].Start {
			return "", &Conflict{A: sorted[i], B: sorted[i+1]}
		}
	}

	// Descending offset order keeps unapplied offsets stable.
	out := text
	for i := len(sorted) - 1; i >= 0; i-- {
		e := sorted[i]
		out = out[:e.Start] + e.NewText + out[e.End:]
	}
	return out, nil
}

// Changed returns the changed-character count of a set: each edit
// contributes the larger of its removed and inserted spans.
func Changed(set models.EditSet) int {
	total := 0
	for _, e := range set.Edits {
		removed := e.End - e.Start
		inserted := len(e.NewText)
		if inserted > removed {
			total += inserted
		} else {
			total += removed
		}
	}
	return total
}

// MinimalityRatio returns 1 - changed/total in [0,1]; bigger rewrites
// score lower. An empty original counts any change as maximal.
func MinimalityRatio(set models.EditSet, originalLen int) float64 {
	changed := Changed(set)
	if changed == 0 {
		return 1
	}
	if originalLen <= 0 {
		return 0
	}
	ratio := 1 - float64(changed)/float64(originalLen)
	if ratio < 0 {
		return 0
	}
	return ratio
}
