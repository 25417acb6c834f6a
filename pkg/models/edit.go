package models

// TextEdit is one atomic replacement over a half-open byte range
// [Start, End). Edits never overlap their siblings within an EditSet.
type TextEdit struct {
	Start   int    `json:"start"`
	End     int    `json:"end"`
	NewText string `json:"new_text"`
}

// EditSet holds all edits for one fix attempt, in source order.
type EditSet struct {
	Edits []TextEdit `json:"edits"`
}

// Empty reports whether the set contains no edits.
func (s EditSet) Empty() bool {
	return len(s.Edits) == 0
}
