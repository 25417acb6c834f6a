package models

import (
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// SourceUnit is one input file snapshot. It is immutable once built;
// remediation never rewrites Text in place, it produces new text through
// the fix pipeline.
type SourceUnit struct {
	Path string `json:"path"`
	Text string `json:"-"`
	Hash string `json:"hash"`
}

// NewSourceUnit builds a unit and computes its content hash.
func NewSourceUnit(path string, text []byte) SourceUnit {
	return SourceUnit{
		Path: path,
		Text: string(text),
		Hash: HashText(text),
	}
}

// HashText returns the BLAKE3 digest of content as a hex string.
// The digest doubles as the parse-cache key and the change-detection
// signal for the persistent findings cache.
func HashText(content []byte) string {
	sum := blake3.Sum256(content)
	return hex.EncodeToString(sum[:])
}
