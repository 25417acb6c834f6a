// Package weakhash flags MD5 and SHA-1 usage and rewrites it to a
// SHA-256 equivalent where the swap is a single-token replacement.
package weakhash

import (
	"fmt"
	"regexp"

	"github.com/panbanda/mend/pkg/models"
	"github.com/panbanda/mend/pkg/parser"
	"github.com/panbanda/mend/pkg/rules"
)

type replacement struct {
	pattern *regexp.Regexp
	// template may reference capture groups to preserve quoting style.
	template string
	algo     string
}

var tables = map[parser.Language][]replacement{
	parser.LangPython: {
		{regexp.MustCompile(`\bhashlib\.md5\b`), "hashlib.sha256", "md5"},
		{regexp.MustCompile(`\bhashlib\.sha1\b`), "hashlib.sha256", "sha1"},
	},
	parser.LangJavaScript: {
		{regexp.MustCompile(`createHash\(\s*(['"])md5(['"])\s*\)`), "createHash($1sha256$2)", "md5"},
		{regexp.MustCompile(`createHash\(\s*(['"])sha1(['"])\s*\)`), "createHash($1sha256$2)", "sha1"},
	},
	parser.LangRuby: {
		{regexp.MustCompile(`\bDigest::MD5\b`), "Digest::SHA256", "md5"},
		{regexp.MustCompile(`\bDigest::SHA1\b`), "Digest::SHA256", "sha1"},
	},
	parser.LangPHP: {
		{regexp.MustCompile(`\bmd5\s*\(`), "hash('sha256', ", "md5"},
		{regexp.MustCompile(`\bsha1\s*\(`), "hash('sha256', ", "sha1"},
	},
	parser.LangBash: {
		{regexp.MustCompile(`\bmd5sum\b`), "sha256sum", "md5"},
		{regexp.MustCompile(`\bsha1sum\b`), "sha256sum", "sha1"},
	},
}

// Detector finds weak hash constructions for the file's language.
type Detector struct{}

var _ rules.Detector = (*Detector)(nil)

// New creates the detector.
func New() *Detector {
	return &Detector{}
}

// Name implements rules.Detector.
func (d *Detector) Name() string { return "weak-hash" }

// Category implements rules.Detector.
func (d *Detector) Category() models.Category { return models.CategorySecurity }

// Description implements rules.Describer.
func (d *Detector) Description() string {
	return "flags MD5 and SHA-1 usage and rewrites to SHA-256"
}

// Detect implements rules.Detector.
func (d *Detector) Detect(res *parser.Result, source string) []models.Finding {
	table, ok := tables[res.Language]
	if !ok {
		return nil
	}

	var findings []models.Finding
	for _, rep := range table {
		for _, loc := range rep.pattern.FindAllStringIndex(source, -1) {
			start, end := loc[0], loc[1]
			if parser.Overlapping(res.Diagnostics, start, end) {
				continue
			}
			match := source[start:end]
			newText := rep.pattern.ReplaceAllString(match, rep.template)
			line, col := rules.LineColumn(source, start)

			editStart, editEnd := start, end
			findings = append(findings, models.Finding{
				Rule:      d.Name(),
				Category:  d.Category(),
				Severity:  models.SeverityHigh,
				Message:   fmt.Sprintf("weak hash algorithm %s", rep.algo),
				Path:      res.Path,
				StartByte: start,
				EndByte:   end,
				Line:      line,
				Column:    col,
				Snippet:   match,
				Fixable:   true,
				Fix: func() models.EditSet {
					return models.EditSet{Edits: []models.TextEdit{{
						Start:   editStart,
						End:     editEnd,
						NewText: newText,
					}}}
				},
			})
		}
	}
	return findings
}
