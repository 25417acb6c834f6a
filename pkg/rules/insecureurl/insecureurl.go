// Package insecureurl flags plaintext http:// URLs and offers an
// https:// upgrade as the fix.
package insecureurl

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/panbanda/mend/pkg/models"
	"github.com/panbanda/mend/pkg/parser"
	"github.com/panbanda/mend/pkg/rules"
)

const schemeLen = len("http://")

var urlPattern = regexp.MustCompile(`http://[^\s"'` + "`" + `\)>]+`)

// Detector finds http:// literals outside the allowed host list.
type Detector struct {
	allowedHosts map[string]bool
}

var _ rules.Detector = (*Detector)(nil)

// Option is a functional option for configuring Detector.
type Option func(*Detector)

// WithAllowedHosts exempts hosts from detection. Loopback hosts are
// exempt by default.
func WithAllowedHosts(hosts ...string) Option {
	return func(d *Detector) {
		for _, h := range hosts {
			d.allowedHosts[strings.ToLower(h)] = true
		}
	}
}

// New creates the detector with loopback hosts allowed.
func New(opts ...Option) *Detector {
	d := &Detector{
		allowedHosts: map[string]bool{
			"localhost": true,
			"127.0.0.1": true,
			"0.0.0.0":   true,
			"[::1]":     true,
		},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Name implements rules.Detector.
func (d *Detector) Name() string { return "insecure-url" }

// Category implements rules.Detector.
func (d *Detector) Category() models.Category { return models.CategorySecurity }

// Description implements rules.Describer.
func (d *Detector) Description() string {
	return "flags plaintext http:// URLs and upgrades them to https://"
}

// Detect implements rules.Detector.
func (d *Detector) Detect(res *parser.Result, source string) []models.Finding {
	var findings []models.Finding

	for _, loc := range urlPattern.FindAllStringIndex(source, -1) {
		start, end := loc[0], loc[1]
		url := source[start:end]
		if d.allowedHosts[hostOf(url)] {
			continue
		}
		// A match inside an unparseable region may not be a URL at all.
		if parser.Overlapping(res.Diagnostics, start, end) {
			continue
		}

		line, col := rules.LineColumn(source, start)
		editStart := start
		findings = append(findings, models.Finding{
			Rule:      d.Name(),
			Category:  d.Category(),
			Severity:  models.SeverityMedium,
			Message:   fmt.Sprintf("plaintext URL %s", url),
			Path:      res.Path,
			StartByte: start,
			EndByte:   end,
			Line:      line,
			Column:    col,
			Snippet:   url,
			Fixable:   true,
			Fix: func() models.EditSet {
				return models.EditSet{Edits: []models.TextEdit{{
					Start:   editStart,
					End:     editStart + schemeLen,
					NewText: "https://",
				}}}
			},
		})
	}
	return findings
}

// hostOf extracts the lowercase host from an http URL, dropping any
// port, path, or credentials.
func hostOf(url string) string {
	rest := strings.TrimPrefix(url, "http://")
	if cut := strings.IndexAny(rest, "/?#"); cut != -1 {
		rest = rest[:cut]
	}
	if at := strings.LastIndex(rest, "@"); at != -1 {
		rest = rest[at+1:]
	}
	if strings.HasPrefix(rest, "[") {
		if end := strings.Index(rest, "]"); end != -1 {
			rest = rest[:end+1]
		}
	} else if colon := strings.Index(rest, ":"); colon != -1 {
		rest = rest[:colon]
	}
	return strings.ToLower(rest)
}
