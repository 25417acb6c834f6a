// Package locator expands command-line targets into the concrete list
// of files a session will process. A target may be an existing file, a
// directory (scanned recursively), a doublestar glob, or a bare
// filename searched for anywhere under the base directory.
package locator

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/panbanda/mend/internal/scanner"
	"github.com/panbanda/mend/pkg/parser"
)

var (
	// ErrNotFound means a target matched no supported files.
	ErrNotFound = errors.New("no files matched")
	// ErrUnsupported means an explicitly named file has no grammar.
	ErrUnsupported = errors.New("unsupported file type")
)

// Options configures target resolution.
type Options struct {
	BaseDir string
}

// Option is a functional option for Resolve.
type Option func(*Options)

// WithBaseDir sets the base directory for glob and basename searches.
func WithBaseDir(dir string) Option {
	return func(o *Options) {
		o.BaseDir = dir
	}
}

// Resolve expands every target and returns the union, first appearance
// winning. Resolution order per target: exact path, then glob, then
// basename search. A target that matches nothing fails the whole
// resolution so a typoed path never silently shrinks a run.
func Resolve(targets []string, sc *scanner.Scanner, opts ...Option) ([]string, error) {
	options := &Options{
		BaseDir: ".",
	}
	for _, opt := range opts {
		opt(options)
	}

	seen := make(map[string]bool)
	var out []string
	for _, target := range targets {
		paths, err := resolveOne(target, sc, options)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", target, err)
		}
		for _, p := range paths {
			if !seen[p] {
				seen[p] = true
				out = append(out, p)
			}
		}
	}
	return out, nil
}

func resolveOne(target string, sc *scanner.Scanner, options *Options) ([]string, error) {
	// Try exact path first
	if info, err := os.Stat(target); err == nil {
		if info.IsDir() {
			return sc.ScanDir(target)
		}
		// An explicitly named file bypasses exclusion rules but still
		// needs a grammar.
		if parser.DetectLanguage(target) == parser.LangUnknown {
			return nil, ErrUnsupported
		}
		return []string{target}, nil
	}

	// Try glob pattern if contains glob characters
	if containsGlobChars(target) {
		return resolveGlob(target, options.BaseDir)
	}

	// Try basename search if it looks like a filename (has extension)
	if looksLikeFilename(target) {
		return resolveGlob("**/"+target, options.BaseDir)
	}

	return nil, ErrNotFound
}

func containsGlobChars(s string) bool {
	return strings.Contains(s, "*") || strings.Contains(s, "?") || strings.Contains(s, "[")
}

func resolveGlob(pattern, baseDir string) ([]string, error) {
	matches, err := doublestar.Glob(os.DirFS(baseDir), filepath.ToSlash(pattern))
	if err != nil {
		return nil, err
	}

	var paths []string
	for _, m := range matches {
		full := filepath.Join(baseDir, filepath.FromSlash(m))
		if info, err := os.Stat(full); err != nil || info.IsDir() {
			continue
		}
		if parser.DetectLanguage(full) == parser.LangUnknown {
			continue
		}
		paths = append(paths, full)
	}

	if len(paths) == 0 {
		return nil, ErrNotFound
	}
	return paths, nil
}

func looksLikeFilename(s string) bool {
	ext := filepath.Ext(s)
	return ext != "" && !strings.Contains(s, string(filepath.Separator))
}
