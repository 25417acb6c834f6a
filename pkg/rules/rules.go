// Package rules defines the detector plugin contract and runs registered
// detectors against parsed files. Detectors are pure with respect to
// their input: no shared mutable state, so they run across files without
// synchronization.
package rules

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/panbanda/mend/pkg/models"
	"github.com/panbanda/mend/pkg/parser"
)

// RuleDetectorError names the finding synthesized when a detector
// panics. It is never fixable.
const RuleDetectorError = "detector-error"

// Detector is the single capability a rule catalog must implement to
// participate: given a parsed tree and the raw text, yield zero or more
// findings, each optionally carrying a lazy fix generator.
type Detector interface {
	// Name returns the stable rule identifier.
	Name() string
	// Category classifies the findings this detector produces.
	Category() models.Category
	// Detect inspects one parsed file. Implementations must not retain
	// or mutate the inputs.
	Detect(res *parser.Result, source string) []models.Finding
}

// Describer is an optional detector capability: a one-line summary
// shown in rule listings. Detectors without it list with an empty
// description.
type Describer interface {
	Description() string
}

// Describe returns the detector's summary when it implements Describer.
func Describe(d Detector) string {
	if desc, ok := d.(Describer); ok {
		return desc.Description()
	}
	return ""
}

// Registry holds the detectors resolved at startup. It is frozen before
// the session begins; registration is not safe during detection.
type Registry struct {
	detectors []Detector
	byName    map[string]Detector
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Detector)}
}

// Register adds a detector. Duplicate names are rejected.
func (r *Registry) Register(d Detector) error {
	name := d.Name()
	if _, exists := r.byName[name]; exists {
		return fmt.Errorf("detector %q already registered", name)
	}
	r.byName[name] = d
	r.detectors = append(r.detectors, d)
	return nil
}

// Get returns the detector with the given name.
func (r *Registry) Get(name string) (Detector, bool) {
	d, ok := r.byName[name]
	return d, ok
}

// Names returns the registered rule names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.detectors))
	for _, d := range r.detectors {
		names = append(names, d.Name())
	}
	return names
}

// Select returns the detectors filtered by the enabled/disabled config
// lists. An empty enabled list means all registered detectors.
func (r *Registry) Select(enabled, disabled []string) []Detector {
	allow := make(map[string]bool, len(enabled))
	for _, name := range enabled {
		allow[name] = true
	}
	deny := make(map[string]bool, len(disabled))
	for _, name := range disabled {
		deny[name] = true
	}

	var out []Detector
	for _, d := range r.detectors {
		if len(allow) > 0 && !allow[d.Name()] {
			continue
		}
		if deny[d.Name()] {
			continue
		}
		out = append(out, d)
	}
	return out
}

// Engine runs detectors over parsed files.
type Engine struct {
	detectors []Detector
}

// NewEngine creates an engine over a fixed detector set.
func NewEngine(detectors []Detector) *Engine {
	return &Engine{detectors: detectors}
}

// Detect invokes every detector and returns the combined findings
// ordered by start offset, then rule name. A detector panic becomes a
// single detector-error finding; the remaining detectors still run.
func (e *Engine) Detect(res *parser.Result, source string) []models.Finding {
	var all []models.Finding
	for _, d := range e.detectors {
		for _, f := range e.run(d, res, source) {
			f.Fixable = f.Fix != nil
			all = append(all, f)
		}
	}

	sort.SliceStable(all, func(i, j int) bool {
		if all[i].StartByte != all[j].StartByte {
			return all[i].StartByte < all[j].StartByte
		}
		return all[i].Rule < all[j].Rule
	})
	return all
}

func (e *Engine) run(d Detector, res *parser.Result, source string) (findings []models.Finding) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("detector", d.Name()).
				Str("path", res.Path).
				Interface("panic", r).
				Msg("detector panicked")
			findings = []models.Finding{{
				Rule:     RuleDetectorError,
				Category: models.CategoryInternal,
				Severity: models.SeverityHigh,
				Message:  fmt.Sprintf("detector %s panicked: %v", d.Name(), r),
				Path:     res.Path,
			}}
		}
	}()
	return d.Detect(res, source)
}

// LineColumn converts a byte offset into 1-based line and column.
func LineColumn(source string, offset int) (uint32, uint32) {
	if offset > len(source) {
		offset = len(source)
	}
	line := uint32(1)
	col := uint32(1)
	for i := range offset {
		if source[i] == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}
	return line, col
}
