// Package score computes the confidence that a candidate fix is safe to
// keep. No single signal is trusted alone: structural preservation,
// syntactic validity, and diff size are blended, and introducing an
// unsafe construct costs a flat penalty on top.
package score

import "regexp"

// Weights control the blend. They intentionally sum below 1.0 so even a
// perfect fix never reports full certainty.
type Weights struct {
	ASTPreservation  float64 `koanf:"ast_preservation" json:"ast_preservation"`
	SyntaxValidity   float64 `koanf:"syntax_validity" json:"syntax_validity"`
	ChangeMinimality float64 `koanf:"change_minimality" json:"change_minimality"`
	SafetyPenalty    float64 `koanf:"safety_penalty" json:"safety_penalty"`
}

// DefaultWeights returns the tuned defaults.
func DefaultWeights() Weights {
	return Weights{
		ASTPreservation:  0.35,
		SyntaxValidity:   0.35,
		ChangeMinimality: 0.20,
		SafetyPenalty:    0.30,
	}
}

// Factors are the scoring inputs, computed fresh per fix attempt.
type Factors struct {
	// ASTPreservation is the validator's structural-similarity ratio.
	ASTPreservation float64
	// SyntaxValid is false when the fix introduced diagnostics. It is
	// folded into the continuous score so a borderline fix with new
	// diagnostics cannot cross the acceptance threshold.
	SyntaxValid bool
	// ChangeMinimality is 1 - changed/total characters.
	ChangeMinimality float64
	// UnsafeIntroduced is true when the fixed text matches a denylist
	// pattern the original did not.
	UnsafeIntroduced bool
}

// defaultDenylist flags dynamic code execution the fix introduced.
var defaultDenylist = []string{
	`\beval\s*\(`,
	`\bexec\s*\(`,
	`\bsystem\s*\(`,
	`\bpopen\s*\(`,
	`\bnew\s+Function\s*\(`,
	`shell\s*=\s*True`,
}

// Scorer computes confidence scores. Safe for concurrent use.
type Scorer struct {
	weights  Weights
	denylist []*regexp.Regexp
}

// Option configures a Scorer.
type Option func(*Scorer)

// WithWeights overrides the default weights.
func WithWeights(w Weights) Option {
	return func(s *Scorer) {
		s.weights = w
	}
}

// WithDenyPatterns appends extra unsafe-construct patterns to the
// builtin denylist. Invalid patterns are ignored.
func WithDenyPatterns(patterns ...string) Option {
	return func(s *Scorer) {
		for _, p := range patterns {
			if re, err := regexp.Compile(p); err == nil {
				s.denylist = append(s.denylist, re)
			}
		}
	}
}

// New creates a scorer with default weights and denylist.
func New(opts ...Option) *Scorer {
	s := &Scorer{weights: DefaultWeights()}
	for _, p := range defaultDenylist {
		s.denylist = append(s.denylist, regexp.MustCompile(p))
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Score blends the factors into a confidence value clamped to [0,1].
func (s *Scorer) Score(f Factors) float64 {
	syntax := 0.0
	if f.SyntaxValid {
		syntax = 1.0
	}

	v := s.weights.ASTPreservation*clamp01(f.ASTPreservation) +
		s.weights.SyntaxValidity*syntax +
		s.weights.ChangeMinimality*clamp01(f.ChangeMinimality)

	if f.UnsafeIntroduced {
		v -= s.weights.SafetyPenalty
	}
	return clamp01(v)
}

// IntroducesUnsafe reports whether any denylist pattern occurs more
// often in the fixed text than in the original. Constructs that were
// already present do not penalize a fix that leaves them alone.
func (s *Scorer) IntroducesUnsafe(original, fixed string) bool {
	for _, re := range s.denylist {
		if len(re.FindAllStringIndex(fixed, -1)) > len(re.FindAllStringIndex(original, -1)) {
			return true
		}
	}
	return false
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
