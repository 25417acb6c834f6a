// Package metrics aggregates fix-attempt outcomes per rule and per
// file. Aggregation is additive only: nothing is removed within a
// session, and every read reflects all writes that happened before it.
package metrics

import (
	"sort"
	"sync"
	"time"

	"github.com/panbanda/mend/pkg/models"
)

// RuleMetric accumulates outcomes for one rule. All fields grow
// monotonically except the duration extremes.
type RuleMetric struct {
	Attempts        int           `json:"attempts"`
	Successes       int           `json:"successes"`
	Failures        int           `json:"failures"`
	TotalDuration   time.Duration `json:"total_duration_ns"`
	MinDuration     time.Duration `json:"min_duration_ns"`
	MaxDuration     time.Duration `json:"max_duration_ns"`
	TotalConfidence float64       `json:"total_confidence"`

	// durations holds every sample for percentile queries.
	durations []time.Duration
}

// SuccessRate returns successes/attempts, zero when never attempted.
func (m *RuleMetric) SuccessRate() float64 {
	if m.Attempts == 0 {
		return 0
	}
	return float64(m.Successes) / float64(m.Attempts)
}

// AvgDuration returns the mean attempt duration.
func (m *RuleMetric) AvgDuration() time.Duration {
	if m.Attempts == 0 {
		return 0
	}
	return m.TotalDuration / time.Duration(m.Attempts)
}

// AvgConfidence returns the mean confidence across attempts.
func (m *RuleMetric) AvgConfidence() float64 {
	if m.Attempts == 0 {
		return 0
	}
	return m.TotalConfidence / float64(m.Attempts)
}

// Store aggregates attempt outcomes. Safe for concurrent use; a single
// mutex serializes writes so counters never lose updates.
type Store struct {
	mu    sync.Mutex
	rules map[string]*RuleMetric

	filesProcessed    int
	filesFixed        int
	filesPartial      int
	filesUnanalyzable int

	// observations records per-attempt success in arrival order for
	// trend regression.
	observations []float64
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{rules: make(map[string]*RuleMetric)}
}

// Record folds one terminal fix attempt into the rule's aggregate.
func (s *Store) Record(attempt models.FixAttempt) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.rules[attempt.Rule]
	if !ok {
		m = &RuleMetric{}
		s.rules[attempt.Rule] = m
	}

	m.Attempts++
	if attempt.Applied {
		m.Successes++
		s.observations = append(s.observations, 1)
	} else {
		m.Failures++
		s.observations = append(s.observations, 0)
	}

	m.TotalDuration += attempt.Duration
	m.TotalConfidence += attempt.Confidence
	m.durations = append(m.durations, attempt.Duration)

	if m.Attempts == 1 || attempt.Duration < m.MinDuration {
		m.MinDuration = attempt.Duration
	}
	if attempt.Duration > m.MaxDuration {
		m.MaxDuration = attempt.Duration
	}
}

// RecordFile folds one file outcome into the session counters.
func (s *Store) RecordFile(outcome models.FileOutcome) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.filesProcessed++
	if outcome.Fixed() {
		s.filesFixed++
	}
	if outcome.Partial {
		s.filesPartial++
	}
	if outcome.Unanalyzable {
		s.filesUnanalyzable++
	}
}

// RuleSnapshot is the JSON-ready aggregate for one rule.
type RuleSnapshot struct {
	Rule          string        `json:"rule"`
	Attempts      int           `json:"attempts"`
	Successes     int           `json:"successes"`
	Failures      int           `json:"failures"`
	SuccessRate   float64       `json:"success_rate"`
	AvgDuration   time.Duration `json:"avg_duration_ns"`
	MinDuration   time.Duration `json:"min_duration_ns"`
	MaxDuration   time.Duration `json:"max_duration_ns"`
	AvgConfidence float64       `json:"avg_confidence"`
}

// Snapshot is a stable, JSON-ready view of everything the store has
// aggregated. It is the shape consumed by reporting and telemetry.
type Snapshot struct {
	Rules []RuleSnapshot `json:"rules"`

	TotalAttempts  int     `json:"total_attempts"`
	TotalSuccesses int     `json:"total_successes"`
	TotalFailures  int     `json:"total_failures"`
	SuccessRate    float64 `json:"success_rate"`

	FilesProcessed    int `json:"files_processed"`
	FilesFixed        int `json:"files_fixed"`
	FilesPartial      int `json:"files_partial"`
	FilesUnanalyzable int `json:"files_unanalyzable"`

	GeneratedAt time.Time `json:"generated_at"`
}

// Snapshot returns the current aggregates, rules sorted by name.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Rules:             make([]RuleSnapshot, 0, len(s.rules)),
		FilesProcessed:    s.filesProcessed,
		FilesFixed:        s.filesFixed,
		FilesPartial:      s.filesPartial,
		FilesUnanalyzable: s.filesUnanalyzable,
		GeneratedAt:       time.Now(),
	}

	for rule, m := range s.rules {
		snap.Rules = append(snap.Rules, RuleSnapshot{
			Rule:          rule,
			Attempts:      m.Attempts,
			Successes:     m.Successes,
			Failures:      m.Failures,
			SuccessRate:   m.SuccessRate(),
			AvgDuration:   m.AvgDuration(),
			MinDuration:   m.MinDuration,
			MaxDuration:   m.MaxDuration,
			AvgConfidence: m.AvgConfidence(),
		})
		snap.TotalAttempts += m.Attempts
		snap.TotalSuccesses += m.Successes
		snap.TotalFailures += m.Failures
	}

	sort.Slice(snap.Rules, func(i, j int) bool {
		return snap.Rules[i].Rule < snap.Rules[j].Rule
	})

	if snap.TotalAttempts > 0 {
		snap.SuccessRate = float64(snap.TotalSuccesses) / float64(snap.TotalAttempts)
	}
	return snap
}

// TopPerformers returns up to n rules by success rate (ties by more
// attempts, then name), skipping rules never attempted.
func (s *Store) TopPerformers(n int) []RuleSnapshot {
	snaps := s.Snapshot().Rules
	sort.Slice(snaps, func(i, j int) bool {
		if snaps[i].SuccessRate != snaps[j].SuccessRate {
			return snaps[i].SuccessRate > snaps[j].SuccessRate
		}
		if snaps[i].Attempts != snaps[j].Attempts {
			return snaps[i].Attempts > snaps[j].Attempts
		}
		return snaps[i].Rule < snaps[j].Rule
	})
	return truncate(snaps, n)
}

// ProblemRules returns rules whose success rate sits at or below
// maxRate after at least minAttempts tries, worst first.
func (s *Store) ProblemRules(minAttempts int, maxRate float64) []RuleSnapshot {
	var out []RuleSnapshot
	for _, snap := range s.Snapshot().Rules {
		if snap.Attempts >= minAttempts && snap.SuccessRate <= maxRate {
			out = append(out, snap)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SuccessRate != out[j].SuccessRate {
			return out[i].SuccessRate < out[j].SuccessRate
		}
		return out[i].Rule < out[j].Rule
	})
	return out
}

// SlowestRules returns up to n rules by average duration, slowest
// first.
func (s *Store) SlowestRules(n int) []RuleSnapshot {
	snaps := s.Snapshot().Rules
	sort.Slice(snaps, func(i, j int) bool {
		if snaps[i].AvgDuration != snaps[j].AvgDuration {
			return snaps[i].AvgDuration > snaps[j].AvgDuration
		}
		return snaps[i].Rule < snaps[j].Rule
	})
	return truncate(snaps, n)
}

// DurationPercentile returns the p-th percentile attempt duration for
// a rule, zero when the rule has no samples.
func (s *Store) DurationPercentile(rule string, p int) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.rules[rule]
	if !ok || len(m.durations) == 0 {
		return 0
	}

	sorted := make([]time.Duration, len(m.durations))
	copy(sorted, m.durations)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	idx := (p * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func truncate(snaps []RuleSnapshot, n int) []RuleSnapshot {
	if n > 0 && len(snaps) > n {
		return snaps[:n]
	}
	return snaps
}
