// Package qlearn implements the adaptive rule scheduler: a Q-learning
// table over discretized code-context states that learns which rules
// are worth attempting first. Selection is epsilon-greedy with decay;
// updates follow the classic Bellman form
//
//	Q(s,a) = Q(s,a) + alpha*(reward + gamma*max(Q(s',a')) - Q(s,a))
//
// The table is centrally owned by the session. Updates from concurrent
// workers are serialized through its mutex because stale-read updates
// are not associative.
package qlearn

import (
	"math/rand"
	"sync"
	"time"

	"github.com/panbanda/mend/pkg/models"
)

// Default hyperparameters. All of them are configuration, not
// load-bearing constants.
const (
	DefaultAlpha        = 0.1
	DefaultGamma        = 0.9
	DefaultEpsilon      = 0.2
	DefaultEpsilonMin   = 0.01
	DefaultEpsilonDecay = 0.995
)

// Table is the learned value function mapping (state, rule) to the
// expected reward of attempting that rule in that state. Safe for
// concurrent use.
type Table struct {
	mu sync.Mutex

	values map[State]map[string]float64

	alpha        float64
	gamma        float64
	epsilon      float64
	epsilonMin   float64
	epsilonDecay float64

	rng *rand.Rand
}

// Option is a functional option for configuring Table.
type Option func(*Table)

// WithAlpha sets the learning rate in (0,1].
func WithAlpha(alpha float64) Option {
	return func(t *Table) {
		if alpha > 0 && alpha <= 1 {
			t.alpha = alpha
		}
	}
}

// WithGamma sets the discount factor in [0,1].
func WithGamma(gamma float64) Option {
	return func(t *Table) {
		if gamma >= 0 && gamma <= 1 {
			t.gamma = gamma
		}
	}
}

// WithEpsilon sets the exploration schedule: the starting rate, the
// floor it decays to, and the multiplicative decay applied after every
// selection.
func WithEpsilon(start, min, decay float64) Option {
	return func(t *Table) {
		if start >= 0 && start <= 1 {
			t.epsilon = start
		}
		if min >= 0 && min <= start {
			t.epsilonMin = min
		}
		if decay > 0 && decay <= 1 {
			t.epsilonDecay = decay
		}
	}
}

// WithSeed fixes the exploration source for reproducible runs.
func WithSeed(seed int64) Option {
	return func(t *Table) {
		t.rng = rand.New(rand.NewSource(seed))
	}
}

// New creates an empty table with default hyperparameters.
func New(opts ...Option) *Table {
	t := &Table{
		values:       make(map[State]map[string]float64),
		alpha:        DefaultAlpha,
		gamma:        DefaultGamma,
		epsilon:      DefaultEpsilon,
		epsilonMin:   DefaultEpsilonMin,
		epsilonDecay: DefaultEpsilonDecay,
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// SelectAction picks the next rule to attempt among the available ones:
// with probability epsilon a uniformly random rule (exploration),
// otherwise the argmax over learned values (exploitation), ties broken
// by rule name so exploitation is deterministic. Epsilon decays toward
// its floor after every selection.
func (t *Table) SelectAction(state State, rules []string) string {
	if len(rules) == 0 {
		return ""
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	explore := t.rng.Float64() < t.epsilon
	t.epsilon *= t.epsilonDecay
	if t.epsilon < t.epsilonMin {
		t.epsilon = t.epsilonMin
	}

	if explore {
		return rules[t.rng.Intn(len(rules))]
	}

	best := rules[0]
	bestValue := t.value(state, best)
	for _, rule := range rules[1:] {
		v := t.value(state, rule)
		if v > bestValue || (v == bestValue && rule < best) {
			best = rule
			bestValue = v
		}
	}
	return best
}

// Reward scores a terminal fix attempt. Acceptance pays out the
// confidence the scorer assigned; rejection costs the full attempt,
// and an apply conflict costs extra since the detector run was wasted
// before validation could even start.
func (t *Table) Reward(attempt models.FixAttempt) float64 {
	if attempt.Applied {
		return attempt.Confidence
	}
	reward := -1.0
	if attempt.Reason == models.RejectApplyConflict {
		reward -= 0.5
	}
	return reward
}

// Update applies one Q-learning step for taking rule in state,
// observing reward, and landing in next.
func (t *Table) Update(state State, rule string, reward float64, next State) {
	t.mu.Lock()
	defer t.mu.Unlock()

	current := t.value(state, rule)
	target := reward + t.gamma*t.maxValue(next)

	row, ok := t.values[state]
	if !ok {
		row = make(map[string]float64)
		t.values[state] = row
	}
	row[rule] = current + t.alpha*(target-current)
}

// Value returns the learned value for (state, rule), zero if unseen.
func (t *Table) Value(state State, rule string) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.value(state, rule)
}

// Epsilon returns the current exploration rate.
func (t *Table) Epsilon() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.epsilon
}

// Len returns the number of (state, rule) pairs with learned values.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := 0
	for _, row := range t.values {
		n += len(row)
	}
	return n
}

// value reads one cell. Callers must hold t.mu.
func (t *Table) value(state State, rule string) float64 {
	return t.values[state][rule]
}

// maxValue returns the best learned value for the state, zero for
// unseen states so the bootstrap term vanishes at the frontier.
// Callers must hold t.mu.
func (t *Table) maxValue(state State) float64 {
	row, ok := t.values[state]
	if !ok || len(row) == 0 {
		return 0
	}

	first := true
	max := 0.0
	for _, v := range row {
		if first || v > max {
			max = v
			first = false
		}
	}
	return max
}
