package qlearn

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// Entry is one learned value in a snapshot: a flat (state, rule, value)
// triple, the stable interchange shape for persistence across sessions.
type Entry struct {
	State State   `json:"state"`
	Rule  string  `json:"rule"`
	Value float64 `json:"value"`
}

// Export flattens the table into sorted entries.
func (t *Table) Export() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()

	entries := make([]Entry, 0, len(t.values))
	for state, row := range t.values {
		for rule, value := range row {
			entries = append(entries, Entry{State: state, Rule: rule, Value: value})
		}
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].State != entries[j].State {
			return entries[i].State < entries[j].State
		}
		return entries[i].Rule < entries[j].Rule
	})
	return entries
}

// Import replaces the table's values with the given entries. The
// exploration schedule is untouched; only learned values carry over
// between sessions.
func (t *Table) Import(entries []Entry) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.values = make(map[State]map[string]float64, len(entries))
	for _, e := range entries {
		row, ok := t.values[e.State]
		if !ok {
			row = make(map[string]float64)
			t.values[e.State] = row
		}
		row[e.Rule] = e.Value
	}
}

// snapshot is the on-disk JSON shape.
type snapshot struct {
	Entries []Entry `json:"entries"`
}

// SaveFile writes the table snapshot as JSON.
func (t *Table) SaveFile(path string) error {
	data, err := json.MarshalIndent(snapshot{Entries: t.Export()}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode qtable: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write qtable: %w", err)
	}
	return nil
}

// LoadFile reads a snapshot written by SaveFile and imports it.
func (t *Table) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read qtable: %w", err)
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("failed to decode qtable: %w", err)
	}

	t.Import(snap.Entries)
	return nil
}
