// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package tally holds the running per-term counts and their on-disk snapshot.
//
// A Table has exactly one entry per vocabulary term for its whole life. It is
// seeded with a baseline count so early proportions are not noisy, mutated
// only by Increment, and persisted as a flat JSON object of term to count.
package tally

import (
	"sync"

	"github.com/jeranaias/streamtally/internal/vocab"
)

// DefaultBaseline is the starting count for every term.
const DefaultBaseline = 10

// =============================================================================
// COUNT TABLE
// =============================================================================

// Table maps each vocabulary term to a non-negative count.
// It is safe for concurrent use.
type Table struct {
	mu     sync.RWMutex
	terms  []string
	counts map[string]int
}

// New returns a table with every term of v set to baseline.
func New(v *vocab.Vocabulary, baseline int) *Table {
	if baseline < 0 {
		baseline = 0
	}
	t := &Table{
		terms:  v.Terms(),
		counts: make(map[string]int, v.Len()),
	}
	for _, term := range t.terms {
		t.counts[term] = baseline
	}
	return t
}

// Increment adds one to each known term and returns how many were applied.
// Unknown terms are ignored; an empty list is a no-op.
func (t *Table) Increment(terms []string) int {
	if len(terms) == 0 {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.incrementLocked(terms)
}

func (t *Table) incrementLocked(terms []string) int {
	applied := 0
	for _, term := range terms {
		if _, ok := t.counts[term]; ok {
			t.counts[term]++
			applied++
		}
	}
	return applied
}

// Count returns the count for term and whether it is tracked.
func (t *Table) Count(term string) (int, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n, ok := t.counts[term]
	return n, ok
}

// CategoryTotal sums the counts of the given terms. Untracked terms count as
// zero and an empty list totals zero.
func (t *Table) CategoryTotal(terms []string) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	total := 0
	for _, term := range terms {
		total += t.counts[term]
	}
	return total
}

// Terms returns the tracked terms in vocabulary order.
func (t *Table) Terms() []string {
	return append([]string(nil), t.terms...)
}

// Snapshot returns a consistent copy of all counts.
func (t *Table) Snapshot() map[string]int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snapshotLocked()
}

func (t *Table) snapshotLocked() map[string]int {
	out := make(map[string]int, len(t.counts))
	for k, v := range t.counts {
		out[k] = v
	}
	return out
}

// Equal reports whether both tables track the same terms with the same counts.
func (t *Table) Equal(other *Table) bool {
	a, b := t.Snapshot(), other.Snapshot()
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if w, ok := b[k]; !ok || w != v {
			return false
		}
	}
	return true
}
