// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tally

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"github.com/jeranaias/streamtally/internal/util"
	"github.com/jeranaias/streamtally/internal/vocab"
)

var (
	ErrSnapshotMissing = errors.New("snapshot missing")
	ErrSnapshotCorrupt = errors.New("snapshot corrupt")
)

// PersistError reports a failed snapshot write. The in-memory table is
// unaffected and stays authoritative.
type PersistError struct {
	Path string
	Err  error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Path, e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }

// =============================================================================
// SNAPSHOT ENCODING
// =============================================================================

// Marshal encodes the table as indented JSON with sorted keys.
func (t *Table) Marshal() ([]byte, error) {
	return marshalCounts(t.Snapshot())
}

func marshalCounts(counts map[string]int) ([]byte, error) {
	data, err := json.MarshalIndent(counts, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// Persist writes the table to path atomically.
func (t *Table) Persist(path string) error {
	data, err := t.Marshal()
	if err != nil {
		return &PersistError{Path: path, Err: err}
	}
	if err := util.WriteFileAtomic(path, data, 0644); err != nil {
		return &PersistError{Path: path, Err: err}
	}
	return nil
}

// Load reads a snapshot for vocabulary v. Terms missing from the file start
// at baseline; entries for terms outside v are dropped so the table never
// grows beyond the vocabulary.
func Load(path string, v *vocab.Vocabulary, baseline int) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrSnapshotMissing, path)
		}
		return nil, fmt.Errorf("read snapshot %s: %w", path, err)
	}

	var stored map[string]int
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSnapshotCorrupt, path, err)
	}
	if stored == nil {
		return nil, fmt.Errorf("%w: %s: not an object", ErrSnapshotCorrupt, path)
	}

	t := New(v, baseline)
	for term := range t.counts {
		n, ok := stored[term]
		if !ok {
			continue
		}
		if n < 0 {
			return nil, fmt.Errorf("%w: %s: negative count for %q", ErrSnapshotCorrupt, path, term)
		}
		t.counts[term] = n
	}
	return t, nil
}

// LoadResult says which branch LoadOrDefault took.
type LoadResult int

const (
	Loaded LoadResult = iota
	DefaultedMissing
	DefaultedCorrupt
)

// String returns the display string for the result.
func (r LoadResult) String() string {
	switch r {
	case Loaded:
		return "loaded"
	case DefaultedMissing:
		return "defaulted (missing)"
	case DefaultedCorrupt:
		return "defaulted (corrupt)"
	default:
		return "unknown"
	}
}

// LoadOrDefault loads the snapshot and falls back to a fresh table when it
// is missing or unreadable. The returned error describes why the fallback
// happened and is informational only.
func LoadOrDefault(path string, v *vocab.Vocabulary, baseline int) (*Table, LoadResult, error) {
	t, err := Load(path, v, baseline)
	if err == nil {
		return t, Loaded, nil
	}
	if errors.Is(err, ErrSnapshotMissing) {
		return New(v, baseline), DefaultedMissing, err
	}
	return New(v, baseline), DefaultedCorrupt, err
}

// =============================================================================
// STORE
// =============================================================================

// Store couples a table with its snapshot path and serializes writers:
// increment and persist happen under one lock, so every snapshot on disk
// reflects a prefix of the committed batches.
type Store struct {
	mu    sync.Mutex
	path  string
	table *Table
}

// NewStore wraps table with the snapshot location.
func NewStore(path string, table *Table) *Store {
	return &Store{path: path, table: table}
}

// Table returns the underlying table for read access.
func (s *Store) Table() *Table {
	return s.table
}

// Path returns the snapshot location.
func (s *Store) Path() string {
	return s.path
}

// Commit increments terms and persists the result. It returns the number of
// increments applied. A *PersistError leaves the increments in memory; the
// next successful persist includes them.
func (s *Store) Commit(terms []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.table.mu.Lock()
	applied := s.table.incrementLocked(terms)
	counts := s.table.snapshotLocked()
	s.table.mu.Unlock()

	if applied == 0 {
		return 0, nil
	}
	return applied, s.write(counts)
}

// Persist writes the current table without changing it.
func (s *Store) Persist() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(s.table.Snapshot())
}

func (s *Store) write(counts map[string]int) error {
	data, err := marshalCounts(counts)
	if err != nil {
		return &PersistError{Path: s.path, Err: err}
	}
	if err := util.WriteFileAtomic(s.path, data, 0644); err != nil {
		return &PersistError{Path: s.path, Err: err}
	}
	return nil
}
