// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package phrases keeps captured "art is ..." phrases in a SQLite phrasebook.
//
// Every capture bumps the phrase's running count and appends a sighting; the
// sighting log is pruned to the most recent entries so the phrase dashboard
// can show what was said lately, across restarts.
package phrases

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// DefaultKeep is how many sightings are retained.
const DefaultKeep = 200

// ErrClosed is returned after Close.
var ErrClosed = errors.New("phrasebook closed")

const schema = `
CREATE TABLE IF NOT EXISTS phrases (
	phrase     TEXT PRIMARY KEY,
	count      INTEGER NOT NULL DEFAULT 0,
	first_seen INTEGER NOT NULL,
	last_seen  INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS sightings (
	id      INTEGER PRIMARY KEY AUTOINCREMENT,
	phrase  TEXT NOT NULL,
	seen_at INTEGER NOT NULL
);
`

// Entry is a phrase with its running count.
type Entry struct {
	Phrase string
	Count  int
}

// =============================================================================
// BOOK
// =============================================================================

// Book is a SQLite-backed phrase tally. It satisfies the loop's sink, so a
// captured phrase is written durably as soon as it is seen.
type Book struct {
	mu     sync.Mutex
	db     *sql.DB
	keep   int
	now    func() time.Time
	closed bool

	// pending holds phrases whose write failed; they are retried first by
	// the next Commit or Persist.
	pending []string
}

// Open opens (creating if needed) the phrasebook at path.
func Open(path string, keep int) (*Book, error) {
	if keep <= 0 {
		keep = DefaultKeep
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open phrasebook: %w", err)
	}
	// One writer; also keeps ":memory:" databases on a single connection.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Book{db: db, keep: keep, now: time.Now}, nil
}

// Commit records one sighting of each phrase. Blank phrases are skipped.
// When the write fails the phrases are kept and written by the next
// successful Commit or Persist; applied then counts them too.
func (b *Book) Commit(phrases []string) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return 0, ErrClosed
	}

	batch := b.pending
	for _, p := range phrases {
		if p = strings.TrimSpace(p); p != "" {
			batch = append(batch, p)
		}
	}
	if len(batch) == 0 {
		return 0, nil
	}
	if err := b.writeLocked(batch); err != nil {
		b.pending = batch
		return 0, err
	}
	b.pending = nil
	return len(batch), nil
}

// Pending returns the number of phrases waiting to be written.
func (b *Book) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

func (b *Book) writeLocked(batch []string) error {
	ctx := context.Background()
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	now := b.now().Unix()
	for _, p := range batch {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO phrases (phrase, count, first_seen, last_seen) VALUES (?, 1, ?, ?)
			ON CONFLICT(phrase) DO UPDATE SET count = count + 1, last_seen = excluded.last_seen`,
			p, now, now); err != nil {
			return fmt.Errorf("record phrase: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO sightings (phrase, seen_at) VALUES (?, ?)", p, now); err != nil {
			return fmt.Errorf("record sighting: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM sightings WHERE id <= (SELECT MAX(id) FROM sightings) - ?", b.keep); err != nil {
		return fmt.Errorf("prune sightings: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Persist writes any pending phrases, then checkpoints the write-ahead log
// into the main database file.
func (b *Book) Persist() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	if len(b.pending) > 0 {
		if err := b.writeLocked(b.pending); err != nil {
			return err
		}
		b.pending = nil
	}
	if _, err := b.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("checkpoint: %w", err)
	}
	return nil
}

// Recent returns up to n of the latest sightings, newest last.
func (b *Book) Recent(n int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}

	rows, err := b.db.Query("SELECT phrase FROM sightings ORDER BY id DESC LIMIT ?", n)
	if err != nil {
		return nil, fmt.Errorf("query sightings: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// Top returns the n most frequent phrases, ties broken alphabetically.
func (b *Book) Top(n int) ([]Entry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}

	rows, err := b.db.Query("SELECT phrase, count FROM phrases ORDER BY count DESC, phrase ASC LIMIT ?", n)
	if err != nil {
		return nil, fmt.Errorf("query phrases: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Phrase, &e.Count); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Count returns the running count of one phrase, 0 if never seen.
func (b *Book) Count(phrase string) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return 0, ErrClosed
	}

	var n int
	err := b.db.QueryRow("SELECT count FROM phrases WHERE phrase = ?", phrase).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return n, err
}

// Close releases the database.
func (b *Book) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	return b.db.Close()
}
