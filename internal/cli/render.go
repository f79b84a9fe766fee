// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"math"
	"sync"

	"github.com/jeranaias/streamtally/internal/loop"
	"github.com/jeranaias/streamtally/internal/report"
	"github.com/jeranaias/streamtally/internal/surface"
	"github.com/jeranaias/streamtally/internal/vocab"
)

// Renderer paints loop frames and can repaint on demand, for example after
// a terminal resize.
type Renderer interface {
	loop.Renderer
	Repaint() error
}

// unbounded reports whether a surface scrolls instead of holding a frame.
func unbounded(rows int) bool {
	return rows >= math.MaxInt32
}

// =============================================================================
// GRID
// =============================================================================

// gridRenderer paints the columnar dashboard. The layout is computed once
// per surface size.
type gridRenderer struct {
	mu     sync.Mutex
	surf   surface.Surface
	counts report.Counts
	items  []report.Item
	geom   report.Geometry
	header string
	layout *report.Layout
}

func newGridRenderer(surf surface.Surface, counts report.Counts, v *vocab.Vocabulary, geom report.Geometry, header string) *gridRenderer {
	return &gridRenderer{
		surf:   surf,
		counts: counts,
		items:  report.ItemsFor(v),
		geom:   geom,
		header: header,
	}
}

func (r *gridRenderer) Render(loop.Frame) error { return r.Repaint() }

func (r *gridRenderer) Repaint() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows, cols := r.surf.Dimensions()
	if r.layout == nil || !r.layout.Fits(rows, cols) {
		r.layout = report.NewLayout(r.items, r.geom, rows, cols)
	}
	return report.Paint(r.surf, r.layout.Build(r.counts, r.header))
}

// =============================================================================
// LINEAR
// =============================================================================

// linearRenderer prints the echo of the last message followed by the full
// per-category report. On a bounded surface the newest lines are kept.
type linearRenderer struct {
	mu     sync.Mutex
	surf   surface.Surface
	counts report.Counts
	vocab  *vocab.Vocabulary
	last   loop.Frame
}

func newLinearRenderer(surf surface.Surface, counts report.Counts, v *vocab.Vocabulary) *linearRenderer {
	return &linearRenderer{surf: surf, counts: counts, vocab: v}
}

func (r *linearRenderer) Render(f loop.Frame) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.last = f
	return r.paintLocked()
}

func (r *linearRenderer) Repaint() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.paintLocked()
}

func (r *linearRenderer) paintLocked() error {
	var lines []string
	f := r.last
	switch {
	case f.Spurious:
		// A spurious echo stands alone; the totals have not moved.
		lines = []string{report.Spurious(f.Message.Text)}
	case f.Message.Text != "":
		lines = append(report.Echo(f.Message.Text, f.Terms), report.Linear(r.counts, r.vocab)...)
	default:
		lines = report.Linear(r.counts, r.vocab)
	}

	rows, _ := r.surf.Dimensions()
	if !unbounded(rows) {
		lines = report.Tail(lines, rows)
	}
	return report.Paint(r.surf, report.Stack(lines, 0))
}

// =============================================================================
// PHRASES
// =============================================================================

// PhraseSource lists recently captured phrases, newest last.
type PhraseSource interface {
	Recent(n int) ([]string, error)
}

// phrasesRenderer shows captured phrases. A scrolling surface gets each new
// phrase once; a bounded one shows the header and the latest phrases.
type phrasesRenderer struct {
	mu     sync.Mutex
	surf   surface.Surface
	book   PhraseSource
	prefix string
	header string
}

func newPhrasesRenderer(surf surface.Surface, book PhraseSource, prefix, header string) *phrasesRenderer {
	return &phrasesRenderer{surf: surf, book: book, prefix: prefix, header: header}
}

func (r *phrasesRenderer) Render(f loop.Frame) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows, _ := r.surf.Dimensions()
	if unbounded(rows) {
		if f.Spurious || len(f.Terms) == 0 {
			return nil
		}
		lines := report.Phrases(f.Terms, r.prefix, report.DefaultPhrasePadding)
		return report.Paint(r.surf, report.Stack(lines, 0))
	}
	return r.paintLocked(rows)
}

func (r *phrasesRenderer) Repaint() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows, _ := r.surf.Dimensions()
	if unbounded(rows) {
		return nil
	}
	return r.paintLocked(rows)
}

func (r *phrasesRenderer) paintLocked(rows int) error {
	if rows <= 0 {
		return report.Paint(r.surf, nil)
	}
	recent, err := r.book.Recent(rows - 1)
	if err != nil {
		return fmt.Errorf("recent phrases: %w", err)
	}

	instrs := []report.Instruction{{Row: 0, Col: 0, Text: r.header}}
	lines := report.Phrases(recent, r.prefix, report.DefaultPhrasePadding)
	instrs = append(instrs, report.Stack(lines, 1)...)
	return report.Paint(r.surf, instrs)
}
