// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package surface

import (
	"bufio"
	"io"
	"math"
	"sort"
	"sync"

	"github.com/jeranaias/streamtally/internal/util"
)

// =============================================================================
// LINES SURFACE
// =============================================================================

// Lines is a scrolling, log-style surface. Positions only order the text:
// Refresh prints the pending writes sorted by row then column, one line per
// write, and Clear discards anything not yet refreshed. Nothing is erased
// from the terminal.
type Lines struct {
	mu      sync.Mutex
	w       *bufio.Writer
	width   int
	pending []pendingWrite
}

type pendingWrite struct {
	row, col int
	text     string
}

// NewLines returns a Lines surface on w. A width of 0 disables clipping.
func NewLines(w io.Writer, width int) *Lines {
	return &Lines{w: bufio.NewWriter(w), width: width}
}

// Dimensions implements Surface. Rows are unbounded.
func (l *Lines) Dimensions() (int, int) {
	if l.width <= 0 {
		return math.MaxInt32, math.MaxInt32
	}
	return math.MaxInt32, l.width
}

// Clear implements Surface.
func (l *Lines) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pending = l.pending[:0]
}

// WriteAt implements Surface.
func (l *Lines) WriteAt(row, col int, text string) error {
	if row < 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pending = append(l.pending, pendingWrite{row: row, col: col, text: text})
	return nil
}

// Refresh implements Surface.
func (l *Lines) Refresh() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	sort.SliceStable(l.pending, func(i, j int) bool {
		a, b := l.pending[i], l.pending[j]
		if a.row != b.row {
			return a.row < b.row
		}
		return a.col < b.col
	})
	for _, p := range l.pending {
		text := p.text
		if l.width > 0 {
			text = util.ClipWidth(text, l.width)
		}
		if _, err := l.w.WriteString(text + "\n"); err != nil {
			return err
		}
	}
	l.pending = l.pending[:0]
	return l.w.Flush()
}
