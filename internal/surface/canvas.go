// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package surface

import (
	"strings"
	"sync"

	"github.com/mattn/go-runewidth"
)

// =============================================================================
// CANVAS
// =============================================================================

// Canvas is an in-memory Surface. Each cell holds one rune; the cell after a
// double-width rune is a continuation and renders as nothing.
type Canvas struct {
	mu    sync.Mutex
	rows  int
	cols  int
	cells [][]rune
	dirty bool
}

// continuation marks the second cell of a double-width rune.
const continuation rune = -1

// NewCanvas returns a blank canvas. Negative sizes are treated as zero.
func NewCanvas(rows, cols int) *Canvas {
	c := &Canvas{}
	c.Resize(rows, cols)
	return c
}

// Resize changes the canvas size and blanks it.
func (c *Canvas) Resize(rows, cols int) {
	if rows < 0 {
		rows = 0
	}
	if cols < 0 {
		cols = 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rows, c.cols = rows, cols
	c.cells = make([][]rune, rows)
	for r := range c.cells {
		c.cells[r] = blankRow(cols)
	}
	c.dirty = true
}

// Dimensions implements Surface.
func (c *Canvas) Dimensions() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rows, c.cols
}

// Clear implements Surface.
func (c *Canvas) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for r := range c.cells {
		c.cells[r] = blankRow(c.cols)
	}
	c.dirty = true
}

// WriteAt implements Surface. Out-of-bounds positions are ignored and text is
// clipped at the right edge by display width.
func (c *Canvas) WriteAt(row, col int, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if row < 0 || row >= c.rows || col >= c.cols {
		return nil
	}

	x := col
	for _, r := range text {
		w := runewidth.RuneWidth(r)
		if w == 0 {
			continue
		}
		if x+w > c.cols {
			break
		}
		if x >= 0 {
			c.cells[row][x] = r
			if w == 2 {
				c.cells[row][x+1] = continuation
			}
		}
		x += w
	}
	c.dirty = true
	return nil
}

// Refresh implements Surface. A canvas has nothing to flush.
func (c *Canvas) Refresh() error {
	return nil
}

// Lines returns every row with trailing blanks removed.
func (c *Canvas) Lines() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.linesLocked()
}

func (c *Canvas) linesLocked() []string {
	out := make([]string, c.rows)
	var b strings.Builder
	for r, row := range c.cells {
		b.Reset()
		for _, cell := range row {
			if cell != continuation {
				b.WriteRune(cell)
			}
		}
		out[r] = strings.TrimRight(b.String(), " ")
	}
	return out
}

// String renders the canvas as newline-separated rows.
func (c *Canvas) String() string {
	return strings.Join(c.Lines(), "\n")
}

// Row returns a single row, or "" when out of range.
func (c *Canvas) Row(row int) string {
	lines := c.Lines()
	if row < 0 || row >= len(lines) {
		return ""
	}
	return lines[row]
}

// takeDirty reports whether anything changed since the last call.
func (c *Canvas) takeDirty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	d := c.dirty
	c.dirty = false
	return d
}

func blankRow(cols int) []rune {
	row := make([]rune, cols)
	for i := range row {
		row[i] = ' '
	}
	return row
}
