// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package surface

import (
	"io"
	"os"
	"sync"

	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// =============================================================================
// ANSI TERMINAL SURFACE
// =============================================================================

// SizeFunc reports terminal width and height.
type SizeFunc func() (width, height int, err error)

// ANSI paints directly on a terminal with escape sequences. Writes land in a
// back buffer; Refresh repaints every row in place so a frame never shows
// half-drawn.
type ANSI struct {
	mu   sync.Mutex
	out  *termenv.Output
	size SizeFunc
	back *Canvas
}

// NewANSI returns a surface on f, sized with golang.org/x/term.
func NewANSI(f *os.File) *ANSI {
	fd := int(f.Fd())
	return newANSI(f, func() (int, int, error) {
		return term.GetSize(fd)
	})
}

func newANSI(w io.Writer, size SizeFunc) *ANSI {
	return &ANSI{
		out:  termenv.NewOutput(w),
		size: size,
		back: NewCanvas(0, 0),
	}
}

// Start switches to the alternate screen and hides the cursor.
func (a *ANSI) Start() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.out.AltScreen()
	a.out.HideCursor()
	a.out.ClearScreen()
}

// Close restores the cursor and the main screen.
func (a *ANSI) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.out.ShowCursor()
	a.out.ExitAltScreen()
	return nil
}

// Dimensions implements Surface. A terminal that cannot be queried reports
// 0x0, which makes every write a no-op until it can.
func (a *ANSI) Dimensions() (int, int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.syncSizeLocked()
}

func (a *ANSI) syncSizeLocked() (int, int) {
	cols, rows, err := a.size()
	if err != nil || cols < 0 || rows < 0 {
		cols, rows = 0, 0
	}
	if r, c := a.back.Dimensions(); r != rows || c != cols {
		a.back.Resize(rows, cols)
	}
	return rows, cols
}

// Clear implements Surface.
func (a *ANSI) Clear() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.syncSizeLocked()
	a.back.Clear()
}

// WriteAt implements Surface.
func (a *ANSI) WriteAt(row, col int, text string) error {
	return a.back.WriteAt(row, col, text)
}

// Refresh implements Surface.
func (a *ANSI) Refresh() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.back.takeDirty() {
		return nil
	}
	for i, line := range a.back.Lines() {
		a.out.MoveCursor(i+1, 1)
		if _, err := a.out.WriteString(line); err != nil {
			return err
		}
		a.out.ClearLineRight()
	}
	return nil
}
