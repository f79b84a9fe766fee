// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package dashboard

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/streamtally/internal/surface"
)

// Sender delivers messages to a running program; *tea.Program satisfies it.
type Sender interface {
	Send(msg tea.Msg)
}

// FrameMsg carries one painted frame from the loop to the program.
type FrameMsg struct {
	Lines []string
}

// TeaSurface is a Surface painted by the loop goroutine and displayed by a
// bubbletea program. Writes land in a Canvas; Refresh hands the program an
// immutable copy of it.
type TeaSurface struct {
	canvas *surface.Canvas

	mu     sync.Mutex
	sender Sender
}

var _ surface.Surface = (*TeaSurface)(nil)

// NewTeaSurface returns a surface of the given size. Frames are dropped
// until Attach is called.
func NewTeaSurface(rows, cols int) *TeaSurface {
	return &TeaSurface{canvas: surface.NewCanvas(rows, cols)}
}

// Attach sets the program that receives frames.
func (s *TeaSurface) Attach(sender Sender) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sender = sender
}

// Resize changes the canvas size; the next frame is laid out for it.
func (s *TeaSurface) Resize(rows, cols int) {
	s.canvas.Resize(rows, cols)
}

func (s *TeaSurface) Dimensions() (int, int) { return s.canvas.Dimensions() }

func (s *TeaSurface) Clear() { s.canvas.Clear() }

func (s *TeaSurface) WriteAt(row, col int, text string) error {
	return s.canvas.WriteAt(row, col, text)
}

// Refresh sends the current canvas contents to the program.
func (s *TeaSurface) Refresh() error {
	lines := s.canvas.Lines()
	s.mu.Lock()
	sender := s.sender
	s.mu.Unlock()
	if sender != nil {
		sender.Send(FrameMsg{Lines: lines})
	}
	return nil
}
