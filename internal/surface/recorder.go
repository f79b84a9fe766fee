// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package surface

import "sync"

// Op is one recorded Surface call.
type Op struct {
	Kind string // "clear", "write", "refresh"
	Row  int
	Col  int
	Text string
}

// Recorder is a Surface test double. It records every call and paints into
// an embedded Canvas so tests can assert on both the calls and the frame.
type Recorder struct {
	mu  sync.Mutex
	ops []Op

	// RefreshErr, when set, is returned from every Refresh.
	RefreshErr error

	frame *Canvas
}

// NewRecorder returns a recorder with the given dimensions.
func NewRecorder(rows, cols int) *Recorder {
	return &Recorder{frame: NewCanvas(rows, cols)}
}

func (r *Recorder) record(op Op) {
	r.mu.Lock()
	r.ops = append(r.ops, op)
	r.mu.Unlock()
}

// Dimensions implements Surface.
func (r *Recorder) Dimensions() (int, int) {
	return r.frame.Dimensions()
}

// Clear implements Surface.
func (r *Recorder) Clear() {
	r.record(Op{Kind: "clear"})
	r.frame.Clear()
}

// WriteAt implements Surface.
func (r *Recorder) WriteAt(row, col int, text string) error {
	r.record(Op{Kind: "write", Row: row, Col: col, Text: text})
	return r.frame.WriteAt(row, col, text)
}

// Refresh implements Surface.
func (r *Recorder) Refresh() error {
	r.record(Op{Kind: "refresh"})
	return r.RefreshErr
}

// Ops returns a copy of every recorded call.
func (r *Recorder) Ops() []Op {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Op, len(r.ops))
	copy(out, r.ops)
	return out
}

// Count returns how many calls of kind were recorded.
func (r *Recorder) Count(kind string) int {
	n := 0
	for _, op := range r.Ops() {
		if op.Kind == kind {
			n++
		}
	}
	return n
}

// Frame returns the painted canvas.
func (r *Recorder) Frame() *Canvas {
	return r.frame
}

// Resize changes the reported dimensions.
func (r *Recorder) Resize(rows, cols int) {
	r.frame.Resize(rows, cols)
}

// Reset forgets recorded calls.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.ops = nil
	r.mu.Unlock()
}
