// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package surface defines the terminal surface the dashboard paints on.
//
// # Key Types
//
//   - Surface: clear / write-at-position / refresh / query-dimensions
//   - Canvas: in-memory cell buffer that clips out-of-bounds writes
//   - ANSI: a real terminal driven with termenv escape sequences
//   - Lines: sequential text output for the scrolling linear report
//   - Recorder: test double that records every call
//
// Terminal size is operator-controlled and may be smaller than the report,
// or even zero. Every implementation clips or drops what does not fit and
// never returns an error for an out-of-bounds write.
package surface

// Surface is the minimal set of terminal operations the report needs.
type Surface interface {
	// Dimensions returns the current size in rows and columns.
	Dimensions() (rows, cols int)

	// Clear blanks the whole surface.
	Clear()

	// WriteAt places text starting at row, col. Text past the right edge is
	// clipped; rows or columns outside the surface are ignored.
	WriteAt(row, col int, text string) error

	// Refresh makes the written content visible.
	Refresh() error
}
