// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import "github.com/mattn/go-runewidth"

// UNICODE: widths are terminal cells, not bytes or runes. CJK and emoji take
// two cells, combining marks take none.

// Width returns the display width of s in terminal cells.
func Width(s string) int {
	return runewidth.StringWidth(s)
}

// ClipWidth cuts s so it occupies at most maxWidth cells. A double-width
// rune that would straddle the limit is dropped rather than split.
func ClipWidth(s string, maxWidth int) string {
	if maxWidth <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) <= maxWidth {
		return s
	}
	return runewidth.Truncate(s, maxWidth, "")
}

// CenterOffset returns the offset that centers content of width inner within
// outer cells. It is never negative: content wider than the span starts at 0.
func CenterOffset(outer, inner int) int {
	off := outer/2 - inner/2
	if off < 0 {
		return 0
	}
	return off
}
