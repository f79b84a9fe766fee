// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package report

// DefaultPhrasePadding indents each captured phrase.
const DefaultPhrasePadding = "    "

// Phrases renders captured phrases as "<padding><prefix> <phrase>", in the
// order given (newest last).
func Phrases(recent []string, prefix, padding string) []string {
	lines := make([]string, 0, len(recent))
	for _, p := range recent {
		if prefix == "" {
			lines = append(lines, padding+p)
			continue
		}
		lines = append(lines, padding+prefix+" "+p)
	}
	return lines
}

// Tail returns at most the last n lines.
func Tail(lines []string, n int) []string {
	if n <= 0 {
		return nil
	}
	if len(lines) <= n {
		return lines
	}
	return lines[len(lines)-n:]
}
