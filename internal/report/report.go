// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package report turns counts into text for a surface.
//
// Three renderings are provided:
//
//   - Linear: category blocks of "term: count/total" lines for scrolling output
//   - Grid: a fixed, centered multi-column dashboard (see Layout)
//   - Phrases: a list of captured phrases, newest last
//
// Every rendering produces Instructions; Paint applies them to a surface.
// Nothing here clips text: that is the surface's job.
package report

import (
	"fmt"
	"strings"

	"github.com/jeranaias/streamtally/internal/surface"
	"github.com/jeranaias/streamtally/internal/vocab"
)

// Counts is the read side of a count table.
type Counts interface {
	Count(term string) (int, bool)
	CategoryTotal(terms []string) int
}

// Instruction places one piece of text on the surface.
type Instruction struct {
	Row  int
	Col  int
	Text string
}

// =============================================================================
// LINEAR REPORT
// =============================================================================

// Linear renders every category in declaration order: the category name,
// one "term: count/total" line per term, then a blank line.
func Linear(counts Counts, v *vocab.Vocabulary) []string {
	var lines []string
	for _, cat := range v.Categories() {
		total := counts.CategoryTotal(cat.Terms)
		lines = append(lines, cat.Name)
		for _, term := range cat.Terms {
			n, _ := counts.Count(term)
			lines = append(lines, fmt.Sprintf("%s: %d/%d", term, n, total))
		}
		lines = append(lines, "")
	}
	return lines
}

// Echo renders the lines printed above a linear report for a matched message.
func Echo(text string, terms []string) []string {
	return []string{
		"Tweet: " + oneLine(text),
		"Terms: " + strings.Join(terms, " "),
	}
}

// Spurious renders the line printed for a message that matched nothing.
func Spurious(text string) string {
	return "SPURIOUS: " + oneLine(text)
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Stack places lines one per row at column 0, starting at row.
func Stack(lines []string, row int) []Instruction {
	out := make([]Instruction, 0, len(lines))
	for i, l := range lines {
		out = append(out, Instruction{Row: row + i, Col: 0, Text: l})
	}
	return out
}

// =============================================================================
// PAINTING
// =============================================================================

// Paint clears s, writes every instruction and refreshes. Write errors
// abort the frame; out-of-bounds writes are the surface's to drop.
func Paint(s surface.Surface, instrs []Instruction) error {
	s.Clear()
	for _, in := range instrs {
		if err := s.WriteAt(in.Row, in.Col, in.Text); err != nil {
			return fmt.Errorf("write at %d,%d: %w", in.Row, in.Col, err)
		}
	}
	if err := s.Refresh(); err != nil {
		return fmt.Errorf("refresh: %w", err)
	}
	return nil
}
