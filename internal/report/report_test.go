// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package report

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jeranaias/streamtally/internal/surface"
	"github.com/jeranaias/streamtally/internal/tally"
	"github.com/jeranaias/streamtally/internal/vocab"
)

func colourShape() *vocab.Vocabulary {
	return vocab.MustNew(
		vocab.Category{Name: "colour", Terms: []string{"red", "blue"}},
		vocab.Category{Name: "shape", Terms: []string{"circle"}},
	)
}

// =============================================================================
// LINEAR TESTS
// =============================================================================

func TestLinear(t *testing.T) {
	v := colourShape()
	tbl := tally.New(v, 10)
	tbl.Increment([]string{"red"})

	require.Equal(t, []string{
		"colour",
		"red: 11/21",
		"blue: 10/21",
		"",
		"shape",
		"circle: 10/10",
		"",
	}, Linear(tbl, v))
}

func TestEchoAndSpurious(t *testing.T) {
	require.Equal(t, []string{
		"Tweet: a red circle",
		"Terms: red circle",
	}, Echo("a red\n  circle", []string{"red", "circle"}))
	require.Equal(t, "SPURIOUS: nothing here", Spurious("nothing\there"))
}

// =============================================================================
// GRID TESTS
// =============================================================================

func TestItemsFor(t *testing.T) {
	v := vocab.MustNew(
		vocab.Category{Name: "colour", Terms: []string{"red"}},
		vocab.Category{Name: "shape", Terms: []string{"circle"}},
		vocab.Category{Name: "net art", Terms: []string{"glitch"}, ColumnBreak: true},
	)

	require.Equal(t, []Item{
		{Kind: ItemHeading, Text: "COLOUR"},
		{Kind: ItemRule},
		{Kind: ItemTerm, Text: "red"},
		{Kind: ItemSpacer},
		{Kind: ItemHeading, Text: "SHAPE"},
		{Kind: ItemRule},
		{Kind: ItemTerm, Text: "circle"},
		{Kind: ItemColumnBreak},
		{Kind: ItemHeading, Text: "NET ART"},
		{Kind: ItemRule},
		{Kind: ItemTerm, Text: "glitch"},
	}, ItemsFor(v))
}

func TestGeometry_Widths(t *testing.T) {
	g := DefaultGeometry()
	require.Equal(t, 25, g.CellWidth())
	require.Equal(t, 33, g.ColumnWidth())
}

func TestLayout_AestheticsCentered(t *testing.T) {
	v := vocab.Aesthetics()
	g := DefaultGeometry()
	l := NewLayout(ItemsFor(v), g, 40, 120)

	require.Equal(t, 3, l.Columns())

	instrs := l.Build(tally.New(v, 10), "TOTALS SINCE 2014-01-01 00:00:00")
	header := instrs[0]
	require.Equal(t, 0, header.Row)
	require.Equal(t, 60-16, header.Col)

	// 120/2 - 99/2 = 11; 40/2 - 30/2 = 5
	first := instrs[1]
	require.Equal(t, Instruction{Row: 5, Col: 11, Text: "COLOURS"}, first)
	require.Equal(t, strings.Repeat("-", 25), instrs[2].Text)
	require.Equal(t, "black"+strings.Repeat(" ", 18)+"10", instrs[3].Text)

	var media Instruction
	for _, in := range instrs {
		if in.Text == "MEDIA" {
			media = in
		}
	}
	require.Equal(t, Instruction{Row: 5, Col: 11 + 33, Text: "MEDIA"}, media)
}

func TestLayout_GeometryStable(t *testing.T) {
	v := vocab.Aesthetics()
	l := NewLayout(ItemsFor(v), DefaultGeometry(), 50, 140)

	low := tally.New(v, 10)
	high := tally.New(v, 10)
	for i := 0; i < 1500; i++ {
		high.Increment([]string{"red", "glitch", "tate"})
	}

	a := l.Build(low, "header")
	b := l.Build(high, "header")
	require.Len(t, b, len(a))
	for i := range a {
		require.Equal(t, a[i].Row, b[i].Row, "row of item %d", i)
		require.Equal(t, a[i].Col, b[i].Col, "col of item %d", i)
	}
}

func TestLayout_WideValueGrowsField(t *testing.T) {
	v := vocab.MustNew(vocab.Category{Name: "c", Terms: []string{"red"}})
	g := Geometry{TextWidth: 4, ValueWidth: 2, Padding: 1, ColumnHeight: 5}
	tbl := tally.New(v, 123456)

	instrs := NewLayout(ItemsFor(v), g, 10, 20).Build(tbl, "")
	require.Equal(t, "red  123456", instrs[2].Text)
}

func TestLayout_SmallSurfaceClampsOffsets(t *testing.T) {
	v := vocab.Aesthetics()
	tests := []struct {
		name       string
		rows, cols int
	}{
		{"zero", 0, 0},
		{"narrow", 10, 20},
		{"short", 3, 200},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewLayout(ItemsFor(v), DefaultGeometry(), tt.rows, tt.cols)
			for _, in := range l.Build(tally.New(v, 10), "TOTALS") {
				require.GreaterOrEqual(t, in.Col, 0)
				require.GreaterOrEqual(t, in.Row, 0)
				if in.Text != "TOTALS" {
					require.GreaterOrEqual(t, in.Row, 1)
				}
			}

			// Painting never fails, whatever falls off the edge.
			rec := surface.NewRecorder(tt.rows, tt.cols)
			require.NoError(t, Paint(rec, l.Build(tally.New(v, 10), "TOTALS")))
		})
	}
}

func TestLayout_WrapsTallColumns(t *testing.T) {
	terms := make([]string, 10)
	for i := range terms {
		terms[i] = string(rune('a' + i))
	}
	v := vocab.MustNew(vocab.Category{Name: "letters", Terms: terms})
	g := Geometry{TextWidth: 4, ValueWidth: 2, Padding: 1, ColumnHeight: 5}

	l := NewLayout(ItemsFor(v), g, 20, 80)
	require.Equal(t, 3, l.Columns()) // 12 items in columns of 5
}

func TestLayout_Fits(t *testing.T) {
	l := NewLayout(ItemsFor(colourShape()), DefaultGeometry(), 24, 80)
	require.True(t, l.Fits(24, 80))
	require.False(t, l.Fits(25, 80))
	require.False(t, l.Fits(24, 81))
}

func TestLayout_Empty(t *testing.T) {
	l := NewLayout(nil, DefaultGeometry(), 24, 80)
	require.Zero(t, l.Columns())
	require.Equal(t, []Instruction{{Row: 0, Col: 39, Text: "hi"}}, l.Build(tally.New(colourShape(), 0), "hi"))
}

// =============================================================================
// PHRASES AND PAINT TESTS
// =============================================================================

func TestPhrases(t *testing.T) {
	lines := Phrases([]string{"a yellow circle", "generative art"}, "art is", DefaultPhrasePadding)
	require.Equal(t, []string{
		"    art is a yellow circle",
		"    art is generative art",
	}, lines)

	require.Equal(t, []string{"x"}, Phrases([]string{"x"}, "", ""))
}

func TestTail(t *testing.T) {
	lines := []string{"a", "b", "c"}
	require.Equal(t, []string{"b", "c"}, Tail(lines, 2))
	require.Equal(t, lines, Tail(lines, 5))
	require.Nil(t, Tail(lines, 0))
}

func TestPaint(t *testing.T) {
	rec := surface.NewRecorder(3, 10)
	require.NoError(t, Paint(rec, Stack([]string{"one", "two"}, 1)))

	ops := rec.Ops()
	require.Equal(t, "clear", ops[0].Kind)
	require.Equal(t, "refresh", ops[len(ops)-1].Kind)
	require.Equal(t, []string{"", "one", "two"}, rec.Frame().Lines())

	rec.RefreshErr = errors.New("tty gone")
	require.Error(t, Paint(rec, nil))
}
