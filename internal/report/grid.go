// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package report

import (
	"fmt"
	"strings"

	"github.com/jeranaias/streamtally/internal/util"
	"github.com/jeranaias/streamtally/internal/vocab"
)

// =============================================================================
// GEOMETRY
// =============================================================================

// Geometry sizes the grid dashboard.
type Geometry struct {
	TextWidth    int // term label field
	ValueWidth   int // right-aligned count field
	Padding      int // blank cells between columns
	ColumnHeight int // rows per column before wrapping; also the centering height
}

// DefaultGeometry matches the classic oversized-console layout.
func DefaultGeometry() Geometry {
	return Geometry{TextWidth: 16, ValueWidth: 8, Padding: 8, ColumnHeight: 30}
}

// CellWidth is the width of a rendered "label count" cell.
func (g Geometry) CellWidth() int {
	return g.TextWidth + 1 + g.ValueWidth
}

// ColumnWidth is the horizontal distance between column starts.
func (g Geometry) ColumnWidth() int {
	return g.CellWidth() + g.Padding
}

// =============================================================================
// ITEMS
// =============================================================================

// ItemKind says how an item is rendered.
type ItemKind int

const (
	ItemHeading ItemKind = iota
	ItemRule
	ItemTerm
	ItemSpacer
	ItemColumnBreak
)

// Item is one entry of the grid, laid out top to bottom.
type Item struct {
	Kind ItemKind
	Text string // heading text or term
}

// ItemsFor derives the grid items of a vocabulary: per category an uppercase
// heading, a rule and its terms, with a spacer between categories in the same
// column and a column break where the category asks for one.
func ItemsFor(v *vocab.Vocabulary) []Item {
	var items []Item
	for i, cat := range v.Categories() {
		switch {
		case i > 0 && cat.ColumnBreak:
			items = append(items, Item{Kind: ItemColumnBreak})
		case i > 0:
			items = append(items, Item{Kind: ItemSpacer})
		}
		items = append(items,
			Item{Kind: ItemHeading, Text: strings.ToUpper(cat.Name)},
			Item{Kind: ItemRule},
		)
		for _, term := range cat.Terms {
			items = append(items, Item{Kind: ItemTerm, Text: term})
		}
	}
	return items
}

// =============================================================================
// LAYOUT
// =============================================================================

type cell struct {
	item     Item
	row, col int
}

// Layout holds the fixed screen position of every grid item for one surface
// size. Counts change between frames; positions do not.
type Layout struct {
	geom  Geometry
	rows  int
	cols  int
	cells []cell

	numColumns int
}

// NewLayout positions items on a rows x cols surface. The block of columns is
// centered; it never starts left of column 0 or above row 1, which belongs to
// the header.
func NewLayout(items []Item, g Geometry, rows, cols int) *Layout {
	l := &Layout{geom: g, rows: rows, cols: cols}

	var row, col, tallest int
	for _, it := range items {
		if it.Kind == ItemColumnBreak {
			if row > 0 {
				col++
				row = 0
			}
			continue
		}
		if g.ColumnHeight > 0 && row >= g.ColumnHeight {
			col++
			row = 0
		}
		if it.Kind == ItemSpacer && row == 0 {
			continue
		}
		l.cells = append(l.cells, cell{item: it, row: row, col: col})
		row++
		if row > tallest {
			tallest = row
		}
	}
	if len(l.cells) == 0 {
		return l
	}
	l.numColumns = l.cells[len(l.cells)-1].col + 1

	height := g.ColumnHeight
	if tallest > height {
		height = tallest
	}
	left := util.CenterOffset(cols, l.numColumns*g.ColumnWidth())
	top := util.CenterOffset(rows, height)
	if top < 1 {
		top = 1
	}

	// Grid coordinates to screen coordinates.
	for i := range l.cells {
		l.cells[i].row += top
		l.cells[i].col = left + l.cells[i].col*g.ColumnWidth()
	}
	return l
}

// Fits reports whether the layout was computed for this surface size.
func (l *Layout) Fits(rows, cols int) bool {
	return l.rows == rows && l.cols == cols
}

// Columns returns the number of grid columns.
func (l *Layout) Columns() int {
	return l.numColumns
}

// Build renders the header on row 0 and one instruction per laid-out item.
// Counts wider than the value field still render in full.
func (l *Layout) Build(counts Counts, header string) []Instruction {
	out := make([]Instruction, 0, len(l.cells)+1)
	if header != "" {
		out = append(out, Instruction{
			Row:  0,
			Col:  util.CenterOffset(l.cols, util.Width(header)),
			Text: header,
		})
	}
	for _, c := range l.cells {
		out = append(out, Instruction{Row: c.row, Col: c.col, Text: l.render(c.item, counts)})
	}
	return out
}

func (l *Layout) render(it Item, counts Counts) string {
	switch it.Kind {
	case ItemHeading:
		return it.Text
	case ItemRule:
		return strings.Repeat("-", l.geom.CellWidth())
	case ItemTerm:
		n, ok := counts.Count(it.Text)
		if !ok {
			return it.Text
		}
		return fmt.Sprintf("%-*s %*d", l.geom.TextWidth, it.Text, l.geom.ValueWidth, n)
	default:
		return ""
	}
}

// Header is the dashboard title line.
func Header(title string, since string) string {
	if since == "" {
		return title
	}
	return title + " " + since
}
