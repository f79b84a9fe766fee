// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package vocab

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalid is returned (wrapped) for any vocabulary that cannot be used.
var ErrInvalid = errors.New("invalid vocabulary")

// =============================================================================
// CATEGORY
// =============================================================================

// Category is a named, ordered group of terms.
type Category struct {
	Name  string   `toml:"name" json:"name"`
	Terms []string `toml:"terms" json:"terms"`

	// ColumnBreak starts a new dashboard column before this category.
	// It only affects the grid layout, never counting.
	ColumnBreak bool `toml:"column_break" json:"column_break,omitempty"`
}

// Contains reports whether term belongs to the category.
func (c Category) Contains(term string) bool {
	for _, t := range c.Terms {
		if t == term {
			return true
		}
	}
	return false
}

// =============================================================================
// VOCABULARY
// =============================================================================

// Vocabulary is an immutable, validated set of categories.
type Vocabulary struct {
	categories []Category
	terms      []string
	owner      map[string]int // term -> category index
}

// New validates the categories and builds a Vocabulary.
// Terms are trimmed and lowercased; a term may appear in only one category.
func New(categories ...Category) (*Vocabulary, error) {
	if len(categories) == 0 {
		return nil, fmt.Errorf("%w: no categories", ErrInvalid)
	}

	v := &Vocabulary{
		categories: make([]Category, 0, len(categories)),
		owner:      make(map[string]int),
	}
	names := make(map[string]bool, len(categories))

	for i, c := range categories {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: category %d has no name", ErrInvalid, i)
		}
		if names[name] {
			return nil, fmt.Errorf("%w: duplicate category %q", ErrInvalid, name)
		}
		names[name] = true

		if len(c.Terms) == 0 {
			return nil, fmt.Errorf("%w: category %q has no terms", ErrInvalid, name)
		}

		terms := make([]string, 0, len(c.Terms))
		for _, raw := range c.Terms {
			term := strings.ToLower(strings.TrimSpace(raw))
			if term == "" {
				return nil, fmt.Errorf("%w: empty term in category %q", ErrInvalid, name)
			}
			if prev, dup := v.owner[term]; dup {
				return nil, fmt.Errorf("%w: term %q in both %q and %q",
					ErrInvalid, term, v.categories[prev].Name, name)
			}
			if _, dup := index(terms, term); dup {
				return nil, fmt.Errorf("%w: term %q repeated in %q", ErrInvalid, term, name)
			}
			v.owner[term] = len(v.categories)
			terms = append(terms, term)
		}

		v.categories = append(v.categories, Category{
			Name:        name,
			Terms:       terms,
			ColumnBreak: c.ColumnBreak,
		})
		v.terms = append(v.terms, terms...)
	}

	return v, nil
}

// MustNew is like New but panics on error. Intended for built-in presets.
func MustNew(categories ...Category) *Vocabulary {
	v, err := New(categories...)
	if err != nil {
		panic(err)
	}
	return v
}

// Categories returns a copy of the categories in declaration order.
func (v *Vocabulary) Categories() []Category {
	out := make([]Category, len(v.categories))
	for i, c := range v.categories {
		out[i] = Category{
			Name:        c.Name,
			Terms:       append([]string(nil), c.Terms...),
			ColumnBreak: c.ColumnBreak,
		}
	}
	return out
}

// Terms returns every term in vocabulary order.
func (v *Vocabulary) Terms() []string {
	return append([]string(nil), v.terms...)
}

// Len returns the number of terms.
func (v *Vocabulary) Len() int {
	return len(v.terms)
}

// Has reports whether term is part of the vocabulary.
func (v *Vocabulary) Has(term string) bool {
	_, ok := v.owner[term]
	return ok
}

// CategoryOf returns the name of the category that owns term.
func (v *Vocabulary) CategoryOf(term string) (string, bool) {
	i, ok := v.owner[term]
	if !ok {
		return "", false
	}
	return v.categories[i].Name, true
}

func index(list []string, s string) (int, bool) {
	for i, x := range list {
		if x == s {
			return i, true
		}
	}
	return -1, false
}
