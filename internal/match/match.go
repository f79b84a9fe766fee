// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package match extracts tracked terms from message text.
//
// Two policies are provided. Containment reports every vocabulary term that
// appears as a substring of the folded text. PhraseCapture finds an anchor
// phrase such as "art is" and returns the statement that follows it.
// An empty result is a normal outcome: the message is spurious.
package match

import (
	"errors"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"github.com/jeranaias/streamtally/internal/vocab"
)

// ErrBadPattern is returned when a matcher cannot be built from its
// configuration.
var ErrBadPattern = errors.New("bad match pattern")

// Matcher extracts the matches for one message.
type Matcher interface {
	Extract(text string) []string
}

// Fold normalizes text for matching: NFKC, then lowercase.
// Fullwidth and compatibility forms collapse onto their ASCII equivalents.
func Fold(text string) string {
	// cases.Caser is stateful; one per call keeps Fold safe for concurrent use.
	return cases.Lower(language.Und).String(norm.NFKC.String(text))
}

// =============================================================================
// CONTAINMENT POLICY
// =============================================================================

// Containment matches terms as plain substrings of the folded text. It is
// not word-bounded: "red" matches "bored".
type Containment struct {
	terms []string
}

// NewContainment builds a containment matcher over the vocabulary terms.
func NewContainment(v *vocab.Vocabulary) *Containment {
	return &Containment{terms: v.Terms()}
}

// Extract returns the matching terms in vocabulary order, without duplicates.
func (c *Containment) Extract(text string) []string {
	if text == "" {
		return nil
	}
	folded := Fold(text)

	var found []string
	for _, term := range c.terms {
		if strings.Contains(folded, term) {
			found = append(found, term)
		}
	}
	return found
}
