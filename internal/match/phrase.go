// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package match

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	// DefaultAnchor introduces the statement to capture.
	DefaultAnchor = "art is"
	// DefaultStopMarker ends the statement, usually the start of a link.
	DefaultStopMarker = "http"
)

var whitespaceRun = regexp.MustCompile(`\s+`)

// =============================================================================
// PHRASE CAPTURE POLICY
// =============================================================================

// PhraseCapture captures what follows a whole-word anchor phrase.
type PhraseCapture struct {
	anchor string
	stop   string
	re     *regexp.Regexp
}

// NewPhraseCapture compiles a matcher for anchor. The anchor's words must
// appear whole and in order; any run of whitespace may separate them.
// An empty stop marker disables truncation.
func NewPhraseCapture(anchor, stop string) (*PhraseCapture, error) {
	words := strings.Fields(Fold(anchor))
	if len(words) == 0 {
		return nil, fmt.Errorf("%w: empty anchor", ErrBadPattern)
	}
	for i, w := range words {
		words[i] = regexp.QuoteMeta(w)
	}

	pattern := `\b` + strings.Join(words, `\s+`) + `\b([\p{L}\p{N}_\s'’]*)`
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: anchor %q: %v", ErrBadPattern, anchor, err)
	}

	return &PhraseCapture{
		anchor: strings.Join(strings.Fields(Fold(anchor)), " "),
		stop:   Fold(stop),
		re:     re,
	}, nil
}

// Anchor returns the normalized anchor phrase.
func (p *PhraseCapture) Anchor() string {
	return p.anchor
}

// Capture returns the normalized statement following the anchor, if any.
func (p *PhraseCapture) Capture(text string) (string, bool) {
	m := p.re.FindStringSubmatch(Fold(text))
	if m == nil {
		return "", false
	}

	span := m[1]
	if p.stop != "" {
		if i := strings.Index(span, p.stop); i >= 0 {
			span = span[:i]
		}
	}

	phrase := normalizePhrase(span)
	if phrase == "" {
		return "", false
	}
	return phrase, true
}

// Extract returns the captured phrase as a single-element slice, or nil.
func (p *PhraseCapture) Extract(text string) []string {
	phrase, ok := p.Capture(text)
	if !ok {
		return nil
	}
	return []string{phrase}
}

// normalizePhrase collapses whitespace, trims, and removes one layer of
// single quotes around the statement.
func normalizePhrase(s string) string {
	s = strings.TrimSpace(whitespaceRun.ReplaceAllString(s, " "))
	s = trimQuote(s)
	return strings.TrimSpace(s)
}

func trimQuote(s string) string {
	for _, q := range []string{"'", "’"} {
		s = strings.TrimSuffix(s, q)
	}
	for _, q := range []string{"'", "’"} {
		s = strings.TrimPrefix(s, q)
	}
	return s
}
