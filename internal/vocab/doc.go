// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package vocab defines the tracked vocabulary: terms grouped into named
// categories.
//
// # Key Types
//
//   - Category: a name plus an ordered, non-empty list of unique terms
//   - Vocabulary: ordered categories plus the derived flat term list
//
// A Vocabulary is validated once at construction and never mutated
// afterwards; it is shared by reference between the matcher, the count
// table and the report formatter.
//
// # Usage
//
//	v, err := vocab.New(
//	    vocab.Category{Name: "colours", Terms: []string{"red", "blue"}},
//	    vocab.Category{Name: "shapes", Terms: []string{"circle"}},
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, t := range v.Terms() { ... }
package vocab
