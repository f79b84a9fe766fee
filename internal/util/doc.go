// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared across streamtally.
//
// # Key Functions
//
// File Operations:
//   - WriteFileAtomic: crash-safe replace via sibling temp file, fsync, rename
//   - ExpandHome: resolve a leading "~/" in configured paths
//
// Display Width:
//   - Width: terminal cell width of a string
//   - ClipWidth: cut a string to a number of terminal cells
//   - CenterOffset: left offset that centers content in a span
//
// # Usage
//
//	// Readers see the old file or the new one, never a mix
//	err := util.WriteFileAtomic(path, data, 0644)
//
//	// Fit a label into the remaining columns of a row
//	s := util.ClipWidth(label, cols-col)
package util
