// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the streamtally command line.
//
// The run command wires a stream source, a matcher, a count sink and a
// renderer into a loop and drives it on one of three surfaces: the
// bubbletea dashboard, a raw ANSI screen, or plain scrolling lines. The
// report, reset, vocab and config commands work on the saved state without
// touching the stream.
package cli
