// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package styles provides the visual styling for the streamtally dashboard.
//
// Colors are Lip Gloss AdaptiveColor pairs resolved once against the chosen
// background, so a "light" or "dark" theme setting can override detection.
//
// # Usage
//
//	theme := styles.NewTheme(cfg.UI.Theme)
//	bar := theme.StatusBar.Render(theme.RenderState("RUNNING"))
package styles
