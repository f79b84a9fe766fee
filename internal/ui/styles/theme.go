// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme holds the styled components of the dashboard.
type Theme struct {
	// Terminal capabilities
	IsDark       bool
	ColorProfile termenv.Profile

	// Grid
	Title   lipgloss.Style
	Cell    lipgloss.Style
	Heading lipgloss.Style

	// Status bar
	StatusBar  lipgloss.Style
	Brand      lipgloss.Style
	StatsLabel lipgloss.Style
	StatsValue lipgloss.Style
	Muted      lipgloss.Style
	Spinner    lipgloss.Style

	// One style per loop state
	StateInit       lipgloss.Style
	StateRunning    lipgloss.Style
	StateRecovering lipgloss.Style
	StateStopped    lipgloss.Style
}

// NewTheme creates a theme for the detected terminal. name is "dark",
// "light", or empty to follow the terminal background.
func NewTheme(name string) *Theme {
	profile := termenv.ColorProfile()
	isDark := termenv.HasDarkBackground()
	switch name {
	case "dark":
		isDark = true
	case "light":
		isDark = false
	}
	return newTheme(profile, isDark)
}

func newTheme(profile termenv.Profile, isDark bool) *Theme {
	t := &Theme{IsDark: isDark, ColorProfile: profile}
	t.initStyles()
	return t
}

// Pick resolves an adaptive color for the theme's background.
func (t *Theme) Pick(c lipgloss.AdaptiveColor) lipgloss.Color {
	if t.IsDark {
		return lipgloss.Color(c.Dark)
	}
	return lipgloss.Color(c.Light)
}

// initStyles initializes all the lip gloss styles.
func (t *Theme) initStyles() {
	t.Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(t.Pick(Cyan))

	t.Cell = lipgloss.NewStyle().
		Foreground(t.Pick(TextPrimary))

	t.Heading = lipgloss.NewStyle().
		Bold(true).
		Foreground(t.Pick(Purple))

	t.StatusBar = lipgloss.NewStyle().
		Background(t.Pick(SurfaceDim)).
		Foreground(t.Pick(TextSecondary))

	t.Brand = lipgloss.NewStyle().
		Bold(true).
		Foreground(t.Pick(Cyan))

	t.StatsLabel = lipgloss.NewStyle().
		Foreground(t.Pick(TextSecondary))

	t.StatsValue = lipgloss.NewStyle().
		Bold(true).
		Foreground(t.Pick(TextPrimary))

	t.Muted = lipgloss.NewStyle().
		Foreground(t.Pick(TextMuted))

	t.Spinner = lipgloss.NewStyle().
		Foreground(t.Pick(Amber))

	t.StateInit = lipgloss.NewStyle().
		Foreground(t.Pick(TextSecondary))

	t.StateRunning = lipgloss.NewStyle().
		Bold(true).
		Foreground(t.Pick(Emerald))

	t.StateRecovering = lipgloss.NewStyle().
		Bold(true).
		Foreground(t.Pick(Amber))

	t.StateStopped = lipgloss.NewStyle().
		Bold(true).
		Foreground(t.Pick(Rose))
}

// StateStyle returns the style for a state name.
func (t *Theme) StateStyle(state string) lipgloss.Style {
	switch state {
	case "RUNNING":
		return t.StateRunning
	case "RECOVERING":
		return t.StateRecovering
	case "STOPPED":
		return t.StateStopped
	default:
		return t.StateInit
	}
}

// RenderState renders a state name with its indicator.
func (t *Theme) RenderState(state string) string {
	return t.StateStyle(state).Render(Indicator(state) + " " + state)
}
