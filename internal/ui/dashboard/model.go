// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package dashboard is the bubbletea program that displays the live report.
//
// The stream loop never talks to the program directly: it paints a
// TeaSurface, whose Refresh forwards the frame as a message. The model
// polls loop state and totals for the status bar and shows a spinner while
// the stream is reconnecting.
package dashboard

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/streamtally/internal/loop"
	"github.com/jeranaias/streamtally/internal/ui/styles"
)

// statusPoll is how often the status bar refreshes loop totals.
const statusPoll = 500 * time.Millisecond

// =============================================================================
// MESSAGES
// =============================================================================

// DoneMsg reports that the loop has returned.
type DoneMsg struct {
	Err error
}

type statusTickMsg time.Time

// =============================================================================
// KEYS
// =============================================================================

type keyMap struct {
	Quit key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c", "esc"),
			key.WithHelp("q", "quit"),
		),
	}
}

// =============================================================================
// MODEL
// =============================================================================

// StatusSource reports loop state and totals.
type StatusSource interface {
	State() loop.State
	Stats() loop.Stats
}

// Options wires the model to the rest of the process.
type Options struct {
	Theme   *styles.Theme
	Surface *TeaSurface
	Status  StatusSource
	RunID   string
	Source  string

	// OnQuit is called once when the user quits.
	OnQuit func()
	// OnResize is called after the surface is resized so the caller can
	// repaint at the new size.
	OnResize func()
}

// Model is the dashboard's bubbletea model.
type Model struct {
	opts    Options
	keys    keyMap
	spinner spinner.Model

	width  int
	height int
	frame  []string

	state loop.State
	stats loop.Stats

	done     bool
	err      error
	quitting bool
}

// New returns a dashboard model.
func New(opts Options) Model {
	if opts.Theme == nil {
		opts.Theme = styles.NewTheme("")
	}
	if opts.OnQuit == nil {
		opts.OnQuit = func() {}
	}
	return Model{
		opts: opts,
		keys: defaultKeys(),
		spinner: spinner.New(
			spinner.WithSpinner(spinner.Line),
			spinner.WithStyle(opts.Theme.Spinner),
		),
	}
}

// Init starts the status poll and the spinner.
func (m Model) Init() tea.Cmd {
	return tea.Batch(pollStatus(), m.spinner.Tick)
}

func pollStatus() tea.Cmd {
	return tea.Tick(statusPoll, func(t time.Time) tea.Msg { return statusTickMsg(t) })
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		if m.opts.Surface != nil {
			m.opts.Surface.Resize(canvasRows(m.height), m.width)
		}
		if m.opts.OnResize != nil {
			resize := m.opts.OnResize
			return m, func() tea.Msg { resize(); return nil }
		}
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) {
			if !m.quitting {
				m.quitting = true
				m.opts.OnQuit()
			}
			return m, tea.Quit
		}
		return m, nil

	case FrameMsg:
		m.frame = msg.Lines
		return m, nil

	case statusTickMsg:
		m.refreshStatus()
		return m, pollStatus()

	case DoneMsg:
		m.done = true
		m.err = msg.Err
		m.refreshStatus()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) refreshStatus() {
	if m.opts.Status == nil {
		return
	}
	m.state = m.opts.Status.State()
	m.stats = m.opts.Status.Stats()
}

// canvasRows leaves the last terminal line for the status bar.
func canvasRows(height int) int {
	if height <= 1 {
		return 0
	}
	return height - 1
}

// View renders the frame and the status bar.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	theme := m.opts.Theme
	rows := canvasRows(m.height)

	var b strings.Builder
	for i := 0; i < rows; i++ {
		line := ""
		if i < len(m.frame) {
			line = m.frame[i]
		}
		if i == 0 {
			b.WriteString(theme.Title.Render(line))
		} else {
			b.WriteString(theme.Cell.Render(line))
		}
		b.WriteByte('\n')
	}
	b.WriteString(m.statusBar())
	return b.String()
}

func (m Model) statusBar() string {
	theme := m.opts.Theme

	state := theme.RenderState(m.state.String())
	if m.state == loop.StateRecovering {
		state = m.spinner.View() + " " + state
	}

	stat := func(label string, v int) string {
		return theme.StatsLabel.Render(label+" ") + theme.StatsValue.Render(fmt.Sprint(v))
	}

	parts := []string{
		theme.Brand.Render("streamtally"),
		state,
		stat("msgs", m.stats.Processed),
		stat("matched", m.stats.Matched),
		stat("spurious", m.stats.Spurious),
		stat("reconnects", m.stats.Reconnects),
	}
	if m.stats.PersistFailures > 0 {
		parts = append(parts, theme.StateStopped.Render(fmt.Sprintf("persist failures %d", m.stats.PersistFailures)))
	}
	if m.opts.Source != "" {
		parts = append(parts, theme.Muted.Render("source "+m.opts.Source))
	}
	if m.opts.RunID != "" {
		parts = append(parts, theme.Muted.Render("run "+shortID(m.opts.RunID)))
	}

	switch {
	case m.done && m.err != nil:
		parts = append(parts, theme.StateStopped.Render("error: "+m.err.Error()))
	case m.done:
		parts = append(parts, theme.Muted.Render("stream ended"))
	}
	parts = append(parts, theme.Muted.Render(m.keys.Quit.Help().Key+" "+m.keys.Quit.Help().Desc))

	bar := theme.StatusBar
	if m.width > 0 {
		bar = bar.MaxWidth(m.width)
	}
	return bar.Render(strings.Join(parts, "  "))
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

var _ tea.Model = Model{}
