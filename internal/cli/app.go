// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jeranaias/streamtally/internal/config"
	"github.com/jeranaias/streamtally/internal/logging"
	"github.com/jeranaias/streamtally/internal/loop"
	"github.com/jeranaias/streamtally/internal/match"
	"github.com/jeranaias/streamtally/internal/metrics"
	"github.com/jeranaias/streamtally/internal/phrases"
	"github.com/jeranaias/streamtally/internal/report"
	"github.com/jeranaias/streamtally/internal/stream"
	"github.com/jeranaias/streamtally/internal/surface"
	"github.com/jeranaias/streamtally/internal/tally"
	"github.com/jeranaias/streamtally/internal/ui/dashboard"
	"github.com/jeranaias/streamtally/internal/ui/styles"
	"github.com/jeranaias/streamtally/internal/vocab"
)

// Streams are the process's standard streams.
type Streams struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer
}

// StdStreams returns the real standard streams.
func StdStreams() Streams {
	return Streams{In: os.Stdin, Out: os.Stdout, Err: os.Stderr}
}

// headerTimeLayout formats the "TOTALS SINCE" timestamp.
const headerTimeLayout = "2006-01-02 15:04"

// =============================================================================
// RUN
// =============================================================================

// Run starts the stream loop on the configured surface and blocks until the
// stream ends, ctx is cancelled, or the user quits the dashboard.
func Run(ctx context.Context, cfg *config.Config, std Streams) error {
	log, closeLog, err := setupLogging(cfg, std)
	if err != nil {
		return err
	}
	defer closeLog()

	runID := uuid.NewString()
	log = log.With("run", runID)
	log.Info("starting",
		"source", cfg.Stream.Source,
		"mode", cfg.Report.Mode,
		"surface", cfg.UI.Surface,
	)

	p, err := newPipeline(cfg, std.In, log, time.Now())
	if err != nil {
		return err
	}
	defer p.Close()

	switch cfg.UI.Surface {
	case "plain":
		width := 0
		if IsStdoutTTY() {
			width, _ = GetTerminalSize()
		}
		return p.run(ctx, surface.NewLines(std.Out, width))
	case "ansi":
		a := surface.NewANSI(os.Stdout)
		a.Start()
		defer a.Close()
		return p.run(ctx, a)
	default:
		return p.runDashboard(ctx, runID)
	}
}

// setupLogging logs to stderr for the plain surface and to the log file
// whenever a full-screen surface owns the terminal.
func setupLogging(cfg *config.Config, std Streams) (*slog.Logger, func(), error) {
	level := logging.ParseLevel(cfg.Log.Level)
	if cfg.UI.Surface == "plain" {
		return logging.Init(std.Err, level, false), func() {}, nil
	}
	log, closer, err := logging.InitFile(config.ResolvePath(cfg.Log.Path), level)
	if err != nil {
		return nil, nil, err
	}
	return log, func() { closer.Close() }, nil
}

// =============================================================================
// PIPELINE
// =============================================================================

// pipeline holds everything one run needs apart from the surface.
type pipeline struct {
	cfg     *config.Config
	log     *slog.Logger
	vocab   *vocab.Vocabulary
	matcher match.Matcher
	source  stream.Source
	header  string

	// Exactly one of store and book is set, following the match policy.
	store *tally.Store
	book  *phrases.Book
}

func newPipeline(cfg *config.Config, in io.Reader, log *slog.Logger, started time.Time) (*pipeline, error) {
	v, err := cfg.BuildVocabulary()
	if err != nil {
		return nil, err
	}
	m, err := cfg.BuildMatcher(v)
	if err != nil {
		return nil, err
	}

	p := &pipeline{
		cfg:     cfg,
		log:     log,
		vocab:   v,
		matcher: m,
		header:  report.Header(cfg.Report.Title, started.Format(headerTimeLayout)),
	}

	if cfg.Match.Policy == "phrase" {
		book, err := phrases.Open(config.ResolvePath(cfg.Phrases.DBPath), cfg.Phrases.Keep)
		if err != nil {
			return nil, err
		}
		p.book = book
	} else {
		path := config.ResolvePath(cfg.Counts.SnapshotPath)
		table, res, err := tally.LoadOrDefault(path, v, cfg.Counts.Baseline)
		if err != nil {
			log.Warn("snapshot not loaded, starting from baseline",
				"path", path, "result", res.String(), "error", err)
		} else {
			log.Info("snapshot loaded", "path", path, "terms", len(table.Terms()))
		}
		p.store = tally.NewStore(path, table)
	}

	token := cfg.Stream.Token
	if cfg.Stream.Source == "http" && token == "" && CanPrompt() && cfg.UI.Surface != "plain" {
		token, err = PromptSecret("Stream token: ", "read the stream token")
		if err != nil {
			p.Close()
			return nil, err
		}
	}

	src, err := stream.Open(cfg.Stream.Source, stream.Options{
		Input:     in,
		Path:      config.ResolvePath(cfg.Stream.Path),
		FromStart: cfg.Stream.FromStart,
		Endpoint:  cfg.Stream.Endpoint,
		Token:     token,
		Logger:    log,
	})
	if err != nil {
		p.Close()
		return nil, err
	}
	p.source = src
	return p, nil
}

// Close releases the phrasebook, if any.
func (p *pipeline) Close() error {
	if p.book != nil {
		return p.book.Close()
	}
	return nil
}

func (p *pipeline) sink() loop.Sink {
	if p.book != nil {
		return p.book
	}
	return p.store
}

func (p *pipeline) anchor() string {
	if pc, ok := p.matcher.(*match.PhraseCapture); ok {
		return pc.Anchor()
	}
	return p.cfg.Match.Anchor
}

func (p *pipeline) renderer(surf surface.Surface) Renderer {
	switch p.cfg.Report.Mode {
	case "linear":
		return newLinearRenderer(surf, p.store.Table(), p.vocab)
	case "phrases":
		return newPhrasesRenderer(surf, p.book, p.anchor(), p.header)
	default:
		return newGridRenderer(surf, p.store.Table(), p.vocab, p.cfg.Geometry(), p.header)
	}
}

func (p *pipeline) newLoop(r loop.Renderer) *loop.Loop {
	track := p.vocab.Terms()
	if p.book != nil {
		track = []string{p.anchor()}
	}
	return loop.New(p.source, p.matcher, p.sink(), r, loop.Config{
		Track:    track,
		Every:    p.cfg.Report.Every,
		MaxFPS:   p.cfg.Report.MaxFPS,
		Backoff:  p.cfg.Backoff(),
		Spurious: p.cfg.SpuriousPolicy(),
		OnStateChange: func(s loop.State) {
			p.log.Info("state changed", "state", s.String())
		},
		Logger: p.log,
	})
}

// serveMetrics starts the Prometheus endpoint when configured.
func (p *pipeline) serveMetrics(ctx context.Context, l *loop.Loop) {
	if p.cfg.Metrics.Listen == "" {
		return
	}
	cs := []prometheus.Collector{metrics.NewLoopCollector(l)}
	if p.store != nil {
		cs = append(cs, metrics.NewTermCollector(p.store.Table(), p.vocab))
	}
	reg := metrics.NewRegistry(cs...)
	go func() {
		if err := metrics.Serve(ctx, p.cfg.Metrics.Listen, reg, p.log); err != nil {
			p.log.Error("metrics server failed", "addr", p.cfg.Metrics.Listen, "error", err)
		}
	}()
}

// run drives the loop in the calling goroutine.
func (p *pipeline) run(ctx context.Context, surf surface.Surface) error {
	r := p.renderer(surf)
	l := p.newLoop(r)
	p.serveMetrics(ctx, l)

	if err := r.Repaint(); err != nil {
		p.log.Warn("initial paint failed", "error", err)
	}
	return l.Run(ctx)
}

// runDashboard runs the bubbletea program in the calling goroutine and the
// loop beside it. Quitting the dashboard cancels the loop, which persists
// before returning.
func (p *pipeline) runDashboard(ctx context.Context, runID string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	width, height := GetTerminalSize()
	surf := dashboard.NewTeaSurface(height-1, width)
	r := p.renderer(surf)
	l := p.newLoop(r)
	p.serveMetrics(ctx, l)

	model := dashboard.New(dashboard.Options{
		Theme:   styles.NewTheme(p.cfg.UI.Theme),
		Surface: surf,
		Status:  l,
		RunID:   runID,
		Source:  p.cfg.Stream.Source,
		OnQuit:  cancel,
		OnResize: func() {
			if err := r.Repaint(); err != nil {
				p.log.Warn("repaint after resize failed", "error", err)
			}
		},
	})

	opts := []tea.ProgramOption{tea.WithAltScreen()}
	if !IsTTY() {
		// stdin carries the stream; read keys from the terminal instead.
		opts = append(opts, tea.WithInputTTY())
	}
	prog := tea.NewProgram(model, opts...)
	surf.Attach(prog)

	errCh := make(chan error, 1)
	go func() {
		if err := r.Repaint(); err != nil {
			p.log.Warn("initial paint failed", "error", err)
		}
		err := l.Run(ctx)
		prog.Send(dashboard.DoneMsg{Err: err})
		errCh <- err
	}()
	go func() {
		<-ctx.Done()
		prog.Quit()
	}()

	_, progErr := prog.Run()
	cancel()
	loopErr := <-errCh

	if progErr != nil && !errors.Is(progErr, tea.ErrProgramKilled) {
		return errors.Join(fmt.Errorf("dashboard: %w", progErr), loopErr)
	}
	return loopErr
}
