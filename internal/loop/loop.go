// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package loop runs the message pipeline: stream → matcher → sink → renderer.
//
// The loop is a small state machine:
//
//	INIT → RUNNING ⇄ RECOVERING
//	  any → STOPPED (context cancelled, end of stream, or fatal error)
//
// Transport errors from the stream move it to RECOVERING, where it sleeps a
// fixed backoff and reconnects, forever. Any other stream error is fatal and
// returned from Run. Persist and render failures are logged and never stop
// the loop.
package loop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/jeranaias/streamtally/internal/match"
	"github.com/jeranaias/streamtally/internal/stream"
)

// DefaultBackoff is the pause before each reconnect attempt.
const DefaultBackoff = time.Second

// Sink receives matched terms. Commit applies them and persists the result
// as one step; Persist writes the current state again. A failed Commit keeps
// its terms so that a later Commit or Persist writes them.
type Sink interface {
	Commit(terms []string) (applied int, err error)
	Persist() error
}

// Frame is what the renderer is given for one repaint.
type Frame struct {
	Message  stream.Message
	Terms    []string // empty when Spurious
	Spurious bool
	State    State
	Stats    Stats
}

// Renderer paints a frame.
type Renderer interface {
	Render(f Frame) error
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(f Frame) error

// Render implements Renderer.
func (fn RendererFunc) Render(f Frame) error { return fn(f) }

// Stats are running totals since the loop started.
type Stats struct {
	Processed       int
	Matched         int
	Spurious        int
	Persists        int
	PersistFailures int
	Reconnects      int
	Renders         int
	RenderFailures  int
}

// Config tunes a Loop. Zero values get defaults.
type Config struct {
	Track    []string
	Every    int     // repaint every Nth processed message; default 1
	MaxFPS   float64 // repaint rate ceiling; 0 = unlimited
	Backoff  time.Duration
	Spurious SpuriousPolicy

	Sleep         Sleeper
	OnStateChange func(State)
	Logger        *slog.Logger
}

// Loop drives one message pipeline.
type Loop struct {
	cfg      Config
	source   stream.Source
	matcher  match.Matcher
	sink     Sink
	renderer Renderer
	limiter  *rate.Limiter
	log      *slog.Logger

	mu    sync.Mutex
	state State
	stats Stats
	dirty bool // committed increments not yet on disk
}

// New assembles a loop. renderer may be nil.
func New(source stream.Source, matcher match.Matcher, sink Sink, renderer Renderer, cfg Config) *Loop {
	if cfg.Every <= 0 {
		cfg.Every = 1
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = DefaultBackoff
	}
	if cfg.Spurious == "" {
		cfg.Spurious = SpuriousEcho
	}
	if cfg.Sleep == nil {
		cfg.Sleep = ContextSleep
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	l := &Loop{
		cfg:      cfg,
		source:   source,
		matcher:  matcher,
		sink:     sink,
		renderer: renderer,
		log:      cfg.Logger.With("component", "loop"),
		state:    StateInit,
	}
	if cfg.MaxFPS > 0 {
		l.limiter = rate.NewLimiter(rate.Limit(cfg.MaxFPS), 1)
	}
	return l
}

// State returns the current state.
func (l *Loop) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Stats returns a copy of the running totals.
func (l *Loop) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stats
}

func (l *Loop) setState(s State) {
	l.mu.Lock()
	prev := l.state
	l.state = s
	l.mu.Unlock()

	if prev == s {
		return
	}
	l.log.Debug("state change", "from", prev, "to", s)
	if l.cfg.OnStateChange != nil {
		l.cfg.OnStateChange(s)
	}
}

// =============================================================================
// RUN
// =============================================================================

// Run consumes the stream until ctx ends, the stream ends, or a fatal error
// occurs. Cancellation and end of stream return nil. Unsaved increments are
// persisted before Run returns.
func (l *Loop) Run(ctx context.Context) error {
	l.setState(StateInit)

	h, err := l.source.Connect(ctx, l.cfg.Track)
	if err != nil {
		if !stream.IsTransport(err) {
			return l.stop(ctx, fmt.Errorf("connect: %w", err))
		}
		if h, err = l.recover(ctx, err); err != nil {
			return l.stop(ctx, err)
		}
	}
	l.setState(StateRunning)

	for {
		msg, err := h.Next(ctx)
		if err == nil {
			l.handle(msg)
			continue
		}
		h.Close()

		switch {
		case errors.Is(err, stream.ErrEndOfStream):
			l.log.Info("stream ended")
			return l.stop(ctx, nil)
		case ctx.Err() != nil:
			return l.stop(ctx, nil)
		case stream.IsTransport(err):
			if h, err = l.recover(ctx, err); err != nil {
				return l.stop(ctx, err)
			}
			l.setState(StateRunning)
		default:
			return l.stop(ctx, fmt.Errorf("stream: %w", err))
		}
	}
}

// recover sleeps and reconnects until it succeeds, ctx ends, or the source
// reports a non-transport error.
func (l *Loop) recover(ctx context.Context, cause error) (stream.Handle, error) {
	l.setState(StateRecovering)
	l.log.Warn("stream transport error, reconnecting", "error", cause, "backoff", l.cfg.Backoff)

	for attempt := 1; ; attempt++ {
		if err := l.cfg.Sleep(ctx, l.cfg.Backoff); err != nil {
			return nil, err
		}
		h, err := l.source.Connect(ctx, l.cfg.Track)
		if err == nil {
			l.mu.Lock()
			l.stats.Reconnects++
			l.mu.Unlock()
			l.log.Info("stream reconnected", "attempts", attempt)
			return h, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !stream.IsTransport(err) {
			return nil, fmt.Errorf("reconnect: %w", err)
		}
		l.log.Warn("reconnect failed", "attempt", attempt, "error", err)
	}
}

// stop flushes unsaved counts and enters StateStopped. Cancellation of ctx
// is a clean exit.
func (l *Loop) stop(ctx context.Context, err error) error {
	l.mu.Lock()
	dirty := l.dirty
	l.mu.Unlock()

	if dirty {
		if perr := l.sink.Persist(); perr != nil {
			l.log.Error("final persist failed", "error", perr)
			l.count(func(s *Stats) { s.PersistFailures++ })
		} else {
			l.count(func(s *Stats) { s.Persists++ })
			l.setDirty(false)
		}
	}
	l.setState(StateStopped)

	if err != nil && ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		return nil
	}
	return err
}

// =============================================================================
// MESSAGE HANDLING
// =============================================================================

func (l *Loop) handle(msg stream.Message) {
	terms := l.matcher.Extract(msg.Text)

	l.mu.Lock()
	l.stats.Processed++
	processed := l.stats.Processed
	l.mu.Unlock()

	if len(terms) == 0 {
		l.spurious(msg, processed)
		return
	}

	applied, err := l.sink.Commit(terms)
	switch {
	case err != nil:
		l.log.Error("persist failed, will retry on next write", "error", err)
		l.count(func(s *Stats) { s.Matched++; s.PersistFailures++ })
		l.setDirty(true)
	case applied > 0:
		l.count(func(s *Stats) { s.Matched++; s.Persists++ })
		l.setDirty(false)
	default:
		l.count(func(s *Stats) { s.Matched++ })
	}

	if l.shouldRender(processed) {
		l.render(Frame{Message: msg, Terms: terms})
	}
}

// shouldRender applies the every-Nth-message and frame-rate throttles. It
// consumes a limiter token only when the message count allows a repaint.
func (l *Loop) shouldRender(processed int) bool {
	if processed%l.cfg.Every != 0 {
		return false
	}
	return l.limiter == nil || l.limiter.Allow()
}

func (l *Loop) spurious(msg stream.Message, processed int) {
	l.count(func(s *Stats) { s.Spurious++ })

	switch l.cfg.Spurious {
	case SpuriousEcho:
		l.log.Info("spurious message", "text", msg.Text)
		if l.shouldRender(processed) {
			l.render(Frame{Message: msg, Spurious: true})
		}
	case SpuriousStrict:
		l.log.Debug("spurious message dropped", "id", msg.ID)
	}
}

func (l *Loop) render(f Frame) {
	if l.renderer == nil {
		return
	}
	f.State = l.State()
	f.Stats = l.Stats()
	if err := l.renderer.Render(f); err != nil {
		l.log.Warn("render failed, skipping tick", "error", err)
		l.count(func(s *Stats) { s.RenderFailures++ })
		return
	}
	l.count(func(s *Stats) { s.Renders++ })
}

func (l *Loop) count(fn func(*Stats)) {
	l.mu.Lock()
	fn(&l.stats)
	l.mu.Unlock()
}

func (l *Loop) setDirty(d bool) {
	l.mu.Lock()
	l.dirty = d
	l.mu.Unlock()
}
