// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package loop

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jeranaias/streamtally/internal/match"
	"github.com/jeranaias/streamtally/internal/stream"
	"github.com/jeranaias/streamtally/internal/tally"
	"github.com/jeranaias/streamtally/internal/vocab"
)

// =============================================================================
// FAKES
// =============================================================================

// step is one scripted result of Handle.Next.
type step struct {
	text string
	err  error
}

func msg(text string) step { return step{text: text} }

func fail(err error) step { return step{err: err} }

// fakeSource hands out one scripted session per Connect. connectErrs are
// returned, in order, before sessions are used.
type fakeSource struct {
	mu          sync.Mutex
	sessions    [][]step
	connectErrs []error
	connects    int
	tracks      [][]string
}

func (s *fakeSource) Connect(ctx context.Context, track []string) (stream.Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connects++
	s.tracks = append(s.tracks, track)
	if len(s.connectErrs) > 0 {
		err := s.connectErrs[0]
		s.connectErrs = s.connectErrs[1:]
		return nil, err
	}
	if len(s.sessions) == 0 {
		return &fakeHandle{steps: []step{fail(stream.ErrEndOfStream)}}, nil
	}
	h := &fakeHandle{steps: s.sessions[0]}
	s.sessions = s.sessions[1:]
	return h, nil
}

type fakeHandle struct {
	steps  []step
	closed bool
}

func (h *fakeHandle) Next(ctx context.Context) (stream.Message, error) {
	if err := ctx.Err(); err != nil {
		return stream.Message{}, err
	}
	if len(h.steps) == 0 {
		// Session exhausted: block like a quiet stream.
		<-ctx.Done()
		return stream.Message{}, ctx.Err()
	}
	st := h.steps[0]
	h.steps = h.steps[1:]
	if st.err != nil {
		return stream.Message{}, st.err
	}
	return stream.Message{Text: st.text}, nil
}

func (h *fakeHandle) Close() error {
	h.closed = true
	return nil
}

// countingSink wraps a real store and counts calls.
type countingSink struct {
	store    *tally.Store
	commits  int
	persists int
	failNext int
}

func (s *countingSink) Commit(terms []string) (int, error) {
	s.commits++
	if s.failNext > 0 {
		s.failNext--
		s.store.Table().Increment(terms)
		return len(terms), errors.New("disk full")
	}
	applied, err := s.store.Commit(terms)
	if applied > 0 && err == nil {
		s.persists++
	}
	return applied, err
}

func (s *countingSink) Persist() error {
	s.persists++
	return s.store.Persist()
}

// fakeSleeper records requested sleeps without waiting.
type fakeSleeper struct {
	mu     sync.Mutex
	sleeps []time.Duration
}

func (f *fakeSleeper) Sleep(ctx context.Context, d time.Duration) error {
	f.mu.Lock()
	f.sleeps = append(f.sleeps, d)
	f.mu.Unlock()
	return ctx.Err()
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func redBlue() *vocab.Vocabulary {
	return vocab.MustNew(vocab.Category{Name: "colour", Terms: []string{"red", "blue"}})
}

func newSink(t *testing.T, v *vocab.Vocabulary) *countingSink {
	t.Helper()
	path := filepath.Join(t.TempDir(), "counts.json")
	return &countingSink{store: tally.NewStore(path, tally.New(v, 10))}
}

// =============================================================================
// STATE TESTS
// =============================================================================

func TestState_String(t *testing.T) {
	require.Equal(t, "INIT", StateInit.String())
	require.Equal(t, "RUNNING", StateRunning.String())
	require.Equal(t, "RECOVERING", StateRecovering.String())
	require.Equal(t, "STOPPED", StateStopped.String())
	require.Equal(t, "State(9)", State(9).String())
}

func TestParseSpuriousPolicy(t *testing.T) {
	for in, want := range map[string]SpuriousPolicy{
		"drop": SpuriousDrop, "ECHO": SpuriousEcho, " strict ": SpuriousStrict, "": SpuriousEcho,
	} {
		got, err := ParseSpuriousPolicy(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
	}
	_, err := ParseSpuriousPolicy("count")
	require.Error(t, err)
}

func TestContextSleep(t *testing.T) {
	require.NoError(t, ContextSleep(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, ContextSleep(ctx, time.Hour), context.Canceled)
}

// =============================================================================
// RUN TESTS
// =============================================================================

func TestRun_RedBlueEndToEnd(t *testing.T) {
	v := redBlue()
	sink := newSink(t, v)
	src := &fakeSource{sessions: [][]step{{
		msg("I see red"), msg("blue sky"), msg("no match here"), fail(stream.ErrEndOfStream),
	}}}

	var frames []Frame
	l := New(src, match.NewContainment(v), sink, RendererFunc(func(f Frame) error {
		frames = append(frames, f)
		return nil
	}), Config{Spurious: SpuriousEcho, Logger: quietLogger()})

	require.NoError(t, l.Run(context.Background()))

	red, _ := sink.store.Table().Count("red")
	blue, _ := sink.store.Table().Count("blue")
	require.Equal(t, 11, red)
	require.Equal(t, 11, blue)
	require.Equal(t, 2, sink.persists, "one persist per matched message, none at a clean stop")

	stats := l.Stats()
	require.Equal(t, 3, stats.Processed)
	require.Equal(t, 2, stats.Matched)
	require.Equal(t, 1, stats.Spurious)

	require.Len(t, frames, 3)
	require.Equal(t, []string{"red"}, frames[0].Terms)
	require.True(t, frames[2].Spurious)
	require.Equal(t, "no match here", frames[2].Message.Text)

	require.Equal(t, StateStopped, l.State())
	require.Equal(t, [][]string{{"red", "blue"}}, src.tracks)

	// Snapshot on disk holds the final counts.
	loaded, err := tally.Load(sink.store.Path(), v, 10)
	require.NoError(t, err)
	require.True(t, sink.store.Table().Equal(loaded))
}

func TestRun_SpuriousDropNotRendered(t *testing.T) {
	v := redBlue()
	src := &fakeSource{sessions: [][]step{{msg("nothing"), fail(stream.ErrEndOfStream)}}}
	renders := 0
	l := New(src, match.NewContainment(v), newSink(t, v), RendererFunc(func(Frame) error {
		renders++
		return nil
	}), Config{Spurious: SpuriousDrop, Logger: quietLogger()})

	require.NoError(t, l.Run(context.Background()))
	require.Zero(t, renders)
	require.Equal(t, 1, l.Stats().Spurious)
}

func TestRun_BackoffRecovery(t *testing.T) {
	v := redBlue()
	sink := newSink(t, v)
	drop := &stream.TransportError{Op: "read", Err: io.ErrUnexpectedEOF}
	src := &fakeSource{sessions: [][]step{
		{msg("red"), msg("red"), fail(drop)},
		{msg("blue"), fail(stream.ErrEndOfStream)},
	}}
	sleeper := &fakeSleeper{}

	var states []State
	l := New(src, match.NewContainment(v), sink, nil, Config{
		Backoff:       3 * time.Second,
		Sleep:         sleeper.Sleep,
		OnStateChange: func(s State) { states = append(states, s) },
		Logger:        quietLogger(),
	})

	require.NoError(t, l.Run(context.Background()))

	red, _ := sink.store.Table().Count("red")
	blue, _ := sink.store.Table().Count("blue")
	require.Equal(t, 12, red, "counts before the fault are neither lost nor repeated")
	require.Equal(t, 11, blue)

	require.Equal(t, []time.Duration{3 * time.Second}, sleeper.sleeps)
	require.Equal(t, 2, src.connects)
	require.Equal(t, 1, l.Stats().Reconnects)
	require.Equal(t, []State{StateRunning, StateRecovering, StateRunning, StateStopped}, states)
}

func TestRun_RecoveryRetriesFailedConnects(t *testing.T) {
	v := redBlue()
	refused := &stream.TransportError{Op: "connect", Err: errors.New("refused")}
	src := &fakeSource{
		connectErrs: []error{refused, refused, refused},
		sessions:    [][]step{{msg("red"), fail(stream.ErrEndOfStream)}},
	}
	sleeper := &fakeSleeper{}
	sink := newSink(t, v)

	l := New(src, match.NewContainment(v), sink, nil, Config{Sleep: sleeper.Sleep, Logger: quietLogger()})
	require.NoError(t, l.Run(context.Background()))

	require.Len(t, sleeper.sleeps, 3)
	require.Equal(t, 4, src.connects)
	red, _ := sink.store.Table().Count("red")
	require.Equal(t, 11, red)
}

func TestRun_FatalStreamError(t *testing.T) {
	v := redBlue()
	boom := errors.New("bad credentials")
	src := &fakeSource{sessions: [][]step{{msg("red"), fail(boom)}}}

	l := New(src, match.NewContainment(v), newSink(t, v), nil, Config{Logger: quietLogger()})
	err := l.Run(context.Background())
	require.ErrorIs(t, err, boom)
	require.Equal(t, StateStopped, l.State())
}

func TestRun_FatalConnectError(t *testing.T) {
	v := redBlue()
	src := &fakeSource{connectErrs: []error{stream.ErrUnauthorized}}

	l := New(src, match.NewContainment(v), newSink(t, v), nil, Config{Logger: quietLogger()})
	require.ErrorIs(t, l.Run(context.Background()), stream.ErrUnauthorized)
	require.Equal(t, 1, src.connects)
}

func TestRun_CancelFlushesUnsavedCounts(t *testing.T) {
	v := redBlue()
	sink := newSink(t, v)
	sink.failNext = 1
	src := &fakeSource{sessions: [][]step{{msg("red")}}} // then blocks

	ctx, cancel := context.WithCancel(context.Background())
	l := New(src, match.NewContainment(v), sink, RendererFunc(func(Frame) error {
		cancel()
		return nil
	}), Config{Logger: quietLogger()})

	require.NoError(t, l.Run(ctx))
	require.Equal(t, 1, l.Stats().PersistFailures)
	require.Equal(t, 1, sink.persists, "final persist writes what the failed commit could not")

	loaded, err := tally.Load(sink.store.Path(), v, 10)
	require.NoError(t, err)
	red, _ := loaded.Count("red")
	require.Equal(t, 11, red)
}

func TestRun_CancelDuringRecovery(t *testing.T) {
	v := redBlue()
	ctx, cancel := context.WithCancel(context.Background())
	src := &fakeSource{connectErrs: []error{&stream.TransportError{Op: "connect", Err: errors.New("down")}}}

	l := New(src, match.NewContainment(v), newSink(t, v), nil, Config{
		Sleep: func(ctx context.Context, d time.Duration) error {
			cancel()
			return ctx.Err()
		},
		Logger: quietLogger(),
	})
	require.NoError(t, l.Run(ctx))
	require.Equal(t, StateStopped, l.State())
}

func TestRun_ThrottleEveryN(t *testing.T) {
	v := redBlue()
	src := &fakeSource{sessions: [][]step{{
		msg("red"), msg("red"), msg("red"), msg("red"), msg("red"), fail(stream.ErrEndOfStream),
	}}}
	renders := 0
	l := New(src, match.NewContainment(v), newSink(t, v), RendererFunc(func(Frame) error {
		renders++
		return nil
	}), Config{Every: 2, Logger: quietLogger()})

	require.NoError(t, l.Run(context.Background()))
	require.Equal(t, 2, renders)
	require.Equal(t, 5, l.Stats().Persists, "throttle never skips a persist")
}

func TestRun_RenderFailureSkipsTick(t *testing.T) {
	v := redBlue()
	src := &fakeSource{sessions: [][]step{{msg("red"), msg("blue"), fail(stream.ErrEndOfStream)}}}
	calls := 0
	l := New(src, match.NewContainment(v), newSink(t, v), RendererFunc(func(Frame) error {
		calls++
		if calls == 1 {
			return errors.New("terminal gone")
		}
		return nil
	}), Config{Logger: quietLogger()})

	require.NoError(t, l.Run(context.Background()))
	stats := l.Stats()
	require.Equal(t, 1, stats.RenderFailures)
	require.Equal(t, 1, stats.Renders)
	require.Equal(t, 2, stats.Matched)
}

func TestRun_RateLimitedRepaint(t *testing.T) {
	v := redBlue()
	steps := make([]step, 0, 51)
	for i := 0; i < 50; i++ {
		steps = append(steps, msg("red"))
	}
	steps = append(steps, fail(stream.ErrEndOfStream))
	src := &fakeSource{sessions: [][]step{steps}}

	renders := 0
	l := New(src, match.NewContainment(v), newSink(t, v), RendererFunc(func(Frame) error {
		renders++
		return nil
	}), Config{MaxFPS: 0.001, Logger: quietLogger()})

	require.NoError(t, l.Run(context.Background()))
	require.Equal(t, 1, renders, "burst of one, then the limiter holds")
	require.Equal(t, 50, l.Stats().Matched)
}

func spuriousSteps(n int) []step {
	steps := make([]step, 0, n+1)
	for i := 0; i < n; i++ {
		steps = append(steps, msg(fmt.Sprintf("nothing %d", i)))
	}
	return append(steps, fail(stream.ErrEndOfStream))
}

func TestRun_SpuriousEchoHonorsEveryN(t *testing.T) {
	v := redBlue()
	src := &fakeSource{sessions: [][]step{spuriousSteps(20)}}
	var echoed []string
	l := New(src, match.NewContainment(v), newSink(t, v), RendererFunc(func(f Frame) error {
		require.True(t, f.Spurious)
		echoed = append(echoed, f.Message.Text)
		return nil
	}), Config{Every: 10, Spurious: SpuriousEcho, Logger: quietLogger()})

	require.NoError(t, l.Run(context.Background()))
	require.Equal(t, []string{"nothing 9", "nothing 19"}, echoed)
	require.Equal(t, 20, l.Stats().Spurious)
}

func TestRun_SpuriousEchoHonorsRateLimit(t *testing.T) {
	v := redBlue()
	src := &fakeSource{sessions: [][]step{spuriousSteps(20)}}
	renders := 0
	l := New(src, match.NewContainment(v), newSink(t, v), RendererFunc(func(Frame) error {
		renders++
		return nil
	}), Config{Every: 10, MaxFPS: 0.001, Spurious: SpuriousEcho, Logger: quietLogger()})

	require.NoError(t, l.Run(context.Background()))
	require.Equal(t, 1, renders)
	require.Equal(t, 20, l.Stats().Spurious)
}
