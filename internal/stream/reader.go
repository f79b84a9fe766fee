// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"
)

func init() {
	Register("stdin", func(opts Options) (Source, error) {
		in := opts.Input
		if in == nil {
			in = os.Stdin
		}
		r := NewReader(in)
		if opts.Logger != nil {
			r.log = opts.Logger
		}
		return r, nil
	})
}

// =============================================================================
// READER SOURCE
// =============================================================================

// Reader reads newline-delimited messages (plain text or NDJSON) from an
// io.Reader. It is finite: the end of input ends the stream.
//
// Reads happen on a background goroutine so Next can honor its context.
// The goroutine starts on the first Connect and is shared by later ones.
// Lines longer than 1 MiB are skipped with a warning.
type Reader struct {
	in    io.Reader
	once  sync.Once
	lines chan string
	err   error // set before lines is closed
	now   func() time.Time
	log   *slog.Logger
}

// NewReader returns a source reading from in.
func NewReader(in io.Reader) *Reader {
	return &Reader{in: in, lines: make(chan string), now: time.Now, log: slog.Default()}
}

// Connect implements Source. The track list is ignored.
func (r *Reader) Connect(ctx context.Context, track []string) (Handle, error) {
	r.once.Do(func() { go r.pump() })
	return &readerHandle{src: r}, nil
}

func (r *Reader) pump() {
	defer close(r.lines)

	lr := newLineReader(r.in, maxLineBytes)
	for {
		line, dropped, err := lr.next()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				r.err = err
			}
			return
		}
		if dropped {
			r.log.Warn("skipping oversized input line", "limit_bytes", maxLineBytes)
			continue
		}
		r.lines <- line
	}
}

type readerHandle struct {
	src *Reader
}

func (h *readerHandle) Next(ctx context.Context) (Message, error) {
	for {
		select {
		case <-ctx.Done():
			return Message{}, ctx.Err()
		case line, ok := <-h.src.lines:
			if !ok {
				if h.src.err != nil {
					return Message{}, fmt.Errorf("read input: %w", h.src.err)
				}
				return Message{}, ErrEndOfStream
			}
			if msg, ok := ParseLine(line, h.src.now()); ok {
				return msg, nil
			}
		}
	}
}

func (h *readerHandle) Close() error { return nil }
