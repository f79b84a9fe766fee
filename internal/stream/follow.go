// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

var (
	// ErrRotated means the followed file was removed, renamed or replaced.
	ErrRotated = errors.New("file rotated")

	// ErrTruncated means the followed file shrank under the reader.
	ErrTruncated = errors.New("file truncated")
)

// followPoll re-checks the file even when no event arrives.
const followPoll = 2 * time.Second

func init() {
	Register("follow", func(opts Options) (Source, error) {
		if opts.Path == "" {
			return nil, errors.New("follow source: no path configured")
		}
		f, err := NewFollow(opts.Path, opts.FromStart)
		if err != nil {
			return nil, err
		}
		if opts.Logger != nil {
			f.log = opts.Logger
		}
		return f, nil
	})
}

// =============================================================================
// FOLLOW SOURCE
// =============================================================================

// Follow tails a growing file of newline-delimited messages, like tail -F.
// A line longer than 1 MiB is skipped with a warning.
// Rotation, removal and truncation are transport errors; the next Connect
// reopens the path and resumes after the last complete line when the file is
// the same one, or from its start when it was replaced.
type Follow struct {
	path      string
	fromStart bool
	now       func() time.Time
	log       *slog.Logger

	mu       sync.Mutex
	started  bool
	replaced bool // the file seen last is gone
	last     os.FileInfo
	offset   int64 // end of the last complete line read from last
}

// NewFollow returns a source tailing path. With fromStart false the first
// session starts at the current end of the file.
func NewFollow(path string, fromStart bool) (*Follow, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}
	return &Follow{path: abs, fromStart: fromStart, now: time.Now, log: slog.Default()}, nil
}

// Connect implements Source. The track list is ignored.
func (f *Follow) Connect(ctx context.Context, track []string) (Handle, error) {
	file, err := os.Open(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			f.markReplaced()
			return nil, &TransportError{Op: "open", Err: err}
		}
		return nil, fmt.Errorf("open %s: %w", f.path, err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, &TransportError{Op: "stat", Err: err}
	}

	start := f.resumeOffset(info)
	if _, err := file.Seek(start, io.SeekStart); err != nil {
		file.Close()
		return nil, &TransportError{Op: "seek", Err: err}
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	// Watch the directory so replacement of the file is seen too.
	if err := w.Add(filepath.Dir(f.path)); err != nil {
		w.Close()
		file.Close()
		return nil, &TransportError{Op: "watch", Err: err}
	}

	f.mu.Lock()
	f.started = true
	f.replaced = false
	f.last = info
	f.offset = start
	f.mu.Unlock()

	return &followHandle{
		src:    f,
		file:   file,
		rd:     bufio.NewReader(file),
		w:      w,
		info:   info,
		pos:    start,
		ticker: time.NewTicker(followPoll),
	}, nil
}

func (f *Follow) resumeOffset(info os.FileInfo) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch {
	case !f.started && f.fromStart:
		return 0
	case !f.started:
		return info.Size()
	case !f.replaced && os.SameFile(f.last, info) && f.offset <= info.Size():
		return f.offset
	default:
		return 0
	}
}

func (f *Follow) markReplaced() {
	f.mu.Lock()
	f.replaced = true
	f.mu.Unlock()
}

func (f *Follow) rotated() error {
	f.markReplaced()
	return &TransportError{Op: "follow", Err: ErrRotated}
}

func (f *Follow) commit(offset int64) {
	f.mu.Lock()
	f.offset = offset
	f.mu.Unlock()
}

type followHandle struct {
	src     *Follow
	file    *os.File
	rd      *bufio.Reader
	w       *fsnotify.Watcher
	info    os.FileInfo
	ticker  *time.Ticker
	pos     int64 // bytes consumed, including partial
	partial string
	skip    bool // partial outgrew maxLineBytes; drop through the next newline
}

func (h *followHandle) Next(ctx context.Context) (Message, error) {
	for {
		chunk, err := h.rd.ReadString('\n')
		h.pos += int64(len(chunk))

		if err == nil {
			line := h.partial + chunk
			h.partial = ""
			h.src.commit(h.pos)
			if h.skip || len(line) > maxLineBytes {
				h.skip = false
				h.src.log.Warn("skipping oversized line", "path", h.src.path, "limit_bytes", maxLineBytes)
				continue
			}
			if msg, ok := ParseLine(line, h.src.now()); ok {
				return msg, nil
			}
			continue
		}
		if !errors.Is(err, io.EOF) {
			return Message{}, &TransportError{Op: "read", Err: err}
		}
		if !h.skip {
			h.partial += chunk
			if len(h.partial) > maxLineBytes {
				h.partial, h.skip = "", true
			}
		}

		if err := h.wait(ctx); err != nil {
			return Message{}, err
		}
	}
}

// wait blocks until the file may have grown.
func (h *followHandle) wait(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-h.w.Events:
			if !ok {
				return &TransportError{Op: "watch", Err: errors.New("watcher closed")}
			}
			if filepath.Clean(ev.Name) != h.src.path {
				continue
			}
			if ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) || ev.Has(fsnotify.Create) {
				return h.src.rotated()
			}
			if ev.Has(fsnotify.Write) {
				return h.checkSize()
			}

		case err, ok := <-h.w.Errors:
			if !ok {
				return &TransportError{Op: "watch", Err: errors.New("watcher closed")}
			}
			return &TransportError{Op: "watch", Err: err}

		case <-h.ticker.C:
			return h.checkSize()
		}
	}
}

func (h *followHandle) checkSize() error {
	info, err := os.Stat(h.src.path)
	if errors.Is(err, os.ErrNotExist) {
		return h.src.rotated()
	}
	if err != nil {
		return &TransportError{Op: "stat", Err: err}
	}
	if !os.SameFile(info, h.info) {
		return h.src.rotated()
	}
	if info.Size() < h.pos {
		return &TransportError{Op: "follow", Err: ErrTruncated}
	}
	return nil
}

func (h *followHandle) Close() error {
	h.ticker.Stop()
	werr := h.w.Close()
	ferr := h.file.Close()
	return errors.Join(werr, ferr)
}
