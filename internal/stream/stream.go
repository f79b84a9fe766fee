// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream delivers text messages from an external source.
//
// A Source is connected once per session with the terms to track and yields a
// Handle. Handle.Next blocks for the next message and reports one of three
// outcomes besides a message:
//
//   - ErrEndOfStream: the source is finite and has ended
//   - *TransportError: the connection failed; reconnect after a pause
//   - any other error: the source cannot be used (bad credentials, bad input)
//
// Sources register themselves by name; see Register and Open.
package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"
)

// ErrEndOfStream is returned by Handle.Next when a finite source is exhausted.
var ErrEndOfStream = errors.New("end of stream")

// =============================================================================
// MESSAGE
// =============================================================================

// Message is one unit of text from the stream.
type Message struct {
	ID       string
	Text     string
	Received time.Time
}

// =============================================================================
// SOURCE / HANDLE
// =============================================================================

// Source opens sessions on a message stream.
type Source interface {
	// Connect starts a session filtered to track. Sources that cannot filter
	// deliver everything.
	Connect(ctx context.Context, track []string) (Handle, error)
}

// Handle is one open session.
type Handle interface {
	// Next blocks until a message arrives, the session fails, or ctx ends.
	Next(ctx context.Context) (Message, error)

	// Close ends the session.
	Close() error
}

// TransportError is a recoverable connection failure.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsTransport reports whether err is, or wraps, a *TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// =============================================================================
// REGISTRY
// =============================================================================

// Options carries the settings a source may need. Each source reads only
// the fields it uses.
type Options struct {
	Input      io.Reader    // stdin source
	Path       string       // follow source
	FromStart  bool         // follow source: read existing content first
	Endpoint   string       // http source
	Token      string       // http source bearer token
	HTTPClient *http.Client // http source; nil uses a client without timeout
	Logger     *slog.Logger // warnings about skipped input; nil uses slog.Default
}

// Constructor builds a Source from options.
type Constructor func(opts Options) (Source, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Constructor{}
)

// Register adds a source constructor under name.
func Register(name string, ctor Constructor) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = ctor
}

// Open builds the named source.
func Open(name string, opts Options) (Source, error) {
	registryMu.RLock()
	ctor, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown stream source: %s", name)
	}
	return ctor(opts)
}

// Names returns the registered source names, sorted.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
