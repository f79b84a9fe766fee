// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// ErrUnauthorized is returned when the endpoint rejects the credentials.
// Retrying cannot help, so it is not a transport error.
var ErrUnauthorized = errors.New("stream endpoint rejected credentials")

func init() {
	Register("http", func(opts Options) (Source, error) {
		return NewHTTP(opts.Endpoint, opts.Token, opts.HTTPClient)
	})
}

// =============================================================================
// HTTP SOURCE
// =============================================================================

// StatusError is a non-2xx response from the stream endpoint.
type StatusError struct {
	StatusCode int
	Body       string // first 512 bytes
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// HTTP reads a long-lived NDJSON (or plain line) response. The terms to
// track are sent as a comma-separated track query parameter and the token
// as a bearer Authorization header.
//
// A dropped connection, a read error, 429 and 5xx responses are transport
// errors. 401 and 403 wrap ErrUnauthorized; other 4xx responses are fatal.
type HTTP struct {
	endpoint *url.URL
	token    string
	client   *http.Client
	now      func() time.Time
}

// NewHTTP returns a source for endpoint. A nil client gets one without a
// timeout, since the response body never ends on its own.
func NewHTTP(endpoint, token string, client *http.Client) (*HTTP, error) {
	if endpoint == "" {
		return nil, errors.New("http source: no endpoint configured")
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("http source: bad endpoint: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("http source: unsupported scheme %q", u.Scheme)
	}
	if client == nil {
		client = &http.Client{}
	}
	return &HTTP{endpoint: u, token: token, client: client, now: time.Now}, nil
}

// Connect implements Source.
func (s *HTTP) Connect(ctx context.Context, track []string) (Handle, error) {
	u := *s.endpoint
	if len(track) > 0 {
		q := u.Query()
		q.Set("track", strings.Join(track, ","))
		u.RawQuery = q.Encode()
	}

	// The session outlives Connect, so it gets its own cancel tied to ctx.
	sessCtx, cancel := context.WithCancel(ctx)
	req, err := http.NewRequestWithContext(sessCtx, http.MethodGet, u.String(), nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/x-ndjson")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		cancel()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &TransportError{Op: "connect", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer cancel()
		return nil, classifyStatus(resp)
	}

	h := &httpHandle{
		src:    s,
		body:   resp.Body,
		cancel: cancel,
		lines:  make(chan string),
		done:   make(chan struct{}),
	}
	go h.pump()
	return h, nil
}

func classifyStatus(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	resp.Body.Close()

	serr := &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %v", ErrUnauthorized, serr)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return &TransportError{Op: "connect", Err: serr}
	default:
		return serr
	}
}

type httpHandle struct {
	src    *HTTP
	body   io.ReadCloser
	cancel context.CancelFunc
	lines  chan string
	done   chan struct{}
	err    error // set before lines is closed

	closeOnce sync.Once
}

func (h *httpHandle) pump() {
	defer close(h.lines)
	sc := bufio.NewScanner(h.body)
	sc.Buffer(make([]byte, 64*1024), maxLineBytes)
	for sc.Scan() {
		select {
		case h.lines <- sc.Text():
		case <-h.done:
			return
		}
	}
	h.err = sc.Err()
	if h.err == nil {
		h.err = io.ErrUnexpectedEOF
	}
}

func (h *httpHandle) Next(ctx context.Context) (Message, error) {
	for {
		select {
		case <-ctx.Done():
			return Message{}, ctx.Err()
		case line, ok := <-h.lines:
			if !ok {
				if ctx.Err() != nil {
					return Message{}, ctx.Err()
				}
				return Message{}, &TransportError{Op: "read", Err: h.err}
			}
			if msg, ok := ParseLine(line, h.src.now()); ok {
				return msg, nil
			}
		}
	}
}

func (h *httpHandle) Close() error {
	var err error
	h.closeOnce.Do(func() {
		close(h.done)
		h.cancel()
		err = h.body.Close()
	})
	return err
}
