// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"bufio"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"time"
)

// maxLineBytes bounds a single message line.
const maxLineBytes = 1 << 20

// wireMessage is the NDJSON form of a message. Only text is required.
type wireMessage struct {
	ID        string `json:"id"`
	IDStr     string `json:"id_str"`
	Text      string `json:"text"`
	CreatedAt string `json:"created_at"`
}

// ParseLine turns one line of input into a message. Lines that look like a
// JSON object are decoded and must carry a text field; anything else is the
// message text itself. Blank lines, keep-alives and JSON without text yield
// ok=false.
func ParseLine(line string, now time.Time) (Message, bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return Message{}, false
	}

	if strings.HasPrefix(trimmed, "{") {
		var w wireMessage
		if err := json.Unmarshal([]byte(trimmed), &w); err == nil {
			if w.Text == "" {
				return Message{}, false
			}
			id := w.ID
			if id == "" {
				id = w.IDStr
			}
			return Message{ID: id, Text: w.Text, Received: now}, true
		}
	}

	return Message{Text: trimmed, Received: now}, true
}

// =============================================================================
// LINE SPLITTING
// =============================================================================

// lineReader splits input into lines of at most limit bytes. A longer line
// is discarded through its newline instead of failing the stream.
type lineReader struct {
	rd    *bufio.Reader
	limit int
}

func newLineReader(in io.Reader, limit int) *lineReader {
	return &lineReader{rd: bufio.NewReaderSize(in, 64*1024), limit: limit}
}

// next returns the next line without its newline. dropped is true when the
// line was over the limit; line is then empty. A final line without a
// newline is returned before io.EOF.
func (r *lineReader) next() (line string, dropped bool, err error) {
	var buf []byte
	for {
		frag, rerr := r.rd.ReadSlice('\n')
		if !dropped {
			if len(buf)+len(frag) > r.limit {
				dropped, buf = true, nil
			} else {
				buf = append(buf, frag...)
			}
		}

		switch {
		case errors.Is(rerr, bufio.ErrBufferFull):
			continue
		case rerr == nil:
			return strings.TrimSuffix(string(buf), "\n"), dropped, nil
		case errors.Is(rerr, io.EOF) && (dropped || len(buf) > 0):
			return string(buf), dropped, nil
		default:
			return "", false, rerr
		}
	}
}
