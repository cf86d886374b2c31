// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"bufio"
	"bytes"
	"io"
)

// DefaultMaxFrameBytes is the default upper bound for one frame's data (1MB).
// Responses are cumulative, so a frame carries the whole answer so far.
const DefaultMaxFrameBytes = 1024 * 1024

// =============================================================================
// SSE READER
// =============================================================================

// Frame is one Server-Sent Event.
type Frame struct {
	Event string // "event:" field, empty when absent
	ID    string // "id:" field, empty when absent
	Data  []byte // "data:" lines joined with \n
}

// SSEReader parses Server-Sent Events from a stream.
type SSEReader struct {
	reader   *bufio.Reader
	maxBytes int
}

// NewSSEReader creates a new SSE reader. maxBytes <= 0 selects
// DefaultMaxFrameBytes.
func NewSSEReader(r io.Reader, maxBytes int) *SSEReader {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxFrameBytes
	}
	return &SSEReader{
		reader:   bufio.NewReader(r),
		maxBytes: maxBytes,
	}
}

// ReadFrame reads the next event from the stream. Frames without data lines
// are skipped. An oversized frame is consumed and reported as
// ErrFrameTooLarge, after which reading can continue. Returns io.EOF when the
// stream ends.
func (s *SSEReader) ReadFrame() (Frame, error) {
	b := frameBuilder{maxBytes: s.maxBytes}

	for {
		line, long, err := s.readLine()
		if err != nil && err != io.EOF {
			return Frame{}, err
		}

		switch {
		case long:
			b.overflow()
		case len(line) > 0:
			b.field(line)
		case err == nil:
			// Empty line signals end of event
			if b.ready() {
				return b.frame()
			}
			b.reset()
			continue
		}

		if err == io.EOF {
			// Flush a final frame missing its blank line
			if b.ready() {
				return b.frame()
			}
			return Frame{}, io.EOF
		}
	}
}

// lineOverhead leaves room for a field name on a line carrying a full frame.
const lineOverhead = 64

// readLine reads one line without its terminator. A line longer than the
// frame limit is drained and dropped, and long reports true; memory stays
// bounded by the limit.
func (s *SSEReader) readLine() (line []byte, long bool, err error) {
	limit := s.maxBytes + lineOverhead
	for {
		var chunk []byte
		chunk, err = s.reader.ReadSlice('\n')
		if !long {
			if len(line)+len(chunk) > limit {
				long, line = true, nil
			} else {
				line = append(line, chunk...)
			}
		}
		if err == bufio.ErrBufferFull {
			continue
		}
		return bytes.TrimRight(line, "\r\n"), long, err
	}
}

// frameBuilder accumulates the fields of one event.
type frameBuilder struct {
	maxBytes  int
	event     string
	id        string
	dataLines [][]byte
	size      int
	tooLarge  bool
}

func (b *frameBuilder) reset() {
	*b = frameBuilder{maxBytes: b.maxBytes}
}

func (b *frameBuilder) ready() bool {
	return b.tooLarge || len(b.dataLines) > 0
}

// overflow marks the frame too large and drops what it holds.
func (b *frameBuilder) overflow() {
	b.tooLarge = true
	b.dataLines = nil
}

func (b *frameBuilder) frame() (Frame, error) {
	f := Frame{Event: b.event, ID: b.id}
	if b.tooLarge {
		return f, ErrFrameTooLarge
	}
	f.Data = bytes.Join(b.dataLines, []byte("\n"))
	return f, nil
}

// field applies one non-empty line to the frame under construction.
func (b *frameBuilder) field(line []byte) {
	// Comment
	if line[0] == ':' {
		return
	}

	name, value := line, []byte(nil)
	if i := bytes.IndexByte(line, ':'); i >= 0 {
		name, value = line[:i], line[i+1:]
		value = bytes.TrimPrefix(value, []byte(" "))
	}

	switch string(name) {
	case "event":
		b.event = string(value)
	case "id":
		b.id = string(value)
	case "data":
		if b.tooLarge {
			return
		}
		b.size += len(value) + 1
		if b.size > b.maxBytes {
			b.overflow()
			return
		}
		b.dataLines = append(b.dataLines, append([]byte(nil), value...))
	}
	// Ignore other fields (retry:, unknown)
}
