// Copyright 2026 The irdispatchd Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"bytes"
	"errors"
	"fmt"
)

// ErrOverlongLine is returned by [LineBuffer.Feed] when more than
// MaxSize bytes have accumulated without a newline completing a line.
// The connection that produced this buffer should be removed.
var ErrOverlongLine = errors.New("wire: overlong line")

// LineBuffer is an append-only byte accumulator that yields complete
// lines as they become available. A connection owns exactly one
// LineBuffer; bytes read off the wire are appended with Feed, and the
// handler drains Next in a loop until no complete line remains.
//
// Trailing carriage returns are stripped so both "\n" and "\r\n" line
// endings are accepted. A read that arrives mid-line leaves the
// partial line buffered for the next Feed call — LineBuffer never
// blocks and never discards data short of ErrOverlongLine.
type LineBuffer struct {
	buf     []byte
	maxSize int
}

// NewLineBuffer creates a LineBuffer that rejects lines longer than
// maxSize bytes (including the terminating newline).
func NewLineBuffer(maxSize int) *LineBuffer {
	return &LineBuffer{maxSize: maxSize}
}

// Feed appends newly read bytes to the buffer. It returns
// ErrOverlongLine if a buffered complete line (newline included) is
// longer than maxSize, or if the buffered, not-yet-terminated residue
// now exceeds maxSize; the caller should treat this as a transport
// error and remove the connection.
func (b *LineBuffer) Feed(data []byte) error {
	b.buf = append(b.buf, data...)
	rest := b.buf
	for {
		i := bytes.IndexByte(rest, '\n')
		if i < 0 {
			break
		}
		if i+1 > b.maxSize {
			return fmt.Errorf("%w: %d-byte line", ErrOverlongLine, i+1)
		}
		rest = rest[i+1:]
	}
	if len(rest) > b.maxSize {
		return fmt.Errorf("%w: %d bytes buffered with no newline", ErrOverlongLine, len(rest))
	}
	return nil
}

// Next returns the next complete line with its trailing "\n" and any
// "\r" stripped, and true. If no complete line is buffered, it
// returns "", false.
func (b *LineBuffer) Next() (string, bool) {
	i := bytes.IndexByte(b.buf, '\n')
	if i < 0 {
		return "", false
	}
	line := b.buf[:i]
	line = bytes.TrimSuffix(line, []byte{'\r'})
	b.buf = b.buf[i+1:]
	return string(line), true
}

// HasLine reports whether a complete line is currently buffered.
func (b *LineBuffer) HasLine() bool {
	return bytes.IndexByte(b.buf, '\n') >= 0
}
