// Copyright 2026 The irdispatchd Authors
// SPDX-License-Identifier: Apache-2.0

package broker

import (
	"io"

	"github.com/irdispatch/irdispatchd/lib/netutil"
	"github.com/irdispatch/irdispatchd/wire"
)

// readLoop owns buf exclusively: it is the only goroutine that ever
// calls Feed or Next on it. Complete lines are published as
// eventLine; a closed or failing stream publishes eventClosed exactly
// once and then returns.
//
// This is the reader side of every stream connection (client,
// control, and backend command channels) as well as the read-only
// backend data fifo. Non-blocking reads are unnecessary in Go: each
// connection gets its own goroutine, so a blocking Read here only
// ever blocks that one goroutine, never the broker's single mutating
// loop.
func readLoop(handle Handle, r io.Reader, maxPacketSize int, events chan<- event) {
	buf := wire.NewLineBuffer(maxPacketSize)
	chunk := make([]byte, maxPacketSize)

	for {
		n, err := r.Read(chunk)
		if n > 0 {
			if feedErr := buf.Feed(chunk[:n]); feedErr != nil {
				events <- event{kind: eventClosed, handle: handle, err: feedErr}
				return
			}
			for {
				line, ok := buf.Next()
				if !ok {
					break
				}
				events <- event{kind: eventLine, handle: handle, line: line}
			}
		}
		if err != nil {
			if !netutil.IsExpectedCloseError(err) {
				events <- event{kind: eventClosed, handle: handle, err: err}
				return
			}
			events <- event{kind: eventClosed, handle: handle, err: io.EOF}
			return
		}
	}
}
