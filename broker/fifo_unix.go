// Copyright 2026 The irdispatchd Authors
// SPDX-License-Identifier: Apache-2.0

package broker

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// dataFifoPath derives the per-backend data fifo's path deterministically
// from the command handle, so it never collides with another backend's
// fifo and needs no external naming authority. It is created under
// dataFifoDir rather than always alongside the client socket, so
// EndpointsConfig.DataFifoDir actually controls where it lands.
func dataFifoPath(dataFifoDir, clientSocketPath string, cmdHandle Handle) string {
	name := fmt.Sprintf("%s-data-%d", filepath.Base(clientSocketPath), cmdHandle)
	return filepath.Join(dataFifoDir, name)
}

// createDataFifo creates a fifo at path with the given mode and opens it
// for reading, returning the open file. The name is unlinked by the
// caller once the backend has successfully been told to write to it —
// the open fd keeps the fifo alive without the name.
//
// The fifo is opened O_RDWR rather than O_RDONLY: a backend isn't told
// the path (and so never opens its write end) until SET_DATA_SOCKET,
// the step after this open call. A fifo opened read-only with no
// writer yet reads as an immediate EOF, which would tear the backend's
// own registration down before it finishes. Holding the write end open
// ourselves, even though this side never writes to it, keeps the
// read end blocking on a genuine absence of data instead of EOFing,
// exactly as if a writer were always present. O_RDWR also never blocks
// on open regardless of whether a peer has the fifo open, so no
// O_NONBLOCK is needed here.
func createDataFifo(path string, mode os.FileMode) (*os.File, error) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("removing stale fifo %s: %w", path, err)
	}
	if err := unix.Mkfifo(path, uint32(mode)); err != nil {
		return nil, fmt.Errorf("creating fifo %s: %w", path, err)
	}
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("opening fifo %s: %w", path, err)
	}
	return f, nil
}
