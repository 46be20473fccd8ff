// Copyright 2026 The irdispatchd Authors
// SPDX-License-Identifier: Apache-2.0

package broker

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestCreateDataFifo_ReaderBlocksRatherThanEOFs verifies the fix for a
// fifo opened before any backend has written to it: readLoop's first
// Read must block waiting for data, not observe an immediate EOF the
// way a read-only open with no writer present would produce.
func TestCreateDataFifo_ReaderBlocksRatherThanEOFs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data-fifo")

	f, err := createDataFifo(path, 0600)
	if err != nil {
		t.Fatalf("createDataFifo: %v", err)
	}
	defer f.Close()

	events := make(chan event, 4)
	go readLoop(Handle(1), f, 256, events)

	select {
	case ev := <-events:
		t.Fatalf("expected no event before a writer appears, got %+v", ev)
	case <-time.After(100 * time.Millisecond):
	}

	w, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		t.Fatalf("opening fifo for write: %v", err)
	}
	defer w.Close()

	if _, err := w.Write([]byte("000000000000001c 00 KEY_POWER lame\n")); err != nil {
		t.Fatalf("writing to fifo: %v", err)
	}

	select {
	case ev := <-events:
		if ev.kind != eventLine || ev.line != "000000000000001c 00 KEY_POWER lame" {
			t.Fatalf("unexpected event: %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("readLoop never observed the write")
	}
}
