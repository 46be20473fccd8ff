// Copyright 2026 The irdispatchd Authors
// SPDX-License-Identifier: Apache-2.0

package broker

import (
	"bytes"
	"errors"
	"io"
	"log/slog"

	"github.com/irdispatch/irdispatchd/lib/config"
	"github.com/irdispatch/irdispatchd/wire"
)

// discardLogger returns a logger that writes nowhere, for tests that
// don't assert on log output.
func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestBroker returns a Broker with a populated Table and default
// config, but no live listeners or goroutines. Suitable for exercising
// handleLine, handleTick, and the registrar/router logic directly.
func newTestBroker() *Broker {
	cfg := config.Default()
	return &Broker{
		cfg:    cfg,
		logger: discardLogger(),
		table:  NewTable(),
		events: make(chan event, 64),
	}
}

// fakeConn is an in-memory stand-in for a *net.UnixConn: a captured
// output buffer plus a close flag, with no backing socket.
type fakeConn struct {
	bytes.Buffer
	closed bool
}

func (c *fakeConn) Close() error {
	c.closed = true
	return nil
}

// Write shadows bytes.Buffer's to fail once the connection is closed,
// simulating a write to a peer that has gone away.
func (c *fakeConn) Write(p []byte) (int, error) {
	if c.closed {
		return 0, errors.New("fakeConn: write on closed connection")
	}
	return c.Buffer.Write(p)
}

func addFakeClient(b *Broker, controlEndpoint bool) (*Connection, *fakeConn) {
	fc := &fakeConn{}
	h := b.table.NewHandle()
	kind := KindClientStream
	if controlEndpoint {
		kind = KindControlStream
	}
	conn := &Connection{
		Handle:         h,
		Kind:           kind,
		Writer:         fc,
		Closer:         fc,
		BoundTo:        NoHandle,
		TicksRemaining: -1,
	}
	b.table.Add(conn)
	return conn, fc
}

func addFakeBackend(b *Broker, identity string) (*Connection, *fakeConn) {
	fc := &fakeConn{}
	h := b.table.NewHandle()
	conn := &Connection{
		Handle:      h,
		Kind:        KindBackendCmd,
		Writer:      fc,
		Closer:      fc,
		Identity:    identity,
		BoundTo:     NoHandle,
		ReplyParser: wire.NewReplyParser(),
	}
	b.table.Add(conn)
	b.table.PromoteDefault(h)
	return conn, fc
}
