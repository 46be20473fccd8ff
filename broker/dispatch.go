// Copyright 2026 The irdispatchd Authors
// SPDX-License-Identifier: Apache-2.0

package broker

import (
	"net"

	"github.com/irdispatch/irdispatchd/wire"
)

// handleAccept installs a freshly accepted connection in the table and
// starts its reader goroutine. Backend-endpoint connections additionally
// kick off the registration handshake.
func (b *Broker) handleAccept(endpoint Endpoint, nc *net.UnixConn) {
	handle := b.table.NewHandle()

	var kind Kind
	switch endpoint {
	case EndpointClient:
		kind = KindClientStream
	case EndpointControl:
		kind = KindControlStream
	case EndpointBackend:
		kind = KindBackendCmd
	}

	conn := &Connection{
		Handle:  handle,
		Kind:    kind,
		Writer:  nc,
		Closer:  nc,
		BoundTo: NoHandle,
	}
	if kind == KindBackendCmd {
		conn.BoundTo = LocalHandle
		conn.ReplyParser = wire.NewReplyParser()
	} else {
		conn.TicksRemaining = -1
	}
	b.table.Add(conn)

	go readLoop(handle, nc, b.cfg.Wire.MaxPacketSize, b.events)

	b.logger.Debug("accepted connection", "handle", handle, "endpoint", endpoint)

	if kind == KindBackendCmd {
		b.beginRegistration(conn)
	}
}

// handleClosed tears down handle's connection after its reader goroutine
// observed EOF or an I/O error.
func (b *Broker) handleClosed(handle Handle, err error) {
	conn := b.table.Get(handle)
	if conn == nil {
		return
	}
	b.logger.Debug("connection closed", "handle", handle, "kind", conn.Kind, "error", err)
	conn.Closer.Close()
	b.table.Remove(handle)
}
