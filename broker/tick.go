// Copyright 2026 The irdispatchd Authors
// SPDX-License-Identifier: Apache-2.0

package broker

import "github.com/irdispatch/irdispatchd/wire"

// handleTick runs once per tick interval: every CLIENT_STREAM or
// CONTROL_STREAM with an armed timeout counter is decremented, and any
// that reach zero are timed out — an ERROR reply naming the connection's
// expected directive is sent, its binding to a backend is torn down, and
// the counter is disarmed.
func (b *Broker) handleTick() {
	for _, conn := range b.table.TimedConnections() {
		conn.TicksRemaining--
		if conn.TicksRemaining > 0 {
			continue
		}
		wire.WriteError(conn.Writer, conn.ExpectedDirective, "TIMEOUT")
		b.table.Unbind(conn.Handle)
	}
}
