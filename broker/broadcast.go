// Copyright 2026 The irdispatchd Authors
// SPDX-License-Identifier: Apache-2.0

package broker

import "github.com/irdispatch/irdispatchd/wire"

// broadcast forwards line, a decoded input event arriving on a
// BackendData connection, to every ClientStream not currently mid-command.
// A client whose write fails is removed; the broadcast proceeds for the
// rest.
func (b *Broker) broadcast(line string) {
	b.logInputEvent(line)

	var dead []Handle
	for _, client := range b.table.ClientStreams() {
		if client.BoundTo != NoHandle {
			continue
		}
		if err := wire.WriteAll(client.Writer, []byte(line+"\n")); err != nil {
			dead = append(dead, client.Handle)
		}
	}
	for _, h := range dead {
		if c := b.table.Get(h); c != nil {
			c.Closer.Close()
		}
		b.table.Remove(h)
	}
}
