// Copyright 2026 The irdispatchd Authors
// SPDX-License-Identifier: Apache-2.0

package broker

import (
	"strings"
	"testing"
)

func TestTick_DecrementsAndLeavesBindingIntact(t *testing.T) {
	b := newTestBroker()
	client, clientConn := addFakeClient(b, false)
	backend, _ := addFakeBackend(b, "lame@/dev/null")
	b.table.Bind(client.Handle, backend.Handle, 3)

	b.handleTick()
	b.handleTick()

	if client.TicksRemaining != 1 {
		t.Fatalf("TicksRemaining = %d, want 1", client.TicksRemaining)
	}
	if clientConn.String() != "" {
		t.Fatalf("expected no timeout yet, got %q", clientConn.String())
	}
}

func TestTick_TimesOutAndUnbinds(t *testing.T) {
	b := newTestBroker()
	client, clientConn := addFakeClient(b, false)
	backend, _ := addFakeBackend(b, "lame@/dev/null")
	client.ExpectedDirective = "SEND_ONCE"
	b.table.Bind(client.Handle, backend.Handle, 1)

	b.handleTick()

	if !strings.Contains(clientConn.String(), "TIMEOUT") {
		t.Fatalf("expected TIMEOUT reply, got %q", clientConn.String())
	}
	if client.BoundTo != NoHandle || backend.BoundTo != NoHandle {
		t.Fatalf("expected both sides unbound after timeout, got client=%v backend=%v", client.BoundTo, backend.BoundTo)
	}
}

func TestTick_IgnoresDisarmedConnections(t *testing.T) {
	b := newTestBroker()
	addFakeClient(b, false)

	b.handleTick()
}
