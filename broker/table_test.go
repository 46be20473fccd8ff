// Copyright 2026 The irdispatchd Authors
// SPDX-License-Identifier: Apache-2.0

package broker

import "testing"

type nopCloser struct{ closed bool }

func (c *nopCloser) Close() error { c.closed = true; return nil }

func addBackend(t *Table, identity string) *Connection {
	h := t.NewHandle()
	c := &Connection{Handle: h, Kind: KindBackendCmd, Identity: identity, Closer: &nopCloser{}, BoundTo: NoHandle}
	t.Add(c)
	t.PromoteDefault(h)
	return c
}

func addClient(t *Table) *Connection {
	h := t.NewHandle()
	c := &Connection{Handle: h, Kind: KindClientStream, Closer: &nopCloser{}, BoundTo: NoHandle, TicksRemaining: -1}
	t.Add(c)
	return c
}

func TestTable_BindSymmetry(t *testing.T) {
	tbl := NewTable()
	client := addClient(tbl)
	backend := addBackend(tbl, "lame@/dev/null")

	tbl.Bind(client.Handle, backend.Handle, 20)

	if client.BoundTo != backend.Handle {
		t.Errorf("client.BoundTo = %v, want %v", client.BoundTo, backend.Handle)
	}
	if backend.BoundTo != client.Handle {
		t.Errorf("backend.BoundTo = %v, want %v", backend.BoundTo, client.Handle)
	}
	if client.TicksRemaining != 20 {
		t.Errorf("client.TicksRemaining = %d, want 20", client.TicksRemaining)
	}
}

func TestTable_UnbindIsSymmetric(t *testing.T) {
	tbl := NewTable()
	client := addClient(tbl)
	backend := addBackend(tbl, "lame@/dev/null")
	tbl.Bind(client.Handle, backend.Handle, 20)

	tbl.Unbind(client.Handle)

	if client.BoundTo != NoHandle || backend.BoundTo != NoHandle {
		t.Errorf("expected both sides unbound, got client=%v backend=%v", client.BoundTo, backend.BoundTo)
	}
	if client.TicksRemaining != -1 {
		t.Errorf("expected client.TicksRemaining disarmed, got %d", client.TicksRemaining)
	}
}

func TestTable_RemoveTearsDownBinding(t *testing.T) {
	tbl := NewTable()
	client := addClient(tbl)
	backend := addBackend(tbl, "lame@/dev/null")
	tbl.Bind(client.Handle, backend.Handle, 20)

	tbl.Remove(client.Handle)

	if tbl.Get(client.Handle) != nil {
		t.Error("expected client removed from table")
	}
	if backend.BoundTo != NoHandle {
		t.Errorf("expected backend unbound after caller removed, got %v", backend.BoundTo)
	}
}

func TestTable_RemovePeerPair(t *testing.T) {
	tbl := NewTable()
	cmdHandle := tbl.NewHandle()
	dataHandle := tbl.NewHandle()
	cmd := &Connection{Handle: cmdHandle, Kind: KindBackendCmd, Peer: dataHandle, Closer: &nopCloser{}}
	data := &Connection{Handle: dataHandle, Kind: KindBackendData, Peer: cmdHandle, Closer: &nopCloser{}}
	tbl.Add(cmd)
	tbl.Add(data)

	tbl.Remove(cmdHandle)

	if tbl.Get(cmdHandle) != nil || tbl.Get(dataHandle) != nil {
		t.Error("expected both peered connections removed")
	}
}

func TestTable_DefaultBackendSuccession(t *testing.T) {
	tbl := NewTable()
	b1 := addBackend(tbl, "b1@dev")
	b2 := addBackend(tbl, "b2@dev")
	b3 := addBackend(tbl, "b3@dev")

	if tbl.DefaultBackend() != b3.Handle {
		t.Fatalf("default = %v, want b3", tbl.DefaultBackend())
	}

	tbl.Remove(b3.Handle)
	if tbl.DefaultBackend() != b2.Handle {
		t.Fatalf("default after removing b3 = %v, want b2", tbl.DefaultBackend())
	}

	tbl.Remove(b2.Handle)
	if tbl.DefaultBackend() != b1.Handle {
		t.Fatalf("default after removing b2 = %v, want b1", tbl.DefaultBackend())
	}

	tbl.Remove(b1.Handle)
	if tbl.DefaultBackend() != NoHandle {
		t.Fatalf("default after removing b1 = %v, want NoHandle", tbl.DefaultBackend())
	}
}

func TestTable_FindBackendByIdentity(t *testing.T) {
	tbl := NewTable()
	addBackend(tbl, "lame@/dev/null")

	found := tbl.FindBackendByIdentity("lame@/dev/null")
	if found == nil {
		t.Fatal("expected to find backend by identity")
	}

	if tbl.FindBackendByIdentity("missing@nowhere") != nil {
		t.Fatal("expected no match for unknown identity")
	}
}

func TestTable_TimedConnections(t *testing.T) {
	tbl := NewTable()
	armed := addClient(tbl)
	armed.TicksRemaining = 5
	unarmed := addClient(tbl)
	unarmed.TicksRemaining = -1

	timed := tbl.TimedConnections()
	if len(timed) != 1 || timed[0].Handle != armed.Handle {
		t.Errorf("expected only the armed connection, got %v", timed)
	}
}
