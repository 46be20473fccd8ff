// Copyright 2026 The irdispatchd Authors
// SPDX-License-Identifier: Apache-2.0

package broker

import (
	"io"

	"github.com/irdispatch/irdispatchd/wire"
)

// Handle is an opaque connection identifier. Handles are assigned
// sequentially by the Table and never reused, so cyclic peer and
// binding references can be stored as plain values instead of
// pointers into the table — exactly the handle-not-pointer pattern
// the broker's reference model calls for.
type Handle uint64

// NoHandle is the sentinel for "no connection" — an unset Peer or
// BoundTo field.
const NoHandle Handle = 0

// LocalHandle is a sentinel BoundTo value distinct from NoHandle and
// from any real handle: it marks a BackendCmd connection the
// dispatcher itself is driving (during registration), whose replies
// must be consumed internally rather than forwarded to a caller.
const LocalHandle Handle = ^Handle(0)

// Kind identifies the role a Connection plays in the broker.
type Kind int

const (
	KindUndefined Kind = iota
	KindClientStream
	KindControlStream
	KindBackendCmd
	KindBackendData
)

func (k Kind) String() string {
	switch k {
	case KindClientStream:
		return "client"
	case KindControlStream:
		return "control"
	case KindBackendCmd:
		return "backend_cmd"
	case KindBackendData:
		return "backend_data"
	default:
		return "undefined"
	}
}

// Connection is the broker's atomic unit of book-keeping, one per
// open stream (and, for fifos, effectively-open read side). The
// three listening sockets themselves are not represented as
// Connections — they are owned by the acceptor goroutines in
// accept.go and never appear in the Table.
type Connection struct {
	Handle Handle
	Kind   Kind

	// Writer is where replies/forwarded lines are written. nil for
	// BackendData connections, which are read-only fifos.
	Writer io.Writer
	// Closer closes the underlying stream. Always non-nil.
	Closer io.Closer

	// Peer is, for BackendCmd/BackendData only, the handle of its
	// paired channel. Fixed from registration until teardown.
	Peer Handle

	// BoundTo is, for ClientStream/ControlStream and BackendCmd, the
	// handle this connection is currently engaged with for an
	// in-flight command, or NoHandle. LocalHandle on a BackendCmd
	// means the dispatcher itself issued the in-flight command.
	BoundTo Handle

	// Identity is "name@device", set on registration, BackendCmd only.
	Identity string

	// ExpectedDirective names the directive a caller is waiting on a
	// reply for; used in timeout error messages.
	ExpectedDirective string

	// TicksRemaining is armed to the command timeout when a binding is
	// created. -1 means disarmed.
	TicksRemaining int

	// ReplyParser is present only on BackendCmd connections.
	ReplyParser *wire.ReplyParser

	// lineBuffer is never set: the connection's reader goroutine
	// (readLoop) allocates and exclusively owns its own LineBuffer, so
	// the Table and Run never see it. The field exists only so the
	// struct mirrors the data model's per-connection line buffer.
	lineBuffer *wire.LineBuffer

	// regStep tracks progress through the registrar's two-step
	// handshake. Zero value (regAwaitInfo) on a freshly accepted
	// BackendCmd connection; meaningless once Identity is non-empty
	// and BoundTo has been cleared.
	regStep regStep

	// fifoPath is the data fifo's filesystem path, BackendCmd only,
	// kept so the registrar can unlink it once the handshake succeeds.
	fifoPath string
}

// Table is the registry of every open connection. It has no internal
// locking: by construction, only the Broker.Run goroutine ever calls
// its methods.
type Table struct {
	conns          map[Handle]*Connection
	nextHandle     Handle
	defaultBackend Handle
	// registrationOrder records the order backends were promoted to
	// registered, most-recent last, so default-backend succession can
	// fall back to the next-most-recent surviving backend in O(n)
	// instead of needing a separate index.
	registrationOrder []Handle
}

// NewTable returns an empty connection table.
func NewTable() *Table {
	return &Table{
		conns:          make(map[Handle]*Connection),
		defaultBackend: NoHandle,
	}
}

// NewHandle allocates the next unused handle without installing a
// connection — useful when a handle must be known before the
// Connection it names is fully constructed (e.g. the backend data
// fifo's path is derived from the command handle before the data
// connection exists).
func (t *Table) NewHandle() Handle {
	t.nextHandle++
	return t.nextHandle
}

// Add installs conn in the table under conn.Handle, which must
// already be set (usually via NewHandle).
func (t *Table) Add(conn *Connection) {
	t.conns[conn.Handle] = conn
}

// Get returns the connection for handle, or nil if none exists.
func (t *Table) Get(handle Handle) *Connection {
	return t.conns[handle]
}

// All returns every connection currently in the table. The slice is a
// fresh snapshot safe to range over while mutating the table.
func (t *Table) All() []*Connection {
	out := make([]*Connection, 0, len(t.conns))
	for _, c := range t.conns {
		out = append(out, c)
	}
	return out
}

// Remove deletes handle from the table. If it was a BackendCmd or
// BackendData connection, its peer is removed too. If the removed
// connection held a binding, the peer end of that binding is unbound.
// If the removed connection was the
// default backend, the next-most-recently-registered surviving
// backend inherits the role, or NoHandle if none remain.
//
// Remove does not close the underlying stream — callers do that
// themselves since Table has no I/O dependency.
func (t *Table) Remove(handle Handle) {
	conn, ok := t.conns[handle]
	if !ok {
		return
	}

	t.unbind(handle)

	delete(t.conns, handle)

	if conn.Peer != NoHandle {
		if peer, ok := t.conns[conn.Peer]; ok {
			peer.Peer = NoHandle
			t.Remove(peer.Handle)
		}
	}

	if conn.Kind == KindBackendCmd {
		t.removeFromRegistrationOrder(handle)
		if t.defaultBackend == handle {
			t.promoteNextDefault()
		}
	}
}

func (t *Table) removeFromRegistrationOrder(handle Handle) {
	for i, h := range t.registrationOrder {
		if h == handle {
			t.registrationOrder = append(t.registrationOrder[:i], t.registrationOrder[i+1:]...)
			return
		}
	}
}

func (t *Table) promoteNextDefault() {
	for i := len(t.registrationOrder) - 1; i >= 0; i-- {
		if _, ok := t.conns[t.registrationOrder[i]]; ok {
			t.defaultBackend = t.registrationOrder[i]
			return
		}
	}
	t.defaultBackend = NoHandle
}

// unbind clears handle's BoundTo relation and, symmetrically, the
// relation on the other side of the binding.
func (t *Table) unbind(handle Handle) {
	conn, ok := t.conns[handle]
	if !ok {
		return
	}
	other := conn.BoundTo
	conn.BoundTo = NoHandle
	conn.TicksRemaining = -1
	if other == NoHandle || other == LocalHandle {
		return
	}
	if otherConn, ok := t.conns[other]; ok && otherConn.BoundTo == handle {
		otherConn.BoundTo = NoHandle
		otherConn.TicksRemaining = -1
	}
}

// Unbind is the exported form of unbind, used by the router and tick
// service to tear down an in-flight command.
func (t *Table) Unbind(handle Handle) {
	t.unbind(handle)
}

// Bind creates a symmetric binding between caller and backend: the
// caller's BoundTo is set to backend, the backend's BoundTo is set to
// caller, and the caller's TicksRemaining is armed to timeoutTicks.
func (t *Table) Bind(caller, backend Handle, timeoutTicks int) {
	callerConn := t.conns[caller]
	backendConn := t.conns[backend]
	if callerConn == nil || backendConn == nil {
		return
	}
	callerConn.BoundTo = backend
	callerConn.TicksRemaining = timeoutTicks
	backendConn.BoundTo = caller
}

// FindBackendByIdentity returns the BackendCmd connection whose
// Identity matches name (case-sensitive exact match), or nil.
func (t *Table) FindBackendByIdentity(name string) *Connection {
	for _, c := range t.conns {
		if c.Kind == KindBackendCmd && c.Identity == name {
			return c
		}
	}
	return nil
}

// Backends returns every registered BackendCmd connection (Identity
// set, BoundTo != LocalHandle), in no particular order.
func (t *Table) Backends() []*Connection {
	var out []*Connection
	for _, c := range t.conns {
		if c.Kind == KindBackendCmd && c.Identity != "" && c.BoundTo != LocalHandle {
			out = append(out, c)
		}
	}
	return out
}

// PromoteDefault registers handle as the new default backend and
// records it as the most-recently registered surviving backend for
// succession purposes.
func (t *Table) PromoteDefault(handle Handle) {
	t.defaultBackend = handle
	t.removeFromRegistrationOrder(handle)
	t.registrationOrder = append(t.registrationOrder, handle)
}

// DefaultBackend returns the current default backend's handle, or
// NoHandle if there is none.
func (t *Table) DefaultBackend() Handle {
	return t.defaultBackend
}

// SetDefaultBackend explicitly overrides the default backend, used by
// the SET_DEFAULT_BACKEND control directive. It does not alter
// registration order, so automatic succession still proceeds from the
// most-recently-registered backend if this one is later removed.
func (t *Table) SetDefaultBackend(handle Handle) {
	t.defaultBackend = handle
}

// ClientStreams returns every ClientStream connection, used by the
// broadcaster and the SIGHUP notifier.
func (t *Table) ClientStreams() []*Connection {
	var out []*Connection
	for _, c := range t.conns {
		if c.Kind == KindClientStream {
			out = append(out, c)
		}
	}
	return out
}

// TimedConnections returns every ClientStream/ControlStream
// connection with an armed timeout counter, used by the tick service.
func (t *Table) TimedConnections() []*Connection {
	var out []*Connection
	for _, c := range t.conns {
		if (c.Kind == KindClientStream || c.Kind == KindControlStream) && c.TicksRemaining > 0 {
			out = append(out, c)
		}
	}
	return out
}
