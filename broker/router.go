// Copyright 2026 The irdispatchd Authors
// SPDX-License-Identifier: Apache-2.0

package broker

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/irdispatch/irdispatchd/wire"
)

// legacyDirectives is the client endpoint's directive set: every member
// always targets the current default backend and carries no backend
// selector of its own, so the line is forwarded to the backend's command
// channel unchanged (only the directive name's canonical spelling is
// normalized).
var legacyDirectives = map[string]bool{
	"LIST":             true,
	"SEND_ONCE":        true,
	"SEND_START":       true,
	"SEND_STOP":        true,
	"SET_INPUTLOG":     true,
	"DRV_OPTION":       true,
	"VERSION":          true,
	"SET_TRANSMITTERS": true,
	"GET_BACKEND_INFO": true,
	"SET_DATA_SOCKET":  true,
}

// controlArity names, for each routed control directive, how many
// whitespace-delimited pieces follow the directive name: 1 means just
// the backend name, 2 means the backend name plus one further argument
// (itself possibly containing embedded whitespace, e.g. SIMULATE's
// packed parameter string).
var controlArity = map[string]int{
	"STOP_BACKEND":     1,
	"LIST_REMOTES":     1,
	"LIST_CODES":       2,
	"SEND_ONCE":        2,
	"SEND_START":       2,
	"SEND_STOP":        2,
	"SET_TRANSMITTERS": 2,
	"SIMULATE":         2,
}

var controlLocal = map[string]bool{
	"LIST_BACKENDS":       true,
	"GET_DEFAULT_BACKEND": true,
	"SET_DEFAULT_BACKEND": true,
	"VERSION":             true,
	"SET_INPUTLOG":        true,
}

// splitDirective splits a directive line into its uppercase name and the
// (possibly empty) remainder, trimmed of leading whitespace only — the
// remainder may itself contain embedded whitespace.
func splitDirective(line string) (name, rest string) {
	i := strings.IndexAny(line, " \t")
	if i < 0 {
		return strings.ToUpper(line), ""
	}
	return strings.ToUpper(line[:i]), strings.TrimLeft(line[i+1:], " \t")
}

// splitFirstArg splits rest into its first whitespace-delimited token
// and whatever follows that token, trimmed of leading whitespace.
func splitFirstArg(rest string) (first, remainder string) {
	i := strings.IndexAny(rest, " \t")
	if i < 0 {
		return rest, ""
	}
	return rest[:i], strings.TrimLeft(rest[i+1:], " \t")
}

// handleLine dispatches a single complete line received on handle
// according to that connection's kind.
func (b *Broker) handleLine(handle Handle, line string) {
	conn := b.table.Get(handle)
	if conn == nil {
		return
	}

	switch conn.Kind {
	case KindClientStream:
		b.handleCallerLine(conn, line, true)
	case KindControlStream:
		b.handleCallerLine(conn, line, false)
	case KindBackendCmd:
		b.handleBackendLine(conn, line)
	case KindBackendData:
		b.broadcast(line)
	}
}

// handleCallerLine processes one directive line from a client or control
// stream. A caller already bound to a backend (command in flight) gets a
// protocol error instead of a second binding.
func (b *Broker) handleCallerLine(caller *Connection, line string, legacy bool) {
	if strings.TrimSpace(line) == "" {
		wire.WriteError(caller.Writer, line, "bad send packet")
		return
	}

	if caller.BoundTo != NoHandle {
		msg := "already in command"
		if caller.ExpectedDirective == "SEND_START" {
			msg = "busy: repeating"
		}
		wire.WriteError(caller.Writer, line, msg)
		return
	}

	name, rest := splitDirective(line)
	if legacy {
		b.routeLegacy(caller, line, name, rest)
		return
	}
	b.routeControl(caller, line, name, rest)
}

// routeLegacy forwards every recognized legacy directive to the current
// default backend unchanged.
func (b *Broker) routeLegacy(caller *Connection, line, name, rest string) {
	if !legacyDirectives[name] {
		wire.WriteError(caller.Writer, line, fmt.Sprintf("unknown directive: %q", line))
		return
	}

	backend := b.table.Get(b.table.DefaultBackend())
	if backend == nil {
		wire.WriteError(caller.Writer, line, "No default backend")
		return
	}

	b.bindAndForward(caller, backend, line, name, rest)
}

// routeControl either answers a dispatcher-local control directive
// immediately, or resolves the named backend and forwards a routed one.
func (b *Broker) routeControl(caller *Connection, line, name, rest string) {
	if controlLocal[name] {
		b.handleControlLocal(caller, line, name, rest)
		return
	}

	arity, routed := controlArity[name]
	if !routed {
		wire.WriteError(caller.Writer, line, fmt.Sprintf("unknown directive: %q", line))
		return
	}

	backendName, arg := splitFirstArg(rest)
	if backendName == "" {
		wire.WriteError(caller.Writer, line, fmt.Sprintf("Missing backend: %q", rest))
		return
	}
	if arity == 1 && arg != "" {
		wire.WriteError(caller.Writer, line, fmt.Sprintf("Bad arguments: %q", rest))
		return
	}
	if arity == 2 && arg == "" {
		wire.WriteError(caller.Writer, line, fmt.Sprintf("Bad arguments: %q", rest))
		return
	}

	backend := b.table.FindBackendByIdentity(backendName)
	if backend == nil {
		wire.WriteError(caller.Writer, line, fmt.Sprintf("No such backend: %s", backendName))
		return
	}

	forwardName := name
	if name == "SIMULATE" {
		reformatted, ok := reformatSimulate(arg)
		if !ok {
			wire.WriteError(caller.Writer, line, fmt.Sprintf("Cannot parse input: %s", arg))
			return
		}
		arg = reformatted
	}

	b.bindAndForward(caller, backend, line, forwardName, arg)
}

// bindAndForward creates the caller/backend binding, rewrites the
// directive to the backend's own wire form (no selector, canonical
// name), and forwards it on the backend's command channel.
func (b *Broker) bindAndForward(caller, backend *Connection, line, name, rest string) {
	caller.ExpectedDirective = name
	b.table.Bind(caller.Handle, backend.Handle, b.cfg.Tick.CommandTimeoutTicks)

	forwarded := name
	if rest != "" {
		forwarded += " " + rest
	}
	forwarded += "\n"

	backend.ReplyParser.Reset()
	if err := wire.WriteAll(backend.Writer, []byte(forwarded)); err != nil {
		b.logger.Warn("forwarding to backend failed", "handle", backend.Handle, "error", err)
		b.table.Unbind(caller.Handle)
		wire.WriteError(caller.Writer, line, "backend write failed")
	}
}

// reformatSimulate reparses a packed "<remote> <keysym> <repeat>
// <scancode>" argument and re-emits it as "<scancode> <repeat> <keysym>
// <remote>" with scancode in lowercase 16-digit hex and repeat in
// lowercase 2-digit hex, matching the wire form a backend expects.
func reformatSimulate(arg string) (string, bool) {
	fields := strings.Fields(arg)
	if len(fields) != 4 {
		return "", false
	}
	remote, keysym, repeatStr, scancodeStr := fields[0], fields[1], fields[2], fields[3]

	repeat, err := strconv.ParseUint(repeatStr, 10, 32)
	if err != nil {
		return "", false
	}
	scancode, err := strconv.ParseUint(scancodeStr, 16, 64)
	if err != nil {
		return "", false
	}

	return fmt.Sprintf("%016x %02x %s %s", scancode, repeat, keysym, remote), true
}

// handleControlLocal answers a dispatcher-local control directive
// directly on the caller's handle; no backend is ever contacted.
func (b *Broker) handleControlLocal(caller *Connection, line, name, rest string) {
	switch name {
	case "LIST_BACKENDS":
		var names []string
		for _, be := range b.table.Backends() {
			names = append(names, be.Identity)
		}
		wire.WriteSuccessData(caller.Writer, line, names)

	case "GET_DEFAULT_BACKEND":
		backend := b.table.Get(b.table.DefaultBackend())
		if backend == nil {
			wire.WriteError(caller.Writer, line, "None")
			return
		}
		wire.WriteSuccessData(caller.Writer, line, []string{backend.Identity})

	case "SET_DEFAULT_BACKEND":
		name := strings.TrimSpace(rest)
		backend := b.table.FindBackendByIdentity(name)
		if backend == nil {
			wire.WriteError(caller.Writer, line, fmt.Sprintf("No such backend: %s", name))
			return
		}
		b.table.SetDefaultBackend(backend.Handle)
		wire.WriteSuccess(caller.Writer, line)

	case "VERSION":
		wire.WriteSuccessData(caller.Writer, line, []string{protocolVersion})

	case "SET_INPUTLOG":
		path := strings.TrimSpace(rest)
		if path == "" {
			wire.WriteError(caller.Writer, line, "Illegal argument (protocol error)")
			return
		}
		if err := b.setInputLog(path); err != nil {
			wire.WriteError(caller.Writer, line, err.Error())
			return
		}
		wire.WriteSuccess(caller.Writer, line)
	}
}

// protocolVersion is the dispatcher's self-reported protocol version,
// returned by the VERSION control directive.
const protocolVersion = "1"

// handleBackendLine feeds one line into a BackendCmd connection's reply
// parser, forwarding it to a bound caller and, on a completed frame,
// either dispatching the assembled reply to the registrar or to the
// bound caller and tearing down the binding.
func (b *Broker) handleBackendLine(backend *Connection, line string) {
	boundCaller := backend.BoundTo != NoHandle && backend.BoundTo != LocalHandle
	var caller *Connection
	if boundCaller {
		caller = b.table.Get(backend.BoundTo)
		if caller != nil {
			wire.WriteAll(caller.Writer, []byte(line+"\n"))
		}
	}

	backend.ReplyParser.Feed(line)
	if !backend.ReplyParser.Done() {
		return
	}

	if backend.ReplyParser.Failed() {
		b.logger.Debug("backend reply did not parse", "handle", backend.Handle, "last_line", backend.ReplyParser.LastLine())
		if caller != nil {
			wire.WriteError(caller.Writer, caller.ExpectedDirective, "bad backend reply")
		}
	}

	if backend.BoundTo == LocalHandle {
		b.handleLocalReply(backend)
		return
	}

	if boundCaller {
		b.table.Unbind(backend.Handle)
	}
	backend.ReplyParser.Reset()
}
