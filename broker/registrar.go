// Copyright 2026 The irdispatchd Authors
// SPDX-License-Identifier: Apache-2.0

package broker

import (
	"fmt"
	"os"
	"strings"

	"github.com/irdispatch/irdispatchd/wire"
)

// regStep names where a BackendCmd connection is in the registration
// handshake. Only meaningful while BoundTo == LocalHandle.
type regStep int

const (
	regAwaitInfo regStep = iota
	regAwaitDataSocket
)

// directiveGetBackendInfo is always emitted by the registrar, regardless
// of which spelling a given backend's replies echo back.
const directiveGetBackendInfo = "GET_BACKEND_INFO"

// directiveSetDataSocket is always emitted by the registrar.
const directiveSetDataSocket = "SET_DATA_SOCKET"

// legacySpellings maps the hyphenated directive names an older backend
// may echo back in its reply's command field to the underscored name the
// registrar actually sent, so registration still recognizes the reply as
// answering its own request.
var legacySpellings = map[string]string{
	"GET-ID":           "GET_BACKEND_INFO",
	"SET-DATA-SOCKET":  "SET_DATA_SOCKET",
	"GET_BACKEND_INFO": "GET_BACKEND_INFO",
	"SET_DATA_SOCKET":  "SET_DATA_SOCKET",
}

// normalizeDirective maps a directive name as it might be echoed back by
// a legacy backend reply to the canonical underscored spelling the
// registrar always emits.
func normalizeDirective(name string) string {
	if canon, ok := legacySpellings[strings.ToUpper(name)]; ok {
		return canon
	}
	return strings.ToUpper(name)
}

// beginRegistration starts the two-step handshake on a freshly accepted
// backend command connection: it creates and peers the data fifo, then
// sends GET_BACKEND_INFO.
func (b *Broker) beginRegistration(cmd *Connection) {
	fifoPath := dataFifoPath(b.cfg.Endpoints.DataFifoDir, b.cfg.Endpoints.ClientSocket, cmd.Handle)
	fifoMode := os.FileMode(b.cfg.Endpoints.DataFifoMode)

	f, err := createDataFifo(fifoPath, fifoMode)
	if err != nil {
		b.logger.Warn("creating backend data fifo failed", "handle", cmd.Handle, "error", err)
		cmd.Closer.Close()
		b.table.Remove(cmd.Handle)
		return
	}

	dataHandle := b.table.NewHandle()
	data := &Connection{
		Handle:   dataHandle,
		Kind:     KindBackendData,
		Closer:   f,
		Peer:     cmd.Handle,
		BoundTo:  NoHandle,
		fifoPath: fifoPath,
	}
	b.table.Add(data)
	cmd.Peer = dataHandle
	cmd.fifoPath = fifoPath
	cmd.regStep = regAwaitInfo

	go readLoop(dataHandle, f, b.cfg.Wire.MaxPacketSize, b.events)

	b.sendToBackend(cmd, directiveGetBackendInfo+"\n")
}

// handleLocalReply is invoked when a completed reply frame arrives on a
// BackendCmd connection whose BoundTo is still LocalHandle — i.e. while
// the registrar is driving it.
func (b *Broker) handleLocalReply(cmd *Connection) {
	parser := cmd.ReplyParser
	defer parser.Reset()

	switch cmd.regStep {
	case regAwaitInfo:
		if got := normalizeDirective(parser.Command()); got != directiveGetBackendInfo {
			b.logger.Warn("unexpected reply during registration", "handle", cmd.Handle, "command", parser.Command())
		}
		if !parser.Success() {
			b.logger.Warn("backend rejected GET_BACKEND_INFO", "handle", cmd.Handle)
			b.dropBackend(cmd)
			return
		}
		identity, ok := parseBackendInfo(parser.Lines())
		if !ok {
			b.logger.Warn("backend info reply did not parse", "handle", cmd.Handle, "lines", parser.Lines())
			b.dropBackend(cmd)
			return
		}
		cmd.Identity = identity
		cmd.regStep = regAwaitDataSocket
		b.sendToBackend(cmd, fmt.Sprintf("%s %s\n", directiveSetDataSocket, cmd.fifoPath))

	case regAwaitDataSocket:
		if got := normalizeDirective(parser.Command()); got != directiveSetDataSocket {
			b.logger.Warn("unexpected reply during registration", "handle", cmd.Handle, "command", parser.Command())
		}
		if !parser.Success() {
			b.logger.Warn("backend rejected SET_DATA_SOCKET", "handle", cmd.Handle, "identity", cmd.Identity)
			b.dropBackend(cmd)
			return
		}
		b.table.PromoteDefault(cmd.Handle)
		cmd.BoundTo = NoHandle
		if err := os.Remove(cmd.fifoPath); err != nil && !os.IsNotExist(err) {
			b.logger.Warn("unlinking data fifo failed", "path", cmd.fifoPath, "error", err)
		}
		b.logger.Info("backend registered", "handle", cmd.Handle, "identity", cmd.Identity)
	}
}

// dropBackend tears a backend down mid-registration: both the command
// connection and its peered data fifo are closed, then removed from
// the table together.
func (b *Broker) dropBackend(cmd *Connection) {
	cmd.Closer.Close()
	if data := b.table.Get(cmd.Peer); data != nil {
		data.Closer.Close()
	}
	b.table.Remove(cmd.Handle)
}

// sendToBackend writes line to cmd's command channel and resets its
// reply parser, ready to assemble the next reply frame.
func (b *Broker) sendToBackend(cmd *Connection, line string) {
	cmd.ReplyParser.Reset()
	if err := wire.WriteAll(cmd.Writer, []byte(line)); err != nil {
		b.logger.Warn("writing to backend failed", "handle", cmd.Handle, "error", err)
		b.dropBackend(cmd)
	}
}

// parseBackendInfo parses the single-line "<type> <pid> <name> <device>"
// payload of a GET_BACKEND_INFO reply into "name@device".
func parseBackendInfo(lines []string) (string, bool) {
	if len(lines) != 1 {
		return "", false
	}
	fields := strings.Fields(lines[0])
	if len(fields) != 4 {
		return "", false
	}
	name, device := fields[2], fields[3]
	return name + "@" + device, true
}
