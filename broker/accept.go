// Copyright 2026 The irdispatchd Authors
// SPDX-License-Identifier: Apache-2.0

package broker

import (
	"errors"
	"fmt"
	"net"
	"os"

	"golang.org/x/sys/unix"
)

// Endpoint identifies one of the three well-known listening sockets.
type Endpoint int

const (
	EndpointClient Endpoint = iota
	EndpointBackend
	EndpointControl
)

func (e Endpoint) String() string {
	switch e {
	case EndpointClient:
		return "client"
	case EndpointBackend:
		return "backend"
	case EndpointControl:
		return "control"
	default:
		return "unknown"
	}
}

// listenUnix binds a Unix-domain stream socket at path with the given
// permission bits, removing any stale socket file first. The returned
// listener's Accept is unblocked by closing it, matching the pattern
// used throughout the broker's shutdown path.
func listenUnix(path string, mode os.FileMode) (*net.UnixListener, error) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("removing stale socket %s: %w", path, err)
	}

	ln, err := net.ListenUnix("unix", &net.UnixAddr{Name: path, Net: "unix"})
	if err != nil {
		return nil, fmt.Errorf("listening on %s: %w", path, err)
	}
	if err := os.Chmod(path, mode); err != nil {
		ln.Close()
		return nil, fmt.Errorf("chmod %s: %w", path, err)
	}
	return ln, nil
}

// nolinger enables SO_LINGER with a zero timeout (Onoff 1, Linger 0)
// on conn, so a later Close discards unsent data instead of waiting
// for it to drain. A broker with many
// short-lived callers should never stall teardown on a slow peer.
func nolinger(conn *net.UnixConn) error {
	raw, err := conn.SyscallConn()
	if err != nil {
		return err
	}
	var sockErr error
	err = raw.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptLinger(int(fd), unix.SOL_SOCKET, unix.SO_LINGER, &unix.Linger{Onoff: 1, Linger: 0})
	})
	if err != nil {
		return err
	}
	return sockErr
}

// acceptLoop runs Accept in a loop on ln, publishing each accepted
// connection as an eventAccept. It returns when ln.Accept fails,
// which happens when ln is closed during shutdown.
func acceptLoop(ln *net.UnixListener, endpoint Endpoint, events chan<- event) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if !isClosedListenerError(err) {
				events <- event{kind: eventAcceptError, endpoint: endpoint, err: err}
			}
			return
		}
		unixConn := conn.(*net.UnixConn)
		if err := nolinger(unixConn); err != nil {
			// Not fatal to the connection; the daemon just loses the
			// fast-teardown optimization for this one peer.
			_ = err
		}
		events <- event{kind: eventAccept, endpoint: endpoint, conn: unixConn}
	}
}

func isClosedListenerError(err error) bool {
	return errors.Is(err, net.ErrClosed)
}
