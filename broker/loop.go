// Copyright 2026 The irdispatchd Authors
// SPDX-License-Identifier: Apache-2.0

package broker

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/irdispatch/irdispatchd/lib/clock"
	"github.com/irdispatch/irdispatchd/lib/config"
	"github.com/irdispatch/irdispatchd/pidlock"
)

// errReloadFailed is returned by Run when a SIGHUP-triggered log reopen
// fails, causing the daemon to shut down rather than keep running with
// an unwritable log.
var errReloadFailed = errors.New("broker: log reopen failed during reload")

type eventKind int

const (
	eventAccept eventKind = iota
	eventAcceptError
	eventLine
	eventClosed
	eventTick
	eventSignal
)

// event is the single intent type flowing through the broker's event
// channel. Every goroutine other than Run only ever constructs and
// sends events; Run is the only goroutine that interprets them and
// mutates the Table.
type event struct {
	kind     eventKind
	endpoint Endpoint
	conn     *net.UnixConn
	handle   Handle
	line     string
	err      error
	sig      os.Signal
}

// Broker is the dispatcher engine: three endpoint listeners, a
// connection table, and the single goroutine (Run) that serializes
// every mutation of that table through an event channel.
type Broker struct {
	cfg    *config.Config
	logger *slog.Logger
	clock  clock.Clock

	table  *Table
	events chan event

	listeners map[Endpoint]*net.UnixListener
	pidlock   *pidlock.Pidlock

	// inputLog, when non-nil, receives a copy of every line broadcast
	// from a backend's data channel, set by the SET_INPUTLOG control
	// directive.
	inputLog *os.File

	// reopenLog, when set, is called as the first step of handling
	// SIGHUP, before the unsolicited SIGHUP frame is broadcast. A
	// logrotate-style log reopen failure is treated as fatal, matching
	// the shutdown-on-SIGTERM path it falls back to.
	reopenLog func() error

	// cleanShutdown is set when the loop exits due to SIGUSR1 rather
	// than SIGTERM/SIGINT/a fatal error, so main() can choose the
	// right process exit status.
	cleanShutdown bool
}

// New constructs a Broker bound to cfg's configured endpoints. Listen
// is performed eagerly so a port conflict is reported before Run is
// called.
func New(cfg *config.Config, logger *slog.Logger, clk clock.Clock) (*Broker, error) {
	b := &Broker{
		cfg:       cfg,
		logger:    logger,
		clock:     clk,
		table:     NewTable(),
		events:    make(chan event, 64),
		listeners: make(map[Endpoint]*net.UnixListener),
	}

	endpoints := []struct {
		endpoint Endpoint
		path     string
		mode     os.FileMode
	}{
		{EndpointClient, cfg.Endpoints.ClientSocket, os.FileMode(cfg.Endpoints.ClientSocketMode)},
		{EndpointBackend, cfg.Endpoints.BackendSocket, os.FileMode(cfg.Endpoints.BackendSocketMode)},
		{EndpointControl, cfg.Endpoints.ControlSocket, os.FileMode(cfg.Endpoints.ControlSocketMode)},
	}

	for _, e := range endpoints {
		ln, err := listenUnix(e.path, e.mode)
		if err != nil {
			b.closeListeners()
			return nil, err
		}
		b.listeners[e.endpoint] = ln
	}

	return b, nil
}

// AttachPidlock records the daemon's already-acquired pidlock so Run
// releases it on shutdown, after every listener and connection is torn
// down.
func (b *Broker) AttachPidlock(lock *pidlock.Pidlock) {
	b.pidlock = lock
}

func (b *Broker) closeListeners() {
	for _, ln := range b.listeners {
		ln.Close()
	}
}

// Run drives the broker's single event loop until ctx is cancelled or
// a signal requests shutdown. It returns nil on a clean shutdown
// (SIGUSR1) and the triggering error otherwise.
func (b *Broker) Run(ctx context.Context) error {
	for endpoint, ln := range b.listeners {
		go acceptLoop(ln, endpoint, b.events)
	}

	sigCh := make(chan os.Signal, 4)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGUSR1, syscall.SIGHUP)
	defer signal.Stop(sigCh)
	go func() {
		for {
			select {
			case sig := <-sigCh:
				select {
				case b.events <- event{kind: eventSignal, sig: sig}:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	ticker := b.clock.NewTicker(b.cfg.Tick.Interval)
	defer ticker.Stop()
	go func() {
		for {
			select {
			case <-ticker.C:
				select {
				case b.events <- event{kind: eventTick}:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	b.logger.Info("broker listening",
		"client_socket", b.cfg.Endpoints.ClientSocket,
		"backend_socket", b.cfg.Endpoints.BackendSocket,
		"control_socket", b.cfg.Endpoints.ControlSocket,
	)

	for {
		select {
		case <-ctx.Done():
			b.shutdown()
			return ctx.Err()

		case ev := <-b.events:
			if done, err := b.handleEvent(ev); done {
				b.shutdown()
				return err
			}
		}
	}
}

func (b *Broker) handleEvent(ev event) (done bool, err error) {
	switch ev.kind {
	case eventAccept:
		b.handleAccept(ev.endpoint, ev.conn)
	case eventAcceptError:
		b.logger.Error("accept failed", "endpoint", ev.endpoint, "error", ev.err)
	case eventLine:
		b.handleLine(ev.handle, ev.line)
	case eventClosed:
		b.handleClosed(ev.handle, ev.err)
	case eventTick:
		b.handleTick()
	case eventSignal:
		return b.handleSignal(ev.sig)
	}
	return false, nil
}

func (b *Broker) handleSignal(sig os.Signal) (done bool, err error) {
	switch sig {
	case syscall.SIGHUP:
		if b.handleReload() {
			return true, errReloadFailed
		}
		return false, nil
	case syscall.SIGUSR1:
		b.logger.Info("received SIGUSR1, shutting down cleanly")
		b.cleanShutdown = true
		return true, nil
	default:
		b.logger.Info("received shutdown signal", "signal", sig)
		return true, errors.New("broker: shut down by signal " + sig.String())
	}
}

// CleanShutdown reports whether Run exited because of SIGUSR1 rather
// than SIGTERM/SIGINT or a fatal error.
func (b *Broker) CleanShutdown() bool {
	return b.cleanShutdown
}

func (b *Broker) shutdown() {
	for _, conn := range b.table.All() {
		conn.Closer.Close()
	}
	b.closeListeners()
	if b.inputLog != nil {
		b.inputLog.Close()
	}
	if b.pidlock != nil {
		if err := b.pidlock.Close(); err != nil {
			b.logger.Warn("releasing pidlock failed", "error", err)
		}
	}
}
