// Copyright 2026 The irdispatchd Authors
// SPDX-License-Identifier: Apache-2.0

package broker

import "github.com/irdispatch/irdispatchd/wire"

// SetReopenLogHook installs the callback handleReload invokes before
// broadcasting the unsolicited SIGHUP frame. Typically reopens the
// daemon's log file for logrotate compatibility.
func (b *Broker) SetReopenLogHook(fn func() error) {
	b.reopenLog = fn
}

// handleReload implements SIGHUP: reopen the log file, then push an
// unsolicited BEGIN/SIGHUP/END frame to every client stream. A reopen
// failure is treated the same as a shutdown signal, since a daemon that
// can no longer write its log is not healthy enough to keep serving.
func (b *Broker) handleReload() (fatal bool) {
	if b.reopenLog != nil {
		if err := b.reopenLog(); err != nil {
			b.logger.Error("reopening log file failed, shutting down", "error", err)
			return true
		}
	}

	for _, client := range b.table.ClientStreams() {
		if err := wire.WriteSighup(client.Writer); err != nil {
			client.Closer.Close()
			b.table.Remove(client.Handle)
		}
	}
	return false
}
