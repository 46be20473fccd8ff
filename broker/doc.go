// Copyright 2026 The irdispatchd Authors
// SPDX-License-Identifier: Apache-2.0

// Package broker implements the dispatcher's engine: the connection
// table, the backend registration handshake, the command routing
// tables, the event broadcaster, and the tick-driven timeout system
// described across the external specification's component design.
//
// A Broker owns exactly one goroutine that mutates the connection
// table — [Broker.Run]. Every other goroutine (per-endpoint accept
// loops, per-connection readers, the tick ticker, the signal
// forwarder) only ever produces events onto a channel; the table
// itself needs no mutex because only Run ever touches it. This is the
// Go analogue of the single-threaded, poll-driven cooperative loop:
// concurrency is expressed by interleaving events, not by parallel
// mutation.
package broker
