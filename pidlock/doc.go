// Copyright 2026 The irdispatchd Authors
// SPDX-License-Identifier: Apache-2.0

// Package pidlock implements the daemon's sole persisted state: an
// advisory, exclusive-lock pidfile that prevents two instances from
// binding the same endpoints.
//
// Acquire opens (creating if needed) the file at the configured path
// and attempts a non-blocking exclusive flock. A held lock reports the
// other process's pid via [LockedByOther], or [CantParse] if the
// holder's file does not contain a pid. A file that is not locked is
// taken over and rewritten, whatever it contains.
package pidlock
