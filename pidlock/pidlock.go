// Copyright 2026 The irdispatchd Authors
// SPDX-License-Identifier: Apache-2.0

package pidlock

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// Result classifies the outcome of [Acquire].
type Result int

const (
	// OK means the lock was acquired and the daemon's pid was written.
	OK Result = iota
	// CantCreate means the pidfile could not be opened or created.
	CantCreate
	// LockedByOther means another process holds the lock; OtherPID in
	// the returned AcquireResult names it.
	LockedByOther
	// CantParse means another process holds the lock but the file's
	// contents could not be read as a pid. An unlocked pidfile is taken
	// over and rewritten whatever it contains, so a stale or unparsable
	// file left by a process that has exited does not produce CantParse.
	CantParse
)

func (r Result) String() string {
	switch r {
	case OK:
		return "OK"
	case CantCreate:
		return "CANT_CREATE"
	case LockedByOther:
		return "LOCKED_BY_OTHER"
	case CantParse:
		return "CANT_PARSE"
	default:
		return "UNKNOWN"
	}
}

// AcquireResult is the outcome of a call to Acquire.
type AcquireResult struct {
	Result Result
	// OtherPID is valid only when Result == LockedByOther.
	OtherPID int
}

// Pidlock holds an exclusive advisory lock on a pidfile for the
// lifetime of the daemon process. The lock is released, and the file
// removed, by Close.
type Pidlock struct {
	file *os.File
	path string
}

// Acquire opens (creating if necessary) the pidfile at path and
// attempts a non-blocking exclusive lock. On success the current
// process's pid is written to the file and a *Pidlock is returned.
// On failure, a nil *Pidlock is returned along with an AcquireResult
// describing why.
func Acquire(path string) (*Pidlock, AcquireResult, error) {
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, AcquireResult{Result: CantCreate}, fmt.Errorf("opening %s: %w", path, err)
	}

	if err := unix.Flock(int(file.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		defer file.Close()

		if err != unix.EWOULDBLOCK {
			return nil, AcquireResult{Result: CantCreate}, fmt.Errorf("locking %s: %w", path, err)
		}

		data, readErr := os.ReadFile(path)
		if readErr != nil {
			return nil, AcquireResult{Result: CantParse}, fmt.Errorf("reading %s: %w", path, readErr)
		}
		pid, parseErr := strconv.Atoi(strings.TrimSpace(string(data)))
		if parseErr != nil {
			return nil, AcquireResult{Result: CantParse}, fmt.Errorf("parsing pid from %s: %w", path, parseErr)
		}
		return nil, AcquireResult{Result: LockedByOther, OtherPID: pid}, nil
	}

	lock := &Pidlock{file: file, path: path}
	if err := lock.Update(os.Getpid()); err != nil {
		file.Close()
		return nil, AcquireResult{Result: CantCreate}, err
	}
	return lock, AcquireResult{Result: OK}, nil
}

// Update rewrites the pidfile's contents with pid, keeping the lock
// held. Used after a fork/daemonize step changes the reporting pid.
func (l *Pidlock) Update(pid int) error {
	if _, err := l.file.Seek(0, 0); err != nil {
		return fmt.Errorf("seeking %s: %w", l.path, err)
	}
	if err := l.file.Truncate(0); err != nil {
		return fmt.Errorf("truncating %s: %w", l.path, err)
	}
	if _, err := fmt.Fprintf(l.file, "%d\n", pid); err != nil {
		return fmt.Errorf("writing %s: %w", l.path, err)
	}
	return l.file.Sync()
}

// Close releases the lock and removes the pidfile. The lock is
// released implicitly when the underlying file descriptor closes.
func (l *Pidlock) Close() error {
	closeErr := l.file.Close()
	removeErr := os.Remove(l.path)
	if closeErr != nil {
		return closeErr
	}
	if removeErr != nil && !os.IsNotExist(removeErr) {
		return removeErr
	}
	return nil
}
