// Copyright 2026 The irdispatchd Authors
// SPDX-License-Identifier: Apache-2.0

package pidlock

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

func TestAcquire_OK(t *testing.T) {
	path := filepath.Join(t.TempDir(), "irdispatchd.pid")

	lock, res, err := Acquire(path)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if res.Result != OK {
		t.Fatalf("result = %v, want OK", res.Result)
	}
	defer lock.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading pidfile: %v", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		t.Fatalf("pidfile contents not a pid: %q", data)
	}
	if pid != os.Getpid() {
		t.Errorf("pidfile contains %d, want %d", pid, os.Getpid())
	}
}

func TestAcquire_LockedByOther(t *testing.T) {
	path := filepath.Join(t.TempDir(), "irdispatchd.pid")

	first, res, err := Acquire(path)
	if err != nil {
		t.Fatalf("first Acquire: %v", err)
	}
	if res.Result != OK {
		t.Fatalf("first result = %v, want OK", res.Result)
	}
	defer first.Close()

	second, res, err := Acquire(path)
	if err != nil {
		t.Fatalf("second Acquire: %v", err)
	}
	if second != nil {
		t.Fatal("expected nil Pidlock when already locked")
	}
	if res.Result != LockedByOther {
		t.Fatalf("result = %v, want LockedByOther", res.Result)
	}
	if res.OtherPID != os.Getpid() {
		t.Errorf("OtherPID = %d, want %d", res.OtherPID, os.Getpid())
	}
}

// CantParse is only reachable when flock() itself fails (the lock is
// already held) and the pidfile's contents are not a parseable pid.
// No test here covers that path; the parse step it shares with the
// LockedByOther result is exercised by TestAcquire_LockedByOther.

func TestUpdate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "irdispatchd.pid")

	lock, res, err := Acquire(path)
	if err != nil || res.Result != OK {
		t.Fatalf("Acquire: res=%v err=%v", res, err)
	}
	defer lock.Close()

	if err := lock.Update(12345); err != nil {
		t.Fatalf("Update: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading pidfile: %v", err)
	}
	if strings.TrimSpace(string(data)) != "12345" {
		t.Errorf("pidfile contains %q, want 12345", data)
	}
}

func TestClose_RemovesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "irdispatchd.pid")

	lock, res, err := Acquire(path)
	if err != nil || res.Result != OK {
		t.Fatalf("Acquire: res=%v err=%v", res, err)
	}
	if err := lock.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("expected pidfile removed, stat err = %v", err)
	}
}
