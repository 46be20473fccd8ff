// Copyright 2026 The irdispatchd Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import "testing"

func feedAll(p *ReplyParser, lines ...string) {
	for _, l := range lines {
		p.Feed(l)
	}
}

func TestReplyParser_SuccessNoData(t *testing.T) {
	p := NewReplyParser()
	feedAll(p, "BEGIN", "VERSION", "SUCCESS", "END")

	if !p.Done() || p.Failed() {
		t.Fatalf("expected a completed, successful parse; state=%v", p.state)
	}
	if p.Command() != "VERSION" {
		t.Errorf("command = %q, want VERSION", p.Command())
	}
	if !p.Success() {
		t.Error("expected success flag true")
	}
	if len(p.Lines()) != 0 {
		t.Errorf("expected no payload lines, got %v", p.Lines())
	}
}

func TestReplyParser_SuccessWithData(t *testing.T) {
	p := NewReplyParser()
	feedAll(p, "BEGIN", "LIST", "SUCCESS", "DATA", "2", "KEY_OK 1", "KEY_VOL+ 2", "END")

	if !p.Done() || p.Failed() {
		t.Fatalf("expected completed success; state=%v", p.state)
	}
	lines := p.Lines()
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2: %v", len(lines), lines)
	}
	if lines[0] != "KEY_OK 1" || lines[1] != "KEY_VOL+ 2" {
		t.Errorf("unexpected lines: %v", lines)
	}
}

func TestReplyParser_Error(t *testing.T) {
	p := NewReplyParser()
	feedAll(p, "BEGIN", "SEND_ONCE", "ERROR", "DATA", "1", "unknown command", "END")

	if !p.Done() {
		t.Fatal("expected completed parse")
	}
	if p.Success() {
		t.Error("expected success flag false")
	}
	if len(p.Lines()) != 1 || p.Lines()[0] != "unknown command" {
		t.Errorf("unexpected lines: %v", p.Lines())
	}
}

func TestReplyParser_BadBegin(t *testing.T) {
	p := NewReplyParser()
	p.Feed("NOT_BEGIN")

	if !p.Done() || !p.Failed() {
		t.Fatalf("expected BAD_DATA; state=%v", p.state)
	}
}

func TestReplyParser_EmptyCommand(t *testing.T) {
	p := NewReplyParser()
	feedAll(p, "BEGIN", "")

	if !p.Failed() {
		t.Fatalf("expected BAD_DATA for empty command; state=%v", p.state)
	}
}

func TestReplyParser_BadResult(t *testing.T) {
	p := NewReplyParser()
	feedAll(p, "BEGIN", "VERSION", "MAYBE")

	if !p.Failed() {
		t.Fatalf("expected BAD_DATA for unrecognized result token; state=%v", p.state)
	}
}

func TestReplyParser_NonIntegerLineCount(t *testing.T) {
	p := NewReplyParser()
	feedAll(p, "BEGIN", "LIST", "SUCCESS", "DATA", "not-a-number")

	if !p.Failed() {
		t.Fatalf("expected BAD_DATA for non-integer line count; state=%v", p.state)
	}
}

func TestReplyParser_EmptyPayloadLineIsBad(t *testing.T) {
	p := NewReplyParser()
	feedAll(p, "BEGIN", "LIST", "SUCCESS", "DATA", "2", "first", "")

	if !p.Failed() {
		t.Fatalf("expected BAD_DATA for empty payload line; state=%v", p.state)
	}
}

func TestReplyParser_TrimsTrailingWhitespace(t *testing.T) {
	p := NewReplyParser()
	feedAll(p, "BEGIN\r", "VERSION \t", "SUCCESS", "END")

	if !p.Done() || p.Failed() {
		t.Fatalf("expected completed parse; state=%v", p.state)
	}
	if p.Command() != "VERSION" {
		t.Errorf("command = %q, want VERSION", p.Command())
	}
}

func TestReplyParser_Reset(t *testing.T) {
	p := NewReplyParser()
	feedAll(p, "BEGIN", "VERSION", "SUCCESS", "END")
	if !p.Done() {
		t.Fatal("expected completed parse before reset")
	}

	p.Reset()
	if p.Done() {
		t.Fatal("expected parser to be reusable after Reset")
	}
	feedAll(p, "BEGIN", "LIST", "ERROR", "DATA", "1", "boom", "END")
	if !p.Done() || p.Success() {
		t.Fatalf("expected second parse to succeed as an ERROR reply")
	}
}
