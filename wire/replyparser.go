// Copyright 2026 The irdispatchd Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"strconv"
	"strings"
)

// ReplyState is a state of the [ReplyParser] finite state machine.
type ReplyState int

const (
	ReplyBegin ReplyState = iota
	ReplyCommand
	ReplyResult
	ReplyData
	ReplyLineCount
	ReplyLines
	ReplyEnd
	ReplyDone
	ReplyBadData
)

// ReplyParser assembles a backend's multi-line BEGIN/.../END reply
// frame one line at a time. One ReplyParser exists per backend
// command connection.
type ReplyParser struct {
	state      ReplyState
	command    string
	success    bool
	lines      []string
	lineCount  int
	lastLine   string
}

// NewReplyParser returns a parser ready to consume the first line of
// a reply frame.
func NewReplyParser() *ReplyParser {
	return &ReplyParser{}
}

// Feed consumes one line of backend output, trimming trailing
// whitespace before inspecting it. Call Done after each Feed to check
// whether a complete reply (or a terminal parse failure) is ready.
func (p *ReplyParser) Feed(line string) {
	line = strings.TrimRight(line, " \t\r\n")
	p.lastLine = line

	switch p.state {
	case ReplyBegin:
		if line == "BEGIN" {
			p.state = ReplyCommand
		} else {
			p.state = ReplyBadData
		}
	case ReplyCommand:
		if line != "" {
			p.command = line
			p.state = ReplyResult
		} else {
			p.state = ReplyBadData
		}
	case ReplyResult:
		switch line {
		case "SUCCESS":
			p.success = true
			p.state = ReplyData
		case "ERROR":
			p.success = false
			p.state = ReplyData
		default:
			p.state = ReplyBadData
		}
	case ReplyData:
		switch line {
		case "DATA":
			p.state = ReplyLineCount
		case "END":
			p.state = ReplyDone
		default:
			p.state = ReplyBadData
		}
	case ReplyLineCount:
		n, err := strconv.Atoi(line)
		if err != nil {
			p.state = ReplyBadData
			break
		}
		p.lineCount = n
		p.state = ReplyLines
		if p.lineCount <= 0 {
			p.state = ReplyEnd
		}
	case ReplyLines:
		if line == "" {
			p.state = ReplyBadData
			break
		}
		p.lines = append(p.lines, line)
		p.lineCount--
		if p.lineCount <= 0 {
			p.state = ReplyEnd
		}
	case ReplyEnd:
		if line == "END" {
			p.state = ReplyDone
		} else {
			p.state = ReplyBadData
		}
	case ReplyDone, ReplyBadData:
		// Extra input after completion is discarded; the caller should
		// have reset the parser before feeding it again.
	}
}

// Done reports whether the parser has reached a terminal state: a
// complete reply (ReplyDone) or a parse failure (ReplyBadData).
func (p *ReplyParser) Done() bool {
	return p.state == ReplyDone || p.state == ReplyBadData
}

// Failed reports whether the parser terminated in ReplyBadData.
func (p *ReplyParser) Failed() bool {
	return p.state == ReplyBadData
}

// Command returns the directive name echoed by the backend, valid
// once Done reports true.
func (p *ReplyParser) Command() string {
	return p.command
}

// Success returns the SUCCESS/ERROR flag, valid once Done reports
// true.
func (p *ReplyParser) Success() bool {
	return p.success
}

// Lines returns the payload lines in order, valid once Done reports
// true.
func (p *ReplyParser) Lines() []string {
	return p.lines
}

// LastLine returns the most recently fed line, trimmed. Useful in log
// messages when Failed reports true.
func (p *ReplyParser) LastLine() string {
	return p.lastLine
}

// Reset returns the parser to its initial state so it can assemble
// another reply frame.
func (p *ReplyParser) Reset() {
	*p = ReplyParser{}
}
