// Copyright 2026 The irdispatchd Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"fmt"
	"io"
	"strings"
)

// WriteAll writes all of b to w, retrying on short writes the way a
// blocking socket write can produce. It returns the first error
// encountered, if any.
func WriteAll(w io.Writer, b []byte) error {
	for len(b) > 0 {
		n, err := w.Write(b)
		if err != nil {
			return err
		}
		b = b[n:]
	}
	return nil
}

// WriteSuccess writes a reply frame with no payload:
//
//	BEGIN
//	<message>
//	SUCCESS
//	END
//
// message is the caller's original directive line with any trailing
// newline already stripped.
func WriteSuccess(w io.Writer, message string) error {
	return WriteAll(w, []byte("BEGIN\n"+message+"\nSUCCESS\nEND\n"))
}

// WriteSuccessData writes a reply frame carrying payload lines:
//
//	BEGIN
//	<message>
//	SUCCESS
//	DATA
//	<n>
//	<line1>
//	...
//	<linen>
//	END
//
// Each element of lines is written without its own trailing newline;
// WriteSuccessData appends exactly one per line.
func WriteSuccessData(w io.Writer, message string, lines []string) error {
	var b strings.Builder
	b.WriteString("BEGIN\n")
	b.WriteString(message)
	b.WriteString("\nSUCCESS\nDATA\n")
	fmt.Fprintf(&b, "%d\n", len(lines))
	for _, line := range lines {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	b.WriteString("END\n")
	return WriteAll(w, []byte(b.String()))
}

// WriteError writes an error reply frame. detail may itself contain
// embedded newlines; the DATA block's line count reflects the number
// of lines detail expands to, matching the backend's own error
// framing so callers never need to special-case multi-line errors.
//
//	BEGIN
//	<message>
//	ERROR
//	DATA
//	<n>
//	<detail, one or more lines>
//	END
func WriteError(w io.Writer, message, detail string) error {
	detail = strings.TrimRight(detail, "\n")
	n := strings.Count(detail, "\n") + 1

	var b strings.Builder
	b.WriteString("BEGIN\n")
	b.WriteString(message)
	b.WriteString("\nERROR\nDATA\n")
	fmt.Fprintf(&b, "%d\n", n)
	b.WriteString(detail)
	b.WriteString("\nEND\n")
	return WriteAll(w, []byte(b.String()))
}

// WriteSighup writes the unsolicited frame pushed to every client
// stream when the daemon reloads its configuration:
//
//	BEGIN
//	SIGHUP
//	END
func WriteSighup(w io.Writer) error {
	return WriteAll(w, []byte("BEGIN\nSIGHUP\nEND\n"))
}
