// Copyright 2026 The irdispatchd Authors
// SPDX-License-Identifier: Apache-2.0

// irdispatchctl is a thin client for the dispatcher's control endpoint:
// it opens the control socket, writes one directive, reads the reply
// frame, and prints the result.
package main

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/pflag"

	"github.com/irdispatch/irdispatchd/lib/version"
	"github.com/irdispatch/irdispatchd/wire"
)

const defaultControlSocket = "/run/irdispatchd/irdispatchd.control"

const help = `
Synopsis:
    irdispatchctl [options] send <remote> <code>
    irdispatchctl [options] send-start <remote> <code>
    irdispatchctl [options] send-stop <remote> <code>
    irdispatchctl [options] set-default-backend <backend>
    irdispatchctl [options] get-default-backend
    irdispatchctl [options] stop-backend
    irdispatchctl [options] list-backends
    irdispatchctl [options] list-remotes
    irdispatchctl [options] list-codes <remote>
    irdispatchctl [options] set-transmitters <num> [num...]
    irdispatchctl [options] simulate <remote> <keysym> [scancode]

Options:
    -h, --help             display usage summary
    -v, --version          display version
    -b, --backend string   use given backend
    -s, --socket string    control socket path (default: ` + defaultControlSocket + `)
    -c, --count int        repeat count for send/simulate (default: 1)
`

func main() {
	os.Exit(run(os.Args[1:]))
}

type client struct {
	conn  io.ReadWriteCloser
	r     *bufio.Reader
	count int
}

func run(args []string) int {
	var (
		backend     string
		socketPath  string
		count       int
		showHelp    bool
		showVersion bool
	)

	flagSet := pflag.NewFlagSet("irdispatchctl", pflag.ContinueOnError)
	flagSet.Usage = func() {}
	flagSet.StringVarP(&backend, "backend", "b", "", "backend to target")
	flagSet.StringVarP(&socketPath, "socket", "s", defaultControlSocket, "control socket path")
	flagSet.IntVarP(&count, "count", "c", 1, "repeat count for send/simulate")
	flagSet.BoolVarP(&showHelp, "help", "h", false, "show help")
	flagSet.BoolVarP(&showVersion, "version", "v", false, "show version")

	if err := flagSet.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "irdispatchctl: %v\n", err)
		return 1
	}
	if showHelp {
		fmt.Print(help)
		return 0
	}
	if showVersion {
		fmt.Printf("irdispatchctl %s\n", version.Info())
		return 0
	}

	positional := flagSet.Args()
	if len(positional) == 0 {
		fmt.Fprintln(os.Stderr, "irdispatchctl: not enough arguments")
		return 1
	}
	verb, rest := positional[0], positional[1:]

	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "irdispatchctl: cannot connect to %s: %v\n", socketPath, err)
		return 1
	}
	defer conn.Close()
	c := &client{conn: conn, r: bufio.NewReader(conn), count: count}

	cmd, ok := commands[verb]
	if !ok {
		fmt.Fprintf(os.Stderr, "irdispatchctl: unknown command %q (use --help for usage)\n", verb)
		return 1
	}
	return cmd(c, backend, rest)
}

type commandFunc func(c *client, backend string, args []string) int

var commands = map[string]commandFunc{
	"send":                sendCmd,
	"send-start":          sendStartCmd,
	"send-stop":           sendStopCmd,
	"set-default-backend": setDefaultBackendCmd,
	"get-default-backend": getDefaultBackendCmd,
	"stop-backend":        stopBackendCmd,
	"list-backends":       listBackendsCmd,
	"list-remotes":        listRemotesCmd,
	"list-codes":          listCodesCmd,
	"set-transmitters":    setTransmittersCmd,
	"simulate":            simulateCmd,
}

// sendDirective writes one directive line and reads its reply frame.
func (c *client) sendDirective(directive string) (*wire.ReplyParser, error) {
	if err := wire.WriteAll(c.conn, []byte(directive+"\n")); err != nil {
		return nil, fmt.Errorf("writing directive: %w", err)
	}
	parser := wire.NewReplyParser()
	for !parser.Done() {
		line, err := c.r.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("reading reply: %w", err)
		}
		parser.Feed(line)
	}
	return parser, nil
}

// resolveBackend returns backend if set, otherwise queries the
// dispatcher's current default backend.
func (c *client) resolveBackend(backend string) (string, error) {
	if backend != "" {
		return backend, nil
	}
	parser, err := c.sendDirective("GET_DEFAULT_BACKEND")
	if err != nil {
		return "", err
	}
	if !parser.Success() || len(parser.Lines()) != 1 {
		return "", fmt.Errorf("no default backend")
	}
	return parser.Lines()[0], nil
}

func printError(parser *wire.ReplyParser) {
	detail := strings.Join(parser.Lines(), "\n")
	if detail == "" {
		detail = "command failed"
	}
	fmt.Fprintf(os.Stderr, "irdispatchctl: %s\n", detail)
}

func sendCmd(c *client, backend string, args []string) int {
	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: send <remote> <code> [code...]")
		return 1
	}
	backend, err := c.resolveBackend(backend)
	if err != nil {
		fmt.Fprintf(os.Stderr, "irdispatchctl: %v\n", err)
		return 1
	}
	directive := "SEND_ONCE " + backend + " " + strings.Join(args, " ") + " " + strconv.Itoa(c.count)
	parser, err := c.sendDirective(directive)
	if err != nil {
		fmt.Fprintf(os.Stderr, "irdispatchctl: %v\n", err)
		return 1
	}
	if !parser.Success() {
		printError(parser)
		return 1
	}
	return 0
}

func sendStartCmd(c *client, backend string, args []string) int {
	return sendRemoteCodeCmd(c, backend, args, "SEND_START", "send-start <remote> <code>")
}

func sendStopCmd(c *client, backend string, args []string) int {
	return sendRemoteCodeCmd(c, backend, args, "SEND_STOP", "send-stop <remote> <code>")
}

func sendRemoteCodeCmd(c *client, backend string, args []string, directiveName, usage string) int {
	if len(args) != 2 {
		fmt.Fprintf(os.Stderr, "usage: %s\n", usage)
		return 1
	}
	backend, err := c.resolveBackend(backend)
	if err != nil {
		fmt.Fprintf(os.Stderr, "irdispatchctl: %v\n", err)
		return 1
	}
	parser, err := c.sendDirective(directiveName + " " + backend + " " + args[0] + " " + args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "irdispatchctl: %v\n", err)
		return 1
	}
	if !parser.Success() {
		printError(parser)
		return 1
	}
	return 0
}

func setDefaultBackendCmd(c *client, backend string, args []string) int {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: set-default-backend <backend>")
		return 1
	}
	parser, err := c.sendDirective("SET_DEFAULT_BACKEND " + args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "irdispatchctl: %v\n", err)
		return 1
	}
	if !parser.Success() {
		printError(parser)
		return 1
	}
	return 0
}

func getDefaultBackendCmd(c *client, backend string, args []string) int {
	name, err := c.resolveBackend("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "irdispatchctl: %v\n", err)
		return 1
	}
	fmt.Println(name)
	return 0
}

func stopBackendCmd(c *client, backend string, args []string) int {
	if len(args) != 0 {
		fmt.Fprintln(os.Stderr, "usage: [-b backend] stop-backend")
		return 1
	}
	backend, err := c.resolveBackend(backend)
	if err != nil {
		fmt.Fprintf(os.Stderr, "irdispatchctl: %v\n", err)
		return 1
	}
	parser, err := c.sendDirective("STOP_BACKEND " + backend)
	if err != nil {
		fmt.Fprintf(os.Stderr, "irdispatchctl: %v\n", err)
		return 1
	}
	if !parser.Success() {
		printError(parser)
		return 1
	}
	return 0
}

func listBackendsCmd(c *client, backend string, args []string) int {
	if len(args) != 0 {
		fmt.Fprintln(os.Stderr, "usage: list-backends")
		return 1
	}
	parser, err := c.sendDirective("LIST_BACKENDS")
	if err != nil {
		fmt.Fprintf(os.Stderr, "irdispatchctl: %v\n", err)
		return 1
	}
	if !parser.Success() {
		printError(parser)
		return 1
	}
	for _, line := range parser.Lines() {
		fmt.Println(line)
	}
	return 0
}

func listRemotesCmd(c *client, backend string, args []string) int {
	if len(args) != 0 {
		fmt.Fprintln(os.Stderr, "usage: [-b backend] list-remotes")
		return 1
	}
	backend, err := c.resolveBackend(backend)
	if err != nil {
		fmt.Fprintf(os.Stderr, "irdispatchctl: %v\n", err)
		return 1
	}
	parser, err := c.sendDirective("LIST_REMOTES " + backend)
	if err != nil {
		fmt.Fprintf(os.Stderr, "irdispatchctl: %v\n", err)
		return 1
	}
	if !parser.Success() {
		printError(parser)
		return 1
	}
	for _, line := range parser.Lines() {
		fmt.Println(line)
	}
	return 0
}

func listCodesCmd(c *client, backend string, args []string) int {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: [-b backend] list-codes <remote>")
		return 1
	}
	backend, err := c.resolveBackend(backend)
	if err != nil {
		fmt.Fprintf(os.Stderr, "irdispatchctl: %v\n", err)
		return 1
	}
	remote := strings.TrimSpace(args[0])
	parser, err := c.sendDirective("LIST_CODES " + backend + " " + remote)
	if err != nil {
		fmt.Fprintf(os.Stderr, "irdispatchctl: %v\n", err)
		return 1
	}
	if !parser.Success() {
		printError(parser)
		return 1
	}
	for _, line := range parser.Lines() {
		fmt.Println(line)
	}
	return 0
}

func setTransmittersCmd(c *client, backend string, args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: [-b backend] set-transmitters <num> [num...]")
		return 1
	}
	backend, err := c.resolveBackend(backend)
	if err != nil {
		fmt.Fprintf(os.Stderr, "irdispatchctl: %v\n", err)
		return 1
	}
	parser, err := c.sendDirective("SET_TRANSMITTERS " + backend + " " + strings.Join(args, " "))
	if err != nil {
		fmt.Fprintf(os.Stderr, "irdispatchctl: %v\n", err)
		return 1
	}
	if !parser.Success() {
		printError(parser)
		return 1
	}
	return 0
}

func simulateCmd(c *client, backend string, args []string) int {
	if len(args) < 2 || len(args) > 3 {
		fmt.Fprintln(os.Stderr, "usage: simulate <remote> <keysym> [scancode]")
		return 1
	}
	backend, err := c.resolveBackend(backend)
	if err != nil {
		fmt.Fprintf(os.Stderr, "irdispatchctl: %v\n", err)
		return 1
	}
	scancode := "0"
	if len(args) == 3 {
		scancode = args[2]
	}
	if _, err := strconv.ParseUint(scancode, 16, 64); err != nil {
		fmt.Fprintf(os.Stderr, "irdispatchctl: invalid scancode %q\n", scancode)
		return 1
	}
	directive := fmt.Sprintf("SIMULATE %s %s %s %d %s", backend, args[0], args[1], c.count, scancode)
	parser, err := c.sendDirective(directive)
	if err != nil {
		fmt.Fprintf(os.Stderr, "irdispatchctl: %v\n", err)
		return 1
	}
	if !parser.Success() {
		printError(parser)
		return 1
	}
	return 0
}
