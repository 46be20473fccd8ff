// Copyright 2026 The irdispatchd Authors
// SPDX-License-Identifier: Apache-2.0

// irdispatchd is the dispatcher daemon: it brokers line-oriented
// request/reply traffic between clients, backends, and an operator
// control endpoint over three local Unix-domain sockets.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/irdispatch/irdispatchd/broker"
	"github.com/irdispatch/irdispatchd/lib/clock"
	"github.com/irdispatch/irdispatchd/lib/config"
	"github.com/irdispatch/irdispatchd/lib/process"
	"github.com/irdispatch/irdispatchd/lib/version"
	"github.com/irdispatch/irdispatchd/pidlock"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	var (
		configPath  string
		logFormat   string
		showVersion bool
	)

	flagSet := pflag.NewFlagSet("irdispatchd", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", os.Getenv("IRDISPATCHD_CONFIG"), "path to the YAML configuration file (or set IRDISPATCHD_CONFIG)")
	flagSet.StringVar(&logFormat, "log-format", "", "override the configured log format (text or json)")
	flagSet.BoolVar(&showVersion, "version", false, "print version information and exit")
	showHelp := flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	if *showHelp {
		fmt.Printf("Usage of irdispatchd:\n%s", flagSet.FlagUsages())
		return nil
	}

	if showVersion {
		fmt.Printf("irdispatchd %s\n", version.Info())
		return nil
	}

	if configPath == "" {
		return fmt.Errorf("--config (or IRDISPATCHD_CONFIG) is required")
	}

	cfg, err := config.LoadFile(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if err := cfg.EnsureRunDirs(); err != nil {
		return fmt.Errorf("preparing run directories: %w", err)
	}

	if logFormat == "" {
		logFormat = cfg.Logging.Format
	}
	logger, err := newLogger(cfg.Logging.Level, logFormat)
	if err != nil {
		return fmt.Errorf("setting up logging: %w", err)
	}

	lock, lockResult, err := pidlock.Acquire(cfg.Pidfile)
	if lockResult.Result != pidlock.OK {
		switch lockResult.Result {
		case pidlock.LockedByOther:
			return fmt.Errorf("irdispatchd already running (pid %d)", lockResult.OtherPID)
		case pidlock.CantParse:
			return fmt.Errorf("pidfile %s exists but could not be parsed, refusing to start", cfg.Pidfile)
		default:
			return fmt.Errorf("acquiring pidfile: %w", err)
		}
	}

	b, err := broker.New(cfg, logger, clock.Real())
	if err != nil {
		lock.Close()
		return fmt.Errorf("starting broker: %w", err)
	}
	b.AttachPidlock(lock)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	logger.Info("irdispatchd starting", "version", version.Info(), "pid", os.Getpid())
	runErr := b.Run(ctx)
	if b.CleanShutdown() {
		os.Exit(process.ExitCode(true))
	}
	if runErr != nil {
		return runErr
	}
	return nil
}

// newLogger builds the daemon's structured logger. format is "json"
// (the default) or "text"; level is one of debug/info/warn/error.
// irdispatchd always logs to the inherited stderr, so SIGHUP's log
// reopen hook is left unset — a process supervisor that redirects
// stderr to a rotated file handles reopening on its own.
func newLogger(level, format string) (*slog.Logger, error) {
	var slogLevel slog.Level
	if err := slogLevel.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("parsing log level %q: %w", level, err)
	}

	opts := &slog.HandlerOptions{Level: slogLevel}
	var handler slog.Handler
	if format == "text" {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	return slog.New(handler), nil
}
