// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Clearinghouse-bank is the central bank: it keeps every agent's and
// auction house's account, places and releases holds for bids, settles
// finished auctions and publishes the auction house directory.
//
// Usage:
//
//	clearinghouse-bank [--config file] [--port N | N] [--log-level level]
//
// The listen port comes from the positional argument, --port, or
// bank.port in the config file, in that order of preference. An
// invalid or unavailable port fails startup.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/clearinghouse/lib/bank"
	"github.com/bureau-foundation/clearinghouse/lib/cli"
	"github.com/bureau-foundation/clearinghouse/lib/config"
	"github.com/bureau-foundation/clearinghouse/lib/process"
	"github.com/bureau-foundation/clearinghouse/lib/transport"
	"github.com/bureau-foundation/clearinghouse/lib/version"
)

const usage = `clearinghouse-bank keeps accounts and holds for agents and auction houses.

Usage:
  clearinghouse-bank [flags] [port]
`

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	var (
		common cli.Common
		port   int
	)
	flagSet := pflag.NewFlagSet("clearinghouse-bank", pflag.ContinueOnError)
	common.AddFlags(flagSet)
	flagSet.IntVar(&port, "port", 0, "TCP port to listen on (0 picks a free port)")
	flagSet.Usage = func() { cli.PrintUsage(os.Stderr, flagSet, usage) }

	if err := cli.Parse(flagSet, os.Args[1:]); err != nil {
		if errors.Is(err, cli.ErrHelp) {
			return nil
		}
		return err
	}
	if common.ShowVersion {
		version.Print(os.Stdout, "clearinghouse-bank")
		return nil
	}

	cfg, err := common.Load()
	if err != nil {
		return err
	}
	if err := applyPort(flagSet, port, &cfg.Bank); err != nil {
		return err
	}
	if err := cfg.ValidateBank(); err != nil {
		return &process.UsageError{Err: err}
	}

	logger, err := cli.NewLogger(cfg)
	if err != nil {
		return err
	}

	listener, err := transport.ListenPort(cfg.Bank.Port)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	service := bank.New(bank.Config{
		RegistrationTimeout: cfg.Bank.RegistrationTimeout,
		QueueDepth:          cfg.Bank.QueueDepth,
		Logger:              logger,
	})
	logger.Info("bank listening",
		"address", listener.Address(),
		"environment", cfg.Environment,
		"version", version.Info(),
	)
	return service.Serve(ctx, listener)
}

// applyPort resolves the listen port from --port or the single
// positional argument.
func applyPort(flagSet *pflag.FlagSet, port int, bankConfig *config.BankConfig) error {
	cli.Override(flagSet, "port", port, &bankConfig.Port)

	args := flagSet.Args()
	switch {
	case len(args) == 0:
		return nil
	case len(args) > 1:
		return process.Usagef("unexpected argument: %s", args[1])
	case flagSet.Changed("port"):
		return process.Usagef("port given both as --port and as argument %q", args[0])
	}
	positional, err := strconv.Atoi(args[0])
	if err != nil {
		return process.Usagef("invalid port %q: %w", args[0], err)
	}
	bankConfig.Port = positional
	return nil
}
