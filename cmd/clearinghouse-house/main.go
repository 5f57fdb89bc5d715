// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Clearinghouse-house runs an auction house. It registers with the
// bank, accepts agent connections, and keeps a fixed number of timed
// auctions open, refilling each slot from its item catalog as auctions
// end.
//
// The first SIGINT or SIGTERM closes the house gracefully: no new
// auctions open, and once the open ones have ended the house tells the
// bank it is gone and exits. A second signal stops it immediately.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/pflag"

	"github.com/bureau-foundation/clearinghouse/lib/auctionhouse"
	"github.com/bureau-foundation/clearinghouse/lib/cli"
	"github.com/bureau-foundation/clearinghouse/lib/config"
	"github.com/bureau-foundation/clearinghouse/lib/process"
	"github.com/bureau-foundation/clearinghouse/lib/transport"
	"github.com/bureau-foundation/clearinghouse/lib/version"
)

const usage = `clearinghouse-house runs timed auctions and settles them through the bank.

Usage:
  clearinghouse-house --name NAME --bank HOST:PORT [flags]
`

type houseFlags struct {
	name     string
	port     int
	bank     string
	slots    int
	floor    decimal.Decimal
	duration time.Duration
}

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	var (
		common cli.Common
		flags  houseFlags
	)
	flagSet := pflag.NewFlagSet("clearinghouse-house", pflag.ContinueOnError)
	common.AddFlags(flagSet)
	addHouseFlags(flagSet, &flags)
	flagSet.Usage = func() { cli.PrintUsage(os.Stderr, flagSet, usage) }

	if err := cli.Parse(flagSet, os.Args[1:]); err != nil {
		if errors.Is(err, cli.ErrHelp) {
			return nil
		}
		return err
	}
	if common.ShowVersion {
		version.Print(os.Stdout, "clearinghouse-house")
		return nil
	}
	if args := flagSet.Args(); len(args) > 0 {
		return process.Usagef("unexpected argument: %s", args[0])
	}

	cfg, err := common.Load()
	if err != nil {
		return err
	}
	applyHouseFlags(flagSet, flags, &cfg.House)
	if err := cfg.ValidateHouse(); err != nil {
		return &process.UsageError{Err: err}
	}

	logger, err := cli.NewLogger(cfg)
	if err != nil {
		return err
	}

	listener, err := transport.ListenPort(cfg.House.Port)
	if err != nil {
		return err
	}

	service := auctionhouse.New(auctionhouse.Config{
		Name:          cfg.House.Name,
		BankAddress:   cfg.House.Bank,
		Slots:         cfg.House.Slots,
		Floor:         cfg.House.Floor,
		Duration:      cfg.House.Duration,
		Items:         cfg.House.Items,
		SweepInterval: cfg.House.SweepInterval,
		Logger:        logger,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go closeOnSignal(ctx, cancel, service, logger)

	logger.Info("auction house starting",
		"name", cfg.House.Name,
		"address", listener.Address(),
		"bank", cfg.House.Bank,
		"version", version.Info(),
	)
	return service.Run(ctx, listener)
}

func addHouseFlags(flagSet *pflag.FlagSet, flags *houseFlags) {
	flagSet.StringVar(&flags.name, "name", "", "house name shown in the bank directory")
	flagSet.IntVar(&flags.port, "port", 0, "TCP port agents connect to (0 picks a free port)")
	flagSet.StringVar(&flags.bank, "bank", "", "bank address as host:port")
	flagSet.IntVar(&flags.slots, "slots", 0, "number of auctions open at once")
	cli.DecimalVar(flagSet, &flags.floor, "floor", decimal.Zero, "starting bid of every auction")
	flagSet.DurationVar(&flags.duration, "duration", 0, "time without bidding activity before an auction ends, e.g. 30s")
}

// applyHouseFlags overrides file settings with the flags that were
// given.
func applyHouseFlags(flagSet *pflag.FlagSet, flags houseFlags, house *config.HouseConfig) {
	cli.Override(flagSet, "name", flags.name, &house.Name)
	cli.Override(flagSet, "port", flags.port, &house.Port)
	cli.Override(flagSet, "bank", flags.bank, &house.Bank)
	cli.Override(flagSet, "slots", flags.slots, &house.Slots)
	cli.Override(flagSet, "floor", flags.floor, &house.Floor)
	cli.Override(flagSet, "duration", flags.duration, &house.Duration)
}

// closeOnSignal closes the house on the first signal and cancels ctx on
// the second.
func closeOnSignal(ctx context.Context, cancel context.CancelFunc, service *auctionhouse.Service, logger *slog.Logger) {
	signals := make(chan os.Signal, 2)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signals)

	select {
	case <-ctx.Done():
		return
	case <-signals:
	}
	logger.Info("closing after open auctions end, signal again to stop now")
	if err := service.Close(ctx); err != nil {
		cancel()
		return
	}
	select {
	case <-ctx.Done():
	case <-signals:
		logger.Warn("stopping with auctions still open")
		cancel()
	}
}
