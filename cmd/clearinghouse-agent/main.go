// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Clearinghouse-agent is a headless bidding agent. It opens an account
// at the bank, joins every auction house in the bank's directory, and
// takes commands on standard input:
//
//	list                      houses and their open auctions
//	bid HOUSE ID AMOUNT       bid AMOUNT on auction ID
//	bidnext HOUSE ID          bid the current bid plus the increment
//	balance                   balance, held amount and available funds
//	outcomes                  last bid result per item
//	won                       items won
//	close                     leave the bank and every house
//
// Messages from the bank and houses are printed as they arrive.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/shopspring/decimal"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/bureau-foundation/clearinghouse/lib/agent"
	"github.com/bureau-foundation/clearinghouse/lib/cli"
	"github.com/bureau-foundation/clearinghouse/lib/config"
	"github.com/bureau-foundation/clearinghouse/lib/process"
	"github.com/bureau-foundation/clearinghouse/lib/version"
)

const usage = `clearinghouse-agent bids in auctions from a command console on stdin.

Usage:
  clearinghouse-agent --name NAME --balance AMOUNT --bank HOST:PORT [flags]
`

type agentFlags struct {
	name      string
	balance   decimal.Decimal
	bank      string
	increment decimal.Decimal
}

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	var (
		common cli.Common
		flags  agentFlags
	)
	flagSet := pflag.NewFlagSet("clearinghouse-agent", pflag.ContinueOnError)
	common.AddFlags(flagSet)
	addAgentFlags(flagSet, &flags)
	flagSet.Usage = func() { cli.PrintUsage(os.Stderr, flagSet, usage) }

	if err := cli.Parse(flagSet, os.Args[1:]); err != nil {
		if errors.Is(err, cli.ErrHelp) {
			return nil
		}
		return err
	}
	if common.ShowVersion {
		version.Print(os.Stdout, "clearinghouse-agent")
		return nil
	}
	if args := flagSet.Args(); len(args) > 0 {
		return process.Usagef("unexpected argument: %s", args[0])
	}

	cfg, err := common.Load()
	if err != nil {
		return err
	}
	applyAgentFlags(flagSet, flags, &cfg.Agent)
	if err := cfg.ValidateAgent(); err != nil {
		return &process.UsageError{Err: err}
	}

	logger, err := cli.NewLogger(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bidder := agent.New(agent.Config{
		Name:            cfg.Agent.Name,
		StartingBalance: cfg.Agent.StartingBalance,
		BankAddress:     cfg.Agent.Bank,
		DialTimeout:     cfg.Agent.DialTimeout,
		BidIncrement:    cfg.Agent.BidIncrement,
		Logger:          logger,
	})

	shell := &console{
		agent:  bidder,
		out:    os.Stdout,
		prompt: term.IsTerminal(int(os.Stdin.Fd())),
	}
	go shell.printEvents(ctx, bidder.Events())
	go func() {
		if err := shell.run(ctx, os.Stdin); err != nil {
			logger.Error("console stopped", "error", err)
		}
	}()

	return bidder.Run(ctx)
}

func addAgentFlags(flagSet *pflag.FlagSet, flags *agentFlags) {
	flagSet.StringVar(&flags.name, "name", "", "agent name")
	cli.DecimalVar(flagSet, &flags.balance, "balance", decimal.Zero, "starting balance deposited at the bank")
	flagSet.StringVar(&flags.bank, "bank", "", "bank address as host:port")
	cli.DecimalVar(flagSet, &flags.increment, "increment", decimal.Zero, "amount bidnext adds to the current bid")
}

func applyAgentFlags(flagSet *pflag.FlagSet, flags agentFlags, agentConfig *config.AgentConfig) {
	cli.Override(flagSet, "name", flags.name, &agentConfig.Name)
	cli.Override(flagSet, "balance", flags.balance, &agentConfig.StartingBalance)
	cli.Override(flagSet, "bank", flags.bank, &agentConfig.Bank)
	cli.Override(flagSet, "increment", flags.increment, &agentConfig.BidIncrement)
}
