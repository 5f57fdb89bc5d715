// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/bureau-foundation/clearinghouse/lib/config"
	"github.com/bureau-foundation/clearinghouse/lib/process"
)

// ErrHelp is returned by Parse after printing usage for --help.
var ErrHelp = pflag.ErrHelp

// Common holds the flags shared by every binary.
type Common struct {
	ConfigPath  string
	LogLevel    string
	ShowVersion bool
}

// AddFlags registers --config, --log-level and --version.
func (c *Common) AddFlags(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&c.ConfigPath, "config", "", "path to clearinghouse.yaml (default: $"+config.EnvVar+")")
	flagSet.StringVar(&c.LogLevel, "log-level", "", "log level: debug, info, warn or error")
	flagSet.BoolVar(&c.ShowVersion, "version", false, "print version information and exit")
}

// Parse parses args into flagSet. Flag errors become usage errors.
// Usage text goes to stderr.
func Parse(flagSet *pflag.FlagSet, args []string) error {
	flagSet.SetOutput(os.Stderr)
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return ErrHelp
		}
		return &process.UsageError{Err: err}
	}
	return nil
}

// Load resolves the configuration and applies --log-level.
func (c *Common) Load() (*config.Config, error) {
	cfg, err := config.Resolve(c.ConfigPath)
	if err != nil {
		return nil, err
	}
	if c.LogLevel != "" {
		cfg.LogLevel = c.LogLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, &process.UsageError{Err: err}
	}
	return cfg, nil
}

// Override stores the value of flag name into target when the flag was
// given on the command line.
func Override[T any](flagSet *pflag.FlagSet, name string, value T, target *T) {
	if flagSet.Changed(name) {
		*target = value
	}
}

// NewLogger creates the process logger at the configured level. A
// terminal gets human-readable text; anything else gets JSON lines.
func NewLogger(cfg *config.Config) (*slog.Logger, error) {
	level, err := cfg.Level()
	if err != nil {
		return nil, err
	}
	return newLogger(os.Stderr, term.IsTerminal(int(os.Stderr.Fd())), level), nil
}

func newLogger(w io.Writer, text bool, level slog.Level) *slog.Logger {
	options := &slog.HandlerOptions{Level: level}
	if text {
		return slog.New(slog.NewTextHandler(w, options))
	}
	return slog.New(slog.NewJSONHandler(w, options))
}

// PrintUsage writes a usage block followed by the flag defaults.
func PrintUsage(w io.Writer, flagSet *pflag.FlagSet, usage string) {
	fmt.Fprint(w, usage)
	fmt.Fprintln(w, "\nFlags:")
	flagSet.SetOutput(w)
	flagSet.PrintDefaults()
}
