// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// EnvVar names the environment variable Load reads.
const EnvVar = "CLEARINGHOUSE_CONFIG"

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for local runs.
	Development Environment = "development"
	// Staging is for pre-production testing.
	Staging Environment = "staging"
	// Production is for production deployments.
	Production Environment = "production"
)

// Config is the master configuration.
type Config struct {
	// Environment selects which override section applies.
	Environment Environment `yaml:"environment"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	Bank  BankConfig  `yaml:"bank"`
	House HouseConfig `yaml:"house"`
	Agent AgentConfig `yaml:"agent"`

	Development *Overrides `yaml:"development,omitempty"`
	Staging     *Overrides `yaml:"staging,omitempty"`
	Production  *Overrides `yaml:"production,omitempty"`
}

// Overrides holds the fields an environment section may change.
type Overrides struct {
	LogLevel string       `yaml:"log_level,omitempty"`
	Bank     *BankConfig  `yaml:"bank,omitempty"`
	House    *HouseConfig `yaml:"house,omitempty"`
	Agent    *AgentConfig `yaml:"agent,omitempty"`
}

// BankConfig configures the bank.
type BankConfig struct {
	// Port is the TCP port the bank listens on.
	// Default: 7000
	Port int `yaml:"port"`

	// RegistrationTimeout bounds the wait for a new connection's first
	// message. Connections are classified one at a time, so a silent
	// client delays every registration behind it by up to this long.
	// Default: 5s
	RegistrationTimeout time.Duration `yaml:"registration_timeout"`

	// QueueDepth is the dispatcher queue capacity.
	// Default: 1024
	QueueDepth int `yaml:"queue_depth"`
}

// HouseConfig configures an auction house.
type HouseConfig struct {
	// Name is the house's name in the bank directory. Required.
	Name string `yaml:"name"`

	// Port is the TCP port agents connect to. Zero picks a free port.
	Port int `yaml:"port"`

	// Bank is the bank's host:port.
	// Default: localhost:7000
	Bank string `yaml:"bank"`

	// Slots is the number of concurrent auctions.
	// Default: 3
	Slots int `yaml:"slots"`

	// Floor is the opening bid.
	// Default: 20
	Floor decimal.Decimal `yaml:"floor"`

	// Duration is how long an auction runs after its last activity.
	// Default: 30s
	Duration time.Duration `yaml:"duration"`

	// SweepInterval is how often expired auctions are finalized.
	// Default: 500ms
	SweepInterval time.Duration `yaml:"sweep_interval"`

	// Items is the catalog of item names. Empty uses the built-in
	// catalog.
	Items []string `yaml:"items"`

	// ItemsFile names a file with one item per line, appended to
	// Items.
	ItemsFile string `yaml:"items_file"`
}

// AgentConfig configures an agent.
type AgentConfig struct {
	// Name is the agent's display name. Required.
	Name string `yaml:"name"`

	// StartingBalance is deposited at registration.
	// Default: 100
	StartingBalance decimal.Decimal `yaml:"starting_balance"`

	// Bank is the bank's host:port.
	// Default: localhost:7000
	Bank string `yaml:"bank"`

	// BidIncrement is added to the current bid by "bidnext".
	// Default: 1
	BidIncrement decimal.Decimal `yaml:"bid_increment"`

	// DialTimeout bounds each connection attempt.
	// Default: 10s
	DialTimeout time.Duration `yaml:"dial_timeout"`
}

// Default returns the default configuration. Name fields are left
// empty; the binaries require them from the file or flags.
func Default() *Config {
	return &Config{
		Environment: Development,
		LogLevel:    "info",
		Bank: BankConfig{
			Port:                7000,
			RegistrationTimeout: 5 * time.Second,
			QueueDepth:          1024,
		},
		House: HouseConfig{
			Bank:          "localhost:7000",
			Slots:         3,
			Floor:         decimal.NewFromInt(20),
			Duration:      30 * time.Second,
			SweepInterval: 500 * time.Millisecond,
		},
		Agent: AgentConfig{
			StartingBalance: decimal.NewFromInt(100),
			Bank:            "localhost:7000",
			BidIncrement:    decimal.NewFromInt(1),
			DialTimeout:     10 * time.Second,
		},
	}
}

// Load loads configuration from the file named by CLEARINGHOUSE_CONFIG.
// It fails when the variable is not set.
func Load() (*Config, error) {
	configPath := os.Getenv(EnvVar)
	if configPath == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your clearinghouse.yaml config file, or use --config flag", EnvVar)
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from path over the defaults.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}
	cfg.applyEnvironmentOverrides()

	if err := cfg.loadItemsFile(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Resolve loads path when it is set, otherwise the file named by
// CLEARINGHOUSE_CONFIG when that is set, otherwise the defaults.
func Resolve(path string) (*Config, error) {
	switch {
	case path != "":
		return LoadFile(path)
	case os.Getenv(EnvVar) != "":
		return Load()
	default:
		return Default(), nil
	}
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parsing config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnvironmentOverrides() {
	var overrides *Overrides
	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
	}
	if overrides == nil {
		return
	}

	if overrides.LogLevel != "" {
		c.LogLevel = overrides.LogLevel
	}

	if bank := overrides.Bank; bank != nil {
		if bank.Port != 0 {
			c.Bank.Port = bank.Port
		}
		if bank.RegistrationTimeout != 0 {
			c.Bank.RegistrationTimeout = bank.RegistrationTimeout
		}
		if bank.QueueDepth != 0 {
			c.Bank.QueueDepth = bank.QueueDepth
		}
	}

	if house := overrides.House; house != nil {
		if house.Name != "" {
			c.House.Name = house.Name
		}
		if house.Port != 0 {
			c.House.Port = house.Port
		}
		if house.Bank != "" {
			c.House.Bank = house.Bank
		}
		if house.Slots != 0 {
			c.House.Slots = house.Slots
		}
		if !house.Floor.IsZero() {
			c.House.Floor = house.Floor
		}
		if house.Duration != 0 {
			c.House.Duration = house.Duration
		}
		if house.SweepInterval != 0 {
			c.House.SweepInterval = house.SweepInterval
		}
		if len(house.Items) != 0 {
			c.House.Items = house.Items
		}
		if house.ItemsFile != "" {
			c.House.ItemsFile = house.ItemsFile
		}
	}

	if agent := overrides.Agent; agent != nil {
		if agent.Name != "" {
			c.Agent.Name = agent.Name
		}
		if !agent.StartingBalance.IsZero() {
			c.Agent.StartingBalance = agent.StartingBalance
		}
		if agent.Bank != "" {
			c.Agent.Bank = agent.Bank
		}
		if !agent.BidIncrement.IsZero() {
			c.Agent.BidIncrement = agent.BidIncrement
		}
		if agent.DialTimeout != 0 {
			c.Agent.DialTimeout = agent.DialTimeout
		}
	}
}

// loadItemsFile appends the items listed in house.items_file. Blank
// lines and lines starting with # are skipped.
func (c *Config) loadItemsFile() error {
	if c.House.ItemsFile == "" {
		return nil
	}
	c.House.ItemsFile = expandVars(c.House.ItemsFile, map[string]string{"HOME": os.Getenv("HOME")})

	file, err := os.Open(c.House.ItemsFile)
	if err != nil {
		return fmt.Errorf("house.items_file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		c.House.Items = append(c.House.Items, line)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading %s: %w", c.House.ItemsFile, err)
	}
	return nil
}

// expandVars expands ${VAR} and ${VAR:-default} patterns.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Level parses LogLevel.
func (c *Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("log_level %q: %w", c.LogLevel, err)
	}
	return level, nil
}

// Validate checks the settings every role shares.
func (c *Config) Validate() error {
	var errs []error
	if c.Environment != Development && c.Environment != Staging && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}
	if _, err := c.Level(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ValidateBank checks the bank section.
func (c *Config) ValidateBank() error {
	var errs []error
	if err := validPort("bank.port", c.Bank.Port); err != nil {
		errs = append(errs, err)
	}
	if c.Bank.RegistrationTimeout <= 0 {
		errs = append(errs, fmt.Errorf("bank.registration_timeout must be positive"))
	}
	if c.Bank.QueueDepth <= 0 {
		errs = append(errs, fmt.Errorf("bank.queue_depth must be positive"))
	}
	return errors.Join(append([]error{c.Validate()}, errs...)...)
}

// ValidateHouse checks the house section.
func (c *Config) ValidateHouse() error {
	var errs []error
	if c.House.Name == "" {
		errs = append(errs, fmt.Errorf("house.name is required"))
	}
	if err := validPort("house.port", c.House.Port); err != nil {
		errs = append(errs, err)
	}
	if c.House.Bank == "" {
		errs = append(errs, fmt.Errorf("house.bank is required"))
	}
	if c.House.Slots <= 0 {
		errs = append(errs, fmt.Errorf("house.slots must be positive"))
	}
	if !c.House.Floor.IsPositive() {
		errs = append(errs, fmt.Errorf("house.floor must be positive"))
	}
	if c.House.Duration <= 0 {
		errs = append(errs, fmt.Errorf("house.duration must be positive"))
	}
	if c.House.SweepInterval <= 0 {
		errs = append(errs, fmt.Errorf("house.sweep_interval must be positive"))
	}
	return errors.Join(append([]error{c.Validate()}, errs...)...)
}

// ValidateAgent checks the agent section.
func (c *Config) ValidateAgent() error {
	var errs []error
	if c.Agent.Name == "" {
		errs = append(errs, fmt.Errorf("agent.name is required"))
	}
	if c.Agent.StartingBalance.IsNegative() {
		errs = append(errs, fmt.Errorf("agent.starting_balance must not be negative"))
	}
	if c.Agent.Bank == "" {
		errs = append(errs, fmt.Errorf("agent.bank is required"))
	}
	if !c.Agent.BidIncrement.IsPositive() {
		errs = append(errs, fmt.Errorf("agent.bid_increment must be positive"))
	}
	if c.Agent.DialTimeout <= 0 {
		errs = append(errs, fmt.Errorf("agent.dial_timeout must be positive"))
	}
	return errors.Join(append([]error{c.Validate()}, errs...)...)
}

func validPort(field string, port int) error {
	if port < 0 || port > 65535 {
		return fmt.Errorf("%s %d must be between 0 and 65535", field, port)
	}
	return nil
}
