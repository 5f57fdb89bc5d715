// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ledger

import (
	"cmp"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/shopspring/decimal"
)

var (
	// ErrAccountNotFound is returned for an account id the ledger does
	// not hold, including ids of accounts that have been closed.
	ErrAccountNotFound = errors.New("account not found")

	// ErrWrongRole is returned when an agent-only operation names a
	// house account or the reverse.
	ErrWrongRole = errors.New("account has the wrong role")

	// ErrInvalidAmount is returned for a hold or settlement amount
	// that is not positive.
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrSettlementUncovered is returned when a settlement would move
	// more than the agent's hold reserves.
	ErrSettlementUncovered = errors.New("settlement exceeds hold")
)

// idStride is the gap between consecutively assigned account numbers.
const idStride = 4

// Role distinguishes agent accounts from auction house accounts.
type Role int

const (
	RoleAgent Role = iota
	RoleHouse
)

func (r Role) String() string {
	switch r {
	case RoleAgent:
		return "agent"
	case RoleHouse:
		return "house"
	default:
		return fmt.Sprintf("Role(%d)", int(r))
	}
}

func (r Role) prefix() string {
	if r == RoleHouse {
		return "AH"
	}
	return "CL"
}

// Address is where agents reach an auction house.
type Address struct {
	Host string
	Port int
}

// Account is a point-in-time copy of one account.
type Account struct {
	ID      string
	Name    string
	Role    Role
	Balance decimal.Decimal

	// Holds maps hold key to reserved amount. Always empty for houses.
	Holds map[string]decimal.Decimal

	// Address is set for houses only.
	Address Address
}

// TotalHolds sums the account's holds.
func (a Account) TotalHolds() decimal.Decimal {
	return sumHolds(a.Holds, "")
}

// Available is the balance not reserved by any hold.
func (a Account) Available() decimal.Decimal {
	return a.Balance.Sub(a.TotalHolds())
}

type account struct {
	id      string
	name    string
	role    Role
	balance decimal.Decimal
	holds   map[string]decimal.Decimal
	address Address
}

func (a *account) snapshot() Account {
	return Account{
		ID:      a.id,
		Name:    a.name,
		Role:    a.role,
		Balance: a.balance,
		Holds:   maps.Clone(a.holds),
		Address: a.address,
	}
}

// Ledger is the set of open accounts.
type Ledger struct {
	accounts map[string]*account
	counter  int
}

// New returns an empty ledger.
func New() *Ledger {
	return &Ledger{accounts: make(map[string]*account)}
}

func (l *Ledger) open(role Role, name string, balance decimal.Decimal, address Address) string {
	l.counter += idStride
	id := fmt.Sprintf("%s%04d", role.prefix(), l.counter)
	l.accounts[id] = &account{
		id:      id,
		name:    name,
		role:    role,
		balance: balance,
		holds:   make(map[string]decimal.Decimal),
		address: address,
	}
	return id
}

// OpenAgent creates an agent account and returns its id.
func (l *Ledger) OpenAgent(name string, startingBalance decimal.Decimal) string {
	return l.open(RoleAgent, name, startingBalance, Address{})
}

// OpenHouse creates a house account with a zero balance and returns
// its id.
func (l *Ledger) OpenHouse(name string, address Address) string {
	return l.open(RoleHouse, name, decimal.Zero, address)
}

func (l *Ledger) lookup(id string, role Role) (*account, error) {
	acct, ok := l.accounts[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, ErrAccountNotFound)
	}
	if acct.role != role {
		return nil, fmt.Errorf("%s is a %s account, want %s: %w", id, acct.role, role, ErrWrongRole)
	}
	return acct, nil
}

// PlaceHold reserves amount from an agent's balance under key,
// replacing any hold already under key. It reports false when the
// other holds plus amount would exceed the balance; the prior hold
// under key, if any, is then left as it was.
func (l *Ledger) PlaceHold(accountID, key string, amount decimal.Decimal) (bool, error) {
	acct, err := l.lookup(accountID, RoleAgent)
	if err != nil {
		return false, err
	}
	if !amount.IsPositive() {
		return false, fmt.Errorf("hold %s of %s: %w", key, amount, ErrInvalidAmount)
	}
	if sumHolds(acct.holds, key).Add(amount).GreaterThan(acct.balance) {
		return false, nil
	}
	acct.holds[key] = amount
	return true, nil
}

// ReleaseHold removes the hold under key without moving funds and
// reports whether a hold was removed. Releasing a missing hold is a
// no-op. A non-zero amount that differs from the live hold means the
// hold was replaced after the release was issued; the live hold is
// kept.
func (l *Ledger) ReleaseHold(accountID, key string, amount decimal.Decimal) (bool, error) {
	acct, err := l.lookup(accountID, RoleAgent)
	if err != nil {
		return false, err
	}
	held, ok := acct.holds[key]
	if !ok {
		return false, nil
	}
	if !amount.IsZero() && !amount.Equal(held) {
		return false, nil
	}
	delete(acct.holds, key)
	return true, nil
}

// Settle converts the agent's hold under key into a transfer of amount
// to the house. The hold is removed. An amount larger than the hold is
// refused with ErrSettlementUncovered and nothing changes.
func (l *Ledger) Settle(houseID, agentID, key string, amount decimal.Decimal) error {
	house, err := l.lookup(houseID, RoleHouse)
	if err != nil {
		return err
	}
	agent, err := l.lookup(agentID, RoleAgent)
	if err != nil {
		return err
	}
	if !amount.IsPositive() {
		return fmt.Errorf("settlement %s of %s: %w", key, amount, ErrInvalidAmount)
	}
	held := agent.holds[key]
	if amount.GreaterThan(held) {
		return fmt.Errorf("settlement %s of %s against hold of %s: %w", key, amount, held, ErrSettlementUncovered)
	}
	delete(agent.holds, key)
	agent.balance = agent.balance.Sub(amount)
	house.balance = house.balance.Add(amount)
	return nil
}

// Close removes an account and returns its final state.
func (l *Ledger) Close(id string) (Account, error) {
	acct, ok := l.accounts[id]
	if !ok {
		return Account{}, fmt.Errorf("%s: %w", id, ErrAccountNotFound)
	}
	delete(l.accounts, id)
	return acct.snapshot(), nil
}

// Account returns a copy of one account.
func (l *Ledger) Account(id string) (Account, bool) {
	acct, ok := l.accounts[id]
	if !ok {
		return Account{}, false
	}
	return acct.snapshot(), true
}

// Directory maps each open house's name to its address. When two open
// houses share a name the one opened later wins.
func (l *Ledger) Directory() map[string]Address {
	directory := make(map[string]Address)
	for _, id := range l.IDs(RoleHouse) {
		acct := l.accounts[id]
		directory[acct.name] = acct.address
	}
	return directory
}

// IDs returns the ids of every open account with the given role, in
// the order they were opened.
func (l *Ledger) IDs(role Role) []string {
	var ids []string
	for id, acct := range l.accounts {
		if acct.role == role {
			ids = append(ids, id)
		}
	}
	// Ids past 9999 grow a digit, so compare length first.
	slices.SortFunc(ids, func(a, b string) int {
		return cmp.Or(cmp.Compare(len(a), len(b)), cmp.Compare(a, b))
	})
	return ids
}

// sumHolds adds every hold except the one under skip.
func sumHolds(holds map[string]decimal.Decimal, skip string) decimal.Decimal {
	total := decimal.Zero
	for key, amount := range holds {
		if key != skip {
			total = total.Add(amount)
		}
	}
	return total
}
