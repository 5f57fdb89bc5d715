// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bank

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/bureau-foundation/clearinghouse/lib/ledger"
	"github.com/bureau-foundation/clearinghouse/lib/peer"
	"github.com/bureau-foundation/clearinghouse/lib/protocol"
	"github.com/bureau-foundation/clearinghouse/lib/transport"
)

// Config configures a Service.
type Config struct {
	// RegistrationTimeout bounds how long a new connection may take to
	// send its registration. Zero uses the peer default.
	RegistrationTimeout time.Duration

	// QueueDepth is the dispatcher queue capacity. Zero uses the peer
	// default.
	QueueDepth int

	Logger *slog.Logger
}

// Service is a running bank.
type Service struct {
	node   *peer.Node
	ledger *ledger.Ledger
	logger *slog.Logger

	// conns maps account id to the connection the account registered
	// on. Dispatcher-owned.
	conns map[string]*peer.Conn
}

// New creates a bank service. Start it with Serve.
func New(config Config) *Service {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	s := &Service{
		ledger: ledger.New(),
		logger: config.Logger,
		conns:  make(map[string]*peer.Conn),
	}
	s.node = peer.New(peer.Config{
		Role:                "bank",
		Handler:             peer.HandlerFunc(s.handle),
		Registers:           isRegistration,
		QueueDepth:          config.QueueDepth,
		RegistrationTimeout: config.RegistrationTimeout,
		Logger:              config.Logger,
	})
	return s
}

func isRegistration(message protocol.Message) bool {
	switch message.(type) {
	case protocol.NewAgent, protocol.NewAuctionHouse:
		return true
	default:
		return false
	}
}

// Serve accepts connections on listener and runs the dispatcher until
// ctx is cancelled. On return every account connection is closed.
func (s *Service) Serve(ctx context.Context, listener transport.Listener) error {
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.node.Dispatch(ctx)
	}()

	err := s.node.Serve(ctx, listener)
	wg.Wait()
	s.node.Wait()
	s.logger.Info("bank stopped")
	return err
}

// Account returns a copy of one account, read on the dispatcher.
func (s *Service) Account(ctx context.Context, id string) (ledger.Account, bool, error) {
	var (
		account ledger.Account
		found   bool
	)
	err := s.node.Run(ctx, func(context.Context) {
		account, found = s.ledger.Account(id)
	})
	return account, found, err
}

// Accounts returns copies of every open account, agents first, each
// group in opening order.
func (s *Service) Accounts(ctx context.Context) ([]ledger.Account, error) {
	var accounts []ledger.Account
	err := s.node.Run(ctx, func(context.Context) {
		for _, role := range []ledger.Role{ledger.RoleAgent, ledger.RoleHouse} {
			for _, id := range s.ledger.IDs(role) {
				account, _ := s.ledger.Account(id)
				accounts = append(accounts, account)
			}
		}
	})
	return accounts, err
}

func (s *Service) handle(ctx context.Context, delivery peer.Delivery) {
	if isRegistration(delivery.Message) && !delivery.Registration {
		delivery.From.Logger().Warn("registration on a registered connection, dropping", "kind", delivery.Message.Kind())
		return
	}
	switch message := delivery.Message.(type) {
	case protocol.NewAgent:
		s.openAgent(ctx, delivery.From, message)
	case protocol.NewAuctionHouse:
		s.openHouse(ctx, delivery.From, message)
	case protocol.NewHold:
		s.placeHold(delivery.From, message)
	case protocol.EndHold:
		s.releaseHold(message)
	case protocol.AuctionOver:
		s.settle(ctx, message)
	case protocol.CloseAgent:
		s.closeAccount(message.AccountID, ledger.RoleAgent)
	case protocol.AuctionHouseClosed:
		s.closeAccount(message.AccountID, ledger.RoleHouse)
	default:
		delivery.From.Logger().Warn("bank ignoring message", "kind", delivery.Message.Kind())
	}
}

func (s *Service) openAgent(ctx context.Context, conn *peer.Conn, message protocol.NewAgent) {
	id := s.ledger.OpenAgent(message.Name, message.StartingBalance)
	s.conns[id] = conn
	s.node.Listen(ctx, conn)
	s.logger.Info("agent opened",
		"account", id,
		"name", message.Name,
		"balance", message.StartingBalance,
	)

	if conn.Send(protocol.AgentMade{AccountID: id}) != nil {
		return
	}
	s.pushMoney(id)
	conn.Send(s.directory())
}

func (s *Service) openHouse(ctx context.Context, conn *peer.Conn, message protocol.NewAuctionHouse) {
	address := ledger.Address{Host: conn.RemoteHost(), Port: message.ListenPort}
	id := s.ledger.OpenHouse(message.Name, address)
	s.conns[id] = conn
	s.node.Listen(ctx, conn)
	s.logger.Info("auction house opened",
		"account", id,
		"name", message.Name,
		"host", address.Host,
		"port", address.Port,
	)

	if conn.Send(protocol.AuctionHouseMade{AccountID: id}) == nil {
		s.pushMoney(id)
	}
	s.broadcastDirectory()
}

// placeHold always answers the requesting house, so its pending bid
// is resolved even when the account is unknown.
func (s *Service) placeHold(from *peer.Conn, message protocol.NewHold) {
	accepted, err := s.ledger.PlaceHold(message.AccountID, message.HoldKey, message.Amount)
	if err != nil {
		s.logger.Warn("hold refused",
			"account", message.AccountID,
			"hold_key", message.HoldKey,
			"amount", message.Amount,
			"error", err,
		)
	} else {
		s.logger.Debug("hold requested",
			"account", message.AccountID,
			"hold_key", message.HoldKey,
			"amount", message.Amount,
			"accepted", accepted,
		)
		s.pushMoney(message.AccountID)
	}

	from.Send(protocol.ConfirmHold{
		Success:   accepted,
		HoldKey:   message.HoldKey,
		AccountID: message.AccountID,
		AuctionID: message.AuctionID,
	})
}

func (s *Service) releaseHold(message protocol.EndHold) {
	released, err := s.ledger.ReleaseHold(message.AccountID, message.HoldKey, message.Amount)
	if err != nil {
		s.logger.Warn("hold release failed",
			"account", message.AccountID,
			"hold_key", message.HoldKey,
			"error", err,
		)
		return
	}
	s.logger.Debug("hold release",
		"account", message.AccountID,
		"hold_key", message.HoldKey,
		"amount", message.Amount,
		"released", released,
	)
	s.pushMoney(message.AccountID)
}

func (s *Service) settle(ctx context.Context, message protocol.AuctionOver) {
	err := s.ledger.Settle(message.HouseAccountID, message.AgentAccountID, message.HoldKey, message.Amount)
	if err != nil {
		level := slog.LevelWarn
		if errors.Is(err, ledger.ErrSettlementUncovered) {
			level = slog.LevelError
		}
		s.logger.Log(ctx, level, "settlement refused",
			"house", message.HouseAccountID,
			"agent", message.AgentAccountID,
			"hold_key", message.HoldKey,
			"amount", message.Amount,
			"error", err,
		)
		return
	}
	s.logger.Info("auction settled",
		"house", message.HouseAccountID,
		"agent", message.AgentAccountID,
		"amount", message.Amount,
	)
	s.pushMoney(message.AgentAccountID)
	s.pushMoney(message.HouseAccountID)
}

func (s *Service) closeAccount(id string, role ledger.Role) {
	account, ok := s.ledger.Account(id)
	if !ok || account.Role != role {
		s.logger.Warn("close for unknown account", "account", id, "role", role)
		return
	}
	if _, err := s.ledger.Close(id); err != nil {
		s.logger.Warn("close failed", "account", id, "error", err)
		return
	}
	if conn, ok := s.conns[id]; ok {
		conn.Close()
		delete(s.conns, id)
	}
	s.logger.Info("account closed",
		"account", id,
		"name", account.Name,
		"role", role,
		"balance", account.Balance,
	)
	if role == ledger.RoleHouse {
		s.broadcastDirectory()
	}
}

// pushMoney sends the account's balance and total holds to the
// account's own connection.
func (s *Service) pushMoney(id string) {
	account, ok := s.ledger.Account(id)
	if !ok {
		return
	}
	conn, ok := s.conns[id]
	if !ok {
		return
	}
	conn.Send(protocol.UpdateMoney{
		Balance:    account.Balance,
		TotalHolds: account.TotalHolds(),
	})
}

func (s *Service) directory() protocol.AuctionList {
	houses := make(map[string]protocol.Address)
	for name, address := range s.ledger.Directory() {
		houses[name] = protocol.Address{Host: address.Host, Port: address.Port}
	}
	return protocol.AuctionList{Houses: houses}
}

func (s *Service) broadcastDirectory() {
	list := s.directory()
	for _, id := range s.ledger.IDs(ledger.RoleAgent) {
		if conn, ok := s.conns[id]; ok {
			conn.Send(list)
		}
	}
}
