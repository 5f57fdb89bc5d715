// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package auctionhouse

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bureau-foundation/clearinghouse/lib/auction"
	"github.com/bureau-foundation/clearinghouse/lib/clock"
	"github.com/bureau-foundation/clearinghouse/lib/peer"
	"github.com/bureau-foundation/clearinghouse/lib/protocol"
	"github.com/bureau-foundation/clearinghouse/lib/transport"
	"github.com/shopspring/decimal"
)

// DefaultSweepInterval is how often expired auctions are finalized.
const DefaultSweepInterval = 500 * time.Millisecond

// closeGrace bounds how long a closing house waits for the bank to
// drop its connection after AuctionHouseClosed.
const closeGrace = 5 * time.Second

// ErrBankLost is returned by Run when the bank connection fails.
var ErrBankLost = errors.New("bank connection lost")

// Config configures a Service.
type Config struct {
	// Name is the house's display name in the bank directory.
	Name string

	// BankAddress is the bank's "host:port".
	BankAddress string

	// Dialer connects to the bank. Defaults to a TCP dialer with a
	// ten second timeout.
	Dialer transport.Dialer

	// AdvertisePort is the port registered with the bank. Zero uses
	// the listener's port.
	AdvertisePort int

	// Auction parameters. Zero values use the auction package
	// defaults.
	Slots    int
	Floor    decimal.Decimal
	Duration time.Duration
	Items    []string

	SweepInterval       time.Duration
	RegistrationTimeout time.Duration
	QueueDepth          int

	Clock  clock.Clock
	Logger *slog.Logger
}

type registeredAgent struct {
	name string
	conn *peer.Conn
}

// Service is a running auction house.
type Service struct {
	name          string
	bankAddress   string
	dialer        transport.Dialer
	advertisePort int
	sweepInterval time.Duration
	clock         clock.Clock
	logger        *slog.Logger

	node   *peer.Node
	engine *auction.Engine

	// Dispatcher-owned.
	bank      *peer.Conn
	accountID string
	balance   decimal.Decimal
	agents    map[string]*registeredAgent
	closing   bool

	finished     chan struct{}
	finishedOnce sync.Once
}

// New creates an auction house. Start it with Run.
func New(config Config) *Service {
	if config.Dialer == nil {
		config.Dialer = &transport.TCPDialer{Timeout: 10 * time.Second}
	}
	if config.SweepInterval <= 0 {
		config.SweepInterval = DefaultSweepInterval
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	logger := config.Logger.With("house", config.Name)

	s := &Service{
		name:          config.Name,
		bankAddress:   config.BankAddress,
		dialer:        config.Dialer,
		advertisePort: config.AdvertisePort,
		sweepInterval: config.SweepInterval,
		clock:         config.Clock,
		logger:        logger,
		agents:        make(map[string]*registeredAgent),
		finished:      make(chan struct{}),
	}
	s.engine = auction.New(auction.Config{
		HouseName: config.Name,
		Slots:     config.Slots,
		Floor:     config.Floor,
		Duration:  config.Duration,
		Items:     auction.NewCatalog(config.Items),
		Clock:     config.Clock,
		Logger:    logger,
	})
	s.node = peer.New(peer.Config{
		Role:                "house",
		Handler:             peer.HandlerFunc(s.handle),
		Registers:           isRegistration,
		QueueDepth:          config.QueueDepth,
		RegistrationTimeout: config.RegistrationTimeout,
		Logger:              logger,
	})
	return s
}

func isRegistration(message protocol.Message) bool {
	_, ok := message.(protocol.RegisterAgent)
	return ok
}

// Run registers with the bank, accepts agents on listener, and runs
// the auctions until ctx is cancelled or a Close has drained the
// panel.
func (s *Service) Run(ctx context.Context, listener transport.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	port := s.advertisePort
	if port == 0 {
		port = listener.Port()
	}
	bank, err := s.node.Dial(ctx, s.dialer, s.bankAddress, protocol.NewAuctionHouse{
		Name:       s.name,
		ListenPort: port,
	})
	if err != nil {
		listener.Close()
		return err
	}
	s.bank = bank
	s.node.Listen(ctx, bank)
	s.logger.Info("registered with bank", "bank", s.bankAddress, "port", port)

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		s.node.Dispatch(ctx)
	}()
	go func() {
		defer wg.Done()
		s.node.Serve(ctx, listener)
	}()
	go func() {
		defer wg.Done()
		s.scheduleSweeps(ctx)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case <-bank.Done():
		runErr = ErrBankLost
		s.logger.Error("bank connection lost")
	case <-s.finished:
		s.logger.Info("all auctions finished, waiting for bank to acknowledge")
		grace := time.NewTimer(closeGrace)
		select {
		case <-bank.Done():
		case <-grace.C:
			s.logger.Warn("bank did not close the connection")
		case <-ctx.Done():
		}
		grace.Stop()
	}
	cancel()
	wg.Wait()
	s.node.Wait()
	s.engine.Stop()
	return runErr
}

// scheduleSweeps queues a sweep on the dispatcher at every tick.
func (s *Service) scheduleSweeps(ctx context.Context) {
	ticker := s.clock.NewTicker(s.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.node.Do(ctx, s.sweep); err != nil {
				return
			}
		}
	}
}

// Sweep finalizes expired auctions now and waits for it to finish.
func (s *Service) Sweep(ctx context.Context) error {
	return s.node.Run(ctx, s.sweep)
}

// Close stops opening new auctions. Run returns once the open
// auctions have ended and the bank has been told the house is gone.
func (s *Service) Close(ctx context.Context) error {
	return s.node.Run(ctx, func(context.Context) {
		if s.closing {
			return
		}
		s.closing = true
		s.engine.StopAccepting()
		s.logger.Info("closing, no new auctions")
		s.finishIfDrained()
	})
}

// Finished is closed when a Close has completed.
func (s *Service) Finished() <-chan struct{} { return s.finished }

// Auctions returns copies of the open auctions.
func (s *Service) Auctions(ctx context.Context) ([]auction.Auction, error) {
	var auctions []auction.Auction
	err := s.node.Run(ctx, func(context.Context) {
		auctions = s.engine.Snapshot()
	})
	return auctions, err
}

// Account returns the house's bank account id and last pushed
// balance.
func (s *Service) Account(ctx context.Context) (string, decimal.Decimal, error) {
	var (
		id      string
		balance decimal.Decimal
	)
	err := s.node.Run(ctx, func(context.Context) {
		id, balance = s.accountID, s.balance
	})
	return id, balance, err
}

// Agents returns the account ids of registered agents.
func (s *Service) Agents(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.node.Run(ctx, func(context.Context) {
		for id := range s.agents {
			ids = append(ids, id)
		}
	})
	return ids, err
}

func (s *Service) handle(ctx context.Context, delivery peer.Delivery) {
	switch message := delivery.Message.(type) {
	case protocol.RegisterAgent:
		if !delivery.Registration {
			delivery.From.Logger().Warn("registration on a registered connection, dropping")
			return
		}
		s.registerAgent(ctx, delivery.From, message)
	case protocol.NewBid:
		s.submitBid(delivery.From, message)
	case protocol.ConfirmHold:
		effects, changed := s.engine.ConfirmHold(message)
		s.deliver(effects)
		if changed {
			s.broadcastAuctions()
		}
	case protocol.CloseAgent:
		s.dropAgent(message.AccountID)
	case protocol.AuctionHouseMade:
		s.accountID = message.AccountID
		s.engine.SetHouseAccount(message.AccountID)
		s.logger.Info("bank account assigned", "account", message.AccountID)
	case protocol.UpdateMoney:
		s.balance = message.Balance
		s.logger.Info("balance updated", "balance", message.Balance)
	default:
		delivery.From.Logger().Warn("house ignoring message", "kind", delivery.Message.Kind())
	}
}

func (s *Service) registerAgent(ctx context.Context, conn *peer.Conn, message protocol.RegisterAgent) {
	if previous, ok := s.agents[message.AccountID]; ok {
		previous.conn.Close()
	}
	s.agents[message.AccountID] = &registeredAgent{name: message.Name, conn: conn}
	s.node.Listen(ctx, conn)
	go s.forgetOnDisconnect(ctx, message.AccountID, conn)
	s.logger.Info("agent registered", "account", message.AccountID, "name", message.Name)

	conn.Send(protocol.NewAuctions{HouseName: s.name, Auctions: s.engine.Listings()})
}

// submitBid attributes the bid to the agent registered on the
// connection it arrived on, whatever account the message claims.
func (s *Service) submitBid(conn *peer.Conn, bid protocol.NewBid) {
	accountID, agent := s.agentOn(conn)
	if agent == nil {
		conn.Logger().Warn("bid from unregistered connection", "claimed_account", bid.AccountID)
		return
	}
	if bid.AccountID != accountID {
		conn.Logger().Warn("bid claims another account", "account", accountID, "claimed_account", bid.AccountID)
	}
	effects := s.engine.SubmitBid(auction.Bidder{AccountID: accountID, Name: agent.name}, bid)
	s.deliver(effects)
}

func (s *Service) agentOn(conn *peer.Conn) (string, *registeredAgent) {
	for id, agent := range s.agents {
		if agent.conn == conn {
			return id, agent
		}
	}
	return "", nil
}

func (s *Service) dropAgent(accountID string) {
	agent, ok := s.agents[accountID]
	if !ok {
		s.logger.Warn("close for unknown agent", "account", accountID)
		return
	}
	delete(s.agents, accountID)
	agent.conn.Close()
	s.logger.Info("agent left", "account", accountID, "name", agent.name)
}

// forgetOnDisconnect removes the agent once conn closes, so an agent
// that vanishes without CloseAgent stops receiving broadcasts.
func (s *Service) forgetOnDisconnect(ctx context.Context, accountID string, conn *peer.Conn) {
	select {
	case <-conn.Done():
	case <-ctx.Done():
		return
	}
	s.node.Do(ctx, func(context.Context) {
		agent, ok := s.agents[accountID]
		if !ok || agent.conn != conn {
			return
		}
		delete(s.agents, accountID)
		s.logger.Info("agent disconnected", "account", accountID, "name", agent.name)
	})
}

func (s *Service) sweep(context.Context) {
	effects, changed := s.engine.Sweep()
	s.deliver(effects)
	if changed {
		s.broadcastAuctions()
	}
	if s.closing {
		s.finishIfDrained()
	}
}

func (s *Service) finishIfDrained() {
	if !s.engine.Drained() {
		return
	}
	s.finishedOnce.Do(func() {
		if err := s.bank.Send(protocol.AuctionHouseClosed{AccountID: s.accountID}); err != nil {
			s.logger.Warn("could not tell bank about close", "error", err)
		}
		for id, agent := range s.agents {
			agent.conn.Close()
			delete(s.agents, id)
		}
		close(s.finished)
	})
}

func (s *Service) deliver(effects []auction.Effect) {
	for _, effect := range effects {
		switch effect.To {
		case auction.ToBank:
			s.bank.Send(effect.Message)
		case auction.ToAgent:
			agent, ok := s.agents[effect.AccountID]
			if !ok {
				s.logger.Info("agent gone, dropping message",
					"account", effect.AccountID,
					"kind", effect.Message.Kind(),
				)
				continue
			}
			agent.conn.Send(effect.Message)
		default:
			panic(fmt.Sprintf("auctionhouse: unknown effect target %d", effect.To))
		}
	}
}

func (s *Service) broadcastAuctions() {
	update := protocol.NewAuctions{HouseName: s.name, Auctions: s.engine.Listings()}
	for _, agent := range s.agents {
		if err := agent.conn.Send(update); err != nil && !errors.Is(err, peer.ErrStopped) {
			s.logger.Debug("snapshot not delivered", "error", err)
		}
	}
}
