package venue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"fxpilot/internal/domain"
)

// Compile-time interface check.
var _ Terminal = (*Simulator)(nil)

// Simulator implements Terminal in memory for paper trading and tests. It
// tracks a simulated account, seeded ticks, and every submitted order.
// Failure injection hooks mimic a broken venue connection.
type Simulator struct {
	mu          sync.Mutex
	account     domain.AccountInfo
	positions   []domain.Position
	ticks       map[string]Tick
	orders      []OrderParams
	nextOrderID int64

	accountErr error
	tickErr    error
	submitErr  error
}

// NewSimulator creates a Simulator with the given starting balance and no
// open positions.
func NewSimulator(balance float64) *Simulator {
	return &Simulator{
		account: domain.AccountInfo{
			Balance:    balance,
			Equity:     balance,
			MarginFree: balance,
			Currency:   "USD",
		},
		ticks:       make(map[string]Tick),
		nextOrderID: 1,
	}
}

// Name returns "simulator".
func (s *Simulator) Name() string { return "simulator" }

// Close is a no-op.
func (s *Simulator) Close() error { return nil }

// SetTick seeds the current bid/ask for a symbol.
func (s *Simulator) SetTick(symbol string, bid, ask float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ticks[symbol] = Tick{Symbol: symbol, Bid: bid, Ask: ask, Time: time.Now().UTC()}
}

// SetPositions replaces the simulated open positions.
func (s *Simulator) SetPositions(positions []domain.Position) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.positions = positions
}

// FailAccount makes subsequent Account calls fail with err; nil restores
// normal behaviour.
func (s *Simulator) FailAccount(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accountErr = err
}

// FailTick makes subsequent Tick calls fail with err; nil restores normal
// behaviour.
func (s *Simulator) FailTick(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tickErr = err
}

// FailSubmit makes subsequent SubmitOrder calls fail with err; nil restores
// normal behaviour.
func (s *Simulator) FailSubmit(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submitErr = err
}

// Orders returns a copy of all orders submitted so far.
func (s *Simulator) Orders() []OrderParams {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]OrderParams, len(s.orders))
	copy(out, s.orders)
	return out
}

// Account returns the simulated account state.
func (s *Simulator) Account(_ context.Context) (*domain.AccountInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.accountErr != nil {
		return nil, &QueryError{Op: "account", Err: s.accountErr}
	}
	acct := s.account
	return &acct, nil
}

// Positions returns a copy of the simulated open positions.
func (s *Simulator) Positions(_ context.Context) ([]domain.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.accountErr != nil {
		return nil, &QueryError{Op: "positions", Err: s.accountErr}
	}
	out := make([]domain.Position, len(s.positions))
	copy(out, s.positions)
	return out, nil
}

// Tick returns the seeded tick for a symbol, or a QueryError if none is set.
func (s *Simulator) Tick(_ context.Context, symbol string) (*Tick, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tickErr != nil {
		return nil, &QueryError{Op: "tick", Err: s.tickErr}
	}
	tick, ok := s.ticks[symbol]
	if !ok {
		return nil, &QueryError{Op: "tick", Err: fmt.Errorf("no tick data for %s", symbol)}
	}
	return &tick, nil
}

// SubmitOrder records the order and, for market orders, opens a simulated
// position at the order price.
func (s *Simulator) SubmitOrder(_ context.Context, params OrderParams) (*OrderResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.submitErr != nil {
		if serr, ok := s.submitErr.(*SubmitError); ok {
			return nil, serr
		}
		return nil, &SubmitError{Reason: s.submitErr.Error()}
	}

	s.orders = append(s.orders, params)
	id := s.nextOrderID
	s.nextOrderID++

	if !params.Code.Pending() {
		side := domain.PositionSideLong
		if params.Code == MarketSell {
			side = domain.PositionSideShort
		}
		s.positions = append(s.positions, domain.Position{
			Ticket:       id,
			Symbol:       params.Symbol,
			Side:         side,
			Volume:       params.Volume,
			OpenPrice:    params.Price,
			CurrentPrice: params.Price,
			OpenedAt:     time.Now().UTC(),
		})
	}

	return &OrderResult{OrderID: fmt.Sprintf("%d", id)}, nil
}
