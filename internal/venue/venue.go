// Package venue defines the Terminal interface and provides implementations
// for querying account state and submitting orders against different trading
// terminals.
package venue

import (
	"context"
	"fmt"
	"time"

	"fxpilot/internal/domain"
)

// Tick is a venue-reported bid/ask price pair for a symbol.
type Tick struct {
	Symbol string    `json:"symbol"`
	Bid    float64   `json:"bid"`
	Ask    float64   `json:"ask"`
	Time   time.Time `json:"time"`
}

// OrderCode identifies the venue order type as the cross product of
// execution style and direction. No other combination is valid.
type OrderCode string

const (
	MarketBuy  OrderCode = "market-buy"
	MarketSell OrderCode = "market-sell"
	LimitBuy   OrderCode = "limit-buy"
	LimitSell  OrderCode = "limit-sell"
	StopBuy    OrderCode = "stop-buy"
	StopSell   OrderCode = "stop-sell"
)

// Pending reports whether the code describes a pending (limit or stop)
// order rather than an immediate market deal.
func (c OrderCode) Pending() bool {
	return c != MarketBuy && c != MarketSell
}

// OrderParams are the fully resolved venue order parameters produced by the
// order translator. StopLoss and TakeProfit of zero mean "none".
type OrderParams struct {
	Symbol       string
	Code         OrderCode
	Volume       float64
	Price        float64
	StopLoss     float64
	TakeProfit   float64
	TrailingStop bool
	Comment      string
}

// OrderResult is the venue's acknowledgement of an accepted order.
type OrderResult struct {
	OrderID string
}

// Terminal abstracts the trading terminal connection: account and position
// queries, tick queries, and order submission. Implementations own their
// venue's error semantics and report failures as QueryError or SubmitError.
type Terminal interface {
	// Name returns the terminal identifier (e.g. "mt5", "alpaca", "simulator").
	Name() string

	// Account returns the venue-reported account state.
	Account(ctx context.Context) (*domain.AccountInfo, error)

	// Positions returns all currently open positions.
	Positions(ctx context.Context) ([]domain.Position, error)

	// Tick returns the current bid/ask for a symbol.
	Tick(ctx context.Context, symbol string) (*Tick, error)

	// SubmitOrder sends an order to the venue for execution.
	SubmitOrder(ctx context.Context, params OrderParams) (*OrderResult, error)

	// Close releases the terminal connection.
	Close() error
}

// ---------------------------------------------------------------------------
// Error taxonomy
// ---------------------------------------------------------------------------

// QueryError indicates an account, position, or tick query failed. The
// engine skips the affected cycle step and keeps running.
type QueryError struct {
	Op  string // "account", "positions", "tick"
	Err error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("venue %s query: %v", e.Op, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

// SubmitError indicates the venue rejected an order or the submission
// failed in flight. Reason is the venue's reported reason verbatim; it is
// recorded on the failed command.
type SubmitError struct {
	Reason string
}

func (e *SubmitError) Error() string { return e.Reason }
