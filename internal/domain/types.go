// Package domain defines the core types shared across the fxpilot system:
// account and position state reported by the venue, the published snapshot,
// and trade commands queued by external writers.
package domain

import (
	"fmt"
	"time"
)

// ---------------------------------------------------------------------------
// Enums
// ---------------------------------------------------------------------------

// TradeAction is the direction of a trade command.
type TradeAction string

const (
	ActionBuy  TradeAction = "buy"
	ActionSell TradeAction = "sell"
)

// OrderType is the execution style of a trade command.
type OrderType string

const (
	OrderTypeMarket OrderType = "market"
	OrderTypeLimit  OrderType = "limit"
	OrderTypeStop   OrderType = "stop"
)

// CommandStatus is the lifecycle state of a trade command. A command starts
// as pending and transitions exactly once to executed or failed; terminal
// states are immutable.
type CommandStatus string

const (
	StatusPending  CommandStatus = "pending"
	StatusExecuted CommandStatus = "executed"
	StatusFailed   CommandStatus = "failed"
)

// PositionSide is the direction of an open venue position.
type PositionSide string

const (
	PositionSideLong  PositionSide = "long"
	PositionSideShort PositionSide = "short"
)

// ---------------------------------------------------------------------------
// Venue-reported state
// ---------------------------------------------------------------------------

// AccountInfo is the venue-reported account state. Extra carries venue
// fields that have no named column here, so payload changes on the venue
// side survive a round trip through the store.
type AccountInfo struct {
	Login      int64          `json:"login,omitempty"`
	Currency   string         `json:"currency,omitempty"`
	Balance    float64        `json:"balance"`
	Equity     float64        `json:"equity"`
	Margin     float64        `json:"margin"`
	MarginFree float64        `json:"margin_free"`
	Profit     float64        `json:"profit"`
	Leverage   int64          `json:"leverage,omitempty"`
	Extra      map[string]any `json:"extra,omitempty"`
}

// Position is a venue-reported open position. The engine passes positions
// through to the snapshot without mutating them.
type Position struct {
	Ticket       int64          `json:"ticket,omitempty"`
	Symbol       string         `json:"symbol"`
	Side         PositionSide   `json:"side"`
	Volume       float64        `json:"volume"`
	OpenPrice    float64        `json:"open_price"`
	CurrentPrice float64        `json:"current_price"`
	Profit       float64        `json:"profit"`
	OpenedAt     time.Time      `json:"opened_at,omitempty"`
	Extra        map[string]any `json:"extra,omitempty"`
}

// ---------------------------------------------------------------------------
// Snapshot
// ---------------------------------------------------------------------------

// Snapshot is the single current-state document published each engine cycle.
// Exactly one snapshot exists under the well-known store key; every publish
// fully replaces it.
type Snapshot struct {
	Account    AccountInfo `json:"account"`
	Positions  []Position  `json:"positions"`
	Signal     string      `json:"signal,omitempty"`
	Confidence int         `json:"confidence"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

// Signal is a trading suggestion from an external signal source.
// Confidence is a percentage in [0, 100].
type Signal struct {
	Label      string `json:"label"`
	Confidence int    `json:"confidence"`
}

// ---------------------------------------------------------------------------
// Trade commands
// ---------------------------------------------------------------------------

// TradeCommand is a queued trade intent written by an external producer
// (dashboard or API) and drained by the engine. Price is required for limit
// and stop orders and ignored for market orders. TakeProfitPips and
// StopLossPips are distances in pips from the reference price; zero means
// no TP/SL.
type TradeCommand struct {
	ID             string        `json:"id"`
	Symbol         string        `json:"symbol"`
	Action         TradeAction   `json:"action"`
	OrderType      OrderType     `json:"order_type"`
	Volume         float64       `json:"volume"`
	Price          float64       `json:"price,omitempty"`
	TakeProfitPips int           `json:"take_profit,omitempty"`
	StopLossPips   int           `json:"stop_loss,omitempty"`
	TrailingStop   bool          `json:"trailing_stop,omitempty"`
	Status         CommandStatus `json:"status"`
	SubmittedAt    time.Time     `json:"submitted_at"`
	ExecutedAt     time.Time     `json:"executed_at,omitzero"`
	Error          string        `json:"error,omitempty"`
}

// Terminal reports whether the command has reached a terminal status.
func (c *TradeCommand) Terminal() bool {
	return c.Status == StatusExecuted || c.Status == StatusFailed
}

// Validate checks the command's fields for internal consistency. Limit and
// stop orders require an explicit price; a missing price is a validation
// error, never a silent fallback to the current tick.
func (c *TradeCommand) Validate() error {
	if c.Symbol == "" {
		return fmt.Errorf("missing symbol")
	}
	switch c.Action {
	case ActionBuy, ActionSell:
	default:
		return fmt.Errorf("unknown action %q", c.Action)
	}
	switch c.OrderType {
	case OrderTypeMarket:
	case OrderTypeLimit, OrderTypeStop:
		if c.Price <= 0 {
			return fmt.Errorf("%s order requires a price", c.OrderType)
		}
	default:
		return fmt.Errorf("unknown order type %q", c.OrderType)
	}
	if c.Volume <= 0 {
		return fmt.Errorf("volume must be positive, got %v", c.Volume)
	}
	if c.TakeProfitPips < 0 {
		return fmt.Errorf("take profit pips must not be negative, got %d", c.TakeProfitPips)
	}
	if c.StopLossPips < 0 {
		return fmt.Errorf("stop loss pips must not be negative, got %d", c.StopLossPips)
	}
	return nil
}
