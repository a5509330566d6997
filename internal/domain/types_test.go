package domain

import (
	"testing"
	"time"
)

func TestCommandValidate(t *testing.T) {
	base := TradeCommand{
		ID:        "c1",
		Symbol:    "EURUSD",
		Action:    ActionBuy,
		OrderType: OrderTypeMarket,
		Volume:    0.1,
	}

	tests := []struct {
		name    string
		mutate  func(*TradeCommand)
		wantErr bool
	}{
		{"valid market buy", func(c *TradeCommand) {}, false},
		{"valid limit with price", func(c *TradeCommand) {
			c.OrderType = OrderTypeLimit
			c.Price = 1.1000
		}, false},
		{"valid stop sell with price", func(c *TradeCommand) {
			c.Action = ActionSell
			c.OrderType = OrderTypeStop
			c.Price = 1.0900
		}, false},
		{"missing symbol", func(c *TradeCommand) { c.Symbol = "" }, true},
		{"unknown action", func(c *TradeCommand) { c.Action = "short" }, true},
		{"unknown order type", func(c *TradeCommand) { c.OrderType = "trailing" }, true},
		{"limit without price", func(c *TradeCommand) { c.OrderType = OrderTypeLimit }, true},
		{"stop without price", func(c *TradeCommand) { c.OrderType = OrderTypeStop }, true},
		{"zero volume", func(c *TradeCommand) { c.Volume = 0 }, true},
		{"negative volume", func(c *TradeCommand) { c.Volume = -0.5 }, true},
		{"negative tp pips", func(c *TradeCommand) { c.TakeProfitPips = -1 }, true},
		{"negative sl pips", func(c *TradeCommand) { c.StopLossPips = -10 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := base
			tt.mutate(&cmd)
			err := cmd.Validate()
			if tt.wantErr && err == nil {
				t.Errorf("Validate() = nil, want error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Validate() = %v, want nil", err)
			}
		})
	}
}

func TestCommandTerminal(t *testing.T) {
	cmd := TradeCommand{Status: StatusPending}
	if cmd.Terminal() {
		t.Error("pending command reported terminal")
	}

	cmd.Status = StatusExecuted
	cmd.ExecutedAt = time.Now()
	if !cmd.Terminal() {
		t.Error("executed command not reported terminal")
	}

	cmd.Status = StatusFailed
	if !cmd.Terminal() {
		t.Error("failed command not reported terminal")
	}
}

func TestEnumValues(t *testing.T) {
	// The string values are the wire contract shared with external writers;
	// they must match what the dashboard inserts.
	if ActionBuy != "buy" || ActionSell != "sell" {
		t.Error("TradeAction constants have unexpected values")
	}
	if OrderTypeMarket != "market" || OrderTypeLimit != "limit" || OrderTypeStop != "stop" {
		t.Error("OrderType constants have unexpected values")
	}
	if StatusPending != "pending" || StatusExecuted != "executed" || StatusFailed != "failed" {
		t.Error("CommandStatus constants have unexpected values")
	}
}
