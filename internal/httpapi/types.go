package httpapi

import "fxpilot/internal/domain"

// TradeRequest is the body of POST /api/trade. Price is required for limit
// and stop orders; TakeProfit and StopLoss are pip distances.
type TradeRequest struct {
	Symbol       string  `json:"symbol"`
	Action       string  `json:"action"`
	OrderType    string  `json:"order_type"`
	Volume       float64 `json:"volume"`
	Price        float64 `json:"price,omitempty"`
	TakeProfit   int     `json:"take_profit,omitempty"`
	StopLoss     int     `json:"stop_loss,omitempty"`
	TrailingStop bool    `json:"trailing_stop,omitempty"`
}

// TradeResponse acknowledges an accepted trade command.
type TradeResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// CommandsResponse lists recent trade commands, newest first.
type CommandsResponse struct {
	Commands []domain.TradeCommand `json:"commands"`
}

// HealthResponse reports service and store health.
type HealthResponse struct {
	Status string `json:"status"`
	Store  string `json:"store"`
}
