package venue

import (
	"context"
	"fmt"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/shopspring/decimal"

	"fxpilot/internal/domain"
)

// Compile-time interface check.
var _ Terminal = (*AlpacaTerminal)(nil)

// AlpacaTerminal implements Terminal against the Alpaca brokerage API. It
// lets the engine run against an equities venue instead of an MT5 gateway;
// pip sizes are then configured per symbol in dollars.
type AlpacaTerminal struct {
	trading *alpaca.Client
	data    *marketdata.Client
}

// NewAlpacaTerminal creates an AlpacaTerminal with the given credentials.
// baseURL selects paper or live trading; dataURL overrides the market data
// endpoint when non-empty.
func NewAlpacaTerminal(apiKey, apiSecret, baseURL, dataURL string) *AlpacaTerminal {
	tradingOpts := alpaca.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
	}
	if baseURL != "" {
		tradingOpts.BaseURL = baseURL
	}

	dataOpts := marketdata.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
	}
	if dataURL != "" {
		dataOpts.BaseURL = dataURL
	}

	return &AlpacaTerminal{
		trading: alpaca.NewClient(tradingOpts),
		data:    marketdata.NewClient(dataOpts),
	}
}

// Name returns "alpaca".
func (t *AlpacaTerminal) Name() string { return "alpaca" }

// Close is a no-op; the SDK clients hold no long-lived connection.
func (t *AlpacaTerminal) Close() error { return nil }

// Account maps the Alpaca account to the venue-neutral AccountInfo. Cash
// plays the balance role and buying power the free margin role.
func (t *AlpacaTerminal) Account(_ context.Context) (*domain.AccountInfo, error) {
	acct, err := t.trading.GetAccount()
	if err != nil {
		return nil, &QueryError{Op: "account", Err: err}
	}

	return &domain.AccountInfo{
		Currency:   acct.Currency,
		Balance:    acct.Cash.InexactFloat64(),
		Equity:     acct.Equity.InexactFloat64(),
		Margin:     acct.InitialMargin.InexactFloat64(),
		MarginFree: acct.BuyingPower.InexactFloat64(),
		Profit:     acct.Equity.Sub(acct.LastEquity).InexactFloat64(),
		Extra: map[string]any{
			"account_number": acct.AccountNumber,
			"status":         string(acct.Status),
		},
	}, nil
}

// Positions returns all open Alpaca positions.
func (t *AlpacaTerminal) Positions(_ context.Context) ([]domain.Position, error) {
	raw, err := t.trading.GetPositions()
	if err != nil {
		return nil, &QueryError{Op: "positions", Err: err}
	}

	positions := make([]domain.Position, 0, len(raw))
	for _, p := range raw {
		side := domain.PositionSideLong
		if p.Side == "short" {
			side = domain.PositionSideShort
		}
		positions = append(positions, domain.Position{
			Symbol:       p.Symbol,
			Side:         side,
			Volume:       p.Qty.InexactFloat64(),
			OpenPrice:    p.AvgEntryPrice.InexactFloat64(),
			CurrentPrice: derefDecimal(p.CurrentPrice),
			Profit:       derefDecimal(p.UnrealizedPL),
		})
	}
	return positions, nil
}

// Tick returns the latest NBBO quote for a symbol as a bid/ask tick.
func (t *AlpacaTerminal) Tick(_ context.Context, symbol string) (*Tick, error) {
	quote, err := t.data.GetLatestQuote(symbol, marketdata.GetLatestQuoteRequest{})
	if err != nil {
		return nil, &QueryError{Op: "tick", Err: err}
	}
	if quote == nil || (quote.BidPrice <= 0 && quote.AskPrice <= 0) {
		return nil, &QueryError{Op: "tick", Err: fmt.Errorf("no quote for %s", symbol)}
	}
	return &Tick{
		Symbol: symbol,
		Bid:    quote.BidPrice,
		Ask:    quote.AskPrice,
		Time:   quote.Timestamp,
	}, nil
}

// SubmitOrder places the order via the Alpaca trading API. Stop-loss and
// take-profit levels translate into bracket (both) or one-triggers-other
// (one) order classes.
func (t *AlpacaTerminal) SubmitOrder(_ context.Context, params OrderParams) (*OrderResult, error) {
	qty := decimal.NewFromFloat(params.Volume)

	req := alpaca.PlaceOrderRequest{
		Symbol:      params.Symbol,
		Qty:         &qty,
		TimeInForce: alpaca.GTC,
	}

	switch params.Code {
	case MarketBuy, MarketSell:
		req.Type = alpaca.Market
	case LimitBuy, LimitSell:
		req.Type = alpaca.Limit
		limit := decimal.NewFromFloat(params.Price)
		req.LimitPrice = &limit
	case StopBuy, StopSell:
		req.Type = alpaca.Stop
		stop := decimal.NewFromFloat(params.Price)
		req.StopPrice = &stop
	default:
		return nil, &SubmitError{Reason: fmt.Sprintf("unsupported order code %q", params.Code)}
	}

	switch params.Code {
	case MarketBuy, LimitBuy, StopBuy:
		req.Side = alpaca.Buy
	default:
		req.Side = alpaca.Sell
	}

	hasTP := params.TakeProfit > 0
	hasSL := params.StopLoss > 0
	if hasTP {
		tp := decimal.NewFromFloat(params.TakeProfit)
		req.TakeProfit = &alpaca.TakeProfit{LimitPrice: &tp}
	}
	if hasSL {
		sl := decimal.NewFromFloat(params.StopLoss)
		req.StopLoss = &alpaca.StopLoss{StopPrice: &sl}
	}
	switch {
	case hasTP && hasSL:
		req.OrderClass = alpaca.Bracket
	case hasTP || hasSL:
		req.OrderClass = alpaca.OTO
	}

	order, err := t.trading.PlaceOrder(req)
	if err != nil {
		return nil, &SubmitError{Reason: err.Error()}
	}
	return &OrderResult{OrderID: order.ID}, nil
}

func derefDecimal(d *decimal.Decimal) float64 {
	if d == nil {
		return 0
	}
	return d.InexactFloat64()
}
