package engine

import (
	"fmt"

	"fxpilot/internal/domain"
	"fxpilot/internal/venue"
)

// orderCodes is the cross product of order type and action. Any pair
// outside this table is a translation error.
var orderCodes = map[domain.OrderType]map[domain.TradeAction]venue.OrderCode{
	domain.OrderTypeMarket: {
		domain.ActionBuy:  venue.MarketBuy,
		domain.ActionSell: venue.MarketSell,
	},
	domain.OrderTypeLimit: {
		domain.ActionBuy:  venue.LimitBuy,
		domain.ActionSell: venue.LimitSell,
	},
	domain.OrderTypeStop: {
		domain.ActionBuy:  venue.StopBuy,
		domain.ActionSell: venue.StopSell,
	},
}

// Translate maps a trade command and the current tick to venue order
// parameters. It is pure: no venue calls, no mutation of the command.
//
// Market orders take their reference price from the tick (ask for buys, bid
// for sells); limit and stop orders use the command's price. Stop-loss and
// take-profit distances are expressed in pips and converted with pipSize;
// a zero pip distance means no SL/TP. For buys the stop-loss sits below and
// the take-profit above the reference price; sells mirror.
func Translate(cmd *domain.TradeCommand, tick *venue.Tick, pipSize float64) (venue.OrderParams, error) {
	byAction, ok := orderCodes[cmd.OrderType]
	if !ok {
		return venue.OrderParams{}, fmt.Errorf("unknown order type %q", cmd.OrderType)
	}
	code, ok := byAction[cmd.Action]
	if !ok {
		return venue.OrderParams{}, fmt.Errorf("unknown action %q", cmd.Action)
	}
	if pipSize <= 0 {
		return venue.OrderParams{}, fmt.Errorf("invalid pip size %v", pipSize)
	}

	var price float64
	switch cmd.Action {
	case domain.ActionBuy:
		price = tick.Ask
	case domain.ActionSell:
		price = tick.Bid
	}
	if cmd.OrderType != domain.OrderTypeMarket {
		if cmd.Price <= 0 {
			return venue.OrderParams{}, fmt.Errorf("%s order requires a price", cmd.OrderType)
		}
		price = cmd.Price
	}
	if price <= 0 {
		return venue.OrderParams{}, fmt.Errorf("no reference price for %s", cmd.Symbol)
	}

	params := venue.OrderParams{
		Symbol:       cmd.Symbol,
		Code:         code,
		Volume:       cmd.Volume,
		Price:        price,
		TrailingStop: cmd.TrailingStop,
	}

	slOffset := float64(cmd.StopLossPips) * pipSize
	tpOffset := float64(cmd.TakeProfitPips) * pipSize
	if cmd.Action == domain.ActionBuy {
		if cmd.StopLossPips > 0 {
			params.StopLoss = price - slOffset
		}
		if cmd.TakeProfitPips > 0 {
			params.TakeProfit = price + tpOffset
		}
	} else {
		if cmd.StopLossPips > 0 {
			params.StopLoss = price + slOffset
		}
		if cmd.TakeProfitPips > 0 {
			params.TakeProfit = price - tpOffset
		}
	}

	return params, nil
}
