package venue

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestMT5Account(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/account" {
			http.NotFound(w, r)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("Authorization = %q, want Bearer tok", got)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"login":       12345,
			"currency":    "USD",
			"balance":     10000.0,
			"equity":      10050.5,
			"margin":      120.0,
			"margin_free": 9930.5,
			"profit":      50.5,
			"leverage":    100,
			"trade_mode":  2, // venue field with no named column
		})
	}))
	defer srv.Close()

	term := NewMT5Terminal(srv.URL, "tok", time.Second)
	acct, err := term.Account(context.Background())
	if err != nil {
		t.Fatalf("Account: %v", err)
	}

	if acct.Login != 12345 || acct.Currency != "USD" {
		t.Errorf("identity fields = %d/%q", acct.Login, acct.Currency)
	}
	if acct.Balance != 10000 || acct.Equity != 10050.5 {
		t.Errorf("balance/equity = %v/%v", acct.Balance, acct.Equity)
	}
	if acct.Margin != 120 || acct.MarginFree != 9930.5 || acct.Profit != 50.5 {
		t.Errorf("margin fields = %v/%v/%v", acct.Margin, acct.MarginFree, acct.Profit)
	}
	// Unknown venue fields survive in the side channel.
	if acct.Extra["trade_mode"] != 2.0 {
		t.Errorf("Extra[trade_mode] = %v, want 2", acct.Extra["trade_mode"])
	}
	if _, dup := acct.Extra["balance"]; dup {
		t.Error("named field balance leaked into Extra")
	}
}

func TestMT5AccountQueryError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "terminal not initialized", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	term := NewMT5Terminal(srv.URL, "", time.Second)
	_, err := term.Account(context.Background())

	var qerr *QueryError
	if !errors.As(err, &qerr) {
		t.Fatalf("Account error = %T (%v), want *QueryError", err, err)
	}
	if qerr.Op != "account" {
		t.Errorf("QueryError.Op = %q, want account", qerr.Op)
	}
}

func TestMT5Tick(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/tick/EURUSD" {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(mt5Tick{Bid: 1.2343, Ask: 1.2345, Time: 1700000000})
	}))
	defer srv.Close()

	term := NewMT5Terminal(srv.URL, "", time.Second)
	tick, err := term.Tick(context.Background(), "EURUSD")
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if tick.Bid != 1.2343 || tick.Ask != 1.2345 {
		t.Errorf("tick = %v/%v, want 1.2343/1.2345", tick.Bid, tick.Ask)
	}
	if tick.Symbol != "EURUSD" {
		t.Errorf("tick.Symbol = %q", tick.Symbol)
	}
}

func TestMT5SubmitOrder(t *testing.T) {
	var gotReq mt5OrderRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/order" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decoding order request: %v", err)
		}
		json.NewEncoder(w).Encode(mt5OrderResponse{Retcode: mt5RetcodeDone, Order: 777})
	}))
	defer srv.Close()

	term := NewMT5Terminal(srv.URL, "", time.Second)
	res, err := term.SubmitOrder(context.Background(), OrderParams{
		Symbol:     "EURUSD",
		Code:       LimitSell,
		Volume:     0.2,
		Price:      1.2400,
		StopLoss:   1.2430,
		TakeProfit: 1.2350,
	})
	if err != nil {
		t.Fatalf("SubmitOrder: %v", err)
	}
	if res.OrderID != "777" {
		t.Errorf("OrderID = %q, want 777", res.OrderID)
	}

	if gotReq.Type != 3 { // SELL_LIMIT
		t.Errorf("wire order type = %d, want 3", gotReq.Type)
	}
	if !gotReq.Pending {
		t.Error("limit order should be flagged pending")
	}
	if gotReq.SL != 1.2430 || gotReq.TP != 1.2350 {
		t.Errorf("wire sl/tp = %v/%v", gotReq.SL, gotReq.TP)
	}
}

func TestMT5SubmitOrderRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(mt5OrderResponse{Retcode: 10019, Comment: "insufficient margin"})
	}))
	defer srv.Close()

	term := NewMT5Terminal(srv.URL, "", time.Second)
	_, err := term.SubmitOrder(context.Background(), OrderParams{
		Symbol: "EURUSD",
		Code:   MarketBuy,
		Volume: 50,
		Price:  1.2345,
	})

	var serr *SubmitError
	if !errors.As(err, &serr) {
		t.Fatalf("SubmitOrder error = %T (%v), want *SubmitError", err, err)
	}
	// The venue's reason must surface verbatim; the drain loop records it
	// on the failed command.
	if serr.Error() != "insufficient margin" {
		t.Errorf("reason = %q, want insufficient margin", serr.Error())
	}
}

func TestOrderCodePending(t *testing.T) {
	pending := map[OrderCode]bool{
		MarketBuy:  false,
		MarketSell: false,
		LimitBuy:   true,
		LimitSell:  true,
		StopBuy:    true,
		StopSell:   true,
	}
	for code, want := range pending {
		if got := code.Pending(); got != want {
			t.Errorf("%s.Pending() = %v, want %v", code, got, want)
		}
	}
}
