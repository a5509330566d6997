package fxpilot

import (
	"context"
	"errors"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"fxpilot/internal/domain"
	"fxpilot/internal/httpapi"
	"fxpilot/internal/store"
)

func newTestClient(t *testing.T) (*Client, *store.SQLiteStore) {
	t.Helper()

	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	srv := httpapi.NewServer(st, st, st, nil, nil)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return NewClient(ts.URL), st
}

func TestGetLiveState(t *testing.T) {
	c, st := newTestClient(t)
	ctx := context.Background()

	// No snapshot yet: the 404 surfaces as an APIError.
	_, err := c.GetLiveState(ctx)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != 404 {
		t.Fatalf("err = %v, want APIError 404", err)
	}

	snap := &domain.Snapshot{
		Account:   domain.AccountInfo{Balance: 10000},
		Signal:    "HOLD",
		UpdatedAt: time.Now().UTC(),
	}
	if err := st.PutSnapshot(ctx, snap); err != nil {
		t.Fatalf("PutSnapshot: %v", err)
	}

	got, err := c.GetLiveState(ctx)
	if err != nil {
		t.Fatalf("GetLiveState: %v", err)
	}
	if got.Account.Balance != 10000 || got.Signal != "HOLD" {
		t.Errorf("snapshot = %+v, want balance 10000 and signal HOLD", got)
	}
}

func TestPlaceTradeRoundTrip(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	ack, err := c.PlaceTrade(ctx, TradeRequest{
		Symbol:    "EURUSD",
		Action:    "buy",
		OrderType: "market",
		Volume:    0.1,
	})
	if err != nil {
		t.Fatalf("PlaceTrade: %v", err)
	}
	if ack.ID == "" || ack.Status != "pending" {
		t.Fatalf("ack = %+v, want ID and pending", ack)
	}

	cmd, err := c.GetCommand(ctx, ack.ID)
	if err != nil {
		t.Fatalf("GetCommand: %v", err)
	}
	if cmd.Symbol != "EURUSD" || cmd.Status != domain.StatusPending {
		t.Errorf("command = %+v, want EURUSD pending", cmd)
	}

	cmds, err := c.ListCommands(ctx, 10)
	if err != nil {
		t.Fatalf("ListCommands: %v", err)
	}
	if len(cmds) != 1 || cmds[0].ID != ack.ID {
		t.Errorf("commands = %+v, want exactly the queued command", cmds)
	}
}

func TestPlaceTradeValidationError(t *testing.T) {
	c, _ := newTestClient(t)

	_, err := c.PlaceTrade(context.Background(), TradeRequest{
		Symbol:    "EURUSD",
		Action:    "sell",
		OrderType: "limit",
		Volume:    0.1,
		// no price
	})
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != 400 {
		t.Fatalf("err = %v, want APIError 400", err)
	}
}

func TestGetHealth(t *testing.T) {
	c, _ := newTestClient(t)

	h, err := c.GetHealth(context.Background())
	if err != nil {
		t.Fatalf("GetHealth: %v", err)
	}
	if h.Status != "ok" {
		t.Errorf("status = %s, want ok", h.Status)
	}
}
