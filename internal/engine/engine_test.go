package engine

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"fxpilot/internal/domain"
	"fxpilot/internal/signal"
	"fxpilot/internal/store"
	"fxpilot/internal/venue"
)

func newTestEngine(t *testing.T) (*Engine, *venue.Simulator, *store.SQLiteStore) {
	t.Helper()

	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	sim := venue.NewSimulator(10000)
	sim.SetTick("EURUSD", 1.2343, 1.2345)

	eng := New(sim, st, st, &signal.Fixed{Label: "HOLD", Confidence: 50}, Options{
		Symbol: "EURUSD",
	})
	return eng, sim, st
}

func insertPending(t *testing.T, st *store.SQLiteStore, cmd domain.TradeCommand) {
	t.Helper()
	cmd.Status = domain.StatusPending
	if cmd.SubmittedAt.IsZero() {
		cmd.SubmittedAt = time.Now().UTC()
	}
	if err := st.InsertCommand(context.Background(), &cmd); err != nil {
		t.Fatalf("InsertCommand(%s): %v", cmd.ID, err)
	}
}

func TestCyclePublishesSnapshot(t *testing.T) {
	eng, _, st := newTestEngine(t)
	ctx := context.Background()

	eng.RunCycle(ctx)

	snap, err := st.GetSnapshot(ctx)
	if err != nil {
		t.Fatalf("GetSnapshot: %v", err)
	}
	if snap.Account.Balance != 10000 {
		t.Errorf("balance = %v, want 10000", snap.Account.Balance)
	}
	if snap.Signal != "HOLD" || snap.Confidence != 50 {
		t.Errorf("signal = %s/%d, want HOLD/50", snap.Signal, snap.Confidence)
	}
	if snap.UpdatedAt.IsZero() {
		t.Error("UpdatedAt not set")
	}
}

func TestSnapshotSkippedWhenAccountFails(t *testing.T) {
	eng, sim, st := newTestEngine(t)
	ctx := context.Background()

	eng.RunCycle(ctx)
	first, err := st.GetSnapshot(ctx)
	if err != nil {
		t.Fatalf("GetSnapshot: %v", err)
	}

	// A broken venue connection must leave the last good snapshot visible.
	sim.FailAccount(errors.New("gateway down"))
	eng.RunCycle(ctx)

	second, err := st.GetSnapshot(ctx)
	if err != nil {
		t.Fatalf("GetSnapshot after failure: %v", err)
	}
	if !second.UpdatedAt.Equal(first.UpdatedAt) {
		t.Errorf("snapshot was republished during venue outage: %v != %v",
			second.UpdatedAt, first.UpdatedAt)
	}
}

func TestDrainExecutesOldestFirst(t *testing.T) {
	eng, sim, st := newTestEngine(t)
	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Minute)

	// Inserted out of order on purpose.
	insertPending(t, st, domain.TradeCommand{
		ID: "c2", Symbol: "EURUSD", Action: domain.ActionSell,
		OrderType: domain.OrderTypeMarket, Volume: 0.2,
		SubmittedAt: base.Add(2 * time.Second),
	})
	insertPending(t, st, domain.TradeCommand{
		ID: "c1", Symbol: "EURUSD", Action: domain.ActionBuy,
		OrderType: domain.OrderTypeMarket, Volume: 0.1,
		SubmittedAt: base.Add(time.Second),
	})

	eng.RunCycle(ctx)

	orders := sim.Orders()
	if len(orders) != 2 {
		t.Fatalf("submitted %d orders, want 2", len(orders))
	}
	if orders[0].Code != venue.MarketBuy || orders[1].Code != venue.MarketSell {
		t.Errorf("order sequence = %s, %s; want buy then sell", orders[0].Code, orders[1].Code)
	}

	for _, id := range []string{"c1", "c2"} {
		cmd, err := st.GetCommand(ctx, id)
		if err != nil {
			t.Fatalf("GetCommand(%s): %v", id, err)
		}
		if cmd.Status != domain.StatusExecuted {
			t.Errorf("%s status = %s, want executed", id, cmd.Status)
		}
		if cmd.ExecutedAt.IsZero() {
			t.Errorf("%s ExecutedAt not set", id)
		}
	}
}

func TestExecutedCommandIsNotRedrained(t *testing.T) {
	eng, sim, st := newTestEngine(t)
	ctx := context.Background()

	insertPending(t, st, domain.TradeCommand{
		ID: "once", Symbol: "EURUSD", Action: domain.ActionBuy,
		OrderType: domain.OrderTypeMarket, Volume: 0.1,
	})

	eng.RunCycle(ctx)
	eng.RunCycle(ctx)

	if got := len(sim.Orders()); got != 1 {
		t.Errorf("submitted %d orders across two cycles, want 1", got)
	}
}

func TestVenueRejectionRecordsReason(t *testing.T) {
	eng, sim, st := newTestEngine(t)
	ctx := context.Background()

	sim.FailSubmit(&venue.SubmitError{Reason: "insufficient margin"})
	insertPending(t, st, domain.TradeCommand{
		ID: "rejected", Symbol: "EURUSD", Action: domain.ActionBuy,
		OrderType: domain.OrderTypeMarket, Volume: 100,
	})

	eng.RunCycle(ctx)

	cmd, err := st.GetCommand(ctx, "rejected")
	if err != nil {
		t.Fatalf("GetCommand: %v", err)
	}
	if cmd.Status != domain.StatusFailed {
		t.Errorf("status = %s, want failed", cmd.Status)
	}
	if cmd.Error != "insufficient margin" {
		t.Errorf("error = %q, want venue reason verbatim", cmd.Error)
	}
	if !cmd.ExecutedAt.IsZero() {
		t.Errorf("ExecutedAt = %v, want unset on failure", cmd.ExecutedAt)
	}
}

func TestInvalidCommandNeverReachesVenue(t *testing.T) {
	eng, sim, st := newTestEngine(t)
	ctx := context.Background()

	// Limit order without a price fails validation, not the venue.
	insertPending(t, st, domain.TradeCommand{
		ID: "bad", Symbol: "EURUSD", Action: domain.ActionSell,
		OrderType: domain.OrderTypeLimit, Volume: 0.1,
	})

	eng.RunCycle(ctx)

	if got := len(sim.Orders()); got != 0 {
		t.Fatalf("submitted %d orders for an invalid command, want 0", got)
	}
	cmd, err := st.GetCommand(ctx, "bad")
	if err != nil {
		t.Fatalf("GetCommand: %v", err)
	}
	if cmd.Status != domain.StatusFailed {
		t.Errorf("status = %s, want failed", cmd.Status)
	}
	if cmd.Error == "" {
		t.Error("error not recorded")
	}
}

func TestTickFailureFailsCommandClosed(t *testing.T) {
	eng, sim, st := newTestEngine(t)
	ctx := context.Background()

	sim.FailTick(errors.New("feed offline"))
	insertPending(t, st, domain.TradeCommand{
		ID: "no-tick", Symbol: "EURUSD", Action: domain.ActionBuy,
		OrderType: domain.OrderTypeMarket, Volume: 0.1,
	})

	eng.RunCycle(ctx)

	if got := len(sim.Orders()); got != 0 {
		t.Fatalf("submitted %d orders without a tick, want 0", got)
	}
	cmd, err := st.GetCommand(ctx, "no-tick")
	if err != nil {
		t.Fatalf("GetCommand: %v", err)
	}
	if cmd.Status != domain.StatusFailed {
		t.Errorf("status = %s, want failed", cmd.Status)
	}
}

func TestDrainContinuesPastFailures(t *testing.T) {
	eng, sim, st := newTestEngine(t)
	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Minute)

	insertPending(t, st, domain.TradeCommand{
		ID: "bad", Symbol: "EURUSD", Action: "hold",
		OrderType: domain.OrderTypeMarket, Volume: 0.1,
		SubmittedAt: base,
	})
	insertPending(t, st, domain.TradeCommand{
		ID: "good", Symbol: "EURUSD", Action: domain.ActionBuy,
		OrderType: domain.OrderTypeMarket, Volume: 0.1,
		SubmittedAt: base.Add(time.Second),
	})

	eng.RunCycle(ctx)

	if got := len(sim.Orders()); got != 1 {
		t.Fatalf("submitted %d orders, want 1", got)
	}
	cmd, err := st.GetCommand(ctx, "good")
	if err != nil {
		t.Fatalf("GetCommand: %v", err)
	}
	if cmd.Status != domain.StatusExecuted {
		t.Errorf("status = %s, want executed after earlier failure", cmd.Status)
	}
}

type recordingArchiver struct {
	snaps []*domain.Snapshot
}

func (r *recordingArchiver) Record(snap *domain.Snapshot) error {
	r.snaps = append(r.snaps, snap)
	return nil
}

func TestArchiverReceivesSnapshots(t *testing.T) {
	_, sim, st := newTestEngine(t)
	arch := &recordingArchiver{}
	eng := New(sim, st, st, &signal.Fixed{Label: "BUY", Confidence: 70}, Options{
		Symbol:  "EURUSD",
		Archive: arch,
	})

	eng.RunCycle(context.Background())

	if len(arch.snaps) != 1 {
		t.Fatalf("archived %d snapshots, want 1", len(arch.snaps))
	}
	if arch.snaps[0].Signal != "BUY" {
		t.Errorf("archived signal = %s, want BUY", arch.snaps[0].Signal)
	}
}
