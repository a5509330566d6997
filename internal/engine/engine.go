// Package engine implements the state-synchronization and command
// execution loop: each cycle publishes a consistent account snapshot to the
// shared store, then drains pending trade commands and executes them
// against the venue.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"fxpilot/internal/domain"
	"fxpilot/internal/signal"
	"fxpilot/internal/store"
	"fxpilot/internal/venue"
)

// Archiver records published snapshots for offline analysis. Recording
// failures never block the cycle.
type Archiver interface {
	Record(snap *domain.Snapshot) error
}

// Options configures an Engine.
type Options struct {
	// Symbol is the instrument the signal source tracks.
	Symbol string

	// Interval is the cycle cadence. Defaults to one second.
	Interval time.Duration

	// PipSize returns the pip size for a symbol. Defaults to 0.0001 for
	// every symbol.
	PipSize func(symbol string) float64

	// Archive, if set, receives every published snapshot.
	Archive Archiver

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Engine drives the publish/drain cycle. A single instance must own the
// store's command queue: at-most-once execution relies on there being
// exactly one sequential drainer. Running two engines against one store
// breaks that contract.
type Engine struct {
	term    venue.Terminal
	snaps   store.SnapshotStore
	cmds    store.CommandStore
	signals signal.Source

	symbol   string
	interval time.Duration
	pipSize  func(string) float64
	archive  Archiver
	log      *slog.Logger
	now      func() time.Time
}

// New creates an Engine wired with the given dependencies.
func New(term venue.Terminal, snaps store.SnapshotStore, cmds store.CommandStore, signals signal.Source, opts Options) *Engine {
	if opts.Symbol == "" {
		opts.Symbol = "EURUSD"
	}
	if opts.Interval <= 0 {
		opts.Interval = time.Second
	}
	if opts.PipSize == nil {
		opts.PipSize = func(string) float64 { return 0.0001 }
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Engine{
		term:     term,
		snaps:    snaps,
		cmds:     cmds,
		signals:  signals,
		symbol:   opts.Symbol,
		interval: opts.Interval,
		pipSize:  opts.PipSize,
		archive:  opts.Archive,
		log:      opts.Logger.With("component", "engine"),
		now:      time.Now,
	}
}

// Run executes cycles on the configured cadence until ctx is cancelled. A
// failing cycle stage is logged and never stops subsequent ticks.
func (e *Engine) Run(ctx context.Context) error {
	e.log.Info("engine started",
		"venue", e.term.Name(),
		"symbol", e.symbol,
		"interval", e.interval,
	)

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		e.RunCycle(ctx)

		select {
		case <-ctx.Done():
			e.log.Info("engine stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunCycle performs one publish/drain cycle: snapshot first so readers see
// fresh state even when no commands are queued, then the command drain.
func (e *Engine) RunCycle(ctx context.Context) {
	e.publishSnapshot(ctx)
	e.drainCommands(ctx)
}

// ---------------------------------------------------------------------------
// Snapshot publishing
// ---------------------------------------------------------------------------

// publishSnapshot queries account and position state and upserts the
// snapshot document. If either venue query fails the publish is skipped
// for this cycle and the last good snapshot stays visible.
func (e *Engine) publishSnapshot(ctx context.Context) {
	account, err := e.term.Account(ctx)
	if err != nil {
		e.log.Warn("skipping snapshot publish", "err", err)
		return
	}
	positions, err := e.term.Positions(ctx)
	if err != nil {
		e.log.Warn("skipping snapshot publish", "err", err)
		return
	}

	// Feed the signal source the current mid price; best effort.
	if tick, err := e.term.Tick(ctx, e.symbol); err == nil {
		e.signals.Observe(e.symbol, (tick.Bid+tick.Ask)/2)
	}

	sig, err := e.signals.Signal(ctx, e.symbol)
	if err != nil {
		// The snapshot still goes out; it just carries no suggestion.
		e.log.Warn("signal source failed", "err", err)
		sig = domain.Signal{}
	}

	snap := &domain.Snapshot{
		Account:    *account,
		Positions:  positions,
		Signal:     sig.Label,
		Confidence: sig.Confidence,
		UpdatedAt:  e.now().UTC(),
	}
	if err := e.snaps.PutSnapshot(ctx, snap); err != nil {
		e.log.Error("snapshot upsert failed", "err", err)
		return
	}

	if e.archive != nil {
		if err := e.archive.Record(snap); err != nil {
			e.log.Warn("archiving snapshot failed", "err", err)
		}
	}
}

// ---------------------------------------------------------------------------
// Command drain
// ---------------------------------------------------------------------------

// drainCommands fetches all pending commands oldest-first and executes them
// sequentially. Sequential execution is deliberate: concurrent submissions
// against one terminal connection interleave session state and race the
// SL/TP pip math against a moving price.
func (e *Engine) drainCommands(ctx context.Context) {
	pending, err := e.cmds.PendingCommands(ctx)
	if err != nil {
		e.log.Error("reading pending commands failed", "err", err)
		return
	}
	if len(pending) == 0 {
		return
	}

	e.log.Info("draining commands", "count", len(pending))
	for i := range pending {
		if ctx.Err() != nil {
			return
		}
		e.executeCommand(ctx, &pending[i])
	}
}

// executeCommand runs a single command through validate → translate →
// submit and writes its terminal status. Each outcome is a single status
// write keyed by the command ID; a crash between a successful submission
// and the status write leaves the command pending forever rather than
// risking a duplicate order on the next drain.
func (e *Engine) executeCommand(ctx context.Context, cmd *domain.TradeCommand) {
	log := e.log.With("command", cmd.ID, "symbol", cmd.Symbol)

	if err := cmd.Validate(); err != nil {
		log.Warn("command rejected", "err", err)
		e.failCommand(ctx, cmd, fmt.Sprintf("validation: %v", err))
		return
	}

	tick, err := e.term.Tick(ctx, cmd.Symbol)
	if err != nil {
		// Fail closed: without a tick the pip offsets cannot be computed.
		log.Warn("tick query failed", "err", err)
		e.failCommand(ctx, cmd, err.Error())
		return
	}

	params, err := Translate(cmd, tick, e.pipSize(cmd.Symbol))
	if err != nil {
		log.Warn("translation failed", "err", err)
		e.failCommand(ctx, cmd, err.Error())
		return
	}

	res, err := e.term.SubmitOrder(ctx, params)
	if err != nil {
		log.Warn("submission failed", "err", err)
		e.failCommand(ctx, cmd, err.Error())
		return
	}

	if err := e.cmds.MarkExecuted(ctx, cmd.ID, e.now().UTC()); err != nil {
		// Inconsistency window: the venue executed the order but the store
		// still says pending. Surfaced for manual reconciliation; the
		// engine never re-submits.
		log.Error("order executed but status write failed, reconcile manually",
			"orderID", res.OrderID, "err", err)
		return
	}

	log.Info("command executed",
		"action", cmd.Action,
		"orderType", cmd.OrderType,
		"volume", cmd.Volume,
		"price", params.Price,
		"orderID", res.OrderID,
	)
}

// failCommand writes the terminal failed status with the given reason.
func (e *Engine) failCommand(ctx context.Context, cmd *domain.TradeCommand, reason string) {
	if err := e.cmds.MarkFailed(ctx, cmd.ID, reason); err != nil {
		e.log.Error("status write failed", "command", cmd.ID, "err", err)
	}
}
