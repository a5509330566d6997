// Package store defines the shared state store interfaces: the single
// current-state snapshot document and the trade command queue. The store is
// written by the engine and by external producers (API, dashboard) and read
// by everyone.
package store

import (
	"context"
	"errors"
	"time"

	"fxpilot/internal/domain"
)

// SnapshotKey is the well-known key of the single current-state document.
const SnapshotKey = "current_state"

// ErrNotFound is returned when a requested document does not exist.
var ErrNotFound = errors.New("not found")

// ErrNotPending is returned when a terminal-status write targets a command
// that is missing or already terminal. Terminal statuses are immutable.
var ErrNotPending = errors.New("command is not pending")

// SnapshotStore holds the single current-state snapshot. Writes are
// full-replace upserts; the engine is the only writer.
type SnapshotStore interface {
	// PutSnapshot creates or fully replaces the snapshot document.
	PutSnapshot(ctx context.Context, snap *domain.Snapshot) error

	// GetSnapshot returns the current snapshot, or ErrNotFound if none has
	// been published yet.
	GetSnapshot(ctx context.Context) (*domain.Snapshot, error)
}

// CommandStore holds the trade command queue. External producers insert
// pending commands; the engine transitions each exactly once to a terminal
// status.
type CommandStore interface {
	// InsertCommand appends a new command. The command's ID must be unique.
	InsertCommand(ctx context.Context, cmd *domain.TradeCommand) error

	// GetCommand retrieves a single command by its ID.
	GetCommand(ctx context.Context, id string) (*domain.TradeCommand, error)

	// PendingCommands returns all pending commands ordered by submission
	// time, oldest first.
	PendingCommands(ctx context.Context) ([]domain.TradeCommand, error)

	// ListCommands returns the most recent commands regardless of status,
	// newest first, up to limit.
	ListCommands(ctx context.Context, limit int) ([]domain.TradeCommand, error)

	// MarkExecuted transitions a pending command to executed. It returns
	// ErrNotPending if the command is missing or already terminal.
	MarkExecuted(ctx context.Context, id string, executedAt time.Time) error

	// MarkFailed transitions a pending command to failed with the given
	// reason. It returns ErrNotPending if the command is missing or already
	// terminal.
	MarkFailed(ctx context.Context, id, reason string) error
}

// Pinger reports store connectivity, for health checks.
type Pinger interface {
	Ping(ctx context.Context) error
}
