package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"fxpilot/internal/domain"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface checks.
var _ SnapshotStore = (*SQLiteStore)(nil)
var _ CommandStore = (*SQLiteStore)(nil)
var _ Pinger = (*SQLiteStore)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS live_state (
	id         TEXT PRIMARY KEY,
	doc        TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS trade_commands (
	id               TEXT PRIMARY KEY,
	symbol           TEXT NOT NULL,
	action           TEXT NOT NULL,
	order_type       TEXT NOT NULL,
	volume           REAL NOT NULL,
	price            REAL NOT NULL DEFAULT 0,
	take_profit_pips INTEGER NOT NULL DEFAULT 0,
	stop_loss_pips   INTEGER NOT NULL DEFAULT 0,
	trailing_stop    INTEGER NOT NULL DEFAULT 0,
	status           TEXT NOT NULL DEFAULT 'pending',
	error            TEXT NOT NULL DEFAULT '',
	submitted_at     INTEGER NOT NULL,
	executed_at      INTEGER
);

CREATE INDEX IF NOT EXISTS idx_commands_status_submitted
	ON trade_commands(status, submitted_at);
`

// SQLiteStore implements SnapshotStore and CommandStore backed by a SQLite
// database. The snapshot's dict-shaped account/position payload is stored
// as a JSON document; commands get real columns so status updates and
// time-sorted reads stay simple SQL.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath, applies
// the schema, and returns a ready-to-use SQLiteStore.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// The store is shared by the engine and API processes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("configuring sqlite: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ---------------------------------------------------------------------------
// SnapshotStore implementation
// ---------------------------------------------------------------------------

// PutSnapshot upserts the single snapshot document under SnapshotKey,
// fully replacing any previous document.
func (s *SQLiteStore) PutSnapshot(ctx context.Context, snap *domain.Snapshot) error {
	doc, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO live_state (id, doc, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET doc = excluded.doc, updated_at = excluded.updated_at`,
		SnapshotKey, string(doc), snap.UpdatedAt.UTC().UnixMilli())
	if err != nil {
		return fmt.Errorf("upserting snapshot: %w", err)
	}
	return nil
}

// GetSnapshot reads the current snapshot document.
func (s *SQLiteStore) GetSnapshot(ctx context.Context) (*domain.Snapshot, error) {
	var doc string
	err := s.db.QueryRowContext(ctx,
		`SELECT doc FROM live_state WHERE id = ?`, SnapshotKey).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}

	snap := &domain.Snapshot{}
	if err := json.Unmarshal([]byte(doc), snap); err != nil {
		return nil, fmt.Errorf("decoding snapshot: %w", err)
	}
	return snap, nil
}

// ---------------------------------------------------------------------------
// CommandStore implementation
// ---------------------------------------------------------------------------

const commandColumns = `id, symbol, action, order_type, volume, price,
	take_profit_pips, stop_loss_pips, trailing_stop, status, error,
	submitted_at, executed_at`

// InsertCommand appends a new trade command.
func (s *SQLiteStore) InsertCommand(ctx context.Context, cmd *domain.TradeCommand) error {
	var executedAt any
	if !cmd.ExecutedAt.IsZero() {
		executedAt = cmd.ExecutedAt.UTC().UnixMilli()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO trade_commands (`+commandColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		cmd.ID, cmd.Symbol, string(cmd.Action), string(cmd.OrderType),
		cmd.Volume, cmd.Price, cmd.TakeProfitPips, cmd.StopLossPips,
		boolToInt(cmd.TrailingStop), string(cmd.Status), cmd.Error,
		cmd.SubmittedAt.UTC().UnixMilli(), executedAt)
	if err != nil {
		return fmt.Errorf("inserting command %s: %w", cmd.ID, err)
	}
	return nil
}

// GetCommand retrieves a single command by ID.
func (s *SQLiteStore) GetCommand(ctx context.Context, id string) (*domain.TradeCommand, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+commandColumns+` FROM trade_commands WHERE id = ?`, id)
	cmd, err := scanCommand(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading command %s: %w", id, err)
	}
	return cmd, nil
}

// PendingCommands returns all pending commands, oldest first. The ordering
// keeps the drain fair: early requests are never starved by later ones.
func (s *SQLiteStore) PendingCommands(ctx context.Context) ([]domain.TradeCommand, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+commandColumns+` FROM trade_commands
		WHERE status = ? ORDER BY submitted_at ASC, id ASC`,
		string(domain.StatusPending))
	if err != nil {
		return nil, fmt.Errorf("listing pending commands: %w", err)
	}
	defer rows.Close()
	return collectCommands(rows)
}

// ListCommands returns the most recent commands, newest first.
func (s *SQLiteStore) ListCommands(ctx context.Context, limit int) ([]domain.TradeCommand, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+commandColumns+` FROM trade_commands
		ORDER BY submitted_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing commands: %w", err)
	}
	defer rows.Close()
	return collectCommands(rows)
}

// MarkExecuted transitions a pending command to executed. The status guard
// makes terminal states immutable even if two engine instances run by
// mistake.
func (s *SQLiteStore) MarkExecuted(ctx context.Context, id string, executedAt time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE trade_commands SET status = ?, executed_at = ?
		WHERE id = ? AND status = ?`,
		string(domain.StatusExecuted), executedAt.UTC().UnixMilli(),
		id, string(domain.StatusPending))
	if err != nil {
		return fmt.Errorf("marking command %s executed: %w", id, err)
	}
	return requireOneRow(res, id)
}

// MarkFailed transitions a pending command to failed with the given reason.
func (s *SQLiteStore) MarkFailed(ctx context.Context, id, reason string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE trade_commands SET status = ?, error = ?
		WHERE id = ? AND status = ?`,
		string(domain.StatusFailed), reason,
		id, string(domain.StatusPending))
	if err != nil {
		return fmt.Errorf("marking command %s failed: %w", id, err)
	}
	return requireOneRow(res, id)
}

// ---------------------------------------------------------------------------
// Row helpers
// ---------------------------------------------------------------------------

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCommand(row rowScanner) (*domain.TradeCommand, error) {
	var (
		cmd               domain.TradeCommand
		action, orderType string
		status            string
		trailing          int
		submittedMs       int64
		executedMs        sql.NullInt64
	)
	err := row.Scan(&cmd.ID, &cmd.Symbol, &action, &orderType, &cmd.Volume,
		&cmd.Price, &cmd.TakeProfitPips, &cmd.StopLossPips, &trailing,
		&status, &cmd.Error, &submittedMs, &executedMs)
	if err != nil {
		return nil, err
	}

	cmd.Action = domain.TradeAction(action)
	cmd.OrderType = domain.OrderType(orderType)
	cmd.Status = domain.CommandStatus(status)
	cmd.TrailingStop = trailing != 0
	cmd.SubmittedAt = time.UnixMilli(submittedMs).UTC()
	if executedMs.Valid {
		cmd.ExecutedAt = time.UnixMilli(executedMs.Int64).UTC()
	}
	return &cmd, nil
}

func collectCommands(rows *sql.Rows) ([]domain.TradeCommand, error) {
	var cmds []domain.TradeCommand
	for rows.Next() {
		cmd, err := scanCommand(rows)
		if err != nil {
			return nil, err
		}
		cmds = append(cmds, *cmd)
	}
	return cmds, rows.Err()
}

func requireOneRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("command %s: %w", id, ErrNotPending)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
