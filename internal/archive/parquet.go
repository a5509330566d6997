// Package archive records published snapshots as an equity history on disk,
// one Parquet file per day. The history feeds offline analysis and model
// training; nothing in the live path reads it.
package archive

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/parquet-go/parquet-go"

	"fxpilot/internal/domain"
)

// flushEvery is how many buffered rows trigger a file write. Snapshots
// arrive roughly once per second, so this bounds data loss on crash to
// about a minute.
const flushEvery = 60

// EquityRecord is the Parquet schema for one published snapshot.
type EquityRecord struct {
	Timestamp     int64   `parquet:"timestamp,timestamp(millisecond)"` // Unix ms
	Balance       float64 `parquet:"balance"`
	Equity        float64 `parquet:"equity"`
	Margin        float64 `parquet:"margin"`
	MarginFree    float64 `parquet:"margin_free"`
	Profit        float64 `parquet:"profit"`
	OpenPositions int32   `parquet:"open_positions"`
	Signal        string  `parquet:"signal"`
	Confidence    int32   `parquet:"confidence"`
}

// ParquetArchiver appends snapshot rows to daily Parquet files under
// DataDir. Rows are buffered and flushed in batches; Close flushes the
// remainder.
type ParquetArchiver struct {
	DataDir string

	mu     sync.Mutex
	buffer []EquityRecord
}

// NewParquetArchiver creates a ParquetArchiver rooted at dataDir.
func NewParquetArchiver(dataDir string) *ParquetArchiver {
	return &ParquetArchiver{DataDir: dataDir}
}

// Record buffers one equity row for the snapshot. The file write happens
// on the flush boundary, so a single Record call is cheap.
func (a *ParquetArchiver) Record(snap *domain.Snapshot) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.buffer = append(a.buffer, EquityRecord{
		Timestamp:     snap.UpdatedAt.UTC().UnixMilli(),
		Balance:       snap.Account.Balance,
		Equity:        snap.Account.Equity,
		Margin:        snap.Account.Margin,
		MarginFree:    snap.Account.MarginFree,
		Profit:        snap.Account.Profit,
		OpenPositions: int32(len(snap.Positions)),
		Signal:        snap.Signal,
		Confidence:    int32(snap.Confidence),
	})
	if len(a.buffer) < flushEvery {
		return nil
	}
	return a.flushLocked()
}

// Flush writes all buffered rows to disk.
func (a *ParquetArchiver) Flush() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.flushLocked()
}

// Close flushes any remaining buffered rows.
func (a *ParquetArchiver) Close() error {
	return a.Flush()
}

// flushLocked groups the buffer by day and merge-rewrites each day file.
// Callers must hold mu.
func (a *ParquetArchiver) flushLocked() error {
	if len(a.buffer) == 0 {
		return nil
	}

	groups := make(map[string][]EquityRecord)
	for _, r := range a.buffer {
		day := time.UnixMilli(r.Timestamp).UTC().Format("2006-01-02")
		groups[day] = append(groups[day], r)
	}

	for day, records := range groups {
		path := a.dayPath(day)

		// Existing rows merge with the new batch; a missing file is fine.
		existing, _ := readParquetFile[EquityRecord](path)
		merged := mergeEquityRecords(existing, records)

		if err := writeParquetFile(path, merged); err != nil {
			return fmt.Errorf("writing equity history for %s: %w", day, err)
		}
	}

	a.buffer = a.buffer[:0]
	return nil
}

// ReadDay returns the equity rows recorded on the given UTC day, oldest
// first. Days with no file return an empty slice.
func (a *ParquetArchiver) ReadDay(day time.Time) ([]EquityRecord, error) {
	records, err := readParquetFile[EquityRecord](a.dayPath(day.UTC().Format("2006-01-02")))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return records, nil
}

// ReadRange returns all equity rows with timestamps in [start, end].
func (a *ParquetArchiver) ReadRange(start, end time.Time) ([]EquityRecord, error) {
	var out []EquityRecord
	for d := start.UTC().Truncate(24 * time.Hour); !d.After(end); d = d.AddDate(0, 0, 1) {
		records, err := a.ReadDay(d)
		if err != nil {
			return nil, err
		}
		for _, r := range records {
			ts := time.UnixMilli(r.Timestamp)
			if (ts.Equal(start) || ts.After(start)) && (ts.Equal(end) || ts.Before(end)) {
				out = append(out, r)
			}
		}
	}
	return out, nil
}

// dayPath returns the file for one UTC day.
// Layout: <dataDir>/equity/<YYYY-MM-DD>.parquet
func (a *ParquetArchiver) dayPath(day string) string {
	return filepath.Join(a.DataDir, "equity", day+".parquet")
}

// ---------------------------------------------------------------------------
// Parquet file helpers
// ---------------------------------------------------------------------------

func writeParquetFile[T any](path string, records []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, records)
}

func readParquetFile[T any](path string) ([]T, error) {
	return parquet.ReadFile[T](path)
}

// mergeEquityRecords deduplicates rows by timestamp, preferring new rows
// over existing ones. Results are sorted by timestamp.
func mergeEquityRecords(existing, incoming []EquityRecord) []EquityRecord {
	seen := make(map[int64]EquityRecord, len(existing)+len(incoming))
	for _, r := range existing {
		seen[r.Timestamp] = r
	}
	for _, r := range incoming {
		seen[r.Timestamp] = r
	}

	merged := make([]EquityRecord, 0, len(seen))
	for _, r := range seen {
		merged = append(merged, r)
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Timestamp < merged[j].Timestamp
	})
	return merged
}
