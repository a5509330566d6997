// Package signal provides trading signal sources. The engine treats a
// source as a black box returning a label and a confidence percentage; a
// failing source is skipped for the cycle, never fatal.
package signal

import (
	"context"

	"fxpilot/internal/domain"
)

// Source produces a trading suggestion for a symbol.
type Source interface {
	// Signal returns the current suggestion. Confidence is in [0, 100].
	Signal(ctx context.Context, symbol string) (domain.Signal, error)

	// Observe feeds the source a mid price for a symbol. Sources that do
	// not track prices ignore it.
	Observe(symbol string, mid float64)
}

// Compile-time interface check.
var _ Source = (*Fixed)(nil)

// Fixed always returns the same suggestion. It stands in for an external
// model during development and in tests.
type Fixed struct {
	Label      string
	Confidence int
}

// Signal returns the configured label and confidence.
func (f *Fixed) Signal(_ context.Context, _ string) (domain.Signal, error) {
	return domain.Signal{Label: f.Label, Confidence: f.Confidence}, nil
}

// Observe is a no-op.
func (f *Fixed) Observe(string, float64) {}
