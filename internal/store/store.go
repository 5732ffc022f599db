// Package store defines the persistence contract for per-symbol K-line
// history and provides SQLite and Parquet-backed implementations.
package store

import (
	"context"

	"kfilter/internal/domain"
)

// HistoryStore persists SymbolHistory aggregates. Upsert must be atomic per
// symbol: the batch refresh workers and the on-demand refresh path may write
// the same record concurrently, and last-writer-wins per key is the contract.
type HistoryStore interface {
	// Get returns the history for a symbol, or (nil, nil) when the symbol
	// is unknown.
	Get(ctx context.Context, symbol string) (*domain.SymbolHistory, error)

	// Upsert inserts or replaces the history for its symbol. CreatedAt is
	// assigned on first insert and preserved afterwards.
	Upsert(ctx context.Context, h *domain.SymbolHistory) error

	// ListSymbols returns every known symbol with its display name, in the
	// store's natural enumeration order.
	ListSymbols(ctx context.Context) ([]domain.SymbolInfo, error)
}
