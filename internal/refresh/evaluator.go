// Package refresh implements the staleness-driven K-line refresh subsystem:
// the due-set evaluator, the batch refresh orchestrator, and the synchronous
// single-symbol refresh path.
package refresh

import (
	"context"
	"fmt"
	"time"

	"kfilter/internal/store"
)

// WorkItem is one due symbol awaiting refresh, carrying the best-known
// display name at enqueue time. Each item is consumed by exactly one worker.
type WorkItem struct {
	Symbol string
	Name   string
}

// DueForRefresh reports whether a symbol with the given last-refresh time is
// stale relative to targetDate. A symbol is due when it has never been
// refreshed, or when its last refresh fell on a calendar day strictly before
// the target date. Both sides truncate to day granularity; time of day is
// ignored.
func DueForRefresh(lastRefreshedAt, targetDate time.Time) bool {
	if lastRefreshedAt.IsZero() {
		return true
	}
	return dayOf(lastRefreshedAt.In(targetDate.Location())).Before(dayOf(targetDate))
}

func dayOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// ComputeDueSet returns a work item for every known symbol that is due
// against targetDate, in the store's enumeration order.
func ComputeDueSet(ctx context.Context, s store.HistoryStore, targetDate time.Time) ([]WorkItem, error) {
	infos, err := s.ListSymbols(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing symbols: %w", err)
	}

	var due []WorkItem
	for _, info := range infos {
		h, err := s.Get(ctx, info.Symbol)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", info.Symbol, err)
		}
		var last time.Time
		if h != nil {
			last = h.LastRefreshedAt
		}
		if DueForRefresh(last, targetDate) {
			due = append(due, WorkItem{Symbol: info.Symbol, Name: info.Name})
		}
	}
	return due, nil
}
