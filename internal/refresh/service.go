package refresh

import (
	"context"
	"log/slog"
	"time"

	"kfilter/internal/domain"
	"kfilter/internal/store"
)

// SeriesFetcher extends Fetcher with the non-daily periods, which are served
// straight from the provider and never cached.
type SeriesFetcher interface {
	Fetcher
	FetchWeekly(ctx context.Context, symbol, start, end string, adjust domain.Adjust) ([]domain.Bar, error)
	FetchMonthly(ctx context.Context, symbol, start, end string, adjust domain.Adjust) ([]domain.Bar, error)
}

// Service answers synchronous, single-symbol reads. It serves from the store
// when the cached history is fresh enough and refreshes inline otherwise.
type Service struct {
	store     store.HistoryStore
	fetcher   SeriesFetcher
	log       *slog.Logger
	startDate string
	adjust    domain.Adjust
}

// NewService creates a read service over the given store and fetcher.
func NewService(s store.HistoryStore, f SeriesFetcher, log *slog.Logger, startDate string, adjust domain.Adjust) *Service {
	if startDate == "" {
		startDate = DefaultStartDate
	}
	if adjust == "" {
		adjust = domain.AdjustQfq
	}
	return &Service{
		store:     s,
		fetcher:   f,
		log:       log.With("component", "kline"),
		startDate: startDate,
		adjust:    adjust,
	}
}

// GetOrRefresh returns the daily history for symbol, refreshing it from the
// provider first when it is stale relative to targetDate or when force is
// set. A failed fetch is logged and whatever the store holds is returned;
// only store errors propagate to the caller.
func (s *Service) GetOrRefresh(ctx context.Context, symbol, name string, targetDate time.Time, force bool) (*domain.SymbolHistory, error) {
	cached, err := s.store.Get(ctx, symbol)
	if err != nil {
		return nil, err
	}

	stale := cached == nil || DueForRefresh(cached.LastRefreshedAt, targetDate)
	if !stale && !force {
		return cached, nil
	}

	bars, err := s.fetcher.FetchDaily(ctx, symbol, s.startDate, targetDate.Format("2006-01-02"), s.adjust)
	if err != nil {
		s.log.Warn("inline refresh failed, serving cached history", "symbol", symbol, "err", err)
		if cached != nil {
			return cached, nil
		}
		return &domain.SymbolHistory{Symbol: symbol, Name: name}, nil
	}

	if name == "" && cached != nil {
		name = cached.Name
	}
	h := &domain.SymbolHistory{
		Symbol:          symbol,
		Name:            name,
		Daily:           bars,
		LastRefreshedAt: time.Now(),
	}
	if err := s.store.Upsert(ctx, h); err != nil {
		return nil, err
	}
	return h, nil
}

// LastBars returns up to n most recent bars of h in ascending date order.
// n <= 0 means no limit.
func LastBars(h *domain.SymbolHistory, n int) []domain.Bar {
	if h == nil {
		return nil
	}
	if n <= 0 || len(h.Daily) <= n {
		return h.Daily
	}
	return h.Daily[len(h.Daily)-n:]
}

// FetchWeekly proxies a weekly series read straight through to the provider.
// The result is never persisted.
func (s *Service) FetchWeekly(ctx context.Context, symbol string, targetDate time.Time) ([]domain.Bar, error) {
	return s.fetcher.FetchWeekly(ctx, symbol, s.startDate, targetDate.Format("2006-01-02"), s.adjust)
}

// FetchMonthly proxies a monthly series read straight through to the
// provider. The result is never persisted.
func (s *Service) FetchMonthly(ctx context.Context, symbol string, targetDate time.Time) ([]domain.Bar, error) {
	return s.fetcher.FetchMonthly(ctx, symbol, s.startDate, targetDate.Format("2006-01-02"), s.adjust)
}
