package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"kfilter/internal/domain"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "kfilter.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return s
}

func TestSQLiteStoreGetAbsent(t *testing.T) {
	s := newTestStore(t)

	h, err := s.Get(context.Background(), "sh600519")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if h != nil {
		t.Errorf("Get on empty store = %+v, want nil", h)
	}
}

func TestSQLiteStoreUpsertRoundtrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	refreshed := time.Date(2024, 6, 14, 16, 30, 0, 0, time.UTC)
	in := &domain.SymbolHistory{
		Symbol: "sh600519",
		Name:   "贵州茅台",
		Daily: []domain.Bar{
			{Date: "2024-06-13", Open: 1650, Close: 1660, High: 1665, Low: 1645, Amount: 4.2e9},
			{Date: "2024-06-14", Open: 1660, Close: 1658, High: 1670, Low: 1655, Amount: 3.9e9},
		},
		LastRefreshedAt: refreshed,
	}
	if err := s.Upsert(ctx, in); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	got, err := s.Get(ctx, "sh600519")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil {
		t.Fatal("Get returned nil after Upsert")
	}
	if got.Name != "贵州茅台" {
		t.Errorf("Name = %q, want 贵州茅台", got.Name)
	}
	if len(got.Daily) != 2 {
		t.Fatalf("got %d bars, want 2", len(got.Daily))
	}
	if got.Daily[1].Close != 1658 {
		t.Errorf("Daily[1].Close = %v, want 1658", got.Daily[1].Close)
	}
	if !got.LastRefreshedAt.Equal(refreshed) {
		t.Errorf("LastRefreshedAt = %v, want %v", got.LastRefreshedAt, refreshed)
	}
	if got.CreatedAt.IsZero() {
		t.Error("CreatedAt should be assigned on insert")
	}
}

func TestSQLiteStoreUpsertReplacesBarsWholesale(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := &domain.SymbolHistory{
		Symbol:          "sz000001",
		Name:            "平安银行",
		Daily:           []domain.Bar{{Date: "2024-06-13", Close: 10.5}},
		LastRefreshedAt: time.Date(2024, 6, 13, 18, 0, 0, 0, time.UTC),
	}
	if err := s.Upsert(ctx, first); err != nil {
		t.Fatalf("Upsert (first): %v", err)
	}
	created, err := s.Get(ctx, "sz000001")
	if err != nil || created == nil {
		t.Fatalf("Get after first upsert: %v", err)
	}

	second := &domain.SymbolHistory{
		Symbol: "sz000001",
		Daily: []domain.Bar{
			{Date: "2024-06-13", Close: 10.5},
			{Date: "2024-06-14", Close: 10.7},
		},
		LastRefreshedAt: time.Date(2024, 6, 14, 18, 0, 0, 0, time.UTC),
	}
	if err := s.Upsert(ctx, second); err != nil {
		t.Fatalf("Upsert (second): %v", err)
	}

	got, err := s.Get(ctx, "sz000001")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got.Daily) != 2 {
		t.Errorf("got %d bars after replace, want 2", len(got.Daily))
	}
	if got.Name != "平安银行" {
		t.Errorf("empty incoming name overwrote stored name: %q", got.Name)
	}
	if !got.CreatedAt.Equal(created.CreatedAt) {
		t.Errorf("CreatedAt changed on update: %v → %v", created.CreatedAt, got.CreatedAt)
	}
	if !got.LastRefreshedAt.After(created.LastRefreshedAt) {
		t.Error("LastRefreshedAt should advance on refresh")
	}
}

func TestSQLiteStoreListSymbols(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, h := range []*domain.SymbolHistory{
		{Symbol: "sz300750", Name: "宁德时代"},
		{Symbol: "sh600519", Name: "贵州茅台"},
	} {
		if err := s.Upsert(ctx, h); err != nil {
			t.Fatalf("Upsert(%s): %v", h.Symbol, err)
		}
	}

	infos, err := s.ListSymbols(ctx)
	if err != nil {
		t.Fatalf("ListSymbols: %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("got %d symbols, want 2", len(infos))
	}
	if infos[0].Symbol != "sh600519" || infos[1].Symbol != "sz300750" {
		t.Errorf("ListSymbols order = %v, want [sh600519 sz300750]", infos)
	}
	if infos[0].Name != "贵州茅台" {
		t.Errorf("infos[0].Name = %q, want 贵州茅台", infos[0].Name)
	}
}
