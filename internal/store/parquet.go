package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/parquet-go/parquet-go"

	"kfilter/internal/domain"
)

// ArchiveStore mirrors refreshed daily bars to Parquet files on disk for
// analytical tooling. It is write-mostly and sits beside the HistoryStore:
// archive failures never fail a refresh.
type ArchiveStore struct {
	DataDir string
}

// NewArchiveStore creates an ArchiveStore rooted at the given data directory.
func NewArchiveStore(dataDir string) *ArchiveStore {
	return &ArchiveStore{DataDir: dataDir}
}

// BarRecord is the Parquet schema for archived daily bars.
type BarRecord struct {
	Symbol    string  `parquet:"symbol"`
	Timestamp int64   `parquet:"timestamp,timestamp(millisecond)"` // Unix ms, midnight UTC
	Open      float64 `parquet:"open"`
	Close     float64 `parquet:"close"`
	High      float64 `parquet:"high"`
	Low       float64 `parquet:"low"`
	Amount    float64 `parquet:"amount"`
}

// WriteDaily archives daily bars for one symbol, one file per calendar year:
//
//	<DataDir>/cn/daily/<symbol>/<YYYY>.parquet
//
// Existing records are merged by timestamp with incoming bars winning.
func (s *ArchiveStore) WriteDaily(symbol string, bars []domain.Bar) error {
	if len(bars) == 0 {
		return nil
	}

	groups := make(map[int][]BarRecord)
	for _, b := range bars {
		t, err := time.Parse("2006-01-02", b.Date)
		if err != nil {
			continue
		}
		groups[t.Year()] = append(groups[t.Year()], BarRecord{
			Symbol:    symbol,
			Timestamp: t.UnixMilli(),
			Open:      b.Open,
			Close:     b.Close,
			High:      b.High,
			Low:       b.Low,
			Amount:    b.Amount,
		})
	}

	for year, records := range groups {
		path := s.barPath(symbol, year)

		existing, _ := readParquetFile[BarRecord](path)
		merged := mergeBarRecords(existing, records)

		if err := writeParquetFile(path, merged); err != nil {
			return fmt.Errorf("archiving bars for %s/%d: %w", symbol, year, err)
		}
	}
	return nil
}

// ReadDaily reads archived bars for a symbol within [start, end] (inclusive,
// "YYYY-MM-DD").
func (s *ArchiveStore) ReadDaily(symbol, start, end string) ([]domain.Bar, error) {
	startT, err := time.Parse("2006-01-02", start)
	if err != nil {
		return nil, fmt.Errorf("parsing start date %q: %w", start, err)
	}
	endT, err := time.Parse("2006-01-02", end)
	if err != nil {
		return nil, fmt.Errorf("parsing end date %q: %w", end, err)
	}

	var bars []domain.Bar
	for year := startT.Year(); year <= endT.Year(); year++ {
		records, err := readParquetFile[BarRecord](s.barPath(symbol, year))
		if err != nil {
			// No file for this year.
			continue
		}
		for _, r := range records {
			date := time.UnixMilli(r.Timestamp).UTC().Format("2006-01-02")
			if date < start || date > end {
				continue
			}
			bars = append(bars, domain.Bar{
				Date:   date,
				Open:   r.Open,
				Close:  r.Close,
				High:   r.High,
				Low:    r.Low,
				Amount: r.Amount,
			})
		}
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Date < bars[j].Date })
	return bars, nil
}

// barPath returns the archive path for one symbol-year.
func (s *ArchiveStore) barPath(symbol string, year int) string {
	return filepath.Join(s.DataDir, "cn", "daily", symbol, fmt.Sprintf("%d.parquet", year))
}

func writeParquetFile[T any](path string, records []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, records)
}

func readParquetFile[T any](path string) ([]T, error) {
	return parquet.ReadFile[T](path)
}

// mergeBarRecords deduplicates records by timestamp, preferring incoming over
// existing, sorted ascending.
func mergeBarRecords(existing, incoming []BarRecord) []BarRecord {
	seen := make(map[int64]BarRecord, len(existing)+len(incoming))
	for _, r := range existing {
		seen[r.Timestamp] = r
	}
	for _, r := range incoming {
		seen[r.Timestamp] = r
	}

	merged := make([]BarRecord, 0, len(seen))
	for _, r := range seen {
		merged = append(merged, r)
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Timestamp < merged[j].Timestamp
	})
	return merged
}
