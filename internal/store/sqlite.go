package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.

	"kfilter/internal/domain"
)

// Compile-time interface check.
var _ HistoryStore = (*SQLiteStore)(nil)

// SQLiteStore implements HistoryStore backed by a SQLite database. Daily bars
// are stored wholesale as a JSON column: a refresh always replaces the full
// requested range, so there is no row-per-bar merge to do, and the single
// upsert statement gives per-symbol atomicity for free.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath, switches it
// to WAL mode, and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}

	// WAL mode keeps status/read queries responsive while refresh workers write.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS symbol_history (
		symbol            TEXT PRIMARY KEY,
		name              TEXT NOT NULL DEFAULT '',
		daily             TEXT NOT NULL DEFAULT '[]',
		last_refreshed_at INTEGER NOT NULL DEFAULT 0,
		created_at        INTEGER NOT NULL DEFAULT 0
	)`)
	return err
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Get returns the history for a symbol, or (nil, nil) when absent.
func (s *SQLiteStore) Get(ctx context.Context, symbol string) (*domain.SymbolHistory, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT symbol, name, daily, last_refreshed_at, created_at
		 FROM symbol_history WHERE symbol = ?`, symbol)

	var (
		h             domain.SymbolHistory
		dailyJSON     string
		lastRefreshed int64
		created       int64
	)
	err := row.Scan(&h.Symbol, &h.Name, &dailyJSON, &lastRefreshed, &created)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", symbol, err)
	}

	if err := json.Unmarshal([]byte(dailyJSON), &h.Daily); err != nil {
		return nil, fmt.Errorf("decoding bars for %s: %w", symbol, err)
	}
	if lastRefreshed > 0 {
		h.LastRefreshedAt = time.Unix(lastRefreshed, 0)
	}
	if created > 0 {
		h.CreatedAt = time.Unix(created, 0)
	}
	return &h, nil
}

// Upsert inserts or replaces the history for h.Symbol in a single statement.
// An empty incoming name keeps the stored one; created_at survives updates.
func (s *SQLiteStore) Upsert(ctx context.Context, h *domain.SymbolHistory) error {
	dailyJSON, err := json.Marshal(h.Daily)
	if err != nil {
		return fmt.Errorf("encoding bars for %s: %w", h.Symbol, err)
	}

	createdAt := h.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO symbol_history (symbol, name, daily, last_refreshed_at, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(symbol) DO UPDATE SET
			name              = CASE WHEN excluded.name != '' THEN excluded.name ELSE name END,
			daily             = excluded.daily,
			last_refreshed_at = excluded.last_refreshed_at`,
		h.Symbol, h.Name, string(dailyJSON), h.LastRefreshedAt.Unix(), createdAt.Unix())
	if err != nil {
		return fmt.Errorf("upserting %s: %w", h.Symbol, err)
	}
	return nil
}

// ListSymbols returns all known symbols ordered by symbol code.
func (s *SQLiteStore) ListSymbols(ctx context.Context) ([]domain.SymbolInfo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT symbol, name FROM symbol_history ORDER BY symbol`)
	if err != nil {
		return nil, fmt.Errorf("listing symbols: %w", err)
	}
	defer rows.Close()

	var infos []domain.SymbolInfo
	for rows.Next() {
		var info domain.SymbolInfo
		if err := rows.Scan(&info.Symbol, &info.Name); err != nil {
			return nil, fmt.Errorf("scanning symbol row: %w", err)
		}
		infos = append(infos, info)
	}
	return infos, rows.Err()
}
