package api

import (
	"time"

	"kfilter/internal/domain"
)

// KlineResponse is the payload of GET /api/kline/{symbol}.
type KlineResponse struct {
	Symbol          string       `json:"symbol"`
	Name            string       `json:"name"`
	Bars            []domain.Bar `json:"bars"`
	LastRefreshedAt time.Time    `json:"lastRefreshedAt,omitzero"`
}

// SymbolsResponse is the payload of GET /api/kline/symbols.
type SymbolsResponse struct {
	Symbols []domain.SymbolInfo `json:"symbols"`
}

// TradingDayResponse is the payload of the calendar endpoints.
type TradingDayResponse struct {
	Date string `json:"date"`
}
