// Package api exposes the K-line store and refresh subsystem over HTTP.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"kfilter/internal/calendar"
	"kfilter/internal/domain"
	"kfilter/internal/refresh"
	"kfilter/internal/store"
)

const (
	defaultHistoryDays = 120
	maxHistoryDays     = 500
)

// Server serves the K-line HTTP API.
type Server struct {
	store        store.HistoryStore
	service      *refresh.Service
	orchestrator *refresh.Orchestrator
	log          *slog.Logger
	now          func() time.Time
}

// NewServer creates a server over the given store, read service and
// orchestrator.
func NewServer(s store.HistoryStore, svc *refresh.Service, o *refresh.Orchestrator, log *slog.Logger) *Server {
	return &Server{
		store:        s,
		service:      svc,
		orchestrator: o,
		log:          log.With("component", "api"),
		now:          time.Now,
	}
}

// Handler returns an http.Handler with all routes registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/kline/refresh", s.handleRefresh)
	mux.HandleFunc("GET /api/kline/refresh/status", s.handleRefreshStatus)
	mux.HandleFunc("GET /api/kline/symbols", s.handleSymbols)
	mux.HandleFunc("GET /api/kline/{symbol}", s.handleKline)
	mux.HandleFunc("GET /api/calendar/prev", s.handlePrevTradingDay)
	mux.HandleFunc("GET /api/calendar/next", s.handleNextTradingDay)
	return corsMiddleware(mux)
}

// targetDate resolves the ?date= query param, defaulting to the most recent
// trading day on or before today.
func (s *Server) targetDate(r *http.Request) (time.Time, error) {
	if d := r.URL.Query().Get("date"); d != "" {
		return time.Parse("2006-01-02", d)
	}
	day := s.now()
	if calendar.IsNonTradingDay(day) {
		day = calendar.PreviousTradingDay(day)
	}
	return day, nil
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	target, err := s.targetDate(r)
	if err != nil {
		http.Error(w, "invalid date parameter", http.StatusBadRequest)
		return
	}

	job, started, err := s.orchestrator.Trigger(r.Context(), target)
	if err != nil {
		s.log.Error("triggering refresh", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if started {
		w.WriteHeader(http.StatusAccepted)
	}
	writeJSON(w, job)
}

func (s *Server) handleRefreshStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.orchestrator.Status())
}

func (s *Server) handleSymbols(w http.ResponseWriter, r *http.Request) {
	symbols, err := s.store.ListSymbols(r.Context())
	if err != nil {
		s.log.Error("listing symbols", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, SymbolsResponse{Symbols: symbols})
}

func (s *Server) handleKline(w http.ResponseWriter, r *http.Request) {
	symbol := r.PathValue("symbol")
	if symbol == "" {
		http.Error(w, "symbol required", http.StatusBadRequest)
		return
	}

	days := defaultHistoryDays
	if d := r.URL.Query().Get("days"); d != "" {
		n, err := strconv.Atoi(d)
		if err != nil || n < 1 {
			http.Error(w, "invalid days parameter", http.StatusBadRequest)
			return
		}
		days = min(n, maxHistoryDays)
	}
	force := r.URL.Query().Get("force") == "true"
	name := r.URL.Query().Get("name")

	target, err := s.targetDate(r)
	if err != nil {
		http.Error(w, "invalid date parameter", http.StatusBadRequest)
		return
	}

	// Weekly and monthly series are fetched on demand and never persisted.
	switch r.URL.Query().Get("period") {
	case "", "day":
	case "week":
		s.servePeriod(w, r, symbol, name, days, target, s.service.FetchWeekly)
		return
	case "month":
		s.servePeriod(w, r, symbol, name, days, target, s.service.FetchMonthly)
		return
	default:
		http.Error(w, "invalid period parameter", http.StatusBadRequest)
		return
	}

	h, err := s.service.GetOrRefresh(r.Context(), symbol, name, target, force)
	if err != nil {
		s.log.Error("reading kline", "symbol", symbol, "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	bars := refresh.LastBars(h, days)
	if bars == nil {
		bars = []domain.Bar{}
	}
	writeJSON(w, KlineResponse{
		Symbol:          h.Symbol,
		Name:            h.Name,
		Bars:            bars,
		LastRefreshedAt: h.LastRefreshedAt,
	})
}

func (s *Server) servePeriod(w http.ResponseWriter, r *http.Request, symbol, name string, days int, target time.Time, fetch func(context.Context, string, time.Time) ([]domain.Bar, error)) {
	bars, err := fetch(r.Context(), symbol, target)
	if err != nil {
		s.log.Error("fetching series", "symbol", symbol, "error", err)
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	if len(bars) > days {
		bars = bars[len(bars)-days:]
	}
	if bars == nil {
		bars = []domain.Bar{}
	}
	writeJSON(w, KlineResponse{Symbol: symbol, Name: name, Bars: bars})
}

func (s *Server) handlePrevTradingDay(w http.ResponseWriter, r *http.Request) {
	s.handleTradingDay(w, r, calendar.PreviousTradingDay)
}

func (s *Server) handleNextTradingDay(w http.ResponseWriter, r *http.Request) {
	s.handleTradingDay(w, r, calendar.NextTradingDay)
}

func (s *Server) handleTradingDay(w http.ResponseWriter, r *http.Request, step func(time.Time) time.Time) {
	from := s.now()
	if d := r.URL.Query().Get("date"); d != "" {
		parsed, err := time.Parse("2006-01-02", d)
		if err != nil {
			http.Error(w, "invalid date parameter", http.StatusBadRequest)
			return
		}
		from = parsed
	}
	writeJSON(w, TradingDayResponse{Date: step(from).Format("2006-01-02")})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("writing JSON response", "error", err)
	}
}
