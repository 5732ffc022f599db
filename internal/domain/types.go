// Package domain defines the core data types shared across the kfilter
// platform: price bars, per-symbol history aggregates, and refresh job state.
package domain

import "time"

// Period identifies the bar interval requested from the upstream provider.
type Period string

const (
	PeriodDay   Period = "day"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
)

// Adjust identifies the price adjustment variant.
type Adjust string

const (
	AdjustNone Adjust = ""    // raw prices
	AdjustQfq  Adjust = "qfq" // forward-adjusted
	AdjustHfq  Adjust = "hfq" // backward-adjusted
)

// SeriesKeys returns the provider payload keys to try for this period and
// adjustment, in priority order. The provider nests each series under
// "{adjust}{period}" (e.g. "qfqday"); when the requested variant is absent
// the fallback order is forward-adjusted, backward-adjusted, raw.
func SeriesKeys(period Period, adjust Adjust) []string {
	p := string(period)
	candidates := []string{
		string(adjust) + p,
		string(AdjustQfq) + p,
		string(AdjustHfq) + p,
		p,
	}
	keys := make([]string, 0, len(candidates))
	seen := make(map[string]bool, len(candidates))
	for _, k := range candidates {
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	return keys
}

// Bar is one period's price record for one symbol. Date is the calendar day
// in "YYYY-MM-DD" form; for a given symbol and period there is at most one
// Bar per date.
type Bar struct {
	Date   string  `json:"date"`
	Open   float64 `json:"open"`
	Close  float64 `json:"close"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Amount float64 `json:"amount"` // traded value
}

// SymbolHistory is the per-symbol aggregate persisted by the refresh
// subsystem. Daily bars are ordered ascending by date and replaced wholesale
// on every successful refresh.
type SymbolHistory struct {
	Symbol          string    `json:"symbol"` // exchange-prefixed, e.g. "sh600519"
	Name            string    `json:"name"`
	Daily           []Bar     `json:"daily"`
	LastRefreshedAt time.Time `json:"lastRefreshedAt"`
	CreatedAt       time.Time `json:"createdAt"`
}

// SymbolInfo identifies one known symbol with its best-known display name.
type SymbolInfo struct {
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
}

// RefreshJob is a point-in-time snapshot of the batch refresh state. The
// final counters of a finished job remain readable until the next trigger.
type RefreshJob struct {
	Running   bool      `json:"running"`
	Total     int       `json:"total"`
	Completed int       `json:"completed"`
	Failed    int       `json:"failed"`
	StartedAt time.Time `json:"startedAt"`
}
