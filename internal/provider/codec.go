package provider

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"kfilter/internal/domain"
)

// ErrMalformedPayload is returned when a provider response does not match the
// expected `varname={...};` wrapper or its JSON body cannot be decoded.
// Callers treat it like a transport failure for the affected chunk.
var ErrMalformedPayload = errors.New("malformed provider payload")

// extractPayload strips the JavaScript variable-assignment wrapper from a
// provider response body and returns the embedded JSON. The extraction rule:
// locate the first "={" marker, take everything from the "{" onward, and trim
// a trailing ";" plus surrounding whitespace.
func extractPayload(raw []byte) ([]byte, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrMalformedPayload)
	}
	// Upstream substitutes HTML error pages for the pseudo-JSON under load.
	if trimmed[0] == '<' {
		return nil, fmt.Errorf("%w: got markup instead of JSON", ErrMalformedPayload)
	}

	idx := bytes.Index(trimmed, []byte("={"))
	if idx < 0 {
		return nil, fmt.Errorf("%w: assignment marker not found", ErrMalformedPayload)
	}

	body := bytes.TrimSpace(trimmed[idx+1:])
	body = bytes.TrimSuffix(body, []byte(";"))
	body = bytes.TrimSpace(body)

	if !json.Valid(body) {
		return nil, fmt.Errorf("%w: invalid JSON after wrapper", ErrMalformedPayload)
	}
	return body, nil
}

// klinePayload mirrors the provider's response shape: per-symbol series keyed
// by "{adjust}{period}", each series a list of fixed-length rows.
type klinePayload struct {
	Data map[string]map[string]json.RawMessage `json:"data"`
}

// flexFloat decodes a JSON value that may be either a number or a quoted
// numeric string; the provider mixes both within a single row.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	var num float64
	if err := json.Unmarshal(data, &num); err == nil {
		*f = flexFloat(num)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("cannot unmarshal %s into float64", string(data))
	}
	if s == "" {
		*f = 0
		return nil
	}
	num, err := strconv.ParseFloat(s, 64)
	if err != nil {
		*f = 0
		return nil
	}
	*f = flexFloat(num)
	return nil
}

// parsePayload decodes a wrapped provider response for one symbol and returns
// the bars of the best-matching series for the requested period/adjustment.
// Rows with fewer than six elements are dropped.
func parsePayload(raw []byte, symbol string, period domain.Period, adjust domain.Adjust) ([]domain.Bar, error) {
	body, err := extractPayload(raw)
	if err != nil {
		return nil, err
	}

	var payload klinePayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	series, ok := payload.Data[symbol]
	if !ok {
		return nil, nil
	}

	for _, key := range domain.SeriesKeys(period, adjust) {
		rawRows, ok := series[key]
		if !ok {
			continue
		}
		var rows [][]json.RawMessage
		if err := json.Unmarshal(rawRows, &rows); err != nil {
			return nil, fmt.Errorf("%w: series %q: %v", ErrMalformedPayload, key, err)
		}
		return decodeRows(rows), nil
	}
	return nil, nil
}

// decodeRows converts raw provider rows into bars. Each row is
// [date, open, close, high, low, amount, ...]; trailing fields are ignored
// and short rows skipped.
func decodeRows(rows [][]json.RawMessage) []domain.Bar {
	bars := make([]domain.Bar, 0, len(rows))
	for _, row := range rows {
		if len(row) < 6 {
			continue
		}
		var date string
		if err := json.Unmarshal(row[0], &date); err != nil {
			continue
		}
		var vals [5]flexFloat
		bad := false
		for i := 0; i < 5; i++ {
			if err := json.Unmarshal(row[i+1], &vals[i]); err != nil {
				bad = true
				break
			}
		}
		if bad {
			continue
		}
		bars = append(bars, domain.Bar{
			Date:   date,
			Open:   float64(vals[0]),
			Close:  float64(vals[1]),
			High:   float64(vals[2]),
			Low:    float64(vals[3]),
			Amount: float64(vals[4]),
		})
	}
	return bars
}

// DedupeFilter collapses bars sharing a date, keeping the last occurrence in
// input order, and drops bars outside [start, end] inclusive. Dates compare
// lexicographically ("YYYY-MM-DD"). The result preserves first-occurrence
// order, not sorted order; callers sort after merging chunks.
func DedupeFilter(bars []domain.Bar, start, end string) []domain.Bar {
	byDate := make(map[string]int, len(bars))
	out := make([]domain.Bar, 0, len(bars))
	for _, b := range bars {
		if b.Date < start || b.Date > end {
			continue
		}
		if i, ok := byDate[b.Date]; ok {
			out[i] = b
			continue
		}
		byDate[b.Date] = len(out)
		out = append(out, b)
	}
	return out
}
