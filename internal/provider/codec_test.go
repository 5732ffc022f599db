package provider

import (
	"errors"
	"testing"

	"kfilter/internal/domain"
)

func TestExtractPayload(t *testing.T) {
	got, err := extractPayload([]byte(`xyz={"a":1};`))
	if err != nil {
		t.Fatalf("extractPayload: %v", err)
	}
	if string(got) != `{"a":1}` {
		t.Errorf("extractPayload = %q, want %q", got, `{"a":1}`)
	}

	// Trailing whitespace after the semicolon.
	got, err = extractPayload([]byte("kline_dayqfq={\"data\":{}};\n"))
	if err != nil {
		t.Fatalf("extractPayload with trailing newline: %v", err)
	}
	if string(got) != `{"data":{}}` {
		t.Errorf("extractPayload = %q, want %q", got, `{"data":{}}`)
	}
}

func TestExtractPayloadMalformed(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"no marker", `{"a":1}`},
		{"empty", ""},
		{"html error page", `<html><body>502 Bad Gateway</body></html>`},
		{"invalid json after marker", `v={not json};`},
	}
	for _, tc := range cases {
		if _, err := extractPayload([]byte(tc.raw)); !errors.Is(err, ErrMalformedPayload) {
			t.Errorf("%s: extractPayload(%q) error = %v, want ErrMalformedPayload", tc.name, tc.raw, err)
		}
	}
}

func TestParsePayloadAdjustmentFallback(t *testing.T) {
	// Payload carries only the raw "day" series; a qfq request must fall
	// back through hfqday to day.
	raw := []byte(`v={"data":{"sh600519":{"day":[["2024-01-02","1688.00","1685.01","1699.00","1661.10","5216000"]]}}};`)

	bars, err := parsePayload(raw, "sh600519", domain.PeriodDay, domain.AdjustQfq)
	if err != nil {
		t.Fatalf("parsePayload: %v", err)
	}
	if len(bars) != 1 {
		t.Fatalf("got %d bars, want 1", len(bars))
	}
	b := bars[0]
	if b.Date != "2024-01-02" {
		t.Errorf("Date = %q, want 2024-01-02", b.Date)
	}
	if b.Open != 1688.00 || b.Close != 1685.01 || b.High != 1699.00 || b.Low != 1661.10 {
		t.Errorf("OHLC = %v/%v/%v/%v, want 1688/1685.01/1699/1661.10", b.Open, b.Close, b.High, b.Low)
	}
	if b.Amount != 5216000 {
		t.Errorf("Amount = %v, want 5216000", b.Amount)
	}
}

func TestParsePayloadPrefersRequestedVariant(t *testing.T) {
	raw := []byte(`v={"data":{"sz000001":{
		"day":[["2024-01-02","1","1","1","1","1"]],
		"qfqday":[["2024-01-02","2","2","2","2","2"]]
	}}};`)

	bars, err := parsePayload(raw, "sz000001", domain.PeriodDay, domain.AdjustQfq)
	if err != nil {
		t.Fatalf("parsePayload: %v", err)
	}
	if len(bars) != 1 || bars[0].Open != 2 {
		t.Errorf("expected qfqday series (Open=2), got %+v", bars)
	}
}

func TestParsePayloadShortAndMixedRows(t *testing.T) {
	// One short row (dropped), one row with numeric literals instead of
	// strings, one row with extra trailing fields (ignored).
	raw := []byte(`v={"data":{"sh600000":{"day":[
		["2024-01-02","10.0"],
		["2024-01-03",10.1,10.2,10.3,10.0,12345.6],
		["2024-01-04","10.2","10.4","10.5","10.1","23456.7","extra","fields"]
	]}}};`)

	bars, err := parsePayload(raw, "sh600000", domain.PeriodDay, domain.AdjustNone)
	if err != nil {
		t.Fatalf("parsePayload: %v", err)
	}
	if len(bars) != 2 {
		t.Fatalf("got %d bars, want 2 (short row dropped)", len(bars))
	}
	if bars[0].Date != "2024-01-03" || bars[0].Open != 10.1 {
		t.Errorf("numeric row decoded as %+v", bars[0])
	}
	if bars[1].Date != "2024-01-04" || bars[1].Amount != 23456.7 {
		t.Errorf("row with trailing fields decoded as %+v", bars[1])
	}
}

func TestParsePayloadUnknownSymbol(t *testing.T) {
	raw := []byte(`v={"data":{"sh600519":{"day":[]}}};`)
	bars, err := parsePayload(raw, "sz300750", domain.PeriodDay, domain.AdjustNone)
	if err != nil {
		t.Fatalf("parsePayload: %v", err)
	}
	if len(bars) != 0 {
		t.Errorf("got %d bars for unknown symbol, want 0", len(bars))
	}
}

func TestDedupeFilterLastWins(t *testing.T) {
	bars := []domain.Bar{
		{Date: "2024-01-02", Close: 1.0},
		{Date: "2024-01-03", Close: 2.0},
		{Date: "2024-01-02", Close: 9.0}, // later chunk overwrites
	}
	got := DedupeFilter(bars, "2024-01-01", "2024-12-31")
	if len(got) != 2 {
		t.Fatalf("got %d bars, want 2", len(got))
	}
	for _, b := range got {
		if b.Date == "2024-01-02" && b.Close != 9.0 {
			t.Errorf("duplicate date kept Close=%v, want last occurrence 9.0", b.Close)
		}
	}
}

func TestDedupeFilterRangeInclusive(t *testing.T) {
	bars := []domain.Bar{
		{Date: "2024-01-01"},
		{Date: "2024-01-02"},
		{Date: "2024-06-15"},
		{Date: "2024-12-31"},
		{Date: "2025-01-01"},
	}
	got := DedupeFilter(bars, "2024-01-02", "2024-12-31")
	if len(got) != 3 {
		t.Fatalf("got %d bars, want 3", len(got))
	}
	if got[0].Date != "2024-01-02" {
		t.Errorf("start boundary bar missing, first = %q", got[0].Date)
	}
	if got[len(got)-1].Date != "2024-12-31" {
		t.Errorf("end boundary bar missing, last = %q", got[len(got)-1].Date)
	}
}
