package calendar

import (
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestIsNonTradingDay(t *testing.T) {
	tests := []struct {
		name string
		t    time.Time
		want bool
	}{
		{"saturday", date(2024, time.June, 8), true},
		{"sunday", date(2024, time.June, 9), true},
		{"regular monday", date(2024, time.June, 10), false},
		{"regular friday", date(2024, time.June, 14), false},
		{"new year 2024", date(2024, time.January, 1), true},
		{"new year 2031", date(2031, time.January, 1), true},
		{"labour day", date(2024, time.May, 1), true},
		{"national day", date(2024, time.October, 1), true},
		{"day after national day (weekday)", date(2024, time.October, 2), false},
		{"jan 2", date(2025, time.January, 2), false},
	}

	for _, tt := range tests {
		if got := IsNonTradingDay(tt.t); got != tt.want {
			t.Errorf("%s: IsNonTradingDay(%s) = %v, want %v", tt.name, tt.t.Format("2006-01-02"), got, tt.want)
		}
	}
}

func TestPreviousTradingDay(t *testing.T) {
	// Monday 2024-06-10 → previous trading day is Friday 2024-06-07.
	got := PreviousTradingDay(date(2024, time.June, 10))
	if want := date(2024, time.June, 7); !got.Equal(want) {
		t.Errorf("PreviousTradingDay(Mon) = %s, want %s", got.Format("2006-01-02"), want.Format("2006-01-02"))
	}

	// 2024-05-02 (Thursday) → skips May 1 holiday to Apr 30 (Tuesday).
	got = PreviousTradingDay(date(2024, time.May, 2))
	if want := date(2024, time.April, 30); !got.Equal(want) {
		t.Errorf("PreviousTradingDay(May 2) = %s, want %s", got.Format("2006-01-02"), want.Format("2006-01-02"))
	}

	// 2025-01-02 → skips Jan 1 holiday to Dec 31 2024.
	got = PreviousTradingDay(date(2025, time.January, 2))
	if want := date(2024, time.December, 31); !got.Equal(want) {
		t.Errorf("PreviousTradingDay(Jan 2) = %s, want %s", got.Format("2006-01-02"), want.Format("2006-01-02"))
	}
}

func TestNextTradingDay(t *testing.T) {
	// Friday 2024-06-07 → next trading day is Monday 2024-06-10.
	got := NextTradingDay(date(2024, time.June, 7))
	if want := date(2024, time.June, 10); !got.Equal(want) {
		t.Errorf("NextTradingDay(Fri) = %s, want %s", got.Format("2006-01-02"), want.Format("2006-01-02"))
	}

	// 2024-04-30 (Tuesday) → skips May 1 holiday to May 2.
	got = NextTradingDay(date(2024, time.April, 30))
	if want := date(2024, time.May, 2); !got.Equal(want) {
		t.Errorf("NextTradingDay(Apr 30) = %s, want %s", got.Format("2006-01-02"), want.Format("2006-01-02"))
	}
}

func TestTradingDayStepsAreStrict(t *testing.T) {
	// Walk a range of dates and verify both helpers never return a
	// non-trading day and always move strictly in the requested direction.
	for d := date(2023, time.December, 25); d.Before(date(2024, time.January, 10)); d = d.AddDate(0, 0, 1) {
		prev := PreviousTradingDay(d)
		if !prev.Before(d) {
			t.Errorf("PreviousTradingDay(%s) = %s, not strictly before", d.Format("2006-01-02"), prev.Format("2006-01-02"))
		}
		if IsNonTradingDay(prev) {
			t.Errorf("PreviousTradingDay(%s) = %s is a non-trading day", d.Format("2006-01-02"), prev.Format("2006-01-02"))
		}

		next := NextTradingDay(d)
		if !next.After(d) {
			t.Errorf("NextTradingDay(%s) = %s, not strictly after", d.Format("2006-01-02"), next.Format("2006-01-02"))
		}
		if IsNonTradingDay(next) {
			t.Errorf("NextTradingDay(%s) = %s is a non-trading day", d.Format("2006-01-02"), next.Format("2006-01-02"))
		}
	}
}
