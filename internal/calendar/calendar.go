// Package calendar provides trading-day helpers for the China A-share market.
//
// The holiday rule is deliberately simple: weekends plus the three fixed-date
// holidays (New Year's Day, Labour Day, National Day). Lunar holidays and
// exchange-announced closures are not modeled.
package calendar

import "time"

// IsNonTradingDay reports whether the given date falls on a weekend or one of
// the fixed calendar holidays (Jan 1, May 1, Oct 1).
func IsNonTradingDay(t time.Time) bool {
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return true
	}
	switch {
	case t.Month() == time.January && t.Day() == 1:
		return true
	case t.Month() == time.May && t.Day() == 1:
		return true
	case t.Month() == time.October && t.Day() == 1:
		return true
	}
	return false
}

// PreviousTradingDay returns the first trading day strictly before t.
func PreviousTradingDay(t time.Time) time.Time {
	d := t.AddDate(0, 0, -1)
	for IsNonTradingDay(d) {
		d = d.AddDate(0, 0, -1)
	}
	return d
}

// NextTradingDay returns the first trading day strictly after t.
func NextTradingDay(t time.Time) time.Time {
	d := t.AddDate(0, 0, 1)
	for IsNonTradingDay(d) {
		d = d.AddDate(0, 0, 1)
	}
	return d
}
