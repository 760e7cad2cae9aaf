package calendar

import (
	"fmt"
	"time"
)

// DateLayout is the canonical key format for daily records.
const DateLayout = "2006-01-02"

// Normalize truncates a time to midnight UTC so dates compare by day.
func Normalize(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD string into a UTC-normalized date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return Normalize(t), nil
}

// FormatDate renders a date as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// IsWeekend reports whether the date falls on Saturday or Sunday.
func IsWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// IsHoliday reports whether the date is an observed US market holiday.
func IsHoliday(t time.Time) bool {
	t = Normalize(t)
	for _, h := range marketHolidays(t.Year()) {
		if h.Equal(t) {
			return true
		}
	}
	return false
}

// IsTradingDay reports whether the market is open on the given date.
func IsTradingDay(t time.Time) bool {
	return !IsWeekend(t) && !IsHoliday(t)
}

// NextTradingDay returns the first trading day strictly after t.
func NextTradingDay(t time.Time) time.Time {
	d := Normalize(t).AddDate(0, 0, 1)
	for !IsTradingDay(d) {
		d = d.AddDate(0, 0, 1)
	}
	return d
}

// PreviousTradingDay returns the last trading day strictly before t.
func PreviousTradingDay(t time.Time) time.Time {
	d := Normalize(t).AddDate(0, 0, -1)
	for !IsTradingDay(d) {
		d = d.AddDate(0, 0, -1)
	}
	return d
}

// MostRecentTradingDay returns t itself when it is a trading day, else
// the last trading day before it.
func MostRecentTradingDay(t time.Time) time.Time {
	d := Normalize(t)
	if IsTradingDay(d) {
		return d
	}
	return PreviousTradingDay(d)
}

// TradingDaysBetween returns all trading days in [start, end], ascending.
// Returns an empty slice when start is after end.
func TradingDaysBetween(start, end time.Time) []time.Time {
	start = Normalize(start)
	end = Normalize(end)
	out := make([]time.Time, 0, 32)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if IsTradingDay(d) {
			out = append(out, d)
		}
	}
	return out
}

// PreviousBusinessDay maps a date to the last trading day strictly before
// it. Lagging economic series (treasury yields, credit spreads) publish
// with a one-business-day delay, so this is the latest date for which a
// value is expected to exist.
func PreviousBusinessDay(t time.Time) time.Time {
	return PreviousTradingDay(t)
}

// PreviousBusinessDays returns the n most recent business days before t,
// most recent first.
func PreviousBusinessDays(t time.Time, n int) []time.Time {
	out := make([]time.Time, 0, n)
	d := Normalize(t)
	for i := 0; i < n; i++ {
		d = PreviousBusinessDay(d)
		out = append(out, d)
	}
	return out
}

// BusinessDayYearAgo resolves "one year before t" to an actual trading
// day, walking back from the naive anniversary when it lands on a
// weekend or holiday. Used for year-over-year comparisons.
func BusinessDayYearAgo(t time.Time) time.Time {
	return MostRecentTradingDay(Normalize(t).AddDate(-1, 0, 0))
}
