package calendar

import "time"

// US market holidays (NYSE/NASDAQ). Fixed-date holidays are shifted per
// the exchange observance convention: Sunday holidays are observed the
// following Monday, Saturday holidays the preceding Friday. New Year's
// Day falling on a Saturday is not observed at all (NYSE Rule 7.2).

// unscheduledClosures lists market closures that cannot be derived from
// the holiday rules: September 11 attacks, hurricane Sandy and national
// days of mourning.
var unscheduledClosures = map[string]struct{}{
	"2001-09-11": {},
	"2001-09-12": {},
	"2001-09-13": {},
	"2001-09-14": {},
	"2004-06-11": {}, // mourning, President Reagan
	"2007-01-02": {}, // mourning, President Ford
	"2012-10-29": {}, // hurricane Sandy
	"2012-10-30": {},
	"2018-12-05": {}, // mourning, President G.H.W. Bush
}

// marketHolidays returns all observed holiday dates for a year,
// UTC-normalized. The set is small (about ten entries) so callers just
// scan it.
func marketHolidays(year int) []time.Time {
	days := []time.Time{
		observedSkipSaturday(time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)),
		nthWeekday(year, time.January, time.Monday, 3),  // MLK Day
		nthWeekday(year, time.February, time.Monday, 3), // Presidents Day
		goodFriday(year),
		lastWeekday(year, time.May, time.Monday), // Memorial Day
		observed(time.Date(year, time.July, 4, 0, 0, 0, 0, time.UTC)),
		nthWeekday(year, time.September, time.Monday, 1),   // Labor Day
		nthWeekday(year, time.November, time.Thursday, 4),  // Thanksgiving
		observed(time.Date(year, time.December, 25, 0, 0, 0, 0, time.UTC)),
	}
	if year >= 2021 {
		// Juneteenth, first observed by the exchanges in 2021
		days = append(days, observed(time.Date(year, time.June, 19, 0, 0, 0, 0, time.UTC)))
	}
	for s := range unscheduledClosures {
		if d, err := ParseDate(s); err == nil && d.Year() == year {
			days = append(days, d)
		}
	}
	out := days[:0]
	for _, d := range days {
		if !d.IsZero() {
			out = append(out, d)
		}
	}
	return out
}

// observed shifts a fixed-date holiday off the weekend: Saturday moves
// to Friday, Sunday moves to Monday.
func observed(t time.Time) time.Time {
	switch t.Weekday() {
	case time.Saturday:
		return t.AddDate(0, 0, -1)
	case time.Sunday:
		return t.AddDate(0, 0, 1)
	}
	return t
}

// observedSkipSaturday is the New Year's Day variant: a Saturday
// holiday is dropped rather than observed the prior Friday, since that
// Friday belongs to the previous year.
func observedSkipSaturday(t time.Time) time.Time {
	switch t.Weekday() {
	case time.Saturday:
		return time.Time{}
	case time.Sunday:
		return t.AddDate(0, 0, 1)
	}
	return t
}

// nthWeekday returns the nth given weekday of a month.
func nthWeekday(year int, month time.Month, wd time.Weekday, n int) time.Time {
	d := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	for d.Weekday() != wd {
		d = d.AddDate(0, 0, 1)
	}
	return d.AddDate(0, 0, 7*(n-1))
}

// lastWeekday returns the last given weekday of a month.
func lastWeekday(year int, month time.Month, wd time.Weekday) time.Time {
	d := time.Date(year, month+1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
	for d.Weekday() != wd {
		d = d.AddDate(0, 0, -1)
	}
	return d
}

// goodFriday is two days before Easter Sunday, computed with the
// Meeus/Jones/Butcher Gregorian algorithm.
func goodFriday(year int) time.Time {
	a := year % 19
	b := year / 100
	c := year % 100
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451
	month := (h + l - 7*m + 114) / 31
	day := (h+l-7*m+114)%31 + 1
	easter := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	return easter.AddDate(0, 0, -2)
}
