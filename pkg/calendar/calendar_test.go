package calendar

import (
	"testing"
	"time"
)

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := ParseDate(s)
	if err != nil {
		t.Fatalf("parse %s: %v", s, err)
	}
	return d
}

func TestWeekendsAreNotTradingDays(t *testing.T) {
	d := mustDate(t, "2024-01-06") // Saturday
	for i := 0; i < 104; i++ {
		if !IsWeekend(d) {
			t.Fatalf("expected weekend: %s", FormatDate(d))
		}
		if IsTradingDay(d) {
			t.Fatalf("weekend reported as trading day: %s", FormatDate(d))
		}
		if d.Weekday() == time.Saturday {
			d = d.AddDate(0, 0, 1)
		} else {
			d = d.AddDate(0, 0, 6)
		}
	}
}

func TestObservedHolidays(t *testing.T) {
	holidays := []string{
		"2024-01-01", // New Year's Day
		"2024-01-15", // MLK Day
		"2024-02-19", // Presidents Day
		"2024-03-29", // Good Friday
		"2024-05-27", // Memorial Day
		"2024-06-19", // Juneteenth
		"2024-07-04",
		"2024-09-02", // Labor Day
		"2024-11-28", // Thanksgiving
		"2024-12-25",
		"2021-06-18", // Juneteenth 2021 fell on Saturday, observed Friday
		"2004-12-24", // Christmas 2004 fell on Saturday, observed Friday
		"2006-01-02", // New Year's 2006 fell on Sunday, observed Monday
		"2012-10-29", // hurricane Sandy closure
		"2001-09-11", // September 11 closure
	}
	for _, s := range holidays {
		if !IsHoliday(mustDate(t, s)) {
			t.Fatalf("expected holiday: %s", s)
		}
	}
}

func TestNewYearsSaturdayNotObserved(t *testing.T) {
	// 2022-01-01 was a Saturday; the preceding Friday stays open.
	if IsHoliday(mustDate(t, "2021-12-31")) {
		t.Fatalf("2021-12-31 should not be a holiday")
	}
	if !IsTradingDay(mustDate(t, "2021-12-31")) {
		t.Fatalf("2021-12-31 should be a trading day")
	}
}

func TestNextPreviousRoundTrip(t *testing.T) {
	// For a trading day d, next(previous(d)) == d.
	for _, s := range []string{"2024-07-03", "2024-01-16", "2023-11-24"} {
		d := mustDate(t, s)
		if !IsTradingDay(d) {
			t.Fatalf("fixture %s must be a trading day", s)
		}
		got := NextTradingDay(PreviousTradingDay(d))
		if !got.Equal(d) {
			t.Fatalf("round trip %s: got %s", s, FormatDate(got))
		}
	}
}

func TestPreviousTradingDaySkipsWeekendAndHoliday(t *testing.T) {
	// 2024-01-15 (MLK, Monday): previous trading day is Friday the 12th.
	got := PreviousTradingDay(mustDate(t, "2024-01-15"))
	if FormatDate(got) != "2024-01-12" {
		t.Fatalf("got %s", FormatDate(got))
	}
	// Sunday after a Friday holiday scans back to Thursday.
	got = PreviousTradingDay(mustDate(t, "2024-03-31")) // Good Friday 2024-03-29
	if FormatDate(got) != "2024-03-28" {
		t.Fatalf("got %s", FormatDate(got))
	}
}

func TestTradingDaysBetweenSingleDay(t *testing.T) {
	d := mustDate(t, "2024-07-03")
	got := TradingDaysBetween(d, d)
	if len(got) != 1 || !got[0].Equal(d) {
		t.Fatalf("expected [%s], got %v", FormatDate(d), got)
	}

	h := mustDate(t, "2024-07-04")
	if got := TradingDaysBetween(h, h); len(got) != 0 {
		t.Fatalf("expected empty, got %v", got)
	}
}

func TestTradingDaysBetweenRange(t *testing.T) {
	// 2024-07-01 .. 2024-07-08 excludes July 4th and the weekend.
	got := TradingDaysBetween(mustDate(t, "2024-07-01"), mustDate(t, "2024-07-08"))
	want := []string{"2024-07-01", "2024-07-02", "2024-07-03", "2024-07-05", "2024-07-08"}
	if len(got) != len(want) {
		t.Fatalf("expected %d days, got %d", len(want), len(got))
	}
	for i, s := range want {
		if FormatDate(got[i]) != s {
			t.Fatalf("day %d: expected %s, got %s", i, s, FormatDate(got[i]))
		}
	}
}

func TestPreviousBusinessDays(t *testing.T) {
	got := PreviousBusinessDays(mustDate(t, "2024-07-08"), 3)
	want := []string{"2024-07-05", "2024-07-03", "2024-07-02"}
	for i, s := range want {
		if FormatDate(got[i]) != s {
			t.Fatalf("day %d: expected %s, got %s", i, s, FormatDate(got[i]))
		}
	}
}

func TestMostRecentTradingDay(t *testing.T) {
	if got := MostRecentTradingDay(mustDate(t, "2024-07-06")); FormatDate(got) != "2024-07-05" {
		t.Fatalf("got %s", FormatDate(got))
	}
	if got := MostRecentTradingDay(mustDate(t, "2024-07-05")); FormatDate(got) != "2024-07-05" {
		t.Fatalf("got %s", FormatDate(got))
	}
}

func TestBusinessDayYearAgo(t *testing.T) {
	// 2024-06-16 minus a year is 2023-06-16, a Friday trading day.
	if got := BusinessDayYearAgo(mustDate(t, "2024-06-16")); FormatDate(got) != "2023-06-16" {
		t.Fatalf("got %s", FormatDate(got))
	}
	// 2024-06-17 minus a year lands on a Saturday; walk back to Friday.
	if got := BusinessDayYearAgo(mustDate(t, "2024-06-17")); FormatDate(got) != "2023-06-16" {
		t.Fatalf("got %s", FormatDate(got))
	}
}
