package billing

import "time"

// DaysIn returns the number of days in the given month of year.
// Day 0 of the following month normalises to the last day of month.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// civil builds midnight UTC for a calendar date. Local midnight does not exist
// on days where daylight saving starts at 00:00, so dates are never built in
// the caller's location.
func civil(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DateOf returns t's calendar date, read in t's own location, as midnight UTC.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return civil(y, m, d)
}

// LastDayOfMonth returns the last day of t's month as midnight UTC.
func LastDayOfMonth(t time.Time) time.Time {
	y, m, _ := t.Date()
	return civil(y, m, DaysIn(y, m))
}

// AddMonthsClamped adds n months to t, keeping the day-of-month when the
// target month has it and clamping to the target month's last day otherwise.
// Unlike time.AddDate, Jan 31 + 1 month is Feb 28/29, never early March.
// PRE: n >= 0
// POST: Result lies in month(t)+n, at midnight UTC
func AddMonthsClamped(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	first := civil(y, m+time.Month(n), 1)
	return withDayClamped(first, d)
}

// withDayClamped returns the date in first's month with day min(day, last).
func withDayClamped(first time.Time, day int) time.Time {
	y, m, _ := first.Date()
	if last := DaysIn(y, m); day > last {
		day = last
	}
	return civil(y, m, day)
}
