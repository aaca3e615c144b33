// Package calendar provides the date arithmetic shared by the cycle,
// deadline and rate-limit rules. Every comparison is made on local
// calendar dates in the location of the reference time, so wall-clock
// offsets and DST transitions never shift a day boundary.
package calendar

import "time"

// DateLayout is the YYYY-MM-DD form used for stored calendar dates.
const DateLayout = "2006-01-02"

const secondsPerDay = 24 * 60 * 60

// DateOnly returns local midnight of t's calendar date.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// DaysBetween returns the number of calendar days from a to b, evaluated
// in b's location. It is negative when a falls on a later date than b.
func DaysBetween(a, b time.Time) int {
	a = a.In(b.Location())
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	// Both dates are projected to UTC midnight so every day is 86400s
	// long. Unix seconds do not saturate the way time.Duration does.
	from := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC).Unix()
	to := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC).Unix()
	return int((to - from) / secondsPerDay)
}

// SameDay reports whether a and b share a calendar date in b's location.
func SameDay(a, b time.Time) bool {
	return DaysBetween(a, b) == 0
}

// ISOWeek returns the ISO-8601 week-numbering year and week of t.
func ISOWeek(t time.Time) (year, week int) {
	return t.ISOWeek()
}

// SameISOWeek reports whether a and b fall in the same ISO week, judged
// in b's location. Comparing the (year, week) pair keeps week 1 of one
// year distinct from week 1 of the next.
func SameISOWeek(a, b time.Time) bool {
	ay, aw := ISOWeek(a.In(b.Location()))
	by, bw := ISOWeek(b)
	return ay == by && aw == bw
}

// SameMonth reports whether a and b share year and month in b's location.
func SameMonth(a, b time.Time) bool {
	a = a.In(b.Location())
	return a.Year() == b.Year() && a.Month() == b.Month()
}

// ISOWeekday returns 1 for Monday through 7 for Sunday.
func ISOWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

// DaysInMonth returns the number of days in the given month.
func DaysInMonth(year int, month time.Month) int {
	// Day 0 of the following month normalizes to the last day of month.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// QuarterOf returns the quarter (1-4) containing month.
func QuarterOf(month time.Month) int {
	return (int(month)-1)/3 + 1
}

// FormatDate renders t's local calendar date as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}
