// Package calendar holds the date-only helpers used by the reservation ledger.
// Every value it returns is midnight UTC of a calendar day.
package calendar

import (
	"fmt"
	"time"
)

const (
	DateLayout  = "2006-01-02"
	MonthLayout = "2006-01"

	secondsPerDay = 24 * 60 * 60
)

// Day truncates t to its calendar day. The day is read in t's own location so
// that two timestamps on the same local day map to the same reservation day.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// AddDays moves a day forward by n whole days.
func AddDays(day time.Time, n int) time.Time {
	return Day(day).AddDate(0, 0, n)
}

// Range enumerates every day in [start, end], both ends included.
// It returns nil when end is before start.
func Range(start, end time.Time) []time.Time {
	from, to := Day(start), Day(end)
	if to.Before(from) {
		return nil
	}

	days := make([]time.Time, 0, DaysBetween(from, to)+1)
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

// DaysBetween counts whole days from start to end (end - start). It works on
// Unix seconds so ranges beyond time.Duration's ~292 years stay exact.
func DaysBetween(start, end time.Time) int {
	return int((Day(end).Unix() - Day(start).Unix()) / secondsPerDay)
}

// MonthBounds returns the first and last day of the month containing t.
func MonthBounds(t time.Time) (time.Time, time.Time) {
	y, m, _ := t.Date()
	first := time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
	return first, first.AddDate(0, 1, -1)
}

// DaysInMonth returns the number of days in the month containing t.
func DaysInMonth(t time.Time) int {
	_, last := MonthBounds(t)
	return last.Day()
}

// MonthsSpanned lists the first day of each month touched by [start, end].
func MonthsSpanned(start, end time.Time) []time.Time {
	from, _ := MonthBounds(start)
	to, _ := MonthBounds(end)
	if to.Before(from) {
		return nil
	}

	var months []time.Time
	for m := from; !m.After(to); m = m.AddDate(0, 1, 0) {
		months = append(months, m)
	}
	return months
}

// ParseDate parses a yyyy-mm-dd string into a calendar day.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected yyyy-mm-dd", s)
	}
	return t, nil
}

// ParseMonth accepts yyyy-mm or a full yyyy-mm-dd date and returns the first
// day of that month.
func ParseMonth(s string) (time.Time, error) {
	if t, err := time.Parse(MonthLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid month %q, expected yyyy-mm", s)
	}
	first, _ := MonthBounds(t)
	return first, nil
}
