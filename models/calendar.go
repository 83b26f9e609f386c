package models

import "time"

// DateOf returns t's calendar date in loc, as midnight UTC. All stored work/leave dates use this form.
func DateOf(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// TruncateDate drops the clock part of an already date-like value.
func TruncateDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// MonthRange returns the first and last day of the month.
func MonthRange(year int, month time.Month) (time.Time, time.Time) {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return first, first.AddDate(0, 1, -1)
}

func DaysInMonth(year int, month time.Month) int {
	_, last := MonthRange(year, month)
	return last.Day()
}

// WorkingDays counts the days of the month that are not the rest weekday.
func WorkingDays(year int, month time.Month, rest time.Weekday) int {
	first, last := MonthRange(year, month)
	n := 0
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		if d.Weekday() != rest {
			n++
		}
	}
	return n
}

// inclusiveDays counts calendar days in [start, end]; both must be dates.
func inclusiveDays(start, end time.Time) int {
	if end.Before(start) {
		return 0
	}
	return int(end.Sub(start).Hours()/24) + 1
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
