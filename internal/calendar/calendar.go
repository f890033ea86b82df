// Package calendar holds the small date helpers the recurrence engine and
// the update reconciler share.
package calendar

import (
	"sort"
	"time"
)

// AddDays shifts t by n calendar days keeping its wall-clock time.
func AddDays(t time.Time, n int) time.Time {
	return t.AddDate(0, 0, n)
}

// SameDays reports whether a and b hold the same weekdays regardless of order.
// Neither slice is modified.
func SameDays(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	x := SortedDays(a)
	y := SortedDays(b)
	for i := range x {
		if x[i] != y[i] {
			return false
		}
	}
	return true
}

// SortedDays returns an ascending copy of days.
func SortedDays(days []int) []int {
	out := make([]int, len(days))
	copy(out, days)
	sort.Ints(out)
	return out
}

// NextDay returns the offset in days from current to the next listed weekday.
// days must be sorted ascending and non-empty. When no listed weekday follows
// current in the same week the walk wraps to the first listed weekday of the
// next week.
func NextDay(current int, days []int) int {
	for _, d := range days {
		if d > current {
			return d - current
		}
	}
	return 7 - current + days[0]
}

// Contains reports whether weekday is listed in days.
func Contains(days []int, weekday int) bool {
	for _, d := range days {
		if d == weekday {
			return true
		}
	}
	return false
}

// DateOf truncates t to midnight in its own location.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// ClockOf returns the time elapsed since midnight of t's date.
func ClockOf(t time.Time) time.Duration {
	return t.Sub(DateOf(t))
}

// Combine places the wall-clock time of clock onto the date of date.
func Combine(date, clock time.Time) time.Time {
	y, m, d := date.Date()
	h, mi, s := clock.Clock()
	return time.Date(y, m, d, h, mi, s, clock.Nanosecond(), date.Location())
}

// SameDate compares the calendar dates of a and b in UTC.
func SameDate(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

// SameClock compares the wall-clock times of a and b in UTC.
func SameClock(a, b time.Time) bool {
	ah, am, as := a.UTC().Clock()
	bh, bm, bs := b.UTC().Clock()
	return ah == bh && am == bm && as == bs && a.Nanosecond() == b.Nanosecond()
}

// Weekday returns t's weekday as 0 (Sunday) through 6.
func Weekday(t time.Time) int {
	return int(t.Weekday())
}
