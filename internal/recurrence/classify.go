package recurrence

import (
	"time"

	"example.com/backstage/services/events/internal/calendar"
	"example.com/backstage/services/events/internal/models"
)

// State names how an edited pattern differs from the stored one.
type State int

const (
	Identical State = iota
	TimeOnly
	DateShift
	PatternChanged
)

func (s State) String() string {
	switch s {
	case Identical:
		return "identical"
	case TimeOnly:
		return "time-only"
	case DateShift:
		return "date-shift"
	case PatternChanged:
		return "pattern-changed"
	}
	return "unknown"
}

// Classification holds the three comparisons the reconciler branches on.
type Classification struct {
	PatternSame bool
	DateSame    bool
	TimeSame    bool
}

// State collapses the comparisons into a single State.
func (c Classification) State() State {
	switch {
	case !c.PatternSame:
		return PatternChanged
	case !c.DateSame:
		return DateShift
	case !c.TimeSame:
		return TimeOnly
	}
	return Identical
}

// Classify compares two patterns. Frequency, interval and the day set decide
// PatternSame. DateSame and TimeSame compare the date and clock components of
// the recurring start and of the end condition value in UTC.
func Classify(old, updated models.RecurrencePattern) Classification {
	return Classification{
		PatternSame: old.Frequency == updated.Frequency &&
			old.Interval == updated.Interval &&
			calendar.SameDays(old.DaysOfWeek, updated.DaysOfWeek),
		DateSame: calendar.SameDate(old.RecurringStartDate, updated.RecurringStartDate) &&
			sameEnd(old.EndCondition, updated.EndCondition, calendar.SameDate),
		TimeSame: calendar.SameClock(old.RecurringStartDate, updated.RecurringStartDate) &&
			sameEnd(old.EndCondition, updated.EndCondition, calendar.SameClock),
	}
}

// sameEnd falls back to comparing the raw values when either side is not a
// timestamp.
func sameEnd(a, b models.EndCondition, same func(x, y time.Time) bool) bool {
	if a.Type != b.Type {
		return false
	}
	x, errX := a.Date()
	y, errY := b.Date()
	if errX != nil || errY != nil {
		return a.Value == b.Value
	}
	return same(x, y)
}
