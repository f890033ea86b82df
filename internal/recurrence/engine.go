// Package recurrence expands recurrence rules into dated occurrence windows
// and classifies how one rule differs from another.
package recurrence

import (
	"time"

	"github.com/teambition/rrule-go"

	"example.com/backstage/services/events/internal/calendar"
	"example.com/backstage/services/events/internal/errs"
	"example.com/backstage/services/events/internal/models"
)

var (
	ErrLimitUnavailable = errs.Conflict("Event creation limit unavailable")
	ErrLimitExceeded    = errs.Conflict("Event Creation Count exceeded")
	ErrEmptyRange       = errs.Validation("Event recurrence period insufficient")
	ErrInvalidWindow    = errs.Validation("occurrence end time must be after its start time")
)

// Window is one occurrence's start and end instant.
type Window struct {
	Start time.Time
	End   time.Time
}

// Expand walks pattern from start and returns the occurrence windows it
// produces. start supplies the anchor date and the start time-of-day; only
// the time-of-day of end is used. The walk happens in start's location.
//
// At most limit windows are returned. Expand is pure and deterministic.
func Expand(pattern models.RecurrencePattern, start, end time.Time, limit int) ([]Window, error) {
	if limit <= 0 {
		return nil, ErrLimitUnavailable
	}
	if err := checkPattern(pattern); err != nil {
		return nil, err
	}

	endClock := end.In(start.Location())
	if !calendar.Combine(start, endClock).After(start) {
		return nil, ErrInvalidWindow
	}

	stop, err := newStopCondition(pattern.EndCondition)
	if err != nil {
		return nil, err
	}
	if stop.empty() {
		return nil, ErrEmptyRange
	}

	next, err := iterate(pattern, start)
	if err != nil {
		return nil, err
	}

	var windows []Window
	for {
		t, ok := next()
		if !ok {
			break
		}
		windows = append(windows, Window{Start: t, End: calendar.Combine(t, endClock)})
		if stop.met(windows) {
			break
		}
		// one trailing window may still be dropped below
		if len(windows) > limit+1 {
			return nil, ErrLimitExceeded
		}
	}

	if n := len(windows); n > 0 && stop.overshoots(windows[n-1]) {
		windows = windows[:n-1]
	}
	if len(windows) > limit {
		return nil, ErrLimitExceeded
	}
	if len(windows) == 0 {
		return nil, ErrEmptyRange
	}
	return windows, nil
}

func checkPattern(p models.RecurrencePattern) error {
	if p.Interval < 1 {
		return errs.Validation("recurrence interval must be at least 1")
	}
	switch p.Frequency {
	case models.FrequencyDaily:
	case models.FrequencyWeekly:
		if len(p.DaysOfWeek) == 0 {
			return errs.Validation("weekly recurrence requires daysOfWeek")
		}
		for _, d := range p.DaysOfWeek {
			if d < 0 || d > 6 {
				return errs.Validation("invalid day of week %d", d)
			}
		}
	default:
		return errs.Validation("unsupported recurrence frequency %q", p.Frequency)
	}
	return nil
}

func iterate(p models.RecurrencePattern, start time.Time) (func() (time.Time, bool), error) {
	if p.Frequency == models.FrequencyDaily {
		r, err := rrule.NewRRule(rrule.ROption{
			Freq:     rrule.DAILY,
			Interval: p.Interval,
			Dtstart:  start,
		})
		if err != nil {
			return nil, errs.Validation("invalid daily recurrence: %v", err)
		}
		return r.Iterator(), nil
	}
	return weekly(p, start), nil
}

// weekly emits the anchor when its weekday is listed, then steps to the next
// listed weekday each call. After the last listed weekday of a week it skips
// interval-1 whole weeks.
func weekly(p models.RecurrencePattern, start time.Time) func() (time.Time, bool) {
	days := calendar.SortedDays(p.DaysOfWeek)
	last := days[len(days)-1]
	cursor := start
	started := false

	emit := func(t time.Time) (time.Time, bool) {
		cursor = t
		if calendar.Weekday(t) == last {
			cursor = calendar.AddDays(t, 7*(p.Interval-1))
		}
		return t, true
	}

	return func() (time.Time, bool) {
		if !started {
			started = true
			if calendar.Contains(days, calendar.Weekday(cursor)) {
				return emit(cursor)
			}
		}
		return emit(calendar.AddDays(cursor, calendar.NextDay(calendar.Weekday(cursor), days)))
	}
}

type stopCondition struct {
	until *time.Time
	count int
}

func newStopCondition(c models.EndCondition) (stopCondition, error) {
	switch c.Type {
	case models.EndConditionDate:
		t, err := c.Date()
		if err != nil {
			return stopCondition{}, errs.Validation("%v", err)
		}
		return stopCondition{until: &t}, nil
	case models.EndConditionOccurrences:
		n, err := c.Count()
		if err != nil {
			return stopCondition{}, errs.Validation("%v", err)
		}
		return stopCondition{count: n}, nil
	default:
		return stopCondition{}, errs.Validation("unsupported end condition %q", c.Type)
	}
}

func (s stopCondition) empty() bool {
	return s.until == nil && s.count <= 0
}

func (s stopCondition) met(windows []Window) bool {
	if s.until != nil {
		return windows[len(windows)-1].End.After(*s.until)
	}
	return len(windows) >= s.count
}

func (s stopCondition) overshoots(w Window) bool {
	return s.until != nil && w.End.After(*s.until)
}
