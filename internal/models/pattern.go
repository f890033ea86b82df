package models

import (
	"strconv"
	"time"

	"github.com/pkg/errors"
)

// Frequency is the recurrence unit
type Frequency string

const (
	FrequencyDaily  Frequency = "daily"
	FrequencyWeekly Frequency = "weekly"
)

// EndConditionType selects how a series terminates
type EndConditionType string

const (
	EndConditionDate        EndConditionType = "endDate"
	EndConditionOccurrences EndConditionType = "occurrences"
)

// EndCondition bounds a series either by a timestamp or by an occurrence
// count. Value holds an RFC 3339 timestamp or a decimal count.
type EndCondition struct {
	Type  EndConditionType `json:"type" validate:"required,oneof=endDate occurrences"`
	Value string           `json:"value" validate:"required"`
}

// Date parses Value as an endDate bound.
func (c EndCondition) Date() (time.Time, error) {
	t, err := time.Parse(time.RFC3339, c.Value)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "invalid end date %q", c.Value)
	}
	return t, nil
}

// Count parses Value as an occurrence count.
func (c EndCondition) Count() (int, error) {
	n, err := strconv.Atoi(c.Value)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid occurrence count %q", c.Value)
	}
	return n, nil
}

// EndDateCondition builds an endDate condition at t.
func EndDateCondition(t time.Time) EndCondition {
	return EndCondition{Type: EndConditionDate, Value: t.Format(time.RFC3339)}
}

// OccurrencesCondition builds a count-bounded condition.
func OccurrencesCondition(n int) EndCondition {
	return EndCondition{Type: EndConditionOccurrences, Value: strconv.Itoa(n)}
}

// RecurrencePattern is the rule a recurring Event expands by.
type RecurrencePattern struct {
	Frequency          Frequency    `json:"frequency" validate:"required,oneof=daily weekly"`
	Interval           int          `json:"interval" validate:"required,min=1"`
	DaysOfWeek         []int        `json:"daysOfWeek,omitempty" validate:"required_if=Frequency weekly,unique,dive,min=0,max=6"`
	RecurringStartDate time.Time    `json:"recurringStartDate"`
	EndCondition       EndCondition `json:"endCondition"`
}
