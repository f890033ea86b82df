package recurrence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/backstage/services/events/internal/errs"
	"example.com/backstage/services/events/internal/models"
)

func at(y int, m time.Month, d, h, mi int) time.Time {
	return time.Date(y, m, d, h, mi, 0, 0, time.UTC)
}

func weeklyPattern(interval int, days []int, end models.EndCondition) models.RecurrencePattern {
	return models.RecurrencePattern{
		Frequency:    models.FrequencyWeekly,
		Interval:     interval,
		DaysOfWeek:   days,
		EndCondition: end,
	}
}

func starts(windows []Window) []time.Time {
	out := make([]time.Time, len(windows))
	for i, w := range windows {
		out[i] = w.Start
	}
	return out
}

func TestExpandWeeklyMonWedFri(t *testing.T) {
	bound := time.Date(2024, 3, 31, 23, 59, 59, 0, time.UTC)
	pattern := weeklyPattern(1, []int{1, 3, 5}, models.EndDateCondition(bound))

	windows, err := Expand(pattern, at(2024, 3, 4, 10, 0), at(2024, 3, 4, 11, 0), 100)
	require.NoError(t, err)
	require.Len(t, windows, 12)

	expectedDays := []int{4, 6, 8, 11, 13, 15, 18, 20, 22, 25, 27, 29}
	for i, w := range windows {
		assert.Equal(t, at(2024, 3, expectedDays[i], 10, 0), w.Start)
		assert.Equal(t, at(2024, 3, expectedDays[i], 11, 0), w.End)
		assert.False(t, w.End.After(bound), "window %d ends after the bound", i)
	}
}

func TestExpandWeeklyInterval(t *testing.T) {
	pattern := weeklyPattern(2, []int{4, 2}, models.OccurrencesCondition(6))

	windows, err := Expand(pattern, at(2024, 3, 5, 18, 0), at(2024, 3, 5, 19, 30), 10)
	require.NoError(t, err)

	assert.Equal(t, []time.Time{
		at(2024, 3, 5, 18, 0),
		at(2024, 3, 7, 18, 0),
		at(2024, 3, 19, 18, 0),
		at(2024, 3, 21, 18, 0),
		at(2024, 4, 2, 18, 0),
		at(2024, 4, 4, 18, 0),
	}, starts(windows))
}

func TestExpandWeeklyIntervalFromLastListedAnchor(t *testing.T) {
	// The anchor's week counts as the first period, so a Friday anchor is
	// followed by the Monday two weeks on.
	pattern := weeklyPattern(2, []int{1, 3, 5}, models.OccurrencesCondition(4))

	windows, err := Expand(pattern, at(2024, 3, 8, 10, 0), at(2024, 3, 8, 11, 0), 10)
	require.NoError(t, err)

	assert.Equal(t, []time.Time{
		at(2024, 3, 8, 10, 0),
		at(2024, 3, 18, 10, 0),
		at(2024, 3, 20, 10, 0),
		at(2024, 3, 22, 10, 0),
	}, starts(windows))
}

func TestExpandWeeklyAnchorNotListed(t *testing.T) {
	pattern := weeklyPattern(1, []int{1}, models.OccurrencesCondition(2))

	windows, err := Expand(pattern, at(2024, 3, 6, 9, 0), at(2024, 3, 6, 10, 0), 10)
	require.NoError(t, err)

	assert.Equal(t, []time.Time{at(2024, 3, 11, 9, 0), at(2024, 3, 18, 9, 0)}, starts(windows))
}

func TestExpandDaily(t *testing.T) {
	pattern := models.RecurrencePattern{
		Frequency:    models.FrequencyDaily,
		Interval:     2,
		EndCondition: models.OccurrencesCondition(3),
	}

	windows, err := Expand(pattern, at(2024, 3, 1, 9, 0), at(2024, 3, 1, 10, 0), 10)
	require.NoError(t, err)

	assert.Equal(t, []time.Time{at(2024, 3, 1, 9, 0), at(2024, 3, 3, 9, 0), at(2024, 3, 5, 9, 0)}, starts(windows))
	assert.Equal(t, at(2024, 3, 5, 10, 0), windows[2].End)
}

func TestExpandDailyEndDate(t *testing.T) {
	pattern := models.RecurrencePattern{
		Frequency:    models.FrequencyDaily,
		Interval:     1,
		EndCondition: models.EndDateCondition(at(2024, 3, 5, 10, 0)),
	}

	windows, err := Expand(pattern, at(2024, 3, 1, 9, 0), at(2024, 3, 1, 10, 0), 10)
	require.NoError(t, err)

	require.Len(t, windows, 5)
	assert.Equal(t, at(2024, 3, 5, 10, 0), windows[4].End, "an occurrence ending exactly at the bound is kept")
}

func TestExpandLimit(t *testing.T) {
	bound := at(2024, 3, 31, 23, 59)
	pattern := weeklyPattern(1, []int{1, 3, 5}, models.EndDateCondition(bound))

	_, err := Expand(pattern, at(2024, 3, 4, 10, 0), at(2024, 3, 4, 11, 0), 5)
	assert.ErrorIs(t, err, ErrLimitExceeded)
	assert.Equal(t, errs.KindConflict, errs.KindOf(err))

	windows, err := Expand(pattern, at(2024, 3, 4, 10, 0), at(2024, 3, 4, 11, 0), 12)
	require.NoError(t, err)
	assert.Len(t, windows, 12, "exactly the limit is allowed")

	_, err = Expand(pattern, at(2024, 3, 4, 10, 0), at(2024, 3, 4, 11, 0), 0)
	assert.ErrorIs(t, err, ErrLimitUnavailable)
}

func TestExpandUnboundedIsCutAtLimit(t *testing.T) {
	pattern := models.RecurrencePattern{
		Frequency:    models.FrequencyDaily,
		Interval:     1,
		EndCondition: models.EndDateCondition(at(9999, 1, 1, 0, 0)),
	}

	_, err := Expand(pattern, at(2024, 3, 1, 9, 0), at(2024, 3, 1, 10, 0), 50)
	assert.ErrorIs(t, err, ErrLimitExceeded)
}

func TestExpandEmptyRange(t *testing.T) {
	pattern := weeklyPattern(1, []int{1}, models.EndDateCondition(at(2024, 3, 4, 10, 30)))

	_, err := Expand(pattern, at(2024, 3, 4, 10, 0), at(2024, 3, 4, 11, 0), 10)
	assert.ErrorIs(t, err, ErrEmptyRange)

	pattern.EndCondition = models.OccurrencesCondition(0)
	_, err = Expand(pattern, at(2024, 3, 4, 10, 0), at(2024, 3, 4, 11, 0), 10)
	assert.ErrorIs(t, err, ErrEmptyRange)
}

func TestExpandRejectsInvalidInput(t *testing.T) {
	valid := weeklyPattern(1, []int{1}, models.OccurrencesCondition(2))

	_, err := Expand(valid, at(2024, 3, 4, 10, 0), at(2024, 3, 4, 9, 0), 10)
	assert.ErrorIs(t, err, ErrInvalidWindow)

	noDays := valid
	noDays.DaysOfWeek = nil
	_, err = Expand(noDays, at(2024, 3, 4, 10, 0), at(2024, 3, 4, 11, 0), 10)
	assert.True(t, errs.IsKind(err, errs.KindValidation))

	zeroInterval := valid
	zeroInterval.Interval = 0
	_, err = Expand(zeroInterval, at(2024, 3, 4, 10, 0), at(2024, 3, 4, 11, 0), 10)
	assert.True(t, errs.IsKind(err, errs.KindValidation))

	badEnd := valid
	badEnd.EndCondition = models.EndCondition{Type: models.EndConditionDate, Value: "next tuesday"}
	_, err = Expand(badEnd, at(2024, 3, 4, 10, 0), at(2024, 3, 4, 11, 0), 10)
	assert.True(t, errs.IsKind(err, errs.KindValidation))
}

func TestExpandIsDeterministic(t *testing.T) {
	pattern := weeklyPattern(3, []int{6, 0, 2}, models.EndDateCondition(at(2024, 8, 1, 0, 0)))
	start, end := at(2024, 3, 3, 7, 15), at(2024, 3, 3, 8, 0)

	first, err := Expand(pattern, start, end, 100)
	require.NoError(t, err)
	second, err := Expand(pattern, start, end, 100)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	for i := 1; i < len(first); i++ {
		assert.True(t, first[i].Start.After(first[i-1].End), "windows must ascend without overlap")
	}
}

func TestExpandKeepsLocation(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+1800)
	pattern := weeklyPattern(1, []int{1}, models.OccurrencesCondition(2))

	windows, err := Expand(pattern, time.Date(2024, 3, 4, 2, 0, 0, 0, ist), time.Date(2024, 3, 4, 3, 0, 0, 0, ist), 10)
	require.NoError(t, err)

	assert.Equal(t, time.Monday, windows[1].Start.Weekday())
	assert.Equal(t, 2, windows[1].Start.Hour())
	assert.Equal(t, ist, windows[1].Start.Location())
}
