package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"example.com/backstage/services/events/internal/calendar"
	"example.com/backstage/services/events/internal/errs"
	"example.com/backstage/services/events/internal/metrics"
	"example.com/backstage/services/events/internal/models"
	"example.com/backstage/services/events/internal/recurrence"
	"example.com/backstage/services/events/internal/repository"
)

// reschedule rewrites the occurrences of a recurring series from the target
// on, choosing between splitting the series and regenerating it whole.
func (u *seriesUpdate) reschedule(ctx context.Context, old models.RecurrencePattern) error {
	req := u.req

	newStart, newEnd := u.target.StartDateTime, u.target.EndDateTime
	if req.hasTimes() {
		newStart, newEnd = *req.StartDatetime, *req.EndDatetime
		if !calendar.SameDate(newStart, u.target.StartDateTime) || !calendar.SameDate(newEnd, u.target.StartDateTime) {
			return errs.Validation("Invalid Date passed for this recurring event")
		}
	}

	updated, err := u.nextPattern(old, newStart)
	if err != nil {
		return err
	}

	c := recurrence.Classify(old, updated)
	// Patterns carry no end time-of-day, so it is compared on the occurrence.
	if !calendar.SameClock(newEnd, u.target.EndDateTime) {
		c.TimeSame = false
	}

	if err := unsupported(old, updated); err != nil {
		if c.State() == recurrence.Identical {
			return nil
		}
		return err
	}
	if err := validateStruct(updated); err != nil {
		return err
	}

	oldUntil, err := old.EndCondition.Date()
	if err != nil {
		return errs.Validation("%v", err)
	}
	newUntil, err := updated.EndCondition.Date()
	if err != nil {
		return errs.Validation("%v", err)
	}
	if oldUntil.Before(u.now) || newUntil.Before(u.now) {
		return errs.Validation("End Date cannot be changed because it is passed away")
	}
	if updated.RecurringStartDate.After(newUntil) {
		return errs.Validation("Start date can not be greater than end date")
	}
	if !newStart.After(u.now) {
		return errs.Validation("Cannot move occurrences into the past")
	}

	strategy, err := decide(c, old, updated, u.now)
	if err != nil {
		return err
	}

	log.Debug().
		Str("event_id", u.event.ID.String()).
		Str("state", c.State().String()).
		Str("strategy", string(strategy)).
		Msg("Reconciling series schedule")

	var removed []*models.EventRepetition
	switch strategy {
	case StrategyCascade:
		removed, err = u.cascade(ctx, old, updated, newStart, newEnd)
	case StrategyRebuild:
		removed, err = u.rebuild(ctx, old, updated, newEnd)
	default:
		return nil
	}
	if err != nil {
		u.compensate(ctx)
		return err
	}
	u.undo = nil

	return u.deleteOrphans(ctx, detailIDs(removed)...)
}

// unsupported rejects schedule changes of daily or count-bounded series.
func unsupported(patterns ...models.RecurrencePattern) error {
	for _, p := range patterns {
		if p.Frequency == models.FrequencyDaily {
			return errs.NotImplemented("Daily frequency is not implemented yet")
		}
	}
	for _, p := range patterns {
		if p.EndCondition.Type == models.EndConditionOccurrences {
			return errs.NotImplemented("Occurrences end condition is not implemented yet")
		}
	}
	return nil
}

// nextPattern returns the pattern the series should follow after the edit.
// Without one in the request the stored pattern is kept and only its start
// time-of-day follows the new start.
func (u *seriesUpdate) nextPattern(old models.RecurrencePattern, newStart time.Time) (models.RecurrencePattern, error) {
	if u.req.RecurrencePattern != nil {
		p := *u.req.RecurrencePattern
		if p.RecurringStartDate.IsZero() {
			return p, errs.Validation("Please Provide Valid Recurring Start Date")
		}
		p.DaysOfWeek = calendar.SortedDays(p.DaysOfWeek)
		return p, nil
	}

	p := old
	p.DaysOfWeek = calendar.SortedDays(old.DaysOfWeek)
	loc := old.RecurringStartDate.Location()
	p.RecurringStartDate = calendar.Combine(old.RecurringStartDate, newStart.In(loc))
	return p, nil
}

// decide picks how the occurrence set is rewritten. Start dates in the past
// can only be split from; a series that has not started yet is regenerated.
func decide(c recurrence.Classification, old, updated models.RecurrencePattern, now time.Time) (Strategy, error) {
	oldStart, newStart := old.RecurringStartDate, updated.RecurringStartDate

	if !c.DateSame || !c.PatternSame {
		if c.PatternSame {
			oldUntil, _ := old.EndCondition.Date()
			newUntil, _ := updated.EndCondition.Date()
			if newStart.Equal(oldStart) && !newUntil.Equal(oldUntil) {
				return StrategyCascade, nil
			}
			if newStart.Before(now) {
				return StrategyNone, errs.Conflict("Prepone not allowed for past events")
			}
			if newStart.Before(oldStart) || newStart.After(oldStart) {
				return StrategyRebuild, nil
			}
			return StrategyNone, nil
		}

		if oldStart.After(now) {
			if newStart.Before(now) {
				return StrategyNone, errs.Validation("Recurring start date must be in future")
			}
			return StrategyRebuild, nil
		}
		return StrategyCascade, nil
	}

	if !c.TimeSame {
		return StrategyCascade, nil
	}
	return StrategyNone, nil
}

// cascade ends the stored series just before the target and continues it as
// a new series under updated, starting on the target's date. It returns the
// occurrences it removed.
func (u *seriesUpdate) cascade(ctx context.Context, old, updated models.RecurrencePattern, newStart, newEnd time.Time) ([]*models.EventRepetition, error) {
	tx, req := u.tx, u.req
	from := u.target.StartDateTime
	tailFilter := repository.RepetitionFilter{EventID: u.event.ID, StartFrom: &from}

	removedRows, err := tx.Repetitions().Find(ctx, tailFilter)
	if err != nil {
		return nil, err
	}
	removed, err := tx.Repetitions().Delete(ctx, tailFilter)
	if err != nil {
		return nil, err
	}
	u.restoreOnFailure(removedRows)

	closed := old
	closed.EndCondition = models.EndDateCondition(from)
	if err := tx.Events().UpdatePattern(ctx, u.event.ID, closed, req.UpdatedBy); err != nil {
		return nil, err
	}
	u.event.SetPattern(closed)
	u.restorePatternOnFailure(old)

	detail := u.eventDetail.Clone()
	detail.ID = uuid.New()
	detail.CreatedBy = req.UpdatedBy
	detail.UpdatedBy = req.UpdatedBy
	detail.CreatedAt, detail.UpdatedAt = u.now, u.now
	if err := tx.Details().Create(ctx, detail); err != nil {
		return nil, err
	}
	u.onFailure("delete forked event detail", func(ctx context.Context) error {
		_, err := tx.Details().Delete(ctx, detail.ID)
		return err
	})

	next := updated
	next.RecurringStartDate = newStart
	event := &models.Event{
		ID:                    uuid.New(),
		EventDetailID:         detail.ID,
		IsRecurring:           true,
		AutoEnroll:            u.event.AutoEnroll,
		RegistrationStartDate: u.event.RegistrationStartDate,
		RegistrationEndDate:   u.event.RegistrationEndDate,
		CreatedBy:             u.event.CreatedBy,
		UpdatedBy:             req.UpdatedBy,
		CreatedAt:             u.now,
		UpdatedAt:             u.now,
	}
	event.SetPattern(next)
	if err := tx.Events().Create(ctx, event); err != nil {
		return nil, err
	}
	u.onFailure("delete forked event", func(ctx context.Context) error {
		_, err := tx.Events().Delete(ctx, event.ID)
		return err
	})

	windows, err := recurrence.Expand(next, newStart, newEnd, u.svc.creationLimit)
	if err != nil {
		return nil, err
	}
	reps := seedFromOccurrence(u.target, event, detail, req.UpdatedBy).occurrences(windows, u.now)
	if err := tx.Repetitions().InsertBatch(ctx, reps); err != nil {
		return nil, err
	}
	u.deleteOnFailure(event.ID)

	u.owner, u.ownerDetail, u.tail = event, detail, reps
	u.result.Strategy = StrategyCascade
	u.result.RemovedOccurrences = removed
	u.result.AddedOccurrences = len(reps)
	u.result.RepetitionDetail = reps[0]
	u.result.RepetitionUpdated = true
	return removedRows, nil
}

// rebuild replaces every occurrence of a series that has not started with
// the ones updated produces. It returns the occurrences it removed.
func (u *seriesUpdate) rebuild(ctx context.Context, old, updated models.RecurrencePattern, newEnd time.Time) ([]*models.EventRepetition, error) {
	tx, req := u.tx, u.req
	all := repository.RepetitionFilter{EventID: u.event.ID}

	elapsed, err := tx.Repetitions().Count(ctx, repository.RepetitionFilter{
		EventID:         u.event.ID,
		StartAtOrBefore: repository.TimeRef(u.now),
	})
	if err != nil {
		return nil, err
	}
	if elapsed > 0 {
		return nil, errs.Conflict("Cannot regenerate a series with elapsed occurrences")
	}

	removedRows, err := tx.Repetitions().Find(ctx, all)
	if err != nil {
		return nil, err
	}
	removed, err := tx.Repetitions().Delete(ctx, all)
	if err != nil {
		return nil, err
	}
	u.restoreOnFailure(removedRows)

	if err := tx.Events().UpdatePattern(ctx, u.event.ID, updated, req.UpdatedBy); err != nil {
		return nil, err
	}
	u.event.SetPattern(updated)
	u.restorePatternOnFailure(old)

	start := updated.RecurringStartDate
	end := calendar.Combine(start, newEnd.In(start.Location()))
	windows, err := recurrence.Expand(updated, start, end, u.svc.creationLimit)
	if err != nil {
		return nil, err
	}
	reps := seedFromOccurrence(u.target, u.event, u.eventDetail, req.UpdatedBy).occurrences(windows, u.now)
	if err := tx.Repetitions().InsertBatch(ctx, reps); err != nil {
		return nil, err
	}
	u.deleteOnFailure(u.event.ID)

	u.tail = reps
	u.result.Strategy = StrategyRebuild
	u.result.RemovedOccurrences = removed
	u.result.AddedOccurrences = len(reps)
	u.result.RepetitionDetail = reps[0]
	u.result.RepetitionUpdated = true
	return removedRows, nil
}

// undoStep reverses one write of a schedule rewrite.
type undoStep struct {
	name string
	fn   func(ctx context.Context) error
}

func (u *seriesUpdate) onFailure(name string, fn func(ctx context.Context) error) {
	u.undo = append(u.undo, undoStep{name: name, fn: fn})
}

func (u *seriesUpdate) restoreOnFailure(rows []*models.EventRepetition) {
	if len(rows) == 0 {
		return
	}
	u.onFailure("restore removed occurrences", func(ctx context.Context) error {
		return u.tx.Repetitions().InsertBatch(ctx, rows)
	})
}

func (u *seriesUpdate) restorePatternOnFailure(old models.RecurrencePattern) {
	eventID, updatedBy := u.event.ID, u.event.UpdatedBy
	u.onFailure("restore series pattern", func(ctx context.Context) error {
		if err := u.tx.Events().UpdatePattern(ctx, eventID, old, updatedBy); err != nil {
			return err
		}
		u.event.SetPattern(old)
		return nil
	})
}

func (u *seriesUpdate) deleteOnFailure(eventID uuid.UUID) {
	u.onFailure("delete generated occurrences", func(ctx context.Context) error {
		_, err := u.tx.Repetitions().Delete(ctx, repository.RepetitionFilter{EventID: eventID})
		return err
	})
}

// compensate reverses the writes of a failed schedule rewrite, newest first.
// Stores without transactions are left as they were before the rewrite.
// Failures are only logged so the original error reaches the caller.
func (u *seriesUpdate) compensate(ctx context.Context) {
	if len(u.undo) == 0 {
		return
	}
	m := u.svc.metrics
	m.IncrementCounter(metrics.UpdateCompensations)

	for i := len(u.undo) - 1; i >= 0; i-- {
		step := u.undo[i]
		if err := step.fn(ctx); err != nil {
			m.IncrementCounter(metrics.UpdateCompensationFailures)
			log.Warn().
				Err(err).
				Str("event_id", u.event.ID.String()).
				Str("step", step.name).
				Msg("Failed to undo partial series update")
		}
	}
	u.undo = nil
}

func detailIDs(reps []*models.EventRepetition) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(reps))
	ids := make([]uuid.UUID, 0, len(reps))
	for _, rep := range reps {
		if _, ok := seen[rep.EventDetailID]; ok {
			continue
		}
		seen[rep.EventDetailID] = struct{}{}
		ids = append(ids, rep.EventDetailID)
	}
	return ids
}
