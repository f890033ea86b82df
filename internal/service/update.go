package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"example.com/backstage/services/events/internal/errs"
	"example.com/backstage/services/events/internal/messaging"
	"example.com/backstage/services/events/internal/metrics"
	"example.com/backstage/services/events/internal/models"
	"example.com/backstage/services/events/internal/repository"
)

// UpdateSeries applies req to the occurrence identified by repetitionID. With
// IsMainEvent set the edit covers the occurrence and every later one of its
// series and may rewrite the series schedule.
func (s *SeriesService) UpdateSeries(ctx context.Context, repetitionID uuid.UUID, req UpdateSeriesRequest) (*UpdateResult, error) {
	started := time.Now()
	txn := s.tracer.StartTransaction("update-series")
	defer s.tracer.EndTransaction(txn)
	s.tracer.AddAttribute(txn, "repetition_id", repetitionID.String())

	result, affected, err := s.updateSeries(ctx, repetitionID, &req)
	s.metrics.Track(metrics.UpdateSeries, started, err)
	if err != nil {
		s.tracer.RecordError(txn, err)
		log.Warn().
			Err(err).
			Str("repetition_id", repetitionID.String()).
			Bool("main_event", req.IsMainEvent).
			Msg("Series update rejected")
		return nil, err
	}

	switch result.Strategy {
	case StrategyCascade:
		s.metrics.IncrementCounter(metrics.StrategyCascade)
	case StrategyRebuild:
		s.metrics.IncrementCounter(metrics.StrategyRebuild)
	}
	s.metrics.IncrementCounterBy(metrics.OccurrencesRemoved, result.RemovedOccurrences)
	s.metrics.IncrementCounterBy(metrics.OccurrencesCreated, int64(result.AddedOccurrences))
	s.metrics.IncrementCounterBy(metrics.OccurrencesRepointed, result.RepointedOccurrences)
	s.tracer.AddAttribute(txn, "strategy", string(result.Strategy))

	log.Info().
		Str("repetition_id", repetitionID.String()).
		Str("strategy", string(result.Strategy)).
		Int64("removed", result.RemovedOccurrences).
		Int("added", result.AddedOccurrences).
		Bool("detail_updated", result.DetailUpdated).
		Msg("Series updated")

	change := messaging.SeriesChange{
		Type:               messaging.SeriesUpdated,
		EventIDs:           affected,
		Strategy:           string(result.Strategy),
		AddedOccurrences:   result.AddedOccurrences,
		RemovedOccurrences: result.RemovedOccurrences,
		ChangedBy:          req.UpdatedBy,
		OccurredAt:         s.now(),
	}
	if result.RepetitionDetail != nil {
		id := result.RepetitionDetail.ID
		change.RepetitionID = &id
	}
	s.afterCommit(ctx, change)
	return result, nil
}

func (s *SeriesService) updateSeries(ctx context.Context, repetitionID uuid.UUID, req *UpdateSeriesRequest) (*UpdateResult, []uuid.UUID, error) {
	if err := validateStruct(req); err != nil {
		return nil, nil, err
	}
	if (req.StartDatetime == nil) != (req.EndDatetime == nil) {
		return nil, nil, errs.Validation("startDatetime and endDatetime must be provided together")
	}
	if req.hasTimes() && !req.EndDatetime.After(*req.StartDatetime) {
		return nil, nil, errs.Validation("End date must be after start date")
	}

	// The series id is needed before the transaction to serialise writers.
	located, err := s.store.Repetitions().FindOne(ctx, repository.RepetitionFilter{IDs: []uuid.UUID{repetitionID}})
	if err != nil {
		return nil, nil, notFound(err)
	}
	release, err := s.lock.Acquire(ctx, located.EventID)
	if err != nil {
		return nil, nil, err
	}
	defer release()

	var (
		result   *UpdateResult
		affected []uuid.UUID
	)
	err = s.store.WithTransaction(ctx, func(ctx context.Context, tx repository.Store) error {
		u := &seriesUpdate{
			svc:    s,
			tx:     tx,
			req:    req,
			now:    s.now(),
			result: &UpdateResult{Strategy: StrategyNone},
		}
		if err := u.load(ctx, repetitionID); err != nil {
			return err
		}
		if err := u.guard(); err != nil {
			return err
		}

		var err error
		if req.IsMainEvent {
			err = u.wholeSeries(ctx)
		} else {
			err = u.singleOccurrence(ctx)
		}
		if err != nil {
			return err
		}
		result, affected = u.result, u.affected()
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return result, affected, nil
}

// seriesUpdate carries the rows one update reads and rewrites inside its
// transaction.
type seriesUpdate struct {
	svc *SeriesService
	tx  repository.Store
	req *UpdateSeriesRequest
	now time.Time

	target       *models.EventRepetition
	targetDetail *models.EventDetail
	event        *models.Event
	eventDetail  *models.EventDetail

	// owner and ownerDetail are replaced when a cascade splits the series
	owner       *models.Event
	ownerDetail *models.EventDetail

	// tail holds the occurrences a whole-series edit applies to
	tail []*models.EventRepetition

	// undo holds the reversals of the schedule writes made so far
	undo []undoStep

	result *UpdateResult
}

func (u *seriesUpdate) load(ctx context.Context, repetitionID uuid.UUID) error {
	target, err := u.tx.Repetitions().FindOne(ctx, repository.RepetitionFilter{
		IDs:        []uuid.UUID{repetitionID},
		StartAfter: repository.TimeRef(u.now),
	})
	if err != nil {
		return notFound(err)
	}
	u.target = target

	if u.targetDetail, err = u.tx.Details().FindOne(ctx, target.EventDetailID); err != nil {
		return notFound(err)
	}
	if u.event, err = u.tx.Events().FindOne(ctx, target.EventID); err != nil {
		return notFound(err)
	}

	u.eventDetail = u.targetDetail
	if u.event.EventDetailID != u.targetDetail.ID {
		if u.eventDetail, err = u.tx.Details().FindOne(ctx, u.event.EventDetailID); err != nil {
			return notFound(err)
		}
	}

	u.owner, u.ownerDetail = u.event, u.eventDetail
	return nil
}

func (u *seriesUpdate) guard() error {
	req := u.req
	if u.targetDetail.Status == models.StatusArchived || u.eventDetail.Status == models.StatusArchived {
		return errs.Conflict("Event is archived you can not update it")
	}
	if !u.event.IsRecurring && !req.IsMainEvent {
		return errs.Validation("You can not pass isMainEvent false because event is non recurring")
	}

	online := u.eventDetail.EventType == models.EventTypeOnline
	if online && (req.Location != nil || req.Latitude != nil || req.Longitude != nil) {
		return errs.Validation("Cannot update location or latitude or longitude details for an online event")
	}
	if !online && req.OnlineDetails != nil {
		return errs.Validation("Cannot update online details for an offline event")
	}
	return nil
}

// wholeSeries edits the target occurrence and every later one.
func (u *seriesUpdate) wholeSeries(ctx context.Context) error {
	req := u.req
	pattern, recurring := u.event.Pattern()

	switch {
	case recurring && (req.hasTimes() || req.RecurrencePattern != nil):
		if err := u.reschedule(ctx, pattern); err != nil {
			return err
		}
	case !recurring && req.RecurrencePattern != nil:
		return errs.Validation("Cannot add a recurrence pattern to a non recurring event")
	case !recurring && req.hasTimes():
		if err := u.moveTarget(ctx, false); err != nil {
			return err
		}
	}

	if u.result.Strategy == StrategyNone {
		tail, err := u.tx.Repetitions().Find(ctx, repository.RepetitionFilter{
			EventID:     u.owner.ID,
			StartFrom:   repository.TimeRef(u.target.StartDateTime),
			NotArchived: true,
		})
		if err != nil {
			return err
		}
		u.tail = tail
	}

	if patch := req.detailPatch(); !patch.empty() {
		detail, err := u.applyContent(ctx, u.tail, u.ownerDetail, u.owner, patch)
		if err != nil {
			return err
		}
		u.ownerDetail = detail
		u.result.DetailUpdated = true
	}

	if err := u.mergeOccurrenceFields(ctx, u.tail); err != nil {
		return err
	}

	u.result.Event = u.owner
	u.result.EventDetail = u.ownerDetail
	if u.result.RepetitionDetail == nil {
		u.result.RepetitionDetail = u.target
	}
	return nil
}

// singleOccurrence edits the target occurrence alone. Content edits fork the
// detail when anything else shares it.
func (u *seriesUpdate) singleOccurrence(ctx context.Context) error {
	req := u.req
	if req.hasTimes() {
		if err := u.moveTarget(ctx, true); err != nil {
			return err
		}
	}

	detail := u.targetDetail
	if patch := req.detailPatch(); !patch.empty() {
		var err error
		detail, err = u.applyContent(ctx, []*models.EventRepetition{u.target}, u.targetDetail, nil, patch)
		if err != nil {
			return err
		}
		u.result.DetailUpdated = true
	}

	if err := u.mergeOccurrenceFields(ctx, []*models.EventRepetition{u.target}); err != nil {
		return err
	}

	u.result.Event = u.event
	u.result.EventDetail = detail
	u.result.RepetitionDetail = u.target
	return nil
}

// moveTarget reschedules the target occurrence to the requested times.
func (u *seriesUpdate) moveTarget(ctx context.Context, checkOverlap bool) error {
	start, end := *u.req.StartDatetime, *u.req.EndDatetime
	if !start.After(u.now) {
		return errs.Validation("Cannot move an occurrence into the past")
	}

	if checkOverlap {
		overlapping, err := u.tx.Repetitions().Count(ctx, repository.RepetitionFilter{
			EventID:     u.target.EventID,
			ExcludeIDs:  []uuid.UUID{u.target.ID},
			StartBefore: &end,
			EndAfter:    &start,
		})
		if err != nil {
			return err
		}
		if overlapping > 0 {
			return errs.Conflict("Occurrence overlaps another occurrence of the series")
		}
	}

	patch := repository.RepetitionPatch{StartDateTime: &start, EndDateTime: &end, UpdatedBy: u.req.UpdatedBy}
	if _, err := u.tx.Repetitions().Update(ctx, repository.RepetitionFilter{IDs: []uuid.UUID{u.target.ID}}, patch); err != nil {
		return err
	}
	patch.Apply(u.target)
	u.result.RepetitionUpdated = true
	return nil
}

// mergeOccurrenceFields merges the request's online details and metadata into
// each of reps.
func (u *seriesUpdate) mergeOccurrenceFields(ctx context.Context, reps []*models.EventRepetition) error {
	req := u.req
	if req.OnlineDetails == nil && req.ErMetaData == nil {
		return nil
	}

	for _, rep := range reps {
		patch := repository.RepetitionPatch{UpdatedBy: req.UpdatedBy}
		if req.OnlineDetails != nil {
			patch.OnlineDetails = models.MergeJSON(rep.OnlineDetails, req.OnlineDetails)
		}
		if req.ErMetaData != nil {
			patch.ErMetaData = models.MergeJSON(rep.ErMetaData, req.ErMetaData)
		}
		if _, err := u.tx.Repetitions().Update(ctx, repository.RepetitionFilter{IDs: []uuid.UUID{rep.ID}}, patch); err != nil {
			return err
		}
		patch.Apply(rep)
	}

	if req.OnlineDetails != nil {
		u.result.OnlineDetails = req.OnlineDetails
		u.result.OnlineDetailsUpdated = true
	}
	if req.ErMetaData != nil {
		u.result.ErMetaData = req.ErMetaData
		u.result.MetadataUpdated = true
	}
	return nil
}

// affected lists the series whose occurrences the update touched.
func (u *seriesUpdate) affected() []uuid.UUID {
	ids := []uuid.UUID{u.event.ID}
	if u.owner != nil && u.owner.ID != u.event.ID {
		ids = append(ids, u.owner.ID)
	}
	return ids
}

func notFound(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return errs.NotFound("Event not found")
	}
	return err
}
