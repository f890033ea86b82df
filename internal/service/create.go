package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"example.com/backstage/services/events/internal/calendar"
	"example.com/backstage/services/events/internal/errs"
	"example.com/backstage/services/events/internal/messaging"
	"example.com/backstage/services/events/internal/metrics"
	"example.com/backstage/services/events/internal/models"
	"example.com/backstage/services/events/internal/recurrence"
	"example.com/backstage/services/events/internal/repository"
)

// CreateSeries creates the detail row, the event and every occurrence the
// event's pattern produces. Nothing is left behind when expansion fails.
func (s *SeriesService) CreateSeries(ctx context.Context, req CreateSeriesRequest) (*CreateResult, error) {
	started := time.Now()
	txn := s.tracer.StartTransaction("create-series")
	defer s.tracer.EndTransaction(txn)

	result, err := s.createSeries(ctx, &req)
	s.metrics.Track(metrics.CreateSeries, started, err)
	if err != nil {
		s.tracer.RecordError(txn, err)
		log.Warn().Err(err).Str("created_by", req.CreatedBy).Msg("Series creation rejected")
		return nil, err
	}

	s.tracer.AddAttribute(txn, "occurrences", result.CreatedEventCount)
	s.metrics.IncrementCounter(metrics.SeriesCreated)
	s.metrics.IncrementCounterBy(metrics.OccurrencesCreated, int64(result.CreatedEventCount))

	log.Info().
		Str("event_id", result.Event.ID.String()).
		Bool("recurring", result.Event.IsRecurring).
		Int("occurrences", result.CreatedEventCount).
		Msg("Series created")

	s.afterCommit(ctx, messaging.SeriesChange{
		Type:             messaging.SeriesCreated,
		EventIDs:         []uuid.UUID{result.Event.ID},
		AddedOccurrences: result.CreatedEventCount,
		ChangedBy:        req.CreatedBy,
		OccurredAt:       s.now(),
	})
	return result, nil
}

func (s *SeriesService) createSeries(ctx context.Context, req *CreateSeriesRequest) (*CreateResult, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	if req.EventType == models.EventTypeOnline && (req.Location != nil || req.Latitude != nil || req.Longitude != nil) {
		return nil, errs.Validation("Cannot set location for an online event")
	}
	if s.creationLimit <= 0 {
		return nil, recurrence.ErrLimitUnavailable
	}

	now := s.now()
	detail := newEventDetail(req, now)
	event := &models.Event{
		ID:                    uuid.New(),
		IsRecurring:           req.IsRecurring,
		AutoEnroll:            req.AutoEnroll,
		RegistrationStartDate: req.RegistrationStartDate,
		RegistrationEndDate:   req.RegistrationEndDate,
		CreatedBy:             req.CreatedBy,
		UpdatedBy:             req.CreatedBy,
		CreatedAt:             now,
		UpdatedAt:             now,
	}

	var pattern *models.RecurrencePattern
	if req.IsRecurring {
		p := *req.RecurrencePattern
		p.DaysOfWeek = calendar.SortedDays(p.DaysOfWeek)
		p.RecurringStartDate = req.StartDatetime
		pattern = &p
		event.SetPattern(p)
	} else {
		event.SetPattern(models.RecurrencePattern{})
	}

	var result *CreateResult
	err := s.store.WithTransaction(ctx, func(ctx context.Context, tx repository.Store) error {
		if err := tx.Details().Create(ctx, detail); err != nil {
			return err
		}
		event.EventDetailID = detail.ID
		if err := tx.Events().Create(ctx, event); err != nil {
			return err
		}

		windows := []recurrence.Window{{Start: req.StartDatetime, End: req.EndDatetime}}
		if pattern != nil {
			expanded, err := recurrence.Expand(*pattern, req.StartDatetime, req.EndDatetime, s.creationLimit)
			if err != nil {
				s.compensate(ctx, tx, event.ID, detail.ID)
				return err
			}
			windows = expanded
		}

		reps := seedFromRequest(req, event, detail).occurrences(windows, now)
		if err := tx.Repetitions().InsertBatch(ctx, reps); err != nil {
			return err
		}

		ids := make([]uuid.UUID, len(reps))
		for i, rep := range reps {
			ids[i] = rep.ID
		}
		result = &CreateResult{
			Event:             event,
			EventDetail:       detail,
			RepetitionIDs:     ids,
			FirstOccurrence:   reps[0],
			CreatedEventCount: len(reps),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// compensate removes the event and detail written ahead of a failed
// expansion. Both deletes are attempted; failures are only logged so the
// original error reaches the caller.
func (s *SeriesService) compensate(ctx context.Context, tx repository.Store, eventID, detailID uuid.UUID) {
	s.metrics.IncrementCounter(metrics.Compensations)

	if _, err := tx.Events().Delete(ctx, eventID); err != nil {
		s.metrics.IncrementCounter(metrics.CompensationFailures)
		log.Warn().Err(err).Str("event_id", eventID.String()).Msg("Failed to remove partially created event")
	}
	if _, err := tx.Details().Delete(ctx, detailID); err != nil {
		s.metrics.IncrementCounter(metrics.CompensationFailures)
		log.Warn().Err(err).Str("event_detail_id", detailID.String()).Msg("Failed to remove partially created event detail")
	}
}

func newEventDetail(req *CreateSeriesRequest, now time.Time) *models.EventDetail {
	detail := &models.EventDetail{
		ID:               uuid.New(),
		Title:            req.Title,
		Description:      req.Description,
		ShortDescription: req.ShortDescription,
		EventType:        req.EventType,
		IsRestricted:     req.IsRestricted,
		Location:         req.Location,
		Latitude:         req.Latitude,
		Longitude:        req.Longitude,
		OnlineProvider:   req.OnlineProvider,
		MeetingDetails:   models.MergeJSON(nil, req.MeetingDetails),
		Recordings:       models.MergeJSON(nil, req.Recordings),
		MaxAttendees:     req.MaxAttendees,
		IdealTime:        req.IdealTime,
		Status:           req.Status,
		Metadata:         models.MergeJSON(nil, req.Metadata),
		CreatedBy:        req.CreatedBy,
		UpdatedBy:        req.CreatedBy,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if req.EventType == models.EventTypeOffline {
		detail.OnlineProvider = nil
		detail.MeetingDetails = nil
		detail.Recordings = nil
		return detail
	}

	if detail.MeetingDetails == nil {
		detail.MeetingDetails = map[string]interface{}{}
	}
	detail.MeetingDetails["providerGenerated"] = false
	return detail
}

// occurrenceSeed holds the fields copied into every generated occurrence.
type occurrenceSeed struct {
	eventID       uuid.UUID
	eventDetailID uuid.UUID
	online        bool
	createdBy     string
	updatedBy     string
	onlineDetails map[string]interface{}
	erMetaData    map[string]interface{}
}

// seedFromRequest seeds occurrences of a newly created series.
func seedFromRequest(req *CreateSeriesRequest, event *models.Event, detail *models.EventDetail) occurrenceSeed {
	erMetaData := req.ErMetaData
	if erMetaData == nil {
		erMetaData = map[string]interface{}{}
	}
	return occurrenceSeed{
		eventID:       event.ID,
		eventDetailID: detail.ID,
		online:        detail.EventType == models.EventTypeOnline,
		createdBy:     req.CreatedBy,
		updatedBy:     req.CreatedBy,
		onlineDetails: detail.MeetingDetails,
		erMetaData:    erMetaData,
	}
}

// seedFromOccurrence seeds occurrences regenerated by an edit. They keep the
// edited occurrence's author, online details and metadata.
func seedFromOccurrence(target *models.EventRepetition, event *models.Event, detail *models.EventDetail, updatedBy string) occurrenceSeed {
	return occurrenceSeed{
		eventID:       event.ID,
		eventDetailID: detail.ID,
		online:        detail.EventType == models.EventTypeOnline,
		createdBy:     target.CreatedBy,
		updatedBy:     updatedBy,
		onlineDetails: target.OnlineDetails,
		erMetaData:    target.ErMetaData,
	}
}

func (seed occurrenceSeed) occurrences(windows []recurrence.Window, now time.Time) []*models.EventRepetition {
	reps := make([]*models.EventRepetition, len(windows))
	for i, w := range windows {
		rep := &models.EventRepetition{
			ID:            uuid.New(),
			EventID:       seed.eventID,
			EventDetailID: seed.eventDetailID,
			StartDateTime: w.Start,
			EndDateTime:   w.End,
			OnlineDetails: models.MergeJSON(nil, seed.onlineDetails),
			ErMetaData:    models.MergeJSON(nil, seed.erMetaData),
			CreatedBy:     seed.createdBy,
			UpdatedBy:     seed.updatedBy,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if seed.online {
			rep.OnlineDetails = models.MergeJSON(rep.OnlineDetails, map[string]interface{}{"occurenceId": ""})
		}
		reps[i] = rep
	}
	return reps
}
