package service

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"example.com/backstage/services/events/internal/errs"
	"example.com/backstage/services/events/internal/models"
	"example.com/backstage/services/events/internal/repository"
)

// memStore is an in-memory repository.Store. With transactional unset it
// behaves like a backend without rollback, which is what compensation guards
// against.
type memStore struct {
	events  map[uuid.UUID]*models.Event
	details map[uuid.UUID]*models.EventDetail
	reps    map[uuid.UUID]*models.EventRepetition

	transactional bool
	failInsert    error
}

func newMemStore(transactional bool) *memStore {
	return &memStore{
		events:        map[uuid.UUID]*models.Event{},
		details:       map[uuid.UUID]*models.EventDetail{},
		reps:          map[uuid.UUID]*models.EventRepetition{},
		transactional: transactional,
	}
}

func (s *memStore) Events() repository.EventRepository                { return memEvents{s} }
func (s *memStore) Details() repository.EventDetailRepository         { return memDetails{s} }
func (s *memStore) Repetitions() repository.EventRepetitionRepository { return memRepetitions{s} }

func (s *memStore) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx repository.Store) error) error {
	if !s.transactional {
		return fn(ctx, s)
	}

	events, details, reps := s.snapshot()
	if err := fn(ctx, s); err != nil {
		s.events, s.details, s.reps = events, details, reps
		return err
	}
	return nil
}

func (s *memStore) snapshot() (map[uuid.UUID]*models.Event, map[uuid.UUID]*models.EventDetail, map[uuid.UUID]*models.EventRepetition) {
	events := make(map[uuid.UUID]*models.Event, len(s.events))
	for id, e := range s.events {
		events[id] = copyEvent(e)
	}
	details := make(map[uuid.UUID]*models.EventDetail, len(s.details))
	for id, d := range s.details {
		details[id] = copyDetail(d)
	}
	reps := make(map[uuid.UUID]*models.EventRepetition, len(s.reps))
	for id, r := range s.reps {
		reps[id] = copyRepetition(r)
	}
	return events, details, reps
}

// sorted returns the stored occurrences matching filter, earliest first.
func (s *memStore) sorted(filter repository.RepetitionFilter) []*models.EventRepetition {
	var out []*models.EventRepetition
	for _, r := range s.reps {
		if filter.Match(r, s.details[r.EventDetailID]) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartDateTime.Before(out[j].StartDateTime)
	})
	return out
}

// occurrences returns copies of every occurrence of eventID, earliest first.
func (s *memStore) occurrences(eventID uuid.UUID) []*models.EventRepetition {
	var out []*models.EventRepetition
	for _, r := range s.sorted(repository.RepetitionFilter{EventID: eventID}) {
		out = append(out, copyRepetition(r))
	}
	return out
}

func copyEvent(e *models.Event) *models.Event {
	c := *e
	return &c
}

func copyDetail(d *models.EventDetail) *models.EventDetail {
	c := d.Clone()
	c.ID = d.ID
	return c
}

func copyRepetition(r *models.EventRepetition) *models.EventRepetition {
	c := *r
	c.OnlineDetails = models.MergeJSON(r.OnlineDetails, nil)
	c.ErMetaData = models.MergeJSON(r.ErMetaData, nil)
	c.EventDetail = nil
	return &c
}

type memEvents struct{ s *memStore }

func (m memEvents) FindOne(_ context.Context, id uuid.UUID) (*models.Event, error) {
	e, ok := m.s.events[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return copyEvent(e), nil
}

func (m memEvents) Create(_ context.Context, event *models.Event) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	m.s.events[event.ID] = copyEvent(event)
	return nil
}

func (m memEvents) UpdatePattern(_ context.Context, id uuid.UUID, pattern models.RecurrencePattern, updatedBy string) error {
	e, ok := m.s.events[id]
	if !ok {
		return repository.ErrNotFound
	}
	e.SetPattern(pattern)
	e.UpdatedBy = updatedBy
	return nil
}

func (m memEvents) UpdateDetail(_ context.Context, id, detailID uuid.UUID, updatedBy string) error {
	e, ok := m.s.events[id]
	if !ok {
		return repository.ErrNotFound
	}
	e.EventDetailID = detailID
	e.UpdatedBy = updatedBy
	return nil
}

func (m memEvents) CountByDetail(_ context.Context, detailID uuid.UUID) (int64, error) {
	var n int64
	for _, e := range m.s.events {
		if e.EventDetailID == detailID {
			n++
		}
	}
	return n, nil
}

func (m memEvents) Delete(_ context.Context, id uuid.UUID) (int64, error) {
	if _, ok := m.s.events[id]; !ok {
		return 0, nil
	}
	delete(m.s.events, id)
	for rid, r := range m.s.reps {
		if r.EventID == id {
			delete(m.s.reps, rid)
		}
	}
	return 1, nil
}

func (m memEvents) DeleteWithoutOccurrences(_ context.Context, createdBefore time.Time) (int64, error) {
	var n int64
	for id, e := range m.s.events {
		if !e.CreatedAt.Before(createdBefore) {
			continue
		}
		if len(m.s.sorted(repository.RepetitionFilter{EventID: id})) == 0 {
			delete(m.s.events, id)
			n++
		}
	}
	return n, nil
}

type memDetails struct{ s *memStore }

func (m memDetails) FindOne(_ context.Context, id uuid.UUID) (*models.EventDetail, error) {
	d, ok := m.s.details[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return copyDetail(d), nil
}

func (m memDetails) Create(_ context.Context, detail *models.EventDetail) error {
	if detail.ID == uuid.Nil {
		detail.ID = uuid.New()
	}
	m.s.details[detail.ID] = copyDetail(detail)
	return nil
}

func (m memDetails) Save(_ context.Context, detail *models.EventDetail) error {
	m.s.details[detail.ID] = copyDetail(detail)
	return nil
}

func (m memDetails) Delete(_ context.Context, ids ...uuid.UUID) (int64, error) {
	var n int64
	for _, id := range ids {
		if _, ok := m.s.details[id]; ok {
			delete(m.s.details, id)
			n++
		}
	}
	return n, nil
}

func (m memDetails) DeleteUnreferenced(ctx context.Context, createdBefore time.Time) (int64, error) {
	var n int64
	for id, d := range m.s.details {
		if !d.CreatedAt.Before(createdBefore) {
			continue
		}
		events, _ := memEvents(m).CountByDetail(ctx, id)
		if events == 0 && len(m.s.sorted(repository.RepetitionFilter{EventDetailID: id})) == 0 {
			delete(m.s.details, id)
			n++
		}
	}
	return n, nil
}

type memRepetitions struct{ s *memStore }

func (m memRepetitions) FindOne(ctx context.Context, filter repository.RepetitionFilter) (*models.EventRepetition, error) {
	reps, _ := m.Find(ctx, filter)
	if len(reps) == 0 {
		return nil, repository.ErrNotFound
	}
	return reps[0], nil
}

func (m memRepetitions) Find(_ context.Context, filter repository.RepetitionFilter) ([]*models.EventRepetition, error) {
	var out []*models.EventRepetition
	for _, r := range m.s.sorted(filter) {
		c := copyRepetition(r)
		if filter.WithDetail {
			if d, ok := m.s.details[r.EventDetailID]; ok {
				c.EventDetail = copyDetail(d)
			}
		}
		out = append(out, c)
	}
	return out, nil
}

func (m memRepetitions) Count(_ context.Context, filter repository.RepetitionFilter) (int64, error) {
	return int64(len(m.s.sorted(filter))), nil
}

func (m memRepetitions) InsertBatch(_ context.Context, reps []*models.EventRepetition) error {
	if m.s.failInsert != nil {
		return m.s.failInsert
	}
	for _, r := range reps {
		if r.ID == uuid.Nil {
			r.ID = uuid.New()
		}
		m.s.reps[r.ID] = copyRepetition(r)
	}
	return nil
}

func (m memRepetitions) Update(_ context.Context, filter repository.RepetitionFilter, patch repository.RepetitionPatch) (int64, error) {
	if !filter.Scoped() {
		return 0, errs.Storage(repository.ErrMissingFilter, "failed to update occurrences")
	}
	matched := m.s.sorted(filter)
	for _, r := range matched {
		patch.Apply(r)
	}
	return int64(len(matched)), nil
}

func (m memRepetitions) Delete(_ context.Context, filter repository.RepetitionFilter) (int64, error) {
	if !filter.Scoped() {
		return 0, errs.Storage(errors.WithStack(repository.ErrMissingFilter), "failed to delete occurrences")
	}
	matched := m.s.sorted(filter)
	for _, r := range matched {
		delete(m.s.reps, r.ID)
	}
	return int64(len(matched)), nil
}
