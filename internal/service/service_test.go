package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"example.com/backstage/services/events/internal/messaging"
	"example.com/backstage/services/events/internal/models"
	"example.com/backstage/services/events/internal/search"
)

// MockPublisher is a mock implementation of messaging.Publisher
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, change messaging.SeriesChange) error {
	args := m.Called(ctx, change)
	return args.Error(0)
}

func (m *MockPublisher) Close() error {
	args := m.Called()
	return args.Error(0)
}

// MockIndexer is a mock implementation of search.Indexer
type MockIndexer struct {
	mock.Mock
}

func (m *MockIndexer) SyncSeries(ctx context.Context, eventID uuid.UUID, docs []search.OccurrenceDocument) error {
	args := m.Called(ctx, eventID, docs)
	return args.Error(0)
}

// Mon 4 March 2024, 10:00 UTC
var seriesStart = time.Date(2024, time.March, 4, 10, 0, 0, 0, time.UTC)

type fixture struct {
	store     *memStore
	clock     *clockwork.FakeClock
	publisher *MockPublisher
	indexer   *MockIndexer
	svc       *SeriesService
}

func newFixture(t *testing.T, transactional bool, limit int) *fixture {
	t.Helper()

	f := &fixture{
		store:     newMemStore(transactional),
		clock:     clockwork.NewFakeClockAt(time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC)),
		publisher: new(MockPublisher),
		indexer:   new(MockIndexer),
	}
	f.publisher.On("Publish", mock.Anything, mock.AnythingOfType("messaging.SeriesChange")).Return(nil)
	f.indexer.On("SyncSeries", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	f.svc = NewSeriesService(f.store, limit, Dependencies{
		Publisher: f.publisher,
		Indexer:   f.indexer,
		Clock:     f.clock,
	})
	return f
}

// advanceTo moves the fake clock forward to t.
func (f *fixture) advanceTo(t time.Time) {
	f.clock.Advance(t.Sub(f.clock.Now()))
}

func weeklyRequest(start, until time.Time, days ...int) CreateSeriesRequest {
	return CreateSeriesRequest{
		Title:         "Team sync",
		EventType:     models.EventTypeOffline,
		Status:        models.StatusLive,
		StartDatetime: start,
		EndDatetime:   start.Add(time.Hour),
		IsRecurring:   true,
		RecurrencePattern: &models.RecurrencePattern{
			Frequency:    models.FrequencyWeekly,
			Interval:     1,
			DaysOfWeek:   days,
			EndCondition: models.EndDateCondition(until),
		},
		CreatedBy: "organiser",
	}
}

func endOfDay(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 23, 59, 59, 0, time.UTC)
}

func mustCreate(t *testing.T, f *fixture, req CreateSeriesRequest) *CreateResult {
	t.Helper()
	result, err := f.svc.CreateSeries(context.Background(), req)
	require.NoError(t, err)
	return result
}

func startsOf(reps []*models.EventRepetition) []time.Time {
	out := make([]time.Time, len(reps))
	for i, r := range reps {
		out[i] = r.StartDateTime.UTC()
	}
	return out
}

func strPtr(s string) *string { return &s }

func timePtr(t time.Time) *time.Time { return &t }
