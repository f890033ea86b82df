// Package service creates recurring event series and reconciles edits made
// to them.
package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"example.com/backstage/services/events/internal/cache"
	"example.com/backstage/services/events/internal/messaging"
	"example.com/backstage/services/events/internal/metrics"
	"example.com/backstage/services/events/internal/repository"
	"example.com/backstage/services/events/internal/search"
	"example.com/backstage/services/events/internal/tracing"
)

// Dependencies are the optional collaborators of SeriesService. Nil fields
// fall back to implementations that do nothing.
type Dependencies struct {
	Lock      cache.SeriesLock
	Publisher messaging.Publisher
	Indexer   search.Indexer
	Tracer    tracing.Tracer
	Metrics   *metrics.Metrics
	Clock     clockwork.Clock
}

// SeriesService handles series creation and update reconciliation
type SeriesService struct {
	store         repository.Store
	creationLimit int
	lock          cache.SeriesLock
	publisher     messaging.Publisher
	indexer       search.Indexer
	tracer        tracing.Tracer
	metrics       *metrics.Metrics
	clock         clockwork.Clock
}

// NewSeriesService creates a new series service. creationLimit bounds how
// many occurrences a single request may materialise.
func NewSeriesService(store repository.Store, creationLimit int, deps Dependencies) *SeriesService {
	s := &SeriesService{
		store:         store,
		creationLimit: creationLimit,
		lock:          deps.Lock,
		publisher:     deps.Publisher,
		indexer:       deps.Indexer,
		tracer:        deps.Tracer,
		metrics:       deps.Metrics,
		clock:         deps.Clock,
	}
	if s.lock == nil {
		s.lock = noopLock{}
	}
	if s.publisher == nil {
		s.publisher = messaging.Noop()
	}
	if s.indexer == nil {
		s.indexer = search.Noop()
	}
	if s.tracer == nil {
		s.tracer = tracing.Disabled()
	}
	if s.metrics == nil {
		s.metrics = metrics.NewMetrics()
	}
	if s.clock == nil {
		s.clock = clockwork.NewRealClock()
	}
	return s
}

// Metrics exposes the collector the service records into
func (s *SeriesService) Metrics() *metrics.Metrics {
	return s.metrics
}

// afterCommit publishes change and refreshes the projection of every series
// it touched. Failures are logged; the committed write stands.
func (s *SeriesService) afterCommit(ctx context.Context, change messaging.SeriesChange) {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := s.publisher.Publish(gctx, change); err != nil {
			log.Warn().Err(err).Str("type", change.Type).Msg("Failed to publish series change")
		}
		return nil
	})

	for _, eventID := range change.EventIDs {
		eventID := eventID
		g.Go(func() error {
			if err := s.project(gctx, eventID); err != nil {
				log.Warn().Err(err).Str("event_id", eventID.String()).Msg("Failed to refresh series projection")
			}
			return nil
		})
	}

	_ = g.Wait()
}

func (s *SeriesService) project(ctx context.Context, eventID uuid.UUID) error {
	reps, err := s.store.Repetitions().Find(ctx, repository.RepetitionFilter{EventID: eventID, WithDetail: true})
	if err != nil {
		return err
	}
	docs := make([]search.OccurrenceDocument, 0, len(reps))
	for _, rep := range reps {
		docs = append(docs, search.NewOccurrenceDocument(rep))
	}
	return s.indexer.SyncSeries(ctx, eventID, docs)
}

func (s *SeriesService) now() time.Time {
	return s.clock.Now()
}

type noopLock struct{}

func (noopLock) Acquire(context.Context, uuid.UUID) (func(), error) { return func() {}, nil }
func (noopLock) Close() error                                       { return nil }
