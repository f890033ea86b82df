package cmd

import (
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"example.com/backstage/services/events/config"
	"example.com/backstage/services/events/internal/cache"
	"example.com/backstage/services/events/internal/database"
	"example.com/backstage/services/events/internal/messaging"
	"example.com/backstage/services/events/internal/metrics"
	"example.com/backstage/services/events/internal/repository"
	"example.com/backstage/services/events/internal/search"
	"example.com/backstage/services/events/internal/service"
	"example.com/backstage/services/events/internal/tracing"
)

// app bundles the series service with the connections it owns.
type app struct {
	series  *service.SeriesService
	metrics *metrics.Metrics
	closers []func()
}

// newApp connects to the database and every optional integration. Optional
// integrations that fail to start are disabled with a warning.
func newApp(cfg config.Config) (*app, error) {
	m := metrics.NewMetrics()
	a := &app{metrics: m}

	db, err := database.Connect(cfg.DB, m)
	if err != nil {
		return nil, err
	}
	if sqlDB, err := db.DB(); err == nil {
		a.closers = append(a.closers, func() { _ = sqlDB.Close() })
	}

	deps := service.Dependencies{Metrics: m, Clock: clockwork.NewRealClock()}

	lock, err := cache.NewRedisLock(cfg.Redis, cfg.Series.LockTTL)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize Redis lock, continuing without cross-instance locking")
	} else {
		deps.Lock = lock
		a.closers = append(a.closers, func() { _ = lock.Close() })
	}

	tracer, err := tracing.NewTracer(cfg.Tracing)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize tracer, continuing without tracing")
	} else {
		deps.Tracer = tracer
		a.closers = append(a.closers, tracer.Close)
	}

	indexer, err := search.NewIndexer(cfg.Elastic)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize Elasticsearch client, continuing without search projection")
	} else {
		deps.Indexer = indexer
	}

	publisher, err := messaging.NewPublisher(cfg.Azure)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize Azure Service Bus publisher, continuing without change events")
	} else {
		deps.Publisher = publisher
		a.closers = append(a.closers, func() { _ = publisher.Close() })
	}

	a.series = service.NewSeriesService(repository.NewStore(db), cfg.Series.CreationLimit, deps)
	return a, nil
}

// Close releases connections in reverse order of creation.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}
