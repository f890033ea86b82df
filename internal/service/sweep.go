package service

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"example.com/backstage/services/events/internal/metrics"
	"example.com/backstage/services/events/internal/repository"
)

// SweepResult counts the rows a sweep removed
type SweepResult struct {
	Events  int64
	Details int64
}

// SweepOrphans deletes events left without occurrences and details nothing
// references. Rows younger than gracePeriod are kept so in-flight writes are
// not raced.
func (s *SeriesService) SweepOrphans(ctx context.Context, gracePeriod time.Duration) (SweepResult, error) {
	cutoff := s.now().Add(-gracePeriod)

	var result SweepResult
	err := s.store.WithTransaction(ctx, func(ctx context.Context, tx repository.Store) error {
		var err error
		if result.Events, err = tx.Events().DeleteWithoutOccurrences(ctx, cutoff); err != nil {
			return err
		}
		result.Details, err = tx.Details().DeleteUnreferenced(ctx, cutoff)
		return err
	})
	if err != nil {
		log.Error().Err(err).Msg("Failed to sweep orphaned series rows")
		return SweepResult{}, err
	}

	s.metrics.IncrementCounterBy(metrics.SweptEvents, result.Events)
	s.metrics.IncrementCounterBy(metrics.SweptDetails, result.Details)
	if result.Events > 0 || result.Details > 0 {
		log.Info().
			Int64("events", result.Events).
			Int64("details", result.Details).
			Msg("Swept orphaned series rows")
	}
	return result, nil
}
