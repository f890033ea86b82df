package repository

import (
	"context"

	"gorm.io/gorm"
)

// Store groups the repositories the series engine writes through.
type Store interface {
	Events() EventRepository
	Details() EventDetailRepository
	Repetitions() EventRepetitionRepository

	// WithTransaction runs fn against a Store bound to one transaction. The
	// transaction commits when fn returns nil and rolls back otherwise.
	WithTransaction(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
}

type store struct {
	db          *gorm.DB
	events      EventRepository
	details     EventDetailRepository
	repetitions EventRepetitionRepository
}

// NewStore creates a gorm backed Store
func NewStore(db *gorm.DB) Store {
	return &store{
		db:          db,
		events:      NewEventRepository(db),
		details:     NewEventDetailRepository(db),
		repetitions: NewEventRepetitionRepository(db),
	}
}

func (s *store) Events() EventRepository                { return s.events }
func (s *store) Details() EventDetailRepository         { return s.details }
func (s *store) Repetitions() EventRepetitionRepository { return s.repetitions }

// WithTransaction executes the given function within a database transaction
func (s *store) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, NewStore(tx))
	})
}
