package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"example.com/backstage/services/events/internal/errs"
	"example.com/backstage/services/events/internal/models"
)

// EventRepetitionRepository defines the interface for occurrences. Every
// list is ordered by start time ascending.
type EventRepetitionRepository interface {
	FindOne(ctx context.Context, filter RepetitionFilter) (*models.EventRepetition, error)
	Find(ctx context.Context, filter RepetitionFilter) ([]*models.EventRepetition, error)
	Count(ctx context.Context, filter RepetitionFilter) (int64, error)
	InsertBatch(ctx context.Context, repetitions []*models.EventRepetition) error
	Update(ctx context.Context, filter RepetitionFilter, patch RepetitionPatch) (int64, error)
	Delete(ctx context.Context, filter RepetitionFilter) (int64, error)
}

type eventRepetitionRepository struct {
	db *gorm.DB
}

// NewEventRepetitionRepository creates a new occurrence repository
func NewEventRepetitionRepository(db *gorm.DB) EventRepetitionRepository {
	return &eventRepetitionRepository{db: db}
}

func (r *eventRepetitionRepository) query(ctx context.Context, filter RepetitionFilter) *gorm.DB {
	q := filter.apply(r.db.WithContext(ctx).Model(&models.EventRepetition{}))
	if filter.WithDetail {
		q = q.Preload("EventDetail")
	}
	return q
}

// FindOne gets the earliest occurrence matching filter
func (r *eventRepetitionRepository) FindOne(ctx context.Context, filter RepetitionFilter) (*models.EventRepetition, error) {
	var repetition models.EventRepetition
	err := r.query(ctx, filter).Order("start_date_time ASC").First(&repetition).Error
	if err != nil {
		return nil, wrap(err, "failed to get event repetition")
	}
	return &repetition, nil
}

// Find lists occurrences matching filter
func (r *eventRepetitionRepository) Find(ctx context.Context, filter RepetitionFilter) ([]*models.EventRepetition, error) {
	var repetitions []*models.EventRepetition
	err := r.query(ctx, filter).Order("start_date_time ASC").Find(&repetitions).Error
	if err != nil {
		return nil, wrap(err, "failed to list event repetitions")
	}
	return repetitions, nil
}

// Count counts occurrences matching filter
func (r *eventRepetitionRepository) Count(ctx context.Context, filter RepetitionFilter) (int64, error) {
	var count int64
	err := filter.apply(r.db.WithContext(ctx).Model(&models.EventRepetition{})).Count(&count).Error
	return count, wrap(err, "failed to count event repetitions")
}

// InsertBatch writes all occurrences in a single multi-row insert
func (r *eventRepetitionRepository) InsertBatch(ctx context.Context, repetitions []*models.EventRepetition) error {
	if len(repetitions) == 0 {
		return nil
	}
	for _, repetition := range repetitions {
		if repetition.ID == uuid.Nil {
			repetition.ID = uuid.New()
		}
	}
	return wrap(r.db.WithContext(ctx).Create(&repetitions).Error, "failed to insert event repetitions")
}

// Update applies patch to every occurrence matching filter
func (r *eventRepetitionRepository) Update(ctx context.Context, filter RepetitionFilter, patch RepetitionPatch) (int64, error) {
	if !filter.Scoped() {
		return 0, errs.Storage(ErrMissingFilter, "failed to update event repetitions")
	}
	if patch.Empty() {
		return 0, nil
	}
	result := filter.apply(r.db.WithContext(ctx).Model(&models.EventRepetition{})).Updates(patch.columns())
	return result.RowsAffected, wrap(result.Error, "failed to update event repetitions")
}

// Delete removes every occurrence matching filter
func (r *eventRepetitionRepository) Delete(ctx context.Context, filter RepetitionFilter) (int64, error) {
	if !filter.Scoped() {
		return 0, errs.Storage(ErrMissingFilter, "failed to delete event repetitions")
	}
	result := filter.apply(r.db.WithContext(ctx)).Delete(&models.EventRepetition{})
	return result.RowsAffected, wrap(result.Error, "failed to delete event repetitions")
}
