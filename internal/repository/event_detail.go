package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"example.com/backstage/services/events/internal/models"
)

// EventDetailRepository defines the interface for content rows
type EventDetailRepository interface {
	FindOne(ctx context.Context, id uuid.UUID) (*models.EventDetail, error)
	Create(ctx context.Context, detail *models.EventDetail) error
	Save(ctx context.Context, detail *models.EventDetail) error
	Delete(ctx context.Context, ids ...uuid.UUID) (int64, error)
	DeleteUnreferenced(ctx context.Context, createdBefore time.Time) (int64, error)
}

type eventDetailRepository struct {
	db *gorm.DB
}

// NewEventDetailRepository creates a new event detail repository
func NewEventDetailRepository(db *gorm.DB) EventDetailRepository {
	return &eventDetailRepository{db: db}
}

// FindOne gets a detail row by ID
func (r *eventDetailRepository) FindOne(ctx context.Context, id uuid.UUID) (*models.EventDetail, error) {
	var detail models.EventDetail
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&detail).Error; err != nil {
		return nil, wrap(err, "failed to get event detail")
	}
	return &detail, nil
}

// Create inserts a detail row, assigning an ID when it has none
func (r *eventDetailRepository) Create(ctx context.Context, detail *models.EventDetail) error {
	if detail.ID == uuid.Nil {
		detail.ID = uuid.New()
	}
	return wrap(r.db.WithContext(ctx).Create(detail).Error, "failed to create event detail")
}

// Save writes every column of an existing detail row
func (r *eventDetailRepository) Save(ctx context.Context, detail *models.EventDetail) error {
	return wrap(r.db.WithContext(ctx).Save(detail).Error, "failed to update event detail")
}

// Delete removes detail rows by ID
func (r *eventDetailRepository) Delete(ctx context.Context, ids ...uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).Where("id IN ?", ids).Delete(&models.EventDetail{})
	return result.RowsAffected, wrap(result.Error, "failed to delete event details")
}

// DeleteUnreferenced removes detail rows older than createdBefore that
// neither an event nor an occurrence points at
func (r *eventDetailRepository) DeleteUnreferenced(ctx context.Context, createdBefore time.Time) (int64, error) {
	fresh := r.db.Session(&gorm.Session{NewDB: true})
	events := fresh.Model(&models.Event{}).Select("1").Where("events.event_detail_id = event_details.id")
	occurrences := fresh.Model(&models.EventRepetition{}).Select("1").Where("event_repetitions.event_detail_id = event_details.id")

	result := r.db.WithContext(ctx).
		Where("created_at < ?", createdBefore).
		Where("NOT EXISTS (?)", events).
		Where("NOT EXISTS (?)", occurrences).
		Delete(&models.EventDetail{})
	return result.RowsAffected, wrap(result.Error, "failed to delete unreferenced event details")
}
