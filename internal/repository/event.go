package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"example.com/backstage/services/events/internal/models"
)

// EventRepository defines the interface for series masters
type EventRepository interface {
	FindOne(ctx context.Context, id uuid.UUID) (*models.Event, error)
	Create(ctx context.Context, event *models.Event) error
	UpdatePattern(ctx context.Context, id uuid.UUID, pattern models.RecurrencePattern, updatedBy string) error
	UpdateDetail(ctx context.Context, id, detailID uuid.UUID, updatedBy string) error
	CountByDetail(ctx context.Context, detailID uuid.UUID) (int64, error)
	Delete(ctx context.Context, id uuid.UUID) (int64, error)
	DeleteWithoutOccurrences(ctx context.Context, createdBefore time.Time) (int64, error)
}

type eventRepository struct {
	db *gorm.DB
}

// NewEventRepository creates a new event repository
func NewEventRepository(db *gorm.DB) EventRepository {
	return &eventRepository{db: db}
}

// FindOne gets an event by ID
func (r *eventRepository) FindOne(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	var event models.Event
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&event).Error; err != nil {
		return nil, wrap(err, "failed to get event")
	}
	return &event, nil
}

// Create inserts a new event, assigning an ID when it has none
func (r *eventRepository) Create(ctx context.Context, event *models.Event) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	return wrap(r.db.WithContext(ctx).Create(event).Error, "failed to create event")
}

// UpdatePattern replaces the stored recurrence rule
func (r *eventRepository) UpdatePattern(ctx context.Context, id uuid.UUID, pattern models.RecurrencePattern, updatedBy string) error {
	var event models.Event
	event.SetPattern(pattern)
	return r.update(ctx, id, map[string]interface{}{
		"recurrence_pattern": event.RecurrencePattern,
		"updated_by":         updatedBy,
	}, "failed to update recurrence pattern")
}

// UpdateDetail points the event at another detail row
func (r *eventRepository) UpdateDetail(ctx context.Context, id, detailID uuid.UUID, updatedBy string) error {
	return r.update(ctx, id, map[string]interface{}{
		"event_detail_id": detailID,
		"updated_by":      updatedBy,
	}, "failed to update event detail reference")
}

func (r *eventRepository) update(ctx context.Context, id uuid.UUID, cols map[string]interface{}, message string) error {
	result := r.db.WithContext(ctx).Model(&models.Event{}).Where("id = ?", id).Updates(cols)
	if result.Error != nil {
		return wrap(result.Error, message)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CountByDetail counts events whose current detail is detailID
func (r *eventRepository) CountByDetail(ctx context.Context, detailID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Event{}).Where("event_detail_id = ?", detailID).Count(&count).Error
	return count, wrap(err, "failed to count events")
}

// Delete removes an event
func (r *eventRepository) Delete(ctx context.Context, id uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Event{})
	return result.RowsAffected, wrap(result.Error, "failed to delete event")
}

// DeleteWithoutOccurrences removes events older than createdBefore that no
// occurrence belongs to
func (r *eventRepository) DeleteWithoutOccurrences(ctx context.Context, createdBefore time.Time) (int64, error) {
	occurrences := r.db.Session(&gorm.Session{NewDB: true}).
		Model(&models.EventRepetition{}).
		Select("1").
		Where("event_repetitions.event_id = events.id")
	result := r.db.WithContext(ctx).
		Where("created_at < ?", createdBefore).
		Where("NOT EXISTS (?)", occurrences).
		Delete(&models.Event{})
	return result.RowsAffected, wrap(result.Error, "failed to delete empty events")
}
