package repository

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"example.com/backstage/services/events/internal/models"
)

// RepetitionFilter composes the predicates occurrence queries support. Zero
// fields are ignored.
type RepetitionFilter struct {
	IDs             []uuid.UUID
	ExcludeIDs      []uuid.UUID
	EventID         uuid.UUID
	EventDetailID   uuid.UUID
	StartFrom       *time.Time
	StartAfter      *time.Time
	StartBefore     *time.Time
	StartAtOrBefore *time.Time
	EndAfter        *time.Time
	NotArchived     bool
	WithDetail      bool
}

// TimeRef returns a pointer to t for use in filters.
func TimeRef(t time.Time) *time.Time {
	return &t
}

// Scoped reports whether f narrows the query to an event, a detail or a set
// of ids. Writes refuse unscoped filters.
func (f RepetitionFilter) Scoped() bool {
	return len(f.IDs) > 0 || f.EventID != uuid.Nil || f.EventDetailID != uuid.Nil
}

// Match evaluates f against a single row. detail may be nil when the row's
// detail is unknown, in which case NotArchived does not exclude it.
func (f RepetitionFilter) Match(r *models.EventRepetition, detail *models.EventDetail) bool {
	if len(f.IDs) > 0 && !containsID(f.IDs, r.ID) {
		return false
	}
	if containsID(f.ExcludeIDs, r.ID) {
		return false
	}
	if f.EventID != uuid.Nil && r.EventID != f.EventID {
		return false
	}
	if f.EventDetailID != uuid.Nil && r.EventDetailID != f.EventDetailID {
		return false
	}
	if f.StartFrom != nil && r.StartDateTime.Before(*f.StartFrom) {
		return false
	}
	if f.StartAfter != nil && !r.StartDateTime.After(*f.StartAfter) {
		return false
	}
	if f.StartBefore != nil && !r.StartDateTime.Before(*f.StartBefore) {
		return false
	}
	if f.StartAtOrBefore != nil && r.StartDateTime.After(*f.StartAtOrBefore) {
		return false
	}
	if f.EndAfter != nil && !r.EndDateTime.After(*f.EndAfter) {
		return false
	}
	if f.NotArchived && detail != nil && detail.Status == models.StatusArchived {
		return false
	}
	return true
}

func (f RepetitionFilter) apply(db *gorm.DB) *gorm.DB {
	q := db
	if len(f.IDs) > 0 {
		q = q.Where("id IN ?", f.IDs)
	}
	if len(f.ExcludeIDs) > 0 {
		q = q.Where("id NOT IN ?", f.ExcludeIDs)
	}
	if f.EventID != uuid.Nil {
		q = q.Where("event_id = ?", f.EventID)
	}
	if f.EventDetailID != uuid.Nil {
		q = q.Where("event_detail_id = ?", f.EventDetailID)
	}
	if f.StartFrom != nil {
		q = q.Where("start_date_time >= ?", *f.StartFrom)
	}
	if f.StartAfter != nil {
		q = q.Where("start_date_time > ?", *f.StartAfter)
	}
	if f.StartBefore != nil {
		q = q.Where("start_date_time < ?", *f.StartBefore)
	}
	if f.StartAtOrBefore != nil {
		q = q.Where("start_date_time <= ?", *f.StartAtOrBefore)
	}
	if f.EndAfter != nil {
		q = q.Where("end_date_time > ?", *f.EndAfter)
	}
	if f.NotArchived {
		live := db.Session(&gorm.Session{NewDB: true}).
			Model(&models.EventDetail{}).
			Select("id").
			Where("status <> ?", models.StatusArchived)
		q = q.Where("event_detail_id IN (?)", live)
	}
	return q
}

// RepetitionPatch is the set of column changes applied to matching
// occurrences. Nil fields are left untouched.
type RepetitionPatch struct {
	EventDetailID *uuid.UUID
	StartDateTime *time.Time
	EndDateTime   *time.Time
	OnlineDetails map[string]interface{}
	ErMetaData    map[string]interface{}
	UpdatedBy     string
}

// Empty reports whether p changes nothing.
func (p RepetitionPatch) Empty() bool {
	return p.EventDetailID == nil && p.StartDateTime == nil && p.EndDateTime == nil &&
		p.OnlineDetails == nil && p.ErMetaData == nil
}

// Apply writes p onto r.
func (p RepetitionPatch) Apply(r *models.EventRepetition) {
	if p.EventDetailID != nil {
		r.EventDetailID = *p.EventDetailID
	}
	if p.StartDateTime != nil {
		r.StartDateTime = *p.StartDateTime
	}
	if p.EndDateTime != nil {
		r.EndDateTime = *p.EndDateTime
	}
	if p.OnlineDetails != nil {
		r.OnlineDetails = models.MergeJSON(nil, p.OnlineDetails)
	}
	if p.ErMetaData != nil {
		r.ErMetaData = models.MergeJSON(nil, p.ErMetaData)
	}
	if p.UpdatedBy != "" {
		r.UpdatedBy = p.UpdatedBy
	}
}

func (p RepetitionPatch) columns() map[string]interface{} {
	cols := map[string]interface{}{}
	if p.EventDetailID != nil {
		cols["event_detail_id"] = *p.EventDetailID
	}
	if p.StartDateTime != nil {
		cols["start_date_time"] = *p.StartDateTime
	}
	if p.EndDateTime != nil {
		cols["end_date_time"] = *p.EndDateTime
	}
	if p.OnlineDetails != nil {
		cols["online_details"] = models.MergeJSON(nil, p.OnlineDetails)
	}
	if p.ErMetaData != nil {
		cols["er_meta_data"] = models.MergeJSON(nil, p.ErMetaData)
	}
	if p.UpdatedBy != "" {
		cols["updated_by"] = p.UpdatedBy
	}
	return cols
}

func containsID(ids []uuid.UUID, id uuid.UUID) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}
