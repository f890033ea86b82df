package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// EventType distinguishes online from in-person events
type EventType string

const (
	EventTypeOnline  EventType = "online"
	EventTypeOffline EventType = "offline"
)

// Status is the publication state of an EventDetail
type Status string

const (
	StatusLive     Status = "live"
	StatusDraft    Status = "draft"
	StatusInactive Status = "inActive"
	StatusArchived Status = "archived"
)

// Event is the series master. It owns the recurrence rule and points at the
// detail row that carries the series' current content.
type Event struct {
	ID                    uuid.UUID                            `gorm:"type:uuid;primaryKey" json:"eventId"`
	EventDetailID         uuid.UUID                            `gorm:"type:uuid;not null;index" json:"eventDetailId"`
	IsRecurring           bool                                 `gorm:"not null;default:false" json:"isRecurring"`
	RecurrencePattern     datatypes.JSONType[RecurrencePattern] `gorm:"type:jsonb;not null" json:"recurrencePattern"`
	AutoEnroll            bool                                 `gorm:"not null;default:false" json:"autoEnroll"`
	RegistrationStartDate *time.Time                           `json:"registrationStartDate,omitempty"`
	RegistrationEndDate   *time.Time                           `json:"registrationEndDate,omitempty"`
	CreatedBy             string                               `gorm:"not null" json:"createdBy"`
	UpdatedBy             string                               `json:"updatedBy"`
	CreatedAt             time.Time                            `json:"createdAt"`
	UpdatedAt             time.Time                            `json:"updatedAt"`
}

// Pattern returns the series' recurrence rule and whether the event has one.
func (e *Event) Pattern() (RecurrencePattern, bool) {
	p := e.RecurrencePattern.Data()
	return p, e.IsRecurring && p.Frequency != ""
}

// SetPattern stores p as the event's recurrence rule.
func (e *Event) SetPattern(p RecurrencePattern) {
	e.RecurrencePattern = datatypes.NewJSONType(p)
}

// EventDetail is the content shared by one or more occurrences.
type EventDetail struct {
	ID               uuid.UUID         `gorm:"type:uuid;primaryKey" json:"eventDetailId"`
	Title            string            `gorm:"not null" json:"title"`
	Description      string            `json:"description"`
	ShortDescription string            `json:"shortDescription"`
	EventType        EventType         `gorm:"not null" json:"eventType"`
	IsRestricted     bool              `gorm:"not null" json:"isRestricted"`
	Location         *string           `json:"location,omitempty"`
	Latitude         *float64          `json:"latitude,omitempty"`
	Longitude        *float64          `json:"longitude,omitempty"`
	OnlineProvider   *string           `json:"onlineProvider,omitempty"`
	MeetingDetails   datatypes.JSONMap `gorm:"type:jsonb" json:"meetingDetails,omitempty"`
	Recordings       datatypes.JSONMap `gorm:"type:jsonb" json:"recordings,omitempty"`
	MaxAttendees     int               `gorm:"not null;default:0" json:"maxAttendees"`
	IdealTime        *int              `json:"idealTime,omitempty"`
	Status           Status            `gorm:"not null;index" json:"status"`
	Metadata         datatypes.JSONMap `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedBy        string            `gorm:"not null" json:"createdBy"`
	UpdatedBy        string            `json:"updatedBy"`
	CreatedAt        time.Time         `json:"createdAt"`
	UpdatedAt        time.Time         `json:"updatedAt"`
}

// Clone returns a copy of d with its own json maps and a zero ID.
func (d *EventDetail) Clone() *EventDetail {
	c := *d
	c.ID = uuid.Nil
	c.MeetingDetails = MergeJSON(d.MeetingDetails, nil)
	c.Recordings = MergeJSON(d.Recordings, nil)
	c.Metadata = MergeJSON(d.Metadata, nil)
	return &c
}

// EventRepetition is one dated occurrence of an Event.
type EventRepetition struct {
	ID            uuid.UUID         `gorm:"type:uuid;primaryKey" json:"eventRepetitionId"`
	EventID       uuid.UUID         `gorm:"type:uuid;not null;index:idx_event_repetitions_event_start,priority:1" json:"eventId"`
	EventDetailID uuid.UUID         `gorm:"type:uuid;not null;index" json:"eventDetailId"`
	StartDateTime time.Time         `gorm:"not null;index:idx_event_repetitions_event_start,priority:2" json:"startDateTime"`
	EndDateTime   time.Time         `gorm:"not null" json:"endDateTime"`
	OnlineDetails datatypes.JSONMap `gorm:"type:jsonb" json:"onlineDetails,omitempty"`
	ErMetaData    datatypes.JSONMap `gorm:"type:jsonb" json:"erMetaData,omitempty"`
	EventDetail   *EventDetail      `gorm:"foreignKey:EventDetailID" json:"eventDetail,omitempty"`
	CreatedBy     string            `gorm:"not null" json:"createdBy"`
	UpdatedBy     string            `json:"updatedBy"`
	CreatedAt     time.Time         `json:"createdAt"`
	UpdatedAt     time.Time         `json:"updatedAt"`
}

// MergeJSON returns a new map holding base overlaid key-wise with patch.
func MergeJSON(base datatypes.JSONMap, patch map[string]interface{}) datatypes.JSONMap {
	if base == nil && patch == nil {
		return nil
	}
	out := make(datatypes.JSONMap, len(base)+len(patch))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range patch {
		out[k] = v
	}
	return out
}
