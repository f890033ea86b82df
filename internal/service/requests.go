package service

import (
	"time"

	"github.com/google/uuid"

	"example.com/backstage/services/events/internal/models"
)

// CreateSeriesRequest carries everything needed to create an event and its
// occurrences.
type CreateSeriesRequest struct {
	Title             string                    `validate:"required"`
	Description       string
	ShortDescription  string
	EventType         models.EventType          `validate:"required,oneof=online offline"`
	IsRestricted      bool
	Location          *string
	Latitude          *float64                  `validate:"omitempty,latitude"`
	Longitude         *float64                  `validate:"omitempty,longitude"`
	OnlineProvider    *string
	MeetingDetails    map[string]interface{}
	Recordings        map[string]interface{}
	MaxAttendees      int                       `validate:"min=0"`
	IdealTime         *int                      `validate:"omitempty,min=0"`
	Status            models.Status             `validate:"required,oneof=live draft inActive archived"`
	Metadata          map[string]interface{}
	ErMetaData        map[string]interface{}
	StartDatetime     time.Time                 `validate:"required"`
	EndDatetime       time.Time                 `validate:"required,gtfield=StartDatetime"`
	IsRecurring       bool
	RecurrencePattern *models.RecurrencePattern `validate:"required_if=IsRecurring true,omitempty"`
	AutoEnroll        bool

	RegistrationStartDate *time.Time
	RegistrationEndDate   *time.Time

	CreatedBy string `validate:"required"`
}

// CreateResult is returned by CreateSeries
type CreateResult struct {
	Event             *models.Event
	EventDetail       *models.EventDetail
	RepetitionIDs     []uuid.UUID
	FirstOccurrence   *models.EventRepetition
	CreatedEventCount int
}

// UpdateSeriesRequest edits one occurrence, or with IsMainEvent the series
// from that occurrence on. Nil fields are left unchanged.
type UpdateSeriesRequest struct {
	IsMainEvent       bool
	StartDatetime     *time.Time
	EndDatetime       *time.Time
	RecurrencePattern *models.RecurrencePattern

	Title            *string        `validate:"omitempty,min=1"`
	Description      *string
	ShortDescription *string
	Location         *string
	Latitude         *float64       `validate:"omitempty,latitude"`
	Longitude        *float64       `validate:"omitempty,longitude"`
	Status           *models.Status `validate:"omitempty,oneof=live draft inActive archived"`

	OnlineDetails map[string]interface{}
	Metadata      map[string]interface{}
	ErMetaData    map[string]interface{}

	UpdatedBy string `validate:"required"`
}

func (r *UpdateSeriesRequest) hasTimes() bool {
	return r.StartDatetime != nil && r.EndDatetime != nil
}

func (r *UpdateSeriesRequest) detailPatch() detailPatch {
	return detailPatch{
		Title:            r.Title,
		Description:      r.Description,
		ShortDescription: r.ShortDescription,
		Location:         r.Location,
		Latitude:         r.Latitude,
		Longitude:        r.Longitude,
		Status:           r.Status,
		MeetingDetails:   r.OnlineDetails,
		Metadata:         r.Metadata,
	}
}

// Strategy names how the occurrence series was rewritten
type Strategy string

const (
	StrategyNone    Strategy = "none"
	StrategyCascade Strategy = "cascade"
	StrategyRebuild Strategy = "rebuild"
)

// UpdateResult reports what an update changed
type UpdateResult struct {
	Strategy Strategy

	// Event and EventDetail own the edited occurrences after the update
	Event       *models.Event
	EventDetail *models.EventDetail

	RepetitionDetail *models.EventRepetition
	OnlineDetails    map[string]interface{}
	ErMetaData       map[string]interface{}

	RepetitionUpdated    bool
	DetailUpdated        bool
	OnlineDetailsUpdated bool
	MetadataUpdated      bool

	RemovedOccurrences   int64
	AddedOccurrences     int
	RepointedOccurrences int64
}

// detailPatch holds content edits. Maps merge key-wise into the stored ones.
type detailPatch struct {
	Title            *string
	Description      *string
	ShortDescription *string
	Location         *string
	Latitude         *float64
	Longitude        *float64
	Status           *models.Status
	MeetingDetails   map[string]interface{}
	Metadata         map[string]interface{}
}

func (p detailPatch) empty() bool {
	return p.Title == nil && p.Description == nil && p.ShortDescription == nil &&
		p.Location == nil && p.Latitude == nil && p.Longitude == nil && p.Status == nil &&
		p.MeetingDetails == nil && p.Metadata == nil
}

func (p detailPatch) apply(d *models.EventDetail, updatedBy string) {
	if p.Title != nil {
		d.Title = *p.Title
	}
	if p.Description != nil {
		d.Description = *p.Description
	}
	if p.ShortDescription != nil {
		d.ShortDescription = *p.ShortDescription
	}
	if p.Location != nil {
		d.Location = p.Location
	}
	if p.Latitude != nil {
		d.Latitude = p.Latitude
	}
	if p.Longitude != nil {
		d.Longitude = p.Longitude
	}
	if p.Status != nil {
		d.Status = *p.Status
	}
	if p.MeetingDetails != nil {
		d.MeetingDetails = models.MergeJSON(d.MeetingDetails, p.MeetingDetails)
	}
	if p.Metadata != nil {
		d.Metadata = models.MergeJSON(d.Metadata, p.Metadata)
	}
	d.UpdatedBy = updatedBy
}
