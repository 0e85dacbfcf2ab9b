package dto

import (
	"strings"
	"time"

	"seva-signup/core/errors"

	"github.com/google/uuid"
)

type SevaTypeInput struct {
	Name            string `json:"name"`
	Description     string `json:"description"`
	DefaultCapacity int    `json:"default_capacity"`
	SortOrder       int    `json:"sort_order"`
}

type CreateEventRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Timezone    string          `json:"timezone"`
	ShiftLabel  string          `json:"shift_label"`
	StartDate   string          `json:"start_date"` // YYYY-MM-DD
	EndDate     string          `json:"end_date"`   // YYYY-MM-DD
	SevaTypes   []SevaTypeInput `json:"seva_types"`
}

// Normalize trims and validates the request in place and resolves the date
// strings. Rules mirror what the admin UI enforces.
func (r *CreateEventRequest) Normalize() (start, end time.Time, appErr *errors.AppError) {
	r.Name = strings.TrimSpace(r.Name)
	r.Description = strings.TrimSpace(r.Description)
	r.Timezone = strings.TrimSpace(r.Timezone)
	r.ShiftLabel = strings.TrimSpace(r.ShiftLabel)

	if len(r.Name) < 2 || len(r.Name) > 150 {
		return start, end, errors.NewAppError(errors.ErrInvalidInput, "Event name must be between 2 and 150 characters", nil)
	}
	if r.Timezone == "" {
		r.Timezone = "America/Chicago"
	}
	if _, err := time.LoadLocation(r.Timezone); err != nil {
		return start, end, errors.NewAppError(errors.ErrInvalidInput, "Unknown timezone", err)
	}

	var err error
	start, err = time.Parse("2006-01-02", r.StartDate)
	if err != nil {
		return start, end, errors.NewAppError(errors.ErrInvalidInput, "start_date must be YYYY-MM-DD", err)
	}
	end, err = time.Parse("2006-01-02", r.EndDate)
	if err != nil {
		return start, end, errors.NewAppError(errors.ErrInvalidInput, "end_date must be YYYY-MM-DD", err)
	}
	if end.Before(start) {
		return start, end, errors.NewAppError(errors.ErrInvalidInput, "end_date must not be before start_date", nil)
	}

	if len(r.SevaTypes) == 0 {
		return start, end, errors.NewAppError(errors.ErrInvalidInput, "At least one seva type is required", nil)
	}
	for i := range r.SevaTypes {
		s := &r.SevaTypes[i]
		s.Name = strings.TrimSpace(s.Name)
		if s.Name == "" {
			return start, end, errors.NewAppError(errors.ErrInvalidInput, "Seva type name is required", nil)
		}
		if s.DefaultCapacity < 1 {
			return start, end, errors.NewAppError(errors.ErrInvalidInput, "Seva type capacity must be at least 1", nil)
		}
	}

	return start, end, nil
}

type SevaTypeResponse struct {
	ID              uuid.UUID `json:"id"`
	Name            string    `json:"name"`
	Description     string    `json:"description,omitempty"`
	DefaultCapacity int       `json:"default_capacity"`
	SortOrder       int       `json:"sort_order"`
}

type EventResponse struct {
	PublicID   string             `json:"public_id"`
	Name       string             `json:"name"`
	Slug       string             `json:"slug"`
	Timezone   string             `json:"timezone"`
	ShiftLabel string             `json:"shift_label"`
	StartDate  string             `json:"start_date"`
	EndDate    string             `json:"end_date"`
	SevaTypes  []SevaTypeResponse `json:"seva_types,omitempty"`
}

type GenerateDaysResponse struct {
	EventPublicID string `json:"event_public_id"`
	DaysCreated   int    `json:"days_created"`
	SlotsCreated  int    `json:"slots_created"`
	DaysSkipped   int    `json:"days_skipped"`
}

type SlotView struct {
	ID          uuid.UUID `json:"id"`
	SevaName    string    `json:"seva_name"`
	Description string    `json:"description,omitempty"`
	Capacity    int       `json:"capacity"`
	FilledCount int       `json:"filled_count"`
	Remaining   int       `json:"remaining"`
	Status      string    `json:"status"`
}

type SlotListResponse struct {
	EventPublicID string     `json:"event_public_id"`
	EventName     string     `json:"event_name"`
	Date          string     `json:"date"`
	DayOfWeek     string     `json:"day_of_week"`
	ShiftLabel    string     `json:"shift_label"`
	IsClosed      bool       `json:"is_closed"`
	Slots         []SlotView `json:"slots"`
}

type CloseDayResponse struct {
	DayID    uuid.UUID `json:"day_id"`
	Date     string    `json:"date"`
	IsClosed bool      `json:"is_closed"`
}
