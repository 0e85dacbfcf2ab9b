package entity

import (
	"database/sql"
	"time"

	"seva-signup/core/entity"

	"github.com/google/uuid"
)

type Event struct {
	PublicID      string         `db:"public_id" json:"public_id"`
	Name          string         `db:"name" json:"name"`
	Slug          string         `db:"slug" json:"slug"`
	Description   sql.NullString `db:"description" json:"-"`
	Timezone      string         `db:"timezone" json:"timezone"`
	ShiftLabel    string         `db:"shift_label" json:"shift_label"`
	StartDate     time.Time      `db:"start_date" json:"start_date"`
	EndDate       time.Time      `db:"end_date" json:"end_date"`
	SpreadsheetID sql.NullString `db:"spreadsheet_id" json:"-"`
	entity.BaseEntity
}

type SevaType struct {
	EventID         uuid.UUID      `db:"event_id" json:"event_id"`
	Name            string         `db:"name" json:"name"`
	Description     sql.NullString `db:"description" json:"-"`
	DefaultCapacity int            `db:"default_capacity" json:"default_capacity"`
	SortOrder       int            `db:"sort_order" json:"sort_order"`
	IsActive        bool           `db:"is_active" json:"is_active"`
	entity.BaseEntity
}

type Day struct {
	EventID   uuid.UUID `db:"event_id" json:"event_id"`
	Date      time.Time `db:"date" json:"date"`
	DayOfWeek int       `db:"day_of_week" json:"day_of_week"`
	IsClosed  bool      `db:"is_closed" json:"is_closed"`
	entity.BaseEntity
}

type SlotStatus string

const (
	SlotActive SlotStatus = "ACTIVE"
	SlotFull   SlotStatus = "FULL"
	SlotClosed SlotStatus = "CLOSED"
)

// Slot is the capacity-bounded bookable unit. filled_count and status are
// mutated only by the booking engine inside a locked transaction.
type Slot struct {
	DayID       uuid.UUID  `db:"day_id" json:"day_id"`
	SevaTypeID  uuid.UUID  `db:"seva_type_id" json:"seva_type_id"`
	Capacity    int        `db:"capacity" json:"capacity"`
	FilledCount int        `db:"filled_count" json:"filled_count"`
	Status      SlotStatus `db:"status" json:"status"`
	entity.BaseEntity
}

// SlotListing joins a slot with its seva type for the public availability view.
type SlotListing struct {
	Slot
	SevaName        string         `db:"seva_name" json:"seva_name"`
	SevaDescription sql.NullString `db:"seva_description" json:"-"`
	SevaSortOrder   int            `db:"seva_sort_order" json:"-"`
}
