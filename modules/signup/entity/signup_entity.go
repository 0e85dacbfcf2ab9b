package entity

import (
	"database/sql"

	"seva-signup/core/entity"
	eventent "seva-signup/modules/event/entity"

	"github.com/google/uuid"
)

type SignupStatus string

const (
	SignupConfirmed SignupStatus = "CONFIRMED"
	SignupCancelled SignupStatus = "CANCELLED"
)

// Signup is one volunteer's claim on a slot. Rows transition to CANCELLED
// exactly once and are never deleted. Only the sha256 digest of the
// cancellation secret is stored.
type Signup struct {
	SlotID            uuid.UUID      `db:"slot_id" json:"slot_id"`
	Name              string         `db:"name" json:"name"`
	Email             string         `db:"email" json:"email"`
	Phone             sql.NullString `db:"phone" json:"-"`
	Notes             sql.NullString `db:"notes" json:"-"`
	Status            SignupStatus   `db:"status" json:"status"`
	CancelTokenDigest string         `db:"cancel_token_digest" json:"-"`
	CancelledAt       sql.NullTime   `db:"cancelled_at" json:"cancelled_at,omitempty"`
	entity.BaseEntity
}

// SignupDetail is a signup with its full booking context, re-read from the
// store whenever a side effect is applied.
type SignupDetail struct {
	Signup Signup
	Slot   eventent.Slot
	Day    eventent.Day
	Seva   eventent.SevaType
	Event  eventent.Event
}
