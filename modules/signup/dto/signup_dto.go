package dto

import (
	"regexp"
	"strings"
	"time"

	"seva-signup/core/errors"

	"github.com/google/uuid"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

type CreateSignupRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
	Notes string `json:"notes,omitempty"`
}

// Normalize validates and canonicalizes the request before any lock is
// taken. Email is lowercased so duplicate detection is case-insensitive.
func (r *CreateSignupRequest) Normalize() *errors.AppError {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.Phone = strings.TrimSpace(r.Phone)
	r.Notes = strings.TrimSpace(r.Notes)

	if len(r.Name) < 2 || len(r.Name) > 100 {
		return errors.NewAppError(errors.ErrInvalidInput, "Name must be between 2 and 100 characters", nil)
	}
	if !emailPattern.MatchString(r.Email) {
		return errors.NewAppError(errors.ErrInvalidInput, "Invalid email address", nil)
	}
	if len(r.Phone) > 20 {
		return errors.NewAppError(errors.ErrInvalidInput, "Phone must be at most 20 characters", nil)
	}
	if len(r.Notes) > 500 {
		return errors.NewAppError(errors.ErrInvalidInput, "Notes must be at most 500 characters", nil)
	}
	return nil
}

type SignupInfo struct {
	ID        uuid.UUID `json:"id"`
	SlotID    uuid.UUID `json:"slot_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

type EventInfo struct {
	Name       string `json:"name"`
	Date       string `json:"date"`
	DayOfWeek  string `json:"day_of_week"`
	ShiftLabel string `json:"shift_label"`
	SevaName   string `json:"seva_name"`
	Timezone   string `json:"timezone"`
}

// ReserveResponse carries the raw cancellation secret exactly once; it is
// never persisted in recoverable form and never re-derivable afterwards.
type ReserveResponse struct {
	Signup    SignupInfo `json:"signup"`
	Event     EventInfo  `json:"event"`
	CancelURL string     `json:"cancel_url"`
}

type CancelResponse struct {
	ID          uuid.UUID  `json:"id"`
	Name        string     `json:"name"`
	Date        string     `json:"date"`
	SevaName    string     `json:"seva_name"`
	Status      string     `json:"status"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
}
