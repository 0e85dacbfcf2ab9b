package errors

import "fmt"

type ErrorCode string

const (
	// Input errors (rejected before any lock is taken)
	ErrInvalidInput       ErrorCode = "INVALID_INPUT"
	ErrInvalidRequestData ErrorCode = "INVALID_REQUEST_DATA"

	// Capacity / availability errors (expected, user-facing)
	ErrSlotFull   ErrorCode = "SLOT_FULL"
	ErrSlotClosed ErrorCode = "SLOT_CLOSED"
	ErrDayClosed  ErrorCode = "DAY_CLOSED"

	// Conflict errors (expected, user-facing)
	ErrDuplicateSignup  ErrorCode = "DUPLICATE_SIGNUP"
	ErrAlreadyCancelled ErrorCode = "ALREADY_CANCELLED"
	ErrAlreadyExists    ErrorCode = "ALREADY_EXISTS"

	// Integrity errors (treated as not-found)
	ErrSlotNotFound ErrorCode = "SLOT_NOT_FOUND"
	ErrInvalidToken ErrorCode = "INVALID_TOKEN"
	ErrNotFound     ErrorCode = "NOT_FOUND"

	// Throttling
	ErrRateLimited ErrorCode = "RATE_LIMIT_EXCEEDED"

	// Infrastructure
	ErrInternalServer ErrorCode = "INTERNAL_SERVER_ERROR"
)

// AppError is a typed error carrying an application error code, so call
// sites handle each expected case explicitly instead of matching strings.
type AppError struct {
	Code    ErrorCode
	Message string
	Err     error
}

func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is compares by code so errors.Is works across wrapped AppErrors.
func (e *AppError) Is(target error) bool {
	ae, ok := target.(*AppError)
	return ok && ae.Code == e.Code
}
