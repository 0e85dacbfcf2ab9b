package queue

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// JobKind enumerates the units of downstream work a job can describe.
type JobKind string

const (
	KindUpsertExternalRecord  JobKind = "UPSERT_EXTERNAL_RECORD"
	KindMarkExternalCancelled JobKind = "MARK_EXTERNAL_CANCELLED"
	KindSendConfirmation      JobKind = "SEND_CONFIRMATION"
	KindSendCancellation      JobKind = "SEND_CANCELLATION"
)

func (k JobKind) Valid() bool {
	switch k {
	case KindUpsertExternalRecord, KindMarkExternalCancelled, KindSendConfirmation, KindSendCancellation:
		return true
	}
	return false
}

// Job carries only the signup id. Handlers always re-read current state, so
// a stale payload cannot cause inconsistency.
type Job struct {
	Kind     JobKind   `json:"kind"`
	SignupID uuid.UUID `json:"signup_id"`
}

// Message is one delivery of a Job. DeliveryCount is a transport-provided
// hint starting at 1 on the first delivery.
type Message struct {
	Job           Job
	Handle        string
	DeliveryCount int
}

// Queue is a durable at-least-once channel between the booking engine and
// the worker. A polled message that is not acknowledged within the
// transport's visibility window is redelivered.
type Queue interface {
	// Enqueue sends a job and returns an opaque message id.
	Enqueue(ctx context.Context, job Job) (string, error)
	// Poll long-polls for up to max messages, waiting at most wait.
	Poll(ctx context.Context, max int, wait time.Duration) ([]Message, error)
	// Acknowledge removes a delivered message so it is not redelivered.
	Acknowledge(ctx context.Context, handle string) error
	// Escalate copies a permanently-failing job to the dead-letter channel.
	// The caller acknowledges the original message afterwards.
	Escalate(ctx context.Context, job Job, reason string) error
}
