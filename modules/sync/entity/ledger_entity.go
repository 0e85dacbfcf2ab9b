package entity

import (
	"database/sql"
	"time"

	"seva-signup/core/queue"

	"github.com/google/uuid"
)

type SyncStatus string

const (
	SyncSuccess SyncStatus = "SUCCESS"
	SyncFailed  SyncStatus = "FAILED"
)

// KindMirrorExport is a ledger-only kind for the post-commit object-storage
// mirror. It is never enqueued; the booking engine writes it directly.
const KindMirrorExport queue.JobKind = "MIRROR_EXPORT"

// LedgerEntry records whether the side effect for (signup, kind) has been
// applied. Keyed by that pair, written only by upsert, so at most one
// SUCCESS entry can exist per key and redelivered duplicates are safe.
type LedgerEntry struct {
	SignupID    uuid.UUID      `db:"signup_id" json:"signup_id"`
	Kind        queue.JobKind  `db:"kind" json:"kind"`
	Status      SyncStatus     `db:"status" json:"status"`
	LastError   sql.NullString `db:"last_error" json:"last_error,omitempty"`
	RetryCount  int            `db:"retry_count" json:"retry_count"`
	ExternalRef sql.NullString `db:"external_ref" json:"external_ref,omitempty"`
	SyncedAt    sql.NullTime   `db:"synced_at" json:"synced_at,omitempty"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updated_at"`
}

// PendingSync identifies one job the reconciliation sweep should re-enqueue.
type PendingSync struct {
	SignupID uuid.UUID     `db:"signup_id"`
	Kind     queue.JobKind `db:"kind"`
}
