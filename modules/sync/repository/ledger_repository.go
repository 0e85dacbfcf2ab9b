package repository

import (
	"context"
	"database/sql"
	"time"

	"seva-signup/core/database"
	"seva-signup/core/logger"
	"seva-signup/core/queue"
	"seva-signup/modules/sync/entity"

	"github.com/google/uuid"
)

// LedgerRepository persists the idempotency ledger. All writes are upserts
// keyed (signup_id, kind), so concurrent writers from redelivered duplicates
// are safe.
type LedgerRepository struct {
	DB database.Database
}

func NewLedgerRepository(db database.Database) *LedgerRepository {
	return &LedgerRepository{DB: db}
}

type LedgerRepositoryInterface interface {
	Get(ctx context.Context, signupID uuid.UUID, kind queue.JobKind) (*entity.LedgerEntry, error)
	UpsertSuccess(ctx context.Context, signupID uuid.UUID, kind queue.JobKind, externalRef string) error
	UpsertFailure(ctx context.Context, signupID uuid.UUID, kind queue.JobKind, lastError string, retryCount int) error
	// ListPending returns (signup, kind) pairs older than the grace window
	// that have no SUCCESS ledger entry, for the reconciliation sweep.
	ListPending(ctx context.Context, grace time.Duration, limit int) ([]entity.PendingSync, error)
}

func (r *LedgerRepository) Get(ctx context.Context, signupID uuid.UUID, kind queue.JobKind) (*entity.LedgerEntry, error) {
	query := `
		SELECT signup_id, kind, status, last_error, retry_count, external_ref, synced_at, created_at, updated_at
		FROM sync_ledger WHERE signup_id = $1 AND kind = $2
	`

	var e entity.LedgerEntry
	if err := r.DB.GetContext(ctx, &e, query, signupID, kind); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		logger.Error("LedgerRepository:Get", err)
		return nil, err
	}
	return &e, nil
}

func (r *LedgerRepository) UpsertSuccess(ctx context.Context, signupID uuid.UUID, kind queue.JobKind, externalRef string) error {
	query := `
		INSERT INTO sync_ledger (signup_id, kind, status, external_ref, synced_at, retry_count)
		VALUES ($1, $2, $3, $4, NOW(), 0)
		ON CONFLICT (signup_id, kind) DO UPDATE
		SET status = $3, external_ref = $4, synced_at = NOW(), last_error = NULL, updated_at = NOW()
	`

	if err := r.DB.ExecContext(ctx, query, signupID, kind, entity.SyncSuccess, nullable(externalRef)); err != nil {
		logger.Error("LedgerRepository:UpsertSuccess", err)
		return err
	}
	return nil
}

func (r *LedgerRepository) UpsertFailure(ctx context.Context, signupID uuid.UUID, kind queue.JobKind, lastError string, retryCount int) error {
	query := `
		INSERT INTO sync_ledger (signup_id, kind, status, last_error, retry_count)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (signup_id, kind) DO UPDATE
		SET status = $3, last_error = $4, retry_count = $5, updated_at = NOW()
	`

	if err := r.DB.ExecContext(ctx, query, signupID, kind, entity.SyncFailed, lastError, retryCount); err != nil {
		logger.Error("LedgerRepository:UpsertFailure", err)
		return err
	}
	return nil
}

func (r *LedgerRepository) ListPending(ctx context.Context, grace time.Duration, limit int) ([]entity.PendingSync, error) {
	query := `
		SELECT s.id AS signup_id, k.kind
		FROM signups s
		CROSS JOIN LATERAL (
			SELECT unnest(CASE WHEN s.status = 'CONFIRMED'
				THEN ARRAY['UPSERT_EXTERNAL_RECORD', 'SEND_CONFIRMATION']
				ELSE ARRAY['MARK_EXTERNAL_CANCELLED', 'SEND_CANCELLATION'] END) AS kind
		) k
		LEFT JOIN sync_ledger l
			ON l.signup_id = s.id AND l.kind = k.kind AND l.status = 'SUCCESS'
		WHERE l.signup_id IS NULL
		  AND COALESCE(s.cancelled_at, s.created_at) < NOW() - ($1 * INTERVAL '1 second')
		ORDER BY s.created_at
		LIMIT $2
	`

	var pending []entity.PendingSync
	if err := r.DB.SelectContext(ctx, &pending, query, int(grace.Seconds()), limit); err != nil {
		logger.Error("LedgerRepository:ListPending", err)
		return nil, err
	}
	return pending, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
