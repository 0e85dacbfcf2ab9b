package repository

import (
	"context"
	"database/sql"
	"time"

	"seva-signup/core/database"
	"seva-signup/core/logger"
	eventent "seva-signup/modules/event/entity"
	"seva-signup/modules/signup/entity"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// SignupRepository owns signup rows and the slot counters they guard.
type SignupRepository struct {
	DB database.Database
}

func NewSignupRepository(db database.Database) *SignupRepository {
	return &SignupRepository{DB: db}
}

// SlotTxInterface is the view of one locked slot inside a reservation
// transaction. Everything it touches commits or rolls back atomically.
type SlotTxInterface interface {
	// Slot returns the row as it was when the lock was acquired.
	Slot() *eventent.Slot
	Day(ctx context.Context) (*eventent.Day, error)
	HasConfirmedSignup(ctx context.Context, email string) (bool, error)
	InsertSignup(ctx context.Context, s *entity.Signup) error
	UpdateSlot(ctx context.Context, filledCount int, status eventent.SlotStatus) error
	// CancelSignup flips a CONFIRMED signup to CANCELLED. Returns false if
	// the row was not CONFIRMED (already cancelled by a concurrent caller).
	CancelSignup(ctx context.Context, signupID uuid.UUID, at time.Time) (bool, error)
}

type SignupRepositoryInterface interface {
	// WithSlotLock runs fn inside a single serializable transaction holding
	// an exclusive row lock on the slot. Concurrent callers for the same
	// slot serialize here; other slots are unaffected. Returns the
	// underlying sql.ErrNoRows when the slot does not exist.
	WithSlotLock(ctx context.Context, slotID uuid.UUID, fn func(tx SlotTxInterface) error) error
	FindByTokenDigest(ctx context.Context, digest string) (*entity.Signup, error)
	GetSignupDetail(ctx context.Context, signupID uuid.UUID) (*entity.SignupDetail, error)
}

const slotColumns = `id, day_id, seva_type_id, capacity, filled_count, status, created_at, updated_at`
const signupColumns = `id, slot_id, name, email, phone, notes, status, cancel_token_digest, cancelled_at, created_at, updated_at`

func (r *SignupRepository) WithSlotLock(ctx context.Context, slotID uuid.UUID, fn func(tx SlotTxInterface) error) error {
	opts := &sql.TxOptions{Isolation: sql.LevelSerializable}
	return r.DB.WithinTx(ctx, opts, func(txx *sqlx.Tx) error {
		var slot eventent.Slot
		query := `SELECT ` + slotColumns + ` FROM slots WHERE id = $1 FOR UPDATE`
		if err := txx.GetContext(ctx, &slot, query, slotID); err != nil {
			if err != sql.ErrNoRows {
				logger.Error("SignupRepository:WithSlotLock:LockSlot", err)
			}
			return err
		}
		return fn(&slotTx{tx: txx, slot: &slot})
	})
}

func (r *SignupRepository) FindByTokenDigest(ctx context.Context, digest string) (*entity.Signup, error) {
	query := `SELECT ` + signupColumns + ` FROM signups WHERE cancel_token_digest = $1`

	var s entity.Signup
	if err := r.DB.GetContext(ctx, &s, query, digest); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		logger.Error("SignupRepository:FindByTokenDigest", err)
		return nil, err
	}
	return &s, nil
}

// GetSignupDetail re-reads the signup and its full booking context. The
// worker calls this instead of trusting anything in a job payload.
func (r *SignupRepository) GetSignupDetail(ctx context.Context, signupID uuid.UUID) (*entity.SignupDetail, error) {
	var d entity.SignupDetail

	query := `SELECT ` + signupColumns + ` FROM signups WHERE id = $1`
	if err := r.DB.GetContext(ctx, &d.Signup, query, signupID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		logger.Error("SignupRepository:GetSignupDetail:Signup", err)
		return nil, err
	}

	query = `SELECT ` + slotColumns + ` FROM slots WHERE id = $1`
	if err := r.DB.GetContext(ctx, &d.Slot, query, d.Signup.SlotID); err != nil {
		logger.Error("SignupRepository:GetSignupDetail:Slot", err)
		return nil, err
	}

	query = `SELECT id, event_id, date, day_of_week, is_closed, created_at, updated_at FROM days WHERE id = $1`
	if err := r.DB.GetContext(ctx, &d.Day, query, d.Slot.DayID); err != nil {
		logger.Error("SignupRepository:GetSignupDetail:Day", err)
		return nil, err
	}

	query = `SELECT id, event_id, name, description, default_capacity, sort_order, is_active, created_at, updated_at
	         FROM seva_types WHERE id = $1`
	if err := r.DB.GetContext(ctx, &d.Seva, query, d.Slot.SevaTypeID); err != nil {
		logger.Error("SignupRepository:GetSignupDetail:SevaType", err)
		return nil, err
	}

	query = `SELECT id, public_id, name, slug, description, timezone, shift_label, start_date, end_date,
	                spreadsheet_id, created_at, updated_at
	         FROM events WHERE id = $1`
	if err := r.DB.GetContext(ctx, &d.Event, query, d.Day.EventID); err != nil {
		logger.Error("SignupRepository:GetSignupDetail:Event", err)
		return nil, err
	}

	return &d, nil
}

// ===================== transaction-scoped view =====================

type slotTx struct {
	tx   *sqlx.Tx
	slot *eventent.Slot
}

func (t *slotTx) Slot() *eventent.Slot {
	return t.slot
}

func (t *slotTx) Day(ctx context.Context) (*eventent.Day, error) {
	query := `SELECT id, event_id, date, day_of_week, is_closed, created_at, updated_at FROM days WHERE id = $1`

	var day eventent.Day
	if err := t.tx.GetContext(ctx, &day, query, t.slot.DayID); err != nil {
		logger.Error("SignupRepository:SlotTx:Day", err)
		return nil, err
	}
	return &day, nil
}

func (t *slotTx) HasConfirmedSignup(ctx context.Context, email string) (bool, error) {
	query := `SELECT EXISTS (
		SELECT 1 FROM signups WHERE slot_id = $1 AND email = $2 AND status = $3
	)`

	var exists bool
	if err := t.tx.GetContext(ctx, &exists, query, t.slot.ID, email, entity.SignupConfirmed); err != nil {
		logger.Error("SignupRepository:SlotTx:HasConfirmedSignup", err)
		return false, err
	}
	return exists, nil
}

func (t *slotTx) InsertSignup(ctx context.Context, s *entity.Signup) error {
	query := `
		INSERT INTO signups (id, slot_id, name, email, phone, notes, status, cancel_token_digest)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`

	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	err := t.tx.QueryRowContext(ctx, query,
		s.ID, s.SlotID, s.Name, s.Email, s.Phone, s.Notes, s.Status, s.CancelTokenDigest,
	).Scan(&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		logger.Error("SignupRepository:SlotTx:InsertSignup", err)
		return err
	}
	return nil
}

func (t *slotTx) UpdateSlot(ctx context.Context, filledCount int, status eventent.SlotStatus) error {
	query := `UPDATE slots SET filled_count = $2, status = $3, updated_at = NOW() WHERE id = $1`

	if _, err := t.tx.ExecContext(ctx, query, t.slot.ID, filledCount, status); err != nil {
		logger.Error("SignupRepository:SlotTx:UpdateSlot", err)
		return err
	}
	return nil
}

func (t *slotTx) CancelSignup(ctx context.Context, signupID uuid.UUID, at time.Time) (bool, error) {
	query := `
		UPDATE signups SET status = $2, cancelled_at = $3, updated_at = NOW()
		WHERE id = $1 AND status = $4
	`

	res, err := t.tx.ExecContext(ctx, query, signupID, entity.SignupCancelled, at, entity.SignupConfirmed)
	if err != nil {
		logger.Error("SignupRepository:SlotTx:CancelSignup", err)
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}
