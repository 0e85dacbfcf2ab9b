package service

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"time"

	"seva-signup/core/constants"
	"seva-signup/core/errors"
	"seva-signup/core/logger"
	"seva-signup/core/queue"
	"seva-signup/core/storage"
	"seva-signup/core/utils"
	eventent "seva-signup/modules/event/entity"
	"seva-signup/modules/signup/dto"
	"seva-signup/modules/signup/entity"
	"seva-signup/modules/signup/repository"
	syncent "seva-signup/modules/sync/entity"
	syncrepo "seva-signup/modules/sync/repository"

	"github.com/google/uuid"
)

type SignupService interface {
	Reserve(ctx context.Context, slotID uuid.UUID, req *dto.CreateSignupRequest) (*dto.ReserveResponse, *errors.AppError)
	Cancel(ctx context.Context, rawToken string) (*dto.CancelResponse, *errors.AppError)
}

type signupService struct {
	repo      repository.SignupRepositoryInterface
	ledger    syncrepo.LedgerRepositoryInterface
	queue     queue.Queue
	exporter  storage.Exporter
	baseURL   string
	txTimeout time.Duration
}

func NewSignupService(
	repo repository.SignupRepositoryInterface,
	ledger syncrepo.LedgerRepositoryInterface,
	q queue.Queue,
	exporter storage.Exporter,
	baseURL string,
) SignupService {
	return &signupService{
		repo:      repo,
		ledger:    ledger,
		queue:     q,
		exporter:  exporter,
		baseURL:   baseURL,
		txTimeout: constants.ReserveTxTimeoutSeconds * time.Second,
	}
}

// Reserve claims one spot on a slot. The whole protocol runs inside a
// single serializable transaction holding the slot row lock; no external
// I/O happens until after commit.
func (s *signupService) Reserve(ctx context.Context, slotID uuid.UUID, req *dto.CreateSignupRequest) (*dto.ReserveResponse, *errors.AppError) {
	logger.Info("SignupService:Reserve:Start", "slot_id", slotID)

	if appErr := req.Normalize(); appErr != nil {
		return nil, appErr
	}

	token, digest, err := utils.GenerateCancelToken(constants.CancelTokenBytes)
	if err != nil {
		logger.Error("SignupService:Reserve:GenerateCancelToken", err)
		return nil, errors.NewAppError(errors.ErrInternalServer, "Failed to create signup", err)
	}

	txCtx, cancel := context.WithTimeout(ctx, s.txTimeout)
	defer cancel()

	var created *entity.Signup
	var bookedDay *eventent.Day
	txErr := s.repo.WithSlotLock(txCtx, slotID, func(tx repository.SlotTxInterface) error {
		slot := tx.Slot()

		// Re-check under the lock; concurrent reservers serialize here.
		if slot.Status == eventent.SlotClosed {
			return errors.NewAppError(errors.ErrSlotClosed, "This slot is no longer available", nil)
		}
		if slot.FilledCount >= slot.Capacity || slot.Status == eventent.SlotFull {
			return errors.NewAppError(errors.ErrSlotFull, "This slot is full. Please choose another slot or date.", nil)
		}

		day, err := tx.Day(txCtx)
		if err != nil {
			return err
		}
		if day.IsClosed {
			return errors.NewAppError(errors.ErrDayClosed, "This date is closed for signups", nil)
		}
		bookedDay = day

		dup, err := tx.HasConfirmedSignup(txCtx, req.Email)
		if err != nil {
			return err
		}
		if dup {
			return errors.NewAppError(errors.ErrDuplicateSignup, "You have already signed up for this slot", nil)
		}

		signup := &entity.Signup{
			SlotID:            slot.ID,
			Name:              req.Name,
			Email:             req.Email,
			Phone:             nullString(req.Phone),
			Notes:             nullString(req.Notes),
			Status:            entity.SignupConfirmed,
			CancelTokenDigest: digest,
		}
		if err := tx.InsertSignup(txCtx, signup); err != nil {
			return err
		}

		newFilled := slot.FilledCount + 1
		status := eventent.SlotActive
		if newFilled >= slot.Capacity {
			status = eventent.SlotFull
		}
		if err := tx.UpdateSlot(txCtx, newFilled, status); err != nil {
			return err
		}

		created = signup
		return nil
	})
	if txErr != nil {
		return nil, s.mapTxError(txErr, "Failed to create signup")
	}

	logger.Info("SignupService:Reserve:Committed", "signup_id", created.ID, "slot_id", slotID)

	resp := &dto.ReserveResponse{
		Signup:    signupInfo(created),
		CancelURL: fmt.Sprintf("%s/api/v1/public/cancel/%s", s.baseURL, token),
	}

	// The reservation is committed; nothing past this point may turn it
	// into an error. The cancellation link above is the only copy the
	// volunteer will ever get.
	detail := s.afterCommit(ctx, created.ID, queue.KindUpsertExternalRecord, queue.KindSendConfirmation)
	if detail != nil {
		resp.Signup = signupInfo(&detail.Signup)
		resp.Event = eventInfo(detail)
	} else {
		logger.Warn("SignupService:Reserve:DegradedResponse", "signup_id", created.ID)
		resp.Event = dto.EventInfo{
			Date:      bookedDay.Date.Format("2006-01-02"),
			DayOfWeek: bookedDay.Date.Weekday().String(),
		}
	}
	return resp, nil
}

// Cancel voids a signup identified by its single-use secret. Always reopens
// slot capacity; a full slot goes back to ACTIVE.
func (s *signupService) Cancel(ctx context.Context, rawToken string) (*dto.CancelResponse, *errors.AppError) {
	if rawToken == "" {
		return nil, errors.NewAppError(errors.ErrInvalidToken, "Invalid or expired cancellation link", nil)
	}

	// Lookup by digest only; the raw secret is never used as a key.
	signup, err := s.repo.FindByTokenDigest(ctx, utils.DigestToken(rawToken))
	if err != nil {
		return nil, errors.NewAppError(errors.ErrInternalServer, "Failed to cancel signup", err)
	}
	if signup == nil {
		return nil, errors.NewAppError(errors.ErrInvalidToken, "Invalid or expired cancellation link", nil)
	}
	if signup.Status == entity.SignupCancelled {
		return nil, errors.NewAppError(errors.ErrAlreadyCancelled, "This signup has already been cancelled", nil)
	}

	txCtx, cancel := context.WithTimeout(ctx, s.txTimeout)
	defer cancel()

	cancelledAt := time.Now().UTC()
	txErr := s.repo.WithSlotLock(txCtx, signup.SlotID, func(tx repository.SlotTxInterface) error {
		ok, err := tx.CancelSignup(txCtx, signup.ID, cancelledAt)
		if err != nil {
			return err
		}
		if !ok {
			// Lost the race to a concurrent cancel of the same token.
			return errors.NewAppError(errors.ErrAlreadyCancelled, "This signup has already been cancelled", nil)
		}

		slot := tx.Slot()
		newFilled := slot.FilledCount - 1
		if newFilled < 0 {
			newFilled = 0
		}
		// A cancellation always reopens capacity.
		return tx.UpdateSlot(txCtx, newFilled, eventent.SlotActive)
	})
	if txErr != nil {
		return nil, s.mapTxError(txErr, "Failed to cancel signup")
	}

	logger.Info("SignupService:Cancel:Committed", "signup_id", signup.ID, "slot_id", signup.SlotID)

	// Committed; the cancellation must report success even if the
	// post-commit read fails.
	detail := s.afterCommit(ctx, signup.ID, queue.KindMarkExternalCancelled, queue.KindSendCancellation)
	if detail == nil {
		logger.Warn("SignupService:Cancel:DegradedResponse", "signup_id", signup.ID)
		return &dto.CancelResponse{
			ID:          signup.ID,
			Name:        signup.Name,
			Status:      string(entity.SignupCancelled),
			CancelledAt: &cancelledAt,
		}, nil
	}

	resp := &dto.CancelResponse{
		ID:       detail.Signup.ID,
		Name:     detail.Signup.Name,
		Date:     detail.Day.Date.Format("2006-01-02"),
		SevaName: detail.Seva.Name,
		Status:   string(detail.Signup.Status),
	}
	if detail.Signup.CancelledAt.Valid {
		t := detail.Signup.CancelledAt.Time
		resp.CancelledAt = &t
	}
	return resp, nil
}

// afterCommit runs the best-effort post-commit side effects: enqueue the
// downstream jobs and mirror the reservation to object storage. Failures
// here never affect the committed reservation; the reconciliation sweep
// can regenerate any job from the ledger. Returns nil when the detail
// re-read fails; callers still report success to the user.
func (s *signupService) afterCommit(ctx context.Context, signupID uuid.UUID, kinds ...queue.JobKind) *entity.SignupDetail {
	// Detached from the request: a client disconnect right after commit
	// must not kill the enqueue or the mirror.
	ctx = context.WithoutCancel(ctx)

	for _, kind := range kinds {
		if _, err := s.queue.Enqueue(ctx, queue.Job{Kind: kind, SignupID: signupID}); err != nil {
			// The reservation is the source of truth; jobs are disposable.
			logger.Error("SignupService:AfterCommit:Enqueue", "error", err, "kind", kind, "signup_id", signupID)
		}
	}

	detail, err := s.repo.GetSignupDetail(ctx, signupID)
	if err != nil || detail == nil {
		logger.Error("SignupService:AfterCommit:GetSignupDetail", "error", err, "signup_id", signupID)
		return nil
	}

	if s.exporter != nil {
		key, err := s.exporter.Mirror(ctx, BuildExport(detail))
		if err != nil {
			logger.Error("SignupService:AfterCommit:Mirror", "error", err, "signup_id", signupID)
			if lerr := s.ledger.UpsertFailure(ctx, signupID, syncent.KindMirrorExport, err.Error(), 0); lerr != nil {
				logger.Error("SignupService:AfterCommit:MirrorLedger", lerr)
			}
		} else if lerr := s.ledger.UpsertSuccess(ctx, signupID, syncent.KindMirrorExport, key); lerr != nil {
			logger.Error("SignupService:AfterCommit:MirrorLedger", lerr)
		}
	}

	return detail
}

func (s *signupService) mapTxError(err error, fallback string) *errors.AppError {
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	if stderrors.Is(err, sql.ErrNoRows) {
		return errors.NewAppError(errors.ErrSlotNotFound, "Slot not found", nil)
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return errors.NewAppError(errors.ErrInternalServer, "The reservation timed out, please try again", err)
	}
	logger.Error("SignupService:Tx", err)
	return errors.NewAppError(errors.ErrInternalServer, fallback, err)
}

// BuildExport flattens a signup detail into its object-storage mirror form.
func BuildExport(d *entity.SignupDetail) storage.SignupExport {
	export := storage.SignupExport{
		SignupID:      d.Signup.ID.String(),
		SlotID:        d.Slot.ID.String(),
		EventPublicID: d.Event.PublicID,
		EventName:     d.Event.Name,
		Timezone:      d.Event.Timezone,
		ShiftLabel:    d.Event.ShiftLabel,
		Date:          d.Day.Date.Format("2006-01-02"),
		DayOfWeek:     d.Day.DayOfWeek,
		SevaName:      d.Seva.Name,
		Name:          d.Signup.Name,
		Email:         d.Signup.Email,
		Phone:         d.Signup.Phone.String,
		Notes:         d.Signup.Notes.String,
		Status:        string(d.Signup.Status),
		CreatedAt:     d.Signup.CreatedAt,
	}
	if d.Signup.CancelledAt.Valid {
		t := d.Signup.CancelledAt.Time
		export.CancelledAt = &t
	}
	return export
}

func signupInfo(s *entity.Signup) dto.SignupInfo {
	return dto.SignupInfo{
		ID:        s.ID,
		SlotID:    s.SlotID,
		Name:      s.Name,
		Email:     s.Email,
		Status:    string(s.Status),
		CreatedAt: s.CreatedAt,
	}
}

func eventInfo(d *entity.SignupDetail) dto.EventInfo {
	return dto.EventInfo{
		Name:       d.Event.Name,
		Date:       d.Day.Date.Format("2006-01-02"),
		DayOfWeek:  d.Day.Date.Weekday().String(),
		ShiftLabel: d.Event.ShiftLabel,
		SevaName:   d.Seva.Name,
		Timezone:   d.Event.Timezone,
	}
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
