package service

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"seva-signup/core/config"
	"seva-signup/core/logger"
	"seva-signup/core/queue"
	signupent "seva-signup/modules/signup/entity"
	"seva-signup/modules/sync/entity"
	syncrepo "seva-signup/modules/sync/repository"

	"github.com/google/uuid"
)

// SignupSource re-reads current reservation state. Handlers never trust the
// job payload beyond the signup id.
type SignupSource interface {
	GetSignupDetail(ctx context.Context, signupID uuid.UUID) (*signupent.SignupDetail, error)
}

// RosterSync is the external roster collaborator. Upsert must find-or-create
// by signup id, never blindly append.
type RosterSync interface {
	Upsert(ctx context.Context, d *signupent.SignupDetail) (string, error)
	MarkCancelled(ctx context.Context, d *signupent.SignupDetail) error
}

// Mailer is the external notification collaborator.
type Mailer interface {
	SendConfirmation(ctx context.Context, d *signupent.SignupDetail) (string, error)
	SendCancellation(ctx context.Context, d *signupent.SignupDetail) (string, error)
}

const jobTimeout = 60 * time.Second

// Worker consumes job messages, applies each side effect idempotently via
// the ledger, and acknowledges or escalates. Multiple instances may run
// concurrently; the queue's visibility window keeps one message with one
// worker at a time, and the ledger makes redelivered duplicates harmless.
type Worker struct {
	queue    queue.Queue
	signups  SignupSource
	ledger   syncrepo.LedgerRepositoryInterface
	roster   RosterSync
	mailer   Mailer
	cfg      config.WorkerConfig
	sleep    func(ctx context.Context, d time.Duration)
	inflight atomic.Int64
}

func NewWorker(
	q queue.Queue,
	signups SignupSource,
	ledger syncrepo.LedgerRepositoryInterface,
	roster RosterSync,
	mailer Mailer,
	cfg config.WorkerConfig,
) *Worker {
	// A zero attempt count would acknowledge jobs without doing the work.
	if cfg.LocalAttempts < 1 {
		cfg.LocalAttempts = 1
	}
	return &Worker{
		queue:   q,
		signups: signups,
		ledger:  ledger,
		roster:  roster,
		mailer:  mailer,
		cfg:     cfg,
		sleep:   sleepWithContext,
	}
}

// WithSleep overrides the backoff sleeper, for tests.
func (w *Worker) WithSleep(sleep func(ctx context.Context, d time.Duration)) *Worker {
	w.sleep = sleep
	return w
}

// InFlight reports how many handlers are currently running.
func (w *Worker) InFlight() int64 {
	return w.inflight.Load()
}

// Run polls until ctx is cancelled. Cancellation stops new poll cycles;
// messages already picked up finish under their own detached timeout.
func (w *Worker) Run(ctx context.Context) {
	logger.Info("Worker:Run:Start",
		"poll_batch", w.cfg.PollBatch,
		"poll_wait", w.cfg.PollWait.String(),
		"max_retries", w.cfg.MaxRetries,
	)

	for {
		if ctx.Err() != nil {
			logger.Info("Worker:Run:Stop")
			return
		}

		msgs, err := w.queue.Poll(ctx, w.cfg.PollBatch, w.cfg.PollWait)
		if err != nil {
			if ctx.Err() != nil {
				logger.Info("Worker:Run:Stop")
				return
			}
			logger.Error("Worker:Run:Poll", err)
			w.sleep(ctx, w.cfg.BackoffBase)
			continue
		}

		for _, msg := range msgs {
			if ctx.Err() != nil {
				// Unprocessed messages reappear after the visibility window.
				logger.Info("Worker:Run:Stop", "dropped", true)
				return
			}
			w.Process(ctx, msg)
		}
	}
}

// Process handles one delivery of one job through the full state machine:
// ledger short-circuit, apply with local retries, acknowledge, or escalate
// once the transport-reported attempt count is exhausted.
func (w *Worker) Process(ctx context.Context, msg queue.Message) {
	w.inflight.Add(1)
	defer w.inflight.Add(-1)

	// Detached from the poll loop's cancellation so shutdown lets the
	// handler finish; bounded by its own timeout.
	jobCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), jobTimeout)
	defer cancel()

	job := msg.Job
	retryAttempt := msg.DeliveryCount - 1
	start := time.Now()

	if !job.Kind.Valid() || job.SignupID == uuid.Nil {
		// Can never succeed; park it for inspection.
		logger.Error("Worker:Process:InvalidJob", "kind", job.Kind, "signup_id", job.SignupID)
		if err := w.queue.Escalate(jobCtx, job, "invalid job descriptor"); err != nil {
			logger.Error("Worker:Process:Escalate", err)
			return
		}
		w.ack(jobCtx, msg)
		return
	}

	entry, err := w.ledger.Get(jobCtx, job.SignupID, job.Kind)
	if err != nil {
		// Transient; leave unacknowledged so the queue redelivers.
		logger.Error("Worker:Process:LedgerGet", "error", err, "signup_id", job.SignupID, "kind", job.Kind)
		return
	}
	if entry != nil && entry.Status == entity.SyncSuccess {
		logger.Info("Worker:Process:AlreadyApplied", "signup_id", job.SignupID, "kind", job.Kind)
		w.ack(jobCtx, msg)
		return
	}

	externalRef, err := w.applyWithRetry(jobCtx, job)
	if err == nil {
		if err := w.ledger.UpsertSuccess(jobCtx, job.SignupID, job.Kind, externalRef); err != nil {
			// Without the ledger write the effect is not recorded; let the
			// redelivery re-run and short-circuit or re-apply idempotently.
			logger.Error("Worker:Process:LedgerSuccess", "error", err, "signup_id", job.SignupID, "kind", job.Kind)
			return
		}
		w.ack(jobCtx, msg)
		logger.Info("Worker:Process:Done",
			"signup_id", job.SignupID,
			"kind", job.Kind,
			"retry_attempt", retryAttempt,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return
	}

	logger.Error("Worker:Process:HandlerFailed",
		"error", err,
		"signup_id", job.SignupID,
		"kind", job.Kind,
		"retry_attempt", retryAttempt,
	)

	if retryAttempt < w.cfg.MaxRetries {
		// Redelivery timing is owned by the queue's visibility window.
		return
	}

	if lerr := w.ledger.UpsertFailure(jobCtx, job.SignupID, job.Kind, err.Error(), retryAttempt); lerr != nil {
		logger.Error("Worker:Process:LedgerFailure", lerr)
	}
	if eerr := w.queue.Escalate(jobCtx, job, err.Error()); eerr != nil {
		// Keep the message; better a redelivery than a silently lost job.
		logger.Error("Worker:Process:Escalate", eerr)
		return
	}
	w.ack(jobCtx, msg)
	logger.Warn("Worker:Process:Escalated", "signup_id", job.SignupID, "kind", job.Kind, "retry_attempt", retryAttempt)
}

// applyWithRetry performs the side effect with a small fixed number of
// local attempts and exponential backoff between them.
func (w *Worker) applyWithRetry(ctx context.Context, job queue.Job) (string, error) {
	var lastErr error
	for attempt := 0; attempt < w.cfg.LocalAttempts; attempt++ {
		if attempt > 0 {
			w.sleep(ctx, w.cfg.BackoffBase*time.Duration(1<<(attempt-1)))
		}
		ref, err := w.apply(ctx, job)
		if err == nil {
			return ref, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	return "", lastErr
}

func (w *Worker) apply(ctx context.Context, job queue.Job) (string, error) {
	detail, err := w.signups.GetSignupDetail(ctx, job.SignupID)
	if err != nil {
		return "", fmt.Errorf("load signup: %w", err)
	}
	if detail == nil {
		return "", fmt.Errorf("signup %s not found", job.SignupID)
	}

	switch job.Kind {
	case queue.KindUpsertExternalRecord:
		return w.roster.Upsert(ctx, detail)
	case queue.KindMarkExternalCancelled:
		return "", w.roster.MarkCancelled(ctx, detail)
	case queue.KindSendConfirmation:
		return w.mailer.SendConfirmation(ctx, detail)
	case queue.KindSendCancellation:
		return w.mailer.SendCancellation(ctx, detail)
	default:
		return "", fmt.Errorf("unknown job kind %q", job.Kind)
	}
}

func (w *Worker) ack(ctx context.Context, msg queue.Message) {
	if err := w.queue.Acknowledge(ctx, msg.Handle); err != nil {
		// The redelivered duplicate will short-circuit on the ledger.
		logger.Error("Worker:Ack", "error", err, "signup_id", msg.Job.SignupID, "kind", msg.Job.Kind)
	}
}

func sleepWithContext(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
