package service

import (
	"context"
	"time"

	"seva-signup/core/logger"
	"seva-signup/core/queue"
	syncrepo "seva-signup/modules/sync/repository"

	"github.com/hibiken/asynq"
)

// TaskReconcile is the asynq task type for the periodic ledger sweep.
const TaskReconcile = "sync:reconcile"

const reconcileBatch = 200

func NewReconcileTask() *asynq.Task {
	return asynq.NewTask(TaskReconcile, nil)
}

// Reconciler re-enqueues jobs for signups whose effects never reached a
// SUCCESS ledger entry. It catches losses between commit and enqueue; the
// ledger makes any resulting duplicate delivery harmless.
type Reconciler struct {
	ledger syncrepo.LedgerRepositoryInterface
	queue  queue.Queue
	grace  time.Duration
}

func NewReconciler(ledger syncrepo.LedgerRepositoryInterface, q queue.Queue, grace time.Duration) *Reconciler {
	return &Reconciler{ledger: ledger, queue: q, grace: grace}
}

// Sweep enqueues one job per pending (signup, kind) pair and returns how
// many were enqueued.
func (r *Reconciler) Sweep(ctx context.Context) (int, error) {
	pending, err := r.ledger.ListPending(ctx, r.grace, reconcileBatch)
	if err != nil {
		return 0, err
	}

	enqueued := 0
	for _, p := range pending {
		if !p.Kind.Valid() {
			continue
		}
		job := queue.Job{Kind: p.Kind, SignupID: p.SignupID}
		if _, err := r.queue.Enqueue(ctx, job); err != nil {
			logger.Error("Reconciler:Sweep:Enqueue", "error", err, "signup_id", p.SignupID, "kind", p.Kind)
			continue
		}
		enqueued++
	}

	if enqueued > 0 {
		logger.Info("Reconciler:Sweep:Done", "pending", len(pending), "enqueued", enqueued)
	}
	return enqueued, nil
}

// ProcessTask implements asynq.Handler for TaskReconcile.
func (r *Reconciler) ProcessTask(ctx context.Context, _ *asynq.Task) error {
	_, err := r.Sweep(ctx)
	return err
}
