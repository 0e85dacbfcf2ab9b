package sync

import (
	"context"

	"seva-signup/core/config"
	"seva-signup/core/database"
	"seva-signup/core/queue"
	eventrepo "seva-signup/modules/event/repository"
	signuprepo "seva-signup/modules/signup/repository"
	"seva-signup/modules/sync/repository"
	"seva-signup/modules/sync/service"
)

// Init wires the delivery worker and the reconciliation sweep. The worker
// shares the API's repositories but owns the external collaborators.
func Init(ctx context.Context, db database.Database, q queue.Queue, cfg *config.Config) (*service.Worker, *service.Reconciler, error) {
	signupRepo := signuprepo.NewSignupRepository(db)
	ledger := repository.NewLedgerRepository(db)
	eventRepo := eventrepo.NewEventRepository(db)

	roster, err := service.NewSheetsRoster(ctx, cfg.Google, eventRepo)
	if err != nil {
		return nil, nil, err
	}
	mailer := service.NewSESMailer(cfg.AWS)

	worker := service.NewWorker(q, signupRepo, ledger, roster, mailer, cfg.Worker)
	reconciler := service.NewReconciler(ledger, q, cfg.Worker.ReconcileGrace)
	return worker, reconciler, nil
}
