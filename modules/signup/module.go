package signup

import (
	"seva-signup/core/database"
	"seva-signup/core/middleware"
	"seva-signup/core/queue"
	"seva-signup/core/storage"
	"seva-signup/modules/signup/controller"
	"seva-signup/modules/signup/repository"
	"seva-signup/modules/signup/router"
	"seva-signup/modules/signup/service"
	syncrepo "seva-signup/modules/sync/repository"

	"github.com/labstack/echo/v4"
)

func Init(
	e *echo.Group,
	db database.Database,
	q queue.Queue,
	exporter storage.Exporter,
	baseURL string,
	mw *middleware.Middleware,
) service.SignupService {
	repo := repository.NewSignupRepository(db)
	ledger := syncrepo.NewLedgerRepository(db)
	svc := service.NewSignupService(repo, ledger, q, exporter, baseURL)
	ctrl := controller.NewSignupController(svc)

	router.NewSignupRouter(ctrl).Register(e, mw)

	return svc
}
