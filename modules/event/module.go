package event

import (
	"seva-signup/core/database"
	"seva-signup/core/middleware"
	"seva-signup/modules/event/controller"
	"seva-signup/modules/event/repository"
	"seva-signup/modules/event/router"
	"seva-signup/modules/event/service"

	"github.com/labstack/echo/v4"
)

func Init(e *echo.Group, db database.Database, mw *middleware.Middleware) service.EventService {
	repo := repository.NewEventRepository(db)
	svc := service.NewEventService(repo)
	ctrl := controller.NewEventController(svc)

	router.NewEventRouter(ctrl).Register(e, mw)

	return svc
}
