package router

import (
	"seva-signup/core/middleware"
	"seva-signup/modules/event/controller"

	"github.com/labstack/echo/v4"
)

type EventRouter struct {
	controller *controller.EventController
}

func NewEventRouter(controller *controller.EventController) *EventRouter {
	return &EventRouter{controller: controller}
}

func (r *EventRouter) Register(e *echo.Group, mw *middleware.Middleware) {
	public := e.Group("/public")
	public.GET("/events/:publicId/days/:date/slots", r.controller.ListSlots, mw.RateLimitMiddleware())

	admin := e.Group("/admin")
	admin.POST("/events", r.controller.CreateEvent)
	admin.POST("/events/:publicId/days", r.controller.GenerateDays)
	admin.PUT("/events/:publicId/days/:date/close", r.controller.CloseDay)
}
