package router

import (
	"seva-signup/core/middleware"
	"seva-signup/modules/signup/controller"

	"github.com/labstack/echo/v4"
)

type SignupRouter struct {
	controller *controller.SignupController
}

func NewSignupRouter(controller *controller.SignupController) *SignupRouter {
	return &SignupRouter{controller: controller}
}

func (r *SignupRouter) Register(e *echo.Group, mw *middleware.Middleware) {
	group := e.Group("/public")
	group.POST("/slots/:slotId/signups", r.controller.CreateSignup, mw.RateLimitMiddleware())
	group.POST("/cancel/:token", r.controller.CancelSignup)
}
