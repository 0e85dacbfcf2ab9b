package controller

import (
	"seva-signup/core/controller"
	"seva-signup/core/errors"
	"seva-signup/modules/signup/dto"
	"seva-signup/modules/signup/service"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type SignupController struct {
	controller.BaseController
	service service.SignupService
}

func NewSignupController(svc service.SignupService) *SignupController {
	return &SignupController{
		BaseController: controller.NewBaseController(),
		service:        svc,
	}
}

// CreateSignup handles POST /public/slots/:slotId/signups
func (ctrl *SignupController) CreateSignup(c echo.Context) error {
	slotID, err := uuid.Parse(c.Param("slotId"))
	if err != nil {
		return ctrl.ErrorResponse(c, errors.NewAppError(errors.ErrSlotNotFound, "Slot not found", nil))
	}

	var req dto.CreateSignupRequest
	if err := c.Bind(&req); err != nil {
		return ctrl.ErrorResponse(c, errors.NewAppError(errors.ErrInvalidRequestData, "Invalid request body", err))
	}

	resp, appErr := ctrl.service.Reserve(c.Request().Context(), slotID, &req)
	if appErr != nil {
		return ctrl.ErrorResponse(c, appErr)
	}

	return ctrl.CreatedResponse(c, resp, "Signup confirmed! Keep the cancellation link from this response.")
}

// CancelSignup handles POST /public/cancel/:token
func (ctrl *SignupController) CancelSignup(c echo.Context) error {
	resp, appErr := ctrl.service.Cancel(c.Request().Context(), c.Param("token"))
	if appErr != nil {
		return ctrl.ErrorResponse(c, appErr)
	}

	return ctrl.SuccessResponse(c, resp, "Your signup has been cancelled successfully.")
}
