package controller

import (
	"seva-signup/core/controller"
	"seva-signup/core/errors"
	"seva-signup/modules/event/dto"
	"seva-signup/modules/event/service"

	"github.com/labstack/echo/v4"
)

type EventController struct {
	controller.BaseController
	service service.EventService
}

func NewEventController(svc service.EventService) *EventController {
	return &EventController{
		BaseController: controller.NewBaseController(),
		service:        svc,
	}
}

// CreateEvent handles POST /admin/events
func (ctrl *EventController) CreateEvent(c echo.Context) error {
	var req dto.CreateEventRequest
	if err := c.Bind(&req); err != nil {
		return ctrl.ErrorResponse(c, errors.NewAppError(errors.ErrInvalidRequestData, "Invalid request body", err))
	}

	resp, appErr := ctrl.service.CreateEvent(c.Request().Context(), &req)
	if appErr != nil {
		return ctrl.ErrorResponse(c, appErr)
	}

	return ctrl.CreatedResponse(c, resp, "Event created successfully")
}

// GenerateDays handles POST /admin/events/:publicId/days
func (ctrl *EventController) GenerateDays(c echo.Context) error {
	resp, appErr := ctrl.service.GenerateDays(c.Request().Context(), c.Param("publicId"))
	if appErr != nil {
		return ctrl.ErrorResponse(c, appErr)
	}

	return ctrl.CreatedResponse(c, resp, "Days generated successfully")
}

// ListSlots handles GET /public/events/:publicId/days/:date/slots
func (ctrl *EventController) ListSlots(c echo.Context) error {
	resp, appErr := ctrl.service.ListSlots(c.Request().Context(), c.Param("publicId"), c.Param("date"))
	if appErr != nil {
		return ctrl.ErrorResponse(c, appErr)
	}

	return ctrl.SuccessResponse(c, resp, "Availability retrieved successfully")
}

// CloseDay handles PUT /admin/events/:publicId/days/:date/close
func (ctrl *EventController) CloseDay(c echo.Context) error {
	var req struct {
		Closed bool `json:"closed"`
	}
	req.Closed = true
	if err := c.Bind(&req); err != nil {
		return ctrl.ErrorResponse(c, errors.NewAppError(errors.ErrInvalidRequestData, "Invalid request body", err))
	}

	resp, appErr := ctrl.service.CloseDay(c.Request().Context(), c.Param("publicId"), c.Param("date"), req.Closed)
	if appErr != nil {
		return ctrl.ErrorResponse(c, appErr)
	}

	return ctrl.SuccessResponse(c, resp, "Day updated successfully")
}
