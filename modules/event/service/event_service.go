package service

import (
	"context"
	"time"

	"seva-signup/core/constants"
	"seva-signup/core/errors"
	"seva-signup/core/logger"
	"seva-signup/core/utils"
	"seva-signup/modules/event/dto"
	"seva-signup/modules/event/entity"
	"seva-signup/modules/event/repository"

	"github.com/gosimple/slug"
)

type EventService interface {
	CreateEvent(ctx context.Context, req *dto.CreateEventRequest) (*dto.EventResponse, *errors.AppError)
	GenerateDays(ctx context.Context, publicID string) (*dto.GenerateDaysResponse, *errors.AppError)
	ListSlots(ctx context.Context, publicID, date string) (*dto.SlotListResponse, *errors.AppError)
	CloseDay(ctx context.Context, publicID, date string, closed bool) (*dto.CloseDayResponse, *errors.AppError)
}

type eventService struct {
	repo repository.EventRepositoryInterface
}

func NewEventService(repo repository.EventRepositoryInterface) EventService {
	return &eventService{repo: repo}
}

func (s *eventService) CreateEvent(ctx context.Context, req *dto.CreateEventRequest) (*dto.EventResponse, *errors.AppError) {
	start, end, appErr := req.Normalize()
	if appErr != nil {
		return nil, appErr
	}

	logger.Info("EventService:CreateEvent:Start", "name", req.Name)

	event := &entity.Event{
		PublicID:   utils.GeneratePublicID(constants.PublicIDLength),
		Name:       req.Name,
		Slug:       slug.Make(req.Name),
		Timezone:   req.Timezone,
		ShiftLabel: req.ShiftLabel,
		StartDate:  start,
		EndDate:    end,
	}
	if req.Description != "" {
		event.Description.String = req.Description
		event.Description.Valid = true
	}

	created, err := s.repo.CreateEvent(ctx, event)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrInternalServer, "Failed to create event", err)
	}

	resp := &dto.EventResponse{
		PublicID:   created.PublicID,
		Name:       created.Name,
		Slug:       created.Slug,
		Timezone:   created.Timezone,
		ShiftLabel: created.ShiftLabel,
		StartDate:  created.StartDate.Format("2006-01-02"),
		EndDate:    created.EndDate.Format("2006-01-02"),
	}

	for _, in := range req.SevaTypes {
		seva := &entity.SevaType{
			EventID:         created.ID,
			Name:            in.Name,
			DefaultCapacity: in.DefaultCapacity,
			SortOrder:       in.SortOrder,
			IsActive:        true,
		}
		if in.Description != "" {
			seva.Description.String = in.Description
			seva.Description.Valid = true
		}
		savedSeva, err := s.repo.CreateSevaType(ctx, seva)
		if err != nil {
			return nil, errors.NewAppError(errors.ErrInternalServer, "Failed to create seva type", err)
		}
		resp.SevaTypes = append(resp.SevaTypes, sevaResponse(savedSeva))
	}

	logger.Info("EventService:CreateEvent:Done", "public_id", created.PublicID, "seva_types", len(resp.SevaTypes))
	return resp, nil
}

// GenerateDays materializes the event's calendar: one day per open date in
// the event window and one slot per active seva type. Dates that already
// have a day are left untouched, so re-running is safe.
func (s *eventService) GenerateDays(ctx context.Context, publicID string) (*dto.GenerateDaysResponse, *errors.AppError) {
	event, err := s.repo.GetEventByPublicID(ctx, publicID)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrInternalServer, "Failed to load event", err)
	}
	if event == nil {
		return nil, errors.NewAppError(errors.ErrNotFound, "Event not found", nil)
	}

	sevas, err := s.repo.ListSevaTypes(ctx, event.ID)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrInternalServer, "Failed to load seva types", err)
	}
	active := make([]entity.SevaType, 0, len(sevas))
	for _, seva := range sevas {
		if seva.IsActive {
			active = append(active, seva)
		}
	}
	if len(active) == 0 {
		return nil, errors.NewAppError(errors.ErrInvalidInput, "Event has no active seva types", nil)
	}

	resp := &dto.GenerateDaysResponse{EventPublicID: event.PublicID}
	for _, date := range scheduleDates(event.StartDate, event.EndDate) {
		existing, err := s.repo.GetDay(ctx, event.ID, date)
		if err != nil {
			return nil, errors.NewAppError(errors.ErrInternalServer, "Failed to generate days", err)
		}
		if existing != nil {
			resp.DaysSkipped++
			continue
		}

		day, err := s.repo.CreateDay(ctx, &entity.Day{
			EventID:   event.ID,
			Date:      date,
			DayOfWeek: int(date.Weekday()),
		})
		if err != nil {
			return nil, errors.NewAppError(errors.ErrInternalServer, "Failed to generate days", err)
		}
		resp.DaysCreated++

		for _, seva := range active {
			_, err := s.repo.CreateSlot(ctx, &entity.Slot{
				DayID:      day.ID,
				SevaTypeID: seva.ID,
				Capacity:   seva.DefaultCapacity,
			})
			if err != nil {
				return nil, errors.NewAppError(errors.ErrInternalServer, "Failed to generate slots", err)
			}
			resp.SlotsCreated++
		}
	}

	logger.Info("EventService:GenerateDays:Done",
		"public_id", event.PublicID,
		"days_created", resp.DaysCreated,
		"slots_created", resp.SlotsCreated,
		"days_skipped", resp.DaysSkipped,
	)
	return resp, nil
}

func (s *eventService) ListSlots(ctx context.Context, publicID, date string) (*dto.SlotListResponse, *errors.AppError) {
	day, err := time.Parse("2006-01-02", date)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrInvalidInput, "date must be YYYY-MM-DD", err)
	}

	event, repoErr := s.repo.GetEventByPublicID(ctx, publicID)
	if repoErr != nil {
		return nil, errors.NewAppError(errors.ErrInternalServer, "Failed to load event", repoErr)
	}
	if event == nil {
		return nil, errors.NewAppError(errors.ErrNotFound, "Event not found", nil)
	}

	eventDay, repoErr := s.repo.GetDay(ctx, event.ID, day)
	if repoErr != nil {
		return nil, errors.NewAppError(errors.ErrInternalServer, "Failed to load availability", repoErr)
	}
	if eventDay == nil {
		return nil, errors.NewAppError(errors.ErrNotFound, "No signups are scheduled for this date", nil)
	}

	resp := &dto.SlotListResponse{
		EventPublicID: event.PublicID,
		EventName:     event.Name,
		Date:          eventDay.Date.Format("2006-01-02"),
		DayOfWeek:     eventDay.Date.Weekday().String(),
		ShiftLabel:    event.ShiftLabel,
		IsClosed:      eventDay.IsClosed,
		Slots:         []dto.SlotView{},
	}

	listings, repoErr := s.repo.ListSlotsByDay(ctx, eventDay.ID)
	if repoErr != nil {
		return nil, errors.NewAppError(errors.ErrInternalServer, "Failed to load availability", repoErr)
	}
	for _, l := range listings {
		remaining := l.Capacity - l.FilledCount
		if remaining < 0 {
			remaining = 0
		}
		resp.Slots = append(resp.Slots, dto.SlotView{
			ID:          l.ID,
			SevaName:    l.SevaName,
			Description: l.SevaDescription.String,
			Capacity:    l.Capacity,
			FilledCount: l.FilledCount,
			Remaining:   remaining,
			Status:      string(l.Status),
		})
	}

	return resp, nil
}

func (s *eventService) CloseDay(ctx context.Context, publicID, date string, closed bool) (*dto.CloseDayResponse, *errors.AppError) {
	day, err := time.Parse("2006-01-02", date)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrInvalidInput, "date must be YYYY-MM-DD", err)
	}

	event, repoErr := s.repo.GetEventByPublicID(ctx, publicID)
	if repoErr != nil {
		return nil, errors.NewAppError(errors.ErrInternalServer, "Failed to load event", repoErr)
	}
	if event == nil {
		return nil, errors.NewAppError(errors.ErrNotFound, "Event not found", nil)
	}

	eventDay, repoErr := s.repo.GetDay(ctx, event.ID, day)
	if repoErr != nil {
		return nil, errors.NewAppError(errors.ErrInternalServer, "Failed to update day", repoErr)
	}
	if eventDay == nil {
		return nil, errors.NewAppError(errors.ErrNotFound, "Day not found", nil)
	}

	if err := s.repo.SetDayClosed(ctx, eventDay.ID, closed); err != nil {
		return nil, errors.NewAppError(errors.ErrInternalServer, "Failed to update day", err)
	}

	logger.Info("EventService:CloseDay:Done", "public_id", event.PublicID, "date", date, "closed", closed)
	return &dto.CloseDayResponse{
		DayID:    eventDay.ID,
		Date:     eventDay.Date.Format("2006-01-02"),
		IsClosed: closed,
	}, nil
}

// scheduleDates expands the inclusive event window into bookable dates.
// Thursdays and Fridays are rest days with no volunteer shifts.
func scheduleDates(start, end time.Time) []time.Time {
	var dates []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		wd := d.Weekday()
		if wd == time.Thursday || wd == time.Friday {
			continue
		}
		dates = append(dates, d)
	}
	return dates
}

func sevaResponse(s *entity.SevaType) dto.SevaTypeResponse {
	return dto.SevaTypeResponse{
		ID:              s.ID,
		Name:            s.Name,
		Description:     s.Description.String,
		DefaultCapacity: s.DefaultCapacity,
		SortOrder:       s.SortOrder,
	}
}
