package repository

import (
	"context"
	"database/sql"
	"time"

	"seva-signup/core/database"
	"seva-signup/core/logger"
	"seva-signup/modules/event/entity"

	"github.com/google/uuid"
)

type EventRepository struct {
	DB database.Database
}

func NewEventRepository(db database.Database) *EventRepository {
	return &EventRepository{DB: db}
}

type EventRepositoryInterface interface {
	CreateEvent(ctx context.Context, e *entity.Event) (*entity.Event, error)
	GetEventByPublicID(ctx context.Context, publicID string) (*entity.Event, error)
	SetSpreadsheetID(ctx context.Context, eventID uuid.UUID, spreadsheetID string) error
	CreateSevaType(ctx context.Context, s *entity.SevaType) (*entity.SevaType, error)
	ListSevaTypes(ctx context.Context, eventID uuid.UUID) ([]entity.SevaType, error)
	CreateDay(ctx context.Context, d *entity.Day) (*entity.Day, error)
	GetDay(ctx context.Context, eventID uuid.UUID, date time.Time) (*entity.Day, error)
	SetDayClosed(ctx context.Context, dayID uuid.UUID, closed bool) error
	CreateSlot(ctx context.Context, s *entity.Slot) (*entity.Slot, error)
	ListSlotsByDay(ctx context.Context, dayID uuid.UUID) ([]entity.SlotListing, error)
}

func (r *EventRepository) CreateEvent(ctx context.Context, e *entity.Event) (*entity.Event, error) {
	query := `
		INSERT INTO events (public_id, name, slug, description, timezone, shift_label, start_date, end_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, public_id, name, slug, description, timezone, shift_label, start_date, end_date,
			spreadsheet_id, created_at, updated_at
	`

	var created entity.Event
	err := r.DB.GetContext(ctx, &created, query,
		e.PublicID, e.Name, e.Slug, e.Description, e.Timezone, e.ShiftLabel, e.StartDate, e.EndDate)
	if err != nil {
		logger.Error("EventRepository:CreateEvent", err)
		return nil, err
	}
	return &created, nil
}

func (r *EventRepository) GetEventByPublicID(ctx context.Context, publicID string) (*entity.Event, error) {
	query := `
		SELECT id, public_id, name, slug, description, timezone, shift_label, start_date, end_date,
			spreadsheet_id, created_at, updated_at
		FROM events WHERE public_id = $1
	`

	var e entity.Event
	if err := r.DB.GetContext(ctx, &e, query, publicID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		logger.Error("EventRepository:GetEventByPublicID", err)
		return nil, err
	}
	return &e, nil
}

func (r *EventRepository) SetSpreadsheetID(ctx context.Context, eventID uuid.UUID, spreadsheetID string) error {
	query := `UPDATE events SET spreadsheet_id = $2, updated_at = NOW() WHERE id = $1`

	if err := r.DB.ExecContext(ctx, query, eventID, spreadsheetID); err != nil {
		logger.Error("EventRepository:SetSpreadsheetID", err)
		return err
	}
	return nil
}

func (r *EventRepository) CreateSevaType(ctx context.Context, s *entity.SevaType) (*entity.SevaType, error) {
	query := `
		INSERT INTO seva_types (event_id, name, description, default_capacity, sort_order, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, event_id, name, description, default_capacity, sort_order, is_active, created_at, updated_at
	`

	var created entity.SevaType
	err := r.DB.GetContext(ctx, &created, query,
		s.EventID, s.Name, s.Description, s.DefaultCapacity, s.SortOrder, s.IsActive)
	if err != nil {
		logger.Error("EventRepository:CreateSevaType", err)
		return nil, err
	}
	return &created, nil
}

func (r *EventRepository) ListSevaTypes(ctx context.Context, eventID uuid.UUID) ([]entity.SevaType, error) {
	query := `
		SELECT id, event_id, name, description, default_capacity, sort_order, is_active, created_at, updated_at
		FROM seva_types WHERE event_id = $1
		ORDER BY sort_order, name
	`

	var sevas []entity.SevaType
	if err := r.DB.SelectContext(ctx, &sevas, query, eventID); err != nil {
		logger.Error("EventRepository:ListSevaTypes", err)
		return nil, err
	}
	return sevas, nil
}

func (r *EventRepository) CreateDay(ctx context.Context, d *entity.Day) (*entity.Day, error) {
	query := `
		INSERT INTO days (event_id, date, day_of_week, is_closed)
		VALUES ($1, $2, $3, $4)
		RETURNING id, event_id, date, day_of_week, is_closed, created_at, updated_at
	`

	var created entity.Day
	err := r.DB.GetContext(ctx, &created, query, d.EventID, d.Date, d.DayOfWeek, d.IsClosed)
	if err != nil {
		logger.Error("EventRepository:CreateDay", err)
		return nil, err
	}
	return &created, nil
}

func (r *EventRepository) GetDay(ctx context.Context, eventID uuid.UUID, date time.Time) (*entity.Day, error) {
	query := `
		SELECT id, event_id, date, day_of_week, is_closed, created_at, updated_at
		FROM days WHERE event_id = $1 AND date = $2
	`

	var d entity.Day
	if err := r.DB.GetContext(ctx, &d, query, eventID, date); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		logger.Error("EventRepository:GetDay", err)
		return nil, err
	}
	return &d, nil
}

func (r *EventRepository) SetDayClosed(ctx context.Context, dayID uuid.UUID, closed bool) error {
	query := `UPDATE days SET is_closed = $2, updated_at = NOW() WHERE id = $1`

	if err := r.DB.ExecContext(ctx, query, dayID, closed); err != nil {
		logger.Error("EventRepository:SetDayClosed", err)
		return err
	}
	return nil
}

func (r *EventRepository) CreateSlot(ctx context.Context, s *entity.Slot) (*entity.Slot, error) {
	query := `
		INSERT INTO slots (day_id, seva_type_id, capacity, filled_count, status)
		VALUES ($1, $2, $3, 0, $4)
		RETURNING id, day_id, seva_type_id, capacity, filled_count, status, created_at, updated_at
	`

	var created entity.Slot
	err := r.DB.GetContext(ctx, &created, query, s.DayID, s.SevaTypeID, s.Capacity, entity.SlotActive)
	if err != nil {
		logger.Error("EventRepository:CreateSlot", err)
		return nil, err
	}
	return &created, nil
}

func (r *EventRepository) ListSlotsByDay(ctx context.Context, dayID uuid.UUID) ([]entity.SlotListing, error) {
	query := `
		SELECT sl.id, sl.day_id, sl.seva_type_id, sl.capacity, sl.filled_count, sl.status,
			sl.created_at, sl.updated_at,
			st.name AS seva_name, st.description AS seva_description, st.sort_order AS seva_sort_order
		FROM slots sl
		JOIN seva_types st ON st.id = sl.seva_type_id
		WHERE sl.day_id = $1
		ORDER BY st.sort_order, st.name
	`

	var slots []entity.SlotListing
	if err := r.DB.SelectContext(ctx, &slots, query, dayID); err != nil {
		logger.Error("EventRepository:ListSlotsByDay", err)
		return nil, err
	}
	return slots, nil
}
