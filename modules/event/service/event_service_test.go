package service

import (
	"context"
	"testing"
	"time"

	"seva-signup/core/errors"
	"seva-signup/modules/event/dto"
	"seva-signup/modules/event/entity"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type memEventRepo struct {
	events map[string]*entity.Event // by public id
	sevas  map[uuid.UUID][]entity.SevaType
	days   map[uuid.UUID][]entity.Day
	slots  map[uuid.UUID][]entity.Slot // by day id
}

func newMemEventRepo() *memEventRepo {
	return &memEventRepo{
		events: make(map[string]*entity.Event),
		sevas:  make(map[uuid.UUID][]entity.SevaType),
		days:   make(map[uuid.UUID][]entity.Day),
		slots:  make(map[uuid.UUID][]entity.Slot),
	}
}

func (r *memEventRepo) CreateEvent(ctx context.Context, e *entity.Event) (*entity.Event, error) {
	cp := *e
	cp.ID = uuid.New()
	r.events[cp.PublicID] = &cp
	return &cp, nil
}

func (r *memEventRepo) GetEventByPublicID(ctx context.Context, publicID string) (*entity.Event, error) {
	e, ok := r.events[publicID]
	if !ok {
		return nil, nil
	}
	cp := *e
	return &cp, nil
}

func (r *memEventRepo) SetSpreadsheetID(ctx context.Context, eventID uuid.UUID, spreadsheetID string) error {
	for _, e := range r.events {
		if e.ID == eventID {
			e.SpreadsheetID.String = spreadsheetID
			e.SpreadsheetID.Valid = true
		}
	}
	return nil
}

func (r *memEventRepo) CreateSevaType(ctx context.Context, s *entity.SevaType) (*entity.SevaType, error) {
	cp := *s
	cp.ID = uuid.New()
	r.sevas[cp.EventID] = append(r.sevas[cp.EventID], cp)
	return &cp, nil
}

func (r *memEventRepo) ListSevaTypes(ctx context.Context, eventID uuid.UUID) ([]entity.SevaType, error) {
	return r.sevas[eventID], nil
}

func (r *memEventRepo) CreateDay(ctx context.Context, d *entity.Day) (*entity.Day, error) {
	cp := *d
	cp.ID = uuid.New()
	r.days[cp.EventID] = append(r.days[cp.EventID], cp)
	return &cp, nil
}

func (r *memEventRepo) GetDay(ctx context.Context, eventID uuid.UUID, date time.Time) (*entity.Day, error) {
	for _, d := range r.days[eventID] {
		if d.Date.Equal(date) {
			cp := d
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memEventRepo) SetDayClosed(ctx context.Context, dayID uuid.UUID, closed bool) error {
	for eventID, days := range r.days {
		for i := range days {
			if days[i].ID == dayID {
				r.days[eventID][i].IsClosed = closed
			}
		}
	}
	return nil
}

func (r *memEventRepo) CreateSlot(ctx context.Context, s *entity.Slot) (*entity.Slot, error) {
	cp := *s
	cp.ID = uuid.New()
	cp.Status = entity.SlotActive
	r.slots[cp.DayID] = append(r.slots[cp.DayID], cp)
	return &cp, nil
}

func (r *memEventRepo) ListSlotsByDay(ctx context.Context, dayID uuid.UUID) ([]entity.SlotListing, error) {
	var out []entity.SlotListing
	for _, s := range r.slots[dayID] {
		out = append(out, entity.SlotListing{Slot: s, SevaName: "Seva"})
	}
	return out, nil
}

func createTestEvent(t *testing.T, svc EventService) string {
	t.Helper()
	resp, appErr := svc.CreateEvent(context.Background(), &dto.CreateEventRequest{
		Name:       "Fall Seva 2026",
		Timezone:   "America/Chicago",
		ShiftLabel: "5:30 PM - 9:00 PM",
		StartDate:  "2026-09-07", // Monday
		EndDate:    "2026-09-13", // Sunday
		SevaTypes: []dto.SevaTypeInput{
			{Name: "Kitchen", DefaultCapacity: 4, SortOrder: 1},
			{Name: "Parking", DefaultCapacity: 2, SortOrder: 2},
		},
	})
	require.Nil(t, appErr)
	require.NotEmpty(t, resp.PublicID)
	require.Equal(t, "fall-seva-2026", resp.Slug)
	return resp.PublicID
}

func TestScheduleDatesSkipsThursdayAndFriday(t *testing.T) {
	start := time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC) // Monday
	end := time.Date(2026, 9, 13, 0, 0, 0, 0, time.UTC)  // Sunday

	dates := scheduleDates(start, end)
	require.Len(t, dates, 5)
	for _, d := range dates {
		require.NotEqual(t, time.Thursday, d.Weekday())
		require.NotEqual(t, time.Friday, d.Weekday())
	}
}

func TestGenerateDaysCreatesSlotsPerActiveSeva(t *testing.T) {
	repo := newMemEventRepo()
	svc := NewEventService(repo)
	publicID := createTestEvent(t, svc)

	resp, appErr := svc.GenerateDays(context.Background(), publicID)
	require.Nil(t, appErr)
	require.Equal(t, 5, resp.DaysCreated)
	require.Equal(t, 10, resp.SlotsCreated)
	require.Equal(t, 0, resp.DaysSkipped)
}

func TestGenerateDaysIsRerunnable(t *testing.T) {
	repo := newMemEventRepo()
	svc := NewEventService(repo)
	publicID := createTestEvent(t, svc)

	_, appErr := svc.GenerateDays(context.Background(), publicID)
	require.Nil(t, appErr)

	resp, appErr := svc.GenerateDays(context.Background(), publicID)
	require.Nil(t, appErr)
	require.Equal(t, 0, resp.DaysCreated)
	require.Equal(t, 0, resp.SlotsCreated)
	require.Equal(t, 5, resp.DaysSkipped)
}

func TestGenerateDaysUnknownEvent(t *testing.T) {
	svc := NewEventService(newMemEventRepo())

	_, appErr := svc.GenerateDays(context.Background(), "missing")
	require.NotNil(t, appErr)
	require.Equal(t, errors.ErrNotFound, appErr.Code)
}

func TestListSlotsReportsRemainingAndClosed(t *testing.T) {
	repo := newMemEventRepo()
	svc := NewEventService(repo)
	publicID := createTestEvent(t, svc)

	_, appErr := svc.GenerateDays(context.Background(), publicID)
	require.Nil(t, appErr)

	resp, appErr := svc.ListSlots(context.Background(), publicID, "2026-09-07")
	require.Nil(t, appErr)
	require.False(t, resp.IsClosed)
	require.Len(t, resp.Slots, 2)
	for _, s := range resp.Slots {
		require.Equal(t, s.Capacity, s.Remaining)
		require.Equal(t, string(entity.SlotActive), s.Status)
	}

	closed, appErr := svc.CloseDay(context.Background(), publicID, "2026-09-07", true)
	require.Nil(t, appErr)
	require.True(t, closed.IsClosed)

	resp, appErr = svc.ListSlots(context.Background(), publicID, "2026-09-07")
	require.Nil(t, appErr)
	require.True(t, resp.IsClosed)
}

func TestListSlotsRejectsBadDate(t *testing.T) {
	svc := NewEventService(newMemEventRepo())

	_, appErr := svc.ListSlots(context.Background(), "whatever", "next tuesday")
	require.NotNil(t, appErr)
	require.Equal(t, errors.ErrInvalidInput, appErr.Code)
}

func TestCreateEventValidation(t *testing.T) {
	svc := NewEventService(newMemEventRepo())

	cases := []struct {
		name string
		req  dto.CreateEventRequest
	}{
		{"missing name", dto.CreateEventRequest{
			StartDate: "2026-09-07", EndDate: "2026-09-13",
			SevaTypes: []dto.SevaTypeInput{{Name: "Kitchen", DefaultCapacity: 1}},
		}},
		{"end before start", dto.CreateEventRequest{
			Name: "Fall Seva", StartDate: "2026-09-13", EndDate: "2026-09-07",
			SevaTypes: []dto.SevaTypeInput{{Name: "Kitchen", DefaultCapacity: 1}},
		}},
		{"no seva types", dto.CreateEventRequest{
			Name: "Fall Seva", StartDate: "2026-09-07", EndDate: "2026-09-13",
		}},
		{"zero capacity", dto.CreateEventRequest{
			Name: "Fall Seva", StartDate: "2026-09-07", EndDate: "2026-09-13",
			SevaTypes: []dto.SevaTypeInput{{Name: "Kitchen", DefaultCapacity: 0}},
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, appErr := svc.CreateEvent(context.Background(), &tc.req)
			require.NotNil(t, appErr)
			require.Equal(t, errors.ErrInvalidInput, appErr.Code)
		})
	}
}
