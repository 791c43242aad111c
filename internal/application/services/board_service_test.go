package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/clinicdesk/internal/application/services"
	"github.com/zatekoja/clinicdesk/internal/domain/entities"
	apperrors "github.com/zatekoja/clinicdesk/pkg/errors"
)

func boardFixture() []entities.Appointment {
	a := sampleAppointment("a-1", entities.AppointmentStatusConfirmed)
	a.PatientID = entities.Ref{ID: "p-1", Name: "Chidi"}
	a.StartTime, a.EndTime = at(3, 11, 0), at(3, 11, 30)

	b := sampleAppointment("a-2", entities.AppointmentStatusScheduled)
	b.PatientID = entities.Ref{ID: "p-2", Name: "ada"}
	b.DoctorID = entities.Ref{ID: "d-2"}
	b.StartTime, b.EndTime = at(3, 9, 0), at(3, 9, 30)

	c := sampleAppointment("a-3", entities.AppointmentStatusCompleted)
	c.PatientID = entities.Ref{ID: "p-3", Name: "Bisi"}
	c.StartTime, c.EndTime = at(3, 11, 0), at(3, 11, 30)

	return []entities.Appointment{*a, *b, *c}
}

func ids(rows []services.BoardRow) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Appointment.ID
	}
	return out
}

func TestSortState_Toggle(t *testing.T) {
	var s services.SortState

	s = s.Toggle(services.SortByPatient)
	assert.Equal(t, services.SortState{Key: services.SortByPatient, Direction: services.SortAsc}, s)

	s = s.Toggle(services.SortByPatient)
	assert.Equal(t, services.SortDesc, s.Direction)

	s = s.Toggle(services.SortByPatient)
	assert.False(t, s.Active())

	s = s.Toggle(services.SortByPatient).Toggle(services.SortByDate)
	assert.Equal(t, services.SortState{Key: services.SortByDate, Direction: services.SortAsc}, s)
}

func TestSortAppointments(t *testing.T) {
	t.Run("unsorted keeps server order", func(t *testing.T) {
		appts := boardFixture()
		services.SortAppointments(appts, services.SortState{})
		assert.Equal(t, "a-1", appts[0].ID)
		assert.Equal(t, "a-3", appts[2].ID)
	})

	t.Run("date ascending is stable for equal starts", func(t *testing.T) {
		appts := boardFixture()
		services.SortAppointments(appts, services.SortState{Key: services.SortByDate, Direction: services.SortAsc})
		assert.Equal(t, []string{"a-2", "a-1", "a-3"}, []string{appts[0].ID, appts[1].ID, appts[2].ID})
	})

	t.Run("date descending is stable for equal starts", func(t *testing.T) {
		appts := boardFixture()
		services.SortAppointments(appts, services.SortState{Key: services.SortByDate, Direction: services.SortDesc})
		assert.Equal(t, []string{"a-1", "a-3", "a-2"}, []string{appts[0].ID, appts[1].ID, appts[2].ID})
	})

	t.Run("patient names ignore case", func(t *testing.T) {
		appts := boardFixture()
		services.SortAppointments(appts, services.SortState{Key: services.SortByPatient, Direction: services.SortAsc})
		assert.Equal(t, []string{"a-2", "a-3", "a-1"}, []string{appts[0].ID, appts[1].ID, appts[2].ID})
	})

	t.Run("status follows display order", func(t *testing.T) {
		appts := boardFixture()
		services.SortAppointments(appts, services.SortState{Key: services.SortByStatus, Direction: services.SortAsc})
		assert.Equal(t, []entities.AppointmentStatus{
			entities.AppointmentStatusScheduled,
			entities.AppointmentStatusConfirmed,
			entities.AppointmentStatusCompleted,
		}, []entities.AppointmentStatus{appts[0].Status, appts[1].Status, appts[2].Status})
	})
}

func TestFilterAppointments(t *testing.T) {
	appts := boardFixture()

	byDoctor := services.FilterAppointments(appts, "d-2", nil)
	require.Len(t, byDoctor, 1)
	assert.Equal(t, "a-2", byDoctor[0].ID)

	byStatus := services.FilterAppointments(appts, "", []entities.AppointmentStatus{
		entities.AppointmentStatusConfirmed, entities.AppointmentStatusCompleted,
	})
	assert.Len(t, byStatus, 2)

	assert.Len(t, services.FilterAppointments(appts, "", nil), 3)
	assert.Len(t, appts, 3)
}

func TestBoardService_Load(t *testing.T) {
	provider := new(MockAppointmentProvider)
	scheduling := newScheduling(provider, NewMockEventBus())
	board := services.NewBoardService(provider, scheduling)

	provider.On("List", mock.Anything, mock.Anything).Return(boardFixture(), nil)

	result, err := board.Load(context.Background(), receptionist, services.BoardQuery{
		Sort: services.SortState{Key: services.SortByDate, Direction: services.SortAsc},
	})

	require.NoError(t, err)
	assert.Equal(t, 3, result.Total)
	assert.Equal(t, []string{"a-2", "a-1", "a-3"}, ids(result.Rows))

	scheduled := result.Rows[0].Actions
	assert.Equal(t, []entities.AppointmentStatus{entities.AppointmentStatusCancelled, entities.AppointmentStatusNoShow}, scheduled.StatusTargets)
	assert.True(t, scheduled.CanReschedule)
	assert.True(t, scheduled.CanDelete)
	assert.True(t, scheduled.CanCheckIn)
	assert.False(t, scheduled.CanEditNotes)

	completed := result.Rows[2].Actions
	assert.Empty(t, completed.StatusTargets)
	assert.False(t, completed.CanReschedule)
	assert.Equal(t, "completed appointments cannot be rescheduled", completed.RescheduleDisabledReason)
	assert.False(t, completed.CanDelete)
	assert.Equal(t, services.ActionIdle, result.Rows[0].State.Phase)
}

func TestBoardService_PatientsOnlyListTheirOwn(t *testing.T) {
	provider := new(MockAppointmentProvider)
	board := services.NewBoardService(provider, newScheduling(provider, NewMockEventBus()))

	provider.On("List", mock.Anything, mock.MatchedBy(func(f entities.AppointmentFilter) bool {
		return f.PatientID.ID == "p-1"
	})).Return([]entities.Appointment{}, nil)

	_, err := board.Load(context.Background(), patient, services.BoardQuery{PatientID: "p-9"})
	require.NoError(t, err)
	provider.AssertExpectations(t)
}

func TestBoardService_RejectsInvertedRange(t *testing.T) {
	provider := new(MockAppointmentProvider)
	board := services.NewBoardService(provider, newScheduling(provider, NewMockEventBus()))

	_, err := board.Load(context.Background(), admin, services.BoardQuery{From: at(5, 0, 0), To: at(4, 0, 0)})
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
	provider.AssertNotCalled(t, "List", mock.Anything, mock.Anything)
}

func TestCalendarRange(t *testing.T) {
	anchor := time.Date(2026, 3, 4, 15, 0, 0, 0, time.UTC) // Wednesday

	from, to, err := services.CalendarRange(services.CalendarDay, anchor)
	require.NoError(t, err)
	assert.Equal(t, at(4, 0, 0), from)
	assert.Equal(t, at(5, 0, 0).Add(-time.Nanosecond), to)

	from, to, err = services.CalendarRange(services.CalendarWeek, anchor)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), from)
	assert.Equal(t, time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC).Add(-time.Nanosecond), to)

	from, to, err = services.CalendarRange(services.CalendarMonth, anchor)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), from)
	assert.Equal(t, time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC).Add(-time.Nanosecond), to)

	_, _, err = services.CalendarRange("year", anchor)
	assert.Error(t, err)
}

func TestBoardService_Calendar(t *testing.T) {
	provider := new(MockAppointmentProvider)
	board := services.NewBoardService(provider, newScheduling(provider, NewMockEventBus()))

	provider.On("List", mock.Anything, mock.MatchedBy(func(f entities.AppointmentFilter) bool {
		return f.StartDate != nil && f.StartDate.Equal(at(1, 0, 0)) && f.EndDate != nil
	})).Return(boardFixture(), nil)

	cal, err := board.Calendar(context.Background(), doctor, services.CalendarWeek, at(4, 12, 0), "d-1")

	require.NoError(t, err)
	require.Len(t, cal.Events, 2)
	assert.Equal(t, "a-1", cal.Events[0].ID)
	assert.Equal(t, "Chidi - Consultation", cal.Events[0].Title)
	assert.True(t, cal.Events[0].Draggable)
	assert.False(t, cal.Events[1].Draggable)
}

func TestBoardService_SelectSlot(t *testing.T) {
	provider := new(MockAppointmentProvider)
	board := services.NewBoardService(provider, newScheduling(provider, NewMockEventBus()))

	t.Run("07:30 is outside business hours", func(t *testing.T) {
		_, err := board.SelectSlot(at(3, 7, 30), at(3, 8, 0))
		require.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
		assert.Contains(t, err.Error(), "08:00")
	})

	t.Run("a click becomes a 30 minute slot", func(t *testing.T) {
		sel, err := board.SelectSlot(at(3, 9, 0), at(3, 9, 0))
		require.NoError(t, err)
		assert.True(t, sel.EndTime.Equal(at(3, 9, 30)))
		assert.Equal(t, "Tue, Mar 3 09:00-09:30", sel.Label)
	})

	t.Run("the past is rejected", func(t *testing.T) {
		_, err := board.SelectSlot(at(2, 8, 0), at(2, 8, 30))
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
	})

	provider.AssertNotCalled(t, "CheckConflicts", mock.Anything, mock.Anything)
}
