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

func TestDetailsService_View(t *testing.T) {
	provider := new(MockAppointmentProvider)
	details := services.NewDetailsService(newScheduling(provider, NewMockEventBus()))

	provider.On("GetByID", mock.Anything, "a-1").Return(sampleAppointment("a-1", entities.AppointmentStatusScheduled), nil)

	view, err := details.View(context.Background(), receptionist, "a-1")
	require.NoError(t, err)

	assert.Equal(t, []services.DetailsTab{
		services.TabDetails, services.TabMedicalNotes, services.TabHistory, services.TabActions,
	}, view.Tabs)
	require.Len(t, view.StatusButtons, len(entities.AllAppointmentStatuses))

	buttons := make(map[entities.AppointmentStatus]services.StatusButton)
	for _, b := range view.StatusButtons {
		buttons[b.Status] = b
	}
	assert.True(t, buttons[entities.AppointmentStatusScheduled].Current)
	assert.False(t, buttons[entities.AppointmentStatusScheduled].Enabled)
	assert.Equal(t, "appointment is already Scheduled", buttons[entities.AppointmentStatusScheduled].DisabledReason)
	assert.True(t, buttons[entities.AppointmentStatusCancelled].Enabled)
	assert.Empty(t, buttons[entities.AppointmentStatusCancelled].DisabledReason)

	completed := buttons[entities.AppointmentStatusCompleted]
	assert.False(t, completed.Enabled)
	assert.Equal(t, "only the doctor or an Admin can mark an appointment as Completed", completed.DisabledReason)
	assert.Equal(t, "only clinical staff can edit medical notes", view.NotesDisabledReason)
	assert.Empty(t, view.CheckInDisabledReason)
}

func TestDetailsService_AdminCurrentStatusButtonIsDisabled(t *testing.T) {
	provider := new(MockAppointmentProvider)
	details := services.NewDetailsService(newScheduling(provider, NewMockEventBus()))

	view := details.Present(admin, *sampleAppointment("a-1", entities.AppointmentStatusCompleted))

	for _, b := range view.StatusButtons {
		if b.Current {
			assert.Equal(t, entities.AppointmentStatusCompleted, b.Status)
			assert.False(t, b.Enabled)
			assert.Equal(t, "appointment is already Completed", b.DisabledReason)
			continue
		}
		assert.True(t, b.Enabled, b.Status)
	}
	assert.NotContains(t, view.Actions.StatusTargets, entities.AppointmentStatusCompleted)
	assert.Len(t, view.Actions.StatusTargets, 4)
}

func TestDetailsService_PatientTabs(t *testing.T) {
	provider := new(MockAppointmentProvider)
	details := services.NewDetailsService(newScheduling(provider, NewMockEventBus()))

	view := details.Present(patient, *sampleAppointment("a-1", entities.AppointmentStatusScheduled))

	assert.NotContains(t, view.Tabs, services.TabMedicalNotes)
	for _, b := range view.StatusButtons {
		assert.False(t, b.Enabled)
		assert.NotEmpty(t, b.DisabledReason)
	}
}

func TestDetailsService_Reschedule(t *testing.T) {
	form := services.RescheduleForm{Date: "2026-03-05", Time: "14:00", Reason: "Doctor on call"}

	t.Run("success reconciles the pending entry", func(t *testing.T) {
		provider := new(MockAppointmentProvider)
		details := services.NewDetailsService(newScheduling(provider, NewMockEventBus()))

		current := sampleAppointment("a-1", entities.AppointmentStatusScheduled)
		current.EndTime = at(3, 10, 45)
		moved := sampleAppointment("a-1", entities.AppointmentStatusScheduled)
		moved.StartTime, moved.EndTime = at(5, 14, 0), at(5, 14, 45)

		provider.On("GetByID", mock.Anything, "a-1").Return(current, nil)
		provider.On("CheckConflicts", mock.Anything, mock.Anything).Return(&entities.ConflictResult{}, nil)
		provider.On("Reschedule", mock.Anything, "a-1", mock.MatchedBy(func(r entities.RescheduleRequest) bool {
			return r.StartTime.Equal(at(5, 14, 0)) && r.EndTime.Equal(at(5, 14, 45)) && r.Reason == "Doctor on call"
		})).Run(func(mock.Arguments) {
			// the modal shows the move while the request runs
			view := details.Present(receptionist, *current)
			require.Len(t, view.History, 1)
			assert.True(t, view.History[0].Pending)
		}).Return(moved, nil)

		view, err := details.Reschedule(context.Background(), receptionist, "a-1", form)

		require.NoError(t, err)
		require.Len(t, view.History, 1)
		entry := view.History[0]
		assert.False(t, entry.Pending)
		assert.NotEmpty(t, entry.ID)
		assert.True(t, entry.PreviousStartTime.Equal(at(3, 10, 0)))
		assert.Equal(t, "u-rec", entry.RescheduledBy.ID)

		after := details.Present(receptionist, *current)
		assert.Empty(t, after.History)
	})

	t.Run("failure rolls the pending entry back", func(t *testing.T) {
		provider := new(MockAppointmentProvider)
		details := services.NewDetailsService(newScheduling(provider, NewMockEventBus()))

		current := sampleAppointment("a-1", entities.AppointmentStatusScheduled)
		provider.On("GetByID", mock.Anything, "a-1").Return(current, nil)
		provider.On("CheckConflicts", mock.Anything, mock.Anything).Return(&entities.ConflictResult{}, nil)
		provider.On("Reschedule", mock.Anything, "a-1", mock.Anything).
			Return(nil, apperrors.NewConflictError("the selected time slot is already booked"))

		_, err := details.Reschedule(context.Background(), receptionist, "a-1", form)

		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeConflict))
		assert.Empty(t, details.Present(receptionist, *current).History)
	})

	t.Run("requires date, time and reason", func(t *testing.T) {
		provider := new(MockAppointmentProvider)
		details := services.NewDetailsService(newScheduling(provider, NewMockEventBus()))

		_, err := details.Reschedule(context.Background(), receptionist, "a-1", services.RescheduleForm{Date: "2026-03-05"})

		appErr, ok := apperrors.As(err)
		require.True(t, ok)
		assert.Equal(t, []string{"time", "reason"}, appErr.Fields)
		provider.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
	})

	t.Run("rejects the past", func(t *testing.T) {
		provider := new(MockAppointmentProvider)
		details := services.NewDetailsService(newScheduling(provider, NewMockEventBus()))

		provider.On("GetByID", mock.Anything, "a-1").Return(sampleAppointment("a-1", entities.AppointmentStatusScheduled), nil)

		_, err := details.Reschedule(context.Background(), receptionist, "a-1",
			services.RescheduleForm{Date: "2026-03-01", Time: "10:00", Reason: "moved"})

		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
		provider.AssertNotCalled(t, "Reschedule", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("completed appointments are refused before any entry is added", func(t *testing.T) {
		provider := new(MockAppointmentProvider)
		details := services.NewDetailsService(newScheduling(provider, NewMockEventBus()))

		current := sampleAppointment("a-1", entities.AppointmentStatusCompleted)
		provider.On("GetByID", mock.Anything, "a-1").Return(current, nil)

		_, err := details.Reschedule(context.Background(), admin, "a-1", form)

		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeUnauthorized))
		assert.Empty(t, details.Present(admin, *current).History)
	})
}

func TestReconcileHistory(t *testing.T) {
	local := entities.RescheduleEntry{
		ID:                "local-1",
		PreviousStartTime: at(3, 10, 0),
		PreviousEndTime:   at(3, 10, 30),
		RescheduledAt:     fixedNow,
		Pending:           true,
	}

	t.Run("server record wins", func(t *testing.T) {
		server := []entities.RescheduleEntry{{
			ID:                "srv-1",
			PreviousStartTime: at(3, 10, 0),
			PreviousEndTime:   at(3, 10, 30),
			RescheduledAt:     fixedNow.Add(time.Second),
		}}
		out := services.ReconcileHistory(server, local)
		require.Len(t, out, 1)
		assert.Equal(t, "srv-1", out[0].ID)
	})

	t.Run("local entry is confirmed when the server has none", func(t *testing.T) {
		out := services.ReconcileHistory(nil, local)
		require.Len(t, out, 1)
		assert.Equal(t, "local-1", out[0].ID)
		assert.False(t, out[0].Pending)
	})
}
