package rules

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/clinicdesk/internal/domain/entities"
	apperrors "github.com/zatekoja/clinicdesk/pkg/errors"
)

var fixedNow = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func TestPrepareDraft_MissingFieldOrder(t *testing.T) {
	_, err := PrepareDraft(entities.AppointmentDraft{}, time.UTC, fixedNow)

	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, []string{"patientId", "doctorId", "startTime", "endTime", "serviceType", "clinicId"}, appErr.Fields)
}

func TestPrepareDraft_OffsetlessTimesUseLocation(t *testing.T) {
	lagos := time.FixedZone("WAT", 3600)
	p, err := PrepareDraft(entities.AppointmentDraft{
		PatientID:   entities.Ref{ID: "p-1"},
		DoctorID:    entities.Ref{ID: "d-1"},
		ClinicID:    entities.Ref{ID: "c-1"},
		ServiceType: entities.Ref{ID: "Consultation"},
		StartTime:   entities.InstantOf("2026-03-03T10:00"),
		EndTime:     entities.InstantOf("2026-03-03T10:30"),
		Status:      "confirmed",
	}, lagos, fixedNow)
	require.NoError(t, err)

	assert.Equal(t, time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC), p.StartTime.UTC())
	assert.Equal(t, entities.AppointmentStatusConfirmed, p.Status)
	assert.Empty(t, p.Warnings)
}

func TestPrepareDraft_PastStartWarns(t *testing.T) {
	p, err := PrepareDraft(entities.AppointmentDraft{
		PatientID:   entities.Ref{ID: "p-1"},
		DoctorID:    entities.Ref{ID: "d-1"},
		ClinicID:    entities.Ref{ID: "c-1"},
		ServiceType: entities.Ref{ID: "Consultation"},
		StartTime:   entities.At(fixedNow.Add(-time.Hour)),
		EndTime:     entities.At(fixedNow),
	}, time.UTC, fixedNow)
	require.NoError(t, err)
	assert.Len(t, p.Warnings, 1)
}

func TestSynthesizeReason(t *testing.T) {
	tests := []struct {
		name  string
		draft entities.AppointmentDraft
		want  string
	}{
		{"explicit reason", entities.AppointmentDraft{Reason: " fever ", Notes: "n"}, "fever"},
		{"notes", entities.AppointmentDraft{Notes: "follow up on labs"}, "follow up on labs"},
		{"service name", entities.AppointmentDraft{ServiceType: entities.Ref{ID: "s-1", Name: "Dental"}}, "Dental appointment"},
		{"service id", entities.AppointmentDraft{ServiceType: entities.Ref{ID: "Consultation"}}, "Consultation appointment"},
		{"nothing", entities.AppointmentDraft{}, "General appointment"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SynthesizeReason(tt.draft))
		})
	}
}
