package rules

import (
	"fmt"
	"strings"
	"time"

	"github.com/zatekoja/clinicdesk/internal/domain/entities"
	apperrors "github.com/zatekoja/clinicdesk/pkg/errors"
	"github.com/zatekoja/clinicdesk/pkg/timeutil"
)

// PreparedDraft is a booking draft after id normalization and date parsing
type PreparedDraft struct {
	PatientID   string
	DoctorID    string
	ClinicID    string
	ServiceType string
	StartTime   time.Time
	EndTime     time.Time
	Status      entities.AppointmentStatus
	Reason      string
	Draft       entities.AppointmentDraft
	// Warnings are non-fatal findings, e.g. a start time in the past
	Warnings []string
}

// PrepareDraft validates a booking draft without touching the network.
// Every missing required field is reported at once, in a fixed order.
func PrepareDraft(draft entities.AppointmentDraft, loc *time.Location, now time.Time) (*PreparedDraft, error) {
	p := &PreparedDraft{
		PatientID:   draft.PatientID.ID,
		DoctorID:    draft.DoctorID.ID,
		ClinicID:    draft.ClinicID.ID,
		ServiceType: draft.ServiceType.ID,
		Draft:       draft,
	}

	var missing []string
	if p.PatientID == "" {
		missing = append(missing, "patientId")
	}
	if p.DoctorID == "" {
		missing = append(missing, "doctorId")
	}
	if draft.StartTime.IsZero() {
		missing = append(missing, "startTime")
	}
	if draft.EndTime.IsZero() {
		missing = append(missing, "endTime")
	}
	if p.ServiceType == "" {
		missing = append(missing, "serviceType")
	}
	if p.ClinicID == "" {
		missing = append(missing, "clinicId")
	}
	if len(missing) > 0 {
		return nil, apperrors.NewMissingFieldsError(missing)
	}

	start, err := draft.StartTime.Resolve(loc)
	if err != nil {
		return nil, InvalidField("startTime", err)
	}
	end, err := draft.EndTime.Resolve(loc)
	if err != nil {
		return nil, InvalidField("endTime", err)
	}
	if !end.After(start) {
		return nil, apperrors.NewValidationError("end time must be after start time")
	}
	p.StartTime, p.EndTime = start, end

	if start.Before(now) {
		p.Warnings = append(p.Warnings, fmt.Sprintf("start time %s is in the past", timeutil.FormatWire(start)))
	}

	p.Status = draft.Status
	if p.Status == "" {
		p.Status = entities.AppointmentStatusScheduled
	} else if parsed, ok := entities.ParseAppointmentStatus(string(p.Status)); ok {
		p.Status = parsed
	} else {
		return nil, InvalidField("status", ErrUnknownStatus(draft.Status))
	}

	p.Reason = SynthesizeReason(draft)
	return p, nil
}

// SynthesizeReason returns the booking reason: the explicit reason, else the
// notes, else "<service> appointment", else "General appointment".
func SynthesizeReason(draft entities.AppointmentDraft) string {
	if r := strings.TrimSpace(draft.Reason); r != "" {
		return r
	}
	if n := strings.TrimSpace(draft.Notes); n != "" {
		return n
	}
	service := draft.ServiceType.Name
	if service == "" {
		service = draft.ServiceType.ID
	}
	if service = strings.TrimSpace(service); service != "" {
		return service + " appointment"
	}
	return "General appointment"
}

// ErrUnknownStatus describes a status value outside the five known ones
func ErrUnknownStatus(status entities.AppointmentStatus) error {
	return fmt.Errorf("unknown status %q", status)
}

// InvalidField builds a validation error naming a single malformed field
func InvalidField(field string, err error) error {
	return &apperrors.AppError{
		Type:    apperrors.ErrorTypeValidation,
		Message: fmt.Sprintf("invalid %s: %v", field, err),
		Fields:  []string{field},
		Err:     err,
	}
}
