package clinicapi

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/zatekoja/clinicdesk/internal/domain/entities"
	"github.com/zatekoja/clinicdesk/internal/domain/rules"
	"github.com/zatekoja/clinicdesk/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/clinicdesk/pkg/errors"
	"github.com/zatekoja/clinicdesk/pkg/timeutil"
)

// defaultSlotLength applies to slots the backend sends as bare "HH:MM" values
const defaultSlotLength = 30 * time.Minute

func appointmentPath(id string) string {
	return "/appointments/" + url.PathEscape(id)
}

func requireID(id, what string) (string, error) {
	normalized, ok := entities.NormalizeID(id)
	if !ok {
		return "", apperrors.NewMissingFieldsError([]string{what})
	}
	return normalized, nil
}

// List returns appointments matching filter. A missing clinic is resolved
// through the ClinicResolver; a 404 from the backend means "no appointments".
func (c *HTTPClient) List(ctx context.Context, filter entities.AppointmentFilter) ([]entities.Appointment, error) {
	if filter.ClinicID.IsZero() && c.resolver != nil {
		clinicID, err := c.resolver.ResolveClinicID(ctx, "")
		if err != nil {
			observability.LoggerFromContext(ctx).Warn().Err(err).Msg("clinic resolution failed; listing without clinic scope")
		} else {
			filter.ClinicID = entities.Ref{ID: clinicID}
		}
	}

	var out appointmentList
	err := c.doJSON(ctx, call{
		operation: "list_appointments",
		action:    "view appointments",
		method:    http.MethodGet,
		path:      "/appointments",
		query:     filterQuery(filter),
	}, &out)
	if apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
		return []entities.Appointment{}, nil
	}
	if err != nil {
		return nil, err
	}
	return c.toAppointments(ctx, out), nil
}

func filterQuery(filter entities.AppointmentFilter) url.Values {
	query := url.Values{}
	if !filter.ClinicID.IsZero() {
		query.Set("clinicId", filter.ClinicID.ID)
	}
	if !filter.DoctorID.IsZero() {
		query.Set("doctorId", filter.DoctorID.ID)
	}
	if !filter.PatientID.IsZero() {
		query.Set("patientId", filter.PatientID.ID)
	}
	if filter.StartDate != nil {
		query.Set("startDate", timeutil.FormatWire(*filter.StartDate))
	}
	if filter.EndDate != nil {
		query.Set("endDate", timeutil.FormatWire(*filter.EndDate))
	}
	for _, status := range filter.Statuses {
		query.Add("status", string(status))
	}
	if filter.Limit > 0 {
		query.Set("limit", itoa(filter.Limit))
	}
	if filter.Page > 0 {
		query.Set("page", itoa(filter.Page))
	}
	if filter.Sort != "" {
		query.Set("sort", filter.Sort)
	}
	return query
}

// toAppointments converts a list, skipping records the backend sent malformed
func (c *HTTPClient) toAppointments(ctx context.Context, list appointmentList) []entities.Appointment {
	out := make([]entities.Appointment, 0, len(list))
	for i := range list {
		a, err := list[i].toEntity(c.location)
		if err != nil {
			observability.LoggerFromContext(ctx).Warn().Err(err).Msg("skipping malformed appointment")
			continue
		}
		out = append(out, *a)
	}
	return out
}

func (c *HTTPClient) single(env appointmentEnvelope) (*entities.Appointment, error) {
	if env.appointment == nil {
		return nil, apperrors.NewServerError("empty response from clinic API", 0, nil)
	}
	a, err := env.appointment.toEntity(c.location)
	if err != nil {
		return nil, apperrors.NewServerError("unexpected appointment from clinic API", 0, err)
	}
	return a, nil
}

// GetByID fetches a single appointment
func (c *HTTPClient) GetByID(ctx context.Context, id string) (*entities.Appointment, error) {
	id, err := requireID(id, "id")
	if err != nil {
		return nil, err
	}
	var env appointmentEnvelope
	if err := c.doJSON(ctx, call{
		operation: "get_appointment",
		action:    "view this appointment",
		method:    http.MethodGet,
		path:      appointmentPath(id),
	}, &env); err != nil {
		return nil, err
	}
	return c.single(env)
}

// Create validates and books a new appointment. A start time in the past is
// logged but not rejected here.
func (c *HTTPClient) Create(ctx context.Context, draft entities.AppointmentDraft) (*entities.Appointment, error) {
	prepared, err := rules.PrepareDraft(draft, c.location, c.now())
	if err != nil {
		return nil, err
	}
	for _, warning := range prepared.Warnings {
		observability.LoggerFromContext(ctx).Warn().
			Str("patient_id", prepared.PatientID).
			Str("doctor_id", prepared.DoctorID).
			Msg(warning)
	}

	var env appointmentEnvelope
	if err := c.doJSON(ctx, call{
		operation: "create_appointment",
		action:    "book appointments",
		method:    http.MethodPost,
		path:      "/appointments",
		body:      newCreateRequest(prepared),
	}, &env); err != nil {
		return nil, err
	}
	return c.single(env)
}

// Update applies a partial update
func (c *HTTPClient) Update(ctx context.Context, id string, patch entities.AppointmentPatch) (*entities.Appointment, error) {
	id, err := requireID(id, "id")
	if err != nil {
		return nil, err
	}
	body, err := c.updateBody(patch)
	if err != nil {
		return nil, err
	}
	return c.put(ctx, "update_appointment", "update this appointment", appointmentPath(id), body)
}

func (c *HTTPClient) updateBody(patch entities.AppointmentPatch) (updateRequest, error) {
	body := updateRequest{
		Reason:         patch.Reason,
		Notes:          patch.Notes,
		ChiefComplaint: patch.ChiefComplaint,
		VitalSigns:     patch.VitalSigns,
		Diagnosis:      patch.Diagnosis,
		MedicalHistory: patch.MedicalHistory,
	}
	if patch.Symptoms != nil {
		body.Symptoms = &patch.Symptoms
	}
	if patch.DoctorID != nil {
		body.DoctorID = &patch.DoctorID.ID
	}
	if patch.ServiceType != nil {
		body.ServiceType = &patch.ServiceType.ID
	}
	if patch.Status != nil {
		status, ok := entities.ParseAppointmentStatus(string(*patch.Status))
		if !ok {
			return body, rules.InvalidField("status", rules.ErrUnknownStatus(*patch.Status))
		}
		s := string(status)
		body.Status = &s
	}

	var start, end time.Time
	if patch.StartTime != nil {
		t, err := patch.StartTime.Resolve(c.location)
		if err != nil {
			return body, rules.InvalidField("startTime", err)
		}
		start = t
		s := timeutil.FormatWire(t)
		body.StartTime = &s
	}
	if patch.EndTime != nil {
		t, err := patch.EndTime.Resolve(c.location)
		if err != nil {
			return body, rules.InvalidField("endTime", err)
		}
		end = t
		s := timeutil.FormatWire(t)
		body.EndTime = &s
	}
	if !start.IsZero() && !end.IsZero() && !end.After(start) {
		return body, apperrors.NewValidationError("end time must be after start time")
	}
	return body, nil
}

func (c *HTTPClient) put(ctx context.Context, operation, action, path string, body any) (*entities.Appointment, error) {
	var env appointmentEnvelope
	if err := c.doJSON(ctx, call{
		operation: operation,
		action:    action,
		method:    http.MethodPut,
		path:      path,
		body:      body,
	}, &env); err != nil {
		return nil, err
	}
	return c.single(env)
}

// Delete removes an appointment
func (c *HTTPClient) Delete(ctx context.Context, id string) error {
	id, err := requireID(id, "id")
	if err != nil {
		return err
	}
	return c.doJSON(ctx, call{
		operation: "delete_appointment",
		action:    "delete this appointment",
		method:    http.MethodDelete,
		path:      appointmentPath(id),
	}, nil)
}

// Reschedule moves an appointment; the backend appends the history entry
func (c *HTTPClient) Reschedule(ctx context.Context, id string, req entities.RescheduleRequest) (*entities.Appointment, error) {
	id, err := requireID(id, "id")
	if err != nil {
		return nil, err
	}
	var missing []string
	if req.StartTime.IsZero() {
		missing = append(missing, "startTime")
	}
	if req.EndTime.IsZero() {
		missing = append(missing, "endTime")
	}
	if len(missing) > 0 {
		return nil, apperrors.NewMissingFieldsError(missing)
	}
	if !req.EndTime.After(req.StartTime) {
		return nil, apperrors.NewValidationError("end time must be after start time")
	}

	return c.put(ctx, "reschedule_appointment", "reschedule this appointment", appointmentPath(id)+"/reschedule", rescheduleRequest{
		StartTime: timeutil.FormatWire(req.StartTime),
		EndTime:   timeutil.FormatWire(req.EndTime),
		Reason:    strings.TrimSpace(req.Reason),
	})
}

// UpdateStatus sets the status through the generic update endpoint
func (c *HTTPClient) UpdateStatus(ctx context.Context, id string, status entities.AppointmentStatus) (*entities.Appointment, error) {
	id, err := requireID(id, "id")
	if err != nil {
		return nil, err
	}
	parsed, ok := entities.ParseAppointmentStatus(string(status))
	if !ok {
		return nil, rules.InvalidField("status", rules.ErrUnknownStatus(status))
	}
	return c.put(ctx, "update_appointment_status", "change the status of this appointment", appointmentPath(id),
		map[string]string{"status": string(parsed)})
}

// UpdateMedicalNotes saves the clinical fields of an appointment
func (c *HTTPClient) UpdateMedicalNotes(ctx context.Context, id string, notes entities.MedicalNotes) (*entities.Appointment, error) {
	id, err := requireID(id, "id")
	if err != nil {
		return nil, err
	}
	body, err := c.updateBody(notes.Patch())
	if err != nil {
		return nil, err
	}
	return c.put(ctx, "update_medical_notes", "edit medical notes", appointmentPath(id), body)
}

// CheckIn marks the patient as arrived
func (c *HTTPClient) CheckIn(ctx context.Context, id string) (*entities.Appointment, error) {
	return c.action(ctx, id, "checkin", "check_in", "check in this patient")
}

// CheckOut marks the visit as finished at the front desk
func (c *HTTPClient) CheckOut(ctx context.Context, id string) (*entities.Appointment, error) {
	return c.action(ctx, id, "checkout", "check_out", "check out this patient")
}

func (c *HTTPClient) action(ctx context.Context, id, segment, operation, action string) (*entities.Appointment, error) {
	id, err := requireID(id, "id")
	if err != nil {
		return nil, err
	}
	var env appointmentEnvelope
	if err := c.doJSON(ctx, call{
		operation: operation,
		action:    action,
		method:    http.MethodPut,
		path:      appointmentPath(id) + "/" + segment,
	}, &env); err != nil {
		return nil, err
	}
	if env.appointment == nil || (env.appointment.MongoID.IsZero() && env.appointment.ID.IsZero()) {
		return c.GetByID(ctx, id)
	}
	return c.single(env)
}

// SendReminder asks the backend to notify the patient
func (c *HTTPClient) SendReminder(ctx context.Context, id string) error {
	id, err := requireID(id, "id")
	if err != nil {
		return err
	}
	return c.doJSON(ctx, call{
		operation: "send_reminder",
		action:    "send reminders",
		method:    http.MethodPost,
		path:      appointmentPath(id) + "/reminder",
	}, nil)
}

// GetAvailableSlots returns the open slots of a doctor on the given day
func (c *HTTPClient) GetAvailableSlots(ctx context.Context, doctorID string, date time.Time) ([]entities.AvailabilitySlot, error) {
	doctorID, err := requireID(doctorID, "doctorId")
	if err != nil {
		return nil, err
	}
	if date.IsZero() {
		return nil, apperrors.NewMissingFieldsError([]string{"date"})
	}
	day := timeutil.StartOfDay(date.In(c.location))

	var out slotList
	if err := c.doJSON(ctx, call{
		operation: "available_slots",
		action:    "view availability",
		method:    http.MethodGet,
		path:      "/appointments/available-slots",
		query: url.Values{
			"doctorId": {doctorID},
			"date":     {timeutil.FormatDate(day)},
		},
	}, &out); err != nil {
		return nil, err
	}
	return out.toSlots(day, defaultSlotLength), nil
}

// CheckConflicts asks whether the doctor or patient is already booked in the range
func (c *HTTPClient) CheckConflicts(ctx context.Context, criteria entities.ConflictCriteria) (*entities.ConflictResult, error) {
	if criteria.DoctorID.IsZero() && criteria.PatientID.IsZero() {
		return nil, apperrors.NewMissingFieldsError([]string{"doctorId"})
	}
	if criteria.StartTime.IsZero() || criteria.EndTime.IsZero() {
		return nil, apperrors.NewMissingFieldsError([]string{"startTime", "endTime"})
	}

	var out conflictResponse
	if err := c.doJSON(ctx, call{
		operation: "check_conflicts",
		action:    "check conflicts",
		method:    http.MethodPost,
		path:      "/appointments/check-conflicts",
		body: conflictRequest{
			DoctorID:             criteria.DoctorID.ID,
			PatientID:            criteria.PatientID.ID,
			StartTime:            timeutil.FormatWire(criteria.StartTime),
			EndTime:              timeutil.FormatWire(criteria.EndTime),
			ExcludeAppointmentID: criteria.ExcludeAppointmentID,
		},
	}, &out); err != nil {
		return nil, err
	}

	result := &entities.ConflictResult{Conflicts: c.toAppointments(ctx, out.Conflicts)}
	result.HasConflicts = out.HasConflicts || len(result.Conflicts) > 0
	return result, nil
}

// GetToday lists today's appointments in the clinic timezone
func (c *HTTPClient) GetToday(ctx context.Context, filter entities.AppointmentFilter) ([]entities.Appointment, error) {
	now := c.now().In(c.location)
	start, end := timeutil.StartOfDay(now), timeutil.EndOfDay(now)
	filter.StartDate, filter.EndDate = &start, &end
	if filter.Sort == "" {
		filter.Sort = "startTime"
	}
	return c.List(ctx, filter)
}

// GetUpcoming lists Scheduled and Confirmed appointments starting from now
func (c *HTTPClient) GetUpcoming(ctx context.Context, limit int) ([]entities.Appointment, error) {
	now := c.now()
	return c.List(ctx, entities.AppointmentFilter{
		StartDate: &now,
		Statuses:  []entities.AppointmentStatus{entities.AppointmentStatusScheduled, entities.AppointmentStatusConfirmed},
		Limit:     limit,
		Sort:      "startTime",
	})
}

// GetPast lists appointments that started before now, most recent first
func (c *HTTPClient) GetPast(ctx context.Context, limit int) ([]entities.Appointment, error) {
	now := c.now()
	return c.List(ctx, entities.AppointmentFilter{
		EndDate: &now,
		Limit:   limit,
		Sort:    "-startTime",
	})
}

// GetByDoctor lists a doctor's appointments
func (c *HTTPClient) GetByDoctor(ctx context.Context, doctorID string, filter entities.AppointmentFilter) ([]entities.Appointment, error) {
	id, err := requireID(doctorID, "doctorId")
	if err != nil {
		return nil, err
	}
	filter.DoctorID = entities.Ref{ID: id}
	return c.List(ctx, filter)
}

// GetByPatient lists a patient's appointments
func (c *HTTPClient) GetByPatient(ctx context.Context, patientID string, filter entities.AppointmentFilter) ([]entities.Appointment, error) {
	id, err := requireID(patientID, "patientId")
	if err != nil {
		return nil, err
	}
	filter.PatientID = entities.Ref{ID: id}
	return c.List(ctx, filter)
}

// GetStats returns aggregate counts for the clinic over [from, to]
func (c *HTTPClient) GetStats(ctx context.Context, clinicID string, from, to time.Time) (*entities.AppointmentStats, error) {
	if clinicID == "" && c.resolver != nil {
		if resolved, err := c.resolver.ResolveClinicID(ctx, ""); err == nil {
			clinicID = resolved
		}
	}
	query := url.Values{}
	if clinicID != "" {
		query.Set("clinicId", clinicID)
	}
	if !from.IsZero() {
		query.Set("startDate", timeutil.FormatWire(from))
	}
	if !to.IsZero() {
		query.Set("endDate", timeutil.FormatWire(to))
	}

	var out statsDTO
	if err := c.doJSON(ctx, call{
		operation: "appointment_stats",
		action:    "view appointment statistics",
		method:    http.MethodGet,
		path:      "/appointments/stats",
		query:     query,
	}, &out); err != nil {
		return nil, err
	}
	return out.toEntity(from, to), nil
}
