package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/zatekoja/clinicdesk/internal/domain/entities"
	"github.com/zatekoja/clinicdesk/internal/domain/providers"
	"github.com/zatekoja/clinicdesk/internal/domain/rules"
	"github.com/zatekoja/clinicdesk/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/clinicdesk/pkg/errors"
	"github.com/zatekoja/clinicdesk/pkg/timeutil"
)

// ClinicResolver picks the clinic a request operates on
type ClinicResolver interface {
	ResolveClinicID(ctx context.Context, explicit string) (string, error)
}

// ScheduleResult is a booked or moved appointment plus non-fatal findings
type ScheduleResult struct {
	Appointment *entities.Appointment `json:"appointment"`
	Warnings    []string              `json:"warnings,omitempty"`
}

// StatusChange asks to move an appointment to another status. From is the
// status the caller last saw; the change is refused when it is stale.
type StatusChange struct {
	ID   string
	To   entities.AppointmentStatus
	From entities.AppointmentStatus
}

// SchedulingService gates every appointment mutation on the role/status
// rules and the slot policy before anything is sent to the clinic API.
type SchedulingService struct {
	appointments providers.AppointmentProvider
	resolver     ClinicResolver
	policy       rules.SlotPolicy
	events       providers.EventBus
	tracker      *ActionTracker
	metrics      *observability.Metrics
	inflight     singleflight.Group
	now          func() time.Time
}

// SchedulingOption configures a SchedulingService
type SchedulingOption func(*SchedulingService)

// WithEventBus publishes a change event after every successful mutation
func WithEventBus(bus providers.EventBus) SchedulingOption {
	return func(s *SchedulingService) { s.events = bus }
}

// WithActionTracker shares per-appointment action state with the views
func WithActionTracker(tracker *ActionTracker) SchedulingOption {
	return func(s *SchedulingService) { s.tracker = tracker }
}

// WithSchedulingMetrics records mutation and permission metrics
func WithSchedulingMetrics(m *observability.Metrics) SchedulingOption {
	return func(s *SchedulingService) { s.metrics = m }
}

// WithSchedulingClock overrides time.Now
func WithSchedulingClock(now func() time.Time) SchedulingOption {
	return func(s *SchedulingService) { s.now = now }
}

// NewSchedulingService creates a new scheduling service
func NewSchedulingService(
	appointments providers.AppointmentProvider,
	resolver ClinicResolver,
	policy rules.SlotPolicy,
	opts ...SchedulingOption,
) *SchedulingService {
	s := &SchedulingService{
		appointments: appointments,
		resolver:     resolver,
		policy:       policy,
		tracker:      NewActionTracker(0),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Tracker returns the action state shared with the board and details views
func (s *SchedulingService) Tracker() *ActionTracker {
	return s.tracker
}

// Policy returns the slot policy applied to bookings and moves
func (s *SchedulingService) Policy() rules.SlotPolicy {
	return s.policy
}

// Now returns the service clock
func (s *SchedulingService) Now() time.Time {
	return s.now()
}

func (s *SchedulingService) deny(ctx context.Context, session entities.Session, action string, d rules.Decision) error {
	observability.RecordPermissionDenied(ctx, s.metrics, action, string(session.Role))
	observability.LoggerFromContext(ctx).Info().
		Str("action", action).
		Str("reason", d.Reason).
		Msg("action denied")
	return apperrors.NewUnauthorizedError(action, d.Reason)
}

func (s *SchedulingService) resolveClinic(ctx context.Context, explicit string) string {
	if s.resolver == nil {
		return explicit
	}
	id, err := s.resolver.ResolveClinicID(ctx, explicit)
	if err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Msg("clinic resolution failed")
		return explicit
	}
	return id
}

// mutate runs fn once per (action, id, payload) no matter how many callers
// ask concurrently, tracking the row state around it. Callers with different
// payloads never share a request.
func (s *SchedulingService) mutate(ctx context.Context, id, action, payload string, fn func(context.Context) (*entities.Appointment, error)) (*entities.Appointment, error) {
	key := action + ":" + id
	if payload != "" {
		key += ":" + payload
	}
	s.tracker.Begin(id, action)
	v, err, shared := s.inflight.Do(key, func() (any, error) {
		return fn(ctx)
	})
	s.tracker.Finish(id, action, err)
	if shared {
		observability.LoggerFromContext(ctx).Debug().
			Str("appointment_id", id).
			Str("action", action).
			Msg("joined in-flight request")
	}
	if err != nil {
		return nil, err
	}
	observability.RecordMutation(ctx, s.metrics, action)
	appt, _ := v.(*entities.Appointment)
	return appt, nil
}

// digest keys a payload for request sharing
func digest(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		// never shared
		return fmt.Sprintf("%p", &v)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// current fetches the appointment and refuses a caller whose view is stale
func (s *SchedulingService) current(ctx context.Context, session entities.Session, id string, seen entities.AppointmentStatus) (*entities.Appointment, error) {
	appt, err := s.Get(ctx, session, id)
	if err != nil {
		return nil, err
	}
	if status, ok := entities.ParseAppointmentStatus(string(seen)); ok && status != appt.Status {
		return nil, apperrors.NewConflictError(fmt.Sprintf("this appointment is now %s; refresh and try again", appt.Status))
	}
	return appt, nil
}

func (s *SchedulingService) publish(ctx context.Context, session entities.Session, clinicID, appointmentID string, eventType entities.AppointmentEventType, status entities.AppointmentStatus) {
	if s.events == nil {
		return
	}
	if clinicID == "" {
		clinicID = s.resolveClinic(ctx, "")
	}
	event := entities.NewAppointmentEvent(clinicID, appointmentID, eventType)
	event.Status = status
	event.ActorID = session.UserID
	event.Timestamp = s.now()
	if err := s.events.Publish(ctx, providers.GetClinicChannel(clinicID), event); err != nil {
		observability.LoggerFromContext(ctx).Warn().
			Err(err).
			Str("appointment_id", appointmentID).
			Str("event_type", string(eventType)).
			Msg("failed to publish appointment event")
	}
}

// Get fetches one appointment. Patients only see their own.
func (s *SchedulingService) Get(ctx context.Context, session entities.Session, id string) (*entities.Appointment, error) {
	appt, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.Role == entities.RolePatient && appt.PatientID.ID != session.UserID {
		return nil, apperrors.NewNotFoundError("appointment not found")
	}
	return appt, nil
}

// checkConflicts turns a failed check into a warning; only a positive answer blocks
func (s *SchedulingService) checkConflicts(ctx context.Context, criteria entities.ConflictCriteria) ([]string, error) {
	result, err := s.appointments.CheckConflicts(ctx, criteria)
	if err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Msg("conflict check failed, continuing")
		msg := err.Error()
		if appErr, ok := apperrors.As(err); ok {
			msg = appErr.Message
		}
		return []string{"conflict check unavailable: " + msg}, nil
	}
	if result == nil || !result.HasConflicts {
		return nil, nil
	}
	if n := len(result.Conflicts); n > 0 {
		return nil, apperrors.NewConflictError(fmt.Sprintf("the selected time slot conflicts with %d existing appointment(s)", n))
	}
	return nil, apperrors.NewConflictError("the selected time slot is already booked")
}

// Book validates a slot selection, checks for conflicts and creates the appointment
func (s *SchedulingService) Book(ctx context.Context, session entities.Session, draft entities.AppointmentDraft) (*ScheduleResult, error) {
	const action = "book appointments"
	switch {
	case session.Role == entities.RolePatient:
		if !draft.PatientID.IsZero() && draft.PatientID.ID != session.UserID {
			return nil, s.deny(ctx, session, action, rules.Decision{Reason: "patients can only book their own appointments"})
		}
		draft.PatientID = session.Actor()
	case !session.Role.IsStaff():
		return nil, s.deny(ctx, session, action, rules.Decision{Reason: "your role cannot book appointments"})
	}

	if draft.ClinicID.IsZero() {
		draft.ClinicID = entities.Ref{ID: s.resolveClinic(ctx, "")}
	}

	now := s.now()
	prepared, err := rules.PrepareDraft(draft, s.policy.Location, now)
	if err != nil {
		return nil, err
	}
	start, end, err := s.policy.Check(prepared.StartTime, prepared.EndTime, now)
	if err != nil {
		return nil, err
	}
	draft.StartTime, draft.EndTime = entities.At(start), entities.At(end)

	warnings, err := s.checkConflicts(ctx, entities.ConflictCriteria{
		DoctorID:  draft.DoctorID,
		PatientID: draft.PatientID,
		StartTime: start,
		EndTime:   end,
	})
	if err != nil {
		return nil, err
	}

	appt, err := s.appointments.Create(ctx, draft)
	if err != nil {
		return nil, err
	}
	observability.RecordMutation(ctx, s.metrics, "book")
	s.publish(ctx, session, appt.ClinicID.ID, appt.ID, entities.AppointmentEventCreated, appt.Status)

	return &ScheduleResult{Appointment: appt, Warnings: warnings}, nil
}

// ChangeStatus applies a guarded status transition
func (s *SchedulingService) ChangeStatus(ctx context.Context, session entities.Session, change StatusChange) (*entities.Appointment, error) {
	to, ok := entities.ParseAppointmentStatus(string(change.To))
	if !ok {
		return nil, rules.InvalidField("status", rules.ErrUnknownStatus(change.To))
	}
	action := "change status to " + string(to)

	current, err := s.current(ctx, session, change.ID, change.From)
	if err != nil {
		return nil, err
	}
	clinicID := current.ClinicID.ID

	if d := rules.Transition(session.Role, current.Status, to); !d.Allowed {
		return nil, s.deny(ctx, session, action, d)
	}

	appt, err := s.mutate(ctx, change.ID, "status:"+string(to), "", func(ctx context.Context) (*entities.Appointment, error) {
		return s.appointments.UpdateStatus(ctx, change.ID, to)
	})
	if err != nil {
		return nil, err
	}
	if appt != nil && appt.ClinicID.ID != "" {
		clinicID = appt.ClinicID.ID
	}
	s.publish(ctx, session, clinicID, change.ID, entities.AppointmentEventStatusChanged, to)
	return appt, nil
}

// Reschedule moves an appointment. A zero EndTime keeps the current duration.
func (s *SchedulingService) Reschedule(ctx context.Context, session entities.Session, id string, req entities.RescheduleRequest) (*ScheduleResult, error) {
	const action = "reschedule this appointment"
	current, err := s.Get(ctx, session, id)
	if err != nil {
		return nil, err
	}
	if d := rules.Reschedule(session.Role, current.Status); !d.Allowed {
		return nil, s.deny(ctx, session, action, d)
	}

	end := req.EndTime
	if end.IsZero() && !req.StartTime.IsZero() {
		end = req.StartTime.Add(current.Duration())
	}
	start, end, err := s.policy.Check(req.StartTime, end, s.now())
	if err != nil {
		return nil, err
	}
	if start.Equal(current.StartTime) && end.Equal(current.EndTime) {
		return nil, apperrors.NewValidationError("the appointment is already at this time")
	}

	warnings, err := s.checkConflicts(ctx, entities.ConflictCriteria{
		DoctorID:             current.DoctorID,
		PatientID:            current.PatientID,
		StartTime:            start,
		EndTime:              end,
		ExcludeAppointmentID: current.ID,
	})
	if err != nil {
		return nil, err
	}

	moved := entities.RescheduleRequest{StartTime: start, EndTime: end, Reason: strings.TrimSpace(req.Reason)}
	payload := timeutil.FormatWire(start) + "/" + timeutil.FormatWire(end) + "/" + moved.Reason
	appt, err := s.mutate(ctx, id, "reschedule", payload, func(ctx context.Context) (*entities.Appointment, error) {
		return s.appointments.Reschedule(ctx, id, moved)
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, session, current.ClinicID.ID, id, entities.AppointmentEventRescheduled, appt.Status)
	return &ScheduleResult{Appointment: appt, Warnings: warnings}, nil
}

// DragReschedule moves an appointment dropped on the calendar
func (s *SchedulingService) DragReschedule(ctx context.Context, session entities.Session, id string, start, end time.Time) (*ScheduleResult, error) {
	return s.Reschedule(ctx, session, id, entities.RescheduleRequest{
		StartTime: start,
		EndTime:   end,
		Reason:    "Moved on calendar",
	})
}

// Delete removes an appointment. seen is the status the caller last saw;
// a mismatch with the current status is a conflict.
func (s *SchedulingService) Delete(ctx context.Context, session entities.Session, id string, seen entities.AppointmentStatus) error {
	const action = "delete this appointment"
	current, err := s.current(ctx, session, id, seen)
	if err != nil {
		return err
	}
	clinicID := current.ClinicID.ID
	if d := rules.Delete(session.Role, current.Status); !d.Allowed {
		return s.deny(ctx, session, action, d)
	}

	if _, err := s.mutate(ctx, id, "delete", "", func(ctx context.Context) (*entities.Appointment, error) {
		return nil, s.appointments.Delete(ctx, id)
	}); err != nil {
		return err
	}
	s.publish(ctx, session, clinicID, id, entities.AppointmentEventDeleted, "")
	return nil
}

// UpdateNotes replaces the clinical notes of an appointment
func (s *SchedulingService) UpdateNotes(ctx context.Context, session entities.Session, id string, notes entities.MedicalNotes) (*entities.Appointment, error) {
	const action = "edit medical notes"
	current, err := s.Get(ctx, session, id)
	if err != nil {
		return nil, err
	}
	if d := rules.EditNotes(session.Role, current.Status); !d.Allowed {
		return nil, s.deny(ctx, session, action, d)
	}

	appt, err := s.mutate(ctx, id, "notes", digest(notes), func(ctx context.Context) (*entities.Appointment, error) {
		return s.appointments.UpdateMedicalNotes(ctx, id, notes)
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, session, current.ClinicID.ID, id, entities.AppointmentEventNotesUpdated, appt.Status)
	return appt, nil
}

// CheckIn marks the patient as arrived
func (s *SchedulingService) CheckIn(ctx context.Context, session entities.Session, id string) (*entities.Appointment, error) {
	return s.frontDesk(ctx, session, id, "checkin", "check this patient in", s.appointments.CheckIn)
}

// CheckOut marks the visit as finished at the front desk
func (s *SchedulingService) CheckOut(ctx context.Context, session entities.Session, id string) (*entities.Appointment, error) {
	return s.frontDesk(ctx, session, id, "checkout", "check this patient out", s.appointments.CheckOut)
}

func (s *SchedulingService) frontDesk(
	ctx context.Context,
	session entities.Session,
	id, key, action string,
	call func(context.Context, string) (*entities.Appointment, error),
) (*entities.Appointment, error) {
	current, err := s.Get(ctx, session, id)
	if err != nil {
		return nil, err
	}
	if d := rules.CheckIn(session.Role, current.Status); !d.Allowed {
		return nil, s.deny(ctx, session, action, d)
	}

	appt, err := s.mutate(ctx, id, key, "", func(ctx context.Context) (*entities.Appointment, error) {
		return call(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, session, current.ClinicID.ID, id, entities.AppointmentEventStatusChanged, appt.Status)
	return appt, nil
}

// SendReminder asks the clinic API to notify the patient
func (s *SchedulingService) SendReminder(ctx context.Context, session entities.Session, id string) error {
	const action = "send a reminder"
	current, err := s.Get(ctx, session, id)
	if err != nil {
		return err
	}
	if d := rules.SendReminder(session.Role, current.Status); !d.Allowed {
		return s.deny(ctx, session, action, d)
	}
	_, err = s.mutate(ctx, id, "reminder", "", func(ctx context.Context) (*entities.Appointment, error) {
		return current, s.appointments.SendReminder(ctx, id)
	})
	return err
}

// AvailableSlots lists bookable slots of a doctor on one day
func (s *SchedulingService) AvailableSlots(ctx context.Context, doctorID string, date time.Time) ([]entities.AvailabilitySlot, error) {
	return s.appointments.GetAvailableSlots(ctx, doctorID, date)
}

// CheckConflicts asks the clinic API whether a range is already taken
func (s *SchedulingService) CheckConflicts(ctx context.Context, criteria entities.ConflictCriteria) (*entities.ConflictResult, error) {
	if criteria.StartTime.IsZero() || criteria.EndTime.IsZero() {
		var missing []string
		if criteria.StartTime.IsZero() {
			missing = append(missing, "startTime")
		}
		if criteria.EndTime.IsZero() {
			missing = append(missing, "endTime")
		}
		return nil, apperrors.NewMissingFieldsError(missing)
	}
	if !criteria.EndTime.After(criteria.StartTime) {
		return nil, apperrors.NewValidationError("end time must be after start time")
	}
	return s.appointments.CheckConflicts(ctx, criteria)
}

// Stats returns the aggregate breakdown for a clinic, defaulting to the caller's
func (s *SchedulingService) Stats(ctx context.Context, clinicID string, from, to time.Time) (*entities.AppointmentStats, error) {
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return nil, apperrors.NewValidationError("the end of the range must not be before its start")
	}
	return s.appointments.GetStats(ctx, s.resolveClinic(ctx, clinicID), from, to)
}
