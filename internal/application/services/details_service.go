package services

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/zatekoja/clinicdesk/internal/domain/entities"
	"github.com/zatekoja/clinicdesk/internal/domain/rules"
	apperrors "github.com/zatekoja/clinicdesk/pkg/errors"
	"github.com/zatekoja/clinicdesk/pkg/timeutil"
)

// DetailsTab is a tab of the appointment modal
type DetailsTab string

const (
	TabDetails      DetailsTab = "details"
	TabMedicalNotes DetailsTab = "medical_notes"
	TabHistory      DetailsTab = "history"
	TabActions      DetailsTab = "actions"
)

// StatusButton is one status control of the modal. Buttons the user may not
// press are disabled with a reason, never hidden.
type StatusButton struct {
	Status         entities.AppointmentStatus `json:"status"`
	Current        bool                       `json:"current"`
	Enabled        bool                       `json:"enabled"`
	DisabledReason string                     `json:"disabledReason,omitempty"`
}

// DetailsView is the appointment modal
type DetailsView struct {
	Appointment           entities.Appointment       `json:"appointment"`
	TimeLabel             string                     `json:"timeLabel"`
	Tabs                  []DetailsTab               `json:"tabs"`
	StatusButtons         []StatusButton             `json:"statusButtons"`
	Actions               RowActions                 `json:"actions"`
	NotesDisabledReason   string                     `json:"notesDisabledReason,omitempty"`
	CheckInDisabledReason string                     `json:"checkInDisabledReason,omitempty"`
	History               []entities.RescheduleEntry `json:"history"`
	State                 ActionState                `json:"state"`
	Warnings              []string                   `json:"warnings,omitempty"`
}

// RescheduleForm is the modal's reschedule sub-form
type RescheduleForm struct {
	Date   string `json:"date"`
	Time   string `json:"time"`
	Reason string `json:"reason"`
}

// DetailsService builds the appointment modal and runs its reschedule flow
type DetailsService struct {
	scheduling *SchedulingService

	mu      sync.RWMutex
	pending map[string][]entities.RescheduleEntry
}

// NewDetailsService creates a new details service
func NewDetailsService(scheduling *SchedulingService) *DetailsService {
	return &DetailsService{
		scheduling: scheduling,
		pending:    make(map[string][]entities.RescheduleEntry),
	}
}

// View fetches an appointment and builds its modal
func (s *DetailsService) View(ctx context.Context, session entities.Session, id string) (*DetailsView, error) {
	appt, err := s.scheduling.Get(ctx, session, id)
	if err != nil {
		return nil, err
	}
	return s.Present(session, *appt), nil
}

// Present builds the modal for an appointment the caller already holds
func (s *DetailsService) Present(session entities.Session, appt entities.Appointment) *DetailsView {
	tabs := []DetailsTab{TabDetails, TabMedicalNotes, TabHistory, TabActions}
	if session.Role == entities.RolePatient {
		tabs = []DetailsTab{TabDetails, TabHistory, TabActions}
	}

	buttons := make([]StatusButton, 0, len(entities.AllAppointmentStatuses))
	for _, status := range entities.AllAppointmentStatuses {
		d := rules.Transition(session.Role, appt.Status, status)
		current := status == appt.Status
		if current && d.Allowed {
			d = rules.Decision{Reason: "appointment is already " + string(status)}
		}
		buttons = append(buttons, StatusButton{
			Status:         status,
			Current:        current,
			Enabled:        d.Allowed,
			DisabledReason: d.Reason,
		})
	}

	return &DetailsView{
		Appointment:           appt,
		TimeLabel:             timeutil.FormatRange(appt.StartTime, appt.EndTime),
		Tabs:                  tabs,
		StatusButtons:         buttons,
		Actions:               ActionsFor(session.Role, appt.Status),
		NotesDisabledReason:   rules.EditNotes(session.Role, appt.Status).Reason,
		CheckInDisabledReason: rules.CheckIn(session.Role, appt.Status).Reason,
		History:               s.history(appt),
		State:                 s.scheduling.Tracker().State(appt.ID),
	}
}

// history merges the server trail with local pending entries, newest first
func (s *DetailsService) history(appt entities.Appointment) []entities.RescheduleEntry {
	s.mu.RLock()
	pending := s.pending[appt.ID]
	out := make([]entities.RescheduleEntry, 0, len(appt.RescheduleHistory)+len(pending))
	out = append(out, appt.RescheduleHistory...)
	out = append(out, pending...)
	s.mu.RUnlock()

	slices.SortStableFunc(out, func(a, b entities.RescheduleEntry) int {
		return b.RescheduledAt.Compare(a.RescheduledAt)
	})
	return out
}

func (s *DetailsService) addPending(id string, entry entities.RescheduleEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[id] = append(s.pending[id], entry)
}

func (s *DetailsService) dropPending(id, entryID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := slices.DeleteFunc(s.pending[id], func(e entities.RescheduleEntry) bool {
		return e.ID == entryID
	})
	if len(kept) == 0 {
		delete(s.pending, id)
		return
	}
	s.pending[id] = kept
}

// Reschedule moves the appointment to the form's date and time, keeping its
// duration. A pending history entry is visible while the request runs; it is
// replaced by the server record on success and removed on failure.
func (s *DetailsService) Reschedule(ctx context.Context, session entities.Session, id string, form RescheduleForm) (*DetailsView, error) {
	var missing []string
	if strings.TrimSpace(form.Date) == "" {
		missing = append(missing, "date")
	}
	if strings.TrimSpace(form.Time) == "" {
		missing = append(missing, "time")
	}
	if strings.TrimSpace(form.Reason) == "" {
		missing = append(missing, "reason")
	}
	if len(missing) > 0 {
		return nil, apperrors.NewMissingFieldsError(missing)
	}

	current, err := s.scheduling.Get(ctx, session, id)
	if err != nil {
		return nil, err
	}
	if d := rules.Reschedule(session.Role, current.Status); !d.Allowed {
		return nil, s.scheduling.deny(ctx, session, "reschedule this appointment", d)
	}

	start, err := timeutil.CombineDateTime(form.Date, form.Time, s.scheduling.Policy().Location)
	if err != nil {
		return nil, rules.InvalidField("date", err)
	}
	now := s.scheduling.Now()
	if start.Before(now) {
		return nil, apperrors.NewValidationError("cannot reschedule an appointment into the past")
	}

	entry := entities.RescheduleEntry{
		ID:                uuid.NewString(),
		PreviousStartTime: current.StartTime,
		PreviousEndTime:   current.EndTime,
		Reason:            strings.TrimSpace(form.Reason),
		RescheduledBy:     session.Actor(),
		RescheduledAt:     now,
		Pending:           true,
	}
	s.addPending(id, entry)

	result, err := s.scheduling.Reschedule(ctx, session, id, entities.RescheduleRequest{
		StartTime: start,
		EndTime:   start.Add(current.Duration()),
		Reason:    entry.Reason,
	})
	s.dropPending(id, entry.ID)
	if err != nil {
		return nil, err
	}

	appt := *result.Appointment
	appt.RescheduleHistory = ReconcileHistory(appt.RescheduleHistory, entry)
	view := s.Present(session, appt)
	view.Warnings = result.Warnings
	return view, nil
}

// ReconcileHistory settles a local pending entry against the server trail.
// When the server already recorded the move its entry wins; otherwise the
// local entry is kept as confirmed.
func ReconcileHistory(server []entities.RescheduleEntry, local entities.RescheduleEntry) []entities.RescheduleEntry {
	for _, e := range server {
		if e.PreviousStartTime.Equal(local.PreviousStartTime) && e.PreviousEndTime.Equal(local.PreviousEndTime) {
			return server
		}
	}
	local.Pending = false
	out := make([]entities.RescheduleEntry, 0, len(server)+1)
	out = append(out, server...)
	return append(out, local)
}
