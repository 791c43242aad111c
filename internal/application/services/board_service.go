package services

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/zatekoja/clinicdesk/internal/domain/entities"
	"github.com/zatekoja/clinicdesk/internal/domain/providers"
	"github.com/zatekoja/clinicdesk/internal/domain/rules"
	apperrors "github.com/zatekoja/clinicdesk/pkg/errors"
	"github.com/zatekoja/clinicdesk/pkg/timeutil"
)

// SortKey is a sortable list column
type SortKey string

const (
	SortByDate    SortKey = "date"
	SortByPatient SortKey = "patient"
	SortByDoctor  SortKey = "doctor"
	SortByService SortKey = "service"
	SortByStatus  SortKey = "status"
)

// ParseSortKey accepts a column name case-insensitively
func ParseSortKey(s string) (SortKey, bool) {
	switch key := SortKey(strings.ToLower(strings.TrimSpace(s))); key {
	case SortByDate, SortByPatient, SortByDoctor, SortByService, SortByStatus:
		return key, true
	}
	return "", false
}

// SortDirection is the tri-state of a sortable column
type SortDirection string

const (
	SortNone SortDirection = ""
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// SortState is the active list sort; a zero value keeps server order
type SortState struct {
	Key       SortKey       `json:"key,omitempty"`
	Direction SortDirection `json:"direction,omitempty"`
}

// Toggle cycles a column through unsorted, ascending and descending.
// Clicking another column starts it ascending.
func (s SortState) Toggle(key SortKey) SortState {
	if s.Key != key || s.Direction == SortNone {
		return SortState{Key: key, Direction: SortAsc}
	}
	if s.Direction == SortAsc {
		return SortState{Key: key, Direction: SortDesc}
	}
	return SortState{}
}

// Active reports whether the state sorts anything
func (s SortState) Active() bool {
	return s.Key != "" && s.Direction != SortNone
}

// BoardQuery narrows the appointment list
type BoardQuery struct {
	DoctorID  string
	PatientID string
	Statuses  []entities.AppointmentStatus
	From      time.Time
	To        time.Time
	Sort      SortState
}

// RowActions is what a row may offer to the current user
type RowActions struct {
	StatusTargets            []entities.AppointmentStatus `json:"statusTargets"`
	CanReschedule            bool                         `json:"canReschedule"`
	RescheduleDisabledReason string                       `json:"rescheduleDisabledReason,omitempty"`
	CanDelete                bool                         `json:"canDelete"`
	DeleteDisabledReason     string                       `json:"deleteDisabledReason,omitempty"`
	CanEditNotes             bool                         `json:"canEditNotes"`
	CanCheckIn               bool                         `json:"canCheckIn"`
	CanSendReminder          bool                         `json:"canSendReminder"`
}

// BoardRow is one appointment in the list view
type BoardRow struct {
	Appointment entities.Appointment `json:"appointment"`
	TimeLabel   string               `json:"timeLabel"`
	Actions     RowActions           `json:"actions"`
	State       ActionState          `json:"state"`
}

// Board is the list view
type Board struct {
	Rows  []BoardRow `json:"rows"`
	Sort  SortState  `json:"sort"`
	Total int        `json:"total"`
}

// CalendarView is the span shown by the calendar
type CalendarView string

const (
	CalendarDay   CalendarView = "day"
	CalendarWeek  CalendarView = "week"
	CalendarMonth CalendarView = "month"
)

// CalendarEvent is one appointment block on the calendar
type CalendarEvent struct {
	ID        string                     `json:"id"`
	Title     string                     `json:"title"`
	Start     time.Time                  `json:"start"`
	End       time.Time                  `json:"end"`
	Status    entities.AppointmentStatus `json:"status"`
	Draggable bool                       `json:"draggable"`
	State     ActionState                `json:"state"`
}

// Calendar is the calendar view of one range
type Calendar struct {
	View   CalendarView    `json:"view"`
	From   time.Time       `json:"from"`
	To     time.Time       `json:"to"`
	Events []CalendarEvent `json:"events"`
}

// SlotSelection is a validated calendar selection ready to prefill a booking form
type SlotSelection struct {
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
	Label     string    `json:"label"`
}

// BoardService builds the calendar and list views
type BoardService struct {
	appointments providers.AppointmentProvider
	scheduling   *SchedulingService
}

// NewBoardService creates a new board service
func NewBoardService(appointments providers.AppointmentProvider, scheduling *SchedulingService) *BoardService {
	return &BoardService{
		appointments: appointments,
		scheduling:   scheduling,
	}
}

// Load fetches appointments, applies the doctor and status filters, sorts
// them and attaches the actions the user may take on each row.
func (s *BoardService) Load(ctx context.Context, session entities.Session, query BoardQuery) (*Board, error) {
	appts, err := s.fetch(ctx, session, query)
	if err != nil {
		return nil, err
	}

	SortAppointments(appts, query.Sort)

	rows := make([]BoardRow, 0, len(appts))
	for _, appt := range appts {
		rows = append(rows, BoardRow{
			Appointment: appt,
			TimeLabel:   timeutil.FormatRange(appt.StartTime, appt.EndTime),
			Actions:     ActionsFor(session.Role, appt.Status),
			State:       s.scheduling.Tracker().State(appt.ID),
		})
	}
	return &Board{Rows: rows, Sort: query.Sort, Total: len(rows)}, nil
}

func (s *BoardService) fetch(ctx context.Context, session entities.Session, query BoardQuery) ([]entities.Appointment, error) {
	if !query.From.IsZero() && !query.To.IsZero() && query.To.Before(query.From) {
		return nil, apperrors.NewValidationError("the end of the range must not be before its start")
	}

	filter := entities.AppointmentFilter{
		PatientID: entities.Ref{ID: strings.TrimSpace(query.PatientID)},
		Sort:      "startTime",
	}
	if session.Role == entities.RolePatient {
		filter.PatientID = session.Actor()
	}
	if !query.From.IsZero() {
		from := query.From
		filter.StartDate = &from
	}
	if !query.To.IsZero() {
		to := query.To
		filter.EndDate = &to
	}

	appts, err := s.appointments.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return FilterAppointments(appts, query.DoctorID, query.Statuses), nil
}

// FilterAppointments keeps rows matching the doctor and any of the statuses.
// Empty criteria match everything.
func FilterAppointments(appts []entities.Appointment, doctorID string, statuses []entities.AppointmentStatus) []entities.Appointment {
	doctorID = strings.TrimSpace(doctorID)
	out := appts[:0:0]
	for _, appt := range appts {
		if doctorID != "" && appt.DoctorID.ID != doctorID {
			continue
		}
		if len(statuses) > 0 && !slices.Contains(statuses, appt.Status) {
			continue
		}
		out = append(out, appt)
	}
	return out
}

func refLabel(r entities.Ref) string {
	return strings.ToLower(r.Display())
}

func statusRank(s entities.AppointmentStatus) int {
	if i := slices.Index(entities.AllAppointmentStatuses, s); i >= 0 {
		return i
	}
	return len(entities.AllAppointmentStatuses)
}

// SortAppointments sorts in place. Equal rows keep their relative order.
func SortAppointments(appts []entities.Appointment, state SortState) {
	if !state.Active() {
		return
	}
	var compare func(a, b entities.Appointment) int
	switch state.Key {
	case SortByDate:
		compare = func(a, b entities.Appointment) int { return a.StartTime.Compare(b.StartTime) }
	case SortByPatient:
		compare = func(a, b entities.Appointment) int { return cmp.Compare(refLabel(a.PatientID), refLabel(b.PatientID)) }
	case SortByDoctor:
		compare = func(a, b entities.Appointment) int { return cmp.Compare(refLabel(a.DoctorID), refLabel(b.DoctorID)) }
	case SortByService:
		compare = func(a, b entities.Appointment) int { return cmp.Compare(refLabel(a.ServiceType), refLabel(b.ServiceType)) }
	case SortByStatus:
		compare = func(a, b entities.Appointment) int { return cmp.Compare(statusRank(a.Status), statusRank(b.Status)) }
	default:
		return
	}
	if state.Direction == SortDesc {
		asc := compare
		compare = func(a, b entities.Appointment) int { return asc(b, a) }
	}
	slices.SortStableFunc(appts, compare)
}

// ActionsFor computes the row actions of role on an appointment in status.
// The current status is never offered as a target.
func ActionsFor(role entities.Role, status entities.AppointmentStatus) RowActions {
	targets := []entities.AppointmentStatus{}
	for _, to := range rules.AllowedTargets(role, status) {
		if to != status {
			targets = append(targets, to)
		}
	}
	reschedule := rules.Reschedule(role, status)
	del := rules.Delete(role, status)
	return RowActions{
		StatusTargets:            targets,
		CanReschedule:            reschedule.Allowed,
		RescheduleDisabledReason: reschedule.Reason,
		CanDelete:                del.Allowed,
		DeleteDisabledReason:     del.Reason,
		CanEditNotes:             rules.CanEditNotes(role, status),
		CanCheckIn:               rules.CanCheckIn(role, status),
		CanSendReminder:          rules.SendReminder(role, status).Allowed,
	}
}

// ParseCalendarView accepts day, week or month; empty means week
func ParseCalendarView(s string) (CalendarView, bool) {
	switch v := CalendarView(strings.ToLower(strings.TrimSpace(s))); v {
	case CalendarDay, CalendarWeek, CalendarMonth:
		return v, true
	case "":
		return CalendarWeek, true
	}
	return "", false
}

// CalendarRange returns the first and last instant shown by view around
// anchor, in anchor's location. Weeks start on Sunday.
func CalendarRange(view CalendarView, anchor time.Time) (time.Time, time.Time, error) {
	day := timeutil.StartOfDay(anchor)
	switch view {
	case CalendarDay:
		return day, timeutil.EndOfDay(day), nil
	case CalendarWeek:
		start := day.AddDate(0, 0, -int(day.Weekday()))
		return start, timeutil.EndOfDay(start.AddDate(0, 0, 6)), nil
	case CalendarMonth:
		start := time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, day.Location())
		return start, start.AddDate(0, 1, 0).Add(-time.Nanosecond), nil
	}
	return time.Time{}, time.Time{}, apperrors.NewValidationError(fmt.Sprintf("unknown calendar view %q", view))
}

func eventTitle(appt entities.Appointment) string {
	who := appt.PatientID.Name
	if who == "" {
		who = appt.PatientID.ID
	}
	what := appt.ServiceType.Name
	if what == "" {
		what = appt.ServiceType.ID
	}
	switch {
	case who != "" && what != "":
		return who + " - " + what
	case who != "":
		return who
	case what != "":
		return what
	}
	return appt.Reason
}

// Calendar loads the appointments shown by view around anchor
func (s *BoardService) Calendar(ctx context.Context, session entities.Session, view CalendarView, anchor time.Time, doctorID string) (*Calendar, error) {
	if anchor.IsZero() {
		anchor = s.scheduling.Now()
	}
	if loc := s.scheduling.Policy().Location; loc != nil {
		anchor = anchor.In(loc)
	}
	from, to, err := CalendarRange(view, anchor)
	if err != nil {
		return nil, err
	}

	appts, err := s.fetch(ctx, session, BoardQuery{DoctorID: doctorID, From: from, To: to})
	if err != nil {
		return nil, err
	}
	SortAppointments(appts, SortState{Key: SortByDate, Direction: SortAsc})

	events := make([]CalendarEvent, 0, len(appts))
	for _, appt := range appts {
		events = append(events, CalendarEvent{
			ID:        appt.ID,
			Title:     eventTitle(appt),
			Start:     appt.StartTime,
			End:       appt.EndTime,
			Status:    appt.Status,
			Draggable: rules.CanReschedule(session.Role, appt.Status),
			State:     s.scheduling.Tracker().State(appt.ID),
		})
	}
	return &Calendar{View: view, From: from, To: to, Events: events}, nil
}

// SelectSlot validates a calendar selection against business hours and the clock
func (s *BoardService) SelectSlot(start, end time.Time) (*SlotSelection, error) {
	start, end, err := s.scheduling.Policy().Check(start, end, s.scheduling.Now())
	if err != nil {
		return nil, err
	}
	return &SlotSelection{
		StartTime: start,
		EndTime:   end,
		Label:     timeutil.FormatRange(start, end),
	}, nil
}
