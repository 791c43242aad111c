package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/zatekoja/clinicdesk/internal/application/services"
	"github.com/zatekoja/clinicdesk/internal/domain/entities"
	"github.com/zatekoja/clinicdesk/internal/domain/rules"
	apperrors "github.com/zatekoja/clinicdesk/pkg/errors"
	"github.com/zatekoja/clinicdesk/pkg/timeutil"
)

// SchedulingService defines the guarded appointment mutations
type SchedulingService interface {
	Book(ctx context.Context, session entities.Session, draft entities.AppointmentDraft) (*services.ScheduleResult, error)
	ChangeStatus(ctx context.Context, session entities.Session, change services.StatusChange) (*entities.Appointment, error)
	DragReschedule(ctx context.Context, session entities.Session, id string, start, end time.Time) (*services.ScheduleResult, error)
	Delete(ctx context.Context, session entities.Session, id string, seen entities.AppointmentStatus) error
	UpdateNotes(ctx context.Context, session entities.Session, id string, notes entities.MedicalNotes) (*entities.Appointment, error)
	CheckIn(ctx context.Context, session entities.Session, id string) (*entities.Appointment, error)
	CheckOut(ctx context.Context, session entities.Session, id string) (*entities.Appointment, error)
	SendReminder(ctx context.Context, session entities.Session, id string) error
	AvailableSlots(ctx context.Context, doctorID string, date time.Time) ([]entities.AvailabilitySlot, error)
	CheckConflicts(ctx context.Context, criteria entities.ConflictCriteria) (*entities.ConflictResult, error)
	Stats(ctx context.Context, clinicID string, from, to time.Time) (*entities.AppointmentStats, error)
}

// BoardService defines the list and calendar views
type BoardService interface {
	Load(ctx context.Context, session entities.Session, query services.BoardQuery) (*services.Board, error)
	Calendar(ctx context.Context, session entities.Session, view services.CalendarView, anchor time.Time, doctorID string) (*services.Calendar, error)
	SelectSlot(start, end time.Time) (*services.SlotSelection, error)
}

// DetailsService defines the appointment details modal
type DetailsService interface {
	View(ctx context.Context, session entities.Session, id string) (*services.DetailsView, error)
	Reschedule(ctx context.Context, session entities.Session, id string, form services.RescheduleForm) (*services.DetailsView, error)
}

// AppointmentHandler handles appointment requests
type AppointmentHandler struct {
	scheduling SchedulingService
	board      BoardService
	details    DetailsService
	location   *time.Location
}

// NewAppointmentHandler creates a new appointment handler. Times without an
// offset are read in loc.
func NewAppointmentHandler(scheduling SchedulingService, board BoardService, details DetailsService, loc *time.Location) *AppointmentHandler {
	if loc == nil {
		loc = time.Local
	}
	return &AppointmentHandler{
		scheduling: scheduling,
		board:      board,
		details:    details,
		location:   loc,
	}
}

func (h *AppointmentHandler) pathID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		respondWithError(w, http.StatusBadRequest, "appointment ID is required")
		return "", false
	}
	return id, true
}

// ListAppointments handles GET /api/appointments
func (h *AppointmentHandler) ListAppointments(w http.ResponseWriter, r *http.Request) {
	session, ok := sessionFrom(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()

	query := services.BoardQuery{
		DoctorID:  q.Get("doctorId"),
		PatientID: q.Get("patientId"),
	}

	var err error
	if query.Statuses, err = queryStatuses(r); err != nil {
		respondWithAppError(w, r, err)
		return
	}
	if query.From, err = queryTime(r, "from", h.location); err != nil {
		respondWithAppError(w, r, err)
		return
	}
	if query.To, err = queryTime(r, "to", h.location); err != nil {
		respondWithAppError(w, r, err)
		return
	}

	if sortParam := q.Get("sort"); sortParam != "" {
		key, ok := services.ParseSortKey(sortParam)
		if !ok {
			respondWithError(w, http.StatusBadRequest, "invalid sort parameter")
			return
		}
		query.Sort = services.SortState{Key: key, Direction: services.SortAsc}
		if strings.EqualFold(q.Get("dir"), string(services.SortDesc)) {
			query.Sort.Direction = services.SortDesc
		}
	}

	board, err := h.board.Load(r.Context(), session, query)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, board)
}

// GetCalendar handles GET /api/appointments/calendar?view=week&date=2026-03-04
func (h *AppointmentHandler) GetCalendar(w http.ResponseWriter, r *http.Request) {
	session, ok := sessionFrom(w, r)
	if !ok {
		return
	}

	view, ok := services.ParseCalendarView(r.URL.Query().Get("view"))
	if !ok {
		respondWithError(w, http.StatusBadRequest, "view must be day, week or month")
		return
	}
	anchor, err := queryTime(r, "date", h.location)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	if anchor.IsZero() {
		anchor = time.Now().In(h.location)
	}

	calendar, err := h.board.Calendar(r.Context(), session, view, anchor, r.URL.Query().Get("doctorId"))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, calendar)
}

type slotRequest struct {
	StartTime entities.Instant `json:"startTime"`
	EndTime   entities.Instant `json:"endTime"`
}

// SelectSlot handles POST /api/appointments/select-slot
func (h *AppointmentHandler) SelectSlot(w http.ResponseWriter, r *http.Request) {
	var req slotRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	start, end, err := h.resolveRange(req.StartTime, req.EndTime)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	selection, err := h.board.SelectSlot(start, end)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, selection)
}

// resolveRange parses a start and an optional end
func (h *AppointmentHandler) resolveRange(startIn, endIn entities.Instant) (time.Time, time.Time, error) {
	if startIn.IsZero() {
		return time.Time{}, time.Time{}, apperrors.NewMissingFieldsError([]string{"startTime"})
	}
	start, err := startIn.Resolve(h.location)
	if err != nil {
		return time.Time{}, time.Time{}, rules.InvalidField("startTime", err)
	}
	var end time.Time
	if !endIn.IsZero() {
		if end, err = endIn.Resolve(h.location); err != nil {
			return time.Time{}, time.Time{}, rules.InvalidField("endTime", err)
		}
	}
	return start, end, nil
}

// GetAvailableSlots handles GET /api/appointments/slots?doctorId=X&date=2026-03-04
func (h *AppointmentHandler) GetAvailableSlots(w http.ResponseWriter, r *http.Request) {
	doctorID := strings.TrimSpace(r.URL.Query().Get("doctorId"))
	if doctorID == "" {
		respondWithError(w, http.StatusBadRequest, "doctorId query parameter is required")
		return
	}
	date, err := queryTime(r, "date", h.location)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	if date.IsZero() {
		respondWithError(w, http.StatusBadRequest, "date query parameter is required")
		return
	}

	slots, err := h.scheduling.AvailableSlots(r.Context(), doctorID, timeutil.StartOfDay(date))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"slots": slots,
		"count": len(slots),
	})
}

type conflictRequest struct {
	DoctorID             entities.Ref     `json:"doctorId"`
	PatientID            entities.Ref     `json:"patientId"`
	StartTime            entities.Instant `json:"startTime"`
	EndTime              entities.Instant `json:"endTime"`
	ExcludeAppointmentID string           `json:"excludeAppointmentId,omitempty"`
}

// CheckConflicts handles POST /api/appointments/conflicts
func (h *AppointmentHandler) CheckConflicts(w http.ResponseWriter, r *http.Request) {
	var req conflictRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	start, end, err := h.resolveRange(req.StartTime, req.EndTime)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	result, err := h.scheduling.CheckConflicts(r.Context(), entities.ConflictCriteria{
		DoctorID:             req.DoctorID,
		PatientID:            req.PatientID,
		StartTime:            start,
		EndTime:              end,
		ExcludeAppointmentID: req.ExcludeAppointmentID,
	})
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}

// GetStats handles GET /api/appointments/stats
func (h *AppointmentHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	session, ok := sessionFrom(w, r)
	if !ok {
		return
	}
	if !session.Role.IsStaff() {
		respondWithError(w, http.StatusForbidden, "only clinic staff can view statistics")
		return
	}

	from, err := queryTime(r, "from", h.location)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	to, err := queryTime(r, "to", h.location)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	stats, err := h.scheduling.Stats(r.Context(), r.URL.Query().Get("clinicId"), from, to)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, stats)
}

// GetAppointment handles GET /api/appointments/{id}
func (h *AppointmentHandler) GetAppointment(w http.ResponseWriter, r *http.Request) {
	session, ok := sessionFrom(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	view, err := h.details.View(r.Context(), session, id)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, view)
}

// BookAppointment handles POST /api/appointments
func (h *AppointmentHandler) BookAppointment(w http.ResponseWriter, r *http.Request) {
	session, ok := sessionFrom(w, r)
	if !ok {
		return
	}
	var draft entities.AppointmentDraft
	if !decodeJSON(w, r, &draft) {
		return
	}

	result, err := h.scheduling.Book(r.Context(), session, draft)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, result)
}

type statusRequest struct {
	Status        entities.AppointmentStatus `json:"status"`
	CurrentStatus entities.AppointmentStatus `json:"currentStatus,omitempty"`
}

// UpdateStatus handles PUT /api/appointments/{id}/status
func (h *AppointmentHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	session, ok := sessionFrom(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req statusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Status == "" {
		respondWithAppError(w, r, apperrors.NewMissingFieldsError([]string{"status"}))
		return
	}

	appt, err := h.scheduling.ChangeStatus(r.Context(), session, services.StatusChange{
		ID:   id,
		To:   req.Status,
		From: req.CurrentStatus,
	})
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, appt)
}

// rescheduleRequest carries either the modal form (date, time, reason) or a
// calendar drag (startTime, endTime)
type rescheduleRequest struct {
	Date      string           `json:"date,omitempty"`
	Time      string           `json:"time,omitempty"`
	Reason    string           `json:"reason,omitempty"`
	StartTime entities.Instant `json:"startTime"`
	EndTime   entities.Instant `json:"endTime"`
}

// Reschedule handles PUT /api/appointments/{id}/reschedule
func (h *AppointmentHandler) Reschedule(w http.ResponseWriter, r *http.Request) {
	session, ok := sessionFrom(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req rescheduleRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if req.StartTime.IsZero() {
		view, err := h.details.Reschedule(r.Context(), session, id, services.RescheduleForm{
			Date:   req.Date,
			Time:   req.Time,
			Reason: req.Reason,
		})
		if err != nil {
			respondWithAppError(w, r, err)
			return
		}
		respondWithJSON(w, http.StatusOK, view)
		return
	}

	start, end, err := h.resolveRange(req.StartTime, req.EndTime)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	result, err := h.scheduling.DragReschedule(r.Context(), session, id, start, end)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}

// UpdateNotes handles PUT /api/appointments/{id}/notes
func (h *AppointmentHandler) UpdateNotes(w http.ResponseWriter, r *http.Request) {
	session, ok := sessionFrom(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var notes entities.MedicalNotes
	if !decodeJSON(w, r, &notes) {
		return
	}

	appt, err := h.scheduling.UpdateNotes(r.Context(), session, id, notes)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, appt)
}

// CheckIn handles POST /api/appointments/{id}/checkin
func (h *AppointmentHandler) CheckIn(w http.ResponseWriter, r *http.Request) {
	h.frontDesk(w, r, h.scheduling.CheckIn)
}

// CheckOut handles POST /api/appointments/{id}/checkout
func (h *AppointmentHandler) CheckOut(w http.ResponseWriter, r *http.Request) {
	h.frontDesk(w, r, h.scheduling.CheckOut)
}

func (h *AppointmentHandler) frontDesk(
	w http.ResponseWriter,
	r *http.Request,
	fn func(context.Context, entities.Session, string) (*entities.Appointment, error),
) {
	session, ok := sessionFrom(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	appt, err := fn(r.Context(), session, id)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, appt)
}

// SendReminder handles POST /api/appointments/{id}/reminder
func (h *AppointmentHandler) SendReminder(w http.ResponseWriter, r *http.Request) {
	session, ok := sessionFrom(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	if err := h.scheduling.SendReminder(r.Context(), session, id); err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusAccepted, map[string]string{"status": "sent"})
}

// DeleteAppointment handles DELETE /api/appointments/{id}?status=Scheduled.
// status is the one the caller last saw; a stale one is a conflict.
func (h *AppointmentHandler) DeleteAppointment(w http.ResponseWriter, r *http.Request) {
	session, ok := sessionFrom(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var seen entities.AppointmentStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		status, ok := entities.ParseAppointmentStatus(raw)
		if !ok {
			respondWithError(w, http.StatusBadRequest, "invalid status parameter")
			return
		}
		seen = status
	}

	if err := h.scheduling.Delete(r.Context(), session, id, seen); err != nil {
		respondWithAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
