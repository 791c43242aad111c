package handlers

import (
	"context"
	"net/http"

	"github.com/zatekoja/clinicdesk/internal/domain/entities"
)

// ClinicService defines clinic administration operations
type ClinicService interface {
	Clinic(ctx context.Context, session entities.Session, clinicID string) (*entities.Clinic, error)
	UpdateSettings(ctx context.Context, session entities.Session, clinicID string, settings entities.ClinicSettings) (*entities.Clinic, error)
	Subscription(ctx context.Context, session entities.Session, clinicID string) (*entities.Subscription, error)
	Statistics(ctx context.Context, session entities.Session, clinicID string) (*entities.ClinicStatistics, error)
	Staff(ctx context.Context, session entities.Session, clinicID string) ([]entities.StaffMember, error)
	AddStaff(ctx context.Context, session entities.Session, clinicID string, invite entities.StaffInvite) (*entities.StaffMember, error)
	RemoveStaff(ctx context.Context, session entities.Session, clinicID, staffID string) error
	Activate(ctx context.Context, session entities.Session, clinicID string) (*entities.Clinic, error)
}

// DefaultClinicStore persists the clinic a user last selected
type DefaultClinicStore interface {
	DefaultClinic(ctx context.Context, userID string) (string, error)
	SetDefaultClinic(ctx context.Context, userID, clinicID string) error
	ClearDefaultClinic(ctx context.Context, userID string) error
}

// ClinicHandler handles clinic administration requests
type ClinicHandler struct {
	service  ClinicService
	defaults DefaultClinicStore
}

// NewClinicHandler creates a new clinic handler
func NewClinicHandler(service ClinicService, defaults DefaultClinicStore) *ClinicHandler {
	return &ClinicHandler{
		service:  service,
		defaults: defaults,
	}
}

// GetClinic handles GET /api/clinics/{id}; "current" resolves the caller's clinic
func (h *ClinicHandler) GetClinic(w http.ResponseWriter, r *http.Request) {
	session, ok := sessionFrom(w, r)
	if !ok {
		return
	}
	clinic, err := h.service.Clinic(r.Context(), session, clinicParam(r))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, clinic)
}

func clinicParam(r *http.Request) string {
	id := r.PathValue("id")
	if id == "current" {
		return ""
	}
	return id
}

// UpdateSettings handles PUT /api/clinics/{id}/settings
func (h *ClinicHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	session, ok := sessionFrom(w, r)
	if !ok {
		return
	}
	var settings entities.ClinicSettings
	if !decodeJSON(w, r, &settings) {
		return
	}

	clinic, err := h.service.UpdateSettings(r.Context(), session, clinicParam(r), settings)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, clinic)
}

// GetSubscription handles GET /api/clinics/{id}/subscription
func (h *ClinicHandler) GetSubscription(w http.ResponseWriter, r *http.Request) {
	session, ok := sessionFrom(w, r)
	if !ok {
		return
	}
	sub, err := h.service.Subscription(r.Context(), session, clinicParam(r))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, sub)
}

// GetStatistics handles GET /api/clinics/{id}/statistics
func (h *ClinicHandler) GetStatistics(w http.ResponseWriter, r *http.Request) {
	session, ok := sessionFrom(w, r)
	if !ok {
		return
	}
	stats, err := h.service.Statistics(r.Context(), session, clinicParam(r))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, stats)
}

// ListStaff handles GET /api/clinics/{id}/staff
func (h *ClinicHandler) ListStaff(w http.ResponseWriter, r *http.Request) {
	session, ok := sessionFrom(w, r)
	if !ok {
		return
	}
	staff, err := h.service.Staff(r.Context(), session, clinicParam(r))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"staff": staff,
		"count": len(staff),
	})
}

// AddStaff handles POST /api/clinics/{id}/staff
func (h *ClinicHandler) AddStaff(w http.ResponseWriter, r *http.Request) {
	session, ok := sessionFrom(w, r)
	if !ok {
		return
	}
	var invite entities.StaffInvite
	if !decodeJSON(w, r, &invite) {
		return
	}

	member, err := h.service.AddStaff(r.Context(), session, clinicParam(r), invite)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, member)
}

// RemoveStaff handles DELETE /api/clinics/{id}/staff/{staffId}
func (h *ClinicHandler) RemoveStaff(w http.ResponseWriter, r *http.Request) {
	session, ok := sessionFrom(w, r)
	if !ok {
		return
	}
	if err := h.service.RemoveStaff(r.Context(), session, clinicParam(r), r.PathValue("staffId")); err != nil {
		respondWithAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Activate handles POST /api/clinics/{id}/activate
func (h *ClinicHandler) Activate(w http.ResponseWriter, r *http.Request) {
	session, ok := sessionFrom(w, r)
	if !ok {
		return
	}
	clinic, err := h.service.Activate(r.Context(), session, clinicParam(r))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, clinic)
}

type defaultClinicBody struct {
	ClinicID string `json:"clinicId"`
}

// GetDefaultClinic handles GET /api/me/clinic
func (h *ClinicHandler) GetDefaultClinic(w http.ResponseWriter, r *http.Request) {
	session, ok := sessionFrom(w, r)
	if !ok {
		return
	}
	id, err := h.defaults.DefaultClinic(r.Context(), session.UserID)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, defaultClinicBody{ClinicID: id})
}

// SetDefaultClinic handles PUT /api/me/clinic
func (h *ClinicHandler) SetDefaultClinic(w http.ResponseWriter, r *http.Request) {
	session, ok := sessionFrom(w, r)
	if !ok {
		return
	}
	var body defaultClinicBody
	if !decodeJSON(w, r, &body) {
		return
	}
	if err := h.defaults.SetDefaultClinic(r.Context(), session.UserID, body.ClinicID); err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, body)
}

// ClearDefaultClinic handles DELETE /api/me/clinic
func (h *ClinicHandler) ClearDefaultClinic(w http.ResponseWriter, r *http.Request) {
	session, ok := sessionFrom(w, r)
	if !ok {
		return
	}
	if err := h.defaults.ClearDefaultClinic(r.Context(), session.UserID); err != nil {
		respondWithAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
