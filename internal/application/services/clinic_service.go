package services

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"github.com/zatekoja/clinicdesk/internal/domain/entities"
	"github.com/zatekoja/clinicdesk/internal/domain/providers"
	"github.com/zatekoja/clinicdesk/internal/domain/rules"
	"github.com/zatekoja/clinicdesk/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/clinicdesk/pkg/errors"
)

// ClinicService exposes clinic administration to staff. Reads need any staff
// role; changes need an Admin.
type ClinicService struct {
	clinics  providers.ClinicProvider
	resolver ClinicResolver
	metrics  *observability.Metrics
}

// NewClinicService creates a new clinic service
func NewClinicService(clinics providers.ClinicProvider, resolver ClinicResolver, metrics *observability.Metrics) *ClinicService {
	return &ClinicService{clinics: clinics, resolver: resolver, metrics: metrics}
}

func (s *ClinicService) authorize(ctx context.Context, session entities.Session, action string, d rules.Decision) error {
	if d.Allowed {
		return nil
	}
	observability.RecordPermissionDenied(ctx, s.metrics, action, string(session.Role))
	return apperrors.NewUnauthorizedError(action, d.Reason)
}

func (s *ClinicService) clinicID(ctx context.Context, explicit string) (string, error) {
	id := strings.TrimSpace(explicit)
	if s.resolver != nil {
		resolved, err := s.resolver.ResolveClinicID(ctx, id)
		if err != nil {
			return "", err
		}
		id = resolved
	}
	if id == "" {
		return "", apperrors.NewMissingFieldsError([]string{"clinicId"})
	}
	return id, nil
}

// Clinic returns the clinic profile
func (s *ClinicService) Clinic(ctx context.Context, session entities.Session, clinicID string) (*entities.Clinic, error) {
	if err := s.authorize(ctx, session, "view clinic", rules.ViewClinic(session.Role)); err != nil {
		return nil, err
	}
	id, err := s.clinicID(ctx, clinicID)
	if err != nil {
		return nil, err
	}
	return s.clinics.GetClinic(ctx, id)
}

// ValidateSettings checks working hours, slot length and timezone before
// they are sent upstream
func ValidateSettings(settings entities.ClinicSettings) error {
	loc := time.Local
	if settings.Timezone != "" {
		l, err := time.LoadLocation(settings.Timezone)
		if err != nil {
			return rules.InvalidField("timezone", err)
		}
		loc = l
	}
	if settings.SlotDurationMinutes < 0 {
		return apperrors.NewValidationError("slot duration must be positive")
	}
	if settings.ReminderHoursBefore < 0 {
		return apperrors.NewValidationError("reminder hours must not be negative")
	}
	if settings.WorkingHoursStart != "" || settings.WorkingHoursEnd != "" {
		opens := cmpOr(settings.WorkingHoursStart, "08:00")
		closes := cmpOr(settings.WorkingHoursEnd, "18:00")
		length := time.Duration(settings.SlotDurationMinutes) * time.Minute
		if _, err := rules.NewSlotPolicy(opens, closes, length, loc); err != nil {
			return apperrors.NewValidationError(err.Error())
		}
	}
	return nil
}

func cmpOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

// UpdateSettings validates and saves clinic settings
func (s *ClinicService) UpdateSettings(ctx context.Context, session entities.Session, clinicID string, settings entities.ClinicSettings) (*entities.Clinic, error) {
	if err := s.authorize(ctx, session, "update clinic settings", rules.ManageClinic(session.Role)); err != nil {
		return nil, err
	}
	if err := ValidateSettings(settings); err != nil {
		return nil, err
	}
	id, err := s.clinicID(ctx, clinicID)
	if err != nil {
		return nil, err
	}
	clinic, err := s.clinics.UpdateClinicSettings(ctx, id, settings)
	if err != nil {
		return nil, err
	}
	observability.RecordMutation(ctx, s.metrics, "clinic_settings")
	return clinic, nil
}

// Subscription returns the clinic plan
func (s *ClinicService) Subscription(ctx context.Context, session entities.Session, clinicID string) (*entities.Subscription, error) {
	if err := s.authorize(ctx, session, "view subscription", rules.ManageClinic(session.Role)); err != nil {
		return nil, err
	}
	id, err := s.clinicID(ctx, clinicID)
	if err != nil {
		return nil, err
	}
	return s.clinics.GetSubscription(ctx, id)
}

// Statistics returns the clinic-level summary
func (s *ClinicService) Statistics(ctx context.Context, session entities.Session, clinicID string) (*entities.ClinicStatistics, error) {
	if err := s.authorize(ctx, session, "view clinic statistics", rules.ViewClinic(session.Role)); err != nil {
		return nil, err
	}
	id, err := s.clinicID(ctx, clinicID)
	if err != nil {
		return nil, err
	}
	return s.clinics.GetClinicStatistics(ctx, id)
}

// Staff lists the clinic staff
func (s *ClinicService) Staff(ctx context.Context, session entities.Session, clinicID string) ([]entities.StaffMember, error) {
	if err := s.authorize(ctx, session, "view staff", rules.ViewClinic(session.Role)); err != nil {
		return nil, err
	}
	id, err := s.clinicID(ctx, clinicID)
	if err != nil {
		return nil, err
	}
	return s.clinics.ListStaff(ctx, id)
}

// AddStaff invites a user into the clinic
func (s *ClinicService) AddStaff(ctx context.Context, session entities.Session, clinicID string, invite entities.StaffInvite) (*entities.StaffMember, error) {
	if err := s.authorize(ctx, session, "add staff", rules.ManageClinic(session.Role)); err != nil {
		return nil, err
	}

	invite.Email = strings.TrimSpace(invite.Email)
	var missing []string
	if invite.Email == "" {
		missing = append(missing, "email")
	}
	if invite.Role == "" {
		missing = append(missing, "role")
	}
	if len(missing) > 0 {
		return nil, apperrors.NewMissingFieldsError(missing)
	}
	if _, err := mail.ParseAddress(invite.Email); err != nil {
		return nil, rules.InvalidField("email", err)
	}
	role, ok := entities.ParseRole(string(invite.Role))
	if !ok || role == entities.RolePatient {
		return nil, apperrors.NewValidationError("staff role must be Admin, Doctor, Receptionist or Nurse")
	}
	invite.Role = role

	id, err := s.clinicID(ctx, clinicID)
	if err != nil {
		return nil, err
	}
	member, err := s.clinics.AddStaff(ctx, id, invite)
	if err != nil {
		return nil, err
	}
	observability.RecordMutation(ctx, s.metrics, "staff_add")
	return member, nil
}

// RemoveStaff removes a staff member. Admins cannot remove themselves.
func (s *ClinicService) RemoveStaff(ctx context.Context, session entities.Session, clinicID, staffID string) error {
	if err := s.authorize(ctx, session, "remove staff", rules.ManageClinic(session.Role)); err != nil {
		return err
	}
	staffID = strings.TrimSpace(staffID)
	if staffID == "" {
		return apperrors.NewMissingFieldsError([]string{"staffId"})
	}
	if staffID == session.UserID {
		return apperrors.NewValidationError("you cannot remove yourself from the clinic")
	}
	id, err := s.clinicID(ctx, clinicID)
	if err != nil {
		return err
	}
	if err := s.clinics.RemoveStaff(ctx, id, staffID); err != nil {
		return err
	}
	observability.RecordMutation(ctx, s.metrics, "staff_remove")
	return nil
}

// Activate marks the clinic active
func (s *ClinicService) Activate(ctx context.Context, session entities.Session, clinicID string) (*entities.Clinic, error) {
	if err := s.authorize(ctx, session, "activate clinic", rules.ManageClinic(session.Role)); err != nil {
		return nil, err
	}
	id, err := s.clinicID(ctx, clinicID)
	if err != nil {
		return nil, err
	}
	clinic, err := s.clinics.ActivateClinic(ctx, id)
	if err != nil {
		return nil, err
	}
	observability.RecordMutation(ctx, s.metrics, "clinic_activate")
	return clinic, nil
}
