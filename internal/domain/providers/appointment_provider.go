package providers

import (
	"context"
	"time"

	"github.com/zatekoja/clinicdesk/internal/domain/entities"
)

// AppointmentProvider is the appointment surface of the clinic REST backend
type AppointmentProvider interface {
	List(ctx context.Context, filter entities.AppointmentFilter) ([]entities.Appointment, error)
	GetByID(ctx context.Context, id string) (*entities.Appointment, error)
	Create(ctx context.Context, draft entities.AppointmentDraft) (*entities.Appointment, error)
	Update(ctx context.Context, id string, patch entities.AppointmentPatch) (*entities.Appointment, error)
	Delete(ctx context.Context, id string) error
	Reschedule(ctx context.Context, id string, req entities.RescheduleRequest) (*entities.Appointment, error)
	UpdateStatus(ctx context.Context, id string, status entities.AppointmentStatus) (*entities.Appointment, error)
	UpdateMedicalNotes(ctx context.Context, id string, notes entities.MedicalNotes) (*entities.Appointment, error)
	CheckIn(ctx context.Context, id string) (*entities.Appointment, error)
	CheckOut(ctx context.Context, id string) (*entities.Appointment, error)
	SendReminder(ctx context.Context, id string) error

	GetAvailableSlots(ctx context.Context, doctorID string, date time.Time) ([]entities.AvailabilitySlot, error)
	CheckConflicts(ctx context.Context, criteria entities.ConflictCriteria) (*entities.ConflictResult, error)

	GetToday(ctx context.Context, filter entities.AppointmentFilter) ([]entities.Appointment, error)
	GetUpcoming(ctx context.Context, limit int) ([]entities.Appointment, error)
	GetPast(ctx context.Context, limit int) ([]entities.Appointment, error)
	GetByDoctor(ctx context.Context, doctorID string, filter entities.AppointmentFilter) ([]entities.Appointment, error)
	GetByPatient(ctx context.Context, patientID string, filter entities.AppointmentFilter) ([]entities.Appointment, error)
	// GetStats returns aggregate counts; zero times leave the range open
	GetStats(ctx context.Context, clinicID string, from, to time.Time) (*entities.AppointmentStats, error)
}

// ClinicProvider is the clinic administration surface of the clinic REST backend
type ClinicProvider interface {
	GetClinic(ctx context.Context, clinicID string) (*entities.Clinic, error)
	UpdateClinicSettings(ctx context.Context, clinicID string, settings entities.ClinicSettings) (*entities.Clinic, error)
	GetSubscription(ctx context.Context, clinicID string) (*entities.Subscription, error)
	GetClinicStatistics(ctx context.Context, clinicID string) (*entities.ClinicStatistics, error)
	ListStaff(ctx context.Context, clinicID string) ([]entities.StaffMember, error)
	AddStaff(ctx context.Context, clinicID string, invite entities.StaffInvite) (*entities.StaffMember, error)
	RemoveStaff(ctx context.Context, clinicID, staffID string) error
	ActivateClinic(ctx context.Context, clinicID string) (*entities.Clinic, error)
}
