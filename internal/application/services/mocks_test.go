package services_test

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/zatekoja/clinicdesk/internal/domain/entities"
)

// MockAppointmentProvider is a testify mock of the clinic API appointment surface
type MockAppointmentProvider struct {
	mock.Mock
}

func appointmentOrNil(args mock.Arguments) (*entities.Appointment, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Appointment), args.Error(1)
}

func appointmentsOrNil(args mock.Arguments) ([]entities.Appointment, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entities.Appointment), args.Error(1)
}

func (m *MockAppointmentProvider) List(ctx context.Context, filter entities.AppointmentFilter) ([]entities.Appointment, error) {
	return appointmentsOrNil(m.Called(ctx, filter))
}

func (m *MockAppointmentProvider) GetByID(ctx context.Context, id string) (*entities.Appointment, error) {
	return appointmentOrNil(m.Called(ctx, id))
}

func (m *MockAppointmentProvider) Create(ctx context.Context, draft entities.AppointmentDraft) (*entities.Appointment, error) {
	return appointmentOrNil(m.Called(ctx, draft))
}

func (m *MockAppointmentProvider) Update(ctx context.Context, id string, patch entities.AppointmentPatch) (*entities.Appointment, error) {
	return appointmentOrNil(m.Called(ctx, id, patch))
}

func (m *MockAppointmentProvider) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockAppointmentProvider) Reschedule(ctx context.Context, id string, req entities.RescheduleRequest) (*entities.Appointment, error) {
	return appointmentOrNil(m.Called(ctx, id, req))
}

func (m *MockAppointmentProvider) UpdateStatus(ctx context.Context, id string, status entities.AppointmentStatus) (*entities.Appointment, error) {
	return appointmentOrNil(m.Called(ctx, id, status))
}

func (m *MockAppointmentProvider) UpdateMedicalNotes(ctx context.Context, id string, notes entities.MedicalNotes) (*entities.Appointment, error) {
	return appointmentOrNil(m.Called(ctx, id, notes))
}

func (m *MockAppointmentProvider) CheckIn(ctx context.Context, id string) (*entities.Appointment, error) {
	return appointmentOrNil(m.Called(ctx, id))
}

func (m *MockAppointmentProvider) CheckOut(ctx context.Context, id string) (*entities.Appointment, error) {
	return appointmentOrNil(m.Called(ctx, id))
}

func (m *MockAppointmentProvider) SendReminder(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockAppointmentProvider) GetAvailableSlots(ctx context.Context, doctorID string, date time.Time) ([]entities.AvailabilitySlot, error) {
	args := m.Called(ctx, doctorID, date)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entities.AvailabilitySlot), args.Error(1)
}

func (m *MockAppointmentProvider) CheckConflicts(ctx context.Context, criteria entities.ConflictCriteria) (*entities.ConflictResult, error) {
	args := m.Called(ctx, criteria)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.ConflictResult), args.Error(1)
}

func (m *MockAppointmentProvider) GetToday(ctx context.Context, filter entities.AppointmentFilter) ([]entities.Appointment, error) {
	return appointmentsOrNil(m.Called(ctx, filter))
}

func (m *MockAppointmentProvider) GetUpcoming(ctx context.Context, limit int) ([]entities.Appointment, error) {
	return appointmentsOrNil(m.Called(ctx, limit))
}

func (m *MockAppointmentProvider) GetPast(ctx context.Context, limit int) ([]entities.Appointment, error) {
	return appointmentsOrNil(m.Called(ctx, limit))
}

func (m *MockAppointmentProvider) GetByDoctor(ctx context.Context, doctorID string, filter entities.AppointmentFilter) ([]entities.Appointment, error) {
	return appointmentsOrNil(m.Called(ctx, doctorID, filter))
}

func (m *MockAppointmentProvider) GetByPatient(ctx context.Context, patientID string, filter entities.AppointmentFilter) ([]entities.Appointment, error) {
	return appointmentsOrNil(m.Called(ctx, patientID, filter))
}

func (m *MockAppointmentProvider) GetStats(ctx context.Context, clinicID string, from, to time.Time) (*entities.AppointmentStats, error) {
	args := m.Called(ctx, clinicID, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.AppointmentStats), args.Error(1)
}

// MockEventBus records published events
type MockEventBus struct {
	mu        sync.Mutex
	published map[string][]*entities.AppointmentEvent
}

func NewMockEventBus() *MockEventBus {
	return &MockEventBus{published: make(map[string][]*entities.AppointmentEvent)}
}

func (m *MockEventBus) Publish(ctx context.Context, channel string, event *entities.AppointmentEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published[channel] = append(m.published[channel], event)
	return nil
}

func (m *MockEventBus) Subscribe(ctx context.Context, channel string) (<-chan *entities.AppointmentEvent, error) {
	ch := make(chan *entities.AppointmentEvent)
	close(ch)
	return ch, nil
}

func (m *MockEventBus) Unsubscribe(ctx context.Context, channel string) error {
	return nil
}

func (m *MockEventBus) Close() error {
	return nil
}

func (m *MockEventBus) Events(channel string) []*entities.AppointmentEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*entities.AppointmentEvent(nil), m.published[channel]...)
}

type staticResolver string

func (r staticResolver) ResolveClinicID(_ context.Context, explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	return string(r), nil
}

// MockClinicProvider is a testify mock of the clinic administration surface
type MockClinicProvider struct {
	mock.Mock
}

func clinicOrNil(args mock.Arguments) (*entities.Clinic, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Clinic), args.Error(1)
}

func (m *MockClinicProvider) GetClinic(ctx context.Context, clinicID string) (*entities.Clinic, error) {
	return clinicOrNil(m.Called(ctx, clinicID))
}

func (m *MockClinicProvider) UpdateClinicSettings(ctx context.Context, clinicID string, settings entities.ClinicSettings) (*entities.Clinic, error) {
	return clinicOrNil(m.Called(ctx, clinicID, settings))
}

func (m *MockClinicProvider) GetSubscription(ctx context.Context, clinicID string) (*entities.Subscription, error) {
	args := m.Called(ctx, clinicID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Subscription), args.Error(1)
}

func (m *MockClinicProvider) GetClinicStatistics(ctx context.Context, clinicID string) (*entities.ClinicStatistics, error) {
	args := m.Called(ctx, clinicID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.ClinicStatistics), args.Error(1)
}

func (m *MockClinicProvider) ListStaff(ctx context.Context, clinicID string) ([]entities.StaffMember, error) {
	args := m.Called(ctx, clinicID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entities.StaffMember), args.Error(1)
}

func (m *MockClinicProvider) AddStaff(ctx context.Context, clinicID string, invite entities.StaffInvite) (*entities.StaffMember, error) {
	args := m.Called(ctx, clinicID, invite)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.StaffMember), args.Error(1)
}

func (m *MockClinicProvider) RemoveStaff(ctx context.Context, clinicID, staffID string) error {
	return m.Called(ctx, clinicID, staffID).Error(0)
}

func (m *MockClinicProvider) ActivateClinic(ctx context.Context, clinicID string) (*entities.Clinic, error) {
	return clinicOrNil(m.Called(ctx, clinicID))
}
