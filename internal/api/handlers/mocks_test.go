package handlers_test

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/zatekoja/clinicdesk/internal/application/services"
	"github.com/zatekoja/clinicdesk/internal/domain/entities"
)

type MockSchedulingService struct {
	mock.Mock
}

func appointmentOrNil(args mock.Arguments) (*entities.Appointment, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Appointment), args.Error(1)
}

func resultOrNil(args mock.Arguments) (*services.ScheduleResult, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.ScheduleResult), args.Error(1)
}

func (m *MockSchedulingService) Book(ctx context.Context, session entities.Session, draft entities.AppointmentDraft) (*services.ScheduleResult, error) {
	return resultOrNil(m.Called(ctx, session, draft))
}

func (m *MockSchedulingService) ChangeStatus(ctx context.Context, session entities.Session, change services.StatusChange) (*entities.Appointment, error) {
	return appointmentOrNil(m.Called(ctx, session, change))
}

func (m *MockSchedulingService) DragReschedule(ctx context.Context, session entities.Session, id string, start, end time.Time) (*services.ScheduleResult, error) {
	return resultOrNil(m.Called(ctx, session, id, start, end))
}

func (m *MockSchedulingService) Delete(ctx context.Context, session entities.Session, id string, knownStatus entities.AppointmentStatus) error {
	return m.Called(ctx, session, id, knownStatus).Error(0)
}

func (m *MockSchedulingService) UpdateNotes(ctx context.Context, session entities.Session, id string, notes entities.MedicalNotes) (*entities.Appointment, error) {
	return appointmentOrNil(m.Called(ctx, session, id, notes))
}

func (m *MockSchedulingService) CheckIn(ctx context.Context, session entities.Session, id string) (*entities.Appointment, error) {
	return appointmentOrNil(m.Called(ctx, session, id))
}

func (m *MockSchedulingService) CheckOut(ctx context.Context, session entities.Session, id string) (*entities.Appointment, error) {
	return appointmentOrNil(m.Called(ctx, session, id))
}

func (m *MockSchedulingService) SendReminder(ctx context.Context, session entities.Session, id string) error {
	return m.Called(ctx, session, id).Error(0)
}

func (m *MockSchedulingService) AvailableSlots(ctx context.Context, doctorID string, date time.Time) ([]entities.AvailabilitySlot, error) {
	args := m.Called(ctx, doctorID, date)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entities.AvailabilitySlot), args.Error(1)
}

func (m *MockSchedulingService) CheckConflicts(ctx context.Context, criteria entities.ConflictCriteria) (*entities.ConflictResult, error) {
	args := m.Called(ctx, criteria)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.ConflictResult), args.Error(1)
}

func (m *MockSchedulingService) Stats(ctx context.Context, clinicID string, from, to time.Time) (*entities.AppointmentStats, error) {
	args := m.Called(ctx, clinicID, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.AppointmentStats), args.Error(1)
}

type MockBoardService struct {
	mock.Mock
}

func (m *MockBoardService) Load(ctx context.Context, session entities.Session, query services.BoardQuery) (*services.Board, error) {
	args := m.Called(ctx, session, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.Board), args.Error(1)
}

func (m *MockBoardService) Calendar(ctx context.Context, session entities.Session, view services.CalendarView, anchor time.Time, doctorID string) (*services.Calendar, error) {
	args := m.Called(ctx, session, view, anchor, doctorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.Calendar), args.Error(1)
}

func (m *MockBoardService) SelectSlot(start, end time.Time) (*services.SlotSelection, error) {
	args := m.Called(start, end)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.SlotSelection), args.Error(1)
}

type MockDetailsService struct {
	mock.Mock
}

func (m *MockDetailsService) View(ctx context.Context, session entities.Session, id string) (*services.DetailsView, error) {
	args := m.Called(ctx, session, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.DetailsView), args.Error(1)
}

func (m *MockDetailsService) Reschedule(ctx context.Context, session entities.Session, id string, form services.RescheduleForm) (*services.DetailsView, error) {
	args := m.Called(ctx, session, id, form)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.DetailsView), args.Error(1)
}

type MockDashboardService struct {
	mock.Mock
}

func (m *MockDashboardService) Snapshot(ctx context.Context, clinicID string) (*entities.AppointmentStats, error) {
	args := m.Called(ctx, clinicID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.AppointmentStats), args.Error(1)
}

// MockEventBus for testing
type MockEventBus struct {
	mu          sync.RWMutex
	subscribers map[string][]chan *entities.AppointmentEvent
}

func NewMockEventBus() *MockEventBus {
	return &MockEventBus{subscribers: make(map[string][]chan *entities.AppointmentEvent)}
}

func (m *MockEventBus) Publish(ctx context.Context, channel string, event *entities.AppointmentEvent) error {
	m.mu.RLock()
	channels := append([]chan *entities.AppointmentEvent(nil), m.subscribers[channel]...)
	m.mu.RUnlock()

	for _, ch := range channels {
		select {
		case ch <- event:
		default:
		}
	}
	return nil
}

func (m *MockEventBus) Subscribe(ctx context.Context, channel string) (<-chan *entities.AppointmentEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch := make(chan *entities.AppointmentEvent, 10)
	m.subscribers[channel] = append(m.subscribers[channel], ch)
	return ch, nil
}

func (m *MockEventBus) Unsubscribe(ctx context.Context, channel string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subscribers, channel)
	return nil
}

func (m *MockEventBus) Close() error {
	return nil
}

func (m *MockEventBus) SubscriberCount(channel string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subscribers[channel])
}

type staticResolver string

func (r staticResolver) ResolveClinicID(_ context.Context, explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	return string(r), nil
}
