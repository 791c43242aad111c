package handlers_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/zatekoja/clinicdesk/internal/api/handlers"
	"github.com/zatekoja/clinicdesk/internal/domain/entities"
	"github.com/zatekoja/clinicdesk/internal/domain/providers"
)

func TestStreamHandler_StreamDashboard(t *testing.T) {
	t.Run("should establish SSE connection and forward events", func(t *testing.T) {
		eventBus := NewMockEventBus()
		dashboard := new(MockDashboardService)
		dashboard.On("Snapshot", mock.Anything, "clinic-1").Return(&entities.AppointmentStats{Total: 5}, nil)
		handler := handlers.NewStreamHandler(eventBus, dashboard, staticResolver("clinic-1"))

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		req := request(http.MethodGet, "/api/stream/dashboard", nil, &receptionist).WithContext(
			entities.ContextWithSession(ctx, receptionist))
		w := httptest.NewRecorder()

		done := make(chan struct{})
		go func() {
			handler.StreamDashboard(w, req)
			close(done)
		}()

		channel := providers.GetClinicChannel("clinic-1")
		assert.Eventually(t, func() bool { return eventBus.SubscriberCount(channel) == 1 }, time.Second, 10*time.Millisecond)
		time.Sleep(50 * time.Millisecond)

		event := entities.NewAppointmentEvent("clinic-1", "a-1", entities.AppointmentEventStatusChanged)
		event.Status = entities.AppointmentStatusConfirmed
		eventBus.Publish(context.Background(), channel, event)
		time.Sleep(100 * time.Millisecond)

		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("handler did not exit after cancel")
		}

		result := w.Result()
		assert.Equal(t, "text/event-stream", result.Header.Get("Content-Type"))
		assert.Equal(t, "no-cache", result.Header.Get("Cache-Control"))

		body := w.Body.String()
		assert.Contains(t, body, "event: connected\n")
		assert.Contains(t, body, "event: stats_snapshot\n")
		assert.Contains(t, body, `"total":5`)
		assert.Contains(t, body, "event: appointment_status_changed\n")
		assert.Less(t, strings.Index(body, "event: connected"), strings.Index(body, "event: appointment_status_changed"))
		assert.Equal(t, 0, handler.ClientCount())
	})

	t.Run("sends heartbeats", func(t *testing.T) {
		handler := handlers.NewStreamHandler(NewMockEventBus(), nil, nil)
		handler.SetHeartbeat(20 * time.Millisecond)

		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()
		session := entities.Session{UserID: "u-rec", Role: entities.RoleReceptionist, ClinicID: "clinic-2"}
		req := httptest.NewRequest(http.MethodGet, "/api/stream/dashboard?clinicId=clinic-2", nil).
			WithContext(entities.ContextWithSession(ctx, session))
		w := httptest.NewRecorder()

		handler.StreamDashboard(w, req)

		assert.Contains(t, w.Body.String(), "event: heartbeat\n")
		assert.Contains(t, w.Body.String(), `"clinic_id":"clinic-2"`)
	})

	t.Run("requires a clinic", func(t *testing.T) {
		handler := handlers.NewStreamHandler(NewMockEventBus(), nil, staticResolver(""))
		w := httptest.NewRecorder()

		handler.StreamDashboard(w, request(http.MethodGet, "/api/stream/dashboard", nil, &receptionist))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("patients cannot follow clinic statistics", func(t *testing.T) {
		eventBus := NewMockEventBus()
		dashboard := new(MockDashboardService)
		handler := handlers.NewStreamHandler(eventBus, dashboard, staticResolver("clinic-1"))
		w := httptest.NewRecorder()

		handler.StreamDashboard(w, request(http.MethodGet, "/api/stream/dashboard", nil, &patient))

		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Zero(t, eventBus.SubscriberCount(providers.GetClinicChannel("clinic-1")))
		dashboard.AssertNotCalled(t, "Snapshot", mock.Anything, mock.Anything)
	})

	t.Run("staff cannot follow another clinic", func(t *testing.T) {
		eventBus := NewMockEventBus()
		dashboard := new(MockDashboardService)
		handler := handlers.NewStreamHandler(eventBus, dashboard, staticResolver("clinic-1"))
		nurse := entities.Session{UserID: "u-nurse", Role: entities.RoleNurse, ClinicID: "clinic-1"}
		w := httptest.NewRecorder()

		handler.StreamDashboard(w, request(http.MethodGet, "/api/stream/dashboard?clinicId=clinic-9", nil, &nurse))

		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Contains(t, w.Body.String(), "your own clinic")
		assert.Zero(t, eventBus.SubscriberCount(providers.GetClinicChannel("clinic-9")))
		dashboard.AssertNotCalled(t, "Snapshot", mock.Anything, mock.Anything)
	})

	t.Run("an admin may follow any clinic", func(t *testing.T) {
		handler := handlers.NewStreamHandler(NewMockEventBus(), nil, staticResolver("clinic-1"))
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		clinicAdmin := entities.Session{UserID: "u-admin", Role: entities.RoleAdmin, ClinicID: "clinic-1"}
		req := httptest.NewRequest(http.MethodGet, "/api/stream/dashboard?clinicId=clinic-9", nil).
			WithContext(entities.ContextWithSession(ctx, clinicAdmin))
		w := httptest.NewRecorder()

		handler.StreamDashboard(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"clinic_id":"clinic-9"`)
	})
}
