package routes_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/clinicdesk/internal/adapters/cache"
	"github.com/zatekoja/clinicdesk/internal/adapters/events"
	"github.com/zatekoja/clinicdesk/internal/api/handlers"
	"github.com/zatekoja/clinicdesk/internal/api/middleware"
	"github.com/zatekoja/clinicdesk/internal/api/routes"
	"github.com/zatekoja/clinicdesk/internal/application/services"
	"github.com/zatekoja/clinicdesk/internal/domain/entities"
	"github.com/zatekoja/clinicdesk/internal/domain/rules"
	"github.com/zatekoja/clinicdesk/internal/infrastructure/clients/clinicapi"
	"github.com/zatekoja/clinicdesk/pkg/config"
)

type stack struct {
	handler  http.Handler
	auth     *middleware.Authenticator
	upstream *int32
}

func newStack(t *testing.T) *stack {
	t.Helper()
	var calls int32

	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Contains(t, r.Header.Get("Authorization"), "Bearer ")

		if r.Method == http.MethodGet && r.URL.Path == "/api/appointments/a-1" {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]any{"appointment": map[string]any{
				"_id":         "a-1",
				"patientId":   map[string]any{"_id": "p-1", "firstName": "Ada", "lastName": "Obi"},
				"doctorId":    "d-1",
				"clinicId":    "clinic-1",
				"serviceType": "Consultation",
				"startTime":   "2030-03-03T10:00:00.000Z",
				"endTime":     "2030-03-03T10:30:00.000Z",
				"status":      "Scheduled",
			}})
			return
		}
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"message": "not found"})
	}))
	t.Cleanup(backend.Close)

	store := cache.NewMemoryAdapter()
	bus := events.NewLocalEventBus()
	t.Cleanup(func() { bus.Close() })

	resolver := services.NewClinicContextResolver(store, "clinic-1")
	client := clinicapi.NewClient(backend.URL+"/api", clinicapi.WithLocation(time.UTC), clinicapi.WithClinicResolver(resolver))

	policy := rules.DefaultSlotPolicy()
	policy.Location = time.UTC
	scheduling := services.NewSchedulingService(client, resolver, policy, services.WithEventBus(bus))
	board := services.NewBoardService(client, scheduling)
	details := services.NewDetailsService(scheduling)
	dashboard := services.NewDashboardService(client, resolver, bus, nil, services.WithDashboardCache(store))

	auth := middleware.NewAuthenticator(config.AuthConfig{JWTSecret: "test-secret"})
	router := routes.NewRouter(
		handlers.NewAppointmentHandler(scheduling, board, details, time.UTC),
		handlers.NewClinicHandler(services.NewClinicService(client, resolver, nil), resolver),
		handlers.NewStreamHandler(bus, dashboard, resolver),
		auth,
		[]string{"http://localhost:5173"},
		nil,
	)
	return &stack{handler: router.SetupRoutes(), auth: auth, upstream: &calls}
}

func (s *stack) token(t *testing.T, role entities.Role) string {
	t.Helper()
	token, err := s.auth.IssueToken("u-1", role, "clinic-1", time.Hour)
	require.NoError(t, err)
	return token
}

func TestRouter_HealthNeedsNoToken(t *testing.T) {
	s := newStack(t)
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", w.Body.String())
}

func TestRouter_APIRequiresToken(t *testing.T) {
	s := newStack(t)
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/appointments/a-1", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Zero(t, atomic.LoadInt32(s.upstream))
}

func TestRouter_PreflightSkipsAuth(t *testing.T) {
	s := newStack(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/appointments/a-1", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouter_AppointmentDetails(t *testing.T) {
	s := newStack(t)
	req := httptest.NewRequest(http.MethodGet, "/api/appointments/a-1", nil)
	req.Header.Set("Authorization", "Bearer "+s.token(t, entities.RoleReceptionist))
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var view services.DetailsView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.Equal(t, "a-1", view.Appointment.ID)
	assert.Len(t, view.StatusButtons, len(entities.AllAppointmentStatuses))
	assert.Equal(t, "private, no-store", w.Header().Get("Cache-Control"))
	assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))
}

func TestRouter_DeniedActionsNeverReachTheBackend(t *testing.T) {
	s := newStack(t)
	req := httptest.NewRequest(http.MethodDelete, "/api/appointments/a-1?status=Scheduled", nil)
	req.Header.Set("Authorization", "Bearer "+s.token(t, entities.RoleNurse))
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
	// only the lookup of the current status goes upstream
	assert.EqualValues(t, 1, atomic.LoadInt32(s.upstream))
}

func TestRouter_StaleStatusIsAConflict(t *testing.T) {
	s := newStack(t)
	req := httptest.NewRequest(http.MethodDelete, "/api/appointments/a-1?status=Completed", nil)
	req.Header.Set("Authorization", "Bearer "+s.token(t, entities.RoleReceptionist))
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "now Scheduled")
	assert.EqualValues(t, 1, atomic.LoadInt32(s.upstream))
}

func TestRouter_UpstreamNotFound(t *testing.T) {
	s := newStack(t)
	req := httptest.NewRequest(http.MethodGet, "/api/appointments/missing", nil)
	req.Header.Set("Authorization", "Bearer "+s.token(t, entities.RoleDoctor))
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
