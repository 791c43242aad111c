package routes

import (
	"net/http"

	"github.com/zatekoja/clinicdesk/internal/api/handlers"
	"github.com/zatekoja/clinicdesk/internal/api/middleware"
	"github.com/zatekoja/clinicdesk/internal/infrastructure/observability"
)

// Router holds all route handlers
type Router struct {
	mux *http.ServeMux

	appointmentHandler *handlers.AppointmentHandler
	clinicHandler      *handlers.ClinicHandler
	streamHandler      *handlers.StreamHandler

	auth           *middleware.Authenticator
	allowedOrigins []string
	metrics        *observability.Metrics
}

// NewRouter creates a new router
func NewRouter(
	appointmentHandler *handlers.AppointmentHandler,
	clinicHandler *handlers.ClinicHandler,
	streamHandler *handlers.StreamHandler,
	auth *middleware.Authenticator,
	allowedOrigins []string,
	metrics *observability.Metrics,
) *Router {
	return &Router{
		mux:                http.NewServeMux(),
		appointmentHandler: appointmentHandler,
		clinicHandler:      clinicHandler,
		streamHandler:      streamHandler,
		auth:               auth,
		allowedOrigins:     allowedOrigins,
		metrics:            metrics,
	}
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes() http.Handler {
	// Health check endpoint
	r.mux.HandleFunc("GET /health", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			return
		}
	})

	// Appointment endpoints
	r.mux.HandleFunc("GET /api/appointments", r.appointmentHandler.ListAppointments)
	r.mux.HandleFunc("POST /api/appointments", r.appointmentHandler.BookAppointment)
	r.mux.HandleFunc("GET /api/appointments/calendar", r.appointmentHandler.GetCalendar)
	r.mux.HandleFunc("GET /api/appointments/slots", r.appointmentHandler.GetAvailableSlots)
	r.mux.HandleFunc("GET /api/appointments/stats", r.appointmentHandler.GetStats)
	r.mux.HandleFunc("POST /api/appointments/select-slot", r.appointmentHandler.SelectSlot)
	r.mux.HandleFunc("POST /api/appointments/conflicts", r.appointmentHandler.CheckConflicts)

	r.mux.HandleFunc("GET /api/appointments/{id}", r.appointmentHandler.GetAppointment)
	r.mux.HandleFunc("DELETE /api/appointments/{id}", r.appointmentHandler.DeleteAppointment)
	r.mux.HandleFunc("PUT /api/appointments/{id}/status", r.appointmentHandler.UpdateStatus)
	r.mux.HandleFunc("PUT /api/appointments/{id}/reschedule", r.appointmentHandler.Reschedule)
	r.mux.HandleFunc("PUT /api/appointments/{id}/notes", r.appointmentHandler.UpdateNotes)
	r.mux.HandleFunc("POST /api/appointments/{id}/checkin", r.appointmentHandler.CheckIn)
	r.mux.HandleFunc("POST /api/appointments/{id}/checkout", r.appointmentHandler.CheckOut)
	r.mux.HandleFunc("POST /api/appointments/{id}/reminder", r.appointmentHandler.SendReminder)

	// Clinic endpoints; {id} may be "current"
	if r.clinicHandler != nil {
		r.mux.HandleFunc("GET /api/clinics/{id}", r.clinicHandler.GetClinic)
		r.mux.HandleFunc("PUT /api/clinics/{id}/settings", r.clinicHandler.UpdateSettings)
		r.mux.HandleFunc("GET /api/clinics/{id}/subscription", r.clinicHandler.GetSubscription)
		r.mux.HandleFunc("GET /api/clinics/{id}/statistics", r.clinicHandler.GetStatistics)
		r.mux.HandleFunc("GET /api/clinics/{id}/staff", r.clinicHandler.ListStaff)
		r.mux.HandleFunc("POST /api/clinics/{id}/staff", r.clinicHandler.AddStaff)
		r.mux.HandleFunc("DELETE /api/clinics/{id}/staff/{staffId}", r.clinicHandler.RemoveStaff)
		r.mux.HandleFunc("POST /api/clinics/{id}/activate", r.clinicHandler.Activate)

		r.mux.HandleFunc("GET /api/me/clinic", r.clinicHandler.GetDefaultClinic)
		r.mux.HandleFunc("PUT /api/me/clinic", r.clinicHandler.SetDefaultClinic)
		r.mux.HandleFunc("DELETE /api/me/clinic", r.clinicHandler.ClearDefaultClinic)
	}

	// Live updates
	if r.streamHandler != nil {
		r.mux.HandleFunc("GET /api/stream/dashboard", r.streamHandler.StreamDashboard)
	}

	// Apply middleware in reverse order (last middleware wraps first)
	var handler http.Handler = r.mux
	handler = r.auth.Middleware(handler)
	handler = middleware.LoggingMiddleware(handler)
	handler = middleware.ObservabilityMiddleware(r.metrics)(handler)

	// Apply HTTP performance optimizations (compression, ETag, cache headers)
	handler = middleware.ResponseOptimization(handler)

	// CORS wraps everything so preflights never reach auth
	handler = middleware.CORSMiddleware(r.allowedOrigins)(handler)

	return handler
}
