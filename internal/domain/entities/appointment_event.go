package entities

import (
	"time"

	"github.com/google/uuid"
)

// AppointmentEventType represents the type of appointment event
type AppointmentEventType string

const (
	AppointmentEventCreated       AppointmentEventType = "appointment_created"
	AppointmentEventStatusChanged AppointmentEventType = "appointment_status_changed"
	AppointmentEventRescheduled   AppointmentEventType = "appointment_rescheduled"
	AppointmentEventNotesUpdated  AppointmentEventType = "appointment_notes_updated"
	AppointmentEventDeleted       AppointmentEventType = "appointment_deleted"
	AppointmentEventStatsSnapshot AppointmentEventType = "stats_snapshot"
)

// AppointmentEvent tells open calendar and list views that they must re-fetch
type AppointmentEvent struct {
	ID            string               `json:"id"`
	ClinicID      string               `json:"clinic_id"`
	AppointmentID string               `json:"appointment_id,omitempty"`
	EventType     AppointmentEventType `json:"event_type"`
	Status        AppointmentStatus    `json:"status,omitempty"`
	ActorID       string               `json:"actor_id,omitempty"`
	Timestamp     time.Time            `json:"timestamp"`
	Stats         *AppointmentStats    `json:"stats,omitempty"`
}

// NewAppointmentEvent creates a new appointment event
func NewAppointmentEvent(clinicID, appointmentID string, eventType AppointmentEventType) *AppointmentEvent {
	return &AppointmentEvent{
		ID:            uuid.NewString(),
		ClinicID:      clinicID,
		AppointmentID: appointmentID,
		EventType:     eventType,
		Timestamp:     time.Now(),
	}
}
