package entities

import "time"

// AvailabilitySlot is a candidate start/end pair offered for booking
type AvailabilitySlot struct {
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
	Available bool      `json:"available"`
}

// ConflictCriteria asks whether a doctor or patient is already booked in a range
type ConflictCriteria struct {
	DoctorID             Ref       `json:"doctorId"`
	PatientID            Ref       `json:"patientId"`
	StartTime            time.Time `json:"startTime"`
	EndTime              time.Time `json:"endTime"`
	ExcludeAppointmentID string    `json:"excludeAppointmentId,omitempty"`
}

// ConflictResult is the answer to a conflict check
type ConflictResult struct {
	HasConflicts bool          `json:"hasConflicts"`
	Conflicts    []Appointment `json:"conflicts,omitempty"`
}
