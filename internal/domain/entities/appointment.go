package entities

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/zatekoja/clinicdesk/pkg/timeutil"
)

// AppointmentStatus represents the status of an appointment
type AppointmentStatus string

const (
	AppointmentStatusScheduled AppointmentStatus = "Scheduled"
	AppointmentStatusConfirmed AppointmentStatus = "Confirmed"
	AppointmentStatusCompleted AppointmentStatus = "Completed"
	AppointmentStatusCancelled AppointmentStatus = "Cancelled"
	AppointmentStatusNoShow    AppointmentStatus = "No Show"
)

// AllAppointmentStatuses lists statuses in the order the UI presents them.
var AllAppointmentStatuses = []AppointmentStatus{
	AppointmentStatusScheduled,
	AppointmentStatusConfirmed,
	AppointmentStatusCompleted,
	AppointmentStatusCancelled,
	AppointmentStatusNoShow,
}

// ParseAppointmentStatus accepts the wire spelling case-insensitively, plus
// the no-show variants the API has used over time.
func ParseAppointmentStatus(s string) (AppointmentStatus, bool) {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.NewReplacer("-", " ", "_", " ").Replace(key)
	switch key {
	case "scheduled":
		return AppointmentStatusScheduled, true
	case "confirmed":
		return AppointmentStatusConfirmed, true
	case "completed":
		return AppointmentStatusCompleted, true
	case "cancelled", "canceled":
		return AppointmentStatusCancelled, true
	case "no show", "noshow":
		return AppointmentStatusNoShow, true
	}
	return "", false
}

// IsClosed reports whether the appointment can no longer be rescheduled by staff
func (s AppointmentStatus) IsClosed() bool {
	return s == AppointmentStatusCompleted || s == AppointmentStatusCancelled || s == AppointmentStatusNoShow
}

// VitalSigns captured at check-in
type VitalSigns struct {
	BloodPressure   string `json:"bloodPressure,omitempty"`
	HeartRate       string `json:"heartRate,omitempty"`
	Temperature     string `json:"temperature,omitempty"`
	RespiratoryRate string `json:"respiratoryRate,omitempty"`
}

// IsZero reports whether no vital sign was recorded
func (v VitalSigns) IsZero() bool {
	return v == VitalSigns{}
}

// RescheduleEntry is one record of the append-only reschedule audit trail.
// Pending entries exist only locally between submit and server confirmation.
type RescheduleEntry struct {
	ID                string    `json:"id,omitempty"`
	PreviousStartTime time.Time `json:"previousStartTime"`
	PreviousEndTime   time.Time `json:"previousEndTime"`
	Reason            string    `json:"reason,omitempty"`
	RescheduledBy     Ref       `json:"rescheduledBy"`
	RescheduledAt     time.Time `json:"rescheduledAt"`
	Pending           bool      `json:"pending,omitempty"`
}

// Appointment represents a scheduled appointment
type Appointment struct {
	ID                string            `json:"id"`
	PatientID         Ref               `json:"patientId"`
	DoctorID          Ref               `json:"doctorId"`
	ClinicID          Ref               `json:"clinicId"`
	StartTime         time.Time         `json:"startTime"`
	EndTime           time.Time         `json:"endTime"`
	Status            AppointmentStatus `json:"status"`
	ServiceType       Ref               `json:"serviceType"`
	Reason            string            `json:"reason"`
	Notes             string            `json:"notes,omitempty"`
	ChiefComplaint    string            `json:"chiefComplaint,omitempty"`
	VitalSigns        *VitalSigns       `json:"vitalSigns,omitempty"`
	Diagnosis         string            `json:"diagnosis,omitempty"`
	Symptoms          []string          `json:"symptoms,omitempty"`
	MedicalHistory    string            `json:"medicalHistory,omitempty"`
	RescheduleHistory []RescheduleEntry `json:"rescheduleHistory,omitempty"`
	CreatedAt         time.Time         `json:"createdAt"`
	UpdatedAt         time.Time         `json:"updatedAt"`
	CreatedBy         Ref               `json:"createdBy"`
}

// Duration returns the booked length of the appointment
func (a *Appointment) Duration() time.Duration {
	return a.EndTime.Sub(a.StartTime)
}

// Instant is a caller-supplied time that may still be in wire form. Keeping
// the raw text lets validation report unparseable values instead of failing
// at decode time.
type Instant struct {
	Time time.Time
	Raw  string
}

// At wraps an already parsed time
func At(t time.Time) Instant {
	return Instant{Time: t}
}

// InstantOf wraps a wire string
func InstantOf(raw string) Instant {
	return Instant{Raw: raw}
}

// IsZero reports whether no value was supplied at all
func (i Instant) IsZero() bool {
	return i.Time.IsZero() && strings.TrimSpace(i.Raw) == ""
}

// Resolve returns the parsed time
func (i Instant) Resolve(loc *time.Location) (time.Time, error) {
	if !i.Time.IsZero() {
		return i.Time, nil
	}
	return timeutil.ParseWire(i.Raw, loc)
}

// MarshalJSON encodes the parsed time in wire format, or the raw text
func (i Instant) MarshalJSON() ([]byte, error) {
	if !i.Time.IsZero() {
		return json.Marshal(timeutil.FormatWire(i.Time))
	}
	return json.Marshal(i.Raw)
}

// UnmarshalJSON keeps the raw text; parsing happens during validation
func (i *Instant) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*i = Instant{}
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*i = Instant{Raw: raw}
	return nil
}

// AppointmentDraft is the booking input before validation and normalization
type AppointmentDraft struct {
	PatientID      Ref               `json:"patientId"`
	DoctorID       Ref               `json:"doctorId"`
	ClinicID       Ref               `json:"clinicId"`
	ServiceType    Ref               `json:"serviceType"`
	StartTime      Instant           `json:"startTime"`
	EndTime        Instant           `json:"endTime"`
	Status         AppointmentStatus `json:"status,omitempty"`
	Reason         string            `json:"reason,omitempty"`
	Notes          string            `json:"notes,omitempty"`
	ChiefComplaint string            `json:"chiefComplaint,omitempty"`
	Symptoms       []string          `json:"symptoms,omitempty"`
}

// AppointmentPatch is a partial update; nil fields are left untouched
type AppointmentPatch struct {
	DoctorID       *Ref               `json:"doctorId,omitempty"`
	ServiceType    *Ref               `json:"serviceType,omitempty"`
	StartTime      *Instant           `json:"startTime,omitempty"`
	EndTime        *Instant           `json:"endTime,omitempty"`
	Status         *AppointmentStatus `json:"status,omitempty"`
	Reason         *string            `json:"reason,omitempty"`
	Notes          *string            `json:"notes,omitempty"`
	ChiefComplaint *string            `json:"chiefComplaint,omitempty"`
	VitalSigns     *VitalSigns        `json:"vitalSigns,omitempty"`
	Diagnosis      *string            `json:"diagnosis,omitempty"`
	Symptoms       []string           `json:"symptoms,omitempty"`
	MedicalHistory *string            `json:"medicalHistory,omitempty"`
}

// MedicalNotes is the editable clinical part of an appointment
type MedicalNotes struct {
	ChiefComplaint string      `json:"chiefComplaint"`
	VitalSigns     *VitalSigns `json:"vitalSigns,omitempty"`
	Diagnosis      string      `json:"diagnosis"`
	Symptoms       []string    `json:"symptoms"`
	MedicalHistory string      `json:"medicalHistory"`
	Notes          string      `json:"notes"`
}

// Patch converts the notes into a partial update
func (n MedicalNotes) Patch() AppointmentPatch {
	symptoms := n.Symptoms
	if symptoms == nil {
		symptoms = []string{}
	}
	return AppointmentPatch{
		ChiefComplaint: &n.ChiefComplaint,
		VitalSigns:     n.VitalSigns,
		Diagnosis:      &n.Diagnosis,
		Symptoms:       symptoms,
		MedicalHistory: &n.MedicalHistory,
		Notes:          &n.Notes,
	}
}

// RescheduleRequest moves an appointment to a new time
type RescheduleRequest struct {
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
	Reason    string    `json:"reason"`
}

// AppointmentFilter defines filters for listing appointments
type AppointmentFilter struct {
	ClinicID  Ref
	DoctorID  Ref
	PatientID Ref
	StartDate *time.Time
	EndDate   *time.Time
	Statuses  []AppointmentStatus
	Limit     int
	Page      int
	Sort      string
}
