package clinicapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/zatekoja/clinicdesk/internal/domain/entities"
	"github.com/zatekoja/clinicdesk/internal/domain/rules"
	"github.com/zatekoja/clinicdesk/pkg/timeutil"
)

// flexString accepts a JSON string or number (vital signs arrive as either)
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", string(data))
	}
	*f = flexString(n.String())
	return nil
}

type vitalSignsDTO struct {
	BloodPressure   flexString `json:"bloodPressure"`
	HeartRate       flexString `json:"heartRate"`
	Temperature     flexString `json:"temperature"`
	RespiratoryRate flexString `json:"respiratoryRate"`
}

type rescheduleDTO struct {
	ID                entities.Ref `json:"_id"`
	PreviousStartTime string       `json:"previousStartTime"`
	PreviousEndTime   string       `json:"previousEndTime"`
	Reason            string       `json:"reason"`
	RescheduledBy     entities.Ref `json:"rescheduledBy"`
	RescheduledAt     string       `json:"rescheduledAt"`
}

// appointmentDTO is an appointment as the backend serializes it
type appointmentDTO struct {
	MongoID           entities.Ref    `json:"_id"`
	ID                entities.Ref    `json:"id"`
	PatientID         entities.Ref    `json:"patientId"`
	DoctorID          entities.Ref    `json:"doctorId"`
	ClinicID          entities.Ref    `json:"clinicId"`
	StartTime         string          `json:"startTime"`
	EndTime           string          `json:"endTime"`
	Status            string          `json:"status"`
	ServiceType       entities.Ref    `json:"serviceType"`
	Reason            string          `json:"reason"`
	Notes             string          `json:"notes"`
	ChiefComplaint    string          `json:"chiefComplaint"`
	VitalSigns        *vitalSignsDTO  `json:"vitalSigns"`
	Diagnosis         string          `json:"diagnosis"`
	Symptoms          []string        `json:"symptoms"`
	MedicalHistory    string          `json:"medicalHistory"`
	RescheduleHistory []rescheduleDTO `json:"rescheduleHistory"`
	CreatedAt         string          `json:"createdAt"`
	UpdatedAt         string          `json:"updatedAt"`
	CreatedBy         entities.Ref    `json:"createdBy"`
}

func optionalTime(value string, loc *time.Location) time.Time {
	if strings.TrimSpace(value) == "" {
		return time.Time{}
	}
	t, err := timeutil.ParseWire(value, loc)
	if err != nil {
		return time.Time{}
	}
	return t
}

func (d *appointmentDTO) toEntity(loc *time.Location) (*entities.Appointment, error) {
	id := d.MongoID.ID
	if id == "" {
		id = d.ID.ID
	}
	if id == "" {
		return nil, fmt.Errorf("appointment without id")
	}

	start, err := timeutil.ParseWire(d.StartTime, loc)
	if err != nil {
		return nil, fmt.Errorf("appointment %s: startTime: %w", id, err)
	}
	end, err := timeutil.ParseWire(d.EndTime, loc)
	if err != nil {
		return nil, fmt.Errorf("appointment %s: endTime: %w", id, err)
	}

	status, ok := entities.ParseAppointmentStatus(d.Status)
	if !ok {
		status = entities.AppointmentStatus(strings.TrimSpace(d.Status))
	}

	a := &entities.Appointment{
		ID:             id,
		PatientID:      d.PatientID,
		DoctorID:       d.DoctorID,
		ClinicID:       d.ClinicID,
		StartTime:      start,
		EndTime:        end,
		Status:         status,
		ServiceType:    d.ServiceType,
		Reason:         d.Reason,
		Notes:          d.Notes,
		ChiefComplaint: d.ChiefComplaint,
		Diagnosis:      d.Diagnosis,
		Symptoms:       d.Symptoms,
		MedicalHistory: d.MedicalHistory,
		CreatedAt:      optionalTime(d.CreatedAt, loc),
		UpdatedAt:      optionalTime(d.UpdatedAt, loc),
		CreatedBy:      d.CreatedBy,
	}

	if d.VitalSigns != nil {
		vs := entities.VitalSigns{
			BloodPressure:   string(d.VitalSigns.BloodPressure),
			HeartRate:       string(d.VitalSigns.HeartRate),
			Temperature:     string(d.VitalSigns.Temperature),
			RespiratoryRate: string(d.VitalSigns.RespiratoryRate),
		}
		if !vs.IsZero() {
			a.VitalSigns = &vs
		}
	}

	for _, h := range d.RescheduleHistory {
		a.RescheduleHistory = append(a.RescheduleHistory, entities.RescheduleEntry{
			ID:                h.ID.ID,
			PreviousStartTime: optionalTime(h.PreviousStartTime, loc),
			PreviousEndTime:   optionalTime(h.PreviousEndTime, loc),
			Reason:            h.Reason,
			RescheduledBy:     h.RescheduledBy,
			RescheduledAt:     optionalTime(h.RescheduledAt, loc),
		})
	}

	return a, nil
}

// appointmentEnvelope decodes either a bare appointment or {appointment: {...}} / {data: {...}}
type appointmentEnvelope struct {
	appointment *appointmentDTO
}

func (e *appointmentEnvelope) UnmarshalJSON(data []byte) error {
	var wrapped struct {
		Appointment *appointmentDTO `json:"appointment"`
		Data        *appointmentDTO `json:"data"`
	}
	if err := json.Unmarshal(data, &wrapped); err == nil {
		switch {
		case wrapped.Appointment != nil:
			e.appointment = wrapped.Appointment
			return nil
		case wrapped.Data != nil && (wrapped.Data.MongoID.ID != "" || wrapped.Data.ID.ID != ""):
			e.appointment = wrapped.Data
			return nil
		}
	}
	var bare appointmentDTO
	if err := json.Unmarshal(data, &bare); err != nil {
		return err
	}
	e.appointment = &bare
	return nil
}

// appointmentList decodes a bare array or {data|appointments: [...]}
type appointmentList []appointmentDTO

func (l *appointmentList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var items []appointmentDTO
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		*l = items
		return nil
	}
	var wrapped struct {
		Data         []appointmentDTO `json:"data"`
		Appointments []appointmentDTO `json:"appointments"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return err
	}
	if wrapped.Appointments != nil {
		*l = wrapped.Appointments
	} else {
		*l = wrapped.Data
	}
	return nil
}

// createRequest is the normalized create payload
type createRequest struct {
	PatientID      string   `json:"patientId"`
	DoctorID       string   `json:"doctorId"`
	ClinicID       string   `json:"clinicId"`
	ServiceType    string   `json:"serviceType"`
	StartTime      string   `json:"startTime"`
	EndTime        string   `json:"endTime"`
	Status         string   `json:"status,omitempty"`
	Reason         string   `json:"reason"`
	Notes          string   `json:"notes,omitempty"`
	ChiefComplaint string   `json:"chiefComplaint,omitempty"`
	Symptoms       []string `json:"symptoms,omitempty"`
}

func newCreateRequest(p *rules.PreparedDraft) createRequest {
	return createRequest{
		PatientID:      p.PatientID,
		DoctorID:       p.DoctorID,
		ClinicID:       p.ClinicID,
		ServiceType:    p.ServiceType,
		StartTime:      timeutil.FormatWire(p.StartTime),
		EndTime:        timeutil.FormatWire(p.EndTime),
		Status:         string(p.Status),
		Reason:         p.Reason,
		Notes:          p.Draft.Notes,
		ChiefComplaint: p.Draft.ChiefComplaint,
		Symptoms:       p.Draft.Symptoms,
	}
}

// updateRequest is the wire form of a partial update
type updateRequest struct {
	DoctorID       *string              `json:"doctorId,omitempty"`
	ServiceType    *string              `json:"serviceType,omitempty"`
	StartTime      *string              `json:"startTime,omitempty"`
	EndTime        *string              `json:"endTime,omitempty"`
	Status         *string              `json:"status,omitempty"`
	Reason         *string              `json:"reason,omitempty"`
	Notes          *string              `json:"notes,omitempty"`
	ChiefComplaint *string              `json:"chiefComplaint,omitempty"`
	VitalSigns     *entities.VitalSigns `json:"vitalSigns,omitempty"`
	Diagnosis      *string              `json:"diagnosis,omitempty"`
	Symptoms       *[]string            `json:"symptoms,omitempty"`
	MedicalHistory *string              `json:"medicalHistory,omitempty"`
}

type rescheduleRequest struct {
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
	Reason    string `json:"reason"`
}

type slotDTO struct {
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
	Available *bool  `json:"available"`
}

// slotList decodes {availableSlots: [...]} where items are objects or clock strings
type slotList struct {
	items []slotDTO
}

func (s *slotList) UnmarshalJSON(data []byte) error {
	var wrapped struct {
		AvailableSlots []json.RawMessage `json:"availableSlots"`
		Slots          []json.RawMessage `json:"slots"`
	}
	data = bytes.TrimSpace(data)
	var raw []json.RawMessage
	if len(data) > 0 && data[0] == '[' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
	} else {
		if err := json.Unmarshal(data, &wrapped); err != nil {
			return err
		}
		raw = wrapped.AvailableSlots
		if raw == nil {
			raw = wrapped.Slots
		}
	}

	for _, item := range raw {
		var clock string
		if err := json.Unmarshal(item, &clock); err == nil {
			s.items = append(s.items, slotDTO{StartTime: clock})
			continue
		}
		var obj slotDTO
		if err := json.Unmarshal(item, &obj); err != nil {
			return fmt.Errorf("invalid slot %s: %w", string(item), err)
		}
		s.items = append(s.items, obj)
	}
	return nil
}

// toSlots resolves slot values against day; bare "HH:MM" values get slotLength
func (s slotList) toSlots(day time.Time, slotLength time.Duration) []entities.AvailabilitySlot {
	loc := day.Location()
	out := make([]entities.AvailabilitySlot, 0, len(s.items))
	for _, item := range s.items {
		start, ok := resolveSlotTime(item.StartTime, day, loc)
		if !ok {
			continue
		}
		end, ok := resolveSlotTime(item.EndTime, day, loc)
		if !ok || !end.After(start) {
			end = start.Add(slotLength)
		}
		available := true
		if item.Available != nil {
			available = *item.Available
		}
		out = append(out, entities.AvailabilitySlot{StartTime: start, EndTime: end, Available: available})
	}
	return out
}

func resolveSlotTime(value string, day time.Time, loc *time.Location) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	if len(value) <= len("15:04") {
		t, err := timeutil.CombineDateTime(timeutil.FormatDate(day), value, loc)
		return t, err == nil
	}
	t, err := timeutil.ParseWire(value, loc)
	return t, err == nil
}

type conflictRequest struct {
	DoctorID             string `json:"doctorId,omitempty"`
	PatientID            string `json:"patientId,omitempty"`
	StartTime            string `json:"startTime"`
	EndTime              string `json:"endTime"`
	ExcludeAppointmentID string `json:"excludeAppointmentId,omitempty"`
}

type conflictResponse struct {
	HasConflicts bool            `json:"hasConflicts"`
	Conflicts    appointmentList `json:"conflicts"`
}

// bucketList decodes aggregate breakdowns sent either as [{_id, count}] or {key: count}
type bucketList []entities.CountBucket

func (b *bucketList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*b = nil
		return nil
	}
	if len(data) > 0 && data[0] == '{' {
		var counts map[string]int
		if err := json.Unmarshal(data, &counts); err != nil {
			return err
		}
		out := make(bucketList, 0, len(counts))
		for k, v := range counts {
			out = append(out, entities.CountBucket{Key: k, Count: v})
		}
		slices.SortFunc(out, func(x, y entities.CountBucket) int { return strings.Compare(x.Key, y.Key) })
		*b = out
		return nil
	}

	var items []struct {
		MongoID entities.Ref `json:"_id"`
		Key     string       `json:"key"`
		Status  string       `json:"status"`
		Name    string       `json:"name"`
		Label   string       `json:"label"`
		Count   int          `json:"count"`
	}
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}
	out := make(bucketList, 0, len(items))
	for _, it := range items {
		key := it.MongoID.ID
		if key == "" {
			key = it.Key
		}
		if key == "" {
			key = it.Status
		}
		label := it.Label
		if label == "" {
			label = it.Name
		}
		if label == "" {
			label = it.MongoID.Name
		}
		out = append(out, entities.CountBucket{Key: key, Label: label, Count: it.Count})
	}
	*b = out
	return nil
}

type dailyDTO struct {
	MongoID entities.Ref `json:"_id"`
	Date    string       `json:"date"`
	Count   int          `json:"count"`
}

type statsDTO struct {
	Total     *int        `json:"total"`
	ByStatus  bucketList  `json:"byStatus"`
	ByDoctor  bucketList  `json:"byDoctor"`
	ByService bucketList  `json:"byService"`
	Daily     []dailyDTO  `json:"daily"`
	Stats     *statsInner `json:"stats"`
}

type statsInner struct {
	Total     *int       `json:"total"`
	ByStatus  bucketList `json:"byStatus"`
	ByDoctor  bucketList `json:"byDoctor"`
	ByService bucketList `json:"byService"`
	Daily     []dailyDTO `json:"daily"`
}

func (d *statsDTO) toEntity(from, to time.Time) *entities.AppointmentStats {
	inner := statsInner{Total: d.Total, ByStatus: d.ByStatus, ByDoctor: d.ByDoctor, ByService: d.ByService, Daily: d.Daily}
	if d.Stats != nil {
		inner = *d.Stats
	}

	stats := &entities.AppointmentStats{
		ByStatus:  []entities.CountBucket(inner.ByStatus),
		ByDoctor:  []entities.CountBucket(inner.ByDoctor),
		ByService: []entities.CountBucket(inner.ByService),
		From:      from,
		To:        to,
	}
	for _, day := range inner.Daily {
		date := day.Date
		if date == "" {
			date = day.MongoID.ID
		}
		stats.Daily = append(stats.Daily, entities.DailyCount{Date: date, Count: day.Count})
	}

	if inner.Total != nil {
		stats.Total = *inner.Total
	} else {
		for _, bucket := range stats.ByStatus {
			stats.Total += bucket.Count
		}
	}
	return stats
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
