package entities

import "time"

// CountBucket is one group of an aggregate breakdown
type CountBucket struct {
	Key   string `json:"key"`
	Label string `json:"label,omitempty"`
	Count int    `json:"count"`
}

// DailyCount is the number of appointments on one day
type DailyCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// AppointmentStats is the aggregate breakdown returned by the stats endpoint
type AppointmentStats struct {
	Total     int           `json:"total"`
	ByStatus  []CountBucket `json:"byStatus"`
	ByDoctor  []CountBucket `json:"byDoctor"`
	ByService []CountBucket `json:"byService"`
	Daily     []DailyCount  `json:"daily"`
	From      time.Time     `json:"from"`
	To        time.Time     `json:"to"`
}

// CountFor returns the count recorded for a status
func (s *AppointmentStats) CountFor(status AppointmentStatus) int {
	for _, b := range s.ByStatus {
		if parsed, ok := ParseAppointmentStatus(b.Key); ok && parsed == status {
			return b.Count
		}
	}
	return 0
}
