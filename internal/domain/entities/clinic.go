package entities

import "time"

// Clinic represents a clinic tenant
type Clinic struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Address   string         `json:"address,omitempty"`
	Phone     string         `json:"phone,omitempty"`
	Email     string         `json:"email,omitempty"`
	IsActive  bool           `json:"isActive"`
	Settings  ClinicSettings `json:"settings"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// ClinicSettings holds the scheduling preferences of a clinic
type ClinicSettings struct {
	WorkingHoursStart   string `json:"workingHoursStart,omitempty"`
	WorkingHoursEnd     string `json:"workingHoursEnd,omitempty"`
	SlotDurationMinutes int    `json:"slotDurationMinutes,omitempty"`
	Timezone            string `json:"timezone,omitempty"`
	Currency            string `json:"currency,omitempty"`
	ReminderHoursBefore int    `json:"reminderHoursBefore,omitempty"`
}

// Subscription describes the clinic's plan
type Subscription struct {
	Plan      string    `json:"plan"`
	Status    string    `json:"status"`
	ExpiresAt time.Time `json:"expiresAt"`
	MaxStaff  int       `json:"maxStaff,omitempty"`
}

// ClinicStatistics is the clinic-level summary shown on the admin dashboard
type ClinicStatistics struct {
	TotalPatients     int     `json:"totalPatients"`
	TotalDoctors      int     `json:"totalDoctors"`
	TotalStaff        int     `json:"totalStaff"`
	AppointmentsToday int     `json:"appointmentsToday"`
	AppointmentsMonth int     `json:"appointmentsMonth"`
	Revenue           float64 `json:"revenue"`
}

// StaffMember is a user attached to a clinic
type StaffMember struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Role      Role   `json:"role"`
	IsActive  bool   `json:"isActive"`
}

// StaffInvite adds a user to a clinic
type StaffInvite struct {
	Email     string `json:"email"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Role      Role   `json:"role"`
}
