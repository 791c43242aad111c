package entities

import "strings"

// Role determines which status transitions and destructive actions a user may perform
type Role string

const (
	RoleAdmin        Role = "Admin"
	RoleDoctor       Role = "Doctor"
	RoleReceptionist Role = "Receptionist"
	RoleNurse        Role = "Nurse"
	RolePatient      Role = "Patient"
)

// ParseRole accepts role names case-insensitively
func ParseRole(s string) (Role, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "admin", "administrator":
		return RoleAdmin, true
	case "doctor":
		return RoleDoctor, true
	case "receptionist":
		return RoleReceptionist, true
	case "nurse":
		return RoleNurse, true
	case "patient":
		return RolePatient, true
	}
	return "", false
}

// IsStaff reports whether the role belongs to clinic staff
func (r Role) IsStaff() bool {
	switch r {
	case RoleAdmin, RoleDoctor, RoleReceptionist, RoleNurse:
		return true
	}
	return false
}
