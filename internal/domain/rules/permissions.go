// Package rules holds the role/status decision table that every scheduling
// surface (calendar, list rows, details modal, API handlers) consults before
// enabling or submitting an action.
package rules

import (
	"fmt"
	"strings"

	"github.com/zatekoja/clinicdesk/internal/domain/entities"
)

// Decision is the outcome of a permission check. Reason is empty when allowed
// and otherwise holds the text shown next to the disabled control.
type Decision struct {
	Allowed bool
	Reason  string
}

func allow() Decision { return Decision{Allowed: true} }

func deny(format string, args ...any) Decision {
	return Decision{Reason: fmt.Sprintf(format, args...)}
}

// statusTargets lists the statuses each non-admin role may set.
var statusTargets = map[entities.Role][]entities.AppointmentStatus{
	entities.RoleReceptionist: {
		entities.AppointmentStatusScheduled,
		entities.AppointmentStatusCancelled,
		entities.AppointmentStatusNoShow,
	},
	entities.RoleDoctor: {
		entities.AppointmentStatusScheduled,
		entities.AppointmentStatusCompleted,
	},
	entities.RoleNurse: {
		entities.AppointmentStatusScheduled,
	},
}

// Transition decides whether role may move an appointment from one status to another.
// A Completed appointment may only be changed by an Admin. Setting the current
// status again follows the same table.
func Transition(role entities.Role, from, to entities.AppointmentStatus) Decision {
	if _, ok := entities.ParseAppointmentStatus(string(to)); !ok {
		return deny("%q is not a valid status", to)
	}
	if role == entities.RoleAdmin {
		return allow()
	}
	if role == entities.RolePatient {
		return deny("patients cannot change appointment status, please contact the clinic")
	}
	if from == entities.AppointmentStatusCompleted {
		return deny("only an Admin can change a completed appointment")
	}

	targets, known := statusTargets[role]
	if !known {
		return deny("your role cannot change appointment status")
	}
	for _, t := range targets {
		if t == to {
			return allow()
		}
	}

	switch {
	case role == entities.RoleReceptionist && to == entities.AppointmentStatusCompleted:
		return deny("only the doctor or an Admin can mark an appointment as Completed")
	case role == entities.RoleDoctor && (to == entities.AppointmentStatusCancelled || to == entities.AppointmentStatusNoShow):
		return deny("doctors cannot cancel appointments or mark them as No Show")
	}
	return deny("%ss can only set status to %s", strings.ToLower(string(role)), joinStatuses(targets))
}

// CanTransition reports whether role may move an appointment from one status to another
func CanTransition(role entities.Role, from, to entities.AppointmentStatus) bool {
	return Transition(role, from, to).Allowed
}

// TransitionDenial returns the tooltip for a disabled status button, or "" when allowed
func TransitionDenial(role entities.Role, from, to entities.AppointmentStatus) string {
	return Transition(role, from, to).Reason
}

// AllowedTargets returns every status role may set from the current one, in display order
func AllowedTargets(role entities.Role, from entities.AppointmentStatus) []entities.AppointmentStatus {
	var out []entities.AppointmentStatus
	for _, to := range entities.AllAppointmentStatuses {
		if CanTransition(role, from, to) {
			out = append(out, to)
		}
	}
	return out
}

// Reschedule decides whether role may move an appointment in time
func Reschedule(role entities.Role, status entities.AppointmentStatus) Decision {
	switch role {
	case entities.RoleAdmin, entities.RoleReceptionist, entities.RoleDoctor:
		if status.IsClosed() {
			return deny("%s appointments cannot be rescheduled", strings.ToLower(string(status)))
		}
		return allow()
	case entities.RolePatient:
		if status != entities.AppointmentStatusScheduled {
			return deny("patients can only reschedule appointments that are still Scheduled")
		}
		return allow()
	}
	return deny("your role cannot reschedule appointments")
}

// CanReschedule reports whether role may reschedule an appointment in status
func CanReschedule(role entities.Role, status entities.AppointmentStatus) bool {
	return Reschedule(role, status).Allowed
}

// RescheduleDenial returns why rescheduling is disabled, or ""
func RescheduleDenial(role entities.Role, status entities.AppointmentStatus) string {
	return Reschedule(role, status).Reason
}

// Delete decides whether role may delete an appointment
func Delete(role entities.Role, status entities.AppointmentStatus) Decision {
	if role != entities.RoleAdmin && role != entities.RoleReceptionist {
		return deny("only an Admin or Receptionist can delete appointments")
	}
	if status == entities.AppointmentStatusCompleted {
		return deny("completed appointments cannot be deleted")
	}
	return allow()
}

// CanDelete reports whether role may delete an appointment in status
func CanDelete(role entities.Role, status entities.AppointmentStatus) bool {
	return Delete(role, status).Allowed
}

// DeleteDenial returns why deleting is disabled, or ""
func DeleteDenial(role entities.Role, status entities.AppointmentStatus) string {
	return Delete(role, status).Reason
}

// EditNotes decides whether role may edit the medical notes of an appointment
func EditNotes(role entities.Role, status entities.AppointmentStatus) Decision {
	switch role {
	case entities.RoleAdmin:
		return allow()
	case entities.RoleDoctor, entities.RoleNurse:
		if status == entities.AppointmentStatusCancelled || status == entities.AppointmentStatusNoShow {
			return deny("notes cannot be edited on a %s appointment", strings.ToLower(string(status)))
		}
		return allow()
	}
	return deny("only clinical staff can edit medical notes")
}

// CanEditNotes reports whether role may edit the medical notes
func CanEditNotes(role entities.Role, status entities.AppointmentStatus) bool {
	return EditNotes(role, status).Allowed
}

// CheckIn decides whether role may check a patient in or out
func CheckIn(role entities.Role, status entities.AppointmentStatus) Decision {
	switch role {
	case entities.RoleAdmin, entities.RoleReceptionist, entities.RoleNurse:
	default:
		return deny("only front-desk staff can check patients in or out")
	}
	if status != entities.AppointmentStatusScheduled && status != entities.AppointmentStatusConfirmed {
		return deny("only Scheduled or Confirmed appointments can be checked in or out")
	}
	return allow()
}

func CanCheckIn(role entities.Role, status entities.AppointmentStatus) bool {
	return CheckIn(role, status).Allowed
}

// SendReminder decides whether role may send a reminder for an appointment
func SendReminder(role entities.Role, status entities.AppointmentStatus) Decision {
	if role != entities.RoleAdmin && role != entities.RoleReceptionist {
		return deny("only an Admin or Receptionist can send reminders")
	}
	if status.IsClosed() {
		return deny("reminders are only sent for upcoming appointments")
	}
	return allow()
}

// ViewClinic decides whether role may read clinic details, staff and statistics
func ViewClinic(role entities.Role) Decision {
	if role == entities.RolePatient || role == "" {
		return deny("only clinic staff can view clinic administration")
	}
	return allow()
}

// ManageClinic decides whether role may change settings, staff or activation
func ManageClinic(role entities.Role) Decision {
	if role != entities.RoleAdmin {
		return deny("only an Admin can manage the clinic")
	}
	return allow()
}

func joinStatuses(statuses []entities.AppointmentStatus) string {
	parts := make([]string, len(statuses))
	for i, s := range statuses {
		parts[i] = string(s)
	}
	switch len(parts) {
	case 0:
		return "nothing"
	case 1:
		return parts[0]
	}
	return strings.Join(parts[:len(parts)-1], ", ") + " or " + parts[len(parts)-1]
}
