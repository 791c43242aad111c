package rules

import (
	"fmt"
	"time"

	apperrors "github.com/zatekoja/clinicdesk/pkg/errors"
	"github.com/zatekoja/clinicdesk/pkg/timeutil"
)

// DefaultSlotLength is applied when a calendar selection has no length
const DefaultSlotLength = 30 * time.Minute

// SlotPolicy bounds the instants a user may pick on the calendar
type SlotPolicy struct {
	// OpensAt and ClosesAt are minutes since local midnight
	OpensAt       int
	ClosesAt      int
	DefaultLength time.Duration
	Location      *time.Location
}

// DefaultSlotPolicy allows 08:00-18:00 in the server's local time
func DefaultSlotPolicy() SlotPolicy {
	return SlotPolicy{
		OpensAt:       8 * 60,
		ClosesAt:      18 * 60,
		DefaultLength: DefaultSlotLength,
		Location:      time.Local,
	}
}

// NewSlotPolicy builds a policy from HH:MM business hours
func NewSlotPolicy(opens, closes string, defaultLength time.Duration, loc *time.Location) (SlotPolicy, error) {
	o, err := time.Parse(timeutil.ClockLayout, opens)
	if err != nil {
		return SlotPolicy{}, fmt.Errorf("invalid opening time %q: %w", opens, err)
	}
	c, err := time.Parse(timeutil.ClockLayout, closes)
	if err != nil {
		return SlotPolicy{}, fmt.Errorf("invalid closing time %q: %w", closes, err)
	}
	p := SlotPolicy{
		OpensAt:       timeutil.MinutesOfDay(o),
		ClosesAt:      timeutil.MinutesOfDay(c),
		DefaultLength: defaultLength,
		Location:      loc,
	}
	if p.ClosesAt <= p.OpensAt {
		return SlotPolicy{}, fmt.Errorf("business hours %s-%s are empty", opens, closes)
	}
	if p.DefaultLength <= 0 {
		p.DefaultLength = DefaultSlotLength
	}
	if p.Location == nil {
		p.Location = time.Local
	}
	return p, nil
}

func clock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// Check validates a selected range and returns it in the policy location.
// A missing or zero-length end gets the default length.
func (p SlotPolicy) Check(start, end, now time.Time) (time.Time, time.Time, error) {
	if start.IsZero() {
		return time.Time{}, time.Time{}, apperrors.NewMissingFieldsError([]string{"startTime"})
	}
	loc := p.Location
	if loc == nil {
		loc = time.Local
	}
	length := p.DefaultLength
	if length <= 0 {
		length = DefaultSlotLength
	}

	start = start.In(loc)
	if end.IsZero() || end.Equal(start) {
		end = start.Add(length)
	}
	end = end.In(loc)

	if end.Before(start) {
		return time.Time{}, time.Time{}, apperrors.NewValidationError("end time must be after start time")
	}
	if start.Before(now) {
		return time.Time{}, time.Time{}, apperrors.NewValidationError("cannot schedule appointments in the past")
	}
	if timeutil.MinutesOfDay(start) < p.OpensAt {
		return time.Time{}, time.Time{}, apperrors.NewValidationError(
			fmt.Sprintf("appointments must start at or after %s", clock(p.OpensAt)))
	}
	closing := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, loc).Add(time.Duration(p.ClosesAt) * time.Minute)
	if end.After(closing) {
		return time.Time{}, time.Time{}, apperrors.NewValidationError(
			fmt.Sprintf("appointments must end by %s", clock(p.ClosesAt)))
	}
	return start, end, nil
}
