package main

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/zatekoja/clinicdesk/internal/application/services"
	"github.com/zatekoja/clinicdesk/internal/domain/entities"
	"github.com/zatekoja/clinicdesk/pkg/timeutil"
)

func appointmentsCmd(current func() *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "appointments",
		Aliases: []string{"appt"},
		Short:   "List and change appointments",
	}

	// appointments list
	var (
		doctorID, patientID string
		statuses            []string
		from, to, sortKey   string
		desc, asJSON        bool
	)
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List appointments the acting user may see",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := current()
			query := services.BoardQuery{DoctorID: doctorID, PatientID: patientID}

			for _, raw := range statuses {
				for _, part := range strings.Split(raw, ",") {
					status, ok := entities.ParseAppointmentStatus(part)
					if !ok {
						return fmt.Errorf("unknown status %q", part)
					}
					query.Statuses = append(query.Statuses, status)
				}
			}

			var err error
			if query.From, err = a.parseTime(from); err != nil {
				return err
			}
			if query.To, err = a.parseTime(to); err != nil {
				return err
			}
			if sortKey != "" {
				key, ok := services.ParseSortKey(sortKey)
				if !ok {
					return fmt.Errorf("cannot sort by %q", sortKey)
				}
				query.Sort = services.SortState{Key: key, Direction: services.SortAsc}
				if desc {
					query.Sort.Direction = services.SortDesc
				}
			}

			board, err := a.board.Load(a.ctx(cmd), a.session, query)
			if err != nil {
				return err
			}
			if asJSON {
				return a.printJSON(board)
			}

			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tWHEN\tPATIENT\tDOCTOR\tSERVICE\tSTATUS")
			for _, row := range board.Rows {
				appt := row.Appointment
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
					appt.ID, row.TimeLabel, appt.PatientID.Display(), appt.DoctorID.Display(),
					appt.ServiceType.Display(), appt.Status)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%d appointment(s)\n", board.Total)
			return nil
		},
	}
	listCmd.Flags().StringVar(&doctorID, "doctor", "", "Only this doctor's appointments")
	listCmd.Flags().StringVar(&patientID, "patient", "", "Only this patient's appointments")
	listCmd.Flags().StringSliceVar(&statuses, "status", nil, "Only these statuses (repeatable)")
	listCmd.Flags().StringVar(&from, "from", "", "Range start (YYYY-MM-DD or RFC 3339)")
	listCmd.Flags().StringVar(&to, "to", "", "Range end (YYYY-MM-DD or RFC 3339)")
	listCmd.Flags().StringVar(&sortKey, "sort", "", "Sort column: date, patient, doctor, service or status")
	listCmd.Flags().BoolVar(&desc, "desc", false, "Sort descending")
	listCmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	cmd.AddCommand(listCmd)

	// appointments get
	cmd.AddCommand(&cobra.Command{
		Use:   "get <id>",
		Short: "Show an appointment with the actions the acting user has",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := current()
			view, err := a.details.View(a.ctx(cmd), a.session, args[0])
			if err != nil {
				return err
			}
			return a.printJSON(view)
		},
	})

	// appointments status
	var knownStatus string
	statusCmd := &cobra.Command{
		Use:   "status <id> <status>",
		Short: "Move an appointment to another status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := current()
			to, ok := entities.ParseAppointmentStatus(args[1])
			if !ok {
				return fmt.Errorf("unknown status %q", args[1])
			}
			change := services.StatusChange{ID: args[0], To: to}
			if knownStatus != "" {
				if change.From, ok = entities.ParseAppointmentStatus(knownStatus); !ok {
					return fmt.Errorf("unknown status %q", knownStatus)
				}
			}
			appt, err := a.scheduling.ChangeStatus(a.ctx(cmd), a.session, change)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%s is now %s\n", appt.ID, appt.Status)
			return nil
		},
	}
	statusCmd.Flags().StringVar(&knownStatus, "current", "", "Status you last saw; refused if the appointment has since changed")
	cmd.AddCommand(statusCmd)

	// appointments reschedule
	var form services.RescheduleForm
	rescheduleCmd := &cobra.Command{
		Use:   "reschedule <id>",
		Short: "Move an appointment to a new date and time",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := current()
			view, err := a.details.Reschedule(a.ctx(cmd), a.session, args[0], form)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%s moved to %s\n", view.Appointment.ID, view.TimeLabel)
			for _, warning := range view.Warnings {
				fmt.Fprintln(a.out, "warning:", warning)
			}
			return nil
		},
	}
	rescheduleCmd.Flags().StringVar(&form.Date, "date", "", "New date (YYYY-MM-DD)")
	rescheduleCmd.Flags().StringVar(&form.Time, "time", "", "New start time (HH:MM)")
	rescheduleCmd.Flags().StringVar(&form.Reason, "reason", "", "Why the appointment moves")
	cmd.AddCommand(rescheduleCmd)

	// appointments delete
	var deleteStatus string
	deleteCmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an appointment that has not happened yet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := current()
			var known entities.AppointmentStatus
			if deleteStatus != "" {
				var ok bool
				if known, ok = entities.ParseAppointmentStatus(deleteStatus); !ok {
					return fmt.Errorf("unknown status %q", deleteStatus)
				}
			}
			if err := a.scheduling.Delete(a.ctx(cmd), a.session, args[0], known); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%s deleted\n", args[0])
			return nil
		},
	}
	deleteCmd.Flags().StringVar(&deleteStatus, "current", "", "Status you last saw; refused if the appointment has since changed")
	cmd.AddCommand(deleteCmd)

	return cmd
}

func slotsCmd(current func() *app) *cobra.Command {
	var doctorID, date string
	cmd := &cobra.Command{
		Use:   "slots",
		Short: "List a doctor's free slots for a day",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := current()
			if doctorID == "" {
				return fmt.Errorf("--doctor is required")
			}
			day, err := a.parseTime(date)
			if err != nil {
				return err
			}
			if day.IsZero() {
				day = time.Now().In(a.location)
			}

			slots, err := a.scheduling.AvailableSlots(a.ctx(cmd), doctorID, timeutil.StartOfDay(day))
			if err != nil {
				return err
			}
			for _, slot := range slots {
				if !slot.Available {
					continue
				}
				fmt.Fprintln(a.out, timeutil.FormatRange(slot.StartTime.In(a.location), slot.EndTime.In(a.location)))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&doctorID, "doctor", "", "Doctor id")
	cmd.Flags().StringVar(&date, "date", "", "Day to search (YYYY-MM-DD); defaults to today")
	return cmd
}

func statsCmd(current func() *app) *cobra.Command {
	var from, to string
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print appointment statistics for the clinic",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := current()
			start, err := a.parseTime(from)
			if err != nil {
				return err
			}
			end, err := a.parseTime(to)
			if err != nil {
				return err
			}
			stats, err := a.scheduling.Stats(a.ctx(cmd), a.session.ActiveClinicID, start, end)
			if err != nil {
				return err
			}
			return a.printJSON(stats)
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "Range start")
	cmd.Flags().StringVar(&to, "to", "", "Range end")
	return cmd
}

func tokenCmd(current func() *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage API bearer tokens",
	}

	var ttl time.Duration
	issueCmd := &cobra.Command{
		Use:   "issue",
		Short: "Sign a token for --user with --role",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := current()
			token, err := a.auth.IssueToken(a.session.UserID, a.session.Role, a.session.ActiveClinicID, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, token)
			return nil
		},
	}
	issueCmd.Flags().DurationVar(&ttl, "ttl", 12*time.Hour, "Token lifetime")
	cmd.AddCommand(issueCmd)

	return cmd
}

func (a *app) parseTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := timeutil.ParseWire(value, a.location)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q: %w", value, err)
	}
	return t, nil
}
