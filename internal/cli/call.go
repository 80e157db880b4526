package cli

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/tgienger/taskboard/internal/models"
)

// CallOptions holds flags for the call subcommands
type CallOptions struct {
	*RootOptions
	At     string
	Phone  string
	Task   string
	Reason string
	Notes  string
}

// NewCallCommand groups the scheduled call subcommands
func NewCallCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CallOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "call",
		Short: "Schedule and follow up on calls",
	}

	schedule := &cobra.Command{
		Use:   "schedule <contact>",
		Short: "Book a call with a contact",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCallSchedule(cmd, opts, strings.Join(args, " "))
		},
	}
	schedule.Flags().StringVar(&opts.At, "at", "", "when (YYYY-MM-DD HH:MM)")
	schedule.Flags().StringVar(&opts.Phone, "phone", "", "contact phone number")
	schedule.Flags().StringVar(&opts.Task, "task", "", "task the call is about")
	schedule.Flags().StringVar(&opts.Reason, "reason", "", "what the call is about")
	_ = schedule.MarkFlagRequired("at")

	list := &cobra.Command{
		Use:   "list",
		Short: "List calls, soonest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCallList(cmd, opts)
		},
	}

	complete := &cobra.Command{
		Use:   "complete <id>",
		Short: "Mark a call as done",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCallComplete(cmd, opts, args[0])
		},
	}
	complete.Flags().StringVar(&opts.Notes, "notes", "", "notes taken during the call")

	reschedule := &cobra.Command{
		Use:   "reschedule <id>",
		Short: "Move a call to a new time",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCallReschedule(cmd, opts, args[0])
		},
	}
	reschedule.Flags().StringVar(&opts.At, "at", "", "new time (YYYY-MM-DD HH:MM)")
	reschedule.Flags().StringVar(&opts.Notes, "notes", "", "notes on why it moved")
	_ = reschedule.MarkFlagRequired("at")

	cmd.AddCommand(schedule, list, complete, reschedule)
	return cmd
}

func runCallSchedule(cmd *cobra.Command, opts *CallOptions, contact string) error {
	at, err := models.ParseDueDate(opts.At)
	if err != nil {
		return err
	}

	s, err := openSession(opts.RootOptions)
	if err != nil {
		return err
	}
	defer s.Close()

	call, err := s.coord.ScheduleCall(cmd.Context(), models.Call{
		TaskID:       opts.Task,
		ContactName:  contact,
		ContactPhone: opts.Phone,
		ScheduledAt:  at.UTC(),
		Reason:       opts.Reason,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Scheduled %s: %s\n", call.ID, call.ContactName)
	return nil
}

func runCallList(cmd *cobra.Command, opts *CallOptions) error {
	s, err := openSession(opts.RootOptions)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.coord.LoadCalls(cmd.Context()); err != nil {
		return err
	}
	calls := s.repo.Calls.Snapshot()
	slices.SortStableFunc(calls, func(a, b models.Call) int {
		return a.ScheduledAt.Compare(b.ScheduledAt)
	})
	printCalls(cmd.OutOrStdout(), calls)
	return nil
}

func runCallComplete(cmd *cobra.Command, opts *CallOptions, id string) error {
	s, err := openSession(opts.RootOptions)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.coord.LoadCalls(cmd.Context()); err != nil {
		return err
	}
	call, err := s.coord.CompleteCall(cmd.Context(), id, opts.Notes)
	if err != nil {
		return fmt.Errorf("complete call %s: %w", id, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Completed %s: %s\n", call.ID, call.ContactName)
	return nil
}

func runCallReschedule(cmd *cobra.Command, opts *CallOptions, id string) error {
	at, err := models.ParseDueDate(opts.At)
	if err != nil {
		return err
	}

	s, err := openSession(opts.RootOptions)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.coord.LoadCalls(cmd.Context()); err != nil {
		return err
	}
	call, err := s.coord.RescheduleCall(cmd.Context(), id, *at, opts.Notes)
	if err != nil {
		return fmt.Errorf("reschedule call %s: %w", id, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Rescheduled %s to %s\n", call.ID, call.ScheduledAt.Local().Format(models.DueDateLayout+" 15:04"))
	return nil
}

func printCalls(w io.Writer, calls []models.Call) {
	if len(calls) == 0 {
		fmt.Fprintln(w, "No calls scheduled")
		return
	}
	for _, c := range calls {
		when := c.ScheduledAt.Local().Format(models.DueDateLayout + " 15:04")
		fmt.Fprintf(w, "%s  %-11s  %s (%s)  %s", c.ID, c.Status, when, humanize.Time(c.ScheduledAt), c.ContactName)
		if c.ContactPhone != "" {
			fmt.Fprintf(w, " <%s>", c.ContactPhone)
		}
		if c.Reason != "" {
			fmt.Fprintf(w, "  about: %s", c.Reason)
		}
		if c.Notes != "" {
			fmt.Fprintf(w, "  notes: %s", c.Notes)
		}
		fmt.Fprintln(w)
	}
}
