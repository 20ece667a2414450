package cli

import (
	"fmt"

	"github.com/alexanderramin/cadence/internal/cli/formatter"
	"github.com/alexanderramin/cadence/internal/domain"
	"github.com/alexanderramin/cadence/internal/service"
	"github.com/spf13/cobra"
)

func newScheduleCmd(st *state) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Manage busy time",
	}

	cmd.AddCommand(
		newScheduleSetCmd(st),
		newScheduleShowCmd(st),
	)

	return cmd
}

func newScheduleSetCmd(st *state) *cobra.Command {
	var (
		week, text string
		busy       []string
	)

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Replace the busy time of a week",
		Example: `  cadence schedule set --busy 2025-06-16T10:00/2025-06-16T11:00/standup
  cadence schedule set --text "dentist tuesday 2-3pm, offsite all day friday"`,
		RunE: st.withApp(func(cmd *cobra.Command, args []string, s *session) error {
			if text != "" && len(busy) > 0 {
				return fmt.Errorf("use either --busy or --text, not both")
			}
			ctx := cmd.Context()
			loc := s.Location(ctx)
			ws, err := weekOf(week, s.Now(), loc)
			if err != nil {
				return err
			}

			var res *service.ScheduleResult
			if text != "" {
				stop := func() {}
				if s.IsInteractive() {
					stop = formatter.StartSpinner(cmd.ErrOrStderr(), "Reading your week…")
				}
				res, err = s.Schedule.SetBusyFromText(ctx, s.UserID, ws, text)
				stop()
			} else {
				ivs := make([]domain.Interval, 0, len(busy))
				for _, raw := range busy {
					iv, perr := parseBusy(raw, loc)
					if perr != nil {
						return perr
					}
					ivs = append(ivs, iv)
				}
				res, err = s.Schedule.SetBusy(ctx, s.UserID, ws, ivs)
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprint(out, formatter.FormatWeek(res.WeekStart, res.Busy, nil, loc))
			fmt.Fprint(out, formatter.FormatConflicts(res.Conflicts))
			return nil
		}),
	}

	cmd.Flags().StringVar(&week, "week", "", "Any date in the week (default: this week)")
	cmd.Flags().StringArrayVar(&busy, "busy", nil, "Busy block START/END[/LABEL] (repeatable)")
	cmd.Flags().StringVar(&text, "text", "", "Describe the week in plain words instead")

	return cmd
}

func newScheduleShowCmd(st *state) *cobra.Command {
	var week string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show busy time and scheduled sessions of a week",
		RunE: st.withApp(func(cmd *cobra.Command, args []string, s *session) error {
			ctx := cmd.Context()
			loc := s.Location(ctx)
			ws, err := weekOf(week, s.Now(), loc)
			if err != nil {
				return err
			}
			view, err := s.Schedule.Week(ctx, s.UserID, ws)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), formatter.FormatWeek(view.WeekStart, view.Busy, view.Occupied, loc))
			return nil
		}),
	}

	cmd.Flags().StringVar(&week, "week", "", "Any date in the week (default: this week)")

	return cmd
}
