package cli

import (
	"fmt"
	"strings"

	"github.com/alexanderramin/cadence/internal/cli/formatter"
	"github.com/alexanderramin/cadence/internal/domain"
	"github.com/alexanderramin/cadence/internal/service"
	"github.com/spf13/cobra"
)

func newInsightsCmd(st *state) *cobra.Command {
	return &cobra.Command{
		Use:   "insights",
		Short: "Show what cadence has learned about your work",
		RunE: st.withApp(func(cmd *cobra.Command, args []string, s *session) error {
			in, err := s.Profiles.Insights(cmd.Context(), s.UserID)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), formatter.FormatInsights(in))
			return nil
		}),
	}
}

func newHistoryCmd(st *state) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recently completed tasks",
		RunE: st.withApp(func(cmd *cobra.Command, args []string, s *session) error {
			ctx := cmd.Context()
			records, err := s.Profiles.History(ctx, s.UserID, limit)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), formatter.FormatHistory(records, s.Location(ctx)))
			return nil
		}),
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "How many records to list")

	return cmd
}

func newProfileCmd(st *state) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show or change working hours",
	}

	cmd.AddCommand(
		newProfileShowCmd(st),
		newProfileSetCmd(st),
	)

	return cmd
}

func formatProfile(p *domain.UserProfile) string {
	var b strings.Builder
	b.WriteString(formatter.Header("Profile "+p.UserID) + "\n")
	line := func(label, value string) {
		fmt.Fprintf(&b, "  %-16s %s\n", label+":", value)
	}
	days := make([]string, 0, len(p.WorkDays))
	for _, d := range p.SortedWorkDays() {
		days = append(days, d.String()[:3])
	}
	line("Time zone", p.Timezone)
	line("Working hours", fmt.Sprintf("%02d:%02d–%02d:%02d", p.WorkStartMin/60, p.WorkStartMin%60, p.WorkEndMin/60, p.WorkEndMin%60))
	line("Work days", strings.Join(days, ", "))
	line("Weekends", fmt.Sprintf("%t", p.AllowWeekends))
	line("Daily cap", formatter.FormatMinutes(p.MaxDailyWorkMin))
	line("Buffer", formatter.FormatMinutes(p.MinBufferMin))
	if start, end, ok := p.BreakWindow(); ok {
		line("Break", fmt.Sprintf("%02d:%02d–%02d:%02d", start/60, start%60, end/60, end%60))
	}
	if p.PreferredSessionMin > 0 {
		line("Session length", formatter.FormatMinutes(p.PreferredSessionMin))
	}
	if p.PreferMorningDeepWork {
		line("Deep work", "mornings")
	}
	return b.String()
}

func newProfileShowCmd(st *state) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the working profile",
		RunE: st.withApp(func(cmd *cobra.Command, args []string, s *session) error {
			p, err := s.Profiles.Get(cmd.Context(), s.UserID)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), formatProfile(p))
			return nil
		}),
	}
}

func newProfileSetCmd(st *state) *cobra.Command {
	var (
		timezone, workStart, workEnd, workDays, breakAt string
		weekends                                        bool
		maxDaily, buffer, breakMin                      int
	)

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Change working hours and limits",
		RunE: st.withApp(func(cmd *cobra.Command, args []string, s *session) error {
			var in service.Settings
			flags := cmd.Flags()
			if flags.Changed("timezone") {
				in.Timezone = &timezone
			}
			if flags.Changed("work-start") {
				m, err := parseClock(workStart)
				if err != nil {
					return err
				}
				in.WorkStartMin = &m
			}
			if flags.Changed("work-end") {
				m, err := parseClock(workEnd)
				if err != nil {
					return err
				}
				in.WorkEndMin = &m
			}
			if flags.Changed("days") {
				days, err := parseWeekdays(workDays)
				if err != nil {
					return err
				}
				in.WorkDays = days
			}
			if flags.Changed("weekends") {
				in.AllowWeekends = &weekends
			}
			if flags.Changed("max-daily") {
				in.MaxDailyWorkMin = &maxDaily
			}
			if flags.Changed("buffer") {
				in.MinBufferMin = &buffer
			}
			if flags.Changed("break") {
				m, err := parseClock(breakAt)
				if err != nil {
					return err
				}
				in.BreakStartMin = &m
			}
			if flags.Changed("break-minutes") {
				in.BreakMin = &breakMin
			}

			p, err := s.Profiles.UpdateSettings(cmd.Context(), s.UserID, in)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), formatProfile(p))
			return nil
		}),
	}

	cmd.Flags().StringVar(&timezone, "timezone", "", "IANA time zone, e.g. Europe/Berlin")
	cmd.Flags().StringVar(&workStart, "work-start", "", "Start of the working day (HH:MM)")
	cmd.Flags().StringVar(&workEnd, "work-end", "", "End of the working day (HH:MM)")
	cmd.Flags().StringVar(&workDays, "days", "", "Working days, e.g. mon,tue,wed,thu,fri")
	cmd.Flags().BoolVar(&weekends, "weekends", false, "Allow work on weekends")
	cmd.Flags().IntVar(&maxDaily, "max-daily", 0, "Most minutes of planned work per day")
	cmd.Flags().IntVar(&buffer, "buffer", 0, "Minutes kept free between tasks")
	cmd.Flags().StringVar(&breakAt, "break", "", "Start of the daily break (HH:MM)")
	cmd.Flags().IntVar(&breakMin, "break-minutes", 0, "Length of the daily break; 0 turns it off")

	return cmd
}
