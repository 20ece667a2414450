package cli

import (
	"errors"
	"fmt"

	"github.com/alexanderramin/cadence/internal/cli/formatter"
	"github.com/alexanderramin/cadence/internal/domain"
	"github.com/alexanderramin/cadence/internal/intelligence"
	"github.com/alexanderramin/cadence/internal/service"
	"github.com/spf13/cobra"
)

func newPlanCmd(st *state) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Generate, refine and execute plans",
	}

	cmd.AddCommand(
		newPlanGenerateCmd(st),
		newPlanRefineCmd(st),
		newPlanExecuteCmd(st),
		newPlanShowCmd(st),
		newPlanListCmd(st),
	)

	return cmd
}

// horizonDays returns the horizon from now, or the zero horizon when days
// is unset so the configured default applies.
func horizonDays(s *session, days int) domain.Horizon {
	if days <= 0 {
		return domain.Horizon{}
	}
	now := s.Now()
	return domain.Horizon{Start: now, End: now.AddDate(0, 0, days)}
}

func newPlanGenerateCmd(st *state) *cobra.Command {
	var (
		days int
		note string
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a draft plan for the coming days",
		RunE: st.withApp(func(cmd *cobra.Command, args []string, s *session) error {
			ctx := cmd.Context()
			p, err := s.Plans.Generate(ctx, s.UserID, service.GenerateRequest{
				Horizon: horizonDays(s, days),
				Context: note,
			})
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), formatter.FormatPlan(p, s.Location(ctx)))
			return nil
		}),
	}

	cmd.Flags().IntVar(&days, "days", 0, "Days to plan (default from config)")
	cmd.Flags().StringVar(&note, "context", "", "Note stored with the plan")

	return cmd
}

func newPlanRefineCmd(st *state) *cobra.Command {
	var feedback string

	cmd := &cobra.Command{
		Use:   "refine [ID]",
		Short: "Ask the model to reorder a draft plan",
		Args:  cobra.MaximumNArgs(1),
		RunE: st.withApp(func(cmd *cobra.Command, args []string, s *session) error {
			ctx := cmd.Context()
			id, err := resolvePlanID(ctx, s, firstArg(args))
			if err != nil {
				return err
			}

			stop := func() {}
			if s.IsInteractive() {
				stop = formatter.StartSpinner(cmd.ErrOrStderr(), "Reviewing plan…")
			}
			p, err := s.Plans.Refine(ctx, s.UserID, id, feedback)
			stop()

			if errors.Is(err, intelligence.ErrUpstreamUnavailable) && p != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), formatter.Warn("model unavailable; the plan is unchanged"))
				fmt.Fprint(cmd.OutOrStdout(), formatter.FormatPlan(p, s.Location(ctx)))
				return err
			}
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), formatter.FormatPlan(p, s.Location(ctx)))
			return nil
		}),
	}

	cmd.Flags().StringVar(&feedback, "feedback", "", "What to change about the plan")

	return cmd
}

func newPlanExecuteCmd(st *state) *cobra.Command {
	return &cobra.Command{
		Use:   "execute [ID]",
		Short: "Commit a draft plan to the calendar",
		Args:  cobra.MaximumNArgs(1),
		RunE: st.withApp(func(cmd *cobra.Command, args []string, s *session) error {
			ctx := cmd.Context()
			id, err := resolvePlanID(ctx, s, firstArg(args))
			if err != nil {
				return err
			}
			res, err := s.Plans.Execute(ctx, s.UserID, id)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Executed plan %s: %d tasks scheduled", formatter.ShortID(res.Plan.ID), len(res.Scheduled))
			if res.Superseded > 0 {
				fmt.Fprintf(out, ", %d drafts superseded", res.Superseded)
			}
			fmt.Fprintln(out)
			if res.Exported > 0 {
				fmt.Fprintf(out, "Exported %d sessions to the calendar\n", res.Exported)
			}
			if res.ExportErr != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), formatter.Warn("calendar export failed: "+res.ExportErr.Error()))
			}
			return nil
		}),
	}
}

func newPlanShowCmd(st *state) *cobra.Command {
	return &cobra.Command{
		Use:   "show [ID]",
		Short: "Show a plan (default: the latest)",
		Args:  cobra.MaximumNArgs(1),
		RunE: st.withApp(func(cmd *cobra.Command, args []string, s *session) error {
			ctx := cmd.Context()
			id, err := resolvePlanID(ctx, s, firstArg(args))
			if err != nil {
				return err
			}
			p, err := s.Plans.Get(ctx, s.UserID, id)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), formatter.FormatPlan(p, s.Location(ctx)))
			return nil
		}),
	}
}

func newPlanListCmd(st *state) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List recent plans",
		RunE: st.withApp(func(cmd *cobra.Command, args []string, s *session) error {
			ctx := cmd.Context()
			plans, err := s.Plans.ListRecent(ctx, s.UserID, limit)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), formatter.FormatPlanList(plans, s.Location(ctx)))
			return nil
		}),
	}

	cmd.Flags().IntVar(&limit, "limit", 10, "How many plans to list")

	return cmd
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}
