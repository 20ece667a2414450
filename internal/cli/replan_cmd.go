package cli

import (
	"fmt"

	"github.com/alexanderramin/cadence/internal/cli/formatter"
	"github.com/alexanderramin/cadence/internal/service"
	"github.com/spf13/cobra"
)

func newReplanCmd(st *state) *cobra.Command {
	var (
		reason string
		days   int
	)

	cmd := &cobra.Command{
		Use:   "replan",
		Short: "Release unstarted work and plan again",
		RunE: st.withApp(func(cmd *cobra.Command, args []string, s *session) error {
			ctx := cmd.Context()
			res, err := s.Replan.Replan(ctx, s.UserID, service.ReplanRequest{
				Reason:  reason,
				Horizon: horizonDays(s, days),
			})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Released %d tasks\n\n", len(res.Reset))
			fmt.Fprint(out, formatter.FormatPlan(res.Plan, s.Location(ctx)))
			return nil
		}),
	}

	cmd.Flags().StringVar(&reason, "reason", "", "Why you are replanning (default: manual request)")
	cmd.Flags().IntVar(&days, "days", 0, "Days to plan (default from config)")

	return cmd
}
