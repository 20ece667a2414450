package cli

import (
	"fmt"

	"github.com/alexanderramin/cadence/internal/cli/formatter"
	"github.com/alexanderramin/cadence/internal/domain"
	"github.com/alexanderramin/cadence/internal/service"
	"github.com/spf13/cobra"
)

func newReviewCmd(st *state) *cobra.Command {
	var (
		text, week string
		deltas     []string
	)

	cmd := &cobra.Command{
		Use:   "review",
		Short: "Record how the week actually went",
		Example: `  cadence review --delta 2025-06-17,report,60,90
  cadence review --text "the report took an extra half hour, skipped gym on friday"`,
		RunE: st.withApp(func(cmd *cobra.Command, args []string, s *session) error {
			if text != "" && len(deltas) > 0 {
				return fmt.Errorf("use either --delta or --text, not both")
			}
			if text == "" && len(deltas) == 0 {
				return fmt.Errorf("--delta or --text is required")
			}
			ctx := cmd.Context()
			loc := s.Location(ctx)

			var (
				res *service.ReviewResult
				err error
			)
			if text != "" {
				ws, werr := weekOf(week, s.Now(), loc)
				if werr != nil {
					return werr
				}
				stop := func() {}
				if s.IsInteractive() {
					stop = formatter.StartSpinner(cmd.ErrOrStderr(), "Reading your review…")
				}
				res, err = s.Profiles.SubmitReviewText(ctx, s.UserID, ws, text)
				stop()
			} else {
				parsed := make([]domain.ReviewDelta, 0, len(deltas))
				for _, raw := range deltas {
					d, perr := parseDelta(raw, loc)
					if perr != nil {
						return perr
					}
					parsed = append(parsed, d)
				}
				res, err = s.Profiles.SubmitReview(ctx, s.UserID, parsed)
			}
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), formatter.FormatReview(res.Deltas, res.BufferNudged, res.MinBufferMin))
			return nil
		}),
	}

	cmd.Flags().StringArrayVar(&deltas, "delta", nil, "DATE,EVENT,PLANNED,ACTUAL[,KIND] (repeatable)")
	cmd.Flags().StringVar(&text, "text", "", "Describe the week in plain words instead")
	cmd.Flags().StringVar(&week, "week", "", "Week the text describes (default: this week)")

	return cmd
}
