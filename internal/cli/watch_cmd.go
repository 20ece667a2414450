package cli

import (
	"fmt"
	"time"

	"github.com/alexanderramin/cadence/internal/cli/formatter"
	"github.com/alexanderramin/cadence/internal/service"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

func newWatchCmd(st *state) *cobra.Command {
	var (
		interval   time.Duration
		autoReplan bool
		once       bool
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Monitor scheduled tasks and flag deviations",
		RunE: st.withApp(func(cmd *cobra.Command, args []string, s *session) error {
			ctx := cmd.Context()
			loc := s.Location(ctx)

			if once {
				report, err := s.Monitor.Tick(ctx, s.UserID)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprint(out, formatter.FormatReport(report, loc))
				if autoReplan {
					service.ReplanOnReport(ctx, s.Replan, s.Log)(report)
				}
				return nil
			}
			if !s.IsInteractive() {
				return fmt.Errorf("watch needs a terminal; use --once from scripts")
			}

			if interval <= 0 {
				interval = s.Config.Monitor.Interval
			}
			m := newWatchModel(ctx, s, loc, interval, autoReplan)
			p := tea.NewProgram(m,
				tea.WithContext(ctx),
				tea.WithInput(cmd.InOrStdin()),
				tea.WithOutput(cmd.OutOrStdout()),
				tea.WithAltScreen(),
			)
			_, err := p.Run()
			return err
		}),
	}

	cmd.Flags().DurationVar(&interval, "interval", 0, "How often to check (default from config)")
	cmd.Flags().BoolVar(&autoReplan, "auto-replan", false, "Replan automatically when the monitor asks for it")
	cmd.Flags().BoolVar(&once, "once", false, "Run a single check and print the result")

	return cmd
}
