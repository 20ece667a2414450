package cli

import (
	"context"

	"github.com/alexanderramin/cadence/internal/app"
	"github.com/alexanderramin/cadence/internal/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Builder wires an App once configuration and logging are resolved.
type Builder func(ctx context.Context, cfg *config.Config, log *zap.Logger) (*app.App, error)

// NewRootCmd creates the top-level "cadence" command. Configuration is
// loaded, and the App built, only when a subcommand runs.
func NewRootCmd(build Builder) *cobra.Command {
	st := &state{build: build}

	root := &cobra.Command{
		Use:           "cadence",
		Short:         "Adaptive weekly planner",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&st.configFile, "config", "", "Config file (default: ./cadence.yaml or ~/.cadence/cadence.yaml)")
	root.PersistentFlags().String("db", "", "SQLite database path")
	root.PersistentFlags().String("user", "", "User the command acts for")

	root.AddCommand(
		newTaskCmd(st),
		newScheduleCmd(st),
		newPlanCmd(st),
		newReplanCmd(st),
		newReviewCmd(st),
		newInsightsCmd(st),
		newHistoryCmd(st),
		newProfileCmd(st),
		newWatchCmd(st),
		newServeCmd(st),
	)

	return root
}
