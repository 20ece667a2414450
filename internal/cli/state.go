package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/alexanderramin/cadence/internal/app"
	"github.com/alexanderramin/cadence/internal/config"
	"github.com/alexanderramin/cadence/internal/logging"
	"github.com/spf13/cobra"
)

// state carries what every subcommand needs once flags are parsed.
type state struct {
	build      Builder
	configFile string
}

// session is one command's view of the wired App.
type session struct {
	*app.App
	UserID string
}

// Now returns the App clock's current time.
func (s *session) Now() time.Time { return s.Clock.Now() }

// Location returns the user's configured time zone.
func (s *session) Location(ctx context.Context) *time.Location {
	p, err := s.Profiles.Get(ctx, s.UserID)
	if err != nil {
		return time.UTC
	}
	return p.Location()
}

type runFunc func(cmd *cobra.Command, args []string, s *session) error

// withApp adapts fn into a RunE that opens the App first and closes it
// after fn returns.
func (st *state) withApp(fn runFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(st.configFile, cmd.Root().PersistentFlags())
		if err != nil {
			return err
		}
		log, err := logging.New(cfg.Logger)
		if err != nil {
			return fmt.Errorf("building logger: %w", err)
		}
		defer func() { _ = log.Sync() }()

		a, err := st.build(cmd.Context(), cfg, log)
		if err != nil {
			return err
		}
		defer a.Close()

		return fn(cmd, args, &session{App: a, UserID: cfg.UserID})
	}
}
