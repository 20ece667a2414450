package cli

import (
	"context"
	"errors"

	"github.com/alexanderramin/cadence/internal/httpapi"
	"github.com/alexanderramin/cadence/internal/monitor"
	"github.com/alexanderramin/cadence/internal/service"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCmd(st *state) *cobra.Command {
	var (
		addr        string
		monitorUser []string
		autoReplan  bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		RunE: st.withApp(func(cmd *cobra.Command, args []string, s *session) error {
			httpCfg := s.Config.HTTP
			if addr != "" {
				httpCfg.Addr = addr
			}
			srv, err := httpapi.New(s.App, httpCfg)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			monitorDone := make(chan struct{})
			if len(monitorUser) > 0 {
				var onReport func(monitor.Report)
				if autoReplan {
					onReport = service.ReplanOnReport(ctx, s.Replan, s.Log)
				}
				go func() {
					defer close(monitorDone)
					err := s.Monitor.Run(ctx, monitorUser, onReport)
					if err != nil && !errors.Is(err, context.Canceled) {
						s.Log.Error("monitor stopped", zap.Error(err))
					}
				}()
			} else {
				close(monitorDone)
			}

			err = srv.Run(ctx)
			cancel()
			<-monitorDone
			return err
		}),
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config)")
	cmd.Flags().StringSliceVar(&monitorUser, "monitor", nil, "Also monitor these users in the background")
	cmd.Flags().BoolVar(&autoReplan, "auto-replan", false, "Replan monitored users when the monitor asks for it")

	return cmd
}
