package service

import (
	"context"

	"github.com/alexanderramin/cadence/internal/monitor"
	"go.uber.org/zap"
)

// ReplanOnReport returns a monitor callback that replans a user whenever a
// tick decides one is needed. Replan failures are logged, never fatal to
// the monitor loop.
func ReplanOnReport(ctx context.Context, svc ReplanService, log *zap.Logger) func(monitor.Report) {
	if log == nil {
		log = zap.NewNop()
	}
	return func(r monitor.Report) {
		if !r.ReplanNeeded {
			return
		}
		res, err := svc.Replan(ctx, r.UserID, ReplanRequest{Reason: r.ReplanReason})
		if err != nil {
			log.Warn("automatic replan failed",
				zap.String("user_id", r.UserID),
				zap.String("reason", r.ReplanReason),
				zap.Error(err))
			return
		}
		log.Info("automatic replan",
			zap.String("user_id", r.UserID),
			zap.String("reason", r.ReplanReason),
			zap.Int("reset", len(res.Reset)),
			zap.String("plan_id", res.Plan.ID))
	}
}
