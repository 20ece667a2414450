package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/alexanderramin/cadence/internal/db"
	"github.com/alexanderramin/cadence/internal/domain"
	"github.com/alexanderramin/cadence/internal/repository"
)

type replanService struct {
	*planner
}

func NewReplanService(
	tasks repository.TaskRepo,
	intervals repository.IntervalRepo,
	profiles repository.ProfileRepo,
	plans repository.PlanRepo,
	uow db.UnitOfWork,
	opts ...Option,
) ReplanService {
	return &replanService{planner: &planner{
		tasks: tasks, intervals: intervals, profiles: profiles, plans: plans,
		uow: uow, env: newEnv(opts),
	}}
}

// Replan returns every open task to pending, frees its sessions, and
// produces a fresh draft with the previously overdue tasks first. The
// reset is atomic; the draft is generated after it commits.
func (s *replanService) Replan(ctx context.Context, userID string, req ReplanRequest) (res *ReplanResult, err error) {
	startedAt := s.clock.Now()
	fields := map[string]any{"reason": req.Reason}
	defer s.observe(ctx, "replan", userID, startedAt, fields, &err)

	unlock := s.locks.Lock(userID)
	res = &ReplanResult{}
	overdue := make(map[string]bool)
	err = s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		txTasks := repository.NewSQLiteTaskRepo(tx)
		txIntervals := repository.NewSQLiteIntervalRepo(tx)

		open, err := txTasks.ListByStatus(ctx, userID, domain.TaskScheduled, domain.TaskInProgress, domain.TaskOverdue)
		if err != nil {
			return err
		}
		now := s.now()
		for _, t := range open {
			if t.Status == domain.TaskOverdue {
				overdue[t.ID] = true
			}
			if err := t.ResetForReplan(now); err != nil {
				return err
			}
			if err := txTasks.Update(ctx, t); err != nil {
				return err
			}
			if _, err := txIntervals.DeleteByTask(ctx, userID, t.ID); err != nil {
				return err
			}
			res.Reset = append(res.Reset, t.ID)
		}
		if len(res.Reset) > 0 {
			if _, err := repository.NewSQLitePlanRepo(tx).SupersedeDrafts(ctx, userID, "", res.Reset); err != nil {
				return err
			}
		}
		return nil
	})
	unlock()
	if err != nil {
		return nil, err
	}
	fields["reset"] = len(res.Reset)

	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		reason = "manual request"
	}
	horizon := req.Horizon
	if horizon.Start.IsZero() && horizon.End.IsZero() {
		horizon = defaultHorizon(s.now(), s.horizonDays)
	}
	plan, err := s.generate(ctx, userID, GenerateRequest{
		Horizon: horizon,
		Context: fmt.Sprintf("replanning due to: %s", reason),
	}, overdue, "")
	if err != nil {
		return nil, err
	}
	res.Plan = plan
	return res, nil
}
