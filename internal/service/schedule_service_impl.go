package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/alexanderramin/cadence/internal/db"
	"github.com/alexanderramin/cadence/internal/domain"
	"github.com/alexanderramin/cadence/internal/intelligence"
	"github.com/alexanderramin/cadence/internal/ledger"
	"github.com/alexanderramin/cadence/internal/repository"
)

type scheduleService struct {
	intervals   repository.IntervalRepo
	profiles    repository.ProfileRepo
	interpreter intelligence.ScheduleInterpreter
	uow         db.UnitOfWork
	env
}

// NewScheduleService creates the busy-time service. interpreter may be nil,
// in which case free-text updates report the upstream as unavailable.
func NewScheduleService(
	intervals repository.IntervalRepo,
	profiles repository.ProfileRepo,
	interpreter intelligence.ScheduleInterpreter,
	uow db.UnitOfWork,
	opts ...Option,
) ScheduleService {
	return &scheduleService{
		intervals:   intervals,
		profiles:    profiles,
		interpreter: interpreter,
		uow:         uow,
		env:         newEnv(opts),
	}
}

func (s *scheduleService) SetBusyFromText(ctx context.Context, userID string, weekStart time.Time, text string) (res *ScheduleResult, err error) {
	startedAt := s.clock.Now()
	fields := map[string]any{"source": "text"}
	defer s.observe(ctx, "interpret-schedule", userID, startedAt, fields, &err)

	profile, err := loadProfile(ctx, s.profiles, userID)
	if err != nil {
		return nil, err
	}
	loc := profile.Location()
	ws := domain.WeekStart(weekStart, loc)

	if s.interpreter == nil {
		return nil, fmt.Errorf("interpreting schedule: %w", intelligence.ErrUpstreamUnavailable)
	}
	blocks, err := s.interpreter.Interpret(ctx, text, ws)
	if err != nil {
		return nil, fmt.Errorf("interpreting schedule: %w", err)
	}
	fields["blocks"] = len(blocks)

	ivs := make([]domain.Interval, 0, len(blocks))
	for _, b := range blocks {
		ivs = append(ivs, b.ToInterval(loc))
	}
	return s.replaceWeek(ctx, userID, ws, loc, ivs)
}

func (s *scheduleService) SetBusy(ctx context.Context, userID string, weekStart time.Time, ivs []domain.Interval) (res *ScheduleResult, err error) {
	startedAt := s.clock.Now()
	defer s.observe(ctx, "set-busy", userID, startedAt, map[string]any{"intervals": len(ivs)}, &err)

	profile, err := loadProfile(ctx, s.profiles, userID)
	if err != nil {
		return nil, err
	}
	loc := profile.Location()
	return s.replaceWeek(ctx, userID, domain.WeekStart(weekStart, loc), loc, ivs)
}

// replaceWeek normalizes ivs through a ledger and stores them as the
// week's busy set. Replaying the same input stores the same rows.
func (s *scheduleService) replaceWeek(ctx context.Context, userID string, ws time.Time, loc *time.Location, ivs []domain.Interval) (*ScheduleResult, error) {
	l := ledger.New(loc)
	if err := l.SetBusy(ws, ivs); err != nil {
		return nil, err
	}
	busy := l.BusyInWeek(ws)
	we := ws.AddDate(0, 0, 7)

	unlock := s.locks.Lock(userID)
	defer unlock()

	res := &ScheduleResult{WeekStart: ws, Busy: busy}
	err := s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		txIntervals := repository.NewSQLiteIntervalRepo(tx)
		if err := txIntervals.ReplaceBusyWeek(ctx, userID, ws, busy); err != nil {
			return err
		}
		stored, err := txIntervals.ListRange(ctx, userID, ws, we)
		if err != nil {
			return err
		}
		res.Conflicts = conflicts(busy, stored)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(res.Conflicts) > 0 {
		s.log.Sugar().Infow("busy time overlaps scheduled sessions",
			"user_id", userID, "week", ws.Format(time.DateOnly), "tasks", res.Conflicts)
	}
	return res, nil
}

func (s *scheduleService) Week(ctx context.Context, userID string, weekStart time.Time) (*WeekView, error) {
	profile, err := loadProfile(ctx, s.profiles, userID)
	if err != nil {
		return nil, err
	}
	ws := domain.WeekStart(weekStart, profile.Location())
	ivs, err := s.intervals.ListRange(ctx, userID, ws, ws.AddDate(0, 0, 7))
	if err != nil {
		return nil, err
	}
	view := &WeekView{WeekStart: ws}
	for _, iv := range ivs {
		if iv.Kind == domain.IntervalBusy {
			view.Busy = append(view.Busy, iv)
		} else {
			view.Occupied = append(view.Occupied, iv)
		}
	}
	return view, nil
}

// conflicts returns the tasks whose occupied sessions overlap busy time.
func conflicts(busy, stored []domain.Interval) []string {
	seen := make(map[string]bool)
	for _, iv := range stored {
		if iv.Kind != domain.IntervalOccupied || seen[iv.TaskID] {
			continue
		}
		for _, b := range busy {
			if b.Overlaps(iv) {
				seen[iv.TaskID] = true
				break
			}
		}
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
