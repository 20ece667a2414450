package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/alexanderramin/cadence/internal/clock"
	"github.com/alexanderramin/cadence/internal/db"
	"github.com/alexanderramin/cadence/internal/domain"
	"github.com/alexanderramin/cadence/internal/repository"
	"github.com/alexanderramin/cadence/internal/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

const user = "u1"

type fixture struct {
	db          *sql.DB
	uow         db.UnitOfWork
	tasks       repository.TaskRepo
	intervals   repository.IntervalRepo
	profiles    repository.ProfileRepo
	plans       repository.PlanRepo
	completions repository.CompletionRepo
	clock       *clock.FakeClock
	locks       *UserLocks
	logs        *observer.ObservedLogs
	opts        []Option
}

// newFixture opens a fresh database with the clock at Monday 08:00 UTC.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureOn(t, testutil.NewTestDB(t))
}

func newFixtureOn(t *testing.T, database *sql.DB) *fixture {
	t.Helper()
	core, logs := observer.New(zap.InfoLevel)
	f := &fixture{
		db:          database,
		uow:         testutil.NewTestUoW(database),
		tasks:       repository.NewSQLiteTaskRepo(database),
		intervals:   repository.NewSQLiteIntervalRepo(database),
		profiles:    repository.NewSQLiteProfileRepo(database),
		plans:       repository.NewSQLitePlanRepo(database),
		completions: repository.NewSQLiteCompletionRepo(database),
		clock:       clock.Fake(testutil.At(0, 8, 0)),
		locks:       NewUserLocks(),
		logs:        logs,
	}
	f.opts = []Option{WithClock(f.clock), WithLocks(f.locks), WithLogger(zap.New(core))}
	return f
}

func (f *fixture) taskService() TaskService {
	return NewTaskService(f.tasks, f.uow, f.opts...)
}

func (f *fixture) scheduleService(interp scheduleInterpreterFunc) ScheduleService {
	if interp == nil {
		return NewScheduleService(f.intervals, f.profiles, nil, f.uow, f.opts...)
	}
	return NewScheduleService(f.intervals, f.profiles, interp, f.uow, f.opts...)
}

func (f *fixture) planService(reviewer planReviewerFunc, exporter CalendarExporter) PlanService {
	if reviewer == nil {
		return NewPlanService(f.tasks, f.intervals, f.profiles, f.plans, nil, exporter, f.uow, f.opts...)
	}
	return NewPlanService(f.tasks, f.intervals, f.profiles, f.plans, reviewer, exporter, f.uow, f.opts...)
}

func (f *fixture) replanService() ReplanService {
	return NewReplanService(f.tasks, f.intervals, f.profiles, f.plans, f.uow, f.opts...)
}

func (f *fixture) profileService(parser reviewParserFunc) ProfileService {
	if parser == nil {
		return NewProfileService(f.profiles, f.completions, nil, f.uow, f.opts...)
	}
	return NewProfileService(f.profiles, f.completions, parser, f.uow, f.opts...)
}

// addTask stores a pending task through the service.
func (f *fixture) addTask(t *testing.T, title string, est int, opts ...testutil.TaskOption) *domain.Task {
	t.Helper()
	task := testutil.NewTestTask(user, title, est, opts...)
	require.NoError(t, f.taskService().Add(context.Background(), task))
	return task
}

type scheduleInterpreterFunc func(ctx context.Context, text string, weekStart time.Time) ([]domain.BusyBlock, error)

func (fn scheduleInterpreterFunc) Interpret(ctx context.Context, text string, weekStart time.Time) ([]domain.BusyBlock, error) {
	return fn(ctx, text, weekStart)
}

type planReviewerFunc func(ctx context.Context, plan *domain.Plan, feedback string) (*domain.PlanReview, error)

func (fn planReviewerFunc) Review(ctx context.Context, plan *domain.Plan, feedback string) (*domain.PlanReview, error) {
	return fn(ctx, plan, feedback)
}

type reviewParserFunc func(ctx context.Context, text string, weekStart time.Time) ([]domain.ReviewDelta, error)

func (fn reviewParserFunc) Parse(ctx context.Context, text string, weekStart time.Time) ([]domain.ReviewDelta, error) {
	return fn(ctx, text, weekStart)
}

type stubExporter struct {
	err   error
	calls int
}

func (e *stubExporter) Export(_ context.Context, plan *domain.Plan, _ *time.Location) (int, error) {
	e.calls++
	if e.err != nil {
		return 0, e.err
	}
	return len(plan.Entries), nil
}

// scheduleTask moves a stored task to scheduled without booking sessions.
func (f *fixture) scheduleTask(t *testing.T, task *domain.Task, start, end time.Time) {
	t.Helper()
	require.NoError(t, task.Schedule(start, end, f.clock.Now()))
	require.NoError(t, f.tasks.Update(context.Background(), task))
}

func (f *fixture) env() env { return newEnv(f.opts) }
