package service

import (
	"context"
	"testing"
	"time"

	"github.com/alexanderramin/cadence/internal/domain"
	"github.com/alexanderramin/cadence/internal/monitor"
	"github.com/alexanderramin/cadence/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scheduledPair executes a plan over two fresh tasks and marks the second
// one overdue.
func scheduledPair(t *testing.T, f *fixture) (onTime, overdue *domain.Task) {
	t.Helper()
	ctx := context.Background()
	onTime = f.addTask(t, "On time", 60)
	overdue = f.addTask(t, "Overdue", 60)
	plans := f.planService(nil, nil)
	plan, err := plans.Generate(ctx, user, GenerateRequest{})
	require.NoError(t, err)
	_, err = plans.Execute(ctx, user, plan.ID)
	require.NoError(t, err)
	moved, err := f.taskService().MarkOverdue(ctx, user, overdue.ID)
	require.NoError(t, err)
	require.True(t, moved)
	return onTime, overdue
}

func TestReplan_ResetsAndPrioritizesOverdue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	onTime, overdue := scheduledPair(t, f)

	draft, err := f.planService(nil, nil).Generate(ctx, user, GenerateRequest{})
	require.NoError(t, err)

	res, err := f.replanService().Replan(ctx, user, ReplanRequest{Reason: "missed deadline: Overdue"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{onTime.ID, overdue.ID}, res.Reset)
	assert.Equal(t, 0, testutil.CountRows(t, f.db, "intervals", "kind = 'occupied'"))

	for _, id := range res.Reset {
		task, err := f.tasks.Get(ctx, user, id)
		require.NoError(t, err)
		assert.Equal(t, domain.TaskPending, task.Status)
		assert.Nil(t, task.ScheduledStart)
	}

	require.NotNil(t, res.Plan)
	assert.Equal(t, "replanning due to: missed deadline: Overdue", res.Plan.Context)
	assert.Equal(t, domain.PlanDraft, res.Plan.Status)
	require.NotEmpty(t, res.Plan.Entries)
	assert.Equal(t, overdue.ID, res.Plan.Entries[0].TaskID)

	old, err := f.plans.Get(ctx, user, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PlanSuperseded, old.Status)
}

func TestReplan_LeavesCompletedTasks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	done := f.addTask(t, "Done", 30)
	f.scheduleTask(t, done, testutil.At(0, 8, 0), testutil.At(0, 8, 30))
	_, err := f.taskService().Start(ctx, user, done.ID)
	require.NoError(t, err)
	f.clock.Advance(30 * time.Minute)
	_, err = f.taskService().Complete(ctx, user, done.ID, CompleteRequest{})
	require.NoError(t, err)

	res, err := f.replanService().Replan(ctx, user, ReplanRequest{})
	require.NoError(t, err)
	assert.Empty(t, res.Reset)
	assert.Equal(t, "replanning due to: manual request", res.Plan.Context)

	task, err := f.tasks.Get(ctx, user, done.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskCompleted, task.Status)
}

func TestReplanOnReport(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, overdue := scheduledPair(t, f)
	onReport := ReplanOnReport(ctx, f.replanService(), nil)

	onReport(monitor.Report{UserID: user, ReplanNeeded: false})
	task, err := f.tasks.Get(ctx, user, overdue.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskOverdue, task.Status)

	f.clock.Advance(time.Minute)
	onReport(monitor.Report{UserID: user, ReplanNeeded: true, ReplanReason: "3 schedule deviations"})
	task, err = f.tasks.Get(ctx, user, overdue.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskPending, task.Status)

	recent, err := f.plans.ListRecent(ctx, user, 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "replanning due to: 3 schedule deviations", recent[0].Context)
}

type countingReplanner struct {
	ReplanService
	calls int
}

func (c *countingReplanner) Replan(ctx context.Context, userID string, req ReplanRequest) (*ReplanResult, error) {
	c.calls++
	return c.ReplanService.Replan(ctx, userID, req)
}

func TestReplanOnReport_MissedDeadlineReplansOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	healthy := f.addTask(t, "Healthy", 60)
	late := f.addTask(t, "Late", 60)
	plans := f.planService(nil, nil)
	plan, err := plans.Generate(ctx, user, GenerateRequest{})
	require.NoError(t, err)
	_, err = plans.Execute(ctx, user, plan.ID)
	require.NoError(t, err)

	stored, err := f.tasks.Get(ctx, user, late.ID)
	require.NoError(t, err)
	deadline := testutil.At(0, 7, 0)
	stored.Deadline = &deadline
	require.NoError(t, f.tasks.Update(ctx, stored))

	replanner := &countingReplanner{ReplanService: f.replanService()}
	onReport := ReplanOnReport(ctx, replanner, nil)
	m := monitor.New(f.tasks, f.clock, monitor.DefaultConfig(), monitor.WithLocker(f.locks))

	for i := 0; i < 6; i++ {
		report, err := m.Tick(ctx, user)
		require.NoError(t, err)
		if i > 0 {
			assert.False(t, report.ReplanNeeded, "tick %d: %s", i, report.ReplanReason)
		}
		onReport(report)
		f.clock.Advance(15 * time.Minute)
	}
	assert.Equal(t, 1, replanner.calls)

	got, err := f.tasks.Get(ctx, user, healthy.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskPending, got.Status, "the one replan released the plan")
	got, err = f.tasks.Get(ctx, user, late.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskOverdue, got.Status)
}
