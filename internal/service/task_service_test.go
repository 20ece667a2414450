package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alexanderramin/cadence/internal/domain"
	"github.com/alexanderramin/cadence/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddTask_NormalizesLifecycleFields(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	task := testutil.NewTestTask(user, "Write report", 90,
		testutil.WithScheduled(testutil.At(0, 9, 0), testutil.At(0, 10, 30)))
	task.PreferredTimeOfDay = ""
	require.NoError(t, f.taskService().Add(ctx, task))

	stored, err := f.tasks.Get(ctx, user, task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskPending, stored.Status)
	assert.Nil(t, stored.ScheduledStart)
	assert.Equal(t, domain.TimeOfDayNone, stored.PreferredTimeOfDay)
	assert.Equal(t, testutil.At(0, 8, 0), stored.CreatedAt)
}

func TestAddTask_RejectsInvalidTask(t *testing.T) {
	f := newFixture(t)
	task := testutil.NewTestTask(user, "", 30)

	err := f.taskService().Add(context.Background(), task)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Equal(t, 0, testutil.CountRows(t, f.db, "tasks", ""))
}

func TestAddTask_RejectsUnknownDependency(t *testing.T) {
	f := newFixture(t)
	task := testutil.NewTestTask(user, "Orphan", 30, testutil.WithDependencies("missing"))

	err := f.taskService().Add(context.Background(), task)
	assert.ErrorIs(t, err, domain.ErrUnknownDependency)
	assert.Equal(t, 0, testutil.CountRows(t, f.db, "tasks", ""))
}

func TestUpdateTask_RejectsCycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.addTask(t, "A", 30)
	b := f.addTask(t, "B", 30, testutil.WithDependencies(a.ID))

	edited := *a
	edited.Dependencies = []string{b.ID}
	err := f.taskService().Update(ctx, &edited)
	assert.ErrorIs(t, err, domain.ErrCyclicDependency)

	stored, err := f.tasks.Get(ctx, user, a.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.Dependencies)
}

func TestUpdateTask_KeepsLifecycleState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := f.taskService()
	task := f.addTask(t, "Draft", 30)
	f.scheduleTask(t, task, testutil.At(0, 8, 0), testutil.At(0, 8, 30))
	_, err := svc.Start(ctx, user, task.ID)
	require.NoError(t, err)

	edited := *task
	edited.Title = "Draft v2"
	edited.Status = domain.TaskPending
	edited.ActualStart = nil
	require.NoError(t, svc.Update(ctx, &edited))

	stored, err := f.tasks.Get(ctx, user, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "Draft v2", stored.Title)
	assert.Equal(t, domain.TaskInProgress, stored.Status)
	require.NotNil(t, stored.ActualStart)
}

func TestDeleteTask_RejectsWhenDependedOn(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.addTask(t, "A", 30)
	b := f.addTask(t, "B", 30, testutil.WithDependencies(a.ID))

	err := f.taskService().Delete(ctx, user, a.ID)
	var ve *domain.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "dependencies", ve.Field)
	assert.Contains(t, ve.Message, b.ID)

	require.NoError(t, f.taskService().Delete(ctx, user, b.ID))
	require.NoError(t, f.taskService().Delete(ctx, user, a.ID))
	assert.Equal(t, 0, testutil.CountRows(t, f.db, "tasks", ""))
}

func TestCompleteTask_UpdatesProfileAndWritesRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := f.taskService()
	task := f.addTask(t, "Essay", 60, testutil.WithTags("writing"))
	f.scheduleTask(t, task, testutil.At(0, 8, 0), testutil.At(0, 9, 0))

	_, err := svc.Start(ctx, user, task.ID)
	require.NoError(t, err)
	f.clock.Advance(90 * time.Minute)

	res, err := svc.Complete(ctx, user, task.ID, CompleteRequest{})
	require.NoError(t, err)
	assert.Equal(t, domain.TaskCompleted, res.Task.Status)
	assert.Equal(t, 90, res.Record.ActualMin)
	assert.Equal(t, domain.OutcomeLate, res.Record.Outcome)
	assert.Equal(t, 30, res.Record.DelayMin)
	assert.False(t, res.StaleProfile)

	profile, err := f.profiles.Get(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, 1, profile.TasksTracked)
	assert.Equal(t, 1, profile.LateCount)
	assert.InDelta(t, 0.8, profile.AdherenceRate, 1e-9)
	assert.InDelta(t, 1.1, profile.DurationBias, 1e-9)
	assert.InDelta(t, 1.1, profile.TagBias["writing"], 1e-9)

	records, err := f.completions.ListRecent(ctx, user, 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, task.ID, records[0].TaskID)
}

func TestCompleteTask_FreesLaterSessions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := f.taskService()
	task := f.addTask(t, "Deep work", 120, testutil.WithSplit(60))

	require.NoError(t, task.Schedule(testutil.At(0, 9, 0), testutil.At(0, 15, 0), f.clock.Now()))
	require.NoError(t, f.tasks.Update(ctx, task))
	for _, iv := range []domain.Interval{
		{Start: testutil.At(0, 9, 0), End: testutil.At(0, 10, 0), Kind: domain.IntervalOccupied, TaskID: task.ID},
		{Start: testutil.At(0, 14, 0), End: testutil.At(0, 15, 0), Kind: domain.IntervalOccupied, TaskID: task.ID},
	} {
		require.NoError(t, f.intervals.InsertOccupied(ctx, user, testutil.Monday, iv))
	}

	f.clock.Set(testutil.At(0, 9, 0))
	_, err := svc.Start(ctx, user, task.ID)
	require.NoError(t, err)
	f.clock.Set(testutil.At(0, 11, 0))

	res, err := svc.Complete(ctx, user, task.ID, CompleteRequest{})
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeEarly, res.Record.Outcome)
	assert.Equal(t, -240, res.Record.DelayMin)
	assert.Equal(t, 1, testutil.CountRows(t, f.db, "intervals", "task_id = ?", task.ID))
}

func TestCompleteTask_NeverStartedNeedsStart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	task := f.addTask(t, "Quick", 15)
	_, err := f.taskService().MarkOverdue(ctx, user, task.ID)
	require.NoError(t, err)

	_, err = f.taskService().Complete(ctx, user, task.ID, CompleteRequest{})
	assert.ErrorIs(t, err, domain.ErrValidation)

	start := testutil.At(0, 7, 30)
	res, err := f.taskService().Complete(ctx, user, task.ID, CompleteRequest{ActualStart: &start})
	require.NoError(t, err)
	assert.Equal(t, 30, res.Record.ActualMin)
	assert.Equal(t, domain.OutcomeOnTime, res.Record.Outcome)
}

func TestCompleteTask_RollsBackOnFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	task := f.addTask(t, "Fragile", 30)
	f.scheduleTask(t, task, testutil.At(0, 8, 0), testutil.At(0, 8, 30))
	_, err := f.taskService().Start(ctx, user, task.ID)
	require.NoError(t, err)
	f.clock.Advance(30 * time.Minute)

	boom := errors.New("disk full")
	failing := &testutil.FailingUoW{DB: f.db, Match: "INTO user_profiles", Err: boom}
	svc := NewTaskService(f.tasks, failing, f.opts...)

	_, err = svc.Complete(ctx, user, task.ID, CompleteRequest{})
	require.ErrorIs(t, err, boom)

	stored, err := f.tasks.Get(ctx, user, task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskInProgress, stored.Status)
	assert.Equal(t, 0, testutil.CountRows(t, f.db, "completion_records", ""))
	assert.Equal(t, 0, testutil.CountRows(t, f.db, "user_profiles", ""))
}

func TestCompleteTask_RejectsCompletedTask(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	task := f.addTask(t, "Once", 30)
	f.scheduleTask(t, task, testutil.At(0, 8, 0), testutil.At(0, 8, 30))
	_, err := f.taskService().Start(ctx, user, task.ID)
	require.NoError(t, err)
	f.clock.Advance(30 * time.Minute)
	_, err = f.taskService().Complete(ctx, user, task.ID, CompleteRequest{})
	require.NoError(t, err)

	_, err = f.taskService().Complete(ctx, user, task.ID, CompleteRequest{})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	assert.Equal(t, 1, testutil.CountRows(t, f.db, "completion_records", ""))
}

func TestMarkOverdue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := f.taskService()
	task := f.addTask(t, "Late", 30)

	moved, err := svc.MarkOverdue(ctx, user, task.ID)
	require.NoError(t, err)
	assert.True(t, moved)

	_, err = svc.MarkOverdue(ctx, user, task.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}
