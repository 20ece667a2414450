package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alexanderramin/cadence/internal/domain"
	"github.com/alexanderramin/cadence/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskRepo_CreateAndGet(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewSQLiteTaskRepo(db)
	ctx := context.Background()

	dep := testutil.NewTestTask("u1", "Outline", 30)
	require.NoError(t, repo.Create(ctx, dep))

	task := testutil.NewTestTask("u1", "Draft report", 120,
		testutil.WithPriority(domain.PriorityHigh),
		testutil.WithDeadline(testutil.At(4, 17, 0)),
		testutil.WithSplit(45),
		testutil.WithDeepFocus(),
		testutil.WithTimeOfDay(domain.TimeOfDayMorning),
		testutil.WithTags("writing", "q3"),
		testutil.WithDependencies(dep.ID),
	)
	task.Description = "first full draft"
	require.NoError(t, repo.Create(ctx, task))

	got, err := repo.Get(ctx, "u1", task.ID)
	require.NoError(t, err)
	assert.Equal(t, task.Title, got.Title)
	assert.Equal(t, "first full draft", got.Description)
	assert.Equal(t, domain.PriorityHigh, got.Priority)
	assert.Equal(t, 120, got.EstimatedMin)
	assert.True(t, got.CanSplit)
	assert.Equal(t, 45, got.MinSessionMin)
	assert.True(t, got.RequiresDeepFocus)
	assert.Equal(t, domain.TimeOfDayMorning, got.PreferredTimeOfDay)
	assert.Equal(t, []string{"writing", "q3"}, got.Tags)
	assert.Equal(t, []string{dep.ID}, got.Dependencies)
	require.NotNil(t, got.Deadline)
	assert.True(t, got.Deadline.Equal(testutil.At(4, 17, 0)))
	assert.Nil(t, got.ScheduledStart)
	assert.True(t, got.CreatedAt.Equal(task.CreatedAt))
}

func TestTaskRepo_Get_ScopedByUser(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewSQLiteTaskRepo(db)
	ctx := context.Background()

	task := testutil.NewTestTask("u1", "Mine", 30)
	require.NoError(t, repo.Create(ctx, task))

	_, err := repo.Get(ctx, "u2", task.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTaskRepo_ListByStatus(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewSQLiteTaskRepo(db)
	ctx := context.Background()

	a := testutil.NewTestTask("u1", "A", 30)
	b := testutil.NewTestTask("u1", "B", 30, testutil.WithScheduled(testutil.At(0, 9, 0), testutil.At(0, 9, 30)))
	c := testutil.NewTestTask("u1", "C", 30, testutil.WithStatus(domain.TaskCompleted))
	other := testutil.NewTestTask("u2", "Other", 30)
	for _, task := range []*domain.Task{a, b, c, other} {
		require.NoError(t, repo.Create(ctx, task))
	}

	all, err := repo.ListByStatus(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	active, err := repo.ListByStatus(ctx, "u1", domain.TaskPending, domain.TaskScheduled)
	require.NoError(t, err)
	require.Len(t, active, 2)
	ids := []string{active[0].ID, active[1].ID}
	assert.ElementsMatch(t, []string{a.ID, b.ID}, ids)

	none, err := repo.ListByStatus(ctx, "u3")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestTaskRepo_UpdateReplacesDependencies(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewSQLiteTaskRepo(db)
	ctx := context.Background()

	x := testutil.NewTestTask("u1", "X", 30)
	y := testutil.NewTestTask("u1", "Y", 30)
	task := testutil.NewTestTask("u1", "Z", 60, testutil.WithDependencies(x.ID))
	for _, tt := range []*domain.Task{x, y, task} {
		require.NoError(t, repo.Create(ctx, tt))
	}

	start, end := testutil.At(1, 10, 0), testutil.At(1, 11, 0)
	task.Dependencies = []string{y.ID}
	task.Status = domain.TaskScheduled
	task.ScheduledStart, task.ScheduledEnd = &start, &end
	task.UpdatedAt = testutil.At(0, 8, 0)
	require.NoError(t, repo.Update(ctx, task))

	got, err := repo.Get(ctx, "u1", task.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{y.ID}, got.Dependencies)
	assert.Equal(t, domain.TaskScheduled, got.Status)
	assert.True(t, got.ScheduledStart.Equal(start))

	dependents, err := repo.ListDependents(ctx, "u1", x.ID)
	require.NoError(t, err)
	assert.Empty(t, dependents)
	dependents, err = repo.ListDependents(ctx, "u1", y.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{task.ID}, dependents)
}

func TestTaskRepo_UpdateMissing(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewSQLiteTaskRepo(db)

	err := repo.Update(context.Background(), testutil.NewTestTask("u1", "ghost", 30))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTaskRepo_Delete(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewSQLiteTaskRepo(db)
	ctx := context.Background()

	task := testutil.NewTestTask("u1", "Temp", 30)
	require.NoError(t, repo.Create(ctx, task))

	assert.ErrorIs(t, repo.Delete(ctx, "u2", task.ID), ErrNotFound)
	require.NoError(t, repo.Delete(ctx, "u1", task.ID))
	_, err := repo.Get(ctx, "u1", task.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTaskRepo_CompareAndSetStatus(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewSQLiteTaskRepo(db)
	ctx := context.Background()

	task := testutil.NewTestTask("u1", "Review", 30, testutil.WithScheduled(testutil.At(0, 9, 0), testutil.At(0, 9, 30)))
	require.NoError(t, repo.Create(ctx, task))
	at := testutil.At(0, 11, 0)

	ok, err := repo.CompareAndSetStatus(ctx, "u1", task.ID, domain.TaskScheduled, domain.TaskOverdue, at)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.CompareAndSetStatus(ctx, "u1", task.ID, domain.TaskScheduled, domain.TaskOverdue, at)
	require.NoError(t, err)
	assert.False(t, ok, "second swap sees the new status")

	got, err := repo.Get(ctx, "u1", task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskOverdue, got.Status)
	assert.True(t, got.UpdatedAt.Equal(at))
	assert.NotNil(t, got.ScheduledStart, "status swap keeps the schedule")
}

func TestTaskRepo_TimesStoredInUTC(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewSQLiteTaskRepo(db)
	ctx := context.Background()

	berlin := time.FixedZone("CEST", 2*60*60)
	deadline := time.Date(2025, 6, 20, 18, 0, 0, 0, berlin)
	task := testutil.NewTestTask("u1", "Ship", 60, testutil.WithDeadline(deadline))
	require.NoError(t, repo.Create(ctx, task))

	got, err := repo.Get(ctx, "u1", task.ID)
	require.NoError(t, err)
	assert.True(t, got.Deadline.Equal(deadline))
	assert.Equal(t, time.UTC, got.Deadline.Location())
}
