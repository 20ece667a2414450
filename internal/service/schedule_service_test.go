package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alexanderramin/cadence/internal/domain"
	"github.com/alexanderramin/cadence/internal/intelligence"
	"github.com/alexanderramin/cadence/internal/llm"
	"github.com/alexanderramin/cadence/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetBusy_MergesAndIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := f.scheduleService(nil)
	input := []domain.Interval{
		testutil.Busy(0, 9, 0, 10, 0, "standup"),
		testutil.Busy(0, 9, 30, 11, 0, "review"),
		testutil.Busy(2, 13, 0, 14, 0, "lunch talk"),
	}

	first, err := svc.SetBusy(ctx, user, testutil.At(2, 12, 0), input)
	require.NoError(t, err)
	assert.Equal(t, testutil.Monday, first.WeekStart)
	require.Len(t, first.Busy, 2)
	assert.Equal(t, testutil.At(0, 9, 0), first.Busy[0].Start)
	assert.Equal(t, testutil.At(0, 11, 0), first.Busy[0].End)

	second, err := svc.SetBusy(ctx, user, testutil.Monday, input)
	require.NoError(t, err)
	assert.Equal(t, first.Busy, second.Busy)
	assert.Equal(t, 2, testutil.CountRows(t, f.db, "intervals", "kind = 'busy'"))

	view, err := svc.Week(ctx, user, testutil.Monday)
	require.NoError(t, err)
	assert.Len(t, view.Busy, 2)
	assert.Empty(t, view.Occupied)
}

func TestSetBusy_ReplacesOnlyThatWeek(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := f.scheduleService(nil)
	nextWeek := testutil.Monday.AddDate(0, 0, 7)

	_, err := svc.SetBusy(ctx, user, testutil.Monday, []domain.Interval{testutil.Busy(1, 9, 0, 10, 0, "a")})
	require.NoError(t, err)
	_, err = svc.SetBusy(ctx, user, nextWeek, []domain.Interval{testutil.Busy(8, 9, 0, 10, 0, "b")})
	require.NoError(t, err)
	_, err = svc.SetBusy(ctx, user, testutil.Monday, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, testutil.CountRows(t, f.db, "intervals", "kind = 'busy'"))
	view, err := svc.Week(ctx, user, nextWeek)
	require.NoError(t, err)
	require.Len(t, view.Busy, 1)
	assert.Equal(t, "b", view.Busy[0].Label)
}

func TestSetBusy_RejectsInvalidInterval(t *testing.T) {
	f := newFixture(t)
	_, err := f.scheduleService(nil).SetBusy(context.Background(), user, testutil.Monday, []domain.Interval{
		{Start: testutil.At(0, 10, 0), End: testutil.At(0, 9, 0), Kind: domain.IntervalBusy},
	})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestSetBusy_ReportsConflictingSessions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	task := f.addTask(t, "Booked", 60)
	f.scheduleTask(t, task, testutil.At(1, 9, 0), testutil.At(1, 10, 0))
	require.NoError(t, f.intervals.InsertOccupied(ctx, user, testutil.Monday, domain.Interval{
		Start: testutil.At(1, 9, 0), End: testutil.At(1, 10, 0), Kind: domain.IntervalOccupied, TaskID: task.ID,
	}))

	res, err := f.scheduleService(nil).SetBusy(ctx, user, testutil.Monday, []domain.Interval{
		testutil.Busy(1, 9, 30, 11, 0, "dentist"),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{task.ID}, res.Conflicts)
	assert.Equal(t, 1, f.logs.FilterMessage("busy time overlaps scheduled sessions").Len())

	stored, err := f.tasks.Get(ctx, user, task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskScheduled, stored.Status)
}

func TestSetBusyFromText_StoresInterpretedBlocks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	var gotWeek time.Time
	svc := f.scheduleService(func(_ context.Context, text string, weekStart time.Time) ([]domain.BusyBlock, error) {
		gotWeek = weekStart
		return []domain.BusyBlock{
			{Start: testutil.At(1, 14, 0), End: testutil.At(1, 15, 0), Label: "gym"},
			{Start: testutil.At(3, 0, 0), End: testutil.At(4, 0, 0), Label: "offsite", AllDay: true},
		}, nil
	})

	res, err := svc.SetBusyFromText(ctx, user, testutil.At(3, 10, 0), "gym tuesday 2pm, offsite thursday")
	require.NoError(t, err)
	assert.Equal(t, testutil.Monday, gotWeek)
	require.Len(t, res.Busy, 2)
	assert.Equal(t, "gym", res.Busy[0].Label)
	assert.True(t, res.Busy[1].AllDay)
}

func TestSetBusyFromText_UpstreamFailureWritesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.scheduleService(nil).SetBusy(ctx, user, testutil.Monday, []domain.Interval{testutil.Busy(0, 9, 0, 10, 0, "kept")})
	require.NoError(t, err)

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"timeout", llm.ErrTimeout, llm.ErrTimeout},
		{"invalid output", llm.ErrInvalidOutput, llm.ErrInvalidOutput},
		{"unavailable", intelligence.ErrUpstreamUnavailable, intelligence.ErrUpstreamUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := f.scheduleService(func(context.Context, string, time.Time) ([]domain.BusyBlock, error) {
				return nil, tt.err
			})
			_, err := svc.SetBusyFromText(ctx, user, testutil.Monday, "anything")
			assert.ErrorIs(t, err, tt.want)

			view, err := svc.Week(ctx, user, testutil.Monday)
			require.NoError(t, err)
			require.Len(t, view.Busy, 1)
			assert.Equal(t, "kept", view.Busy[0].Label)
		})
	}
}

func TestSetBusyFromText_WithoutInterpreter(t *testing.T) {
	f := newFixture(t)
	_, err := f.scheduleService(nil).SetBusyFromText(context.Background(), user, testutil.Monday, "meeting")
	assert.True(t, errors.Is(err, intelligence.ErrUpstreamUnavailable))
}
