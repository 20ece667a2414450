package monitor

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/alexanderramin/cadence/internal/clock"
	"github.com/alexanderramin/cadence/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

var nine = time.Date(2025, 6, 16, 9, 0, 0, 0, time.UTC)

type memStore struct {
	mu    sync.Mutex
	tasks map[string]*domain.Task
	cas   int
}

func newMemStore(tasks ...*domain.Task) *memStore {
	s := &memStore{tasks: make(map[string]*domain.Task)}
	for _, t := range tasks {
		s.tasks[t.ID] = t
	}
	return s
}

func (s *memStore) ListByStatus(_ context.Context, userID string, statuses ...domain.TaskStatus) ([]*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.tasks))
	for id := range s.tasks {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var out []*domain.Task
	for _, id := range ids {
		t := s.tasks[id]
		if t.UserID != userID {
			continue
		}
		for _, st := range statuses {
			if t.Status == st {
				cp := *t
				out = append(out, &cp)
				break
			}
		}
	}
	return out, nil
}

func (s *memStore) CompareAndSetStatus(_ context.Context, userID, taskID string, from, to domain.TaskStatus, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[taskID]
	if !ok || t.UserID != userID || t.Status != from {
		return false, nil
	}
	s.cas++
	t.Status = to
	t.UpdatedAt = at
	return true, nil
}

func (s *memStore) status(id string) domain.TaskStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tasks[id].Status
}

func scheduledTask(id string, start time.Time, minutes int) *domain.Task {
	end := start.Add(time.Duration(minutes) * time.Minute)
	return &domain.Task{
		ID: id, UserID: "u1", Title: "Task " + id, Priority: domain.PriorityMedium,
		EstimatedMin: minutes, Status: domain.TaskScheduled,
		ScheduledStart: &start, ScheduledEnd: &end,
	}
}

func TestTick_LateStartFlaggedOnce(t *testing.T) {
	store := newMemStore(scheduledTask("a", nine, 60))
	clk := clock.Fake(nine.Add(20 * time.Minute))
	m := New(store, clk, DefaultConfig())

	r, err := m.Tick(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, r.Flags, 1)
	assert.Equal(t, FlagLateStart, r.Flags[0].Kind)
	assert.False(t, r.ReplanNeeded)

	r, err = m.Tick(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, r.Flags)
	assert.Equal(t, domain.TaskScheduled, store.status("a"), "late start never changes status")
}

func TestTick_WithinGraceIsQuiet(t *testing.T) {
	store := newMemStore(scheduledTask("a", nine, 60))
	m := New(store, clock.Fake(nine.Add(15*time.Minute)), DefaultConfig())

	r, err := m.Tick(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, r.Flags)
}

func TestTick_WindowElapsedMovesToOverdueOnce(t *testing.T) {
	store := newMemStore(scheduledTask("a", nine, 60))
	clk := clock.Fake(nine.Add(2 * time.Hour))
	m := New(store, clk, DefaultConfig())

	r, err := m.Tick(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, r.Flags, 1)
	assert.Equal(t, FlagWindowElapsed, r.Flags[0].Kind)
	assert.Equal(t, []string{"a"}, r.Overdue)
	assert.Equal(t, domain.TaskOverdue, store.status("a"))

	r, err = m.Tick(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, r.Flags)
	assert.Empty(t, r.Overdue)
	assert.Equal(t, 1, store.cas)
}

func TestTick_Overrun(t *testing.T) {
	task := scheduledTask("a", nine, 60)
	task.Status = domain.TaskInProgress
	store := newMemStore(task)
	m := New(store, clock.Fake(nine.Add(70*time.Minute)), DefaultConfig())

	r, err := m.Tick(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, r.Flags, 1)
	assert.Equal(t, FlagOverrun, r.Flags[0].Kind)
	assert.Equal(t, domain.TaskInProgress, store.status("a"))
}

func TestTick_MissedDeadlineRequestsReplan(t *testing.T) {
	deadline := nine.Add(-time.Hour)
	task := &domain.Task{ID: "b", UserID: "u1", Title: "Tax return", Priority: domain.PriorityHigh,
		EstimatedMin: 60, Status: domain.TaskPending, Deadline: &deadline}
	store := newMemStore(task)
	m := New(store, clock.Fake(nine), DefaultConfig())

	r, err := m.Tick(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, r.Flags, 1)
	assert.Equal(t, FlagMissedDeadline, r.Flags[0].Kind)
	assert.True(t, r.ReplanNeeded)
	assert.Equal(t, "missed deadline: Tax return", r.ReplanReason)
	assert.Equal(t, domain.TaskOverdue, store.status("b"))
}

func TestTick_ThresholdTriggersReplan(t *testing.T) {
	clk := clock.Fake(nine.Add(30 * time.Minute))

	three := newMemStore(scheduledTask("a", nine, 60), scheduledTask("b", nine, 60), scheduledTask("c", nine, 60))
	r, err := New(three, clk, DefaultConfig()).Tick(context.Background(), "u1")
	require.NoError(t, err)
	assert.Len(t, r.Flags, 3)
	assert.False(t, r.ReplanNeeded)

	four := newMemStore(scheduledTask("a", nine, 60), scheduledTask("b", nine, 60),
		scheduledTask("c", nine, 60), scheduledTask("d", nine, 60))
	r, err = New(four, clk, DefaultConfig()).Tick(context.Background(), "u1")
	require.NoError(t, err)
	assert.Len(t, r.Flags, 4)
	assert.True(t, r.ReplanNeeded)
	assert.Equal(t, "4 schedule deviations", r.ReplanReason)
}

func TestTick_OtherUsersUntouched(t *testing.T) {
	other := scheduledTask("a", nine, 60)
	other.UserID = "u2"
	store := newMemStore(other)
	m := New(store, clock.Fake(nine.Add(3*time.Hour)), DefaultConfig())

	r, err := m.Tick(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, r.Flags)
	assert.Equal(t, domain.TaskScheduled, store.status("a"))
}

func TestTick_CancelledContext(t *testing.T) {
	store := newMemStore(scheduledTask("a", nine, 60))
	m := New(store, clock.Fake(nine.Add(3*time.Hour)), DefaultConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.Tick(ctx, "u1")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, domain.TaskScheduled, store.status("a"))
}

func TestTick_LogsFlags(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	store := newMemStore(scheduledTask("a", nine, 60))
	m := New(store, clock.Fake(nine.Add(30*time.Minute)), DefaultConfig(), WithLogger(zap.New(core)))

	_, err := m.Tick(context.Background(), "u1")
	require.NoError(t, err)
	entries := logs.FilterMessage("monitor tick").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "u1", entries[0].ContextMap()["user_id"])
}

type countingLocker struct {
	mu    sync.Mutex
	calls int
}

func (l *countingLocker) Lock(string) func() {
	l.mu.Lock()
	l.calls++
	l.mu.Unlock()
	return func() {}
}

func TestRun_TicksOnIntervalAndStopsOnCancel(t *testing.T) {
	store := newMemStore(scheduledTask("a", nine, 60))
	clk := clock.Fake(nine)
	locker := &countingLocker{}
	m := New(store, clk, DefaultConfig(), WithLocker(locker))

	reports := make(chan Report, 4)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- m.Run(ctx, []string{"u1"}, func(r Report) { reports <- r })
	}()

	clk.WaitForTickers(1)
	clk.Advance(15 * time.Minute)
	select {
	case r := <-reports:
		assert.Empty(t, r.Flags, "15 minutes in is still within grace")
	case <-time.After(2 * time.Second):
		t.Fatal("no report after first interval")
	}

	clk.Advance(15 * time.Minute)
	select {
	case r := <-reports:
		require.Len(t, r.Flags, 1)
		assert.Equal(t, FlagLateStart, r.Flags[0].Kind)
	case <-time.After(2 * time.Second):
		t.Fatal("no report after second interval")
	}

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
	assert.Equal(t, 2, locker.calls)
}

func (s *memStore) setStatus(id string, st domain.TaskStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[id].Status = st
}

func TestTick_MissedDeadlineRequestsReplanOnce(t *testing.T) {
	deadline := nine.Add(-2 * time.Hour)
	task := scheduledTask("late", nine, 60)
	task.Deadline = &deadline
	store := newMemStore(task, scheduledTask("healthy", nine.Add(3*time.Hour), 60))
	clk := clock.Fake(nine)
	m := New(store, clk, DefaultConfig())

	r, err := m.Tick(context.Background(), "u1")
	require.NoError(t, err)
	assert.True(t, r.ReplanNeeded)

	// A replan hands the overdue task back as pending.
	for i := 0; i < 4; i++ {
		store.setStatus("late", domain.TaskPending)
		clk.Advance(15 * time.Minute)

		r, err = m.Tick(context.Background(), "u1")
		require.NoError(t, err)
		assert.Empty(t, r.Flags, "tick %d", i)
		assert.False(t, r.ReplanNeeded, "tick %d: %s", i, r.ReplanReason)
	}
}

func TestTick_OverdueTaskKeepsDedupState(t *testing.T) {
	store := newMemStore(scheduledTask("a", nine, 60))
	clk := clock.Fake(nine.Add(2 * time.Hour))
	m := New(store, clk, DefaultConfig())

	_, err := m.Tick(context.Background(), "u1")
	require.NoError(t, err)
	clk.Advance(time.Hour)
	_, err = m.Tick(context.Background(), "u1")
	require.NoError(t, err)

	assert.Len(t, m.seen["u1"], 1)

	store.setStatus("a", domain.TaskCompleted)
	_, err = m.Tick(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, m.seen["u1"], "completed tasks are forgotten")
}

type memSeen struct {
	flags map[string][]domain.SeenFlag
	saves int
}

func (s *memSeen) LoadSeenFlags(_ context.Context, userID string) ([]domain.SeenFlag, error) {
	return s.flags[userID], nil
}

func (s *memSeen) ReplaceSeenFlags(_ context.Context, userID string, flags []domain.SeenFlag) error {
	s.saves++
	s.flags[userID] = flags
	return nil
}

func TestTick_SeenStoreCarriesFlagsAcrossMonitors(t *testing.T) {
	store := newMemStore(scheduledTask("a", nine, 60))
	clk := clock.Fake(nine.Add(20 * time.Minute))
	seen := &memSeen{flags: make(map[string][]domain.SeenFlag)}

	r, err := New(store, clk, DefaultConfig(), WithSeenStore(seen)).Tick(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, r.Flags, 1)
	require.Len(t, seen.flags["u1"], 1)
	assert.True(t, seen.flags["u1"][0].Ref.Equal(nine))

	r, err = New(store, clk, DefaultConfig(), WithSeenStore(seen)).Tick(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, r.Flags)
	assert.Equal(t, 1, seen.saves, "nothing new to save")
}
