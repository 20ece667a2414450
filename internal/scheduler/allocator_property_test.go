package scheduler

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/alexanderramin/cadence/internal/domain"
	"github.com/alexanderramin/cadence/internal/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var priorities = []domain.Priority{domain.PriorityLow, domain.PriorityMedium, domain.PriorityHigh, domain.PriorityUrgent}

func randomInput(t *testing.T, rng *rand.Rand) AllocationInput {
	var busy []domain.Interval
	for day := 0; day < 7; day++ {
		for n := rng.Intn(3); n > 0; n-- {
			startMin := 8*60 + rng.Intn(9*60)
			length := 15 * (rng.Intn(12) + 1)
			start := at(day, 0, startMin)
			busy = append(busy, domain.Interval{Start: start, End: start.Add(time.Duration(length) * time.Minute), Label: "meeting"})
		}
	}
	l := ledger.New(time.UTC)
	require.NoError(t, l.SetBusy(monday, busy))

	numTasks := rng.Intn(10) + 1
	tasks := make([]*domain.Task, numTasks)
	for i := range tasks {
		est := 15 * (rng.Intn(20) + 1)
		task := newTask(fmt.Sprintf("t%02d", i), est, withPriority(priorities[rng.Intn(len(priorities))]))
		if rng.Intn(3) == 0 {
			task.RequiresDeepFocus = true
		}
		if rng.Intn(2) == 0 {
			task.CanSplit = true
			task.MinSessionMin = 15 * (rng.Intn(est/15) + 1)
		}
		if rng.Intn(2) == 0 {
			d := at(rng.Intn(7), rng.Intn(24), 0)
			task.Deadline = &d
		}
		if rng.Intn(5) == 0 {
			task.Status = domain.TaskOverdue
		}
		tasks[i] = task
	}

	in := baseInput(l, 7, tasks...)
	in.Profile.PeakHours = []int{9 + rng.Intn(8)}
	in.Profile.MinBufferMin = 5 * rng.Intn(4)
	in.Profile.MaxDailyWorkMin = 60 * (rng.Intn(8) + 2)
	in.Profile.DurationBias = 0.75 + rng.Float64()*0.75
	return in
}

func TestAllocate_Invariants(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for trial := 0; trial < 300; trial++ {
		in := randomInput(t, rng)
		plan, err := Allocate(in)
		require.NoError(t, err, "trial %d", trial)

		// Invariant 1: no two sessions overlap
		for i := range plan.Entries {
			for j := i + 1; j < len(plan.Entries); j++ {
				a, b := plan.Entries[i], plan.Entries[j]
				assert.False(t, a.Start.Before(b.End) && b.Start.Before(a.End),
					"trial %d: %s and %s overlap", trial, a.TaskID, b.TaskID)
			}
		}

		// Invariant 2: sessions avoid busy time
		for _, e := range plan.Entries {
			for _, b := range in.Ledger.Busy() {
				assert.False(t, e.Start.Before(b.End) && b.Start.Before(e.End),
					"trial %d: %s overlaps busy %s", trial, e.TaskID, b.Label)
			}
		}

		byID := make(map[string]*domain.Task)
		for _, task := range in.Tasks {
			byID[task.ID] = task
		}
		daily := make(map[int]int)
		for id, sessions := range entriesByTask(plan) {
			task := byID[id]
			total := 0
			for _, s := range sessions {
				total += s.Minutes()
				daily[s.Start.YearDay()] += s.Minutes()

				// Invariant 3: never past the deadline
				if task.Deadline != nil {
					assert.False(t, s.End.After(*task.Deadline),
						"trial %d: %s ends %s after deadline %s", trial, id, s.End, task.Deadline)
				}
				// Invariant 4: split sessions respect the minimum
				if len(sessions) > 1 {
					assert.GreaterOrEqual(t, s.Minutes(), task.MinSessionMin, "trial %d: %s session too short", trial, id)
				}
			}
			// Invariant 5: sessions sum to the planned duration
			assert.Equal(t, sessions[0].PlannedMin, total, "trial %d: %s coverage", trial, id)
		}

		// Invariant 6: daily cap holds
		for day, minutes := range daily {
			assert.LessOrEqual(t, minutes, in.Profile.MaxDailyWorkMin, "trial %d: day %d over cap", trial, day)
		}

		// Invariant 7: every task is accounted for exactly once
		seen := make(map[string]int)
		for _, id := range plan.TaskIDs() {
			seen[id]++
		}
		for _, issue := range plan.Issues() {
			seen[issue.TaskID]++
		}
		for _, task := range in.Tasks {
			assert.Equal(t, 1, seen[task.ID], "trial %d: %s accounted %d times", trial, task.ID, seen[task.ID])
		}
	}
}

func TestAllocate_Deterministic(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 50; trial++ {
		in := randomInput(t, rng)
		first, err := Allocate(in)
		require.NoError(t, err)
		second, err := Allocate(in)
		require.NoError(t, err)
		assert.Equal(t, first, second, "trial %d", trial)
	}
}
