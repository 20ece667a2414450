package scheduler

import (
	"math"
	"sort"
	"time"

	"github.com/alexanderramin/cadence/internal/domain"
)

// maxRank marks a candidate without an ordering hint.
const maxRank = math.MaxInt

// Candidate is a task prepared for placement.
type Candidate struct {
	Task       *domain.Task
	Overdue    bool
	HintRank   int // maxRank when no hint applies
	PlannedMin int
}

func newCandidate(t *domain.Task, overdue bool, hints map[string]int, plannedMin int) Candidate {
	rank, ok := hints[t.ID]
	if !ok {
		rank = maxRank
	}
	return Candidate{Task: t, Overdue: overdue, HintRank: rank, PlannedMin: plannedMin}
}

// CanonicalSort orders candidates by the deterministic placement rules:
// 1. Overdue first
// 2. Deadline inside the horizon: earliest first, others after
// 3. Priority: urgent > high > medium > low
// 4. External ordering hint: lower rank first
// 5. Deep focus before shallow work
// 6. Planned duration: longest first
// 7. Task ID (lexical)
func CanonicalSort(cands []Candidate, horizon domain.Horizon) {
	sort.SliceStable(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]

		if a.Overdue != b.Overdue {
			return a.Overdue
		}

		dueA, dueB := deadlineWithin(a.Task, horizon), deadlineWithin(b.Task, horizon)
		if (dueA == nil) != (dueB == nil) {
			return dueA != nil
		}
		if dueA != nil && !dueA.Equal(*dueB) {
			return dueA.Before(*dueB)
		}

		if pa, pb := a.Task.Priority.Rank(), b.Task.Priority.Rank(); pa != pb {
			return pa > pb
		}

		if a.HintRank != b.HintRank {
			return a.HintRank < b.HintRank
		}

		if a.Task.RequiresDeepFocus != b.Task.RequiresDeepFocus {
			return a.Task.RequiresDeepFocus
		}

		if a.PlannedMin != b.PlannedMin {
			return a.PlannedMin > b.PlannedMin
		}

		return a.Task.ID < b.Task.ID
	})
}

func deadlineWithin(t *domain.Task, h domain.Horizon) *time.Time {
	if t.Deadline == nil || !t.Deadline.Before(h.End) {
		return nil
	}
	return t.Deadline
}
