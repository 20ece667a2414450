package scheduler

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/alexanderramin/cadence/internal/domain"
	"github.com/alexanderramin/cadence/internal/ledger"
)

// DefaultBiasThreshold is how far the learned duration bias must stray from
// 1.0 before planned durations are corrected.
const DefaultBiasThreshold = 0.10

// AllocationInput carries everything one planning run needs.
type AllocationInput struct {
	UserID string

	// Tasks to place. Completed tasks are ignored.
	Tasks []*domain.Task

	// Known holds every task of the user by ID, for dependency lookups
	// outside the candidate set.
	Known map[string]*domain.Task

	Ledger  *ledger.Ledger
	Profile domain.UserProfile
	Horizon domain.Horizon
	Context string
	Hints   []domain.OrderingHint

	// PreviouslyOverdue marks tasks that were overdue before a replan reset
	// them to pending. They sort first.
	PreviouslyOverdue map[string]bool

	BiasThreshold float64
	Now           time.Time
}

// Allocate builds a greedy, deterministic plan. Only a malformed horizon is
// an error; tasks that cannot be placed are reported on the plan. The input
// ledger is never modified.
func Allocate(in AllocationInput) (*domain.Plan, error) {
	if err := in.Horizon.Validate(); err != nil {
		return nil, err
	}
	if in.Ledger == nil {
		in.Ledger = ledger.New(in.Profile.Location())
	}
	threshold := in.BiasThreshold
	if threshold <= 0 {
		threshold = DefaultBiasThreshold
	}

	plan := &domain.Plan{
		UserID:       in.UserID,
		HorizonStart: in.Horizon.Start,
		HorizonEnd:   in.Horizon.End,
		Context:      in.Context,
		Hints:        in.Hints,
		Status:       domain.PlanDraft,
		CreatedAt:    in.Now,
	}

	pending := make(map[string]*domain.Task)
	for _, t := range in.Tasks {
		if t.Status != domain.TaskCompleted {
			pending[t.ID] = t
		}
	}

	scratch := in.Ledger.Clone()
	for id := range pending {
		scratch.RemoveTask(id)
	}

	hints := make(map[string]int, len(in.Hints))
	for _, h := range in.Hints {
		hints[h.TaskID] = h.Rank
	}

	deferred := deferUnmetDependencies(pending, in.Known)
	var cands []Candidate
	for _, id := range sortedIDs(pending) {
		t := pending[id]
		if reason, ok := deferred[id]; ok {
			plan.Deferred = append(plan.Deferred, domain.PlanIssue{
				TaskID: id, Title: t.Title, Code: domain.IssueDeferred, Reason: reason,
			})
			continue
		}
		overdue := t.Status == domain.TaskOverdue || in.PreviouslyOverdue[id]
		cands = append(cands, newCandidate(t, overdue, hints, plannedMinutes(t, &in.Profile, threshold)))
	}
	CanonicalSort(cands, in.Horizon)

	p := placer{
		ledger:  scratch,
		profile: &in.Profile,
		loc:     in.Profile.Location(),
		horizon: in.Horizon,
	}
	ends := make(map[string]time.Time)
	failed := make(map[string]bool)

	for _, c := range dependencyOrder(cands) {
		t := c.Task
		notBefore := in.Horizon.Start
		if blocker := firstFailedDependency(t, failed); blocker != "" {
			failed[t.ID] = true
			plan.Deferred = append(plan.Deferred, domain.PlanIssue{
				TaskID: t.ID, Title: t.Title, Code: domain.IssueDeferred,
				Reason: fmt.Sprintf("depends on %s, which could not be scheduled", blocker),
			})
			continue
		}
		for _, dep := range t.Dependencies {
			if end, ok := ends[dep]; ok && end.After(notBefore) {
				notBefore = end
			} else if k := in.Known[dep]; k != nil && k.ScheduledEnd != nil && k.Status != domain.TaskCompleted && k.ScheduledEnd.After(notBefore) {
				notBefore = *k.ScheduledEnd
			}
		}

		entries, issue := p.place(c, notBefore)
		if issue != nil {
			failed[t.ID] = true
			plan.Unschedulable = append(plan.Unschedulable, *issue)
			continue
		}
		plan.Entries = append(plan.Entries, entries...)
		ends[t.ID] = entries[len(entries)-1].End
	}

	sort.SliceStable(plan.Entries, func(i, j int) bool {
		return plan.Entries[i].Start.Before(plan.Entries[j].Start)
	})
	plan.Reasoning = summarize(plan, len(pending))
	return plan, nil
}

// plannedMinutes applies the learned duration bias once it is outside the
// noise threshold.
func plannedMinutes(t *domain.Task, p *domain.UserProfile, threshold float64) int {
	bias := p.BiasFor(t)
	if math.Abs(bias-1) <= threshold {
		return t.EstimatedMin
	}
	planned := int(math.Round(float64(t.EstimatedMin) * bias))
	if planned < 1 {
		planned = 1
	}
	return planned
}

// deferUnmetDependencies returns the tasks whose dependencies are neither
// completed, already scheduled, nor placeable in this run, with a reason.
// Deferral propagates to dependents.
func deferUnmetDependencies(pending map[string]*domain.Task, known map[string]*domain.Task) map[string]string {
	deferred := make(map[string]string)
	for _, id := range sortedIDs(pending) {
		for _, dep := range pending[id].Dependencies {
			if _, ok := pending[dep]; ok {
				continue
			}
			k, ok := known[dep]
			switch {
			case !ok:
				deferred[id] = fmt.Sprintf("dependency %s not found", dep)
			case k.Status == domain.TaskCompleted:
			case k.ScheduledEnd != nil && (k.Status == domain.TaskScheduled || k.Status == domain.TaskInProgress):
			default:
				deferred[id] = fmt.Sprintf("waiting on %q (%s)", k.Title, k.Status)
			}
			if _, ok := deferred[id]; ok {
				break
			}
		}
	}

	for changed := true; changed; {
		changed = false
		for _, id := range sortedIDs(pending) {
			if _, ok := deferred[id]; ok {
				continue
			}
			for _, dep := range pending[id].Dependencies {
				if _, ok := deferred[dep]; ok {
					deferred[id] = fmt.Sprintf("waiting on deferred task %q", pending[dep].Title)
					changed = true
					break
				}
			}
		}
	}
	return deferred
}

// dependencyOrder keeps the canonical order but never emits a task before
// the candidates it depends on.
func dependencyOrder(cands []Candidate) []Candidate {
	inSet := make(map[string]bool, len(cands))
	for _, c := range cands {
		inSet[c.Task.ID] = true
	}
	emitted := make(map[string]bool, len(cands))
	out := make([]Candidate, 0, len(cands))
	remaining := cands
	for len(remaining) > 0 {
		progressed := false
		for i, c := range remaining {
			ready := true
			for _, dep := range c.Task.Dependencies {
				if inSet[dep] && !emitted[dep] {
					ready = false
					break
				}
			}
			if ready {
				out = append(out, c)
				emitted[c.Task.ID] = true
				remaining = append(remaining[:i:i], remaining[i+1:]...)
				progressed = true
				break
			}
		}
		if !progressed {
			// Cycles are rejected on insert; keep whatever is left in order.
			return append(out, remaining...)
		}
	}
	return out
}

func firstFailedDependency(t *domain.Task, failed map[string]bool) string {
	for _, dep := range t.Dependencies {
		if failed[dep] {
			return dep
		}
	}
	return ""
}

func sortedIDs(m map[string]*domain.Task) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func summarize(plan *domain.Plan, considered int) string {
	var b strings.Builder
	placed := len(plan.TaskIDs())
	fmt.Fprintf(&b, "Placed %d of %d tasks in %d sessions between %s and %s.",
		placed, considered, len(plan.Entries),
		plan.HorizonStart.Format("Mon Jan 2 15:04"), plan.HorizonEnd.Format("Mon Jan 2 15:04"))
	if n := len(plan.Deferred); n > 0 {
		fmt.Fprintf(&b, " %d deferred on dependencies.", n)
	}
	if n := len(plan.Unschedulable); n > 0 {
		fmt.Fprintf(&b, " %d could not be fully scheduled.", n)
	}
	if plan.Context != "" {
		fmt.Fprintf(&b, " Context: %s.", strings.TrimSuffix(plan.Context, "."))
	}
	return b.String()
}
