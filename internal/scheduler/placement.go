package scheduler

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/alexanderramin/cadence/internal/domain"
	"github.com/alexanderramin/cadence/internal/ledger"
)

type placer struct {
	ledger  *ledger.Ledger
	profile *domain.UserProfile
	loc     *time.Location
	horizon domain.Horizon
}

// option is a feasible session start and the longest session it allows.
type option struct {
	start  time.Time
	maxMin int
}

// place books one task into the scratch ledger and returns its sessions, or
// the issue explaining why it could not be placed in full. A partially
// placed task is released from the scratch ledger.
func (p *placer) place(c Candidate, notBefore time.Time) ([]domain.PlanEntry, *domain.PlanIssue) {
	t := c.Task
	latest := p.horizon.End
	if t.Deadline != nil && t.Deadline.Before(latest) {
		latest = *t.Deadline
	}
	if !latest.After(notBefore) {
		if t.Deadline != nil && !t.Deadline.After(notBefore) {
			return nil, p.issue(t, domain.IssuePastDeadline,
				fmt.Sprintf("deadline %s is before the earliest possible start %s",
					p.stamp(*t.Deadline), p.stamp(notBefore)), nil)
		}
		return nil, p.issue(t, domain.IssueUnschedulable, "no time left in the horizon after its dependencies", nil)
	}

	need := c.PlannedMin
	maxSession := p.sessionCap(t)
	if maxSession == 0 || need <= maxSession {
		if opts := p.options(notBefore, latest, need, need, 0); len(opts) > 0 {
			o, why := p.prefer(t, opts)
			if err := p.book(t.ID, o.start, need); err == nil {
				return p.entries(c, []domain.Interval{p.interval(t.ID, o.start, need)}, []string{why}), nil
			}
		}
	}

	if !t.CanSplit {
		if need > p.dayCapacity() {
			return nil, p.issue(t, domain.IssueSessionTooLong,
				fmt.Sprintf("needs %d min in one block but a working day allows at most %d", need, p.dayCapacity()), nil)
		}
		return nil, p.issue(t, domain.IssueUnschedulable,
			fmt.Sprintf("no free %d min block before %s", need, p.stamp(latest)), nil)
	}

	minSession := t.MinSessionMin
	if minSession > need {
		minSession = need
	}
	remaining := need
	var sessions []domain.Interval
	var whys []string
	for remaining > 0 {
		opts := p.options(notBefore, latest, minSession, remaining, minSession)
		if len(opts) == 0 {
			break
		}
		o, why := p.prefer(t, opts)
		length := sessionLength(o.maxMin, remaining, minSession)
		if maxSession > 0 {
			if capped := sessionLength(min(o.maxMin, max(maxSession, minSession)), remaining, minSession); capped >= minSession {
				length = capped
			}
		}
		if err := p.book(t.ID, o.start, length); err != nil {
			break
		}
		sessions = append(sessions, p.interval(t.ID, o.start, length))
		whys = append(whys, why)
		remaining -= length
	}

	if remaining > 0 {
		p.ledger.RemoveTask(t.ID)
		partial := p.entries(c, sessions, whys)
		reason := fmt.Sprintf("only %d of %d min fit before %s", need-remaining, need, p.stamp(latest))
		if len(sessions) == 0 {
			reason = fmt.Sprintf("no free session of %d min before %s", minSession, p.stamp(latest))
			return nil, p.issue(t, domain.IssueUnschedulable, reason, nil)
		}
		return nil, p.issue(t, domain.IssuePartial, reason, partial)
	}
	return p.entries(c, sessions, whys), nil
}

// options lists session starts in [from, to) that leave room for at least
// minMin minutes under the daily cap. For split tasks (tail > 0), a start is
// kept only if the session it allows leaves no remainder shorter than tail.
func (p *placer) options(from, to time.Time, minMin, want, tail int) []option {
	q := ledger.QueryFor(p.profile, time.Duration(minMin)*time.Minute)
	var out []option
	for gap := range p.ledger.FreeSlots(from, to, q) {
		capLeft := p.capLeft(gap.Start)
		for _, start := range hourStarts(gap.Start, gap.End, p.loc) {
			avail := int(gap.End.Sub(start) / time.Minute)
			if capLeft >= 0 && avail > capLeft {
				avail = capLeft
			}
			if avail < minMin {
				continue
			}
			if tail > 0 && sessionLength(avail, want, tail) < tail {
				continue
			}
			out = append(out, option{start: start, maxMin: avail})
		}
	}
	return out
}

// prefer picks a start: a peak hour for deep-focus work, then the morning
// when the user asked for morning deep work, then the preferred time of
// day, then the earliest option.
func (p *placer) prefer(t *domain.Task, opts []option) (option, string) {
	if t.RequiresDeepFocus {
		for _, o := range opts {
			if h := o.start.In(p.loc).Hour(); p.profile.IsPeakHour(h) {
				return o, fmt.Sprintf("deep focus at peak hour %02d:00", h)
			}
		}
		if p.profile.PreferMorningDeepWork {
			from, to, _ := domain.TimeOfDayMorning.Window()
			for _, o := range opts {
				if h := o.start.In(p.loc).Hour(); h >= from && h < to {
					return o, "deep focus in the morning"
				}
			}
		}
	}
	if from, to, ok := t.PreferredTimeOfDay.Window(); ok {
		for _, o := range opts {
			if h := o.start.In(p.loc).Hour(); h >= from && h < to {
				return o, fmt.Sprintf("matches %s preference", t.PreferredTimeOfDay)
			}
		}
	}
	return opts[0], "earliest available slot"
}

// sessionLength fills as much of the remainder as avail allows without
// leaving a tail shorter than minSession.
func sessionLength(avail, remaining, minSession int) int {
	length := remaining
	if avail < length {
		length = avail
	}
	if left := remaining - length; left > 0 && left < minSession {
		length = remaining - minSession
	}
	return length
}

func (p *placer) capLeft(day time.Time) int {
	if p.profile.MaxDailyWorkMin <= 0 {
		return -1
	}
	left := p.profile.MaxDailyWorkMin - p.ledger.OccupiedMinutesOn(day)
	if left < 0 {
		return 0
	}
	return left
}

// sessionCap is the learned session length limit for a split task, or 0.
func (p *placer) sessionCap(t *domain.Task) int {
	if !t.CanSplit || p.profile.PreferredSessionMin <= 0 {
		return 0
	}
	return max(p.profile.PreferredSessionMin, t.MinSessionMin)
}

func (p *placer) dayCapacity() int {
	capacity := p.profile.WorkEndMin - p.profile.WorkStartMin
	if start, end, ok := p.profile.BreakWindow(); ok {
		capacity -= end - start
	}
	if p.profile.MaxDailyWorkMin > 0 && p.profile.MaxDailyWorkMin < capacity {
		capacity = p.profile.MaxDailyWorkMin
	}
	return capacity
}

func (p *placer) interval(taskID string, start time.Time, minutes int) domain.Interval {
	return domain.Interval{
		Start:  start,
		End:    start.Add(time.Duration(minutes) * time.Minute),
		Kind:   domain.IntervalOccupied,
		TaskID: taskID,
	}
}

func (p *placer) book(taskID string, start time.Time, minutes int) error {
	return p.ledger.AddOccupied(p.interval(taskID, start, minutes))
}

func (p *placer) entries(c Candidate, sessions []domain.Interval, whys []string) []domain.PlanEntry {
	order := make([]int, len(sessions))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return sessions[order[i]].Start.Before(sessions[order[j]].Start)
	})

	out := make([]domain.PlanEntry, 0, len(sessions))
	for n, i := range order {
		out = append(out, domain.PlanEntry{
			TaskID:     c.Task.ID,
			Title:      c.Task.Title,
			Session:    n + 1,
			Sessions:   len(sessions),
			Start:      sessions[i].Start,
			End:        sessions[i].End,
			Rationale:  p.rationale(c, whys[i], n+1, len(sessions)),
			PlannedMin: c.PlannedMin,
		})
	}
	return out
}

func (p *placer) rationale(c Candidate, why string, session, sessions int) string {
	t := c.Task
	var parts []string
	if c.Overdue {
		parts = append(parts, "overdue")
	}
	if t.Deadline != nil {
		parts = append(parts, "due "+p.stamp(*t.Deadline))
	}
	parts = append(parts, string(t.Priority)+" priority")
	if c.HintRank != maxRank {
		parts = append(parts, fmt.Sprintf("reviewer rank %d", c.HintRank))
	}
	parts = append(parts, why)
	if c.PlannedMin != t.EstimatedMin {
		parts = append(parts, fmt.Sprintf("planned %d min from a %d min estimate (learned bias)", c.PlannedMin, t.EstimatedMin))
	}
	if sessions > 1 {
		parts = append(parts, fmt.Sprintf("session %d of %d", session, sessions))
	}
	return strings.Join(parts, "; ")
}

func (p *placer) issue(t *domain.Task, code domain.IssueCode, reason string, partial []domain.PlanEntry) *domain.PlanIssue {
	return &domain.PlanIssue{TaskID: t.ID, Title: t.Title, Code: code, Reason: reason, Partial: partial}
}

func (p *placer) stamp(t time.Time) string {
	return t.In(p.loc).Format("Mon Jan 2 15:04")
}

// hourStarts returns start plus every local hour boundary inside (start, end).
func hourStarts(start, end time.Time, loc *time.Location) []time.Time {
	out := []time.Time{start}
	local := start.In(loc)
	y, m, d := local.Date()
	next := time.Date(y, m, d, local.Hour()+1, 0, 0, 0, loc)
	for ; next.Before(end); next = next.Add(time.Hour) {
		out = append(out, next)
	}
	return out
}
