// Package ledger keeps the busy and occupied intervals of one user and
// answers free-slot queries against working hours.
package ledger

import (
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/alexanderramin/cadence/internal/domain"
)

// Ledger holds intervals in the user's time zone. Busy intervals are kept
// merged and split at local midnight; occupied intervals never overlap each
// other. A Ledger is not safe for concurrent mutation.
type Ledger struct {
	loc      *time.Location
	busy     []domain.Interval
	occupied []domain.Interval
}

func New(loc *time.Location) *Ledger {
	if loc == nil {
		loc = time.UTC
	}
	return &Ledger{loc: loc}
}

func (l *Ledger) Location() *time.Location { return l.loc }

// SetBusy replaces every busy interval of the week containing weekStart.
// Inputs are clipped to the week, merged where they overlap or touch, and
// split at local midnight. Calling it twice with the same input leaves the
// same state as calling it once.
func (l *Ledger) SetBusy(weekStart time.Time, intervals []domain.Interval) error {
	ws := domain.WeekStart(weekStart, l.loc)
	we := ws.AddDate(0, 0, 7)

	clipped := make([]domain.Interval, 0, len(intervals))
	for i, iv := range intervals {
		if iv.Kind == "" {
			iv.Kind = domain.IntervalBusy
		}
		if iv.Kind != domain.IntervalBusy {
			return fmt.Errorf("busy interval %d: %w", i, &domain.ValidationError{Field: "kind", Message: "expected busy"})
		}
		if err := iv.Validate(); err != nil {
			return fmt.Errorf("busy interval %d: %w", i, err)
		}
		if iv.Start.Before(ws) {
			iv.Start = ws
		}
		if iv.End.After(we) {
			iv.End = we
		}
		if !iv.End.After(iv.Start) {
			continue
		}
		clipped = append(clipped, iv)
	}

	normalized := splitAtMidnight(merge(clipped), l.loc)

	kept := l.busy[:0:0]
	for _, iv := range l.busy {
		if iv.Start.Before(ws) || !iv.Start.Before(we) {
			kept = append(kept, iv)
		}
	}
	l.busy = append(kept, normalized...)
	sortIntervals(l.busy)
	return nil
}

// LoadBusy appends already-normalized busy intervals read from storage.
func (l *Ledger) LoadBusy(intervals []domain.Interval) {
	l.busy = append(l.busy, intervals...)
	sortIntervals(l.busy)
}

// AddOccupied books a task session. It fails with ErrIntervalOverlap when
// the session overlaps another occupied interval.
func (l *Ledger) AddOccupied(iv domain.Interval) error {
	if iv.Kind == "" {
		iv.Kind = domain.IntervalOccupied
	}
	if err := iv.Validate(); err != nil {
		return err
	}
	if iv.Kind != domain.IntervalOccupied {
		return &domain.ValidationError{Field: "kind", Message: "expected occupied"}
	}
	for _, o := range l.occupied {
		if o.Overlaps(iv) {
			return fmt.Errorf("%s %s-%s collides with task %s: %w", iv.TaskID,
				iv.Start.Format(time.RFC3339), iv.End.Format(time.RFC3339), o.TaskID, domain.ErrIntervalOverlap)
		}
	}
	i := sort.Search(len(l.occupied), func(i int) bool { return l.occupied[i].Start.After(iv.Start) })
	l.occupied = slices.Insert(l.occupied, i, iv)
	return nil
}

// RemoveTask drops every occupied interval owned by taskID and returns how
// many were removed.
func (l *Ledger) RemoveTask(taskID string) int {
	n := len(l.occupied)
	l.occupied = slices.DeleteFunc(l.occupied, func(iv domain.Interval) bool { return iv.TaskID == taskID })
	return n - len(l.occupied)
}

func (l *Ledger) Busy() []domain.Interval     { return slices.Clone(l.busy) }
func (l *Ledger) Occupied() []domain.Interval { return slices.Clone(l.occupied) }

// BusyInWeek returns the busy intervals of the week containing weekStart.
func (l *Ledger) BusyInWeek(weekStart time.Time) []domain.Interval {
	ws := domain.WeekStart(weekStart, l.loc)
	we := ws.AddDate(0, 0, 7)
	var out []domain.Interval
	for _, iv := range l.busy {
		if !iv.Start.Before(ws) && iv.Start.Before(we) {
			out = append(out, iv)
		}
	}
	return out
}

// OccupiedFor returns the sessions booked for one task.
func (l *Ledger) OccupiedFor(taskID string) []domain.Interval {
	var out []domain.Interval
	for _, iv := range l.occupied {
		if iv.TaskID == taskID {
			out = append(out, iv)
		}
	}
	return out
}

// OccupiedMinutesOn sums booked minutes on the local day containing day.
func (l *Ledger) OccupiedMinutesOn(day time.Time) int {
	from := domain.StartOfDay(day, l.loc)
	to := from.AddDate(0, 0, 1)
	var total time.Duration
	for _, iv := range l.occupied {
		s, e := maxTime(iv.Start, from), minTime(iv.End, to)
		if e.After(s) {
			total += e.Sub(s)
		}
	}
	return int(total / time.Minute)
}

// Clone returns an independent copy for speculative planning.
func (l *Ledger) Clone() *Ledger {
	return &Ledger{loc: l.loc, busy: slices.Clone(l.busy), occupied: slices.Clone(l.occupied)}
}

func sortIntervals(ivs []domain.Interval) {
	sort.SliceStable(ivs, func(i, j int) bool {
		if !ivs[i].Start.Equal(ivs[j].Start) {
			return ivs[i].Start.Before(ivs[j].Start)
		}
		return ivs[i].End.Before(ivs[j].End)
	})
}

// merge sorts and joins overlapping or touching intervals. Labels of merged
// intervals are concatenated.
func merge(ivs []domain.Interval) []domain.Interval {
	if len(ivs) == 0 {
		return nil
	}
	sorted := slices.Clone(ivs)
	sortIntervals(sorted)
	out := []domain.Interval{sorted[0]}
	for _, iv := range sorted[1:] {
		last := &out[len(out)-1]
		if iv.Start.After(last.End) {
			out = append(out, iv)
			continue
		}
		if iv.End.After(last.End) {
			last.End = iv.End
		}
		last.AllDay = last.AllDay && iv.AllDay
		if iv.Label != "" && !strings.Contains(last.Label, iv.Label) {
			if last.Label == "" {
				last.Label = iv.Label
			} else {
				last.Label += "; " + iv.Label
			}
		}
	}
	return out
}

func splitAtMidnight(ivs []domain.Interval, loc *time.Location) []domain.Interval {
	var out []domain.Interval
	for _, iv := range ivs {
		for {
			next := domain.StartOfDay(iv.Start, loc).AddDate(0, 0, 1)
			if !iv.End.After(next) {
				out = append(out, iv)
				break
			}
			head := iv
			head.End = next
			out = append(out, head)
			iv.Start = next
		}
	}
	return out
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}
