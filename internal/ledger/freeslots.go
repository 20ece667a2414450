package ledger

import (
	"iter"
	"time"

	"github.com/alexanderramin/cadence/internal/domain"
)

// SlotQuery narrows a free-slot search.
type SlotQuery struct {
	MinLength time.Duration

	// Buffer pads both sides of every occupied interval.
	Buffer time.Duration

	// Working-hours envelope in minutes since local midnight.
	WorkStartMin int
	WorkEndMin   int

	// Daily break cut out of the envelope. BreakMin 0 means none.
	BreakStartMin int
	BreakMin      int

	// WorksOn filters days; nil means every day.
	WorksOn func(time.Weekday) bool
}

// QueryFor builds the query implied by a profile.
func QueryFor(p *domain.UserProfile, minLength time.Duration) SlotQuery {
	return SlotQuery{
		MinLength:     minLength,
		Buffer:        time.Duration(p.MinBufferMin) * time.Minute,
		WorkStartMin:  p.WorkStartMin,
		WorkEndMin:    p.WorkEndMin,
		BreakStartMin: p.BreakStartMin,
		BreakMin:      p.BreakMin,
		WorksOn:       p.WorksOn,
	}
}

// FreeSlots yields, in time order, the gaps of at least q.MinLength inside
// [from, to) that fall within working hours outside the daily break and are
// not covered by a busy
// interval or a buffer-padded occupied interval. The sequence is lazy and
// can be ranged over more than once; each pass reads the ledger as it is
// at that moment.
func (l *Ledger) FreeSlots(from, to time.Time, q SlotQuery) iter.Seq[domain.Interval] {
	return func(yield func(domain.Interval) bool) {
		if !to.After(from) || q.WorkEndMin <= q.WorkStartMin {
			return
		}
		for day := domain.StartOfDay(from, l.loc); day.Before(to); day = day.AddDate(0, 0, 1) {
			if q.WorksOn != nil && !q.WorksOn(day.Weekday()) {
				continue
			}
			for _, env := range q.envelope(day, from, to) {
				for _, gap := range l.gaps(env.Start, env.End, q.Buffer) {
					if gap.Duration() < q.MinLength || gap.Duration() <= 0 {
						continue
					}
					if !yield(gap) {
						return
					}
				}
			}
		}
	}
}

// envelope returns the working-hours segments of day inside [from, to).
func (q SlotQuery) envelope(day, from, to time.Time) []domain.Interval {
	start := maxTime(atMinute(day, q.WorkStartMin), from)
	end := minTime(atMinute(day, q.WorkEndMin), to)
	if !end.After(start) {
		return nil
	}
	whole := domain.Interval{Start: start, End: end}
	if q.BreakMin <= 0 {
		return []domain.Interval{whole}
	}
	breakStart := atMinute(day, q.BreakStartMin)
	breakEnd := atMinute(day, q.BreakStartMin+q.BreakMin)
	var out []domain.Interval
	if before := minTime(breakStart, end); before.After(start) {
		out = append(out, domain.Interval{Start: start, End: before})
	}
	if after := maxTime(breakEnd, start); end.After(after) {
		out = append(out, domain.Interval{Start: after, End: end})
	}
	return out
}

// gaps subtracts blockers from [start, end) with a single sweep.
func (l *Ledger) gaps(start, end time.Time, buffer time.Duration) []domain.Interval {
	var blockers []domain.Interval
	for _, b := range l.busy {
		if b.Start.Before(end) && b.End.After(start) {
			blockers = append(blockers, b)
		}
	}
	for _, o := range l.occupied {
		padded := domain.Interval{Start: o.Start.Add(-buffer), End: o.End.Add(buffer)}
		if padded.Start.Before(end) && padded.End.After(start) {
			blockers = append(blockers, padded)
		}
	}
	sortIntervals(blockers)

	var out []domain.Interval
	cursor := start
	for _, b := range blockers {
		if b.Start.After(cursor) {
			out = append(out, domain.Interval{Start: cursor, End: minTime(b.Start, end)})
		}
		if b.End.After(cursor) {
			cursor = b.End
		}
		if !cursor.Before(end) {
			return out
		}
	}
	if end.After(cursor) {
		out = append(out, domain.Interval{Start: cursor, End: end})
	}
	return out
}

func atMinute(day time.Time, minute int) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, minute/60, minute%60, 0, 0, day.Location())
}
