package domain

import "time"

// Interval is a half-open [Start, End) span on the calendar.
type Interval struct {
	Start  time.Time
	End    time.Time
	Kind   IntervalKind
	Label  string
	TaskID string // occupied intervals only
	AllDay bool   // busy intervals only
}

// Validate checks End > Start and a known kind.
func (iv Interval) Validate() error {
	if iv.Start.IsZero() || iv.End.IsZero() {
		return invalid("interval", "start and end are required")
	}
	if !iv.End.After(iv.Start) {
		return invalid("interval", "end %s must be after start %s",
			iv.End.Format(time.RFC3339), iv.Start.Format(time.RFC3339))
	}
	switch iv.Kind {
	case IntervalBusy:
	case IntervalOccupied:
		if iv.TaskID == "" {
			return invalid("interval", "occupied interval requires a task id")
		}
	default:
		return invalid("interval", "unknown kind %q", iv.Kind)
	}
	return nil
}

func (iv Interval) Duration() time.Duration {
	return iv.End.Sub(iv.Start)
}

// Overlaps reports whether two half-open intervals share any instant.
func (iv Interval) Overlaps(other Interval) bool {
	return iv.Start.Before(other.End) && other.Start.Before(iv.End)
}

// WeekStart returns Monday 00:00 of the week containing t, in loc.
func WeekStart(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	offset := (int(local.Weekday()) + 6) % 7
	y, m, d := local.Date()
	return time.Date(y, m, d-offset, 0, 0, 0, 0, loc)
}

// StartOfDay returns local midnight of the day containing t.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// BusyBlock is the shape produced by the natural-language schedule
// interpreter, before it is turned into busy intervals.
type BusyBlock struct {
	Start  time.Time
	End    time.Time
	Label  string
	AllDay bool
}

// ToInterval converts a block into a busy interval. All-day blocks cover
// whole local days from the start day through the end day.
func (b BusyBlock) ToInterval(loc *time.Location) Interval {
	iv := Interval{Start: b.Start, End: b.End, Kind: IntervalBusy, Label: b.Label, AllDay: b.AllDay}
	if b.AllDay {
		iv.Start = StartOfDay(b.Start, loc)
		end := StartOfDay(b.End, loc)
		if !end.After(iv.Start) || !b.End.Equal(end) {
			end = end.AddDate(0, 0, 1)
		}
		iv.End = end
	}
	return iv
}
