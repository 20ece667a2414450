package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/alexanderramin/cadence/internal/domain"
)

var whenLayouts = []string{"2006-01-02T15:04", "2006-01-02 15:04", "2006-01-02T15:04:05"}

// parseWhen reads RFC 3339, a local date-time or a bare date. A bare date
// is midnight in loc.
func parseWhen(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	for _, layout := range whenLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	if t, err := time.ParseInLocation("2006-01-02", s, loc); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid time %q (use YYYY-MM-DD, YYYY-MM-DDTHH:MM or RFC 3339)", s)
}

// parseClock reads "HH:MM" as minutes after midnight.
func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid time of day %q (use HH:MM)", s)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// weekOf resolves --week. Empty means the week containing now.
func weekOf(s string, now time.Time, loc *time.Location) (time.Time, error) {
	if s == "" {
		return domain.WeekStart(now, loc), nil
	}
	t, err := time.ParseInLocation("2006-01-02", s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid week %q (use YYYY-MM-DD)", s)
	}
	return domain.WeekStart(t, loc), nil
}

// parseBusy reads "start/end[/label]" into a busy interval.
func parseBusy(s string, loc *time.Location) (domain.Interval, error) {
	parts := strings.SplitN(s, "/", 3)
	if len(parts) < 2 {
		return domain.Interval{}, fmt.Errorf("invalid busy block %q (use START/END[/LABEL])", s)
	}
	start, err := parseWhen(parts[0], loc)
	if err != nil {
		return domain.Interval{}, err
	}
	end, err := parseWhen(parts[1], loc)
	if err != nil {
		return domain.Interval{}, err
	}
	iv := domain.Interval{Start: start, End: end, Kind: domain.IntervalBusy}
	if len(parts) == 3 {
		iv.Label = strings.TrimSpace(parts[2])
	}
	return iv, nil
}

// parseDelta reads "date,event,planned,actual[,kind]". Without a kind the
// delta is classified from the two durations.
func parseDelta(s string, loc *time.Location) (domain.ReviewDelta, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 && len(parts) != 5 {
		return domain.ReviewDelta{}, fmt.Errorf("invalid delta %q (use DATE,EVENT,PLANNED,ACTUAL[,KIND])", s)
	}
	date, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(parts[0]), loc)
	if err != nil {
		return domain.ReviewDelta{}, fmt.Errorf("invalid delta date %q", parts[0])
	}
	planned, err := strconv.Atoi(strings.TrimSpace(parts[2]))
	if err != nil {
		return domain.ReviewDelta{}, fmt.Errorf("invalid planned minutes %q", parts[2])
	}
	actual, err := strconv.Atoi(strings.TrimSpace(parts[3]))
	if err != nil {
		return domain.ReviewDelta{}, fmt.Errorf("invalid actual minutes %q", parts[3])
	}
	d := domain.ReviewDelta{
		Date:       date,
		Event:      strings.TrimSpace(parts[1]),
		PlannedMin: planned,
		ActualMin:  actual,
		Kind:       domain.ClassifyDelta(planned, actual),
	}
	if len(parts) == 5 {
		d.Kind = domain.DeltaKind(strings.TrimSpace(parts[4]))
	}
	return d, nil
}

var weekdayNames = map[string]time.Weekday{
	"sun": time.Sunday, "mon": time.Monday, "tue": time.Tuesday, "wed": time.Wednesday,
	"thu": time.Thursday, "fri": time.Friday, "sat": time.Saturday,
}

// parseWeekdays reads "mon,tue,..." (full names accepted too).
func parseWeekdays(s string) ([]time.Weekday, error) {
	var days []time.Weekday
	for _, name := range strings.Split(s, ",") {
		name = strings.ToLower(strings.TrimSpace(name))
		if len(name) > 3 {
			name = name[:3]
		}
		d, ok := weekdayNames[name]
		if !ok {
			return nil, fmt.Errorf("unknown weekday %q", name)
		}
		days = append(days, d)
	}
	return days, nil
}

// resolveTaskID accepts a full ID or an unambiguous prefix.
func resolveTaskID(ctx context.Context, s *session, input string) (string, error) {
	if input == "" {
		return "", fmt.Errorf("task ID is required")
	}
	tasks, err := s.Tasks.List(ctx, s.UserID)
	if err != nil {
		return "", err
	}
	var matches []string
	for _, t := range tasks {
		if t.ID == input {
			return t.ID, nil
		}
		if strings.HasPrefix(t.ID, input) {
			matches = append(matches, t.ID)
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("task %q: %w", input, domain.ErrNotFound)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("task ID prefix %q is ambiguous (%d matches)", input, len(matches))
	}
}

// resolvePlanID works like resolveTaskID over recent plans. Empty input
// means the latest plan.
func resolvePlanID(ctx context.Context, s *session, input string) (string, error) {
	plans, err := s.Plans.ListRecent(ctx, s.UserID, 50)
	if err != nil {
		return "", err
	}
	if input == "" {
		if len(plans) == 0 {
			return "", fmt.Errorf("no plans yet; run 'cadence plan generate'")
		}
		return plans[0].ID, nil
	}
	var matches []string
	for _, p := range plans {
		if p.ID == input {
			return p.ID, nil
		}
		if strings.HasPrefix(p.ID, input) {
			matches = append(matches, p.ID)
		}
	}
	switch len(matches) {
	case 0:
		// Older plans fall outside the listing; let Get decide.
		return input, nil
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("plan ID prefix %q is ambiguous (%d matches)", input, len(matches))
	}
}
