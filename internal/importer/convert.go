package importer

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/alexanderramin/cadence/internal/domain"
	"github.com/google/uuid"
)

// Batch is a converted import file ready for persistence.
type Batch struct {
	Tasks []*domain.Task
	// Busy holds busy intervals grouped by the week they start in.
	Busy map[time.Time][]domain.Interval
	// External lists depends_on entries that are not refs in the file.
	External []string
}

// Convert turns a validated schema into domain objects for one user. Times
// without a zone are read in the schema's time zone, else in loc.
// Call ValidateImportSchema first; Convert assumes the schema is valid.
func Convert(schema *ImportSchema, userID string, loc *time.Location, now time.Time) (*Batch, error) {
	if schema.Timezone != "" {
		l, err := time.LoadLocation(schema.Timezone)
		if err != nil {
			return nil, fmt.Errorf("loading timezone: %w", err)
		}
		loc = l
	}
	if loc == nil {
		loc = time.UTC
	}
	defaults := schema.Defaults
	if defaults == nil {
		defaults = &DefaultsImport{}
	}

	refMap := make(map[string]string, len(schema.Tasks)) // ref -> UUID
	for _, t := range schema.Tasks {
		refMap[t.Ref] = uuid.New().String()
	}

	batch := &Batch{Busy: make(map[time.Time][]domain.Interval)}
	external := make(map[string]bool)

	for _, ti := range schema.Tasks {
		estimate, err := minutesField(ti.EstimatedMin, ti.Estimate)
		if err != nil {
			return nil, fmt.Errorf("task %q estimate: %w", ti.Ref, err)
		}
		canSplit := firstSet(false, ti.CanSplit, defaults.CanSplit)

		minSession := 0
		if canSplit {
			minSession, err = minutesField(ti.MinSessionMin, firstNonZero(ti.MinSession, defaults.MinSession))
			if err != nil {
				return nil, fmt.Errorf("task %q min_session: %w", ti.Ref, err)
			}
			if minSession == 0 {
				minSession = min(30, estimate)
			}
		}

		var deadline *time.Time
		if ti.Deadline != "" {
			d, err := parseWhen(ti.Deadline, loc, true)
			if err != nil {
				return nil, fmt.Errorf("task %q deadline: %w", ti.Ref, err)
			}
			deadline = &d
		}

		var deps []string
		for _, dep := range ti.DependsOn {
			if id, ok := refMap[dep]; ok {
				deps = append(deps, id)
				continue
			}
			deps = append(deps, dep)
			if !external[dep] {
				external[dep] = true
				batch.External = append(batch.External, dep)
			}
		}

		tags := ti.Tags
		if len(tags) == 0 {
			tags = defaults.Tags
		}

		batch.Tasks = append(batch.Tasks, &domain.Task{
			ID:                 refMap[ti.Ref],
			UserID:             userID,
			Title:              strings.TrimSpace(ti.Title),
			Description:        ti.Description,
			Priority:           domain.Priority(firstNonZero(ti.Priority, defaults.Priority, string(domain.PriorityMedium))),
			EstimatedMin:       estimate,
			Deadline:           deadline,
			PreferredTimeOfDay: domain.TimeOfDay(firstNonZero(ti.PreferredAt, defaults.PreferredAt, string(domain.TimeOfDayNone))),
			RequiresDeepFocus:  firstSet(false, ti.DeepFocus),
			CanSplit:           canSplit,
			MinSessionMin:      minSession,
			Dependencies:       deps,
			Tags:               append([]string(nil), tags...),
			Status:             domain.TaskPending,
			CreatedAt:          now,
			UpdatedAt:          now,
		})
	}

	for i, b := range schema.Busy {
		start, err := parseWhen(b.Start, loc, false)
		if err != nil {
			return nil, fmt.Errorf("busy[%d] start: %w", i, err)
		}
		end, err := parseWhen(b.End, loc, b.AllDay)
		if err != nil {
			return nil, fmt.Errorf("busy[%d] end: %w", i, err)
		}
		block := domain.BusyBlock{Start: start, End: end, Label: firstNonZero(b.Label, "busy"), AllDay: b.AllDay}
		iv := block.ToInterval(loc)
		// A block that crosses into the next week is split so that each
		// week receives its own part.
		for ws := domain.WeekStart(iv.Start, loc); ws.Before(iv.End); ws = ws.AddDate(0, 0, 7) {
			part := iv
			if part.Start.Before(ws) {
				part.Start = ws
			}
			if we := ws.AddDate(0, 0, 7); part.End.After(we) {
				part.End = we
			}
			batch.Busy[ws] = append(batch.Busy[ws], part)
		}
	}

	return batch, nil
}

// minutesField resolves a minutes value given either as an integer or as a
// duration string.
func minutesField(explicit *int, duration string) (int, error) {
	if duration == "" {
		return firstSet(0, explicit), nil
	}
	return parseMinutes(duration)
}

// parseMinutes reads a Go duration ("90m", "1.5h") or a bare number of
// minutes and rounds to whole minutes.
func parseMinutes(s string) (int, error) {
	s = strings.TrimSpace(s)
	if m, err := strconv.Atoi(s); err == nil {
		if m <= 0 {
			return 0, fmt.Errorf("duration %q must be at least one minute", s)
		}
		return m, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	minutes := int(math.Round(d.Minutes()))
	if minutes <= 0 {
		return 0, fmt.Errorf("duration %q must be at least one minute", s)
	}
	return minutes, nil
}

var whenLayouts = []string{"2006-01-02T15:04", "2006-01-02 15:04", "2006-01-02T15:04:05"}

// parseWhen reads RFC 3339, a zone-less local time, or a bare date. A bare
// date means the start of that day, or its end when endOfDay is set.
func parseWhen(s string, loc *time.Location, endOfDay bool) (time.Time, error) {
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
		if endOfDay {
			return t.AddDate(0, 0, 1), nil
		}
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid time %q (expected YYYY-MM-DD, YYYY-MM-DDTHH:MM or RFC 3339)", s)
}

func firstNonZero[T comparable](vals ...T) T {
	var zero T
	for _, v := range vals {
		if v != zero {
			return v
		}
	}
	return zero
}

// firstSet returns the value of the first non-nil pointer, or fallback.
func firstSet[T any](fallback T, ptrs ...*T) T {
	for _, p := range ptrs {
		if p != nil {
			return *p
		}
	}
	return fallback
}
