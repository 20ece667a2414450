package importer

import (
	"fmt"
	"strings"
	"time"
)

var (
	validPriorities = map[string]bool{"low": true, "medium": true, "high": true, "urgent": true}
	validTimesOfDay = map[string]bool{"none": true, "morning": true, "afternoon": true, "evening": true}
)

// ValidateImportSchema checks the schema before conversion and returns
// every problem found.
func ValidateImportSchema(schema *ImportSchema) []error {
	var errs []error

	if schema.Timezone != "" {
		if _, err := time.LoadLocation(schema.Timezone); err != nil {
			errs = append(errs, fmt.Errorf("timezone: unknown zone %q", schema.Timezone))
		}
	}
	errs = append(errs, validateDefaults(schema.Defaults)...)

	refs := make(map[string]bool)
	errs = append(errs, validateTasks(schema.Tasks, refs)...)
	errs = append(errs, validateBusy(schema.Busy)...)

	if len(schema.Tasks) == 0 && len(schema.Busy) == 0 {
		errs = append(errs, fmt.Errorf("file declares no tasks and no busy time"))
	}
	return errs
}

func validateDefaults(d *DefaultsImport) []error {
	if d == nil {
		return nil
	}
	var errs []error
	if d.Priority != "" && !validPriorities[d.Priority] {
		errs = append(errs, fmt.Errorf("defaults.priority: invalid value %q", d.Priority))
	}
	if d.PreferredAt != "" && !validTimesOfDay[d.PreferredAt] {
		errs = append(errs, fmt.Errorf("defaults.preferred_time: invalid value %q", d.PreferredAt))
	}
	if d.MinSession != "" {
		if _, err := parseMinutes(d.MinSession); err != nil {
			errs = append(errs, fmt.Errorf("defaults.min_session: %w", err))
		}
	}
	return errs
}

func validateTasks(tasks []TaskImport, refs map[string]bool) []error {
	var errs []error

	for i, t := range tasks {
		prefix := fmt.Sprintf("tasks[%d]", i)

		if t.Ref == "" {
			errs = append(errs, fmt.Errorf("%s.ref is required", prefix))
		} else if refs[t.Ref] {
			errs = append(errs, fmt.Errorf("%s.ref: duplicate ref %q", prefix, t.Ref))
		} else {
			refs[t.Ref] = true
		}

		if strings.TrimSpace(t.Title) == "" {
			errs = append(errs, fmt.Errorf("%s.title is required", prefix))
		}
		if t.Priority != "" && !validPriorities[t.Priority] {
			errs = append(errs, fmt.Errorf("%s.priority: invalid value %q", prefix, t.Priority))
		}
		if t.PreferredAt != "" && !validTimesOfDay[t.PreferredAt] {
			errs = append(errs, fmt.Errorf("%s.preferred_time: invalid value %q", prefix, t.PreferredAt))
		}

		switch {
		case t.EstimatedMin != nil && t.Estimate != "":
			errs = append(errs, fmt.Errorf("%s: set estimate or estimated_min, not both", prefix))
		case t.EstimatedMin != nil:
			if *t.EstimatedMin <= 0 {
				errs = append(errs, fmt.Errorf("%s.estimated_min must be positive", prefix))
			}
		case t.Estimate != "":
			if _, err := parseMinutes(t.Estimate); err != nil {
				errs = append(errs, fmt.Errorf("%s.estimate: %w", prefix, err))
			}
		default:
			errs = append(errs, fmt.Errorf("%s.estimate is required", prefix))
		}

		if t.MinSession != "" {
			if _, err := parseMinutes(t.MinSession); err != nil {
				errs = append(errs, fmt.Errorf("%s.min_session: %w", prefix, err))
			}
		}
		if t.MinSessionMin != nil && *t.MinSessionMin <= 0 {
			errs = append(errs, fmt.Errorf("%s.min_session_min must be positive", prefix))
		}

		if t.Deadline != "" {
			if _, err := parseWhen(t.Deadline, time.UTC, true); err != nil {
				errs = append(errs, fmt.Errorf("%s.deadline: %w", prefix, err))
			}
		}

		seen := make(map[string]bool)
		for _, dep := range t.DependsOn {
			if dep == t.Ref {
				errs = append(errs, fmt.Errorf("%s.depends_on: task depends on itself", prefix))
			}
			if seen[dep] {
				errs = append(errs, fmt.Errorf("%s.depends_on: duplicate %q", prefix, dep))
			}
			seen[dep] = true
		}
	}

	return errs
}

func validateBusy(blocks []BusyImport) []error {
	var errs []error
	for i, b := range blocks {
		prefix := fmt.Sprintf("busy[%d]", i)
		start, err := parseWhen(b.Start, time.UTC, false)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s.start: %w", prefix, err))
			continue
		}
		end, err := parseWhen(b.End, time.UTC, false)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s.end: %w", prefix, err))
			continue
		}
		if b.AllDay {
			if end.Before(start) {
				errs = append(errs, fmt.Errorf("%s: end %q is before start %q", prefix, b.End, b.Start))
			}
		} else if !end.After(start) {
			errs = append(errs, fmt.Errorf("%s: end %q must be after start %q", prefix, b.End, b.Start))
		}
	}
	return errs
}
