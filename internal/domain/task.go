package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

type Task struct {
	ID          string
	UserID      string
	Title       string
	Description string
	Priority    Priority
	Tags        []string

	// Duration
	EstimatedMin  int
	CanSplit      bool
	MinSessionMin int

	// Constraints
	Deadline           *time.Time
	PreferredTimeOfDay TimeOfDay
	RequiresDeepFocus  bool
	Dependencies       []string

	Status         TaskStatus
	ScheduledStart *time.Time
	ScheduledEnd   *time.Time
	ActualStart    *time.Time
	ActualEnd      *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate checks field-level invariants. Dependency existence and cycles
// need the rest of the registry and are checked by ValidateDependencyGraph.
func (t *Task) Validate() error {
	if strings.TrimSpace(t.Title) == "" {
		return invalid("title", "is required")
	}
	if strings.TrimSpace(t.UserID) == "" {
		return invalid("user_id", "is required")
	}
	if !ValidPriorities[string(t.Priority)] {
		return invalid("priority", "unknown priority %q", t.Priority)
	}
	if t.EstimatedMin <= 0 {
		return invalid("estimated_duration", "must be positive, got %d min", t.EstimatedMin)
	}
	if !ValidTimesOfDay[string(t.PreferredTimeOfDay)] {
		return invalid("preferred_time_of_day", "unknown value %q", t.PreferredTimeOfDay)
	}
	if t.CanSplit {
		if t.MinSessionMin <= 0 {
			return invalid("min_session_duration", "is required when the task can be split")
		}
		if t.MinSessionMin > t.EstimatedMin {
			return invalid("min_session_duration", "%d min exceeds the estimated %d min", t.MinSessionMin, t.EstimatedMin)
		}
	}
	if t.Status != "" && !ValidTaskStatuses[string(t.Status)] {
		return invalid("status", "unknown status %q", t.Status)
	}
	seen := make(map[string]bool, len(t.Dependencies))
	for _, dep := range t.Dependencies {
		if dep == t.ID && t.ID != "" {
			return invalid("dependencies", "task cannot depend on itself")
		}
		if seen[dep] {
			return invalid("dependencies", "duplicate dependency %q", dep)
		}
		seen[dep] = true
	}
	return nil
}

// IsActive reports whether the task still needs time on the calendar.
func (t *Task) IsActive() bool {
	return t.Status != TaskCompleted
}

// HasTag reports whether the task carries the given tag.
func (t *Task) HasTag(tag string) bool {
	for _, tt := range t.Tags {
		if tt == tag {
			return true
		}
	}
	return false
}

// Schedule moves the task into the scheduled state with the given window.
func (t *Task) Schedule(start, end time.Time, now time.Time) error {
	if err := t.transition(TaskScheduled); err != nil {
		return err
	}
	t.ScheduledStart = &start
	t.ScheduledEnd = &end
	t.UpdatedAt = now
	return nil
}

// Start records the actual start and moves the task to in_progress.
func (t *Task) Start(at time.Time) error {
	if err := t.transition(TaskInProgress); err != nil {
		return err
	}
	t.ActualStart = &at
	t.UpdatedAt = at
	return nil
}

// Complete records the actual window and moves the task to completed.
// A zero actualStart falls back to the recorded start.
func (t *Task) Complete(actualStart, actualEnd time.Time) error {
	if actualStart.IsZero() {
		if t.ActualStart == nil {
			return invalid("actual_start", "is required when the task was never started")
		}
		actualStart = *t.ActualStart
	}
	if !actualEnd.After(actualStart) {
		return invalid("actual_end", "must be after actual_start")
	}
	if err := t.transition(TaskCompleted); err != nil {
		return err
	}
	t.ActualStart = &actualStart
	t.ActualEnd = &actualEnd
	t.UpdatedAt = actualEnd
	return nil
}

// MarkOverdue moves the task to overdue. Scheduled times are kept.
func (t *Task) MarkOverdue(now time.Time) error {
	if err := t.transition(TaskOverdue); err != nil {
		return err
	}
	t.UpdatedAt = now
	return nil
}

// ResetForReplan returns the task to pending and clears its schedule.
// Pending tasks are left untouched.
func (t *Task) ResetForReplan(now time.Time) error {
	if t.Status == TaskPending {
		return nil
	}
	if err := t.transition(TaskPending); err != nil {
		return err
	}
	t.ScheduledStart = nil
	t.ScheduledEnd = nil
	t.UpdatedAt = now
	return nil
}

// ActualMin returns the recorded working time, or 0 if incomplete.
func (t *Task) ActualMin() int {
	if t.ActualStart == nil || t.ActualEnd == nil {
		return 0
	}
	return int(t.ActualEnd.Sub(*t.ActualStart).Round(time.Minute) / time.Minute)
}

func (t *Task) transition(to TaskStatus) error {
	if !CanTransition(t.Status, to) {
		return &InvalidTransitionError{TaskID: t.ID, From: t.Status, To: to}
	}
	t.Status = to
	return nil
}

var transitions = map[TaskStatus][]TaskStatus{
	TaskPending:    {TaskScheduled, TaskOverdue},
	TaskScheduled:  {TaskScheduled, TaskInProgress, TaskOverdue, TaskPending},
	TaskInProgress: {TaskCompleted, TaskOverdue, TaskPending},
	TaskOverdue:    {TaskScheduled, TaskCompleted, TaskPending},
	TaskCompleted:  nil,
}

// CanTransition reports whether moving from one status to another is legal.
func CanTransition(from, to TaskStatus) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// ValidateDependencyGraph checks that every dependency of every task refers
// to a task in the set and that the graph is acyclic.
func ValidateDependencyGraph(tasks map[string]*Task) error {
	for _, t := range tasks {
		for _, dep := range t.Dependencies {
			if _, ok := tasks[dep]; !ok {
				return fmt.Errorf("task %s depends on %s: %w", t.ID, dep, ErrUnknownDependency)
			}
		}
	}

	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, len(tasks))
	var visit func(id string, path []string) error
	visit = func(id string, path []string) error {
		switch state[id] {
		case visiting:
			return fmt.Errorf("%s -> %s: %w", strings.Join(path, " -> "), id, ErrCyclicDependency)
		case done:
			return nil
		}
		state[id] = visiting
		for _, dep := range tasks[id].Dependencies {
			if err := visit(dep, append(path, id)); err != nil {
				return err
			}
		}
		state[id] = done
		return nil
	}

	ids := make([]string, 0, len(tasks))
	for id := range tasks {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if err := visit(id, nil); err != nil {
			return err
		}
	}
	return nil
}
