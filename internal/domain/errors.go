package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates the requested record does not exist for the user.
	ErrNotFound = errors.New("not found")

	// ErrValidation is the sentinel every ValidationError matches via errors.Is.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidTransition is the sentinel every InvalidTransitionError matches.
	ErrInvalidTransition = errors.New("invalid status transition")

	ErrCyclicDependency  = errors.New("cyclic dependency")
	ErrUnknownDependency = errors.New("unknown dependency")

	// ErrEmptyHorizon is returned when a planning horizon has start >= end.
	ErrEmptyHorizon = errors.New("empty planning horizon")

	// ErrIntervalOverlap is returned when an occupied interval would overlap
	// another occupied interval.
	ErrIntervalOverlap = errors.New("interval overlaps an occupied interval")

	// ErrPlanConflict is returned when executing a plan whose sessions
	// collide with intervals committed after the plan was generated.
	ErrPlanConflict = errors.New("plan conflicts with current schedule")

	// ErrPlanNotDraft is returned when executing a plan that was already
	// executed or superseded.
	ErrPlanNotDraft = errors.New("plan is not a draft")
)

// ValidationError reports malformed task or interval input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Message
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// InvalidTransitionError reports an illegal status change. State is never
// modified when this error is returned.
type InvalidTransitionError struct {
	TaskID string
	From   TaskStatus
	To     TaskStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("task %s: cannot move from %s to %s", e.TaskID, e.From, e.To)
}

func (e *InvalidTransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}
