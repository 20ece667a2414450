package domain

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Rank orders priorities for sorting; higher is more important.
func (p Priority) Rank() int {
	switch p {
	case PriorityUrgent:
		return 3
	case PriorityHigh:
		return 2
	case PriorityMedium:
		return 1
	default:
		return 0
	}
}

// ValidPriorities is the canonical set of accepted priority strings.
var ValidPriorities = map[string]bool{
	"low": true, "medium": true, "high": true, "urgent": true,
}

type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskScheduled  TaskStatus = "scheduled"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
	TaskOverdue    TaskStatus = "overdue"
)

// ValidTaskStatuses is the canonical set of accepted status strings.
var ValidTaskStatuses = map[string]bool{
	"pending": true, "scheduled": true, "in_progress": true,
	"completed": true, "overdue": true,
}

type TimeOfDay string

const (
	TimeOfDayNone      TimeOfDay = "none"
	TimeOfDayMorning   TimeOfDay = "morning"
	TimeOfDayAfternoon TimeOfDay = "afternoon"
	TimeOfDayEvening   TimeOfDay = "evening"
)

// ValidTimesOfDay is the canonical set of accepted time-of-day preferences.
var ValidTimesOfDay = map[string]bool{
	"": true, "none": true, "morning": true, "afternoon": true, "evening": true,
}

// Window returns the hour range [from, to) a time-of-day preference covers.
// Morning is 05-12, afternoon 12-17 and evening 17-24.
func (t TimeOfDay) Window() (from, to int, ok bool) {
	switch t {
	case TimeOfDayMorning:
		return 5, 12, true
	case TimeOfDayAfternoon:
		return 12, 17, true
	case TimeOfDayEvening:
		return 17, 24, true
	default:
		return 0, 0, false
	}
}

// TimeOfDayForHour buckets an hour of day.
func TimeOfDayForHour(hour int) TimeOfDay {
	switch {
	case hour >= 5 && hour < 12:
		return TimeOfDayMorning
	case hour >= 12 && hour < 17:
		return TimeOfDayAfternoon
	default:
		return TimeOfDayEvening
	}
}

type IntervalKind string

const (
	IntervalBusy     IntervalKind = "busy"
	IntervalOccupied IntervalKind = "occupied"
)

type CompletionOutcome string

const (
	OutcomeOnTime CompletionOutcome = "on_time"
	OutcomeEarly  CompletionOutcome = "early"
	OutcomeLate   CompletionOutcome = "late"
)

type DeltaKind string

const (
	DeltaOverrun  DeltaKind = "overrun"
	DeltaUnderrun DeltaKind = "underrun"
	DeltaSkipped  DeltaKind = "skipped"
	DeltaOnPlan   DeltaKind = "on_plan"
)

type PlanStatus string

const (
	PlanDraft      PlanStatus = "draft"
	PlanExecuted   PlanStatus = "executed"
	PlanSuperseded PlanStatus = "superseded"
)

type IssueCode string

const (
	IssueDeferred       IssueCode = "DEFERRED"
	IssueUnschedulable  IssueCode = "UNSCHEDULABLE"
	IssuePastDeadline   IssueCode = "PAST_DEADLINE"
	IssuePartial        IssueCode = "PARTIAL_COVERAGE"
	IssueSessionTooLong IssueCode = "SESSION_EXCEEDS_CAPACITY"
)
