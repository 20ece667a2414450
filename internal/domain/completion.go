package domain

import "time"

// CompletionRecord is the history row written when a task completes.
type CompletionRecord struct {
	ID             string
	UserID         string
	TaskID         string
	Title          string
	EstimatedMin   int
	ActualMin      int
	ScheduledStart *time.Time
	ScheduledEnd   *time.Time
	ActualStart    time.Time
	ActualEnd      time.Time
	Outcome        CompletionOutcome
	DelayMin       int // positive when finished after the scheduled end
	DeepFocus      bool
	Tags           []string
	CreatedAt      time.Time
}

// ReviewDelta is one structured day-level deviation from a weekly review.
type ReviewDelta struct {
	Date       time.Time `json:"date"`
	Event      string    `json:"event"`
	PlannedMin int       `json:"planned_min"`
	ActualMin  int       `json:"actual_min"`
	Kind       DeltaKind `json:"kind"`
}

// Validate checks the delta kind and non-negative minutes.
func (d ReviewDelta) Validate() error {
	switch d.Kind {
	case DeltaOverrun, DeltaUnderrun, DeltaSkipped, DeltaOnPlan:
	default:
		return invalid("kind", "unknown delta kind %q", d.Kind)
	}
	if d.Date.IsZero() {
		return invalid("date", "is required")
	}
	if d.PlannedMin < 0 || d.ActualMin < 0 {
		return invalid("minutes", "must not be negative")
	}
	return nil
}

// ClassifyDelta derives a kind from planned and actual minutes when the
// reviewer did not state one.
func ClassifyDelta(plannedMin, actualMin int) DeltaKind {
	switch {
	case actualMin == 0 && plannedMin > 0:
		return DeltaSkipped
	case actualMin > plannedMin:
		return DeltaOverrun
	case actualMin < plannedMin:
		return DeltaUnderrun
	default:
		return DeltaOnPlan
	}
}

// Insights is the learned-parameter view exposed to callers.
type Insights struct {
	UserID              string
	AdherenceRate       float64
	DurationBias        float64
	TagBias             map[string]float64
	PeakHours           []int
	AverageFocusSpanMin float64
	MinBufferMin        int
	TasksTracked        int
	OnTimeCount         int
	EarlyCount          int
	LateCount           int
	AvgDelayMin         float64
	AvgEstimationError  float64 // mean |actual-estimated|/estimated
	ReviewsProcessed    int
	PlansGenerated      int
	FeedbackReceived    int
	Recommendations     []string
}

// SeenFlag is a monitor flag that was already reported. Ref is the
// scheduled start or deadline the flag was raised against.
type SeenFlag struct {
	TaskID string
	Kind   string
	Ref    time.Time
}
