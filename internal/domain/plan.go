package domain

import "time"

// Horizon is the half-open planning window.
type Horizon struct {
	Start time.Time
	End   time.Time
}

func (h Horizon) Validate() error {
	if !h.End.After(h.Start) {
		return ErrEmptyHorizon
	}
	return nil
}

// Contains reports whether t lies in [Start, End).
func (h Horizon) Contains(t time.Time) bool {
	return !t.Before(h.Start) && t.Before(h.End)
}

// PlanEntry is one placed session of a task.
type PlanEntry struct {
	TaskID     string    `cbor:"1,keyasint"`
	Title      string    `cbor:"2,keyasint"`
	Session    int       `cbor:"3,keyasint"` // 1-based session number
	Sessions   int       `cbor:"4,keyasint"` // total sessions for the task
	Start      time.Time `cbor:"5,keyasint"`
	End        time.Time `cbor:"6,keyasint"`
	Rationale  string    `cbor:"7,keyasint"`
	PlannedMin int       `cbor:"8,keyasint"` // bias-corrected total for the task
}

func (e PlanEntry) Minutes() int {
	return int(e.End.Sub(e.Start) / time.Minute)
}

// PlanIssue reports a task the allocator did not place in full.
type PlanIssue struct {
	TaskID  string      `cbor:"1,keyasint"`
	Title   string      `cbor:"2,keyasint"`
	Code    IssueCode   `cbor:"3,keyasint"`
	Reason  string      `cbor:"4,keyasint"`
	Partial []PlanEntry `cbor:"5,keyasint,omitempty"`
}

// OrderingHint is an externally proposed rank for a task. Lower ranks are
// placed first when the stronger sort keys tie.
type OrderingHint struct {
	TaskID string `cbor:"1,keyasint"`
	Rank   int    `cbor:"2,keyasint"`
	Note   string `cbor:"3,keyasint,omitempty"`
}

// FeedbackSignal is a preference adjustment read from plan feedback.
type FeedbackSignal string

const (
	SignalMoreBuffer        FeedbackSignal = "more_buffer"
	SignalLessBuffer        FeedbackSignal = "less_buffer"
	SignalShorterSessions   FeedbackSignal = "shorter_sessions"
	SignalLongerSessions    FeedbackSignal = "longer_sessions"
	SignalMorningDeepWork   FeedbackSignal = "morning_deep_work"
	SignalNoMorningDeepWork FeedbackSignal = "no_morning_deep_work"
)

func (s FeedbackSignal) Valid() bool {
	switch s {
	case SignalMoreBuffer, SignalLessBuffer, SignalShorterSessions,
		SignalLongerSessions, SignalMorningDeepWork, SignalNoMorningDeepWork:
		return true
	}
	return false
}

// PlanReview is the outcome of reviewing a plan against feedback.
type PlanReview struct {
	Hints   []OrderingHint
	Signals []FeedbackSignal
}

type Plan struct {
	ID            string         `cbor:"1,keyasint"`
	UserID        string         `cbor:"2,keyasint"`
	HorizonStart  time.Time      `cbor:"3,keyasint"`
	HorizonEnd    time.Time      `cbor:"4,keyasint"`
	Entries       []PlanEntry    `cbor:"5,keyasint"`
	Deferred      []PlanIssue    `cbor:"6,keyasint,omitempty"`
	Unschedulable []PlanIssue    `cbor:"7,keyasint,omitempty"`
	Reasoning     string         `cbor:"8,keyasint"`
	Context       string         `cbor:"9,keyasint,omitempty"`
	Hints         []OrderingHint `cbor:"10,keyasint,omitempty"`
	Status        PlanStatus     `cbor:"11,keyasint"`
	CreatedAt     time.Time      `cbor:"12,keyasint"`

	// RefinedFrom is the draft this plan was derived from by refinement.
	RefinedFrom string `cbor:"13,keyasint,omitempty"`
}

// TaskIDs returns the distinct tasks with entries in the plan, in entry order.
func (p *Plan) TaskIDs() []string {
	seen := make(map[string]bool)
	var ids []string
	for _, e := range p.Entries {
		if !seen[e.TaskID] {
			seen[e.TaskID] = true
			ids = append(ids, e.TaskID)
		}
	}
	return ids
}

// EntriesFor returns the sessions of one task in start order.
func (p *Plan) EntriesFor(taskID string) []PlanEntry {
	var out []PlanEntry
	for _, e := range p.Entries {
		if e.TaskID == taskID {
			out = append(out, e)
		}
	}
	return out
}

// Issues returns deferred and unschedulable reports together.
func (p *Plan) Issues() []PlanIssue {
	out := make([]PlanIssue, 0, len(p.Deferred)+len(p.Unschedulable))
	out = append(out, p.Deferred...)
	return append(out, p.Unschedulable...)
}
