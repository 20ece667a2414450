package testutil

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/alexanderramin/cadence/internal/domain"
	"github.com/google/uuid"
)

// Monday is the reference week used across fixtures: 2025-06-16 is a Monday.
var Monday = time.Date(2025, 6, 16, 0, 0, 0, 0, time.UTC)

// At returns Monday + day days at hh:mm UTC.
func At(day, hour, minute int) time.Time {
	return Monday.AddDate(0, 0, day).Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

// Task options
type TaskOption func(*domain.Task)

func WithPriority(p domain.Priority) TaskOption {
	return func(t *domain.Task) {
		t.Priority = p
	}
}

func WithDeadline(d time.Time) TaskOption {
	return func(t *domain.Task) {
		t.Deadline = &d
	}
}

func WithSplit(minSession int) TaskOption {
	return func(t *domain.Task) {
		t.CanSplit = true
		t.MinSessionMin = minSession
	}
}

func WithDeepFocus() TaskOption {
	return func(t *domain.Task) {
		t.RequiresDeepFocus = true
	}
}

func WithTimeOfDay(tod domain.TimeOfDay) TaskOption {
	return func(t *domain.Task) {
		t.PreferredTimeOfDay = tod
	}
}

func WithDependencies(ids ...string) TaskOption {
	return func(t *domain.Task) {
		t.Dependencies = ids
	}
}

func WithTags(tags ...string) TaskOption {
	return func(t *domain.Task) {
		t.Tags = tags
	}
}

func WithStatus(s domain.TaskStatus) TaskOption {
	return func(t *domain.Task) {
		t.Status = s
	}
}

func WithScheduled(start, end time.Time) TaskOption {
	return func(t *domain.Task) {
		t.Status = domain.TaskScheduled
		t.ScheduledStart = &start
		t.ScheduledEnd = &end
	}
}

func WithID(id string) TaskOption {
	return func(t *domain.Task) {
		t.ID = id
	}
}

func NewTestTask(userID, title string, estimatedMin int, opts ...TaskOption) *domain.Task {
	now := time.Now().UTC().Truncate(time.Second)
	t := &domain.Task{
		ID:                 uuid.New().String(),
		UserID:             userID,
		Title:              title,
		Priority:           domain.PriorityMedium,
		EstimatedMin:       estimatedMin,
		PreferredTimeOfDay: domain.TimeOfDayNone,
		Status:             domain.TaskPending,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Profile options
type ProfileOption func(*domain.UserProfile)

func WithBuffer(min int) ProfileOption {
	return func(p *domain.UserProfile) {
		p.MinBufferMin = min
	}
}

func WithDailyCap(min int) ProfileOption {
	return func(p *domain.UserProfile) {
		p.MaxDailyWorkMin = min
	}
}

func WithPeakHours(hours ...int) ProfileOption {
	return func(p *domain.UserProfile) {
		p.PeakHours = hours
	}
}

func NewTestProfile(userID string, opts ...ProfileOption) domain.UserProfile {
	p := domain.DefaultUserProfile(userID)
	p.UpdatedAt = Monday
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

// Busy builds a busy interval on Monday + day between two hh:mm pairs.
func Busy(day, fromH, fromM, toH, toM int, label string) domain.Interval {
	return domain.Interval{
		Start: At(day, fromH, fromM),
		End:   At(day, toH, toM),
		Kind:  domain.IntervalBusy,
		Label: label,
	}
}

// CountRows returns the number of rows in table matching the optional
// where clause.
func CountRows(t *testing.T, database *sql.DB, table, where string, args ...any) int {
	t.Helper()
	q := "SELECT COUNT(*) FROM " + table
	if where != "" {
		q += " WHERE " + where
	}
	var n int
	if err := database.QueryRowContext(context.Background(), q, args...).Scan(&n); err != nil {
		t.Fatalf("counting %s: %v", table, err)
	}
	return n
}
