package repository

import (
	"context"
	"time"

	"github.com/alexanderramin/cadence/internal/domain"
)

// Every method is scoped by user id; a row of another user is never read
// or written.

type TaskRepo interface {
	Create(ctx context.Context, t *domain.Task) error
	Get(ctx context.Context, userID, id string) (*domain.Task, error)
	// ListByStatus returns the user's tasks in creation order. No statuses
	// means all tasks.
	ListByStatus(ctx context.Context, userID string, statuses ...domain.TaskStatus) ([]*domain.Task, error)
	Update(ctx context.Context, t *domain.Task) error
	Delete(ctx context.Context, userID, id string) error
	// CompareAndSetStatus moves a task from one status to another only if
	// it is still in the expected status.
	CompareAndSetStatus(ctx context.Context, userID, taskID string, from, to domain.TaskStatus, at time.Time) (bool, error)
	// ListDependents returns the ids of tasks that depend on id.
	ListDependents(ctx context.Context, userID, id string) ([]string, error)
}

type IntervalRepo interface {
	// ReplaceBusyWeek deletes the busy intervals of one week and inserts ivs.
	ReplaceBusyWeek(ctx context.Context, userID string, weekStart time.Time, ivs []domain.Interval) error
	// ListRange returns intervals overlapping [from, to), ordered by start.
	ListRange(ctx context.Context, userID string, from, to time.Time) ([]domain.Interval, error)
	InsertOccupied(ctx context.Context, userID string, weekStart time.Time, iv domain.Interval) error
	DeleteByTask(ctx context.Context, userID, taskID string) (int64, error)
	DeleteByTaskFrom(ctx context.Context, userID, taskID string, from time.Time) (int64, error)
}

type ProfileRepo interface {
	Get(ctx context.Context, userID string) (*domain.UserProfile, error)
	// Replace writes the full profile row. stale reports that the stored
	// version differed from p.Version; the write still happens.
	Replace(ctx context.Context, p *domain.UserProfile) (stale bool, err error)
}

type PlanRepo interface {
	Create(ctx context.Context, p *domain.Plan) error
	Get(ctx context.Context, userID, id string) (*domain.Plan, error)
	ListRecent(ctx context.Context, userID string, limit int) ([]*domain.Plan, error)
	UpdateStatus(ctx context.Context, userID, id string, status domain.PlanStatus) error
	// SupersedeDrafts marks every other draft that shares a task with
	// taskIDs as superseded.
	SupersedeDrafts(ctx context.Context, userID, exceptID string, taskIDs []string) (int64, error)
}

type CompletionRepo interface {
	Create(ctx context.Context, r *domain.CompletionRecord) error
	ListRecent(ctx context.Context, userID string, limit int) ([]domain.CompletionRecord, error)
}

// MonitorFlagRepo stores which monitor flags were already reported.
type MonitorFlagRepo interface {
	LoadSeenFlags(ctx context.Context, userID string) ([]domain.SeenFlag, error)
	ReplaceSeenFlags(ctx context.Context, userID string, flags []domain.SeenFlag) error
}
