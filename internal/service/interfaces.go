package service

import (
	"context"
	"time"

	"github.com/alexanderramin/cadence/internal/domain"
	"github.com/alexanderramin/cadence/internal/importer"
)

type TaskService interface {
	Add(ctx context.Context, t *domain.Task) error
	Get(ctx context.Context, userID, id string) (*domain.Task, error)
	// List returns the user's tasks, optionally filtered by status.
	List(ctx context.Context, userID string, statuses ...domain.TaskStatus) ([]*domain.Task, error)
	Update(ctx context.Context, t *domain.Task) error
	Delete(ctx context.Context, userID, id string) error
	Start(ctx context.Context, userID, id string) (*domain.Task, error)
	Complete(ctx context.Context, userID, id string, req CompleteRequest) (*CompletionResult, error)
	MarkOverdue(ctx context.Context, userID, id string) (bool, error)
}

// CompleteRequest carries optional actual times. A nil end means now; a nil
// start falls back to the recorded start.
type CompleteRequest struct {
	ActualStart *time.Time
	ActualEnd   *time.Time
}

type CompletionResult struct {
	Task         *domain.Task
	Record       domain.CompletionRecord
	StaleProfile bool
}

type ScheduleService interface {
	// SetBusy replaces the busy intervals of the week containing weekStart.
	SetBusy(ctx context.Context, userID string, weekStart time.Time, ivs []domain.Interval) (*ScheduleResult, error)
	// SetBusyFromText interprets free text first. An interpretation failure
	// aborts before anything is written.
	SetBusyFromText(ctx context.Context, userID string, weekStart time.Time, text string) (*ScheduleResult, error)
	Week(ctx context.Context, userID string, weekStart time.Time) (*WeekView, error)
}

type ScheduleResult struct {
	WeekStart time.Time
	Busy      []domain.Interval
	// Conflicts lists scheduled tasks whose sessions now overlap busy time.
	Conflicts []string
}

type WeekView struct {
	WeekStart time.Time
	Busy      []domain.Interval
	Occupied  []domain.Interval
}

type PlanService interface {
	Generate(ctx context.Context, userID string, req GenerateRequest) (*domain.Plan, error)
	// Refine asks the external reviewer for ordering hints and generates a
	// new draft with them. On an upstream failure the unchanged plan is
	// returned alongside the error.
	Refine(ctx context.Context, userID, planID, feedback string) (*domain.Plan, error)
	Execute(ctx context.Context, userID, planID string) (*ExecuteResult, error)
	Get(ctx context.Context, userID, planID string) (*domain.Plan, error)
	ListRecent(ctx context.Context, userID string, limit int) ([]*domain.Plan, error)
}

// GenerateRequest describes one planning run. A zero horizon plans the
// configured number of days from now.
type GenerateRequest struct {
	Horizon domain.Horizon
	Context string
	Hints   []domain.OrderingHint
}

type ExecuteResult struct {
	Plan       *domain.Plan
	Scheduled  []string
	Superseded int64
	Exported   int
	// ExportErr is set when the calendar export failed after commit.
	ExportErr error
}

type ReplanService interface {
	Replan(ctx context.Context, userID string, req ReplanRequest) (*ReplanResult, error)
}

type ReplanRequest struct {
	Reason  string
	Horizon domain.Horizon
}

type ReplanResult struct {
	Reset []string
	Plan  *domain.Plan
}

type ProfileService interface {
	Get(ctx context.Context, userID string) (*domain.UserProfile, error)
	UpdateSettings(ctx context.Context, userID string, s Settings) (*domain.UserProfile, error)
	SubmitReview(ctx context.Context, userID string, deltas []domain.ReviewDelta) (*ReviewResult, error)
	SubmitReviewText(ctx context.Context, userID string, weekStart time.Time, text string) (*ReviewResult, error)
	Insights(ctx context.Context, userID string) (*domain.Insights, error)
	// History returns the most recent completion records, newest first.
	History(ctx context.Context, userID string, limit int) ([]domain.CompletionRecord, error)
}

// Settings holds the user-editable profile fields. Nil fields are left
// unchanged.
type Settings struct {
	Timezone        *string
	WorkStartMin    *int
	WorkEndMin      *int
	WorkDays        []time.Weekday
	AllowWeekends   *bool
	MaxDailyWorkMin *int
	MinBufferMin    *int
	BreakStartMin   *int
	BreakMin        *int
}

type ReviewResult struct {
	Deltas       []domain.ReviewDelta
	BufferNudged bool
	MinBufferMin int
}

type ImportResult struct {
	Tasks        []*domain.Task
	Dependencies int
	BusyWeeks    int
}

type ImportService interface {
	Import(ctx context.Context, userID, path string) (*ImportResult, error)
	ImportSchema(ctx context.Context, userID string, schema *importer.ImportSchema) (*ImportResult, error)
}

// CalendarExporter publishes executed plan sessions to an external
// calendar. It runs after commit; failures never undo an execution.
type CalendarExporter interface {
	Export(ctx context.Context, plan *domain.Plan, loc *time.Location) (int, error)
}
