package httpapi

import (
	"math"
	"strings"
	"time"

	"github.com/alexanderramin/cadence/internal/domain"
	"github.com/alexanderramin/cadence/internal/service"
)

const dateLayout = "2006-01-02"

type taskRequest struct {
	Title              string     `json:"title" binding:"required"`
	Description        string     `json:"description"`
	Priority           string     `json:"priority"`
	Tags               []string   `json:"tags"`
	EstimatedMin       int        `json:"estimated_min"`
	EstimatedHours     float64    `json:"estimated_hours"`
	CanSplit           bool       `json:"can_split"`
	MinSessionMin      int        `json:"min_session_min"`
	MinSessionHours    float64    `json:"min_session_hours"`
	Deadline           *time.Time `json:"deadline"`
	PreferredTimeOfDay string     `json:"preferred_time_of_day"`
	RequiresDeepFocus  bool       `json:"requires_deep_focus"`
	Dependencies       []string   `json:"dependencies"`
}

func (r taskRequest) toTask(userID string) *domain.Task {
	t := &domain.Task{
		UserID:             userID,
		Title:              r.Title,
		Description:        r.Description,
		Priority:           domain.Priority(r.Priority),
		Tags:               r.Tags,
		EstimatedMin:       minutes(r.EstimatedMin, r.EstimatedHours),
		CanSplit:           r.CanSplit,
		MinSessionMin:      minutes(r.MinSessionMin, r.MinSessionHours),
		Deadline:           r.Deadline,
		PreferredTimeOfDay: domain.TimeOfDay(r.PreferredTimeOfDay),
		RequiresDeepFocus:  r.RequiresDeepFocus,
		Dependencies:       r.Dependencies,
	}
	if t.Priority == "" {
		t.Priority = domain.PriorityMedium
	}
	return t
}

// minutes prefers an explicit minute count over hours.
func minutes(min int, hours float64) int {
	if min != 0 {
		return min
	}
	return int(math.Round(hours * 60))
}

type taskResponse struct {
	ID                 string     `json:"id"`
	Title              string     `json:"title"`
	Description        string     `json:"description,omitempty"`
	Priority           string     `json:"priority"`
	Tags               []string   `json:"tags,omitempty"`
	EstimatedMin       int        `json:"estimated_min"`
	CanSplit           bool       `json:"can_split"`
	MinSessionMin      int        `json:"min_session_min,omitempty"`
	Deadline           *time.Time `json:"deadline,omitempty"`
	PreferredTimeOfDay string     `json:"preferred_time_of_day,omitempty"`
	RequiresDeepFocus  bool       `json:"requires_deep_focus"`
	Dependencies       []string   `json:"dependencies,omitempty"`
	Status             string     `json:"status"`
	ScheduledStart     *time.Time `json:"scheduled_start,omitempty"`
	ScheduledEnd       *time.Time `json:"scheduled_end,omitempty"`
	ActualStart        *time.Time `json:"actual_start,omitempty"`
	ActualEnd          *time.Time `json:"actual_end,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

func newTaskResponse(t *domain.Task) taskResponse {
	return taskResponse{
		ID:                 t.ID,
		Title:              t.Title,
		Description:        t.Description,
		Priority:           string(t.Priority),
		Tags:               t.Tags,
		EstimatedMin:       t.EstimatedMin,
		CanSplit:           t.CanSplit,
		MinSessionMin:      t.MinSessionMin,
		Deadline:           t.Deadline,
		PreferredTimeOfDay: string(t.PreferredTimeOfDay),
		RequiresDeepFocus:  t.RequiresDeepFocus,
		Dependencies:       t.Dependencies,
		Status:             string(t.Status),
		ScheduledStart:     t.ScheduledStart,
		ScheduledEnd:       t.ScheduledEnd,
		ActualStart:        t.ActualStart,
		ActualEnd:          t.ActualEnd,
		CreatedAt:          t.CreatedAt,
		UpdatedAt:          t.UpdatedAt,
	}
}

func newTaskResponses(tasks []*domain.Task) []taskResponse {
	out := make([]taskResponse, len(tasks))
	for i, t := range tasks {
		out[i] = newTaskResponse(t)
	}
	return out
}

type completeRequest struct {
	ActualStart *time.Time `json:"actual_start"`
	ActualEnd   *time.Time `json:"actual_end"`
}

type completionResponse struct {
	Task    taskResponse     `json:"task"`
	Outcome string           `json:"outcome"`
	Record  completionRecord `json:"record"`
}

type completionRecord struct {
	TaskID       string    `json:"task_id"`
	Title        string    `json:"title"`
	EstimatedMin int       `json:"estimated_min"`
	ActualMin    int       `json:"actual_min"`
	Outcome      string    `json:"outcome"`
	DelayMin     int       `json:"delay_min"`
	ActualStart  time.Time `json:"actual_start"`
	ActualEnd    time.Time `json:"actual_end"`
}

func newCompletionRecord(r domain.CompletionRecord) completionRecord {
	return completionRecord{
		TaskID:       r.TaskID,
		Title:        r.Title,
		EstimatedMin: r.EstimatedMin,
		ActualMin:    r.ActualMin,
		Outcome:      string(r.Outcome),
		DelayMin:     r.DelayMin,
		ActualStart:  r.ActualStart,
		ActualEnd:    r.ActualEnd,
	}
}

type intervalJSON struct {
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	Label  string    `json:"label"`
	AllDay bool      `json:"all_day"`
	Kind   string    `json:"kind,omitempty"`
	TaskID string    `json:"task_id,omitempty"`
}

func newIntervals(ivs []domain.Interval) []intervalJSON {
	out := make([]intervalJSON, len(ivs))
	for i, iv := range ivs {
		out[i] = intervalJSON{
			Start: iv.Start, End: iv.End, Label: iv.Label, AllDay: iv.AllDay,
			Kind: string(iv.Kind), TaskID: iv.TaskID,
		}
	}
	return out
}

// scheduleRequest carries either explicit intervals or free text.
type scheduleRequest struct {
	Intervals []intervalJSON `json:"intervals"`
	Text      string         `json:"text"`
}

type scheduleResponse struct {
	WeekStart time.Time      `json:"week_start"`
	Busy      []intervalJSON `json:"busy"`
	Occupied  []intervalJSON `json:"occupied,omitempty"`
	Conflicts []string       `json:"conflicts,omitempty"`
}

type generateRequest struct {
	Start   *time.Time       `json:"start"`
	End     *time.Time       `json:"end"`
	Context string           `json:"context"`
	Hints   []orderingHintJS `json:"hints"`
}

type orderingHintJS struct {
	TaskID string `json:"task_id" binding:"required"`
	Rank   int    `json:"rank"`
	Note   string `json:"note,omitempty"`
}

type refineRequest struct {
	Feedback string `json:"feedback"`
}

type replanRequest struct {
	Reason string     `json:"reason"`
	Start  *time.Time `json:"start"`
	End    *time.Time `json:"end"`
}

func horizonOf(start, end *time.Time) domain.Horizon {
	var h domain.Horizon
	if start != nil {
		h.Start = *start
	}
	if end != nil {
		h.End = *end
	}
	return h
}

type planEntryJSON struct {
	TaskID     string    `json:"task_id"`
	Title      string    `json:"title"`
	Session    int       `json:"session"`
	Sessions   int       `json:"sessions"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	PlannedMin int       `json:"planned_min"`
	Rationale  string    `json:"rationale"`
}

type planIssueJSON struct {
	TaskID  string          `json:"task_id"`
	Title   string          `json:"title"`
	Code    string          `json:"code"`
	Reason  string          `json:"reason"`
	Partial []planEntryJSON `json:"partial,omitempty"`
}

type planResponse struct {
	ID            string           `json:"id"`
	Status        string           `json:"status"`
	HorizonStart  time.Time        `json:"horizon_start"`
	HorizonEnd    time.Time        `json:"horizon_end"`
	Entries       []planEntryJSON  `json:"entries"`
	Deferred      []planIssueJSON  `json:"deferred,omitempty"`
	Unschedulable []planIssueJSON  `json:"unschedulable,omitempty"`
	Reasoning     string           `json:"reasoning"`
	Context       string           `json:"context,omitempty"`
	Hints         []orderingHintJS `json:"hints,omitempty"`
	RefinedFrom   string           `json:"refined_from,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
}

func newPlanEntries(entries []domain.PlanEntry) []planEntryJSON {
	out := make([]planEntryJSON, len(entries))
	for i, e := range entries {
		out[i] = planEntryJSON{
			TaskID: e.TaskID, Title: e.Title, Session: e.Session, Sessions: e.Sessions,
			Start: e.Start, End: e.End, PlannedMin: e.PlannedMin, Rationale: e.Rationale,
		}
	}
	return out
}

func newPlanIssues(issues []domain.PlanIssue) []planIssueJSON {
	if len(issues) == 0 {
		return nil
	}
	out := make([]planIssueJSON, len(issues))
	for i, is := range issues {
		out[i] = planIssueJSON{
			TaskID: is.TaskID, Title: is.Title, Code: string(is.Code), Reason: is.Reason,
			Partial: newPlanEntries(is.Partial),
		}
	}
	return out
}

func newPlanResponse(p *domain.Plan) *planResponse {
	if p == nil {
		return nil
	}
	resp := &planResponse{
		ID:            p.ID,
		Status:        string(p.Status),
		HorizonStart:  p.HorizonStart,
		HorizonEnd:    p.HorizonEnd,
		Entries:       newPlanEntries(p.Entries),
		Deferred:      newPlanIssues(p.Deferred),
		Unschedulable: newPlanIssues(p.Unschedulable),
		Reasoning:     p.Reasoning,
		Context:       p.Context,
		RefinedFrom:   p.RefinedFrom,
		CreatedAt:     p.CreatedAt,
	}
	for _, h := range p.Hints {
		resp.Hints = append(resp.Hints, orderingHintJS{TaskID: h.TaskID, Rank: h.Rank, Note: h.Note})
	}
	return resp
}

type executeResponse struct {
	Plan        *planResponse `json:"plan"`
	Scheduled   []string      `json:"scheduled"`
	Superseded  int64         `json:"superseded"`
	Exported    int           `json:"exported"`
	ExportError string        `json:"export_error,omitempty"`
}

func newExecuteResponse(r *service.ExecuteResult) executeResponse {
	resp := executeResponse{
		Plan:       newPlanResponse(r.Plan),
		Scheduled:  r.Scheduled,
		Superseded: r.Superseded,
		Exported:   r.Exported,
	}
	if r.ExportErr != nil {
		resp.ExportError = r.ExportErr.Error()
	}
	return resp
}

type deltaJSON struct {
	Date       string `json:"date" binding:"required"`
	Event      string `json:"event"`
	PlannedMin int    `json:"planned_min"`
	ActualMin  int    `json:"actual_min"`
	Kind       string `json:"kind"`
}

func (d deltaJSON) toDelta() (domain.ReviewDelta, error) {
	date, err := time.Parse(dateLayout, d.Date)
	if err != nil {
		return domain.ReviewDelta{}, &domain.ValidationError{Field: "date", Message: err.Error()}
	}
	kind := domain.DeltaKind(d.Kind)
	if kind == "" {
		kind = domain.ClassifyDelta(d.PlannedMin, d.ActualMin)
	}
	return domain.ReviewDelta{
		Date: date, Event: d.Event, PlannedMin: d.PlannedMin, ActualMin: d.ActualMin, Kind: kind,
	}, nil
}

// reviewRequest carries either structured deltas or free text about the
// week starting at Week.
type reviewRequest struct {
	Deltas []deltaJSON `json:"deltas"`
	Text   string      `json:"text"`
	Week   string      `json:"week"`
}

type reviewResponse struct {
	Deltas       []domain.ReviewDelta `json:"deltas"`
	BufferNudged bool                 `json:"buffer_nudged"`
	MinBufferMin int                  `json:"min_buffer_min"`
}

type insightsResponse struct {
	AdherenceRate       float64            `json:"adherence_rate"`
	DurationBias        float64            `json:"duration_bias"`
	TagBias             map[string]float64 `json:"tag_bias,omitempty"`
	PeakHours           []int              `json:"peak_hours"`
	AverageFocusSpanMin float64            `json:"average_focus_span_min"`
	MinBufferMin        int                `json:"min_buffer_min"`
	TasksTracked        int                `json:"tasks_tracked"`
	OnTimeCount         int                `json:"on_time_count"`
	EarlyCount          int                `json:"early_count"`
	LateCount           int                `json:"late_count"`
	AvgDelayMin         float64            `json:"avg_delay_min"`
	AvgEstimationError  float64            `json:"avg_estimation_error"`
	ReviewsProcessed    int                `json:"reviews_processed"`
	PlansGenerated      int                `json:"plans_generated"`
	FeedbackReceived    int                `json:"feedback_received"`
	Recommendations     []string           `json:"recommendations"`
}

func newInsightsResponse(in *domain.Insights) insightsResponse {
	return insightsResponse{
		AdherenceRate:       in.AdherenceRate,
		DurationBias:        in.DurationBias,
		TagBias:             in.TagBias,
		PeakHours:           in.PeakHours,
		AverageFocusSpanMin: in.AverageFocusSpanMin,
		MinBufferMin:        in.MinBufferMin,
		TasksTracked:        in.TasksTracked,
		OnTimeCount:         in.OnTimeCount,
		EarlyCount:          in.EarlyCount,
		LateCount:           in.LateCount,
		AvgDelayMin:         in.AvgDelayMin,
		AvgEstimationError:  in.AvgEstimationError,
		ReviewsProcessed:    in.ReviewsProcessed,
		PlansGenerated:      in.PlansGenerated,
		FeedbackReceived:    in.FeedbackReceived,
		Recommendations:     in.Recommendations,
	}
}

type settingsRequest struct {
	Timezone        *string  `json:"timezone"`
	WorkStartMin    *int     `json:"work_start_min"`
	WorkEndMin      *int     `json:"work_end_min"`
	WorkDays        []string `json:"work_days"`
	AllowWeekends   *bool    `json:"allow_weekends"`
	MaxDailyWorkMin *int     `json:"max_daily_work_min"`
	MinBufferMin    *int     `json:"min_buffer_min"`
	BreakStartMin   *int     `json:"break_start_min"`
	BreakMin        *int     `json:"break_min"`
}

var weekdays = map[string]time.Weekday{
	"sun": time.Sunday, "mon": time.Monday, "tue": time.Tuesday, "wed": time.Wednesday,
	"thu": time.Thursday, "fri": time.Friday, "sat": time.Saturday,
}

func (r settingsRequest) toSettings() (service.Settings, error) {
	s := service.Settings{
		Timezone:        r.Timezone,
		WorkStartMin:    r.WorkStartMin,
		WorkEndMin:      r.WorkEndMin,
		AllowWeekends:   r.AllowWeekends,
		MaxDailyWorkMin: r.MaxDailyWorkMin,
		MinBufferMin:    r.MinBufferMin,
		BreakStartMin:   r.BreakStartMin,
		BreakMin:        r.BreakMin,
	}
	for _, d := range r.WorkDays {
		key := d
		if len(key) > 3 {
			key = key[:3]
		}
		wd, ok := weekdays[strings.ToLower(key)]
		if !ok {
			return s, &domain.ValidationError{Field: "work_days", Message: "unknown weekday " + d}
		}
		s.WorkDays = append(s.WorkDays, wd)
	}
	return s, nil
}

type profileResponse struct {
	Timezone        string   `json:"timezone"`
	WorkStartMin    int      `json:"work_start_min"`
	WorkEndMin      int      `json:"work_end_min"`
	WorkDays        []string `json:"work_days"`
	AllowWeekends   bool     `json:"allow_weekends"`
	MaxDailyWorkMin int      `json:"max_daily_work_min"`
	MinBufferMin    int      `json:"min_buffer_min"`
	BreakStartMin   int      `json:"break_start_min"`
	BreakMin        int      `json:"break_min"`
	PeakHours       []int    `json:"peak_hours"`
	DurationBias    float64  `json:"duration_bias"`
	AdherenceRate   float64  `json:"adherence_rate"`

	PreferredSessionMin   int  `json:"preferred_session_min,omitempty"`
	PreferMorningDeepWork bool `json:"prefer_morning_deep_work"`
	FeedbackReceived      int  `json:"feedback_received"`
}

func newProfileResponse(p *domain.UserProfile) profileResponse {
	resp := profileResponse{
		Timezone:        p.Timezone,
		WorkStartMin:    p.WorkStartMin,
		WorkEndMin:      p.WorkEndMin,
		AllowWeekends:   p.AllowWeekends,
		MaxDailyWorkMin: p.MaxDailyWorkMin,
		MinBufferMin:    p.MinBufferMin,
		BreakStartMin:   p.BreakStartMin,
		BreakMin:        p.BreakMin,
		PeakHours:       p.PeakHours,
		DurationBias:    p.DurationBias,
		AdherenceRate:   p.AdherenceRate,

		PreferredSessionMin:   p.PreferredSessionMin,
		PreferMorningDeepWork: p.PreferMorningDeepWork,
		FeedbackReceived:      p.FeedbackReceived,
	}
	for _, d := range p.WorkDays {
		resp.WorkDays = append(resp.WorkDays, strings.ToLower(d.String()[:3]))
	}
	return resp
}

type importResponse struct {
	Tasks        []taskResponse `json:"tasks"`
	Dependencies int            `json:"dependencies"`
	BusyWeeks    int            `json:"busy_weeks"`
}
