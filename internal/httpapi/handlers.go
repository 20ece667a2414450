package httpapi

import (
	"errors"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/alexanderramin/cadence/internal/domain"
	"github.com/alexanderramin/cadence/internal/importer"
	"github.com/alexanderramin/cadence/internal/service"
	"github.com/gin-gonic/gin"
)

const maxImportBytes = 1 << 20

func (s *Server) addTask(c *gin.Context) {
	var req taskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	t := req.toTask(c.Param("user"))
	if err := s.app.Tasks.Add(c.Request.Context(), t); err != nil {
		fail(c, err, nil)
		return
	}
	created(c, newTaskResponse(t))
}

// listTasks accepts ?status=pending,scheduled.
func (s *Server) listTasks(c *gin.Context) {
	var statuses []domain.TaskStatus
	if raw := c.Query("status"); raw != "" {
		for _, st := range strings.Split(raw, ",") {
			st = strings.TrimSpace(st)
			if !domain.ValidTaskStatuses[st] {
				badRequest(c, errors.New("unknown status "+st))
				return
			}
			statuses = append(statuses, domain.TaskStatus(st))
		}
	}
	tasks, err := s.app.Tasks.List(c.Request.Context(), c.Param("user"), statuses...)
	if err != nil {
		fail(c, err, nil)
		return
	}
	ok(c, newTaskResponses(tasks))
}

func (s *Server) getTask(c *gin.Context) {
	t, err := s.app.Tasks.Get(c.Request.Context(), c.Param("user"), c.Param("id"))
	if err != nil {
		fail(c, err, nil)
		return
	}
	ok(c, newTaskResponse(t))
}

func (s *Server) deleteTask(c *gin.Context) {
	if err := s.app.Tasks.Delete(c.Request.Context(), c.Param("user"), c.Param("id")); err != nil {
		fail(c, err, nil)
		return
	}
	ok(c, gin.H{"deleted": c.Param("id")})
}

func (s *Server) startTask(c *gin.Context) {
	t, err := s.app.Tasks.Start(c.Request.Context(), c.Param("user"), c.Param("id"))
	if err != nil {
		fail(c, err, nil)
		return
	}
	ok(c, newTaskResponse(t))
}

func (s *Server) completeTask(c *gin.Context) {
	var req completeRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}
	res, err := s.app.Tasks.Complete(c.Request.Context(), c.Param("user"), c.Param("id"),
		service.CompleteRequest{ActualStart: req.ActualStart, ActualEnd: req.ActualEnd})
	if err != nil {
		fail(c, err, nil)
		return
	}
	ok(c, completionResponse{
		Task:    newTaskResponse(res.Task),
		Outcome: string(res.Record.Outcome),
		Record:  newCompletionRecord(res.Record),
	})
}

// importTasks takes the YAML import document as the request body.
func (s *Server) importTasks(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxImportBytes))
	if err != nil {
		badRequest(c, err)
		return
	}
	schema, err := importer.ParseImportSchema(body)
	if err != nil {
		badRequest(c, err)
		return
	}
	res, err := s.app.Import.ImportSchema(c.Request.Context(), c.Param("user"), schema)
	if err != nil {
		fail(c, err, nil)
		return
	}
	created(c, importResponse{
		Tasks:        newTaskResponses(res.Tasks),
		Dependencies: res.Dependencies,
		BusyWeeks:    res.BusyWeeks,
	})
}

func parseWeek(c *gin.Context) (time.Time, bool) {
	ws, err := time.Parse(dateLayout, c.Param("week"))
	if err != nil {
		badRequest(c, errors.New("week must be a date like 2006-01-02"))
		return time.Time{}, false
	}
	return ws, true
}

func (s *Server) getWeek(c *gin.Context) {
	ws, valid := parseWeek(c)
	if !valid {
		return
	}
	view, err := s.app.Schedule.Week(c.Request.Context(), c.Param("user"), ws)
	if err != nil {
		fail(c, err, nil)
		return
	}
	ok(c, scheduleResponse{
		WeekStart: view.WeekStart,
		Busy:      newIntervals(view.Busy),
		Occupied:  newIntervals(view.Occupied),
	})
}

// setSchedule replaces the week's busy time from intervals or free text.
func (s *Server) setSchedule(c *gin.Context) {
	ws, valid := parseWeek(c)
	if !valid {
		return
	}
	var req scheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if req.Text != "" && len(req.Intervals) > 0 {
		badRequest(c, errors.New("send either intervals or text, not both"))
		return
	}

	var (
		res *service.ScheduleResult
		err error
	)
	if req.Text != "" {
		res, err = s.app.Schedule.SetBusyFromText(c.Request.Context(), c.Param("user"), ws, req.Text)
	} else {
		ivs := make([]domain.Interval, len(req.Intervals))
		for i, iv := range req.Intervals {
			ivs[i] = domain.Interval{Start: iv.Start, End: iv.End, Label: iv.Label, AllDay: iv.AllDay, Kind: domain.IntervalBusy}
		}
		res, err = s.app.Schedule.SetBusy(c.Request.Context(), c.Param("user"), ws, ivs)
	}
	if err != nil {
		fail(c, err, nil)
		return
	}
	ok(c, scheduleResponse{WeekStart: res.WeekStart, Busy: newIntervals(res.Busy), Conflicts: res.Conflicts})
}

func (s *Server) generatePlan(c *gin.Context) {
	var req generateRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}
	gen := service.GenerateRequest{Horizon: horizonOf(req.Start, req.End), Context: req.Context}
	for _, h := range req.Hints {
		gen.Hints = append(gen.Hints, domain.OrderingHint{TaskID: h.TaskID, Rank: h.Rank, Note: h.Note})
	}
	plan, err := s.app.Plans.Generate(c.Request.Context(), c.Param("user"), gen)
	if err != nil {
		fail(c, err, nil)
		return
	}
	created(c, newPlanResponse(plan))
}

func (s *Server) listPlans(c *gin.Context) {
	limit := 10
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			badRequest(c, errors.New("limit must be a positive integer"))
			return
		}
		limit = n
	}
	plans, err := s.app.Plans.ListRecent(c.Request.Context(), c.Param("user"), limit)
	if err != nil {
		fail(c, err, nil)
		return
	}
	out := make([]*planResponse, len(plans))
	for i, p := range plans {
		out[i] = newPlanResponse(p)
	}
	ok(c, out)
}

func (s *Server) getPlan(c *gin.Context) {
	plan, err := s.app.Plans.Get(c.Request.Context(), c.Param("user"), c.Param("id"))
	if err != nil {
		fail(c, err, nil)
		return
	}
	ok(c, newPlanResponse(plan))
}

// refinePlan returns the unchanged plan with the error when the reviewer
// is unavailable.
func (s *Server) refinePlan(c *gin.Context) {
	var req refineRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}
	plan, err := s.app.Plans.Refine(c.Request.Context(), c.Param("user"), c.Param("id"), req.Feedback)
	if err != nil {
		fail(c, err, newPlanResponse(plan))
		return
	}
	created(c, newPlanResponse(plan))
}

func (s *Server) executePlan(c *gin.Context) {
	res, err := s.app.Plans.Execute(c.Request.Context(), c.Param("user"), c.Param("id"))
	if err != nil {
		fail(c, err, nil)
		return
	}
	ok(c, newExecuteResponse(res))
}

func (s *Server) replan(c *gin.Context) {
	var req replanRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}
	res, err := s.app.Replan.Replan(c.Request.Context(), c.Param("user"),
		service.ReplanRequest{Reason: req.Reason, Horizon: horizonOf(req.Start, req.End)})
	if err != nil {
		fail(c, err, nil)
		return
	}
	created(c, gin.H{"reset": res.Reset, "plan": newPlanResponse(res.Plan)})
}

func (s *Server) getProfile(c *gin.Context) {
	p, err := s.app.Profiles.Get(c.Request.Context(), c.Param("user"))
	if err != nil {
		fail(c, err, nil)
		return
	}
	ok(c, newProfileResponse(p))
}

func (s *Server) updateProfile(c *gin.Context) {
	var req settingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	settings, err := req.toSettings()
	if err != nil {
		fail(c, err, nil)
		return
	}
	p, err := s.app.Profiles.UpdateSettings(c.Request.Context(), c.Param("user"), settings)
	if err != nil {
		fail(c, err, nil)
		return
	}
	ok(c, newProfileResponse(p))
}

func (s *Server) submitReview(c *gin.Context) {
	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	var (
		res *service.ReviewResult
		err error
	)
	switch {
	case req.Text != "" && len(req.Deltas) > 0:
		badRequest(c, errors.New("send either deltas or text, not both"))
		return
	case req.Text != "":
		week := s.app.Clock.Now()
		if req.Week != "" {
			if week, err = time.Parse(dateLayout, req.Week); err != nil {
				badRequest(c, errors.New("week must be a date like 2006-01-02"))
				return
			}
		}
		res, err = s.app.Profiles.SubmitReviewText(c.Request.Context(), c.Param("user"), week, req.Text)
	default:
		deltas := make([]domain.ReviewDelta, len(req.Deltas))
		for i, d := range req.Deltas {
			if deltas[i], err = d.toDelta(); err != nil {
				fail(c, err, nil)
				return
			}
		}
		res, err = s.app.Profiles.SubmitReview(c.Request.Context(), c.Param("user"), deltas)
	}
	if err != nil {
		fail(c, err, nil)
		return
	}
	ok(c, reviewResponse{Deltas: res.Deltas, BufferNudged: res.BufferNudged, MinBufferMin: res.MinBufferMin})
}

func (s *Server) insights(c *gin.Context) {
	in, err := s.app.Profiles.Insights(c.Request.Context(), c.Param("user"))
	if err != nil {
		fail(c, err, nil)
		return
	}
	ok(c, newInsightsResponse(in))
}

func (s *Server) history(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	records, err := s.app.Profiles.History(c.Request.Context(), c.Param("user"), limit)
	if err != nil {
		fail(c, err, nil)
		return
	}
	out := make([]completionRecord, len(records))
	for i, r := range records {
		out[i] = newCompletionRecord(r)
	}
	ok(c, out)
}
