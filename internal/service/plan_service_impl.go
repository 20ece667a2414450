package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alexanderramin/cadence/internal/db"
	"github.com/alexanderramin/cadence/internal/domain"
	"github.com/alexanderramin/cadence/internal/intelligence"
	"github.com/alexanderramin/cadence/internal/learning"
	"github.com/alexanderramin/cadence/internal/repository"
	"github.com/alexanderramin/cadence/internal/scheduler"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// planner holds what plan generation needs. Generation reads shared state
// without locking; only persisting the draft takes the user lock.
type planner struct {
	tasks     repository.TaskRepo
	intervals repository.IntervalRepo
	profiles  repository.ProfileRepo
	plans     repository.PlanRepo
	uow       db.UnitOfWork
	env
}

type planService struct {
	*planner
	reviewer intelligence.PlanReviewer
	exporter CalendarExporter
}

// NewPlanService creates the plan service. reviewer and exporter are
// optional.
func NewPlanService(
	tasks repository.TaskRepo,
	intervals repository.IntervalRepo,
	profiles repository.ProfileRepo,
	plans repository.PlanRepo,
	reviewer intelligence.PlanReviewer,
	exporter CalendarExporter,
	uow db.UnitOfWork,
	opts ...Option,
) PlanService {
	return &planService{
		planner: &planner{
			tasks: tasks, intervals: intervals, profiles: profiles, plans: plans,
			uow: uow, env: newEnv(opts),
		},
		reviewer: reviewer,
		exporter: exporter,
	}
}

func (s *planService) Generate(ctx context.Context, userID string, req GenerateRequest) (plan *domain.Plan, err error) {
	startedAt := s.clock.Now()
	fields := map[string]any{}
	defer s.observe(ctx, "generate-plan", userID, startedAt, fields, &err)

	plan, err = s.generate(ctx, userID, req, nil, "")
	if err == nil {
		fields["plan_id"] = plan.ID
		fields["entries"] = len(plan.Entries)
		fields["unschedulable"] = len(plan.Unschedulable)
	}
	return plan, err
}

func (s *planService) Get(ctx context.Context, userID, planID string) (*domain.Plan, error) {
	return s.plans.Get(ctx, userID, planID)
}

func (s *planService) ListRecent(ctx context.Context, userID string, limit int) ([]*domain.Plan, error) {
	return s.plans.ListRecent(ctx, userID, limit)
}

func (s *planService) Refine(ctx context.Context, userID, planID, feedback string) (plan *domain.Plan, err error) {
	startedAt := s.clock.Now()
	fields := map[string]any{"plan_id": planID}
	defer s.observe(ctx, "refine-plan", userID, startedAt, fields, &err)

	original, err := s.plans.Get(ctx, userID, planID)
	if err != nil {
		return nil, err
	}
	if original.Status != domain.PlanDraft {
		return nil, fmt.Errorf("plan %s is %s: %w", planID, original.Status, domain.ErrPlanNotDraft)
	}

	if s.reviewer == nil {
		return original, fmt.Errorf("refining plan %s: %w", planID, intelligence.ErrUpstreamUnavailable)
	}
	review, err := s.reviewer.Review(ctx, original, feedback)
	if err != nil {
		return original, fmt.Errorf("refining plan %s: %w", planID, err)
	}
	if review == nil {
		review = &domain.PlanReview{}
	}
	fields["hints"] = len(review.Hints)

	signals := learning.MergeSignals(review.Signals, learning.FeedbackSignals(feedback))
	changed, err := s.learnFromFeedback(ctx, userID, signals)
	if err != nil {
		return original, err
	}
	fields["signals"] = len(signals)
	fields["preferences_changed"] = changed

	horizon := domain.Horizon{Start: original.HorizonStart, End: original.HorizonEnd}
	if now := s.now(); horizon.Start.Before(now) {
		horizon.Start = now
	}
	refined, err := s.generate(ctx, userID, GenerateRequest{
		Horizon: horizon,
		Context: original.Context,
		Hints:   review.Hints,
	}, nil, original.ID)
	if err != nil {
		return original, err
	}

	unlock := s.locks.Lock(userID)
	defer unlock()
	if err := s.plans.UpdateStatus(ctx, userID, original.ID, domain.PlanSuperseded); err != nil {
		return nil, err
	}
	fields["refined_id"] = refined.ID
	return refined, nil
}

// learnFromFeedback folds plan feedback into the stored profile so the
// refined plan and later ones use the adjusted preferences.
func (s *planService) learnFromFeedback(ctx context.Context, userID string, signals []domain.FeedbackSignal) (bool, error) {
	unlock := s.locks.Lock(userID)
	defer unlock()

	var changed bool
	err := s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		txProfiles := repository.NewSQLiteProfileRepo(tx)
		current, err := loadProfile(ctx, txProfiles, userID)
		if err != nil {
			return err
		}
		var updated domain.UserProfile
		updated, changed = learning.ObserveFeedback(*current, signals, s.params)
		updated.UpdatedAt = s.now()
		_, err = saveProfile(ctx, txProfiles, &updated, s.log, "refine-plan")
		return err
	})
	return changed, err
}

// generate runs the allocator over the user's open tasks and stores the
// result as a draft.
func (p *planner) generate(ctx context.Context, userID string, req GenerateRequest, previouslyOverdue map[string]bool, refinedFrom string) (*domain.Plan, error) {
	now := p.now()
	horizon := req.Horizon
	if horizon.Start.IsZero() && horizon.End.IsZero() {
		horizon = defaultHorizon(now, p.horizonDays)
	}
	if err := horizon.Validate(); err != nil {
		return nil, err
	}

	profile, err := loadProfile(ctx, p.profiles, userID)
	if err != nil {
		return nil, err
	}
	all, err := p.tasks.ListByStatus(ctx, userID)
	if err != nil {
		return nil, err
	}
	var candidates []*domain.Task
	for _, t := range all {
		if t.Status == domain.TaskPending || t.Status == domain.TaskOverdue {
			candidates = append(candidates, t)
		}
	}
	l, err := loadLedger(ctx, p.intervals, userID, profile.Location(), horizon.Start, horizon.End)
	if err != nil {
		return nil, err
	}

	plan, err := scheduler.Allocate(scheduler.AllocationInput{
		UserID:            userID,
		Tasks:             candidates,
		Known:             indexTasks(all),
		Ledger:            l,
		Profile:           *profile,
		Horizon:           horizon,
		Context:           req.Context,
		Hints:             req.Hints,
		PreviouslyOverdue: previouslyOverdue,
		BiasThreshold:     p.biasThreshold,
		Now:               now,
	})
	if err != nil {
		return nil, err
	}
	plan.ID = uuid.New().String()
	plan.RefinedFrom = refinedFrom

	unlock := p.locks.Lock(userID)
	defer unlock()
	err = p.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		txProfiles := repository.NewSQLiteProfileRepo(tx)
		if err := repository.NewSQLitePlanRepo(tx).Create(ctx, plan); err != nil {
			return err
		}
		current, err := loadProfile(ctx, txProfiles, userID)
		if err != nil {
			return err
		}
		current.PlansGenerated++
		current.UpdatedAt = now
		_, err = saveProfile(ctx, txProfiles, current, p.log, "generate-plan")
		return err
	})
	if err != nil {
		return nil, err
	}
	return plan, nil
}

// Execute commits a draft: every session of the plan is booked and its
// tasks scheduled in one transaction, or nothing changes.
func (s *planService) Execute(ctx context.Context, userID, planID string) (res *ExecuteResult, err error) {
	startedAt := s.clock.Now()
	fields := map[string]any{"plan_id": planID}
	defer s.observe(ctx, "execute-plan", userID, startedAt, fields, &err)

	unlock := s.locks.Lock(userID)
	defer unlock()

	res = &ExecuteResult{}
	loc := time.UTC
	err = s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		txTasks := repository.NewSQLiteTaskRepo(tx)
		txIntervals := repository.NewSQLiteIntervalRepo(tx)
		txPlans := repository.NewSQLitePlanRepo(tx)

		plan, err := txPlans.Get(ctx, userID, planID)
		if err != nil {
			return err
		}
		if plan.Status != domain.PlanDraft {
			return fmt.Errorf("plan %s is %s: %w", planID, plan.Status, domain.ErrPlanNotDraft)
		}
		profile, err := loadProfile(ctx, repository.NewSQLiteProfileRepo(tx), userID)
		if err != nil {
			return err
		}
		loc = profile.Location()

		ids := plan.TaskIDs()
		inPlan := make(map[string]bool, len(ids))
		for _, id := range ids {
			inPlan[id] = true
		}
		tasks := make(map[string]*domain.Task, len(ids))
		for _, id := range ids {
			t, err := txTasks.Get(ctx, userID, id)
			if errors.Is(err, domain.ErrNotFound) {
				return fmt.Errorf("task %s no longer exists: %w", id, domain.ErrPlanConflict)
			}
			if err != nil {
				return err
			}
			if !domain.CanTransition(t.Status, domain.TaskScheduled) {
				return fmt.Errorf("task %q is now %s: %w", t.Title, t.Status, domain.ErrPlanConflict)
			}
			tasks[id] = t
		}
		if err := s.checkDependencies(ctx, txTasks, plan, tasks, inPlan); err != nil {
			return err
		}

		for _, id := range ids {
			if _, err := txIntervals.DeleteByTask(ctx, userID, id); err != nil {
				return err
			}
		}

		if err := bookSessions(ctx, txIntervals, userID, loc, plan); err != nil {
			return err
		}

		now := s.now()
		for _, id := range ids {
			entries := plan.EntriesFor(id)
			t := tasks[id]
			if err := t.Schedule(entries[0].Start, entries[len(entries)-1].End, now); err != nil {
				return err
			}
			if err := txTasks.Update(ctx, t); err != nil {
				return err
			}
		}

		if err := txPlans.UpdateStatus(ctx, userID, planID, domain.PlanExecuted); err != nil {
			return err
		}
		superseded, err := txPlans.SupersedeDrafts(ctx, userID, planID, ids)
		if err != nil {
			return err
		}

		plan.Status = domain.PlanExecuted
		res.Plan = plan
		res.Scheduled = ids
		res.Superseded = superseded
		return nil
	})
	if err != nil {
		return nil, err
	}
	fields["scheduled"] = len(res.Scheduled)
	fields["superseded"] = res.Superseded

	if s.exporter != nil && len(res.Plan.Entries) > 0 {
		n, exportErr := s.exporter.Export(ctx, res.Plan, loc)
		res.Exported = n
		if exportErr != nil {
			res.ExportErr = exportErr
			s.log.Warn("calendar export failed", zap.String("user_id", userID), zap.String("plan_id", planID), zap.Error(exportErr))
		}
	}
	return res, nil
}

// bookSessions verifies every session against what is stored now and
// inserts it. A stale plan fails with ErrPlanConflict.
func bookSessions(ctx context.Context, intervals repository.IntervalRepo, userID string, loc *time.Location, plan *domain.Plan) error {
	if len(plan.Entries) == 0 {
		return nil
	}
	first, last := plan.Entries[0].Start, plan.Entries[0].End
	for _, e := range plan.Entries {
		if e.Start.Before(first) {
			first = e.Start
		}
		if e.End.After(last) {
			last = e.End
		}
	}
	current, err := loadLedger(ctx, intervals, userID, loc, first, last)
	if err != nil {
		return err
	}
	busy := current.Busy()
	for _, e := range plan.Entries {
		iv := domain.Interval{Start: e.Start, End: e.End, Kind: domain.IntervalOccupied, TaskID: e.TaskID, Label: e.Title}
		for _, b := range busy {
			if b.Overlaps(iv) {
				return fmt.Errorf("session of %q overlaps busy %q: %w", e.Title, b.Label, domain.ErrPlanConflict)
			}
		}
		if err := current.AddOccupied(iv); err != nil {
			if errors.Is(err, domain.ErrIntervalOverlap) {
				return fmt.Errorf("session of %q: %w: %w", e.Title, domain.ErrPlanConflict, err)
			}
			return err
		}
		if err := intervals.InsertOccupied(ctx, userID, domain.WeekStart(e.Start, loc), iv); err != nil {
			return err
		}
	}
	return nil
}

// checkDependencies rejects a plan whose tasks would now start before a
// dependency outside the plan ends.
func (s *planService) checkDependencies(ctx context.Context, tasks repository.TaskRepo, plan *domain.Plan, planned map[string]*domain.Task, inPlan map[string]bool) error {
	for id, t := range planned {
		start := plan.EntriesFor(id)[0].Start
		for _, dep := range t.Dependencies {
			if inPlan[dep] {
				continue
			}
			d, err := tasks.Get(ctx, plan.UserID, dep)
			if err != nil {
				return fmt.Errorf("dependency %s of %q: %w", dep, t.Title, domain.ErrPlanConflict)
			}
			if d.Status == domain.TaskCompleted {
				continue
			}
			if d.ScheduledEnd == nil || d.ScheduledEnd.After(start) {
				return fmt.Errorf("%q would start before its dependency %q ends: %w", t.Title, d.Title, domain.ErrPlanConflict)
			}
		}
	}
	return nil
}
