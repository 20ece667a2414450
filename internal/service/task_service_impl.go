package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/alexanderramin/cadence/internal/db"
	"github.com/alexanderramin/cadence/internal/domain"
	"github.com/alexanderramin/cadence/internal/learning"
	"github.com/alexanderramin/cadence/internal/repository"
	"github.com/google/uuid"
)

type taskService struct {
	tasks repository.TaskRepo
	uow   db.UnitOfWork
	env
}

func NewTaskService(tasks repository.TaskRepo, uow db.UnitOfWork, opts ...Option) TaskService {
	return &taskService{tasks: tasks, uow: uow, env: newEnv(opts)}
}

func (s *taskService) Add(ctx context.Context, t *domain.Task) (err error) {
	startedAt := s.clock.Now()
	defer s.observe(ctx, "add-task", t.UserID, startedAt, map[string]any{"title": t.Title}, &err)

	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	now := s.now()
	t.Status = domain.TaskPending
	t.ScheduledStart, t.ScheduledEnd, t.ActualStart, t.ActualEnd = nil, nil, nil, nil
	t.CreatedAt, t.UpdatedAt = now, now
	if t.PreferredTimeOfDay == "" {
		t.PreferredTimeOfDay = domain.TimeOfDayNone
	}
	if err := t.Validate(); err != nil {
		return err
	}

	unlock := s.locks.Lock(t.UserID)
	defer unlock()

	return s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		txTasks := repository.NewSQLiteTaskRepo(tx)
		if err := checkGraph(ctx, txTasks, t); err != nil {
			return err
		}
		return txTasks.Create(ctx, t)
	})
}

func (s *taskService) Get(ctx context.Context, userID, id string) (*domain.Task, error) {
	return s.tasks.Get(ctx, userID, id)
}

func (s *taskService) List(ctx context.Context, userID string, statuses ...domain.TaskStatus) ([]*domain.Task, error) {
	return s.tasks.ListByStatus(ctx, userID, statuses...)
}

// Update rewrites the user-editable fields. Lifecycle state and recorded
// times are kept from the stored task.
func (s *taskService) Update(ctx context.Context, t *domain.Task) (err error) {
	startedAt := s.clock.Now()
	defer s.observe(ctx, "update-task", t.UserID, startedAt, map[string]any{"task_id": t.ID}, &err)

	unlock := s.locks.Lock(t.UserID)
	defer unlock()

	return s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		txTasks := repository.NewSQLiteTaskRepo(tx)
		stored, err := txTasks.Get(ctx, t.UserID, t.ID)
		if err != nil {
			return err
		}
		if stored.Status == domain.TaskCompleted {
			return &domain.ValidationError{Field: "status", Message: "completed tasks cannot be edited"}
		}
		t.Status = stored.Status
		t.ScheduledStart, t.ScheduledEnd = stored.ScheduledStart, stored.ScheduledEnd
		t.ActualStart, t.ActualEnd = stored.ActualStart, stored.ActualEnd
		t.CreatedAt = stored.CreatedAt
		t.UpdatedAt = s.now()
		if t.PreferredTimeOfDay == "" {
			t.PreferredTimeOfDay = domain.TimeOfDayNone
		}
		if err := t.Validate(); err != nil {
			return err
		}
		if err := checkGraph(ctx, txTasks, t); err != nil {
			return err
		}
		return txTasks.Update(ctx, t)
	})
}

// Delete removes a task nothing depends on. Its sessions go with it.
func (s *taskService) Delete(ctx context.Context, userID, id string) (err error) {
	startedAt := s.clock.Now()
	defer s.observe(ctx, "delete-task", userID, startedAt, map[string]any{"task_id": id}, &err)

	unlock := s.locks.Lock(userID)
	defer unlock()

	return s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		txTasks := repository.NewSQLiteTaskRepo(tx)
		dependents, err := txTasks.ListDependents(ctx, userID, id)
		if err != nil {
			return err
		}
		if len(dependents) > 0 {
			return &domain.ValidationError{
				Field:   "dependencies",
				Message: fmt.Sprintf("task %s is required by %s", id, strings.Join(dependents, ", ")),
			}
		}
		return txTasks.Delete(ctx, userID, id)
	})
}

func (s *taskService) Start(ctx context.Context, userID, id string) (task *domain.Task, err error) {
	startedAt := s.clock.Now()
	defer s.observe(ctx, "start-task", userID, startedAt, map[string]any{"task_id": id}, &err)

	unlock := s.locks.Lock(userID)
	defer unlock()

	err = s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		txTasks := repository.NewSQLiteTaskRepo(tx)
		t, err := txTasks.Get(ctx, userID, id)
		if err != nil {
			return err
		}
		if err := t.Start(s.now()); err != nil {
			return err
		}
		task = t
		return txTasks.Update(ctx, t)
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// Complete finishes a task, frees its remaining sessions, records the
// completion and feeds the learner, all in one transaction.
func (s *taskService) Complete(ctx context.Context, userID, id string, req CompleteRequest) (res *CompletionResult, err error) {
	startedAt := s.clock.Now()
	fields := map[string]any{"task_id": id}
	defer s.observe(ctx, "complete-task", userID, startedAt, fields, &err)

	unlock := s.locks.Lock(userID)
	defer unlock()

	res = &CompletionResult{}
	err = s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		txTasks := repository.NewSQLiteTaskRepo(tx)
		txIntervals := repository.NewSQLiteIntervalRepo(tx)
		txProfiles := repository.NewSQLiteProfileRepo(tx)
		txCompletions := repository.NewSQLiteCompletionRepo(tx)

		t, err := txTasks.Get(ctx, userID, id)
		if err != nil {
			return err
		}
		var actualStart time.Time
		if req.ActualStart != nil {
			actualStart = req.ActualStart.UTC()
		}
		actualEnd := s.now()
		if req.ActualEnd != nil {
			actualEnd = req.ActualEnd.UTC()
		}
		if err := t.Complete(actualStart, actualEnd); err != nil {
			return err
		}
		if err := txTasks.Update(ctx, t); err != nil {
			return err
		}
		if _, err := txIntervals.DeleteByTaskFrom(ctx, userID, id, actualEnd); err != nil {
			return err
		}

		profile, err := loadProfile(ctx, txProfiles, userID)
		if err != nil {
			return err
		}
		updated, obs, err := learning.ObserveCompletion(*profile, t, s.params)
		if err != nil {
			return err
		}
		updated.UpdatedAt = s.now()
		stale, err := saveProfile(ctx, txProfiles, &updated, s.log, "complete-task")
		if err != nil {
			return err
		}

		rec := domain.CompletionRecord{
			ID:             uuid.New().String(),
			UserID:         userID,
			TaskID:         t.ID,
			Title:          t.Title,
			EstimatedMin:   t.EstimatedMin,
			ActualMin:      t.ActualMin(),
			ScheduledStart: t.ScheduledStart,
			ScheduledEnd:   t.ScheduledEnd,
			ActualStart:    *t.ActualStart,
			ActualEnd:      *t.ActualEnd,
			Outcome:        obs.Outcome,
			DelayMin:       obs.DelayMin,
			DeepFocus:      t.RequiresDeepFocus,
			Tags:           t.Tags,
			CreatedAt:      s.now(),
		}
		if err := txCompletions.Create(ctx, &rec); err != nil {
			return err
		}

		fields["outcome"] = string(obs.Outcome)
		fields["delay_min"] = obs.DelayMin
		res.Task = t
		res.Record = rec
		res.StaleProfile = stale
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// MarkOverdue moves a task to overdue only if nobody changed its status in
// between.
func (s *taskService) MarkOverdue(ctx context.Context, userID, id string) (bool, error) {
	unlock := s.locks.Lock(userID)
	defer unlock()

	t, err := s.tasks.Get(ctx, userID, id)
	if err != nil {
		return false, err
	}
	if !domain.CanTransition(t.Status, domain.TaskOverdue) {
		return false, &domain.InvalidTransitionError{TaskID: id, From: t.Status, To: domain.TaskOverdue}
	}
	return s.tasks.CompareAndSetStatus(ctx, userID, id, t.Status, domain.TaskOverdue, s.now())
}

// checkGraph validates t's dependencies against the user's stored tasks.
func checkGraph(ctx context.Context, tasks repository.TaskRepo, t *domain.Task) error {
	if len(t.Dependencies) == 0 {
		return nil
	}
	all, err := tasks.ListByStatus(ctx, t.UserID)
	if err != nil {
		return err
	}
	graph := indexTasks(all)
	graph[t.ID] = t
	return domain.ValidateDependencyGraph(graph)
}
