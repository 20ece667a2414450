package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/alexanderramin/cadence/internal/db"
	"github.com/alexanderramin/cadence/internal/domain"
	"github.com/alexanderramin/cadence/internal/importer"
	"github.com/alexanderramin/cadence/internal/ledger"
	"github.com/alexanderramin/cadence/internal/repository"
)

type importService struct {
	profiles repository.ProfileRepo
	uow      db.UnitOfWork
	env
}

func NewImportService(profiles repository.ProfileRepo, uow db.UnitOfWork, opts ...Option) ImportService {
	return &importService{profiles: profiles, uow: uow, env: newEnv(opts)}
}

func (s *importService) Import(ctx context.Context, userID, path string) (*ImportResult, error) {
	schema, err := importer.LoadImportSchema(path)
	if err != nil {
		return nil, err
	}
	return s.ImportSchema(ctx, userID, schema)
}

// ImportSchema stores every task and busy block of the file or nothing.
// Busy blocks are merged into the busy time already stored for their week.
func (s *importService) ImportSchema(ctx context.Context, userID string, schema *importer.ImportSchema) (res *ImportResult, err error) {
	startedAt := s.clock.Now()
	fields := map[string]any{}
	defer s.observe(ctx, "import", userID, startedAt, fields, &err)

	if errs := importer.ValidateImportSchema(schema); len(errs) > 0 {
		return nil, fmt.Errorf("%w: %w", domain.ErrValidation, errors.Join(errs...))
	}

	profile, err := loadProfile(ctx, s.profiles, userID)
	if err != nil {
		return nil, err
	}
	loc := profile.Location()
	batch, err := importer.Convert(schema, userID, loc, s.now())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrValidation, err)
	}
	for _, t := range batch.Tasks {
		if err := t.Validate(); err != nil {
			return nil, fmt.Errorf("task %q: %w", t.Title, err)
		}
	}

	unlock := s.locks.Lock(userID)
	defer unlock()

	res = &ImportResult{Tasks: batch.Tasks}
	err = s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		txTasks := repository.NewSQLiteTaskRepo(tx)
		txIntervals := repository.NewSQLiteIntervalRepo(tx)

		existing, err := txTasks.ListByStatus(ctx, userID)
		if err != nil {
			return err
		}
		graph := indexTasks(existing)
		for _, t := range batch.Tasks {
			graph[t.ID] = t
		}
		if err := domain.ValidateDependencyGraph(graph); err != nil {
			return err
		}

		for _, t := range creationOrder(batch.Tasks) {
			if err := txTasks.Create(ctx, t); err != nil {
				return err
			}
			res.Dependencies += len(t.Dependencies)
		}

		for _, ws := range sortedWeeks(batch.Busy) {
			we := ws.AddDate(0, 0, 7)
			stored, err := txIntervals.ListRange(ctx, userID, ws, we)
			if err != nil {
				return err
			}
			l := ledger.New(loc)
			merged := batch.Busy[ws]
			for _, iv := range stored {
				if iv.Kind == domain.IntervalBusy && !iv.Start.Before(ws) {
					merged = append(merged, iv)
				}
			}
			if err := l.SetBusy(ws, merged); err != nil {
				return err
			}
			if err := txIntervals.ReplaceBusyWeek(ctx, userID, ws, l.BusyInWeek(ws)); err != nil {
				return err
			}
			res.BusyWeeks++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	fields["tasks"] = len(res.Tasks)
	fields["busy_weeks"] = res.BusyWeeks
	return res, nil
}

// creationOrder puts every task after the in-batch tasks it depends on.
// The graph is known to be acyclic.
func creationOrder(tasks []*domain.Task) []*domain.Task {
	inBatch := indexTasks(tasks)
	placed := make(map[string]bool, len(tasks))
	out := make([]*domain.Task, 0, len(tasks))
	var place func(t *domain.Task)
	place = func(t *domain.Task) {
		if placed[t.ID] {
			return
		}
		placed[t.ID] = true
		for _, dep := range t.Dependencies {
			if d, ok := inBatch[dep]; ok {
				place(d)
			}
		}
		out = append(out, t)
	}
	for _, t := range tasks {
		place(t)
	}
	return out
}

func sortedWeeks(busy map[time.Time][]domain.Interval) []time.Time {
	weeks := make([]time.Time, 0, len(busy))
	for ws := range busy {
		weeks = append(weeks, ws)
	}
	sort.Slice(weeks, func(i, j int) bool { return weeks[i].Before(weeks[j]) })
	return weeks
}
