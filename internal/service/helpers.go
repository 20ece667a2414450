package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alexanderramin/cadence/internal/domain"
	"github.com/alexanderramin/cadence/internal/ledger"
	"github.com/alexanderramin/cadence/internal/repository"
	"go.uber.org/zap"
)

// loadProfile returns the stored profile or the defaults for a new user.
func loadProfile(ctx context.Context, profiles repository.ProfileRepo, userID string) (*domain.UserProfile, error) {
	p, err := profiles.Get(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		d := domain.DefaultUserProfile(userID)
		return &d, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading profile: %w", err)
	}
	return p, nil
}

// saveProfile replaces the profile row and logs a stale write. The write
// wins either way.
func saveProfile(ctx context.Context, profiles repository.ProfileRepo, p *domain.UserProfile, log *zap.Logger, useCase string) (bool, error) {
	readVersion := p.Version
	stale, err := profiles.Replace(ctx, p)
	if err != nil {
		return false, fmt.Errorf("saving profile: %w", err)
	}
	if stale {
		log.Warn("StaleProfileWrite",
			zap.String("user_id", p.UserID),
			zap.String("use_case", useCase),
			zap.Int("read_version", readVersion),
			zap.Int("written_version", p.Version))
	}
	return stale, nil
}

// loadLedger builds a ledger holding every stored interval that overlaps
// [from, to).
func loadLedger(ctx context.Context, intervals repository.IntervalRepo, userID string, loc *time.Location, from, to time.Time) (*ledger.Ledger, error) {
	ivs, err := intervals.ListRange(ctx, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("loading intervals: %w", err)
	}
	l := ledger.New(loc)
	var busy []domain.Interval
	for _, iv := range ivs {
		switch iv.Kind {
		case domain.IntervalBusy:
			busy = append(busy, iv)
		case domain.IntervalOccupied:
			if err := l.AddOccupied(iv); err != nil {
				return nil, fmt.Errorf("loading occupied interval of task %s: %w", iv.TaskID, err)
			}
		}
	}
	l.LoadBusy(busy)
	return l, nil
}

// indexTasks maps tasks by id.
func indexTasks(tasks []*domain.Task) map[string]*domain.Task {
	out := make(map[string]*domain.Task, len(tasks))
	for _, t := range tasks {
		out[t.ID] = t
	}
	return out
}

func defaultHorizon(now time.Time, days int) domain.Horizon {
	if days <= 0 {
		days = 7
	}
	return domain.Horizon{Start: now, End: now.AddDate(0, 0, days)}
}
