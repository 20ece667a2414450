package service

import (
	"context"
	"fmt"
	"time"

	"github.com/alexanderramin/cadence/internal/db"
	"github.com/alexanderramin/cadence/internal/domain"
	"github.com/alexanderramin/cadence/internal/intelligence"
	"github.com/alexanderramin/cadence/internal/learning"
	"github.com/alexanderramin/cadence/internal/repository"
)

type profileService struct {
	profiles    repository.ProfileRepo
	completions repository.CompletionRepo
	parser      intelligence.ReviewParser
	uow         db.UnitOfWork
	env
}

// NewProfileService creates the profile service. parser is optional; without
// it only structured reviews are accepted.
func NewProfileService(
	profiles repository.ProfileRepo,
	completions repository.CompletionRepo,
	parser intelligence.ReviewParser,
	uow db.UnitOfWork,
	opts ...Option,
) ProfileService {
	return &profileService{
		profiles:    profiles,
		completions: completions,
		parser:      parser,
		uow:         uow,
		env:         newEnv(opts),
	}
}

func (s *profileService) Get(ctx context.Context, userID string) (*domain.UserProfile, error) {
	return loadProfile(ctx, s.profiles, userID)
}

func (s *profileService) UpdateSettings(ctx context.Context, userID string, in Settings) (p *domain.UserProfile, err error) {
	startedAt := s.clock.Now()
	defer s.observe(ctx, "update-settings", userID, startedAt, nil, &err)

	unlock := s.locks.Lock(userID)
	defer unlock()

	err = s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		txProfiles := repository.NewSQLiteProfileRepo(tx)
		current, err := loadProfile(ctx, txProfiles, userID)
		if err != nil {
			return err
		}
		next := current.Clone()
		in.apply(&next)
		if err := next.ValidateWorkingHours(); err != nil {
			return err
		}
		next.UpdatedAt = s.now()
		if _, err := saveProfile(ctx, txProfiles, &next, s.log, "update-settings"); err != nil {
			return err
		}
		p = &next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (in Settings) apply(p *domain.UserProfile) {
	if in.Timezone != nil {
		p.Timezone = *in.Timezone
	}
	if in.WorkStartMin != nil {
		p.WorkStartMin = *in.WorkStartMin
	}
	if in.WorkEndMin != nil {
		p.WorkEndMin = *in.WorkEndMin
	}
	if in.WorkDays != nil {
		p.WorkDays = append([]time.Weekday(nil), in.WorkDays...)
	}
	if in.AllowWeekends != nil {
		p.AllowWeekends = *in.AllowWeekends
	}
	if in.MaxDailyWorkMin != nil {
		p.MaxDailyWorkMin = *in.MaxDailyWorkMin
	}
	if in.MinBufferMin != nil {
		p.MinBufferMin = *in.MinBufferMin
	}
	if in.BreakStartMin != nil {
		p.BreakStartMin = *in.BreakStartMin
	}
	if in.BreakMin != nil {
		p.BreakMin = *in.BreakMin
	}
}

// SubmitReview feeds structured review deltas to the learner.
func (s *profileService) SubmitReview(ctx context.Context, userID string, deltas []domain.ReviewDelta) (res *ReviewResult, err error) {
	startedAt := s.clock.Now()
	fields := map[string]any{"deltas": len(deltas)}
	defer s.observe(ctx, "submit-review", userID, startedAt, fields, &err)

	for i, d := range deltas {
		if err := d.Validate(); err != nil {
			return nil, fmt.Errorf("delta %d: %w", i, err)
		}
	}

	unlock := s.locks.Lock(userID)
	defer unlock()

	res = &ReviewResult{Deltas: deltas}
	err = s.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		txProfiles := repository.NewSQLiteProfileRepo(tx)
		current, err := loadProfile(ctx, txProfiles, userID)
		if err != nil {
			return err
		}
		updated, nudged := learning.ObserveReview(*current, deltas, s.params)
		updated.UpdatedAt = s.now()
		if _, err := saveProfile(ctx, txProfiles, &updated, s.log, "submit-review"); err != nil {
			return err
		}
		res.BufferNudged = nudged
		res.MinBufferMin = updated.MinBufferMin
		return nil
	})
	if err != nil {
		return nil, err
	}
	fields["buffer_nudged"] = res.BufferNudged
	return res, nil
}

// SubmitReviewText parses prose into deltas before learning from them. A
// parse failure leaves the profile untouched.
func (s *profileService) SubmitReviewText(ctx context.Context, userID string, weekStart time.Time, text string) (*ReviewResult, error) {
	if s.parser == nil {
		return nil, fmt.Errorf("parsing review: %w", intelligence.ErrUpstreamUnavailable)
	}
	deltas, err := s.parser.Parse(ctx, text, weekStart)
	if err != nil {
		return nil, fmt.Errorf("parsing review: %w", err)
	}
	return s.SubmitReview(ctx, userID, deltas)
}

func (s *profileService) Insights(ctx context.Context, userID string) (*domain.Insights, error) {
	p, err := loadProfile(ctx, s.profiles, userID)
	if err != nil {
		return nil, err
	}
	in := learning.Insights(*p)
	return &in, nil
}

func (s *profileService) History(ctx context.Context, userID string, limit int) ([]domain.CompletionRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.completions.ListRecent(ctx, userID, limit)
}
