package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/alexanderramin/cadence/internal/codec"
	"github.com/alexanderramin/cadence/internal/db"
	"github.com/alexanderramin/cadence/internal/domain"
)

// learnedState holds the profile fields that do not fit a scalar column.
type learnedState struct {
	WorkDays    []int              `cbor:"1,keyasint,omitempty"`
	PeakHours   []int              `cbor:"2,keyasint,omitempty"`
	PeakSamples map[int]float64    `cbor:"3,keyasint,omitempty"`
	TagBias     map[string]float64 `cbor:"4,keyasint,omitempty"`

	PreferredSessionMin   int  `cbor:"5,keyasint,omitempty"`
	PreferMorningDeepWork bool `cbor:"6,keyasint,omitempty"`
	FeedbackReceived      int  `cbor:"7,keyasint,omitempty"`
}

const profileColumns = `user_id, timezone, work_start_min, work_end_min, allow_weekends,
		max_daily_work_min, min_buffer_min, learned, average_focus_span_min,
		adherence_rate, duration_bias, learning_cycle, tasks_tracked, on_time_count,
		early_count, late_count, avg_delay_min, estimation_error_sum, reviews_processed,
		plans_generated, break_start_min, break_min, version, updated_at`

// SQLiteProfileRepo implements ProfileRepo using a SQLite database.
type SQLiteProfileRepo struct {
	db db.DBTX
}

// NewSQLiteProfileRepo creates a new SQLiteProfileRepo.
func NewSQLiteProfileRepo(conn db.DBTX) *SQLiteProfileRepo {
	return &SQLiteProfileRepo{db: conn}
}

func (r *SQLiteProfileRepo) Get(ctx context.Context, userID string) (*domain.UserProfile, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM user_profiles WHERE user_id = ?`, userID)

	var (
		p             domain.UserProfile
		allowWeekends int
		learned       []byte
		updatedAt     string
	)
	err := row.Scan(
		&p.UserID, &p.Timezone, &p.WorkStartMin, &p.WorkEndMin, &allowWeekends,
		&p.MaxDailyWorkMin, &p.MinBufferMin, &learned, &p.AverageFocusSpanMin,
		&p.AdherenceRate, &p.DurationBias, &p.LearningCycle, &p.TasksTracked, &p.OnTimeCount,
		&p.EarlyCount, &p.LateCount, &p.AvgDelayMin, &p.EstimationErrorSum, &p.ReviewsProcessed,
		&p.PlansGenerated, &p.BreakStartMin, &p.BreakMin, &p.Version, &updatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("user profile %s: %w", userID, ErrNotFound)
		}
		return nil, fmt.Errorf("scanning user profile: %w", err)
	}
	p.AllowWeekends = intToBool(allowWeekends)
	if p.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parsing profile updated_at: %w", err)
	}

	var ls learnedState
	if len(learned) > 0 {
		if err := codec.Unmarshal(learned, &ls); err != nil {
			return nil, fmt.Errorf("decoding learned profile state: %w", err)
		}
	}
	for _, d := range ls.WorkDays {
		p.WorkDays = append(p.WorkDays, time.Weekday(d))
	}
	p.PeakHours = ls.PeakHours
	p.PeakSamples = ls.PeakSamples
	p.TagBias = ls.TagBias
	p.PreferredSessionMin = ls.PreferredSessionMin
	p.PreferMorningDeepWork = ls.PreferMorningDeepWork
	p.FeedbackReceived = ls.FeedbackReceived
	if p.PeakSamples == nil {
		p.PeakSamples = map[int]float64{}
	}
	if p.TagBias == nil {
		p.TagBias = map[string]float64{}
	}
	return &p, nil
}

// Replace writes every column of the profile and bumps its version. When
// the stored version is not the one p was read at, the write still wins
// and stale is reported so the caller can log it.
func (r *SQLiteProfileRepo) Replace(ctx context.Context, p *domain.UserProfile) (bool, error) {
	var current int
	err := r.db.QueryRowContext(ctx, `SELECT version FROM user_profiles WHERE user_id = ?`, p.UserID).Scan(&current)
	switch {
	case err == sql.ErrNoRows:
		current = 0
	case err != nil:
		return false, fmt.Errorf("reading profile version: %w", err)
	}
	stale := current != p.Version

	ls := learnedState{
		PeakHours:   p.PeakHours,
		PeakSamples: p.PeakSamples,
		TagBias:     p.TagBias,

		PreferredSessionMin:   p.PreferredSessionMin,
		PreferMorningDeepWork: p.PreferMorningDeepWork,
		FeedbackReceived:      p.FeedbackReceived,
	}
	for _, d := range p.WorkDays {
		ls.WorkDays = append(ls.WorkDays, int(d))
	}
	learned, err := codec.Marshal(ls)
	if err != nil {
		return false, fmt.Errorf("encoding learned profile state: %w", err)
	}

	next := current + 1
	query := `INSERT OR REPLACE INTO user_profiles (` + profileColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = r.db.ExecContext(ctx, query,
		p.UserID, p.Timezone, p.WorkStartMin, p.WorkEndMin, boolToInt(p.AllowWeekends),
		p.MaxDailyWorkMin, p.MinBufferMin, learned, p.AverageFocusSpanMin,
		p.AdherenceRate, p.DurationBias, p.LearningCycle, p.TasksTracked, p.OnTimeCount,
		p.EarlyCount, p.LateCount, p.AvgDelayMin, p.EstimationErrorSum, p.ReviewsProcessed,
		p.PlansGenerated, p.BreakStartMin, p.BreakMin, next, timeToString(p.UpdatedAt),
	)
	if err != nil {
		return false, fmt.Errorf("replacing user profile: %w", err)
	}
	p.Version = next
	return stale, nil
}
