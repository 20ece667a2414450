package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/alexanderramin/cadence/internal/db"
	"github.com/alexanderramin/cadence/internal/domain"
)

// SQLiteCompletionRepo implements CompletionRepo using a SQLite database.
// Records outlive their task, so task_id carries no foreign key.
type SQLiteCompletionRepo struct {
	db db.DBTX
}

// NewSQLiteCompletionRepo creates a new SQLiteCompletionRepo.
func NewSQLiteCompletionRepo(conn db.DBTX) *SQLiteCompletionRepo {
	return &SQLiteCompletionRepo{db: conn}
}

func (r *SQLiteCompletionRepo) Create(ctx context.Context, c *domain.CompletionRecord) error {
	tags, err := encodeTags(c.Tags)
	if err != nil {
		return fmt.Errorf("encoding completion tags: %w", err)
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO completion_records (id, user_id, task_id, title, estimated_min, actual_min,
			scheduled_start, scheduled_end, actual_start, actual_end, outcome, delay_min,
			deep_focus, tags, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.UserID, c.TaskID, c.Title, c.EstimatedMin, c.ActualMin,
		nullableTimeToString(c.ScheduledStart, timeLayout),
		nullableTimeToString(c.ScheduledEnd, timeLayout),
		timeToString(c.ActualStart), timeToString(c.ActualEnd),
		string(c.Outcome), c.DelayMin, boolToInt(c.DeepFocus), tags,
		timeToString(c.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting completion record: %w", err)
	}
	return nil
}

func (r *SQLiteCompletionRepo) ListRecent(ctx context.Context, userID string, limit int) ([]domain.CompletionRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, task_id, title, estimated_min, actual_min, scheduled_start,
			scheduled_end, actual_start, actual_end, outcome, delay_min, deep_focus, tags, created_at
		FROM completion_records WHERE user_id = ?
		ORDER BY created_at DESC, id LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing completion records: %w", err)
	}
	defer rows.Close()

	var out []domain.CompletionRecord
	for rows.Next() {
		var (
			c                                  domain.CompletionRecord
			schedStart, schedEnd               sql.NullString
			actStart, actEnd, outcome, created string
			deepFocus                          int
			tags                               []byte
		)
		if err := rows.Scan(&c.ID, &c.UserID, &c.TaskID, &c.Title, &c.EstimatedMin, &c.ActualMin,
			&schedStart, &schedEnd, &actStart, &actEnd, &outcome, &c.DelayMin, &deepFocus, &tags, &created); err != nil {
			return nil, fmt.Errorf("scanning completion record: %w", err)
		}
		c.ScheduledStart = parseNullableTime(schedStart, timeLayout)
		c.ScheduledEnd = parseNullableTime(schedEnd, timeLayout)
		c.Outcome = domain.CompletionOutcome(outcome)
		c.DeepFocus = intToBool(deepFocus)
		if c.ActualStart, err = parseTime(actStart); err != nil {
			return nil, fmt.Errorf("parsing actual_start: %w", err)
		}
		if c.ActualEnd, err = parseTime(actEnd); err != nil {
			return nil, fmt.Errorf("parsing actual_end: %w", err)
		}
		if c.CreatedAt, err = parseTime(created); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		if c.Tags, err = decodeTags(tags); err != nil {
			return nil, fmt.Errorf("decoding completion tags: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
