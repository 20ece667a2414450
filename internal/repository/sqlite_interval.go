package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/alexanderramin/cadence/internal/db"
	"github.com/alexanderramin/cadence/internal/domain"
)

// SQLiteIntervalRepo implements IntervalRepo using a SQLite database.
type SQLiteIntervalRepo struct {
	db db.DBTX
}

// NewSQLiteIntervalRepo creates a new SQLiteIntervalRepo.
func NewSQLiteIntervalRepo(conn db.DBTX) *SQLiteIntervalRepo {
	return &SQLiteIntervalRepo{db: conn}
}

func (r *SQLiteIntervalRepo) ReplaceBusyWeek(ctx context.Context, userID string, weekStart time.Time, ivs []domain.Interval) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM intervals WHERE user_id = ? AND week_start = ? AND kind = 'busy'`,
		userID, timeToString(weekStart)); err != nil {
		return fmt.Errorf("clearing busy week: %w", err)
	}
	for _, iv := range ivs {
		if iv.Kind != domain.IntervalBusy {
			return fmt.Errorf("replacing busy week: got %s interval", iv.Kind)
		}
		if err := r.insert(ctx, userID, weekStart, iv); err != nil {
			return err
		}
	}
	return nil
}

func (r *SQLiteIntervalRepo) InsertOccupied(ctx context.Context, userID string, weekStart time.Time, iv domain.Interval) error {
	if iv.Kind != domain.IntervalOccupied || iv.TaskID == "" {
		return fmt.Errorf("inserting occupied interval: %w", &domain.ValidationError{Field: "task_id", Message: "occupied interval needs a task"})
	}
	return r.insert(ctx, userID, weekStart, iv)
}

func (r *SQLiteIntervalRepo) ListRange(ctx context.Context, userID string, from, to time.Time) ([]domain.Interval, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT kind, start_at, end_at, label, task_id, all_day FROM intervals
		WHERE user_id = ? AND start_at < ? AND end_at > ?
		ORDER BY start_at, kind, id`,
		userID, timeToString(to), timeToString(from))
	if err != nil {
		return nil, fmt.Errorf("listing intervals: %w", err)
	}
	defer rows.Close()

	var out []domain.Interval
	for rows.Next() {
		var (
			iv         domain.Interval
			kind       string
			start, end string
			taskID     sql.NullString
			allDay     int
		)
		if err := rows.Scan(&kind, &start, &end, &iv.Label, &taskID, &allDay); err != nil {
			return nil, fmt.Errorf("scanning interval: %w", err)
		}
		iv.Kind = domain.IntervalKind(kind)
		iv.TaskID = taskID.String
		iv.AllDay = intToBool(allDay)
		if iv.Start, err = parseTime(start); err != nil {
			return nil, fmt.Errorf("parsing interval start: %w", err)
		}
		if iv.End, err = parseTime(end); err != nil {
			return nil, fmt.Errorf("parsing interval end: %w", err)
		}
		out = append(out, iv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating intervals: %w", err)
	}
	return out, nil
}

func (r *SQLiteIntervalRepo) DeleteByTask(ctx context.Context, userID, taskID string) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM intervals WHERE user_id = ? AND task_id = ? AND kind = 'occupied'`, userID, taskID)
	if err != nil {
		return 0, fmt.Errorf("deleting task intervals: %w", err)
	}
	return res.RowsAffected()
}

// DeleteByTaskFrom drops the task's sessions that start at or after from.
func (r *SQLiteIntervalRepo) DeleteByTaskFrom(ctx context.Context, userID, taskID string, from time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM intervals WHERE user_id = ? AND task_id = ? AND kind = 'occupied' AND start_at >= ?`,
		userID, taskID, timeToString(from))
	if err != nil {
		return 0, fmt.Errorf("deleting remaining task intervals: %w", err)
	}
	return res.RowsAffected()
}

func (r *SQLiteIntervalRepo) insert(ctx context.Context, userID string, weekStart time.Time, iv domain.Interval) error {
	var taskID any
	if iv.TaskID != "" {
		taskID = iv.TaskID
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO intervals (user_id, week_start, kind, start_at, end_at, label, task_id, all_day)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		userID,
		timeToString(weekStart),
		string(iv.Kind),
		timeToString(iv.Start),
		timeToString(iv.End),
		iv.Label,
		taskID,
		boolToInt(iv.AllDay),
	)
	if err != nil {
		return fmt.Errorf("inserting %s interval: %w", iv.Kind, err)
	}
	return nil
}
