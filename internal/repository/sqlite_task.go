package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/alexanderramin/cadence/internal/db"
	"github.com/alexanderramin/cadence/internal/domain"
)

// taskColumns is the canonical SELECT column list for tasks.
const taskColumns = `id, user_id, title, description, priority, tags,
		estimated_min, can_split, min_session_min, deadline, preferred_time_of_day,
		requires_deep_focus, status, scheduled_start, scheduled_end,
		actual_start, actual_end, created_at, updated_at`

// SQLiteTaskRepo implements TaskRepo using a SQLite database.
type SQLiteTaskRepo struct {
	db db.DBTX
}

// NewSQLiteTaskRepo creates a new SQLiteTaskRepo.
func NewSQLiteTaskRepo(conn db.DBTX) *SQLiteTaskRepo {
	return &SQLiteTaskRepo{db: conn}
}

// Create inserts the task and its dependency edges. Run it inside a unit of
// work when both must land together.
func (r *SQLiteTaskRepo) Create(ctx context.Context, t *domain.Task) error {
	tags, err := encodeTags(t.Tags)
	if err != nil {
		return fmt.Errorf("encoding task tags: %w", err)
	}
	query := `INSERT INTO tasks (` + taskColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = r.db.ExecContext(ctx, query,
		t.ID,
		t.UserID,
		t.Title,
		t.Description,
		string(t.Priority),
		tags,
		t.EstimatedMin,
		boolToInt(t.CanSplit),
		t.MinSessionMin,
		nullableTimeToString(t.Deadline, timeLayout),
		string(timeOfDayOrNone(t.PreferredTimeOfDay)),
		boolToInt(t.RequiresDeepFocus),
		string(t.Status),
		nullableTimeToString(t.ScheduledStart, timeLayout),
		nullableTimeToString(t.ScheduledEnd, timeLayout),
		nullableTimeToString(t.ActualStart, timeLayout),
		nullableTimeToString(t.ActualEnd, timeLayout),
		timeToString(t.CreatedAt),
		timeToString(t.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting task: %w", err)
	}
	return r.insertDependencies(ctx, t)
}

func (r *SQLiteTaskRepo) Get(ctx context.Context, userID, id string) (*domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE user_id = ? AND id = ?`
	t, err := r.scanTask(r.db.QueryRowContext(ctx, query, userID, id))
	if err != nil {
		return nil, err
	}
	deps, err := r.dependencies(ctx, userID, []string{id})
	if err != nil {
		return nil, err
	}
	t.Dependencies = deps[id]
	return t, nil
}

func (r *SQLiteTaskRepo) ListByStatus(ctx context.Context, userID string, statuses ...domain.TaskStatus) ([]*domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE user_id = ?`
	args := []any{userID}
	if len(statuses) > 0 {
		query += ` AND status IN (` + placeholders(len(statuses)) + `)`
		for _, s := range statuses {
			args = append(args, string(s))
		}
	}
	query += ` ORDER BY created_at, id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing tasks: %w", err)
	}
	tasks, err := r.scanTasks(rows)
	rows.Close()
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(tasks))
	for i, t := range tasks {
		ids[i] = t.ID
	}
	deps, err := r.dependencies(ctx, userID, ids)
	if err != nil {
		return nil, err
	}
	for _, t := range tasks {
		t.Dependencies = deps[t.ID]
	}
	return tasks, nil
}

// Update rewrites every column and replaces the dependency edges.
func (r *SQLiteTaskRepo) Update(ctx context.Context, t *domain.Task) error {
	tags, err := encodeTags(t.Tags)
	if err != nil {
		return fmt.Errorf("encoding task tags: %w", err)
	}
	query := `UPDATE tasks SET title = ?, description = ?, priority = ?, tags = ?,
		estimated_min = ?, can_split = ?, min_session_min = ?, deadline = ?,
		preferred_time_of_day = ?, requires_deep_focus = ?, status = ?,
		scheduled_start = ?, scheduled_end = ?, actual_start = ?, actual_end = ?,
		updated_at = ?
		WHERE user_id = ? AND id = ?`
	res, err := r.db.ExecContext(ctx, query,
		t.Title,
		t.Description,
		string(t.Priority),
		tags,
		t.EstimatedMin,
		boolToInt(t.CanSplit),
		t.MinSessionMin,
		nullableTimeToString(t.Deadline, timeLayout),
		string(timeOfDayOrNone(t.PreferredTimeOfDay)),
		boolToInt(t.RequiresDeepFocus),
		string(t.Status),
		nullableTimeToString(t.ScheduledStart, timeLayout),
		nullableTimeToString(t.ScheduledEnd, timeLayout),
		nullableTimeToString(t.ActualStart, timeLayout),
		nullableTimeToString(t.ActualEnd, timeLayout),
		timeToString(t.UpdatedAt),
		t.UserID,
		t.ID,
	)
	if err != nil {
		return fmt.Errorf("updating task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("task %s: %w", t.ID, ErrNotFound)
	}

	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM task_dependencies WHERE user_id = ? AND task_id = ?`, t.UserID, t.ID); err != nil {
		return fmt.Errorf("clearing task dependencies: %w", err)
	}
	return r.insertDependencies(ctx, t)
}

func (r *SQLiteTaskRepo) Delete(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE user_id = ? AND id = ?`, userID, id)
	if err != nil {
		return fmt.Errorf("deleting task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	return nil
}

func (r *SQLiteTaskRepo) CompareAndSetStatus(ctx context.Context, userID, taskID string, from, to domain.TaskStatus, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE tasks SET status = ?, updated_at = ? WHERE user_id = ? AND id = ? AND status = ?`,
		string(to), timeToString(at), userID, taskID, string(from))
	if err != nil {
		return false, fmt.Errorf("setting task status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("setting task status: %w", err)
	}
	return n == 1, nil
}

func (r *SQLiteTaskRepo) ListDependents(ctx context.Context, userID, id string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT task_id FROM task_dependencies WHERE user_id = ? AND depends_on = ? ORDER BY task_id`, userID, id)
	if err != nil {
		return nil, fmt.Errorf("listing dependents: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var dep string
		if err := rows.Scan(&dep); err != nil {
			return nil, fmt.Errorf("scanning dependent: %w", err)
		}
		ids = append(ids, dep)
	}
	return ids, rows.Err()
}

func (r *SQLiteTaskRepo) insertDependencies(ctx context.Context, t *domain.Task) error {
	for _, dep := range t.Dependencies {
		_, err := r.db.ExecContext(ctx,
			`INSERT INTO task_dependencies (user_id, task_id, depends_on) VALUES (?, ?, ?)`,
			t.UserID, t.ID, dep)
		if err != nil {
			return fmt.Errorf("inserting dependency %s -> %s: %w", t.ID, dep, err)
		}
	}
	return nil
}

// dependencies loads edges for the given tasks keyed by task id, in
// insertion order.
func (r *SQLiteTaskRepo) dependencies(ctx context.Context, userID string, ids []string) (map[string][]string, error) {
	out := make(map[string][]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	args := []any{userID}
	for _, id := range ids {
		args = append(args, id)
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT task_id, depends_on FROM task_dependencies
		WHERE user_id = ? AND task_id IN (`+placeholders(len(ids))+`)
		ORDER BY rowid`, args...)
	if err != nil {
		return nil, fmt.Errorf("loading dependencies: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var taskID, dep string
		if err := rows.Scan(&taskID, &dep); err != nil {
			return nil, fmt.Errorf("scanning dependency: %w", err)
		}
		out[taskID] = append(out[taskID], dep)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func (r *SQLiteTaskRepo) scanTask(row *sql.Row) (*domain.Task, error) {
	t, err := scanTaskRow(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("task: %w", ErrNotFound)
	}
	return t, err
}

func (r *SQLiteTaskRepo) scanTasks(rows *sql.Rows) ([]*domain.Task, error) {
	var tasks []*domain.Task
	for rows.Next() {
		t, err := scanTaskRow(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tasks: %w", err)
	}
	return tasks, nil
}

func scanTaskRow(s scanner) (*domain.Task, error) {
	var (
		t                                                domain.Task
		priority, tod, status, createdAt, updatedAt      string
		tags                                             []byte
		canSplit, deepFocus                              int
		deadline, schedStart, schedEnd, actStart, actEnd sql.NullString
	)
	err := s.Scan(
		&t.ID, &t.UserID, &t.Title, &t.Description, &priority, &tags,
		&t.EstimatedMin, &canSplit, &t.MinSessionMin, &deadline, &tod,
		&deepFocus, &status, &schedStart, &schedEnd,
		&actStart, &actEnd, &createdAt, &updatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scanning task: %w", err)
	}

	t.Priority = domain.Priority(priority)
	t.PreferredTimeOfDay = domain.TimeOfDay(tod)
	t.Status = domain.TaskStatus(status)
	t.CanSplit = intToBool(canSplit)
	t.RequiresDeepFocus = intToBool(deepFocus)
	t.Deadline = parseNullableTime(deadline, timeLayout)
	t.ScheduledStart = parseNullableTime(schedStart, timeLayout)
	t.ScheduledEnd = parseNullableTime(schedEnd, timeLayout)
	t.ActualStart = parseNullableTime(actStart, timeLayout)
	t.ActualEnd = parseNullableTime(actEnd, timeLayout)
	if t.Tags, err = decodeTags(tags); err != nil {
		return nil, fmt.Errorf("decoding tags of task %s: %w", t.ID, err)
	}
	if t.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at of task %s: %w", t.ID, err)
	}
	if t.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at of task %s: %w", t.ID, err)
	}
	return &t, nil
}

func timeOfDayOrNone(t domain.TimeOfDay) domain.TimeOfDay {
	if t == "" {
		return domain.TimeOfDayNone
	}
	return t
}
