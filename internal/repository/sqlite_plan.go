package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/alexanderramin/cadence/internal/codec"
	"github.com/alexanderramin/cadence/internal/db"
	"github.com/alexanderramin/cadence/internal/domain"
)

// SQLitePlanRepo implements PlanRepo. The plan body is a CBOR payload; the
// status column is authoritative over the payload's copy.
type SQLitePlanRepo struct {
	db db.DBTX
}

// NewSQLitePlanRepo creates a new SQLitePlanRepo.
func NewSQLitePlanRepo(conn db.DBTX) *SQLitePlanRepo {
	return &SQLitePlanRepo{db: conn}
}

func (r *SQLitePlanRepo) Create(ctx context.Context, p *domain.Plan) error {
	payload, err := codec.Marshal(p)
	if err != nil {
		return fmt.Errorf("encoding plan: %w", err)
	}
	var refinedFrom any
	if p.RefinedFrom != "" {
		refinedFrom = p.RefinedFrom
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO plans (id, user_id, status, horizon_start, horizon_end, payload, created_at, updated_at, refined_from)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.UserID, string(p.Status),
		timeToString(p.HorizonStart), timeToString(p.HorizonEnd),
		payload, timeToString(p.CreatedAt), timeToString(p.CreatedAt), refinedFrom,
	)
	if err != nil {
		return fmt.Errorf("inserting plan: %w", err)
	}
	for _, taskID := range p.TaskIDs() {
		if _, err := r.db.ExecContext(ctx,
			`INSERT INTO plan_tasks (plan_id, task_id) VALUES (?, ?)`, p.ID, taskID); err != nil {
			return fmt.Errorf("inserting plan task: %w", err)
		}
	}
	return nil
}

func (r *SQLitePlanRepo) Get(ctx context.Context, userID, id string) (*domain.Plan, error) {
	var status string
	var payload []byte
	err := r.db.QueryRowContext(ctx,
		`SELECT status, payload FROM plans WHERE user_id = ? AND id = ?`, userID, id).Scan(&status, &payload)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("plan %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("scanning plan: %w", err)
	}
	return decodePlan(status, payload)
}

func (r *SQLitePlanRepo) ListRecent(ctx context.Context, userID string, limit int) ([]*domain.Plan, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT status, payload FROM plans WHERE user_id = ? ORDER BY created_at DESC, id LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing plans: %w", err)
	}
	defer rows.Close()

	var plans []*domain.Plan
	for rows.Next() {
		var status string
		var payload []byte
		if err := rows.Scan(&status, &payload); err != nil {
			return nil, fmt.Errorf("scanning plan: %w", err)
		}
		p, err := decodePlan(status, payload)
		if err != nil {
			return nil, err
		}
		plans = append(plans, p)
	}
	return plans, rows.Err()
}

func (r *SQLitePlanRepo) UpdateStatus(ctx context.Context, userID, id string, status domain.PlanStatus) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE plans SET status = ?, updated_at = ? WHERE user_id = ? AND id = ?`,
		string(status), nowUTC(), userID, id)
	if err != nil {
		return fmt.Errorf("updating plan status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("plan %s: %w", id, ErrNotFound)
	}
	return nil
}

func (r *SQLitePlanRepo) SupersedeDrafts(ctx context.Context, userID, exceptID string, taskIDs []string) (int64, error) {
	if len(taskIDs) == 0 {
		return 0, nil
	}
	args := []any{string(domain.PlanSuperseded), nowUTC(), userID, exceptID}
	for _, id := range taskIDs {
		args = append(args, id)
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE plans SET status = ?, updated_at = ?
		WHERE user_id = ? AND status = 'draft' AND id != ?
		  AND id IN (SELECT plan_id FROM plan_tasks WHERE task_id IN (`+placeholders(len(taskIDs))+`))`,
		args...)
	if err != nil {
		return 0, fmt.Errorf("superseding drafts: %w", err)
	}
	return res.RowsAffected()
}

func decodePlan(status string, payload []byte) (*domain.Plan, error) {
	var p domain.Plan
	if err := codec.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("decoding plan: %w", err)
	}
	p.Status = domain.PlanStatus(status)
	return &p, nil
}
