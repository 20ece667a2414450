package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/alexanderramin/cadence/internal/db"
	"github.com/alexanderramin/cadence/internal/domain"
)

type SQLiteMonitorFlagRepo struct {
	db db.DBTX
}

func NewSQLiteMonitorFlagRepo(conn db.DBTX) *SQLiteMonitorFlagRepo {
	return &SQLiteMonitorFlagRepo{db: conn}
}

func (r *SQLiteMonitorFlagRepo) LoadSeenFlags(ctx context.Context, userID string) ([]domain.SeenFlag, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT task_id, kind, ref_at FROM monitor_flags WHERE user_id = ? ORDER BY task_id, kind, ref_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("loading monitor flags: %w", err)
	}
	defer rows.Close()

	var out []domain.SeenFlag
	for rows.Next() {
		var (
			f   domain.SeenFlag
			ref string
		)
		if err := rows.Scan(&f.TaskID, &f.Kind, &ref); err != nil {
			return nil, fmt.Errorf("scanning monitor flag: %w", err)
		}
		if f.Ref, err = parseTime(ref); err != nil {
			return nil, fmt.Errorf("parsing monitor flag ref_at: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// ReplaceSeenFlags swaps the user's whole flag set in one statement pair.
// Run it inside a unit of work when the two must not be observed apart.
func (r *SQLiteMonitorFlagRepo) ReplaceSeenFlags(ctx context.Context, userID string, flags []domain.SeenFlag) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM monitor_flags WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("clearing monitor flags: %w", err)
	}
	if len(flags) == 0 {
		return nil
	}
	values := make([]string, len(flags))
	args := make([]any, 0, 4*len(flags))
	for i, f := range flags {
		values[i] = "(?, ?, ?, ?)"
		args = append(args, userID, f.TaskID, f.Kind, timeToString(f.Ref))
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO monitor_flags (user_id, task_id, kind, ref_at) VALUES `+strings.Join(values, ", "),
		args...)
	if err != nil {
		return fmt.Errorf("inserting monitor flags: %w", err)
	}
	return nil
}
