package db

import (
	"database/sql"
	"fmt"
	"strings"
)

// Migrate runs all schema migrations.
func Migrate(db *sql.DB) error {
	for i, stmt := range migrations {
		if _, err := db.Exec(stmt); err != nil {
			// Tolerate "duplicate column name" errors from ALTER TABLE
			// since the migration system re-runs all statements.
			if strings.Contains(err.Error(), "duplicate column name") {
				continue
			}
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS tasks (
		id                    TEXT PRIMARY KEY,
		user_id               TEXT NOT NULL,
		title                 TEXT NOT NULL,
		description           TEXT NOT NULL DEFAULT '',
		priority              TEXT NOT NULL DEFAULT 'medium'
		                      CHECK(priority IN ('low','medium','high','urgent')),
		tags                  BLOB,
		estimated_min         INTEGER NOT NULL CHECK(estimated_min > 0),
		can_split             INTEGER NOT NULL DEFAULT 0,
		min_session_min       INTEGER NOT NULL DEFAULT 0,
		deadline              TEXT,
		preferred_time_of_day TEXT NOT NULL DEFAULT 'none'
		                      CHECK(preferred_time_of_day IN ('none','morning','afternoon','evening')),
		requires_deep_focus   INTEGER NOT NULL DEFAULT 0,
		status                TEXT NOT NULL DEFAULT 'pending'
		                      CHECK(status IN ('pending','scheduled','in_progress','completed','overdue')),
		scheduled_start       TEXT,
		scheduled_end         TEXT,
		actual_start          TEXT,
		actual_end            TEXT,
		created_at            TEXT NOT NULL,
		updated_at            TEXT NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_tasks_user_status ON tasks(user_id, status)`,

	`CREATE TABLE IF NOT EXISTS task_dependencies (
		user_id    TEXT NOT NULL,
		task_id    TEXT NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
		depends_on TEXT NOT NULL REFERENCES tasks(id) ON DELETE RESTRICT,
		PRIMARY KEY (task_id, depends_on)
	)`,

	`CREATE INDEX IF NOT EXISTS idx_task_dependencies_depends_on ON task_dependencies(depends_on)`,

	`CREATE TABLE IF NOT EXISTS intervals (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id    TEXT NOT NULL,
		week_start TEXT NOT NULL,
		kind       TEXT NOT NULL CHECK(kind IN ('busy','occupied')),
		start_at   TEXT NOT NULL,
		end_at     TEXT NOT NULL,
		label      TEXT NOT NULL DEFAULT '',
		task_id    TEXT REFERENCES tasks(id) ON DELETE CASCADE,
		all_day    INTEGER NOT NULL DEFAULT 0,
		CHECK(end_at > start_at),
		CHECK(kind = 'busy' OR task_id IS NOT NULL)
	)`,

	`CREATE INDEX IF NOT EXISTS idx_intervals_user_week ON intervals(user_id, week_start, kind)`,
	`CREATE INDEX IF NOT EXISTS idx_intervals_task ON intervals(task_id)`,

	`CREATE TABLE IF NOT EXISTS user_profiles (
		user_id                TEXT PRIMARY KEY,
		timezone               TEXT NOT NULL DEFAULT 'UTC',
		work_start_min         INTEGER NOT NULL DEFAULT 540,
		work_end_min           INTEGER NOT NULL DEFAULT 1020,
		allow_weekends         INTEGER NOT NULL DEFAULT 0,
		max_daily_work_min     INTEGER NOT NULL DEFAULT 480,
		min_buffer_min         INTEGER NOT NULL DEFAULT 15,
		learned                BLOB,
		average_focus_span_min REAL NOT NULL DEFAULT 90,
		adherence_rate         REAL NOT NULL DEFAULT 1.0,
		duration_bias          REAL NOT NULL DEFAULT 1.0,
		learning_cycle         TEXT NOT NULL DEFAULT '',
		tasks_tracked          INTEGER NOT NULL DEFAULT 0,
		on_time_count          INTEGER NOT NULL DEFAULT 0,
		early_count            INTEGER NOT NULL DEFAULT 0,
		late_count             INTEGER NOT NULL DEFAULT 0,
		avg_delay_min          REAL NOT NULL DEFAULT 0,
		estimation_error_sum   REAL NOT NULL DEFAULT 0,
		reviews_processed      INTEGER NOT NULL DEFAULT 0,
		version                INTEGER NOT NULL DEFAULT 1,
		updated_at             TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS plans (
		id            TEXT PRIMARY KEY,
		user_id       TEXT NOT NULL,
		status        TEXT NOT NULL DEFAULT 'draft'
		              CHECK(status IN ('draft','executed','superseded')),
		horizon_start TEXT NOT NULL,
		horizon_end   TEXT NOT NULL,
		payload       BLOB NOT NULL,
		created_at    TEXT NOT NULL,
		updated_at    TEXT NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_plans_user_status ON plans(user_id, status)`,

	`CREATE TABLE IF NOT EXISTS plan_tasks (
		plan_id TEXT NOT NULL REFERENCES plans(id) ON DELETE CASCADE,
		task_id TEXT NOT NULL,
		PRIMARY KEY (plan_id, task_id)
	)`,

	`CREATE INDEX IF NOT EXISTS idx_plan_tasks_task ON plan_tasks(task_id)`,

	`CREATE TABLE IF NOT EXISTS completion_records (
		id              TEXT PRIMARY KEY,
		user_id         TEXT NOT NULL,
		task_id         TEXT NOT NULL,
		title           TEXT NOT NULL,
		estimated_min   INTEGER NOT NULL,
		actual_min      INTEGER NOT NULL,
		scheduled_start TEXT,
		scheduled_end   TEXT,
		actual_start    TEXT NOT NULL,
		actual_end      TEXT NOT NULL,
		outcome         TEXT NOT NULL CHECK(outcome IN ('on_time','early','late')),
		delay_min       INTEGER NOT NULL DEFAULT 0,
		deep_focus      INTEGER NOT NULL DEFAULT 0,
		tags            BLOB,
		created_at      TEXT NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_completion_records_user ON completion_records(user_id, created_at)`,

	// Counters and lineage added after the first release.
	`ALTER TABLE user_profiles ADD COLUMN plans_generated INTEGER NOT NULL DEFAULT 0`,
	`ALTER TABLE plans ADD COLUMN refined_from TEXT`,
	`ALTER TABLE user_profiles ADD COLUMN break_start_min INTEGER NOT NULL DEFAULT 720`,
	`ALTER TABLE user_profiles ADD COLUMN break_min INTEGER NOT NULL DEFAULT 0`,

	`CREATE TABLE IF NOT EXISTS monitor_flags (
		user_id TEXT NOT NULL,
		task_id TEXT NOT NULL,
		kind    TEXT NOT NULL,
		ref_at  TEXT NOT NULL,
		PRIMARY KEY (user_id, task_id, kind, ref_at)
	)`,
}
