package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// UnitOfWork runs a callback inside one transaction. Everything written
// through the DBTX handed to fn commits together or not at all.
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx DBTX) error) error
}

const (
	defaultBusyRetries = 3
	defaultBusyBackoff = 20 * time.Millisecond
)

// SQLiteUnitOfWork is the database/sql UnitOfWork. A transaction that fails
// because another writer holds the database lock is rolled back and run
// again from the start, up to the configured number of retries.
type SQLiteUnitOfWork struct {
	db          *sql.DB
	busyRetries int
	busyBackoff time.Duration
}

type UoWOption func(*SQLiteUnitOfWork)

// WithBusyRetries sets how many extra attempts a locked transaction gets and
// the pause before the first one. The pause doubles on each attempt.
func WithBusyRetries(n int, backoff time.Duration) UoWOption {
	return func(u *SQLiteUnitOfWork) {
		u.busyRetries = max(n, 0)
		u.busyBackoff = backoff
	}
}

func NewSQLiteUnitOfWork(db *sql.DB, opts ...UoWOption) *SQLiteUnitOfWork {
	u := &SQLiteUnitOfWork{db: db, busyRetries: defaultBusyRetries, busyBackoff: defaultBusyBackoff}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

func (u *SQLiteUnitOfWork) WithinTx(ctx context.Context, fn func(ctx context.Context, tx DBTX) error) error {
	wait := u.busyBackoff
	for attempt := 0; ; attempt++ {
		err := u.runOnce(ctx, fn)
		if err == nil || !IsBusy(err) || attempt >= u.busyRetries {
			return err
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for database lock: %w", ctx.Err())
		case <-time.After(wait):
		}
		wait *= 2
	}
}

func (u *SQLiteUnitOfWork) runOnce(ctx context.Context, fn func(ctx context.Context, tx DBTX) error) (err error) {
	tx, err := u.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			err = fmt.Errorf("rolling back: %v (after: %w)", rbErr, err)
		}
	}()

	if err = fn(ctx, tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	committed = true
	return nil
}

// IsBusy reports whether err comes from SQLite refusing a lock, including
// the extended busy codes such as a stale WAL snapshot.
func IsBusy(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	code := se.Code() & 0xff
	return code == sqlite3.SQLITE_BUSY || code == sqlite3.SQLITE_LOCKED
}
