package testutil

import (
	"context"
	"database/sql"
	"strings"

	"github.com/alexanderramin/cadence/internal/db"
)

// FailingUoW runs transactions on DB but fails the first statement whose SQL
// contains Match, returning Err from it. Use it to check that a multi-write
// operation leaves nothing behind when a late write fails.
type FailingUoW struct {
	DB    *sql.DB
	Match string
	Err   error

	// Hits counts statements that were failed.
	Hits int
}

var _ db.UnitOfWork = (*FailingUoW)(nil)

func (u *FailingUoW) WithinTx(ctx context.Context, fn func(ctx context.Context, tx db.DBTX) error) error {
	return db.NewSQLiteUnitOfWork(u.DB, db.WithBusyRetries(0, 0)).WithinTx(ctx,
		func(ctx context.Context, tx db.DBTX) error {
			return fn(ctx, &failingTx{DBTX: tx, uow: u})
		})
}

type failingTx struct {
	db.DBTX
	uow *FailingUoW
}

func (f *failingTx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if strings.Contains(query, f.uow.Match) {
		f.uow.Hits++
		return nil, f.uow.Err
	}
	return f.DBTX.ExecContext(ctx, query, args...)
}
