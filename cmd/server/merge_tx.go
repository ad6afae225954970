package main

import (
	"context"
	"database/sql"
	"time"

	dErrors "rollcall/pkg/domain-errors"
	txcontext "rollcall/pkg/platform/tx"
)

const defaultMergeTxTimeout = 5 * time.Second

// mergePostgresTx wraps merge operations in a database transaction. The
// contact store picks the transaction up from the context, so the whole
// repoint-then-delete sequence commits or rolls back as one unit.
type mergePostgresTx struct {
	db      *sql.DB
	timeout time.Duration
}

func newMergePostgresTx(db *sql.DB) *mergePostgresTx {
	return &mergePostgresTx{db: db}
}

func (t *mergePostgresTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultMergeTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(txcontext.WithTx(ctx, tx)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	return nil
}
