package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/cockroachdb/errors"
)

// queryer is satisfied by both *sql.DB and *sql.Tx so read helpers can
// run inside or outside a transaction.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Transactor begins transactions spanning multiple repositories.
type Transactor struct {
	db *sql.DB
}

func NewTransactor(db *sql.DB) *Transactor { return &Transactor{db: db} }

// WithTx runs fn inside a transaction.  The transaction is committed
// when fn returns nil and rolled back otherwise.  A deadlock or lock
// wait timeout reported by the server is marked as ErrConflict.
func (t *Transactor) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(tx); err != nil {
		return markAborted(err)
	}
	if err := tx.Commit(); err != nil {
		return markAborted(errors.Wrap(err, "commit tx"))
	}
	committed = true
	return nil
}

func markAborted(err error) error {
	if isLockAborted(err) {
		return errors.Mark(errors.Wrap(err, "transaction aborted by a concurrent update"), ErrConflict)
	}
	return err
}

// inClause returns "?,?,?" for ids and the matching args.
func inClause(ids []uint64) (string, []any) {
	ph := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		ph[i] = "?"
		args[i] = id
	}
	return strings.Join(ph, ","), args
}

// deleteByID deletes one row of table.  No matching row yields notFound
// and a foreign key still pointing at the row yields ErrInUse.
func deleteByID(ctx context.Context, db queryer, table string, id uint64, notFound error) error {
	res, err := db.ExecContext(ctx, "DELETE FROM "+table+" WHERE id = ?", id)
	if err != nil {
		if isReferenced(err) {
			return errors.Wrapf(ErrInUse, "%s %d", table, id)
		}
		return errors.Wrapf(err, "delete from %s", table)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "rows affected")
	}
	if n == 0 {
		return notFound
	}
	return nil
}
