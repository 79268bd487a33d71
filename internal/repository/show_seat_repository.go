package repository // repository for show seat persistence

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/iliyamo/movie-ticket-booking/internal/model"
)

// ShowSeatRepo encapsulates database operations for show_seats, the
// per-show seat ledger.
type ShowSeatRepo struct {
	db *sql.DB
}

// NewShowSeatRepo constructs a ShowSeatRepo given a DB handle.
func NewShowSeatRepo(db *sql.DB) *ShowSeatRepo {
	return &ShowSeatRepo{db: db}
}

// Transition describes a conditional status change of a batch of show
// seats.  Only rows currently in From (and, when Holder is set and From
// is LOCKED, held by Holder) are updated.  Moving to LOCKED records
// Holder and LockedUntil; any other target clears the lock columns.
type Transition struct {
	ShowID      uint64
	IDs         []uint64
	From        model.ShowSeatStatus
	To          model.ShowSeatStatus
	Holder      *uint64
	LockedUntil *time.Time
}

const showSeatColumns = `ss.id, ss.show_id, ss.seat_id, ss.status, ss.price_cents, ss.locked_by, ss.locked_until, ss.version`

// InsertBulkTx inserts the ledger rows of a show in one statement.
// An existing (show, seat) pair yields ErrDuplicateEntry.
func (r *ShowSeatRepo) InsertBulkTx(ctx context.Context, tx *sql.Tx, seats []model.ShowSeat) error {
	if len(seats) == 0 {
		return nil
	}
	var b strings.Builder
	b.WriteString(`INSERT INTO show_seats (show_id, seat_id, status, price_cents, version) VALUES `)
	args := make([]any, 0, len(seats)*5)
	for i, ss := range seats {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString("(?, ?, ?, ?, ?)")
		args = append(args, ss.ShowID, ss.SeatID, string(ss.Status), ss.PriceCents, ss.Version)
	}
	if _, err := tx.ExecContext(ctx, b.String(), args...); err != nil {
		if isDuplicate(err) {
			return ErrDuplicateEntry
		}
		return errors.Wrap(err, "insert show seats")
	}
	return nil
}

// GetByIDsForUpdateTx reads the requested rows of one show and locks
// them until the transaction ends.  Ids that do not belong to the show
// are simply absent from the result.
func (r *ShowSeatRepo) GetByIDsForUpdateTx(ctx context.Context, tx *sql.Tx, showID uint64, ids []uint64) ([]model.ShowSeat, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	in, idArgs := inClause(ids)
	q := `SELECT ` + showSeatColumns + ` FROM show_seats ss WHERE ss.show_id = ? AND ss.id IN (` + in + `) ORDER BY ss.id FOR UPDATE`
	args := append([]any{showID}, idArgs...)
	return r.query(ctx, tx, q, args...)
}

// TransitionTx applies t and returns the number of rows changed.  The
// caller compares it with len(t.IDs) to decide whether the batch was
// applied completely.
func (r *ShowSeatRepo) TransitionTx(ctx context.Context, tx *sql.Tx, t Transition) (int64, error) {
	if len(t.IDs) == 0 {
		return 0, nil
	}
	in, idArgs := inClause(t.IDs)
	var (
		q    string
		args []any
	)
	if t.To == model.ShowSeatLocked {
		q = `UPDATE show_seats SET status = ?, locked_by = ?, locked_until = ?, version = version + 1`
		args = []any{string(t.To), t.Holder, t.LockedUntil}
	} else {
		q = `UPDATE show_seats SET status = ?, locked_by = NULL, locked_until = NULL, version = version + 1`
		args = []any{string(t.To)}
	}
	q += ` WHERE show_id = ? AND status = ?`
	args = append(args, t.ShowID, string(t.From))
	if t.From == model.ShowSeatLocked && t.Holder != nil {
		q += ` AND locked_by = ?`
		args = append(args, *t.Holder)
	}
	q += ` AND id IN (` + in + `)`
	args = append(args, idArgs...)

	res, err := tx.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, errors.Wrapf(err, "transition show seats %s -> %s", t.From, t.To)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "rows affected")
	}
	return n, nil
}

// ExpiredLocksTx returns up to limit LOCKED rows whose lock lapsed at
// now, locking them for the rest of the transaction.
func (r *ShowSeatRepo) ExpiredLocksTx(ctx context.Context, tx *sql.Tx, now time.Time, limit int) ([]model.ShowSeat, error) {
	q := `SELECT ` + showSeatColumns + ` FROM show_seats ss
	      WHERE ss.status = ? AND ss.locked_until <= ?
	      ORDER BY ss.locked_until, ss.id LIMIT ? FOR UPDATE`
	return r.query(ctx, tx, q, string(model.ShowSeatLocked), now, limit)
}

// TierPricesTx returns the price each seat tier sells at in a show.
// Tiers without rows in the show are absent from the map.
func (r *ShowSeatRepo) TierPricesTx(ctx context.Context, tx *sql.Tx, showID uint64) (map[model.SeatTier]uint32, error) {
	const q = `SELECT se.tier, MAX(ss.price_cents)
	           FROM show_seats ss JOIN seats se ON se.id = ss.seat_id
	           WHERE ss.show_id = ?
	           GROUP BY se.tier`
	rows, err := tx.QueryContext(ctx, q, showID)
	if err != nil {
		return nil, errors.Wrap(err, "tier prices")
	}
	defer rows.Close()
	out := map[model.SeatTier]uint32{}
	for rows.Next() {
		var (
			tier  string
			price uint32
		)
		if err := rows.Scan(&tier, &price); err != nil {
			return nil, errors.Wrap(err, "scan tier price")
		}
		out[model.SeatTier(tier)] = price
	}
	return out, rows.Err()
}

// ListByShow returns the seat map of a show joined with seat labels.
// When status is non-empty only rows in that status are returned.
func (r *ShowSeatRepo) ListByShow(ctx context.Context, showID uint64, status model.ShowSeatStatus) ([]model.ShowSeat, error) {
	q := `SELECT ` + showSeatColumns + `, se.row_label, se.seat_label, se.tier
	      FROM show_seats ss JOIN seats se ON se.id = ss.seat_id
	      WHERE ss.show_id = ?`
	args := []any{showID}
	if status != "" {
		q += ` AND ss.status = ?`
		args = append(args, string(status))
	}
	q += ` ORDER BY se.row_label, se.seat_label, ss.id`

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list show seats")
	}
	defer rows.Close()
	var out []model.ShowSeat
	for rows.Next() {
		var tier string
		ss, err := scanShowSeat(rows, &tier)
		if err != nil {
			return nil, err
		}
		ss.Tier = model.SeatTier(tier)
		out = append(out, *ss)
	}
	return out, rows.Err()
}

func (r *ShowSeatRepo) query(ctx context.Context, q queryer, query string, args ...any) ([]model.ShowSeat, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query show seats")
	}
	defer rows.Close()
	var out []model.ShowSeat
	for rows.Next() {
		ss, err := scanShowSeat(rows, nil)
		if err != nil {
			return nil, err
		}
		out = append(out, *ss)
	}
	return out, rows.Err()
}

// scanShowSeat scans showSeatColumns, followed by the seat labels when
// tier is non-nil.
func scanShowSeat(rows *sql.Rows, tier *string) (*model.ShowSeat, error) {
	var (
		ss     model.ShowSeat
		status string
		by     sql.NullInt64
		until  sql.NullTime
	)
	dest := []any{&ss.ID, &ss.ShowID, &ss.SeatID, &status, &ss.PriceCents, &by, &until, &ss.Version}
	if tier != nil {
		dest = append(dest, &ss.RowLabel, &ss.SeatLabel, tier)
	}
	if err := rows.Scan(dest...); err != nil {
		return nil, errors.Wrap(err, "scan show seat")
	}
	ss.Status = model.ShowSeatStatus(status)
	if by.Valid {
		h := uint64(by.Int64)
		ss.LockedBy = &h
	}
	if until.Valid {
		t := until.Time
		ss.LockedUntil = &t
	}
	return &ss, nil
}
