package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/iliyamo/movie-ticket-booking/internal/model"
)

// BookingRepo provides persistence for bookings and their seats.
type BookingRepo struct {
	db *sql.DB
}

func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

const bookingColumns = `b.id, b.user_id, b.show_id, b.status, b.total_amount_cents, b.transaction_id, b.booked_at, b.updated_at`

// CreateTx inserts a booking header and its booking_seats rows within
// the provided transaction.  On success the ID field is populated.
func (r *BookingRepo) CreateTx(ctx context.Context, tx *sql.Tx, b *model.Booking) error {
	const q = `INSERT INTO bookings (user_id, show_id, status, total_amount_cents, booked_at) VALUES (?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q, b.UserID, b.ShowID, string(b.Status), b.TotalAmountCents, b.BookedAt)
	if err != nil {
		return errors.Wrap(err, "insert booking")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return errors.Wrap(err, "booking id")
	}
	b.ID = uint64(id)
	if len(b.Seats) == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString(`INSERT INTO booking_seats (booking_id, show_seat_id, price_cents) VALUES `)
	args := make([]any, 0, len(b.Seats)*3)
	for i := range b.Seats {
		b.Seats[i].BookingID = b.ID
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString("(?, ?, ?)")
		args = append(args, b.ID, b.Seats[i].ShowSeatID, b.Seats[i].PriceCents)
	}
	if _, err := tx.ExecContext(ctx, sb.String(), args...); err != nil {
		if isDuplicate(err) {
			return ErrDuplicateEntry
		}
		return errors.Wrap(err, "insert booking seats")
	}
	return nil
}

// GetTx loads a booking with its seats inside tx without locking it.
// The seat set of a booking never changes, so callers use it to learn
// which show seats to lock before taking the booking row.
func (r *BookingRepo) GetTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Booking, error) {
	return r.getTx(ctx, tx, id, "")
}

// GetForUpdateTx loads a booking with its seats and locks the booking
// row until the transaction ends.
func (r *BookingRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Booking, error) {
	return r.getTx(ctx, tx, id, " FOR UPDATE")
}

func (r *BookingRepo) getTx(ctx context.Context, tx *sql.Tx, id uint64, lock string) (*model.Booking, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings b WHERE b.id = ?`+lock, id)
	b, err := scanBooking(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "get booking")
	}
	if err := r.attachSeats(ctx, tx, []*model.Booking{b}); err != nil {
		return nil, err
	}
	return b, nil
}

// GetScoped returns a booking only when it is visible within scope;
// bookings outside the scope are reported as ErrBookingNotFound.
func (r *BookingRepo) GetScoped(ctx context.Context, id uint64, scope Scope) (*model.Booking, error) {
	where, args := scope.bookingFilter()
	q := `SELECT ` + bookingColumns + bookingJoins + ` WHERE b.id = ? AND ` + where
	row := r.db.QueryRowContext(ctx, q, append([]any{id}, args...)...)
	b, err := scanBooking(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "get booking")
	}
	if err := r.attachSeats(ctx, r.db, []*model.Booking{b}); err != nil {
		return nil, err
	}
	return b, nil
}

// ListScoped returns the most recent bookings visible within scope.
// A non-positive limit returns all of them.
func (r *BookingRepo) ListScoped(ctx context.Context, scope Scope, limit int) ([]model.Booking, error) {
	where, args := scope.bookingFilter()
	q := `SELECT ` + bookingColumns + bookingJoins + ` WHERE ` + where + ` ORDER BY b.booked_at DESC, b.id DESC`
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list bookings")
	}
	var list []*model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			rows.Close()
			return nil, errors.Wrap(err, "scan booking")
		}
		list = append(list, b)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, errors.Wrap(err, "list bookings")
	}
	rows.Close()

	if err := r.attachSeats(ctx, r.db, list); err != nil {
		return nil, err
	}
	out := make([]model.Booking, 0, len(list))
	for _, b := range list {
		out = append(out, *b)
	}
	return out, nil
}

// UpdateStatusTx moves a booking from one status to another.  A
// transaction id, when given, is stored alongside.  ErrConflict is
// returned when the booking is no longer in from.
func (r *BookingRepo) UpdateStatusTx(ctx context.Context, tx *sql.Tx, id uint64, from, to model.BookingStatus, transactionID *string) error {
	q := `UPDATE bookings SET status = ?`
	args := []any{string(to)}
	if transactionID != nil {
		q += `, transaction_id = ?`
		args = append(args, *transactionID)
	}
	q += ` WHERE id = ? AND status = ?`
	args = append(args, id, string(from))

	res, err := tx.ExecContext(ctx, q, args...)
	if err != nil {
		return errors.Wrap(err, "update booking status")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "rows affected")
	}
	if n != 1 {
		return ErrConflict
	}
	return nil
}

// attachSeats loads booking_seats for all given bookings in one query.
func (r *BookingRepo) attachSeats(ctx context.Context, q queryer, list []*model.Booking) error {
	if len(list) == 0 {
		return nil
	}
	ids := make([]uint64, len(list))
	byID := make(map[uint64]*model.Booking, len(list))
	for i, b := range list {
		ids[i] = b.ID
		byID[b.ID] = b
	}
	in, args := inClause(ids)
	rows, err := q.QueryContext(ctx,
		`SELECT booking_id, show_seat_id, price_cents FROM booking_seats WHERE booking_id IN (`+in+`) ORDER BY booking_id, show_seat_id`,
		args...)
	if err != nil {
		return errors.Wrap(err, "load booking seats")
	}
	defer rows.Close()
	for rows.Next() {
		var s model.BookingSeat
		if err := rows.Scan(&s.BookingID, &s.ShowSeatID, &s.PriceCents); err != nil {
			return errors.Wrap(err, "scan booking seat")
		}
		if b := byID[s.BookingID]; b != nil {
			b.Seats = append(b.Seats, s)
		}
	}
	return rows.Err()
}

func scanBooking(s scanner) (*model.Booking, error) {
	var (
		b      model.Booking
		status string
		txn    sql.NullString
	)
	if err := s.Scan(&b.ID, &b.UserID, &b.ShowID, &status, &b.TotalAmountCents, &txn, &b.BookedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	b.Status = model.BookingStatus(status)
	if txn.Valid {
		v := txn.String
		b.TransactionID = &v
	}
	return &b, nil
}
