package repository // repository defines data access for seats

import (
	"context"
	"database/sql"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/iliyamo/movie-ticket-booking/internal/model"
)

// SeatRepo provides methods to work with physical seats.
type SeatRepo struct {
	db *sql.DB
}

// NewSeatRepo constructs a SeatRepo with the given DB handle.
func NewSeatRepo(db *sql.DB) *SeatRepo {
	return &SeatRepo{db: db}
}

// CreateBulkTx inserts multiple seats in a single statement.  A repeated
// (screen, row, seat) triple yields ErrDuplicateEntry and nothing is
// inserted.  Ids are not filled in; list the screen again to read them.
func (r *SeatRepo) CreateBulkTx(ctx context.Context, tx *sql.Tx, seats []model.Seat) error {
	if len(seats) == 0 {
		return nil
	}
	var b strings.Builder
	b.WriteString("INSERT INTO seats (screen_id, row_label, seat_label, tier) VALUES ")
	args := make([]any, 0, len(seats)*4)
	for i, s := range seats {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString("(?, ?, ?, ?)")
		args = append(args, s.ScreenID, s.RowLabel, s.SeatLabel, string(s.Tier))
	}
	if _, err := tx.ExecContext(ctx, b.String(), args...); err != nil {
		if isDuplicate(err) {
			return ErrDuplicateEntry
		}
		return errors.Wrap(err, "insert seats")
	}
	return nil
}

// ListByScreen retrieves all seats of a screen ordered by row then seat.
func (r *SeatRepo) ListByScreen(ctx context.Context, screenID uint64) ([]model.Seat, error) {
	return r.list(ctx, r.db, screenID)
}

// ListByScreenTx is ListByScreen inside a transaction, so seats inserted
// by the same transaction are included.
func (r *SeatRepo) ListByScreenTx(ctx context.Context, tx *sql.Tx, screenID uint64) ([]model.Seat, error) {
	return r.list(ctx, tx, screenID)
}

func (r *SeatRepo) list(ctx context.Context, q queryer, screenID uint64) ([]model.Seat, error) {
	const query = `SELECT id, screen_id, row_label, seat_label, tier, created_at
	               FROM seats
	               WHERE screen_id = ?
	               ORDER BY row_label, seat_label, id`
	rows, err := q.QueryContext(ctx, query, screenID)
	if err != nil {
		return nil, errors.Wrap(err, "list seats")
	}
	defer rows.Close()
	var out []model.Seat
	for rows.Next() {
		var (
			s    model.Seat
			tier string
		)
		if err := rows.Scan(&s.ID, &s.ScreenID, &s.RowLabel, &s.SeatLabel, &tier, &s.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan seat")
		}
		s.Tier = model.SeatTier(tier)
		out = append(out, s)
	}
	return out, rows.Err()
}
