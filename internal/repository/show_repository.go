// Package repository contains data access logic for Show domain operations.
// A Show represents a scheduled screening of a movie on a screen.
package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/iliyamo/movie-ticket-booking/internal/model"
)

// ShowRepo manages persistence for shows.
type ShowRepo struct {
	db *sql.DB
}

// NewShowRepo constructs a ShowRepo.
func NewShowRepo(db *sql.DB) *ShowRepo {
	return &ShowRepo{db: db}
}

// ShowFilter narrows List.  Zero fields are ignored.
type ShowFilter struct {
	MovieID   uint64
	TheatreID uint64
	Date      *time.Time
}

const showColumns = `s.id, s.movie_id, s.screen_id, s.show_date, s.show_time, s.base_price_cents, s.created_at`

// CreateTx inserts a new show using the provided transaction.  The
// caller must commit or roll back the transaction.  A second show on
// the same screen, date and time yields ErrDuplicateEntry.
func (r *ShowRepo) CreateTx(ctx context.Context, tx *sql.Tx, s *model.Show) error {
	const q = `INSERT INTO shows (movie_id, screen_id, show_date, show_time, base_price_cents) VALUES (?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q, s.MovieID, s.ScreenID, s.ShowDate.Format("2006-01-02"), s.ShowTime, s.BasePriceCents)
	if err != nil {
		if isDuplicate(err) {
			return ErrDuplicateEntry
		}
		return errors.Wrap(err, "insert show")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return errors.Wrap(err, "show id")
	}
	s.ID = uint64(id)
	return nil
}

// GetByID returns a show or ErrShowNotFound.
func (r *ShowRepo) GetByID(ctx context.Context, id uint64) (*model.Show, error) {
	return r.get(ctx, r.db, id)
}

// GetByIDTx is GetByID inside a transaction.
func (r *ShowRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Show, error) {
	return r.get(ctx, tx, id)
}

func (r *ShowRepo) get(ctx context.Context, q queryer, id uint64) (*model.Show, error) {
	var s model.Show
	err := q.QueryRowContext(ctx, `SELECT `+showColumns+` FROM shows s WHERE s.id = ?`, id).
		Scan(&s.ID, &s.MovieID, &s.ScreenID, &s.ShowDate, &s.ShowTime, &s.BasePriceCents, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrShowNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "get show")
	}
	return &s, nil
}

// List returns shows matching f ordered by date and time.
func (r *ShowRepo) List(ctx context.Context, f ShowFilter) ([]model.Show, error) {
	var (
		where []string
		args  []any
	)
	q := `SELECT ` + showColumns + ` FROM shows s JOIN screens sc ON sc.id = s.screen_id`
	if f.MovieID != 0 {
		where = append(where, "s.movie_id = ?")
		args = append(args, f.MovieID)
	}
	if f.TheatreID != 0 {
		where = append(where, "sc.theatre_id = ?")
		args = append(args, f.TheatreID)
	}
	if f.Date != nil {
		where = append(where, "s.show_date = ?")
		args = append(args, f.Date.Format("2006-01-02"))
	}
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY s.show_date, s.show_time, s.id"

	return r.list(ctx, r.db, q, args...)
}

// ListByScreenTx returns every show scheduled on a screen.  Callers
// hold the screen row lock so no show is added concurrently.
func (r *ShowRepo) ListByScreenTx(ctx context.Context, tx *sql.Tx, screenID uint64) ([]model.Show, error) {
	return r.list(ctx, tx, `SELECT `+showColumns+` FROM shows s WHERE s.screen_id = ? ORDER BY s.id`, screenID)
}

func (r *ShowRepo) list(ctx context.Context, db queryer, q string, args ...any) ([]model.Show, error) {
	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list shows")
	}
	defer rows.Close()
	var out []model.Show
	for rows.Next() {
		var s model.Show
		if err := rows.Scan(&s.ID, &s.MovieID, &s.ScreenID, &s.ShowDate, &s.ShowTime, &s.BasePriceCents, &s.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan show")
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
