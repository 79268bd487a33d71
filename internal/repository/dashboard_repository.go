package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/iliyamo/movie-ticket-booking/internal/model"
)

// DashboardRepo runs the aggregate queries behind the dashboards.
// Every query is filtered by a Scope.
type DashboardRepo struct {
	db *sql.DB
}

func NewDashboardRepo(db *sql.DB) *DashboardRepo { return &DashboardRepo{db: db} }

// BookingWindow narrows a booking aggregate.  Empty fields are ignored;
// To is exclusive.
type BookingWindow struct {
	Status model.BookingStatus
	From   *time.Time
	To     *time.Time
}

// BookingAggregate is a count and amount over a set of bookings.
type BookingAggregate struct {
	Count       int64
	AmountCents uint64
}

// TheatreRevenue is a theatre with its booking totals.
type TheatreRevenue struct {
	Theatre       model.Theatre
	TotalBookings int64
	RevenueCents  uint64
}

// MovieBookings is a movie with the number of bookings made for it.
type MovieBookings struct {
	MovieID      uint64
	Title        string
	BookingCount int64
}

// CountTheatres counts theatres visible within scope.
func (r *DashboardRepo) CountTheatres(ctx context.Context, scope Scope) (int64, error) {
	if !scope.SeesTheatres() {
		return 0, nil
	}
	where, args := scope.theatreFilter()
	return r.count(ctx, `SELECT COUNT(*) FROM theatres t WHERE `+where, args...)
}

// CountShows counts shows on theatres visible within scope.
func (r *DashboardRepo) CountShows(ctx context.Context, scope Scope) (int64, error) {
	if !scope.SeesTheatres() {
		return 0, nil
	}
	where, args := scope.theatreFilter()
	return r.count(ctx, `SELECT COUNT(*) FROM shows s
		JOIN screens sc ON sc.id = s.screen_id
		JOIN theatres t ON t.id = sc.theatre_id WHERE `+where, args...)
}

// CountUsers counts users; only an unrestricted scope sees them.
func (r *DashboardRepo) CountUsers(ctx context.Context, scope Scope) (int64, error) {
	if !scope.SeesUsers() {
		return 0, nil
	}
	return r.count(ctx, `SELECT COUNT(*) FROM users`)
}

// CountMovies counts the catalog, which every role can see.
func (r *DashboardRepo) CountMovies(ctx context.Context) (int64, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM movies`)
}

// Bookings aggregates bookings visible within scope and matching w.
func (r *DashboardRepo) Bookings(ctx context.Context, scope Scope, w BookingWindow) (BookingAggregate, error) {
	where, args := scope.bookingFilter()
	q := `SELECT COUNT(*), COALESCE(SUM(b.total_amount_cents), 0)` + bookingJoins + ` WHERE ` + where
	if w.Status != "" {
		q += ` AND b.status = ?`
		args = append(args, string(w.Status))
	}
	if w.From != nil {
		q += ` AND b.booked_at >= ?`
		args = append(args, *w.From)
	}
	if w.To != nil {
		q += ` AND b.booked_at < ?`
		args = append(args, *w.To)
	}
	var agg BookingAggregate
	if err := r.db.QueryRowContext(ctx, q, args...).Scan(&agg.Count, &agg.AmountCents); err != nil {
		return BookingAggregate{}, errors.Wrap(err, "aggregate bookings")
	}
	return agg, nil
}

// TheatreRevenue returns theatres within scope with their booking count
// and confirmed revenue, highest revenue first.
func (r *DashboardRepo) TheatreRevenue(ctx context.Context, scope Scope, limit int) ([]TheatreRevenue, error) {
	if !scope.SeesTheatres() {
		return nil, nil
	}
	where, args := scope.theatreFilter()
	q := `SELECT t.id, t.owner_id, t.name, t.address, t.city, t.created_at,
	             COUNT(b.id),
	             COALESCE(SUM(CASE WHEN b.status = 'CONFIRMED' THEN b.total_amount_cents ELSE 0 END), 0) AS revenue
	      FROM theatres t
	      LEFT JOIN screens sc ON sc.theatre_id = t.id
	      LEFT JOIN shows s ON s.screen_id = sc.id
	      LEFT JOIN bookings b ON b.show_id = s.id
	      WHERE ` + where + `
	      GROUP BY t.id, t.owner_id, t.name, t.address, t.city, t.created_at
	      ORDER BY revenue DESC, t.id`
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, errors.Wrap(err, "theatre revenue")
	}
	defer rows.Close()
	var out []TheatreRevenue
	for rows.Next() {
		var tr TheatreRevenue
		t := &tr.Theatre
		if err := rows.Scan(&t.ID, &t.OwnerID, &t.Name, &t.Address, &t.City, &t.CreatedAt, &tr.TotalBookings, &tr.RevenueCents); err != nil {
			return nil, errors.Wrap(err, "scan theatre revenue")
		}
		out = append(out, tr)
	}
	return out, rows.Err()
}

// TopMovies returns movies ordered by number of bookings.
func (r *DashboardRepo) TopMovies(ctx context.Context, limit int) ([]MovieBookings, error) {
	const q = `SELECT m.id, m.title, COUNT(b.id) AS booking_count
	           FROM movies m
	           LEFT JOIN shows s ON s.movie_id = m.id
	           LEFT JOIN bookings b ON b.show_id = s.id
	           GROUP BY m.id, m.title
	           ORDER BY booking_count DESC, m.id
	           LIMIT ?`
	rows, err := r.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, errors.Wrap(err, "top movies")
	}
	defer rows.Close()
	var out []MovieBookings
	for rows.Next() {
		var mb MovieBookings
		if err := rows.Scan(&mb.MovieID, &mb.Title, &mb.BookingCount); err != nil {
			return nil, errors.Wrap(err, "scan top movie")
		}
		out = append(out, mb)
	}
	return out, rows.Err()
}

func (r *DashboardRepo) count(ctx context.Context, q string, args ...any) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, q, args...).Scan(&n); err != nil {
		return 0, errors.Wrap(err, "count")
	}
	return n, nil
}
