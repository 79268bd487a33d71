package service

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/movie-ticket-booking/internal/model"
	"github.com/iliyamo/movie-ticket-booking/internal/repository"
)

const recentBookings = 10

type Overview struct {
	TotalTheatres int64  `json:"total_theatres"`
	TotalShows    int64  `json:"total_shows"`
	TotalBookings int64  `json:"total_bookings"`
	TotalRevenue  uint64 `json:"total_revenue_cents"`
	TotalUsers    int64  `json:"total_users"`
	TotalMovies   int64  `json:"total_movies"`
}

type RevenueStats struct {
	Today     uint64 `json:"today_cents"`
	ThisMonth uint64 `json:"this_month_cents"`
	LastMonth uint64 `json:"last_month_cents"`
}

type BookingStats struct {
	Today     int64 `json:"today"`
	ThisMonth int64 `json:"this_month"`
	Pending   int64 `json:"pending"`
	Confirmed int64 `json:"confirmed"`
	Cancelled int64 `json:"cancelled"`
}

// Stats is the role aware summary shown on every dashboard.
type Stats struct {
	Overview Overview     `json:"overview"`
	Revenue  RevenueStats `json:"revenue"`
	Bookings BookingStats `json:"bookings"`
	UserRole RoleFlags    `json:"user_role"`
}

type TheatreStat struct {
	Theatre       model.Theatre `json:"theatre"`
	TotalBookings int64         `json:"total_bookings"`
	RevenueCents  uint64        `json:"revenue_cents"`
}

type OwnerDashboard struct {
	Theatres       []model.Theatre `json:"theatres"`
	TheatreStats   []TheatreStat   `json:"theatre_stats"`
	RecentBookings []model.Booking `json:"recent_bookings"`
}

type MovieStat struct {
	MovieID      uint64 `json:"movie_id"`
	Title        string `json:"title"`
	BookingCount int64  `json:"booking_count"`
}

type AdminDashboard struct {
	RecentBookings []model.Booking `json:"recent_bookings"`
	TopTheatres    []TheatreStat   `json:"top_theatres"`
	TopMovies      []MovieStat     `json:"top_movies"`
}

// Dashboard builds reporting views restricted to the caller's scope.
type Dashboard struct {
	stats    DashboardStore
	bookings BookingStore
}

func NewDashboard(stats DashboardStore, bookings BookingStore) *Dashboard {
	return &Dashboard{stats: stats, bookings: bookings}
}

// Stats computes the summary for p.  Revenue only counts CONFIRMED
// bookings; months are calendar months in UTC.
func (d *Dashboard) Stats(ctx context.Context, p Policy, now time.Time) (*Stats, error) {
	scope := p.VisibleScope()
	now = now.UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	tomorrow := today.AddDate(0, 0, 1)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	nextMonth := monthStart.AddDate(0, 1, 0)
	lastMonth := monthStart.AddDate(0, -1, 0)

	out := &Stats{UserRole: flagsOf(p)}
	g, ctx := errgroup.WithContext(ctx)

	count := func(dst *int64, fn func(context.Context, repository.Scope) (int64, error)) {
		g.Go(func() error {
			n, err := fn(ctx, scope)
			*dst = n
			return err
		})
	}
	aggregate := func(w repository.BookingWindow, n *int64, cents *uint64) {
		g.Go(func() error {
			agg, err := d.stats.Bookings(ctx, scope, w)
			if n != nil {
				*n = agg.Count
			}
			if cents != nil {
				*cents = agg.AmountCents
			}
			return err
		})
	}
	confirmed := model.BookingConfirmed

	count(&out.Overview.TotalTheatres, d.stats.CountTheatres)
	count(&out.Overview.TotalShows, d.stats.CountShows)
	count(&out.Overview.TotalUsers, d.stats.CountUsers)
	g.Go(func() error {
		n, err := d.stats.CountMovies(ctx)
		out.Overview.TotalMovies = n
		return err
	})
	aggregate(repository.BookingWindow{}, &out.Overview.TotalBookings, nil)
	aggregate(repository.BookingWindow{Status: confirmed}, &out.Bookings.Confirmed, &out.Overview.TotalRevenue)
	aggregate(repository.BookingWindow{Status: model.BookingPending}, &out.Bookings.Pending, nil)
	aggregate(repository.BookingWindow{Status: model.BookingCancelled}, &out.Bookings.Cancelled, nil)
	aggregate(repository.BookingWindow{From: &today, To: &tomorrow}, &out.Bookings.Today, nil)
	aggregate(repository.BookingWindow{From: &monthStart, To: &nextMonth}, &out.Bookings.ThisMonth, nil)
	aggregate(repository.BookingWindow{Status: confirmed, From: &today, To: &tomorrow}, nil, &out.Revenue.Today)
	aggregate(repository.BookingWindow{Status: confirmed, From: &monthStart, To: &nextMonth}, nil, &out.Revenue.ThisMonth)
	aggregate(repository.BookingWindow{Status: confirmed, From: &lastMonth, To: &monthStart}, nil, &out.Revenue.LastMonth)

	if err := g.Wait(); err != nil {
		return nil, errors.Wrap(err, "dashboard stats")
	}
	return out, nil
}

// TheatreOwner lists the caller's theatres ranked by confirmed revenue
// with the latest bookings on them.
func (d *Dashboard) TheatreOwner(ctx context.Context, p Policy) (*OwnerDashboard, error) {
	if p.Role() != model.RoleTheatreOwner {
		return nil, errors.Wrap(repository.ErrForbidden, "theatre owner dashboard")
	}
	scope := p.VisibleScope()
	var (
		revenue []repository.TheatreRevenue
		recent  []model.Booking
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		revenue, err = d.stats.TheatreRevenue(gctx, scope, 0)
		return err
	})
	g.Go(func() (err error) {
		recent, err = d.bookings.ListScoped(gctx, scope, recentBookings)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, errors.Wrap(err, "theatre owner dashboard")
	}

	out := &OwnerDashboard{
		Theatres:       make([]model.Theatre, 0, len(revenue)),
		TheatreStats:   theatreStats(revenue),
		RecentBookings: nonNil(recent),
	}
	for _, r := range revenue {
		out.Theatres = append(out.Theatres, r.Theatre)
	}
	return out, nil
}

// Admin reports platform wide activity.
func (d *Dashboard) Admin(ctx context.Context, p Policy) (*AdminDashboard, error) {
	if p.Role() != model.RoleAdmin {
		return nil, errors.Wrap(repository.ErrForbidden, "admin dashboard")
	}
	scope := p.VisibleScope()
	var (
		recent  []model.Booking
		revenue []repository.TheatreRevenue
		movies  []repository.MovieBookings
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		recent, err = d.bookings.ListScoped(gctx, scope, recentBookings)
		return err
	})
	g.Go(func() (err error) {
		revenue, err = d.stats.TheatreRevenue(gctx, scope, 10)
		return err
	})
	g.Go(func() (err error) {
		movies, err = d.stats.TopMovies(gctx, 10)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, errors.Wrap(err, "admin dashboard")
	}

	out := &AdminDashboard{
		RecentBookings: nonNil(recent),
		TopTheatres:    theatreStats(revenue),
		TopMovies:      make([]MovieStat, 0, len(movies)),
	}
	for _, m := range movies {
		out.TopMovies = append(out.TopMovies, MovieStat{MovieID: m.MovieID, Title: m.Title, BookingCount: m.BookingCount})
	}
	return out, nil
}

func theatreStats(in []repository.TheatreRevenue) []TheatreStat {
	out := make([]TheatreStat, 0, len(in))
	for _, r := range in {
		out = append(out, TheatreStat{Theatre: r.Theatre, TotalBookings: r.TotalBookings, RevenueCents: r.RevenueCents})
	}
	return out
}

func nonNil(b []model.Booking) []model.Booking {
	if b == nil {
		return []model.Booking{}
	}
	return b
}
