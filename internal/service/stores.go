package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/movie-ticket-booking/internal/model"
	"github.com/iliyamo/movie-ticket-booking/internal/queue"
	"github.com/iliyamo/movie-ticket-booking/internal/repository"
)

// The services depend on these narrow views of the repositories so they
// can be exercised against in-memory fakes.

type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error
}

type ShowSeatStore interface {
	InsertBulkTx(ctx context.Context, tx *sql.Tx, seats []model.ShowSeat) error
	GetByIDsForUpdateTx(ctx context.Context, tx *sql.Tx, showID uint64, ids []uint64) ([]model.ShowSeat, error)
	TransitionTx(ctx context.Context, tx *sql.Tx, t repository.Transition) (int64, error)
	ExpiredLocksTx(ctx context.Context, tx *sql.Tx, now time.Time, limit int) ([]model.ShowSeat, error)
	TierPricesTx(ctx context.Context, tx *sql.Tx, showID uint64) (map[model.SeatTier]uint32, error)
	ListByShow(ctx context.Context, showID uint64, status model.ShowSeatStatus) ([]model.ShowSeat, error)
}

type BookingStore interface {
	CreateTx(ctx context.Context, tx *sql.Tx, b *model.Booking) error
	GetTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Booking, error)
	GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Booking, error)
	GetScoped(ctx context.Context, id uint64, scope repository.Scope) (*model.Booking, error)
	ListScoped(ctx context.Context, scope repository.Scope, limit int) ([]model.Booking, error)
	UpdateStatusTx(ctx context.Context, tx *sql.Tx, id uint64, from, to model.BookingStatus, transactionID *string) error
}

type ShowStore interface {
	CreateTx(ctx context.Context, tx *sql.Tx, s *model.Show) error
	GetByID(ctx context.Context, id uint64) (*model.Show, error)
	GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Show, error)
	ListByScreenTx(ctx context.Context, tx *sql.Tx, screenID uint64) ([]model.Show, error)
	List(ctx context.Context, f repository.ShowFilter) ([]model.Show, error)
}

type SeatStore interface {
	CreateBulkTx(ctx context.Context, tx *sql.Tx, seats []model.Seat) error
	ListByScreen(ctx context.Context, screenID uint64) ([]model.Seat, error)
	ListByScreenTx(ctx context.Context, tx *sql.Tx, screenID uint64) ([]model.Seat, error)
}

type TheatreStore interface {
	Create(ctx context.Context, t *model.Theatre) error
	GetByID(ctx context.Context, id uint64) (*model.Theatre, error)
	List(ctx context.Context, city string) ([]model.Theatre, error)
	CreateScreen(ctx context.Context, s *model.Screen) error
	GetScreen(ctx context.Context, id uint64) (*model.Screen, uint64, error)
	GetScreenForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Screen, uint64, error)
	ListScreens(ctx context.Context, theatreID uint64) ([]model.Screen, error)
	Delete(ctx context.Context, id uint64) error
}

type MovieStore interface {
	Create(ctx context.Context, m *model.Movie) error
	GetByID(ctx context.Context, id uint64) (*model.Movie, error)
	List(ctx context.Context) ([]model.Movie, error)
	Delete(ctx context.Context, id uint64) error
}

type UserStore interface {
	GetByID(ctx context.Context, id uint64) (*model.User, error)
}

type DashboardStore interface {
	CountTheatres(ctx context.Context, scope repository.Scope) (int64, error)
	CountShows(ctx context.Context, scope repository.Scope) (int64, error)
	CountUsers(ctx context.Context, scope repository.Scope) (int64, error)
	CountMovies(ctx context.Context) (int64, error)
	Bookings(ctx context.Context, scope repository.Scope, w repository.BookingWindow) (repository.BookingAggregate, error)
	TheatreRevenue(ctx context.Context, scope repository.Scope, limit int) ([]repository.TheatreRevenue, error)
	TopMovies(ctx context.Context, limit int) ([]repository.MovieBookings, error)
}

// EventPublisher receives booking events after their transaction commits.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.BookingEvent) error
}

// NopPublisher drops every event.  It is used when messaging is disabled.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, queue.BookingEvent) error { return nil }

func utcNow() time.Time { return time.Now().UTC() }
