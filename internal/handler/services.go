package handler

import (
	"context"
	"time"

	"github.com/iliyamo/movie-ticket-booking/internal/model"
	"github.com/iliyamo/movie-ticket-booking/internal/repository"
	"github.com/iliyamo/movie-ticket-booking/internal/service"
)

// The handlers depend on these views of the services.

type BookingService interface {
	Create(ctx context.Context, userID, showID uint64, showSeatIDs []uint64) (*model.Booking, error)
	Confirm(ctx context.Context, bookingID uint64, transactionID string) (*model.Booking, error)
	Cancel(ctx context.Context, bookingID uint64, reason string) (*model.Booking, error)
	Get(ctx context.Context, p service.Policy, bookingID uint64) (*model.Booking, error)
	List(ctx context.Context, p service.Policy, limit int) ([]model.Booking, error)
}

type ShowService interface {
	Schedule(ctx context.Context, p service.Policy, in service.ScheduleInput) (*model.Show, []model.ShowSeat, error)
	Get(ctx context.Context, id uint64) (*model.Show, error)
	List(ctx context.Context, f repository.ShowFilter) ([]model.Show, error)
}

type SeatLedger interface {
	Available(ctx context.Context, showID uint64) ([]model.ShowSeat, error)
	SeatMap(ctx context.Context, showID uint64) ([]model.ShowSeat, error)
	LockTTL() time.Duration
}

type CatalogService interface {
	CreateMovie(ctx context.Context, p service.Policy, m *model.Movie) error
	Movie(ctx context.Context, id uint64) (*model.Movie, error)
	Movies(ctx context.Context) ([]model.Movie, error)
	CreateTheatre(ctx context.Context, p service.Policy, t *model.Theatre) error
	Theatre(ctx context.Context, id uint64) (*model.Theatre, error)
	Theatres(ctx context.Context, city string) ([]model.Theatre, error)
	CreateScreen(ctx context.Context, p service.Policy, theatreID uint64, s *model.Screen) error
	Screens(ctx context.Context, theatreID uint64) ([]model.Screen, error)
	AddSeats(ctx context.Context, p service.Policy, screenID uint64, seats []model.Seat) ([]model.Seat, error)
	Seats(ctx context.Context, screenID uint64) ([]model.Seat, error)
	DeleteMovie(ctx context.Context, p service.Policy, id uint64) error
	DeleteTheatre(ctx context.Context, p service.Policy, id uint64) error
}

type DashboardService interface {
	Stats(ctx context.Context, p service.Policy, now time.Time) (*service.Stats, error)
	TheatreOwner(ctx context.Context, p service.Policy) (*service.OwnerDashboard, error)
	Admin(ctx context.Context, p service.Policy) (*service.AdminDashboard, error)
}

type UserAccounts interface {
	Create(ctx context.Context, email, password string, role model.Role, cost int) (uint64, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByID(ctx context.Context, id uint64) (*model.User, error)
}

type RefreshTokens interface {
	StoreRefresh(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error
	ValidateRefresh(ctx context.Context, tokenHash string) (uint64, error)
	RevokeByHash(ctx context.Context, tokenHash string) error
	RevokeAllForUser(ctx context.Context, userID uint64) error
}

type PasswordResets interface {
	Issue(ctx context.Context, userID uint64, codeHash string, exp time.Time) error
	Check(ctx context.Context, userID uint64, codeHash string) error
	Reset(ctx context.Context, userID uint64, codeHash, passwordHash string) error
}
