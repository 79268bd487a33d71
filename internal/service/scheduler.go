package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/movie-ticket-booking/internal/model"
	"github.com/iliyamo/movie-ticket-booking/internal/repository"
)

// ScheduleInput describes a show to create.  TierPrices overrides the
// base price per seat tier.
type ScheduleInput struct {
	MovieID        uint64
	ScreenID       uint64
	ShowDate       time.Time
	ShowTime       string
	BasePriceCents uint32
	TierPrices     map[model.SeatTier]uint32
}

// Scheduler creates shows together with their seat ledger.
type Scheduler struct {
	tx       TxRunner
	ledger   *Ledger
	shows    ShowStore
	movies   MovieStore
	theatres TheatreStore
	seats    SeatStore
	log      logrus.FieldLogger
}

func NewScheduler(tx TxRunner, ledger *Ledger, shows ShowStore, movies MovieStore, theatres TheatreStore, seats SeatStore, log logrus.FieldLogger) *Scheduler {
	return &Scheduler{tx: tx, ledger: ledger, shows: shows, movies: movies, theatres: theatres, seats: seats, log: log}
}

// Schedule creates a show and one AVAILABLE show seat per physical seat
// of the screen in a single transaction holding the screen row lock.
// Only an admin or the owner of the screen's theatre may schedule.
func (s *Scheduler) Schedule(ctx context.Context, p Policy, in ScheduleInput) (*model.Show, []model.ShowSeat, error) {
	if _, err := time.Parse("15:04", in.ShowTime); err != nil {
		return nil, nil, errors.Wrapf(ErrInvalidInput, "show time %q must be HH:MM", in.ShowTime)
	}
	if in.BasePriceCents == 0 {
		return nil, nil, errors.Wrap(ErrInvalidInput, "base price must be positive")
	}
	if _, err := s.movies.GetByID(ctx, in.MovieID); err != nil {
		return nil, nil, errors.Wrapf(err, "load movie %d", in.MovieID)
	}

	d := in.ShowDate.UTC()
	show := &model.Show{
		MovieID:        in.MovieID,
		ShowDate:       time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC),
		ShowTime:       in.ShowTime,
		BasePriceCents: in.BasePriceCents,
	}
	var ledger []model.ShowSeat
	err := s.tx.WithTx(ctx, func(tx *sql.Tx) error {
		screen, ownerID, err := s.theatres.GetScreenForUpdateTx(ctx, tx, in.ScreenID)
		if err != nil {
			return errors.Wrapf(err, "load screen %d", in.ScreenID)
		}
		if !p.CanManageTheatre(ownerID) {
			return errors.Wrapf(repository.ErrForbidden, "user %d cannot schedule on screen %d", p.UserID(), screen.ID)
		}
		seats, err := s.seats.ListByScreenTx(ctx, tx, screen.ID)
		if err != nil {
			return errors.Wrapf(err, "list seats of screen %d", screen.ID)
		}
		if len(seats) == 0 {
			return errors.Wrapf(ErrInvalidInput, "screen %d has no seats", screen.ID)
		}
		show.ScreenID = screen.ID
		if err := s.shows.CreateTx(ctx, tx, show); err != nil {
			return errors.Wrap(err, "create show")
		}
		ledger, err = s.ledger.CreateForShowTx(ctx, tx, show, seats, in.TierPrices)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	s.log.WithFields(logrus.Fields{
		"show_id":   show.ID,
		"screen_id": show.ScreenID,
		"seats":     len(ledger),
	}).Info("show scheduled")
	return show, ledger, nil
}

// Get returns a show by id.
func (s *Scheduler) Get(ctx context.Context, id uint64) (*model.Show, error) {
	show, err := s.shows.GetByID(ctx, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get show %d", id)
	}
	return show, nil
}

// List returns shows matching f.
func (s *Scheduler) List(ctx context.Context, f repository.ShowFilter) ([]model.Show, error) {
	list, err := s.shows.List(ctx, f)
	if err != nil {
		return nil, errors.Wrap(err, "list shows")
	}
	return list, nil
}
