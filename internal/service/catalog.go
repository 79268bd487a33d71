package service

import (
	"context"
	"database/sql"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/movie-ticket-booking/internal/model"
	"github.com/iliyamo/movie-ticket-booking/internal/repository"
)

// Catalog manages the reference data shows are built from: movies,
// theatres, screens and physical seats.  Seats added to a screen that
// already has shows are entered into the ledger of each of them.
type Catalog struct {
	tx       TxRunner
	ledger   *Ledger
	shows    ShowStore
	movies   MovieStore
	theatres TheatreStore
	seats    SeatStore
	log      logrus.FieldLogger
}

func NewCatalog(tx TxRunner, ledger *Ledger, shows ShowStore, movies MovieStore, theatres TheatreStore, seats SeatStore, log logrus.FieldLogger) *Catalog {
	return &Catalog{tx: tx, ledger: ledger, shows: shows, movies: movies, theatres: theatres, seats: seats, log: log}
}

// CreateMovie adds a movie.  Admin only.
func (c *Catalog) CreateMovie(ctx context.Context, p Policy, m *model.Movie) error {
	if p.Role() != model.RoleAdmin {
		return errors.Wrap(repository.ErrForbidden, "only admins add movies")
	}
	if strings.TrimSpace(m.Title) == "" {
		return errors.Wrap(ErrInvalidInput, "title is required")
	}
	if m.Rating < 0 || m.Rating > 10 {
		return errors.Wrapf(ErrInvalidInput, "rating %.1f out of range", m.Rating)
	}
	return errors.Wrap(c.movies.Create(ctx, m), "create movie")
}

func (c *Catalog) Movie(ctx context.Context, id uint64) (*model.Movie, error) {
	m, err := c.movies.GetByID(ctx, id)
	return m, errors.Wrapf(err, "get movie %d", id)
}

func (c *Catalog) Movies(ctx context.Context) ([]model.Movie, error) {
	list, err := c.movies.List(ctx)
	return list, errors.Wrap(err, "list movies")
}

// DeleteMovie removes a movie.  Admin only.  A movie that still has
// shows is refused with ErrInUse.
func (c *Catalog) DeleteMovie(ctx context.Context, p Policy, id uint64) error {
	if p.Role() != model.RoleAdmin {
		return errors.Wrap(repository.ErrForbidden, "only admins delete movies")
	}
	if err := c.movies.Delete(ctx, id); err != nil {
		return errors.Wrapf(err, "delete movie %d", id)
	}
	c.log.WithField("movie_id", id).Info("movie deleted")
	return nil
}

// CreateTheatre adds a theatre owned by the caller.  Admins may create
// a theatre on behalf of another owner by setting OwnerID.
func (c *Catalog) CreateTheatre(ctx context.Context, p Policy, t *model.Theatre) error {
	switch p.Role() {
	case model.RoleTheatreOwner:
		t.OwnerID = p.UserID()
	case model.RoleAdmin:
		if t.OwnerID == 0 {
			t.OwnerID = p.UserID()
		}
	default:
		return errors.Wrap(repository.ErrForbidden, "only theatre owners add theatres")
	}
	if strings.TrimSpace(t.Name) == "" || strings.TrimSpace(t.City) == "" {
		return errors.Wrap(ErrInvalidInput, "name and city are required")
	}
	if err := c.theatres.Create(ctx, t); err != nil {
		return errors.Wrap(err, "create theatre")
	}
	c.log.WithFields(logrus.Fields{"theatre_id": t.ID, "owner_id": t.OwnerID}).Info("theatre created")
	return nil
}

func (c *Catalog) Theatre(ctx context.Context, id uint64) (*model.Theatre, error) {
	t, err := c.theatres.GetByID(ctx, id)
	return t, errors.Wrapf(err, "get theatre %d", id)
}

func (c *Catalog) Theatres(ctx context.Context, city string) ([]model.Theatre, error) {
	list, err := c.theatres.List(ctx, strings.TrimSpace(city))
	return list, errors.Wrap(err, "list theatres")
}

// DeleteTheatre removes a theatre with its screens and seats.  Only an
// admin or the owner may delete it, and only while none of its screens
// has shows.
func (c *Catalog) DeleteTheatre(ctx context.Context, p Policy, id uint64) error {
	t, err := c.theatres.GetByID(ctx, id)
	if err != nil {
		return errors.Wrapf(err, "load theatre %d", id)
	}
	if !p.CanManageTheatre(t.OwnerID) {
		return errors.Wrapf(repository.ErrForbidden, "user %d does not manage theatre %d", p.UserID(), t.ID)
	}
	if err := c.theatres.Delete(ctx, t.ID); err != nil {
		return errors.Wrapf(err, "delete theatre %d", t.ID)
	}
	c.log.WithFields(logrus.Fields{"theatre_id": t.ID, "owner_id": t.OwnerID}).Info("theatre deleted")
	return nil
}

// CreateScreen adds a screen to a theatre the caller manages.
func (c *Catalog) CreateScreen(ctx context.Context, p Policy, theatreID uint64, s *model.Screen) error {
	t, err := c.theatres.GetByID(ctx, theatreID)
	if err != nil {
		return errors.Wrapf(err, "load theatre %d", theatreID)
	}
	if !p.CanManageTheatre(t.OwnerID) {
		return errors.Wrapf(repository.ErrForbidden, "user %d does not manage theatre %d", p.UserID(), t.ID)
	}
	if strings.TrimSpace(s.Name) == "" {
		return errors.Wrap(ErrInvalidInput, "screen name is required")
	}
	s.TheatreID = t.ID
	return errors.Wrap(c.theatres.CreateScreen(ctx, s), "create screen")
}

func (c *Catalog) Screens(ctx context.Context, theatreID uint64) ([]model.Screen, error) {
	if _, err := c.theatres.GetByID(ctx, theatreID); err != nil {
		return nil, errors.Wrapf(err, "load theatre %d", theatreID)
	}
	list, err := c.theatres.ListScreens(ctx, theatreID)
	return list, errors.Wrap(err, "list screens")
}

// AddSeats creates physical seats on a screen the caller manages and
// returns the full seat list.  A repeated row and label is rejected as
// a duplicate and nothing is inserted.  A screen with a non-zero
// capacity never holds more seats than that.  Every show already
// scheduled on the screen gets an AVAILABLE show seat for each new seat,
// priced like the existing seats of its tier or at the base price.
func (c *Catalog) AddSeats(ctx context.Context, p Policy, screenID uint64, seats []model.Seat) ([]model.Seat, error) {
	if len(seats) == 0 {
		return nil, errors.Wrap(ErrInvalidInput, "at least one seat is required")
	}
	seen := make(map[string]struct{}, len(seats))
	for i := range seats {
		s := &seats[i]
		s.RowLabel = strings.TrimSpace(s.RowLabel)
		s.SeatLabel = strings.TrimSpace(s.SeatLabel)
		if s.RowLabel == "" || s.SeatLabel == "" {
			return nil, errors.Wrapf(ErrInvalidInput, "seat %d needs a row and a label", i)
		}
		tier, ok := model.ParseSeatTier(string(s.Tier))
		if !ok {
			if s.Tier != "" {
				return nil, errors.Wrapf(ErrInvalidInput, "unknown tier %q", s.Tier)
			}
			tier = model.TierSilver
		}
		s.Tier = tier
		key := s.RowLabel + "/" + s.SeatLabel
		if _, dup := seen[key]; dup {
			return nil, errors.Wrapf(repository.ErrDuplicateEntry, "seat %s listed twice", key)
		}
		seen[key] = struct{}{}
	}

	var (
		all   []model.Seat
		shows int
	)
	err := c.tx.WithTx(ctx, func(tx *sql.Tx) error {
		screen, ownerID, err := c.theatres.GetScreenForUpdateTx(ctx, tx, screenID)
		if err != nil {
			return errors.Wrapf(err, "load screen %d", screenID)
		}
		if !p.CanManageTheatre(ownerID) {
			return errors.Wrapf(repository.ErrForbidden, "user %d does not manage screen %d", p.UserID(), screen.ID)
		}
		existing, err := c.seats.ListByScreenTx(ctx, tx, screen.ID)
		if err != nil {
			return errors.Wrapf(err, "list seats of screen %d", screen.ID)
		}
		if screen.Capacity > 0 && len(existing)+len(seats) > int(screen.Capacity) {
			return errors.Wrapf(ErrInvalidInput, "screen %d holds %d seats, %d exist and %d were given",
				screen.ID, screen.Capacity, len(existing), len(seats))
		}
		for i := range seats {
			seats[i].ScreenID = screen.ID
		}
		if err := c.seats.CreateBulkTx(ctx, tx, seats); err != nil {
			return errors.Wrap(err, "create seats")
		}
		all, err = c.seats.ListByScreenTx(ctx, tx, screen.ID)
		if err != nil {
			return errors.Wrapf(err, "list seats of screen %d", screen.ID)
		}
		added := newSeats(existing, all)

		scheduled, err := c.shows.ListByScreenTx(ctx, tx, screen.ID)
		if err != nil {
			return errors.Wrapf(err, "list shows of screen %d", screen.ID)
		}
		for i := range scheduled {
			show := &scheduled[i]
			if _, err := c.ledger.ExtendShowTx(ctx, tx, show, added); err != nil {
				return err
			}
		}
		shows = len(scheduled)
		return nil
	})
	if err != nil {
		return nil, err
	}
	c.log.WithFields(logrus.Fields{
		"screen_id": screenID,
		"seats":     len(seats),
		"shows":     shows,
	}).Info("seats added")
	return all, nil
}

// newSeats returns the seats of after that are not in before.
func newSeats(before, after []model.Seat) []model.Seat {
	old := make(map[uint64]struct{}, len(before))
	for _, s := range before {
		old[s.ID] = struct{}{}
	}
	var out []model.Seat
	for _, s := range after {
		if _, ok := old[s.ID]; !ok {
			out = append(out, s)
		}
	}
	return out
}

// Seats lists the physical seats of a screen.  An unknown screen yields
// ErrScreenNotFound rather than an empty list.
func (c *Catalog) Seats(ctx context.Context, screenID uint64) ([]model.Seat, error) {
	if _, _, err := c.theatres.GetScreen(ctx, screenID); err != nil {
		return nil, errors.Wrapf(err, "load screen %d", screenID)
	}
	list, err := c.seats.ListByScreen(ctx, screenID)
	return list, errors.Wrapf(err, "list seats of screen %d", screenID)
}
