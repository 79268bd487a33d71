package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/movie-ticket-booking/internal/model"
	"github.com/iliyamo/movie-ticket-booking/internal/repository"
)

func TestScheduleCreatesOneShowSeatPerSeat(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := TheatreOwnerPolicy{ID: f.owner}

	_, err := f.catalog.AddSeats(ctx, owner, f.screen.ID, []model.Seat{{RowLabel: "B", SeatLabel: "1", Tier: "gold"}})
	require.NoError(t, err)

	show, rows, err := f.sched.Schedule(ctx, owner, ScheduleInput{
		MovieID:        f.movie.ID,
		ScreenID:       f.screen.ID,
		ShowDate:       time.Date(2024, 5, 2, 18, 45, 0, 0, time.UTC),
		ShowTime:       "21:00",
		BasePriceCents: 250,
		TierPrices:     map[model.SeatTier]uint32{model.TierGold: 400},
	})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC), show.ShowDate)
	require.Len(t, rows, 3)

	prices := map[string]uint32{}
	for _, r := range rows {
		assert.Equal(t, model.ShowSeatAvailable, r.Status)
		prices[r.RowLabel+r.SeatLabel] = r.PriceCents
	}
	assert.Equal(t, map[string]uint32{"A1": 250, "A2": 250, "B1": 400}, prices)

	avail, err := f.ledger.Available(ctx, show.ID)
	require.NoError(t, err)
	assert.Len(t, avail, 3)
}

func TestScheduleRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	in := ScheduleInput{MovieID: f.movie.ID, ScreenID: f.screen.ID, ShowDate: f.show.ShowDate, ShowTime: "19:30", BasePriceCents: 200}

	_, _, err := f.sched.Schedule(ctx, TheatreOwnerPolicy{ID: f.owner}, in)
	assert.True(t, errors.Is(err, repository.ErrDuplicateEntry), "same screen, date and time")

	_, _, err = f.sched.Schedule(ctx, TheatreOwnerPolicy{ID: f.bob}, in)
	assert.True(t, errors.Is(err, repository.ErrForbidden))

	_, _, err = f.sched.Schedule(ctx, CustomerPolicy{ID: f.alice}, in)
	assert.True(t, errors.Is(err, repository.ErrForbidden))

	bad := in
	bad.ShowTime = "7pm"
	_, _, err = f.sched.Schedule(ctx, AdminPolicy{ID: f.admin}, bad)
	assert.True(t, errors.Is(err, ErrInvalidInput))

	bad = in
	bad.MovieID = 9999
	_, _, err = f.sched.Schedule(ctx, AdminPolicy{ID: f.admin}, bad)
	assert.True(t, errors.Is(err, repository.ErrMovieNotFound))

	bad = in
	bad.ScreenID = 9999
	_, _, err = f.sched.Schedule(ctx, AdminPolicy{ID: f.admin}, bad)
	assert.True(t, errors.Is(err, repository.ErrScreenNotFound))

	in.ShowTime = "22:15"
	_, _, err = f.sched.Schedule(ctx, AdminPolicy{ID: f.admin}, in)
	assert.NoError(t, err)
}

func TestLedgerTransitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ids := f.ids("A1", "A2")

	until, err := f.ledger.Lock(ctx, f.show.ID, ids, 77)
	require.NoError(t, err)
	assert.Equal(t, f.clock.Now().Add(f.ledger.LockTTL()), until)

	_, err = f.ledger.Lock(ctx, f.show.ID, ids[:1], 78)
	assert.True(t, errors.Is(err, ErrSeatUnavailable))

	err = f.db.WithTx(ctx, func(tx *sql.Tx) error { return f.ledger.ReleaseTx(ctx, tx, f.show.ID, ids, 78) })
	assert.True(t, errors.Is(err, ErrSeatUnavailable), "only the holder releases")

	require.NoError(t, f.db.WithTx(ctx, func(tx *sql.Tx) error { return f.ledger.ConfirmTx(ctx, tx, f.show.ID, ids, 77) }))
	seats, err := f.ledger.SeatMap(ctx, f.show.ID)
	require.NoError(t, err)
	for _, s := range seats {
		assert.Equal(t, model.ShowSeatBooked, s.Status)
	}

	require.NoError(t, f.db.WithTx(ctx, func(tx *sql.Tx) error { return f.ledger.RevokeTx(ctx, tx, f.show.ID, ids) }))
	err = f.db.WithTx(ctx, func(tx *sql.Tx) error { return f.ledger.RevokeTx(ctx, tx, f.show.ID, ids) })
	assert.True(t, errors.Is(err, ErrInvalidStateTransition))

	avail, err := f.ledger.Available(ctx, f.show.ID)
	require.NoError(t, err)
	assert.Len(t, avail, 2)
}

func TestCatalogPermissions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.catalog.CreateMovie(ctx, TheatreOwnerPolicy{ID: f.owner}, &model.Movie{Title: "Heat"})
	assert.True(t, errors.Is(err, repository.ErrForbidden))
	err = f.catalog.CreateMovie(ctx, AdminPolicy{ID: f.admin}, &model.Movie{Title: "Heat", Rating: 11})
	assert.True(t, errors.Is(err, ErrInvalidInput))

	th := &model.Theatre{Name: "Other", City: "Shiraz", OwnerID: f.admin}
	require.NoError(t, f.catalog.CreateTheatre(ctx, TheatreOwnerPolicy{ID: f.bob}, th))
	assert.Equal(t, f.bob, th.OwnerID)
	err = f.catalog.CreateTheatre(ctx, CustomerPolicy{ID: f.alice}, &model.Theatre{Name: "X", City: "Y"})
	assert.True(t, errors.Is(err, repository.ErrForbidden))

	err = f.catalog.CreateScreen(ctx, TheatreOwnerPolicy{ID: f.owner}, th.ID, &model.Screen{Name: "S"})
	assert.True(t, errors.Is(err, repository.ErrForbidden))

	_, err = f.catalog.AddSeats(ctx, TheatreOwnerPolicy{ID: f.bob}, f.screen.ID, []model.Seat{{RowLabel: "C", SeatLabel: "1"}})
	assert.True(t, errors.Is(err, repository.ErrForbidden))

	_, err = f.catalog.AddSeats(ctx, AdminPolicy{ID: f.admin}, f.screen.ID, []model.Seat{{RowLabel: "A", SeatLabel: "1"}})
	assert.True(t, errors.Is(err, repository.ErrDuplicateEntry))

	_, err = f.catalog.AddSeats(ctx, AdminPolicy{ID: f.admin}, f.screen.ID, []model.Seat{
		{RowLabel: "C", SeatLabel: "1"}, {RowLabel: "C", SeatLabel: "1"},
	})
	assert.True(t, errors.Is(err, repository.ErrDuplicateEntry))

	_, err = f.catalog.AddSeats(ctx, AdminPolicy{ID: f.admin}, f.screen.ID, []model.Seat{{RowLabel: "C", SeatLabel: "1", Tier: "VIP"}})
	assert.True(t, errors.Is(err, ErrInvalidInput))

	seats, err := f.catalog.Seats(ctx, f.screen.ID)
	require.NoError(t, err)
	assert.Len(t, seats, 2)
	assert.Equal(t, model.TierSilver, seats[0].Tier)
}

func TestAddSeatsExtendsScheduledShows(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := TheatreOwnerPolicy{ID: f.owner}

	gold, _, err := f.sched.Schedule(ctx, owner, ScheduleInput{
		MovieID: f.movie.ID, ScreenID: f.screen.ID, ShowDate: f.show.ShowDate, ShowTime: "22:00",
		BasePriceCents: 300, TierPrices: map[model.SeatTier]uint32{model.TierGold: 900},
	})
	require.NoError(t, err)

	seats, err := f.catalog.AddSeats(ctx, owner, f.screen.ID, []model.Seat{{RowLabel: "Z", SeatLabel: "9"}})
	require.NoError(t, err)
	require.Len(t, seats, 3)

	for _, show := range []*model.Show{f.show, gold} {
		m, err := f.ledger.SeatMap(ctx, show.ID)
		require.NoError(t, err)
		require.Len(t, m, len(seats), "show %d", show.ID)
		ledgerSeats := map[uint64]bool{}
		for _, r := range m {
			ledgerSeats[r.SeatID] = true
		}
		for _, seat := range seats {
			assert.True(t, ledgerSeats[seat.ID], "show %d lacks seat %s%s", show.ID, seat.RowLabel, seat.SeatLabel)
		}
	}

	m, err := f.ledger.SeatMap(ctx, f.show.ID)
	require.NoError(t, err)
	var z9 model.ShowSeat
	for _, r := range m {
		if f.db.seats[r.SeatID].RowLabel == "Z" {
			z9 = r
		}
	}
	assert.Equal(t, model.ShowSeatAvailable, z9.Status)
	assert.Equal(t, uint32(200), z9.PriceCents, "silver keeps the show's silver price")

	_, err = f.catalog.AddSeats(ctx, owner, f.screen.ID, []model.Seat{{RowLabel: "Z", SeatLabel: "10", Tier: "GOLD"}})
	require.NoError(t, err)
	m, err = f.ledger.SeatMap(ctx, gold.ID)
	require.NoError(t, err)
	prices := map[model.SeatTier][]uint32{}
	for _, r := range m {
		tier := f.db.seats[r.SeatID].Tier
		prices[tier] = append(prices[tier], r.PriceCents)
	}
	assert.Equal(t, []uint32{300}, dedupePrices(prices[model.TierSilver]))
	assert.Equal(t, []uint32{300}, prices[model.TierGold], "a tier new to the show sells at the base price")

	b, err := f.bookings.Create(ctx, f.alice, f.show.ID, []uint64{z9.ID})
	require.NoError(t, err)
	assert.Equal(t, uint64(200), b.TotalAmountCents)
}

func dedupePrices(in []uint32) []uint32 {
	seen := map[uint32]bool{}
	var out []uint32
	for _, p := range in {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}

func TestAddSeatsRespectsCapacity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := TheatreOwnerPolicy{ID: f.owner}

	_, err := f.catalog.AddSeats(ctx, owner, f.screen.ID, []model.Seat{
		{RowLabel: "B", SeatLabel: "1"}, {RowLabel: "B", SeatLabel: "2"}, {RowLabel: "B", SeatLabel: "3"},
	})
	assert.True(t, errors.Is(err, ErrInvalidInput))
	seats, err := f.catalog.Seats(ctx, f.screen.ID)
	require.NoError(t, err)
	assert.Len(t, seats, 2)
	m, err := f.ledger.SeatMap(ctx, f.show.ID)
	require.NoError(t, err)
	assert.Len(t, m, 2, "a rejected batch leaves the show untouched")

	seats, err = f.catalog.AddSeats(ctx, owner, f.screen.ID, []model.Seat{{RowLabel: "B", SeatLabel: "1"}, {RowLabel: "B", SeatLabel: "2"}})
	require.NoError(t, err)
	assert.Len(t, seats, 4)

	free := &model.Screen{Name: "Screen 2"}
	require.NoError(t, f.catalog.CreateScreen(ctx, owner, f.screen.TheatreID, free))
	batch := make([]model.Seat, 0, 30)
	for i := 1; i <= 30; i++ {
		batch = append(batch, model.Seat{RowLabel: "A", SeatLabel: fmt.Sprint(i)})
	}
	seats, err = f.catalog.AddSeats(ctx, owner, free.ID, batch)
	require.NoError(t, err, "zero capacity does not limit seats")
	assert.Len(t, seats, 30)
}

func TestSeatsOfUnknownScreen(t *testing.T) {
	f := newFixture(t)
	_, err := f.catalog.Seats(context.Background(), 9999)
	assert.True(t, errors.Is(err, repository.ErrScreenNotFound))
}

func TestDeleteMovieAndTheatre(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := AdminPolicy{ID: f.admin}

	err := f.catalog.DeleteMovie(ctx, TheatreOwnerPolicy{ID: f.owner}, f.movie.ID)
	assert.True(t, errors.Is(err, repository.ErrForbidden))
	err = f.catalog.DeleteMovie(ctx, admin, f.movie.ID)
	assert.True(t, errors.Is(err, repository.ErrInUse), "movie with shows")
	err = f.catalog.DeleteMovie(ctx, admin, 9999)
	assert.True(t, errors.Is(err, repository.ErrMovieNotFound))

	spare := &model.Movie{Title: "Heat"}
	require.NoError(t, f.catalog.CreateMovie(ctx, admin, spare))
	require.NoError(t, f.catalog.DeleteMovie(ctx, admin, spare.ID))
	_, err = f.catalog.Movie(ctx, spare.ID)
	assert.True(t, errors.Is(err, repository.ErrMovieNotFound))

	err = f.catalog.DeleteTheatre(ctx, TheatreOwnerPolicy{ID: f.bob}, f.screen.TheatreID)
	assert.True(t, errors.Is(err, repository.ErrForbidden))
	err = f.catalog.DeleteTheatre(ctx, TheatreOwnerPolicy{ID: f.owner}, f.screen.TheatreID)
	assert.True(t, errors.Is(err, repository.ErrInUse), "theatre with shows")

	th := &model.Theatre{Name: "Empty", City: "Tabriz"}
	require.NoError(t, f.catalog.CreateTheatre(ctx, TheatreOwnerPolicy{ID: f.bob}, th))
	sc := &model.Screen{Name: "Hall"}
	require.NoError(t, f.catalog.CreateScreen(ctx, TheatreOwnerPolicy{ID: f.bob}, th.ID, sc))
	_, err = f.catalog.AddSeats(ctx, TheatreOwnerPolicy{ID: f.bob}, sc.ID, []model.Seat{{RowLabel: "A", SeatLabel: "1"}})
	require.NoError(t, err)

	require.NoError(t, f.catalog.DeleteTheatre(ctx, admin, th.ID))
	_, err = f.catalog.Theatre(ctx, th.ID)
	assert.True(t, errors.Is(err, repository.ErrTheatreNotFound))
	_, err = f.catalog.Seats(ctx, sc.ID)
	assert.True(t, errors.Is(err, repository.ErrScreenNotFound))
	err = f.catalog.DeleteTheatre(ctx, admin, th.ID)
	assert.True(t, errors.Is(err, repository.ErrTheatreNotFound))
}

func TestPolicyFor(t *testing.T) {
	p, err := PolicyFor(5, model.RoleTheatreOwner)
	require.NoError(t, err)
	assert.Equal(t, repository.OwnerScope(5), p.VisibleScope())
	assert.True(t, p.CanManageTheatre(5))
	assert.False(t, p.CanManageTheatre(6))
	assert.True(t, p.CanModifyBooking(&model.Booking{UserID: 5}))

	p, err = PolicyFor(7, model.RoleCustomer)
	require.NoError(t, err)
	assert.Equal(t, repository.CustomerScope(7), p.VisibleScope())
	assert.False(t, p.CanManageTheatre(7))
	assert.False(t, p.CanModifyBooking(&model.Booking{UserID: 8}))

	p, err = PolicyFor(1, model.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, repository.AllScope(), p.VisibleScope())
	assert.True(t, p.CanModifyBooking(&model.Booking{UserID: 8}))

	_, err = PolicyFor(0, model.RoleAdmin)
	assert.True(t, errors.Is(err, repository.ErrForbidden))
	_, err = PolicyFor(3, "ROOT")
	assert.True(t, errors.Is(err, repository.ErrForbidden))
}

type stubDashboardStore struct {
	scopes  []repository.Scope
	windows []repository.BookingWindow
	fail    error
}

func (s *stubDashboardStore) CountTheatres(_ context.Context, scope repository.Scope) (int64, error) {
	if !scope.SeesTheatres() {
		return 0, nil
	}
	return 3, s.fail
}

func (s *stubDashboardStore) CountShows(_ context.Context, scope repository.Scope) (int64, error) {
	if !scope.SeesTheatres() {
		return 0, nil
	}
	return 12, nil
}

func (s *stubDashboardStore) CountUsers(_ context.Context, scope repository.Scope) (int64, error) {
	if !scope.SeesUsers() {
		return 0, nil
	}
	return 40, nil
}

func (s *stubDashboardStore) CountMovies(context.Context) (int64, error) { return 8, nil }

func (s *stubDashboardStore) Bookings(_ context.Context, _ repository.Scope, w repository.BookingWindow) (repository.BookingAggregate, error) {
	switch {
	case w.From != nil && w.Status == model.BookingConfirmed:
		return repository.BookingAggregate{Count: 1, AmountCents: 500}, nil
	case w.From != nil:
		return repository.BookingAggregate{Count: 2, AmountCents: 900}, nil
	case w.Status == model.BookingConfirmed:
		return repository.BookingAggregate{Count: 4, AmountCents: 1600}, nil
	case w.Status == model.BookingPending:
		return repository.BookingAggregate{Count: 1, AmountCents: 200}, nil
	case w.Status == model.BookingCancelled:
		return repository.BookingAggregate{Count: 2, AmountCents: 400}, nil
	}
	return repository.BookingAggregate{Count: 7, AmountCents: 2200}, nil
}

func (s *stubDashboardStore) TheatreRevenue(_ context.Context, scope repository.Scope, limit int) ([]repository.TheatreRevenue, error) {
	s.scopes = append(s.scopes, scope)
	return []repository.TheatreRevenue{
		{Theatre: model.Theatre{ID: 2, Name: "Grand"}, TotalBookings: 5, RevenueCents: 1200},
		{Theatre: model.Theatre{ID: 1, Name: "Roxy"}, TotalBookings: 2, RevenueCents: 400},
	}, nil
}

func (s *stubDashboardStore) TopMovies(_ context.Context, limit int) ([]repository.MovieBookings, error) {
	return []repository.MovieBookings{{MovieID: 9, Title: "Dune", BookingCount: 6}}, nil
}

func TestDashboardStats(t *testing.T) {
	store := &stubDashboardStore{}
	d := NewDashboard(store, memBookings{newMemDB()})
	now := time.Date(2024, 5, 17, 9, 0, 0, 0, time.UTC)

	st, err := d.Stats(context.Background(), AdminPolicy{ID: 1}, now)
	require.NoError(t, err)
	assert.Equal(t, Overview{TotalTheatres: 3, TotalShows: 12, TotalBookings: 7, TotalRevenue: 1600, TotalUsers: 40, TotalMovies: 8}, st.Overview)
	assert.Equal(t, RevenueStats{Today: 500, ThisMonth: 500, LastMonth: 500}, st.Revenue)
	assert.Equal(t, BookingStats{Today: 2, ThisMonth: 2, Pending: 1, Confirmed: 4, Cancelled: 2}, st.Bookings)
	assert.True(t, st.UserRole.IsAdmin)

	st, err = d.Stats(context.Background(), CustomerPolicy{ID: 4}, now)
	require.NoError(t, err)
	assert.Zero(t, st.Overview.TotalTheatres)
	assert.Zero(t, st.Overview.TotalUsers)
	assert.True(t, st.UserRole.IsCustomer)
	assert.False(t, st.UserRole.IsAdmin)

	store.fail = errors.New("db down")
	_, err = d.Stats(context.Background(), AdminPolicy{ID: 1}, now)
	assert.Error(t, err)
}

func TestRoleDashboards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.bookings.Create(ctx, f.alice, f.show.ID, f.ids("A1"))
	require.NoError(t, err)

	store := &stubDashboardStore{}
	d := NewDashboard(store, memBookings{f.db})

	od, err := d.TheatreOwner(ctx, TheatreOwnerPolicy{ID: f.owner})
	require.NoError(t, err)
	assert.Len(t, od.Theatres, 2)
	assert.Equal(t, uint64(1200), od.TheatreStats[0].RevenueCents)
	assert.Len(t, od.RecentBookings, 1)
	assert.Equal(t, repository.OwnerScope(f.owner), store.scopes[0])

	_, err = d.TheatreOwner(ctx, CustomerPolicy{ID: f.alice})
	assert.True(t, errors.Is(err, repository.ErrForbidden))

	ad, err := d.Admin(ctx, AdminPolicy{ID: f.admin})
	require.NoError(t, err)
	assert.Len(t, ad.RecentBookings, 1)
	assert.Len(t, ad.TopTheatres, 2)
	assert.Equal(t, []MovieStat{{MovieID: 9, Title: "Dune", BookingCount: 6}}, ad.TopMovies)

	_, err = d.Admin(ctx, TheatreOwnerPolicy{ID: f.owner})
	assert.True(t, errors.Is(err, repository.ErrForbidden))
}

func TestUnavailableSeats(t *testing.T) {
	err := errors.Wrap(&SeatUnavailableError{IDs: []uint64{3, 4}}, "lock")
	assert.True(t, errors.Is(err, ErrSeatUnavailable))
	assert.Equal(t, []uint64{3, 4}, UnavailableSeats(err))
	assert.Nil(t, UnavailableSeats(ErrInvalidInput))
}
