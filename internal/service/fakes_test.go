package service

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/iliyamo/movie-ticket-booking/internal/model"
	"github.com/iliyamo/movie-ticket-booking/internal/queue"
	"github.com/iliyamo/movie-ticket-booking/internal/repository"
)

// memState is the whole fake database.  Values are copied in and out so
// a snapshot taken at the start of a transaction can be restored on
// rollback.
type memState struct {
	nextID    uint64
	users     map[uint64]model.User
	movies    map[uint64]model.Movie
	theatres  map[uint64]model.Theatre
	screens   map[uint64]model.Screen
	seats     map[uint64]model.Seat
	shows     map[uint64]model.Show
	showSeats map[uint64]model.ShowSeat
	bookings  map[uint64]model.Booking
}

func (s memState) clone() memState {
	c := s
	c.users = cloneMap(s.users)
	c.movies = cloneMap(s.movies)
	c.theatres = cloneMap(s.theatres)
	c.screens = cloneMap(s.screens)
	c.seats = cloneMap(s.seats)
	c.shows = cloneMap(s.shows)
	c.showSeats = cloneMap(s.showSeats)
	c.bookings = cloneMap(s.bookings)
	return c
}

func cloneMap[V any](m map[uint64]V) map[uint64]V {
	out := make(map[uint64]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// memDB implements every store the services use.  WithTx holds the
// mutex for the whole transaction, which gives the same serialization
// as row locks taken FOR UPDATE.  Methods with a Tx suffix expect the
// mutex to be held already.
type memDB struct {
	mu sync.Mutex
	memState
}

func newMemDB() *memDB {
	return &memDB{memState: memState{
		users:     map[uint64]model.User{},
		movies:    map[uint64]model.Movie{},
		theatres:  map[uint64]model.Theatre{},
		screens:   map[uint64]model.Screen{},
		seats:     map[uint64]model.Seat{},
		shows:     map[uint64]model.Show{},
		showSeats: map[uint64]model.ShowSeat{},
		bookings:  map[uint64]model.Booking{},
	}}
}

func (m *memDB) id() uint64 {
	m.nextID++
	return m.nextID
}

func (m *memDB) WithTx(_ context.Context, fn func(tx *sql.Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := m.memState.clone()
	if err := fn(nil); err != nil {
		m.memState = snap
		return err
	}
	return nil
}

func (m *memDB) addUser(role model.Role) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.id()
	m.users[id] = model.User{ID: id, Email: "u@example.com", Role: role, IsActive: true}
	return id
}

func (m *memDB) showSeat(id uint64) model.ShowSeat {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.showSeats[id]
}

func (m *memDB) booking(id uint64) model.Booking {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bookings[id]
}

// users

func (m *memDB) GetByID(_ context.Context, id uint64) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return &u, nil
}

// show seats

type memShowSeats struct{ *memDB }

func (m memShowSeats) InsertBulkTx(_ context.Context, _ *sql.Tx, rows []model.ShowSeat) error {
	for _, r := range rows {
		for _, ss := range m.showSeats {
			if ss.ShowID == r.ShowID && ss.SeatID == r.SeatID {
				return repository.ErrDuplicateEntry
			}
		}
	}
	for i := range rows {
		rows[i].ID = m.id()
		m.showSeats[rows[i].ID] = rows[i]
	}
	return nil
}

func (m memShowSeats) GetByIDsForUpdateTx(_ context.Context, _ *sql.Tx, showID uint64, ids []uint64) ([]model.ShowSeat, error) {
	var out []model.ShowSeat
	for _, id := range ids {
		if ss, ok := m.showSeats[id]; ok && ss.ShowID == showID {
			out = append(out, ss)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m memShowSeats) TransitionTx(_ context.Context, _ *sql.Tx, t repository.Transition) (int64, error) {
	var n int64
	for _, id := range t.IDs {
		ss, ok := m.showSeats[id]
		if !ok || ss.ShowID != t.ShowID || ss.Status != t.From {
			continue
		}
		if t.From == model.ShowSeatLocked && t.Holder != nil && (ss.LockedBy == nil || *ss.LockedBy != *t.Holder) {
			continue
		}
		ss.Status = t.To
		if t.To == model.ShowSeatLocked {
			h, u := *t.Holder, *t.LockedUntil
			ss.LockedBy, ss.LockedUntil = &h, &u
		} else {
			ss.LockedBy, ss.LockedUntil = nil, nil
		}
		ss.Version++
		m.showSeats[id] = ss
		n++
	}
	return n, nil
}

func (m memShowSeats) ExpiredLocksTx(_ context.Context, _ *sql.Tx, now time.Time, limit int) ([]model.ShowSeat, error) {
	var out []model.ShowSeat
	for _, ss := range m.showSeats {
		if ss.Status == model.ShowSeatLocked && ss.LockedUntil != nil && !ss.LockedUntil.After(now) {
			out = append(out, ss)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m memShowSeats) TierPricesTx(_ context.Context, _ *sql.Tx, showID uint64) (map[model.SeatTier]uint32, error) {
	out := map[model.SeatTier]uint32{}
	for _, r := range m.showSeats {
		if r.ShowID != showID {
			continue
		}
		tier := m.seats[r.SeatID].Tier
		if r.PriceCents > out[tier] {
			out[tier] = r.PriceCents
		}
	}
	return out, nil
}

func (m memShowSeats) ListByShow(_ context.Context, showID uint64, status model.ShowSeatStatus) ([]model.ShowSeat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.ShowSeat
	for _, ss := range m.showSeats {
		if ss.ShowID == showID && (status == "" || ss.Status == status) {
			out = append(out, ss)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// bookings

type memBookings struct{ *memDB }

func (m memBookings) CreateTx(_ context.Context, _ *sql.Tx, b *model.Booking) error {
	b.ID = m.id()
	for i := range b.Seats {
		b.Seats[i].BookingID = b.ID
	}
	c := *b
	c.Seats = append([]model.BookingSeat(nil), b.Seats...)
	m.bookings[b.ID] = c
	return nil
}

func (m memBookings) GetTx(_ context.Context, _ *sql.Tx, id uint64) (*model.Booking, error) {
	b, ok := m.bookings[id]
	if !ok {
		return nil, repository.ErrBookingNotFound
	}
	return &b, nil
}

func (m memBookings) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Booking, error) {
	return m.GetTx(ctx, tx, id)
}

func (m memBookings) visible(b model.Booking, scope repository.Scope) bool {
	switch scope.Kind {
	case repository.ScopeAll:
		return true
	case repository.ScopeCustomer:
		return b.UserID == scope.UserID
	case repository.ScopeOwner:
		show := m.shows[b.ShowID]
		screen := m.screens[show.ScreenID]
		return m.theatres[screen.TheatreID].OwnerID == scope.UserID
	}
	return false
}

func (m memBookings) GetScoped(_ context.Context, id uint64, scope repository.Scope) (*model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok || !m.visible(b, scope) {
		return nil, repository.ErrBookingNotFound
	}
	return &b, nil
}

func (m memBookings) ListScoped(_ context.Context, scope repository.Scope, limit int) ([]model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Booking
	for _, b := range m.bookings {
		if m.visible(b, scope) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m memBookings) UpdateStatusTx(_ context.Context, _ *sql.Tx, id uint64, from, to model.BookingStatus, txn *string) error {
	b, ok := m.bookings[id]
	if !ok || b.Status != from {
		return repository.ErrConflict
	}
	b.Status = to
	if txn != nil {
		t := *txn
		b.TransactionID = &t
	}
	m.bookings[id] = b
	return nil
}

// shows

type memShows struct{ *memDB }

func (m memShows) CreateTx(_ context.Context, _ *sql.Tx, s *model.Show) error {
	for _, o := range m.shows {
		if o.ScreenID == s.ScreenID && o.ShowDate.Equal(s.ShowDate) && o.ShowTime == s.ShowTime {
			return repository.ErrDuplicateEntry
		}
	}
	s.ID = m.id()
	m.shows[s.ID] = *s
	return nil
}

func (m memShows) GetByID(_ context.Context, id uint64) (*model.Show, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.GetByIDTx(context.Background(), nil, id)
}

func (m memShows) GetByIDTx(_ context.Context, _ *sql.Tx, id uint64) (*model.Show, error) {
	s, ok := m.shows[id]
	if !ok {
		return nil, repository.ErrShowNotFound
	}
	return &s, nil
}

func (m memShows) ListByScreenTx(_ context.Context, _ *sql.Tx, screenID uint64) ([]model.Show, error) {
	var out []model.Show
	for _, s := range m.shows {
		if s.ScreenID == screenID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m memShows) List(_ context.Context, f repository.ShowFilter) ([]model.Show, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Show
	for _, s := range m.shows {
		if f.MovieID != 0 && s.MovieID != f.MovieID {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// catalog

type memMovies struct{ *memDB }

func (m memMovies) Create(_ context.Context, mv *model.Movie) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	mv.ID = m.id()
	m.movies[mv.ID] = *mv
	return nil
}

func (m memMovies) GetByID(_ context.Context, id uint64) (*model.Movie, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mv, ok := m.movies[id]
	if !ok {
		return nil, repository.ErrMovieNotFound
	}
	return &mv, nil
}

func (m memMovies) Delete(_ context.Context, id uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.movies[id]; !ok {
		return repository.ErrMovieNotFound
	}
	for _, s := range m.shows {
		if s.MovieID == id {
			return repository.ErrInUse
		}
	}
	delete(m.movies, id)
	return nil
}

func (m memMovies) List(context.Context) ([]model.Movie, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Movie
	for _, mv := range m.movies {
		out = append(out, mv)
	}
	return out, nil
}

type memTheatres struct{ *memDB }

func (m memTheatres) Create(_ context.Context, t *model.Theatre) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t.ID = m.id()
	m.theatres[t.ID] = *t
	return nil
}

func (m memTheatres) GetByID(_ context.Context, id uint64) (*model.Theatre, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.theatres[id]
	if !ok {
		return nil, repository.ErrTheatreNotFound
	}
	return &t, nil
}

func (m memTheatres) List(_ context.Context, city string) ([]model.Theatre, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Theatre
	for _, t := range m.theatres {
		if city == "" || t.City == city {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m memTheatres) CreateScreen(_ context.Context, s *model.Screen) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.ID = m.id()
	m.screens[s.ID] = *s
	return nil
}

func (m memTheatres) GetScreen(ctx context.Context, id uint64) (*model.Screen, uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.GetScreenForUpdateTx(ctx, nil, id)
}

func (m memTheatres) GetScreenForUpdateTx(_ context.Context, _ *sql.Tx, id uint64) (*model.Screen, uint64, error) {
	s, ok := m.screens[id]
	if !ok {
		return nil, 0, repository.ErrScreenNotFound
	}
	return &s, m.theatres[s.TheatreID].OwnerID, nil
}

func (m memTheatres) Delete(_ context.Context, id uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.theatres[id]; !ok {
		return repository.ErrTheatreNotFound
	}
	for _, sh := range m.shows {
		if m.screens[sh.ScreenID].TheatreID == id {
			return repository.ErrInUse
		}
	}
	for sid, sc := range m.screens {
		if sc.TheatreID != id {
			continue
		}
		for seatID, seat := range m.seats {
			if seat.ScreenID == sid {
				delete(m.seats, seatID)
			}
		}
		delete(m.screens, sid)
	}
	delete(m.theatres, id)
	return nil
}

func (m memTheatres) ListScreens(_ context.Context, theatreID uint64) ([]model.Screen, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Screen
	for _, s := range m.screens {
		if s.TheatreID == theatreID {
			out = append(out, s)
		}
	}
	return out, nil
}

type memSeats struct{ *memDB }

func (m memSeats) CreateBulkTx(_ context.Context, _ *sql.Tx, seats []model.Seat) error {
	for _, s := range seats {
		for _, o := range m.seats {
			if o.ScreenID == s.ScreenID && o.RowLabel == s.RowLabel && o.SeatLabel == s.SeatLabel {
				return repository.ErrDuplicateEntry
			}
		}
	}
	for _, s := range seats {
		s.ID = m.id()
		m.seats[s.ID] = s
	}
	return nil
}

func (m memSeats) ListByScreen(ctx context.Context, screenID uint64) ([]model.Seat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ListByScreenTx(ctx, nil, screenID)
}

func (m memSeats) ListByScreenTx(_ context.Context, _ *sql.Tx, screenID uint64) ([]model.Seat, error) {
	var out []model.Seat
	for _, s := range m.seats {
		if s.ScreenID == screenID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// events

type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.BookingEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev queue.BookingEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type+":"+ev.Reason)
	}
	return out
}

// clock is a settable time source.
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

var errBroker = errors.New("broker unreachable")
