package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/movie-ticket-booking/internal/model"
	"github.com/iliyamo/movie-ticket-booking/internal/observability"
	"github.com/iliyamo/movie-ticket-booking/internal/queue"
	"github.com/iliyamo/movie-ticket-booking/internal/repository"
)

const (
	ReasonCustomer = "customer"
	ReasonExpired  = "expired"

	publishTimeout = 5 * time.Second
)

// BookingDeps wires a Bookings service.  Events and Log may be nil.
type BookingDeps struct {
	Tx       TxRunner
	Ledger   *Ledger
	Seats    ShowSeatStore
	Bookings BookingStore
	Shows    ShowStore
	Users    UserStore
	Events   EventPublisher
	Log      logrus.FieldLogger
	Now      func() time.Time
}

// Bookings aggregates show seats into a purchase and drives the booking
// state machine PENDING -> CONFIRMED -> CANCELLED.  Seat status always
// changes in the same transaction as the booking row.
type Bookings struct {
	tx       TxRunner
	ledger   *Ledger
	seats    ShowSeatStore
	bookings BookingStore
	shows    ShowStore
	users    UserStore
	events   EventPublisher
	log      logrus.FieldLogger
	now      func() time.Time
}

func NewBookings(d BookingDeps) *Bookings {
	b := &Bookings{
		tx: d.Tx, ledger: d.Ledger, seats: d.Seats, bookings: d.Bookings,
		shows: d.Shows, users: d.Users, events: d.Events, log: d.Log, now: d.Now,
	}
	if b.events == nil {
		b.events = NopPublisher{}
	}
	if b.log == nil {
		b.log = observability.Discard()
	}
	if b.now == nil {
		b.now = utcNow
	}
	return b
}

// Create books showSeatIDs of showID for userID.  The booking starts
// PENDING and its seats are LOCKED with the booking as holder until the
// lock TTL passes.  Stale locks found on the requested seats are
// reclaimed first, cancelling the booking that held them.
func (s *Bookings) Create(ctx context.Context, userID, showID uint64, showSeatIDs []uint64) (*model.Booking, error) {
	ids := dedupe(showSeatIDs)
	if len(ids) == 0 {
		return nil, errors.Wrap(ErrInvalidInput, "at least one seat is required")
	}
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return nil, errors.Wrapf(err, "load user %d", userID)
	}

	var (
		booking *model.Booking
		expired []queue.BookingEvent
	)
	err := s.tx.WithTx(ctx, func(tx *sql.Tx) error {
		expired = expired[:0]
		show, err := s.shows.GetByIDTx(ctx, tx, showID)
		if err != nil {
			return errors.Wrapf(err, "load show %d", showID)
		}
		rows, err := s.ledger.loadTx(ctx, tx, show.ID, ids)
		if err != nil {
			return err
		}

		now := s.now()
		stale := map[uint64][]model.ShowSeat{}
		for _, r := range rows {
			if r.LockExpired(now) && r.LockedBy != nil {
				stale[*r.LockedBy] = append(stale[*r.LockedBy], r)
			}
		}
		for holder, held := range stale {
			ev, err := s.expireTx(ctx, tx, show.ID, holder, held, now)
			if err != nil {
				return err
			}
			if ev != nil {
				expired = append(expired, *ev)
			}
		}

		b := &model.Booking{
			UserID:   userID,
			ShowID:   show.ID,
			Status:   model.BookingPending,
			BookedAt: now,
		}
		byID := make(map[uint64]model.ShowSeat, len(rows))
		for _, r := range rows {
			byID[r.ID] = r
		}
		for _, id := range ids {
			price := byID[id].PriceCents
			b.TotalAmountCents += uint64(price)
			b.Seats = append(b.Seats, model.BookingSeat{ShowSeatID: id, PriceCents: price})
		}
		if err := s.bookings.CreateTx(ctx, tx, b); err != nil {
			return errors.Wrap(err, "create booking")
		}
		if _, err := s.ledger.LockTx(ctx, tx, show.ID, ids, b.ID); err != nil {
			return err
		}
		b.UpdatedAt = now
		booking = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, ev := range expired {
		s.publish(ctx, ev)
	}
	observability.BookingTransitions.WithLabelValues(string(model.BookingPending)).Inc()
	s.log.WithFields(logrus.Fields{
		"booking_id": booking.ID,
		"show_id":    booking.ShowID,
		"seats":      len(booking.Seats),
	}).Info("booking created")
	return booking, nil
}

// Confirm records a successful payment: the booking moves to CONFIRMED
// and its seats to BOOKED.  Only PENDING bookings whose locks are
// still valid can be confirmed.
func (s *Bookings) Confirm(ctx context.Context, bookingID uint64, transactionID string) (*model.Booking, error) {
	if transactionID == "" {
		return nil, errors.Wrap(ErrInvalidInput, "transaction id is required")
	}
	var booking *model.Booking
	err := s.tx.WithTx(ctx, func(tx *sql.Tx) error {
		b, err := s.lockBookingTx(ctx, tx, bookingID)
		if err != nil {
			return errors.Wrapf(err, "load booking %d", bookingID)
		}
		if !b.Status.CanTransitionTo(model.BookingConfirmed) {
			return errors.Wrapf(ErrInvalidStateTransition, "booking %d is %s", b.ID, b.Status)
		}
		if err := s.ledger.ConfirmTx(ctx, tx, b.ShowID, b.ShowSeatIDs(), b.ID); err != nil {
			return err
		}
		txn := transactionID
		if err := s.bookings.UpdateStatusTx(ctx, tx, b.ID, b.Status, model.BookingConfirmed, &txn); err != nil {
			return s.conflict(err, b)
		}
		b.Status = model.BookingConfirmed
		b.TransactionID = &txn
		b.UpdatedAt = s.now()
		booking = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	observability.BookingTransitions.WithLabelValues(string(model.BookingConfirmed)).Inc()
	s.publish(ctx, bookingEvent(booking, queue.QueueBookingConfirmed, "", booking.UpdatedAt))
	return booking, nil
}

// Cancel cancels a PENDING or CONFIRMED booking and returns its seats
// to AVAILABLE.  Cancelling a cancelled booking is an invalid transition.
func (s *Bookings) Cancel(ctx context.Context, bookingID uint64, reason string) (*model.Booking, error) {
	if reason == "" {
		reason = ReasonCustomer
	}
	var booking *model.Booking
	err := s.tx.WithTx(ctx, func(tx *sql.Tx) error {
		b, err := s.lockBookingTx(ctx, tx, bookingID)
		if err != nil {
			return errors.Wrapf(err, "load booking %d", bookingID)
		}
		if !b.Status.CanTransitionTo(model.BookingCancelled) {
			return errors.Wrapf(ErrInvalidStateTransition, "booking %d is %s", b.ID, b.Status)
		}
		switch b.Status {
		case model.BookingPending:
			err = s.ledger.ReleaseTx(ctx, tx, b.ShowID, b.ShowSeatIDs(), b.ID)
		case model.BookingConfirmed:
			err = s.ledger.RevokeTx(ctx, tx, b.ShowID, b.ShowSeatIDs())
		}
		if err != nil {
			return err
		}
		if err := s.bookings.UpdateStatusTx(ctx, tx, b.ID, b.Status, model.BookingCancelled, nil); err != nil {
			return s.conflict(err, b)
		}
		b.Status = model.BookingCancelled
		b.UpdatedAt = s.now()
		booking = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	observability.BookingTransitions.WithLabelValues(string(model.BookingCancelled)).Inc()
	s.publish(ctx, bookingEvent(booking, queue.QueueBookingCancelled, reason, booking.UpdatedAt))
	return booking, nil
}

// Get returns a booking visible to p.
func (s *Bookings) Get(ctx context.Context, p Policy, bookingID uint64) (*model.Booking, error) {
	b, err := s.bookings.GetScoped(ctx, bookingID, p.VisibleScope())
	if err != nil {
		return nil, errors.Wrapf(err, "get booking %d", bookingID)
	}
	return b, nil
}

// List returns the most recent bookings visible to p.
func (s *Bookings) List(ctx context.Context, p Policy, limit int) ([]model.Booking, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	list, err := s.bookings.ListScoped(ctx, p.VisibleScope(), limit)
	if err != nil {
		return nil, errors.Wrap(err, "list bookings")
	}
	return list, nil
}

// ExpireLocks reclaims up to limit LOCKED seats whose lock has lapsed
// and cancels the PENDING bookings that held them.  It returns the
// number of seats made AVAILABLE.
func (s *Bookings) ExpireLocks(ctx context.Context, limit int) (int, error) {
	var (
		reclaimed int
		events    []queue.BookingEvent
	)
	err := s.tx.WithTx(ctx, func(tx *sql.Tx) error {
		reclaimed, events = 0, events[:0]
		now := s.now()
		rows, err := s.seats.ExpiredLocksTx(ctx, tx, now, limit)
		if err != nil {
			return errors.Wrap(err, "select expired locks")
		}
		type key struct{ show, holder uint64 }
		groups := map[key][]model.ShowSeat{}
		var order []key
		for _, r := range rows {
			if r.LockedBy == nil {
				continue
			}
			k := key{r.ShowID, *r.LockedBy}
			if _, ok := groups[k]; !ok {
				order = append(order, k)
			}
			groups[k] = append(groups[k], r)
		}
		for _, k := range order {
			ev, err := s.expireTx(ctx, tx, k.show, k.holder, groups[k], now)
			if err != nil {
				return err
			}
			if ev != nil {
				reclaimed += len(ev.ShowSeatIDs)
				events = append(events, *ev)
			} else {
				reclaimed += len(groups[k])
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	for _, ev := range events {
		observability.BookingTransitions.WithLabelValues(string(model.BookingCancelled)).Inc()
		s.publish(ctx, ev)
	}
	return reclaimed, nil
}

// expireTx releases a lapsed hold.  When the holder is still a PENDING
// booking it is cancelled together with every seat it holds and the
// returned event describes it.  Holds without a pending booking are
// released seat by seat and yield no event.
func (s *Bookings) expireTx(ctx context.Context, tx *sql.Tx, showID, holder uint64, stale []model.ShowSeat, now time.Time) (*queue.BookingEvent, error) {
	b, err := s.lockBookingTx(ctx, tx, holder)
	if err != nil && !errors.Is(err, repository.ErrBookingNotFound) {
		return nil, errors.Wrapf(err, "load lock holder %d", holder)
	}
	if err != nil || b.Status != model.BookingPending {
		ids := make([]uint64, 0, len(stale))
		for _, r := range stale {
			ids = append(ids, r.ID)
		}
		if err := s.ledger.ReleaseTx(ctx, tx, showID, ids, holder); err != nil {
			return nil, errors.Wrapf(err, "release orphan locks of %d", holder)
		}
		observability.ExpiredLocksReclaimed.Add(float64(len(ids)))
		return nil, nil
	}

	held, err := s.seats.GetByIDsForUpdateTx(ctx, tx, b.ShowID, b.ShowSeatIDs())
	if err != nil {
		return nil, err
	}
	ids := make([]uint64, 0, len(held))
	for _, r := range held {
		if r.HeldBy(b.ID) {
			ids = append(ids, r.ID)
		}
	}
	if len(ids) > 0 {
		if err := s.ledger.ReleaseTx(ctx, tx, b.ShowID, ids, b.ID); err != nil {
			return nil, errors.Wrapf(err, "release expired booking %d", b.ID)
		}
	}
	if err := s.bookings.UpdateStatusTx(ctx, tx, b.ID, model.BookingPending, model.BookingCancelled, nil); err != nil {
		return nil, s.conflict(err, b)
	}
	observability.ExpiredLocksReclaimed.Add(float64(len(ids)))
	s.log.WithFields(logrus.Fields{"booking_id": b.ID, "seats": len(ids)}).Info("booking lock expired")

	b.Status = model.BookingCancelled
	b.UpdatedAt = now
	ev := bookingEvent(b, queue.QueueBookingCancelled, ReasonExpired, now)
	ev.ShowSeatIDs = ids
	return &ev, nil
}

// lockBookingTx locks the show seats of a booking and then the booking
// row.  Every transaction that writes both takes its locks in this
// order, seats first, so two of them never wait on each other in a
// cycle.  The booking is read unlocked first only to learn its seats.
func (s *Bookings) lockBookingTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Booking, error) {
	b, err := s.bookings.GetTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.seats.GetByIDsForUpdateTx(ctx, tx, b.ShowID, b.ShowSeatIDs()); err != nil {
		return nil, err
	}
	return s.bookings.GetForUpdateTx(ctx, tx, id)
}

// conflict turns a lost conditional update into an invalid transition.
func (s *Bookings) conflict(err error, b *model.Booking) error {
	if errors.Is(err, repository.ErrConflict) {
		return errors.Wrapf(ErrInvalidStateTransition, "booking %d changed concurrently", b.ID)
	}
	return errors.Wrapf(err, "update booking %d", b.ID)
}

// publish sends ev after commit.  Failures are logged and counted but
// never fail the request that produced the event.
func (s *Bookings) publish(ctx context.Context, ev queue.BookingEvent) {
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := s.events.Publish(pctx, ev); err != nil {
		observability.EventPublishFailures.WithLabelValues(ev.Type).Inc()
		s.log.WithError(err).WithFields(logrus.Fields{
			"event":      ev.Type,
			"booking_id": ev.BookingID,
		}).Warn("publish booking event")
	}
}

func bookingEvent(b *model.Booking, typ, reason string, at time.Time) queue.BookingEvent {
	ev := queue.BookingEvent{
		Type:             typ,
		BookingID:        b.ID,
		UserID:           b.UserID,
		ShowID:           b.ShowID,
		Status:           string(b.Status),
		ShowSeatIDs:      b.ShowSeatIDs(),
		TotalAmountCents: b.TotalAmountCents,
		Reason:           reason,
		OccurredAt:       at.UTC().Format(time.RFC3339),
	}
	if b.TransactionID != nil {
		ev.TransactionID = *b.TransactionID
	}
	return ev
}

func dedupe(ids []uint64) []uint64 {
	out := make([]uint64, 0, len(ids))
	seen := make(map[uint64]struct{}, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
