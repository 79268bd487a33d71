package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/iliyamo/movie-ticket-booking/internal/model"
	"github.com/iliyamo/movie-ticket-booking/internal/observability"
	"github.com/iliyamo/movie-ticket-booking/internal/repository"
)

// Ledger owns the per-show seat lifecycle AVAILABLE -> LOCKED -> BOOKED.
// Every batch operation is all or none: rows are read FOR UPDATE and the
// conditional update must touch exactly the requested rows, otherwise
// the surrounding transaction is rolled back by the caller.
type Ledger struct {
	tx      TxRunner
	seats   ShowSeatStore
	lockTTL time.Duration
	now     func() time.Time
}

// NewLedger returns a Ledger whose locks last lockTTL.  A nil clock
// uses the wall clock in UTC.
func NewLedger(tx TxRunner, seats ShowSeatStore, lockTTL time.Duration, now func() time.Time) *Ledger {
	if now == nil {
		now = utcNow
	}
	return &Ledger{tx: tx, seats: seats, lockTTL: lockTTL, now: now}
}

// LockTTL is the lifetime of a seat lock.
func (l *Ledger) LockTTL() time.Duration { return l.lockTTL }

// CreateForShowTx creates one AVAILABLE ledger row per physical seat.
// The price is the tier override when present, else the show's base
// price.
func (l *Ledger) CreateForShowTx(ctx context.Context, tx *sql.Tx, show *model.Show, seats []model.Seat, tierPrices map[model.SeatTier]uint32) ([]model.ShowSeat, error) {
	rows := make([]model.ShowSeat, 0, len(seats))
	for _, s := range seats {
		price := show.BasePriceCents
		if p, ok := tierPrices[s.Tier]; ok && p > 0 {
			price = p
		}
		rows = append(rows, model.ShowSeat{
			ShowID:     show.ID,
			SeatID:     s.ID,
			Status:     model.ShowSeatAvailable,
			PriceCents: price,
			RowLabel:   s.RowLabel,
			SeatLabel:  s.SeatLabel,
			Tier:       s.Tier,
		})
	}
	if err := l.seats.InsertBulkTx(ctx, tx, rows); err != nil {
		return nil, errors.Wrapf(err, "create ledger for show %d", show.ID)
	}
	return rows, nil
}

// ExtendShowTx adds AVAILABLE rows for seats installed after show was
// scheduled.  Each new seat sells at the price its tier already has in
// the show, or at the base price for a tier the show has not seen.
func (l *Ledger) ExtendShowTx(ctx context.Context, tx *sql.Tx, show *model.Show, seats []model.Seat) ([]model.ShowSeat, error) {
	if len(seats) == 0 {
		return nil, nil
	}
	prices, err := l.seats.TierPricesTx(ctx, tx, show.ID)
	if err != nil {
		return nil, errors.Wrapf(err, "tier prices of show %d", show.ID)
	}
	return l.CreateForShowTx(ctx, tx, show, seats, prices)
}

// Lock moves every id from AVAILABLE to LOCKED for holder in its own
// transaction.
func (l *Ledger) Lock(ctx context.Context, showID uint64, ids []uint64, holder uint64) (time.Time, error) {
	var until time.Time
	err := l.tx.WithTx(ctx, func(tx *sql.Tx) error {
		var err error
		until, err = l.LockTx(ctx, tx, showID, ids, holder)
		return err
	})
	return until, err
}

// LockTx moves every id from AVAILABLE to LOCKED for holder and returns
// the lock expiry.  Ids outside the show yield ErrSeatNotFound; seats in
// any other status yield a SeatUnavailableError naming them.
func (l *Ledger) LockTx(ctx context.Context, tx *sql.Tx, showID uint64, ids []uint64, holder uint64) (time.Time, error) {
	rows, err := l.loadTx(ctx, tx, showID, ids)
	if err != nil {
		return time.Time{}, err
	}
	var busy []uint64
	for _, r := range rows {
		if r.Status != model.ShowSeatAvailable {
			busy = append(busy, r.ID)
		}
	}
	if len(busy) > 0 {
		observability.SeatLockConflicts.Inc()
		return time.Time{}, &SeatUnavailableError{IDs: busy}
	}

	until := l.now().Add(l.lockTTL)
	h := holder
	n, err := l.seats.TransitionTx(ctx, tx, repository.Transition{
		ShowID: showID, IDs: ids,
		From: model.ShowSeatAvailable, To: model.ShowSeatLocked,
		Holder: &h, LockedUntil: &until,
	})
	if err != nil {
		return time.Time{}, err
	}
	if int(n) != len(ids) {
		observability.SeatLockConflicts.Inc()
		return time.Time{}, &SeatUnavailableError{IDs: ids}
	}
	return until, nil
}

// ReleaseTx moves holder's LOCKED seats back to AVAILABLE.
func (l *Ledger) ReleaseTx(ctx context.Context, tx *sql.Tx, showID uint64, ids []uint64, holder uint64) error {
	h := holder
	n, err := l.seats.TransitionTx(ctx, tx, repository.Transition{
		ShowID: showID, IDs: ids,
		From: model.ShowSeatLocked, To: model.ShowSeatAvailable,
		Holder: &h,
	})
	if err != nil {
		return err
	}
	if int(n) != len(ids) {
		return &SeatUnavailableError{IDs: ids}
	}
	return nil
}

// ConfirmTx moves holder's LOCKED seats to BOOKED.  A lock that has
// expired, or is held by someone else, yields a SeatUnavailableError.
func (l *Ledger) ConfirmTx(ctx context.Context, tx *sql.Tx, showID uint64, ids []uint64, holder uint64) error {
	rows, err := l.loadTx(ctx, tx, showID, ids)
	if err != nil {
		return err
	}
	now := l.now()
	var lost []uint64
	for _, r := range rows {
		if !r.HeldBy(holder) || r.LockExpired(now) {
			lost = append(lost, r.ID)
		}
	}
	if len(lost) > 0 {
		return &SeatUnavailableError{IDs: lost}
	}
	h := holder
	n, err := l.seats.TransitionTx(ctx, tx, repository.Transition{
		ShowID: showID, IDs: ids,
		From: model.ShowSeatLocked, To: model.ShowSeatBooked,
		Holder: &h,
	})
	if err != nil {
		return err
	}
	if int(n) != len(ids) {
		return &SeatUnavailableError{IDs: ids}
	}
	return nil
}

// RevokeTx returns BOOKED seats to AVAILABLE when a confirmed booking
// is cancelled.
func (l *Ledger) RevokeTx(ctx context.Context, tx *sql.Tx, showID uint64, ids []uint64) error {
	n, err := l.seats.TransitionTx(ctx, tx, repository.Transition{
		ShowID: showID, IDs: ids,
		From: model.ShowSeatBooked, To: model.ShowSeatAvailable,
	})
	if err != nil {
		return err
	}
	if int(n) != len(ids) {
		return errors.Wrapf(ErrInvalidStateTransition, "revoke %d of %d seats", n, len(ids))
	}
	return nil
}

// Available lists the AVAILABLE seats of a show.
func (l *Ledger) Available(ctx context.Context, showID uint64) ([]model.ShowSeat, error) {
	return l.seats.ListByShow(ctx, showID, model.ShowSeatAvailable)
}

// SeatMap lists every seat of a show with its status.
func (l *Ledger) SeatMap(ctx context.Context, showID uint64) ([]model.ShowSeat, error) {
	return l.seats.ListByShow(ctx, showID, "")
}

// loadTx reads ids FOR UPDATE and reports any that are not part of the show.
func (l *Ledger) loadTx(ctx context.Context, tx *sql.Tx, showID uint64, ids []uint64) ([]model.ShowSeat, error) {
	if len(ids) == 0 {
		return nil, errors.Wrap(ErrInvalidInput, "no seats requested")
	}
	rows, err := l.seats.GetByIDsForUpdateTx(ctx, tx, showID, ids)
	if err != nil {
		return nil, err
	}
	if len(rows) != len(ids) {
		found := make(map[uint64]bool, len(rows))
		for _, r := range rows {
			found[r.ID] = true
		}
		var missing []uint64
		for _, id := range ids {
			if !found[id] {
				missing = append(missing, id)
			}
		}
		return nil, errors.Wrapf(repository.ErrSeatNotFound, "show %d has no seats %v", showID, missing)
	}
	return rows, nil
}
