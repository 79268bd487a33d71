package model

import "time"

// ShowSeatStatus is the lifecycle state of a seat for one show.
type ShowSeatStatus string

const (
	ShowSeatAvailable ShowSeatStatus = "AVAILABLE"
	ShowSeatLocked    ShowSeatStatus = "LOCKED"
	ShowSeatBooked    ShowSeatStatus = "BOOKED"
)

// CanTransitionTo reports whether the ledger permits moving from s to
// next.  BOOKED -> AVAILABLE is the refund path of a cancelled
// confirmed booking.
func (s ShowSeatStatus) CanTransitionTo(next ShowSeatStatus) bool {
	switch s {
	case ShowSeatAvailable:
		return next == ShowSeatLocked
	case ShowSeatLocked:
		return next == ShowSeatBooked || next == ShowSeatAvailable
	case ShowSeatBooked:
		return next == ShowSeatAvailable
	}
	return false
}

// ShowSeat links a seat to a particular show and tracks availability,
// pricing and the current lock holder.  There is one show_seat record
// for every seat on the screen once the show is created.
//
// Fields:
//
//	ID          – primary key identifier.
//	ShowID      – the show to which this seat belongs.
//	SeatID      – the physical seat.
//	Status      – AVAILABLE, LOCKED or BOOKED.
//	PriceCents  – price in cents for this seat in this show.
//	LockedBy    – booking holding the lock (nullable).
//	LockedUntil – lock expiry (nullable).
//	Version     – bumped on every status change.
//	RowLabel, SeatLabel, Tier – copied from the seat when joined.
type ShowSeat struct {
	ID          uint64         `json:"id"`                     // show_seats.id
	ShowID      uint64         `json:"show_id"`                // show_seats.show_id
	SeatID      uint64         `json:"seat_id"`                // show_seats.seat_id
	Status      ShowSeatStatus `json:"status"`                 // show_seats.status
	PriceCents  uint32         `json:"price_cents"`            // show_seats.price_cents
	LockedBy    *uint64        `json:"-"`                      // show_seats.locked_by
	LockedUntil *time.Time     `json:"locked_until,omitempty"` // show_seats.locked_until
	Version     uint32         `json:"-"`                      // show_seats.version
	RowLabel    string         `json:"row_label,omitempty"`
	SeatLabel   string         `json:"seat_label,omitempty"`
	Tier        SeatTier       `json:"tier,omitempty"`
}

// LockExpired reports whether a LOCKED seat's hold has lapsed at now.
func (s ShowSeat) LockExpired(now time.Time) bool {
	return s.Status == ShowSeatLocked && s.LockedUntil != nil && !now.Before(*s.LockedUntil)
}

// HeldBy reports whether the seat is locked by the given holder.
func (s ShowSeat) HeldBy(holder uint64) bool {
	return s.Status == ShowSeatLocked && s.LockedBy != nil && *s.LockedBy == holder
}
