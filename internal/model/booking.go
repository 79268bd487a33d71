package model

import "time"

// BookingStatus is the lifecycle state of a booking.
type BookingStatus string

const (
	BookingPending   BookingStatus = "PENDING"
	BookingConfirmed BookingStatus = "CONFIRMED"
	BookingCancelled BookingStatus = "CANCELLED"
)

// CanTransitionTo reports whether a booking may move from s to next.
// CANCELLED is terminal.
func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	switch s {
	case BookingPending:
		return next == BookingConfirmed || next == BookingCancelled
	case BookingConfirmed:
		return next == BookingCancelled
	}
	return false
}

// Booking records a user's purchase attempt for a set of seats of one
// show.  A show seat is BOOKED iff it belongs to a CONFIRMED booking.
//
// Fields:
//
//	ID               – primary key identifier.
//	UserID           – user who made the booking.
//	ShowID           – show being booked.
//	Status           – PENDING, CONFIRMED or CANCELLED.
//	TotalAmountCents – sum of the seat prices at creation.
//	TransactionID    – opaque payment reference (nullable).
//	BookedAt         – creation timestamp.
//	UpdatedAt        – last update timestamp.
//	Seats            – booked show seats with their price snapshot.
type Booking struct {
	ID               uint64        `json:"id"`                       // bookings.id
	UserID           uint64        `json:"user_id"`                  // bookings.user_id
	ShowID           uint64        `json:"show_id"`                  // bookings.show_id
	Status           BookingStatus `json:"status"`                   // bookings.status
	TotalAmountCents uint64        `json:"total_amount_cents"`       // bookings.total_amount_cents
	TransactionID    *string       `json:"transaction_id,omitempty"` // bookings.transaction_id
	BookedAt         time.Time     `json:"booked_at"`                // bookings.booked_at
	UpdatedAt        time.Time     `json:"updated_at"`               // bookings.updated_at
	Seats            []BookingSeat `json:"seats,omitempty"`
}

// BookingSeat links a booking to one show seat and snapshots its price.
type BookingSeat struct {
	BookingID  uint64 `json:"-"`            // booking_seats.booking_id
	ShowSeatID uint64 `json:"show_seat_id"` // booking_seats.show_seat_id
	PriceCents uint32 `json:"price_cents"`  // booking_seats.price_cents
}

// ShowSeatIDs returns the ids of the booked show seats in insertion order.
func (b Booking) ShowSeatIDs() []uint64 {
	ids := make([]uint64, 0, len(b.Seats))
	for _, s := range b.Seats {
		ids = append(ids, s.ShowSeatID)
	}
	return ids
}
