// Package queue defines the booking events exchanged over RabbitMQ and
// the publisher and consumer that move them.
package queue

const (
	// QueueBookingConfirmed receives an event for every confirmed booking.
	QueueBookingConfirmed = "booking.confirmed"
	// QueueBookingCancelled receives an event for every cancelled or expired booking.
	QueueBookingCancelled = "booking.cancelled"
)

// BookingEvent is published when a booking is confirmed or cancelled.
// It carries enough for downstream consumers to log, notify or feed
// analytics without querying the primary database.
type BookingEvent struct {
	Type             string   `json:"type"` // queue name the event was routed to
	BookingID        uint64   `json:"booking_id"`
	UserID           uint64   `json:"user_id"`
	ShowID           uint64   `json:"show_id"`
	Status           string   `json:"status"`
	ShowSeatIDs      []uint64 `json:"show_seat_ids"`
	TotalAmountCents uint64   `json:"total_amount_cents"`
	TransactionID    string   `json:"transaction_id,omitempty"`
	Reason           string   `json:"reason,omitempty"` // "customer", "expired"
	OccurredAt       string   `json:"occurred_at"`      // RFC3339 UTC
}
