package model

import (
	"strings"
	"time"
)

// SeatTier is the pricing class of a physical seat.
type SeatTier string

const (
	TierSilver   SeatTier = "SILVER"
	TierGold     SeatTier = "GOLD"
	TierPlatinum SeatTier = "PLATINUM"
)

// ParseSeatTier normalizes a tier name.  The second return value is
// false for unknown tiers.
func ParseSeatTier(s string) (SeatTier, bool) {
	switch t := SeatTier(strings.ToUpper(strings.TrimSpace(s))); t {
	case TierSilver, TierGold, TierPlatinum:
		return t, true
	}
	return "", false
}

// Seat describes a physical seat on a screen.  Seats are uniquely
// identified by their screen, row label and seat label.
//
// Fields:
//
//	ID        – primary key identifier.
//	ScreenID  – screen to which this seat belongs.
//	RowLabel  – row designation, e.g. "A" or "11".
//	SeatLabel – position within the row, e.g. "1".
//	Tier      – SILVER, GOLD or PLATINUM.
//	CreatedAt – creation timestamp.
type Seat struct {
	ID        uint64    `json:"id"`         // seats.id
	ScreenID  uint64    `json:"screen_id"`  // seats.screen_id
	RowLabel  string    `json:"row_label"`  // seats.row_label
	SeatLabel string    `json:"seat_label"` // seats.seat_label
	Tier      SeatTier  `json:"tier"`       // seats.tier
	CreatedAt time.Time `json:"created_at"` // seats.created_at
}
