package model

import "time"

// Show is a scheduled screening of a movie on a screen at a date and
// time.  A screen hosts at most one show per date and time.
//
// Fields:
//
//	ID             – primary key identifier.
//	MovieID        – movie being screened.
//	ScreenID       – screen hosting the show.
//	ShowDate       – calendar date (UTC midnight).
//	ShowTime       – wall clock start time formatted "15:04".
//	BasePriceCents – default seat price used when no tier price is given.
//	CreatedAt      – creation timestamp.
type Show struct {
	ID             uint64    `json:"id"`               // shows.id
	MovieID        uint64    `json:"movie_id"`         // shows.movie_id
	ScreenID       uint64    `json:"screen_id"`        // shows.screen_id
	ShowDate       time.Time `json:"show_date"`        // shows.show_date
	ShowTime       string    `json:"show_time"`        // shows.show_time
	BasePriceCents uint32    `json:"base_price_cents"` // shows.base_price_cents
	CreatedAt      time.Time `json:"created_at"`       // shows.created_at
}
