package model

import "time"

// Movie is a catalog entry that shows are scheduled for.  Movies are
// reference data and are not modified by the booking flow.
//
// Fields:
//
//	ID              – primary key identifier.
//	Title           – display title.
//	Description     – free-form synopsis.
//	DurationMinutes – running time in minutes.
//	Language        – spoken language.
//	Genre           – comma separated genres.
//	ReleaseDate     – theatrical release date (nullable).
//	Rating          – critic rating 0.0–10.0 with one decimal.
//	PosterURL       – artwork location.
//	TrailerURL      – trailer location.
//	CreatedAt       – creation timestamp.
type Movie struct {
	ID              uint64     `json:"id"`                     // movies.id
	Title           string     `json:"title"`                  // movies.title
	Description     string     `json:"description"`            // movies.description
	DurationMinutes uint32     `json:"duration_minutes"`       // movies.duration_minutes
	Language        string     `json:"language"`               // movies.language
	Genre           string     `json:"genre"`                  // movies.genre
	ReleaseDate     *time.Time `json:"release_date,omitempty"` // movies.release_date
	Rating          float64    `json:"rating"`                 // movies.rating
	PosterURL       string     `json:"poster_url"`             // movies.poster_url
	TrailerURL      string     `json:"trailer_url"`            // movies.trailer_url
	CreatedAt       time.Time  `json:"created_at"`             // movies.created_at
}
