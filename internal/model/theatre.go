package model

import "time"

// Theatre is a venue operated by a theatre owner.  A theatre contains
// one or more screens.
//
// Fields:
//
//	ID        – primary key identifier.
//	OwnerID   – user with the theatre owner role that operates the venue.
//	Name      – display name.
//	Address   – street address.
//	City      – city used for browsing.
//	CreatedAt – creation timestamp.
type Theatre struct {
	ID        uint64    `json:"id"`         // theatres.id
	OwnerID   uint64    `json:"owner_id"`   // theatres.owner_id
	Name      string    `json:"name"`       // theatres.name
	Address   string    `json:"address"`    // theatres.address
	City      string    `json:"city"`       // theatres.city
	CreatedAt time.Time `json:"created_at"` // theatres.created_at
}

// Screen is an auditorium inside a theatre.  Physical seats belong to
// exactly one screen.
type Screen struct {
	ID        uint64    `json:"id"`         // screens.id
	TheatreID uint64    `json:"theatre_id"` // screens.theatre_id
	Name      string    `json:"name"`       // screens.name
	Capacity  uint32    `json:"capacity"`   // screens.capacity
	CreatedAt time.Time `json:"created_at"` // screens.created_at
}
