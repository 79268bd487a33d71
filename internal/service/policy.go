package service

import (
	"github.com/cockroachdb/errors"

	"github.com/iliyamo/movie-ticket-booking/internal/model"
	"github.com/iliyamo/movie-ticket-booking/internal/repository"
)

// Policy decides what an authenticated caller may see and change.
// VisibleScope is rendered into SQL by the repositories.
type Policy interface {
	UserID() uint64
	Role() model.Role
	VisibleScope() repository.Scope
	CanManageTheatre(ownerID uint64) bool
	CanModifyBooking(b *model.Booking) bool
}

// AdminPolicy sees and manages everything.
type AdminPolicy struct{ ID uint64 }

func (p AdminPolicy) UserID() uint64                     { return p.ID }
func (AdminPolicy) Role() model.Role                     { return model.RoleAdmin }
func (AdminPolicy) VisibleScope() repository.Scope       { return repository.AllScope() }
func (AdminPolicy) CanManageTheatre(uint64) bool         { return true }
func (AdminPolicy) CanModifyBooking(*model.Booking) bool { return true }

// TheatreOwnerPolicy sees the theatres it owns and the shows and
// bookings on them.  Owners book seats like customers, so they may
// change their own bookings.
type TheatreOwnerPolicy struct{ ID uint64 }

func (p TheatreOwnerPolicy) UserID() uint64 { return p.ID }
func (TheatreOwnerPolicy) Role() model.Role { return model.RoleTheatreOwner }
func (p TheatreOwnerPolicy) VisibleScope() repository.Scope {
	return repository.OwnerScope(p.ID)
}
func (p TheatreOwnerPolicy) CanManageTheatre(ownerID uint64) bool { return ownerID == p.ID }
func (p TheatreOwnerPolicy) CanModifyBooking(b *model.Booking) bool {
	return b != nil && b.UserID == p.ID
}

// CustomerPolicy sees only its own bookings.
type CustomerPolicy struct{ ID uint64 }

func (p CustomerPolicy) UserID() uint64                 { return p.ID }
func (CustomerPolicy) Role() model.Role                 { return model.RoleCustomer }
func (p CustomerPolicy) VisibleScope() repository.Scope { return repository.CustomerScope(p.ID) }
func (CustomerPolicy) CanManageTheatre(uint64) bool     { return false }
func (p CustomerPolicy) CanModifyBooking(b *model.Booking) bool {
	return b != nil && b.UserID == p.ID
}

// PolicyFor builds the policy variant for an authenticated identity.
func PolicyFor(userID uint64, role model.Role) (Policy, error) {
	if userID == 0 {
		return nil, errors.Wrap(repository.ErrForbidden, "anonymous caller")
	}
	switch role {
	case model.RoleAdmin:
		return AdminPolicy{ID: userID}, nil
	case model.RoleTheatreOwner:
		return TheatreOwnerPolicy{ID: userID}, nil
	case model.RoleCustomer:
		return CustomerPolicy{ID: userID}, nil
	}
	return nil, errors.Wrapf(repository.ErrForbidden, "unknown role %q", role)
}

// RoleFlags mirrors the capability flags reported on dashboards.
type RoleFlags struct {
	IsAdmin        bool `json:"is_admin"`
	IsTheatreOwner bool `json:"is_theatre_owner"`
	IsCustomer     bool `json:"is_customer"`
}

func flagsOf(p Policy) RoleFlags {
	r := p.Role()
	return RoleFlags{
		IsAdmin:        r == model.RoleAdmin,
		IsTheatreOwner: r == model.RoleTheatreOwner,
		IsCustomer:     r == model.RoleCustomer,
	}
}
