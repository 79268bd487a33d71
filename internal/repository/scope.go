package repository

// ScopeKind selects which rows a caller may see.
type ScopeKind int

const (
	// ScopeNone matches nothing.
	ScopeNone ScopeKind = iota
	// ScopeAll matches every row.
	ScopeAll
	// ScopeOwner matches rows under theatres owned by UserID.
	ScopeOwner
	// ScopeCustomer matches bookings made by UserID.
	ScopeCustomer
)

// Scope is a visibility filter derived from an authorization policy and
// rendered into SQL by the repositories.  The zero value matches nothing.
type Scope struct {
	Kind   ScopeKind
	UserID uint64
}

func AllScope() Scope                   { return Scope{Kind: ScopeAll} }
func OwnerScope(ownerID uint64) Scope   { return Scope{Kind: ScopeOwner, UserID: ownerID} }
func CustomerScope(userID uint64) Scope { return Scope{Kind: ScopeCustomer, UserID: userID} }
func (s Scope) SeesUsers() bool         { return s.Kind == ScopeAll }
func (s Scope) SeesTheatres() bool      { return s.Kind == ScopeAll || s.Kind == ScopeOwner }

// bookingFilter filters bookings aliased b joined to theatres aliased t.
func (s Scope) bookingFilter() (string, []any) {
	switch s.Kind {
	case ScopeAll:
		return "1=1", nil
	case ScopeOwner:
		return "t.owner_id = ?", []any{s.UserID}
	case ScopeCustomer:
		return "b.user_id = ?", []any{s.UserID}
	}
	return "1=0", nil
}

// theatreFilter filters rows joined to theatres aliased t.  Customers
// see no theatres in scoped listings.
func (s Scope) theatreFilter() (string, []any) {
	switch s.Kind {
	case ScopeAll:
		return "1=1", nil
	case ScopeOwner:
		return "t.owner_id = ?", []any{s.UserID}
	}
	return "1=0", nil
}

const bookingJoins = ` FROM bookings b
	JOIN shows s ON s.id = b.show_id
	JOIN screens sc ON sc.id = s.screen_id
	JOIN theatres t ON t.id = sc.theatre_id`
