package model

import "time"

// Role is the account type of a user.  Capabilities are derived from
// the role: admins see everything, theatre owners manage their own
// venues and customers book seats.
type Role string

const (
	RoleCustomer     Role = "CUSTOMER"
	RoleTheatreOwner Role = "THEATRE_OWNER"
	RoleAdmin        Role = "ADMIN"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleCustomer || r == RoleTheatreOwner || r == RoleAdmin
}

// User represents an application user record as stored in the
// `users` table.
//
// Fields:
//
//	ID           – primary key identifier of the user.
//	Email        – unique email address.
//	PasswordHash – bcrypt hashed password.
//	Role         – CUSTOMER, THEATRE_OWNER or ADMIN.
//	IsActive     – whether the account is active.
//	CreatedAt    – timestamp of creation.
//	UpdatedAt    – timestamp of last update.
type User struct {
	ID           uint64    // users.id
	Email        string    // users.email
	PasswordHash string    // users.password_hash
	Role         Role      // users.role
	IsActive     bool      // users.is_active
	CreatedAt    time.Time // users.created_at
	UpdatedAt    time.Time // users.updated_at
}

func (u User) IsAdmin() bool        { return u.Role == RoleAdmin }
func (u User) IsTheatreOwner() bool { return u.Role == RoleTheatreOwner }
func (u User) IsCustomer() bool     { return u.Role == RoleCustomer }

// RefreshToken models an entry in the `refresh_tokens` table.  The
// plain token is not stored; only its SHA‑256 hash.
type RefreshToken struct {
	ID        uint64     // refresh_tokens.id
	UserID    uint64     // refresh_tokens.user_id
	TokenHash string     // refresh_tokens.token_hash
	ExpiresAt time.Time  // refresh_tokens.expires_at
	RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
	CreatedAt time.Time  // refresh_tokens.created_at
}
