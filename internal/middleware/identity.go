package middleware

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/movie-ticket-booking/internal/model"
)

// Context keys set by JWTAuth.
const (
	ContextUserID = "user_id"
	ContextRole   = "role"
)

// UserID returns the authenticated user id, or 0 for anonymous requests.
func UserID(c echo.Context) uint64 {
	id, _ := c.Get(ContextUserID).(uint64)
	return id
}

// Role returns the authenticated role, or "" for anonymous requests.
func Role(c echo.Context) model.Role {
	r, _ := c.Get(ContextRole).(model.Role)
	return r
}

// userID renders the caller for rate limit keys and logs.
func userID(c echo.Context) string {
	if id := UserID(c); id != 0 {
		return strconv.FormatUint(id, 10)
	}
	return "anon"
}
