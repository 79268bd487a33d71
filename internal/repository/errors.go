// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// services and handlers to distinguish between different failure
// scenarios without inspecting driver errors.
package repository

import (
	"github.com/cockroachdb/errors"
	"github.com/go-sql-driver/mysql"
)

// ErrForbidden is returned when the caller attempts an operation
// on a resource they do not own. Handlers should translate this
// into an HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when a conditional update matched no rows
// because the row changed state underneath the caller.
var ErrConflict = errors.New("conflict")

// ErrDuplicateEntry is returned when an insert violates a unique key,
// e.g. two shows on the same screen, date and time.
var ErrDuplicateEntry = errors.New("duplicate entry")

// ErrEmailExists is returned by UserRepo.Create for a taken address.
var ErrEmailExists = errors.New("email already exists")

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrMovieNotFound   = errors.New("movie not found")
	ErrTheatreNotFound = errors.New("theatre not found")
	ErrScreenNotFound  = errors.New("screen not found")
	ErrSeatNotFound    = errors.New("seat not found")
	ErrShowNotFound    = errors.New("show not found")
	ErrBookingNotFound = errors.New("booking not found")
	ErrTokenInvalid    = errors.New("refresh token invalid")
	ErrOTPInvalid      = errors.New("otp invalid or expired")
)

// ErrInUse is returned when a delete is refused because other rows
// still reference the target, e.g. a movie that has shows.
var ErrInUse = errors.New("still referenced")

// IsNotFound reports whether err is any of the not-found sentinels.
func IsNotFound(err error) bool {
	return errors.IsAny(err,
		ErrUserNotFound, ErrMovieNotFound, ErrTheatreNotFound, ErrScreenNotFound,
		ErrSeatNotFound, ErrShowNotFound, ErrBookingNotFound)
}

const (
	mysqlDuplicateKey    = 1062 // ER_DUP_ENTRY
	mysqlRowReferenced   = 1451 // ER_ROW_IS_REFERENCED_2
	mysqlLockWaitTimeout = 1205 // ER_LOCK_WAIT_TIMEOUT
	mysqlDeadlock        = 1213 // ER_LOCK_DEADLOCK
)

func mysqlCode(err error) uint16 {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number
	}
	return 0
}

func isDuplicate(err error) bool { return mysqlCode(err) == mysqlDuplicateKey }

func isReferenced(err error) bool { return mysqlCode(err) == mysqlRowReferenced }

// isLockAborted reports whether InnoDB rolled the statement back because
// of a deadlock or a lock wait timeout.  The caller may simply retry.
func isLockAborted(err error) bool {
	switch mysqlCode(err) {
	case mysqlDeadlock, mysqlLockWaitTimeout:
		return true
	}
	return false
}
