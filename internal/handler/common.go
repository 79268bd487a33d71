package handler // handler defines http handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/movie-ticket-booking/internal/middleware"
	"github.com/iliyamo/movie-ticket-booking/internal/repository"
	"github.com/iliyamo/movie-ticket-booking/internal/service"
)

var errUnauthorized = errors.New("unauthorized")

// responder turns service errors into JSON responses.  Handlers embed
// it so every endpoint maps failures the same way.
type responder struct {
	log logrus.FieldLogger
}

// fail writes the HTTP response for err.  Unknown errors are logged and
// reported as a generic 500.
func (r responder) fail(c echo.Context, err error) error {
	var (
		verrs validator.ValidationErrors
		herr  *echo.HTTPError
	)
	switch {
	case errors.As(err, &verrs):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": validationMessage(verrs)})
	case errors.As(err, &herr):
		return c.JSON(herr.Code, echo.Map{"error": "invalid request body"})
	case errors.IsAny(err, errUnauthorized, repository.ErrTokenInvalid):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	case errors.Is(err, repository.ErrOTPInvalid):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid or expired code"})
	case errors.Is(err, service.ErrSeatUnavailable):
		return c.JSON(http.StatusConflict, echo.Map{
			"error":       "seats unavailable",
			"unavailable": service.UnavailableSeats(err),
		})
	case repository.IsNotFound(err):
		return c.JSON(http.StatusNotFound, echo.Map{"error": notFoundMessage(err)})
	case errors.Is(err, repository.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	case errors.IsAny(err, service.ErrInvalidStateTransition, repository.ErrConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	case errors.Is(err, repository.ErrEmailExists):
		return c.JSON(http.StatusConflict, echo.Map{"error": "email already exists"})
	case errors.Is(err, repository.ErrInUse):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	case errors.Is(err, repository.ErrDuplicateEntry):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidInput):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	r.log.WithError(err).WithFields(logrus.Fields{
		"method": c.Request().Method,
		"path":   c.Request().URL.Path,
	}).Error("request failed")
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}

func notFoundMessage(err error) string {
	for _, s := range []error{
		repository.ErrBookingNotFound, repository.ErrShowNotFound, repository.ErrSeatNotFound,
		repository.ErrScreenNotFound, repository.ErrTheatreNotFound, repository.ErrMovieNotFound,
		repository.ErrUserNotFound,
	} {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "not found"
}

func validationMessage(verrs validator.ValidationErrors) string {
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %s", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return strings.Join(msgs, "; ")
}

// bind decodes the request body into req and validates it.
func bind(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest)
	}
	return c.Validate(req)
}

// getUserID returns the authenticated caller or errUnauthorized.
func getUserID(c echo.Context) (uint64, error) {
	id := middleware.UserID(c)
	if id == 0 {
		return 0, errUnauthorized
	}
	return id, nil
}

// policyFrom builds the caller's authorization policy.
func policyFrom(c echo.Context) (service.Policy, error) {
	id, err := getUserID(c)
	if err != nil {
		return nil, err
	}
	return service.PolicyFor(id, middleware.Role(c))
}

// pathID parses a positive integer path parameter.
func pathID(c echo.Context, name string) (uint64, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, errors.Wrapf(service.ErrInvalidInput, "invalid %s", name)
	}
	return id, nil
}

// queryUint parses an optional positive integer query parameter.
func queryUint(c echo.Context, name string) (uint64, error) {
	raw := strings.TrimSpace(c.QueryParam(name))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(service.ErrInvalidInput, "invalid %s", name)
	}
	return n, nil
}

// indexToRowLabel converts a zero-based index to an alphabetical row
// label: 0 -> A, 25 -> Z, 26 -> AA.
func indexToRowLabel(i int) string {
	if i < 0 {
		return ""
	}
	var res []rune
	for {
		res = append(res, rune('A'+i%26))
		i = i/26 - 1
		if i < 0 {
			break
		}
	}
	for j, k := 0, len(res)-1; j < k; j, k = j+1, k-1 {
		res[j], res[k] = res[k], res[j]
	}
	return string(res)
}

func parseDate(s string) (time.Time, error) { return time.Parse("2006-01-02", s) }

func itoa(n int) string { return strconv.Itoa(n) }
