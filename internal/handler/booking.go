package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/movie-ticket-booking/internal/model"
	"github.com/iliyamo/movie-ticket-booking/internal/repository"
	"github.com/iliyamo/movie-ticket-booking/internal/service"
)

// BookingHandler serves the booking lifecycle.  All routes require JWTAuth.
type BookingHandler struct {
	responder
	Bookings BookingService
	Ledger   SeatLedger
}

func NewBookingHandler(b BookingService, l SeatLedger, log logrus.FieldLogger) *BookingHandler {
	return &BookingHandler{responder: responder{log: log}, Bookings: b, Ledger: l}
}

type createBookingReq struct {
	ShowID      uint64   `json:"show_id" validate:"required"`
	ShowSeatIDs []uint64 `json:"show_seat_ids" validate:"required,min=1,max=20,dive,required"`
}

type confirmBookingReq struct {
	TransactionID string `json:"transaction_id" validate:"required,max=100"`
}

type bookingResp struct {
	*model.Booking
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Create handles POST /v1/bookings.  The seats stay LOCKED for the
// caller until expires_at unless the booking is confirmed.
func (h *BookingHandler) Create(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return h.fail(c, err)
	}
	var req createBookingReq
	if err := bind(c, &req); err != nil {
		return h.fail(c, err)
	}
	b, err := h.Bookings.Create(c.Request().Context(), userID, req.ShowID, req.ShowSeatIDs)
	if err != nil {
		return h.fail(c, err)
	}
	exp := b.BookedAt.Add(h.Ledger.LockTTL())
	return c.JSON(http.StatusCreated, bookingResp{Booking: b, ExpiresAt: &exp})
}

// List handles GET /v1/bookings?limit=N.
func (h *BookingHandler) List(c echo.Context) error {
	p, err := policyFrom(c)
	if err != nil {
		return h.fail(c, err)
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	list, err := h.Bookings.List(c.Request().Context(), p, limit)
	if err != nil {
		return h.fail(c, err)
	}
	if list == nil {
		list = []model.Booking{}
	}
	return c.JSON(http.StatusOK, echo.Map{"bookings": list})
}

// Get handles GET /v1/bookings/:id.
func (h *BookingHandler) Get(c echo.Context) error {
	_, b, err := h.load(c)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, bookingResp{Booking: b})
}

// Confirm handles POST /v1/bookings/:id/confirm, the payment signal.
func (h *BookingHandler) Confirm(c echo.Context) error {
	var req confirmBookingReq
	if err := bind(c, &req); err != nil {
		return h.fail(c, err)
	}
	b, err := h.modifiable(c)
	if err != nil {
		return h.fail(c, err)
	}
	b, err = h.Bookings.Confirm(c.Request().Context(), b.ID, req.TransactionID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, bookingResp{Booking: b})
}

// Cancel handles POST /v1/bookings/:id/cancel.
func (h *BookingHandler) Cancel(c echo.Context) error {
	b, err := h.modifiable(c)
	if err != nil {
		return h.fail(c, err)
	}
	b, err = h.Bookings.Cancel(c.Request().Context(), b.ID, service.ReasonCustomer)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, bookingResp{Booking: b})
}

func (h *BookingHandler) load(c echo.Context) (service.Policy, *model.Booking, error) {
	p, err := policyFrom(c)
	if err != nil {
		return nil, nil, err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return nil, nil, err
	}
	b, err := h.Bookings.Get(c.Request().Context(), p, id)
	if err != nil {
		return nil, nil, err
	}
	return p, b, nil
}

// modifiable loads a visible booking the caller may change.  Owners
// see bookings on their theatres but only change their own.
func (h *BookingHandler) modifiable(c echo.Context) (*model.Booking, error) {
	p, b, err := h.load(c)
	if err != nil {
		return nil, err
	}
	if !p.CanModifyBooking(b) {
		return nil, errors.Wrapf(repository.ErrForbidden, "booking %d", b.ID)
	}
	return b, nil
}
