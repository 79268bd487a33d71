package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/movie-ticket-booking/internal/model"
	"github.com/iliyamo/movie-ticket-booking/internal/repository"
	"github.com/iliyamo/movie-ticket-booking/internal/service"
)

// ShowHandler serves show scheduling, browsing and seat maps.
type ShowHandler struct {
	responder
	Shows  ShowService
	Ledger SeatLedger
}

func NewShowHandler(s ShowService, l SeatLedger, log logrus.FieldLogger) *ShowHandler {
	return &ShowHandler{responder: responder{log: log}, Shows: s, Ledger: l}
}

type createShowReq struct {
	MovieID        uint64            `json:"movie_id" validate:"required"`
	ScreenID       uint64            `json:"screen_id" validate:"required"`
	ShowDate       string            `json:"show_date" validate:"required,showdate"`
	ShowTime       string            `json:"show_time" validate:"required,showtime"`
	BasePriceCents uint32            `json:"base_price_cents" validate:"required,gt=0"`
	TierPrices     map[string]uint32 `json:"tier_prices" validate:"omitempty,dive,keys,seattier,endkeys,gt=0"`
}

// Create handles POST /v1/shows.  The response carries the new show and
// its seat ledger.
func (h *ShowHandler) Create(c echo.Context) error {
	p, err := policyFrom(c)
	if err != nil {
		return h.fail(c, err)
	}
	var req createShowReq
	if err := bind(c, &req); err != nil {
		return h.fail(c, err)
	}
	date, _ := time.Parse("2006-01-02", req.ShowDate)
	in := service.ScheduleInput{
		MovieID:        req.MovieID,
		ScreenID:       req.ScreenID,
		ShowDate:       date,
		ShowTime:       req.ShowTime,
		BasePriceCents: req.BasePriceCents,
	}
	if len(req.TierPrices) > 0 {
		in.TierPrices = make(map[model.SeatTier]uint32, len(req.TierPrices))
		for k, v := range req.TierPrices {
			tier, _ := model.ParseSeatTier(k)
			in.TierPrices[tier] = v
		}
	}
	show, seats, err := h.Shows.Schedule(c.Request().Context(), p, in)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"show": show, "seats": seats})
}

// List handles GET /v1/shows?movie_id=&theatre_id=&date=YYYY-MM-DD.
func (h *ShowHandler) List(c echo.Context) error {
	var (
		f   repository.ShowFilter
		err error
	)
	if f.MovieID, err = queryUint(c, "movie_id"); err != nil {
		return h.fail(c, err)
	}
	if f.TheatreID, err = queryUint(c, "theatre_id"); err != nil {
		return h.fail(c, err)
	}
	if raw := strings.TrimSpace(c.QueryParam("date")); raw != "" {
		d, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return h.fail(c, errors.Wrap(service.ErrInvalidInput, "date must be YYYY-MM-DD"))
		}
		f.Date = &d
	}
	shows, err := h.Shows.List(c.Request().Context(), f)
	if err != nil {
		return h.fail(c, err)
	}
	if shows == nil {
		shows = []model.Show{}
	}
	return c.JSON(http.StatusOK, echo.Map{"shows": shows})
}

// Get handles GET /v1/shows/:id.
func (h *ShowHandler) Get(c echo.Context) error {
	show, err := h.show(c)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, show)
}

// Seats handles GET /v1/shows/:id/seats, the seat map in every status.
func (h *ShowHandler) Seats(c echo.Context) error {
	show, err := h.show(c)
	if err != nil {
		return h.fail(c, err)
	}
	seats, err := h.Ledger.SeatMap(c.Request().Context(), show.ID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"show_id": show.ID, "seats": nonNilSeats(seats)})
}

// Available handles GET /v1/shows/:id/seats/available.
func (h *ShowHandler) Available(c echo.Context) error {
	show, err := h.show(c)
	if err != nil {
		return h.fail(c, err)
	}
	seats, err := h.Ledger.Available(c.Request().Context(), show.ID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"show_id": show.ID, "seats": nonNilSeats(seats), "count": len(seats)})
}

func (h *ShowHandler) show(c echo.Context) (*model.Show, error) {
	id, err := pathID(c, "id")
	if err != nil {
		return nil, err
	}
	return h.Shows.Get(c.Request().Context(), id)
}

func nonNilSeats(s []model.ShowSeat) []model.ShowSeat {
	if s == nil {
		return []model.ShowSeat{}
	}
	return s
}
