package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/movie-ticket-booking/internal/model"
)

// CatalogHandler serves movies, theatres, screens and physical seats.
type CatalogHandler struct {
	responder
	Catalog CatalogService
}

func NewCatalogHandler(cat CatalogService, log logrus.FieldLogger) *CatalogHandler {
	return &CatalogHandler{responder: responder{log: log}, Catalog: cat}
}

type createMovieReq struct {
	Title           string  `json:"title" validate:"required,max=200"`
	Description     string  `json:"description"`
	DurationMinutes uint32  `json:"duration_minutes" validate:"required,gt=0,lte=600"`
	Language        string  `json:"language" validate:"max=50"`
	Genre           string  `json:"genre" validate:"max=100"`
	ReleaseDate     string  `json:"release_date" validate:"omitempty,showdate"`
	Rating          float64 `json:"rating" validate:"gte=0,lte=10"`
	PosterURL       string  `json:"poster_url" validate:"omitempty,url"`
	TrailerURL      string  `json:"trailer_url" validate:"omitempty,url"`
}

type createTheatreReq struct {
	Name    string `json:"name" validate:"required,max=150"`
	Address string `json:"address" validate:"max=255"`
	City    string `json:"city" validate:"required,max=100"`
	OwnerID uint64 `json:"owner_id"`
}

type createScreenReq struct {
	Name     string `json:"name" validate:"required,max=100"`
	Capacity uint32 `json:"capacity"`
}

type seatReq struct {
	RowLabel  string `json:"row_label" validate:"required,max=5"`
	SeatLabel string `json:"seat_label" validate:"required,max=5"`
	Tier      string `json:"tier" validate:"seattier"`
}

// gridReq lays out Rows rows labelled A, B, ... with PerRow seats each.
type gridReq struct {
	Rows   int    `json:"rows" validate:"required,gt=0,lte=52"`
	PerRow int    `json:"per_row" validate:"required,gt=0,lte=100"`
	Tier   string `json:"tier" validate:"seattier"`
}

type addSeatsReq struct {
	Seats []seatReq `json:"seats" validate:"required_without=Grid,dive"`
	Grid  *gridReq  `json:"grid" validate:"omitempty"`
}

// CreateMovie handles POST /v1/movies.
func (h *CatalogHandler) CreateMovie(c echo.Context) error {
	p, err := policyFrom(c)
	if err != nil {
		return h.fail(c, err)
	}
	var req createMovieReq
	if err := bind(c, &req); err != nil {
		return h.fail(c, err)
	}
	m := &model.Movie{
		Title:           req.Title,
		Description:     req.Description,
		DurationMinutes: req.DurationMinutes,
		Language:        req.Language,
		Genre:           req.Genre,
		Rating:          req.Rating,
		PosterURL:       req.PosterURL,
		TrailerURL:      req.TrailerURL,
	}
	if req.ReleaseDate != "" {
		d, _ := parseDate(req.ReleaseDate)
		m.ReleaseDate = &d
	}
	if err := h.Catalog.CreateMovie(c.Request().Context(), p, m); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusCreated, m)
}

// ListMovies handles GET /v1/movies.
func (h *CatalogHandler) ListMovies(c echo.Context) error {
	list, err := h.Catalog.Movies(c.Request().Context())
	if err != nil {
		return h.fail(c, err)
	}
	if list == nil {
		list = []model.Movie{}
	}
	return c.JSON(http.StatusOK, echo.Map{"movies": list})
}

// GetMovie handles GET /v1/movies/:id.
func (h *CatalogHandler) GetMovie(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return h.fail(c, err)
	}
	m, err := h.Catalog.Movie(c.Request().Context(), id)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, m)
}

// CreateTheatre handles POST /v1/theatres.
func (h *CatalogHandler) CreateTheatre(c echo.Context) error {
	p, err := policyFrom(c)
	if err != nil {
		return h.fail(c, err)
	}
	var req createTheatreReq
	if err := bind(c, &req); err != nil {
		return h.fail(c, err)
	}
	t := &model.Theatre{Name: req.Name, Address: req.Address, City: req.City, OwnerID: req.OwnerID}
	if err := h.Catalog.CreateTheatre(c.Request().Context(), p, t); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusCreated, t)
}

// ListTheatres handles GET /v1/theatres?city=.
func (h *CatalogHandler) ListTheatres(c echo.Context) error {
	list, err := h.Catalog.Theatres(c.Request().Context(), c.QueryParam("city"))
	if err != nil {
		return h.fail(c, err)
	}
	if list == nil {
		list = []model.Theatre{}
	}
	return c.JSON(http.StatusOK, echo.Map{"theatres": list})
}

// GetTheatre handles GET /v1/theatres/:id.
func (h *CatalogHandler) GetTheatre(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return h.fail(c, err)
	}
	t, err := h.Catalog.Theatre(c.Request().Context(), id)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, t)
}

// CreateScreen handles POST /v1/theatres/:id/screens.
func (h *CatalogHandler) CreateScreen(c echo.Context) error {
	p, err := policyFrom(c)
	if err != nil {
		return h.fail(c, err)
	}
	theatreID, err := pathID(c, "id")
	if err != nil {
		return h.fail(c, err)
	}
	var req createScreenReq
	if err := bind(c, &req); err != nil {
		return h.fail(c, err)
	}
	s := &model.Screen{Name: req.Name, Capacity: req.Capacity}
	if err := h.Catalog.CreateScreen(c.Request().Context(), p, theatreID, s); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusCreated, s)
}

// ListScreens handles GET /v1/theatres/:id/screens.
func (h *CatalogHandler) ListScreens(c echo.Context) error {
	theatreID, err := pathID(c, "id")
	if err != nil {
		return h.fail(c, err)
	}
	list, err := h.Catalog.Screens(c.Request().Context(), theatreID)
	if err != nil {
		return h.fail(c, err)
	}
	if list == nil {
		list = []model.Screen{}
	}
	return c.JSON(http.StatusOK, echo.Map{"screens": list})
}

// AddSeats handles POST /v1/screens/:id/seats.  Seats are given either
// one by one or as a grid of rows.
func (h *CatalogHandler) AddSeats(c echo.Context) error {
	p, err := policyFrom(c)
	if err != nil {
		return h.fail(c, err)
	}
	screenID, err := pathID(c, "id")
	if err != nil {
		return h.fail(c, err)
	}
	var req addSeatsReq
	if err := bind(c, &req); err != nil {
		return h.fail(c, err)
	}
	seats := make([]model.Seat, 0, len(req.Seats))
	for _, s := range req.Seats {
		seats = append(seats, model.Seat{RowLabel: s.RowLabel, SeatLabel: s.SeatLabel, Tier: model.SeatTier(s.Tier)})
	}
	if g := req.Grid; g != nil {
		for r := 0; r < g.Rows; r++ {
			row := indexToRowLabel(r)
			for n := 1; n <= g.PerRow; n++ {
				seats = append(seats, model.Seat{RowLabel: row, SeatLabel: itoa(n), Tier: model.SeatTier(g.Tier)})
			}
		}
	}
	list, err := h.Catalog.AddSeats(c.Request().Context(), p, screenID, seats)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"screen_id": screenID, "seats": list})
}

// ListSeats handles GET /v1/screens/:id/seats.
func (h *CatalogHandler) ListSeats(c echo.Context) error {
	screenID, err := pathID(c, "id")
	if err != nil {
		return h.fail(c, err)
	}
	list, err := h.Catalog.Seats(c.Request().Context(), screenID)
	if err != nil {
		return h.fail(c, err)
	}
	if list == nil {
		list = []model.Seat{}
	}
	return c.JSON(http.StatusOK, echo.Map{"screen_id": screenID, "seats": list})
}
