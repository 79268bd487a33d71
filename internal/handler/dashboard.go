package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// DashboardHandler serves aggregated statistics scoped to the caller.
type DashboardHandler struct {
	responder
	Dashboard DashboardService
	Now       func() time.Time
}

func NewDashboardHandler(d DashboardService, log logrus.FieldLogger) *DashboardHandler {
	return &DashboardHandler{
		responder: responder{log: log},
		Dashboard: d,
		Now:       func() time.Time { return time.Now().UTC() },
	}
}

// Stats handles GET /v1/dashboard/stats.
func (h *DashboardHandler) Stats(c echo.Context) error {
	p, err := policyFrom(c)
	if err != nil {
		return h.fail(c, err)
	}
	st, err := h.Dashboard.Stats(c.Request().Context(), p, h.Now())
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, st)
}

// TheatreOwner handles GET /v1/dashboard/theatre-owner.
func (h *DashboardHandler) TheatreOwner(c echo.Context) error {
	p, err := policyFrom(c)
	if err != nil {
		return h.fail(c, err)
	}
	d, err := h.Dashboard.TheatreOwner(c.Request().Context(), p)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, d)
}

// Admin handles GET /v1/dashboard/admin.
func (h *DashboardHandler) Admin(c echo.Context) error {
	p, err := policyFrom(c)
	if err != nil {
		return h.fail(c, err)
	}
	d, err := h.Dashboard.Admin(c.Request().Context(), p)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, d)
}
