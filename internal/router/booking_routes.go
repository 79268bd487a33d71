package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/movie-ticket-booking/internal/handler"
	"github.com/iliyamo/movie-ticket-booking/internal/middleware"
)

// RegisterBookings registers the booking endpoints.  Every role may
// book; visibility and modification rights are enforced per booking.
func RegisterBookings(v1 *echo.Group, h *handler.BookingHandler, jwtSecret string) {
	g := v1.Group("/bookings", middleware.JWTAuth(jwtSecret))
	g.POST("", h.Create)
	g.GET("", h.List)
	g.GET("/:id", h.Get)
	g.POST("/:id/confirm", h.Confirm)
	g.POST("/:id/cancel", h.Cancel)
}

// RegisterDashboard registers the statistics endpoints.
func RegisterDashboard(v1 *echo.Group, h *handler.DashboardHandler, jwtSecret string) {
	g := v1.Group("/dashboard", middleware.JWTAuth(jwtSecret))
	g.GET("/stats", h.Stats)
	g.GET("/theatre-owner", h.TheatreOwner)
	g.GET("/admin", h.Admin)
}
