package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/movie-ticket-booking/internal/handler"
	"github.com/iliyamo/movie-ticket-booking/internal/middleware"
	"github.com/iliyamo/movie-ticket-booking/internal/model"
)

// RegisterCatalog registers movies, theatres, screens and shows.  Reads
// are public and catalog reads go through the response cache.  Seat
// maps are never cached.  Writes need an owner or admin token, except
// movies which only admins create and delete.
func RegisterCatalog(v1 *echo.Group, c *handler.CatalogHandler, s *handler.ShowHandler, o Options) {
	var cached []echo.MiddlewareFunc
	if o.Cache != nil {
		cached = append(cached, o.Cache)
	}
	v1.GET("/movies", c.ListMovies, cached...)
	v1.GET("/movies/:id", c.GetMovie, cached...)
	v1.GET("/theatres", c.ListTheatres, cached...)
	v1.GET("/theatres/:id", c.GetTheatre, cached...)
	v1.GET("/theatres/:id/screens", c.ListScreens, cached...)
	v1.GET("/screens/:id/seats", c.ListSeats)

	v1.GET("/shows", s.List)
	v1.GET("/shows/:id", s.Get)
	v1.GET("/shows/:id/seats", s.Seats)
	v1.GET("/shows/:id/seats/available", s.Available)

	auth := middleware.JWTAuth(o.JWTSecret)
	manage := middleware.RequireRole(model.RoleTheatreOwner, model.RoleAdmin)

	v1.POST("/movies", c.CreateMovie, auth, middleware.RequireRole(model.RoleAdmin))
	v1.POST("/theatres", c.CreateTheatre, auth, manage)
	v1.POST("/theatres/:id/screens", c.CreateScreen, auth, manage)
	v1.POST("/screens/:id/seats", c.AddSeats, auth, manage)
	v1.POST("/shows", s.Create, auth, manage)
	v1.DELETE("/movies/:id", c.DeleteMovie, auth, middleware.RequireRole(model.RoleAdmin))
	v1.DELETE("/theatres/:id", c.DeleteTheatre, auth, manage)
}
