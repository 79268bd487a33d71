package router // router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iliyamo/movie-ticket-booking/internal/handler"
	"github.com/iliyamo/movie-ticket-booking/internal/middleware"
)

// Handlers groups every HTTP handler the API exposes.
type Handlers struct {
	Auth      *handler.AuthHandler
	Catalog   *handler.CatalogHandler
	Shows     *handler.ShowHandler
	Bookings  *handler.BookingHandler
	Dashboard *handler.DashboardHandler
	Health    echo.HandlerFunc
}

// Options carries the middleware shared by route groups.  Nil
// middlewares are skipped.
type Options struct {
	JWTSecret string
	RateLimit echo.MiddlewareFunc
	Cache     echo.MiddlewareFunc
}

// Register mounts the whole API on e.
func Register(e *echo.Echo, h Handlers, o Options) {
	RegisterRoutes(e, h.Health)

	v1 := e.Group("/v1")
	if o.RateLimit != nil {
		v1.Use(o.RateLimit)
	}
	RegisterAuth(v1, h.Auth, o.JWTSecret)
	RegisterCatalog(v1, h.Catalog, h.Shows, o)
	RegisterBookings(v1, h.Bookings, o.JWTSecret)
	RegisterDashboard(v1, h.Dashboard, o.JWTSecret)
}

// RegisterRoutes registers the unauthenticated operational endpoints.
func RegisterRoutes(e *echo.Echo, health echo.HandlerFunc) {
	if health == nil {
		health = handler.Health(nil)
	}
	e.GET("/healthz", health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

// RegisterAuth registers the auth endpoints.  Register, login, refresh,
// logout and the password reset flow need no session; /me requires a
// valid access token.
func RegisterAuth(v1 *echo.Group, a *handler.AuthHandler, jwtSecret string) {
	g := v1.Group("/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/refresh-access", a.RefreshAccess)
	g.POST("/logout", a.Logout)
	g.POST("/forgot-password", a.ForgotPassword)
	g.POST("/verify-otp", a.VerifyOTP)
	g.POST("/reset-password", a.ResetPassword)

	v1.GET("/me", a.Me, middleware.JWTAuth(jwtSecret))
}
