package middleware

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/movie-ticket-booking/internal/observability"
)

// RequestLogger logs one structured line per request and records the
// request metrics.  It must run after echo's RequestID middleware so
// the id is available.
func RequestLogger(log logrus.FieldLogger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			elapsed := time.Since(start)

			req, res := c.Request(), c.Response()
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			code := strconv.Itoa(res.Status)
			observability.RequestsTotal.WithLabelValues(route, code, req.Method).Inc()
			observability.RequestDuration.WithLabelValues(route, req.Method).Observe(elapsed.Seconds())

			entry := log.WithFields(logrus.Fields{
				"method":     req.Method,
				"path":       req.URL.Path,
				"route":      route,
				"status":     res.Status,
				"latency_ms": elapsed.Milliseconds(),
				"request_id": res.Header().Get(echo.HeaderXRequestID),
				"user":       userID(c),
			})
			switch {
			case res.Status >= 500:
				entry.Error("request")
			case res.Status >= 400:
				entry.Warn("request")
			default:
				entry.Info("request")
			}
			return nil
		}
	}
}
