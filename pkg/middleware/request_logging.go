// Package middleware holds echo middleware shared by the HTTP server.
package middleware

import (
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/scholarsite/scholarsite/pkg/metrics"
)

// HeaderRequestID carries the request ID in and out.
const HeaderRequestID = echo.HeaderXRequestID

// RequestLogger attaches a request-scoped zerolog logger to the request
// context, logs the outcome and counts requests by route and status class.
func RequestLogger(reg *metrics.Registry) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()
			rid := req.Header.Get(HeaderRequestID)
			if rid == "" {
				rid = uuid.NewString()
			}
			c.Response().Header().Set(HeaderRequestID, rid)

			logger := log.With().
				Str("request_id", rid).
				Str("method", req.Method).
				Str("path", req.URL.Path).
				Str("remote_ip", c.RealIP()).
				Logger()
			c.SetRequest(req.WithContext(logger.WithContext(req.Context())))

			err := next(c)
			if err != nil {
				// Let echo write the response so the status below is final.
				c.Error(err)
			}

			status := c.Response().Status
			labels := map[string]string{
				"method": req.Method,
				"route":  routeOf(c),
				"status": statusClass(status),
			}
			reg.Inc(c.Request().Context(), metrics.HTTPRequests, labels, 1)

			if status >= 500 || err != nil {
				reg.Inc(c.Request().Context(), metrics.HTTPRequestErrors, labels, 1)
				logger.Error().
					Err(err).
					Int("status", status).
					Dur("duration", time.Since(start)).
					Msg("http request failed")
				return nil
			}
			logger.Info().
				Int("status", status).
				Dur("duration", time.Since(start)).
				Msg("http request served")
			return nil
		}
	}
}

// routeOf prefers the matched route template so IDs do not explode label cardinality.
func routeOf(c echo.Context) string {
	if p := c.Path(); p != "" {
		return p
	}
	return "unmatched"
}

func statusClass(code int) string {
	switch {
	case code >= 100 && code < 200:
		return "1xx"
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500 && code < 600:
		return "5xx"
	default:
		return "0"
	}
}
