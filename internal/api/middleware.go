package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"github.com/tphakala/imageclassifier/internal/errors"
	"github.com/tphakala/imageclassifier/internal/logger"
)

// requestIDMiddleware assigns every request a uuid and carries it on the
// request context as the log trace id.
func (s *Server) requestIDMiddleware() echo.MiddlewareFunc {
	return echomw.RequestIDWithConfig(echomw.RequestIDConfig{
		Generator: uuid.NewString,
		RequestIDHandler: func(c echo.Context, id string) {
			req := c.Request()
			c.SetRequest(req.WithContext(logger.WithTraceID(req.Context(), id)))
		},
	})
}

// requestLogger logs each request through the module logger.
func (s *Server) requestLogger() echo.MiddlewareFunc {
	return echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogStatus:   true,
		LogURI:      true,
		LogMethod:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogError:    true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			fields := []logger.Field{
				logger.String("method", v.Method),
				logger.String("uri", v.URI),
				logger.Int("status", v.Status),
				logger.String("ip", v.RemoteIP),
				logger.Duration("latency", v.Latency),
			}
			if v.Error != nil {
				fields = append(fields, logger.Error(v.Error))
			}
			GetLogger().WithContext(c.Request().Context()).Info("request", fields...)
			return nil
		},
	})
}

// metricsMiddleware records request counts, latency and in-flight requests
// labelled by route pattern.
func (s *Server) metricsMiddleware() echo.MiddlewareFunc {
	m := s.metrics.HTTP
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			m.RequestStarted()
			defer m.RequestFinished()

			err := next(c)

			status := c.Response().Status
			if err != nil {
				var he *echo.HTTPError
				if errors.As(err, &he) {
					status = he.Code
				} else {
					status = http.StatusInternalServerError
				}
			}
			path := c.Path()
			if path == "" {
				path = "unmatched"
			}
			m.RecordHTTPRequest(c.Request().Method, path, status, time.Since(start))
			return err
		}
	}
}

// classifyRateLimiter limits classification requests per client IP.
// It returns nil when webserver.ratelimit is zero.
func (s *Server) classifyRateLimiter() echo.MiddlewareFunc {
	limit := s.settings.WebServer.RateLimit
	if limit <= 0 {
		return nil
	}
	store := echomw.NewRateLimiterMemoryStoreWithConfig(echomw.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(limit),
		Burst:     max(s.settings.WebServer.RateBurst, 1),
		ExpiresIn: 3 * time.Minute,
	})
	return echomw.RateLimiterWithConfig(echomw.RateLimiterConfig{
		Store: store,
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return s.handleError(c, err, "Unable to identify client", http.StatusForbidden, "rate_limit")
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			return s.handleError(c, err, "Too many classification requests", http.StatusTooManyRequests, "rate_limit")
		},
	})
}
