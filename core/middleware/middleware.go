package middleware

import (
	"net/http"
	"time"

	"seva-signup/core/controller"
	"seva-signup/core/errors"
	"seva-signup/core/logger"
	"seva-signup/core/ratelimit"

	"github.com/labstack/echo/v4"
)

type Middleware struct {
	limiter *ratelimit.Limiter
}

func NewMiddleware(limiter *ratelimit.Limiter) *Middleware {
	return &Middleware{limiter: limiter}
}

// RequestLogger logs one line per request with method, path, status, latency.
func (m *Middleware) RequestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			logger.Info("HTTP:Request",
				"method", c.Request().Method,
				"path", c.Request().URL.Path,
				"status", c.Response().Status,
				"latency_ms", time.Since(start).Milliseconds(),
				"remote_ip", c.RealIP(),
			)
			return err
		}
	}
}

// RateLimitMiddleware applies the fixed-window limiter keyed by client IP.
func (m *Middleware) RateLimitMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if m.limiter != nil && !m.limiter.Allow(c.Request().Context(), c.RealIP()) {
				logger.Warn("Middleware:RateLimit:Exceeded", "remote_ip", c.RealIP())
				return controller.NewErrorResponse(
					http.StatusTooManyRequests,
					errors.ErrRateLimited,
					"Too many requests. Please try again in a minute.",
				)
			}
			return next(c)
		}
	}
}
