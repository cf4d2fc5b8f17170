// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package middleware

import (
	"log/slog"
	"strings"

	"codeberg.org/jobsecure/jobsecure/internal/auth"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// RequestID assigns each request an ID, taken from X-Request-ID when the
// client sent a usable one, and stores it in the request context.
func RequestID() echo.MiddlewareFunc {
	return middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
		RequestIDHandler: func(c echo.Context, id string) {
			c.SetRequest(c.Request().WithContext(auth.WithRequestID(c.Request().Context(), id)))
		},
	})
}

// RequestLogger logs every request except health checks with slog.
func RequestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		Skipper: func(c echo.Context) bool {
			return c.Request().URL.Path == "/health"
		},
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []slog.Attr{
				slog.String("method", v.Method),
				slog.String("uri", redactToken(v.URI)),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
				slog.String("ip", v.RemoteIP),
				slog.String("request_id", v.RequestID),
			}
			if acct := auth.GetAccount(c.Request().Context()); acct != nil {
				attrs = append(attrs, slog.Int64("account_id", acct.ID))
			}

			level := slog.LevelInfo
			switch {
			case v.Status >= 500:
				level = slog.LevelError
			case v.Error != nil:
				level = slog.LevelWarn
			}
			if v.Error != nil {
				attrs = append(attrs, slog.String("error", v.Error.Error()))
			}
			slog.LogAttrs(c.Request().Context(), level, "request", attrs...)
			return nil
		},
	})
}

// tokenRoutes carry a raw single-use token as their last path segment.
var tokenRoutes = []string{"/api/auth/verify-email/", "/api/auth/reset-password/"}

// redactToken hides raw tokens so they never reach the logs.
func redactToken(uri string) string {
	for _, prefix := range tokenRoutes {
		if strings.HasPrefix(uri, prefix) && len(uri) > len(prefix) {
			return prefix + "[redacted]"
		}
	}
	return uri
}
