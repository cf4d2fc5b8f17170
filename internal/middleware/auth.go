// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package middleware holds the echo middleware that authenticates requests
// and prepares their context.
package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"codeberg.org/jobsecure/jobsecure/internal/auth"
	"codeberg.org/jobsecure/jobsecure/internal/models"
	"codeberg.org/jobsecure/jobsecure/internal/services/session"
	"github.com/labstack/echo/v4"
	"github.com/samber/lo"
)

// SessionReader extracts session claims from a request.
type SessionReader interface {
	FromRequest(r *http.Request) (*session.Claims, error)
}

// AccountLoader loads the account a session belongs to.
type AccountLoader interface {
	GetAccountByID(ctx context.Context, id int64) (*models.Account, error)
}

// LoadAccount puts the account of a valid session into the request context.
// Requests without a valid session pass through unauthenticated.
func LoadAccount(sessions SessionReader, loader AccountLoader) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			r := c.Request()
			claims, err := sessions.FromRequest(r)
			if err != nil {
				if !errors.Is(err, session.ErrNoSession) {
					slog.DebugContext(r.Context(), "session_rejected", "error", err)
				}
				return next(c)
			}

			acct, err := loader.GetAccountByID(r.Context(), claims.AccountID)
			if err != nil {
				// The account may have been deleted since the token was issued.
				slog.DebugContext(r.Context(), "session_account_missing", "account_id", claims.AccountID, "error", err)
				return next(c)
			}

			c.SetRequest(r.WithContext(auth.WithAccount(r.Context(), acct)))
			return next(c)
		}
	}
}

// RequireAuth rejects requests without an authenticated account.
func RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !auth.IsAuthenticated(c.Request().Context()) {
			return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
		}
		return next(c)
	}
}

// RequireKind rejects accounts whose kind is not one of kinds.
func RequireKind(kinds ...models.AccountKind) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			acct := auth.GetAccount(c.Request().Context())
			if acct == nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
			}
			if !lo.Contains(kinds, acct.Kind) {
				return echo.NewHTTPError(http.StatusForbidden, "forbidden_kind")
			}
			return next(c)
		}
	}
}

// RequireVerified rejects accounts that have not verified their email.
func RequireVerified(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		acct := auth.GetAccount(c.Request().Context())
		if acct == nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
		}
		if !acct.Verified {
			return echo.NewHTTPError(http.StatusForbidden, "not_verified")
		}
		return next(c)
	}
}
