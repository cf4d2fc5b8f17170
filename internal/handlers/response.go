// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"codeberg.org/jobsecure/jobsecure/internal/i18n"
	"codeberg.org/jobsecure/jobsecure/internal/models"
	authsvc "codeberg.org/jobsecure/jobsecure/internal/services/auth"
	"codeberg.org/jobsecure/jobsecure/internal/services/emailcheck"
	"codeberg.org/jobsecure/jobsecure/internal/services/token"
	"github.com/labstack/echo/v4"
)

// Response is the envelope of every API response.
type Response struct {
	Success bool         `json:"success"`
	Message string       `json:"message,omitempty"`
	Token   string       `json:"token,omitempty"`
	User    *AccountView `json:"user,omitempty"`
	Field   string       `json:"field,omitempty"`
}

// AccountView is the public representation of an account.
type AccountView struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	UserType   string `json:"userType"`
	IsVerified bool   `json:"isVerified"`
	CreatedAt  string `json:"createdAt"`
}

func newAccountView(acct *models.Account) *AccountView {
	if acct == nil {
		return nil
	}
	return &AccountView{
		ID:         acct.ID,
		Name:       acct.Name,
		Email:      acct.Email,
		UserType:   string(acct.Kind),
		IsVerified: acct.Verified,
		CreatedAt:  acct.Created().UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	}
}

func message(c echo.Context, messageID string, data map[string]any) string {
	return i18n.TData(c.Request().Context(), messageID, data)
}

func success(c echo.Context, code int, messageID string) error {
	return c.JSON(code, Response{Success: true, Message: message(c, messageID, nil)})
}

func failure(c echo.Context, code int, messageID string, data map[string]any) error {
	return c.JSON(code, Response{Message: message(c, messageID, data)})
}

// fail maps a service error to a response. notifyMsgID is used when the
// error is a notification failure.
func fail(c echo.Context, err error, notifyMsgID string) error {
	var rej *emailcheck.RejectionError
	var inputErr *authsvc.InputError

	switch {
	case errors.As(err, &rej):
		return failure(c, http.StatusBadRequest, rej.MessageID(), nil)
	case errors.As(err, &inputErr):
		return c.JSON(http.StatusBadRequest, Response{
			Message: message(c, inputErr.MessageID, inputErr.Data),
			Field:   inputErr.Field,
		})
	case errors.Is(err, authsvc.ErrDuplicateAccount):
		return failure(c, http.StatusBadRequest, "account_exists", nil)
	case errors.Is(err, authsvc.ErrInvalidCredentials):
		return failure(c, http.StatusUnauthorized, "invalid_credentials", nil)
	case errors.Is(err, authsvc.ErrAccountNotFound):
		return failure(c, http.StatusNotFound, "account_not_found", nil)
	case errors.Is(err, authsvc.ErrAlreadyVerified):
		return failure(c, http.StatusBadRequest, "already_verified", nil)
	case errors.Is(err, token.ErrInvalidOrExpired):
		return failure(c, http.StatusBadRequest, "token_invalid", nil)
	case errors.Is(err, authsvc.ErrNotificationFailed):
		slog.ErrorContext(c.Request().Context(), "notification_failed", "path", c.Path(), "error", err)
		return failure(c, http.StatusInternalServerError, notifyMsgID, nil)
	default:
		slog.ErrorContext(c.Request().Context(), "request_failed", "path", c.Path(), "error", err)
		return failure(c, http.StatusInternalServerError, "internal_error", nil)
	}
}

// statusMessages are the message IDs for errors raised by echo itself.
var statusMessages = map[int]string{
	http.StatusBadRequest:            "invalid_request",
	http.StatusUnauthorized:          "unauthorized",
	http.StatusForbidden:             "forbidden_kind",
	http.StatusNotFound:              "not_found",
	http.StatusMethodNotAllowed:      "not_found",
	http.StatusRequestEntityTooLarge: "invalid_request",
	http.StatusTooManyRequests:       "too_many_requests",
}

// ErrorHandler renders errors that escape handlers and middleware in the
// response envelope. String messages of echo.HTTPError are message IDs.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	messageID := "internal_error"

	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		if id, ok := he.Message.(string); ok && id != "" && id != http.StatusText(code) {
			messageID = id
		} else if id, ok := statusMessages[code]; ok {
			messageID = id
		}
	}
	if code >= http.StatusInternalServerError {
		slog.ErrorContext(c.Request().Context(), "unhandled_error", "path", c.Path(), "error", err)
	}

	var writeErr error
	if c.Request().Method == http.MethodHead {
		writeErr = c.NoContent(code)
	} else {
		writeErr = failure(c, code, messageID, nil)
	}
	if writeErr != nil {
		slog.ErrorContext(c.Request().Context(), "error_response_failed", "error", writeErr)
	}
}
