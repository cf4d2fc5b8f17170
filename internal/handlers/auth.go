// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"codeberg.org/jobsecure/jobsecure/internal/auth"
	"codeberg.org/jobsecure/jobsecure/internal/models"
	authsvc "codeberg.org/jobsecure/jobsecure/internal/services/auth"
	"github.com/labstack/echo/v4"
)

// AuthService is the account logic behind the auth API.
// *authsvc.Service implements it.
type AuthService interface {
	Register(ctx context.Context, params authsvc.RegisterParams) (*authsvc.RegisterResult, error)
	Login(ctx context.Context, email, password string) (*models.Account, error)
	IssueSessionToken(acct *models.Account) (string, time.Time, error)
	ChangePassword(ctx context.Context, accountID int64, current, newPassword string) error
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, raw, newPassword string) (*models.Account, error)
	VerifyEmail(ctx context.Context, raw string) (*models.Account, error)
	VerifyEmailCode(ctx context.Context, email, code string) (*models.Account, error)
	ResendVerification(ctx context.Context, accountID int64) error
}

// CookieJar wraps session tokens in cookies. *session.Manager implements it.
type CookieJar interface {
	Cookie(token string, expiresAt time.Time) (*http.Cookie, error)
	Clear() *http.Cookie
}

// AuthHandlers contains the handlers of /api/auth.
type AuthHandlers struct {
	svc     AuthService
	cookies CookieJar
}

// NewAuth creates a new AuthHandlers instance.
func NewAuth(svc AuthService, cookies CookieJar) *AuthHandlers {
	return &AuthHandlers{svc: svc, cookies: cookies}
}

// RegisterRequest is the request body for registration.
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	UserType string `json:"userType"`
}

// Register creates an account and starts email verification.
func (h *AuthHandlers) Register(c echo.Context) error {
	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return failure(c, http.StatusBadRequest, "invalid_request", nil)
	}

	res, err := h.svc.Register(c.Request().Context(), authsvc.RegisterParams{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Kind:     models.AccountKind(req.UserType),
	})
	if err != nil {
		if errors.Is(err, authsvc.ErrNotificationFailed) && res != nil && res.Account != nil {
			slog.WarnContext(c.Request().Context(), "register_unverified", "account_id", res.Account.ID, "state", res.State)
		}
		return fail(c, err, "register_notification_failed")
	}

	messageID := "register_success"
	if res.State == authsvc.StateDevBypassVerified {
		messageID = "register_success_dev"
	}
	return h.sendToken(c, http.StatusCreated, res.Account, res.SessionToken, res.ExpiresAt, messageID)
}

// LoginRequest is the request body for login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login authenticates with email and password.
func (h *AuthHandlers) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return failure(c, http.StatusBadRequest, "invalid_request", nil)
	}

	acct, err := h.svc.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return fail(c, err, "internal_error")
	}
	return h.issueAndSend(c, http.StatusOK, acct, "login_success")
}

// Me returns the authenticated account.
func (h *AuthHandlers) Me(c echo.Context) error {
	acct := auth.GetAccount(c.Request().Context())
	if acct == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	return c.JSON(http.StatusOK, Response{Success: true, User: newAccountView(acct)})
}

// VerifyEmailLink verifies an account with the token from the emailed link.
func (h *AuthHandlers) VerifyEmailLink(c echo.Context) error {
	if _, err := h.svc.VerifyEmail(c.Request().Context(), c.Param("token")); err != nil {
		return fail(c, err, "internal_error")
	}
	return success(c, http.StatusOK, "email_verified")
}

// VerifyCodeRequest is the request body for code verification.
type VerifyCodeRequest struct {
	Email string `json:"email"`
	Token string `json:"token"`
}

// VerifyEmailCode verifies an account with a numeric code.
func (h *AuthHandlers) VerifyEmailCode(c echo.Context) error {
	var req VerifyCodeRequest
	if err := c.Bind(&req); err != nil {
		return failure(c, http.StatusBadRequest, "invalid_request", nil)
	}
	if req.Email == "" {
		return failure(c, http.StatusBadRequest, "email_required", nil)
	}
	if req.Token == "" {
		return failure(c, http.StatusBadRequest, "code_required", nil)
	}

	if _, err := h.svc.VerifyEmailCode(c.Request().Context(), req.Email, req.Token); err != nil {
		return fail(c, err, "internal_error")
	}
	return success(c, http.StatusOK, "email_verified")
}

// ResendVerification mails a new verification code to the current account.
func (h *AuthHandlers) ResendVerification(c echo.Context) error {
	acct := auth.GetAccount(c.Request().Context())
	if acct == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	if err := h.svc.ResendVerification(c.Request().Context(), acct.ID); err != nil {
		return fail(c, err, "verification_email_failed")
	}
	return success(c, http.StatusOK, "verification_code_sent")
}

// ForgotPasswordRequest is the request body for requesting a reset link.
type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

// ForgotPassword mails a password reset link.
func (h *AuthHandlers) ForgotPassword(c echo.Context) error {
	var req ForgotPasswordRequest
	if err := c.Bind(&req); err != nil {
		return failure(c, http.StatusBadRequest, "invalid_request", nil)
	}
	if req.Email == "" {
		return failure(c, http.StatusBadRequest, "email_required", nil)
	}

	if err := h.svc.ForgotPassword(c.Request().Context(), req.Email); err != nil {
		return fail(c, err, "reset_email_failed")
	}
	return success(c, http.StatusOK, "reset_email_sent")
}

// ResetPasswordRequest is the request body for setting a new password.
type ResetPasswordRequest struct {
	Password string `json:"password"`
}

// ResetPassword sets a new password with the token from the reset link and
// signs the account in.
func (h *AuthHandlers) ResetPassword(c echo.Context) error {
	var req ResetPasswordRequest
	if err := c.Bind(&req); err != nil {
		return failure(c, http.StatusBadRequest, "invalid_request", nil)
	}

	acct, err := h.svc.ResetPassword(c.Request().Context(), c.Param("token"), req.Password)
	if err != nil {
		return fail(c, err, "internal_error")
	}
	return h.issueAndSend(c, http.StatusOK, acct, "password_reset_success")
}

// UpdatePasswordRequest is the request body for changing the password.
type UpdatePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// UpdatePassword changes the password of the current account.
func (h *AuthHandlers) UpdatePassword(c echo.Context) error {
	acct := auth.GetAccount(c.Request().Context())
	if acct == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	var req UpdatePasswordRequest
	if err := c.Bind(&req); err != nil {
		return failure(c, http.StatusBadRequest, "invalid_request", nil)
	}

	err := h.svc.ChangePassword(c.Request().Context(), acct.ID, req.CurrentPassword, req.NewPassword)
	if errors.Is(err, authsvc.ErrInvalidCredentials) {
		return failure(c, http.StatusUnauthorized, "current_password_incorrect", nil)
	}
	if err != nil {
		return fail(c, err, "internal_error")
	}
	return h.issueAndSend(c, http.StatusOK, acct, "password_updated")
}

// Logout clears the session cookie. Session tokens are stateless, so a
// bearer token stays valid until it expires.
func (h *AuthHandlers) Logout(c echo.Context) error {
	c.SetCookie(h.cookies.Clear())
	return success(c, http.StatusOK, "logout_success")
}

func (h *AuthHandlers) issueAndSend(c echo.Context, code int, acct *models.Account, messageID string) error {
	tok, expiresAt, err := h.svc.IssueSessionToken(acct)
	if err != nil {
		return fail(c, err, "internal_error")
	}
	return h.sendToken(c, code, acct, tok, expiresAt, messageID)
}

func (h *AuthHandlers) sendToken(c echo.Context, code int, acct *models.Account, tok string, expiresAt time.Time, messageID string) error {
	cookie, err := h.cookies.Cookie(tok, expiresAt)
	if err != nil {
		return fail(c, err, "internal_error")
	}
	c.SetCookie(cookie)

	return c.JSON(code, Response{
		Success: true,
		Message: message(c, messageID, nil),
		Token:   tok,
		User:    newAccountView(acct),
	})
}
