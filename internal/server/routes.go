// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"codeberg.org/jobsecure/jobsecure/internal/config"
	"codeberg.org/jobsecure/jobsecure/internal/handlers"
	"codeberg.org/jobsecure/jobsecure/internal/middleware"
	"codeberg.org/jobsecure/jobsecure/internal/repository"
	authsvc "codeberg.org/jobsecure/jobsecure/internal/services/auth"
	"codeberg.org/jobsecure/jobsecure/internal/services/session"
	"github.com/labstack/echo/v4"
)

func setupRoutes(e *echo.Echo, cfg *config.Config, repo *repository.Repository, svc *authsvc.Service, sessions *session.Manager) {
	h := handlers.New(repo)
	e.GET("/health", h.Health)

	a := handlers.NewAuth(svc, sessions)
	api := e.Group("/api/auth", authRateLimiter(cfg)...)

	api.POST("/register", a.Register)
	api.POST("/login", a.Login)
	api.GET("/logout", a.Logout)
	api.GET("/verify-email/:token", a.VerifyEmailLink)
	api.POST("/verify-email", a.VerifyEmailCode)
	api.POST("/forgot-password", a.ForgotPassword)
	api.PUT("/reset-password/:token", a.ResetPassword)

	api.GET("/me", a.Me, middleware.RequireAuth)
	api.POST("/resend-verification", a.ResendVerification, middleware.RequireAuth)
	api.PUT("/update-password", a.UpdatePassword, middleware.RequireAuth)
}
