// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"codeberg.org/jobsecure/jobsecure/internal/config"
	"codeberg.org/jobsecure/jobsecure/internal/database"
	"codeberg.org/jobsecure/jobsecure/internal/handlers"
	"codeberg.org/jobsecure/jobsecure/internal/i18n"
	"codeberg.org/jobsecure/jobsecure/internal/repository"
	authsvc "codeberg.org/jobsecure/jobsecure/internal/services/auth"
	"codeberg.org/jobsecure/jobsecure/internal/services/email"
	"codeberg.org/jobsecure/jobsecure/internal/services/emailcheck"
	"codeberg.org/jobsecure/jobsecure/internal/services/password"
	"codeberg.org/jobsecure/jobsecure/internal/services/session"
	"codeberg.org/jobsecure/jobsecure/internal/services/token"
	"github.com/labstack/echo/v4"
	"github.com/urfave/cli/v3"
	"github.com/vinovest/sqlx"
)

// App is a fully wired instance of the API.
type App struct {
	Echo     *echo.Echo
	DB       *sqlx.DB
	Repo     *repository.Repository
	Auth     *authsvc.Service
	Sessions *session.Manager
}

// Close releases the database.
func (a *App) Close() error {
	return a.DB.Close()
}

// Run starts the server with the given CLI command.
func Run(ctx context.Context, cmd *cli.Command) error {
	cfg := config.NewFromCLI(cmd)
	SetupLogger(cfg.Log.Level, cfg.Log.Format)

	slog.Info("starting server",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"base_url", cfg.Server.BaseURL,
		"mode", cfg.Auth.Mode,
	)

	app, err := New(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := app.Close(); closeErr != nil {
			slog.Error("failed to close database", "error", closeErr)
		}
	}()

	return startWithGracefulShutdown(ctx, app.Echo, cfg)
}

// New opens the database and wires services, middleware and routes.
func New(cfg *config.Config) (*App, error) {
	db, err := database.Open(cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if initErr := i18n.Init(); initErr != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to init i18n: %w", initErr)
	}

	repo := repository.New(db)

	svc, sessions, err := NewAuthService(cfg, repo)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = handlers.ErrorHandler

	setupMiddleware(e, cfg, sessions, repo)
	setupRoutes(e, cfg, repo, svc, sessions)

	return &App{Echo: e, DB: db, Repo: repo, Auth: svc, Sessions: sessions}, nil
}

// NewAuthService wires the registration pipeline and account flows on top
// of repo.
func NewAuthService(cfg *config.Config, repo *repository.Repository) (*authsvc.Service, *session.Manager, error) {
	hasher, err := password.NewHasher(cfg.Argon2)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to configure password hashing: %w", err)
	}

	sender, err := email.NewSender(&cfg.SMTP)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to configure email: %w", err)
	}

	secure := strings.HasPrefix(cfg.Server.BaseURL, "https://")
	sessions, err := session.NewManager(&cfg.Session, &cfg.Auth, secure)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to configure sessions: %w", err)
	}

	abstract := emailcheck.NewAbstractClient(
		cfg.Validation.AbstractAPIKey,
		cfg.Validation.AbstractAPIURL,
		cfg.Validation.DeliverabilityTimeout,
	)
	validator := emailcheck.NewValidator(
		emailcheck.NewDomainVerifier(nil, cfg.Validation.MXTimeout),
		emailcheck.NewDeliverabilityOracle(abstract, cfg.Auth.Mode, cfg.Validation.DevBypassDomains),
	)

	svc, err := authsvc.NewService(authsvc.Deps{
		Accounts:  repo,
		Validator: validator,
		Tokens:    token.NewIssuer(repo, hasher, cfg.Auth.TokenPepper, token.TTLsFromConfig(&cfg.Auth)),
		Notifier:  email.NewService(sender, cfg.Server.BaseURL, cfg.Server.FrontendURL),
		Sessions:  sessions,
		Passwords: hasher,
		Mode:      cfg.Auth.Mode,
	})
	if err != nil {
		return nil, nil, err
	}
	return svc, sessions, nil
}

func startWithGracefulShutdown(ctx context.Context, e *echo.Echo, cfg *config.Config) error {
	tlsResult, err := SetupTLS(cfg)
	if err != nil {
		return fmt.Errorf("TLS setup failed: %w", err)
	}

	errChan := make(chan error, 2)

	// HTTP redirect server for ACME mode
	var httpServer *http.Server

	switch tlsResult.Mode {
	case TLSModeOff:
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		go func() {
			slog.Info("Server running", "url", cfg.Server.BaseURL)
			if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errChan <- err
			}
		}()

	case TLSModeACME:
		go func() {
			slog.Info("Server running", "url", cfg.Server.BaseURL)
			if err := startTLSServer(e, ":443", tlsResult.TLSConfig); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errChan <- err
			}
		}()

		httpServer = &http.Server{
			Addr:              ":80",
			Handler:           tlsResult.HTTPHandler,
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			slog.Info("HTTP to HTTPS redirect active", "addr", ":80")
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errChan <- err
			}
		}()

	case TLSModeManual:
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		go func() {
			slog.Info("Server running", "url", cfg.Server.BaseURL)
			if err := startTLSServer(e, addr, tlsResult.TLSConfig); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errChan <- err
			}
		}()
	}

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case <-sigCtx.Done():
		slog.Info("shutting down server")
	case err := <-errChan:
		slog.Error("server error", "error", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shutdown main server", "error", err)
	}
	if httpServer != nil {
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("failed to shutdown HTTP redirect server", "error", err)
		}
	}

	slog.Info("server stopped")
	return nil
}

// startTLSServer starts the Echo server with a custom TLS configuration.
func startTLSServer(e *echo.Echo, addr string, tlsConfig *tls.Config) error {
	lc := &net.ListenConfig{}
	ln, err := lc.Listen(context.Background(), "tcp", addr)
	if err != nil {
		return err
	}
	e.TLSListener = tls.NewListener(ln, tlsConfig)
	e.TLSServer.TLSConfig = tlsConfig
	return e.Server.Serve(e.TLSListener)
}
