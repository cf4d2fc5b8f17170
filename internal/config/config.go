// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package config

import (
	"fmt"
	"strings"
	"time"

	altsrc "github.com/urfave/cli-altsrc/v3"
	"github.com/urfave/cli/v3"
)

var configFile = altsrc.StringSourcer("config.toml")

type Config struct { //nolint:govet // fieldalignment not critical for config structs
	Server     ServerConfig
	Log        LogConfig
	Database   DatabaseConfig
	TLS        TLSConfig
	Session    SessionConfig
	Auth       AuthConfig
	Argon2     Argon2Config
	SMTP       SMTPConfig
	Validation ValidationConfig
}

type TLSConfig struct {
	Mode     string // auto, acme, manual, off
	CertDir  string // ACME certificate cache
	Email    string // ACME email for Let's Encrypt
	CertFile string // Path to certificate file (manual mode)
	KeyFile  string // Path to private key file (manual mode)
}

type ServerConfig struct { //nolint:govet // fieldalignment not critical for config structs
	Host          string
	Port          int
	BaseURL       string
	FrontendURL   string // Links in emails point here
	MaxBodySize   int    // in MB
	AuthRateLimit float64
	AuthRateBurst int
}

type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // text, json
}

type DatabaseConfig struct {
	DSN string
}

type SessionConfig struct { //nolint:govet // fieldalignment not critical
	CookieName string
	HashKey    string // 32-byte hex string for HMAC signing
	BlockKey   string // 32-byte hex string for AES encryption (optional)
}

type AuthConfig struct { //nolint:govet // fieldalignment not critical
	Mode                Mode
	JWTSecret           string
	JWTIssuer           string
	JWTExpiry           time.Duration
	VerificationTTL     time.Duration
	VerificationCodeTTL time.Duration
	ResetTTL            time.Duration
	ResetHelperTTL      time.Duration
	TokenPepper         string
}

type Argon2Config struct {
	Memory      uint32 // KiB
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

type SMTPConfig struct { //nolint:govet // fieldalignment not critical
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
	TLS      bool
}

// Enabled reports whether an SMTP relay is configured.
func (c *SMTPConfig) Enabled() bool {
	return c.Host != ""
}

type ValidationConfig struct { //nolint:govet // fieldalignment not critical
	AbstractAPIKey        string
	AbstractAPIURL        string
	DeliverabilityTimeout time.Duration
	MXTimeout             time.Duration
	DevBypassDomains      []string
}

func NewFromCLI(cmd *cli.Command) *Config {
	cfg := &Config{
		Server: ServerConfig{
			Host:          cmd.String("host"),
			Port:          int(cmd.Int("port")),
			BaseURL:       cmd.String("base-url"),
			FrontendURL:   cmd.String("frontend-url"),
			MaxBodySize:   int(cmd.Int("max-body-size")),
			AuthRateLimit: cmd.Float("auth-rate-limit"),
			AuthRateBurst: int(cmd.Int("auth-rate-burst")),
		},
		Log: LogConfig{
			Level:  cmd.String("log-level"),
			Format: cmd.String("log-format"),
		},
		Database: DatabaseConfig{
			DSN: cmd.String("database-dsn"),
		},
		TLS: TLSConfig{
			Mode:     cmd.String("tls-mode"),
			CertDir:  cmd.String("tls-cert-dir"),
			Email:    cmd.String("tls-email"),
			CertFile: cmd.String("tls-cert-file"),
			KeyFile:  cmd.String("tls-key-file"),
		},
		Session: SessionConfig{
			CookieName: cmd.String("session-cookie-name"),
			HashKey:    cmd.String("session-hash-key"),
			BlockKey:   cmd.String("session-block-key"),
		},
		Auth: AuthConfig{
			Mode:                ParseMode(cmd.String("mode")),
			JWTSecret:           cmd.String("jwt-secret"),
			JWTIssuer:           cmd.String("jwt-issuer"),
			JWTExpiry:           cmd.Duration("jwt-expiry"),
			VerificationTTL:     cmd.Duration("verification-ttl"),
			VerificationCodeTTL: cmd.Duration("verification-code-ttl"),
			ResetTTL:            cmd.Duration("reset-ttl"),
			ResetHelperTTL:      cmd.Duration("reset-helper-ttl"),
			TokenPepper:         cmd.String("token-pepper"),
		},
		Argon2: Argon2Config{
			Memory:      uint32(cmd.Int("argon2-memory")),     //nolint:gosec // bounded by flag usage
			Iterations:  uint32(cmd.Int("argon2-iterations")), //nolint:gosec // bounded by flag usage
			Parallelism: uint8(cmd.Int("argon2-parallelism")), //nolint:gosec // bounded by flag usage
			SaltLength:  uint32(cmd.Int("argon2-salt-length")), //nolint:gosec // bounded by flag usage
			KeyLength:   uint32(cmd.Int("argon2-key-length")),  //nolint:gosec // bounded by flag usage
		},
		SMTP: SMTPConfig{
			Host:     cmd.String("smtp-host"),
			Port:     int(cmd.Int("smtp-port")),
			Username: cmd.String("smtp-username"),
			Password: cmd.String("smtp-password"),
			From:     cmd.String("smtp-from"),
			FromName: cmd.String("smtp-from-name"),
			TLS:      cmd.Bool("smtp-tls"),
		},
		Validation: ValidationConfig{
			AbstractAPIKey:        cmd.String("abstract-api-key"),
			AbstractAPIURL:        cmd.String("abstract-api-url"),
			DeliverabilityTimeout: cmd.Duration("deliverability-timeout"),
			MXTimeout:             cmd.Duration("mx-timeout"),
			DevBypassDomains:      cmd.StringSlice("dev-bypass-domains"),
		},
	}

	if cfg.Server.BaseURL == "" {
		cfg.Server.BaseURL = buildBaseURL(cfg)
	}
	if cfg.Server.FrontendURL == "" {
		cfg.Server.FrontendURL = cfg.Server.BaseURL
	}

	return cfg
}

func buildBaseURL(cfg *Config) string {
	host := cfg.Server.Host
	port := cfg.Server.Port
	mode := strings.ToLower(cfg.TLS.Mode)

	scheme := "http"
	if shouldUseTLS(mode, host) {
		scheme = "https"
	}

	// ACME always serves on 443
	if mode == "acme" {
		return fmt.Sprintf("https://%s", host)
	}

	if (scheme == "http" && port == 80) || (scheme == "https" && port == 443) {
		return fmt.Sprintf("%s://%s", scheme, host)
	}
	return fmt.Sprintf("%s://%s:%d", scheme, host, port)
}

func shouldUseTLS(mode, host string) bool {
	switch mode {
	case "off":
		return false
	case "acme", "manual":
		return true
	default: // "auto" or empty
		return !IsLocalhost(host)
	}
}

// IsLocalhost checks if the host is a localhost address.
func IsLocalhost(host string) bool {
	switch host {
	case "", "localhost", "127.0.0.1", "::1":
		return true
	}
	return strings.HasSuffix(host, ".localhost")
}
