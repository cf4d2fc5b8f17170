// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package config

import (
	"time"

	"github.com/urfave/cli-altsrc/v3/toml"
	"github.com/urfave/cli/v3"
)

func source(env, key string) cli.ValueSourceChain {
	return cli.NewValueSourceChain(cli.EnvVar(env), toml.TOML(key, configFile))
}

func Flags() []cli.Flag {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:    "host",
			Value:   "localhost",
			Usage:   "Host to bind to",
			Sources: source("HOST", "server.host"),
		},
		&cli.IntFlag{
			Name:    "port",
			Value:   8080,
			Usage:   "Port to listen on",
			Sources: source("PORT", "server.port"),
		},
		&cli.StringFlag{
			Name:    "base-url",
			Usage:   "Public base URL of the API",
			Sources: source("BASE_URL", "server.base_url"),
		},
		&cli.StringFlag{
			Name:    "frontend-url",
			Usage:   "Base URL of the web client used in email links (defaults to base-url)",
			Sources: source("FRONTEND_URL", "server.frontend_url"),
		},
		&cli.IntFlag{
			Name:    "max-body-size",
			Value:   1,
			Usage:   "Maximum request body size in MB",
			Sources: source("MAX_BODY_SIZE", "server.max_body_size"),
		},
		&cli.FloatFlag{
			Name:    "auth-rate-limit",
			Value:   5,
			Usage:   "Requests per second per client on /api/auth (0 disables)",
			Sources: source("AUTH_RATE_LIMIT", "server.auth_rate_limit"),
		},
		&cli.IntFlag{
			Name:    "auth-rate-burst",
			Value:   10,
			Usage:   "Burst size for the auth rate limiter",
			Sources: source("AUTH_RATE_BURST", "server.auth_rate_burst"),
		},
		&cli.StringFlag{
			Name:    "log-level",
			Value:   "info",
			Usage:   "Log level (debug, info, warn, error)",
			Sources: source("LOG_LEVEL", "log.level"),
		},
		&cli.StringFlag{
			Name:    "log-format",
			Value:   "text",
			Usage:   "Log format (text, json)",
			Sources: source("LOG_FORMAT", "log.format"),
		},
		&cli.StringFlag{
			Name:    "database-dsn",
			Value:   "./data/jobsecure.db",
			Usage:   "Database DSN",
			Sources: source("DATABASE_DSN", "database.dsn"),
		},
		&cli.StringFlag{
			Name:    "tls-mode",
			Value:   "auto",
			Usage:   "TLS mode (auto, acme, manual, off)",
			Sources: source("TLS_MODE", "tls.mode"),
		},
		&cli.StringFlag{
			Name:    "tls-cert-dir",
			Value:   "./data/certs",
			Usage:   "Directory for the ACME certificate cache",
			Sources: source("TLS_CERT_DIR", "tls.cert_dir"),
		},
		&cli.StringFlag{
			Name:    "tls-email",
			Usage:   "Email for ACME/Let's Encrypt registration",
			Sources: source("TLS_EMAIL", "tls.email"),
		},
		&cli.StringFlag{
			Name:    "tls-cert-file",
			Usage:   "Path to TLS certificate file (manual mode)",
			Sources: source("TLS_CERT_FILE", "tls.cert_file"),
		},
		&cli.StringFlag{
			Name:    "tls-key-file",
			Usage:   "Path to TLS private key file (manual mode)",
			Sources: source("TLS_KEY_FILE", "tls.key_file"),
		},
		&cli.StringFlag{
			Name:    "session-cookie-name",
			Value:   "token",
			Usage:   "Name of the session cookie",
			Sources: source("SESSION_COOKIE_NAME", "session.cookie_name"),
		},
		&cli.StringFlag{
			Name:    "session-hash-key",
			Usage:   "Cookie hash key (32-byte hex, generated per process if empty)",
			Sources: source("SESSION_HASH_KEY", "session.hash_key"),
		},
		&cli.StringFlag{
			Name:    "session-block-key",
			Usage:   "Cookie block key for encryption (32-byte hex, optional)",
			Sources: source("SESSION_BLOCK_KEY", "session.block_key"),
		},
	}

	flags = append(flags, authFlags()...)
	flags = append(flags, smtpFlags()...)
	flags = append(flags, validationFlags()...)
	return flags
}

func authFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "mode",
			Value:   string(ModeProduction),
			Usage:   "Deployment mode (development, production)",
			Sources: source("APP_MODE", "auth.mode"),
		},
		&cli.StringFlag{
			Name:    "jwt-secret",
			Usage:   "Secret used to sign session tokens",
			Sources: source("JWT_SECRET", "auth.jwt_secret"),
		},
		&cli.StringFlag{
			Name:    "jwt-issuer",
			Value:   "jobsecure",
			Usage:   "Issuer claim of session tokens",
			Sources: source("JWT_ISSUER", "auth.jwt_issuer"),
		},
		&cli.DurationFlag{
			Name:    "jwt-expiry",
			Value:   30 * 24 * time.Hour,
			Usage:   "Lifetime of session tokens",
			Sources: source("JWT_EXPIRY", "auth.jwt_expiry"),
		},
		&cli.DurationFlag{
			Name:    "verification-ttl",
			Value:   24 * time.Hour,
			Usage:   "Lifetime of email verification links",
			Sources: source("VERIFICATION_TTL", "auth.verification_ttl"),
		},
		&cli.DurationFlag{
			Name:    "verification-code-ttl",
			Value:   time.Hour,
			Usage:   "Lifetime of resent numeric verification codes",
			Sources: source("VERIFICATION_CODE_TTL", "auth.verification_code_ttl"),
		},
		&cli.DurationFlag{
			Name:    "reset-ttl",
			Value:   time.Hour,
			Usage:   "Lifetime of password reset links sent on request",
			Sources: source("RESET_TTL", "auth.reset_ttl"),
		},
		&cli.DurationFlag{
			Name:    "reset-helper-ttl",
			Value:   10 * time.Minute,
			Usage:   "Lifetime of password reset links issued by operators",
			Sources: source("RESET_HELPER_TTL", "auth.reset_helper_ttl"),
		},
		&cli.StringFlag{
			Name:    "token-pepper",
			Usage:   "Secret mixed into stored token hashes",
			Sources: source("TOKEN_PEPPER", "auth.token_pepper"),
		},
		&cli.IntFlag{
			Name:    "argon2-memory",
			Value:   64 * 1024,
			Usage:   "Argon2id memory cost in KiB",
			Sources: source("ARGON2_MEMORY", "argon2.memory"),
		},
		&cli.IntFlag{
			Name:    "argon2-iterations",
			Value:   3,
			Usage:   "Argon2id iterations",
			Sources: source("ARGON2_ITERATIONS", "argon2.iterations"),
		},
		&cli.IntFlag{
			Name:    "argon2-parallelism",
			Value:   4,
			Usage:   "Argon2id parallelism",
			Sources: source("ARGON2_PARALLELISM", "argon2.parallelism"),
		},
		&cli.IntFlag{
			Name:    "argon2-salt-length",
			Value:   16,
			Usage:   "Argon2id salt length in bytes",
			Sources: source("ARGON2_SALT_LENGTH", "argon2.salt_length"),
		},
		&cli.IntFlag{
			Name:    "argon2-key-length",
			Value:   32,
			Usage:   "Argon2id key length in bytes",
			Sources: source("ARGON2_KEY_LENGTH", "argon2.key_length"),
		},
	}
}

func smtpFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "smtp-host",
			Usage:   "SMTP server host (emails are logged when empty)",
			Sources: source("SMTP_HOST", "smtp.host"),
		},
		&cli.IntFlag{
			Name:    "smtp-port",
			Value:   587,
			Usage:   "SMTP server port",
			Sources: source("SMTP_PORT", "smtp.port"),
		},
		&cli.StringFlag{
			Name:    "smtp-username",
			Usage:   "SMTP username",
			Sources: source("SMTP_USERNAME", "smtp.username"),
		},
		&cli.StringFlag{
			Name:    "smtp-password",
			Usage:   "SMTP password",
			Sources: source("SMTP_PASSWORD", "smtp.password"),
		},
		&cli.StringFlag{
			Name:    "smtp-from",
			Value:   "noreply@jobsecure.app",
			Usage:   "Sender address",
			Sources: source("SMTP_FROM", "smtp.from"),
		},
		&cli.StringFlag{
			Name:    "smtp-from-name",
			Value:   "JobSecure",
			Usage:   "Sender display name",
			Sources: source("SMTP_FROM_NAME", "smtp.from_name"),
		},
		&cli.BoolFlag{
			Name:    "smtp-tls",
			Value:   true,
			Usage:   "Require TLS for SMTP",
			Sources: source("SMTP_TLS", "smtp.tls"),
		},
	}
}

func validationFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "abstract-api-key",
			Usage:   "Abstract email validation API key (check is skipped when empty)",
			Sources: source("ABSTRACT_API_KEY", "validation.abstract_api_key"),
		},
		&cli.StringFlag{
			Name:    "abstract-api-url",
			Value:   "https://emailvalidation.abstractapi.com/v1/",
			Usage:   "Abstract email validation endpoint",
			Sources: source("ABSTRACT_API_URL", "validation.abstract_api_url"),
		},
		&cli.DurationFlag{
			Name:    "deliverability-timeout",
			Value:   5 * time.Second,
			Usage:   "Timeout for the deliverability API call",
			Sources: source("DELIVERABILITY_TIMEOUT", "validation.deliverability_timeout"),
		},
		&cli.DurationFlag{
			Name:    "mx-timeout",
			Value:   3 * time.Second,
			Usage:   "Timeout for MX lookups",
			Sources: source("MX_TIMEOUT", "validation.mx_timeout"),
		},
		&cli.StringSliceFlag{
			Name:    "dev-bypass-domains",
			Value:   []string{"gmail.com"},
			Usage:   "Domains that skip the deliverability API in development mode",
			Sources: source("DEV_BYPASS_DOMAINS", "validation.dev_bypass_domains"),
		},
	}
}
