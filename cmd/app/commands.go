// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"codeberg.org/jobsecure/jobsecure/internal/config"
	"codeberg.org/jobsecure/jobsecure/internal/database"
	"codeberg.org/jobsecure/jobsecure/internal/repository"
	"codeberg.org/jobsecure/jobsecure/internal/server"
	"codeberg.org/jobsecure/jobsecure/internal/services/email"
	"github.com/urfave/cli/v3"
	"github.com/vinovest/sqlx"
)

// withDB opens the configured database, applying pending migrations, and
// runs fn with it.
func withDB(cmd *cli.Command, fn func(*config.Config, *sqlx.DB) error) error {
	cfg := config.NewFromCLI(cmd)
	server.SetupLogger(cfg.Log.Level, cfg.Log.Format)

	db, err := database.Open(cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("failed to close database", "error", closeErr)
		}
	}()

	return fn(cfg, db)
}

func migrateCommand() *cli.Command {
	migrate := func(name, usage string, run func(*sql.DB) error) *cli.Command {
		return &cli.Command{
			Name:  name,
			Usage: usage,
			Action: func(_ context.Context, cmd *cli.Command) error {
				return withDB(cmd, func(_ *config.Config, db *sqlx.DB) error {
					if err := run(db.DB); err != nil {
						return fmt.Errorf("migrate %s: %w", name, err)
					}
					return printVersion(cmd, db.DB)
				})
			},
		}
	}

	return &cli.Command{
		Name:  "migrate",
		Usage: "Manage the database schema",
		Commands: []*cli.Command{
			migrate("up", "Apply all pending migrations", database.RunMigrations),
			migrate("down", "Roll back the last migration", database.MigrateDown),
			migrate("reset", "Roll back all migrations", database.MigrateReset),
			{
				Name:  "version",
				Usage: "Print the current schema version",
				Action: func(_ context.Context, cmd *cli.Command) error {
					return withDB(cmd, func(_ *config.Config, db *sqlx.DB) error {
						return printVersion(cmd, db.DB)
					})
				},
			},
		},
	}
}

func printVersion(cmd *cli.Command, db *sql.DB) error {
	version, err := database.MigrationVersion(db)
	if err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}
	_, err = fmt.Fprintf(cmd.Root().Writer, "schema version %d\n", version)
	return err
}

func accountsCommand() *cli.Command {
	return &cli.Command{
		Name:  "accounts",
		Usage: "Operator helpers for accounts",
		Commands: []*cli.Command{
			{
				Name:  "reset-link",
				Usage: "Issue a short-lived password reset link and print it",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "email",
						Usage:    "Email address of the account",
						Required: true,
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return withDB(cmd, func(cfg *config.Config, db *sqlx.DB) error {
						svc, _, err := server.NewAuthService(cfg, repository.New(db))
						if err != nil {
							return err
						}

						issued, err := svc.IssueHelperResetLink(ctx, cmd.String("email"))
						if err != nil {
							return fmt.Errorf("issuing reset link: %w", err)
						}

						links := email.NewService(nil, cfg.Server.BaseURL, cfg.Server.FrontendURL)
						_, err = fmt.Fprintf(cmd.Root().Writer, "%s\nexpires %s\n",
							links.ResetURL(issued.Raw), issued.ExpiresAt.Format("2006-01-02 15:04:05 MST"))
						return err
					})
				},
			},
		},
	}
}
