// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/BurntSushi/toml"
	"github.com/urfave/cli/v3"
	"github.com/vinovest/sqlx"

	"codeberg.org/oliverandrich/lostfound-auth/internal/config"
	"codeberg.org/oliverandrich/lostfound-auth/internal/database"
)

func migrateCommand() *cli.Command {
	step := func(name, usage string, fn func(*sqlx.DB) error) *cli.Command {
		return &cli.Command{
			Name:  name,
			Usage: usage,
			Action: func(_ context.Context, cmd *cli.Command) error {
				return withDatabase(cmd, fn)
			},
		}
	}

	return &cli.Command{
		Name:  "migrate",
		Usage: "Manage the database schema",
		Commands: []*cli.Command{
			step("up", "Apply all pending migrations", database.RunMigrations),
			step("down", "Roll back the most recent migration", database.MigrateDown),
			step("reset", "Roll back all migrations", database.MigrateReset),
			step("status", "Show migration status", database.MigrateStatus),
			{
				Name:  "version",
				Usage: "Print the current schema version",
				Action: func(_ context.Context, cmd *cli.Command) error {
					return withDatabase(cmd, func(db *sqlx.DB) error {
						v, err := database.Version(db)
						if err != nil {
							return err
						}
						_, err = fmt.Fprintln(cmd.Root().Writer, v)
						return err
					})
				},
			},
		},
	}
}

// withDatabase connects without migrating, so each subcommand controls the schema itself.
func withDatabase(cmd *cli.Command, fn func(*sqlx.DB) error) error {
	cfg := config.NewFromCLI(cmd)

	db, err := database.Connect(cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("failed to close database", "error", closeErr)
		}
	}()

	return fn(db)
}

func configCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Print the effective configuration as TOML (secrets redacted)",
		Action: func(_ context.Context, cmd *cli.Command) error {
			cfg := config.NewFromCLI(cmd)
			if err := toml.NewEncoder(cmd.Root().Writer).Encode(cfg.Redacted()); err != nil {
				return fmt.Errorf("failed to encode config: %w", err)
			}
			if err := cfg.Validate(); err != nil {
				slog.Warn("configuration is not valid", "error", err)
			}
			return nil
		},
	}
}
