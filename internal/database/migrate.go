// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package database

import (
	"embed"
	"sync"

	"github.com/pressly/goose/v3"
	"github.com/vinovest/sqlx"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var embedMigrations embed.FS

// goose keeps its dialect and filesystem in package state.
var gooseMu sync.Mutex

func dialectOfConn(db *sqlx.DB) Dialect {
	if db.DriverName() == DialectPostgres.driverName() {
		return DialectPostgres
	}
	return DialectSQLite
}

func migrationsDir(d Dialect) string {
	if d == DialectPostgres {
		return "migrations/postgres"
	}
	return "migrations/sqlite"
}

func withGoose(db *sqlx.DB, fn func(dir string) error) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	d := dialectOfConn(db)
	goose.SetBaseFS(embedMigrations)
	if err := goose.SetDialect(string(d)); err != nil {
		return err
	}
	return fn(migrationsDir(d))
}

// RunMigrations runs all pending goose migrations.
func RunMigrations(db *sqlx.DB) error {
	return withGoose(db, func(dir string) error {
		return goose.Up(db.DB, dir)
	})
}

// MigrateDown rolls back the last migration.
func MigrateDown(db *sqlx.DB) error {
	return withGoose(db, func(dir string) error {
		return goose.Down(db.DB, dir)
	})
}

// MigrateReset rolls back all migrations.
func MigrateReset(db *sqlx.DB) error {
	return withGoose(db, func(dir string) error {
		return goose.Reset(db.DB, dir)
	})
}

// MigrateStatus prints the state of every migration through goose's logger.
func MigrateStatus(db *sqlx.DB) error {
	return withGoose(db, func(dir string) error {
		return goose.Status(db.DB, dir)
	})
}

// Version returns the currently applied migration version.
func Version(db *sqlx.DB) (int64, error) {
	var v int64
	err := withGoose(db, func(string) error {
		var err error
		v, err = goose.GetDBVersion(db.DB)
		return err
	})
	return v, err
}
