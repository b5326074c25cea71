package database

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/mbolis/survey-board/log"
)

//go:embed migrations
var dbMigrations embed.FS

// migrateDB brings the survey schema to the latest embedded version.
func migrateDB(db *sql.DB) error {
	src, err := iofs.New(dbMigrations, "migrations")
	if err != nil {
		return fmt.Errorf("migrate.source: %w", err)
	}

	dst, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("migrate.driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", src, "sqlite3", dst)
	if err != nil {
		return fmt.Errorf("migrate.init: %w", err)
	}

	err = migrator.Up()
	switch {
	case errors.Is(err, migrate.ErrNoChange):
		// db already up to date
	case err != nil:
		return fmt.Errorf("migrate.up: %w", err)
	}

	version, dirty, err := migrator.Version()
	if err != nil {
		return fmt.Errorf("migrate.version: %w", err)
	}
	if dirty {
		return fmt.Errorf("migrate.version: schema version %d is dirty", version)
	}
	log.Debugf("database schema at version %d", version)
	return nil
}
