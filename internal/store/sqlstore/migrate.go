package sqlstore

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/MrSnakeDoc/marks/internal/logger"
)

//go:embed migrations
var migrationsFS embed.FS

// MigrateUp applies all pending migrations.
func MigrateUp(databaseURL string, log logger.Logger) error {
	return withMigrator(databaseURL, func(m *migrate.Migrate) error {
		if err := m.Up(); err != nil {
			if errors.Is(err, migrate.ErrNoChange) {
				log.Info("no pending migrations")
				return nil
			}
			return fmt.Errorf("run migrations: %w", err)
		}
		log.Info("migrations applied successfully")
		return nil
	})
}

// MigrateDown rolls back steps migrations (default: 1).
func MigrateDown(databaseURL string, steps int, log logger.Logger) error {
	if steps <= 0 {
		steps = 1
	}
	return withMigrator(databaseURL, func(m *migrate.Migrate) error {
		if err := m.Steps(-steps); err != nil {
			if errors.Is(err, migrate.ErrNoChange) {
				log.Info("no migrations to roll back")
				return nil
			}
			return fmt.Errorf("rollback migrations: %w", err)
		}
		log.Info("migrations rolled back successfully", logger.Int("steps", steps))
		return nil
	})
}

// MigrationVersion reports the current schema version. ok is false on an
// empty database.
func MigrationVersion(databaseURL string) (version uint, dirty, ok bool, err error) {
	err = withMigrator(databaseURL, func(m *migrate.Migrate) error {
		v, d, verr := m.Version()
		if errors.Is(verr, migrate.ErrNilVersion) {
			return nil
		}
		if verr != nil {
			return fmt.Errorf("read migration version: %w", verr)
		}
		version, dirty, ok = v, d, true
		return nil
	})
	return version, dirty, ok, err
}

// withMigrator runs fn on a dedicated connection: closing a migrate
// instance closes its database handle.
func withMigrator(databaseURL string, fn func(*migrate.Migrate) error) error {
	target, err := ParseURL(databaseURL)
	if err != nil {
		return err
	}

	db, err := sql.Open(target.Driver, target.DSN)
	if err != nil {
		return fmt.Errorf("open database connection: %w", err)
	}

	var driver database.Driver
	switch target.Dialect {
	case Postgres:
		driver, err = postgres.WithInstance(db, &postgres.Config{})
	case SQLite:
		driver, err = migratesqlite.WithInstance(db, &migratesqlite.Config{})
	default:
		err = fmt.Errorf("no migration driver for %s", target.Dialect)
	}
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("create %s migration driver: %w", target.Dialect, err)
	}

	src, err := iofs.New(migrationsFS, "migrations/"+string(target.Dialect))
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("open embedded migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, string(target.Dialect), driver)
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("create migrate instance: %w", err)
	}
	defer func() {
		_, _ = m.Close()
	}()

	return fn(m)
}
