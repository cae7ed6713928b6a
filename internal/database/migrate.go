package database

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratemysql "github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"

	"github.com/iliyamo/ledwall/internal/config"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// newMigrator opens a handle of its own for the migration driver, which
// pins one connection for its lifetime.  Closing the returned Migrate
// releases that handle and leaves the application pool untouched.
func newMigrator(cfg config.DBConfig) (*migrate.Migrate, error) {
	src, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return nil, fmt.Errorf("migrations source: %w", err)
	}
	db, err := sql.Open("mysql", DSN(cfg))
	if err != nil {
		_ = src.Close()
		return nil, fmt.Errorf("migrations db: %w", err)
	}
	db.SetMaxOpenConns(1)
	driver, err := migratemysql.WithInstance(db, &migratemysql.Config{})
	if err != nil {
		_ = src.Close()
		_ = db.Close()
		return nil, fmt.Errorf("migrations driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "mysql", driver)
	if err != nil {
		_ = src.Close()
		_ = driver.Close()
		return nil, fmt.Errorf("migrate new: %w", err)
	}
	return m, nil
}

func closeMigrator(m *migrate.Migrate, log *zap.Logger) {
	srcErr, dbErr := m.Close()
	if srcErr != nil || dbErr != nil {
		log.Warn("migrate: close", zap.NamedError("source", srcErr), zap.NamedError("database", dbErr))
	}
}

// MigrateUp applies every pending migration.
func MigrateUp(cfg config.DBConfig, log *zap.Logger) error {
	m, err := newMigrator(cfg)
	if err != nil {
		return err
	}
	defer closeMigrator(m, log)
	err = m.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		log.Info("migrate: no pending migrations")
		return nil
	}
	if err != nil {
		return fmt.Errorf("migrate up: %w", err)
	}
	v, _, _ := m.Version()
	log.Info("migrate: up ok", zap.Uint("version", v))
	return nil
}

// MigrateDown rolls back the given number of migrations.
func MigrateDown(cfg config.DBConfig, steps int, log *zap.Logger) error {
	if steps < 1 {
		return fmt.Errorf("migrate down: steps must be at least 1")
	}
	m, err := newMigrator(cfg)
	if err != nil {
		return err
	}
	defer closeMigrator(m, log)
	if err := m.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate down: %w", err)
	}
	log.Info("migrate: down ok", zap.Int("steps", steps))
	return nil
}
