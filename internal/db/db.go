// Package db persists the update attempt history for pubsub-ops.
package db

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/iotlab/pubsub-ops/internal/log"

	// Register migrate's sqlite3 driver.
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"

	// Register sqlite3 driver.
	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Connect opens the history database, creating its directory if needed.
func Connect(dbPath string, logger log.Logger) (*sql.DB, error) {
	dbPath = strings.TrimPrefix(dbPath, "sqlite3://")

	if err := os.MkdirAll(filepath.Dir(dbPath), 0750); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	if err = conn.Ping(); err != nil {
		conn.Close()
		return nil, err
	}

	logger.Debug("Connected to history database", "path", dbPath)
	return conn, nil
}

// Up runs database migrations to the latest version.
func Up(dbPath string, logger log.Logger) error {
	dbPath = strings.TrimPrefix(dbPath, "sqlite3://")

	if err := os.MkdirAll(filepath.Dir(dbPath), 0750); err != nil {
		return err
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return err
	}

	m, err := migrate.NewWithSourceInstance("iofs", sourceDriver, "sqlite3://"+dbPath)
	if err != nil {
		return err
	}
	m.Log = &migrationLogger{logger: logger}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

type migrationLogger struct {
	logger log.Logger
}

func (l *migrationLogger) Printf(format string, v ...interface{}) {
	l.logger.Debug("Migration: " + strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l *migrationLogger) Verbose() bool {
	return false
}
