package database

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/baptistelechat/overti-me/internal/config"
	"github.com/gofrs/flock"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	log "github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

//go:embed migrations/sqlite/*.sql
var sqliteMigrations embed.FS

const localFileName = "overti-me.db"

var ErrLocalInUse = errors.New("local data is in use by another overti-me process")

// LocalPath resolves the SQLite file location, defaulting to the user config directory.
func LocalPath(cfg config.Local) (string, error) {
	if cfg.Path != "" {
		return cfg.Path, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("finding config directory: %w", err)
	}
	return filepath.Join(dir, "overti-me", localFileName), nil
}

// LockLocal takes an exclusive lock next to the SQLite file for the lifetime of the
// process, so only one process at a time reads and rewrites the week collection.
func LockLocal(cfg config.Local) (*flock.Flock, error) {
	path, err := LocalPath(cfg)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	lock := flock.New(path + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("locking %s: %w", lock.Path(), err)
	}
	if !locked {
		return nil, fmt.Errorf("%w (%s is held, stop \"overti-me serve\" or use its HTTP API)", ErrLocalInUse, lock.Path())
	}
	return lock, nil
}

// OpenLocal opens (and creates if needed) the local SQLite database and migrates it.
func OpenLocal(cfg config.Local) (*sql.DB, error) {
	path, err := LocalPath(cfg)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	if err := MigrateLocal(db); err != nil {
		db.Close()
		return nil, err
	}
	log.Debugf("Opened local database %s", path)
	return db, nil
}

// MigrateLocal applies the embedded SQLite migrations. The migrate instance is not closed
// because closing it would close db as well.
func MigrateLocal(db *sql.DB) error {
	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create sqlite driver: %w", err)
	}
	source, err := iofs.New(sqliteMigrations, "migrations/sqlite")
	if err != nil {
		return fmt.Errorf("failed to read migrations: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}
