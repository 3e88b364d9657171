// Package migrate implements the migrate command: apply the versioned
// migration files in a directory exactly once, guarded by an advisory
// lock file so concurrent initContainers cannot race each other.
package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/flock"
	gomigrate "github.com/golang-migrate/migrate/v4"
	migratemysql "github.com/golang-migrate/migrate/v4/database/mysql"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"initium/internal/logging"
	"initium/internal/pathsafe"
	"initium/internal/seed"
)

// Config describes one migrate invocation. URL/URLEnv resolve through the
// same order as the seed engine's database config: URLEnv, then URL, then
// the DATABASE_URL environment variable.
type Config struct {
	Driver        string
	URL           string
	URLEnv        string
	MigrationsDir string
	Workdir       string
	LockFile      string
	LockTimeout   time.Duration
}

// Validate rejects a Config that cannot run.
func (c Config) Validate() error {
	if c.MigrationsDir == "" {
		return fmt.Errorf("migrate: --migrations is required")
	}
	switch c.Driver {
	case seed.DriverSQLite, seed.DriverPostgres, seed.DriverPostgreSQL, seed.DriverMySQL:
		return nil
	default:
		return fmt.Errorf("migrate: unknown driver %q", c.Driver)
	}
}

// Run applies every pending migration under cfg.MigrationsDir. Re-running
// against an up-to-date database is a no-op; the migration library's own
// version table is the durable record of what has been applied, while the
// lock file only serializes concurrent runs.
func Run(ctx context.Context, log *logging.Logger, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	if cfg.LockFile != "" {
		unlock, err := acquireLock(ctx, log, cfg)
		if err != nil {
			return err
		}
		defer unlock()
	}

	dsn, err := seed.ResolveDSN(seed.DatabaseConfig{URL: cfg.URL, URLEnv: cfg.URLEnv})
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	m, cleanup, err := newMigrator(cfg.Driver, dsn, cfg.MigrationsDir)
	if err != nil {
		return err
	}
	defer cleanup()

	log.Info("starting migration", "driver", cfg.Driver, "migrations", cfg.MigrationsDir)
	if err := m.Up(); err != nil {
		if errors.Is(err, gomigrate.ErrNoChange) {
			log.Info("database already up to date")
			return nil
		}
		return fmt.Errorf("migrate: applying migrations: %w", err)
	}

	log.Info("migration completed successfully")
	return nil
}

func acquireLock(ctx context.Context, log *logging.Logger, cfg Config) (func(), error) {
	lockPath, err := pathsafe.Resolve(cfg.Workdir, cfg.LockFile)
	if err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	lockTimeout := cfg.LockTimeout
	if lockTimeout <= 0 {
		lockTimeout = 30 * time.Second
	}
	lockCtx, cancel := context.WithTimeout(ctx, lockTimeout)
	defer cancel()

	fl := flock.New(lockPath)
	locked, err := fl.TryLockContext(lockCtx, 250*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("migrate: acquiring lock %q: %w", lockPath, err)
	}
	if !locked {
		return nil, fmt.Errorf("migrate: lock %q is held by another process", lockPath)
	}
	log.Debug("migration lock acquired", "lock_file", lockPath)
	return func() {
		if err := fl.Unlock(); err != nil {
			log.Warn("releasing migration lock", "lock_file", lockPath, "error", err.Error())
		}
	}, nil
}

// newMigrator opens a plain database/sql handle with the same drivers the
// seed engine uses and hands it to the migration library.
func newMigrator(driverName, dsn, migrationsDir string) (*gomigrate.Migrate, func(), error) {
	sqlDriver := driverName
	if sqlDriver == seed.DriverPostgres || sqlDriver == seed.DriverPostgreSQL {
		sqlDriver = "pgx"
	}
	db, err := sql.Open(sqlDriver, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("migrate: open %s: %w", driverName, err)
	}
	cleanup := func() { _ = db.Close() }

	var m *gomigrate.Migrate
	sourceURL := "file://" + migrationsDir

	switch driverName {
	case seed.DriverSQLite:
		d, derr := migratesqlite.WithInstance(db, &migratesqlite.Config{})
		if derr != nil {
			cleanup()
			return nil, nil, fmt.Errorf("migrate: sqlite instance: %w", derr)
		}
		m, err = gomigrate.NewWithDatabaseInstance(sourceURL, "sqlite", d)
	case seed.DriverMySQL:
		d, derr := migratemysql.WithInstance(db, &migratemysql.Config{})
		if derr != nil {
			cleanup()
			return nil, nil, fmt.Errorf("migrate: mysql instance: %w", derr)
		}
		m, err = gomigrate.NewWithDatabaseInstance(sourceURL, "mysql", d)
	default:
		d, derr := migratepgx.WithInstance(db, &migratepgx.Config{})
		if derr != nil {
			cleanup()
			return nil, nil, fmt.Errorf("migrate: postgres instance: %w", derr)
		}
		m, err = gomigrate.NewWithDatabaseInstance(sourceURL, "postgres", d)
	}
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("migrate: building migrator: %w", err)
	}
	return m, cleanup, nil
}
