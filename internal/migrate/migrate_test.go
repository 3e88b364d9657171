package migrate

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"initium/internal/logging"
	"initium/internal/seed"
)

func writeMigrations(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"0001_departments.up.sql":   "CREATE TABLE departments (id INTEGER PRIMARY KEY AUTOINCREMENT, name TEXT NOT NULL UNIQUE);",
		"0001_departments.down.sql": "DROP TABLE departments;",
		"0002_employees.up.sql":     "CREATE TABLE employees (id INTEGER PRIMARY KEY AUTOINCREMENT, name TEXT NOT NULL, department_id INTEGER REFERENCES departments(id));",
		"0002_employees.down.sql":   "DROP TABLE employees;",
	}
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	return dir
}

func sqliteConfig(t *testing.T, migrationsDir string) (Config, string) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	return Config{
		Driver:        seed.DriverSQLite,
		URL:           dbPath,
		MigrationsDir: migrationsDir,
	}, dbPath
}

func tableExists(t *testing.T, dbPath, table string) bool {
	t.Helper()
	db, err := sql.Open("sqlite", dbPath)
	require.NoError(t, err)
	defer db.Close()
	var count int
	err = db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&count)
	require.NoError(t, err)
	return count > 0
}

func TestRunAppliesMigrations(t *testing.T) {
	cfg, dbPath := sqliteConfig(t, writeMigrations(t))
	require.NoError(t, Run(context.Background(), logging.Discard(), cfg))

	assert.True(t, tableExists(t, dbPath, "departments"))
	assert.True(t, tableExists(t, dbPath, "employees"))
	assert.True(t, tableExists(t, dbPath, "schema_migrations"))
}

func TestRunIsIdempotent(t *testing.T) {
	cfg, dbPath := sqliteConfig(t, writeMigrations(t))
	require.NoError(t, Run(context.Background(), logging.Discard(), cfg))
	require.NoError(t, Run(context.Background(), logging.Discard(), cfg))

	assert.True(t, tableExists(t, dbPath, "departments"))
}

func TestRunWithLockFile(t *testing.T) {
	cfg, dbPath := sqliteConfig(t, writeMigrations(t))
	cfg.Workdir = t.TempDir()
	cfg.LockFile = "migrate.lock"
	cfg.LockTimeout = 5 * time.Second

	require.NoError(t, Run(context.Background(), logging.Discard(), cfg))
	assert.True(t, tableExists(t, dbPath, "departments"))
	assert.FileExists(t, filepath.Join(cfg.Workdir, "migrate.lock"))
}

func TestRunLockFileEscapeRejected(t *testing.T) {
	cfg, _ := sqliteConfig(t, writeMigrations(t))
	cfg.Workdir = t.TempDir()
	cfg.LockFile = "../outside.lock"

	err := Run(context.Background(), logging.Discard(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "escapes work directory")
}

func TestConfigValidation(t *testing.T) {
	err := Run(context.Background(), logging.Discard(), Config{Driver: seed.DriverSQLite})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--migrations is required")

	err = Run(context.Background(), logging.Discard(), Config{Driver: "oracle", MigrationsDir: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown driver")
}

func TestRunMissingDSN(t *testing.T) {
	// Neither URL, URLEnv, nor DATABASE_URL is set.
	t.Setenv("DATABASE_URL", "")
	cfg := Config{Driver: seed.DriverSQLite, MigrationsDir: writeMigrations(t)}
	err := Run(context.Background(), logging.Discard(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no database URL configured")
}
