package seed

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func init() {
	RegisterDriver(DriverPostgres, func(ctx context.Context, dsn string) (Driver, error) {
		db, err := sql.Open("pgx", dsn)
		if err != nil {
			return nil, fmt.Errorf("seed: postgres driver: open: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("seed: postgres driver: ping: %w", err)
		}
		return &postgresDriver{baseDriver{name: DriverPostgres, db: db}}, nil
	})
}

type postgresDriver struct{ baseDriver }

func pgQuote(name string) string {
	return `"` + SanitizeIdentifier(name) + `"`
}

func (d *postgresDriver) EnsureTrackingTable(ctx context.Context, table string) error {
	q := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (seed_set TEXT PRIMARY KEY, applied_at TIMESTAMP DEFAULT now())`, pgQuote(table))
	if _, err := d.exec().ExecContext(ctx, q); err != nil {
		return d.errorf("ensure_tracking_table", err)
	}
	return nil
}

func (d *postgresDriver) IsSeedApplied(ctx context.Context, table, seedSet string) (bool, error) {
	q := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE seed_set = $1`, pgQuote(table))
	var count int
	if err := d.exec().QueryRowContext(ctx, q, seedSet).Scan(&count); err != nil {
		return false, d.errorf("is_seed_applied", err)
	}
	return count > 0, nil
}

func (d *postgresDriver) MarkSeedApplied(ctx context.Context, table, seedSet string) error {
	q := fmt.Sprintf(`INSERT INTO %s (seed_set, applied_at) VALUES ($1, now()) ON CONFLICT DO NOTHING`, pgQuote(table))
	if _, err := d.exec().ExecContext(ctx, q, seedSet); err != nil {
		return d.errorf("mark_seed_applied", err)
	}
	return nil
}

func (d *postgresDriver) RemoveSeedMark(ctx context.Context, table, seedSet string) error {
	q := fmt.Sprintf(`DELETE FROM %s WHERE seed_set = $1`, pgQuote(table))
	if _, err := d.exec().ExecContext(ctx, q, seedSet); err != nil {
		return d.errorf("remove_seed_mark", err)
	}
	return nil
}

// InsertRow escapes and interpolates values rather than binding them as
// parameters: pgx's typed protocol makes binding arbitrary text as an
// untyped parameter awkward when the destination column isn't text, and
// every row value has already passed through ResolveValue as a string.
// The generated key is read back with RETURNING COALESCE(CAST(col AS
// BIGINT), 0), so autoIDColumn must be numeric; a non-numeric key column
// makes the insert fail.
func (d *postgresDriver) InsertRow(ctx context.Context, table string, columns, values []string, autoIDColumn string) (*int64, error) {
	quotedCols := make([]string, len(columns))
	literals := make([]string, len(values))
	for i, c := range columns {
		quotedCols[i] = pgQuote(c)
		literals[i] = EscapeLiteral(values[i])
	}
	q := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s)`, pgQuote(table), strings.Join(quotedCols, ", "), strings.Join(literals, ", "))
	if autoIDColumn == "" {
		if _, err := d.exec().ExecContext(ctx, q); err != nil {
			return nil, d.errorf("insert_row", err)
		}
		return nil, nil
	}
	q += fmt.Sprintf(` RETURNING COALESCE(CAST(%s AS BIGINT), 0)`, pgQuote(autoIDColumn))
	var id int64
	if err := d.exec().QueryRowContext(ctx, q).Scan(&id); err != nil {
		return nil, d.errorf("insert_row", err)
	}
	return &id, nil
}

func (d *postgresDriver) RowExists(ctx context.Context, table string, uniqueColumns, uniqueValues []string) (bool, error) {
	if len(uniqueColumns) == 0 {
		return false, nil
	}
	conds := make([]string, len(uniqueColumns))
	for i, c := range uniqueColumns {
		conds[i] = fmt.Sprintf("%s = %s", pgQuote(c), EscapeLiteral(uniqueValues[i]))
	}
	q := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE %s`, pgQuote(table), strings.Join(conds, " AND "))
	var count int
	if err := d.exec().QueryRowContext(ctx, q).Scan(&count); err != nil {
		return false, d.errorf("row_exists", err)
	}
	return count > 0, nil
}

func (d *postgresDriver) DeleteRows(ctx context.Context, table string) (int64, error) {
	q := fmt.Sprintf(`DELETE FROM %s`, pgQuote(table))
	res, err := d.exec().ExecContext(ctx, q)
	if err != nil {
		return 0, d.errorf("delete_rows", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, d.errorf("delete_rows", err)
	}
	return n, nil
}

func (d *postgresDriver) BeginTransaction(ctx context.Context) error {
	return d.beginTransaction(ctx)
}
func (d *postgresDriver) CommitTransaction(ctx context.Context) error {
	return d.commitTransaction(ctx)
}
func (d *postgresDriver) RollbackTransaction(ctx context.Context) error {
	return d.rollbackTransaction(ctx)
}

func (d *postgresDriver) CreateDatabase(ctx context.Context, name string) error {
	safe := SanitizeIdentifier(name)
	var count int
	q := `SELECT COUNT(*) FROM pg_database WHERE datname = $1`
	if err := d.exec().QueryRowContext(ctx, q, safe).Scan(&count); err != nil {
		return d.errorf("create_database", err)
	}
	if count > 0 {
		return nil
	}
	if _, err := d.exec().ExecContext(ctx, fmt.Sprintf(`CREATE DATABASE %s`, pgQuote(safe))); err != nil {
		return d.errorf("create_database", err)
	}
	return nil
}

func (d *postgresDriver) CreateSchema(ctx context.Context, name string) error {
	q := fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %s`, pgQuote(name))
	if _, err := d.exec().ExecContext(ctx, q); err != nil {
		return d.errorf("create_schema", err)
	}
	return nil
}

func (d *postgresDriver) ObjectExists(ctx context.Context, objType, name string) (bool, error) {
	var q string
	switch objType {
	case WaitForTable:
		q = `SELECT COUNT(*) FROM information_schema.tables WHERE table_name = $1`
	case WaitForView:
		q = `SELECT COUNT(*) FROM information_schema.views WHERE table_name = $1`
	case WaitForSchema:
		q = `SELECT COUNT(*) FROM information_schema.schemata WHERE schema_name = $1`
	case WaitForDatabase:
		q = `SELECT COUNT(*) FROM pg_database WHERE datname = $1`
	default:
		return false, d.errorf("object_exists", fmt.Errorf("postgres does not support wait_for type %q", objType))
	}
	var count int
	if err := d.exec().QueryRowContext(ctx, q, name).Scan(&count); err != nil {
		return false, d.errorf("object_exists", err)
	}
	return count > 0, nil
}
