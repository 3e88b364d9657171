package seed

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

func init() {
	RegisterDriver(DriverSQLite, func(ctx context.Context, dsn string) (Driver, error) {
		db, err := sql.Open("sqlite", dsn)
		if err != nil {
			return nil, fmt.Errorf("seed: sqlite driver: open: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("seed: sqlite driver: ping: %w", err)
		}
		return &sqliteDriver{baseDriver{name: DriverSQLite, db: db}}, nil
	})
}

type sqliteDriver struct{ baseDriver }

func sqliteQuote(name string) string {
	return `"` + SanitizeIdentifier(name) + `"`
}

func (d *sqliteDriver) EnsureTrackingTable(ctx context.Context, table string) error {
	q := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (seed_set TEXT PRIMARY KEY, applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP)`, sqliteQuote(table))
	if _, err := d.exec().ExecContext(ctx, q); err != nil {
		return d.errorf("ensure_tracking_table", err)
	}
	return nil
}

func (d *sqliteDriver) IsSeedApplied(ctx context.Context, table, seedSet string) (bool, error) {
	q := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE seed_set = ?`, sqliteQuote(table))
	var count int
	if err := d.exec().QueryRowContext(ctx, q, seedSet).Scan(&count); err != nil {
		return false, d.errorf("is_seed_applied", err)
	}
	return count > 0, nil
}

func (d *sqliteDriver) MarkSeedApplied(ctx context.Context, table, seedSet string) error {
	q := fmt.Sprintf(`INSERT OR IGNORE INTO %s (seed_set, applied_at) VALUES (?, CURRENT_TIMESTAMP)`, sqliteQuote(table))
	if _, err := d.exec().ExecContext(ctx, q, seedSet); err != nil {
		return d.errorf("mark_seed_applied", err)
	}
	return nil
}

func (d *sqliteDriver) RemoveSeedMark(ctx context.Context, table, seedSet string) error {
	q := fmt.Sprintf(`DELETE FROM %s WHERE seed_set = ?`, sqliteQuote(table))
	if _, err := d.exec().ExecContext(ctx, q, seedSet); err != nil {
		return d.errorf("remove_seed_mark", err)
	}
	return nil
}

func (d *sqliteDriver) InsertRow(ctx context.Context, table string, columns, values []string, autoIDColumn string) (*int64, error) {
	quotedCols := make([]string, len(columns))
	placeholders := make([]string, len(columns))
	args := make([]any, len(values))
	for i, c := range columns {
		quotedCols[i] = sqliteQuote(c)
		placeholders[i] = "?"
		args[i] = values[i]
	}
	q := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s)`, sqliteQuote(table), strings.Join(quotedCols, ", "), strings.Join(placeholders, ", "))
	res, err := d.exec().ExecContext(ctx, q, args...)
	if err != nil {
		return nil, d.errorf("insert_row", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		if autoIDColumn != "" {
			return nil, d.errorf("insert_row", err)
		}
		return nil, nil
	}
	return &id, nil
}

func (d *sqliteDriver) RowExists(ctx context.Context, table string, uniqueColumns, uniqueValues []string) (bool, error) {
	if len(uniqueColumns) == 0 {
		return false, nil
	}
	conds := make([]string, len(uniqueColumns))
	args := make([]any, len(uniqueValues))
	for i, c := range uniqueColumns {
		conds[i] = fmt.Sprintf("%s = ?", sqliteQuote(c))
		args[i] = uniqueValues[i]
	}
	q := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE %s`, sqliteQuote(table), strings.Join(conds, " AND "))
	var count int
	if err := d.exec().QueryRowContext(ctx, q, args...).Scan(&count); err != nil {
		return false, d.errorf("row_exists", err)
	}
	return count > 0, nil
}

func (d *sqliteDriver) DeleteRows(ctx context.Context, table string) (int64, error) {
	q := fmt.Sprintf(`DELETE FROM %s`, sqliteQuote(table))
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

func (d *sqliteDriver) BeginTransaction(ctx context.Context) error  { return d.beginTransaction(ctx) }
func (d *sqliteDriver) CommitTransaction(ctx context.Context) error { return d.commitTransaction(ctx) }
func (d *sqliteDriver) RollbackTransaction(ctx context.Context) error {
	return d.rollbackTransaction(ctx)
}

func (d *sqliteDriver) CreateDatabase(context.Context, string) error {
	return d.errorf("create_database", fmt.Errorf("sqlite does not support CREATE DATABASE"))
}

func (d *sqliteDriver) CreateSchema(context.Context, string) error {
	return d.errorf("create_schema", fmt.Errorf("sqlite does not support CREATE SCHEMA"))
}

func (d *sqliteDriver) ObjectExists(ctx context.Context, objType, name string) (bool, error) {
	switch objType {
	case WaitForTable, WaitForView:
		q := `SELECT COUNT(*) FROM sqlite_master WHERE type = ? AND name = ?`
		var count int
		if err := d.exec().QueryRowContext(ctx, q, objType, name).Scan(&count); err != nil {
			return false, d.errorf("object_exists", err)
		}
		return count > 0, nil
	default:
		return false, d.errorf("object_exists", fmt.Errorf("sqlite does not support wait_for type %q", objType))
	}
}
