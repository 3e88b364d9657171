package seed

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql"
)

func init() {
	RegisterDriver(DriverMySQL, func(ctx context.Context, dsn string) (Driver, error) {
		db, err := sql.Open("mysql", dsn)
		if err != nil {
			return nil, fmt.Errorf("seed: mysql driver: open: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("seed: mysql driver: ping: %w", err)
		}
		return &mysqlDriver{baseDriver{name: DriverMySQL, db: db}}, nil
	})
}

type mysqlDriver struct{ baseDriver }

func mysqlQuote(name string) string {
	return "`" + SanitizeIdentifier(name) + "`"
}

func (d *mysqlDriver) EnsureTrackingTable(ctx context.Context, table string) error {
	q := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (seed_set VARCHAR(255) PRIMARY KEY, applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP)", mysqlQuote(table))
	if _, err := d.exec().ExecContext(ctx, q); err != nil {
		return d.errorf("ensure_tracking_table", err)
	}
	return nil
}

func (d *mysqlDriver) IsSeedApplied(ctx context.Context, table, seedSet string) (bool, error) {
	q := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE seed_set = ?", mysqlQuote(table))
	var count int
	if err := d.exec().QueryRowContext(ctx, q, seedSet).Scan(&count); err != nil {
		return false, d.errorf("is_seed_applied", err)
	}
	return count > 0, nil
}

func (d *mysqlDriver) MarkSeedApplied(ctx context.Context, table, seedSet string) error {
	q := fmt.Sprintf("INSERT IGNORE INTO %s (seed_set, applied_at) VALUES (?, CURRENT_TIMESTAMP)", mysqlQuote(table))
	if _, err := d.exec().ExecContext(ctx, q, seedSet); err != nil {
		return d.errorf("mark_seed_applied", err)
	}
	return nil
}

func (d *mysqlDriver) RemoveSeedMark(ctx context.Context, table, seedSet string) error {
	q := fmt.Sprintf("DELETE FROM %s WHERE seed_set = ?", mysqlQuote(table))
	if _, err := d.exec().ExecContext(ctx, q, seedSet); err != nil {
		return d.errorf("remove_seed_mark", err)
	}
	return nil
}

func (d *mysqlDriver) InsertRow(ctx context.Context, table string, columns, values []string, autoIDColumn string) (*int64, error) {
	quotedCols := make([]string, len(columns))
	placeholders := make([]string, len(columns))
	args := make([]any, len(values))
	for i, c := range columns {
		quotedCols[i] = mysqlQuote(c)
		placeholders[i] = "?"
		args[i] = values[i]
	}
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", mysqlQuote(table), strings.Join(quotedCols, ", "), strings.Join(placeholders, ", "))
	res, err := d.exec().ExecContext(ctx, q, args...)
	if err != nil {
		return nil, d.errorf("insert_row", err)
	}
	// LAST_INSERT_ID() returns 0 for tables without an auto-increment
	// column; the executor stores whatever comes back.
	id, err := res.LastInsertId()
	if err != nil {
		if autoIDColumn != "" {
			return nil, d.errorf("insert_row", err)
		}
		return nil, nil
	}
	return &id, nil
}

func (d *mysqlDriver) RowExists(ctx context.Context, table string, uniqueColumns, uniqueValues []string) (bool, error) {
	if len(uniqueColumns) == 0 {
		return false, nil
	}
	conds := make([]string, len(uniqueColumns))
	args := make([]any, len(uniqueValues))
	for i, c := range uniqueColumns {
		conds[i] = fmt.Sprintf("%s = ?", mysqlQuote(c))
		args[i] = uniqueValues[i]
	}
	q := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", mysqlQuote(table), strings.Join(conds, " AND "))
	var count int
	if err := d.exec().QueryRowContext(ctx, q, args...).Scan(&count); err != nil {
		return false, d.errorf("row_exists", err)
	}
	return count > 0, nil
}

func (d *mysqlDriver) DeleteRows(ctx context.Context, table string) (int64, error) {
	q := fmt.Sprintf("DELETE FROM %s", mysqlQuote(table))
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

func (d *mysqlDriver) BeginTransaction(ctx context.Context) error  { return d.beginTransaction(ctx) }
func (d *mysqlDriver) CommitTransaction(ctx context.Context) error { return d.commitTransaction(ctx) }
func (d *mysqlDriver) RollbackTransaction(ctx context.Context) error {
	return d.rollbackTransaction(ctx)
}

func (d *mysqlDriver) CreateDatabase(ctx context.Context, name string) error {
	q := fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", mysqlQuote(name))
	if _, err := d.exec().ExecContext(ctx, q); err != nil {
		return d.errorf("create_database", err)
	}
	return nil
}

// CreateSchema is equivalent to CreateDatabase in MySQL, which treats
// schema and database as the same namespace.
func (d *mysqlDriver) CreateSchema(ctx context.Context, name string) error {
	return d.CreateDatabase(ctx, name)
}

func (d *mysqlDriver) ObjectExists(ctx context.Context, objType, name string) (bool, error) {
	var q string
	switch objType {
	case WaitForTable:
		q = "SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = DATABASE() AND table_name = ?"
	case WaitForView:
		q = "SELECT COUNT(*) FROM information_schema.views WHERE table_schema = DATABASE() AND table_name = ?"
	case WaitForSchema, WaitForDatabase:
		q = "SELECT COUNT(*) FROM information_schema.schemata WHERE schema_name = ?"
	default:
		return false, d.errorf("object_exists", fmt.Errorf("mysql does not support wait_for type %q", objType))
	}
	var count int
	if err := d.exec().QueryRowContext(ctx, q, name).Scan(&count); err != nil {
		return false, d.errorf("object_exists", err)
	}
	return count > 0, nil
}
