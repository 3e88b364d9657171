package seed

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
)

// Driver is the uniform capability surface the executor drives against
// every backend. Every operation fails with a textual error identifying
// the driver and the operation (see errorf).
type Driver interface {
	DriverName() string

	EnsureTrackingTable(ctx context.Context, table string) error
	IsSeedApplied(ctx context.Context, table, seedSet string) (bool, error)
	MarkSeedApplied(ctx context.Context, table, seedSet string) error
	RemoveSeedMark(ctx context.Context, table, seedSet string) error

	InsertRow(ctx context.Context, table string, columns, values []string, autoIDColumn string) (*int64, error)
	RowExists(ctx context.Context, table string, uniqueColumns, uniqueValues []string) (bool, error)
	DeleteRows(ctx context.Context, table string) (int64, error)

	BeginTransaction(ctx context.Context) error
	CommitTransaction(ctx context.Context) error
	RollbackTransaction(ctx context.Context) error

	CreateDatabase(ctx context.Context, name string) error
	CreateSchema(ctx context.Context, name string) error
	ObjectExists(ctx context.Context, objType, name string) (bool, error)

	Close() error
}

// execer is satisfied by both *sql.DB and *sql.Tx, letting baseDriver
// route every statement through whichever is currently active.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// txState is the per-driver Idle/InTxn state machine: begin moves
// Idle->InTxn; commit/rollback move InTxn->Idle and are no-ops from
// Idle.
type txState int

const (
	txIdle txState = iota
	txInTxn
)

// baseDriver carries the single connection and optional active
// transaction shared by every backend implementation. There is never a
// connection pool: one *sql.DB handle for the lifetime of the run.
type baseDriver struct {
	name string
	db   *sql.DB
	tx   *sql.Tx
	mu   sync.Mutex
	st   txState
}

func (b *baseDriver) DriverName() string { return b.name }

func (b *baseDriver) singleConnection() { b.db.SetMaxOpenConns(1) }

func (b *baseDriver) exec() execer {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.tx != nil {
		return b.tx
	}
	return b.db
}

func (b *baseDriver) beginTransaction(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.st == txInTxn {
		return nil
	}
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return b.errorf("begin_transaction", err)
	}
	b.tx = tx
	b.st = txInTxn
	return nil
}

func (b *baseDriver) commitTransaction(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.st == txIdle {
		return nil
	}
	err := b.tx.Commit()
	b.tx = nil
	b.st = txIdle
	if err != nil {
		return b.errorf("commit_transaction", err)
	}
	return nil
}

func (b *baseDriver) rollbackTransaction(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.st == txIdle {
		return nil
	}
	err := b.tx.Rollback()
	b.tx = nil
	b.st = txIdle
	if err != nil {
		return b.errorf("rollback_transaction", err)
	}
	return nil
}

func (b *baseDriver) Close() error {
	if b.db == nil {
		return nil
	}
	return b.db.Close()
}

func (b *baseDriver) errorf(op string, err error) error {
	return fmt.Errorf("seed: %s driver: %s: %w", b.name, op, err)
}

// driverFactory opens a Driver given a resolved DSN. Backends register
// themselves in init() the way internal/dialect registers Dialect
// constructors.
type driverFactory func(ctx context.Context, dsn string) (Driver, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]driverFactory{}
)

// RegisterDriver adds a backend constructor under name. Called from each
// backend file's init().
func RegisterDriver(name string, factory driverFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = factory
}

// Open resolves name to its registered backend and connects. Postgres
// accepts both "postgres" and "postgresql" spellings (DatabaseConfig
// default).
func Open(ctx context.Context, name, dsn string) (Driver, error) {
	normalized := name
	if normalized == DriverPostgreSQL {
		normalized = DriverPostgres
	}
	registryMu.RLock()
	factory, ok := registry[normalized]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("seed: unknown driver %q", name)
	}
	drv, err := factory(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if b, ok := drv.(interface{ singleConnection() }); ok {
		b.singleConnection()
	}
	return drv, nil
}
