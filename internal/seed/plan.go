// Package seed implements initium's declarative data-seeding engine: a
// phased, ordered, idempotent, transaction-safe state-propagation pipeline
// over a pluggable SQL driver surface (SQLite, PostgreSQL, MySQL).
package seed

import "time"

// Plan is the top-level seed document decoded from a YAML, JSON, or TOML
// spec file after it has been through the template preprocessor.
type Plan struct {
	Database DatabaseConfig `yaml:"database" json:"database" toml:"database"`
	Phases   []Phase        `yaml:"phases" json:"phases" toml:"phases"`
}

// DatabaseConfig describes how the seed engine connects to its target.
type DatabaseConfig struct {
	Driver        string `yaml:"driver" json:"driver" toml:"driver"`
	URL           string `yaml:"url" json:"url" toml:"url"`
	URLEnv        string `yaml:"url_env" json:"url_env" toml:"url_env"`
	TrackingTable string `yaml:"tracking_table" json:"tracking_table" toml:"tracking_table"`
}

// Phase is a top-level ordered step: optional DDL, a wait-for precondition
// list, and the seed sets to apply once the wait succeeds.
type Phase struct {
	Name            string          `yaml:"name" json:"name" toml:"name"`
	Order           int             `yaml:"order" json:"order" toml:"order"`
	Database        string          `yaml:"database" json:"database" toml:"database"`
	Schema          string          `yaml:"schema" json:"schema" toml:"schema"`
	CreateIfMissing bool            `yaml:"create_if_missing" json:"create_if_missing" toml:"create_if_missing"`
	WaitFor         []WaitForObject `yaml:"wait_for" json:"wait_for" toml:"wait_for"`
	Timeout         string          `yaml:"timeout" json:"timeout" toml:"timeout"`
	SeedSets        []SeedSet       `yaml:"seed_sets" json:"seed_sets" toml:"seed_sets"`
}

// WaitForObject is an object-existence precondition polled before a
// phase's seed sets run.
type WaitForObject struct {
	Type    string `yaml:"type" json:"type" toml:"type"`
	Name    string `yaml:"name" json:"name" toml:"name"`
	Timeout string `yaml:"timeout" json:"timeout" toml:"timeout"`
}

// SeedSet is a named, idempotent bundle of tables + rows applied within a
// single transaction. Name is the tracking-table idempotency key.
type SeedSet struct {
	Name   string      `yaml:"name" json:"name" toml:"name"`
	Order  int         `yaml:"order" json:"order" toml:"order"`
	Tables []TableSeed `yaml:"tables" json:"tables" toml:"tables"`
}

// TableSeed describes the rows to seed into one table.
type TableSeed struct {
	Table     string   `yaml:"table" json:"table" toml:"table"`
	Order     int      `yaml:"order" json:"order" toml:"order"`
	UniqueKey []string `yaml:"unique_key" json:"unique_key" toml:"unique_key"`
	AutoID    *AutoID  `yaml:"auto_id" json:"auto_id" toml:"auto_id"`
	Rows      []Row    `yaml:"rows" json:"rows" toml:"rows"`
}

// AutoID names the generated-key column for a table, if any.
type AutoID struct {
	Column string     `yaml:"column" json:"column" toml:"column"`
	IDType AutoIDType `yaml:"id_type" json:"id_type" toml:"id_type"`
}

// AutoIDType is the declared kind of a generated-key column. Only
// AutoIDTypeInteger changes behavior (the driver-returned key is
// captured); AutoIDTypeUUID is accepted for forward compatibility and
// otherwise inert.
type AutoIDType string

const (
	AutoIDTypeInteger AutoIDType = "integer"
	AutoIDTypeUUID    AutoIDType = "uuid"
)

// Row is an ordered mapping from column name to scalar value, plus the
// reserved "_ref" key. Columns preserves declaration order, which
// matters for reproducible column/value argument lists.
type Row struct {
	Ref     string
	Columns []string
	Values  map[string]any
}

// Known wait-for object types.
const (
	WaitForTable    = "table"
	WaitForView     = "view"
	WaitForSchema   = "schema"
	WaitForDatabase = "database"
)

// Known driver names. Postgres accepts both spellings.
const (
	DriverSQLite     = "sqlite"
	DriverPostgres   = "postgres"
	DriverPostgreSQL = "postgresql"
	DriverMySQL      = "mysql"
)

// DefaultTrackingTable is the tracking table name used when the plan
// leaves DatabaseConfig.TrackingTable empty.
const DefaultTrackingTable = "initium_seed"

// DefaultPhaseTimeout is the wait-for deadline the executor uses when a
// phase's Timeout parses to zero. An empty Timeout is filled with the same
// 30s by ApplyDefaults.
const DefaultPhaseTimeout = 30 * time.Second

// DefaultAutoIDType is applied when a TableSeed.AutoID is declared
// without an explicit id_type.
const DefaultAutoIDType = AutoIDTypeInteger

// WaitForPollInterval is the fixed sleep between wait-for prober retries.
const WaitForPollInterval = 500 * time.Millisecond
