package seed

import (
	"context"
	"fmt"
	"testing"

	"initium/internal/logging"
)

func TestExecuteFailureMidSeedSetRollsBack(t *testing.T) {
	dsn, verify := newTestDB(t)
	if _, err := verify.Exec(`CREATE TABLE departments (name TEXT NOT NULL)`); err != nil {
		t.Fatalf("create table: %v", err)
	}

	plan := &Plan{
		Database: DatabaseConfig{Driver: DriverSQLite},
		Phases: []Phase{{
			Name: "phase1",
			SeedSets: []SeedSet{{
				Name: "departments",
				Tables: []TableSeed{{
					Table: "departments",
					Rows: []Row{
						{Columns: []string{"name"}, Values: map[string]any{"name": "Engineering"}},
						// Missing env var makes the second row fail after the
						// first was already inserted inside the transaction.
						{Columns: []string{"name"}, Values: map[string]any{"name": "$env:SEED_TEST_UNSET_VAR"}},
					},
				}},
			}},
		}},
	}
	ApplyDefaults(plan)

	drv := openDriver(t, dsn)
	exec := NewExecutor(drv, logging.Discard(), false)
	err := exec.Execute(context.Background(), plan)
	if err == nil {
		t.Fatal("expected execute to fail")
	}

	assertRowCount(t, verify, "departments", 0)

	var tracked int
	if err := verify.QueryRow(`SELECT COUNT(*) FROM initium_seed WHERE seed_set = 'departments'`).Scan(&tracked); err != nil {
		t.Fatalf("query tracking table: %v", err)
	}
	if tracked != 0 {
		t.Errorf("tracking table contains failed seed set, want absent")
	}
}

func TestExecuteEmptyRowsStillMarksApplied(t *testing.T) {
	dsn, verify := newTestDB(t)

	plan := &Plan{
		Database: DatabaseConfig{Driver: DriverSQLite},
		Phases: []Phase{{
			Name: "phase1",
			SeedSets: []SeedSet{{
				Name:   "empty_set",
				Tables: []TableSeed{{Table: "departments", Rows: nil}},
			}},
		}},
	}
	ApplyDefaults(plan)

	drv := openDriver(t, dsn)
	exec := NewExecutor(drv, logging.Discard(), false)
	if err := exec.Execute(context.Background(), plan); err != nil {
		t.Fatalf("execute: %v", err)
	}

	var tracked int
	if err := verify.QueryRow(`SELECT COUNT(*) FROM initium_seed WHERE seed_set = 'empty_set'`).Scan(&tracked); err != nil {
		t.Fatalf("query tracking table: %v", err)
	}
	if tracked != 1 {
		t.Errorf("tracking rows = %d, want 1", tracked)
	}
}

// recordingDriver captures the order of DeleteRows calls so reset-order
// semantics can be asserted without a real database.
type recordingDriver struct {
	deleted []string
	applied map[string]bool
}

func newRecordingDriver() *recordingDriver {
	return &recordingDriver{applied: make(map[string]bool)}
}

func (d *recordingDriver) DriverName() string                                    { return "recording" }
func (d *recordingDriver) EnsureTrackingTable(context.Context, string) error     { return nil }
func (d *recordingDriver) IsSeedApplied(_ context.Context, _, ss string) (bool, error) {
	return d.applied[ss], nil
}
func (d *recordingDriver) MarkSeedApplied(_ context.Context, _, ss string) error {
	d.applied[ss] = true
	return nil
}
func (d *recordingDriver) RemoveSeedMark(_ context.Context, _, ss string) error {
	delete(d.applied, ss)
	return nil
}
func (d *recordingDriver) InsertRow(_ context.Context, _ string, _, _ []string, _ string) (*int64, error) {
	return nil, nil
}
func (d *recordingDriver) RowExists(context.Context, string, []string, []string) (bool, error) {
	return false, nil
}
func (d *recordingDriver) DeleteRows(_ context.Context, table string) (int64, error) {
	d.deleted = append(d.deleted, table)
	return 0, nil
}
func (d *recordingDriver) BeginTransaction(context.Context) error    { return nil }
func (d *recordingDriver) CommitTransaction(context.Context) error   { return nil }
func (d *recordingDriver) RollbackTransaction(context.Context) error { return nil }
func (d *recordingDriver) CreateDatabase(context.Context, string) error {
	return fmt.Errorf("not supported")
}
func (d *recordingDriver) CreateSchema(context.Context, string) error {
	return fmt.Errorf("not supported")
}
func (d *recordingDriver) ObjectExists(context.Context, string, string) (bool, error) {
	return true, nil
}
func (d *recordingDriver) Close() error { return nil }

func TestResetDeletesTablesInReverseOrder(t *testing.T) {
	plan := &Plan{
		Database: DatabaseConfig{Driver: DriverSQLite},
		Phases: []Phase{{
			Name: "phase1",
			SeedSets: []SeedSet{{
				Name: "ordered",
				Tables: []TableSeed{
					{Table: "parents", Order: 0},
					{Table: "children", Order: 1},
					{Table: "grandchildren", Order: 1},
				},
			}},
		}},
	}
	ApplyDefaults(plan)

	drv := newRecordingDriver()
	exec := NewExecutor(drv, logging.Discard(), true)
	if err := exec.Execute(context.Background(), plan); err != nil {
		t.Fatalf("execute: %v", err)
	}

	// Tables sharing an order are deleted in reverse declaration order:
	// children declared before grandchildren, so grandchildren goes first.
	want := []string{"grandchildren", "children", "parents"}
	if len(drv.deleted) != len(want) {
		t.Fatalf("deleted = %v, want %v", drv.deleted, want)
	}
	for i := range want {
		if drv.deleted[i] != want[i] {
			t.Errorf("deleted[%d] = %q, want %q", i, drv.deleted[i], want[i])
		}
	}
}

func TestResetIteratesSeedSetsDescending(t *testing.T) {
	plan := &Plan{
		Database: DatabaseConfig{Driver: DriverSQLite},
		Phases: []Phase{{
			Name: "phase1",
			SeedSets: []SeedSet{
				{Name: "first", Order: 0, Tables: []TableSeed{{Table: "a"}}},
				{Name: "second", Order: 1, Tables: []TableSeed{{Table: "b"}}},
			},
		}},
	}
	ApplyDefaults(plan)

	drv := newRecordingDriver()
	exec := NewExecutor(drv, logging.Discard(), true)
	if err := exec.Execute(context.Background(), plan); err != nil {
		t.Fatalf("execute: %v", err)
	}

	want := []string{"b", "a"}
	if len(drv.deleted) != 2 || drv.deleted[0] != want[0] || drv.deleted[1] != want[1] {
		t.Errorf("deleted = %v, want %v", drv.deleted, want)
	}
}
