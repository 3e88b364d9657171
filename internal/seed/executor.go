package seed

import (
	"context"
	"fmt"
	"sort"
	"time"

	"initium/internal/duration"
)

// Logger is the minimal surface the executor needs from
// internal/logging.Logger, kept narrow so seed tests can supply a stub.
type Logger interface {
	Debug(msg string, kvs ...string)
	Info(msg string, kvs ...string)
	Warn(msg string, kvs ...string)
	Error(msg string, kvs ...string)
}

// Executor drives a Plan to completion against a single Driver
// connection: phase/seed-set ordering, reset semantics,
// transaction-guarded idempotent application, and cross-row reference
// resolution.
type Executor struct {
	driver Driver
	log    Logger
	reset  bool
	refs   *RefStore
}

// NewExecutor builds an Executor around an already-open driver. reset
// selects reset mode: seed sets are deleted and re-applied rather than
// skipped when already marked.
func NewExecutor(driver Driver, log Logger, reset bool) *Executor {
	return &Executor{driver: driver, log: log, reset: reset, refs: NewRefStore()}
}

// Execute runs every phase of plan in order. Any error aborts the whole
// run; phases and seed sets already committed before the failure remain
// applied, so the next run skips them and retries only what failed.
func (e *Executor) Execute(ctx context.Context, plan *Plan) error {
	e.log.Info("seed run starting", "phases", fmt.Sprint(len(plan.Phases)))

	if err := e.driver.EnsureTrackingTable(ctx, plan.Database.TrackingTable); err != nil {
		return fmt.Errorf("seed: ensure tracking table: %w", err)
	}

	phases := make([]Phase, len(plan.Phases))
	copy(phases, plan.Phases)
	sort.SliceStable(phases, func(i, j int) bool { return phases[i].Order < phases[j].Order })

	for i := range phases {
		if err := e.runPhase(ctx, &phases[i], plan.Database.TrackingTable); err != nil {
			return fmt.Errorf("seed: phase %q: %w", phases[i].Name, err)
		}
	}

	e.log.Info("seed run complete")
	return nil
}

func (e *Executor) runPhase(ctx context.Context, phase *Phase, trackingTable string) error {
	e.log.Info("phase starting", "phase", phase.Name)

	if phase.CreateIfMissing {
		if phase.Database != "" {
			if err := e.driver.CreateDatabase(ctx, phase.Database); err != nil {
				return fmt.Errorf("create_if_missing database %q: %w", phase.Database, err)
			}
		}
		if phase.Schema != "" {
			if err := e.driver.CreateSchema(ctx, phase.Schema); err != nil {
				return fmt.Errorf("create_if_missing schema %q: %w", phase.Schema, err)
			}
		}
	}

	phaseTimeout, err := duration.Parse(phase.Timeout)
	if err != nil {
		return fmt.Errorf("parse phase timeout %q: %w", phase.Timeout, err)
	}
	if phaseTimeout == 0 {
		phaseTimeout = DefaultPhaseTimeout
	}

	for _, wf := range phase.WaitFor {
		effective := phaseTimeout
		if wf.Timeout != "" {
			objTimeout, err := duration.Parse(wf.Timeout)
			if err != nil {
				return fmt.Errorf("parse wait_for %q timeout %q: %w", wf.Name, wf.Timeout, err)
			}
			effective = objTimeout
		}
		if err := e.waitFor(ctx, wf, effective); err != nil {
			return err
		}
	}

	seedSets := make([]SeedSet, len(phase.SeedSets))
	copy(seedSets, phase.SeedSets)
	if e.reset {
		sort.SliceStable(seedSets, func(i, j int) bool { return seedSets[i].Order > seedSets[j].Order })
	} else {
		sort.SliceStable(seedSets, func(i, j int) bool { return seedSets[i].Order < seedSets[j].Order })
	}

	for i := range seedSets {
		if err := e.runSeedSet(ctx, &seedSets[i], trackingTable); err != nil {
			return fmt.Errorf("seed set %q: %w", seedSets[i].Name, err)
		}
	}

	e.log.Info("phase complete", "phase", phase.Name)
	return nil
}

// waitFor polls the driver's object-existence probe at a fixed interval
// until it succeeds or the deadline passes. Errors from ObjectExists are
// surfaced immediately and are not retried.
func (e *Executor) waitFor(ctx context.Context, wf WaitForObject, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		ok, err := e.driver.ObjectExists(ctx, wf.Type, wf.Name)
		if err != nil {
			return fmt.Errorf("wait_for %s %q: %w", wf.Type, wf.Name, err)
		}
		if ok {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("wait_for %s %q: timeout after %s waiting for object to exist", wf.Type, wf.Name, timeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(WaitForPollInterval):
		}
	}
}

func (e *Executor) runSeedSet(ctx context.Context, ss *SeedSet, trackingTable string) error {
	tables := make([]TableSeed, len(ss.Tables))
	copy(tables, ss.Tables)
	sort.SliceStable(tables, func(i, j int) bool { return tables[i].Order < tables[j].Order })

	if e.reset {
		e.log.Info("reset mode", "seed_set", ss.Name)
		// Walk the ascending-sorted slice backwards rather than re-sorting
		// descending: tables sharing an order must be deleted in reverse
		// declaration order, which a stable descending sort would not give.
		for i := len(tables) - 1; i >= 0; i-- {
			if _, err := e.driver.DeleteRows(ctx, tables[i].Table); err != nil {
				return fmt.Errorf("reset table %q: %w", tables[i].Table, err)
			}
		}
		if err := e.driver.RemoveSeedMark(ctx, trackingTable, ss.Name); err != nil {
			return fmt.Errorf("remove seed mark: %w", err)
		}
	}

	applied, err := e.driver.IsSeedApplied(ctx, trackingTable, ss.Name)
	if err != nil {
		return fmt.Errorf("is_seed_applied: %w", err)
	}
	if applied {
		e.log.Info("already applied, skipping", "seed_set", ss.Name)
		return nil
	}

	if err := e.driver.BeginTransaction(ctx); err != nil {
		return fmt.Errorf("begin_transaction: %w", err)
	}

	for i := range tables {
		if err := e.runTableSeed(ctx, &tables[i]); err != nil {
			if rbErr := e.driver.RollbackTransaction(ctx); rbErr != nil {
				e.log.Warn("rollback failed", "seed_set", ss.Name, "error", rbErr.Error())
			}
			return fmt.Errorf("table %q: %w", tables[i].Table, err)
		}
	}

	if err := e.driver.MarkSeedApplied(ctx, trackingTable, ss.Name); err != nil {
		if rbErr := e.driver.RollbackTransaction(ctx); rbErr != nil {
			e.log.Warn("rollback failed", "seed_set", ss.Name, "error", rbErr.Error())
		}
		return fmt.Errorf("mark_seed_applied: %w", err)
	}
	if err := e.driver.CommitTransaction(ctx); err != nil {
		return fmt.Errorf("commit_transaction: %w", err)
	}

	e.log.Info("seed set applied", "seed_set", ss.Name)
	return nil
}

func (e *Executor) runTableSeed(ctx context.Context, ts *TableSeed) error {
	for _, row := range ts.Rows {
		columns := make([]string, 0, len(row.Columns))
		values := make([]string, 0, len(row.Columns))
		var uniqueColumns, uniqueValues []string

		isUnique := make(map[string]bool, len(ts.UniqueKey))
		for _, k := range ts.UniqueKey {
			isUnique[k] = true
		}

		for _, col := range row.Columns {
			resolved, err := ResolveValue(row.Values[col], e.refs)
			if err != nil {
				return fmt.Errorf("resolve column %q: %w", col, err)
			}
			columns = append(columns, col)
			values = append(values, resolved)
			if isUnique[col] {
				uniqueColumns = append(uniqueColumns, col)
				uniqueValues = append(uniqueValues, resolved)
			}
		}

		if len(ts.UniqueKey) > 0 {
			exists, err := e.driver.RowExists(ctx, ts.Table, uniqueColumns, uniqueValues)
			if err != nil {
				return fmt.Errorf("row_exists: %w", err)
			}
			if exists {
				e.log.Info("row already exists, skipping", "table", ts.Table)
				continue
			}
		}

		autoIDColumn := ""
		if ts.AutoID != nil && ts.AutoID.IDType == AutoIDTypeInteger {
			autoIDColumn = ts.AutoID.Column
		}
		generatedID, err := e.driver.InsertRow(ctx, ts.Table, columns, values, autoIDColumn)
		if err != nil {
			return fmt.Errorf("insert_row: %w", err)
		}

		if row.Ref != "" {
			record := make(map[string]string, len(columns)+1)
			for i, c := range columns {
				record[c] = values[i]
			}
			if autoIDColumn != "" && generatedID != nil {
				record[autoIDColumn] = fmt.Sprintf("%d", *generatedID)
			}
			e.refs.Capture(row.Ref, record)
		}
	}
	return nil
}
