package seed

import "fmt"

// ApplyDefaults fills in the documented zero-value defaults, mutating
// plan in place. Called once, right after decoding
// and before Validate.
func ApplyDefaults(plan *Plan) {
	if plan.Database.Driver == "" {
		plan.Database.Driver = DriverPostgres
	}
	if plan.Database.TrackingTable == "" {
		plan.Database.TrackingTable = DefaultTrackingTable
	}
	for i := range plan.Phases {
		phase := &plan.Phases[i]
		if phase.Timeout == "" {
			phase.Timeout = "30s"
		}
		for j := range phase.SeedSets {
			ss := &phase.SeedSets[j]
			for k := range ss.Tables {
				ts := &ss.Tables[k]
				if ts.AutoID != nil && ts.AutoID.IDType == "" {
					ts.AutoID.IDType = DefaultAutoIDType
				}
			}
		}
	}
}

// Validate rejects structurally broken plans: empty phases, empty names, bad wait_for types, tableless seed
// sets, and nameless tables.
func (p *Plan) Validate() error {
	if len(p.Phases) == 0 {
		return fmt.Errorf("seed: plan must have at least one phase")
	}
	for _, phase := range p.Phases {
		if phase.Name == "" {
			return fmt.Errorf("seed: phase name must not be empty")
		}
		for _, wf := range phase.WaitFor {
			if !isValidWaitForType(wf.Type) {
				return fmt.Errorf("seed: phase %q: invalid wait_for type %q", phase.Name, wf.Type)
			}
			if wf.Name == "" {
				return fmt.Errorf("seed: phase %q: wait_for name must not be empty", phase.Name)
			}
		}
		for _, ss := range phase.SeedSets {
			if ss.Name == "" {
				return fmt.Errorf("seed: phase %q: seed set name must not be empty", phase.Name)
			}
			if len(ss.Tables) == 0 {
				return fmt.Errorf("seed: seed set %q: must have at least one table", ss.Name)
			}
			for _, t := range ss.Tables {
				if t.Table == "" {
					return fmt.Errorf("seed: seed set %q: table name must not be empty", ss.Name)
				}
				if t.AutoID != nil && !isValidAutoIDType(t.AutoID.IDType) {
					return fmt.Errorf("seed: table %q: invalid auto_id id_type %q, want %q or %q", t.Table, t.AutoID.IDType, AutoIDTypeInteger, AutoIDTypeUUID)
				}
			}
		}
	}
	return nil
}

func isValidAutoIDType(t AutoIDType) bool {
	return t == AutoIDTypeInteger || t == AutoIDTypeUUID
}

func isValidWaitForType(t string) bool {
	switch t {
	case WaitForTable, WaitForView, WaitForSchema, WaitForDatabase:
		return true
	default:
		return false
	}
}
