package seed

import "testing"

func TestValidateRejectsEmptyPhases(t *testing.T) {
	p := &Plan{}
	if err := p.Validate(); err == nil {
		t.Error("expected error for empty phases")
	}
}

func TestValidateRejectsEmptyPhaseName(t *testing.T) {
	p := &Plan{Phases: []Phase{{Name: ""}}}
	if err := p.Validate(); err == nil {
		t.Error("expected error for empty phase name")
	}
}

func TestValidateRejectsBadWaitForType(t *testing.T) {
	p := &Plan{Phases: []Phase{{
		Name:    "p1",
		WaitFor: []WaitForObject{{Type: "index", Name: "x"}},
	}}}
	if err := p.Validate(); err == nil {
		t.Error("expected error for invalid wait_for type")
	}
}

func TestValidateRejectsEmptyWaitForName(t *testing.T) {
	p := &Plan{Phases: []Phase{{
		Name:    "p1",
		WaitFor: []WaitForObject{{Type: WaitForTable, Name: ""}},
	}}}
	if err := p.Validate(); err == nil {
		t.Error("expected error for empty wait_for name")
	}
}

func TestValidateRejectsSeedSetWithoutTables(t *testing.T) {
	p := &Plan{Phases: []Phase{{
		Name:     "p1",
		SeedSets: []SeedSet{{Name: "s1"}},
	}}}
	if err := p.Validate(); err == nil {
		t.Error("expected error for tableless seed set")
	}
}

func TestValidateRejectsTableWithoutName(t *testing.T) {
	p := &Plan{Phases: []Phase{{
		Name: "p1",
		SeedSets: []SeedSet{{
			Name:   "s1",
			Tables: []TableSeed{{Table: ""}},
		}},
	}}}
	if err := p.Validate(); err == nil {
		t.Error("expected error for nameless table")
	}
}

func TestValidateAcceptsWellFormedPlan(t *testing.T) {
	p := &Plan{Phases: []Phase{{
		Name: "p1",
		SeedSets: []SeedSet{{
			Name:   "s1",
			Tables: []TableSeed{{Table: "departments"}},
		}},
	}}}
	if err := p.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestApplyDefaults(t *testing.T) {
	p := &Plan{Phases: []Phase{{
		Name: "p1",
		SeedSets: []SeedSet{{
			Name: "s1",
			Tables: []TableSeed{{
				Table:  "departments",
				AutoID: &AutoID{Column: "id"},
			}},
		}},
	}}}
	ApplyDefaults(p)

	if p.Database.Driver != DriverPostgres {
		t.Errorf("driver default = %q, want %q", p.Database.Driver, DriverPostgres)
	}
	if p.Database.TrackingTable != DefaultTrackingTable {
		t.Errorf("tracking table default = %q, want %q", p.Database.TrackingTable, DefaultTrackingTable)
	}
	if p.Phases[0].Timeout != "30s" {
		t.Errorf("phase timeout default = %q, want %q", p.Phases[0].Timeout, "30s")
	}
	if p.Phases[0].SeedSets[0].Tables[0].AutoID.IDType != DefaultAutoIDType {
		t.Errorf("auto_id.id_type default = %q, want %q", p.Phases[0].SeedSets[0].Tables[0].AutoID.IDType, DefaultAutoIDType)
	}
}

func TestValidateAutoIDType(t *testing.T) {
	plan := func(idType AutoIDType) *Plan {
		return &Plan{Phases: []Phase{{
			Name: "p1",
			SeedSets: []SeedSet{{
				Name: "s1",
				Tables: []TableSeed{{
					Table:  "departments",
					AutoID: &AutoID{Column: "id", IDType: idType},
				}},
			}},
		}}}
	}

	if err := plan(AutoIDTypeInteger).Validate(); err != nil {
		t.Errorf("integer id_type rejected: %v", err)
	}
	if err := plan(AutoIDTypeUUID).Validate(); err != nil {
		t.Errorf("uuid id_type rejected: %v", err)
	}
	if err := plan("snowflake").Validate(); err == nil {
		t.Error("expected error for unknown auto_id id_type")
	}
}
