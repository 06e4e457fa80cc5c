// Package schema describes which tables are tenant-owned, how legacy rows are
// attributed to a clinic, and ships the DDL used by bootstrap and tests.
package schema

import (
	_ "embed"
	"fmt"
)

// ClinicColumn is the tenant key carried by every tenant-owned table.
const ClinicColumn = "clinic_id"

// ClinicsTable is the tenant registry referenced by every clinic_id.
const ClinicsTable = "clinics"

var (
	//go:embed sql/baseline.sql
	BaselineSQL string

	//go:embed sql/legacy.sql
	LegacySQL string

	//go:embed sql/state.sql
	StateSQL string
)

// DeletePolicy is the ON DELETE action of the clinic foreign key.
type DeletePolicy string

const (
	Cascade  DeletePolicy = "CASCADE"
	Restrict DeletePolicy = "RESTRICT"
)

// Backfill says where a legacy row's clinic comes from. A zero Backfill
// assigns the configured default clinic.
type Backfill struct {
	// ParentTable is a tenant-owned table already carrying clinic_id.
	ParentTable string
	// ForeignKey is the column on this table referencing ParentTable.id.
	ForeignKey string
}

// ViaParent reports whether rows inherit the clinic of a parent row.
func (b Backfill) ViaParent() bool {
	return b.ParentTable != ""
}

// TableSpec describes one tenant-owned table.
type TableSpec struct {
	Name     string
	Backfill Backfill
	OnDelete DeletePolicy
	// Optional tables are absent from some deployments. Audits skip them with
	// a warning when missing; migrations treat them as nothing to do.
	Optional bool
}

// ConstraintName is the name of the clinic foreign key.
func (t TableSpec) ConstraintName() string {
	return "fk_" + t.Name + "_clinic"
}

// ParentConstraintName is the name of the foreign key that pins a row to a
// parent of the same clinic.
func (t TableSpec) ParentConstraintName() string {
	return "fk_" + t.Name + "_" + t.Backfill.ParentTable + "_clinic"
}

// ParentKeyName is the name of the unique (clinic_id, id) index on the parent.
func (t TableSpec) ParentKeyName() string {
	return t.Backfill.ParentTable + "_clinic_id_id_key"
}

// IndexName is the name of the clinic_id index.
func (t TableSpec) IndexName() string {
	return "idx_" + t.Name + "_clinic_id"
}

// UserScopedTable is a table keyed to a person rather than a clinic.
type UserScopedTable struct {
	Name        string
	ScopeColumn string
}

// Registry lists the tables the isolation tooling knows about.
type Registry struct {
	TenantOwned []TableSpec
	UserScoped  []UserScopedTable
}

// Default returns the Dentiagest registry. Parents precede children so a
// migration of the full list can backfill children from their parents.
func Default() Registry {
	return Registry{
		TenantOwned: []TableSpec{
			{Name: "users", OnDelete: Restrict},
			{Name: "patients", OnDelete: Cascade},
			{Name: "appointments", OnDelete: Cascade, Backfill: Backfill{ParentTable: "patients", ForeignKey: "patient_id"}},
			{Name: "medical_records", OnDelete: Restrict, Backfill: Backfill{ParentTable: "patients", ForeignKey: "patient_id"}},
			{Name: "invoices", OnDelete: Restrict, Backfill: Backfill{ParentTable: "patients", ForeignKey: "patient_id"}},
			{Name: "inventory_items", OnDelete: Cascade, Optional: true},
			{Name: "equipment", OnDelete: Cascade, Optional: true},
			{Name: "suppliers", OnDelete: Cascade, Optional: true},
			{Name: "purchase_orders", OnDelete: Cascade, Optional: true, Backfill: Backfill{ParentTable: "suppliers", ForeignKey: "supplier_id"}},
		},
		UserScoped: []UserScopedTable{
			{Name: "notifications", ScopeColumn: "user_id"},
			{Name: "notification_preferences", ScopeColumn: "user_id"},
			{Name: "cart_items", ScopeColumn: "patient_id"},
		},
	}
}

// Lookup finds a tenant-owned table by name.
func (r Registry) Lookup(name string) (TableSpec, bool) {
	for _, t := range r.TenantOwned {
		if t.Name == name {
			return t, true
		}
	}
	return TableSpec{}, false
}

// MustLookup is Lookup for names known at compile time.
func (r Registry) MustLookup(name string) TableSpec {
	t, ok := r.Lookup(name)
	if !ok {
		panic(fmt.Sprintf("schema: %s is not a tenant-owned table", name))
	}
	return t
}

// Select resolves names to specs, preserving registry order.
func (r Registry) Select(names []string) ([]TableSpec, error) {
	want := make(map[string]bool, len(names))
	for _, n := range names {
		if _, ok := r.Lookup(n); !ok {
			return nil, fmt.Errorf("unknown tenant-owned table %q", n)
		}
		want[n] = true
	}
	var out []TableSpec
	for _, t := range r.TenantOwned {
		if want[t.Name] {
			out = append(out, t)
		}
	}
	return out, nil
}

// IsTenantOwned reports whether name is a registered tenant-owned table.
func (r Registry) IsTenantOwned(name string) bool {
	_, ok := r.Lookup(name)
	return ok
}

// IsUserScoped reports whether name is deliberately not clinic-scoped.
func (r Registry) IsUserScoped(name string) bool {
	for _, t := range r.UserScoped {
		if t.Name == name {
			return true
		}
	}
	return false
}

// Names returns the tenant-owned table names in registry order.
func (r Registry) Names() []string {
	names := make([]string, len(r.TenantOwned))
	for i, t := range r.TenantOwned {
		names[i] = t.Name
	}
	return names
}

// Validate checks that every parent backfill points at an earlier tenant-owned table.
func (r Registry) Validate() error {
	seen := make(map[string]bool, len(r.TenantOwned))
	for _, t := range r.TenantOwned {
		if seen[t.Name] {
			return fmt.Errorf("table %s registered twice", t.Name)
		}
		if r.IsUserScoped(t.Name) {
			return fmt.Errorf("table %s is both tenant-owned and user-scoped", t.Name)
		}
		if t.Backfill.ViaParent() {
			if !seen[t.Backfill.ParentTable] {
				return fmt.Errorf("table %s backfills from %s, which must be registered before it", t.Name, t.Backfill.ParentTable)
			}
			if t.Backfill.ForeignKey == "" {
				return fmt.Errorf("table %s backfills from %s without a foreign key column", t.Name, t.Backfill.ParentTable)
			}
		}
		seen[t.Name] = true
	}
	return nil
}
