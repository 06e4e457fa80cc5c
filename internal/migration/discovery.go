package migration

import (
	"context"
	"sort"

	"github.com/GestIAdev/Dentiagest-sub007/internal/schema"
	"github.com/jmoiron/sqlx"
)

// Columns of composite keys are paired by position; information_schema would
// return every combination of them.
const foreignKeysQuery = `SELECT src.relname AS table_name, sa.attname AS column_name,
		ref.relname AS ref_table, ra.attname AS ref_column, con.conname AS constraint_name
	FROM pg_constraint con
	JOIN pg_namespace n ON n.oid = con.connamespace
	JOIN pg_class src ON src.oid = con.conrelid
	JOIN pg_class ref ON ref.oid = con.confrelid
	CROSS JOIN LATERAL unnest(con.conkey, con.confkey) AS k(src_attnum, ref_attnum)
	JOIN pg_attribute sa ON sa.attrelid = con.conrelid AND sa.attnum = k.src_attnum
	JOIN pg_attribute ra ON ra.attrelid = con.confrelid AND ra.attnum = k.ref_attnum
	WHERE con.contype = 'f' AND n.nspname = current_schema()`

// ForeignKey is one referencing column.
type ForeignKey struct {
	Table      string `db:"table_name" json:"table"`
	Column     string `db:"column_name" json:"column"`
	RefTable   string `db:"ref_table" json:"ref_table"`
	RefColumn  string `db:"ref_column" json:"ref_column"`
	Constraint string `db:"constraint_name" json:"constraint"`
}

// Landmine is a table that holds clinic data without a clinic_id of its own.
type Landmine struct {
	Table  string   `json:"table"`
	Path   []string `json:"path"`
	Reason string   `json:"reason"`
}

// Discovery reads foreign keys from information_schema instead of relying on
// hand-maintained table lists.
type Discovery struct {
	q sqlx.QueryerContext
}

// NewDiscovery works on a pool or on a transaction.
func NewDiscovery(q sqlx.QueryerContext) *Discovery {
	return &Discovery{q: q}
}

// ForeignKeys returns every foreign key in the current schema.
func (d *Discovery) ForeignKeys(ctx context.Context) ([]ForeignKey, error) {
	var fks []ForeignKey
	if err := sqlx.SelectContext(ctx, d.q, &fks, foreignKeysQuery+` ORDER BY src.relname, sa.attname`); err != nil {
		return nil, classify("", err)
	}
	return fks, nil
}

// ReferencingTables returns the foreign keys that point at table.
func (d *Discovery) ReferencingTables(ctx context.Context, table string) ([]ForeignKey, error) {
	var fks []ForeignKey
	err := sqlx.SelectContext(ctx, d.q, &fks, foreignKeysQuery+` AND ref.relname = $1 ORDER BY src.relname, sa.attname`, table)
	if err != nil {
		return nil, classify(table, err)
	}
	return fks, nil
}

// TablesWithColumn returns the base tables that have column.
func (d *Discovery) TablesWithColumn(ctx context.Context, column string) ([]string, error) {
	var tables []string
	err := sqlx.SelectContext(ctx, d.q, &tables, `SELECT c.table_name FROM information_schema.columns c
		JOIN information_schema.tables t ON t.table_schema = c.table_schema AND t.table_name = c.table_name
		WHERE c.table_schema = current_schema() AND c.column_name = $1 AND t.table_type = 'BASE TABLE'
		ORDER BY c.table_name`, column)
	if err != nil {
		return nil, classify("", err)
	}
	return tables, nil
}

// BaseTables returns every base table in the current schema.
func (d *Discovery) BaseTables(ctx context.Context) ([]string, error) {
	var tables []string
	err := sqlx.SelectContext(ctx, d.q, &tables, `SELECT table_name FROM information_schema.tables
		WHERE table_schema = current_schema() AND table_type = 'BASE TABLE' ORDER BY table_name`)
	if err != nil {
		return nil, classify("", err)
	}
	return tables, nil
}

// Landmines walks foreign keys outward from the tenant-owned tables and
// reports every table that reaches clinic data without carrying clinic_id.
// User-scoped tables and the clinic registry are exempt.
func (d *Discovery) Landmines(ctx context.Context, reg schema.Registry) ([]Landmine, error) {
	fks, err := d.ForeignKeys(ctx)
	if err != nil {
		return nil, err
	}
	tables, err := d.BaseTables(ctx)
	if err != nil {
		return nil, err
	}
	scoped, err := d.TablesWithColumn(ctx, schema.ClinicColumn)
	if err != nil {
		return nil, err
	}
	return findLandmines(reg, tables, scoped, fks), nil
}

var infrastructureTables = map[string]bool{
	schema.ClinicsTable: true,
	"owner_clinics":     true,
	"tenant_migrations": true,
}

func findLandmines(reg schema.Registry, tables, scoped []string, fks []ForeignKey) []Landmine {
	present := make(map[string]bool, len(tables))
	for _, t := range tables {
		present[t] = true
	}
	hasClinic := make(map[string]bool, len(scoped))
	for _, t := range scoped {
		hasClinic[t] = true
	}
	referencedBy := make(map[string][]ForeignKey)
	for _, fk := range fks {
		if fk.Table == fk.RefTable {
			continue
		}
		referencedBy[fk.RefTable] = append(referencedBy[fk.RefTable], fk)
	}

	found := make(map[string]Landmine)

	// Registered tables that never got the column.
	var queue [][]string
	for _, spec := range reg.TenantOwned {
		if !present[spec.Name] {
			continue
		}
		if !hasClinic[spec.Name] {
			found[spec.Name] = Landmine{Table: spec.Name, Path: []string{spec.Name}, Reason: "tenant-owned table without " + schema.ClinicColumn}
		}
		queue = append(queue, []string{spec.Name})
	}

	visited := make(map[string]bool)
	for len(queue) > 0 {
		path := queue[0]
		queue = queue[1:]
		table := path[len(path)-1]
		if visited[table] {
			continue
		}
		visited[table] = true

		for _, fk := range referencedBy[table] {
			child := fk.Table
			if visited[child] || infrastructureTables[child] || reg.IsUserScoped(child) {
				continue
			}
			childPath := append(append([]string(nil), path...), child)
			if !hasClinic[child] && !reg.IsTenantOwned(child) {
				if _, seen := found[child]; !seen {
					found[child] = Landmine{
						Table:  child,
						Path:   childPath,
						Reason: "references " + table + "." + fk.RefColumn + " via " + fk.Column + " without " + schema.ClinicColumn,
					}
				}
			}
			queue = append(queue, childPath)
		}
	}

	out := make([]Landmine, 0, len(found))
	for _, l := range found {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Table < out[j].Table })
	return out
}
