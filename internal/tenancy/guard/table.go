package guard

import (
	"fmt"
	"strings"

	"github.com/GestIAdev/Dentiagest-sub007/internal/schema"
	"github.com/lib/pq"
)

// Table describes a tenant-owned table to the guard. Column names come from
// this definition only, never from request input.
type Table struct {
	Name string
	// IDColumn defaults to "id".
	IDColumn string
	// ClinicColumn defaults to clinic_id.
	ClinicColumn string
	// Columns are selected, returned and filterable.
	Columns []string
	// Insertable are written by Insert in addition to the clinic column.
	Insertable []string
	// Mutable are written by Update. The clinic column may never appear here.
	Mutable []string
	// Counters are integer columns changed by Add only. They never go below zero.
	Counters []string
	// SoftDelete names a timestamp column; when set, Delete stamps it and reads skip stamped rows.
	SoftDelete string
	// Touch names a timestamp column set to NOW() on update.
	Touch string
	// OrderBy is the list ordering column; OrderDesc reverses it.
	OrderBy   string
	OrderDesc bool
}

func (t Table) withDefaults() Table {
	if t.IDColumn == "" {
		t.IDColumn = "id"
	}
	if t.ClinicColumn == "" {
		t.ClinicColumn = schema.ClinicColumn
	}
	if t.OrderBy == "" {
		t.OrderBy = t.IDColumn
	}
	return t
}

// Validate checks the definition is usable.
func (t Table) Validate() error {
	t = t.withDefaults()
	if t.Name == "" {
		return fmt.Errorf("guard table has no name")
	}
	for _, col := range []string{t.IDColumn, t.ClinicColumn, t.OrderBy} {
		if !contains(t.Columns, col) {
			return fmt.Errorf("table %s: column %s must be selectable", t.Name, col)
		}
	}
	for _, col := range append(append([]string(nil), t.Insertable...), t.Mutable...) {
		if col == t.ClinicColumn {
			return fmt.Errorf("table %s: %s is assigned from the scope and cannot be written directly", t.Name, col)
		}
		if col == t.IDColumn && contains(t.Mutable, col) {
			return fmt.Errorf("table %s: %s cannot be updated", t.Name, col)
		}
		if !contains(t.Columns, col) {
			return fmt.Errorf("table %s: writable column %s is not declared", t.Name, col)
		}
	}
	for _, col := range t.Counters {
		if col == t.ClinicColumn || col == t.IDColumn || contains(t.Mutable, col) {
			return fmt.Errorf("table %s: counter %s must not be otherwise writable", t.Name, col)
		}
		if !contains(t.Columns, col) {
			return fmt.Errorf("table %s: counter %s is not declared", t.Name, col)
		}
	}
	if t.SoftDelete != "" && !contains(t.Columns, t.SoftDelete) {
		return fmt.Errorf("table %s: soft delete column %s is not declared", t.Name, t.SoftDelete)
	}
	return nil
}

// HasColumn reports whether col can be filtered on.
func (t Table) HasColumn(col string) bool {
	return contains(t.Columns, col)
}

func (t Table) quotedName() string {
	return pq.QuoteIdentifier(t.Name)
}

func (t Table) selectList() string {
	return quoteAll(t.Columns)
}

func (t Table) orderClause() string {
	dir := "ASC"
	if t.OrderDesc {
		dir = "DESC"
	}
	if t.OrderBy == t.IDColumn {
		return fmt.Sprintf("ORDER BY %s %s", pq.QuoteIdentifier(t.OrderBy), dir)
	}
	return fmt.Sprintf("ORDER BY %s %s, %s ASC", pq.QuoteIdentifier(t.OrderBy), dir, pq.QuoteIdentifier(t.IDColumn))
}

func quoteAll(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pq.QuoteIdentifier(c)
	}
	return strings.Join(quoted, ", ")
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
