package migration

import (
	"context"
	"fmt"

	"github.com/GestIAdev/Dentiagest-sub007/internal/schema"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// Counts is the outcome of the tenant-column check on one table.
type Counts struct {
	Table   string `json:"table"`
	Column  string `json:"column"`
	Total   int64  `json:"total"`
	NonNull int64  `json:"non_null"`
	Valid   int64  `json:"valid"`
}

// Complete holds when every row carries a clinic id that resolves to a clinic.
func (c Counts) Complete() bool {
	return c.Total == c.NonNull && c.NonNull == c.Valid
}

// Nulls is the number of rows without a clinic id.
func (c Counts) Nulls() int64 {
	return c.Total - c.NonNull
}

// Orphans is the number of rows whose clinic id matches no clinic.
func (c Counts) Orphans() int64 {
	return c.NonNull - c.Valid
}

// Verifier is the single tenant-column check shared by migrations, audits and the CLI.
type Verifier struct {
	q sqlx.QueryerContext
}

// NewVerifier works on a pool or on a transaction.
func NewVerifier(q sqlx.QueryerContext) *Verifier {
	return &Verifier{q: q}
}

// CountQuery renders the verification statement for table.column.
func CountQuery(table, column string) string {
	return fmt.Sprintf(
		`SELECT COUNT(*) AS total, COUNT(t.%[2]s) AS non_null, COUNT(c.id) AS valid FROM %[1]s t LEFT JOIN %[3]s c ON c.id = t.%[2]s`,
		pq.QuoteIdentifier(table), pq.QuoteIdentifier(column), pq.QuoteIdentifier(schema.ClinicsTable),
	)
}

// Count returns total rows, rows with a non-null column and rows whose value resolves to a clinic.
func (v *Verifier) Count(ctx context.Context, table, column string) (Counts, error) {
	c := Counts{Table: table, Column: column}
	row := v.q.QueryRowxContext(ctx, CountQuery(table, column))
	if err := row.Scan(&c.Total, &c.NonNull, &c.Valid); err != nil {
		return c, classify(table, err)
	}
	return c, nil
}

// Verify checks that the table and column exist and that every row is assigned
// to an existing clinic. It returns ErrSchemaAssumption or ErrDataIntegrity otherwise.
func (v *Verifier) Verify(ctx context.Context, table, column string) (Counts, error) {
	insp := NewInspector(v.q)

	exists, err := insp.TableExists(ctx, table)
	if err != nil {
		return Counts{Table: table, Column: column}, err
	}
	if !exists {
		return Counts{Table: table, Column: column}, schemaErr(table, "table does not exist")
	}

	col, err := insp.Column(ctx, table, column)
	if err != nil {
		return Counts{Table: table, Column: column}, err
	}
	if !col.Exists {
		return Counts{Table: table, Column: column}, schemaErr(table, "column %s does not exist", column)
	}

	c, err := v.Count(ctx, table, column)
	if err != nil {
		return c, err
	}
	if !c.Complete() {
		return c, integrityErr(table, c)
	}
	return c, nil
}
