package migration

import (
	"context"
	"database/sql"
	"errors"

	"github.com/GestIAdev/Dentiagest-sub007/internal/schema"
	"github.com/jmoiron/sqlx"
)

const (
	tableExistsQuery = `SELECT EXISTS (
		SELECT 1 FROM information_schema.tables
		WHERE table_schema = current_schema() AND table_name = $1 AND table_type = 'BASE TABLE')`

	columnQuery = `SELECT is_nullable, data_type FROM information_schema.columns
		WHERE table_schema = current_schema() AND table_name = $1 AND column_name = $2`

	foreignKeyExistsQuery = `SELECT EXISTS (
		SELECT 1 FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON kcu.constraint_name = tc.constraint_name AND kcu.table_schema = tc.table_schema
		JOIN information_schema.constraint_column_usage ccu
			ON ccu.constraint_name = tc.constraint_name AND ccu.table_schema = tc.table_schema
		WHERE tc.constraint_type = 'FOREIGN KEY' AND tc.table_schema = current_schema()
			AND tc.table_name = $1 AND kcu.column_name = $2 AND ccu.table_name = $3)`

	// information_schema has no index view; an index counts when the column leads it.
	indexExistsQuery = `SELECT EXISTS (
		SELECT 1 FROM pg_index i
		JOIN pg_class t ON t.oid = i.indrelid
		JOIN pg_namespace n ON n.oid = t.relnamespace
		JOIN pg_attribute a ON a.attrelid = t.oid AND a.attnum = i.indkey[0]
		WHERE n.nspname = current_schema() AND t.relname = $1 AND a.attname = $2)`
)

// Column describes one column as information_schema reports it.
type Column struct {
	Exists   bool
	Nullable bool
	DataType string
}

// Snapshot is everything the migrator needs to place a table in the state machine.
type Snapshot struct {
	Table    string
	Exists   bool
	Column   Column
	HasFK    bool
	HasIndex bool
	Counts   Counts
}

// Stage derives the schema-level stage. ENFORCED is never inferred from the schema.
func (s Snapshot) Stage() Stage {
	switch {
	case !s.Column.Exists:
		return StageUnscoped
	case !s.Column.Nullable && s.HasFK && s.HasIndex:
		return StageConstrained
	case s.Counts.Complete():
		return StageBackfilled
	default:
		return StageColumnAdded
	}
}

// Inspector answers schema questions through information_schema. It is read-only.
type Inspector struct {
	q sqlx.QueryerContext
}

// NewInspector works on a pool or on a transaction.
func NewInspector(q sqlx.QueryerContext) *Inspector {
	return &Inspector{q: q}
}

// TableExists reports whether table is a base table in the current schema.
func (i *Inspector) TableExists(ctx context.Context, table string) (bool, error) {
	var exists bool
	if err := sqlx.GetContext(ctx, i.q, &exists, tableExistsQuery, table); err != nil {
		return false, classify(table, err)
	}
	return exists, nil
}

// Column looks up one column; a missing column is not an error.
func (i *Inspector) Column(ctx context.Context, table, column string) (Column, error) {
	var row struct {
		IsNullable string `db:"is_nullable"`
		DataType   string `db:"data_type"`
	}
	err := sqlx.GetContext(ctx, i.q, &row, columnQuery, table, column)
	if errors.Is(err, sql.ErrNoRows) {
		return Column{}, nil
	}
	if err != nil {
		return Column{}, classify(table, err)
	}
	return Column{Exists: true, Nullable: row.IsNullable == "YES", DataType: row.DataType}, nil
}

// ForeignKeyExists reports whether table.column references refTable.
func (i *Inspector) ForeignKeyExists(ctx context.Context, table, column, refTable string) (bool, error) {
	var exists bool
	if err := sqlx.GetContext(ctx, i.q, &exists, foreignKeyExistsQuery, table, column, refTable); err != nil {
		return false, classify(table, err)
	}
	return exists, nil
}

// IndexExists reports whether an index on table leads with column.
func (i *Inspector) IndexExists(ctx context.Context, table, column string) (bool, error) {
	var exists bool
	if err := sqlx.GetContext(ctx, i.q, &exists, indexExistsQuery, table, column); err != nil {
		return false, classify(table, err)
	}
	return exists, nil
}

// Snapshot inspects table's clinic column, constraints and row counts.
func (i *Inspector) Snapshot(ctx context.Context, table string) (Snapshot, error) {
	snap := Snapshot{Table: table}

	exists, err := i.TableExists(ctx, table)
	if err != nil || !exists {
		return snap, err
	}
	snap.Exists = true

	if snap.Column, err = i.Column(ctx, table, schema.ClinicColumn); err != nil {
		return snap, err
	}
	if !snap.Column.Exists {
		return snap, nil
	}
	if snap.Column.DataType != "uuid" {
		return snap, schemaErr(table, "%s has type %s, expected uuid", schema.ClinicColumn, snap.Column.DataType)
	}

	if snap.HasFK, err = i.ForeignKeyExists(ctx, table, schema.ClinicColumn, schema.ClinicsTable); err != nil {
		return snap, err
	}
	if snap.HasIndex, err = i.IndexExists(ctx, table, schema.ClinicColumn); err != nil {
		return snap, err
	}
	if snap.Counts, err = NewVerifier(i.q).Count(ctx, table, schema.ClinicColumn); err != nil {
		return snap, err
	}
	return snap, nil
}

// DetectStage places table in the state machine from the live schema alone.
func (i *Inspector) DetectStage(ctx context.Context, table string) (Stage, error) {
	snap, err := i.Snapshot(ctx, table)
	if err != nil {
		return "", err
	}
	if !snap.Exists {
		return "", schemaErr(table, "table does not exist")
	}
	return snap.Stage(), nil
}
