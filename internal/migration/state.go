package migration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/GestIAdev/Dentiagest-sub007/internal/schema"
	"github.com/jmoiron/sqlx"
)

// State is one row of tenant_migrations.
type State struct {
	Table     string    `db:"table_name" json:"table"`
	Stage     Stage     `db:"stage" json:"stage"`
	AppliedBy string    `db:"applied_by" json:"applied_by"`
	Detail    string    `db:"detail" json:"detail"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// StateStore records the last stage reached by each table.
type StateStore struct {
	db sqlx.ExtContext
}

// NewStateStore works on a pool or on a transaction.
func NewStateStore(db sqlx.ExtContext) *StateStore {
	return &StateStore{db: db}
}

// Ensure creates tenant_migrations when missing.
func (s *StateStore) Ensure(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema.StateSQL); err != nil {
		return classify("tenant_migrations", fmt.Errorf("failed to create state table: %w", err))
	}
	return nil
}

// Get returns the recorded state of table; ok is false when nothing was recorded.
func (s *StateStore) Get(ctx context.Context, table string) (State, bool, error) {
	var st State
	err := sqlx.GetContext(ctx, s.db, &st,
		`SELECT table_name, stage, applied_by, detail, updated_at FROM tenant_migrations WHERE table_name = $1`, table)
	if errors.Is(err, sql.ErrNoRows) {
		return State{}, false, nil
	}
	if err != nil {
		return State{}, false, classify(table, err)
	}
	return st, true, nil
}

// Record upserts the stage of table.
func (s *StateStore) Record(ctx context.Context, table string, stage Stage, appliedBy, detail string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tenant_migrations (table_name, stage, applied_by, detail, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (table_name) DO UPDATE
		SET stage = EXCLUDED.stage, applied_by = EXCLUDED.applied_by, detail = EXCLUDED.detail, updated_at = NOW()`,
		table, string(stage), appliedBy, detail)
	if err != nil {
		return classify(table, fmt.Errorf("failed to record stage %s: %w", stage, err))
	}
	return nil
}

// List returns every recorded state ordered by table name.
func (s *StateStore) List(ctx context.Context) ([]State, error) {
	var states []State
	err := sqlx.SelectContext(ctx, s.db, &states,
		`SELECT table_name, stage, applied_by, detail, updated_at FROM tenant_migrations ORDER BY table_name`)
	if err != nil {
		return nil, classify("", err)
	}
	return states, nil
}

// Adopt records the schema-detected stage of tables that have no row yet and
// returns the tables it recorded. Absent tables are skipped.
func (s *StateStore) Adopt(ctx context.Context, tables []string, appliedBy string) ([]string, error) {
	insp := NewInspector(s.db)
	var adopted []string
	for _, table := range tables {
		_, ok, err := s.Get(ctx, table)
		if err != nil {
			return adopted, err
		}
		if ok {
			continue
		}
		snap, err := insp.Snapshot(ctx, table)
		if err != nil {
			return adopted, err
		}
		if !snap.Exists {
			continue
		}
		if err := s.Record(ctx, table, snap.Stage(), appliedBy, "detected from schema"); err != nil {
			return adopted, err
		}
		adopted = append(adopted, table)
	}
	return adopted, nil
}

// MarkEnforced promotes CONSTRAINED tables to ENFORCED and returns the ones promoted.
// Tables in any other stage are left alone.
func (s *StateStore) MarkEnforced(ctx context.Context, tables []string, appliedBy string) ([]string, error) {
	if len(tables) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(
		`UPDATE tenant_migrations SET stage = ?, applied_by = ?, updated_at = NOW()
		WHERE stage = ? AND table_name IN (?) RETURNING table_name`,
		string(StageEnforced), appliedBy, string(StageConstrained), tables)
	if err != nil {
		return nil, fmt.Errorf("failed to build enforce query: %w", err)
	}

	var promoted []string
	if err := sqlx.SelectContext(ctx, s.db, &promoted, s.db.Rebind(query), args...); err != nil {
		return nil, classify("", fmt.Errorf("failed to mark tables enforced: %w", err))
	}
	return promoted, nil
}
