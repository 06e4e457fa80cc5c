// Package migration retrofits clinic_id isolation onto existing tables.
//
// Each table moves through UNSCOPED, COLUMN_ADDED, BACKFILLED, CONSTRAINED and
// finally ENFORCED once the services reading it filter by clinic. A run takes a
// per-table advisory lock and executes every step in one transaction, so a
// failed backfill leaves the table exactly as it was.
package migration

import (
	"context"
	"fmt"

	"github.com/GestIAdev/Dentiagest-sub007/internal/schema"
	"github.com/GestIAdev/Dentiagest-sub007/pkg/database"
	"github.com/GestIAdev/Dentiagest-sub007/pkg/logger"
	"github.com/GestIAdev/Dentiagest-sub007/pkg/metrics"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const lockQuery = `SELECT pg_advisory_xact_lock(hashtext($1))`

// Outcome summarizes what Apply did to a table.
type Outcome string

const (
	OutcomeMigrated       Outcome = "migrated"
	OutcomeAlreadyApplied Outcome = "already_applied"
	OutcomeSkipped        Outcome = "skipped"
	OutcomePlanned        Outcome = "planned"
)

// Options tune a migration run.
type Options struct {
	// DryRun inspects and plans without executing anything.
	DryRun bool
	// DefaultClinicID receives rows of tables without a parent backfill.
	DefaultClinicID string
	// Target is the last stage to reach; zero means CONSTRAINED.
	Target Stage
	// AppliedBy is recorded in tenant_migrations.
	AppliedBy string
}

func (o Options) target() Stage {
	if o.Target == "" || o.Target.AtLeast(StageConstrained) {
		return StageConstrained
	}
	return o.Target
}

// Statement is one SQL statement of a step.
type Statement struct {
	SQL  string `json:"sql"`
	Args []any  `json:"args,omitempty"`
}

// Step moves a table to the next stage.
type Step struct {
	To          Stage       `json:"to"`
	Description string      `json:"description"`
	Statements  []Statement `json:"statements"`
}

// Result reports one table's migration.
type Result struct {
	Table   string  `json:"table"`
	From    Stage   `json:"from"`
	To      Stage   `json:"to"`
	Outcome Outcome `json:"outcome"`
	Steps   []Step  `json:"steps,omitempty"`
	Counts  Counts  `json:"counts"`
}

// StageChange is handed to the Notifier after a committed migration.
type StageChange struct {
	Table     string
	From      Stage
	To        Stage
	AppliedBy string
	Counts    Counts
}

// Notifier is told about committed stage changes and rolled back runs.
type Notifier interface {
	StageChanged(ctx context.Context, change StageChange)
	MigrationFailed(ctx context.Context, table string, err error)
}

// Migrator drives tables through the isolation stages.
type Migrator struct {
	db       *database.DB
	logger   *logger.Logger
	metrics  *metrics.Metrics
	notifier Notifier
}

// Option configures a Migrator.
type Option func(*Migrator)

// WithMetrics reports stages to Prometheus.
func WithMetrics(m *metrics.Metrics) Option {
	return func(mg *Migrator) { mg.metrics = m }
}

// WithNotifier publishes stage changes.
func WithNotifier(n Notifier) Option {
	return func(mg *Migrator) { mg.notifier = n }
}

// NewMigrator creates a migrator over db.
func NewMigrator(db *database.DB, log *logger.Logger, opts ...Option) *Migrator {
	m := &Migrator{db: db, logger: log.WithComponent("migration")}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Plan inspects table and returns the steps Apply would run, without executing them.
func (m *Migrator) Plan(ctx context.Context, spec schema.TableSpec, opts Options) (*Result, error) {
	snap, err := NewInspector(m.db.DB).Snapshot(ctx, spec.Name)
	if err != nil {
		return nil, err
	}
	res, done, err := m.classifySnapshot(ctx, NewStateStore(m.db.DB), spec, snap, opts, false)
	if err != nil || done {
		return res, err
	}

	res.Steps, err = planSteps(spec, snap, opts)
	if err != nil {
		return nil, err
	}
	res.To = opts.target()
	res.Outcome = OutcomePlanned
	return res, nil
}

// Apply migrates one table up to opts.Target inside a single transaction.
// Tables already CONSTRAINED or ENFORCED yield OutcomeAlreadyApplied and no error.
func (m *Migrator) Apply(ctx context.Context, spec schema.TableSpec, opts Options) (*Result, error) {
	if opts.DryRun {
		return m.Plan(ctx, spec, opts)
	}
	log := m.logger.WithTable(spec.Name)

	if err := NewStateStore(m.db.DB).Ensure(ctx); err != nil {
		return nil, err
	}

	var res *Result
	err := m.db.Transaction(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, lockQuery, "tenancy.migration:"+spec.Name); err != nil {
			return classify(spec.Name, fmt.Errorf("failed to acquire migration lock: %w", err))
		}
		var err error
		res, err = m.run(ctx, tx, spec, opts)
		return err
	})
	if err != nil {
		err = classify(spec.Name, err)
		log.Error().Err(err).Msg("migration rolled back")
		if m.notifier != nil {
			m.notifier.MigrationFailed(ctx, spec.Name, err)
		}
		return nil, err
	}

	switch res.Outcome {
	case OutcomeMigrated:
		log.Info().
			Str("from", string(res.From)).
			Str("to", string(res.To)).
			Int64("rows", res.Counts.Total).
			Msg("table migrated")
		m.metrics.MigrationStage(spec.Name, res.To.Ordinal())
		if m.notifier != nil {
			m.notifier.StageChanged(ctx, StageChange{
				Table:     spec.Name,
				From:      res.From,
				To:        res.To,
				AppliedBy: opts.AppliedBy,
				Counts:    res.Counts,
			})
		}
	case OutcomeAlreadyApplied:
		log.Info().Str("stage", string(res.From)).Msg("already applied")
		m.metrics.MigrationStage(spec.Name, res.From.Ordinal())
	case OutcomeSkipped:
		log.Warn().Msg("optional table not present, skipped")
	}
	return res, nil
}

// ApplyAll migrates specs in order and stops at the first failure.
func (m *Migrator) ApplyAll(ctx context.Context, specs []schema.TableSpec, opts Options) ([]*Result, error) {
	results := make([]*Result, 0, len(specs))
	for _, spec := range specs {
		res, err := m.Apply(ctx, spec, opts)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

// Enforce promotes CONSTRAINED tables to ENFORCED. Tables without a recorded
// stage, such as those created by bootstrap, are placed from the live schema
// first. Tables already ENFORCED are reported as such; tables below
// CONSTRAINED are an ErrSchemaAssumption.
func (m *Migrator) Enforce(ctx context.Context, tables []string, appliedBy string) ([]*Result, error) {
	states := NewStateStore(m.db.DB)
	if err := states.Ensure(ctx); err != nil {
		return nil, err
	}

	if _, err := states.Adopt(ctx, tables, appliedBy); err != nil {
		return nil, err
	}
	promoted, err := states.MarkEnforced(ctx, tables, appliedBy)
	if err != nil {
		return nil, err
	}
	done := make(map[string]bool, len(promoted))
	for _, t := range promoted {
		done[t] = true
	}

	results := make([]*Result, 0, len(tables))
	for _, table := range tables {
		if done[table] {
			results = append(results, &Result{Table: table, From: StageConstrained, To: StageEnforced, Outcome: OutcomeMigrated})
			m.metrics.MigrationStage(table, StageEnforced.Ordinal())
			if m.notifier != nil {
				m.notifier.StageChanged(ctx, StageChange{Table: table, From: StageConstrained, To: StageEnforced, AppliedBy: appliedBy})
			}
			continue
		}

		st, ok, err := states.Get(ctx, table)
		if err != nil {
			return results, err
		}
		if ok && st.Stage == StageEnforced {
			results = append(results, &Result{Table: table, From: StageEnforced, To: StageEnforced, Outcome: OutcomeAlreadyApplied})
			continue
		}
		if !ok {
			return results, schemaErr(table, "table does not exist")
		}
		stage := st.Stage
		return results, schemaErr(table, "stage is %s, migrate to %s before enforcing", stage, StageConstrained)
	}
	return results, nil
}

// classifySnapshot handles the cases that need no steps. done is true when res is final.
func (m *Migrator) classifySnapshot(ctx context.Context, states *StateStore, spec schema.TableSpec, snap Snapshot, opts Options, record bool) (*Result, bool, error) {
	res := &Result{Table: spec.Name, Counts: snap.Counts}
	if !snap.Exists {
		if spec.Optional {
			res.Outcome = OutcomeSkipped
			return res, true, nil
		}
		return nil, true, schemaErr(spec.Name, "table does not exist")
	}

	from := snap.Stage()
	st, recorded, err := states.Get(ctx, spec.Name)
	if err != nil {
		if record || KindOf(err) == ErrConnection {
			return nil, true, err
		}
		// dry runs may precede the state table
		recorded = false
	}
	if recorded && st.Stage == StageEnforced && from == StageConstrained {
		from = StageEnforced
	}
	res.From, res.To = from, from

	if from.AtLeast(opts.target()) {
		res.Outcome = OutcomeAlreadyApplied
		if record && !recorded {
			if err := states.Record(ctx, spec.Name, from, opts.AppliedBy, "detected from schema"); err != nil {
				return nil, true, err
			}
		}
		return res, true, nil
	}
	return res, false, nil
}

func (m *Migrator) run(ctx context.Context, tx *sqlx.Tx, spec schema.TableSpec, opts Options) (*Result, error) {
	insp := NewInspector(tx)
	states := NewStateStore(tx)

	snap, err := insp.Snapshot(ctx, spec.Name)
	if err != nil {
		return nil, err
	}
	res, done, err := m.classifySnapshot(ctx, states, spec, snap, opts, true)
	if err != nil || done {
		return res, err
	}

	steps, err := planSteps(spec, snap, opts)
	if err != nil {
		return nil, err
	}
	if err := m.checkBackfillSource(ctx, tx, spec, snap, opts); err != nil {
		return nil, err
	}

	for _, step := range steps {
		for _, stmt := range step.Statements {
			if _, err := tx.ExecContext(ctx, stmt.SQL, stmt.Args...); err != nil {
				return nil, classify(spec.Name, fmt.Errorf("%s: %w", step.Description, err))
			}
		}

		snap, err = insp.Snapshot(ctx, spec.Name)
		if err != nil {
			return nil, err
		}
		if err := verifyTransition(spec.Name, step.To, snap); err != nil {
			return nil, err
		}
		if err := states.Record(ctx, spec.Name, step.To, opts.AppliedBy, step.Description); err != nil {
			return nil, err
		}
	}

	res.To = snap.Stage()
	res.Steps = steps
	res.Counts = snap.Counts
	res.Outcome = OutcomeMigrated
	return res, nil
}

// verifyTransition checks the schema actually reached the stage a step targeted.
func verifyTransition(table string, want Stage, snap Snapshot) error {
	got := snap.Stage()
	if want == StageBackfilled && !snap.Counts.Complete() {
		return integrityErr(table, snap.Counts)
	}
	if !got.AtLeast(want) {
		return schemaErr(table, "expected stage %s after step, found %s", want, got)
	}
	return nil
}

// checkBackfillSource fails early when rows would have nowhere to come from.
func (m *Migrator) checkBackfillSource(ctx context.Context, q sqlx.QueryerContext, spec schema.TableSpec, snap Snapshot, opts Options) error {
	if snap.Stage().AtLeast(StageBackfilled) || opts.target() == StageColumnAdded {
		return nil
	}

	if spec.Backfill.ViaParent() {
		parent, err := NewInspector(q).Column(ctx, spec.Backfill.ParentTable, schema.ClinicColumn)
		if err != nil {
			return err
		}
		if !parent.Exists {
			return schemaErr(spec.Name, "parent table %s has no %s; migrate it first", spec.Backfill.ParentTable, schema.ClinicColumn)
		}
		child, err := NewInspector(q).Column(ctx, spec.Name, spec.Backfill.ForeignKey)
		if err != nil {
			return err
		}
		if !child.Exists {
			return schemaErr(spec.Name, "backfill column %s does not exist", spec.Backfill.ForeignKey)
		}
		return nil
	}

	var exists bool
	err := sqlx.GetContext(ctx, q, &exists, `SELECT EXISTS (SELECT 1 FROM clinics WHERE id = $1)`, opts.DefaultClinicID)
	if err != nil {
		return classify(spec.Name, err)
	}
	if !exists {
		return schemaErr(spec.Name, "default clinic %s does not exist", opts.DefaultClinicID)
	}
	return nil
}

// planSteps lists the statements that move table from its current stage to the target.
func planSteps(spec schema.TableSpec, snap Snapshot, opts Options) ([]Step, error) {
	from := snap.Stage()
	target := opts.target()
	table := pq.QuoteIdentifier(spec.Name)
	col := pq.QuoteIdentifier(schema.ClinicColumn)

	var steps []Step

	if !from.AtLeast(StageColumnAdded) {
		steps = append(steps, Step{
			To:          StageColumnAdded,
			Description: "add nullable " + schema.ClinicColumn,
			Statements: []Statement{
				{SQL: fmt.Sprintf("ALTER TABLE %s ADD COLUMN IF NOT EXISTS %s UUID", table, col)},
			},
		})
	}
	if target == StageColumnAdded {
		return steps, nil
	}

	if !from.AtLeast(StageBackfilled) {
		step, err := backfillStep(spec, opts)
		if err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}
	if target == StageBackfilled {
		return steps, nil
	}

	constrain := Step{
		To:          StageConstrained,
		Description: "constrain " + schema.ClinicColumn,
		Statements: []Statement{
			{SQL: fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s SET NOT NULL", table, col)},
		},
	}
	if !snap.HasFK {
		constrain.Statements = append(constrain.Statements, Statement{SQL: fmt.Sprintf(
			"ALTER TABLE %s ADD CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s(id) ON DELETE %s",
			table, pq.QuoteIdentifier(spec.ConstraintName()), col, pq.QuoteIdentifier(schema.ClinicsTable), onDelete(spec),
		)})
	}
	constrain.Statements = append(constrain.Statements, Statement{SQL: fmt.Sprintf(
		"CREATE INDEX IF NOT EXISTS %s ON %s (%s)", pq.QuoteIdentifier(spec.IndexName()), table, col,
	)})
	if spec.Backfill.ViaParent() {
		parent := pq.QuoteIdentifier(spec.Backfill.ParentTable)
		constrain.Statements = append(constrain.Statements,
			Statement{SQL: fmt.Sprintf("CREATE UNIQUE INDEX IF NOT EXISTS %s ON %s (%s, id)",
				pq.QuoteIdentifier(spec.ParentKeyName()), parent, col)},
			Statement{SQL: fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s FOREIGN KEY (%s, %s) REFERENCES %s (%s, id) ON DELETE %s",
				table, pq.QuoteIdentifier(spec.ParentConstraintName()), col, pq.QuoteIdentifier(spec.Backfill.ForeignKey),
				parent, col, onDelete(spec))},
		)
	}
	steps = append(steps, constrain)

	return steps, nil
}

func backfillStep(spec schema.TableSpec, opts Options) (Step, error) {
	table := pq.QuoteIdentifier(spec.Name)
	col := pq.QuoteIdentifier(schema.ClinicColumn)

	if spec.Backfill.ViaParent() {
		parent := spec.Backfill.ParentTable
		return Step{
			To:          StageBackfilled,
			Description: fmt.Sprintf("backfill %s from %s", schema.ClinicColumn, parent),
			Statements: []Statement{{SQL: fmt.Sprintf(
				"UPDATE %[1]s AS child SET %[2]s = parent.%[2]s FROM %[3]s AS parent WHERE child.%[4]s = parent.id AND child.%[2]s IS NULL AND parent.%[2]s IS NOT NULL",
				table, col, pq.QuoteIdentifier(parent), pq.QuoteIdentifier(spec.Backfill.ForeignKey),
			)}},
		}, nil
	}

	if opts.DefaultClinicID == "" {
		return Step{}, fmt.Errorf("table %s is backfilled with the default clinic, but none is configured", spec.Name)
	}
	if _, err := uuid.Parse(opts.DefaultClinicID); err != nil {
		return Step{}, fmt.Errorf("default clinic id %q: %w", opts.DefaultClinicID, err)
	}
	return Step{
		To:          StageBackfilled,
		Description: "backfill " + schema.ClinicColumn + " with default clinic",
		Statements: []Statement{{
			SQL:  fmt.Sprintf("UPDATE %s SET %s = $1 WHERE %s IS NULL", table, col, col),
			Args: []any{opts.DefaultClinicID},
		}},
	}, nil
}

func onDelete(spec schema.TableSpec) schema.DeletePolicy {
	if spec.OnDelete == "" {
		return schema.Restrict
	}
	return spec.OnDelete
}
