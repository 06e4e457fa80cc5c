// Package audit inspects every tenant-owned table and reports where the
// clinic_id invariant does not hold. It never writes: the whole run executes
// in a read-only transaction that is rolled back at the end.
package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/GestIAdev/Dentiagest-sub007/internal/migration"
	"github.com/GestIAdev/Dentiagest-sub007/internal/schema"
	"github.com/GestIAdev/Dentiagest-sub007/pkg/database"
	"github.com/GestIAdev/Dentiagest-sub007/pkg/logger"
	"github.com/GestIAdev/Dentiagest-sub007/pkg/messaging"
	"github.com/GestIAdev/Dentiagest-sub007/pkg/metrics"
	"github.com/jmoiron/sqlx"
)

// Options tune a run.
type Options struct {
	// Discover walks information_schema for unregistered tables that hold clinic data.
	Discover bool
}

// Auditor runs audits.
type Auditor struct {
	db        *database.DB
	registry  schema.Registry
	publisher messaging.EventPublisher
	metrics   *metrics.Metrics
	logger    *logger.Logger
}

// Option configures an Auditor.
type Option func(*Auditor)

// WithPublisher announces completed audits.
func WithPublisher(p messaging.EventPublisher) Option {
	return func(a *Auditor) { a.publisher = p }
}

// WithMetrics exports finding counts.
func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Auditor) { a.metrics = m }
}

func NewAuditor(db *database.DB, reg schema.Registry, log *logger.Logger, opts ...Option) *Auditor {
	a := &Auditor{db: db, registry: reg, logger: log.WithComponent("audit")}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run audits specs. It returns an error only when the audit itself could not
// complete, e.g. on a lost connection; findings are in the report.
func (a *Auditor) Run(ctx context.Context, specs []schema.TableSpec, opts Options) (*Report, error) {
	start := time.Now()

	tx, err := a.db.BeginTxx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, migration.Classify(fmt.Errorf("failed to begin read-only transaction: %w", err))
	}
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			a.logger.Warn().Err(rbErr).Msg("failed to roll back audit transaction")
		}
	}()

	recorded, err := a.recordedStages(ctx, tx)
	if err != nil {
		return nil, err
	}

	report := &Report{StartedAt: start.UTC()}
	insp := migration.NewInspector(tx)
	for _, spec := range specs {
		f, err := a.auditTable(ctx, insp, spec, recorded)
		if err != nil {
			return nil, err
		}
		a.logger.Debug().Str("table", spec.Name).Str("severity", string(f.Severity)).Msg(f.Message)
		report.Findings = append(report.Findings, f)
	}

	if opts.Discover {
		mines, err := migration.NewDiscovery(tx).Landmines(ctx, a.registry)
		if err != nil {
			return nil, err
		}
		report.Landmines = mines
	}
	report.Duration = time.Since(start)

	a.finish(ctx, report)
	return report, nil
}

// recordedStages reads tenant_migrations when it exists.
func (a *Auditor) recordedStages(ctx context.Context, q sqlx.ExtContext) (map[string]migration.Stage, error) {
	exists, err := migration.NewInspector(q).TableExists(ctx, "tenant_migrations")
	if err != nil {
		return nil, err
	}
	stages := map[string]migration.Stage{}
	if !exists {
		return stages, nil
	}
	states, err := migration.NewStateStore(q).List(ctx)
	if err != nil {
		return nil, err
	}
	for _, st := range states {
		stages[st.Table] = st.Stage
	}
	return stages, nil
}

func (a *Auditor) auditTable(ctx context.Context, insp *migration.Inspector, spec schema.TableSpec, recorded map[string]migration.Stage) (Finding, error) {
	f := Finding{Table: spec.Name, Recorded: recorded[spec.Name]}

	snap, err := insp.Snapshot(ctx, spec.Name)
	if err != nil {
		if errors.Is(err, migration.ErrSchemaAssumption) {
			f.Severity = SeverityWarn
			f.Message = err.Error()
			return f, nil
		}
		return f, err
	}

	if !snap.Exists {
		f.Severity = SeverityWarn
		if spec.Optional {
			f.Message = "optional table not present"
		} else {
			f.Message = "table does not exist"
		}
		return f, nil
	}

	f.Stage = snap.Stage()
	if f.Recorded == migration.StageEnforced && f.Stage == migration.StageConstrained {
		f.Stage = migration.StageEnforced
	}

	if !snap.Column.Exists {
		f.Severity = SeverityWarn
		f.Message = "no clinic_id column; migration pending"
		return f, nil
	}

	counts := snap.Counts
	f.Counts = &counts
	switch {
	case !counts.Complete():
		f.Severity = SeverityViolation
		f.Message = fmt.Sprintf("%d of %d rows lack a valid clinic_id (%d null, %d orphaned)",
			counts.Total-counts.Valid, counts.Total, counts.Nulls(), counts.Orphans())
	case f.Recorded != "" && f.Recorded.AtLeast(migration.StageConstrained) && !f.Stage.AtLeast(migration.StageConstrained):
		f.Severity = SeverityWarn
		f.Message = fmt.Sprintf("recorded stage %s is ahead of the schema (%s)", f.Recorded, f.Stage)
	case !f.Stage.AtLeast(migration.StageConstrained):
		f.Severity = SeverityWarn
		f.Message = "clinic_id is fully assigned but not constrained"
	default:
		f.Severity = SeverityOK
		f.Message = "isolated"
	}
	return f, nil
}

func (a *Auditor) finish(ctx context.Context, r *Report) {
	summary := r.Summary()
	a.metrics.AuditFindings(map[string]int{
		string(SeverityOK):        summary.OK,
		string(SeverityWarn):      summary.Warnings,
		string(SeverityViolation): summary.Violations,
	})

	a.logger.Info().
		Int("tables", summary.Tables).
		Int("violations", summary.Violations).
		Int("warnings", summary.Warnings).
		Int("landmines", len(r.Landmines)).
		Dur("duration", r.Duration).
		Msg("audit completed")

	if a.publisher == nil {
		return
	}
	if err := a.publisher.Publish(ctx, messaging.EventAuditCompleted, summary); err != nil {
		a.logger.Error().Err(err).Msg("failed to publish audit summary")
	}
}
