// Package tenantctl is the operator CLI for clinic isolation: it bootstraps
// schemas, walks tables through the migration stages, audits the clinic_id
// invariant and creates clinics, users and tokens.
//
// Every command shares one exit convention: 0 on success, 1 on any error and 2
// when rows without a valid clinic were found.
package tenantctl

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/GestIAdev/Dentiagest-sub007/internal/audit"
	"github.com/GestIAdev/Dentiagest-sub007/internal/migration"
	"github.com/GestIAdev/Dentiagest-sub007/internal/schema"
	"github.com/GestIAdev/Dentiagest-sub007/pkg/config"
	"github.com/GestIAdev/Dentiagest-sub007/pkg/database"
	"github.com/GestIAdev/Dentiagest-sub007/pkg/logger"
	"github.com/GestIAdev/Dentiagest-sub007/pkg/messaging"
	"github.com/spf13/cobra"
)

const serviceName = "tenantctl"

// ExitError makes a command exit with Code.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string { return e.Err.Error() }

func (e *ExitError) Unwrap() error { return e.Err }

func violation(err error) error {
	return &ExitError{Code: audit.ExitViolation, Err: err}
}

// ExitCode maps the error of a command to the process exit code.
func ExitCode(err error) int {
	if err == nil {
		return audit.ExitOK
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	if errors.Is(err, migration.ErrDataIntegrity) {
		return audit.ExitViolation
	}
	return audit.ExitError
}

type app struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	cfg       *config.Config
	log       *logger.Logger
	db        *database.DB
	rmq       *messaging.RabbitMQ
	publisher messaging.EventPublisher
	registry  schema.Registry
	ownsDB    bool

	logLevel  string
	appliedBy string
	noEvents  bool
}

func newApp(stdout, stderr io.Writer) *app {
	return &app{stdout: stdout, stderr: stderr, registry: schema.Default()}
}

// Execute runs tenantctl with args and returns the process exit code.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	return newApp(stdout, stderr).run(ctx, args)
}

func (a *app) run(ctx context.Context, args []string) int {
	root := a.rootCmd()
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	a.close()
	if err != nil {
		fmt.Fprintln(a.stderr, "error:", err)
	}
	return ExitCode(err)
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "tenantctl",
		Short:         "Manage clinic isolation of the Dentiagest database",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
	}
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)
	if a.stdin != nil {
		root.SetIn(a.stdin)
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flags.StringVar(&a.appliedBy, "applied-by", serviceName, "Operator name recorded with stage changes")
	flags.BoolVar(&a.noEvents, "no-events", false, "Do not publish tenancy events even when RabbitMQ is configured")

	root.AddCommand(
		a.bootstrapCmd(),
		a.statusCmd(),
		a.discoverCmd(),
		a.auditCmd(),
		a.migrateCmd(),
		a.verifyCmd(),
		a.enforceCmd(),
		a.createClinicCmd(),
		a.createUserCmd(),
		a.grantOwnerCmd(),
		a.issueTokenCmd(),
	)
	return root
}

// setup loads configuration and opens connections. Fields set beforehand are kept.
func (a *app) setup() error {
	if a.cfg == nil {
		cfg, err := config.Load(serviceName)
		if err != nil {
			return err
		}
		if err := cfg.Database.Validate(cfg.Server.Environment); err != nil {
			return fmt.Errorf("database configuration error: %w", err)
		}
		a.cfg = cfg
	}
	if a.log == nil {
		a.log = logger.NewWithWriter(a.stderr, serviceName, a.cfg.Server.Environment).SetLevel(a.logLevel)
	}
	if a.db == nil {
		db, err := database.New(&a.cfg.Database, a.log)
		if err != nil {
			return migration.Classify(err)
		}
		a.db = db
		a.ownsDB = true
	}
	if a.publisher == nil && a.cfg.RabbitMQ.Enabled() && !a.noEvents {
		a.connectBroker()
	}
	return nil
}

// connectBroker enables tenancy events. The database work does not depend on
// the broker, so failures only cost the events.
func (a *app) connectBroker() {
	rmq, err := messaging.New(&a.cfg.RabbitMQ, a.log)
	if err != nil {
		a.log.Warn().Err(err).Msg("rabbitmq unavailable, tenancy events disabled")
		return
	}
	pub, err := messaging.NewPublisher(rmq, messaging.ExchangeTenancyEvents, serviceName, a.log)
	if err != nil {
		a.log.Warn().Err(err).Msg("failed to create publisher, tenancy events disabled")
		rmq.Close()
		return
	}
	a.rmq = rmq
	a.publisher = pub
}

func (a *app) close() {
	if a.rmq != nil {
		a.rmq.Close()
	}
	if a.ownsDB {
		a.db.Close()
	}
}

func (a *app) migrator() *migration.Migrator {
	var opts []migration.Option
	if a.publisher != nil {
		opts = append(opts, migration.WithNotifier(migration.NewEventNotifier(a.publisher, a.log)))
	}
	return migration.NewMigrator(a.db, a.log, opts...)
}

func (a *app) auditor() *audit.Auditor {
	var opts []audit.Option
	if a.publisher != nil {
		opts = append(opts, audit.WithPublisher(a.publisher))
	}
	return audit.NewAuditor(a.db, a.registry, a.log, opts...)
}

// specs resolves table names, or every tenant-owned table when names is empty.
func (a *app) specs(names []string) ([]schema.TableSpec, error) {
	if len(names) == 0 {
		return a.registry.TenantOwned, nil
	}
	return a.registry.Select(names)
}
