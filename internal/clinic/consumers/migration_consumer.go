package consumers

import (
	"context"
	"errors"
	"slices"

	"github.com/GestIAdev/Dentiagest-sub007/internal/migration"
	"github.com/GestIAdev/Dentiagest-sub007/pkg/database"
	"github.com/GestIAdev/Dentiagest-sub007/pkg/logger"
	"github.com/GestIAdev/Dentiagest-sub007/pkg/messaging"
)

// AppliedBy is recorded in tenant_migrations for promotions made by this service.
const AppliedBy = "clinic-service"

// Enforcer promotes CONSTRAINED tables to ENFORCED.
type Enforcer interface {
	Enforce(ctx context.Context, tables []string, appliedBy string) ([]*migration.Result, error)
}

// MigrationEventConsumer listens for tables reaching CONSTRAINED. Once a table
// this service reads through the guard is constrained, every access to it is
// clinic-filtered, so the service records it as ENFORCED.
type MigrationEventConsumer struct {
	consumer *messaging.Consumer
	enforcer Enforcer
	tables   []string
	logger   *logger.Logger
}

func NewMigrationEventConsumer(rmq *messaging.RabbitMQ, enforcer Enforcer, tables []string, log *logger.Logger) (*MigrationEventConsumer, error) {
	consumer, err := messaging.NewConsumer(rmq, "clinic-service.tenancy-events", log)
	if err != nil {
		return nil, err
	}
	if err := consumer.Subscribe(messaging.ExchangeTenancyEvents, messaging.EventMigrationConstrained); err != nil {
		return nil, err
	}

	c := newMigrationEventConsumer(enforcer, tables, log)
	c.consumer = consumer
	consumer.RegisterHandler(messaging.EventMigrationConstrained, c.handleConstrained)
	return c, nil
}

func newMigrationEventConsumer(enforcer Enforcer, tables []string, log *logger.Logger) *MigrationEventConsumer {
	return &MigrationEventConsumer{
		enforcer: enforcer,
		tables:   tables,
		logger:   log.WithComponent("migration-consumer"),
	}
}

// Start starts consuming messages
func (c *MigrationEventConsumer) Start(ctx context.Context) error {
	return c.consumer.Start(ctx)
}

func (c *MigrationEventConsumer) handleConstrained(ctx context.Context, event *messaging.Event) error {
	var data messaging.MigrationStageEvent
	if err := event.UnmarshalData(&data); err != nil {
		return err
	}
	if !slices.Contains(c.tables, data.Table) {
		c.logger.Debug().Str("table", data.Table).Msg("ignoring table not served here")
		return nil
	}

	results, err := c.enforcer.Enforce(ctx, []string{data.Table}, AppliedBy)
	if errors.Is(err, migration.ErrSchemaAssumption) {
		// The table moved on or back since the event was sent; the next
		// constrained event will retry.
		c.logger.Warn().Err(err).Str("table", data.Table).Msg("table not enforceable")
		return nil
	}
	if err != nil {
		return err
	}

	for _, res := range results {
		c.logger.Info().
			Str("table", res.Table).
			Str("outcome", string(res.Outcome)).
			Str("correlation_id", event.CorrelationID).
			Msg("table enforced")
	}
	return nil
}

// EnforceServedTables promotes every CONSTRAINED table in tables at startup
// and returns the ones promoted. Tables in other stages are left alone, and a
// database without tenant_migrations has nothing to promote.
func EnforceServedTables(ctx context.Context, db *database.DB, tables []string, log *logger.Logger) ([]string, error) {
	exists, err := migration.NewInspector(db).TableExists(ctx, "tenant_migrations")
	if err != nil {
		return nil, err
	}
	if !exists {
		log.Warn().Msg("tenant_migrations not found, skipping enforcement")
		return nil, nil
	}
	states := migration.NewStateStore(db)
	if _, err := states.Adopt(ctx, tables, AppliedBy); err != nil {
		return nil, err
	}
	promoted, err := states.MarkEnforced(ctx, tables, AppliedBy)
	if err != nil {
		return nil, err
	}
	for _, t := range promoted {
		log.Info().Str("table", t).Msg("table enforced")
	}
	return promoted, nil
}
