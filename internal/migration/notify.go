package migration

import (
	"context"

	"github.com/GestIAdev/Dentiagest-sub007/pkg/logger"
	"github.com/GestIAdev/Dentiagest-sub007/pkg/messaging"
)

// EventNotifier publishes stage changes on the tenancy exchange. Publish
// failures are logged; the migration itself has already committed.
type EventNotifier struct {
	publisher messaging.EventPublisher
	logger    *logger.Logger
}

// NewEventNotifier wraps a publisher.
func NewEventNotifier(publisher messaging.EventPublisher, log *logger.Logger) *EventNotifier {
	return &EventNotifier{publisher: publisher, logger: log.WithComponent("migration-events")}
}

// StageChanged publishes tenancy.migration.<stage>.
func (n *EventNotifier) StageChanged(ctx context.Context, c StageChange) {
	eventType, ok := stageEventTypes[c.To]
	if !ok {
		return
	}
	err := n.publisher.Publish(ctx, eventType, messaging.MigrationStageEvent{
		Table:     c.Table,
		From:      string(c.From),
		To:        string(c.To),
		AppliedBy: c.AppliedBy,
		Total:     c.Counts.Total,
		Assigned:  c.Counts.Valid,
	})
	if err != nil {
		n.logger.Error().Err(err).Str("table", c.Table).Str("event_type", eventType).Msg("failed to publish stage change")
	}
}

// MigrationFailed publishes tenancy.migration.failed.
func (n *EventNotifier) MigrationFailed(ctx context.Context, table string, cause error) {
	kind := "unclassified"
	if k := KindOf(cause); k != nil {
		kind = k.Error()
	}
	err := n.publisher.Publish(ctx, messaging.EventMigrationFailed, messaging.MigrationFailedEvent{
		Table:  table,
		Kind:   kind,
		Detail: cause.Error(),
	})
	if err != nil {
		n.logger.Error().Err(err).Str("table", table).Msg("failed to publish migration failure")
	}
}

var stageEventTypes = map[Stage]string{
	StageColumnAdded: messaging.EventMigrationColumnAdded,
	StageBackfilled:  messaging.EventMigrationBackfilled,
	StageConstrained: messaging.EventMigrationConstrained,
	StageEnforced:    messaging.EventMigrationEnforced,
}
