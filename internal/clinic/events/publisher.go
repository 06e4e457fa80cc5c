package events

import (
	"context"

	"github.com/GestIAdev/Dentiagest-sub007/internal/clinic/repository"
	"github.com/GestIAdev/Dentiagest-sub007/pkg/logger"
	"github.com/GestIAdev/Dentiagest-sub007/pkg/messaging"
)

// ClinicEventPublisher publishes clinic data events. Every clinic_id in a
// payload is read back from the stored row. A nil publisher drops events,
// which is how the service runs without RabbitMQ.
type ClinicEventPublisher struct {
	publisher messaging.EventPublisher
	logger    *logger.Logger
}

func NewClinicEventPublisher(p messaging.EventPublisher, log *logger.Logger) *ClinicEventPublisher {
	return &ClinicEventPublisher{publisher: p, logger: log}
}

func (p *ClinicEventPublisher) publish(ctx context.Context, eventType, id string, data any) {
	if p == nil || p.publisher == nil {
		return
	}
	if err := p.publisher.Publish(ctx, eventType, data); err != nil {
		p.logger.Error().Err(err).Str("event", eventType).Str("id", id).Msg("failed to publish event")
	}
}

func (p *ClinicEventPublisher) PublishPatientCreated(ctx context.Context, actorID string, pt *repository.Patient) {
	p.publish(ctx, messaging.EventPatientCreated, pt.ID, messaging.PatientEvent{
		PatientID: pt.ID,
		ClinicID:  pt.ClinicID,
		ActorID:   actorID,
		Fields:    map[string]any{"name": pt.FullName()},
	})
}

func (p *ClinicEventPublisher) PublishPatientUpdated(ctx context.Context, actorID string, pt *repository.Patient) {
	p.publish(ctx, messaging.EventPatientUpdated, pt.ID, messaging.PatientEvent{
		PatientID: pt.ID,
		ClinicID:  pt.ClinicID,
		ActorID:   actorID,
		Fields:    map[string]any{"name": pt.FullName()},
	})
}

func (p *ClinicEventPublisher) PublishPatientDeleted(ctx context.Context, actorID string, pt *repository.Patient) {
	p.publish(ctx, messaging.EventPatientDeleted, pt.ID, messaging.PatientEvent{
		PatientID: pt.ID,
		ClinicID:  pt.ClinicID,
		ActorID:   actorID,
	})
}

func (p *ClinicEventPublisher) PublishAppointmentCreated(ctx context.Context, actorID string, a *repository.Appointment) {
	p.publish(ctx, messaging.EventAppointmentCreated, a.ID, appointmentEvent(actorID, a))
}

func (p *ClinicEventPublisher) PublishAppointmentUpdated(ctx context.Context, actorID string, a *repository.Appointment) {
	eventType := messaging.EventAppointmentUpdated
	if a.Status == repository.AppointmentCancelled {
		eventType = messaging.EventAppointmentCancelled
	}
	p.publish(ctx, eventType, a.ID, appointmentEvent(actorID, a))
}

func (p *ClinicEventPublisher) PublishMedicalRecordCreated(ctx context.Context, actorID string, m *repository.MedicalRecord) {
	p.publish(ctx, messaging.EventMedicalRecordCreated, m.ID, messaging.MedicalRecordEvent{
		RecordID:  m.ID,
		PatientID: m.PatientID,
		ClinicID:  m.ClinicID,
		ActorID:   actorID,
	})
}

func (p *ClinicEventPublisher) PublishInvoiceIssued(ctx context.Context, inv *repository.Invoice) {
	p.publish(ctx, messaging.EventInvoiceIssued, inv.ID, messaging.InvoiceEvent{
		InvoiceID:     inv.ID,
		InvoiceNumber: inv.InvoiceNumber,
		PatientID:     inv.PatientID,
		ClinicID:      inv.ClinicID,
		AmountCents:   inv.AmountCents,
		Currency:      inv.Currency,
	})
}

func appointmentEvent(actorID string, a *repository.Appointment) messaging.AppointmentEvent {
	return messaging.AppointmentEvent{
		AppointmentID: a.ID,
		PatientID:     a.PatientID,
		ClinicID:      a.ClinicID,
		ScheduledAt:   a.ScheduledAt,
		Status:        a.Status,
		ActorID:       actorID,
	}
}
