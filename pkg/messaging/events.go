package messaging

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types
const (
	// Isolation migration events, routing key tenancy.migration.<stage>
	EventMigrationColumnAdded = "tenancy.migration.column_added"
	EventMigrationBackfilled  = "tenancy.migration.backfilled"
	EventMigrationConstrained = "tenancy.migration.constrained"
	EventMigrationEnforced    = "tenancy.migration.enforced"
	EventMigrationFailed      = "tenancy.migration.failed"

	EventAuditCompleted = "tenancy.audit.completed"

	// Clinic data events
	EventPatientCreated       = "clinic.patient.created"
	EventPatientUpdated       = "clinic.patient.updated"
	EventPatientDeleted       = "clinic.patient.deleted"
	EventAppointmentCreated   = "clinic.appointment.created"
	EventAppointmentUpdated   = "clinic.appointment.updated"
	EventAppointmentCancelled = "clinic.appointment.cancelled"
	EventMedicalRecordCreated = "clinic.medical_record.created"
	EventInvoiceIssued        = "clinic.invoice.issued"
)

// Exchange names
const (
	ExchangeTenancyEvents = "tenancy.events"
	ExchangeClinicEvents  = "clinic.events"
	ExchangeDeadLetter    = "dlx.events"
)

// Event is the envelope for every message on the bus
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event with the given type and data
func NewEvent(eventType, source, correlationID string, data interface{}) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            uuid.NewString(),
		Type:          eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		Data:          dataBytes,
	}, nil
}

// UnmarshalData unmarshals the event data into the provided struct
func (e *Event) UnmarshalData(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// Tenancy events

// MigrationStageEvent is published after a table's isolation stage changes.
type MigrationStageEvent struct {
	Table     string `json:"table"`
	From      string `json:"from"`
	To        string `json:"to"`
	AppliedBy string `json:"applied_by"`
	Total     int64  `json:"total_rows"`
	Assigned  int64  `json:"assigned_rows"`
}

// MigrationFailedEvent is published when a migration was rolled back.
type MigrationFailedEvent struct {
	Table  string `json:"table"`
	Kind   string `json:"kind"`
	Detail string `json:"detail"`
}

// AuditCompletedEvent summarizes a landmine audit.
type AuditCompletedEvent struct {
	Tables     int      `json:"tables"`
	OK         int      `json:"ok"`
	Warnings   int      `json:"warnings"`
	Violations int      `json:"violations"`
	Landmines  []string `json:"landmines,omitempty"`
}

// Clinic events. ClinicID is always the row's stored clinic, never request input.

// PatientEvent is published for patient lifecycle changes.
type PatientEvent struct {
	PatientID string         `json:"patient_id"`
	ClinicID  string         `json:"clinic_id"`
	ActorID   string         `json:"actor_id"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// AppointmentEvent is published for appointment lifecycle changes.
type AppointmentEvent struct {
	AppointmentID string    `json:"appointment_id"`
	PatientID     string    `json:"patient_id"`
	ClinicID      string    `json:"clinic_id"`
	ScheduledAt   time.Time `json:"scheduled_at"`
	Status        string    `json:"status"`
	ActorID       string    `json:"actor_id"`
}

// MedicalRecordEvent is published when a record is added to a chart.
type MedicalRecordEvent struct {
	RecordID  string `json:"record_id"`
	PatientID string `json:"patient_id"`
	ClinicID  string `json:"clinic_id"`
	ActorID   string `json:"actor_id"`
}

// InvoiceEvent is published when an invoice is issued.
type InvoiceEvent struct {
	InvoiceID     string `json:"invoice_id"`
	InvoiceNumber string `json:"invoice_number"`
	PatientID     string `json:"patient_id"`
	ClinicID      string `json:"clinic_id"`
	AmountCents   int64  `json:"amount_cents"`
	Currency      string `json:"currency"`
}
