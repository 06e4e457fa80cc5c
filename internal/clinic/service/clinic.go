package service

import (
	"context"
	"time"

	"github.com/GestIAdev/Dentiagest-sub007/internal/clinic/events"
	"github.com/GestIAdev/Dentiagest-sub007/internal/clinic/repository"
	"github.com/GestIAdev/Dentiagest-sub007/internal/tenancy/guard"
	"github.com/GestIAdev/Dentiagest-sub007/pkg/database"
	"github.com/GestIAdev/Dentiagest-sub007/pkg/errors"
	"github.com/GestIAdev/Dentiagest-sub007/pkg/logger"
	"github.com/GestIAdev/Dentiagest-sub007/pkg/tenant"
)

// ClinicService handles clinic data business logic. Every method takes the
// caller's scope and passes it to the guard stores unchanged, except for
// writes, which are narrowed to the clinic the row is written to.
type ClinicService struct {
	db        *database.DB
	repos     *repository.Repositories
	publisher *events.ClinicEventPublisher
	logger    *logger.Logger
}

func NewClinicService(db *database.DB, repos *repository.Repositories, publisher *events.ClinicEventPublisher, log *logger.Logger) *ClinicService {
	return &ClinicService{
		db:        db,
		repos:     repos,
		publisher: publisher,
		logger:    log.WithComponent("clinic-service"),
	}
}

// writeScope narrows scope to the clinic inserts are stamped with, so that
// references checked against it live in the same clinic as the new row.
func writeScope(scope tenant.Scope) (tenant.Scope, error) {
	clinicID, err := scope.WriteClinicID()
	if err != nil {
		return tenant.Scope{}, errors.Forbidden("no clinic selected for write")
	}
	return rowScope(scope, clinicID)
}

// rowScope narrows scope to the clinic of an existing row.
func rowScope(scope tenant.Scope, clinicID string) (tenant.Scope, error) {
	narrowed, err := scope.Narrow(clinicID)
	if err != nil {
		return tenant.Scope{}, errors.Forbidden("clinic outside of scope")
	}
	return narrowed, nil
}

// requirePatient fails with NotFound unless patientID is visible in scope.
func (s *ClinicService) requirePatient(ctx context.Context, scope tenant.Scope, patientID string) error {
	ok, err := s.repos.Patients.Exists(ctx, scope, patientID)
	if err != nil {
		return err
	}
	if !ok {
		return errors.NotFound("patient")
	}
	return nil
}

// requireDentist fails with NotFound unless dentistID is a clinician in scope.
func (s *ClinicService) requireDentist(ctx context.Context, scope tenant.Scope, dentistID string) error {
	u, err := s.repos.Users.Get(ctx, scope, dentistID)
	if err != nil {
		if errors.IsNotFound(err) {
			return errors.NotFound("dentist")
		}
		return err
	}
	role, _ := tenant.ParseRole(u.Role)
	if !u.IsActive || (role != tenant.RoleDentist && role != tenant.RoleHygienist) {
		return errors.NotFound("dentist")
	}
	return nil
}

// Patients

func (s *ClinicService) ListPatients(ctx context.Context, scope tenant.Scope, opts guard.ListOptions) ([]repository.Patient, int, error) {
	return s.repos.Patients.List(ctx, scope, opts)
}

func (s *ClinicService) GetPatient(ctx context.Context, scope tenant.Scope, id string) (*repository.Patient, error) {
	return s.repos.Patients.Get(ctx, scope, id)
}

func (s *ClinicService) CreatePatient(ctx context.Context, scope tenant.Scope, p *repository.Patient) error {
	if err := s.repos.Patients.Insert(ctx, scope, p); err != nil {
		return err
	}
	s.logger.Info().Str("patient_id", p.ID).Str("clinic_id", p.ClinicID).Msg("patient created")
	s.publisher.PublishPatientCreated(ctx, scope.UserID, p)
	return nil
}

func (s *ClinicService) UpdatePatient(ctx context.Context, scope tenant.Scope, id string, p *repository.Patient) error {
	if err := s.repos.Patients.Update(ctx, scope, id, p); err != nil {
		return err
	}
	s.publisher.PublishPatientUpdated(ctx, scope.UserID, p)
	return nil
}

func (s *ClinicService) DeletePatient(ctx context.Context, scope tenant.Scope, id string) error {
	p, err := s.repos.Patients.Get(ctx, scope, id)
	if err != nil {
		return err
	}
	if err := s.repos.Patients.Delete(ctx, scope, id); err != nil {
		return err
	}
	s.logger.Info().Str("patient_id", id).Str("clinic_id", p.ClinicID).Msg("patient deleted")
	s.publisher.PublishPatientDeleted(ctx, scope.UserID, p)
	return nil
}

// Appointments

func (s *ClinicService) ListAppointments(ctx context.Context, scope tenant.Scope, opts guard.ListOptions) ([]repository.Appointment, int, error) {
	return s.repos.Appointments.List(ctx, scope, opts)
}

func (s *ClinicService) GetAppointment(ctx context.Context, scope tenant.Scope, id string) (*repository.Appointment, error) {
	return s.repos.Appointments.Get(ctx, scope, id)
}

// CreateAppointment books a. The patient and dentist must belong to the clinic
// the appointment is written to. The assigned dentist is notified in the same
// transaction.
func (s *ClinicService) CreateAppointment(ctx context.Context, scope tenant.Scope, a *repository.Appointment) error {
	ws, err := writeScope(scope)
	if err != nil {
		return err
	}
	if a.Status == "" {
		a.Status = repository.AppointmentScheduled
	}
	if a.DurationMinutes == 0 {
		a.DurationMinutes = 30
	}

	err = s.db.InTx(ctx, func(ctx context.Context) error {
		if err := s.requirePatient(ctx, ws, a.PatientID); err != nil {
			return err
		}
		if a.DentistID != nil {
			if err := s.requireDentist(ctx, ws, *a.DentistID); err != nil {
				return err
			}
		}
		if err := s.repos.Appointments.Insert(ctx, ws, a); err != nil {
			return err
		}
		if a.DentistID == nil {
			return nil
		}
		body := "Scheduled for " + a.ScheduledAt.UTC().Format(time.RFC3339)
		return s.repos.Notifications.Create(ctx, &repository.Notification{
			UserID: *a.DentistID,
			Title:  "New appointment",
			Body:   &body,
		})
	})
	if err != nil {
		return err
	}

	s.logger.Info().Str("appointment_id", a.ID).Str("clinic_id", a.ClinicID).Msg("appointment created")
	s.publisher.PublishAppointmentCreated(ctx, scope.UserID, a)
	return nil
}

// UpdateAppointment writes a, whose ClinicID must be the stored clinic of the row.
func (s *ClinicService) UpdateAppointment(ctx context.Context, scope tenant.Scope, id string, a *repository.Appointment) error {
	if a.DentistID != nil {
		rs, err := rowScope(scope, a.ClinicID)
		if err != nil {
			return err
		}
		if err := s.requireDentist(ctx, rs, *a.DentistID); err != nil {
			return err
		}
	}
	if err := s.repos.Appointments.Update(ctx, scope, id, a); err != nil {
		return err
	}
	s.publisher.PublishAppointmentUpdated(ctx, scope.UserID, a)
	return nil
}

// CancelAppointment keeps the row and marks it cancelled.
func (s *ClinicService) CancelAppointment(ctx context.Context, scope tenant.Scope, id string) (*repository.Appointment, error) {
	var a *repository.Appointment
	changed := false
	err := s.db.InTx(ctx, func(ctx context.Context) error {
		var err error
		a, err = s.repos.Appointments.GetForUpdate(ctx, scope, id)
		if err != nil {
			return err
		}
		switch a.Status {
		case repository.AppointmentCancelled:
			return nil
		case repository.AppointmentCompleted:
			return errors.Conflict("completed appointments cannot be cancelled")
		}
		a.Status = repository.AppointmentCancelled
		changed = true
		return s.repos.Appointments.Update(ctx, scope, id, a)
	})
	if err != nil {
		return nil, err
	}
	if changed {
		s.logger.Info().Str("appointment_id", id).Str("clinic_id", a.ClinicID).Msg("appointment cancelled")
		s.publisher.PublishAppointmentUpdated(ctx, scope.UserID, a)
	}
	return a, nil
}

// Medical records

func (s *ClinicService) ListMedicalRecords(ctx context.Context, scope tenant.Scope, opts guard.ListOptions) ([]repository.MedicalRecord, int, error) {
	return s.repos.MedicalRecords.List(ctx, scope, opts)
}

func (s *ClinicService) GetMedicalRecord(ctx context.Context, scope tenant.Scope, id string) (*repository.MedicalRecord, error) {
	return s.repos.MedicalRecords.Get(ctx, scope, id)
}

func (s *ClinicService) CreateMedicalRecord(ctx context.Context, scope tenant.Scope, m *repository.MedicalRecord) error {
	ws, err := writeScope(scope)
	if err != nil {
		return err
	}
	if err := s.requirePatient(ctx, ws, m.PatientID); err != nil {
		return err
	}
	author := scope.UserID
	m.CreatedBy = &author
	if err := s.repos.MedicalRecords.Insert(ctx, ws, m); err != nil {
		return err
	}
	s.publisher.PublishMedicalRecordCreated(ctx, scope.UserID, m)
	return nil
}

func (s *ClinicService) UpdateMedicalRecord(ctx context.Context, scope tenant.Scope, id string, m *repository.MedicalRecord) error {
	return s.repos.MedicalRecords.Update(ctx, scope, id, m)
}

func (s *ClinicService) DeleteMedicalRecord(ctx context.Context, scope tenant.Scope, id string) error {
	if err := s.repos.MedicalRecords.Delete(ctx, scope, id); err != nil {
		return err
	}
	s.logger.Info().Str("record_id", id).Str("user_id", scope.UserID).Msg("medical record deleted")
	return nil
}

// Invoices

func (s *ClinicService) ListInvoices(ctx context.Context, scope tenant.Scope, opts guard.ListOptions) ([]repository.Invoice, int, error) {
	return s.repos.Invoices.List(ctx, scope, opts)
}

func (s *ClinicService) GetInvoice(ctx context.Context, scope tenant.Scope, id string) (*repository.Invoice, error) {
	return s.repos.Invoices.Get(ctx, scope, id)
}

func (s *ClinicService) CreateInvoice(ctx context.Context, scope tenant.Scope, inv *repository.Invoice) error {
	ws, err := writeScope(scope)
	if err != nil {
		return err
	}
	if err := s.requirePatient(ctx, ws, inv.PatientID); err != nil {
		return err
	}
	if inv.Currency == "" {
		inv.Currency = repository.DefaultCurrency
	}
	if inv.Status == "" {
		inv.Status = repository.InvoiceDraft
	}
	stampIssued(inv)
	if err := s.repos.Invoices.Insert(ctx, ws, inv); err != nil {
		return err
	}
	if inv.Status == repository.InvoiceIssued {
		s.publisher.PublishInvoiceIssued(ctx, inv)
	}
	return nil
}

// UpdateInvoice writes inv against the locked stored row. Void invoices stay
// void; the issued event fires on the transition only.
func (s *ClinicService) UpdateInvoice(ctx context.Context, scope tenant.Scope, id string, inv *repository.Invoice) error {
	var previous string
	err := s.db.InTx(ctx, func(ctx context.Context) error {
		stored, err := s.repos.Invoices.GetForUpdate(ctx, scope, id)
		if err != nil {
			return err
		}
		previous = stored.Status
		if previous == repository.InvoiceVoid && inv.Status != repository.InvoiceVoid {
			return errors.Conflict("void invoices cannot be reopened")
		}
		stampIssued(inv)
		return s.repos.Invoices.Update(ctx, scope, id, inv)
	})
	if err != nil {
		return err
	}
	if inv.Status == repository.InvoiceIssued && previous != repository.InvoiceIssued {
		s.publisher.PublishInvoiceIssued(ctx, inv)
	}
	return nil
}

// DeleteInvoice removes drafts. Issued invoices must be voided instead.
func (s *ClinicService) DeleteInvoice(ctx context.Context, scope tenant.Scope, id string) error {
	return s.db.InTx(ctx, func(ctx context.Context) error {
		inv, err := s.repos.Invoices.GetForUpdate(ctx, scope, id)
		if err != nil {
			return err
		}
		if inv.Status != repository.InvoiceDraft {
			return errors.Conflict("only draft invoices can be deleted")
		}
		return s.repos.Invoices.Delete(ctx, scope, id)
	})
}

func stampIssued(inv *repository.Invoice) {
	if inv.Status == repository.InvoiceIssued && inv.IssuedAt == nil {
		now := time.Now().UTC()
		inv.IssuedAt = &now
	}
}

// Clinics and notifications

// ListClinics returns the clinics the caller can read.
func (s *ClinicService) ListClinics(ctx context.Context, scope tenant.Scope) ([]repository.Clinic, error) {
	if err := scope.Validate(); err != nil {
		return nil, errors.Forbidden("invalid clinic scope")
	}
	return s.repos.Clinics.ListByIDs(ctx, scope.ClinicIDs)
}

// ListStaff lists users of the clinics in scope.
func (s *ClinicService) ListStaff(ctx context.Context, scope tenant.Scope, opts guard.ListOptions) ([]repository.User, int, error) {
	return s.repos.Users.List(ctx, scope, opts)
}

func (s *ClinicService) ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit int) ([]repository.Notification, error) {
	return s.repos.Notifications.ListForUser(ctx, userID, unreadOnly, limit)
}

func (s *ClinicService) MarkNotificationRead(ctx context.Context, userID, id string) error {
	return s.repos.Notifications.MarkRead(ctx, userID, id)
}
