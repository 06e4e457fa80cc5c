package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/GestIAdev/Dentiagest-sub007/internal/clinic/events"
	"github.com/GestIAdev/Dentiagest-sub007/internal/clinic/repository"
	"github.com/GestIAdev/Dentiagest-sub007/internal/clinic/service"
	"github.com/GestIAdev/Dentiagest-sub007/pkg/errors"
	"github.com/GestIAdev/Dentiagest-sub007/pkg/logger"
	"github.com/GestIAdev/Dentiagest-sub007/pkg/messaging"
	"github.com/GestIAdev/Dentiagest-sub007/pkg/tenant"
	"github.com/GestIAdev/Dentiagest-sub007/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	clinicA   = "5d7e0f5a-3f7b-4b8e-9d7e-00000000000a"
	clinicB   = "5d7e0f5a-3f7b-4b8e-9d7e-00000000000b"
	patientID = "7a1c2d3e-0000-4000-8000-000000000001"
	dentistID = "7a1c2d3e-0000-4000-8000-0000000000d1"
	rowID     = "7a1c2d3e-0000-4000-8000-0000000000f1"
)

const patientExists = `SELECT EXISTS (SELECT 1 FROM "patients" WHERE "id" = $1 AND "clinic_id" IN ($2) AND "deleted_at" IS NULL)`

var (
	appointmentColumns = []string{"id", "clinic_id", "patient_id", "dentist_id", "scheduled_at", "duration_minutes", "status", "notes", "created_at", "updated_at"}
	invoiceColumns     = []string{"id", "clinic_id", "patient_id", "invoice_number", "amount_cents", "currency", "status", "issued_at", "due_at", "created_at", "updated_at"}
	userColumns        = []string{"id", "clinic_id", "email", "password_hash", "first_name", "last_name", "role", "is_active", "created_at", "updated_at"}
)

func newService(t *testing.T) (*testutil.MockDB, *service.ClinicService, *testutil.MockPublisher) {
	t.Helper()
	mockDB := testutil.NewMockDB(t)
	t.Cleanup(func() { mockDB.Close() })
	db := mockDB.Wrap()
	pub := testutil.NewMockPublisher()
	svc := service.NewClinicService(db, repository.New(db, nil), events.NewClinicEventPublisher(pub, logger.Nop()), logger.Nop())
	return mockDB, svc, pub
}

func staff(clinicID string) tenant.Scope {
	return tenant.Single("user-1", tenant.RoleReceptionist, clinicID)
}

func owner(selected string) tenant.Scope {
	return tenant.Scope{UserID: "owner-1", Role: tenant.RoleOwner, ClinicIDs: []string{clinicA, clinicB}, SelectedClinicID: selected}
}

func TestCreateAppointment_PatientOfAnotherClinicIsNotFound(t *testing.T) {
	mockDB, svc, pub := newService(t)

	mockDB.ExpectBegin()
	mockDB.ExpectQuery(patientExists).
		WithArgs(patientID, clinicA).
		WillReturnRows(testutil.MockRows("exists").AddRow(false))
	mockDB.ExpectRollback()

	a := &repository.Appointment{PatientID: patientID, ScheduledAt: time.Now().Add(time.Hour)}
	err := svc.CreateAppointment(context.Background(), staff(clinicA), a)

	assert.True(t, errors.IsNotFound(err))
	pub.AssertNoEventsPublished(t)
	mockDB.ExpectationsWereMet(t)
}

func TestCreateAppointment_NotifiesDentistInSameTransaction(t *testing.T) {
	mockDB, svc, pub := newService(t)
	now := time.Now().UTC()
	at := now.Add(24 * time.Hour)
	dentist := dentistID

	mockDB.ExpectBegin()
	mockDB.ExpectQuery(patientExists).
		WithArgs(patientID, clinicA).
		WillReturnRows(testutil.MockRows("exists").AddRow(true))
	mockDB.ExpectQuery(`FROM "users" WHERE "id" = $1 AND "clinic_id" IN ($2)`).
		WithArgs(dentistID, clinicA).
		WillReturnRows(testutil.MockRows(userColumns...).
			AddRow(dentistID, clinicA, "dr@example.com", "x", "Marta", "Gil", "dentist", true, now, now))
	mockDB.ExpectQuery(`INSERT INTO "appointments"`).
		WithArgs(patientID, dentistID, testutil.AnyTime{}, 30, "scheduled", nil, clinicA).
		WillReturnRows(testutil.MockRows(appointmentColumns...).
			AddRow(rowID, clinicA, patientID, dentistID, at, 30, "scheduled", nil, now, now))
	mockDB.ExpectQuery(`INSERT INTO notifications`).
		WithArgs(dentistID, "New appointment", sqlmock.AnyArg()).
		WillReturnRows(testutil.MockRows("id", "user_id", "title", "body", "read_at", "created_at").
			AddRow(rowID, dentistID, "New appointment", "Scheduled", nil, now))
	mockDB.ExpectCommit()

	// the body's clinic id is ignored
	a := &repository.Appointment{PatientID: patientID, DentistID: &dentist, ScheduledAt: at, ClinicID: clinicB}
	require.NoError(t, svc.CreateAppointment(context.Background(), staff(clinicA), a))
	mockDB.ExpectationsWereMet(t)

	assert.Equal(t, clinicA, a.ClinicID)
	events := pub.Events()
	require.Len(t, events, 1)
	assert.Equal(t, messaging.EventAppointmentCreated, events[0].Type)
	payload := events[0].Payload.(messaging.AppointmentEvent)
	assert.Equal(t, clinicA, payload.ClinicID)
	assert.Equal(t, "user-1", payload.ActorID)
}

func TestCreateAppointment_RejectsNonClinicianAsDentist(t *testing.T) {
	mockDB, svc, _ := newService(t)
	now := time.Now()
	dentist := dentistID

	mockDB.ExpectBegin()
	mockDB.ExpectQuery(patientExists).
		WillReturnRows(testutil.MockRows("exists").AddRow(true))
	mockDB.ExpectQuery(`FROM "users"`).
		WillReturnRows(testutil.MockRows(userColumns...).
			AddRow(dentistID, clinicA, "desk@example.com", "x", "Pablo", "Ruiz", "receptionist", true, now, now))
	mockDB.ExpectRollback()

	a := &repository.Appointment{PatientID: patientID, DentistID: &dentist, ScheduledAt: now}
	err := svc.CreateAppointment(context.Background(), staff(clinicA), a)
	assert.True(t, errors.IsNotFound(err))
	mockDB.ExpectationsWereMet(t)
}

func TestCreateInvoice_OwnerWritesToSelectedClinicOnly(t *testing.T) {
	mockDB, svc, pub := newService(t)
	now := time.Now().UTC()

	// the patient must be in clinic B itself, not anywhere in the owner's set
	mockDB.ExpectQuery(patientExists).
		WithArgs(patientID, clinicB).
		WillReturnRows(testutil.MockRows("exists").AddRow(true))
	mockDB.ExpectQuery(`INSERT INTO "invoices"`).
		WithArgs(patientID, "F-2024-1", 12000, "EUR", "issued", testutil.AnyTime{}, nil, clinicB).
		WillReturnRows(testutil.MockRows(invoiceColumns...).
			AddRow(rowID, clinicB, patientID, "F-2024-1", 12000, "EUR", "issued", now, nil, now, now))

	inv := &repository.Invoice{PatientID: patientID, InvoiceNumber: "F-2024-1", AmountCents: 12000, Status: repository.InvoiceIssued}
	require.NoError(t, svc.CreateInvoice(context.Background(), owner(clinicB), inv))
	mockDB.ExpectationsWereMet(t)

	assert.Equal(t, clinicB, inv.ClinicID)
	require.NotNil(t, inv.IssuedAt)
	pub.AssertEventPublished(t, messaging.EventInvoiceIssued)
}

func TestCreateInvoice_OwnerWithoutSelectionIsForbidden(t *testing.T) {
	mockDB, svc, _ := newService(t)

	err := svc.CreateInvoice(context.Background(), owner(""), &repository.Invoice{PatientID: patientID, InvoiceNumber: "F-1"})
	assert.True(t, errors.IsForbidden(err))
	mockDB.ExpectationsWereMet(t)
}

func TestCancelAppointment(t *testing.T) {
	now := time.Now()
	lockAppointment := `FROM "appointments" WHERE "id" = $1 AND "clinic_id" IN ($2) FOR UPDATE`

	t.Run("completed appointments stay", func(t *testing.T) {
		mockDB, svc, pub := newService(t)
		mockDB.ExpectBegin()
		mockDB.ExpectQuery(lockAppointment).
			WithArgs(rowID, clinicA).
			WillReturnRows(testutil.MockRows(appointmentColumns...).
				AddRow(rowID, clinicA, patientID, nil, now, 30, "completed", nil, now, now))
		mockDB.ExpectRollback()

		_, err := svc.CancelAppointment(context.Background(), staff(clinicA), rowID)
		var appErr *errors.AppError
		require.True(t, errors.As(err, &appErr))
		assert.Equal(t, "CONFLICT", appErr.Code)
		pub.AssertNoEventsPublished(t)
		mockDB.ExpectationsWereMet(t)
	})

	t.Run("scheduled appointments are cancelled under a row lock", func(t *testing.T) {
		mockDB, svc, pub := newService(t)
		mockDB.ExpectBegin()
		mockDB.ExpectQuery(lockAppointment).
			WithArgs(rowID, clinicA).
			WillReturnRows(testutil.MockRows(appointmentColumns...).
				AddRow(rowID, clinicA, patientID, nil, now, 30, "scheduled", nil, now, now))
		mockDB.ExpectQuery(`UPDATE "appointments" SET`).
			WithArgs(nil, testutil.AnyTime{}, 30, "cancelled", nil, rowID, clinicA).
			WillReturnRows(testutil.MockRows(appointmentColumns...).
				AddRow(rowID, clinicA, patientID, nil, now, 30, "cancelled", nil, now, now))
		mockDB.ExpectCommit()

		a, err := svc.CancelAppointment(context.Background(), staff(clinicA), rowID)
		require.NoError(t, err)
		assert.Equal(t, repository.AppointmentCancelled, a.Status)
		pub.AssertEventPublished(t, messaging.EventAppointmentCancelled)
		mockDB.ExpectationsWereMet(t)
	})

	t.Run("already cancelled publishes nothing", func(t *testing.T) {
		mockDB, svc, pub := newService(t)
		mockDB.ExpectBegin()
		mockDB.ExpectQuery(lockAppointment).
			WithArgs(rowID, clinicA).
			WillReturnRows(testutil.MockRows(appointmentColumns...).
				AddRow(rowID, clinicA, patientID, nil, now, 30, "cancelled", nil, now, now))
		mockDB.ExpectCommit()

		_, err := svc.CancelAppointment(context.Background(), staff(clinicA), rowID)
		require.NoError(t, err)
		pub.AssertNoEventsPublished(t)
		mockDB.ExpectationsWereMet(t)
	})
}

func TestDeleteInvoice_OnlyDrafts(t *testing.T) {
	mockDB, svc, _ := newService(t)
	now := time.Now()

	mockDB.ExpectBegin()
	mockDB.ExpectQuery(`FROM "invoices" WHERE "id" = $1 AND "clinic_id" IN ($2) FOR UPDATE`).
		WithArgs(rowID, clinicA).
		WillReturnRows(testutil.MockRows(invoiceColumns...).
			AddRow(rowID, clinicA, patientID, "F-1", 100, "EUR", "issued", now, nil, now, now))
	mockDB.ExpectRollback()

	err := svc.DeleteInvoice(context.Background(), staff(clinicA), rowID)
	var appErr *errors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "CONFLICT", appErr.Code)
	mockDB.ExpectationsWereMet(t)
}

func TestUpdateInvoice_ChecksTheLockedRow(t *testing.T) {
	now := time.Now()
	lockInvoice := `FROM "invoices" WHERE "id" = $1 AND "clinic_id" IN ($2) FOR UPDATE`

	t.Run("void cannot be reopened", func(t *testing.T) {
		mockDB, svc, pub := newService(t)
		mockDB.ExpectBegin()
		mockDB.ExpectQuery(lockInvoice).
			WithArgs(rowID, clinicA).
			WillReturnRows(testutil.MockRows(invoiceColumns...).
				AddRow(rowID, clinicA, patientID, "F-1", 100, "EUR", "void", now, nil, now, now))
		mockDB.ExpectRollback()

		// The caller read the invoice as a draft before it was voided.
		inv := &repository.Invoice{ID: rowID, ClinicID: clinicA, Status: repository.InvoiceIssued}
		err := svc.UpdateInvoice(context.Background(), staff(clinicA), rowID, inv)
		var appErr *errors.AppError
		require.True(t, errors.As(err, &appErr))
		assert.Equal(t, "CONFLICT", appErr.Code)
		pub.AssertNoEventsPublished(t)
		mockDB.ExpectationsWereMet(t)
	})

	t.Run("issuing a draft publishes once after commit", func(t *testing.T) {
		mockDB, svc, pub := newService(t)
		mockDB.ExpectBegin()
		mockDB.ExpectQuery(lockInvoice).
			WithArgs(rowID, clinicA).
			WillReturnRows(testutil.MockRows(invoiceColumns...).
				AddRow(rowID, clinicA, patientID, "F-1", 100, "EUR", "draft", nil, nil, now, now))
		mockDB.ExpectQuery(`UPDATE "invoices" SET`).
			WillReturnRows(testutil.MockRows(invoiceColumns...).
				AddRow(rowID, clinicA, patientID, "F-1", 100, "EUR", "issued", now, nil, now, now))
		mockDB.ExpectCommit()

		inv := &repository.Invoice{ID: rowID, ClinicID: clinicA, PatientID: patientID, InvoiceNumber: "F-1", AmountCents: 100, Currency: "EUR", Status: repository.InvoiceIssued}
		require.NoError(t, svc.UpdateInvoice(context.Background(), staff(clinicA), rowID, inv))
		pub.AssertEventPublished(t, messaging.EventInvoiceIssued)
		mockDB.ExpectationsWereMet(t)
	})
}

func TestListClinics(t *testing.T) {
	t.Run("lists the scope's clinics", func(t *testing.T) {
		mockDB, svc, _ := newService(t)
		now := time.Now()
		mockDB.ExpectQuery(`SELECT id, name, slug, is_active, created_at, updated_at FROM clinics WHERE id IN ($1, $2) ORDER BY name, id`).
			WithArgs(clinicA, clinicB).
			WillReturnRows(testutil.MockRows("id", "name", "slug", "is_active", "created_at", "updated_at").
				AddRow(clinicA, "Centro", "centro", true, now, now).
				AddRow(clinicB, "Norte", "norte", true, now, now))

		clinics, err := svc.ListClinics(context.Background(), owner(clinicA))
		require.NoError(t, err)
		assert.Len(t, clinics, 2)
		mockDB.ExpectationsWereMet(t)
	})

	t.Run("empty scope is forbidden", func(t *testing.T) {
		mockDB, svc, _ := newService(t)
		_, err := svc.ListClinics(context.Background(), tenant.Scope{UserID: "u", Role: tenant.RoleDentist})
		assert.True(t, errors.IsForbidden(err))
		mockDB.ExpectationsWereMet(t)
	})
}
