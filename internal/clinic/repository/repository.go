// Package repository holds the clinic-service data access. Tenant-owned tables
// are reached only through guard stores; the clinic registry and user-scoped
// tables have their own repositories.
package repository

import (
	"github.com/GestIAdev/Dentiagest-sub007/internal/tenancy/guard"
	"github.com/GestIAdev/Dentiagest-sub007/pkg/database"
	"github.com/GestIAdev/Dentiagest-sub007/pkg/metrics"
)

// Repositories bundles the stores used by the clinic service.
type Repositories struct {
	Patients       *guard.Store[Patient]
	Appointments   *guard.Store[Appointment]
	MedicalRecords *guard.Store[MedicalRecord]
	Invoices       *guard.Store[Invoice]
	Users          *guard.Store[User]
	InventoryItems *guard.Store[InventoryItem]
	Equipment      *guard.Store[Equipment]
	Suppliers      *guard.Store[Supplier]
	PurchaseOrders *guard.Store[PurchaseOrder]
	Clinics        *ClinicRepository
	Notifications  *NotificationRepository
}

func New(db *database.DB, m *metrics.Metrics) *Repositories {
	return &Repositories{
		Patients:       guard.MustStore[Patient](db, PatientsTable, m),
		Appointments:   guard.MustStore[Appointment](db, AppointmentsTable, m),
		MedicalRecords: guard.MustStore[MedicalRecord](db, MedicalRecordsTable, m),
		Invoices:       guard.MustStore[Invoice](db, InvoicesTable, m),
		Users:          guard.MustStore[User](db, UsersTable, m),
		InventoryItems: guard.MustStore[InventoryItem](db, InventoryItemsTable, m),
		Equipment:      guard.MustStore[Equipment](db, EquipmentTable, m),
		Suppliers:      guard.MustStore[Supplier](db, SuppliersTable, m),
		PurchaseOrders: guard.MustStore[PurchaseOrder](db, PurchaseOrdersTable, m),
		Clinics:        NewClinicRepository(db),
		Notifications:  NewNotificationRepository(db),
	}
}

// ServedTables are the tenant-owned tables this service reads through guard stores.
func (r *Repositories) ServedTables() []string {
	return []string{
		r.Users.Table().Name,
		r.Patients.Table().Name,
		r.Appointments.Table().Name,
		r.MedicalRecords.Table().Name,
		r.Invoices.Table().Name,
		r.InventoryItems.Table().Name,
		r.Equipment.Table().Name,
		r.Suppliers.Table().Name,
		r.PurchaseOrders.Table().Name,
	}
}
