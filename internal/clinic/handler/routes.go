// Package handler exposes the clinic REST API. Handlers read the tenant scope
// from the request context and never accept a clinic id from the client.
package handler

import (
	"github.com/GestIAdev/Dentiagest-sub007/internal/clinic/service"
	"github.com/GestIAdev/Dentiagest-sub007/pkg/logger"
	"github.com/GestIAdev/Dentiagest-sub007/pkg/permissions"
	"github.com/go-chi/chi/v5"
)

// Routes mounts the API on r. Authentication and tenant resolution must
// already be installed on r.
func Routes(r chi.Router, svc *service.ClinicService, log *logger.Logger) {
	patients := NewPatientHandler(svc, log)
	appointments := NewAppointmentHandler(svc, log)
	records := NewMedicalRecordHandler(svc, log)
	invoices := NewInvoiceHandler(svc, log)
	clinics := NewClinicHandler(svc, log)
	inventory := NewInventoryHandler(svc, log)

	need := permissions.Require

	r.Route("/patients", func(r chi.Router) {
		r.With(need(permissions.PatientsRead)).Get("/", patients.List)
		r.With(need(permissions.PatientsWrite)).Post("/", patients.Create)
		r.With(need(permissions.PatientsRead)).Get("/{id}", patients.Get)
		r.With(need(permissions.PatientsWrite)).Put("/{id}", patients.Update)
		r.With(need(permissions.PatientsDelete)).Delete("/{id}", patients.Delete)
	})

	r.Route("/appointments", func(r chi.Router) {
		r.With(need(permissions.AppointmentsRead)).Get("/", appointments.List)
		r.With(need(permissions.AppointmentsWrite)).Post("/", appointments.Create)
		r.With(need(permissions.AppointmentsRead)).Get("/{id}", appointments.Get)
		r.With(need(permissions.AppointmentsWrite)).Put("/{id}", appointments.Update)
		r.With(need(permissions.AppointmentsDelete)).Delete("/{id}", appointments.Cancel)
	})

	r.Route("/medical-records", func(r chi.Router) {
		r.With(need(permissions.MedicalRecordsRead)).Get("/", records.List)
		r.With(need(permissions.MedicalRecordsWrite)).Post("/", records.Create)
		r.With(need(permissions.MedicalRecordsRead)).Get("/{id}", records.Get)
		r.With(need(permissions.MedicalRecordsWrite)).Put("/{id}", records.Update)
		r.With(need(permissions.MedicalRecordsDelete)).Delete("/{id}", records.Delete)
	})

	r.Route("/invoices", func(r chi.Router) {
		r.With(need(permissions.InvoicesRead)).Get("/", invoices.List)
		r.With(need(permissions.InvoicesWrite)).Post("/", invoices.Create)
		r.With(need(permissions.InvoicesRead)).Get("/{id}", invoices.Get)
		r.With(need(permissions.InvoicesWrite)).Put("/{id}", invoices.Update)
		r.With(need(permissions.InvoicesDelete)).Delete("/{id}", invoices.Delete)
	})

	r.Route("/inventory", func(r chi.Router) {
		r.Route("/items", func(r chi.Router) {
			mountCRUD(r, inventory.items)
			r.With(need(permissions.InventoryWrite)).Post("/{id}/adjust", inventory.AdjustStock)
		})
		r.Route("/equipment", func(r chi.Router) { mountCRUD(r, inventory.equipment) })
		r.Route("/suppliers", func(r chi.Router) { mountCRUD(r, inventory.suppliers) })
		r.Route("/purchase-orders", func(r chi.Router) {
			r.With(need(permissions.InventoryRead)).Get("/", inventory.ListPurchaseOrders)
			r.With(need(permissions.InventoryWrite)).Post("/", inventory.CreatePurchaseOrder)
			r.With(need(permissions.InventoryRead)).Get("/{id}", inventory.GetPurchaseOrder)
			r.With(need(permissions.InventoryWrite)).Put("/{id}", inventory.UpdatePurchaseOrder)
			r.With(need(permissions.InventoryDelete)).Delete("/{id}", inventory.DeletePurchaseOrder)
		})
	})

	r.With(need(permissions.ClinicsRead)).Get("/clinics", clinics.ListClinics)
	r.With(need(permissions.ClinicsRead)).Get("/staff", clinics.ListStaff)

	r.Route("/notifications", func(r chi.Router) {
		r.Use(need(permissions.NotificationsRead))
		r.Get("/", clinics.ListNotifications)
		r.Post("/{id}/read", clinics.MarkNotificationRead)
	})
}

// mountCRUD mounts an inventory resource under the inventory permissions.
func mountCRUD[T any](r chi.Router, h *crud[T]) {
	need := permissions.Require
	r.With(need(permissions.InventoryRead)).Get("/", h.List)
	r.With(need(permissions.InventoryWrite)).Post("/", h.Create)
	r.With(need(permissions.InventoryRead)).Get("/{id}", h.Get)
	r.With(need(permissions.InventoryWrite)).Put("/{id}", h.Update)
	r.With(need(permissions.InventoryDelete)).Delete("/{id}", h.Delete)
}
