package permissions

import "github.com/GestIAdev/Dentiagest-sub007/pkg/tenant"

const (
	PatientsRead         = "patients.read"
	PatientsWrite        = "patients.write"
	PatientsDelete       = "patients.delete"
	AppointmentsRead     = "appointments.read"
	AppointmentsWrite    = "appointments.write"
	AppointmentsDelete   = "appointments.delete"
	MedicalRecordsRead   = "medical_records.read"
	MedicalRecordsWrite  = "medical_records.write"
	MedicalRecordsDelete = "medical_records.delete"
	InvoicesRead         = "invoices.read"
	InvoicesWrite        = "invoices.write"
	InvoicesDelete       = "invoices.delete"
	ClinicsRead          = "clinics.read"
	NotificationsRead    = "notifications.read"
	InventoryRead        = "inventory.read"
	InventoryWrite       = "inventory.write"
	InventoryDelete      = "inventory.delete"
)

// Known lists every concrete permission.
var Known = []string{
	PatientsRead, PatientsWrite, PatientsDelete,
	AppointmentsRead, AppointmentsWrite, AppointmentsDelete,
	MedicalRecordsRead, MedicalRecordsWrite, MedicalRecordsDelete,
	InvoicesRead, InvoicesWrite, InvoicesDelete,
	ClinicsRead, NotificationsRead,
	InventoryRead, InventoryWrite, InventoryDelete,
}

// rolePermissions is the fixed role matrix. Patients have no staff API access.
var rolePermissions = map[tenant.Role][]string{
	tenant.RoleOwner: {"*"},
	tenant.RoleAdmin: {"*"},
	tenant.RoleDentist: {
		"patients.*", "appointments.*", "medical_records.*",
		InvoicesRead, ClinicsRead, NotificationsRead, InventoryRead,
	},
	tenant.RoleHygienist: {
		PatientsRead, AppointmentsRead, AppointmentsWrite,
		MedicalRecordsRead, MedicalRecordsWrite, ClinicsRead, NotificationsRead,
		InventoryRead,
	},
	tenant.RoleReceptionist: {
		PatientsRead, PatientsWrite, "appointments.*", "invoices.*",
		"inventory.*", ClinicsRead, NotificationsRead,
	},
	tenant.RoleAssistant: {
		PatientsRead, AppointmentsRead, ClinicsRead, NotificationsRead,
		InventoryRead, InventoryWrite,
	},
	tenant.RolePatient: {
		NotificationsRead,
	},
}

// ForRole returns a copy of the role's permission list.
func ForRole(role tenant.Role) []string {
	return append([]string(nil), rolePermissions[role]...)
}
