package repository

import (
	"time"

	"github.com/GestIAdev/Dentiagest-sub007/internal/tenancy/guard"
)

// Patient is a person treated at a clinic.
type Patient struct {
	ID          string     `db:"id" json:"id"`
	ClinicID    string     `db:"clinic_id" json:"clinic_id"`
	FirstName   string     `db:"first_name" json:"first_name" validate:"required,max=100"`
	LastName    string     `db:"last_name" json:"last_name" validate:"required,max=100"`
	Email       *string    `db:"email" json:"email,omitempty" validate:"omitempty,email,max=255"`
	Phone       *string    `db:"phone" json:"phone,omitempty" validate:"omitempty,max=50"`
	DateOfBirth *time.Time `db:"date_of_birth" json:"date_of_birth,omitempty"`
	Notes       *string    `db:"notes" json:"notes,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
	DeletedAt   *time.Time `db:"deleted_at" json:"-"`
}

func (p *Patient) SetClinicID(clinicID string) { p.ClinicID = clinicID }

// FullName joins first and last name.
func (p *Patient) FullName() string {
	return p.FirstName + " " + p.LastName
}

// PatientsTable soft-deletes: charts and invoices keep pointing at the row.
var PatientsTable = guard.Table{
	Name: "patients",
	Columns: []string{
		"id", "clinic_id", "first_name", "last_name", "email", "phone",
		"date_of_birth", "notes", "created_at", "updated_at", "deleted_at",
	},
	Insertable: []string{"first_name", "last_name", "email", "phone", "date_of_birth", "notes"},
	Mutable:    []string{"first_name", "last_name", "email", "phone", "date_of_birth", "notes"},
	SoftDelete: "deleted_at",
	Touch:      "updated_at",
	OrderBy:    "last_name",
}
