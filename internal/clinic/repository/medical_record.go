package repository

import (
	"time"

	"github.com/GestIAdev/Dentiagest-sub007/internal/tenancy/guard"
)

// MedicalRecord is one entry of a patient's chart.
type MedicalRecord struct {
	ID         string    `db:"id" json:"id"`
	ClinicID   string    `db:"clinic_id" json:"clinic_id"`
	PatientID  string    `db:"patient_id" json:"patient_id" validate:"required,uuid"`
	RecordType string    `db:"record_type" json:"record_type" validate:"required,max=50"`
	Diagnosis  *string   `db:"diagnosis" json:"diagnosis,omitempty"`
	Treatment  *string   `db:"treatment" json:"treatment,omitempty"`
	Notes      *string   `db:"notes" json:"notes,omitempty"`
	CreatedBy  *string   `db:"created_by" json:"created_by,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

func (m *MedicalRecord) SetClinicID(clinicID string) { m.ClinicID = clinicID }

// MedicalRecordsTable lists newest entries first.
var MedicalRecordsTable = guard.Table{
	Name: "medical_records",
	Columns: []string{
		"id", "clinic_id", "patient_id", "record_type", "diagnosis", "treatment",
		"notes", "created_by", "created_at", "updated_at",
	},
	Insertable: []string{"patient_id", "record_type", "diagnosis", "treatment", "notes", "created_by"},
	Mutable:    []string{"record_type", "diagnosis", "treatment", "notes"},
	Touch:      "updated_at",
	OrderBy:    "created_at",
	OrderDesc:  true,
}
