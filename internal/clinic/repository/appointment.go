package repository

import (
	"time"

	"github.com/GestIAdev/Dentiagest-sub007/internal/tenancy/guard"
)

// Appointment statuses
const (
	AppointmentScheduled = "scheduled"
	AppointmentConfirmed = "confirmed"
	AppointmentCompleted = "completed"
	AppointmentCancelled = "cancelled"
	AppointmentNoShow    = "no_show"
)

// Appointment is a booked chair slot.
type Appointment struct {
	ID              string    `db:"id" json:"id"`
	ClinicID        string    `db:"clinic_id" json:"clinic_id"`
	PatientID       string    `db:"patient_id" json:"patient_id" validate:"required,uuid"`
	DentistID       *string   `db:"dentist_id" json:"dentist_id,omitempty" validate:"omitempty,uuid"`
	ScheduledAt     time.Time `db:"scheduled_at" json:"scheduled_at" validate:"required"`
	DurationMinutes int       `db:"duration_minutes" json:"duration_minutes" validate:"min=0,max=480"`
	Status          string    `db:"status" json:"status" validate:"omitempty,oneof=scheduled confirmed completed cancelled no_show"`
	Notes           *string   `db:"notes" json:"notes,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

func (a *Appointment) SetClinicID(clinicID string) { a.ClinicID = clinicID }

var AppointmentsTable = guard.Table{
	Name: "appointments",
	Columns: []string{
		"id", "clinic_id", "patient_id", "dentist_id", "scheduled_at", "duration_minutes",
		"status", "notes", "created_at", "updated_at",
	},
	Insertable: []string{"patient_id", "dentist_id", "scheduled_at", "duration_minutes", "status", "notes"},
	Mutable:    []string{"dentist_id", "scheduled_at", "duration_minutes", "status", "notes"},
	Touch:      "updated_at",
	OrderBy:    "scheduled_at",
}
