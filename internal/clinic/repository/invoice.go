package repository

import (
	"time"

	"github.com/GestIAdev/Dentiagest-sub007/internal/tenancy/guard"
)

// Invoice statuses
const (
	InvoiceDraft  = "draft"
	InvoiceIssued = "issued"
	InvoicePaid   = "paid"
	InvoiceVoid   = "void"
)

// DefaultCurrency is used when an invoice is created without one.
const DefaultCurrency = "EUR"

// Invoice bills a patient. Invoice numbers are unique per clinic.
type Invoice struct {
	ID            string     `db:"id" json:"id"`
	ClinicID      string     `db:"clinic_id" json:"clinic_id"`
	PatientID     string     `db:"patient_id" json:"patient_id" validate:"required,uuid"`
	InvoiceNumber string     `db:"invoice_number" json:"invoice_number" validate:"required,max=50"`
	AmountCents   int64      `db:"amount_cents" json:"amount_cents" validate:"min=0"`
	Currency      string     `db:"currency" json:"currency" validate:"omitempty,currency"`
	Status        string     `db:"status" json:"status" validate:"omitempty,oneof=draft issued paid void"`
	IssuedAt      *time.Time `db:"issued_at" json:"issued_at,omitempty"`
	DueAt         *time.Time `db:"due_at" json:"due_at,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

func (i *Invoice) SetClinicID(clinicID string) { i.ClinicID = clinicID }

var InvoicesTable = guard.Table{
	Name: "invoices",
	Columns: []string{
		"id", "clinic_id", "patient_id", "invoice_number", "amount_cents", "currency",
		"status", "issued_at", "due_at", "created_at", "updated_at",
	},
	Insertable: []string{"patient_id", "invoice_number", "amount_cents", "currency", "status", "issued_at", "due_at"},
	Mutable:    []string{"amount_cents", "currency", "status", "issued_at", "due_at"},
	Touch:      "updated_at",
	OrderBy:    "created_at",
	OrderDesc:  true,
}
