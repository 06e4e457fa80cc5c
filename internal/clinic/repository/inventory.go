package repository

import (
	"time"

	"github.com/GestIAdev/Dentiagest-sub007/internal/tenancy/guard"
)

// Purchase order statuses
const (
	PurchaseOrderDraft     = "draft"
	PurchaseOrderOrdered   = "ordered"
	PurchaseOrderReceived  = "received"
	PurchaseOrderCancelled = "cancelled"
)

// Equipment statuses
const (
	EquipmentOperational = "operational"
	EquipmentMaintenance = "maintenance"
	EquipmentRetired     = "retired"
)

// InventoryItem is a consumable stocked by a clinic.
type InventoryItem struct {
	ID        string    `db:"id" json:"id"`
	ClinicID  string    `db:"clinic_id" json:"clinic_id"`
	Name      string    `db:"name" json:"name" validate:"required,max=200"`
	SKU       *string   `db:"sku" json:"sku,omitempty" validate:"omitempty,max=100"`
	Quantity  int       `db:"quantity" json:"quantity" validate:"min=0"`
	Unit      *string   `db:"unit" json:"unit,omitempty" validate:"omitempty,max=30"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

func (i *InventoryItem) SetClinicID(clinicID string) { i.ClinicID = clinicID }

var InventoryItemsTable = guard.Table{
	Name:       "inventory_items",
	Columns:    []string{"id", "clinic_id", "name", "sku", "quantity", "unit", "created_at", "updated_at"},
	Insertable: []string{"name", "sku", "quantity", "unit"},
	Mutable:    []string{"name", "sku", "unit"},
	Counters:   []string{"quantity"},
	Touch:      "updated_at",
	OrderBy:    "name",
}

// Equipment is a device owned by a clinic.
type Equipment struct {
	ID           string    `db:"id" json:"id"`
	ClinicID     string    `db:"clinic_id" json:"clinic_id"`
	Name         string    `db:"name" json:"name" validate:"required,max=200"`
	SerialNumber *string   `db:"serial_number" json:"serial_number,omitempty" validate:"omitempty,max=100"`
	Status       string    `db:"status" json:"status" validate:"omitempty,oneof=operational maintenance retired"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

func (e *Equipment) SetClinicID(clinicID string) { e.ClinicID = clinicID }

var EquipmentTable = guard.Table{
	Name:       "equipment",
	Columns:    []string{"id", "clinic_id", "name", "serial_number", "status", "created_at"},
	Insertable: []string{"name", "serial_number", "status"},
	Mutable:    []string{"name", "serial_number", "status"},
	OrderBy:    "name",
}

type Supplier struct {
	ID        string    `db:"id" json:"id"`
	ClinicID  string    `db:"clinic_id" json:"clinic_id"`
	Name      string    `db:"name" json:"name" validate:"required,max=200"`
	Email     *string   `db:"email" json:"email,omitempty" validate:"omitempty,email,max=255"`
	Phone     *string   `db:"phone" json:"phone,omitempty" validate:"omitempty,max=50"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

func (s *Supplier) SetClinicID(clinicID string) { s.ClinicID = clinicID }

var SuppliersTable = guard.Table{
	Name:       "suppliers",
	Columns:    []string{"id", "clinic_id", "name", "email", "phone", "created_at"},
	Insertable: []string{"name", "email", "phone"},
	Mutable:    []string{"name", "email", "phone"},
	OrderBy:    "name",
}

// PurchaseOrder is an order placed with a supplier of the same clinic.
type PurchaseOrder struct {
	ID         string    `db:"id" json:"id"`
	ClinicID   string    `db:"clinic_id" json:"clinic_id"`
	SupplierID string    `db:"supplier_id" json:"supplier_id" validate:"required,uuid"`
	Status     string    `db:"status" json:"status" validate:"omitempty,oneof=draft ordered received cancelled"`
	TotalCents int64     `db:"total_cents" json:"total_cents" validate:"min=0"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

func (p *PurchaseOrder) SetClinicID(clinicID string) { p.ClinicID = clinicID }

var PurchaseOrdersTable = guard.Table{
	Name:       "purchase_orders",
	Columns:    []string{"id", "clinic_id", "supplier_id", "status", "total_cents", "created_at"},
	Insertable: []string{"supplier_id", "status", "total_cents"},
	Mutable:    []string{"status", "total_cents"},
	OrderBy:    "created_at",
	OrderDesc:  true,
}
