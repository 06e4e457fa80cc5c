package service

import (
	"context"

	"github.com/GestIAdev/Dentiagest-sub007/internal/clinic/repository"
	"github.com/GestIAdev/Dentiagest-sub007/internal/tenancy/guard"
	"github.com/GestIAdev/Dentiagest-sub007/pkg/errors"
	"github.com/GestIAdev/Dentiagest-sub007/pkg/tenant"
)

// Inventory items

func (s *ClinicService) ListInventoryItems(ctx context.Context, scope tenant.Scope, opts guard.ListOptions) ([]repository.InventoryItem, int, error) {
	return s.repos.InventoryItems.List(ctx, scope, opts)
}

func (s *ClinicService) GetInventoryItem(ctx context.Context, scope tenant.Scope, id string) (*repository.InventoryItem, error) {
	return s.repos.InventoryItems.Get(ctx, scope, id)
}

func (s *ClinicService) CreateInventoryItem(ctx context.Context, scope tenant.Scope, item *repository.InventoryItem) error {
	if err := s.repos.InventoryItems.Insert(ctx, scope, item); err != nil {
		return err
	}
	s.logger.Info().Str("item_id", item.ID).Str("clinic_id", item.ClinicID).Msg("inventory item created")
	return nil
}

func (s *ClinicService) UpdateInventoryItem(ctx context.Context, scope tenant.Scope, id string, item *repository.InventoryItem) error {
	return s.repos.InventoryItems.Update(ctx, scope, id, item)
}

func (s *ClinicService) DeleteInventoryItem(ctx context.Context, scope tenant.Scope, id string) error {
	return s.repos.InventoryItems.Delete(ctx, scope, id)
}

// AdjustStock adds delta to the quantity of an item. Stock never goes below zero.
func (s *ClinicService) AdjustStock(ctx context.Context, scope tenant.Scope, id string, delta int) (*repository.InventoryItem, error) {
	item, err := s.repos.InventoryItems.Add(ctx, scope, id, "quantity", delta)
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("item_id", id).Str("clinic_id", item.ClinicID).Int("delta", delta).Int("quantity", item.Quantity).Msg("stock adjusted")
	return item, nil
}

// Equipment

func (s *ClinicService) ListEquipment(ctx context.Context, scope tenant.Scope, opts guard.ListOptions) ([]repository.Equipment, int, error) {
	return s.repos.Equipment.List(ctx, scope, opts)
}

func (s *ClinicService) GetEquipment(ctx context.Context, scope tenant.Scope, id string) (*repository.Equipment, error) {
	return s.repos.Equipment.Get(ctx, scope, id)
}

func (s *ClinicService) CreateEquipment(ctx context.Context, scope tenant.Scope, e *repository.Equipment) error {
	if e.Status == "" {
		e.Status = repository.EquipmentOperational
	}
	return s.repos.Equipment.Insert(ctx, scope, e)
}

func (s *ClinicService) UpdateEquipment(ctx context.Context, scope tenant.Scope, id string, e *repository.Equipment) error {
	return s.repos.Equipment.Update(ctx, scope, id, e)
}

func (s *ClinicService) DeleteEquipment(ctx context.Context, scope tenant.Scope, id string) error {
	return s.repos.Equipment.Delete(ctx, scope, id)
}

// Suppliers

func (s *ClinicService) ListSuppliers(ctx context.Context, scope tenant.Scope, opts guard.ListOptions) ([]repository.Supplier, int, error) {
	return s.repos.Suppliers.List(ctx, scope, opts)
}

func (s *ClinicService) GetSupplier(ctx context.Context, scope tenant.Scope, id string) (*repository.Supplier, error) {
	return s.repos.Suppliers.Get(ctx, scope, id)
}

func (s *ClinicService) CreateSupplier(ctx context.Context, scope tenant.Scope, sup *repository.Supplier) error {
	return s.repos.Suppliers.Insert(ctx, scope, sup)
}

func (s *ClinicService) UpdateSupplier(ctx context.Context, scope tenant.Scope, id string, sup *repository.Supplier) error {
	return s.repos.Suppliers.Update(ctx, scope, id, sup)
}

func (s *ClinicService) DeleteSupplier(ctx context.Context, scope tenant.Scope, id string) error {
	return s.repos.Suppliers.Delete(ctx, scope, id)
}

// Purchase orders

func (s *ClinicService) ListPurchaseOrders(ctx context.Context, scope tenant.Scope, opts guard.ListOptions) ([]repository.PurchaseOrder, int, error) {
	return s.repos.PurchaseOrders.List(ctx, scope, opts)
}

func (s *ClinicService) GetPurchaseOrder(ctx context.Context, scope tenant.Scope, id string) (*repository.PurchaseOrder, error) {
	return s.repos.PurchaseOrders.Get(ctx, scope, id)
}

// CreatePurchaseOrder requires the supplier to belong to the clinic the order
// is written to.
func (s *ClinicService) CreatePurchaseOrder(ctx context.Context, scope tenant.Scope, po *repository.PurchaseOrder) error {
	ws, err := writeScope(scope)
	if err != nil {
		return err
	}
	ok, err := s.repos.Suppliers.Exists(ctx, ws, po.SupplierID)
	if err != nil {
		return err
	}
	if !ok {
		return errors.NotFound("supplier")
	}
	if po.Status == "" {
		po.Status = repository.PurchaseOrderDraft
	}
	if err := s.repos.PurchaseOrders.Insert(ctx, ws, po); err != nil {
		return err
	}
	s.logger.Info().Str("purchase_order_id", po.ID).Str("clinic_id", po.ClinicID).Msg("purchase order created")
	return nil
}

// UpdatePurchaseOrder writes po. Received and cancelled orders are final.
func (s *ClinicService) UpdatePurchaseOrder(ctx context.Context, scope tenant.Scope, id string, po *repository.PurchaseOrder) error {
	return s.db.InTx(ctx, func(ctx context.Context) error {
		stored, err := s.repos.PurchaseOrders.GetForUpdate(ctx, scope, id)
		if err != nil {
			return err
		}
		if stored.Status != po.Status &&
			(stored.Status == repository.PurchaseOrderReceived || stored.Status == repository.PurchaseOrderCancelled) {
			return errors.Conflict("purchase order is " + stored.Status)
		}
		return s.repos.PurchaseOrders.Update(ctx, scope, id, po)
	})
}

// DeletePurchaseOrder removes drafts only.
func (s *ClinicService) DeletePurchaseOrder(ctx context.Context, scope tenant.Scope, id string) error {
	return s.db.InTx(ctx, func(ctx context.Context) error {
		po, err := s.repos.PurchaseOrders.GetForUpdate(ctx, scope, id)
		if err != nil {
			return err
		}
		if po.Status != repository.PurchaseOrderDraft {
			return errors.Conflict("only draft purchase orders can be deleted")
		}
		return s.repos.PurchaseOrders.Delete(ctx, scope, id)
	})
}
