package handler

import (
	"context"
	"net/http"

	"github.com/GestIAdev/Dentiagest-sub007/internal/clinic/repository"
	"github.com/GestIAdev/Dentiagest-sub007/internal/clinic/service"
	"github.com/GestIAdev/Dentiagest-sub007/internal/tenancy/guard"
	"github.com/GestIAdev/Dentiagest-sub007/pkg/httputil"
	"github.com/GestIAdev/Dentiagest-sub007/pkg/logger"
	"github.com/GestIAdev/Dentiagest-sub007/pkg/tenant"
)

// crud serves the plain list/get/create/update/delete endpoints of a clinic
// resource. keep copies the fields a client may not change from the stored row
// onto the decoded one.
type crud[T any] struct {
	resource string
	filters  []string
	logger   *logger.Logger

	list   func(context.Context, tenant.Scope, guard.ListOptions) ([]T, int, error)
	get    func(context.Context, tenant.Scope, string) (*T, error)
	create func(context.Context, tenant.Scope, *T) error
	update func(context.Context, tenant.Scope, string, *T) error
	delete func(context.Context, tenant.Scope, string) error
	keep   func(stored, updated *T)
}

func (h *crud[T]) List(w http.ResponseWriter, r *http.Request) {
	scope, err := scopeFrom(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	opts, err := listOptions(r, h.filters...)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	rows, total, err := h.list(r.Context(), scope, opts)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSONWithMeta(w, http.StatusOK, rows, httputil.PageMeta(opts.Page, opts.PerPage, int64(total)))
}

func (h *crud[T]) Get(w http.ResponseWriter, r *http.Request) {
	scope, err := scopeFrom(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	id, err := pathID(r, h.resource)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	row, err := h.get(r.Context(), scope, id)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, row)
}

func (h *crud[T]) Create(w http.ResponseWriter, r *http.Request) {
	scope, err := scopeFrom(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	var row T
	if err := httputil.DecodeJSON(r, &row); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&row); err != nil {
		httputil.Error(w, err)
		return
	}

	if err := h.create(r.Context(), scope, &row); err != nil {
		h.logger.Error().Err(err).Str("resource", h.resource).Msg("failed to create")
		httputil.Error(w, err)
		return
	}
	httputil.Created(w, row)
}

func (h *crud[T]) Update(w http.ResponseWriter, r *http.Request) {
	scope, err := scopeFrom(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	id, err := pathID(r, h.resource)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	existing, err := h.get(r.Context(), scope, id)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	stored := *existing
	if err := httputil.DecodeJSON(r, existing); err != nil {
		httputil.Error(w, err)
		return
	}
	h.keep(&stored, existing)
	if err := httputil.Validate(existing); err != nil {
		httputil.Error(w, err)
		return
	}

	if err := h.update(r.Context(), scope, id, existing); err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, existing)
}

func (h *crud[T]) Delete(w http.ResponseWriter, r *http.Request) {
	scope, err := scopeFrom(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	id, err := pathID(r, h.resource)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	if err := h.delete(r.Context(), scope, id); err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.NoContent(w)
}

// InventoryHandler handles inventory items, equipment, suppliers and purchase orders.
type InventoryHandler struct {
	service *service.ClinicService
	logger  *logger.Logger

	items     *crud[repository.InventoryItem]
	equipment *crud[repository.Equipment]
	suppliers *crud[repository.Supplier]
}

func NewInventoryHandler(svc *service.ClinicService, log *logger.Logger) *InventoryHandler {
	return &InventoryHandler{
		service: svc,
		logger:  log,
		items: &crud[repository.InventoryItem]{
			resource: "inventory item",
			filters:  []string{"sku"},
			logger:   log,
			list:     svc.ListInventoryItems,
			get:      svc.GetInventoryItem,
			create:   svc.CreateInventoryItem,
			update:   svc.UpdateInventoryItem,
			delete:   svc.DeleteInventoryItem,
			keep: func(stored, updated *repository.InventoryItem) {
				updated.ID, updated.ClinicID = stored.ID, stored.ClinicID
				// Quantity moves through stock adjustments only.
				updated.Quantity = stored.Quantity
			},
		},
		equipment: &crud[repository.Equipment]{
			resource: "equipment",
			filters:  []string{"status"},
			logger:   log,
			list:     svc.ListEquipment,
			get:      svc.GetEquipment,
			create:   svc.CreateEquipment,
			update:   svc.UpdateEquipment,
			delete:   svc.DeleteEquipment,
			keep: func(stored, updated *repository.Equipment) {
				updated.ID, updated.ClinicID = stored.ID, stored.ClinicID
			},
		},
		suppliers: &crud[repository.Supplier]{
			resource: "supplier",
			filters:  []string{"email"},
			logger:   log,
			list:     svc.ListSuppliers,
			get:      svc.GetSupplier,
			create:   svc.CreateSupplier,
			update:   svc.UpdateSupplier,
			delete:   svc.DeleteSupplier,
			keep: func(stored, updated *repository.Supplier) {
				updated.ID, updated.ClinicID = stored.ID, stored.ClinicID
			},
		},
	}
}

type adjustStockRequest struct {
	Delta int `json:"delta" validate:"required"`
}

// AdjustStock adds a signed delta to an item's quantity.
func (h *InventoryHandler) AdjustStock(w http.ResponseWriter, r *http.Request) {
	scope, err := scopeFrom(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	id, err := pathID(r, "inventory item")
	if err != nil {
		httputil.Error(w, err)
		return
	}
	var req adjustStockRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&req); err != nil {
		httputil.Error(w, err)
		return
	}

	item, err := h.service.AdjustStock(r.Context(), scope, id, req.Delta)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, item)
}

// ListPurchaseOrders lists purchase orders, optionally by supplier or status
func (h *InventoryHandler) ListPurchaseOrders(w http.ResponseWriter, r *http.Request) {
	scope, err := scopeFrom(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	opts, err := listOptions(r, "supplier_id", "status")
	if err != nil {
		httputil.Error(w, err)
		return
	}

	orders, total, err := h.service.ListPurchaseOrders(r.Context(), scope, opts)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSONWithMeta(w, http.StatusOK, orders, httputil.PageMeta(opts.Page, opts.PerPage, int64(total)))
}

func (h *InventoryHandler) GetPurchaseOrder(w http.ResponseWriter, r *http.Request) {
	scope, err := scopeFrom(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	id, err := pathID(r, "purchase order")
	if err != nil {
		httputil.Error(w, err)
		return
	}

	po, err := h.service.GetPurchaseOrder(r.Context(), scope, id)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, po)
}

// CreatePurchaseOrder places an order with a supplier of the caller's write clinic.
func (h *InventoryHandler) CreatePurchaseOrder(w http.ResponseWriter, r *http.Request) {
	scope, err := scopeFrom(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	var po repository.PurchaseOrder
	if err := httputil.DecodeJSON(r, &po); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&po); err != nil {
		httputil.Error(w, err)
		return
	}

	if err := h.service.CreatePurchaseOrder(r.Context(), scope, &po); err != nil {
		h.logger.Error().Err(err).Msg("failed to create purchase order")
		httputil.Error(w, err)
		return
	}
	httputil.Created(w, po)
}

func (h *InventoryHandler) UpdatePurchaseOrder(w http.ResponseWriter, r *http.Request) {
	scope, err := scopeFrom(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	id, err := pathID(r, "purchase order")
	if err != nil {
		httputil.Error(w, err)
		return
	}

	existing, err := h.service.GetPurchaseOrder(r.Context(), scope, id)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	clinicID, supplierID := existing.ClinicID, existing.SupplierID
	if err := httputil.DecodeJSON(r, existing); err != nil {
		httputil.Error(w, err)
		return
	}
	existing.ID, existing.ClinicID, existing.SupplierID = id, clinicID, supplierID
	if err := httputil.Validate(existing); err != nil {
		httputil.Error(w, err)
		return
	}

	if err := h.service.UpdatePurchaseOrder(r.Context(), scope, id, existing); err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, existing)
}

func (h *InventoryHandler) DeletePurchaseOrder(w http.ResponseWriter, r *http.Request) {
	scope, err := scopeFrom(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	id, err := pathID(r, "purchase order")
	if err != nil {
		httputil.Error(w, err)
		return
	}

	if err := h.service.DeletePurchaseOrder(r.Context(), scope, id); err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.NoContent(w)
}
