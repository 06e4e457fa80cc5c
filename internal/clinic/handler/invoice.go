package handler

import (
	"net/http"

	"github.com/GestIAdev/Dentiagest-sub007/internal/clinic/repository"
	"github.com/GestIAdev/Dentiagest-sub007/internal/clinic/service"
	"github.com/GestIAdev/Dentiagest-sub007/pkg/httputil"
	"github.com/GestIAdev/Dentiagest-sub007/pkg/logger"
)

// InvoiceHandler handles invoice requests
type InvoiceHandler struct {
	service *service.ClinicService
	logger  *logger.Logger
}

func NewInvoiceHandler(svc *service.ClinicService, log *logger.Logger) *InvoiceHandler {
	return &InvoiceHandler{service: svc, logger: log}
}

func (h *InvoiceHandler) List(w http.ResponseWriter, r *http.Request) {
	scope, err := scopeFrom(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	opts, err := listOptions(r, "patient_id", "status", "invoice_number")
	if err != nil {
		httputil.Error(w, err)
		return
	}

	invoices, total, err := h.service.ListInvoices(r.Context(), scope, opts)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSONWithMeta(w, http.StatusOK, invoices, httputil.PageMeta(opts.Page, opts.PerPage, int64(total)))
}

func (h *InvoiceHandler) Get(w http.ResponseWriter, r *http.Request) {
	scope, err := scopeFrom(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	id, err := pathID(r, "invoice")
	if err != nil {
		httputil.Error(w, err)
		return
	}

	inv, err := h.service.GetInvoice(r.Context(), scope, id)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, inv)
}

func (h *InvoiceHandler) Create(w http.ResponseWriter, r *http.Request) {
	scope, err := scopeFrom(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	var inv repository.Invoice
	if err := httputil.DecodeJSON(r, &inv); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&inv); err != nil {
		httputil.Error(w, err)
		return
	}

	if err := h.service.CreateInvoice(r.Context(), scope, &inv); err != nil {
		h.logger.Error().Err(err).Str("invoice_number", inv.InvoiceNumber).Msg("failed to create invoice")
		httputil.Error(w, err)
		return
	}
	httputil.Created(w, inv)
}

// Update changes amount, status and dates. Number and patient are fixed.
func (h *InvoiceHandler) Update(w http.ResponseWriter, r *http.Request) {
	scope, err := scopeFrom(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	id, err := pathID(r, "invoice")
	if err != nil {
		httputil.Error(w, err)
		return
	}

	existing, err := h.service.GetInvoice(r.Context(), scope, id)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	stored := *existing
	if err := httputil.DecodeJSON(r, existing); err != nil {
		httputil.Error(w, err)
		return
	}
	existing.ID, existing.ClinicID = id, stored.ClinicID
	existing.PatientID, existing.InvoiceNumber = stored.PatientID, stored.InvoiceNumber
	if err := httputil.Validate(existing); err != nil {
		httputil.Error(w, err)
		return
	}

	if err := h.service.UpdateInvoice(r.Context(), scope, id, existing); err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, existing)
}

// Delete removes a draft invoice
func (h *InvoiceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	scope, err := scopeFrom(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	id, err := pathID(r, "invoice")
	if err != nil {
		httputil.Error(w, err)
		return
	}

	if err := h.service.DeleteInvoice(r.Context(), scope, id); err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.NoContent(w)
}
