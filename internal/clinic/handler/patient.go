package handler

import (
	"net/http"

	"github.com/GestIAdev/Dentiagest-sub007/internal/clinic/repository"
	"github.com/GestIAdev/Dentiagest-sub007/internal/clinic/service"
	"github.com/GestIAdev/Dentiagest-sub007/pkg/httputil"
	"github.com/GestIAdev/Dentiagest-sub007/pkg/logger"
)

// PatientHandler handles patient requests
type PatientHandler struct {
	service *service.ClinicService
	logger  *logger.Logger
}

func NewPatientHandler(svc *service.ClinicService, log *logger.Logger) *PatientHandler {
	return &PatientHandler{service: svc, logger: log}
}

// List lists patients with pagination
func (h *PatientHandler) List(w http.ResponseWriter, r *http.Request) {
	scope, err := scopeFrom(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	opts, err := listOptions(r, "last_name", "email")
	if err != nil {
		httputil.Error(w, err)
		return
	}

	patients, total, err := h.service.ListPatients(r.Context(), scope, opts)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSONWithMeta(w, http.StatusOK, patients, httputil.PageMeta(opts.Page, opts.PerPage, int64(total)))
}

// Get gets a patient by ID
func (h *PatientHandler) Get(w http.ResponseWriter, r *http.Request) {
	scope, err := scopeFrom(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	id, err := pathID(r, "patient")
	if err != nil {
		httputil.Error(w, err)
		return
	}

	p, err := h.service.GetPatient(r.Context(), scope, id)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, p)
}

// Create creates a patient in the caller's write clinic. A clinic_id in the
// body is ignored.
func (h *PatientHandler) Create(w http.ResponseWriter, r *http.Request) {
	scope, err := scopeFrom(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	var p repository.Patient
	if err := httputil.DecodeJSON(r, &p); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&p); err != nil {
		httputil.Error(w, err)
		return
	}

	if err := h.service.CreatePatient(r.Context(), scope, &p); err != nil {
		h.logger.Error().Err(err).Msg("failed to create patient")
		httputil.Error(w, err)
		return
	}
	httputil.Created(w, p)
}

// Update applies a partial update onto the stored patient.
func (h *PatientHandler) Update(w http.ResponseWriter, r *http.Request) {
	scope, err := scopeFrom(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	id, err := pathID(r, "patient")
	if err != nil {
		httputil.Error(w, err)
		return
	}

	existing, err := h.service.GetPatient(r.Context(), scope, id)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	clinicID := existing.ClinicID
	if err := httputil.DecodeJSON(r, existing); err != nil {
		httputil.Error(w, err)
		return
	}
	existing.ID, existing.ClinicID = id, clinicID
	if err := httputil.Validate(existing); err != nil {
		httputil.Error(w, err)
		return
	}

	if err := h.service.UpdatePatient(r.Context(), scope, id, existing); err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, existing)
}

// Delete soft deletes a patient
func (h *PatientHandler) Delete(w http.ResponseWriter, r *http.Request) {
	scope, err := scopeFrom(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	id, err := pathID(r, "patient")
	if err != nil {
		httputil.Error(w, err)
		return
	}

	if err := h.service.DeletePatient(r.Context(), scope, id); err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.NoContent(w)
}
