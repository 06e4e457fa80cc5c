package handler

import (
	"net/http"

	"github.com/GestIAdev/Dentiagest-sub007/internal/clinic/repository"
	"github.com/GestIAdev/Dentiagest-sub007/internal/clinic/service"
	"github.com/GestIAdev/Dentiagest-sub007/pkg/httputil"
	"github.com/GestIAdev/Dentiagest-sub007/pkg/logger"
)

// MedicalRecordHandler handles chart entries
type MedicalRecordHandler struct {
	service *service.ClinicService
	logger  *logger.Logger
}

func NewMedicalRecordHandler(svc *service.ClinicService, log *logger.Logger) *MedicalRecordHandler {
	return &MedicalRecordHandler{service: svc, logger: log}
}

func (h *MedicalRecordHandler) List(w http.ResponseWriter, r *http.Request) {
	scope, err := scopeFrom(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	opts, err := listOptions(r, "patient_id", "record_type")
	if err != nil {
		httputil.Error(w, err)
		return
	}

	records, total, err := h.service.ListMedicalRecords(r.Context(), scope, opts)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSONWithMeta(w, http.StatusOK, records, httputil.PageMeta(opts.Page, opts.PerPage, int64(total)))
}

func (h *MedicalRecordHandler) Get(w http.ResponseWriter, r *http.Request) {
	scope, err := scopeFrom(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	id, err := pathID(r, "medical record")
	if err != nil {
		httputil.Error(w, err)
		return
	}

	m, err := h.service.GetMedicalRecord(r.Context(), scope, id)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, m)
}

// Create adds a record authored by the caller.
func (h *MedicalRecordHandler) Create(w http.ResponseWriter, r *http.Request) {
	scope, err := scopeFrom(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	var m repository.MedicalRecord
	if err := httputil.DecodeJSON(r, &m); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&m); err != nil {
		httputil.Error(w, err)
		return
	}

	if err := h.service.CreateMedicalRecord(r.Context(), scope, &m); err != nil {
		h.logger.Error().Err(err).Str("patient_id", m.PatientID).Msg("failed to create medical record")
		httputil.Error(w, err)
		return
	}
	httputil.Created(w, m)
}

func (h *MedicalRecordHandler) Update(w http.ResponseWriter, r *http.Request) {
	scope, err := scopeFrom(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	id, err := pathID(r, "medical record")
	if err != nil {
		httputil.Error(w, err)
		return
	}

	existing, err := h.service.GetMedicalRecord(r.Context(), scope, id)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	clinicID, patientID := existing.ClinicID, existing.PatientID
	if err := httputil.DecodeJSON(r, existing); err != nil {
		httputil.Error(w, err)
		return
	}
	existing.ID, existing.ClinicID, existing.PatientID = id, clinicID, patientID
	if err := httputil.Validate(existing); err != nil {
		httputil.Error(w, err)
		return
	}

	if err := h.service.UpdateMedicalRecord(r.Context(), scope, id, existing); err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, existing)
}

func (h *MedicalRecordHandler) Delete(w http.ResponseWriter, r *http.Request) {
	scope, err := scopeFrom(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	id, err := pathID(r, "medical record")
	if err != nil {
		httputil.Error(w, err)
		return
	}

	if err := h.service.DeleteMedicalRecord(r.Context(), scope, id); err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.NoContent(w)
}
