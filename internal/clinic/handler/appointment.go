package handler

import (
	"net/http"

	"github.com/GestIAdev/Dentiagest-sub007/internal/clinic/repository"
	"github.com/GestIAdev/Dentiagest-sub007/internal/clinic/service"
	"github.com/GestIAdev/Dentiagest-sub007/pkg/httputil"
	"github.com/GestIAdev/Dentiagest-sub007/pkg/logger"
)

// AppointmentHandler handles appointment requests
type AppointmentHandler struct {
	service *service.ClinicService
	logger  *logger.Logger
}

func NewAppointmentHandler(svc *service.ClinicService, log *logger.Logger) *AppointmentHandler {
	return &AppointmentHandler{service: svc, logger: log}
}

func (h *AppointmentHandler) List(w http.ResponseWriter, r *http.Request) {
	scope, err := scopeFrom(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	opts, err := listOptions(r, "patient_id", "dentist_id", "status")
	if err != nil {
		httputil.Error(w, err)
		return
	}

	appointments, total, err := h.service.ListAppointments(r.Context(), scope, opts)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSONWithMeta(w, http.StatusOK, appointments, httputil.PageMeta(opts.Page, opts.PerPage, int64(total)))
}

func (h *AppointmentHandler) Get(w http.ResponseWriter, r *http.Request) {
	scope, err := scopeFrom(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	id, err := pathID(r, "appointment")
	if err != nil {
		httputil.Error(w, err)
		return
	}

	a, err := h.service.GetAppointment(r.Context(), scope, id)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, a)
}

func (h *AppointmentHandler) Create(w http.ResponseWriter, r *http.Request) {
	scope, err := scopeFrom(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	var a repository.Appointment
	if err := httputil.DecodeJSON(r, &a); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&a); err != nil {
		httputil.Error(w, err)
		return
	}

	if err := h.service.CreateAppointment(r.Context(), scope, &a); err != nil {
		h.logger.Error().Err(err).Str("patient_id", a.PatientID).Msg("failed to create appointment")
		httputil.Error(w, err)
		return
	}
	httputil.Created(w, a)
}

// Update reschedules or reassigns an appointment. The patient cannot change.
func (h *AppointmentHandler) Update(w http.ResponseWriter, r *http.Request) {
	scope, err := scopeFrom(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	id, err := pathID(r, "appointment")
	if err != nil {
		httputil.Error(w, err)
		return
	}

	existing, err := h.service.GetAppointment(r.Context(), scope, id)
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

	if err := h.service.UpdateAppointment(r.Context(), scope, id, existing); err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, existing)
}

// Cancel marks the appointment cancelled and returns it.
func (h *AppointmentHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	scope, err := scopeFrom(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	id, err := pathID(r, "appointment")
	if err != nil {
		httputil.Error(w, err)
		return
	}

	a, err := h.service.CancelAppointment(r.Context(), scope, id)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, a)
}
