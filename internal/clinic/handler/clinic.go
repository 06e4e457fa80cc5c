package handler

import (
	"net/http"
	"strconv"

	"github.com/GestIAdev/Dentiagest-sub007/internal/clinic/service"
	"github.com/GestIAdev/Dentiagest-sub007/pkg/errors"
	"github.com/GestIAdev/Dentiagest-sub007/pkg/httputil"
	"github.com/GestIAdev/Dentiagest-sub007/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// ClinicHandler serves the caller's clinics, colleagues and notifications.
type ClinicHandler struct {
	service *service.ClinicService
	logger  *logger.Logger
}

func NewClinicHandler(svc *service.ClinicService, log *logger.Logger) *ClinicHandler {
	return &ClinicHandler{service: svc, logger: log}
}

// ListClinics returns every clinic in the resolved scope, so an owner sees
// all granted clinics unless the request narrowed to one.
func (h *ClinicHandler) ListClinics(w http.ResponseWriter, r *http.Request) {
	scope, err := scopeFrom(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	clinics, err := h.service.ListClinics(r.Context(), scope)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, clinics)
}

func (h *ClinicHandler) ListStaff(w http.ResponseWriter, r *http.Request) {
	scope, err := scopeFrom(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	opts, err := listOptions(r, "role")
	if err != nil {
		httputil.Error(w, err)
		return
	}
	users, total, err := h.service.ListStaff(r.Context(), scope, opts)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSONWithMeta(w, http.StatusOK, users, httputil.PageMeta(opts.Page, opts.PerPage, int64(total)))
}

// ListNotifications returns the caller's own notifications. They are keyed to
// the user, not the clinic.
func (h *ClinicHandler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	userID := httputil.GetUserID(r.Context())
	if userID == "" {
		httputil.Error(w, errors.Unauthorized("authentication required"))
		return
	}
	unread, _ := strconv.ParseBool(r.URL.Query().Get("unread"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	notes, err := h.service.ListNotifications(r.Context(), userID, unread, limit)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, notes)
}

func (h *ClinicHandler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	userID := httputil.GetUserID(r.Context())
	if userID == "" {
		httputil.Error(w, errors.Unauthorized("authentication required"))
		return
	}
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		httputil.Error(w, errors.NotFound("notification"))
		return
	}

	if err := h.service.MarkNotificationRead(r.Context(), userID, id); err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.NoContent(w)
}
