package handler

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/telemedconnect/telemed-session-service/internal/domain"
	"github.com/telemedconnect/telemed-session-service/internal/middleware"
	"github.com/telemedconnect/telemed-session-service/internal/service"
)

type AppointmentHandler struct {
	service service.AppointmentService
	Logger  *logrus.Logger
}

func NewAppointmentHandler(service service.AppointmentService, logger *logrus.Logger) *AppointmentHandler {
	return &AppointmentHandler{
		service: service,
		Logger:  logger,
	}
}

func (h *AppointmentHandler) Create(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, h.Logger, domain.ErrUnauthorized)
		return
	}

	var req service.BookAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.Logger, &domain.ValidationError{Field: "body", Reason: "must be valid JSON"})
		return
	}

	appointment, err := h.service.BookAppointment(r.Context(), identity, req)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, appointment)
}

func (h *AppointmentHandler) List(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, h.Logger, domain.ErrUnauthorized)
		return
	}

	appointments, err := h.service.GetByUser(r.Context(), identity.UserID, identity.Role)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, appointments)
}

func (h *AppointmentHandler) Update(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, h.Logger, domain.ErrUnauthorized)
		return
	}

	var patch domain.AppointmentPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, h.Logger, &domain.ValidationError{Field: "body", Reason: "must be valid JSON"})
		return
	}

	id := mux.Vars(r)["id"]
	current, err := h.service.GetAppointment(r.Context(), id)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	if !current.Involves(identity.UserID, identity.Role) {
		writeError(w, h.Logger, domain.ErrUnauthorized)
		return
	}

	appointment, err := h.service.UpdateAppointment(r.Context(), id, patch)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, appointment)
}
