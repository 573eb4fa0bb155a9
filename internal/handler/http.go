package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/telemedconnect/telemed-session-service/internal/domain"
	"github.com/telemedconnect/telemed-session-service/internal/middleware"
)

// NewRouter wires the HTTP surface. Everything under /api/v1 requires an
// authenticated identity.
func NewRouter(authMW *middleware.AuthMiddleware, appointments *AppointmentHandler, calls *CallHandler, dashboard *DashboardHandler) *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)

	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(authMW.RequireIdentity)

	api.HandleFunc("/appointments", appointments.Create).Methods(http.MethodPost)
	api.HandleFunc("/appointments", appointments.List).Methods(http.MethodGet)
	api.HandleFunc("/appointments/{id}", appointments.Update).Methods(http.MethodPatch)

	api.HandleFunc("/consultations", dashboard.Consultations).Methods(http.MethodGet)
	api.HandleFunc("/dashboard", dashboard.Stats).Methods(http.MethodGet)

	api.HandleFunc("/calls/{appointmentId}/start", calls.Start).Methods(http.MethodPost)
	api.HandleFunc("/calls/{appointmentId}/end", calls.End).Methods(http.MethodPost)
	api.HandleFunc("/calls/{appointmentId}/toggle/{setting}", calls.Toggle).Methods(http.MethodPost)
	api.HandleFunc("/calls/{appointmentId}/notes", calls.Notes).Methods(http.MethodPost)
	api.HandleFunc("/calls/{appointmentId}/ticks", calls.Ticks).Methods(http.MethodGet)

	return router
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps the error taxonomy onto HTTP statuses. Nothing from the
// persistence layer propagates as an unhandled fault.
func writeError(w http.ResponseWriter, logger *logrus.Logger, err error) {
	var validation *domain.ValidationError
	var transition *domain.InvalidTransitionError
	var reconciliation *domain.ReconciliationError

	status := http.StatusInternalServerError
	message := "operation failed"

	switch {
	// Checked first: a ReconciliationError wraps its cause, and the
	// caller's remedy is to retry the end, whatever that cause was.
	case errors.As(err, &reconciliation):
		status = http.StatusBadGateway
		message = "the call could not be fully closed, please retry ending it"
	case errors.As(err, &validation):
		status = http.StatusBadRequest
		message = validation.Error()
	case errors.Is(err, domain.ErrInvalidArgument):
		status = http.StatusBadRequest
		message = err.Error()
	case errors.Is(err, domain.ErrUnauthorized):
		status = http.StatusUnauthorized
		message = "unauthorized"
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
		message = "record no longer exists"
	case errors.As(err, &transition):
		status = http.StatusConflict
		message = transition.Error()
	case errors.Is(err, domain.ErrPrecondition):
		status = http.StatusConflict
		message = err.Error()
	default:
		logger.WithError(err).Error("Unclassified error reached the handler")
	}

	writeJSON(w, status, map[string]string{"error": message})
}
