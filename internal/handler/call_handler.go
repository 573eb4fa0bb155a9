package handler

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/telemedconnect/telemed-session-service/internal/domain"
	"github.com/telemedconnect/telemed-session-service/internal/middleware"
	"github.com/telemedconnect/telemed-session-service/internal/service"
)

type CallHandler struct {
	manager  *service.CallSessionManager
	upgrader websocket.Upgrader
	Logger   *logrus.Logger
}

func NewCallHandler(manager *service.CallSessionManager, logger *logrus.Logger) *CallHandler {
	return &CallHandler{
		manager: manager,
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		Logger: logger,
	}
}

func (h *CallHandler) Start(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, h.Logger, domain.ErrUnauthorized)
		return
	}

	appointmentID := mux.Vars(r)["appointmentId"]
	if err := h.manager.StartCall(r.Context(), identity, appointmentID); err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"appointmentId": appointmentID,
		"state":         "active",
	})
}

func (h *CallHandler) End(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, h.Logger, domain.ErrUnauthorized)
		return
	}

	appointmentID := mux.Vars(r)["appointmentId"]
	record, err := h.manager.EndCall(r.Context(), identity, appointmentID)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (h *CallHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, h.Logger, domain.ErrUnauthorized)
		return
	}

	vars := mux.Vars(r)
	value, err := h.manager.ToggleSetting(identity, vars["appointmentId"], vars["setting"])
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"setting": vars["setting"],
		"value":   value,
	})
}

func (h *CallHandler) Notes(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, h.Logger, domain.ErrUnauthorized)
		return
	}

	var body struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, h.Logger, &domain.ValidationError{Field: "body", Reason: "must be valid JSON"})
		return
	}

	appointmentID := mux.Vars(r)["appointmentId"]
	if err := h.manager.AppendNotes(identity, appointmentID, body.Text); err != nil {
		writeError(w, h.Logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Ticks streams the one-second supervision frames of an active call over a
// websocket until the call ends or the client disconnects. It carries no
// media, only derived session state.
func (h *CallHandler) Ticks(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, h.Logger, domain.ErrUnauthorized)
		return
	}

	appointmentID := mux.Vars(r)["appointmentId"]
	ticks, cancel, err := h.manager.Subscribe(identity, appointmentID)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	defer cancel()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.Logger.WithError(err).Warn("Websocket upgrade failed")
		return
	}
	defer conn.Close()

	for tick := range ticks {
		if err := conn.WriteJSON(tick); err != nil {
			return
		}
	}
}
