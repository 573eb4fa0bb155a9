package handler

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/telemedconnect/telemed-session-service/internal/domain"
	"github.com/telemedconnect/telemed-session-service/internal/middleware"
	"github.com/telemedconnect/telemed-session-service/internal/service"
)

type DashboardHandler struct {
	analytics service.AnalyticsService
	recorder  service.ConsultationRecorder
	Logger    *logrus.Logger
}

func NewDashboardHandler(analytics service.AnalyticsService, recorder service.ConsultationRecorder, logger *logrus.Logger) *DashboardHandler {
	return &DashboardHandler{
		analytics: analytics,
		recorder:  recorder,
		Logger:    logger,
	}
}

// Stats returns the recomputed counters together with the role's display
// configuration, so the client renders labels and actions from data.
func (h *DashboardHandler) Stats(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, h.Logger, domain.ErrUnauthorized)
		return
	}

	stats, err := h.analytics.ComputeDashboardStats(r.Context(), identity.UserID, identity.Role)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"stats":  stats,
		"config": domain.DashboardConfig(identity.Role),
	})
}

func (h *DashboardHandler) Consultations(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, h.Logger, domain.ErrUnauthorized)
		return
	}

	records, err := h.recorder.GetByUser(r.Context(), identity.UserID, identity.Role)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}
