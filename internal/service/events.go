package service

import (
	"context"

	"github.com/telemedconnect/telemed-session-service/internal/domain"
)

// EventPublisher pushes lifecycle events to the appointment topic. Publishing
// is best-effort: services log failures but never fail the user operation
// over a missing event.
type EventPublisher interface {
	PublishAppointmentEvent(ctx context.Context, event domain.AppointmentEvent) error
}
