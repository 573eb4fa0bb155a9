package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/telemedconnect/telemed-session-service/internal/domain"
	"github.com/telemedconnect/telemed-session-service/internal/repository"
)

// BookAppointmentRequest carries the booking form. The caller's own side of
// the encounter comes from their identity; the counterpart comes from the
// request.
type BookAppointmentRequest struct {
	CounterpartID   string `json:"counterpartId"`
	CounterpartName string `json:"counterpartName"`
	AppointmentDate string `json:"appointmentDate"` // RFC 3339
	Type            string `json:"type"`
	Reason          string `json:"reason"`
}

type AppointmentService interface {
	BookAppointment(ctx context.Context, identity domain.Identity, req BookAppointmentRequest) (domain.Appointment, error)
	GetByUser(ctx context.Context, userID string, role domain.Role) ([]domain.Appointment, error)
	GetAppointment(ctx context.Context, id string) (domain.Appointment, error)
	UpdateAppointment(ctx context.Context, id string, patch domain.AppointmentPatch) (domain.Appointment, error)
	SendDailyReminders()
}

type appointmentService struct {
	repo      repository.AppointmentRepository
	publisher EventPublisher
	Logger    *logrus.Logger
}

func NewAppointmentService(repo repository.AppointmentRepository, publisher EventPublisher, logger *logrus.Logger) AppointmentService {
	return &appointmentService{
		repo:      repo,
		publisher: publisher,
		Logger:    logger,
	}
}

func (s *appointmentService) BookAppointment(ctx context.Context, identity domain.Identity, req BookAppointmentRequest) (domain.Appointment, error) {
	s.Logger.WithFields(logrus.Fields{
		"Function": "BookAppointment",
		"UserId":   identity.UserID,
		"Role":     identity.Role,
		"Type":     req.Type,
	}).Info("Booking new appointment")

	if identity.UserID == "" || !identity.Role.Valid() {
		return domain.Appointment{}, domain.ErrUnauthorized
	}
	if req.AppointmentDate == "" {
		return domain.Appointment{}, &domain.ValidationError{Field: "appointmentDate", Reason: "is required"}
	}
	appointmentDate, err := time.Parse(time.RFC3339, req.AppointmentDate)
	if err != nil {
		return domain.Appointment{}, &domain.ValidationError{Field: "appointmentDate", Reason: "must be an RFC 3339 timestamp"}
	}
	if !domain.ValidAppointmentType(req.Type) {
		return domain.Appointment{}, &domain.ValidationError{Field: "type", Reason: "must be one of video, chat, phone"}
	}
	if req.CounterpartID == "" {
		return domain.Appointment{}, &domain.ValidationError{Field: "counterpartId", Reason: "is required"}
	}

	appointment := domain.Appointment{
		ID:              uuid.New().String(),
		AppointmentDate: appointmentDate,
		Type:            req.Type,
		Reason:          req.Reason,
		Status:          domain.StatusScheduled,
	}
	switch identity.Role {
	case domain.RolePatient:
		appointment.PatientID = identity.UserID
		appointment.PatientName = identity.DisplayName
		appointment.DoctorID = req.CounterpartID
		appointment.DoctorName = req.CounterpartName
	case domain.RoleDoctor:
		appointment.DoctorID = identity.UserID
		appointment.DoctorName = identity.DisplayName
		appointment.PatientID = req.CounterpartID
		appointment.PatientName = req.CounterpartName
	}

	if err := s.repo.Create(ctx, &appointment); err != nil {
		s.Logger.WithFields(logrus.Fields{
			"Function": "BookAppointment",
			"UserId":   identity.UserID,
			"Error":    err,
		}).Error("Failed to save appointment")
		return domain.Appointment{}, err
	}

	s.publish(ctx, domain.EventBooked, appointment)

	s.Logger.WithFields(logrus.Fields{
		"Function":      "BookAppointment",
		"AppointmentId": appointment.ID,
	}).Info("Appointment booked successfully")

	return appointment, nil
}

func (s *appointmentService) GetByUser(ctx context.Context, userID string, role domain.Role) ([]domain.Appointment, error) {
	if userID == "" || !role.Valid() {
		return nil, domain.ErrUnauthorized
	}
	appointments, err := s.repo.FetchByUser(ctx, userID, role)
	if err != nil {
		s.Logger.WithFields(logrus.Fields{
			"Function": "GetByUser",
			"UserId":   userID,
			"Error":    err,
		}).Error("Failed to fetch appointments")
		return nil, err
	}
	return appointments, nil
}

func (s *appointmentService) GetAppointment(ctx context.Context, id string) (domain.Appointment, error) {
	return s.repo.GetByID(ctx, id)
}

// UpdateAppointment applies a merge-patch restricted to status and timing
// fields, validating the status transition against the current record.
func (s *appointmentService) UpdateAppointment(ctx context.Context, id string, patch domain.AppointmentPatch) (domain.Appointment, error) {
	appointment, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return domain.Appointment{}, err
	}

	fields := map[string]interface{}{}
	if patch.Status != nil {
		if !domain.CanTransition(appointment.Status, *patch.Status) {
			return domain.Appointment{}, &domain.InvalidTransitionError{From: appointment.Status, To: *patch.Status}
		}
		fields["status"] = *patch.Status
	}
	if patch.CallStartTime != nil {
		fields["call_start_time"] = *patch.CallStartTime
	}
	if patch.CallEndTime != nil {
		fields["call_end_time"] = *patch.CallEndTime
	}
	if patch.Duration != nil {
		fields["duration"] = *patch.Duration
	}
	if len(fields) == 0 {
		return appointment, nil
	}

	if err := s.repo.Update(ctx, id, fields); err != nil {
		s.Logger.WithFields(logrus.Fields{
			"Function":      "UpdateAppointment",
			"AppointmentId": id,
			"Error":         err,
		}).Error("Failed to update appointment")
		return domain.Appointment{}, err
	}

	updated, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return domain.Appointment{}, err
	}
	if patch.Status != nil && *patch.Status == domain.StatusCancelled {
		s.publish(ctx, domain.EventCancelled, updated)
	}

	s.Logger.WithFields(logrus.Fields{
		"Function":      "UpdateAppointment",
		"AppointmentId": id,
		"Status":        updated.Status,
	}).Info("Appointment updated successfully")

	return updated, nil
}

// SendDailyReminders publishes a reminder event for every non-terminal
// appointment scheduled for today. Run by the cron scheduler.
func (s *appointmentService) SendDailyReminders() {
	s.Logger.Info("Sending daily appointment reminders")

	ctx := context.Background()
	appointments, err := s.repo.FetchForDay(ctx, time.Now())
	if err != nil {
		s.Logger.WithError(err).Error("Error fetching today's appointments")
		return
	}

	for _, appointment := range appointments {
		s.publish(ctx, domain.EventReminder, appointment)
	}

	s.Logger.WithFields(logrus.Fields{
		"Function": "SendDailyReminders",
		"Count":    len(appointments),
	}).Info("Daily appointment reminders sent")
}

func (s *appointmentService) publish(ctx context.Context, event string, appointment domain.Appointment) {
	if s.publisher == nil {
		return
	}
	err := s.publisher.PublishAppointmentEvent(ctx, domain.AppointmentEvent{
		Event:           event,
		AppointmentID:   appointment.ID,
		PatientID:       appointment.PatientID,
		DoctorID:        appointment.DoctorID,
		AppointmentDate: appointment.AppointmentDate.Format(time.RFC3339),
		Type:            appointment.Type,
	})
	if err != nil {
		s.Logger.WithFields(logrus.Fields{
			"Function":      "publish",
			"Event":         event,
			"AppointmentId": appointment.ID,
			"Error":         err,
		}).Warn("Failed to publish appointment event")
	}
}
