package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/telemedconnect/telemed-session-service/internal/domain"
	"github.com/telemedconnect/telemed-session-service/internal/repository"
)

// ConsultationRecorder turns a terminated call into its permanent
// consultation record and closes out the source appointment.
type ConsultationRecorder interface {
	Finalize(ctx context.Context, snapshot domain.CallSessionSnapshot) (domain.ConsultationRecord, error)
	Replay(ctx context.Context, appointmentID string) (domain.ConsultationRecord, error)
	GetByUser(ctx context.Context, userID string, role domain.Role) ([]domain.ConsultationRecord, error)
}

type consultationRecorder struct {
	appointmentRepo  repository.AppointmentRepository
	consultationRepo repository.ConsultationRepository
	publisher        EventPublisher
	Logger           *logrus.Logger

	now        func() time.Time
	maxRetries int
	backoff    time.Duration
	sleep      func(time.Duration)
}

func NewConsultationRecorder(appointmentRepo repository.AppointmentRepository, consultationRepo repository.ConsultationRepository, publisher EventPublisher, logger *logrus.Logger) ConsultationRecorder {
	return &consultationRecorder{
		appointmentRepo:  appointmentRepo,
		consultationRepo: consultationRepo,
		publisher:        publisher,
		Logger:           logger,
		now:              time.Now,
		maxRetries:       3,
		backoff:          200 * time.Millisecond,
		sleep:            time.Sleep,
	}
}

// Finalize is the single join point between the live-session subsystem and
// persisted history: it creates the consultation record, then marks the
// appointment completed. The two writes form a two-step saga with an
// idempotent replay guard — an existing record for the appointment is never
// re-created, only the missing status write is completed.
func (r *consultationRecorder) Finalize(ctx context.Context, snapshot domain.CallSessionSnapshot) (domain.ConsultationRecord, error) {
	appointment, err := r.appointmentRepo.GetByID(ctx, snapshot.AppointmentID)
	if err != nil {
		return domain.ConsultationRecord{}, err
	}
	if appointment.Status != domain.StatusCompleted && !domain.CanTransition(appointment.Status, domain.StatusCompleted) {
		// A cancelled appointment stays cancelled; its call leaves no record.
		return domain.ConsultationRecord{}, fmt.Errorf("%w: appointment is %s and cannot be completed", domain.ErrPrecondition, appointment.Status)
	}

	record, err := r.consultationRepo.GetByAppointmentID(ctx, snapshot.AppointmentID)
	switch {
	case err == nil:
		r.Logger.WithFields(logrus.Fields{
			"Function":      "Finalize",
			"AppointmentId": snapshot.AppointmentID,
		}).Info("Consultation record already exists, skipping create")
	case errors.Is(err, domain.ErrNotFound):
		record = domain.ConsultationRecord{
			ID:            uuid.New().String(),
			AppointmentID: appointment.ID,
			PatientID:     appointment.PatientID,
			PatientName:   appointment.PatientName,
			DoctorID:      appointment.DoctorID,
			DoctorName:    appointment.DoctorName,
			Type:          domain.ConsultationType(appointment.Type),
			Duration:      snapshot.Duration,
			Notes:         snapshot.Notes,
			Status:        domain.StatusCompleted,
			CallEndTime:   snapshot.EndedAt,
		}
		if err := r.consultationRepo.Create(ctx, &record); err != nil {
			r.Logger.WithFields(logrus.Fields{
				"Function":      "Finalize",
				"AppointmentId": snapshot.AppointmentID,
				"Error":         err,
			}).Error("Failed to create consultation record")
			return domain.ConsultationRecord{}, err
		}
	default:
		return domain.ConsultationRecord{}, err
	}

	if err := r.completeAppointment(ctx, appointment, record); err != nil {
		return record, err
	}

	if r.publisher != nil {
		if err := r.publisher.PublishAppointmentEvent(ctx, domain.AppointmentEvent{
			Event:           domain.EventConsultationRecorded,
			AppointmentID:   appointment.ID,
			PatientID:       appointment.PatientID,
			DoctorID:        appointment.DoctorID,
			AppointmentDate: appointment.AppointmentDate.Format(time.RFC3339),
			Type:            appointment.Type,
		}); err != nil {
			r.Logger.WithError(err).Warn("Failed to publish consultation recorded event")
		}
	}

	r.Logger.WithFields(logrus.Fields{
		"Function":       "Finalize",
		"AppointmentId":  appointment.ID,
		"ConsultationId": record.ID,
		"Duration":       record.Duration,
	}).Info("Consultation finalized")

	return record, nil
}

// Replay re-attempts a partially applied finalize. It requires the
// consultation record to exist already; it never invents one for a session
// that was lost before its record was written.
func (r *consultationRecorder) Replay(ctx context.Context, appointmentID string) (domain.ConsultationRecord, error) {
	record, err := r.consultationRepo.GetByAppointmentID(ctx, appointmentID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ConsultationRecord{}, fmt.Errorf("%w: no consultation record to replay", domain.ErrPrecondition)
		}
		return domain.ConsultationRecord{}, err
	}
	appointment, err := r.appointmentRepo.GetByID(ctx, appointmentID)
	if err != nil {
		return domain.ConsultationRecord{}, err
	}
	if err := r.completeAppointment(ctx, appointment, record); err != nil {
		return record, err
	}
	return record, nil
}

// completeAppointment issues the second saga write with a bounded retry.
// After the last attempt fails the inconsistency is surfaced as a
// ReconciliationError, never absorbed.
func (r *consultationRecorder) completeAppointment(ctx context.Context, appointment domain.Appointment, record domain.ConsultationRecord) error {
	if appointment.Status == domain.StatusCompleted {
		return nil
	}
	if !domain.CanTransition(appointment.Status, domain.StatusCompleted) {
		return fmt.Errorf("%w: appointment is %s and cannot be completed", domain.ErrPrecondition, appointment.Status)
	}

	fields := map[string]interface{}{
		"status":        domain.StatusCompleted,
		"call_end_time": record.CallEndTime,
		"duration":      record.Duration,
	}

	var lastErr error
	for attempt := 1; attempt <= r.maxRetries; attempt++ {
		lastErr = r.appointmentRepo.Update(ctx, appointment.ID, fields)
		if lastErr == nil {
			return nil
		}
		r.Logger.WithFields(logrus.Fields{
			"Function":      "completeAppointment",
			"AppointmentId": appointment.ID,
			"Attempt":       attempt,
			"Error":         lastErr,
		}).Warn("Failed to mark appointment completed")
		if attempt < r.maxRetries {
			r.sleep(r.backoff * time.Duration(attempt))
		}
	}

	err := &domain.ReconciliationError{AppointmentID: appointment.ID, Err: lastErr}
	r.Logger.WithFields(logrus.Fields{
		"Function":       "completeAppointment",
		"AppointmentId":  appointment.ID,
		"ConsultationId": record.ID,
		"Error":          lastErr,
	}).Error("Consultation recorded but appointment left in-progress")
	return err
}

func (r *consultationRecorder) GetByUser(ctx context.Context, userID string, role domain.Role) ([]domain.ConsultationRecord, error) {
	if userID == "" || !role.Valid() {
		return nil, domain.ErrUnauthorized
	}
	records, err := r.consultationRepo.FetchByUser(ctx, userID, role)
	if err != nil {
		r.Logger.WithFields(logrus.Fields{
			"Function": "GetByUser",
			"UserId":   userID,
			"Error":    err,
		}).Error("Failed to fetch consultation records")
		return nil, err
	}
	return records, nil
}
