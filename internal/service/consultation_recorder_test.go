package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/telemedconnect/telemed-session-service/internal/domain"
	"github.com/telemedconnect/telemed-session-service/internal/logs"
)

func inProgressAppointment() domain.Appointment {
	start := time.Date(2024, 12, 20, 10, 0, 0, 0, time.UTC)
	return domain.Appointment{
		ID:              "appt-1",
		PatientID:       "patient-1",
		PatientName:     "John Smith",
		DoctorID:        "doctor-1",
		DoctorName:      "Dr. Sarah Lee",
		AppointmentDate: start,
		Type:            domain.TypeVideo,
		Status:          domain.StatusInProgress,
		CallStartTime:   &start,
	}
}

func snapshotFor(appointmentID string, duration int) domain.CallSessionSnapshot {
	return domain.CallSessionSnapshot{
		AppointmentID: appointmentID,
		Duration:      duration,
		Notes:         "Patient reports improvement",
		EndedAt:       time.Date(2024, 12, 20, 10, 2, 5, 0, time.UTC),
	}
}

func newRecorder(repo *MockAppointmentRepository, consults *MockConsultationRepository, publisher *MockEventPublisher) *consultationRecorder {
	recorder := NewConsultationRecorder(repo, consults, publisher, logs.NewLogger()).(*consultationRecorder)
	recorder.sleep = func(time.Duration) {}
	return recorder
}

func TestFinalize_CreatesRecordAndCompletesAppointment(t *testing.T) {
	repo := newMockAppointmentRepository(inProgressAppointment())
	consults := newMockConsultationRepository()
	publisher := &MockEventPublisher{}
	recorder := newRecorder(repo, consults, publisher)

	record, err := recorder.Finalize(context.Background(), snapshotFor("appt-1", 125))
	assert.NoError(t, err)

	assert.NotEmpty(t, record.ID)
	assert.Equal(t, "video_call", record.Type)
	assert.Equal(t, 125, record.Duration)
	assert.Equal(t, domain.StatusCompleted, record.Status)
	assert.Equal(t, 1, consults.count())
	assert.Equal(t, domain.StatusCompleted, repo.get("appt-1").Status)

	events := publisher.published()
	if assert.Len(t, events, 1) {
		assert.Equal(t, domain.EventConsultationRecorded, events[0].Event)
	}
}

func TestFinalize_UnknownAppointment(t *testing.T) {
	recorder := newRecorder(newMockAppointmentRepository(), newMockConsultationRepository(), &MockEventPublisher{})

	_, err := recorder.Finalize(context.Background(), snapshotFor("ghost", 10))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestFinalize_NeverRevivesCancelledAppointment(t *testing.T) {
	appointment := inProgressAppointment()
	appointment.Status = domain.StatusCancelled
	repo := newMockAppointmentRepository(appointment)
	consults := newMockConsultationRepository()
	recorder := newRecorder(repo, consults, &MockEventPublisher{})

	_, err := recorder.Finalize(context.Background(), snapshotFor("appt-1", 40))
	assert.ErrorIs(t, err, domain.ErrPrecondition)

	// Cancelled is terminal: no record is written and no status write runs.
	assert.Equal(t, 0, consults.count())
	assert.Zero(t, repo.UpdateCallCount)
	assert.Equal(t, domain.StatusCancelled, repo.get("appt-1").Status)
}

func TestReplay_NeverRevivesCancelledAppointment(t *testing.T) {
	appointment := inProgressAppointment()
	appointment.Status = domain.StatusCancelled
	repo := newMockAppointmentRepository(appointment)
	consults := newMockConsultationRepository(domain.ConsultationRecord{
		ID:            "rec-1",
		AppointmentID: "appt-1",
		Status:        domain.StatusCompleted,
	})
	recorder := newRecorder(repo, consults, &MockEventPublisher{})

	_, err := recorder.Replay(context.Background(), "appt-1")
	assert.ErrorIs(t, err, domain.ErrPrecondition)
	assert.Zero(t, repo.UpdateCallCount)
	assert.Equal(t, domain.StatusCancelled, repo.get("appt-1").Status)
}

func TestFinalize_SkipsCreateWhenRecordExists(t *testing.T) {
	repo := newMockAppointmentRepository(inProgressAppointment())
	consults := newMockConsultationRepository(domain.ConsultationRecord{
		ID:            "rec-1",
		AppointmentID: "appt-1",
		PatientID:     "patient-1",
		DoctorID:      "doctor-1",
		Duration:      125,
		Status:        domain.StatusCompleted,
		CallEndTime:   time.Date(2024, 12, 20, 10, 2, 5, 0, time.UTC),
	})
	recorder := newRecorder(repo, consults, &MockEventPublisher{})

	record, err := recorder.Finalize(context.Background(), snapshotFor("appt-1", 125))
	assert.NoError(t, err)

	assert.Equal(t, "rec-1", record.ID, "the existing record must be reused, never re-created")
	assert.Equal(t, 1, consults.count())
	assert.Zero(t, consults.CreateCallCount)
	assert.Equal(t, domain.StatusCompleted, repo.get("appt-1").Status)
}

func TestFinalize_BoundedRetryThenReconciliationError(t *testing.T) {
	repo := newMockAppointmentRepository(inProgressAppointment())
	consults := newMockConsultationRepository()
	recorder := newRecorder(repo, consults, &MockEventPublisher{})

	var slept []time.Duration
	recorder.sleep = func(d time.Duration) { slept = append(slept, d) }
	repo.UpdateFunc = func(ctx context.Context, id string, fields map[string]interface{}) error {
		return errors.New("connection reset")
	}

	record, err := recorder.Finalize(context.Background(), snapshotFor("appt-1", 90))

	var reconciliation *domain.ReconciliationError
	assert.True(t, errors.As(err, &reconciliation), "expected ReconciliationError, got %v", err)
	assert.Equal(t, "appt-1", reconciliation.AppointmentID)
	// The record half of the saga is done and is returned to the caller.
	assert.Equal(t, 1, consults.count())
	assert.NotEmpty(t, record.ID)
	// Three attempts, sleeping between them but not after the last.
	assert.EqualValues(t, 3, repo.UpdateCallCount)
	assert.Len(t, slept, 2)
}

func TestFinalize_TransientFailureRecoversWithinRetries(t *testing.T) {
	repo := newMockAppointmentRepository(inProgressAppointment())
	consults := newMockConsultationRepository()
	recorder := newRecorder(repo, consults, &MockEventPublisher{})

	var calls int
	repo.UpdateFunc = func(ctx context.Context, id string, fields map[string]interface{}) error {
		calls++
		if calls < 3 {
			return errors.New("connection reset")
		}
		return repo.applyUpdate(id, fields)
	}

	_, err := recorder.Finalize(context.Background(), snapshotFor("appt-1", 90))
	assert.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, repo.get("appt-1").Status)
}

func TestReplay_RequiresExistingRecord(t *testing.T) {
	repo := newMockAppointmentRepository(inProgressAppointment())
	recorder := newRecorder(repo, newMockConsultationRepository(), &MockEventPublisher{})

	_, err := recorder.Replay(context.Background(), "appt-1")
	assert.ErrorIs(t, err, domain.ErrPrecondition)
	assert.Equal(t, domain.StatusInProgress, repo.get("appt-1").Status)
}

func TestReplay_IsANoOpOnceCompleted(t *testing.T) {
	appointment := inProgressAppointment()
	appointment.Status = domain.StatusCompleted
	repo := newMockAppointmentRepository(appointment)
	consults := newMockConsultationRepository(domain.ConsultationRecord{
		ID:            "rec-1",
		AppointmentID: "appt-1",
		Status:        domain.StatusCompleted,
	})
	recorder := newRecorder(repo, consults, &MockEventPublisher{})

	record, err := recorder.Replay(context.Background(), "appt-1")
	assert.NoError(t, err)
	assert.Equal(t, "rec-1", record.ID)
	assert.Zero(t, repo.UpdateCallCount, "a completed appointment needs no further writes")
}
