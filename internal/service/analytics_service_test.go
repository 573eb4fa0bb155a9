package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/telemedconnect/telemed-session-service/internal/domain"
	"github.com/telemedconnect/telemed-session-service/internal/logs"
)

func analyticsFixture() (*MockAppointmentRepository, *MockConsultationRepository) {
	appointments := newMockAppointmentRepository(
		domain.Appointment{ID: "a1", PatientID: "patient-1", DoctorID: "doctor-1", Status: domain.StatusCompleted},
		domain.Appointment{ID: "a2", PatientID: "patient-1", DoctorID: "doctor-1", Status: domain.StatusScheduled},
		domain.Appointment{ID: "a3", PatientID: "patient-2", DoctorID: "doctor-1", Status: domain.StatusConfirmed},
		domain.Appointment{ID: "a4", PatientID: "patient-2", DoctorID: "doctor-1", Status: domain.StatusCancelled},
		domain.Appointment{ID: "a5", PatientID: "patient-3", DoctorID: "doctor-2", Status: domain.StatusConfirmed},
	)
	consults := newMockConsultationRepository(
		domain.ConsultationRecord{ID: "r1", AppointmentID: "a1", PatientID: "patient-1", DoctorID: "doctor-1", Status: domain.StatusCompleted},
	)
	return appointments, consults
}

func TestComputeDashboardStats_Doctor(t *testing.T) {
	appointments, consults := analyticsFixture()
	svc := NewAnalyticsService(appointments, consults, logs.NewLogger())

	stats, err := svc.ComputeDashboardStats(context.Background(), "doctor-1", domain.RoleDoctor)
	assert.NoError(t, err)

	assert.Equal(t, 4, stats.TotalAppointments)
	assert.Equal(t, 1, stats.CompletedConsultations)
	assert.Equal(t, 2, stats.UpcomingAppointments, "scheduled and confirmed count as upcoming")
	assert.Equal(t, 2, stats.ActivePatients, "distinct patients, not appointments")
	assert.Zero(t, stats.Records)
}

func TestComputeDashboardStats_Patient(t *testing.T) {
	appointments, consults := analyticsFixture()
	svc := NewAnalyticsService(appointments, consults, logs.NewLogger())

	stats, err := svc.ComputeDashboardStats(context.Background(), "patient-1", domain.RolePatient)
	assert.NoError(t, err)

	assert.Equal(t, 2, stats.TotalAppointments)
	assert.Equal(t, 1, stats.CompletedConsultations)
	assert.Equal(t, 1, stats.UpcomingAppointments)
	assert.Equal(t, 1, stats.Records)
	assert.Zero(t, stats.ActivePatients)
}

func TestComputeDashboardStats_Deterministic(t *testing.T) {
	appointments, consults := analyticsFixture()
	svc := NewAnalyticsService(appointments, consults, logs.NewLogger())

	first, err := svc.ComputeDashboardStats(context.Background(), "doctor-1", domain.RoleDoctor)
	assert.NoError(t, err)
	second, err := svc.ComputeDashboardStats(context.Background(), "doctor-1", domain.RoleDoctor)
	assert.NoError(t, err)

	assert.Equal(t, first, second, "identical inputs must yield identical counts")
}

func TestComputeDashboardStats_RequiresIdentity(t *testing.T) {
	appointments, consults := analyticsFixture()
	svc := NewAnalyticsService(appointments, consults, logs.NewLogger())

	_, err := svc.ComputeDashboardStats(context.Background(), "", domain.RoleDoctor)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = svc.ComputeDashboardStats(context.Background(), "doctor-1", domain.Role("admin"))
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}
